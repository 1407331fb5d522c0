package orchestrator

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/meridian-group/decision-cli/internal/model"
)

// roleSpec is one built-in panel member; candidates are attached at wiring
// time from the configured providers.
type roleSpec struct {
	id     string
	name   string
	prompt string
}

var forwardPanel = []roleSpec{
	{
		id:   "market-analyst",
		name: "市场分析师",
		prompt: "你是资深市场分析师。基于提供的检索资料，分析该想法的市场规模、需求趋势、" +
			"目标客群和竞争格局。所有数字必须注明来源，没有依据的数字明确标注为估算。",
	},
	{
		id:   "financial-advisor",
		name: "财务顾问",
		prompt: "你是财务顾问。基于市场分析结果，估算启动投资、月度成本、收入预测和回本周期。" +
			"给出保守、中性、乐观三档测算，并说明关键假设。",
	},
	{
		id:   "risk-assessor",
		name: "风险评估师",
		prompt: "你是风险评估师。识别该方案的政策风险、市场风险、执行风险和财务风险，" +
			"按发生概率与影响程度排序，并针对每项风险给出缓解措施。",
	},
	{
		id:   "execution-planner",
		name: "执行规划师",
		prompt: "你是执行规划师。将方案拆解为可执行的阶段计划：每阶段的目标、关键动作、" +
			"时间估算和前置条件。标注哪些步骤可以并行。",
	},
	{
		id:   "decision-synthesizer",
		name: "决策综合官",
		prompt: "你是决策综合官。综合以上各角色的分析，给出明确结论：可行 / 有条件可行 / 不可行，" +
			"以及支撑该结论的三条最关键依据。不得回避结论。",
	},
}

var reversePanel = []roleSpec{
	{
		id:   "goal-decomposer",
		name: "目标拆解师",
		prompt: "你是目标拆解师。用户给出的是目标而非具体方案。把目标拆解为可量化的子目标，" +
			"并列出达成每个子目标的可选路径。",
	},
	{
		id:   "idea-generator",
		name: "方案生成师",
		prompt: "你是方案生成师。基于拆解后的子目标和检索资料，提出3-5个具体可行的候选方案，" +
			"每个方案注明所需投入量级和主要前提。",
	},
	{
		id:   "feasibility-ranker",
		name: "可行性排序师",
		prompt: "你是可行性排序师。对候选方案按投入、风险、预期回报综合排序，" +
			"给出首选方案及其理由，并指出次选方案在什么条件下反超。",
	},
}

var comparePanel = []roleSpec{
	{
		id:   "dimension-mapper",
		name: "维度对齐师",
		prompt: "你是维度对齐师。用户给出了多个备选项。确定一组公平的对比维度" +
			"（投入、回报、风险、周期、门槛），并说明每个维度的衡量口径。",
	},
	{
		id:   "comparator",
		name: "对比分析师",
		prompt: "你是对比分析师。按照给定维度逐项对比各备选项，数据须引用检索资料，" +
			"缺数据的维度明确标注。输出对比表格。",
	},
	{
		id:   "decision-synthesizer",
		name: "决策综合官",
		prompt: "你是决策综合官。基于对比结果给出明确推荐：首选哪个备选项、为什么、" +
			"以及放弃其他选项的核心原因。",
	},
}

// Panel returns the built-in role list for a run mode, with the given
// fallback candidates attached to every role. Mixed mode reuses the forward
// panel per topic.
func Panel(mode model.RunMode, candidates []model.ModelCandidate, maxTokens int) []model.Role {
	var specs []roleSpec
	switch mode {
	case model.ModeReverse:
		specs = reversePanel
	case model.ModeCompare:
		specs = comparePanel
	default:
		specs = forwardPanel
	}

	roles := make([]model.Role, 0, len(specs))
	for _, s := range specs {
		roles = append(roles, model.Role{
			ID:             s.id,
			Name:           s.name,
			PromptTemplate: s.prompt,
			Candidates:     candidates,
			MaxTokens:      maxTokens,
		})
	}
	return roles
}

// LoadRoles reads a custom role table from a YAML file. The file replaces the
// built-in panel entirely; roles without candidates inherit the defaults.
func LoadRoles(path string, defaults []model.ModelCandidate) ([]model.Role, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "orchestrator: read roles file %s", path)
	}

	var doc struct {
		Roles []model.Role `yaml:"roles"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, eris.Wrapf(err, "orchestrator: parse roles file %s", path)
	}
	if len(doc.Roles) == 0 {
		return nil, eris.Errorf("orchestrator: roles file %s defines no roles", path)
	}

	for i := range doc.Roles {
		if doc.Roles[i].ID == "" {
			return nil, eris.Errorf("orchestrator: role %d in %s has no id", i, path)
		}
		if len(doc.Roles[i].Candidates) == 0 {
			doc.Roles[i].Candidates = defaults
		}
	}
	return doc.Roles, nil
}
