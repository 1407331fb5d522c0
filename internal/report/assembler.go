// Package report renders a finished run into the final deliverables:
// a markdown report body and an XLSX workbook.
package report

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/meridian-group/decision-cli/internal/model"
	"github.com/meridian-group/decision-cli/internal/orchestrator"
)

// Assembler merges role outputs, verification results and run metadata into
// one markdown document. It satisfies orchestrator.Assembler.
type Assembler struct {
	roleOrder []string
	roleNames map[string]string
}

// NewAssembler builds an assembler that orders sections by panel position.
func NewAssembler(roles []model.Role) *Assembler {
	order := make([]string, 0, len(roles))
	names := make(map[string]string, len(roles))
	for _, r := range roles {
		order = append(order, r.ID)
		names[r.ID] = r.Name
	}
	return &Assembler{roleOrder: order, roleNames: names}
}

// Assemble renders the outcome. Blocked outputs are kept (their banner is
// already part of the content) so the reader sees what was intercepted.
func (a *Assembler) Assemble(o *orchestrator.Outcome) string {
	run := o.Run
	var b strings.Builder

	b.WriteString("# 决策分析报告\n\n")
	fmt.Fprintf(&b, "**分析对象**: %s\n\n", run.Input)
	fmt.Fprintf(&b, "**模式**: %s  |  **会话**: %s\n", run.Mode, run.ID)

	for _, key := range a.sortedKeys(run, o.Topics) {
		res := run.Results[key]
		roleID := roleOf(key)

		title := a.roleNames[roleID]
		if title == "" {
			title = roleID
		}
		if topic := topicOf(key); topic != "" {
			title = fmt.Sprintf("%s · %s", topic, title)
		}
		fmt.Fprintf(&b, "\n## %s", title)
		if w, ok := o.Weights[roleID]; ok && w != 1.0 {
			fmt.Fprintf(&b, "（权重 %.1f）", w)
		}
		b.WriteString("\n\n")

		if !res.Success {
			fmt.Fprintf(&b, "> 本角色分析失败: %s\n", res.Err)
			continue
		}
		b.WriteString(res.Content)
		b.WriteString("\n")
	}

	if len(o.Claims) > 0 {
		b.WriteString("\n## 数据核验\n\n")
		b.WriteString("| 断言 | 数值 | 状态 | 等级 | 置信度 |\n")
		b.WriteString("|------|------|------|------|--------|\n")
		for _, c := range o.Claims {
			fmt.Fprintf(&b, "| %s | %g%s | %s | %s | %.0f |\n",
				truncate(c.Text, 60), c.Value, c.Unit, c.Status, c.Grade, c.Confidence)
		}
	}

	b.WriteString("\n## 一致性检查\n\n")
	fmt.Fprintf(&b, "一致性得分: %.0f/100\n", o.Consistency)
	for _, f := range o.Findings {
		fmt.Fprintf(&b, "- [%s] %s", f.Severity, f.Label)
		if f.Detail != "" {
			fmt.Fprintf(&b, " (%s)", f.Detail)
		}
		b.WriteString("\n")
	}

	b.WriteString("\n## 运行概览\n\n")
	md := run.Metadata
	fmt.Fprintf(&b, "- 总耗时: %s\n", md.TotalLatency.Round(10*time.Millisecond))
	fmt.Fprintf(&b, "- 降级调用: %d 次\n", md.FallbackCount)
	fmt.Fprintf(&b, "- 自动修正: %d 处\n", md.Corrections)
	fmt.Fprintf(&b, "- 拦截输出: %d 个\n", md.Blocked)
	if len(md.SourcesByTier) > 0 {
		var tiers []string
		for t := range md.SourcesByTier {
			tiers = append(tiers, t)
		}
		sort.Strings(tiers)
		var parts []string
		for _, t := range tiers {
			parts = append(parts, fmt.Sprintf("%s×%d", t, md.SourcesByTier[t]))
		}
		fmt.Fprintf(&b, "- 信息来源: %s\n", strings.Join(parts, ", "))
	}
	if md.BannedWarnings > 0 {
		fmt.Fprintf(&b, "- ⚠️ 过滤低可信来源: %d 个\n", md.BannedWarnings)
	}

	return b.String()
}

// sortedKeys orders result keys by topic sequence, then panel position.
func (a *Assembler) sortedKeys(run *model.WorkflowRun, topics []orchestrator.Topic) []string {
	topicSeq := make(map[string]int, len(topics))
	for _, t := range topics {
		topicSeq[t.ID] = t.Seq
	}
	roleSeq := make(map[string]int, len(a.roleOrder))
	for i, id := range a.roleOrder {
		roleSeq[id] = i
	}

	keys := make([]string, 0, len(run.Results))
	for k := range run.Results {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		ti, tj := topicSeq[topicOf(keys[i])], topicSeq[topicOf(keys[j])]
		if ti != tj {
			return ti < tj
		}
		return roleSeq[roleOf(keys[i])] < roleSeq[roleOf(keys[j])]
	})
	return keys
}

func topicOf(key string) string {
	if i := strings.Index(key, "/"); i > 0 {
		return key[:i]
	}
	return ""
}

func roleOf(key string) string {
	if i := strings.Index(key, "/"); i > 0 {
		return key[i+1:]
	}
	return key
}

func truncate(s string, max int) string {
	runes := []rune(strings.ReplaceAll(s, "|", "\\|"))
	if len(runes) <= max {
		return string(runes)
	}
	return string(runes[:max]) + "…"
}
