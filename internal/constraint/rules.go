// Package constraint validates, auto-corrects or blocks generated content
// against hard business rules: budget ceiling, ROI ceiling and a compliance
// banlist. Rules are a declarative table of value objects evaluated uniformly.
package constraint

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/meridian-group/decision-cli/internal/model"
)

// correctionFactor is the auto-correct threshold: a numeric violation within
// this multiple of the limit is rewritten to the limit; beyond it the content
// is blocked.
const correctionFactor = 1.5

// NumericRule bounds amounts appearing in a given semantic context. The
// predicate is the (keywords, percent) pair; the corrective action is a clamp
// to Limit.
type NumericRule struct {
	ID       string               `yaml:"id"`
	Kind     model.ConstraintKind `yaml:"kind"`
	Category string               `yaml:"category"` // budget, roi
	Keywords []string             `yaml:"keywords"`
	Percent  bool                 `yaml:"percent"`
	Limit    float64              `yaml:"limit"` // base units (元 for money, % points for percentages)
}

// BanRule blocks content containing any of its terms.
type BanRule struct {
	ID    string   `yaml:"id"`
	Terms []string `yaml:"terms"`
}

// RuleSet is the full declarative constraint table.
type RuleSet struct {
	Numeric []NumericRule `yaml:"numeric"`
	Banned  []BanRule     `yaml:"banned"`
}

// unitScale converts a configured budget unit into base units.
func unitScale(unit string) float64 {
	switch unit {
	case "万元":
		return 1e4
	case "亿元":
		return 1e8
	default:
		return 1
	}
}

// DefaultRuleSet derives the rule table from configured limits. budget and
// maxROI of zero disable the respective rule.
func DefaultRuleSet(budget float64, budgetUnit string, maxROI float64, banlist []string) RuleSet {
	var rs RuleSet
	if budget > 0 {
		rs.Numeric = append(rs.Numeric, NumericRule{
			ID:       "budget-ceiling",
			Kind:     model.ConstraintHard,
			Category: "budget",
			Keywords: []string{"investment", "invest", "capital", "budget", "投资", "投入", "启动资金", "预算", "资金"},
			Limit:    budget * unitScale(budgetUnit),
		})
	}
	if maxROI > 0 {
		rs.Numeric = append(rs.Numeric, NumericRule{
			ID:       "roi-ceiling",
			Kind:     model.ConstraintHard,
			Category: "roi",
			Keywords: []string{"roi", "return", "回报率", "收益率", "回报"},
			Percent:  true,
			Limit:    maxROI * 100,
		})
	}
	if len(banlist) > 0 {
		rs.Banned = append(rs.Banned, BanRule{ID: "compliance-banlist", Terms: banlist})
	}
	return rs
}

// LoadRuleSet reads additional rules from a YAML file and merges them after
// the defaults.
func LoadRuleSet(path string, base RuleSet) (RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, eris.Wrapf(err, "constraint: read rules file %s", path)
	}
	var extra RuleSet
	if err := yaml.Unmarshal(data, &extra); err != nil {
		return base, eris.Wrap(err, "constraint: parse rules file")
	}
	base.Numeric = append(base.Numeric, extra.Numeric...)
	base.Banned = append(base.Banned, extra.Banned...)
	return base, nil
}
