package verify

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/meridian-group/decision-cli/internal/model"
)

// ContradictionRule fires when both its positive and negative pattern match
// the same text. Rules are data: the table is uniform and each entry is
// independently testable.
type ContradictionRule struct {
	Positive *regexp.Regexp
	Negative *regexp.Regexp
	Label    string
	Severity model.ViolationSeverity
	Category string
}

// DefaultContradictionRules is the built-in table of mutually exclusive
// statement patterns, covering both English and Chinese phrasing.
func DefaultContradictionRules() []ContradictionRule {
	return []ContradictionRule{
		{
			// \b only helps for latin words; 可行 needs the 不-guard instead.
			Positive: regexp.MustCompile(`(?i)\b(feasible|viable|recommended)\b|(^|[^不])可行|建议实施|值得投资`),
			Negative: regexp.MustCompile(`(?i)\binfeasible\b|\bnot\s+(feasible|viable)\b|不可行|不建议|风险过高`),
			Label:    "feasibility assessment conflicts",
			Severity: model.SeverityWarning,
			Category: "logical",
		},
		{
			Positive: regexp.MustCompile(`(?i)(high\s+profit|profitable|利润丰厚|盈利能力强|高回报)`),
			Negative: regexp.MustCompile(`(?i)(loss-making|unprofitable|亏损|难以盈利|低回报)`),
			Label:    "profitability claims conflict",
			Severity: model.SeverityWarning,
			Category: "logical",
		},
		{
			Positive: regexp.MustCompile(`(?i)(low\s+risk|风险较?低|风险可控)`),
			Negative: regexp.MustCompile(`(?i)(high\s+risk|风险较?高|风险极大)`),
			Label:    "risk assessments conflict",
			Severity: model.SeverityWarning,
			Category: "logical",
		},
		{
			Positive: regexp.MustCompile(`(?i)(growing|expanding|市场增长|需求上升)`),
			Negative: regexp.MustCompile(`(?i)(shrinking|declining|市场萎缩|需求下降)`),
			Label:    "market direction claims conflict",
			Severity: model.SeverityCritical,
			Category: "logical",
		},
		{
			Positive: regexp.MustCompile(`(?i)(short[-\s]?term|within\s+months|短期内|几个月内)`),
			Negative: regexp.MustCompile(`(?i)(long[-\s]?term\s+only|years\s+to\s+recover|数年才能|长期才能)`),
			Label:    "payback horizon claims conflict",
			Severity: model.SeverityWarning,
			Category: "temporal",
		},
	}
}

// amountBucket groups extracted amounts by semantic context.
type amountBucket struct {
	category string
	keywords []string
	ratioMax float64 // flag when max:min exceeds this
	percent  bool    // bucket collects percentages instead of money
}

var defaultBuckets = []amountBucket{
	{category: "investment", keywords: []string{"investment", "invest", "capital", "投资", "投入", "启动资金"}, ratioMax: 3},
	{category: "profit", keywords: []string{"profit", "revenue", "income", "利润", "收入", "营收", "盈利"}, ratioMax: 3},
	{category: "cost", keywords: []string{"cost", "expense", "成本", "费用", "支出"}, ratioMax: 3},
	{category: "payback-period", keywords: []string{"payback", "recover", "回本", "回收期", "months", "个月", "年"}, ratioMax: 2},
	{category: "roi", keywords: []string{"roi", "return", "回报率", "收益率"}, ratioMax: 3, percent: true},
}

// Detector scans generated text for mutually exclusive statements and numeric
// outliers.
type Detector struct {
	rules   []ContradictionRule
	buckets []amountBucket
}

// NewDetector builds a detector; nil rules fall back to the default table.
func NewDetector(rules []ContradictionRule) *Detector {
	if rules == nil {
		rules = DefaultContradictionRules()
	}
	return &Detector{rules: rules, buckets: defaultBuckets}
}

// Scan returns all findings in the text.
func (d *Detector) Scan(text string) []model.Finding {
	var findings []model.Finding

	for _, r := range d.rules {
		if r.Positive.MatchString(text) && r.Negative.MatchString(text) {
			findings = append(findings, model.Finding{
				Label:    r.Label,
				Category: r.Category,
				Severity: r.Severity,
			})
		}
	}

	findings = append(findings, d.scanNumeric(text)...)
	return findings
}

// scanNumeric buckets extracted amounts by semantic context and flags any
// bucket whose max:min ratio exceeds the category threshold.
func (d *Detector) scanNumeric(text string) []model.Finding {
	amounts := ExtractAmounts(text)
	if len(amounts) < 2 {
		return nil
	}

	var findings []model.Finding
	for _, b := range d.buckets {
		var vals []float64
		for _, a := range amounts {
			if a.Percent != b.percent {
				continue
			}
			if !b.percent && !a.Money {
				continue
			}
			if containsKeyword(a.Context, b.keywords) {
				vals = append(vals, a.Value)
			}
		}
		if len(vals) < 2 {
			continue
		}

		minV, maxV := vals[0], vals[0]
		for _, v := range vals[1:] {
			if v < minV {
				minV = v
			}
			if v > maxV {
				maxV = v
			}
		}
		if minV <= 0 {
			continue
		}
		if ratio := maxV / minV; ratio > b.ratioMax {
			findings = append(findings, model.Finding{
				Label:    fmt.Sprintf("%s figures diverge %.1fx", b.category, ratio),
				Category: "numeric",
				Severity: model.SeverityCritical,
				Detail:   fmt.Sprintf("min %.2f, max %.2f", minV, maxV),
			})
		}
	}
	return findings
}

func containsKeyword(context string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(context, k) {
			return true
		}
	}
	return false
}

// Score aggregates findings into a 0-100 consistency score:
// max(0, 100 − 20·criticals − 5·warnings).
func Score(findings []model.Finding) float64 {
	criticals, warnings := 0, 0
	for _, f := range findings {
		if f.Severity == model.SeverityCritical {
			criticals++
		} else {
			warnings++
		}
	}
	score := 100 - 20*criticals - 5*warnings
	if score < 0 {
		score = 0
	}
	return float64(score)
}
