package constraint

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/meridian-group/decision-cli/internal/model"
	"github.com/meridian-group/decision-cli/internal/verify"
)

// CorrectionPolicy selects what happens on a correctable numeric violation.
type CorrectionPolicy string

const (
	// PolicyRewrite corrects the value in place and appends a note.
	PolicyRewrite CorrectionPolicy = "rewrite"
	// PolicyRegenerate asks the orchestrator for one re-invocation with the
	// corrective instructions appended; a second violation falls back to
	// rewrite.
	PolicyRegenerate CorrectionPolicy = "regenerate"
)

const blockBanner = "⚠️ 以下内容因违反硬性约束被拦截，需要重新生成。\n[BLOCKED: hard constraint violation]\n\n"

// Enforcer applies the rule table before and after role calls.
type Enforcer struct {
	rules  RuleSet
	policy CorrectionPolicy
	unit   string
}

// NewEnforcer builds an enforcer over the given rule set.
func NewEnforcer(rules RuleSet, policy CorrectionPolicy, budgetUnit string) *Enforcer {
	if policy == "" {
		policy = PolicyRewrite
	}
	return &Enforcer{rules: rules, policy: policy, unit: budgetUnit}
}

// PreCheck scans the outgoing request context for banned-keyword violations
// and out-of-bound asks. It returns an additive instruction block describing
// the limits the generation must respect, or "" when nothing was found.
func (e *Enforcer) PreCheck(requestText string) string {
	var lines []string

	amounts := verify.ExtractAmounts(requestText)
	for _, r := range e.rules.Numeric {
		for _, a := range amounts {
			if !matchesRule(r, a) {
				continue
			}
			if a.Value > r.Limit {
				lines = append(lines, fmt.Sprintf(
					"- %s: 不得超过 %s。", r.ID, e.formatLimit(r)))
				break
			}
		}
	}

	lower := strings.ToLower(requestText)
	for _, b := range e.rules.Banned {
		for _, term := range b.Terms {
			if strings.Contains(lower, strings.ToLower(term)) {
				lines = append(lines, fmt.Sprintf("- 禁止涉及敏感内容: %s。", term))
				break
			}
		}
	}

	if len(lines) == 0 {
		return ""
	}
	return "【硬性约束，必须遵守】\n" + strings.Join(lines, "\n")
}

// PostCheck re-scans generated content against the same hard constraints. A
// numeric violation within 1.5× the limit is auto-corrected in place with a
// non-blocking note; beyond 1.5×, or on any banlist hit, the content is
// blocked: a banner is prepended and the caller is signaled.
func (e *Enforcer) PostCheck(content string) model.EnforcementResult {
	res := model.EnforcementResult{Content: content}

	lower := strings.ToLower(content)
	for _, b := range e.rules.Banned {
		for _, term := range b.Terms {
			if strings.Contains(lower, strings.ToLower(term)) {
				res.Violations = append(res.Violations, model.Violation{
					ConstraintID: b.ID,
					Kind:         model.ConstraintHard,
					Severity:     model.SeverityCritical,
					Message:      fmt.Sprintf("banned term %q present", term),
					Blocking:     true,
				})
				res.Blocked = true
			}
		}
	}

	var corrections []correction

	amounts := verify.ExtractAmounts(content)
	for _, r := range e.rules.Numeric {
		for _, a := range amounts {
			if !matchesRule(r, a) || a.Value <= r.Limit {
				continue
			}
			v := model.Violation{
				ConstraintID: r.ID,
				Kind:         r.Kind,
				Value:        a.Value,
				Limit:        r.Limit,
			}
			if a.Value <= correctionFactor*r.Limit {
				v.Severity = model.SeverityWarning
				v.Corrected = true
				corrections = append(corrections, correction{a, r})
			} else {
				v.Severity = model.SeverityCritical
				v.Blocking = true
				res.Blocked = true
			}
			v.Message = fmt.Sprintf("%s: %s exceeds limit %s", r.ID, a.Raw, e.formatLimit(r))
			res.Violations = append(res.Violations, v)
		}
	}

	if len(corrections) > 0 && !res.Blocked {
		if e.policy == PolicyRegenerate {
			res.Regenerate = true
		} else {
			res.Content = e.rewrite(res.Content, corrections)
			for _, c := range corrections {
				note := fmt.Sprintf("[已修正] %s 超出上限，已调整为 %s。", c.amount.Raw, e.formatValue(c.rule, c.rule.Limit))
				res.Corrections = append(res.Corrections, note)
			}
			res.Content += "\n\n" + strings.Join(res.Corrections, "\n")
		}
	}

	if res.Blocked {
		res.Content = blockBanner + content
		zap.L().Warn("content blocked by constraint enforcer",
			zap.Int("violations", len(res.Violations)))
	}

	return res
}

// correction pairs a violating amount with the rule that clamps it.
type correction struct {
	amount verify.Amount
	rule   NumericRule
}

// rewrite replaces violating raw tokens with the clamped limit, processing
// from the end so earlier offsets stay valid.
func (e *Enforcer) rewrite(content string, corrections []correction) string {
	sort.Slice(corrections, func(i, j int) bool {
		return corrections[i].amount.Pos > corrections[j].amount.Pos
	})
	for _, c := range corrections {
		start := c.amount.Pos
		end := start + len(c.amount.Raw)
		if end > len(content) || content[start:end] != c.amount.Raw {
			continue
		}
		content = content[:start] + e.formatValue(c.rule, c.rule.Limit) + content[end:]
	}
	return content
}

func (e *Enforcer) formatLimit(r NumericRule) string {
	return e.formatValue(r, r.Limit)
}

func (e *Enforcer) formatValue(r NumericRule, v float64) string {
	if r.Percent {
		return fmt.Sprintf("%.0f%%", v)
	}
	if scale := unitScale(e.unit); scale > 1 {
		return fmt.Sprintf("%g%s", v/scale, e.unit)
	}
	return fmt.Sprintf("%g", v)
}

func matchesRule(r NumericRule, a verify.Amount) bool {
	if r.Percent != a.Percent {
		return false
	}
	if !r.Percent && !a.Money {
		return false
	}
	for _, k := range r.Keywords {
		if strings.Contains(a.Context, strings.ToLower(k)) {
			return true
		}
	}
	return false
}

