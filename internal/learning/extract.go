package learning

import (
	"regexp"
	"strings"

	"github.com/meridian-group/decision-cli/internal/model"
)

// ruleTemplate matches one known correction phrasing and maps it to a rule
// category. Templates cover the constraint and preference forms users
// actually write; anything that matches none of them produces no rule.
type ruleTemplate struct {
	pattern    *regexp.Regexp
	category   string
	confidence float64
}

var ruleTemplates = []ruleTemplate{
	{regexp.MustCompile(`(?i)(预算|投资|budget|investment)[^。.\n]*(不能超过|不得超过|must not exceed|should not exceed|at most)[^。.\n]*`), "constraint", 70},
	{regexp.MustCompile(`(?i)(回报率|收益率|roi)[^。.\n]*(不能|不得|太高|过高|unrealistic|too high)[^。.\n]*`), "constraint", 65},
	{regexp.MustCompile(`(?i)(不要|避免|不应|avoid|don't|do not)[^。.\n]+`), "preference", 60},
	{regexp.MustCompile(`(?i)(优先|应该|建议|prefer|should|recommend)[^。.\n]+`), "preference", 55},
	{regexp.MustCompile(`(?i)(必须|一定要|务必|must|always)[^。.\n]+`), "constraint", 65},
}

// ExtractRule derives a learned rule from free-text correction by matching
// against the known templates. The first matching template wins.
func ExtractRule(correction string) (model.LearnedRule, bool) {
	correction = strings.TrimSpace(correction)
	if correction == "" {
		return model.LearnedRule{}, false
	}

	for _, tpl := range ruleTemplates {
		if m := tpl.pattern.FindString(correction); m != "" {
			return model.LearnedRule{
				Text:       strings.TrimSpace(m),
				Category:   tpl.category,
				Confidence: tpl.confidence,
			}, true
		}
	}
	return model.LearnedRule{}, false
}
