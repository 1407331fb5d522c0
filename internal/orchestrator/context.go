package orchestrator

import (
	"fmt"
	"strings"

	"github.com/meridian-group/decision-cli/internal/model"
)

// ContextVersion is bumped whenever the RoleContext layout changes, so
// persisted sessions can tell which shape they were produced under.
const ContextVersion = 1

// PriorOutput is one upstream result visible to a role: either an earlier
// role in the same topic's panel or a dependency topic's synthesis.
type PriorOutput struct {
	TopicID string `json:"topic_id"`
	RoleID  string `json:"role_id"`
	Content string `json:"content"`
}

// RoleContext is the typed record handed to every role invocation. Roles
// receive a rendered view of it, never an untyped prompt blob, so each field
// has one producer and the rendering stays uniform across the panel.
type RoleContext struct {
	Version     int            `json:"version"`
	RunID       string         `json:"run_id"`
	Mode        model.RunMode  `json:"mode"`
	Topic       string         `json:"topic"`
	UserProfile string         `json:"user_profile,omitempty"`
	Constraints string         `json:"constraints,omitempty"` // pre-check instruction block
	Rules       string         `json:"rules,omitempty"`       // learned-rule augmentation
	Sources     []model.Source `json:"sources,omitempty"`
	Prior       []PriorOutput  `json:"prior,omitempty"`
}

// UserMessage renders the context into the user turn for a role call.
func (c *RoleContext) UserMessage() string {
	var b strings.Builder

	fmt.Fprintf(&b, "【分析对象】\n%s\n", c.Topic)

	if c.UserProfile != "" {
		fmt.Fprintf(&b, "\n【用户背景】\n%s\n", c.UserProfile)
	}

	if len(c.Sources) > 0 {
		b.WriteString("\n【检索资料】\n")
		for i, s := range c.Sources {
			fmt.Fprintf(&b, "%d. %s (%s)\n%s\n", i+1, s.Title, s.URL, s.Snippet)
		}
	}

	if len(c.Prior) > 0 {
		b.WriteString("\n【已有分析】\n")
		for _, p := range c.Prior {
			fmt.Fprintf(&b, "--- %s ---\n%s\n", p.RoleID, p.Content)
		}
	}

	if c.Constraints != "" {
		b.WriteString("\n" + c.Constraints + "\n")
	}
	if c.Rules != "" {
		b.WriteString("\n" + c.Rules + "\n")
	}

	return b.String()
}
