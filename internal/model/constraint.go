package model

// ConstraintKind distinguishes rules that block from rules that advise.
type ConstraintKind string

const (
	ConstraintHard ConstraintKind = "hard"
	ConstraintSoft ConstraintKind = "soft"
)

// ViolationSeverity grades a constraint violation.
type ViolationSeverity string

const (
	SeverityWarning  ViolationSeverity = "warning"
	SeverityCritical ViolationSeverity = "critical"
)

// Violation is one constraint hit found in generated content.
type Violation struct {
	ConstraintID string            `json:"constraint_id"`
	Kind         ConstraintKind    `json:"kind"`
	Severity     ViolationSeverity `json:"severity"`
	Message      string            `json:"message"`
	Value        float64           `json:"value,omitempty"`
	Limit        float64           `json:"limit,omitempty"`
	Corrected    bool              `json:"corrected"`
	Blocking     bool              `json:"blocking"`
}

// EnforcementResult is the outcome of a constraint pass over one text.
type EnforcementResult struct {
	Content     string      `json:"content"` // possibly rewritten
	Violations  []Violation `json:"violations"`
	Corrections []string    `json:"corrections,omitempty"`
	Blocked     bool        `json:"blocked"`
	Regenerate  bool        `json:"regenerate,omitempty"` // enforcer requests one re-invocation
}

// Finding is one contradiction detected in generated text.
type Finding struct {
	Label    string            `json:"label"`
	Category string            `json:"category"` // logical, numeric, temporal
	Severity ViolationSeverity `json:"severity"`
	Detail   string            `json:"detail,omitempty"`
}
