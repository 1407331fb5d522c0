package model

import "time"

// FeedbackRecord is one user evaluation of a generated decision.
type FeedbackRecord struct {
	ID          string          `json:"id"`
	DecisionID  string          `json:"decision_id"`
	Rating      int             `json:"rating"` // 1-5
	Adopted     bool            `json:"adopted"`
	Correction  string          `json:"correction,omitempty"`
	RoleHelpful map[string]bool `json:"role_helpful,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// LearnedRule is a textual rule derived from feedback corrections and injected
// into future prompts.
type LearnedRule struct {
	ID          string    `json:"id"`
	Text        string    `json:"text"`
	Category    string    `json:"category,omitempty"`
	Confidence  float64   `json:"confidence"` // 0-100, decays with disuse
	UsageCount  int       `json:"usage_count"`
	SuccessRate float64   `json:"success_rate"`
	LastUsed    time.Time `json:"last_used"`
	CreatedAt   time.Time `json:"created_at"`
}

// RoleStats tracks per-role feedback accuracy and the derived weight.
type RoleStats struct {
	RoleID  string  `json:"role_id"`
	Samples int     `json:"samples"`
	Helpful int     `json:"helpful"`
	Weight  float64 `json:"weight"`
}

// Accuracy returns the helpful ratio, or 0 with no samples.
func (s RoleStats) Accuracy() float64 {
	if s.Samples == 0 {
		return 0
	}
	return float64(s.Helpful) / float64(s.Samples)
}

// CaseRecord is a tagged historical case kept for prompt augmentation.
type CaseRecord struct {
	ID         string    `json:"id"`
	DecisionID string    `json:"decision_id"`
	Summary    string    `json:"summary"`
	Rating     int       `json:"rating"`
	Adopted    bool      `json:"adopted"`
	Tags       []string  `json:"tags,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
