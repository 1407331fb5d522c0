package model

import "time"

// ModelCandidate is one (provider, model) pair in a role's fallback chain.
type ModelCandidate struct {
	Provider      string `json:"provider" yaml:"provider"`
	Model         string `json:"model" yaml:"model"`
	Endpoint      string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	CredentialRef string `json:"credential_ref,omitempty" yaml:"credential_ref,omitempty"`
}

// Role is a configured analytical persona: a prompt template plus an ordered
// list of model candidates tried in fallback order.
type Role struct {
	ID             string           `json:"id" yaml:"id"`
	Name           string           `json:"name" yaml:"name"`
	PromptTemplate string           `json:"prompt_template" yaml:"prompt_template"`
	Candidates     []ModelCandidate `json:"candidates" yaml:"candidates"`
	Temperature    *float64         `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	MaxTokens      int              `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
}

// RoleResult is the outcome of one role invocation.
//
// Invariant: Success == false implies Content == "" and Err != "".
type RoleResult struct {
	RoleID        string        `json:"role_id"`
	Content       string        `json:"content"`
	Model         string        `json:"model,omitempty"`
	Provider      string        `json:"provider,omitempty"`
	Latency       time.Duration `json:"latency"`
	UsedFallback  bool          `json:"used_fallback"`
	FallbackLevel int           `json:"fallback_level"`
	Success       bool          `json:"success"`
	Err           string        `json:"error,omitempty"`
	Blocked       bool          `json:"blocked,omitempty"`
	Corrections   []string      `json:"corrections,omitempty"`
	Timestamp     time.Time     `json:"timestamp"`
}

// CallAttempt is one entry in the per-attempt call log kept by the fallback
// caller. One attempt is logged per candidate tried, including skips.
type CallAttempt struct {
	RoleID    string        `json:"role_id"`
	Provider  string        `json:"provider"`
	Model     string        `json:"model"`
	Success   bool          `json:"success"`
	Skipped   bool          `json:"skipped,omitempty"`
	Latency   time.Duration `json:"latency"`
	Err       string        `json:"error,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}
