package model

import "time"

// RunStatus represents the current state of a workflow run. Transitions are
// monotonic: pending → running → completed|failed.
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// CanTransition reports whether moving from s to next is a legal forward step.
func (s RunStatus) CanTransition(next RunStatus) bool {
	switch s {
	case RunStatusPending:
		return next == RunStatusRunning || next == RunStatusFailed
	case RunStatusRunning:
		return next == RunStatusCompleted || next == RunStatusFailed
	default:
		return false
	}
}

// RunMode selects the role sequence applied to each topic.
type RunMode string

const (
	ModeForward RunMode = "forward" // idea → feasibility decision
	ModeReverse RunMode = "reverse" // goal → candidate ideas
	ModeMixed   RunMode = "mixed"   // multi-topic with cross-references
	ModeCompare RunMode = "compare" // side-by-side evaluation
)

// RunMetadata holds aggregate counters for one run.
type RunMetadata struct {
	TotalLatency   time.Duration  `json:"total_latency"`
	FallbackCount  int            `json:"fallback_count"`
	SourcesByTier  map[string]int `json:"sources_by_tier,omitempty"`
	BannedWarnings int            `json:"banned_warnings"`
	Corrections    int            `json:"corrections"`
	Blocked        int            `json:"blocked"`
}

// WorkflowRun is the unit of work for one analysis request. It is created per
// request and discarded after reporting; only a snapshot is persisted as a
// session record.
type WorkflowRun struct {
	ID        string                `json:"id"`
	Input     string                `json:"input"`
	Mode      RunMode               `json:"mode"`
	Status    RunStatus             `json:"status"`
	Results   map[string]RoleResult `json:"results"`
	Metadata  RunMetadata           `json:"metadata"`
	Report    string                `json:"report,omitempty"`
	Err       string                `json:"error,omitempty"`
	CreatedAt time.Time             `json:"created_at"`
	UpdatedAt time.Time             `json:"updated_at"`
}

// ProgressEvent is streamed to the presentation layer while a run executes.
type ProgressEvent struct {
	RunID    string `json:"run_id"`
	Progress int    `json:"progress"` // 0-100
	Status   string `json:"status"`
	Step     string `json:"step"`
}
