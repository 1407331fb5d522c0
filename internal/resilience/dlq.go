package resilience

import "time"

// DeadLetter records a role invocation whose entire fallback chain was
// exhausted. Entries are persisted for inspection and manual replay; nothing
// retries them automatically.
type DeadLetter struct {
	ID         string    `json:"id"`
	RunID      string    `json:"run_id"`
	RoleID     string    `json:"role_id"`
	Attempts   int       `json:"attempts"`
	LastError  string    `json:"last_error"`
	ErrorType  string    `json:"error_type"` // "transient" or "permanent"
	OccurredAt time.Time `json:"occurred_at"`
}

// ClassifyError categorizes an error as "transient" or "permanent".
func ClassifyError(err error) string {
	if IsTransient(err) {
		return "transient"
	}
	return "permanent"
}
