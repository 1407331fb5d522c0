// Package monitoring collects run health metrics and raises webhook alerts
// when thresholds are breached.
package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/meridian-group/decision-cli/internal/model"
	"github.com/meridian-group/decision-cli/internal/store"
)

// MetricsSnapshot holds a point-in-time view of system health.
type MetricsSnapshot struct {
	// Run metrics (within lookback window).
	RunTotal     int     `json:"run_total"`
	RunCompleted int     `json:"run_completed"`
	RunFailed    int     `json:"run_failed"`
	RunRunning   int     `json:"run_running"`
	RunFailRate  float64 `json:"run_fail_rate"`

	// Pipeline quality counters (within lookback window).
	FallbackCalls  int           `json:"fallback_calls"`
	BlockedOutputs int           `json:"blocked_outputs"`
	Corrections    int           `json:"corrections"`
	BannedWarnings int           `json:"banned_warnings"`
	AvgLatency     time.Duration `json:"avg_latency"`

	// Dead-letter depth (all time).
	DeadLetterDepth int `json:"dead_letter_depth"`

	// Metadata.
	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// Collector gathers metrics from persisted sessions and dead letters.
type Collector struct {
	store store.Store
	now   func() time.Time
}

// NewCollector creates a metrics collector over the store.
func NewCollector(st store.Store) *Collector {
	return &Collector{store: st, now: time.Now}
}

// WithNow fixes the clock for testing.
func (c *Collector) WithNow(now func() time.Time) *Collector {
	c.now = now
	return c
}

// Collect gathers a snapshot over the given lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*MetricsSnapshot, error) {
	snap := &MetricsSnapshot{
		LookbackHours: lookbackHours,
		CollectedAt:   c.now().UTC(),
	}
	cutoff := snap.CollectedAt.Add(-time.Duration(lookbackHours) * time.Hour)

	sessions, err := c.store.ListSessions(ctx, store.SessionFilter{Limit: 10000})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list sessions")
	}

	var totalLatency time.Duration
	var finishedWithLatency int
	for _, run := range sessions {
		if run.CreatedAt.Before(cutoff) {
			continue
		}
		snap.RunTotal++
		switch run.Status {
		case model.RunStatusCompleted:
			snap.RunCompleted++
		case model.RunStatusFailed:
			snap.RunFailed++
		case model.RunStatusRunning:
			snap.RunRunning++
		}

		snap.FallbackCalls += run.Metadata.FallbackCount
		snap.BlockedOutputs += run.Metadata.Blocked
		snap.Corrections += run.Metadata.Corrections
		snap.BannedWarnings += run.Metadata.BannedWarnings
		if run.Metadata.TotalLatency > 0 {
			totalLatency += run.Metadata.TotalLatency
			finishedWithLatency++
		}
	}

	finished := snap.RunCompleted + snap.RunFailed
	if finished > 0 {
		snap.RunFailRate = float64(snap.RunFailed) / float64(finished)
	}
	if finishedWithLatency > 0 {
		snap.AvgLatency = totalLatency / time.Duration(finishedWithLatency)
	}

	letters, err := c.store.ListDeadLetters(ctx, 0)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list dead letters")
	}
	snap.DeadLetterDepth = len(letters)

	return snap, nil
}
