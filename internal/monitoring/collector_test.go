package monitoring

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-group/decision-cli/internal/model"
	"github.com/meridian-group/decision-cli/internal/resilience"
	"github.com/meridian-group/decision-cli/internal/store"
)

// fakeStore overrides only the two reads the collector needs.
type fakeStore struct {
	store.Store
	sessions []model.WorkflowRun
	letters  []resilience.DeadLetter
}

func (f *fakeStore) ListSessions(_ context.Context, _ store.SessionFilter) ([]model.WorkflowRun, error) {
	return f.sessions, nil
}

func (f *fakeStore) ListDeadLetters(_ context.Context, _ int) ([]resilience.DeadLetter, error) {
	return f.letters, nil
}

func TestCollector_Collect(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	run := func(status model.RunStatus, age time.Duration, md model.RunMetadata) model.WorkflowRun {
		return model.WorkflowRun{Status: status, CreatedAt: now.Add(-age), Metadata: md}
	}

	t.Run("counts runs inside the lookback window", func(t *testing.T) {
		t.Parallel()
		st := &fakeStore{
			sessions: []model.WorkflowRun{
				run(model.RunStatusCompleted, time.Hour, model.RunMetadata{TotalLatency: 2 * time.Second}),
				run(model.RunStatusFailed, 2*time.Hour, model.RunMetadata{}),
				run(model.RunStatusRunning, 3*time.Hour, model.RunMetadata{}),
				run(model.RunStatusCompleted, 48*time.Hour, model.RunMetadata{}), // outside window
			},
			letters: []resilience.DeadLetter{{ID: "dl-1"}, {ID: "dl-2"}},
		}
		c := NewCollector(st).WithNow(func() time.Time { return now })

		snap, err := c.Collect(context.Background(), 24)
		require.NoError(t, err)

		assert.Equal(t, 3, snap.RunTotal)
		assert.Equal(t, 1, snap.RunCompleted)
		assert.Equal(t, 1, snap.RunFailed)
		assert.Equal(t, 1, snap.RunRunning)
		assert.Equal(t, 0.5, snap.RunFailRate)
		assert.Equal(t, 2*time.Second, snap.AvgLatency)
		assert.Equal(t, 2, snap.DeadLetterDepth)
		assert.Equal(t, 24, snap.LookbackHours)
	})

	t.Run("sums pipeline counters", func(t *testing.T) {
		t.Parallel()
		st := &fakeStore{
			sessions: []model.WorkflowRun{
				run(model.RunStatusCompleted, time.Hour, model.RunMetadata{FallbackCount: 2, Blocked: 1, Corrections: 3, BannedWarnings: 1}),
				run(model.RunStatusCompleted, time.Hour, model.RunMetadata{FallbackCount: 1}),
			},
		}
		c := NewCollector(st).WithNow(func() time.Time { return now })

		snap, err := c.Collect(context.Background(), 24)
		require.NoError(t, err)

		assert.Equal(t, 3, snap.FallbackCalls)
		assert.Equal(t, 1, snap.BlockedOutputs)
		assert.Equal(t, 3, snap.Corrections)
		assert.Equal(t, 1, snap.BannedWarnings)
	})

	t.Run("empty store yields zero snapshot", func(t *testing.T) {
		t.Parallel()
		c := NewCollector(&fakeStore{}).WithNow(func() time.Time { return now })

		snap, err := c.Collect(context.Background(), 24)
		require.NoError(t, err)
		assert.Zero(t, snap.RunTotal)
		assert.Zero(t, snap.RunFailRate)
		assert.Zero(t, snap.AvgLatency)
	})
}
