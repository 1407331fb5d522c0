package verify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-group/decision-cli/internal/model"
)

var fixedNow = time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

func newTestChecker() *StalenessChecker {
	return NewStalenessChecker(nil).WithNow(func() time.Time { return fixedNow })
}

func TestStalenessChecker_MaxAge(t *testing.T) {
	t.Parallel()

	c := newTestChecker()

	assert.Equal(t, 7*24*time.Hour, c.MaxAge("price"))
	assert.Equal(t, 180*24*time.Hour, c.MaxAge("policy"))

	t.Run("unknown type gets most conservative window", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, 7*24*time.Hour, c.MaxAge("unheard-of"))
	})
}

func TestStalenessChecker_CheckDate(t *testing.T) {
	t.Parallel()

	c := newTestChecker()

	t.Run("fresh data is normal", func(t *testing.T) {
		t.Parallel()
		check := c.CheckDate("market", fixedNow.AddDate(0, 0, -10))
		assert.True(t, check.Valid)
		assert.Equal(t, model.UrgencyNormal, check.Urgency)
	})

	t.Run("age beyond 80 percent warns", func(t *testing.T) {
		t.Parallel()
		check := c.CheckDate("market", fixedNow.AddDate(0, 0, -27))
		assert.True(t, check.Valid)
		assert.Equal(t, model.UrgencyWarning, check.Urgency)
	})

	t.Run("expired data is critical", func(t *testing.T) {
		t.Parallel()
		check := c.CheckDate("market", fixedNow.AddDate(0, 0, -45))
		assert.False(t, check.Valid)
		assert.Equal(t, model.UrgencyCritical, check.Urgency)
	})
}

func TestStalenessChecker_Check(t *testing.T) {
	t.Parallel()

	c := newTestChecker()

	t.Run("dated text evaluated", func(t *testing.T) {
		t.Parallel()
		check, ok := c.Check("policy", "新政策于2026年4月发布，补贴上限提高", 0)
		require.True(t, ok)
		assert.True(t, check.Valid)
	})

	t.Run("undated text reports not ok", func(t *testing.T) {
		t.Parallel()
		_, ok := c.Check("policy", "补贴政策长期有效", 0)
		assert.False(t, ok)
	})
}

func TestRecencyScore(t *testing.T) {
	t.Parallel()

	c := newTestChecker()

	t.Run("fresh scores 100", func(t *testing.T) {
		t.Parallel()
		check := c.CheckDate("market", fixedNow)
		assert.InDelta(t, 100, RecencyScore(check, true), 1)
	})

	t.Run("at max age scores 40", func(t *testing.T) {
		t.Parallel()
		check := c.CheckDate("market", fixedNow.AddDate(0, 0, -30))
		assert.InDelta(t, 40, RecencyScore(check, true), 1)
	})

	t.Run("at twice max age scores 0", func(t *testing.T) {
		t.Parallel()
		check := c.CheckDate("market", fixedNow.AddDate(0, 0, -60))
		assert.InDelta(t, 0, RecencyScore(check, true), 1)
	})

	t.Run("undated scores neutral 50", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, 50.0, RecencyScore(model.StalenessCheck{}, false))
	})
}
