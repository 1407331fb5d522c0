package learning

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-group/decision-cli/internal/model"
)

// memRepo is an in-memory Repository for tests.
type memRepo struct {
	rules    map[string]model.LearnedRule
	feedback []model.FeedbackRecord
	cases    []model.CaseRecord
	stats    map[string]model.RoleStats
}

func newMemRepo() *memRepo {
	return &memRepo{
		rules: make(map[string]model.LearnedRule),
		stats: make(map[string]model.RoleStats),
	}
}

func (m *memRepo) SaveFeedback(_ context.Context, rec model.FeedbackRecord) error {
	m.feedback = append(m.feedback, rec)
	return nil
}

func (m *memRepo) ListFeedback(_ context.Context) ([]model.FeedbackRecord, error) {
	return m.feedback, nil
}

func (m *memRepo) SaveRule(_ context.Context, rule model.LearnedRule) error {
	m.rules[rule.ID] = rule
	return nil
}

func (m *memRepo) ListRules(_ context.Context) ([]model.LearnedRule, error) {
	out := make([]model.LearnedRule, 0, len(m.rules))
	for _, r := range m.rules {
		out = append(out, r)
	}
	return out, nil
}

func (m *memRepo) DeleteRule(_ context.Context, id string) error {
	delete(m.rules, id)
	return nil
}

func (m *memRepo) SaveCase(_ context.Context, rec model.CaseRecord) error {
	m.cases = append(m.cases, rec)
	return nil
}

func (m *memRepo) ListCases(_ context.Context) ([]model.CaseRecord, error) {
	return m.cases, nil
}

func (m *memRepo) SaveRoleStats(_ context.Context, stats model.RoleStats) error {
	m.stats[stats.RoleID] = stats
	return nil
}

func (m *memRepo) ListRoleStats(_ context.Context) ([]model.RoleStats, error) {
	out := make([]model.RoleStats, 0, len(m.stats))
	for _, s := range m.stats {
		out = append(out, s)
	}
	return out, nil
}

func feedbackFor(role string, helpful bool, rating int) model.FeedbackRecord {
	return model.FeedbackRecord{
		DecisionID:  "d1",
		Rating:      rating,
		Adopted:     rating >= 4,
		RoleHelpful: map[string]bool{role: helpful},
	}
}

func TestStore_RoleWeight(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("neutral below minimum samples", func(t *testing.T) {
		t.Parallel()
		s := NewStore(Config{}, newMemRepo())
		s.RecordFeedback(ctx, feedbackFor("market-analyst", true, 5))
		s.RecordFeedback(ctx, feedbackFor("market-analyst", true, 5))
		assert.Equal(t, 1.0, s.RoleWeight("market-analyst"))
	})

	t.Run("high accuracy lifts weight to 1.2", func(t *testing.T) {
		t.Parallel()
		s := NewStore(Config{}, newMemRepo())
		for i := 0; i < 3; i++ {
			s.RecordFeedback(ctx, feedbackFor("market-analyst", true, 5))
		}
		assert.Equal(t, 1.2, s.RoleWeight("market-analyst"))
	})

	t.Run("weight never decreases as consistent praise accumulates", func(t *testing.T) {
		t.Parallel()
		s := NewStore(Config{}, newMemRepo())
		prev := s.RoleWeight("market-analyst")
		for i := 0; i < 6; i++ {
			s.RecordFeedback(ctx, feedbackFor("market-analyst", true, 5))
			w := s.RoleWeight("market-analyst")
			assert.GreaterOrEqual(t, w, prev)
			assert.LessOrEqual(t, w, 1.2)
			prev = w
		}
		assert.Equal(t, 1.2, prev)
	})

	t.Run("low accuracy floors weight at 0.7", func(t *testing.T) {
		t.Parallel()
		s := NewStore(Config{}, newMemRepo())
		for i := 0; i < 4; i++ {
			s.RecordFeedback(ctx, feedbackFor("risk-assessor", false, 2))
		}
		assert.Equal(t, 0.7, s.RoleWeight("risk-assessor"))
	})

	t.Run("unknown role is neutral", func(t *testing.T) {
		t.Parallel()
		s := NewStore(Config{}, newMemRepo())
		assert.Equal(t, 1.0, s.RoleWeight("nobody"))
	})
}

func TestStore_Rules(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("correction text becomes a rule", func(t *testing.T) {
		t.Parallel()
		repo := newMemRepo()
		s := NewStore(Config{}, repo)
		rec := feedbackFor("market-analyst", false, 2)
		rec.Correction = "预算不能超过10万元，给出的方案太激进"
		s.RecordFeedback(ctx, rec)

		require.Len(t, repo.rules, 1)
		for _, r := range repo.rules {
			assert.Equal(t, "constraint", r.Category)
			assert.Contains(t, r.Text, "预算")
		}
	})

	t.Run("similar correction reinforces instead of duplicating", func(t *testing.T) {
		t.Parallel()
		repo := newMemRepo()
		s := NewStore(Config{}, repo)

		rec := feedbackFor("market-analyst", false, 2)
		rec.Correction = "预算不能超过10万元"
		s.RecordFeedback(ctx, rec)
		s.RecordFeedback(ctx, rec)

		require.Len(t, repo.rules, 1)
		for _, r := range repo.rules {
			assert.Equal(t, 1, r.UsageCount)
			assert.Equal(t, 80.0, r.Confidence)
		}
	})

	t.Run("rule cap evicts the weakest", func(t *testing.T) {
		t.Parallel()
		repo := newMemRepo()
		s := NewStore(Config{MaxRules: 2}, repo)

		for _, correction := range []string{
			"预算不能超过10万元",
			"不要选择人流量低的地段",
			"必须办理食品经营许可证",
		} {
			rec := feedbackFor("market-analyst", false, 2)
			rec.Correction = correction
			s.RecordFeedback(ctx, rec)
		}

		assert.Len(t, repo.rules, 2)
	})
}

func TestStore_OptimizePrompt(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("appends learned rules and similar cases", func(t *testing.T) {
		t.Parallel()
		s := NewStore(Config{}, newMemRepo())
		rec := feedbackFor("market-analyst", false, 2)
		rec.Correction = "预算不能超过10万元"
		s.RecordFeedback(ctx, rec)

		prompt := s.OptimizePrompt(ctx, "market-analyst", "你是市场分析师，分析预算约束下的方案")
		assert.Contains(t, prompt, "【历史经验规则】")
		assert.Contains(t, prompt, "预算不能超过10万元")
	})

	t.Run("empty store returns base prompt unchanged", func(t *testing.T) {
		t.Parallel()
		s := NewStore(Config{}, newMemRepo())
		base := "你是市场分析师"
		assert.Equal(t, base, s.OptimizePrompt(ctx, "market-analyst", base))
	})
}

func TestStore_DecayAndReport(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("effective confidence decays with disuse", func(t *testing.T) {
		t.Parallel()
		now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
		s := NewStore(Config{}, newMemRepo()).WithNow(func() time.Time { return now })

		rule := model.LearnedRule{Confidence: 70, LastUsed: now.AddDate(0, 0, -60)}
		assert.InDelta(t, 66, s.effectiveConfidence(rule), 0.1)
	})

	t.Run("feedback report aggregates", func(t *testing.T) {
		t.Parallel()
		s := NewStore(Config{}, newMemRepo())
		s.RecordFeedback(ctx, feedbackFor("market-analyst", true, 5))
		s.RecordFeedback(ctx, feedbackFor("market-analyst", false, 3))

		rep := s.FeedbackReport()
		assert.Equal(t, 2, rep.TotalFeedback)
		assert.Equal(t, 0.5, rep.AdoptionRate)
		assert.Equal(t, 4.0, rep.AverageRating)
		require.Len(t, rep.RoleStats, 1)
	})
}
