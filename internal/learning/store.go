package learning

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/meridian-group/decision-cli/internal/model"
	"github.com/meridian-group/decision-cli/internal/verify"
)

const (
	weightLow     = 0.7
	weightHigh    = 1.2
	weightNeutral = 1.0
	minSamples    = 3
)

// Config tunes the learning store.
type Config struct {
	MaxRules         int     // cap on stored rules; lowest effective confidence evicted first
	DecayPerMonth    float64 // confidence points lost per 30 days of disuse
	TopRules         int     // rules appended by OptimizePrompt
	SimilarCases     int     // historical cases appended by OptimizePrompt
	WeightFloorBelow float64 // accuracy below this (≥3 samples) floors the weight at 0.7
	WeightBoostAbove float64 // accuracy above this (≥3 samples) lifts the weight to 1.2
}

func (c Config) withDefaults() Config {
	if c.MaxRules <= 0 {
		c.MaxRules = 200
	}
	if c.DecayPerMonth <= 0 {
		c.DecayPerMonth = 2
	}
	if c.TopRules <= 0 {
		c.TopRules = 5
	}
	if c.SimilarCases <= 0 {
		c.SimilarCases = 2
	}
	if c.WeightFloorBelow <= 0 {
		c.WeightFloorBelow = 0.5
	}
	if c.WeightBoostAbove <= 0 {
		c.WeightBoostAbove = 0.8
	}
	return c
}

// Store is the learning and feedback engine. State is held in memory and
// written through the injected repository; repository failures degrade to the
// in-memory view and are never fatal.
type Store struct {
	cfg  Config
	repo Repository
	now  func() time.Time

	mu        sync.Mutex
	rules     []model.LearnedRule
	cases     []model.CaseRecord
	roleStats map[string]model.RoleStats
	feedback  int // total records seen
	adopted   int
	ratingSum int
}

// NewStore creates a learning store over a repository.
func NewStore(cfg Config, repo Repository) *Store {
	return &Store{
		cfg:       cfg.withDefaults(),
		repo:      repo,
		now:       time.Now,
		roleStats: make(map[string]model.RoleStats),
	}
}

// WithNow fixes the clock for testing.
func (s *Store) WithNow(now func() time.Time) *Store {
	s.now = now
	return s
}

// Open loads persisted state. Read failures leave the corresponding slice
// empty and are logged, matching the degrade-to-default persistence policy.
func (s *Store) Open(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rules, err := s.repo.ListRules(ctx); err != nil {
		zap.L().Warn("learning: load rules failed, starting empty", zap.Error(err))
	} else {
		s.rules = rules
	}
	if cases, err := s.repo.ListCases(ctx); err != nil {
		zap.L().Warn("learning: load cases failed, starting empty", zap.Error(err))
	} else {
		s.cases = cases
	}
	if stats, err := s.repo.ListRoleStats(ctx); err != nil {
		zap.L().Warn("learning: load role stats failed, starting empty", zap.Error(err))
	} else {
		for _, st := range stats {
			s.roleStats[st.RoleID] = st
		}
	}
	if recs, err := s.repo.ListFeedback(ctx); err != nil {
		zap.L().Warn("learning: load feedback failed, starting empty", zap.Error(err))
	} else {
		for _, r := range recs {
			s.feedback++
			s.ratingSum += r.Rating
			if r.Adopted {
				s.adopted++
			}
		}
	}
}

// RecordFeedback ingests one feedback record: updates accuracy counters,
// recomputes role weights, extracts a learned rule from the free-text
// correction, and appends a tagged case record. Writes are append-then-persist.
func (s *Store) RecordFeedback(ctx context.Context, rec model.FeedbackRecord) {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	rec.CreatedAt = s.now()

	s.mu.Lock()
	s.feedback++
	s.ratingSum += rec.Rating
	if rec.Adopted {
		s.adopted++
	}

	for roleID, helpful := range rec.RoleHelpful {
		st := s.roleStats[roleID]
		st.RoleID = roleID
		st.Samples++
		if helpful {
			st.Helpful++
		}
		st.Weight = s.weightFor(st)
		s.roleStats[roleID] = st
	}

	cs := model.CaseRecord{
		ID:         uuid.New().String(),
		DecisionID: rec.DecisionID,
		Summary:    rec.Correction,
		Rating:     rec.Rating,
		Adopted:    rec.Adopted,
		Tags:       caseTags(rec),
		CreatedAt:  rec.CreatedAt,
	}
	s.cases = append(s.cases, cs)
	statsToSave := make([]model.RoleStats, 0, len(rec.RoleHelpful))
	for roleID := range rec.RoleHelpful {
		statsToSave = append(statsToSave, s.roleStats[roleID])
	}
	s.mu.Unlock()

	if rule, ok := ExtractRule(rec.Correction); ok {
		s.addRule(ctx, rule)
	}

	// Persist outside the lock; failures degrade, they never propagate.
	if err := s.repo.SaveFeedback(ctx, rec); err != nil {
		zap.L().Warn("learning: persist feedback failed", zap.Error(err))
	}
	if err := s.repo.SaveCase(ctx, cs); err != nil {
		zap.L().Warn("learning: persist case failed", zap.Error(err))
	}
	for _, st := range statsToSave {
		if err := s.repo.SaveRoleStats(ctx, st); err != nil {
			zap.L().Warn("learning: persist role stats failed", zap.Error(err))
		}
	}
}

// weightFor derives the role-weight multiplier from accuracy: 0.7 once
// accuracy drops below the floor over ≥3 samples, 1.2 once it exceeds the
// boost threshold.
func (s *Store) weightFor(st model.RoleStats) float64 {
	if st.Samples < minSamples {
		return weightNeutral
	}
	acc := st.Accuracy()
	switch {
	case acc < s.cfg.WeightFloorBelow:
		return weightLow
	case acc > s.cfg.WeightBoostAbove:
		return weightHigh
	default:
		return weightNeutral
	}
}

// RoleWeight returns the current multiplier for a role (1.0 when unknown).
func (s *Store) RoleWeight(roleID string) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.roleStats[roleID]; ok && st.Weight != 0 {
		return st.Weight
	}
	return weightNeutral
}

// addRule inserts or reinforces a learned rule, evicting the weakest rule
// when the cap is reached.
func (s *Store) addRule(ctx context.Context, rule model.LearnedRule) {
	s.mu.Lock()

	for i := range s.rules {
		if verify.Similarity(s.rules[i].Text, rule.Text) > 0.7 {
			s.rules[i].Confidence = min(100, s.rules[i].Confidence+10)
			s.rules[i].UsageCount++
			s.rules[i].LastUsed = s.now()
			reinforced := s.rules[i]
			s.mu.Unlock()
			if err := s.repo.SaveRule(ctx, reinforced); err != nil {
				zap.L().Warn("learning: persist rule failed", zap.Error(err))
			}
			return
		}
	}

	rule.ID = uuid.New().String()
	rule.CreatedAt = s.now()
	rule.LastUsed = s.now()
	s.rules = append(s.rules, rule)

	var evicted *model.LearnedRule
	if len(s.rules) > s.cfg.MaxRules {
		sort.Slice(s.rules, func(i, j int) bool {
			return s.effectiveConfidence(s.rules[i]) > s.effectiveConfidence(s.rules[j])
		})
		last := s.rules[len(s.rules)-1]
		evicted = &last
		s.rules = s.rules[:len(s.rules)-1]
	}
	s.mu.Unlock()

	if err := s.repo.SaveRule(ctx, rule); err != nil {
		zap.L().Warn("learning: persist rule failed", zap.Error(err))
	}
	if evicted != nil {
		if err := s.repo.DeleteRule(ctx, evicted.ID); err != nil {
			zap.L().Warn("learning: evict rule failed", zap.Error(err))
		}
	}
}

// effectiveConfidence applies disuse decay: DecayPerMonth points per 30 days
// since the rule was last used.
func (s *Store) effectiveConfidence(r model.LearnedRule) float64 {
	months := s.now().Sub(r.LastUsed).Hours() / (24 * 30)
	if months < 0 {
		months = 0
	}
	c := r.Confidence - s.cfg.DecayPerMonth*months
	if c < 0 {
		return 0
	}
	return c
}

// OptimizePrompt augments a role's base prompt with the top learned rules and
// the most similar historical cases, and marks the used rules.
func (s *Store) OptimizePrompt(ctx context.Context, roleID, basePrompt string) string {
	s.mu.Lock()

	ranked := make([]model.LearnedRule, len(s.rules))
	copy(ranked, s.rules)
	sort.Slice(ranked, func(i, j int) bool {
		return s.effectiveConfidence(ranked[i]) > s.effectiveConfidence(ranked[j])
	})
	if len(ranked) > s.cfg.TopRules {
		ranked = ranked[:s.cfg.TopRules]
	}

	type scoredCase struct {
		c     model.CaseRecord
		score float64
	}
	var scored []scoredCase
	for _, c := range s.cases {
		if c.Summary == "" {
			continue
		}
		if sim := verify.Similarity(c.Summary, basePrompt); sim > 0 {
			scored = append(scored, scoredCase{c, sim})
		}
	}
	sort.Slice(scored, func(i, j int) bool { return scored[i].score > scored[j].score })
	if len(scored) > s.cfg.SimilarCases {
		scored = scored[:s.cfg.SimilarCases]
	}

	var used []model.LearnedRule
	for _, r := range ranked {
		for i := range s.rules {
			if s.rules[i].ID == r.ID {
				s.rules[i].UsageCount++
				s.rules[i].LastUsed = s.now()
				used = append(used, s.rules[i])
			}
		}
	}
	s.mu.Unlock()

	for _, r := range used {
		if err := s.repo.SaveRule(ctx, r); err != nil {
			zap.L().Warn("learning: persist rule usage failed", zap.Error(err))
		}
	}

	if len(ranked) == 0 && len(scored) == 0 {
		return basePrompt
	}

	zap.L().Debug("augmented prompt",
		zap.String("role", roleID),
		zap.Int("rules", len(ranked)),
		zap.Int("cases", len(scored)),
	)

	var b strings.Builder
	b.WriteString(basePrompt)
	if len(ranked) > 0 {
		b.WriteString("\n\n【历史经验规则】\n")
		for _, r := range ranked {
			fmt.Fprintf(&b, "- %s\n", r.Text)
		}
	}
	if len(scored) > 0 {
		b.WriteString("\n【相似历史案例】\n")
		for _, sc := range scored {
			fmt.Fprintf(&b, "- (评分%d/5) %s\n", sc.c.Rating, sc.c.Summary)
		}
	}
	return b.String()
}

// Report summarizes accumulated feedback.
type Report struct {
	TotalFeedback int               `json:"total_feedback"`
	AdoptionRate  float64           `json:"adoption_rate"`
	AverageRating float64           `json:"average_rating"`
	RoleStats     []model.RoleStats `json:"role_stats"`
	RuleCount     int               `json:"rule_count"`
}

// FeedbackReport returns the aggregate learning report.
func (s *Store) FeedbackReport() Report {
	s.mu.Lock()
	defer s.mu.Unlock()

	rep := Report{
		TotalFeedback: s.feedback,
		RuleCount:     len(s.rules),
	}
	if s.feedback > 0 {
		rep.AdoptionRate = float64(s.adopted) / float64(s.feedback)
		rep.AverageRating = float64(s.ratingSum) / float64(s.feedback)
	}
	for _, st := range s.roleStats {
		rep.RoleStats = append(rep.RoleStats, st)
	}
	sort.Slice(rep.RoleStats, func(i, j int) bool {
		return rep.RoleStats[i].RoleID < rep.RoleStats[j].RoleID
	})
	return rep
}

func caseTags(rec model.FeedbackRecord) []string {
	var tags []string
	if rec.Adopted {
		tags = append(tags, "adopted")
	}
	if rec.Rating >= 4 {
		tags = append(tags, "positive")
	} else if rec.Rating <= 2 {
		tags = append(tags, "negative")
	}
	if rec.Correction != "" {
		tags = append(tags, "corrected")
	}
	return tags
}
