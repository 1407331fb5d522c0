// Package orchestrator runs the decision pipeline: topic resolution, the
// role panel with provider fallback, constraint enforcement, claim
// verification and report assembly, in that order.
package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/meridian-group/decision-cli/internal/constraint"
	"github.com/meridian-group/decision-cli/internal/fallback"
	"github.com/meridian-group/decision-cli/internal/learning"
	"github.com/meridian-group/decision-cli/internal/model"
	"github.com/meridian-group/decision-cli/internal/search"
	"github.com/meridian-group/decision-cli/internal/store"
	"github.com/meridian-group/decision-cli/internal/verify"
)

const maxClaimsPerRole = 5

// Assembler renders a completed outcome into the final report body.
type Assembler interface {
	Assemble(o *Outcome) string
}

// Deps carries the pipeline's collaborators. Caller and Enforcer are
// required; everything else degrades when nil (no search context, no
// learning augmentation, no persistence, no report body).
type Deps struct {
	Roles        []model.Role
	Caller       *fallback.Caller
	Search       *search.Aggregator
	Enforcer     *constraint.Enforcer
	Rewriter     *constraint.Enforcer // rewrite-policy fallback after a failed regeneration
	Classifier   *verify.Classifier
	Triangulator *verify.Triangulator
	Detector     *verify.Detector
	Learner      *learning.Store
	Store        store.Store
	Assembler    Assembler
}

// Outcome bundles a finished run with its verification trace.
type Outcome struct {
	Run         *model.WorkflowRun `json:"run"`
	Topics      []Topic            `json:"topics"`
	Claims      []model.Claim      `json:"claims,omitempty"`
	Findings    []model.Finding    `json:"findings,omitempty"`
	Consistency float64            `json:"consistency"` // 0-100
	Weights     map[string]float64 `json:"weights,omitempty"`
}

// Orchestrator executes one run at a time per call; the struct itself is
// safe for concurrent runs.
type Orchestrator struct {
	deps        Deps
	topK        int
	userProfile string
	progress    func(model.ProgressEvent)
	now         func() time.Time
}

// Option configures the orchestrator.
type Option func(*Orchestrator)

// WithTopK sets how many search results feed each topic's context.
func WithTopK(k int) Option {
	return func(o *Orchestrator) {
		if k > 0 {
			o.topK = k
		}
	}
}

// WithUserProfile attaches a standing user profile to every role context.
func WithUserProfile(profile string) Option {
	return func(o *Orchestrator) { o.userProfile = profile }
}

// WithProgress registers a progress event sink.
func WithProgress(fn func(model.ProgressEvent)) Option {
	return func(o *Orchestrator) { o.progress = fn }
}

// New builds an orchestrator over its dependencies.
func New(deps Deps, opts ...Option) (*Orchestrator, error) {
	if deps.Caller == nil {
		return nil, eris.New("orchestrator: fallback caller is required")
	}
	if deps.Enforcer == nil {
		return nil, eris.New("orchestrator: constraint enforcer is required")
	}
	if len(deps.Roles) == 0 {
		return nil, eris.New("orchestrator: no roles configured")
	}
	o := &Orchestrator{
		deps: deps,
		topK: 5,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Run executes the full pipeline for one input. A panic in any stage fails
// the run and preserves the results accumulated so far; the error and the
// partial Outcome are both returned.
func (o *Orchestrator) Run(ctx context.Context, input string, mode model.RunMode) (outcome *Outcome, err error) {
	run := &model.WorkflowRun{
		ID:        uuid.New().String(),
		Input:     input,
		Mode:      mode,
		Status:    model.RunStatusPending,
		Results:   make(map[string]model.RoleResult),
		CreatedAt: o.now(),
	}
	outcome = &Outcome{Run: run, Weights: make(map[string]float64)}

	defer func() {
		if r := recover(); r != nil {
			err = eris.Errorf("orchestrator: run %s panicked: %v", run.ID, r)
			zap.L().Error("run panicked", zap.String("run", run.ID), zap.Any("panic", r))
			o.fail(ctx, run, err)
		}
	}()

	o.transition(ctx, run, model.RunStatusRunning)
	o.emit(run, 5, "resolving topics")

	topics := SplitTopics(input)
	outcome.Topics = topics
	batches, err := SortTopics(topics)
	if err != nil {
		o.fail(ctx, run, err)
		return outcome, err
	}

	start := o.now()
	topicOutputs := make(map[string]string)
	topicSources := make(map[string][]model.Source)
	var mu sync.Mutex

	done := 0
	for _, batch := range batches {
		g, gctx := errgroup.WithContext(ctx)
		for _, t := range batch {
			g.Go(func() error {
				return o.runTopic(gctx, run, t, len(topics) > 1, topicOutputs, topicSources, &mu)
			})
		}
		if werr := g.Wait(); werr != nil {
			o.fail(ctx, run, werr)
			return outcome, werr
		}
		done += len(batch)
		o.emit(run, 10+done*60/len(topics), fmt.Sprintf("topic batch %d/%d done", done, len(topics)))
	}

	if !anySuccess(run.Results) {
		err = eris.Errorf("orchestrator: run %s produced no successful role results", run.ID)
		o.fail(ctx, run, err)
		return outcome, err
	}

	o.emit(run, 75, "verifying claims")
	o.verifyRun(run, topics, topicSources, outcome)

	run.Metadata.TotalLatency = o.now().Sub(start)
	for _, res := range run.Results {
		if res.FallbackLevel > 0 {
			run.Metadata.FallbackCount++
		}
		run.Metadata.Corrections += len(res.Corrections)
		if res.Blocked {
			run.Metadata.Blocked++
		}
	}

	if o.deps.Learner != nil {
		for _, role := range o.deps.Roles {
			outcome.Weights[role.ID] = o.deps.Learner.RoleWeight(role.ID)
		}
	}

	o.emit(run, 90, "assembling report")
	if o.deps.Assembler != nil {
		run.Report = o.deps.Assembler.Assemble(outcome)
	}

	o.transition(ctx, run, model.RunStatusCompleted)
	o.persistCallLog(ctx)
	o.emit(run, 100, "completed")

	zap.L().Info("run completed",
		zap.String("run", run.ID),
		zap.String("mode", string(mode)),
		zap.Int("topics", len(topics)),
		zap.Duration("latency", run.Metadata.TotalLatency),
		zap.Int("fallbacks", run.Metadata.FallbackCount),
		zap.Int("blocked", run.Metadata.Blocked),
	)
	return outcome, nil
}

// runTopic runs the role panel sequentially for one topic. Roles see the
// outputs of earlier panel members and of dependency topics. A failed role
// records its error and the panel continues; only context cancellation
// aborts the topic.
func (o *Orchestrator) runTopic(ctx context.Context, run *model.WorkflowRun, t Topic, multiTopic bool, topicOutputs map[string]string, topicSources map[string][]model.Source, mu *sync.Mutex) error {
	var sources []model.Source
	if o.deps.Search != nil {
		found, err := o.deps.Search.TopK(ctx, t.Text, o.topK)
		if err != nil {
			zap.L().Warn("search context unavailable",
				zap.String("topic", t.ID), zap.Error(err))
		} else {
			sources = found
		}
	}
	o.countTiers(run, sources, mu)
	mu.Lock()
	topicSources[t.ID] = sources
	mu.Unlock()

	var prior []PriorOutput
	mu.Lock()
	for _, dep := range t.DependsOn {
		if out, ok := topicOutputs[dep]; ok {
			prior = append(prior, PriorOutput{TopicID: dep, RoleID: "synthesis", Content: out})
		}
	}
	mu.Unlock()

	var lastContent string
	for _, role := range o.deps.Roles {
		if ctx.Err() != nil {
			return eris.Wrap(ctx.Err(), "orchestrator: topic cancelled")
		}

		system := role.PromptTemplate
		var rules string
		if o.deps.Learner != nil {
			augmented := o.deps.Learner.OptimizePrompt(ctx, role.ID, role.PromptTemplate)
			if augmented != role.PromptTemplate {
				rules = strings.TrimPrefix(augmented, role.PromptTemplate)
			}
		}

		rctx := RoleContext{
			Version:     ContextVersion,
			RunID:       run.ID,
			Mode:        run.Mode,
			Topic:       t.Text,
			UserProfile: o.userProfile,
			Constraints: o.deps.Enforcer.PreCheck(t.Text),
			Rules:       strings.TrimSpace(rules),
			Sources:     sources,
			Prior:       prior,
		}

		key := role.ID
		if multiTopic {
			key = t.ID + "/" + role.ID
		}

		result := o.invokeRole(ctx, run.ID, role, system, rctx)
		result.RoleID = key

		mu.Lock()
		run.Results[key] = result
		mu.Unlock()

		if result.Success {
			prior = append(prior, PriorOutput{TopicID: t.ID, RoleID: role.ID, Content: result.Content})
			lastContent = result.Content
		}
	}

	mu.Lock()
	topicOutputs[t.ID] = lastContent
	mu.Unlock()
	return nil
}

// invokeRole runs one role through the fallback chain and the post-check.
// Under the regenerate policy a violating output earns exactly one
// re-invocation with corrective instructions; a second violation falls back
// to rewrite.
func (o *Orchestrator) invokeRole(ctx context.Context, runID string, role model.Role, system string, rctx RoleContext) model.RoleResult {
	result := model.RoleResult{RoleID: role.ID, Timestamp: o.now()}

	res, err := o.deps.Caller.Invoke(ctx, runID, role, system, rctx.UserMessage())
	if err != nil {
		result.Err = err.Error()
		zap.L().Warn("role invocation failed",
			zap.String("role", role.ID), zap.Error(err))
		return result
	}

	enf := o.deps.Enforcer.PostCheck(res.Content)
	if enf.Regenerate {
		enf = o.regenerate(ctx, runID, role, system, rctx, enf)
	}

	result.Success = true
	result.Content = enf.Content
	result.Model = res.Model
	result.Provider = res.Provider
	result.Latency = res.Latency
	result.FallbackLevel = res.FallbackLevel
	result.UsedFallback = res.FallbackLevel > 0
	result.Blocked = enf.Blocked
	result.Corrections = enf.Corrections
	return result
}

func (o *Orchestrator) regenerate(ctx context.Context, runID string, role model.Role, system string, rctx RoleContext, prev model.EnforcementResult) model.EnforcementResult {
	var b strings.Builder
	b.WriteString(rctx.UserMessage())
	b.WriteString("\n\n【重新生成】上一轮输出违反了以下硬性约束，请修正后重新给出完整分析：\n")
	for _, v := range prev.Violations {
		fmt.Fprintf(&b, "- %s\n", v.Message)
	}

	res, err := o.deps.Caller.Invoke(ctx, runID, role, system, b.String())
	if err != nil {
		zap.L().Warn("regeneration failed, keeping first output",
			zap.String("role", role.ID), zap.Error(err))
		return o.rewriter().PostCheck(prev.Content)
	}
	return o.rewriter().PostCheck(res.Content)
}

func (o *Orchestrator) rewriter() *constraint.Enforcer {
	if o.deps.Rewriter != nil {
		return o.deps.Rewriter
	}
	return o.deps.Enforcer
}

// verifyRun extracts numeric claims from every successful role output,
// triangulates them against the topic's sources, and scans the combined text
// for contradictions.
func (o *Orchestrator) verifyRun(run *model.WorkflowRun, topics []Topic, topicSources map[string][]model.Source, outcome *Outcome) {
	var combined strings.Builder
	for key, res := range run.Results {
		if !res.Success || res.Blocked {
			continue
		}
		combined.WriteString(res.Content)
		combined.WriteString("\n")

		if o.deps.Triangulator == nil {
			continue
		}
		claims := verify.ExtractClaims(res.Content)
		if len(claims) > maxClaimsPerRole {
			claims = claims[:maxClaimsPerRole]
		}
		topicID := topicOf(key, topics)
		for i := range claims {
			claims[i].Sources = topicSources[topicID]
			o.deps.Triangulator.Verify(&claims[i])
		}
		outcome.Claims = append(outcome.Claims, claims...)
	}

	if o.deps.Detector != nil {
		outcome.Findings = o.deps.Detector.Scan(combined.String())
		outcome.Consistency = verify.Score(outcome.Findings)
	} else {
		outcome.Consistency = 100
	}
}

// countTiers classifies topic sources into the run's tier counters and
// counts banned-source warnings.
func (o *Orchestrator) countTiers(run *model.WorkflowRun, sources []model.Source, mu *sync.Mutex) {
	if o.deps.Classifier == nil || len(sources) == 0 {
		return
	}
	mu.Lock()
	defer mu.Unlock()
	if run.Metadata.SourcesByTier == nil {
		run.Metadata.SourcesByTier = make(map[string]int)
	}
	for _, s := range sources {
		tier := o.deps.Classifier.Classify(s.URL)
		run.Metadata.SourcesByTier[string(tier)]++
		if tier == model.TierBanned {
			run.Metadata.BannedWarnings++
		}
	}
}

func (o *Orchestrator) transition(ctx context.Context, run *model.WorkflowRun, next model.RunStatus) {
	if !run.Status.CanTransition(next) {
		zap.L().Error("illegal status transition",
			zap.String("run", run.ID),
			zap.String("from", string(run.Status)),
			zap.String("to", string(next)),
		)
		return
	}
	run.Status = next
	run.UpdatedAt = o.now()
	o.persist(ctx, run)
}

func (o *Orchestrator) fail(ctx context.Context, run *model.WorkflowRun, err error) {
	run.Err = err.Error()
	if run.Status.CanTransition(model.RunStatusFailed) {
		run.Status = model.RunStatusFailed
	}
	run.UpdatedAt = o.now()
	o.persist(ctx, run)
	o.persistCallLog(ctx)
	o.emit(run, 100, "failed")
}

func (o *Orchestrator) persist(ctx context.Context, run *model.WorkflowRun) {
	if o.deps.Store == nil {
		return
	}
	if err := o.deps.Store.SaveSession(ctx, run); err != nil {
		zap.L().Warn("persist session failed", zap.String("run", run.ID), zap.Error(err))
	}
}

func (o *Orchestrator) persistCallLog(ctx context.Context) {
	if o.deps.Store == nil {
		return
	}
	if err := o.deps.Store.AppendCallLog(ctx, o.deps.Caller.Attempts()); err != nil {
		zap.L().Warn("persist call log failed", zap.Error(err))
	}
}

func (o *Orchestrator) emit(run *model.WorkflowRun, progress int, step string) {
	if o.progress == nil {
		return
	}
	if progress > 100 {
		progress = 100
	}
	o.progress(model.ProgressEvent{
		RunID:    run.ID,
		Progress: progress,
		Status:   string(run.Status),
		Step:     step,
	})
}

func topicOf(resultKey string, topics []Topic) string {
	if i := strings.Index(resultKey, "/"); i > 0 {
		return resultKey[:i]
	}
	if len(topics) > 0 {
		return topics[0].ID
	}
	return ""
}

func anySuccess(results map[string]model.RoleResult) bool {
	for _, r := range results {
		if r.Success {
			return true
		}
	}
	return false
}
