package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/meridian-group/decision-cli/internal/constraint"
	"github.com/meridian-group/decision-cli/internal/fallback"
	"github.com/meridian-group/decision-cli/internal/learning"
	"github.com/meridian-group/decision-cli/internal/model"
	"github.com/meridian-group/decision-cli/internal/orchestrator"
	"github.com/meridian-group/decision-cli/internal/provider"
	"github.com/meridian-group/decision-cli/internal/report"
	"github.com/meridian-group/decision-cli/internal/resilience"
	"github.com/meridian-group/decision-cli/internal/search"
	"github.com/meridian-group/decision-cli/internal/store"
	"github.com/meridian-group/decision-cli/internal/verify"
	"github.com/meridian-group/decision-cli/pkg/anthropic"
	"github.com/meridian-group/decision-cli/pkg/jina"
	"github.com/meridian-group/decision-cli/pkg/openaichat"
	"github.com/meridian-group/decision-cli/pkg/perplexity"
	"github.com/meridian-group/decision-cli/pkg/serper"
)

// env holds the wired pipeline dependencies shared by all commands.
type env struct {
	st         store.Store
	learner    *learning.Store
	registry   *provider.Registry
	searcher   *search.Aggregator
	classifier *verify.Classifier
	triang     *verify.Triangulator
	detector   *verify.Detector
	enforcer   *constraint.Enforcer
	rewriter   *constraint.Enforcer
	candidates []model.ModelCandidate
}

// initEnv opens the store and wires every pipeline component from config.
func initEnv(ctx context.Context) (*env, error) {
	st, err := openStore(ctx)
	if err != nil {
		return nil, err
	}

	learner := learning.NewStore(learning.Config{
		MaxRules:         cfg.Learning.MaxRules,
		DecayPerMonth:    cfg.Learning.DecayPerMonth,
		TopRules:         cfg.Learning.TopRules,
		SimilarCases:     cfg.Learning.SimilarCases,
		WeightFloorBelow: cfg.Learning.WeightFloorBelow,
		WeightBoostAbove: cfg.Learning.WeightBoostAbove,
	}, st)
	learner.Open(ctx)

	registry, candidates := buildProviders()

	tiers := verify.DefaultTierTable()
	if cfg.Verify.TiersFile != "" {
		tiers, err = verify.LoadTierTable(cfg.Verify.TiersFile)
		if err != nil {
			return nil, err
		}
	}
	classifier := verify.NewClassifier(tiers)
	staleness := verify.NewStalenessChecker(cfg.Verify.MaxAgeDays)

	rules := constraint.DefaultRuleSet(cfg.Constraint.Budget, cfg.Constraint.BudgetUnit, cfg.Constraint.MaxROI, cfg.Constraint.Banlist)
	if cfg.Constraint.RulesFile != "" {
		rules, err = constraint.LoadRuleSet(cfg.Constraint.RulesFile, rules)
		if err != nil {
			return nil, err
		}
	}
	policy := constraint.CorrectionPolicy(cfg.Constraint.CorrectionPolicy)

	return &env{
		st:         st,
		learner:    learner,
		registry:   registry,
		searcher:   buildSearch(),
		classifier: classifier,
		triang:     verify.NewTriangulator(classifier, staleness, cfg.Verify.ValueTolerance),
		detector:   verify.NewDetector(nil),
		enforcer:   constraint.NewEnforcer(rules, policy, cfg.Constraint.BudgetUnit),
		rewriter:   constraint.NewEnforcer(rules, constraint.PolicyRewrite, cfg.Constraint.BudgetUnit),
		candidates: candidates,
	}, nil
}

func (e *env) Close() {
	if err := e.st.Close(); err != nil {
		zap.L().Warn("store close failed", zap.Error(err))
	}
}

// roles returns the panel for a run mode, honoring a custom roles file.
func (e *env) roles(mode model.RunMode) ([]model.Role, error) {
	if cfg.Roles.File != "" {
		return orchestrator.LoadRoles(cfg.Roles.File, e.candidates)
	}
	return orchestrator.Panel(mode, e.candidates, cfg.Roles.MaxTokens), nil
}

// orchestratorFor wires a fresh orchestrator (and its per-run fallback
// caller) for one run.
func (e *env) orchestratorFor(mode model.RunMode, progress func(model.ProgressEvent)) (*orchestrator.Orchestrator, error) {
	roles, err := e.roles(mode)
	if err != nil {
		return nil, err
	}

	caller := fallback.NewCaller(e.registry,
		fallback.WithTimeout(time.Duration(cfg.Roles.CallTimeoutSecs)*time.Second),
		fallback.WithDeadLetterSink(func(dl resilience.DeadLetter) {
			if err := e.st.SaveDeadLetter(context.Background(), dl); err != nil {
				zap.L().Warn("persist dead letter failed", zap.Error(err))
			}
		}),
	)

	opts := []orchestrator.Option{
		orchestrator.WithTopK(cfg.Search.TopK),
	}
	if cfg.Roles.UserProfile != "" {
		opts = append(opts, orchestrator.WithUserProfile(cfg.Roles.UserProfile))
	}
	if progress != nil {
		opts = append(opts, orchestrator.WithProgress(progress))
	}

	return orchestrator.New(orchestrator.Deps{
		Roles:        roles,
		Caller:       caller,
		Search:       e.searcher,
		Enforcer:     e.enforcer,
		Rewriter:     e.rewriter,
		Classifier:   e.classifier,
		Triangulator: e.triang,
		Detector:     e.detector,
		Learner:      e.learner,
		Store:        e.st,
		Assembler:    report.NewAssembler(roles),
	}, opts...)
}

func openStore(ctx context.Context) (store.Store, error) {
	var (
		st  store.Store
		err error
	)
	switch cfg.Store.Driver {
	case "postgres":
		st, err = store.NewPostgres(ctx, cfg.Store.DatabaseURL)
	case "sqlite", "":
		st, err = store.NewSQLite(cfg.Store.SQLitePath)
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, err
	}
	return st, nil
}

// buildProviders registers every configured completion provider and returns
// the default fallback chain in preference order. Providers without
// credentials are still registered so the chain skips them at zero cost.
func buildProviders() (*provider.Registry, []model.ModelCandidate) {
	registry := provider.NewRegistry()

	registry.Register(
		provider.NewAnthropic(anthropic.NewClient(cfg.Anthropic.Key), cfg.Anthropic.DefaultModel),
		cfg.Anthropic.Key != "",
	)
	registry.Register(
		provider.NewChat("deepseek",
			openaichat.NewClient(cfg.DeepSeek.Key, openaichat.WithBaseURL(cfg.DeepSeek.BaseURL), openaichat.WithModel(cfg.DeepSeek.Model)),
			cfg.DeepSeek.Model),
		cfg.DeepSeek.Key != "",
	)
	registry.Register(
		provider.NewChat("openai",
			openaichat.NewClient(cfg.OpenAI.Key, openaichat.WithBaseURL(cfg.OpenAI.BaseURL), openaichat.WithModel(cfg.OpenAI.Model)),
			cfg.OpenAI.Model),
		cfg.OpenAI.Key != "",
	)
	registry.Register(
		provider.NewPerplexity(
			perplexity.NewClient(cfg.Perplexity.Key, perplexity.WithBaseURL(cfg.Perplexity.BaseURL), perplexity.WithModel(cfg.Perplexity.Model)),
			cfg.Perplexity.Model),
		cfg.Perplexity.Key != "",
	)

	candidates := []model.ModelCandidate{
		{Provider: "anthropic", Model: cfg.Anthropic.DefaultModel},
		{Provider: "deepseek", Model: cfg.DeepSeek.Model},
		{Provider: "openai", Model: cfg.OpenAI.Model},
		{Provider: "perplexity", Model: cfg.Perplexity.Model},
	}
	return registry, candidates
}

// buildSearch wires the search aggregator from whichever gateways have
// credentials. No gateways means no search context, not an error.
func buildSearch() *search.Aggregator {
	var gateways []search.Gateway
	if cfg.Search.SerperKey != "" {
		gateways = append(gateways, search.NewSerperGateway(serper.NewClient(cfg.Search.SerperKey)))
	}
	if cfg.Search.JinaKey != "" {
		gateways = append(gateways, search.NewJinaGateway(jina.NewClient(cfg.Search.JinaKey, jina.WithBaseURL(cfg.Search.JinaBaseURL))))
	}
	if len(gateways) == 0 {
		zap.L().Warn("no search gateways configured, running without search context")
		return nil
	}
	return search.NewAggregator(search.Config{
		Timeout:       time.Duration(cfg.Search.TimeoutSecs) * time.Second,
		RatePerSecond: cfg.Search.RatePerSecond,
		RateBurst:     cfg.Search.RateBurst,
	}, gateways...)
}
