// Package search queries multiple independent search gateways and merges
// their results for role context enrichment and claim verification.
package search

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/meridian-group/decision-cli/internal/model"
	"github.com/meridian-group/decision-cli/internal/resilience"
)

// Gateway is one search provider.
type Gateway interface {
	Name() string
	Search(ctx context.Context, query string) ([]model.Source, error)
}

// Aggregator fans a query out to every configured gateway concurrently,
// deduplicates by normalized URL, and returns the merged result list. One
// failing gateway degrades the result set; all gateways failing is an error.
type Aggregator struct {
	gateways []Gateway
	limiters map[string]*rate.Limiter
	timeout  time.Duration
	retry    resilience.RetryConfig
	mu       sync.Mutex
}

// Config tunes the aggregator.
type Config struct {
	Timeout       time.Duration
	RatePerSecond float64
	RateBurst     int
}

// NewAggregator builds an aggregator over the given gateways.
func NewAggregator(cfg Config, gateways ...Gateway) *Aggregator {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = 2
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = 4
	}

	limiters := make(map[string]*rate.Limiter, len(gateways))
	for _, g := range gateways {
		limiters[g.Name()] = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.RateBurst)
	}

	retry := resilience.DefaultRetryConfig()
	retry.MaxAttempts = 2

	return &Aggregator{
		gateways: gateways,
		limiters: limiters,
		timeout:  cfg.Timeout,
		retry:    retry,
	}
}

// Search queries every gateway in parallel and merges the results. Results
// keep their first-seen order: all of gateway 0's hits, then unseen hits from
// gateway 1, and so on.
func (a *Aggregator) Search(ctx context.Context, query string) ([]model.Source, error) {
	if len(a.gateways) == 0 {
		return nil, eris.New("search: no gateways configured")
	}

	results := make([][]model.Source, len(a.gateways))
	g, gctx := errgroup.WithContext(ctx)

	for i, gw := range a.gateways {
		g.Go(func() error {
			if err := a.limiters[gw.Name()].Wait(gctx); err != nil {
				return nil // cancelled; treated as an empty result
			}

			callCtx, cancel := context.WithTimeout(gctx, a.timeout)
			defer cancel()

			sources, err := resilience.DoVal(callCtx, a.retry, func(ctx context.Context) ([]model.Source, error) {
				return gw.Search(ctx, query)
			})
			if err != nil {
				zap.L().Warn("search gateway failed",
					zap.String("gateway", gw.Name()),
					zap.Error(err),
				)
				return nil // degrade, don't fail the merge
			}
			for j := range sources {
				sources[j].Provider = gw.Name()
			}
			results[i] = sources
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "search: aggregate")
	}

	merged := merge(results)
	if len(merged) == 0 {
		return nil, eris.Errorf("search: all %d gateways returned nothing for %q", len(a.gateways), query)
	}
	return merged, nil
}

// TopK returns at most k merged results.
func (a *Aggregator) TopK(ctx context.Context, query string, k int) ([]model.Source, error) {
	sources, err := a.Search(ctx, query)
	if err != nil {
		return nil, err
	}
	if k > 0 && len(sources) > k {
		sources = sources[:k]
	}
	return sources, nil
}

func merge(results [][]model.Source) []model.Source {
	seen := make(map[string]struct{})
	var merged []model.Source
	for _, batch := range results {
		for _, s := range batch {
			key := normalizeURL(s.URL)
			if key == "" {
				continue
			}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			merged = append(merged, s)
		}
	}
	return merged
}

// normalizeURL canonicalizes for dedupe: scheme and www stripped, host
// lowercased, trailing slash and query dropped.
func normalizeURL(raw string) string {
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return strings.ToLower(raw)
	}
	host := strings.ToLower(strings.TrimPrefix(u.Hostname(), "www."))
	path := strings.TrimSuffix(u.Path, "/")
	return host + path
}
