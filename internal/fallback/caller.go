// Package fallback implements the provider fallback chain: an ordered list of
// (provider, model) candidates tried strictly in sequence for one role
// invocation until one succeeds.
package fallback

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/meridian-group/decision-cli/internal/model"
	"github.com/meridian-group/decision-cli/internal/provider"
	"github.com/meridian-group/decision-cli/internal/resilience"
)

// Result is the outcome of a successful chain invocation.
type Result struct {
	Content       string
	Model         string
	Provider      string
	Latency       time.Duration
	FallbackLevel int // index of the candidate that succeeded
}

// Caller tries a role's candidates in order. Attempts are strictly
// sequential: fallback is a deterministic retry chain, not a race, so cost
// stays bounded and provider preference is preserved.
type Caller struct {
	registry *provider.Registry
	timeout  time.Duration
	now      func() time.Time

	mu       sync.Mutex
	attempts []model.CallAttempt
	breakers map[string]*resilience.CircuitBreaker
	onDead   func(resilience.DeadLetter)
}

// Option configures the caller.
type Option func(*Caller)

// WithTimeout overrides the per-attempt timeout (default 30s).
func WithTimeout(d time.Duration) Option {
	return func(c *Caller) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithDeadLetterSink registers a callback invoked when a chain is exhausted.
func WithDeadLetterSink(fn func(resilience.DeadLetter)) Option {
	return func(c *Caller) {
		c.onDead = fn
	}
}

// NewCaller creates a fallback caller over the provider registry.
func NewCaller(registry *provider.Registry, opts ...Option) *Caller {
	c := &Caller{
		registry: registry,
		timeout:  provider.DefaultCallTimeout,
		now:      time.Now,
		breakers: make(map[string]*resilience.CircuitBreaker),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Invoke runs the fallback chain for one role call. Candidates are attempted
// in order; each attempt is bounded by its own timeout context. A missing
// credential or open circuit is an immediate zero-cost skip. The first
// success short-circuits. On exhaustion the last error is returned, wrapped.
func (c *Caller) Invoke(ctx context.Context, runID string, role model.Role, system, userMsg string) (*Result, error) {
	if len(role.Candidates) == 0 {
		return nil, eris.Errorf("fallback: role %s has no candidates", role.ID)
	}

	var lastErr error
	for i, cand := range role.Candidates {
		if ctx.Err() != nil {
			if lastErr == nil {
				lastErr = ctx.Err()
			}
			break
		}

		gateway := c.registry.Get(cand.Provider)
		if gateway == nil || !c.registry.HasCredential(cand.Provider) {
			c.logAttempt(model.CallAttempt{
				RoleID: role.ID, Provider: cand.Provider, Model: cand.Model,
				Skipped: true, Err: "missing credential", Timestamp: c.now(),
			})
			lastErr = eris.Errorf("fallback: no credential for provider %s", cand.Provider)
			continue
		}

		breaker := c.breakerFor(cand.Provider)
		if breaker.State() == resilience.CircuitOpen {
			c.logAttempt(model.CallAttempt{
				RoleID: role.ID, Provider: cand.Provider, Model: cand.Model,
				Skipped: true, Err: "circuit open", Timestamp: c.now(),
			})
			lastErr = resilience.ErrCircuitOpen
			continue
		}

		start := c.now()
		resp, err := c.attempt(ctx, breaker, gateway, provider.Request{
			Model:       cand.Model,
			System:      system,
			UserMessage: userMsg,
			Temperature: role.Temperature,
			MaxTokens:   role.MaxTokens,
		})
		latency := c.now().Sub(start)

		attempt := model.CallAttempt{
			RoleID: role.ID, Provider: cand.Provider, Model: cand.Model,
			Success: err == nil, Latency: latency, Timestamp: c.now(),
		}
		if err != nil {
			attempt.Err = err.Error()
		}
		c.logAttempt(attempt)

		zap.L().Info("fallback attempt",
			zap.String("role", role.ID),
			zap.String("provider", cand.Provider),
			zap.String("model", cand.Model),
			zap.Bool("success", err == nil),
			zap.Duration("latency", latency),
		)

		if err == nil {
			return &Result{
				Content:       resp.Content,
				Model:         resp.Model,
				Provider:      cand.Provider,
				Latency:       latency,
				FallbackLevel: i,
			}, nil
		}
		lastErr = err
	}

	if c.onDead != nil {
		c.onDead(resilience.DeadLetter{
			RunID:      runID,
			RoleID:     role.ID,
			Attempts:   len(role.Candidates),
			LastError:  lastErr.Error(),
			ErrorType:  resilience.ClassifyError(lastErr),
			OccurredAt: c.now(),
		})
	}

	return nil, eris.Wrapf(lastErr, "fallback: all %d candidates exhausted for role %s", len(role.Candidates), role.ID)
}

// attempt runs one candidate through its circuit breaker under a bounded
// context.
func (c *Caller) attempt(ctx context.Context, breaker *resilience.CircuitBreaker, gateway provider.Completer, req provider.Request) (*provider.Response, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return resilience.ExecuteVal(callCtx, breaker, func(ctx context.Context) (*provider.Response, error) {
		return gateway.Complete(ctx, req)
	})
}

func (c *Caller) breakerFor(providerName string) *resilience.CircuitBreaker {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.breakers[providerName]
	if !ok {
		b = resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig())
		c.breakers[providerName] = b
	}
	return b
}

func (c *Caller) logAttempt(a model.CallAttempt) {
	c.mu.Lock()
	c.attempts = append(c.attempts, a)
	c.mu.Unlock()
}

// Attempts returns a copy of the append-only attempt log.
func (c *Caller) Attempts() []model.CallAttempt {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]model.CallAttempt, len(c.attempts))
	copy(out, c.attempts)
	return out
}
