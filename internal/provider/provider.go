// Package provider adapts model completion gateways behind a uniform
// interface and holds the registry the fallback caller draws candidates from.
package provider

import (
	"context"
	"time"
)

// Request is one completion request, provider-agnostic.
type Request struct {
	Model       string
	System      string
	UserMessage string
	Temperature *float64
	MaxTokens   int
}

// Response is the provider-agnostic completion result.
type Response struct {
	Content      string
	Model        string
	InputTokens  int
	OutputTokens int
}

// Completer is a single model gateway.
type Completer interface {
	// Name identifies the provider ("anthropic", "deepseek", ...).
	Name() string
	// Complete performs one completion. Implementations must honor ctx
	// cancellation and return a classified error on failure.
	Complete(ctx context.Context, req Request) (*Response, error)
}

// Registry maps provider names to gateways and tracks which credentials are
// actually configured. A candidate whose provider is unregistered or whose
// credential is missing is skipped at zero cost by the fallback caller.
type Registry struct {
	completers  map[string]Completer
	credentials map[string]bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		completers:  make(map[string]Completer),
		credentials: make(map[string]bool),
	}
}

// Register adds a gateway. hasCredential records whether its API key is set.
func (r *Registry) Register(c Completer, hasCredential bool) {
	r.completers[c.Name()] = c
	r.credentials[c.Name()] = hasCredential
}

// Get returns the gateway for a provider name, or nil.
func (r *Registry) Get(name string) Completer {
	return r.completers[name]
}

// HasCredential reports whether the provider's credential is configured.
func (r *Registry) HasCredential(name string) bool {
	return r.credentials[name]
}

// Names lists registered providers.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.completers))
	for name := range r.completers {
		out = append(out, name)
	}
	return out
}

// DefaultCallTimeout bounds one candidate attempt unless configured otherwise.
const DefaultCallTimeout = 30 * time.Second
