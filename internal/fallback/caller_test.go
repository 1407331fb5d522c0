package fallback

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-group/decision-cli/internal/model"
	"github.com/meridian-group/decision-cli/internal/provider"
	"github.com/meridian-group/decision-cli/internal/resilience"
)

type fakeCompleter struct {
	name     string
	content  string
	err      error
	calls    int
	lastReq  provider.Request
}

func (f *fakeCompleter) Name() string { return f.name }

func (f *fakeCompleter) Complete(_ context.Context, req provider.Request) (*provider.Response, error) {
	f.calls++
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return &provider.Response{Content: f.content, Model: req.Model}, nil
}

func testRole(providers ...string) model.Role {
	role := model.Role{ID: "market-analyst", PromptTemplate: "analyze"}
	for _, p := range providers {
		role.Candidates = append(role.Candidates, model.ModelCandidate{Provider: p, Model: p + "-model"})
	}
	return role
}

func TestCaller_Invoke(t *testing.T) {
	t.Parallel()

	t.Run("first candidate success short-circuits", func(t *testing.T) {
		t.Parallel()
		first := &fakeCompleter{name: "anthropic", content: "分析结果"}
		second := &fakeCompleter{name: "deepseek", content: "unused"}
		reg := provider.NewRegistry()
		reg.Register(first, true)
		reg.Register(second, true)

		c := NewCaller(reg)
		res, err := c.Invoke(context.Background(), "run-1", testRole("anthropic", "deepseek"), "sys", "msg")

		require.NoError(t, err)
		assert.Equal(t, "分析结果", res.Content)
		assert.Equal(t, "anthropic", res.Provider)
		assert.Equal(t, 0, res.FallbackLevel)
		assert.Zero(t, second.calls)
		assert.Len(t, c.Attempts(), 1)
	})

	t.Run("failure falls through in order", func(t *testing.T) {
		t.Parallel()
		first := &fakeCompleter{name: "anthropic", err: eris.New("boom")}
		second := &fakeCompleter{name: "deepseek", content: "备选结果"}
		reg := provider.NewRegistry()
		reg.Register(first, true)
		reg.Register(second, true)

		c := NewCaller(reg)
		res, err := c.Invoke(context.Background(), "run-1", testRole("anthropic", "deepseek"), "sys", "msg")

		require.NoError(t, err)
		assert.Equal(t, "deepseek", res.Provider)
		assert.Equal(t, 1, res.FallbackLevel)

		attempts := c.Attempts()
		require.Len(t, attempts, 2)
		assert.False(t, attempts[0].Success)
		assert.True(t, attempts[1].Success)
	})

	t.Run("missing credential skips at zero cost", func(t *testing.T) {
		t.Parallel()
		first := &fakeCompleter{name: "anthropic"}
		second := &fakeCompleter{name: "deepseek", content: "ok"}
		reg := provider.NewRegistry()
		reg.Register(first, false)
		reg.Register(second, true)

		c := NewCaller(reg)
		res, err := c.Invoke(context.Background(), "run-1", testRole("anthropic", "deepseek"), "sys", "msg")

		require.NoError(t, err)
		assert.Equal(t, "deepseek", res.Provider)
		assert.Zero(t, first.calls)

		attempts := c.Attempts()
		require.Len(t, attempts, 2)
		assert.True(t, attempts[0].Skipped)
		assert.Equal(t, "missing credential", attempts[0].Err)
	})

	t.Run("unregistered provider treated as missing credential", func(t *testing.T) {
		t.Parallel()
		second := &fakeCompleter{name: "deepseek", content: "ok"}
		reg := provider.NewRegistry()
		reg.Register(second, true)

		c := NewCaller(reg)
		res, err := c.Invoke(context.Background(), "run-1", testRole("ghost", "deepseek"), "sys", "msg")

		require.NoError(t, err)
		assert.Equal(t, 1, res.FallbackLevel)
	})

	t.Run("exhaustion dead-letters and wraps last error", func(t *testing.T) {
		t.Parallel()
		first := &fakeCompleter{name: "anthropic", err: eris.New("a down")}
		second := &fakeCompleter{name: "deepseek", err: eris.New("b down")}
		reg := provider.NewRegistry()
		reg.Register(first, true)
		reg.Register(second, true)

		var dead []resilience.DeadLetter
		c := NewCaller(reg, WithDeadLetterSink(func(dl resilience.DeadLetter) {
			dead = append(dead, dl)
		}))

		_, err := c.Invoke(context.Background(), "run-9", testRole("anthropic", "deepseek"), "sys", "msg")

		require.Error(t, err)
		assert.Contains(t, err.Error(), "all 2 candidates exhausted")
		require.Len(t, dead, 1)
		assert.Equal(t, "run-9", dead[0].RunID)
		assert.Equal(t, "market-analyst", dead[0].RoleID)
		assert.Equal(t, 2, dead[0].Attempts)
	})

	t.Run("no candidates is an error", func(t *testing.T) {
		t.Parallel()
		c := NewCaller(provider.NewRegistry())
		_, err := c.Invoke(context.Background(), "run-1", testRole(), "sys", "msg")
		require.Error(t, err)
	})

	t.Run("role settings reach the provider", func(t *testing.T) {
		t.Parallel()
		first := &fakeCompleter{name: "anthropic", content: "ok"}
		reg := provider.NewRegistry()
		reg.Register(first, true)

		role := testRole("anthropic")
		role.MaxTokens = 2048

		c := NewCaller(reg, WithTimeout(5*time.Second))
		_, err := c.Invoke(context.Background(), "run-1", role, "system prompt", "user message")

		require.NoError(t, err)
		assert.Equal(t, "system prompt", first.lastReq.System)
		assert.Equal(t, "user message", first.lastReq.UserMessage)
		assert.Equal(t, 2048, first.lastReq.MaxTokens)
		assert.Equal(t, "anthropic-model", first.lastReq.Model)
	})
}
