package monitoring

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/meridian-group/decision-cli/internal/config"
	"github.com/meridian-group/decision-cli/internal/resilience"
)

func TestChecker_StartupSweepDeliversAlerts(t *testing.T) {
	t.Parallel()

	received := make(chan Alert, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var a Alert
		_ = json.NewDecoder(r.Body).Decode(&a)
		received <- a
	}))
	defer srv.Close()

	st := &fakeStore{letters: make([]resilience.DeadLetter, 5)}
	cfg := config.MonitoringConfig{
		WebhookURL:          srv.URL,
		DeadLetterThreshold: 3,
		CheckIntervalSecs:   3600,
		LookbackWindowHours: 24,
	}
	checker := NewChecker(NewCollector(st), NewAlerter(cfg), cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		checker.Run(ctx)
		close(done)
	}()

	select {
	case a := <-received:
		assert.Equal(t, AlertDeadLetterDepth, a.Type)
	case <-time.After(5 * time.Second):
		t.Fatal("startup sweep delivered no alert")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("checker did not stop on cancel")
	}
}

func TestChecker_QuietSystemSendsNothing(t *testing.T) {
	t.Parallel()

	var posts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		posts.Add(1)
	}))
	defer srv.Close()

	cfg := config.MonitoringConfig{
		WebhookURL:          srv.URL,
		DeadLetterThreshold: 3,
		LookbackWindowHours: 24,
	}
	checker := NewChecker(NewCollector(&fakeStore{}), NewAlerter(cfg), cfg)

	checker.sweep(context.Background(), zap.NewNop())
	assert.Zero(t, posts.Load())
}
