package monitoring

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/meridian-group/decision-cli/internal/config"
)

// Checker drives the pipeline alert loop: collect a snapshot over the
// lookback window, evaluate the thresholds, push webhook alerts.
type Checker struct {
	collector *Collector
	alerter   *Alerter
	cfg       config.MonitoringConfig
}

// NewChecker creates a background alert checker.
func NewChecker(collector *Collector, alerter *Alerter, cfg config.MonitoringConfig) *Checker {
	return &Checker{
		collector: collector,
		alerter:   alerter,
		cfg:       cfg,
	}
}

// Run sweeps once at startup so a restart surfaces existing problems right
// away, then once per interval until ctx is cancelled.
func (c *Checker) Run(ctx context.Context) {
	interval := time.Duration(c.cfg.CheckIntervalSecs) * time.Second
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	log := zap.L().With(zap.String("component", "monitoring.checker"))
	log.Info("alert checker started",
		zap.Duration("interval", interval),
		zap.Int("lookback_hours", c.cfg.LookbackWindowHours),
	)

	c.sweep(ctx, log)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("alert checker stopped")
			return
		case <-ticker.C:
			c.sweep(ctx, log)
		}
	}
}

func (c *Checker) sweep(ctx context.Context, log *zap.Logger) {
	snap, err := c.collector.Collect(ctx, c.cfg.LookbackWindowHours)
	if err != nil {
		log.Error("metrics collection failed", zap.Error(err))
		return
	}

	alerts := c.alerter.Evaluate(snap)
	if len(alerts) == 0 {
		return
	}

	types := make([]string, len(alerts))
	for i, a := range alerts {
		types[i] = string(a.Type)
	}
	sent := c.alerter.SendAlerts(ctx, alerts)
	log.Warn("alerts raised",
		zap.Strings("alerts", types),
		zap.Int("sent", sent),
	)
}
