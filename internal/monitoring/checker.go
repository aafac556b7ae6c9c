package monitoring

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/placerank/internal/config"
)

// Checker runs periodic alert checks in the background.
type Checker struct {
	collector *Collector
	alerter   *Alerter
	cfg       config.MonitoringConfig
	lastCheck time.Time
}

// NewChecker creates a background alert checker. Movements recorded before
// the checker was created are not alerted on.
func NewChecker(collector *Collector, alerter *Alerter, cfg config.MonitoringConfig) *Checker {
	if cfg.LookbackWindowHours <= 0 {
		cfg.LookbackWindowHours = 48
	}
	return &Checker{
		collector: collector,
		alerter:   alerter,
		cfg:       cfg,
		lastCheck: time.Now().UTC(),
	}
}

// Run starts the periodic check loop. It blocks until ctx is cancelled.
func (c *Checker) Run(ctx context.Context) {
	interval := time.Duration(c.cfg.CheckIntervalSecs) * time.Second
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	log := zap.L().With(zap.String("component", "monitoring.checker"))
	log.Info("starting alert checker",
		zap.Duration("interval", interval),
		zap.Int("lookback_hours", c.cfg.LookbackWindowHours),
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("alert checker stopped")
			return
		case <-ticker.C:
			c.Check(ctx, log)
		}
	}
}

// Check collects movements since the previous check and sends any alerts.
// It returns the alerts that were triggered.
func (c *Checker) Check(ctx context.Context, log *zap.Logger) []Alert {
	snap, err := c.collector.Collect(ctx, c.cfg.LookbackWindowHours)
	if err != nil {
		log.Error("monitoring: failed to collect rank movements", zap.Error(err))
		return nil
	}

	since := c.lastCheck
	c.lastCheck = snap.CollectedAt

	alerts := c.alerter.Evaluate(snap, since)
	if len(alerts) == 0 {
		log.Debug("monitoring: no alerts triggered", zap.Int("movements", len(snap.Movements)))
		return nil
	}

	sent := c.alerter.SendAlerts(ctx, alerts)
	log.Info("monitoring: alert check complete",
		zap.Int("alerts_triggered", len(alerts)),
		zap.Int("alerts_sent", sent),
	)
	return alerts
}
