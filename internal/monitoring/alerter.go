package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/placerank/internal/config"
	"github.com/sells-group/placerank/internal/resilience"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertRankLost AlertType = "rank_lost"
	AlertRankDrop AlertType = "rank_drop"
	AlertSinkDown AlertType = "sink_down"
)

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates a Snapshot against configured thresholds and sends
// alerts via webhook.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client
}

// NewAlerter creates a new Alerter with the given monitoring config.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Evaluate checks the snapshot against thresholds and returns any alerts.
// Only movements whose latest check is after since are considered.
func (a *Alerter) Evaluate(snap *Snapshot, since time.Time) []Alert {
	var alerts []Alert
	now := time.Now().UTC()

	for _, m := range snap.Movements {
		if !m.CurrentAt.After(since) {
			continue
		}
		label := m.PlaceName
		if label == "" {
			label = m.Target.ID
		}

		switch {
		case m.Lost():
			alerts = append(alerts, Alert{
				Type:     AlertRankLost,
				Severity: "high",
				Message: fmt.Sprintf("%s dropped out of the results for %q (was rank %d)",
					label, m.Keyword, m.Previous),
				Details: map[string]any{
					"keyword":       m.Keyword,
					"place_id":      m.Target.ID,
					"previous_rank": m.Previous,
				},
				Timestamp: now,
			})
		case a.cfg.RankDropThreshold > 0 && m.Dropped() >= a.cfg.RankDropThreshold:
			alerts = append(alerts, Alert{
				Type:     AlertRankDrop,
				Severity: "medium",
				Message: fmt.Sprintf("%s fell %d positions for %q (%d -> %d)",
					label, m.Dropped(), m.Keyword, m.Previous, m.Current),
				Details: map[string]any{
					"keyword":       m.Keyword,
					"place_id":      m.Target.ID,
					"previous_rank": m.Previous,
					"current_rank":  m.Current,
					"threshold":     a.cfg.RankDropThreshold,
				},
				Timestamp: now,
			})
		}
	}

	if snap.SinkState == resilience.CircuitOpen.String() {
		alerts = append(alerts, Alert{
			Type:      AlertSinkDown,
			Severity:  "high",
			Message:   "result sink circuit breaker is open; rank checks are not being recorded",
			Details:   map[string]any{"sink_state": snap.SinkState},
			Timestamp: now,
		})
	}

	return alerts
}

// SendAlerts delivers alerts to the configured webhook URL.
// Returns the number of alerts successfully sent.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if a.cfg.WebhookURL == "" || len(alerts) == 0 {
		return 0
	}

	sent := 0
	for _, alert := range alerts {
		if err := a.sendWebhook(ctx, alert); err != nil {
			zap.L().Error("monitoring: failed to send alert",
				zap.String("type", string(alert.Type)),
				zap.Error(err),
			)
			continue
		}
		zap.L().Info("monitoring: alert sent",
			zap.String("type", string(alert.Type)),
			zap.String("severity", alert.Severity),
		)
		sent++
	}
	return sent
}

// sendWebhook posts a single alert to the webhook URL.
func (a *Alerter) sendWebhook(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal alert")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "monitoring: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "monitoring: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return eris.Errorf("monitoring: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
