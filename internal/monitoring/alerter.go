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

	"github.com/creatorindex/profile-cli/internal/config"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertUnresolvedFlags  AlertType = "unresolved_flags"
	AlertRefreshBacklog   AlertType = "refresh_backlog"
	AlertLowConfidenceMix AlertType = "low_confidence_mix"
)

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates a MetricsSnapshot against configured thresholds
// and sends alerts via webhook when thresholds are breached.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client
}

// NewAlerter creates an Alerter with the given monitoring config.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Evaluate checks the snapshot against thresholds and returns any alerts.
func (a *Alerter) Evaluate(snap *MetricsSnapshot) []Alert {
	var alerts []Alert
	now := time.Now().UTC()

	if a.cfg.MaxUnresolvedFlags > 0 && snap.UnresolvedFlags > a.cfg.MaxUnresolvedFlags {
		alerts = append(alerts, Alert{
			Type:     AlertUnresolvedFlags,
			Severity: "high",
			Message: fmt.Sprintf(
				"%d unresolved review flags exceed threshold %d",
				snap.UnresolvedFlags, a.cfg.MaxUnresolvedFlags,
			),
			Details: map[string]any{
				"unresolved_flags": snap.UnresolvedFlags,
				"threshold":        a.cfg.MaxUnresolvedFlags,
			},
			Timestamp: now,
		})
	}

	if a.cfg.MaxOverdueRefreshes > 0 && snap.OverdueRefreshes > a.cfg.MaxOverdueRefreshes {
		alerts = append(alerts, Alert{
			Type:     AlertRefreshBacklog,
			Severity: "medium",
			Message: fmt.Sprintf(
				"%d refresh schedules overdue exceed threshold %d",
				snap.OverdueRefreshes, a.cfg.MaxOverdueRefreshes,
			),
			Details: map[string]any{
				"overdue":    snap.OverdueRefreshes,
				"processing": snap.ProcessingClaims,
				"threshold":  a.cfg.MaxOverdueRefreshes,
			},
			Timestamp: now,
		})
	}

	// A mostly-low catalog means upstream providers or scoring drifted;
	// require a minimum population so tiny catalogs don't page anyone.
	if a.cfg.LowConfidenceShare > 0 && snap.Subjects >= 10 && snap.LowShare > a.cfg.LowConfidenceShare {
		alerts = append(alerts, Alert{
			Type:     AlertLowConfidenceMix,
			Severity: "medium",
			Message: fmt.Sprintf(
				"low-confidence share %.0f%% exceeds threshold %.0f%% (%d of %d subjects)",
				snap.LowShare*100, a.cfg.LowConfidenceShare*100,
				snap.LowConfidence, snap.Subjects,
			),
			Details: map[string]any{
				"low_share": snap.LowShare,
				"low":       snap.LowConfidence,
				"subjects":  snap.Subjects,
				"threshold": a.cfg.LowConfidenceShare,
			},
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
