// Package notify dispatches incident alerts to an operations webhook.
//
// High-severity incidents detected by the chat handler are forwarded to
// the configured endpoint so case workers can follow up without polling
// the incidents API. Dispatch is fire-and-forget: a dead webhook never
// delays or fails a chat response.
package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/umsafe/umsafe/internal/config"
	"github.com/umsafe/umsafe/pkg/models"
)

// dispatchTimeout bounds one alert delivery including retries.
const dispatchTimeout = 15 * time.Second

// maxAttempts is how many times a delivery is tried before giving up.
const maxAttempts = 3

// IncidentAlert is the webhook payload.
type IncidentAlert struct {
	Event          string                  `json:"event"`
	UserID         string                  `json:"user_id"`
	IncidentType   models.IncidentType     `json:"incident_type"`
	Severity       models.IncidentSeverity `json:"severity"`
	FollowUpNeeded bool                    `json:"follow_up_needed"`
	Language       string                  `json:"language"`
	Timestamp      time.Time               `json:"timestamp"`
}

// Notifier posts signed incident alerts to a single webhook URL.
// A Notifier with no URL is valid and drops every alert silently.
type Notifier struct {
	url    string
	secret string
	client *http.Client
}

// NewNotifier builds a notifier from alert configuration.
func NewNotifier(cfg config.AlertConfig) *Notifier {
	return &Notifier{
		url:    cfg.WebhookURL,
		secret: cfg.WebhookSecret,
		client: &http.Client{Timeout: dispatchTimeout},
	}
}

// Enabled reports whether a webhook URL is configured.
func (n *Notifier) Enabled() bool { return n.url != "" }

// AlertIncident dispatches an alert on its own goroutine. Only critical
// and high incidents page the webhook; medium reports stay queryable via
// the incidents API. The caller's context is not used: the chat response
// must not wait for, or be cancelled along with, the delivery.
func (n *Notifier) AlertIncident(incident models.IncidentReport, language string) {
	if !n.Enabled() {
		return
	}
	if incident.Severity != models.SeverityCritical && incident.Severity != models.SeverityHigh {
		return
	}

	alert := IncidentAlert{
		Event:          "incident_reported",
		UserID:         incident.UserID,
		IncidentType:   incident.IncidentType,
		Severity:       incident.Severity,
		FollowUpNeeded: incident.FollowUpNeeded,
		Language:       language,
		Timestamp:      time.Now().UTC(),
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
		defer cancel()
		if err := n.send(ctx, alert); err != nil {
			log.Warn().Err(err).
				Str("severity", string(alert.Severity)).
				Msg("incident alert delivery failed")
			return
		}
		log.Info().
			Str("incident_type", string(alert.IncidentType)).
			Str("severity", string(alert.Severity)).
			Msg("incident alert dispatched")
	}()
}

// send posts the alert with HMAC signing and bounded retries.
func (n *Notifier) send(ctx context.Context, alert IncidentAlert) error {
	body, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(time.Duration(attempt*2) * time.Second):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("build alert request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", "UMSafe-Webhook/1.0")
		req.Header.Set("X-UMSafe-Event", alert.Event)
		if n.secret != "" {
			mac := hmac.New(sha256.New, []byte(n.secret))
			mac.Write(body)
			req.Header.Set("X-UMSafe-Signature", "sha256="+hex.EncodeToString(mac.Sum(nil)))
		}

		resp, err := n.client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		resp.Body.Close()
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return nil
		}
		lastErr = fmt.Errorf("webhook HTTP %d from %s", resp.StatusCode, n.url)
	}
	return fmt.Errorf("alert failed after %d attempts: %w", maxAttempts, lastErr)
}
