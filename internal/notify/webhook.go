// Package notify delivers reservation notifications to an incoming-webhook
// endpoint (Slack-compatible "text" payload). The worker owns retries; a
// notifier only reports success or failure of a single delivery.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"boothnik/internal/models"

	"github.com/rs/zerolog"
)

type WebhookNotifier struct {
	url    string
	client *http.Client
	logger *zerolog.Logger
}

func NewWebhookNotifier(url string, logger *zerolog.Logger) *WebhookNotifier {
	return &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}
}

func (n *WebhookNotifier) SendConfirmation(ctx context.Context, r *models.Reservation) error {
	text := fmt.Sprintf("Reservation %s confirmed: %s, booth %s, %s %s (%d min)",
		r.ID, r.Email, r.BoothName, r.DateKey(), r.StartTime, r.Duration)
	return n.post(ctx, text)
}

func (n *WebhookNotifier) SendCancellation(ctx context.Context, r *models.Reservation) error {
	text := fmt.Sprintf("Reservation %s cancelled: %s, booth %s, %s %s",
		r.ID, r.Email, r.BoothName, r.DateKey(), r.StartTime)
	return n.post(ctx, text)
}

func (n *WebhookNotifier) SendCrossCollege(ctx context.Context, r *models.Reservation) error {
	text := fmt.Sprintf("Cross-college use: %s (%s) takes booth %s of %s on %s %s",
		r.Email, r.CollegeName, r.BoothName, r.AssignedCollegeName, r.DateKey(), r.StartTime)
	return n.post(ctx, text)
}

func (n *WebhookNotifier) SendReminder(ctx context.Context, r *models.Reservation) error {
	text := fmt.Sprintf("Reminder: %s has booth %s tomorrow, %s %s (%d min)",
		r.Email, r.BoothName, r.DateKey(), r.StartTime, r.Duration)
	return n.post(ctx, text)
}

func (n *WebhookNotifier) post(ctx context.Context, text string) error {
	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return fmt.Errorf("encode webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook responded with status %d", resp.StatusCode)
	}

	n.logger.Debug().Str("url", n.url).Msg("webhook delivered")
	return nil
}
