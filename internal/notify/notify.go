// Package notify delivers completion notifications to a configured webhook.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/draftwire/draftwire/internal/pipeline"
)

// WebhookNotifier posts article-completion events to an HTTP endpoint.
type WebhookNotifier struct {
	url    string
	client *http.Client
}

var _ pipeline.Notifier = (*WebhookNotifier)(nil)

// NewWebhookNotifier registers the webhook endpoint.
func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: 5 * time.Second},
	}
}

type completionEvent struct {
	Event       string `json:"event"`
	Slug        string `json:"slug"`
	Version     int    `json:"version"`
	CompletedAt string `json:"completed_at"`
}

// SendCompletion posts a JSON event for a finished article.
func (n *WebhookNotifier) SendCompletion(ctx context.Context, slug string, version int) error {
	if n.url == "" {
		return fmt.Errorf("webhook notifier misconfigured")
	}

	body, err := json.Marshal(completionEvent{
		Event:       "article.completed",
		Slug:        slug,
		Version:     version,
		CompletedAt: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook error: %s", resp.Status)
	}

	return nil
}
