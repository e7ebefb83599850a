package channels

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/coinsentry/coinsentry/internal/delivery"
	"github.com/coinsentry/coinsentry/internal/types"
)

const (
	defaultWebhookTimeout = 10 * time.Second
	webhookUserAgent      = "coinsentry/1"
)

// WebhookEnvelope is the JSON document POSTed to the configured endpoint.
type WebhookEnvelope struct {
	// Type identifies the notification kind.
	Type string `json:"type"`
	// SchemaVersion allows consumers to detect breaking changes.
	SchemaVersion string `json:"schemaVersion"`
	// Timestamp is the RFC3339 time the notification was sent.
	Timestamp string `json:"timestamp"`

	ID             string               `json:"id"`
	Source         string               `json:"source"`
	Priority       types.Priority       `json:"priority"`
	Summary        string               `json:"summary"`
	Project        types.Payload        `json:"project"`
	Legitimacy     float64              `json:"legitimacyScore"`
	Sentiment      float64              `json:"sentimentScore"`
	Risk           types.RiskLevel      `json:"riskLevel"`
	Recommendation types.Recommendation `json:"recommendation"`
	Degraded       bool                 `json:"degraded,omitempty"`
}

// Webhook POSTs notifications to a single HTTP endpoint.
type Webhook struct {
	logger     *zap.Logger
	httpClient *http.Client
	url        string
}

func NewWebhook(logger *zap.Logger, url string, timeout time.Duration) *Webhook {
	if timeout == 0 {
		timeout = defaultWebhookTimeout
	}
	return &Webhook{
		logger:     logger.Named("webhook"),
		httpClient: &http.Client{Timeout: timeout},
		url:        url,
	}
}

func (w *Webhook) Name() string       { return "webhook" }
func (w *Webhook) IsConfigured() bool { return w.url != "" }

func (w *Webhook) Send(ctx context.Context, n types.Notification) error {
	envelope := WebhookEnvelope{
		Type:           "coinsentry.project.mention",
		SchemaVersion:  "1",
		Timestamp:      time.Now().UTC().Format(time.RFC3339),
		ID:             n.ID,
		Source:         n.Source,
		Priority:       n.Priority,
		Summary:        n.Summary(),
		Project:        n.Mention.Payload,
		Legitimacy:     n.Analysis.LegitimacyScore,
		Sentiment:      n.Analysis.SentimentScore,
		Risk:           n.Analysis.RiskLevel,
		Recommendation: n.Analysis.Recommendation,
		Degraded:       n.Analysis.Degraded,
	}

	body, err := json.Marshal(envelope)
	if err != nil {
		return delivery.Permanent(w.Name(), fmt.Errorf("marshal webhook payload: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return delivery.Permanent(w.Name(), fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", webhookUserAgent)

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return delivery.Retryable(w.Name(), err)
	}
	defer func() {
		// Drain and close body to reuse connections.
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return delivery.Retryable(w.Name(), fmt.Errorf("endpoint returned %d", resp.StatusCode))
	default:
		return delivery.Permanent(w.Name(), fmt.Errorf("endpoint returned %d", resp.StatusCode))
	}
}
