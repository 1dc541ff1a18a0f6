package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// WebhookNotifier POSTs events to a configured endpoint. Delivery is
// fire-and-forget: failures are logged and never surface to the caller,
// so a dead webhook cannot stall a tick.
type WebhookNotifier struct {
	url    string
	client *http.Client
	logger *zap.Logger
}

func NewWebhookNotifier(url string, logger *zap.Logger) *WebhookNotifier {
	return &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}
}

type webhookPayload struct {
	Event   string    `json:"event"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

func (n *WebhookNotifier) Notify(_ context.Context, event, message string) {
	if n.url == "" {
		return
	}
	body, err := json.Marshal(webhookPayload{Event: event, Message: message, Time: time.Now().UTC()})
	if err != nil {
		n.logger.Error("marshal webhook payload", zap.Error(err))
		return
	}
	go func() {
		// Own deadline: the tick's context may be gone by the time
		// delivery finishes.
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
		if err != nil {
			n.logger.Error("build webhook request", zap.Error(err))
			return
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := n.client.Do(req)
		if err != nil {
			n.logger.Warn("webhook delivery failed", zap.String("event", event), zap.Error(err))
			return
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 300 {
			n.logger.Warn("webhook rejected", zap.String("event", event), zap.Int("status", resp.StatusCode))
		}
	}()
}

// LogNotifier writes events to the structured log only. Default when no
// webhook is configured.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(_ context.Context, event, message string) {
	n.logger.Info("notification", zap.String("event", event), zap.String("message", message))
}
