// Package notify delivers fire-and-forget progress notifications.
// Delivery failures are logged and swallowed; callers never block on or
// observe a notification error.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// Event is one notification payload.
type Event struct {
	Kind      string         `json:"kind"`
	Repo      string         `json:"repo,omitempty"`
	Branch    string         `json:"branch,omitempty"`
	Message   string         `json:"message"`
	Success   *bool          `json:"success,omitempty"`
	Fields    map[string]any `json:"fields,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Notifier is the sink interface. Implementations must not block beyond
// ordinary I/O and must swallow their own failures.
type Notifier interface {
	Notify(ctx context.Context, ev Event)
}

// Nop discards all notifications.
type Nop struct{}

func (Nop) Notify(context.Context, Event) {}

// Webhook posts events as JSON to a single URL, rate-limited so a noisy
// workflow cannot flood the receiver.
type Webhook struct {
	url     string
	client  *http.Client
	limiter *rate.Limiter
	log     *slog.Logger
}

// NewWebhook builds a webhook notifier. ratePerMinute <= 0 disables
// throttling.
func NewWebhook(url string, ratePerMinute int, log *slog.Logger) *Webhook {
	if log == nil {
		log = slog.Default()
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if ratePerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(ratePerMinute)/60.0), ratePerMinute)
	}
	return &Webhook{
		url:     url,
		client:  &http.Client{Timeout: 10 * time.Second},
		limiter: limiter,
		log:     log,
	}
}

func (w *Webhook) Notify(ctx context.Context, ev Event) {
	if w.url == "" {
		return
	}
	if !w.limiter.Allow() {
		w.log.Debug("notification dropped by rate limit", "kind", ev.Kind)
		return
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	body, err := json.Marshal(ev)
	if err != nil {
		w.log.Warn("notification marshal failed", "error", err)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		w.log.Warn("notification request failed", "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		w.log.Warn("notification delivery failed", "error", err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		w.log.Warn("notification rejected", "status", resp.StatusCode)
	}
}
