// Package notify delivers operational alerts to an external webhook, used
// when the pipeline degrades (mapping fallback, CRM write failures).
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
)

// Level classifies an event.
type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Event is a single notification.
type Event struct {
	Level   Level             `json:"level"`
	Title   string            `json:"title"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
	SentAt  time.Time         `json:"sentAt"`
}

// Sink receives events. Implementations must be safe for concurrent use.
type Sink interface {
	Notify(ctx context.Context, ev Event) error
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) Notify(context.Context, Event) error { return nil }

type webhookSink struct {
	url  string
	http *http.Client
}

// NewWebhookSink posts events as JSON to the given URL.
func NewWebhookSink(url string) Sink {
	return &webhookSink{
		url:  url,
		http: &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *webhookSink) Notify(ctx context.Context, ev Event) error {
	if ev.SentAt.IsZero() {
		ev.SentAt = time.Now().UTC()
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return eris.Wrap(err, "notify: marshal event")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "notify: create request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "notify: webhook request failed")
	}
	defer resp.Body.Close() //nolint:errcheck
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return eris.Errorf("notify: webhook status %d", resp.StatusCode)
	}
	return nil
}
