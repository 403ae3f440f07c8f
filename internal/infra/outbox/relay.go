package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Source is the claim side of an outbox store.
type Source interface {
	Claim(ctx context.Context, workerID string) (*Entry, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, next time.Time, errMsg string) error
}

type Producer interface {
	Publish(ctx context.Context, topic string, key string, payload []byte, headers map[string]string) error
}

var ErrRelayNotConfigured = errors.New("outbox: relay missing dependencies")

// Relay publishes claimed entries as CloudEvents to "<prefix><aggregate>.events.v1".
type Relay struct {
	Store       Source
	Producer    Producer
	Interval    time.Duration
	TopicPrefix string
	Source      string
	ID          string
	Backoff     []time.Duration
	Logger      *slog.Logger
}

func (r *Relay) Run(ctx context.Context) error {
	if r.Store == nil || r.Producer == nil {
		return ErrRelayNotConfigured
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	ticker := time.NewTicker(r.interval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := r.Drain(ctx); err != nil && ctx.Err() == nil && r.Logger != nil {
				r.Logger.Warn("outbox relay pass failed", "error", err)
			}
		}
	}
}

// Drain publishes every due entry and returns how many were sent.
func (r *Relay) Drain(ctx context.Context) (int, error) {
	sent := 0
	for {
		ok, err := r.processOnce(ctx)
		if err != nil || !ok {
			return sent, err
		}
		sent++
	}
}

// processOnce reports false when nothing was delivered in this step.
func (r *Relay) processOnce(ctx context.Context) (bool, error) {
	doc, err := r.Store.Claim(ctx, r.workerID())
	if err != nil || doc == nil {
		return false, err
	}
	payload, headers, err := r.formatPayload(doc)
	if err == nil {
		err = r.Producer.Publish(ctx, r.topicFor(doc.Name), doc.Aggregate, payload, headers)
	}
	if err != nil {
		if r.Logger != nil {
			r.Logger.Warn("outbox publish failed", "error", err, "event_id", doc.ID, "event", doc.Name, "attempts", doc.Attempts+1)
		}
		return false, r.Store.MarkFailed(ctx, doc.ID, r.nextRetry(doc.Attempts), err.Error())
	}
	return true, r.Store.MarkSent(ctx, doc.ID)
}

func (r *Relay) formatPayload(doc *Entry) ([]byte, map[string]string, error) {
	data := map[string]any{}
	if err := json.Unmarshal(doc.Payload, &data); err != nil {
		return nil, nil, err
	}
	evt := map[string]any{
		"specversion":     "1.0",
		"id":              doc.ID,
		"type":            doc.Name + ".v1",
		"source":          r.source(),
		"subject":         doc.Aggregate,
		"time":            doc.OccurredAt,
		"datacontenttype": "application/json",
		"data":            data,
	}
	if trace, ok := doc.Headers["traceparent"]; ok {
		evt["traceparent"] = trace
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return nil, nil, err
	}
	headers := map[string]string{"content-type": "application/cloudevents+json"}
	for k, v := range doc.Headers {
		headers[k] = v
	}
	return payload, headers, nil
}

func (r *Relay) topicFor(name string) string {
	base := name
	if idx := strings.IndexRune(name, '.'); idx > 0 {
		base = name[:idx]
	}
	return r.TopicPrefix + base + ".events.v1"
}

func (r *Relay) workerID() string {
	if r.ID != "" {
		return r.ID
	}
	return "relay"
}

func (r *Relay) interval() time.Duration {
	if r.Interval <= 0 {
		return 500 * time.Millisecond
	}
	return r.Interval
}

func (r *Relay) nextRetry(attempts int) time.Time {
	if attempts < len(r.Backoff) {
		return time.Now().Add(r.Backoff[attempts])
	}
	if len(r.Backoff) > 0 {
		return time.Now().Add(r.Backoff[len(r.Backoff)-1])
	}
	return time.Now().Add(5 * time.Second)
}

func (r *Relay) source() string {
	if r.Source != "" {
		return r.Source
	}
	return "app://campusmarket"
}
