package outbox_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appoutbox "campusmarket/internal/app/outbox"
	domainorders "campusmarket/internal/domain/orders"
	"campusmarket/internal/domain/shared/events"
	"campusmarket/internal/domain/shared/money"
	"campusmarket/internal/infra/outbox"
)

type published struct {
	topic   string
	key     string
	payload []byte
	headers map[string]string
}

type fakeProducer struct {
	mu    sync.Mutex
	sent  []published
	fails int
}

func (p *fakeProducer) Publish(ctx context.Context, topic, key string, payload []byte, headers map[string]string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fails > 0 {
		p.fails--
		return errors.New("kafka: leader not available")
	}
	p.sent = append(p.sent, published{topic: topic, key: key, payload: payload, headers: headers})
	return nil
}

func queue(t *testing.T, store *outbox.MemoryStore, evs ...events.DomainEvent) {
	t.Helper()
	n := 0
	enc := appoutbox.JSONEventEncoder{IDGenerator: func() string {
		n++
		return "evt-" + string(rune('a'+n-1))
	}}
	require.NoError(t, appoutbox.RecordDomainEvents(context.Background(), store, enc, evs))
}

func TestRelayPublishesCloudEvents(t *testing.T) {
	store := outbox.NewMemoryStore()
	at := time.Date(2026, 5, 3, 12, 0, 0, 0, time.UTC)
	queue(t, store,
		domainorders.OrderPlaced{OrderID: "o-1", ListingID: "L", BuyerID: "b", SellerID: "s", Amount: money.Must(2000, "USD"), At: at},
		domainorders.OrderStatusChanged{OrderID: "o-1", From: domainorders.StatusPending, To: domainorders.StatusPaid, ActorID: "s", At: at.Add(time.Minute)},
	)
	producer := &fakeProducer{}
	relay := &outbox.Relay{Store: store, Producer: producer, TopicPrefix: "dev."}

	sent, err := relay.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, sent)
	assert.Zero(t, store.Pending())

	require.Len(t, producer.sent, 2)
	first := producer.sent[0]
	assert.Equal(t, "dev.orders.events.v1", first.topic)
	assert.Equal(t, "o-1", first.key)
	assert.Equal(t, "application/cloudevents+json", first.headers["content-type"])

	var envelope struct {
		SpecVersion string         `json:"specversion"`
		ID          string         `json:"id"`
		Type        string         `json:"type"`
		Source      string         `json:"source"`
		Data        map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(first.payload, &envelope))
	assert.Equal(t, "1.0", envelope.SpecVersion)
	assert.Equal(t, "evt-a", envelope.ID)
	assert.Equal(t, "orders.placed.v1", envelope.Type)
	assert.Equal(t, "app://campusmarket", envelope.Source)
	assert.Equal(t, "L", envelope.Data["ListingID"])
}

func TestRelayBacksOffAfterPublishFailure(t *testing.T) {
	store := outbox.NewMemoryStore()
	queue(t, store, domainorders.OrderStatusChanged{OrderID: "o-2", From: domainorders.StatusPaid, To: domainorders.StatusConfirmed, At: time.Now()})
	producer := &fakeProducer{fails: 1}
	relay := &outbox.Relay{Store: store, Producer: producer, Backoff: []time.Duration{0}}
	ctx := context.Background()

	sent, err := relay.Drain(ctx)
	require.NoError(t, err)
	assert.Zero(t, sent)
	assert.Equal(t, 1, store.Pending())

	sent, err = relay.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	assert.Zero(t, store.Pending())
}

func TestRelayRequiresDependencies(t *testing.T) {
	err := (&outbox.Relay{}).Run(context.Background())
	assert.ErrorIs(t, err, outbox.ErrRelayNotConfigured)
}

func TestMemoryStoreRejectsDuplicateIDs(t *testing.T) {
	store := outbox.NewMemoryStore()
	rec := appoutbox.EventRecord{ID: "evt-1", Name: "orders.placed", Payload: []byte(`{}`)}
	require.NoError(t, store.Add(context.Background(), rec))
	assert.Error(t, store.Add(context.Background(), rec))
}
