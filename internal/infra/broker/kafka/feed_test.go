package kafka

import (
	"context"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/require"

	domainchat "campusmarket/internal/domain/chat"
)

type recordingSink struct {
	events []domainchat.MessagePosted
}

func (s *recordingSink) Publish(ctx context.Context, evt domainchat.MessagePosted) error {
	s.events = append(s.events, evt)
	return nil
}

func samplePosted(t *testing.T) domainchat.MessagePosted {
	t.Helper()
	pair, err := domainchat.NewPair("bob", "alice")
	require.NoError(t, err)
	return domainchat.MessagePosted{
		Message: domainchat.Message{
			ID:             "m-1",
			ConversationID: "c-1",
			SenderID:       "alice",
			Content:        "hi",
			Kind:           domainchat.KindUser,
			CreatedAt:      time.Date(2025, 3, 1, 10, 0, 0, 123, time.UTC),
		},
		Participants: pair,
	}
}

func TestFeedPublisherSendsKeyedEvent(t *testing.T) {
	cfg := mocks.NewTestConfig()
	cfg.Producer.Return.Successes = true
	sp := mocks.NewSyncProducer(t, cfg)
	defer sp.Close()

	evt := samplePosted(t)
	sp.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		got, err := decodeMessagePosted(val)
		if err != nil {
			return err
		}
		require.Equal(t, evt, got)
		return nil
	})

	pub := NewFeedPublisher(newProducerWith(sp), "dev.")
	require.Equal(t, "dev.chat.message_posted", pub.topic)
	require.NoError(t, pub.Publish(context.Background(), evt))
}

func TestFeedRelayForwardsToSink(t *testing.T) {
	evt := samplePosted(t)
	raw, err := encodeMessagePosted(evt)
	require.NoError(t, err)

	sink := &recordingSink{}
	relay := FeedRelay{Sink: sink}
	require.NoError(t, relay.Handle(context.Background(), &sarama.ConsumerMessage{Value: raw}))
	require.Len(t, sink.events, 1)
	require.Equal(t, evt, sink.events[0])
}

func TestFeedRelayRejectsMalformedPayload(t *testing.T) {
	sink := &recordingSink{}
	relay := FeedRelay{Sink: sink}

	require.Error(t, relay.Handle(context.Background(), &sarama.ConsumerMessage{Value: []byte("{")}))
	require.Error(t, relay.Handle(context.Background(), &sarama.ConsumerMessage{Value: []byte(`{"message_id":"m"}`)}))
	require.Empty(t, sink.events)
}
