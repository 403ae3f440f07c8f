package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"

	"campusmarket/internal/app/policies"
	domainchat "campusmarket/internal/domain/chat"
)

const messagePostedTopic = domainchat.MessagePostedEvent

// Topic returns the feed topic under prefix.
func Topic(prefix string) string {
	return prefix + messagePostedTopic
}

type messagePostedPayload struct {
	MessageID      string    `json:"message_id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	Content        string    `json:"content"`
	Kind           string    `json:"kind"`
	CreatedAt      time.Time `json:"created_at"`
	Participants   [2]string `json:"participants"`
}

func encodeMessagePosted(evt domainchat.MessagePosted) ([]byte, error) {
	return json.Marshal(messagePostedPayload{
		MessageID:      string(evt.Message.ID),
		ConversationID: string(evt.Message.ConversationID),
		SenderID:       evt.Message.SenderID,
		Content:        evt.Message.Content,
		Kind:           string(evt.Message.Kind),
		CreatedAt:      evt.Message.CreatedAt.UTC(),
		Participants:   [2]string{evt.Participants.Low, evt.Participants.High},
	})
}

func decodeMessagePosted(raw []byte) (domainchat.MessagePosted, error) {
	var p messagePostedPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return domainchat.MessagePosted{}, fmt.Errorf("decode message_posted: %w", err)
	}
	if p.MessageID == "" || p.ConversationID == "" {
		return domainchat.MessagePosted{}, fmt.Errorf("decode message_posted: missing ids")
	}
	pair, err := domainchat.NewPair(p.Participants[0], p.Participants[1])
	if err != nil {
		return domainchat.MessagePosted{}, fmt.Errorf("decode message_posted: %w", err)
	}
	return domainchat.MessagePosted{
		Message: domainchat.Message{
			ID:             domainchat.MessageID(p.MessageID),
			ConversationID: domainchat.ConversationID(p.ConversationID),
			SenderID:       p.SenderID,
			Content:        p.Content,
			Kind:           domainchat.MessageKind(p.Kind),
			CreatedAt:      p.CreatedAt.UTC(),
		},
		Participants: pair,
	}, nil
}

// FeedPublisher writes stored messages to the shared feed topic. Events are
// keyed by conversation so one conversation stays ordered.
type FeedPublisher struct {
	producer *Producer
	topic    string
}

func NewFeedPublisher(producer *Producer, topicPrefix string) *FeedPublisher {
	return &FeedPublisher{producer: producer, topic: Topic(topicPrefix)}
}

func (p *FeedPublisher) Publish(ctx context.Context, evt domainchat.MessagePosted) error {
	payload, err := encodeMessagePosted(evt)
	if err != nil {
		return err
	}
	return p.producer.Publish(ctx, p.topic, string(evt.Message.ConversationID), payload, map[string]string{
		"event": evt.EventName(),
	})
}

// FeedRelay hands consumed feed events to the local hub.
type FeedRelay struct {
	Sink policies.MessagePublisher
}

func (r FeedRelay) Handle(ctx context.Context, msg *sarama.ConsumerMessage) error {
	evt, err := decodeMessagePosted(msg.Value)
	if err != nil {
		return err
	}
	return r.Sink.Publish(ctx, evt)
}

var (
	_ policies.MessagePublisher = (*FeedPublisher)(nil)
	_ MessageHandler            = FeedRelay{}
)
