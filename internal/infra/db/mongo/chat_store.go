package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainchat "campusmarket/internal/domain/chat"
)

// ChatStore persists conversations and messages in two collections. The
// unique index on (participant_low, participant_high, listing_key) is what
// keeps concurrent first contact from creating two conversations.
type ChatStore struct {
	conversations *mongo.Collection
	messages      *mongo.Collection
}

func NewChatStore(db *mongo.Database) *ChatStore {
	return &ChatStore{
		conversations: db.Collection("chat_conversations"),
		messages:      db.Collection("chat_messages"),
	}
}

func (s *ChatStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.conversations.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "participant_low", Value: 1},
				{Key: "participant_high", Value: 1},
				{Key: "listing_key", Value: 1},
			},
			Options: options.Index().SetUnique(true).SetName("conversation_key"),
		},
		{Keys: bson.D{{Key: "participants", Value: 1}, {Key: "updated_at", Value: -1}}},
	})
	if err != nil {
		return err
	}
	_, err = s.messages.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "conversation_id", Value: 1}, {Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}},
		{Keys: bson.D{{Key: "participants", Value: 1}, {Key: "created_at", Value: 1}}},
	})
	return err
}

func (s *ChatStore) FindByKey(ctx context.Context, key domainchat.Key) (*domainchat.Conversation, error) {
	filter := bson.M{
		"participant_low":  key.Low,
		"participant_high": key.High,
		"listing_key":      key.ListingID,
	}
	return s.findConversation(ctx, filter)
}

func (s *ChatStore) ByID(ctx context.Context, id domainchat.ConversationID) (*domainchat.Conversation, error) {
	return s.findConversation(ctx, bson.M{"_id": string(id)})
}

func (s *ChatStore) findConversation(ctx context.Context, filter bson.M) (*domainchat.Conversation, error) {
	var doc conversationDocument
	if err := s.conversations.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainchat.ErrConversationNotFound
		}
		return nil, err
	}
	conv := doc.toDomain()
	return &conv, nil
}

func (s *ChatStore) Insert(ctx context.Context, conv domainchat.Conversation) error {
	_, err := s.conversations.InsertOne(ctx, newConversationDocument(conv))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domainchat.ErrConversationExists
		}
		return err
	}
	return nil
}

func (s *ChatStore) ListForUser(ctx context.Context, userID string) ([]domainchat.Conversation, error) {
	opts := options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}, {Key: "_id", Value: -1}})
	cur, err := s.conversations.Find(ctx, bson.M{"participants": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := make([]domainchat.Conversation, 0)
	for cur.Next(ctx) {
		var doc conversationDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, doc.toDomain())
	}
	return out, cur.Err()
}

// Touch only moves updated_at forward.
func (s *ChatStore) Touch(ctx context.Context, id domainchat.ConversationID, at time.Time) error {
	res, err := s.conversations.UpdateOne(ctx,
		bson.M{"_id": string(id)},
		bson.M{"$max": bson.M{"updated_at": at.UTC().UnixNano()}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domainchat.ErrConversationNotFound
	}
	return nil
}

// Delete removes the messages before the conversation: a failure in between
// leaves an empty conversation that can be deleted again, never orphaned
// messages that still count as unread.
func (s *ChatStore) Delete(ctx context.Context, id domainchat.ConversationID) error {
	if _, err := s.messages.DeleteMany(ctx, bson.M{"conversation_id": string(id)}); err != nil {
		return err
	}
	res, err := s.conversations.DeleteOne(ctx, bson.M{"_id": string(id)})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return domainchat.ErrConversationNotFound
	}
	return nil
}

// Append stores msg with the conversation's participants denormalized onto
// it so inbound counts need a single query.
func (s *ChatStore) Append(ctx context.Context, msg domainchat.Message) error {
	conv, err := s.ByID(ctx, msg.ConversationID)
	if err != nil {
		return err
	}
	_, err = s.messages.InsertOne(ctx, newMessageDocument(msg, conv.Participants))
	return err
}

func (s *ChatStore) List(ctx context.Context, id domainchat.ConversationID) ([]domainchat.Message, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.messages.Find(ctx, bson.M{"conversation_id": string(id)}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := make([]domainchat.Message, 0)
	for cur.Next(ctx) {
		var doc messageDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, doc.toDomain())
	}
	return out, cur.Err()
}

func (s *ChatStore) Last(ctx context.Context, id domainchat.ConversationID) (*domainchat.Message, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	var doc messageDocument
	if err := s.messages.FindOne(ctx, bson.M{"conversation_id": string(id)}, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	msg := doc.toDomain()
	return &msg, nil
}

func (s *ChatStore) CountInbound(ctx context.Context, userID string, since time.Time) (int, error) {
	filter := bson.M{
		"participants": userID,
		"sender_id":    bson.M{"$ne": userID},
	}
	if !since.IsZero() {
		filter["created_at"] = bson.M{"$gte": since.UTC().UnixNano()}
	}
	n, err := s.messages.CountDocuments(ctx, filter)
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

type conversationDocument struct {
	ID              string   `bson:"_id"`
	ParticipantLow  string   `bson:"participant_low"`
	ParticipantHigh string   `bson:"participant_high"`
	Participants    []string `bson:"participants"`
	ListingKey      string   `bson:"listing_key"`
	CreatedAt       int64    `bson:"created_at"`
	UpdatedAt       int64    `bson:"updated_at"`
}

func newConversationDocument(c domainchat.Conversation) conversationDocument {
	return conversationDocument{
		ID:              string(c.ID),
		ParticipantLow:  c.Participants.Low,
		ParticipantHigh: c.Participants.High,
		Participants:    []string{c.Participants.Low, c.Participants.High},
		ListingKey:      c.ListingID,
		CreatedAt:       c.CreatedAt.UTC().UnixNano(),
		UpdatedAt:       c.UpdatedAt.UTC().UnixNano(),
	}
}

func (d conversationDocument) toDomain() domainchat.Conversation {
	return domainchat.Conversation{
		ID:           domainchat.ConversationID(d.ID),
		Participants: domainchat.Pair{Low: d.ParticipantLow, High: d.ParticipantHigh},
		ListingID:    d.ListingKey,
		CreatedAt:    time.Unix(0, d.CreatedAt).UTC(),
		UpdatedAt:    time.Unix(0, d.UpdatedAt).UTC(),
	}
}

type messageDocument struct {
	ID             string   `bson:"_id"`
	ConversationID string   `bson:"conversation_id"`
	SenderID       string   `bson:"sender_id"`
	Participants   []string `bson:"participants"`
	Content        string   `bson:"content"`
	Kind           string   `bson:"kind"`
	CreatedAt      int64    `bson:"created_at"`
}

func newMessageDocument(m domainchat.Message, p domainchat.Pair) messageDocument {
	return messageDocument{
		ID:             string(m.ID),
		ConversationID: string(m.ConversationID),
		SenderID:       m.SenderID,
		Participants:   []string{p.Low, p.High},
		Content:        m.Content,
		Kind:           string(m.Kind),
		CreatedAt:      m.CreatedAt.UTC().UnixNano(),
	}
}

func (d messageDocument) toDomain() domainchat.Message {
	return domainchat.Message{
		ID:             domainchat.MessageID(d.ID),
		ConversationID: domainchat.ConversationID(d.ConversationID),
		SenderID:       d.SenderID,
		Content:        d.Content,
		Kind:           domainchat.MessageKind(d.Kind),
		CreatedAt:      time.Unix(0, d.CreatedAt).UTC(),
	}
}

var (
	_ domainchat.ConversationRepository = (*ChatStore)(nil)
	_ domainchat.MessageRepository      = (*ChatStore)(nil)
	_ domainchat.InboundCounter         = (*ChatStore)(nil)
)
