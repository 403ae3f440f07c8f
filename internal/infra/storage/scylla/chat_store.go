package scylla

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/gocql/gocql"

	domainchat "campusmarket/internal/domain/chat"
)

// ChatStore keeps conversations and messages in Scylla. The conversation
// key table is written with a lightweight transaction (IF NOT EXISTS), which
// is the uniqueness guarantee for concurrent first contact.
type ChatStore struct {
	session *gocql.Session
	logger  *slog.Logger
}

func NewChatStore(session *gocql.Session, logger *slog.Logger) *ChatStore {
	return &ChatStore{session: session, logger: logger}
}

func (s *ChatStore) FindByKey(ctx context.Context, key domainchat.Key) (*domainchat.Conversation, error) {
	var id string
	err := s.session.
		Query(`SELECT conversation_id FROM conversation_keys WHERE participant_low = ? AND participant_high = ? AND listing_key = ?`,
			key.Low, key.High, listingKey(key.ListingID)).
		WithContext(ctx).
		SerialConsistency(gocql.Serial).
		Consistency(gocql.Quorum).
		Scan(&id)
	if err != nil {
		if errors.Is(err, gocql.ErrNotFound) {
			return nil, domainchat.ErrConversationNotFound
		}
		return nil, err
	}
	return s.ByID(ctx, domainchat.ConversationID(id))
}

func (s *ChatStore) ByID(ctx context.Context, id domainchat.ConversationID) (*domainchat.Conversation, error) {
	var (
		low, high, listing string
		created, updated   int64
	)
	err := s.session.
		Query(`SELECT participant_low, participant_high, listing_key, created_ns, updated_ns FROM conversations WHERE id = ?`, string(id)).
		WithContext(ctx).
		Consistency(gocql.Quorum).
		Scan(&low, &high, &listing, &created, &updated)
	if err != nil {
		if errors.Is(err, gocql.ErrNotFound) {
			return nil, domainchat.ErrConversationNotFound
		}
		return nil, err
	}
	return &domainchat.Conversation{
		ID:           id,
		Participants: domainchat.Pair{Low: low, High: high},
		ListingID:    listingFromKey(listing),
		CreatedAt:    time.Unix(0, created).UTC(),
		UpdatedAt:    time.Unix(0, updated).UTC(),
	}, nil
}

// Insert writes the conversation row first and then claims the key. A lost
// claim removes the orphan row and reports ErrConversationExists, so a
// claimed key always points at a readable row.
func (s *ChatStore) Insert(ctx context.Context, conv domainchat.Conversation) error {
	if err := s.session.
		Query(`INSERT INTO conversations (id, participant_low, participant_high, listing_key, created_ns, updated_ns) VALUES (?, ?, ?, ?, ?, ?)`,
			string(conv.ID), conv.Participants.Low, conv.Participants.High, listingKey(conv.ListingID),
			conv.CreatedAt.UTC().UnixNano(), conv.UpdatedAt.UTC().UnixNano()).
		WithContext(ctx).
		Consistency(gocql.Quorum).
		Exec(); err != nil {
		return err
	}

	existing := map[string]interface{}{}
	applied, err := s.session.
		Query(`INSERT INTO conversation_keys (participant_low, participant_high, listing_key, conversation_id) VALUES (?, ?, ?, ?) IF NOT EXISTS`,
			conv.Participants.Low, conv.Participants.High, listingKey(conv.ListingID), string(conv.ID)).
		WithContext(ctx).
		SerialConsistency(gocql.Serial).
		MapScanCAS(existing)
	if err != nil {
		return err
	}
	if !applied {
		if err := s.session.Query(`DELETE FROM conversations WHERE id = ?`, string(conv.ID)).WithContext(ctx).Exec(); err != nil && s.logger != nil {
			s.logger.Warn("failed to remove orphan conversation row", "error", err, "conversation_id", conv.ID)
		}
		return domainchat.ErrConversationExists
	}

	batch := s.session.NewBatch(gocql.LoggedBatch).WithContext(ctx)
	batch.Query(`INSERT INTO conversations_by_user (user_id, conversation_id) VALUES (?, ?)`, conv.Participants.Low, string(conv.ID))
	batch.Query(`INSERT INTO conversations_by_user (user_id, conversation_id) VALUES (?, ?)`, conv.Participants.High, string(conv.ID))
	return s.session.ExecuteBatch(batch)
}

func (s *ChatStore) ListForUser(ctx context.Context, userID string) ([]domainchat.Conversation, error) {
	ids, err := s.conversationIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]domainchat.Conversation, 0, len(ids))
	for _, id := range ids {
		conv, err := s.ByID(ctx, id)
		if err != nil {
			if errors.Is(err, domainchat.ErrConversationNotFound) {
				continue
			}
			return nil, err
		}
		out = append(out, *conv)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

func (s *ChatStore) conversationIDs(ctx context.Context, userID string) ([]domainchat.ConversationID, error) {
	iter := s.session.
		Query(`SELECT conversation_id FROM conversations_by_user WHERE user_id = ?`, userID).
		WithContext(ctx).
		Iter()
	var (
		id  string
		ids []domainchat.ConversationID
	)
	for iter.Scan(&id) {
		ids = append(ids, domainchat.ConversationID(id))
	}
	if err := iter.Close(); err != nil {
		return nil, err
	}
	return ids, nil
}

// touchStatement only moves updated_ns forward, so concurrent appends
// cannot rewind it.
const touchStatement = `UPDATE conversations SET updated_ns = ? WHERE id = ? IF updated_ns < ?`

func (s *ChatStore) Touch(ctx context.Context, id domainchat.ConversationID, at time.Time) error {
	ns := at.UTC().UnixNano()
	applied, err := s.session.
		Query(touchStatement, ns, string(id), ns).
		WithContext(ctx).
		SerialConsistency(gocql.Serial).
		MapScanCAS(map[string]interface{}{})
	if err != nil {
		return err
	}
	if applied {
		return nil
	}
	// the condition also fails on a missing row, which is never created
	exists, err := s.exists(ctx, id)
	if err != nil {
		return err
	}
	return touchOutcome(exists)
}

// touchOutcome maps a rejected touch: a newer timestamp already stored is
// fine, a missing conversation is not.
func touchOutcome(exists bool) error {
	if !exists {
		return domainchat.ErrConversationNotFound
	}
	return nil
}

func (s *ChatStore) exists(ctx context.Context, id domainchat.ConversationID) (bool, error) {
	var found string
	err := s.session.
		Query(`SELECT id FROM conversations WHERE id = ?`, string(id)).
		WithContext(ctx).
		Scan(&found)
	if errors.Is(err, gocql.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *ChatStore) Delete(ctx context.Context, id domainchat.ConversationID) error {
	conv, err := s.ByID(ctx, id)
	if err != nil {
		return err
	}
	batch := s.session.NewBatch(gocql.LoggedBatch).WithContext(ctx)
	batch.Query(`DELETE FROM conversation_keys WHERE participant_low = ? AND participant_high = ? AND listing_key = ?`,
		conv.Participants.Low, conv.Participants.High, listingKey(conv.ListingID))
	batch.Query(`DELETE FROM conversations WHERE id = ?`, string(id))
	batch.Query(`DELETE FROM conversations_by_user WHERE user_id = ? AND conversation_id = ?`, conv.Participants.Low, string(id))
	batch.Query(`DELETE FROM conversations_by_user WHERE user_id = ? AND conversation_id = ?`, conv.Participants.High, string(id))
	batch.Query(`DELETE FROM messages WHERE conversation_id = ?`, string(id))
	return s.session.ExecuteBatch(batch)
}

func (s *ChatStore) Append(ctx context.Context, msg domainchat.Message) error {
	if _, err := s.ByID(ctx, msg.ConversationID); err != nil {
		return err
	}
	return s.session.
		Query(`INSERT INTO messages (conversation_id, created_ns, message_id, sender_id, content, kind) VALUES (?, ?, ?, ?, ?, ?)`,
			string(msg.ConversationID), msg.CreatedAt.UTC().UnixNano(), string(msg.ID), msg.SenderID, msg.Content, string(msg.Kind)).
		WithContext(ctx).
		Consistency(gocql.Quorum).
		Exec()
}

func (s *ChatStore) List(ctx context.Context, id domainchat.ConversationID) ([]domainchat.Message, error) {
	iter := s.session.
		Query(`SELECT created_ns, message_id, sender_id, content, kind FROM messages WHERE conversation_id = ?`, string(id)).
		WithContext(ctx).
		Iter()
	return scanMessages(id, iter)
}

func (s *ChatStore) Last(ctx context.Context, id domainchat.ConversationID) (*domainchat.Message, error) {
	iter := s.session.
		Query(`SELECT created_ns, message_id, sender_id, content, kind FROM messages WHERE conversation_id = ? ORDER BY created_ns DESC, message_id DESC LIMIT 1`, string(id)).
		WithContext(ctx).
		Iter()
	msgs, err := scanMessages(id, iter)
	if err != nil {
		return nil, err
	}
	if len(msgs) == 0 {
		return nil, nil
	}
	return &msgs[0], nil
}

// CountInbound walks the user's conversations; the messages table has no
// per-recipient index.
func (s *ChatStore) CountInbound(ctx context.Context, userID string, since time.Time) (int, error) {
	ids, err := s.conversationIDs(ctx, userID)
	if err != nil {
		return 0, err
	}
	var from int64
	if !since.IsZero() {
		from = since.UTC().UnixNano()
	}
	count := 0
	for _, id := range ids {
		iter := s.session.
			Query(`SELECT sender_id FROM messages WHERE conversation_id = ? AND created_ns >= ?`, string(id), from).
			WithContext(ctx).
			Iter()
		var sender string
		for iter.Scan(&sender) {
			if sender != userID {
				count++
			}
		}
		if err := iter.Close(); err != nil {
			return 0, err
		}
	}
	return count, nil
}

// generalListing stands in for the empty listing id, which cannot be a
// partition key component. Real listing ids carry listingPrefix so none of
// them can collide with it.
const (
	generalListing = "~general"
	listingPrefix  = "l:"
)

func listingKey(id string) string {
	if id == "" {
		return generalListing
	}
	return listingPrefix + id
}

func listingFromKey(key string) string {
	id, ok := strings.CutPrefix(key, listingPrefix)
	if !ok {
		return ""
	}
	return id
}

func scanMessages(id domainchat.ConversationID, iter *gocql.Iter) ([]domainchat.Message, error) {
	var (
		created                      int64
		msgID, sender, content, kind string
	)
	out := make([]domainchat.Message, 0)
	for iter.Scan(&created, &msgID, &sender, &content, &kind) {
		out = append(out, domainchat.Message{
			ID:             domainchat.MessageID(msgID),
			ConversationID: id,
			SenderID:       sender,
			Content:        content,
			Kind:           domainchat.MessageKind(kind),
			CreatedAt:      time.Unix(0, created).UTC(),
		})
	}
	if err := iter.Close(); err != nil {
		return nil, err
	}
	return out, nil
}

var (
	_ domainchat.ConversationRepository = (*ChatStore)(nil)
	_ domainchat.MessageRepository      = (*ChatStore)(nil)
	_ domainchat.InboundCounter         = (*ChatStore)(nil)
)
