package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	domainchat "campusmarket/internal/domain/chat"
)

// ChatStore keeps conversations and messages in memory. The key index plays
// the role of the storage-level uniqueness constraint.
type ChatStore struct {
	mu            sync.RWMutex
	conversations map[domainchat.ConversationID]domainchat.Conversation
	byKey         map[domainchat.Key]domainchat.ConversationID
	messages      map[domainchat.ConversationID][]domainchat.Message
}

// NewChatStore builds an empty store.
func NewChatStore() *ChatStore {
	return &ChatStore{
		conversations: make(map[domainchat.ConversationID]domainchat.Conversation),
		byKey:         make(map[domainchat.Key]domainchat.ConversationID),
		messages:      make(map[domainchat.ConversationID][]domainchat.Message),
	}
}

func (s *ChatStore) FindByKey(ctx context.Context, key domainchat.Key) (*domainchat.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byKey[key]
	if !ok {
		return nil, domainchat.ErrConversationNotFound
	}
	conv := s.conversations[id]
	return &conv, nil
}

func (s *ChatStore) Insert(ctx context.Context, conv domainchat.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := conv.Key()
	if _, exists := s.byKey[key]; exists {
		return domainchat.ErrConversationExists
	}
	if _, exists := s.conversations[conv.ID]; exists {
		return domainchat.ErrConversationExists
	}
	s.conversations[conv.ID] = conv
	s.byKey[key] = conv.ID
	return nil
}

func (s *ChatStore) ByID(ctx context.Context, id domainchat.ConversationID) (*domainchat.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conv, ok := s.conversations[id]
	if !ok {
		return nil, domainchat.ErrConversationNotFound
	}
	return &conv, nil
}

func (s *ChatStore) ListForUser(ctx context.Context, userID string) ([]domainchat.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domainchat.Conversation, 0)
	for _, conv := range s.conversations {
		if conv.Participants.Has(userID) {
			out = append(out, conv)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

func (s *ChatStore) Touch(ctx context.Context, id domainchat.ConversationID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.conversations[id]
	if !ok {
		return domainchat.ErrConversationNotFound
	}
	if at.After(conv.UpdatedAt) {
		conv.UpdatedAt = at.UTC()
		s.conversations[id] = conv
	}
	return nil
}

func (s *ChatStore) Delete(ctx context.Context, id domainchat.ConversationID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.conversations[id]
	if !ok {
		return domainchat.ErrConversationNotFound
	}
	delete(s.byKey, conv.Key())
	delete(s.conversations, id)
	delete(s.messages, id)
	return nil
}

func (s *ChatStore) Append(ctx context.Context, msg domainchat.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conversations[msg.ConversationID]; !ok {
		return domainchat.ErrConversationNotFound
	}
	log := s.messages[msg.ConversationID]
	idx := sort.Search(len(log), func(i int) bool { return domainchat.Less(msg, log[i]) })
	log = append(log, domainchat.Message{})
	copy(log[idx+1:], log[idx:])
	log[idx] = msg
	s.messages[msg.ConversationID] = log
	return nil
}

func (s *ChatStore) List(ctx context.Context, id domainchat.ConversationID) ([]domainchat.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	log := s.messages[id]
	out := make([]domainchat.Message, len(log))
	copy(out, log)
	return out, nil
}

func (s *ChatStore) Last(ctx context.Context, id domainchat.ConversationID) (*domainchat.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	log := s.messages[id]
	if len(log) == 0 {
		return nil, nil
	}
	last := log[len(log)-1]
	return &last, nil
}

func (s *ChatStore) CountInbound(ctx context.Context, userID string, since time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for id, conv := range s.conversations {
		if !conv.Participants.Has(userID) {
			continue
		}
		for _, msg := range s.messages[id] {
			if msg.UnreadFor(userID, since) {
				count++
			}
		}
	}
	return count, nil
}

var (
	_ domainchat.ConversationRepository = (*ChatStore)(nil)
	_ domainchat.MessageRepository      = (*ChatStore)(nil)
	_ domainchat.InboundCounter         = (*ChatStore)(nil)
)
