package realtime

import (
	"sort"

	domainchat "campusmarket/internal/domain/chat"
)

// View is the ordered, duplicate-free message list of one conversation. It
// is owned by a single goroutine.
type View struct {
	conversation domainchat.ConversationID
	msgs         []domainchat.Message
	ids          map[domainchat.MessageID]struct{}
}

func NewView(id domainchat.ConversationID) *View {
	return &View{conversation: id, ids: make(map[domainchat.MessageID]struct{})}
}

func (v *View) ConversationID() domainchat.ConversationID {
	return v.conversation
}

// Merge inserts msg at its (CreatedAt, ID) position. Messages of another
// conversation and ids already present are discarded; the return value says
// whether the view changed.
func (v *View) Merge(msg domainchat.Message) bool {
	if v.conversation == "" || msg.ConversationID != v.conversation {
		return false
	}
	if _, dup := v.ids[msg.ID]; dup {
		return false
	}
	idx := sort.Search(len(v.msgs), func(i int) bool { return domainchat.Less(msg, v.msgs[i]) })
	v.msgs = append(v.msgs, domainchat.Message{})
	copy(v.msgs[idx+1:], v.msgs[idx:])
	v.msgs[idx] = msg
	v.ids[msg.ID] = struct{}{}
	return true
}

// MergeAll merges a fetched batch and reports how many messages were new.
// Pushes that arrived before the batch stay in the view.
func (v *View) MergeAll(msgs []domainchat.Message) int {
	added := 0
	for _, m := range msgs {
		if v.Merge(m) {
			added++
		}
	}
	return added
}

// Reset empties the view and points it at id.
func (v *View) Reset(id domainchat.ConversationID) {
	v.conversation = id
	v.msgs = nil
	v.ids = make(map[domainchat.MessageID]struct{})
}

func (v *View) Len() int {
	return len(v.msgs)
}

// Snapshot returns a copy safe to hand to other goroutines.
func (v *View) Snapshot() []domainchat.Message {
	out := make([]domainchat.Message, len(v.msgs))
	copy(out, v.msgs)
	return out
}
