package coordinator

import (
	"context"
	"errors"
	"sync"
	"time"

	appchat "campusmarket/internal/app/chat"
	"campusmarket/internal/app/realtime"
	"campusmarket/internal/app/unread"
	domainchat "campusmarket/internal/domain/chat"
	"campusmarket/internal/domain/shared/fault"
)

const liveUpdateBuffer = 64

var ErrNothingSelected = fault.New(fault.KindValidation, "coordinator: no conversation selected")

// Live is one signed-in session attached to the push feed: the selected
// conversation's merged view, the live unread flag and a coalesced
// conversation list refresh.
type Live struct {
	coord     *Coordinator
	session   Session
	sub       *realtime.Subscription
	merger    *realtime.Merger
	indicator *unread.Indicator
	refresher *realtime.Coalescer
	cancel    context.CancelFunc
	wg        sync.WaitGroup

	mu            sync.RWMutex
	selected      domainchat.ConversationID
	conversations []appchat.Summary
	updates       chan realtime.Update
	closed        bool
}

// Attach starts a live session. It stays attached until ctx ends or Close
// is called.
func (c *Coordinator) Attach(ctx context.Context, s Session) (*Live, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	if c.hub == nil {
		return nil, errors.New("coordinator: realtime feed not configured")
	}
	lastSeen, err := c.unread.LastSeen(ctx, s.UserID, s.DeviceID)
	if err != nil {
		return nil, err
	}
	hasUnread, err := c.unread.HasUnread(ctx, s.UserID, s.DeviceID)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	l := &Live{
		coord:     c,
		session:   s,
		sub:       c.hub.Subscribe(s.UserID),
		indicator: unread.NewIndicator(s.UserID, hasUnread, lastSeen),
		cancel:    cancel,
		updates:   make(chan realtime.Update, liveUpdateBuffer),
	}
	l.refresher = realtime.NewCoalescer(c.debounce, l.refreshConversations)
	l.merger = realtime.NewMerger(realtime.MergerConfig{
		History:      historyFor{coord: c, session: s},
		Subscription: l.sub,
		OnPush:       l.onPush,
		OnLag:        l.onLag,
		Emit:         l.emit,
		Logger:       c.logger,
	})

	l.wg.Add(2)
	go func() {
		defer l.wg.Done()
		if err := l.merger.Run(runCtx); err != nil && runCtx.Err() == nil && c.logger != nil {
			c.logger.Warn("live session merge loop stopped", "error", err, "user_id", s.UserID)
		}
	}()
	go func() {
		defer l.wg.Done()
		l.refresher.Run(runCtx)
	}()
	l.refresher.Request()
	return l, nil
}

// Select switches the live view to id after checking the session user takes
// part in it. An empty id detaches from any conversation.
func (l *Live) Select(ctx context.Context, id domainchat.ConversationID) error {
	if id != "" {
		conv, err := l.coord.messages.Conversation(ctx, id)
		if err != nil {
			return err
		}
		if !conv.Participants.Has(l.session.UserID) {
			return domainchat.ErrNotParticipant
		}
	}
	l.mu.Lock()
	l.selected = id
	l.mu.Unlock()
	return l.merger.Select(ctx, id)
}

// Selected returns the conversation chosen by the last Select.
func (l *Live) Selected() domainchat.ConversationID {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.selected
}

// Send appends content to the selected conversation. The stored message
// reaches the view through the feed.
func (l *Live) Send(ctx context.Context, content string) (domainchat.Message, error) {
	id := l.Selected()
	if id == "" {
		return domainchat.Message{}, ErrNothingSelected
	}
	return l.coord.SendMessage(ctx, l.session, id, content)
}

// Messages returns the merged view of the selected conversation.
func (l *Live) Messages() []domainchat.Message {
	return l.merger.Messages()
}

func (l *Live) State() realtime.State {
	return l.merger.State()
}

func (l *Live) HasUnread() bool {
	return l.indicator.Unread()
}

// Conversations returns the last refreshed conversation list.
func (l *Live) Conversations() []appchat.Summary {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]appchat.Summary, len(l.conversations))
	copy(out, l.conversations)
	return out
}

// MarkSeen moves the cursor and lowers the live flag unless a newer push
// already arrived.
func (l *Live) MarkSeen(ctx context.Context) error {
	at, err := l.coord.MarkSeen(ctx, l.session)
	if err != nil {
		return err
	}
	cleared := l.indicator.MarkSeen(at)
	l.emit(realtime.Update{Kind: realtime.UpdateUnread, Unread: !cleared})
	l.refresher.Request()
	return nil
}

// Updates streams change notifications. Slow readers lose updates, never
// state: the accessors always return the current values.
func (l *Live) Updates() <-chan realtime.Update {
	return l.updates
}

// Close detaches from the feed and stops background work.
func (l *Live) Close() {
	l.cancel()
	l.sub.Close()
	l.wg.Wait()
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.closed {
		l.closed = true
		close(l.updates)
	}
}

func (l *Live) onPush(msg domainchat.Message) {
	if l.indicator.Observe(msg) {
		l.emit(realtime.Update{Kind: realtime.UpdateUnread, ConversationID: msg.ConversationID, Unread: true})
	}
	l.refresher.Request()
}

// onLag recomputes the unread flag from storage since pushes were dropped.
func (l *Live) onLag() {
	l.refresher.Request()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		has, err := l.coord.unread.HasUnread(ctx, l.session.UserID, l.session.DeviceID)
		if err != nil {
			if l.coord.logger != nil {
				l.coord.logger.Warn("unread recount failed", "error", err, "user_id", l.session.UserID)
			}
			return
		}
		if has && l.indicator.Raise() {
			l.emit(realtime.Update{Kind: realtime.UpdateUnread, Unread: true})
		}
	}()
}

func (l *Live) refreshConversations(ctx context.Context) {
	list, err := l.coord.listConversations(ctx, l.session, l.indicator.LastSeen())
	if err != nil {
		if ctx.Err() == nil && l.coord.logger != nil {
			l.coord.logger.Warn("conversation list refresh failed", "error", err, "user_id", l.session.UserID)
		}
		return
	}
	l.mu.Lock()
	l.conversations = list
	l.mu.Unlock()
	l.emit(realtime.Update{Kind: realtime.UpdateConversations})
}

func (l *Live) emit(u realtime.Update) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return
	}
	select {
	case l.updates <- u:
	default:
	}
}

// historyFor reads history with the session's access checks.
type historyFor struct {
	coord   *Coordinator
	session Session
}

func (h historyFor) List(ctx context.Context, id domainchat.ConversationID) ([]domainchat.Message, error) {
	return h.coord.ListMessages(ctx, h.session, id)
}
