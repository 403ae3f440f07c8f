package realtime

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	domainchat "campusmarket/internal/domain/chat"
)

type State string

const (
	StateIdle    State = "idle"
	StateLoading State = "loading"
	StateSynced  State = "synced"
)

type UpdateKind string

const (
	UpdateMessage       UpdateKind = "message"
	UpdateState         UpdateKind = "state"
	UpdateError         UpdateKind = "error"
	UpdateConversations UpdateKind = "conversations"
	UpdateUnread        UpdateKind = "unread"
)

// Update is a change notification for a live session. Updates are advisory:
// readers that miss one re-read the current snapshot.
type Update struct {
	Kind           UpdateKind
	ConversationID domainchat.ConversationID
	Message        *domainchat.Message
	State          State
	Unread         bool
	Err            error
}

var ErrMergerStopped = errors.New("realtime: merger stopped")

// HistorySource loads the durable history of a conversation.
type HistorySource interface {
	List(ctx context.Context, id domainchat.ConversationID) ([]domainchat.Message, error)
}

type MergerConfig struct {
	History      HistorySource
	Subscription *Subscription
	// OnPush sees every pushed message, whatever conversation it targets.
	// It runs on the merge loop and must not block.
	OnPush func(domainchat.Message)
	// OnLag runs on the merge loop after the subscription dropped messages.
	OnLag  func()
	Emit   func(Update)
	Logger *slog.Logger
}

type selectCmd struct {
	id domainchat.ConversationID
}

type fetchResult struct {
	id   domainchat.ConversationID
	gen  uint64
	msgs []domainchat.Message
	err  error
}

// Merger keeps the selected conversation's view consistent with the push
// feed and with bulk fetches. All mutation happens on the Run goroutine;
// fetch results are applied only while their conversation is still selected.
type Merger struct {
	cfg      MergerConfig
	commands chan selectCmd
	results  chan fetchResult
	done     chan struct{}

	// owned by Run
	view *View
	gen  uint64

	mu       sync.RWMutex
	state    State
	selected domainchat.ConversationID
	snapshot []domainchat.Message
}

func NewMerger(cfg MergerConfig) *Merger {
	return &Merger{
		cfg:      cfg,
		commands: make(chan selectCmd, 8),
		results:  make(chan fetchResult, 8),
		done:     make(chan struct{}),
		view:     NewView(""),
		state:    StateIdle,
	}
}

// Select switches the view to id; an empty id detaches. The switch happens
// asynchronously on the merge loop.
func (m *Merger) Select(ctx context.Context, id domainchat.ConversationID) error {
	select {
	case m.commands <- selectCmd{id: id}:
		return nil
	case <-m.done:
		return ErrMergerStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Merger) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

func (m *Merger) Selected() domainchat.ConversationID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.selected
}

// Messages returns the current ordered view.
func (m *Merger) Messages() []domainchat.Message {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domainchat.Message, len(m.snapshot))
	copy(out, m.snapshot)
	return out
}

// Run consumes commands, fetch results and the subscription until ctx is
// done or the feed closes.
func (m *Merger) Run(ctx context.Context) error {
	defer close(m.done)
	sub := m.cfg.Subscription
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case cmd := <-m.commands:
			m.switchTo(ctx, cmd.id)
		case res := <-m.results:
			m.apply(res)
		case evt, ok := <-sub.C():
			if !ok {
				return ErrHubClosed
			}
			m.push(evt.Message)
		case <-sub.Lagged():
			m.resync(ctx)
		}
	}
}

func (m *Merger) switchTo(ctx context.Context, id domainchat.ConversationID) {
	if id == m.view.ConversationID() {
		// reselecting retries a fetch that has not synced yet
		if id != "" && m.State() != StateSynced {
			m.gen++
			m.fetch(ctx, id, m.gen)
		}
		return
	}
	m.view.Reset(id)
	m.gen++
	if id == "" {
		m.publish(StateIdle)
		return
	}
	m.publish(StateLoading)
	m.fetch(ctx, id, m.gen)
}

func (m *Merger) fetch(ctx context.Context, id domainchat.ConversationID, gen uint64) {
	go func() {
		msgs, err := m.cfg.History.List(ctx, id)
		select {
		case m.results <- fetchResult{id: id, gen: gen, msgs: msgs, err: err}:
		case <-m.done:
		case <-ctx.Done():
		}
	}()
}

func (m *Merger) apply(res fetchResult) {
	if res.id != m.view.ConversationID() {
		m.debug("discarding fetch for detached conversation", "conversation_id", res.id)
		return
	}
	if res.err != nil {
		if res.gen != m.gen {
			return
		}
		if m.cfg.Logger != nil {
			m.cfg.Logger.Warn("history fetch failed", "error", res.err, "conversation_id", res.id)
		}
		m.emit(Update{Kind: UpdateError, ConversationID: res.id, Err: res.err})
		return
	}
	m.view.MergeAll(res.msgs)
	if res.gen == m.gen {
		m.publish(StateSynced)
		return
	}
	m.publish(m.State())
}

func (m *Merger) push(msg domainchat.Message) {
	if m.cfg.OnPush != nil {
		m.cfg.OnPush(msg)
	}
	if !m.view.Merge(msg) {
		return
	}
	m.publish(m.State())
	copyMsg := msg
	m.emit(Update{Kind: UpdateMessage, ConversationID: msg.ConversationID, Message: &copyMsg})
}

// resync re-reads the selected conversation after the feed dropped pushes.
func (m *Merger) resync(ctx context.Context) {
	missed := m.cfg.Subscription.Missed()
	if m.cfg.Logger != nil {
		m.cfg.Logger.Warn("realtime feed lagged, resyncing", "missed", missed, "conversation_id", m.view.ConversationID())
	}
	if m.cfg.OnLag != nil {
		m.cfg.OnLag()
	}
	id := m.view.ConversationID()
	if id == "" {
		return
	}
	m.gen++
	m.publish(StateLoading)
	m.fetch(ctx, id, m.gen)
}

// publish stores the snapshot and state for readers and announces state
// changes.
func (m *Merger) publish(state State) {
	snapshot := m.view.Snapshot()
	id := m.view.ConversationID()
	m.mu.Lock()
	changed := m.state != state || m.selected != id
	m.state = state
	m.selected = id
	m.snapshot = snapshot
	m.mu.Unlock()
	if changed {
		m.emit(Update{Kind: UpdateState, ConversationID: id, State: state})
	}
}

func (m *Merger) emit(u Update) {
	if m.cfg.Emit != nil {
		m.cfg.Emit(u)
	}
}

func (m *Merger) debug(msg string, args ...any) {
	if m.cfg.Logger != nil {
		m.cfg.Logger.Debug(msg, args...)
	}
}
