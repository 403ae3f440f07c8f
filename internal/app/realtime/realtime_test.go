package realtime

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainchat "campusmarket/internal/domain/chat"
)

var t0 = time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

func msg(conv domainchat.ConversationID, id string, offset int) domainchat.Message {
	return domainchat.Message{
		ID:             domainchat.MessageID(id),
		ConversationID: conv,
		SenderID:       "bob",
		Content:        id,
		Kind:           domainchat.KindUser,
		CreatedAt:      t0.Add(time.Duration(offset) * time.Second),
	}
}

func posted(t *testing.T, m domainchat.Message, a, b string) domainchat.MessagePosted {
	t.Helper()
	pair, err := domainchat.NewPair(a, b)
	require.NoError(t, err)
	return domainchat.MessagePosted{Message: m, Participants: pair}
}

func ids(msgs []domainchat.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = string(m.ID)
	}
	return out
}

func TestViewMergeOrdersAndDeduplicates(t *testing.T) {
	v := NewView("c1")

	assert.True(t, v.Merge(msg("c1", "b", 2)))
	assert.True(t, v.Merge(msg("c1", "a", 1)))
	assert.True(t, v.Merge(msg("c1", "a2", 1)), "timestamp tie is ordered by id")
	assert.False(t, v.Merge(msg("c1", "a", 1)))
	assert.False(t, v.Merge(msg("c2", "x", 0)))

	assert.Equal(t, []string{"a", "a2", "b"}, ids(v.Snapshot()))

	added := v.MergeAll([]domainchat.Message{msg("c1", "a", 1), msg("c1", "c", 3)})
	assert.Equal(t, 1, added)
	assert.Equal(t, 4, v.Len())

	v.Reset("c2")
	assert.Zero(t, v.Len())
	assert.Equal(t, domainchat.ConversationID("c2"), v.ConversationID())

	detached := NewView("")
	assert.False(t, detached.Merge(msg("c1", "a", 1)))
}

func TestHubRoutesToParticipantsOnly(t *testing.T) {
	hub := NewHub(4, nil)
	alice := hub.Subscribe("alice")
	carol := hub.Subscribe("carol")
	all := hub.Subscribe("")
	defer hub.Close()

	require.NoError(t, hub.Publish(context.Background(), posted(t, msg("c1", "m1", 0), "alice", "bob")))

	select {
	case evt := <-alice.C():
		assert.Equal(t, domainchat.MessageID("m1"), evt.Message.ID)
	default:
		t.Fatal("participant did not receive the event")
	}
	select {
	case <-carol.C():
		t.Fatal("non-participant received the event")
	default:
	}
	assert.Len(t, all.C(), 1)
	assert.Equal(t, 3, hub.Subscribers())
}

func TestHubMarksSlowSubscribersLagged(t *testing.T) {
	hub := NewHub(1, nil)
	sub := hub.Subscribe("alice")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, hub.Publish(ctx, posted(t, msg("c1", fmt.Sprintf("m%d", i), i), "alice", "bob")))
	}

	select {
	case <-sub.Lagged():
	default:
		t.Fatal("lag not signalled")
	}
	assert.EqualValues(t, 2, sub.Missed())
	assert.EqualValues(t, 0, sub.Missed())
	assert.Len(t, sub.C(), 1)
}

func TestHubCloseDetachesSubscribers(t *testing.T) {
	hub := NewHub(1, nil)
	sub := hub.Subscribe("alice")
	sub.Close()
	sub.Close()
	assert.Equal(t, 0, hub.Subscribers())

	live := hub.Subscribe("alice")
	hub.Close()
	hub.Close()
	_, ok := <-live.C()
	assert.False(t, ok)
	live.Close()

	late := hub.Subscribe("alice")
	_, ok = <-late.C()
	assert.False(t, ok)
	assert.ErrorIs(t, hub.Publish(context.Background(), posted(t, msg("c1", "m", 0), "alice", "bob")), ErrHubClosed)
}

// gatedHistory serves fixed histories; a conversation with a gate blocks
// until the gate is closed.
type gatedHistory struct {
	mu    sync.Mutex
	data  map[domainchat.ConversationID][]domainchat.Message
	gates map[domainchat.ConversationID]chan struct{}
	calls map[domainchat.ConversationID]int
	fail  map[domainchat.ConversationID]error
}

func newGatedHistory() *gatedHistory {
	return &gatedHistory{
		data:  make(map[domainchat.ConversationID][]domainchat.Message),
		gates: make(map[domainchat.ConversationID]chan struct{}),
		calls: make(map[domainchat.ConversationID]int),
		fail:  make(map[domainchat.ConversationID]error),
	}
}

func (h *gatedHistory) set(id domainchat.ConversationID, msgs ...domainchat.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.data[id] = msgs
}

func (h *gatedHistory) gate(id domainchat.ConversationID) chan struct{} {
	h.mu.Lock()
	defer h.mu.Unlock()
	g := make(chan struct{})
	h.gates[id] = g
	return g
}

func (h *gatedHistory) callCount(id domainchat.ConversationID) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.calls[id]
}

func (h *gatedHistory) List(ctx context.Context, id domainchat.ConversationID) ([]domainchat.Message, error) {
	h.mu.Lock()
	h.calls[id]++
	gate := h.gates[id]
	h.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.fail[id]; err != nil {
		return nil, err
	}
	out := make([]domainchat.Message, len(h.data[id]))
	copy(out, h.data[id])
	return out, nil
}

type updateLog struct {
	mu      sync.Mutex
	updates []Update
}

func (l *updateLog) add(u Update) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.updates = append(l.updates, u)
}

func (l *updateLog) has(kind UpdateKind) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, u := range l.updates {
		if u.Kind == kind {
			return true
		}
	}
	return false
}

func startMerger(t *testing.T, cfg MergerConfig) (*Merger, context.CancelFunc) {
	t.Helper()
	m := NewMerger(cfg)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = m.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return m, cancel
}

func TestMergerDiscardsFetchOfPreviousSelection(t *testing.T) {
	hub := NewHub(8, nil)
	history := newGatedHistory()
	history.set("A", msg("A", "a1", 1), msg("A", "a2", 2))
	history.set("B", msg("B", "b1", 1))
	gateA := history.gate("A")
	log := &updateLog{}

	m, _ := startMerger(t, MergerConfig{History: history, Subscription: hub.Subscribe("alice"), Emit: log.add})
	ctx := context.Background()

	require.NoError(t, m.Select(ctx, "A"))
	require.Eventually(t, func() bool { return history.callCount("A") == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, StateLoading, m.State())

	require.NoError(t, m.Select(ctx, "B"))
	require.Eventually(t, func() bool { return m.State() == StateSynced && m.Selected() == "B" }, time.Second, 5*time.Millisecond)

	close(gateA)
	require.Eventually(t, func() bool { return history.callCount("A") == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	assert.Equal(t, []string{"b1"}, ids(m.Messages()))
	assert.Equal(t, domainchat.ConversationID("B"), m.Selected())
	assert.True(t, log.has(UpdateState))
}

func TestMergerKeepsPushesThatBeatTheFetch(t *testing.T) {
	hub := NewHub(8, nil)
	history := newGatedHistory()
	history.set("A", msg("A", "a1", 1), msg("A", "a2", 2))
	gate := history.gate("A")
	var pushes atomic.Int64
	log := &updateLog{}

	m, _ := startMerger(t, MergerConfig{
		History:      history,
		Subscription: hub.Subscribe("alice"),
		OnPush:       func(domainchat.Message) { pushes.Add(1) },
		Emit:         log.add,
	})
	ctx := context.Background()

	require.NoError(t, m.Select(ctx, "A"))
	require.Eventually(t, func() bool { return history.callCount("A") == 1 }, time.Second, 5*time.Millisecond)

	// a3 was inserted after the history snapshot was taken
	require.NoError(t, hub.Publish(ctx, posted(t, msg("A", "a3", 3), "alice", "bob")))
	// a message for another conversation only counts for the unread flag
	require.NoError(t, hub.Publish(ctx, posted(t, msg("Z", "z1", 0), "alice", "carol")))
	require.Eventually(t, func() bool { return pushes.Load() == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"a3"}, ids(m.Messages()))

	close(gate)
	require.Eventually(t, func() bool { return m.State() == StateSynced }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"a1", "a2", "a3"}, ids(m.Messages()))

	// a late duplicate push changes nothing
	require.NoError(t, hub.Publish(ctx, posted(t, msg("A", "a2", 2), "alice", "bob")))
	require.Eventually(t, func() bool { return pushes.Load() == 3 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"a1", "a2", "a3"}, ids(m.Messages()))
	assert.True(t, log.has(UpdateMessage))
}

func TestMergerResyncsAfterLag(t *testing.T) {
	hub := NewHub(1, nil)
	sub := hub.Subscribe("alice")
	history := newGatedHistory()
	ctx := context.Background()

	all := []domainchat.Message{msg("A", "a1", 1), msg("A", "a2", 2), msg("A", "a3", 3)}
	history.set("A", all...)
	for _, m := range all {
		require.NoError(t, hub.Publish(ctx, posted(t, m, "alice", "bob")))
	}

	var lags atomic.Int64
	m, _ := startMerger(t, MergerConfig{History: history, Subscription: sub, OnLag: func() { lags.Add(1) }})
	require.NoError(t, m.Select(ctx, "A"))

	require.Eventually(t, func() bool {
		return m.State() == StateSynced && len(m.Messages()) == 3 && lags.Load() == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"a1", "a2", "a3"}, ids(m.Messages()))
}

func TestMergerReselectRetriesFailedFetch(t *testing.T) {
	hub := NewHub(8, nil)
	history := newGatedHistory()
	history.set("A", msg("A", "a1", 1))
	history.fail["A"] = fmt.Errorf("mongo: timeout")
	log := &updateLog{}

	m, _ := startMerger(t, MergerConfig{History: history, Subscription: hub.Subscribe("alice"), Emit: log.add})
	ctx := context.Background()

	require.NoError(t, m.Select(ctx, "A"))
	require.Eventually(t, func() bool { return log.has(UpdateError) }, time.Second, 5*time.Millisecond)
	assert.Equal(t, StateLoading, m.State())

	history.mu.Lock()
	delete(history.fail, "A")
	history.mu.Unlock()

	require.NoError(t, m.Select(ctx, "A"))
	require.Eventually(t, func() bool { return m.State() == StateSynced }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"a1"}, ids(m.Messages()))
	assert.Equal(t, 2, history.callCount("A"))

	require.NoError(t, m.Select(ctx, ""))
	require.Eventually(t, func() bool { return m.State() == StateIdle }, time.Second, 5*time.Millisecond)
	assert.Empty(t, m.Messages())
}

func TestMergerStopsWhenHubCloses(t *testing.T) {
	hub := NewHub(1, nil)
	m := NewMerger(MergerConfig{History: newGatedHistory(), Subscription: hub.Subscribe("alice")})
	errc := make(chan error, 1)
	go func() { errc <- m.Run(context.Background()) }()

	hub.Close()
	select {
	case err := <-errc:
		assert.ErrorIs(t, err, ErrHubClosed)
	case <-time.After(time.Second):
		t.Fatal("merger did not stop")
	}
	assert.ErrorIs(t, m.Select(context.Background(), "A"), ErrMergerStopped)
}

func TestCoalescerCollapsesBursts(t *testing.T) {
	var runs atomic.Int64
	release := make(chan struct{})
	started := make(chan struct{}, 16)
	c := NewCoalescer(0, func(ctx context.Context) {
		runs.Add(1)
		started <- struct{}{}
		<-release
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	c.Request()
	<-started
	for i := 0; i < 10; i++ {
		c.Request()
	}
	close(release)

	require.Eventually(t, func() bool { return runs.Load() == 2 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.EqualValues(t, 2, runs.Load())
}

func TestCoalescerDebounces(t *testing.T) {
	var runs atomic.Int64
	c := NewCoalescer(30*time.Millisecond, func(ctx context.Context) { runs.Add(1) })
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	for i := 0; i < 5; i++ {
		c.Request()
		time.Sleep(2 * time.Millisecond)
	}
	require.Eventually(t, func() bool { return runs.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(60 * time.Millisecond)
	assert.EqualValues(t, 1, runs.Load())
}
