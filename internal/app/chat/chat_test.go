package chat_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appchat "campusmarket/internal/app/chat"
	domainchat "campusmarket/internal/domain/chat"
	domainlistings "campusmarket/internal/domain/listings"
	domainprofiles "campusmarket/internal/domain/profiles"
	"campusmarket/internal/domain/shared/fault"
	"campusmarket/internal/domain/shared/money"
	"campusmarket/internal/infra/storage/memory"
)

type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *stepClock {
	return &stepClock{now: time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)}
}

// Now advances one second per call so every write gets a distinct stamp.
func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

func sequence(prefix string) func() string {
	var n atomic.Int64
	return func() string { return fmt.Sprintf("%s-%03d", prefix, n.Add(1)) }
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []domainchat.MessagePosted
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, evt domainchat.MessagePosted) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return p.err
}

type fixture struct {
	store    *memory.ChatStore
	clock    *stepClock
	resolver *appchat.Resolver
	messages *appchat.MessageService
	pub      *recordingPublisher
}

func newFixture() fixture {
	store := memory.NewChatStore()
	clock := newClock()
	pub := &recordingPublisher{}
	return fixture{
		store:    store,
		clock:    clock,
		resolver: &appchat.Resolver{Conversations: store, NewID: sequence("conv"), Now: clock.Now},
		messages: &appchat.MessageService{
			Conversations: store,
			Messages:      store,
			Publisher:     pub,
			NewID:         sequence("msg"),
			Now:           clock.Now,
		},
		pub: pub,
	}
}

func TestResolveIsIdempotentAndSymmetric(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	first, err := f.resolver.Resolve(ctx, "alice", "bob", "L1")
	require.NoError(t, err)
	again, err := f.resolver.Resolve(ctx, "alice", "bob", "L1")
	require.NoError(t, err)
	reversed, err := f.resolver.Resolve(ctx, "bob", "alice", "L1")
	require.NoError(t, err)

	assert.Equal(t, first, again)
	assert.Equal(t, first, reversed)
}

func TestResolveSeparatesListingsAndGeneralConversation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	general, err := f.resolver.Resolve(ctx, "alice", "bob", "")
	require.NoError(t, err)
	l1, err := f.resolver.Resolve(ctx, "alice", "bob", "L1")
	require.NoError(t, err)
	l2, err := f.resolver.Resolve(ctx, "bob", "alice", "L2")
	require.NoError(t, err)

	assert.NotEqual(t, general, l1)
	assert.NotEqual(t, l1, l2)
	assert.NotEqual(t, general, l2)
}

func TestResolveRejectsSelfConversation(t *testing.T) {
	f := newFixture()
	_, err := f.resolver.Resolve(context.Background(), "alice", "alice", "")
	assert.ErrorIs(t, err, domainchat.ErrInvalidParticipants)
	assert.ErrorIs(t, err, fault.ErrValidation)
}

func TestResolveConcurrentFromBothSidesYieldsOneConversation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	const callers = 32
	ids := make([]domainchat.ConversationID, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			a, b := "alice", "bob"
			if i%2 == 1 {
				a, b = b, a
			}
			ids[i], errs[i] = f.resolver.Resolve(ctx, a, b, "L1")
		}(i)
	}
	close(start)
	wg.Wait()

	for i := range ids {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
	}
	convs, err := f.store.ListForUser(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, convs, 1)
}

// racingRepo hides the winner's row from the first lookup, the way a
// concurrent insert looks to the losing caller.
type racingRepo struct {
	*memory.ChatStore
	winner  domainchat.Conversation
	lookups atomic.Int64
}

func (r *racingRepo) FindByKey(ctx context.Context, key domainchat.Key) (*domainchat.Conversation, error) {
	if r.lookups.Add(1) == 1 {
		if err := r.ChatStore.Insert(ctx, r.winner); err != nil {
			return nil, err
		}
		return nil, domainchat.ErrConversationNotFound
	}
	return r.ChatStore.FindByKey(ctx, key)
}

func TestResolveReturnsWinnerAfterLosingInsertRace(t *testing.T) {
	key, err := domainchat.NewKey("alice", "bob", "L1")
	require.NoError(t, err)
	repo := &racingRepo{
		ChatStore: memory.NewChatStore(),
		winner:    domainchat.NewConversation("winner", key, time.Now()),
	}
	resolver := &appchat.Resolver{Conversations: repo, NewID: sequence("loser")}

	id, err := resolver.Resolve(context.Background(), "bob", "alice", "L1")
	require.NoError(t, err)
	assert.Equal(t, domainchat.ConversationID("winner"), id)
	assert.EqualValues(t, 2, repo.lookups.Load())
}

func TestAppendOrdersHistoryAndPublishes(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	id, err := f.resolver.Resolve(ctx, "alice", "bob", "")
	require.NoError(t, err)

	for i, sender := range []string{"alice", "bob", "alice"} {
		_, err := f.messages.Append(ctx, appchat.AppendParams{ConversationID: id, SenderID: sender, Content: fmt.Sprintf("m%d", i)})
		require.NoError(t, err)
	}

	history, err := f.messages.List(ctx, id)
	require.NoError(t, err)
	require.Len(t, history, 3)
	for i := 1; i < len(history); i++ {
		assert.True(t, domainchat.Less(history[i-1], history[i]))
	}
	assert.Equal(t, "m0", history[0].Content)

	require.Len(t, f.pub.events, 3)
	assert.Equal(t, history[2].ID, f.pub.events[2].Message.ID)
	assert.True(t, f.pub.events[0].Participants.Has("bob"))

	conv, err := f.store.ByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, history[2].CreatedAt, conv.UpdatedAt)
}

func TestAppendRejectsInvalidInput(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	id, err := f.resolver.Resolve(ctx, "alice", "bob", "")
	require.NoError(t, err)

	_, err = f.messages.Append(ctx, appchat.AppendParams{ConversationID: id, SenderID: "alice", Content: "   "})
	assert.ErrorIs(t, err, domainchat.ErrEmptyContent)

	_, err = f.messages.Append(ctx, appchat.AppendParams{ConversationID: id, SenderID: "mallory", Content: "hi"})
	assert.ErrorIs(t, err, domainchat.ErrNotParticipant)

	_, err = f.messages.Append(ctx, appchat.AppendParams{ConversationID: "missing", SenderID: "alice", Content: "hi"})
	assert.ErrorIs(t, err, domainchat.ErrConversationNotFound)

	assert.Empty(t, f.pub.events)
}

func TestAppendSurvivesPublishFailure(t *testing.T) {
	f := newFixture()
	f.pub.err = fmt.Errorf("feed down")
	ctx := context.Background()
	id, err := f.resolver.Resolve(ctx, "alice", "bob", "")
	require.NoError(t, err)

	msg, err := f.messages.Append(ctx, appchat.AppendParams{ConversationID: id, SenderID: "alice", Content: "hi"})
	require.NoError(t, err)

	history, err := f.messages.List(ctx, id)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, msg.ID, history[0].ID)
}

type stubSigner struct{}

func (stubSigner) SignedURL(ctx context.Context, key string) (string, error) {
	return "https://signed.example/" + key, nil
}

func TestSummariesFlagUnreadAndEnrich(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	listings := memory.NewListingRepository(domainlistings.Listing{
		ID:      "L1",
		OwnerID: "bob",
		Title:   "Desk lamp",
		Price:   money.Must(1500, "USD"),
		Images:  []string{"l1/cover.jpg"},
	})
	profiles := memory.NewProfileRepository(domainprofiles.Profile{UserID: "bob", DisplayName: "Bob", University: "MIT"})
	builder := &appchat.SummaryBuilder{
		Conversations: f.store,
		Messages:      f.store,
		Listings:      listings,
		Profiles:      profiles,
		Images:        stubSigner{},
	}

	withBob, err := f.resolver.Resolve(ctx, "alice", "bob", "L1")
	require.NoError(t, err)
	withCarol, err := f.resolver.Resolve(ctx, "alice", "carol", "")
	require.NoError(t, err)
	empty, err := f.resolver.Resolve(ctx, "alice", "dave", "")
	require.NoError(t, err)

	_, err = f.messages.Append(ctx, appchat.AppendParams{ConversationID: withCarol, SenderID: "alice", Content: "mine"})
	require.NoError(t, err)
	fromBob, err := f.messages.Append(ctx, appchat.AppendParams{ConversationID: withBob, SenderID: "bob", Content: "still available"})
	require.NoError(t, err)

	list, err := builder.List(ctx, "alice", time.Time{})
	require.NoError(t, err)
	require.Len(t, list, 3)

	assert.Equal(t, withBob, list[0].ID)
	assert.True(t, list[0].Unread)
	assert.Equal(t, "Bob", list[0].OtherUserName)
	assert.Equal(t, "MIT", list[0].OtherUserUniversity)
	require.NotNil(t, list[0].Listing)
	assert.Equal(t, "Desk lamp", list[0].Listing.Title)
	assert.Equal(t, "https://signed.example/l1/cover.jpg", list[0].Listing.ImageURL)

	assert.Equal(t, withCarol, list[1].ID)
	assert.False(t, list[1].Unread, "own message never counts")
	assert.Equal(t, domainprofiles.DefaultDisplayName, list[1].OtherUserName)

	assert.Equal(t, empty, list[2].ID)
	assert.False(t, list[2].Unread)
	assert.Empty(t, list[2].LastMessage)

	seenAtMessage, err := builder.List(ctx, "alice", fromBob.CreatedAt)
	require.NoError(t, err)
	assert.True(t, seenAtMessage[0].Unread, "a message at the cursor instant stays unread")

	seenAfter, err := builder.List(ctx, "alice", fromBob.CreatedAt.Add(time.Nanosecond))
	require.NoError(t, err)
	assert.False(t, seenAfter[0].Unread)
}
