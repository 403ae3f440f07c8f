package unread_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campusmarket/internal/app/unread"
	domainchat "campusmarket/internal/domain/chat"
	"campusmarket/internal/domain/shared/fault"
	"campusmarket/internal/infra/storage/memory"
)

var base = time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)

func seedConversation(t *testing.T, store *memory.ChatStore) domainchat.ConversationID {
	t.Helper()
	key, err := domainchat.NewKey("alice", "bob", "")
	require.NoError(t, err)
	conv := domainchat.NewConversation("c1", key, base)
	require.NoError(t, store.Insert(context.Background(), conv))
	return conv.ID
}

func appendAt(t *testing.T, store *memory.ChatStore, conv domainchat.ConversationID, id, sender string, at time.Time) {
	t.Helper()
	require.NoError(t, store.Append(context.Background(), domainchat.Message{
		ID:             domainchat.MessageID(id),
		ConversationID: conv,
		SenderID:       sender,
		Content:        id,
		Kind:           domainchat.KindUser,
		CreatedAt:      at,
	}))
}

func TestTrackerWithoutCursorCountsEverythingInbound(t *testing.T) {
	store := memory.NewChatStore()
	conv := seedConversation(t, store)
	appendAt(t, store, conv, "m1", "bob", base.Add(time.Minute))
	appendAt(t, store, conv, "m2", "alice", base.Add(2*time.Minute))
	appendAt(t, store, conv, "m3", "bob", base.Add(3*time.Minute))

	tracker := &unread.Tracker{Cursors: memory.NewCursorStore(), Messages: store}
	ctx := context.Background()

	n, err := tracker.UnreadCount(ctx, "alice", "phone")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	has, err := tracker.HasUnread(ctx, "bob", "phone")
	require.NoError(t, err)
	assert.True(t, has)

	seen, err := tracker.LastSeen(ctx, "alice", "phone")
	require.NoError(t, err)
	assert.True(t, seen.IsZero())
}

func TestTrackerMarkSeenIsPerDeviceAndKeepsTies(t *testing.T) {
	store := memory.NewChatStore()
	conv := seedConversation(t, store)
	cursorAt := base.Add(10 * time.Minute)
	appendAt(t, store, conv, "old", "bob", base.Add(time.Minute))

	tracker := &unread.Tracker{
		Cursors:  memory.NewCursorStore(),
		Messages: store,
		Now:      func() time.Time { return cursorAt },
	}
	ctx := context.Background()

	at, err := tracker.MarkSeen(ctx, "alice", "phone")
	require.NoError(t, err)
	assert.Equal(t, cursorAt, at)

	has, err := tracker.HasUnread(ctx, "alice", "phone")
	require.NoError(t, err)
	assert.False(t, has)

	has, err = tracker.HasUnread(ctx, "alice", "laptop")
	require.NoError(t, err)
	assert.True(t, has, "another device keeps its own cursor")

	appendAt(t, store, conv, "tie", "bob", cursorAt)
	n, err := tracker.UnreadCount(ctx, "alice", "phone")
	require.NoError(t, err)
	assert.Equal(t, 1, n, "a message stamped at the cursor counts as unread")

	appendAt(t, store, conv, "own", "alice", cursorAt.Add(time.Minute))
	n, err = tracker.UnreadCount(ctx, "alice", "phone")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestCursorNeverMovesBackwards(t *testing.T) {
	cursors := memory.NewCursorStore()
	ctx := context.Background()
	require.NoError(t, cursors.SetLastSeen(ctx, "alice", "phone", base.Add(time.Hour)))
	require.NoError(t, cursors.SetLastSeen(ctx, "alice", "phone", base))

	at, found, err := cursors.LastSeen(ctx, "alice", "phone")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, base.Add(time.Hour), at)
}

type brokenCursors struct{}

func (brokenCursors) LastSeen(context.Context, string, string) (time.Time, bool, error) {
	return time.Time{}, false, errors.New("redis: connection refused")
}

func (brokenCursors) SetLastSeen(context.Context, string, string, time.Time) error {
	return errors.New("redis: connection refused")
}

func TestTrackerClassifiesStorageFailuresAsTransient(t *testing.T) {
	tracker := &unread.Tracker{Cursors: brokenCursors{}, Messages: memory.NewChatStore()}
	ctx := context.Background()

	_, err := tracker.HasUnread(ctx, "alice", "phone")
	assert.ErrorIs(t, err, fault.ErrTransient)

	_, err = tracker.MarkSeen(ctx, "alice", "phone")
	assert.ErrorIs(t, err, fault.ErrTransient)
}

func TestIndicatorFollowsPushesUntilSeen(t *testing.T) {
	ind := unread.NewIndicator("alice", false, base)

	assert.False(t, ind.Observe(domainchat.Message{SenderID: "alice"}), "own message")
	assert.False(t, ind.Unread())

	assert.True(t, ind.Observe(domainchat.Message{SenderID: "bob"}))
	assert.True(t, ind.Unread())
	assert.False(t, ind.Observe(domainchat.Message{SenderID: "bob"}), "already raised")

	ind.MarkSeen(base.Add(time.Minute))
	assert.False(t, ind.Unread())
	assert.Equal(t, base.Add(time.Minute), ind.LastSeen())

	ind.MarkSeen(base)
	assert.Equal(t, base.Add(time.Minute), ind.LastSeen(), "cursor does not regress")

	assert.True(t, ind.Raise())
	assert.True(t, ind.Unread())
}

func TestIndicatorKeepsPushesNewerThanTheCursor(t *testing.T) {
	cursor := base.Add(time.Minute)
	ind := unread.NewIndicator("alice", false, base)

	require.True(t, ind.Observe(domainchat.Message{SenderID: "bob", CreatedAt: cursor.Add(time.Millisecond)}))
	assert.False(t, ind.MarkSeen(cursor))
	assert.True(t, ind.Unread(), "arrival after the cursor stays unread")
	assert.Equal(t, cursor, ind.LastSeen())

	assert.False(t, ind.MarkSeen(cursor.Add(time.Millisecond)), "tie stays unread")
	assert.True(t, ind.Unread())

	assert.True(t, ind.MarkSeen(cursor.Add(time.Second)))
	assert.False(t, ind.Unread())
}
