package chat

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campusmarket/internal/domain/shared/fault"
)

func TestNewPairIsOrderIndependent(t *testing.T) {
	ab, err := NewPair("alice", "bob")
	require.NoError(t, err)
	ba, err := NewPair("bob", "alice")
	require.NoError(t, err)

	assert.Equal(t, ab, ba)
	assert.Equal(t, "alice", ab.Low)
	assert.Equal(t, "bob", ab.High)
	assert.Equal(t, "bob", ab.Other("alice"))
	assert.True(t, ab.Has("bob"))
	assert.False(t, ab.Has("carol"))
}

func TestNewPairRejectsSelfAndBlank(t *testing.T) {
	for _, tc := range [][2]string{{"u1", "u1"}, {"", "u1"}, {" ", "u2"}} {
		_, err := NewPair(tc[0], tc[1])
		assert.ErrorIs(t, err, ErrInvalidParticipants)
		assert.ErrorIs(t, err, fault.ErrValidation)
	}
}

func TestKeyTreatsMissingListingAsOwnBucket(t *testing.T) {
	general, err := NewKey("v", "u", "")
	require.NoError(t, err)
	scoped, err := NewKey("u", "v", "L1")
	require.NoError(t, err)

	assert.False(t, general.HasListing())
	assert.True(t, scoped.HasListing())
	assert.NotEqual(t, general, scoped)
	assert.Equal(t, "u|v|L1", scoped.String())
}

func TestNewMessageTrimsAndValidates(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.FixedZone("x", 3600))
	msg, err := NewMessage(NewMessageParams{ID: "m1", ConversationID: "c1", SenderID: "u", Content: "  hi  ", CreatedAt: now})
	require.NoError(t, err)
	assert.Equal(t, "hi", msg.Content)
	assert.Equal(t, KindUser, msg.Kind)
	assert.Equal(t, time.UTC, msg.CreatedAt.Location())

	_, err = NewMessage(NewMessageParams{SenderID: "u", Content: " \n\t "})
	assert.ErrorIs(t, err, ErrEmptyContent)

	_, err = NewMessage(NewMessageParams{SenderID: "u", Content: strings.Repeat("x", MaxContentLength+1)})
	assert.ErrorIs(t, err, ErrContentTooLong)

	_, err = NewMessage(NewMessageParams{Content: "hello"})
	assert.ErrorIs(t, err, ErrMissingSender)
}

func TestSortMessagesBreaksTiesById(t *testing.T) {
	t0 := time.Unix(100, 0)
	msgs := []Message{
		{ID: "b", CreatedAt: t0},
		{ID: "c", CreatedAt: t0.Add(-time.Second)},
		{ID: "a", CreatedAt: t0},
	}
	SortMessages(msgs)

	ids := []MessageID{msgs[0].ID, msgs[1].ID, msgs[2].ID}
	assert.Equal(t, []MessageID{"c", "a", "b"}, ids)
}
