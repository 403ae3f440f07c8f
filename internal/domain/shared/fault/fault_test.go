package fault

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSentinelMatchesItsKind(t *testing.T) {
	errEmpty := New(KindValidation, "chat: message content is empty")

	assert.ErrorIs(t, errEmpty, ErrValidation)
	assert.ErrorIs(t, errEmpty, errEmpty)
	assert.NotErrorIs(t, errEmpty, ErrNotFound)
	assert.Equal(t, KindValidation, KindOf(fmt.Errorf("wrapped: %w", errEmpty)))
}

func TestDistinctSentinelsOfSameKindDoNotMatch(t *testing.T) {
	a := New(KindValidation, "a")
	b := New(KindValidation, "b")

	assert.False(t, errors.Is(a, b))
}

func TestTransientKeepsClassifiedErrors(t *testing.T) {
	notFound := New(KindNotFound, "order: not found")

	assert.Same(t, notFound, Transient("load order", notFound))

	io := errors.New("connection reset")
	wrapped := Transient("load order", io)
	assert.ErrorIs(t, wrapped, ErrTransient)
	assert.ErrorIs(t, wrapped, io)
	assert.Nil(t, Transient("noop", nil))
}
