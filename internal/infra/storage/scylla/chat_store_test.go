package scylla

import (
	"testing"

	"github.com/stretchr/testify/assert"

	domainchat "campusmarket/internal/domain/chat"
)

func TestListingKeyKeepsGeneralBucketSeparate(t *testing.T) {
	cases := []string{"", "L1", "~general", "l:nested", "  "}
	seen := make(map[string]string, len(cases))
	for _, id := range cases {
		key := listingKey(id)
		assert.NotEmpty(t, key)
		if prev, dup := seen[key]; dup {
			t.Fatalf("listing ids %q and %q share key %q", prev, id, key)
		}
		seen[key] = id
		assert.Equal(t, id, listingFromKey(key))
	}
	assert.Equal(t, generalListing, listingKey(""))
	assert.NotEqual(t, listingKey(""), listingKey("~general"))
}

func TestTouchIsMonotonic(t *testing.T) {
	assert.Contains(t, touchStatement, "IF updated_ns < ?")
	assert.NoError(t, touchOutcome(true), "a newer timestamp is already stored")
	assert.ErrorIs(t, touchOutcome(false), domainchat.ErrConversationNotFound)
}
