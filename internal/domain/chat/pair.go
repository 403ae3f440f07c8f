package chat

import (
	"strings"
)

// Pair holds two distinct participants in canonical order: Low sorts before
// High lexicographically, so contact initiated from either side lands on the
// same key.
type Pair struct {
	Low  string
	High string
}

// NewPair canonicalizes two user ids.
func NewPair(a, b string) (Pair, error) {
	a = strings.TrimSpace(a)
	b = strings.TrimSpace(b)
	if a == "" || b == "" || a == b {
		return Pair{}, ErrInvalidParticipants
	}
	if b < a {
		a, b = b, a
	}
	return Pair{Low: a, High: b}, nil
}

// Has reports whether userID is one of the participants.
func (p Pair) Has(userID string) bool {
	return userID != "" && (p.Low == userID || p.High == userID)
}

// Other returns the participant that is not userID.
func (p Pair) Other(userID string) string {
	if p.Low == userID {
		return p.High
	}
	return p.Low
}

// Key identifies at most one conversation. An empty ListingID is its own
// bucket (the general conversation of the pair), never a wildcard.
type Key struct {
	Pair
	ListingID string
}

// NewKey canonicalizes the participants and attaches the optional listing.
func NewKey(a, b, listingID string) (Key, error) {
	pair, err := NewPair(a, b)
	if err != nil {
		return Key{}, err
	}
	return Key{Pair: pair, ListingID: strings.TrimSpace(listingID)}, nil
}

// HasListing reports whether the key is scoped to a listing.
func (k Key) HasListing() bool {
	return k.ListingID != ""
}

// String renders the key for logs and partitioning.
func (k Key) String() string {
	return k.Low + "|" + k.High + "|" + k.ListingID
}
