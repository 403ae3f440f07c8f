package memory

import (
	"context"
	"sync"
	"time"

	domainlistings "campusmarket/internal/domain/listings"
	domainprofiles "campusmarket/internal/domain/profiles"
)

// ListingRepository is an in-memory listing catalog for demo and tests.
type ListingRepository struct {
	mu    sync.RWMutex
	items map[domainlistings.ListingID]domainlistings.Listing
}

// NewListingRepository builds a repository seeded with listings.
func NewListingRepository(seed ...domainlistings.Listing) *ListingRepository {
	r := &ListingRepository{items: make(map[domainlistings.ListingID]domainlistings.Listing)}
	for _, l := range seed {
		r.items[l.ID] = l
	}
	return r
}

// ByID returns a copy of the listing or ErrListingNotFound.
func (r *ListingRepository) ByID(ctx context.Context, id domainlistings.ListingID) (*domainlistings.Listing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	listing, ok := r.items[id]
	if !ok {
		return nil, domainlistings.ErrListingNotFound
	}
	listing.Images = append([]string(nil), listing.Images...)
	return &listing, nil
}

// Save stores or replaces a listing.
func (r *ListingRepository) Save(ctx context.Context, listing domainlistings.Listing) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[listing.ID] = listing
	return nil
}

func (r *ListingRepository) MarkSold(ctx context.Context, id domainlistings.ListingID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	listing, ok := r.items[id]
	if !ok {
		return domainlistings.ErrListingNotFound
	}
	listing.Status = domainlistings.StatusSold
	listing.UpdatedAt = at.UTC()
	r.items[id] = listing
	return nil
}

// ProfileRepository keeps public profiles in memory.
type ProfileRepository struct {
	mu    sync.RWMutex
	items map[string]domainprofiles.Profile
}

func NewProfileRepository(seed ...domainprofiles.Profile) *ProfileRepository {
	r := &ProfileRepository{items: make(map[string]domainprofiles.Profile)}
	for _, p := range seed {
		r.items[p.UserID] = p
	}
	return r
}

func (r *ProfileRepository) ByUserID(ctx context.Context, userID string) (*domainprofiles.Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.items[userID]
	if !ok {
		return nil, domainprofiles.ErrProfileNotFound
	}
	return &p, nil
}

func (r *ProfileRepository) Save(ctx context.Context, p domainprofiles.Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[p.UserID] = p
	return nil
}
