package chat

import (
	"context"
	"errors"
	"log/slog"

	"campusmarket/internal/app/policies"
	domainlistings "campusmarket/internal/domain/listings"
	domainprofiles "campusmarket/internal/domain/profiles"
)

// Enricher looks up the profile and listing data shown next to
// conversations and orders. Lookups never fail: missing or unreachable
// records fall back to placeholders.
type Enricher struct {
	Listings policies.ListingCatalog
	Profiles policies.ProfileDirectory
	Images   policies.ImageSigner
	Logger   *slog.Logger
}

// Profile returns userID's profile or the fallback one.
func (e Enricher) Profile(ctx context.Context, userID string) domainprofiles.Profile {
	if e.Profiles == nil {
		return domainprofiles.Fallback(userID)
	}
	p, err := e.Profiles.ByUserID(ctx, userID)
	if err != nil || p == nil {
		if err != nil && !errors.Is(err, domainprofiles.ErrProfileNotFound) && e.Logger != nil {
			e.Logger.Warn("profile lookup failed", "error", err, "user_id", userID)
		}
		return domainprofiles.Fallback(userID)
	}
	return *p
}

// ListingPreview returns the title, price and signed cover image of a
// listing. Only the id is set when the listing cannot be loaded.
func (e Enricher) ListingPreview(ctx context.Context, id domainlistings.ListingID) *ListingPreview {
	if e.Listings == nil {
		return &ListingPreview{ID: id}
	}
	listing, err := e.Listings.ByID(ctx, id)
	if err != nil {
		if !errors.Is(err, domainlistings.ErrListingNotFound) && e.Logger != nil {
			e.Logger.Warn("listing lookup failed", "error", err, "listing_id", id)
		}
		return &ListingPreview{ID: id}
	}
	preview := &ListingPreview{ID: id, Title: listing.Title, Price: listing.Price}
	if key := listing.CoverImage(); key != "" {
		preview.ImageURL = key
		if e.Images != nil {
			signed, err := e.Images.SignedURL(ctx, key)
			if err != nil {
				if e.Logger != nil {
					e.Logger.Warn("listing image signing failed", "error", err, "listing_id", id)
				}
			} else {
				preview.ImageURL = signed
			}
		}
	}
	return preview
}
