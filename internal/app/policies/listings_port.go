package policies

import (
	"context"
	"time"

	domainlistings "campusmarket/internal/domain/listings"
)

// ListingCatalog is the listing service as seen by the coordinator.
type ListingCatalog interface {
	ByID(ctx context.Context, id domainlistings.ListingID) (*domainlistings.Listing, error)
	MarkSold(ctx context.Context, id domainlistings.ListingID, at time.Time) error
}

// ImageSigner turns a stored image key into a URL a client can fetch.
type ImageSigner interface {
	SignedURL(ctx context.Context, key string) (string, error)
}
