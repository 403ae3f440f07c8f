package listings

import (
	"time"

	"campusmarket/internal/domain/shared/fault"
	"campusmarket/internal/domain/shared/money"
)

var (
	ErrListingNotFound    = fault.New(fault.KindNotFound, "listings: not found")
	ErrListingUnavailable = fault.New(fault.KindValidation, "listings: listing is no longer available")
)

type ListingID string

type Status string

const (
	StatusAvailable Status = "available"
	StatusSold      Status = "sold"
)

// Listing is the read model the coordinator consumes from the listing
// service: enough to preview it in chat and to mark it sold.
type Listing struct {
	ID        ListingID
	OwnerID   string
	Title     string
	Price     money.Money
	Images    []string
	Status    Status
	UpdatedAt time.Time
}

// Purchasable reports whether a new order may reference the listing.
func (l Listing) Purchasable() bool {
	return l.Status == "" || l.Status == StatusAvailable
}

// CoverImage returns the first image key, or "".
func (l Listing) CoverImage() string {
	if len(l.Images) == 0 {
		return ""
	}
	return l.Images[0]
}
