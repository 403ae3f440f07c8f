package listings

import (
	"time"
)

type ListingSoldEvent struct {
	ListingID ListingID
	OrderID   string
	At        time.Time
}

func (e ListingSoldEvent) EventName() string     { return "listing.sold" }
func (e ListingSoldEvent) AggregateID() string   { return string(e.ListingID) }
func (e ListingSoldEvent) OccurredAt() time.Time { return e.At }
