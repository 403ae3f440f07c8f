package orders

import (
	"time"

	"campusmarket/internal/domain/shared/money"
)

type OrderPlaced struct {
	OrderID   OrderID
	ListingID string
	BuyerID   string
	SellerID  string
	Amount    money.Money
	At        time.Time
}

func (e OrderPlaced) EventName() string     { return "orders.placed" }
func (e OrderPlaced) AggregateID() string   { return string(e.OrderID) }
func (e OrderPlaced) OccurredAt() time.Time { return e.At }

type OrderStatusChanged struct {
	OrderID OrderID
	From    Status
	To      Status
	ActorID string
	At      time.Time
}

func (e OrderStatusChanged) EventName() string     { return "orders.status_changed" }
func (e OrderStatusChanged) AggregateID() string   { return string(e.OrderID) }
func (e OrderStatusChanged) OccurredAt() time.Time { return e.At }
