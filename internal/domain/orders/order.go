package orders

import (
	"context"
	"strings"
	"time"

	"campusmarket/internal/domain/shared/events"
	"campusmarket/internal/domain/shared/fault"
	"campusmarket/internal/domain/shared/money"
)

var (
	ErrSelfPurchase      = fault.New(fault.KindValidation, "orders: buyer and seller must differ")
	ErrInvalidAmount     = fault.New(fault.KindValidation, "orders: amount must be positive")
	ErrMissingParty      = fault.New(fault.KindValidation, "orders: listing, buyer and seller are required")
	ErrUnknownStatus     = fault.New(fault.KindValidation, "orders: unknown status")
	ErrInvalidTransition = fault.New(fault.KindInvalidTransition, "orders: invalid status transition")
	ErrOrderNotFound     = fault.New(fault.KindNotFound, "orders: not found")
	ErrSellerMismatch    = fault.New(fault.KindValidation, "orders: seller does not own the listing")
	ErrNotParty          = fault.New(fault.KindForbidden, "orders: only the buyer or the seller may change the order")
	ErrConcurrentUpdate  = fault.New(fault.KindConflict, "orders: status changed concurrently")
)

type OrderID string

type Order struct {
	ID        OrderID
	ListingID string
	BuyerID   string
	SellerID  string
	Amount    money.Money
	Status    Status
	CreatedAt time.Time
	UpdatedAt time.Time
	events.EventRecorder
}

type Repository interface {
	Create(ctx context.Context, order *Order) error
	ByID(ctx context.Context, id OrderID) (*Order, error)
	// UpdateStatus moves the stored order from -> to and fails with
	// ErrConcurrentUpdate when the stored status is no longer from.
	UpdateStatus(ctx context.Context, id OrderID, from, to Status, at time.Time) error
	// ListByUser returns orders where the user is buyer or seller, newest first.
	ListByUser(ctx context.Context, userID string) ([]*Order, error)
}

type CreateParams struct {
	ID        OrderID
	ListingID string
	BuyerID   string
	SellerID  string
	Amount    money.Money
	CreatedAt time.Time
}

// NewOrder builds an order in the pending state.
func NewOrder(p CreateParams) (*Order, error) {
	listingID := strings.TrimSpace(p.ListingID)
	buyer := strings.TrimSpace(p.BuyerID)
	seller := strings.TrimSpace(p.SellerID)
	if listingID == "" || buyer == "" || seller == "" {
		return nil, ErrMissingParty
	}
	if buyer == seller {
		return nil, ErrSelfPurchase
	}
	if !p.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	now := p.CreatedAt.UTC()
	o := &Order{
		ID:        p.ID,
		ListingID: listingID,
		BuyerID:   buyer,
		SellerID:  seller,
		Amount:    p.Amount,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	o.Record(OrderPlaced{OrderID: o.ID, ListingID: o.ListingID, BuyerID: buyer, SellerID: seller, Amount: o.Amount, At: now})
	return o, nil
}

// IsParty reports whether userID is the buyer or the seller.
func (o *Order) IsParty(userID string) bool {
	return userID != "" && (o.BuyerID == userID || o.SellerID == userID)
}

// TransitionTo applies a validated status change.
func (o *Order) TransitionTo(to Status, actorID string, now time.Time) error {
	if !CanTransition(o.Status, to) {
		return ErrInvalidTransition
	}
	from := o.Status
	o.Status = to
	o.UpdatedAt = now.UTC()
	o.Record(OrderStatusChanged{OrderID: o.ID, From: from, To: to, ActorID: actorID, At: o.UpdatedAt})
	return nil
}
