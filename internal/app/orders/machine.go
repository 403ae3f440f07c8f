// Package orders drives purchase orders through their lifecycle and posts
// the matching notes into the buyer/seller conversation.
package orders

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	appchat "campusmarket/internal/app/chat"
	"campusmarket/internal/app/outbox"
	"campusmarket/internal/app/policies"
	domainchat "campusmarket/internal/domain/chat"
	domainlistings "campusmarket/internal/domain/listings"
	domainorders "campusmarket/internal/domain/orders"
	"campusmarket/internal/domain/shared/events"
	"campusmarket/internal/domain/shared/fault"
	"campusmarket/internal/domain/shared/money"
)

// ConversationResolver finds or creates the conversation for a key.
type ConversationResolver interface {
	ResolveKey(ctx context.Context, key domainchat.Key) (*domainchat.Conversation, error)
}

type MessageAppender interface {
	Append(ctx context.Context, p appchat.AppendParams) (domainchat.Message, error)
}

type Machine struct {
	Orders   domainorders.Repository
	Listings policies.ListingCatalog
	Resolver ConversationResolver
	Messages MessageAppender
	Announce Announcements
	// Outbox receives order and listing events for the broker relay.
	Outbox outbox.Outbox
	NewID  func() string
	Now    func() time.Time
	Logger *slog.Logger
}

type CreateParams struct {
	ListingID string
	BuyerID   string
	// SellerID defaults to the listing owner.
	SellerID string
	// Amount defaults to the listing price when left zero.
	Amount money.Money
}

type UpdateParams struct {
	OrderID domainorders.OrderID
	ActorID string
	Status  domainorders.Status
}

// Create persists a pending order. Marking the listing sold and posting the
// chat note happen afterwards and never fail the call.
func (m *Machine) Create(ctx context.Context, p CreateParams) (*domainorders.Order, error) {
	buyer := strings.TrimSpace(p.BuyerID)
	seller := strings.TrimSpace(p.SellerID)
	if buyer != "" && buyer == seller {
		return nil, domainorders.ErrSelfPurchase
	}

	var listing *domainlistings.Listing
	if m.Listings != nil && strings.TrimSpace(p.ListingID) != "" {
		found, err := m.Listings.ByID(ctx, domainlistings.ListingID(strings.TrimSpace(p.ListingID)))
		if err != nil {
			if errors.Is(err, domainlistings.ErrListingNotFound) {
				return nil, err
			}
			return nil, fault.Transient("load listing", err)
		}
		if seller == "" {
			seller = found.OwnerID
		}
		if seller != found.OwnerID {
			return nil, domainorders.ErrSellerMismatch
		}
		if !found.Purchasable() {
			return nil, domainlistings.ErrListingUnavailable
		}
		if p.Amount == (money.Money{}) {
			p.Amount = found.Price
		}
		listing = found
	}

	order, err := domainorders.NewOrder(domainorders.CreateParams{
		ID:        domainorders.OrderID(m.newID()),
		ListingID: p.ListingID,
		BuyerID:   buyer,
		SellerID:  seller,
		Amount:    p.Amount,
		CreatedAt: m.now(),
	})
	if err != nil {
		return nil, err
	}
	if err := m.Orders.Create(ctx, order); err != nil {
		return nil, fault.Transient("create order", err)
	}
	m.publishEvents(ctx, order, order.PendingEvents())
	order.ClearEvents()

	if listing != nil {
		if err := m.Listings.MarkSold(ctx, listing.ID, order.CreatedAt); err != nil {
			m.warn("failed to mark listing sold", err, order)
		} else {
			m.publishEvents(ctx, order, []events.DomainEvent{domainlistings.ListingSoldEvent{
				ListingID: listing.ID,
				OrderID:   string(order.ID),
				At:        order.CreatedAt,
			}})
		}
	}
	if m.Announce.Speaks(domainorders.StatusPending) {
		m.post(ctx, order, order.BuyerID, placedNote(titleOf(listing), order))
	}
	return order, nil
}

// UpdateStatus applies a validated transition on behalf of the buyer or the
// seller. A transition that lost a race against another writer is
// re-validated once against the fresh state.
func (m *Machine) UpdateStatus(ctx context.Context, p UpdateParams) (*domainorders.Order, error) {
	var (
		order *domainorders.Order
		err   error
	)
	for attempt := 0; attempt < 2; attempt++ {
		order, err = m.transition(ctx, p)
		if !errors.Is(err, domainorders.ErrConcurrentUpdate) {
			break
		}
	}
	if err != nil {
		return nil, err
	}
	m.publishEvents(ctx, order, order.PendingEvents())
	order.ClearEvents()

	if m.Announce.Speaks(order.Status) {
		if note := transitionNote(m.listingTitle(ctx, order), order.Status); note != "" {
			m.post(ctx, order, p.ActorID, note)
		}
	}
	return order, nil
}

func (m *Machine) transition(ctx context.Context, p UpdateParams) (*domainorders.Order, error) {
	order, err := m.Get(ctx, p.OrderID)
	if err != nil {
		return nil, err
	}
	if !order.IsParty(p.ActorID) {
		return nil, domainorders.ErrNotParty
	}
	from := order.Status
	if err := order.TransitionTo(p.Status, p.ActorID, m.now()); err != nil {
		return nil, err
	}
	if err := m.Orders.UpdateStatus(ctx, order.ID, from, order.Status, order.UpdatedAt); err != nil {
		if errors.Is(err, domainorders.ErrConcurrentUpdate) || errors.Is(err, domainorders.ErrOrderNotFound) {
			return nil, err
		}
		return nil, fault.Transient("update order status", err)
	}
	return order, nil
}

func (m *Machine) Get(ctx context.Context, id domainorders.OrderID) (*domainorders.Order, error) {
	order, err := m.Orders.ByID(ctx, id)
	if err != nil {
		if errors.Is(err, domainorders.ErrOrderNotFound) {
			return nil, err
		}
		return nil, fault.Transient("load order", err)
	}
	return order, nil
}

// List returns the orders where userID is buyer or seller, newest first.
func (m *Machine) List(ctx context.Context, userID string) ([]*domainorders.Order, error) {
	orders, err := m.Orders.ListByUser(ctx, userID)
	if err != nil {
		return nil, fault.Transient("list orders", err)
	}
	return orders, nil
}

// post resolves the (buyer, seller, listing) conversation and appends a
// system note authored by authorID. Failures are logged only.
func (m *Machine) post(ctx context.Context, order *domainorders.Order, authorID, content string) {
	if m.Resolver == nil || m.Messages == nil {
		return
	}
	key, err := domainchat.NewKey(order.BuyerID, order.SellerID, order.ListingID)
	if err != nil {
		m.warn("failed to build order conversation key", err, order)
		return
	}
	conv, err := m.Resolver.ResolveKey(ctx, key)
	if err != nil {
		m.warn("failed to resolve order conversation", err, order)
		return
	}
	_, err = m.Messages.Append(ctx, appchat.AppendParams{
		ConversationID: conv.ID,
		SenderID:       authorID,
		Content:        content,
		Kind:           domainchat.KindSystem,
	})
	if err != nil {
		m.warn("failed to post order note", err, order)
	}
}

func (m *Machine) listingTitle(ctx context.Context, order *domainorders.Order) string {
	if m.Listings == nil {
		return ""
	}
	listing, err := m.Listings.ByID(ctx, domainlistings.ListingID(order.ListingID))
	if err != nil {
		if !errors.Is(err, domainlistings.ErrListingNotFound) {
			m.warn("failed to load listing for order note", err, order)
		}
		return ""
	}
	return listing.Title
}

func titleOf(l *domainlistings.Listing) string {
	if l == nil {
		return ""
	}
	return l.Title
}

// publishEvents logs evs and queues them in the outbox. The order is already
// stored, so an outbox failure is logged only.
func (m *Machine) publishEvents(ctx context.Context, order *domainorders.Order, evs []events.DomainEvent) {
	if m.Logger != nil {
		for _, evt := range evs {
			m.Logger.Info(evt.EventName(), "aggregate_id", evt.AggregateID(), "order_id", order.ID, "status", order.Status, "listing_id", order.ListingID)
		}
	}
	if err := outbox.RecordDomainEvents(ctx, m.Outbox, nil, evs); err != nil {
		m.warn("failed to queue order events", err, order)
	}
}

func (m *Machine) warn(msg string, err error, order *domainorders.Order) {
	if m.Logger != nil {
		m.Logger.Warn(msg, "error", err, "order_id", order.ID, "listing_id", order.ListingID)
	}
}

func (m *Machine) newID() string {
	if m.NewID != nil {
		return m.NewID()
	}
	return uuid.NewString()
}

func (m *Machine) now() time.Time {
	if m.Now != nil {
		return m.Now().UTC()
	}
	return time.Now().UTC()
}
