package orders

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campusmarket/internal/domain/shared/fault"
	"campusmarket/internal/domain/shared/money"
)

func newPendingOrder(t *testing.T) *Order {
	t.Helper()
	o, err := NewOrder(CreateParams{
		ID:        "o1",
		ListingID: "L",
		BuyerID:   "buyer",
		SellerID:  "seller",
		Amount:    money.Must(2000, "USD"),
		CreatedAt: time.Unix(1000, 0),
	})
	require.NoError(t, err)
	return o
}

func TestNewOrderStartsPending(t *testing.T) {
	o := newPendingOrder(t)

	assert.Equal(t, StatusPending, o.Status)
	require.Len(t, o.PendingEvents(), 1)
	assert.Equal(t, "orders.placed", o.PendingEvents()[0].EventName())
}

func TestNewOrderValidation(t *testing.T) {
	base := CreateParams{ListingID: "L", BuyerID: "b", SellerID: "s", Amount: money.Must(100, "USD")}

	self := base
	self.SellerID = "b"
	_, err := NewOrder(self)
	assert.ErrorIs(t, err, ErrSelfPurchase)
	assert.ErrorIs(t, err, fault.ErrValidation)

	free := base
	free.Amount = money.Must(0, "USD")
	_, err = NewOrder(free)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	orphan := base
	orphan.ListingID = " "
	_, err = NewOrder(orphan)
	assert.ErrorIs(t, err, ErrMissingParty)
}

func TestTransitionTableIsExhaustive(t *testing.T) {
	allowed := map[[2]Status]bool{
		{StatusPending, StatusPaid}:      true,
		{StatusPending, StatusConfirmed}: true,
		{StatusPending, StatusCancelled}: true,
		{StatusPaid, StatusConfirmed}:    true,
		{StatusPaid, StatusCancelled}:    true,
	}
	for _, from := range AllStatuses {
		for _, to := range AllStatuses {
			o := newPendingOrder(t)
			o.Status = from
			err := o.TransitionTo(to, "buyer", time.Unix(2000, 0))
			if allowed[[2]Status{from, to}] {
				assert.NoError(t, err, "%s -> %s", from, to)
				assert.Equal(t, to, o.Status)
				continue
			}
			assert.ErrorIs(t, err, ErrInvalidTransition, "%s -> %s", from, to)
			assert.ErrorIs(t, err, fault.ErrInvalidTransition)
			assert.Equal(t, from, o.Status)
		}
	}
}

func TestTerminalStatesAcceptNothing(t *testing.T) {
	for _, s := range AllStatuses {
		if !s.IsTerminal() {
			continue
		}
		for _, to := range AllStatuses {
			assert.False(t, CanTransition(s, to), "%s -> %s", s, to)
		}
	}
	assert.True(t, StatusConfirmed.IsTerminal())
	assert.True(t, StatusCancelled.IsTerminal())
	assert.False(t, StatusPaid.IsTerminal())
}

func TestTransitionRecordsEvent(t *testing.T) {
	o := newPendingOrder(t)
	o.ClearEvents()

	require.NoError(t, o.TransitionTo(StatusPaid, "seller", time.Unix(3000, 0)))
	evs := o.PendingEvents()
	require.Len(t, evs, 1)
	changed, ok := evs[0].(OrderStatusChanged)
	require.True(t, ok)
	assert.Equal(t, StatusPending, changed.From)
	assert.Equal(t, StatusPaid, changed.To)
	assert.Equal(t, "seller", changed.ActorID)
	assert.Equal(t, time.Unix(3000, 0).UTC(), o.UpdatedAt)
}

func TestParseStatus(t *testing.T) {
	s, err := ParseStatus(" Confirmed ")
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, s)

	_, err = ParseStatus("shipped")
	assert.ErrorIs(t, err, ErrUnknownStatus)
}
