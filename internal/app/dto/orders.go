package dto

import (
	"time"

	apporders "campusmarket/internal/app/orders"
	domainorders "campusmarket/internal/domain/orders"
	"campusmarket/internal/domain/shared/money"
)

// Money is rendered in minor units with a display string.
type Money struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Display  string `json:"display"`
}

func NewMoney(m money.Money) Money {
	return Money{Amount: m.Amount, Currency: m.Currency, Display: m.String()}
}

type Order struct {
	ID        string    `json:"id"`
	ListingID string    `json:"listing_id"`
	BuyerID   string    `json:"buyer_id"`
	SellerID  string    `json:"seller_id"`
	Amount    Money     `json:"amount"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Party is a buyer or seller as shown next to an order.
type Party struct {
	UserID     string `json:"user_id"`
	Name       string `json:"name"`
	AvatarURL  string `json:"avatar_url,omitempty"`
	University string `json:"university,omitempty"`
}

// OrderSummary is an order with its listing preview and both parties.
type OrderSummary struct {
	Order
	Listing *ListingPreview `json:"listing,omitempty"`
	Buyer   Party           `json:"buyer"`
	Seller  Party           `json:"seller"`
}

type OrderList struct {
	Items []OrderSummary `json:"items"`
}

func NewOrder(o *domainorders.Order) Order {
	return Order{
		ID:        string(o.ID),
		ListingID: o.ListingID,
		BuyerID:   o.BuyerID,
		SellerID:  o.SellerID,
		Amount:    NewMoney(o.Amount),
		Status:    string(o.Status),
		CreatedAt: o.CreatedAt,
		UpdatedAt: o.UpdatedAt,
	}
}

func NewOrderSummary(s apporders.Summary) OrderSummary {
	return OrderSummary{
		Order:   NewOrder(s.Order),
		Listing: newListingPreview(s.Listing),
		Buyer:   newParty(s.Buyer),
		Seller:  newParty(s.Seller),
	}
}

func NewOrderList(items []apporders.Summary) OrderList {
	out := OrderList{Items: make([]OrderSummary, 0, len(items))}
	for _, s := range items {
		out.Items = append(out.Items, NewOrderSummary(s))
	}
	return out
}

func newParty(p apporders.Party) Party {
	return Party{UserID: p.UserID, Name: p.Name, AvatarURL: p.AvatarURL, University: p.University}
}
