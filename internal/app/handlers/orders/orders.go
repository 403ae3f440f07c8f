package orders

import (
	"context"

	"campusmarket/internal/app/commands"
	"campusmarket/internal/app/middleware"
	apporders "campusmarket/internal/app/orders"
	"campusmarket/internal/app/queries"
	domainorders "campusmarket/internal/domain/orders"
	"campusmarket/internal/domain/shared/money"
)

const (
	createOrderKey       = "orders.create"
	updateOrderStatusKey = "orders.update_status"
	listOrdersKey        = "orders.list"
	getOrderKey          = "orders.get"
)

type CreateOrderCommand struct {
	BuyerID         string
	ListingID       string
	SellerID        string
	Amount          money.Money
	IdempotencyKeyV string
}

func (c CreateOrderCommand) Key() string   { return createOrderKey }
func (c CreateOrderCommand) Actor() string { return c.BuyerID }

// IdempotencyKey scopes the client key to the buyer.
func (c CreateOrderCommand) IdempotencyKey() string {
	if c.IdempotencyKeyV == "" {
		return ""
	}
	return createOrderKey + ":" + c.BuyerID + ":" + c.IdempotencyKeyV
}

func (c CreateOrderCommand) ResultPrototype() any { return &domainorders.Order{} }

type CreateOrderHandler struct {
	Machine *apporders.Machine
}

func (h *CreateOrderHandler) Handle(ctx context.Context, cmd CreateOrderCommand) (*domainorders.Order, error) {
	return h.Machine.Create(ctx, apporders.CreateParams{
		ListingID: cmd.ListingID,
		BuyerID:   cmd.BuyerID,
		SellerID:  cmd.SellerID,
		Amount:    cmd.Amount,
	})
}

type UpdateOrderStatusCommand struct {
	ActorID string
	OrderID domainorders.OrderID
	Status  domainorders.Status
}

func (c UpdateOrderStatusCommand) Key() string   { return updateOrderStatusKey }
func (c UpdateOrderStatusCommand) Actor() string { return c.ActorID }

type UpdateOrderStatusHandler struct {
	Machine *apporders.Machine
}

func (h *UpdateOrderStatusHandler) Handle(ctx context.Context, cmd UpdateOrderStatusCommand) (*domainorders.Order, error) {
	return h.Machine.UpdateStatus(ctx, apporders.UpdateParams{
		OrderID: cmd.OrderID,
		ActorID: cmd.ActorID,
		Status:  cmd.Status,
	})
}

type ListOrdersQuery struct {
	ActorID string
}

func (q ListOrdersQuery) Key() string   { return listOrdersKey }
func (q ListOrdersQuery) Actor() string { return q.ActorID }

// ListOrdersHandler returns the actor's orders with listing and party
// details.
type ListOrdersHandler struct {
	Machine   *apporders.Machine
	Summaries *apporders.SummaryBuilder
}

func (h *ListOrdersHandler) Handle(ctx context.Context, q ListOrdersQuery) ([]apporders.Summary, error) {
	orders, err := h.Machine.List(ctx, q.ActorID)
	if err != nil {
		return nil, err
	}
	return h.Summaries.SummarizeAll(ctx, orders)
}

type GetOrderQuery struct {
	ActorID string
	OrderID domainorders.OrderID
}

func (q GetOrderQuery) Key() string   { return getOrderKey }
func (q GetOrderQuery) Actor() string { return q.ActorID }

// GetOrderHandler hides orders from users who are neither buyer nor seller.
type GetOrderHandler struct {
	Machine   *apporders.Machine
	Summaries *apporders.SummaryBuilder
}

func (h *GetOrderHandler) Handle(ctx context.Context, q GetOrderQuery) (apporders.Summary, error) {
	order, err := h.Machine.Get(ctx, q.OrderID)
	if err != nil {
		return apporders.Summary{}, err
	}
	if !order.IsParty(q.ActorID) {
		return apporders.Summary{}, domainorders.ErrOrderNotFound
	}
	return h.Summaries.Summarize(ctx, order), nil
}

var (
	_ middleware.IdempotentCommand                                    = CreateOrderCommand{}
	_ commands.Handler[CreateOrderCommand, *domainorders.Order]       = (*CreateOrderHandler)(nil)
	_ commands.Handler[UpdateOrderStatusCommand, *domainorders.Order] = (*UpdateOrderStatusHandler)(nil)
	_ queries.Handler[ListOrdersQuery, []apporders.Summary]           = (*ListOrdersHandler)(nil)
	_ queries.Handler[GetOrderQuery, apporders.Summary]               = (*GetOrderHandler)(nil)
)
