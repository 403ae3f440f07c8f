// Package coordinator is the facade the transport layer talks to. Every call
// carries the caller's Session explicitly; writes go through the command bus
// and reads through the query bus so middleware applies uniformly.
package coordinator

import (
	"context"
	"log/slog"
	"strings"
	"time"

	appchat "campusmarket/internal/app/chat"
	"campusmarket/internal/app/commands"
	convhandlers "campusmarket/internal/app/handlers/conversations"
	orderhandlers "campusmarket/internal/app/handlers/orders"
	"campusmarket/internal/app/middleware"
	apporders "campusmarket/internal/app/orders"
	"campusmarket/internal/app/queries"
	"campusmarket/internal/app/realtime"
	"campusmarket/internal/app/unread"
	domainchat "campusmarket/internal/domain/chat"
	domainorders "campusmarket/internal/domain/orders"
	"campusmarket/internal/domain/shared/fault"
	"campusmarket/internal/domain/shared/money"
)

var ErrNoSession = fault.New(fault.KindForbidden, "coordinator: no signed-in user")

// Session identifies the signed-in user and the device the call comes from.
// The device scopes the read cursor.
type Session struct {
	UserID   string
	DeviceID string
}

func (s Session) check() error {
	if strings.TrimSpace(s.UserID) == "" {
		return ErrNoSession
	}
	return nil
}

type Config struct {
	Resolver      *appchat.Resolver
	Messages      *appchat.MessageService
	Summaries     *appchat.SummaryBuilder
	Conversations domainchat.ConversationRepository
	Orders        *apporders.Machine
	// OrderSummaries defaults to the lookups of Summaries.
	OrderSummaries *apporders.SummaryBuilder
	Unread         *unread.Tracker
	Hub            *realtime.Hub
	// Idempotency enables replay of keyed order creation when set.
	Idempotency     middleware.IdempotencyStore
	RefreshDebounce time.Duration
	Logger          *slog.Logger
}

type Coordinator struct {
	commands commands.Bus
	queries  queries.Bus
	messages *appchat.MessageService
	unread   *unread.Tracker
	hub      *realtime.Hub
	debounce time.Duration
	logger   *slog.Logger
}

func New(cfg Config) *Coordinator {
	cbus := commands.NewInMemoryBus()
	commands.RegisterHandler(cbus, convhandlers.StartConversationCommand{}.Key(), &convhandlers.StartConversationHandler{Resolver: cfg.Resolver})
	commands.RegisterHandler(cbus, convhandlers.SendMessageCommand{}.Key(), &convhandlers.SendMessageHandler{Messages: cfg.Messages})
	commands.RegisterHandler(cbus, convhandlers.DeleteConversationCommand{}.Key(), &convhandlers.DeleteConversationHandler{Conversations: cfg.Conversations})
	commands.RegisterHandler(cbus, orderhandlers.CreateOrderCommand{}.Key(), &orderhandlers.CreateOrderHandler{Machine: cfg.Orders})
	commands.RegisterHandler(cbus, orderhandlers.UpdateOrderStatusCommand{}.Key(), &orderhandlers.UpdateOrderStatusHandler{Machine: cfg.Orders})

	orderSummaries := cfg.OrderSummaries
	if orderSummaries == nil && cfg.Summaries != nil {
		orderSummaries = &apporders.SummaryBuilder{Enricher: cfg.Summaries.Enricher()}
	}

	qbus := queries.NewInMemoryBus()
	queries.RegisterHandler(qbus, convhandlers.ListConversationsQuery{}.Key(), &convhandlers.ListConversationsHandler{Summaries: cfg.Summaries})
	queries.RegisterHandler(qbus, convhandlers.ListMessagesQuery{}.Key(), &convhandlers.ListMessagesHandler{Messages: cfg.Messages})
	queries.RegisterHandler(qbus, orderhandlers.ListOrdersQuery{}.Key(), &orderhandlers.ListOrdersHandler{Machine: cfg.Orders, Summaries: orderSummaries})
	queries.RegisterHandler(qbus, orderhandlers.GetOrderQuery{}.Key(), &orderhandlers.GetOrderHandler{Machine: cfg.Orders, Summaries: orderSummaries})

	cmw := []middleware.CommandMiddleware{
		middleware.Logging(cfg.Logger),
		middleware.Authorization(middleware.RequireActor{}),
	}
	if cfg.Idempotency != nil {
		cmw = append(cmw, middleware.Idempotency(cfg.Idempotency, nil))
	}

	return &Coordinator{
		commands: middleware.ChainCommands(cbus, cmw...),
		queries:  middleware.ChainQueries(qbus, middleware.QueryAuthorization(middleware.RequireActor{})),
		messages: cfg.Messages,
		unread:   cfg.Unread,
		hub:      cfg.Hub,
		debounce: cfg.RefreshDebounce,
		logger:   cfg.Logger,
	}
}

// ListConversations returns the user's conversation summaries, most recent
// first, flagged unread against the session's cursor.
func (c *Coordinator) ListConversations(ctx context.Context, s Session) ([]appchat.Summary, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	lastSeen, err := c.unread.LastSeen(ctx, s.UserID, s.DeviceID)
	if err != nil {
		return nil, err
	}
	return c.listConversations(ctx, s, lastSeen)
}

func (c *Coordinator) listConversations(ctx context.Context, s Session, lastSeen time.Time) ([]appchat.Summary, error) {
	return queries.Ask[convhandlers.ListConversationsQuery, []appchat.Summary](ctx, c.queries, convhandlers.ListConversationsQuery{
		ActorID:  s.UserID,
		LastSeen: lastSeen,
	})
}

// StartOrFindConversation returns the single conversation between the user
// and otherUserID about listingID (empty for the general one).
func (c *Coordinator) StartOrFindConversation(ctx context.Context, s Session, otherUserID, listingID string) (domainchat.ConversationID, error) {
	if err := s.check(); err != nil {
		return "", err
	}
	return commands.Dispatch[convhandlers.StartConversationCommand, domainchat.ConversationID](ctx, c.commands, convhandlers.StartConversationCommand{
		ActorID:     s.UserID,
		OtherUserID: otherUserID,
		ListingID:   listingID,
	})
}

func (c *Coordinator) DeleteConversation(ctx context.Context, s Session, id domainchat.ConversationID) error {
	if err := s.check(); err != nil {
		return err
	}
	_, err := commands.Dispatch[convhandlers.DeleteConversationCommand, struct{}](ctx, c.commands, convhandlers.DeleteConversationCommand{
		ActorID:        s.UserID,
		ConversationID: id,
	})
	return err
}

func (c *Coordinator) ListMessages(ctx context.Context, s Session, id domainchat.ConversationID) ([]domainchat.Message, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	return queries.Ask[convhandlers.ListMessagesQuery, []domainchat.Message](ctx, c.queries, convhandlers.ListMessagesQuery{
		ActorID:        s.UserID,
		ConversationID: id,
	})
}

func (c *Coordinator) SendMessage(ctx context.Context, s Session, id domainchat.ConversationID, content string) (domainchat.Message, error) {
	if err := s.check(); err != nil {
		return domainchat.Message{}, err
	}
	return commands.Dispatch[convhandlers.SendMessageCommand, domainchat.Message](ctx, c.commands, convhandlers.SendMessageCommand{
		ActorID:        s.UserID,
		ConversationID: id,
		Content:        content,
	})
}

type CreateOrderRequest struct {
	ListingID string
	// SellerID may be left empty to use the listing owner.
	SellerID string
	Amount   money.Money
	// IdempotencyKey makes retries of the same request return the first
	// outcome.
	IdempotencyKey string
}

// CreateOrder places an order with the session user as buyer.
func (c *Coordinator) CreateOrder(ctx context.Context, s Session, req CreateOrderRequest) (*domainorders.Order, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	return commands.Dispatch[orderhandlers.CreateOrderCommand, *domainorders.Order](ctx, c.commands, orderhandlers.CreateOrderCommand{
		BuyerID:         s.UserID,
		ListingID:       req.ListingID,
		SellerID:        req.SellerID,
		Amount:          req.Amount,
		IdempotencyKeyV: req.IdempotencyKey,
	})
}

func (c *Coordinator) UpdateOrderStatus(ctx context.Context, s Session, id domainorders.OrderID, status domainorders.Status) (*domainorders.Order, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	return commands.Dispatch[orderhandlers.UpdateOrderStatusCommand, *domainorders.Order](ctx, c.commands, orderhandlers.UpdateOrderStatusCommand{
		ActorID: s.UserID,
		OrderID: id,
		Status:  status,
	})
}

// GetOrder returns one of the user's orders with its listing preview and
// both parties' profiles.
func (c *Coordinator) GetOrder(ctx context.Context, s Session, id domainorders.OrderID) (apporders.Summary, error) {
	if err := s.check(); err != nil {
		return apporders.Summary{}, err
	}
	return queries.Ask[orderhandlers.GetOrderQuery, apporders.Summary](ctx, c.queries, orderhandlers.GetOrderQuery{
		ActorID: s.UserID,
		OrderID: id,
	})
}

func (c *Coordinator) ListOrders(ctx context.Context, s Session) ([]apporders.Summary, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	return queries.Ask[orderhandlers.ListOrdersQuery, []apporders.Summary](ctx, c.queries, orderhandlers.ListOrdersQuery{ActorID: s.UserID})
}

func (c *Coordinator) HasUnread(ctx context.Context, s Session) (bool, error) {
	if err := s.check(); err != nil {
		return false, err
	}
	return c.unread.HasUnread(ctx, s.UserID, s.DeviceID)
}

func (c *Coordinator) UnreadCount(ctx context.Context, s Session) (int, error) {
	if err := s.check(); err != nil {
		return 0, err
	}
	return c.unread.UnreadCount(ctx, s.UserID, s.DeviceID)
}

// MarkSeen moves the session's read cursor to now.
func (c *Coordinator) MarkSeen(ctx context.Context, s Session) (time.Time, error) {
	if err := s.check(); err != nil {
		return time.Time{}, err
	}
	return c.unread.MarkSeen(ctx, s.UserID, s.DeviceID)
}
