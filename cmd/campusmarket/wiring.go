package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/gocql/gocql"
	"github.com/google/uuid"

	appchat "campusmarket/internal/app/chat"
	"campusmarket/internal/app/coordinator"
	"campusmarket/internal/app/middleware"
	apporders "campusmarket/internal/app/orders"
	appoutbox "campusmarket/internal/app/outbox"
	"campusmarket/internal/app/policies"
	"campusmarket/internal/app/realtime"
	"campusmarket/internal/app/unread"
	domainchat "campusmarket/internal/domain/chat"
	domainlistings "campusmarket/internal/domain/listings"
	domainorders "campusmarket/internal/domain/orders"
	"campusmarket/internal/domain/shared/money"
	"campusmarket/internal/infra/broker/kafka"
	rediscache "campusmarket/internal/infra/cache/redis"
	"campusmarket/internal/infra/config"
	mongostore "campusmarket/internal/infra/db/mongo"
	ginserver "campusmarket/internal/infra/http/gin"
	"campusmarket/internal/infra/obs"
	"campusmarket/internal/infra/outbox"
	"campusmarket/internal/infra/storage/memory"
	s3store "campusmarket/internal/infra/storage/s3"
	"campusmarket/internal/infra/storage/scylla"
)

type application struct {
	handlers   ginserver.Handlers
	ready      obs.Checks
	feed       *kafka.Consumer
	feedTopics []string
	producer   *kafka.Producer
	relay      *outbox.Relay
	closers    []func(context.Context) error
	closeOnce  sync.Once
}

func (a *application) close(logger *slog.Logger) {
	a.closeOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		for i := len(a.closers) - 1; i >= 0; i-- {
			if err := a.closers[i](ctx); err != nil {
				logger.Warn("shutdown step failed", "error", err)
			}
		}
	})
}

type storage struct {
	conversations domainchat.ConversationRepository
	messages      domainchat.MessageRepository
	inbound       domainchat.InboundCounter
	orders        domainorders.Repository
	listings      policies.ListingCatalog
	profiles      policies.ProfileDirectory
	auth          policies.Authenticator
	idempotency   middleware.IdempotencyStore
	// outbox is set when mongo is available.
	outbox *outbox.Store
}

func buildApplication(ctx context.Context, cfg config.Config, logger *slog.Logger) (*application, error) {
	app := &application{ready: obs.Checks{}}
	fail := func(err error) (*application, error) {
		app.close(logger)
		return nil, err
	}

	store, err := app.buildStorage(ctx, cfg, logger)
	if err != nil {
		return fail(err)
	}
	cursors, err := app.buildCursors(ctx, cfg)
	if err != nil {
		return fail(err)
	}

	hub := realtime.NewHub(realtime.DefaultSubscriberBuffer, logger)
	app.closers = append(app.closers, func(context.Context) error { hub.Close(); return nil })
	publisher, err := app.buildFeed(cfg, hub, logger)
	if err != nil {
		return fail(err)
	}

	var images policies.ImageSigner
	if cfg.S3Endpoint != "" {
		signer, err := s3store.NewSigner(cfg.S3Endpoint, cfg.S3UseSSL, cfg.S3AccessKey, cfg.S3SecretKey, cfg.S3Bucket, cfg.S3PresignTTL, logger)
		if err != nil {
			return fail(err)
		}
		images = signer
		app.ready["s3"] = signer.Ping
	}

	announce, err := apporders.ParseAnnouncements(cfg.OrderAnnounce)
	if err != nil {
		return fail(err)
	}
	box := app.buildRelay(cfg, store, logger)

	resolver := &appchat.Resolver{Conversations: store.conversations, NewID: uuid.NewString, Now: time.Now, Logger: logger}
	messages := &appchat.MessageService{
		Conversations: store.conversations,
		Messages:      store.messages,
		Publisher:     publisher,
		NewID:         uuid.NewString,
		Now:           time.Now,
		Logger:        logger,
	}
	coord := coordinator.New(coordinator.Config{
		Resolver: resolver,
		Messages: messages,
		Summaries: &appchat.SummaryBuilder{
			Conversations: store.conversations,
			Messages:      store.messages,
			Listings:      store.listings,
			Profiles:      store.profiles,
			Images:        images,
			Logger:        logger,
		},
		Conversations: store.conversations,
		Orders: &apporders.Machine{
			Orders:   store.orders,
			Listings: store.listings,
			Resolver: resolver,
			Messages: messages,
			Announce: announce,
			Outbox:   box,
			NewID:    uuid.NewString,
			Now:      time.Now,
			Logger:   logger,
		},
		Unread:          &unread.Tracker{Cursors: cursors, Messages: store.inbound, Now: time.Now, Logger: logger},
		Hub:             hub,
		Idempotency:     store.idempotency,
		RefreshDebounce: cfg.RefreshDebounce,
		Logger:          logger,
	})

	app.handlers = ginserver.Handlers{
		Chat:           ginserver.ChatHandler{Coordinator: coord, Logger: logger},
		Orders:         ginserver.OrderHandler{Coordinator: coord, Currency: cfg.OrderCurrency, Logger: logger},
		Stream:         ginserver.StreamHandler{Coordinator: coord, Logger: logger},
		AuthMiddleware: ginserver.AuthMiddleware{Authenticator: store.auth, Logger: logger}.Handle,
	}
	return app, nil
}

func (a *application) buildStorage(ctx context.Context, cfg config.Config, logger *slog.Logger) (storage, error) {
	var (
		store   storage
		mongoDB *mongostore.Client
	)
	if cfg.MongoURI != "" {
		client, err := mongostore.New(ctx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return storage{}, fmt.Errorf("mongo connect: %w", err)
		}
		mongoDB = client
		a.closers = append(a.closers, client.Close)
		a.ready["mongo"] = client.Ping
	}

	switch cfg.StoreDriver {
	case config.StoreMongo:
		chat := mongostore.NewChatStore(mongoDB.DB)
		orders := mongostore.NewOrderRepository(mongoDB.DB)
		idem := mongostore.NewIdempotencyStore(mongoDB.DB, cfg.IdempotencyTTL)
		sessions := mongostore.NewSessionAuthenticator(mongoDB.DB)
		if err := mongostore.EnsureIndexes(ctx, chat, orders, idem, sessions); err != nil {
			return storage{}, fmt.Errorf("mongo indexes: %w", err)
		}
		store = storage{
			conversations: chat,
			messages:      chat,
			inbound:       chat,
			orders:        orders,
			idempotency:   idem,
			auth:          sessions,
		}
	case config.StoreScylla:
		session, err := scylla.NewSession(ctx, cfg, logger)
		if err != nil {
			return storage{}, err
		}
		a.closers = append(a.closers, func(context.Context) error { session.Close(); return nil })
		a.ready["scylla"] = func(ctx context.Context) error {
			return session.Query("SELECT now() FROM system.local").WithContext(ctx).Consistency(gocql.One).Exec()
		}
		chat := scylla.NewChatStore(session, logger)
		store = storage{
			conversations: chat,
			messages:      chat,
			inbound:       chat,
			orders:        scylla.NewOrderRepository(session),
			idempotency:   memory.NewIdempotencyStore(cfg.IdempotencyTTL),
		}
	default:
		chat := memory.NewChatStore()
		store = storage{
			conversations: chat,
			messages:      chat,
			inbound:       chat,
			orders:        memory.NewOrderRepository(),
			idempotency:   memory.NewIdempotencyStore(cfg.IdempotencyTTL),
		}
	}

	if mongoDB != nil {
		box := outbox.NewStore(mongoDB.DB)
		if err := box.EnsureIndexes(ctx); err != nil {
			return storage{}, fmt.Errorf("mongo indexes: %w", err)
		}
		store.outbox = box
		store.listings = mongostore.NewListingCatalog(mongoDB.DB)
		store.profiles = mongostore.NewProfileDirectory(mongoDB.DB)
		if store.auth == nil {
			sessions := mongostore.NewSessionAuthenticator(mongoDB.DB)
			if err := sessions.EnsureIndexes(ctx); err != nil {
				return storage{}, fmt.Errorf("mongo indexes: %w", err)
			}
			store.auth = sessions
		}
	} else {
		listings := memory.NewListingRepository()
		if err := loadListingFixtures(ctx, listings, cfg.ListingFixtures, cfg.OrderCurrency, logger); err != nil {
			logger.Warn("listing fixtures load failed", "error", err, "path", cfg.ListingFixtures)
		}
		store.listings = listings
		store.profiles = memory.NewProfileRepository()
	}
	if len(cfg.AuthTokens) > 0 {
		static := memory.NewStaticTokens(cfg.AuthTokens)
		if store.auth == nil {
			store.auth = static
		} else {
			store.auth = fallbackAuthenticator{primary: store.auth, secondary: static}
		}
	}
	if store.auth == nil {
		logger.Warn("no authenticator configured; every request is anonymous")
	}
	return store, nil
}

func (a *application) buildCursors(ctx context.Context, cfg config.Config) (unread.CursorStore, error) {
	if cfg.CursorDriver != config.CursorRedis {
		return memory.NewCursorStore(), nil
	}
	client, err := rediscache.NewClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func(context.Context) error { return client.Close() })
	cursors := rediscache.NewCursorStore(client, "campusmarket")
	a.ready["redis"] = cursors.Ping
	return cursors, nil
}

// buildFeed returns what the message service publishes into. With Kafka the
// local hub is fed by the consumer so every instance sees every insert.
func (a *application) buildFeed(cfg config.Config, hub *realtime.Hub, logger *slog.Logger) (policies.MessagePublisher, error) {
	if cfg.FeedDriver != config.FeedKafka {
		return hub, nil
	}
	producer, err := kafka.NewProducer(cfg.KafkaBrokers, kafka.NewConfig(cfg.KafkaGroupID))
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	a.closers = append(a.closers, func(context.Context) error { return producer.Close() })
	a.producer = producer

	consumer, err := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaGroupID, kafka.NewConfig(cfg.KafkaGroupID), kafka.FeedRelay{Sink: hub}, logger)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	a.closers = append(a.closers, func(context.Context) error { return consumer.Close() })
	a.feed = consumer
	a.feedTopics = []string{kafka.Topic(cfg.KafkaTopicPrefix)}
	return kafka.NewFeedPublisher(producer, cfg.KafkaTopicPrefix), nil
}

// buildRelay queues order events for Kafka when a producer exists. Without
// mongo the queue lives in memory.
func (a *application) buildRelay(cfg config.Config, store storage, logger *slog.Logger) appoutbox.Outbox {
	if a.producer == nil {
		return nil
	}
	var (
		box    appoutbox.Outbox
		source outbox.Source
	)
	if store.outbox != nil {
		box, source = store.outbox, store.outbox
	} else {
		mem := outbox.NewMemoryStore()
		box, source = mem, mem
	}
	a.relay = &outbox.Relay{
		Store:       source,
		Producer:    a.producer,
		Interval:    cfg.OutboxInterval,
		TopicPrefix: cfg.KafkaTopicPrefix,
		ID:          cfg.KafkaGroupID,
		Backoff:     []time.Duration{time.Second, 5 * time.Second, 30 * time.Second},
		Logger:      logger,
	}
	return box
}

// fallbackAuthenticator tries the session store first and the static
// tokens second.
type fallbackAuthenticator struct {
	primary   policies.Authenticator
	secondary policies.Authenticator
}

func (f fallbackAuthenticator) Authenticate(ctx context.Context, token string) (string, error) {
	user, err := f.primary.Authenticate(ctx, token)
	if err == nil {
		return user, nil
	}
	if user, err2 := f.secondary.Authenticate(ctx, token); err2 == nil {
		return user, nil
	}
	return "", err
}

type listingFixture struct {
	ID         string   `json:"id"`
	OwnerID    string   `json:"owner_id"`
	Title      string   `json:"title"`
	PriceCents int64    `json:"price_cents"`
	Currency   string   `json:"currency"`
	Images     []string `json:"images"`
	Status     string   `json:"status"`
}

func loadListingFixtures(ctx context.Context, repo *memory.ListingRepository, path, currency string, logger *slog.Logger) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Info("listing fixtures file not found, skipping", "path", path)
			return nil
		}
		return fmt.Errorf("read fixtures: %w", err)
	}
	var fixtures []listingFixture
	if err := json.Unmarshal(data, &fixtures); err != nil {
		return fmt.Errorf("decode fixtures: %w", err)
	}
	now := time.Now().UTC()
	for _, fx := range fixtures {
		cur := fx.Currency
		if cur == "" {
			cur = currency
		}
		price, err := money.New(fx.PriceCents, cur)
		if err != nil {
			logger.Error("fixture invalid", "listing_id", fx.ID, "error", err)
			continue
		}
		listing := domainlistings.Listing{
			ID:        domainlistings.ListingID(fx.ID),
			OwnerID:   fx.OwnerID,
			Title:     fx.Title,
			Price:     price,
			Images:    append([]string(nil), fx.Images...),
			Status:    domainlistings.Status(fx.Status),
			UpdatedAt: now,
		}
		if err := repo.Save(ctx, listing); err != nil {
			logger.Error("cannot store fixture listing", "listing_id", fx.ID, "error", err)
			continue
		}
		logger.Info("listing fixture imported", "listing_id", listing.ID)
	}
	return nil
}
