package di

import (
	"fmt"

	"github.com/nickruden/diplom-server/internal/clock"
	"github.com/nickruden/diplom-server/internal/gateway"
	"github.com/nickruden/diplom-server/internal/handler"
	"github.com/nickruden/diplom-server/internal/repository"
	"github.com/nickruden/diplom-server/internal/service"
	"github.com/nickruden/diplom-server/internal/worker"
	"github.com/nickruden/diplom-server/pkg/config"
	"github.com/nickruden/diplom-server/pkg/database"
	"github.com/nickruden/diplom-server/pkg/kafka"
	"github.com/nickruden/diplom-server/pkg/redis"
)

const (
	DeliveryKafka  = "kafka"
	DeliveryDirect = "direct"
	DeliveryInline = "inline"
)

// Container holds all dependencies of the API process
type Container struct {
	// Infrastructure
	DB       *database.PostgresDB
	Redis    *redis.Client
	Producer *kafka.Producer
	Clock    clock.TimeSource

	// Repositories
	Store            repository.LedgerStore
	EventRepo        repository.EventRepository
	TicketRepo       repository.TicketRepository
	PurchaseRepo     repository.PurchaseRepository
	SocialRepo       repository.SocialRepository
	NotificationRepo repository.NotificationRepository
	OutboxRepo       repository.OutboxRepository
	EventCache       repository.EventCache

	// Services
	NotificationService service.NotificationService
	Dispatcher          service.Dispatcher
	EventService        service.EventService
	TicketService       service.TicketService
	PurchaseService     service.PurchaseService
	LifecycleService    service.LifecycleService
	PaymentService      service.PaymentService
	UserService         service.UserService

	// Handlers
	Handlers *handler.Handlers

	// Workers
	LifecycleWorker *worker.LifecycleWorker
	OutboxWorker    *worker.OutboxWorker
}

// ContainerConfig contains configuration for building the container
type ContainerConfig struct {
	Config *config.Config
	// DB is the PostgreSQL pool. Without it every repository lives in memory.
	DB    *database.PostgresDB
	Redis *redis.Client
	// Producer is required when notices are delivered through Kafka
	Producer *kafka.Producer
	Gateway  gateway.PaymentGateway
	Clock    clock.TimeSource
}

// NewContainer creates a new dependency injection container
func NewContainer(cfg *ContainerConfig) (*Container, error) {
	appCfg := cfg.Config
	if appCfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	c := &Container{
		DB:       cfg.DB,
		Redis:    cfg.Redis,
		Producer: cfg.Producer,
		Clock:    cfg.Clock,
	}
	if c.Clock == nil {
		loc, err := clock.ParseOffset(appCfg.Lifecycle.ClockUTCOffset)
		if err != nil {
			return nil, err
		}
		c.Clock = clock.NewSystem(loc)
	}

	// Initialize repositories
	if c.DB != nil {
		pool := c.DB.Pool()
		c.Store = repository.NewPostgresLedgerStore(c.DB.TxRunner())
		c.EventRepo = repository.NewPostgresEventRepository(pool)
		c.TicketRepo = repository.NewPostgresTicketRepository(pool)
		c.PurchaseRepo = repository.NewPostgresPurchaseRepository(pool)
		c.SocialRepo = repository.NewPostgresSocialRepository(pool)
		c.NotificationRepo = repository.NewPostgresNotificationRepository(pool)
		c.OutboxRepo = repository.NewPostgresOutboxRepository(pool)
	} else {
		mem := repository.NewMemoryStore()
		c.Store = mem
		c.EventRepo = mem.Events()
		c.TicketRepo = mem.Tickets()
		c.PurchaseRepo = mem.Purchases()
		c.SocialRepo = mem.Social()
		c.NotificationRepo = mem.Notifications()
		c.OutboxRepo = mem.Outbox()
	}

	// Wrap with cache if Redis is available
	if c.Redis != nil {
		c.EventCache = repository.NewRedisEventCache(c.Redis, appCfg.Cache.EventTTL)
		c.EventRepo = repository.NewCachedEventRepository(c.EventRepo, c.EventCache)
	} else {
		c.EventCache = repository.NoopEventCache{}
	}

	// Initialize services
	c.NotificationService = service.NewNotificationService(c.NotificationRepo, c.SocialRepo, c.Clock)
	if appCfg.Notification.Delivery == DeliveryInline {
		c.Dispatcher = service.NewDirectDispatcher(c.NotificationService)
	} else {
		c.Dispatcher = service.NewOutboxDispatcher(c.OutboxRepo, appCfg.Notification.Topic, c.Clock)
	}

	c.EventService = service.NewEventService(service.EventServiceDeps{
		Store:      c.Store,
		Events:     c.EventRepo,
		Tickets:    c.TicketRepo,
		Purchases:  c.PurchaseRepo,
		Social:     c.SocialRepo,
		Cache:      c.EventCache,
		Dispatcher: c.Dispatcher,
		Clock:      c.Clock,
	})
	c.TicketService = service.NewTicketService(c.Store, c.TicketRepo, c.EventRepo, c.EventCache, c.Dispatcher, c.Clock)
	c.PurchaseService = service.NewPurchaseService(c.Store, c.PurchaseRepo, c.TicketRepo, c.EventRepo, c.EventCache, c.Clock)
	c.LifecycleService = service.NewLifecycleService(c.EventRepo, c.Store, c.EventCache, c.Clock, &service.LifecycleServiceConfig{
		BatchSize: appCfg.Lifecycle.SweepBatchSize,
	})
	c.UserService = service.NewUserService(c.SocialRepo)

	gw := cfg.Gateway
	if gw == nil {
		var err error
		gw, err = gateway.NewPaymentGateway(&gateway.Config{
			Provider:  appCfg.Payment.Provider,
			SecretKey: appCfg.Payment.StripeSecretKey,
			Currency:  appCfg.Payment.Currency,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create payment gateway: %w", err)
		}
	}
	c.PaymentService = service.NewPaymentService(gw, &service.PaymentServiceConfig{Currency: appCfg.Payment.Currency})

	// Initialize handlers
	components := map[string]handler.HealthChecker{"database": nil, "redis": nil}
	if c.DB != nil {
		components["database"] = c.DB
	}
	if c.Redis != nil {
		components["redis"] = c.Redis
	}
	c.Handlers = &handler.Handlers{
		Health:  handler.NewHealthHandler(components),
		Event:   handler.NewEventHandler(c.EventService),
		Ticket:  handler.NewTicketHandler(c.TicketService),
		Payment: handler.NewPaymentHandler(c.PaymentService, c.PurchaseService),
		User:    handler.NewUserHandler(c.UserService, c.NotificationService),
	}

	// Initialize workers
	publisher, err := c.outboxPublisher(appCfg.Notification.Delivery)
	if err != nil {
		return nil, err
	}
	c.OutboxWorker = worker.NewOutboxWorker(c.OutboxRepo, publisher, &worker.OutboxWorkerConfig{
		PollInterval:         appCfg.Outbox.PollInterval,
		BatchSize:            appCfg.Outbox.BatchSize,
		CleanupInterval:      appCfg.Outbox.CleanupInterval,
		CleanupRetentionDays: appCfg.Outbox.CleanupRetentionDays,
	})
	c.LifecycleWorker = worker.NewLifecycleWorker(c.LifecycleService, &worker.LifecycleWorkerConfig{
		Interval:   appCfg.Lifecycle.SweepInterval,
		RunOnStart: true,
	})

	return c, nil
}

func (c *Container) outboxPublisher(delivery string) (worker.Publisher, error) {
	switch delivery {
	case DeliveryKafka:
		if c.Producer == nil {
			return nil, fmt.Errorf("notification delivery %q requires a kafka producer", delivery)
		}
		return worker.NewKafkaPublisher(c.Producer), nil
	case DeliveryDirect, DeliveryInline, "":
		return worker.NewDeliveryPublisher(c.NotificationService), nil
	default:
		return nil, fmt.Errorf("unsupported notification delivery: %s", delivery)
	}
}
