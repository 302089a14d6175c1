package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nickruden/diplom-server/internal/clock"
	"github.com/nickruden/diplom-server/internal/metrics"
	"github.com/nickruden/diplom-server/internal/repository"
	"github.com/nickruden/diplom-server/internal/service"
	"github.com/nickruden/diplom-server/internal/worker"
	"github.com/nickruden/diplom-server/pkg/config"
	"github.com/nickruden/diplom-server/pkg/database"
	"github.com/nickruden/diplom-server/pkg/kafka"
	"github.com/nickruden/diplom-server/pkg/logger"
	"github.com/nickruden/diplom-server/pkg/retry"
)

const serviceName = "notification-worker"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	logCfg := &logger.Config{
		Level:       cfg.App.LogLevel,
		ServiceName: serviceName,
		Development: cfg.IsDevelopment(),
	}
	if err := logger.Init(logCfg); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	appLog := logger.Get()
	appLog.Info("Starting Notification Worker...")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := metrics.Init(); err != nil {
		appLog.Warn(fmt.Sprintf("Failed to initialize metrics: %v", err))
	}

	loc, err := clock.ParseOffset(cfg.Lifecycle.ClockUTCOffset)
	if err != nil {
		appLog.Fatal(fmt.Sprintf("Invalid clock offset: %v", err))
	}

	// Initialize database connection
	dbCfg := &database.PostgresConfig{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		Database:        cfg.Database.DBName,
		SSLMode:         cfg.Database.SSLMode,
		MaxConns:        int32(cfg.Database.MaxConns),
		MinConns:        int32(cfg.Database.MinConns),
		MaxConnLifetime: cfg.Database.ConnMaxLifetime,
		MaxConnIdleTime: cfg.Database.ConnMaxIdleTime,
		MaxRetries:      5,
		RetryInterval:   2 * time.Second,
		TxMaxRetries:    cfg.Database.TxMaxRetries,
	}
	db, err := database.NewPostgres(ctx, dbCfg)
	if err != nil {
		appLog.Fatal(fmt.Sprintf("Failed to connect to database: %v", err))
	}
	defer db.Close()
	appLog.Info("Database connected")

	notifications := service.NewNotificationService(
		repository.NewPostgresNotificationRepository(db.Pool()),
		repository.NewPostgresSocialRepository(db.Pool()),
		clock.NewSystem(loc),
	)

	// Initialize Kafka consumer
	consumerCfg := &kafka.ConsumerConfig{
		Brokers:        cfg.Kafka.Brokers,
		GroupID:        cfg.Kafka.ConsumerGroup,
		Topics:         []string{cfg.Notification.Topic},
		ClientID:       serviceName,
		MaxRetries:     5,
		RetryInterval:  2 * time.Second,
		SessionTimeout: 30 * time.Second,
	}
	consumer, err := kafka.NewConsumer(ctx, consumerCfg)
	if err != nil {
		appLog.Fatal(fmt.Sprintf("Failed to create Kafka consumer: %v", err))
	}
	defer consumer.Close()
	appLog.Info("Kafka consumer connected")

	// Dead letters go to "<topic>.dlq"
	producer, err := kafka.NewProducer(ctx, &kafka.ProducerConfig{
		Brokers:       cfg.Kafka.Brokers,
		ClientID:      serviceName + "-dlq",
		MaxRetries:    5,
		RetryInterval: 2 * time.Second,
	})
	if err != nil {
		appLog.Fatal(fmt.Sprintf("Failed to create Kafka DLQ producer: %v", err))
	}
	defer producer.Close()

	dlq := retry.NewDLQHandler(retry.NewKafkaDLQPublisher(producer, serviceName), &retry.DLQHandlerConfig{
		RetryConfig: retry.DefaultConfig(),
		Source:      serviceName,
		OnDLQ: func(msg *retry.DLQMessage) {
			appLog.Warn(fmt.Sprintf("Notice %s moved to %s after %d attempts: %s",
				msg.ID, retry.DLQTopic(msg.OriginalTopic), msg.Attempts, msg.Error))
		},
	})

	consumerWorker := worker.NewNotificationConsumer(consumer, notifications, dlq)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return consumerWorker.Run(gctx)
	})

	if err := g.Wait(); err != nil {
		appLog.Error(fmt.Sprintf("Notification worker stopped with error: %v", err))
	}
	appLog.Info("Notification worker stopped")
}
