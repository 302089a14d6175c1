package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
	"golang.org/x/sync/errgroup"

	"github.com/nickruden/diplom-server/internal/di"
	"github.com/nickruden/diplom-server/internal/handler"
	"github.com/nickruden/diplom-server/internal/metrics"
	"github.com/nickruden/diplom-server/internal/repository"
	"github.com/nickruden/diplom-server/pkg/config"
	"github.com/nickruden/diplom-server/pkg/database"
	"github.com/nickruden/diplom-server/pkg/kafka"
	"github.com/nickruden/diplom-server/pkg/logger"
	"github.com/nickruden/diplom-server/pkg/middleware"
	"github.com/nickruden/diplom-server/pkg/redis"
	"github.com/nickruden/diplom-server/pkg/telemetry"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	logCfg := &logger.Config{
		Level:       cfg.App.LogLevel,
		ServiceName: cfg.App.Name,
		Development: cfg.IsDevelopment(),
	}
	if err := logger.Init(logCfg); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	appLog := logger.Get()
	appLog.Info(fmt.Sprintf("Starting %s (%s)...", cfg.App.Name, cfg.App.Environment))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize telemetry
	telemetryCfg := &telemetry.Config{
		Enabled:        cfg.OTel.Enabled,
		ServiceName:    cfg.OTel.ServiceName,
		ServiceVersion: cfg.App.Version,
		Environment:    cfg.App.Environment,
		CollectorAddr:  cfg.OTel.CollectorAddr,
		SampleRatio:    cfg.OTel.SampleRatio,
	}
	if _, err := telemetry.Init(ctx, telemetryCfg); err != nil {
		appLog.Warn(fmt.Sprintf("Failed to initialize telemetry: %v", err))
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = telemetry.Shutdown(shutdownCtx)
		}()
	}

	if err := metrics.Init(); err != nil {
		appLog.Warn(fmt.Sprintf("Failed to initialize metrics: %v", err))
	}

	// Initialize database connection
	if err := cfg.ValidateDatabase(); err != nil {
		appLog.Fatal(err.Error())
	}
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
		ConnectTimeout:  5 * time.Second,
		MaxRetries:      5,
		RetryInterval:   2 * time.Second,
		TxMaxRetries:    cfg.Database.TxMaxRetries,
		EnableTracing:   cfg.OTel.Enabled,
	}
	db, err := database.NewPostgres(ctx, dbCfg)
	if err != nil {
		appLog.Fatal(fmt.Sprintf("Failed to connect to database: %v", err))
	}
	defer db.Close()
	appLog.Info("Database connected")

	if cfg.Database.AutoMigrate {
		if err := repository.InitializeSchema(ctx, db.Pool()); err != nil {
			appLog.Fatal(fmt.Sprintf("Failed to initialize schema: %v", err))
		}
		appLog.Info("Database schema ready")
	}

	// Initialize Redis connection (optional: cache and idempotency)
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisCfg := &redis.Config{
			Host:          cfg.Redis.Host,
			Port:          cfg.Redis.Port,
			Password:      cfg.Redis.Password,
			DB:            cfg.Redis.DB,
			PoolSize:      cfg.Redis.PoolSize,
			MinIdleConns:  cfg.Redis.MinIdleConns,
			DialTimeout:   cfg.Redis.DialTimeout,
			ReadTimeout:   cfg.Redis.ReadTimeout,
			WriteTimeout:  cfg.Redis.WriteTimeout,
			MaxRetries:    3,
			RetryInterval: time.Second,
			EnableTracing: cfg.OTel.Enabled,
		}
		redisClient, err = redis.NewClient(ctx, redisCfg)
		if err != nil {
			appLog.Warn(fmt.Sprintf("Failed to connect to Redis, running without cache: %v", err))
			redisClient = nil
		} else {
			defer redisClient.Close()
			appLog.Info("Redis connected")
		}
	}

	// Initialize Kafka producer for notice delivery
	var producer *kafka.Producer
	if cfg.Notification.Delivery == di.DeliveryKafka {
		producer, err = kafka.NewProducer(ctx, &kafka.ProducerConfig{
			Brokers:        cfg.Kafka.Brokers,
			ClientID:       cfg.Kafka.ClientID,
			MaxRetries:     5,
			RetryInterval:  2 * time.Second,
			ProduceTimeout: 10 * time.Second,
		})
		if err != nil {
			appLog.Fatal(fmt.Sprintf("Failed to create Kafka producer: %v", err))
		}
		defer producer.Close()
		appLog.Info("Kafka producer connected")
	}

	container, err := di.NewContainer(&di.ContainerConfig{
		Config:   cfg,
		DB:       db,
		Redis:    redisClient,
		Producer: producer,
	})
	if err != nil {
		appLog.Fatal(fmt.Sprintf("Failed to build container: %v", err))
	}

	// Setup router
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(appLog))
	if cfg.OTel.Enabled {
		router.Use(telemetry.TracingMiddleware())
	}

	routeCfg := &handler.RouteConfig{
		Auth: middleware.Auth(&middleware.AuthConfig{
			Secret: cfg.JWT.Secret,
			Issuer: cfg.JWT.Issuer,
		}),
	}
	if redisClient != nil {
		routeCfg.Idempotency = middleware.IdempotencyMiddleware(middleware.DefaultIdempotencyConfig(redisClient))
	}
	handler.RegisterRoutes(router, container.Handlers, routeCfg)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", middleware.IdempotencyKeyHeader, "X-Request-ID"},
		AllowCredentials: true,
	}).Handler(router)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      corsHandler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start background workers
	if err := container.OutboxWorker.Start(ctx); err != nil {
		appLog.Fatal(fmt.Sprintf("Failed to start outbox worker: %v", err))
	}
	defer container.OutboxWorker.Stop()

	if cfg.Lifecycle.SweepEnabled {
		if err := container.LifecycleWorker.Start(ctx); err != nil {
			appLog.Fatal(fmt.Sprintf("Failed to start lifecycle worker: %v", err))
		}
		defer container.LifecycleWorker.Stop()
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		appLog.Info(fmt.Sprintf("Server listening on %s", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		appLog.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		appLog.Error(fmt.Sprintf("Server stopped with error: %v", err))
	}

	appLog.Info("Server exited")
}
