package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/campops/procurement-service/config"
	"github.com/campops/procurement-service/internal/server"
	"github.com/campops/procurement-service/pkg/broker"
	"github.com/campops/procurement-service/pkg/cache"
	"github.com/campops/procurement-service/pkg/database/postgres"
	"github.com/campops/procurement-service/pkg/logger"
	"github.com/campops/procurement-service/pkg/search"

	invH "github.com/campops/procurement-service/internal/inventory/handler"
	invRepoPkg "github.com/campops/procurement-service/internal/inventory/repository"
	invUCPkg "github.com/campops/procurement-service/internal/inventory/usecase"

	notifH "github.com/campops/procurement-service/internal/notification/handler"
	notifRepoPkg "github.com/campops/procurement-service/internal/notification/repository"
	notifUCPkg "github.com/campops/procurement-service/internal/notification/usecase"

	orderH "github.com/campops/procurement-service/internal/order/handler"
	orderRepoPkg "github.com/campops/procurement-service/internal/order/repository"
	orderUCPkg "github.com/campops/procurement-service/internal/order/usecase"

	receiptH "github.com/campops/procurement-service/internal/receipt/handler"
	receiptListenerPkg "github.com/campops/procurement-service/internal/receipt/listener"
	receiptRepoPkg "github.com/campops/procurement-service/internal/receipt/repository"
	receiptUCPkg "github.com/campops/procurement-service/internal/receipt/usecase"

	refdataRepoPkg "github.com/campops/procurement-service/internal/refdata/repository"

	"github.com/joho/godotenv"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
)

func main() {
	// 1. Load Configuration
	_ = godotenv.Load()
	cfg := config.LoadEnv()

	// 2. Initialize Logger
	appLogger := logger.NewZapLogger(&logger.ZapLoggerConfig{
		IsDevelopment:     cfg.Server.AppEnv != "production",
		Encoding:          cfg.Logger.Encoding,
		Level:             cfg.Logger.Level,
		DisableCaller:     cfg.Logger.DisableCaller,
		DisableStacktrace: cfg.Logger.DisableStacktrace,
	})
	defer appLogger.Sync()

	// 3. Connect to Database
	db, err := postgres.NewPostgres(&postgres.Config{
		Host:            cfg.Postgres.Host,
		Port:            cfg.Postgres.Port,
		User:            cfg.Postgres.User,
		Password:        cfg.Postgres.Password,
		DBName:          cfg.Postgres.DBName,
		SSLMode:         cfg.Postgres.SSLMode,
		MaxOpenConns:    cfg.Postgres.MaxOpenConns,
		MaxIdleConns:    cfg.Postgres.MaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.Postgres.ConnMaxLifetime) * time.Second,
		ConnMaxIdleTime: time.Duration(cfg.Postgres.ConnMaxIdleTime) * time.Second,
	})
	if err != nil {
		appLogger.Fatal("could not connect to database", zap.Error(err))
	}
	defer db.Close()
	appLogger.Info("connected to PostgreSQL", zap.String("db_name", cfg.Postgres.DBName))

	// 3.5 Run Migrations
	if err := goose.SetDialect("postgres"); err != nil {
		appLogger.Fatal("could not set migration dialect", zap.Error(err))
	}
	if err := goose.Up(db.DB, "migrations"); err != nil {
		appLogger.Fatal("could not run migrations", zap.Error(err))
	}
	appLogger.Info("migrations applied")

	// 4. Initialize Repositories
	refRepo := refdataRepoPkg.NewPGRepository(db)
	invRepo := invRepoPkg.NewPGRepository(db)
	orderRepo := orderRepoPkg.NewPGRepository(db)
	receiptRepo := receiptRepoPkg.NewPGRepository(db)
	notifRepo := notifRepoPkg.NewPGRepository(db)

	// 5. Initialize Redis
	redisClient, err := cache.NewRedisClient(&cache.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		appLogger.Fatal("could not connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()
	appLogger.Info("connected to Redis", zap.String("addr", cfg.Redis.Addr))

	// 5.5 Initialize Kafka
	kafkaConsumer := broker.NewConsumer(&broker.Config{
		Brokers: cfg.Kafka.Brokers,
		Topic:   cfg.Kafka.ExtractionTopic,
		GroupID: cfg.Kafka.GroupID,
	})
	defer kafkaConsumer.Close()

	kafkaProducer := broker.NewProducer(&broker.Config{
		Brokers: cfg.Kafka.Brokers,
		Topic:   cfg.Kafka.NotificationTopic,
	})
	defer kafkaProducer.Close()
	appLogger.Info("connected to Kafka",
		zap.Strings("brokers", cfg.Kafka.Brokers),
		zap.String("extraction_topic", cfg.Kafka.ExtractionTopic))

	// 5.8 Initialize Elasticsearch
	esClient, err := search.NewClient(&search.Config{
		Addresses: cfg.Elastic.Addresses,
		Username:  cfg.Elastic.Username,
		Password:  cfg.Elastic.Password,
	})
	if err != nil {
		appLogger.Warn("could not connect to Elasticsearch, search falls back to SQL", zap.Error(err))
		esClient = nil
	} else {
		appLogger.Info("connected to Elasticsearch", zap.Strings("addresses", cfg.Elastic.Addresses))
	}

	// 6. Initialize UseCases
	notifUC := notifUCPkg.NewNotificationUseCase(notifRepo, refRepo, kafkaProducer, appLogger)
	invUC := invUCPkg.NewInventoryUseCase(invRepo, refRepo, redisClient, esClient, cfg.Matcher, cfg.Catalog, appLogger)
	orderUC := orderUCPkg.NewOrderUseCase(orderRepo, invRepo, refRepo, notifUC, redisClient, cfg.Matcher, appLogger)
	receiptUC := receiptUCPkg.NewReceiptUseCase(receiptRepo, orderRepo, invRepo, refRepo, cfg.Catalog, appLogger)

	// 6.5 Start Extraction Listener
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	extractionListener := receiptListenerPkg.NewExtractionListener(kafkaConsumer, receiptUC, appLogger)
	go extractionListener.Start(ctx)

	// 7. Initialize Handlers and Router
	router := server.NewRouter(cfg.Server.AppEnv, server.Handlers{
		Orders:        orderH.NewOrderHandler(orderUC, appLogger),
		Inventory:     invH.NewInventoryHandler(invUC, appLogger),
		Receipts:      receiptH.NewReceiptHandler(receiptUC, appLogger),
		Notifications: notifH.NewNotificationHandler(notifUC, appLogger),
	})

	// 8. Start HTTP Server
	port := cfg.Server.HTTPPort
	if !strings.HasPrefix(port, ":") {
		port = ":" + port
	}
	srv := &http.Server{
		Addr:         port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		appLogger.Info("starting HTTP server", zap.String("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Fatal("failed to serve", zap.Error(err))
		}
	}()

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("shutting down server...")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("forced shutdown", zap.Error(err))
	}
	appLogger.Info("server stopped")
}
