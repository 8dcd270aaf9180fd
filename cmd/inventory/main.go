package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/go-order-saga/internal/config"
	"github.com/ariefcatur/go-order-saga/internal/httpx"
	"github.com/ariefcatur/go-order-saga/internal/inventory"
	kafkax "github.com/ariefcatur/go-order-saga/internal/kafka"
	"github.com/ariefcatur/go-order-saga/internal/logx"
	"github.com/ariefcatur/go-order-saga/internal/postgres"
	"github.com/ariefcatur/go-order-saga/internal/redisx"
	"github.com/ariefcatur/go-order-saga/internal/telemetry"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load("inventory", ":8082")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	otelProviders, otelErr := telemetry.Setup(ctx, cfg.ServiceName, cfg.OtelEndpoint)
	logger := logx.New(cfg.ServiceName, cfg.LogLevel, otelProviders.LogProvider())
	defer func() { _ = logger.Sync() }()
	if otelErr != nil {
		logger.Warn("telemetry partially disabled", zap.Error(otelErr))
	}

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()
	if err := redisx.Ping(ctx, rdb); err != nil {
		logger.Warn("redis ping failed", zap.Error(err))
	}

	// Kafka producer: order.completed, order.rejected, notification.created, dead letters
	prod := kafkax.NewProducer(cfg.KafkaBrokers, 1024, logger.Named("producer"))
	prod.Start()

	svc := inventory.NewService(inventory.NewRepo(db), kafkax.NewEventPublisher(prod, cfg.ServiceName), logger.Named("inventory"))

	cons := kafkax.NewConsumer(kafkax.ConsumerConfig{
		Brokers:     cfg.KafkaBrokers,
		Group:       cfg.Consumer.Group,
		Workers:     cfg.Consumer.Workers,
		MaxAttempts: cfg.Consumer.MaxAttempts,
		Backoff:     cfg.Consumer.RetryBackoff,
	}, svc.Routes(), prod, redisx.NewDedup(rdb, cfg.Consumer.Group), logger.Named("consumer"))

	router := httpx.NewRouter(logger)
	(&httpx.InventoryHandler{Service: svc}).Register(router)
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("inventory consumer started", zap.String("group", cfg.Consumer.Group), zap.Int("workers", cfg.Consumer.Workers))
		return cons.Start(gctx)
	})
	g.Go(func() error { return httpx.Serve(gctx, srv, logger) })

	if err := g.Wait(); err != nil {
		logger.Error("inventory stopped", zap.Error(err))
	}
	logger.Info("shutting down...")

	prod.Close()      // close inbox -> flush & close writer
	prod.WaitClosed() // drain

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = otelProviders.Shutdown(shutdownCtx)
}
