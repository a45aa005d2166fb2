package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-sales-orders/internal/audit"
	"github.com/ariefcatur/go-sales-orders/internal/config"
	kafkax "github.com/ariefcatur/go-sales-orders/internal/kafka"
	"github.com/ariefcatur/go-sales-orders/internal/observability"
	"github.com/ariefcatur/go-sales-orders/internal/postgres"
	"github.com/ariefcatur/go-sales-orders/internal/redisx"
	"github.com/ariefcatur/go-sales-orders/internal/sales"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	logger, err := observability.NewLogger(cfg.LogLevel, cfg.ServiceName+"-auditor")
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	svc := &audit.Service{
		Store:  &postgres.AuditRepository{DB: db},
		Dedup:  redisx.NewDedup(rdb, "auditor"),
		Logger: logger,
	}

	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.AuditorGroup, sales.TopicSalesEvents, cfg.AuditorWorkers, logger)
	logger.Info("auditor consumer started",
		zap.String("group", cfg.AuditorGroup),
		zap.String("topic", sales.TopicSalesEvents),
		zap.Int("workers", cfg.AuditorWorkers),
	)
	if err := cons.Start(ctx, svc.HandleSaleEvent); err != nil {
		logger.Error("consumer exit", zap.Error(err))
	}
	logger.Info("auditor stopped")
}
