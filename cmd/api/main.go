package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ariefcatur/go-sales-orders/internal/auth"
	"github.com/ariefcatur/go-sales-orders/internal/config"
	"github.com/ariefcatur/go-sales-orders/internal/httpx"
	"github.com/ariefcatur/go-sales-orders/internal/integration"
	kafkax "github.com/ariefcatur/go-sales-orders/internal/kafka"
	"github.com/ariefcatur/go-sales-orders/internal/observability"
	"github.com/ariefcatur/go-sales-orders/internal/payment"
	"github.com/ariefcatur/go-sales-orders/internal/postgres"
	"github.com/ariefcatur/go-sales-orders/internal/redisx"
	"github.com/ariefcatur/go-sales-orders/internal/sales"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	logger, err := observability.NewLogger(cfg.LogLevel, cfg.ServiceName)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid config", zap.Error(err))
	}
	if err := run(cfg, logger); err != nil {
		logger.Fatal("sales api stopped", zap.Error(err))
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics("sales", reg)

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		return err
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producer
	prod := kafkax.NewProducer(cfg.KafkaBrokers, sales.TopicSalesEvents, 1024, logger)
	prod.Start()

	// Payment gateways
	gateways := make(map[string]integration.Options, len(cfg.Gateways))
	for name, gc := range cfg.Gateways {
		gateways[name] = integration.Options{
			Config:    gc,
			Timeout:   cfg.GatewayTimeout,
			Retries:   cfg.GatewayRetries,
			RetryBase: cfg.GatewayRetryBase,
			Logger:    logger,
			Metrics:   metrics,
		}
	}
	adapter := payment.NewAdapter(
		payment.NewClients(gateways),
		payment.Formatter{FrontendURL: cfg.FrontendURL, APIURL: cfg.APIURL},
		logger,
	)

	svc := sales.NewService(sales.Deps{
		Repo:     &postgres.SaleRepository{DB: db},
		Cache:    redisx.NewSaleCache(rdb, logger),
		Events:   prod,
		Payments: adapter,
		Logger:   logger,
		Producer: cfg.ServiceName,
	})

	authn := auth.New(cfg.JWTSecret,
		auth.WithIssuer(cfg.JWTIssuer),
		auth.WithAudience(cfg.JWTAudience),
		auth.WithBlacklist(auth.NewBlacklistClient(cfg.CustomerServiceURL, cfg.CustomerServiceToken, logger)),
		auth.WithLogger(logger),
		auth.WithErrorWriter(httpx.WriteError),
	)

	router := httpx.NewRouter(httpx.RouterOptions{Logger: logger, Metrics: metrics})
	(&httpx.SalesHandler{Service: svc, Logger: logger}).Register(router, authn.Require)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)

		prod.Close()      // tutup inbox -> flush & close writer
		prod.WaitClosed() // drain
		return err
	})
	return g.Wait()
}
