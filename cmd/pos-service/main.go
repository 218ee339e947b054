package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/andreasstove999/ecommerce-system/services/pos-service-go/internal/cart"
	"github.com/andreasstove999/ecommerce-system/services/pos-service-go/internal/checkout"
	"github.com/andreasstove999/ecommerce-system/services/pos-service-go/internal/config"
	"github.com/andreasstove999/ecommerce-system/services/pos-service-go/internal/db"
	"github.com/andreasstove999/ecommerce-system/services/pos-service-go/internal/dedup"
	"github.com/andreasstove999/ecommerce-system/services/pos-service-go/internal/events"
	httpapi "github.com/andreasstove999/ecommerce-system/services/pos-service-go/internal/http"
	"github.com/andreasstove999/ecommerce-system/services/pos-service-go/internal/inventory"
	"github.com/andreasstove999/ecommerce-system/services/pos-service-go/internal/ledger"
	"github.com/andreasstove999/ecommerce-system/services/pos-service-go/internal/logging"
	"github.com/andreasstove999/ecommerce-system/services/pos-service-go/internal/metrics"
	"github.com/andreasstove999/ecommerce-system/services/pos-service-go/internal/pos"
	"github.com/andreasstove999/ecommerce-system/services/pos-service-go/internal/sequence"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("pos service stopped", zap.Error(err))
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- DB ---
	pool, err := db.NewPool(ctx, cfg.DatabaseDSN, db.PoolOptions{
		MaxConns:        cfg.MaxDBConns,
		MaxConnLifetime: cfg.ConnLifetime,
	})
	if err != nil {
		return fmt.Errorf("db connect: %w", err)
	}
	defer pool.Close()

	if cfg.RunMigrations {
		if err := db.RunMigrations(cfg.DatabaseDSN, logger); err != nil {
			return fmt.Errorf("db migrate: %w", err)
		}
	}

	// --- metrics ---
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// --- sale finalization ---
	txm := db.NewTxManager(pool, cfg.LockTimeout)
	catalog := inventory.NewPostgresRepository(pool)
	finalizer := checkout.New(txm,
		checkout.WithLogger(logger),
		checkout.WithRecorder(metrics.NewCheckout(reg)),
	)

	// --- AMQP ---
	var publisher pos.SalePublisher
	if cfg.EventsEnabled {
		conn, err := events.Dial(cfg.RabbitURL)
		if err != nil {
			return err
		}
		defer conn.Close()

		pub, err := events.NewPublisher(conn, sequence.NewAllocator(pool), events.PublisherOptions{
			PublishEnveloped: cfg.PublishEnvelopedEvents,
		})
		if err != nil {
			return fmt.Errorf("start publisher: %w", err)
		}
		defer pub.Close()
		publisher = pub

		consumer, err := events.StartConsumer(ctx, conn, events.StockReceivedRoutingKey,
			events.StockReceivedHandler(txm, catalog, dedup.NewCheckpoints(pool), logger, events.StockReceivedConsumerName),
			logger)
		if err != nil {
			return fmt.Errorf("start consumer: %w", err)
		}
		defer consumer.Close()
	} else {
		logger.Warn("events disabled; SaleCompleted will not be published")
	}

	till := pos.NewService(cart.NewRegistry(), catalog, finalizer, publisher, logger)

	// --- HTTP ---
	h := httpapi.NewHandler(catalog, ledger.NewPostgresLedger(pool), till, logger)
	router := httpapi.NewRouter(h, httpapi.RouterOptions{
		Logger:         logger,
		Metrics:        metrics.NewServer(reg),
		MetricsHandler: metrics.Handler(reg),
	})

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// --- graceful shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal", zap.String("signal", sig.String()))
	case runErr = <-errCh:
		logger.Error("http server failed", zap.Error(runErr))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	cancel()

	logger.Info("shutdown complete")
	return runErr
}
