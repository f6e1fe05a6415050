package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/payment-switch/internal/api"
	"github.com/akylbek/payment-system/payment-switch/internal/config"
	"github.com/akylbek/payment-system/payment-switch/internal/connector/sagepay"
	"github.com/akylbek/payment-system/payment-switch/internal/connector/trustpay"
	"github.com/akylbek/payment-system/payment-switch/internal/core/payments"
	"github.com/akylbek/payment-system/payment-switch/internal/core/refunds"
	"github.com/akylbek/payment-system/payment-switch/internal/core/webhooks"
	"github.com/akylbek/payment-system/payment-switch/internal/events"
	"github.com/akylbek/payment-system/payment-switch/internal/interfaces"
	"github.com/akylbek/payment-system/payment-switch/internal/middleware"
	"github.com/akylbek/payment-system/payment-switch/internal/repository"
	"github.com/akylbek/payment-system/payment-switch/internal/repository/inmemory"
	"github.com/akylbek/payment-system/payment-switch/internal/services"
	"github.com/akylbek/payment-system/payment-switch/internal/telemetry"
)

type serveOptions struct {
	memory   bool
	seedFile string
}

func serveCmd() *cobra.Command {
	opts := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Run the payment switch HTTP API.

With --memory the switch keeps all state in process and publishes events to
the log instead of Kafka and NATS. Use --seed to load merchant and connector
accounts at startup.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts)
		},
	}
	cmd.Flags().BoolVar(&opts.memory, "memory", false, "keep state in memory, without Postgres, Redis, Kafka or NATS")
	cmd.Flags().StringVar(&opts.seedFile, "seed", "", "json file of merchant and connector accounts to insert at startup")
	return cmd
}

// backend is everything serve connects to. closers run in reverse order.
type backend struct {
	store     interfaces.StorageInterface
	vault     interfaces.PaymentMethodVault
	publisher interfaces.EventPublisher
	notifier  interfaces.WebhookNotifier
	idem      middleware.IdempotencyStore
	closers   []func()
}

func (b *backend) close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

func memoryBackend() *backend {
	return &backend{
		store:     inmemory.NewStore(),
		vault:     inmemory.NewVault(),
		publisher: events.LogSink{},
		notifier:  events.LogSink{},
		idem:      middleware.NewMemoryIdempotencyStore(),
	}
}

func connectBackend(cfg *config.Config) (*backend, error) {
	b := &backend{}

	// Connect to PostgreSQL
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	b.closers = append(b.closers, func() { db.Close() })
	pg := repository.NewPostgresStore(db)
	if err := pg.InitDB(); err != nil {
		b.close()
		return nil, err
	}

	// Connect to Redis
	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisURL})
	b.closers = append(b.closers, func() { redisClient.Close() })
	b.store = repository.NewKVStore(pg, redisClient)
	b.vault = repository.NewRedisVault(redisClient)
	b.idem = middleware.NewRedisIdempotencyStore(redisClient)

	// Connect to Kafka
	writer := events.NewKafkaWriter(cfg.KafkaBrokers, cfg.StateTopic)
	b.closers = append(b.closers, func() { writer.Close() })
	b.publisher = events.NewKafkaPublisher(writer)

	// Connect to NATS
	nc, err := nats.Connect(cfg.NATSURL)
	if err != nil {
		b.close()
		return nil, err
	}
	b.closers = append(b.closers, nc.Close)
	b.notifier = events.NewNATSNotifier(nc)

	return b, nil
}

func runServe(opts *serveOptions) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if err := telemetry.InitTelemetry(cfg.ServiceName, cfg.JaegerEndpoint); err != nil {
		return err
	}
	defer telemetry.Logger.Sync()
	defer telemetry.Shutdown(context.Background())

	var b *backend
	if opts.memory {
		telemetry.Logger.Info("Using in-memory storage")
		b = memoryBackend()
	} else {
		if b, err = connectBackend(cfg); err != nil {
			telemetry.Logger.Error("Failed to connect backends", zap.Error(err))
			return err
		}
	}
	defer b.close()

	if opts.seedFile != "" {
		if err := seedAccounts(context.Background(), b.store, opts.seedFile); err != nil {
			return err
		}
	}

	registry := services.NewRegistry()
	sagepay.Register(registry)
	trustpay.Register(registry)

	steps := services.StepContext{
		Connectors: cfg.Connectors,
		Transport:  services.NewHTTPTransport(cfg.CallTimeout),
		Registry:   registry,
	}
	paymentCore := payments.NewCore(b.store, b.vault, b.publisher, steps, cfg.VaultTTL)

	r := api.NewRouter(api.Dependencies{
		Payments:    paymentCore,
		Refunds:     refunds.NewCore(b.store, steps),
		Webhooks:    webhooks.NewCore(paymentCore, b.notifier),
		Idempotency: b.idem,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	errCh := make(chan error, 1)
	go func() {
		telemetry.Logger.Info("Payment switch starting",
			zap.String("port", cfg.Port),
			zap.Strings("connectors", registry.Connectors()),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		telemetry.Logger.Error("Failed to start server", zap.Error(err))
		return err
	}

	telemetry.Logger.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		telemetry.Logger.Error("Server forced to shutdown", zap.Error(err))
	}

	telemetry.Logger.Info("Server exited")
	return nil
}
