package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/redis/go-redis/v9"

	"github.com/ignite/promo-dispatch/internal/api"
	"github.com/ignite/promo-dispatch/internal/archive"
	"github.com/ignite/promo-dispatch/internal/config"
	"github.com/ignite/promo-dispatch/internal/esp"
	"github.com/ignite/promo-dispatch/internal/pkg/distlock"
	"github.com/ignite/promo-dispatch/internal/pkg/logger"
	"github.com/ignite/promo-dispatch/internal/repository/memory"
	"github.com/ignite/promo-dispatch/internal/repository/postgres"
	"github.com/ignite/promo-dispatch/internal/service/dispatch"
	"github.com/ignite/promo-dispatch/internal/stats"
	"github.com/ignite/promo-dispatch/internal/templates"
	"github.com/ignite/promo-dispatch/internal/tracking"
)

// checkPortAvailable verifies that the target port is not already in use.
func checkPortAvailable(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("address %s is already in use: %v", addr, err)
	}
	return ln.Close()
}

// subscriberStore is what the service and the HTTP layer both need from
// the store.
type subscriberStore interface {
	dispatch.SubscriberStore
	dispatch.SubscriberDirectory
}

func main() {
	configPath := "config/config.yaml"
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		configPath = p
	}

	cfg, err := config.LoadFromEnv(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	logger.SetLevel(logger.ParseLevel(cfg.Log.Level))
	logger.SetRedactPII(cfg.Log.Redact())

	if err := checkPortAvailable(cfg.Server.Addr()); err != nil {
		log.Fatalf("Pre-flight check FAILED: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Subscriber store: PostgreSQL when configured, otherwise in-memory.
	var (
		db    *sql.DB
		store subscriberStore
	)
	if cfg.Database.Enabled() {
		db, err = postgres.Open(ctx, cfg.Database)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()
		store = postgres.NewSubscriberRepo(db)
		logger.Info("subscriber store ready", "backend", "postgres")
	} else {
		store = memory.NewStore()
		logger.Warn("DATABASE_URL not set, subscribers are kept in memory")
	}

	var rdb *redis.Client
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			log.Fatalf("Invalid REDIS_URL: %v", err)
		}
		rdb = redis.NewClient(opts)
		defer rdb.Close()
		pingCtx, pingCancel := context.WithTimeout(ctx, 3*time.Second)
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			logger.Warn("redis ping failed, locks and counters will retry per call", "error", err.Error())
		}
		pingCancel()
	}

	// Campaign counters follow the same preference order as the locks.
	var counterStore stats.Store
	switch {
	case rdb != nil:
		counterStore = stats.NewRedisStore(rdb)
	case db != nil:
		counterStore = postgres.NewStatsRepo(db)
	default:
		counterStore = memory.NewCounter()
	}
	counter := stats.NewCounter(counterStore)

	sender, err := esp.New(ctx, cfg.Transport)
	if err != nil {
		log.Fatalf("Failed to initialize transport: %v", err)
	}
	logger.Info("transport ready", "provider", cfg.Transport.Provider)

	var events dispatch.OutcomePublisher
	if cfg.Tracking.SQSQueueURL != "" {
		pub, err := tracking.NewSQSPublisher(ctx, cfg.Tracking.Region, cfg.Tracking.SQSQueueURL)
		if err != nil {
			log.Fatalf("Failed to initialize outcome publisher: %v", err)
		}
		events = pub
		logger.Info("outcome events enabled", "queue", cfg.Tracking.SQSQueueURL)
	}

	var (
		arch     archive.Archiver
		s3Client *s3.Client
	)
	if cfg.Archive.Type == "s3" {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Archive.S3Region))
		if err != nil {
			log.Fatalf("Failed to load AWS config: %v", err)
		}
		s3Client = s3.NewFromConfig(awsCfg)
		arch = archive.NewS3(s3Client, cfg.Archive.S3Bucket, cfg.Archive.S3Prefix)
	} else if arch, err = archive.New(ctx, cfg.Archive); err != nil {
		log.Fatalf("Failed to initialize archive: %v", err)
	}

	registry, err := templates.Builtin()
	if err != nil {
		log.Fatalf("Failed to load template catalog: %v", err)
	}

	dispatcher := dispatch.NewDispatcher(sender, dispatch.DispatcherConfig{
		Envelope: dispatch.Envelope{
			FromName:  cfg.Transport.FromName,
			FromEmail: cfg.Transport.FromEmail,
			ReplyTo:   cfg.Transport.ReplyTo,
		},
		Timeout:     cfg.Transport.Timeout(),
		Concurrency: cfg.Dispatch.Concurrency,
	})

	svc := dispatch.NewService(dispatch.Deps{
		Templates:  registry,
		Renderer:   templates.NewRenderer(),
		Store:      store,
		Dispatcher: dispatcher,
		Events:     events,
		Counter:    counter,
		Locks:      distlock.NewProvider(rdb, db, cfg.Dispatch.LockTTL()),
	}, dispatch.ServiceConfig{MaxRecipients: cfg.Dispatch.MaxRecipients})

	handlers := api.NewHandlers(api.HandlerDeps{
		Templates:   registry,
		Service:     svc,
		Subscribers: store,
		Totals:      counter,
		Archive:     arch,
	})
	health := api.NewHealthChecker(db, rdb, s3Client, cfg.Archive.S3Bucket)
	server := api.NewServer(cfg.Server, api.SetupRoutes(cfg.Server, handlers, health))

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("starting server", "addr", cfg.Server.Addr(), "templates", len(registry.List()))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-done
	logger.Info("shutting down")
	cancel()

	// In-flight sends finish before the process exits.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err.Error())
	}
	logger.Info("server stopped")
}
