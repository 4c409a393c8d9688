package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/unstoppabledomains/nomulus/internal/audit"
	"github.com/unstoppabledomains/nomulus/internal/platform/config"
	"github.com/unstoppabledomains/nomulus/internal/platform/events"
	"github.com/unstoppabledomains/nomulus/internal/platform/httpserver"
	"github.com/unstoppabledomains/nomulus/internal/platform/logger"
	"github.com/unstoppabledomains/nomulus/internal/platform/metrics"
	platformredis "github.com/unstoppabledomains/nomulus/internal/platform/redis"
	"github.com/unstoppabledomains/nomulus/internal/registry/poll"
	"github.com/unstoppabledomains/nomulus/internal/registry/pricing"
	"github.com/unstoppabledomains/nomulus/internal/registry/scheduler"
	"github.com/unstoppabledomains/nomulus/internal/registry/store"
	"github.com/unstoppabledomains/nomulus/internal/registry/transfer"
	httptransport "github.com/unstoppabledomains/nomulus/internal/transport/http"
	"github.com/unstoppabledomains/nomulus/pkg/platform/middleware/auth"
)

// main wires dependencies and owns the process lifecycle. Business logic
// lives in the internal/registry services.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	if err := run(cfg, log); err != nil {
		log.Error("registry exited", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(cfg config.Server, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, closeStore, err := buildStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	if cfg.SeedDev {
		if err := store.SeedDev(ctx, st); err != nil {
			return err
		}
		log.Info("seeded development fixtures")
	}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	publisher, closePublisher, err := buildPublisher(cfg, log)
	if err != nil {
		return err
	}
	defer closePublisher()

	sched, err := buildScheduler(ctx, cfg, log)
	if err != nil {
		return err
	}

	transfers := transfer.New(st, pricing.NewStatic(pricing.DefaultTable()),
		transfer.WithLogger(log),
		transfer.WithMetrics(m),
		transfer.WithScheduler(sched),
		transfer.WithAuditPublisher(publisher),
		transfer.WithConfig(transfer.Config{
			PendingPeriod:        cfg.Transfer.PendingPeriod,
			TransferGraceLength:  cfg.Transfer.GraceLength,
			AutorenewGraceLength: cfg.Transfer.AutorenewGraceLength,
			MaxRegistrationYears: cfg.Transfer.MaxRegistrationYears,
		}),
	)
	polls := poll.New(st,
		poll.WithLogger(log),
		poll.WithMetrics(m),
		poll.WithAuditPublisher(publisher),
	)

	handler := httptransport.NewHandler(transfers, polls, log)
	router := httptransport.NewRouter(handler, auth.NewValidator(cfg.JWTSigningKey), m, log)
	srv := httpserver.New(cfg.Addr, router)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("starting registry", slog.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		if err := sched.Run(gctx, transfers.Reevaluate); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// buildStore selects the persistence backend from configuration.
func buildStore(ctx context.Context, cfg config.Server, log *slog.Logger) (store.Store, func(), error) {
	switch cfg.StoreBackend {
	case config.StorePostgres:
		db, err := sql.Open("postgres", cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		st, err := store.NewPostgres(ctx, db)
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		log.Info("using postgres store")
		return st, func() { db.Close() }, nil
	default:
		log.Info("using in-memory store")
		return store.NewMemory(), func() {}, nil
	}
}

// buildScheduler prefers the shared Redis deadline queue when Redis is
// configured, so multiple instances do not reevaluate the same resource.
func buildScheduler(ctx context.Context, cfg config.Server, log *slog.Logger) (runnableScheduler, error) {
	rc, err := platformredis.New(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}
	if rc != nil {
		log.Info("using redis scheduler")
		return scheduler.NewRedis(rc.Client, scheduler.WithRedisLogger(log)), nil
	}
	log.Info("using in-memory scheduler")
	return scheduler.NewMemory(scheduler.WithLogger(log)), nil
}

// runnableScheduler is a scheduler with a blocking Run loop.
type runnableScheduler interface {
	scheduler.Scheduler
	Run(ctx context.Context, fn scheduler.ReevaluateFunc) error
}

// buildPublisher emits audit events to Kafka when brokers are configured.
func buildPublisher(cfg config.Server, log *slog.Logger) (audit.Publisher, func(), error) {
	if len(cfg.KafkaBrokers) == 0 {
		return audit.NopPublisher{}, func() {}, nil
	}
	pub, err := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
	if err != nil {
		return nil, nil, err
	}
	log.Info("publishing audit events to kafka", slog.String("topic", cfg.KafkaTopic))
	return pub, func() { pub.Close() }, nil
}
