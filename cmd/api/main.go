package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/ticket-lifecycle/internal/api/http"
	"github.com/spec-kit/ticket-lifecycle/internal/api/http/handlers"
	"github.com/spec-kit/ticket-lifecycle/internal/config"
	"github.com/spec-kit/ticket-lifecycle/internal/events"
	"github.com/spec-kit/ticket-lifecycle/internal/observability"
	"github.com/spec-kit/ticket-lifecycle/internal/persistence"
	"github.com/spec-kit/ticket-lifecycle/internal/repository"
	"github.com/spec-kit/ticket-lifecycle/internal/repository/boltdb"
	"github.com/spec-kit/ticket-lifecycle/internal/repository/memory"
	"github.com/spec-kit/ticket-lifecycle/internal/repository/rediscache"
	"github.com/spec-kit/ticket-lifecycle/internal/service"
	"github.com/spec-kit/ticket-lifecycle/internal/worker"
)

func main() {
	flags := pflag.NewFlagSet("ticket-api", pflag.ExitOnError)
	envFile := flags.String("env-file", ".env", "path to a .env file with configuration overrides")
	storeDriver := flags.String("store", "", "ticket store driver: memory, bolt or postgres (overrides STORE_DRIVER)")
	_ = flags.Parse(os.Args[1:])

	cfg, err := config.Load(*envFile)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if *storeDriver != "" {
		cfg.Store.Driver = strings.ToLower(*storeDriver)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stores, err := openStores(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to open stores", zap.String("driver", cfg.Store.Driver), zap.Error(err))
	}
	defer stores.Close()

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher(logger)
	worker.StartActivityWorker(service.NewActivityService(dispatcher, metrics, logger))

	audit := service.NewAuditService(stores.history, logger)
	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo: stores.tickets,
		Audit:      audit,
		Dispatcher: dispatcher,
		Logger:     logger,
	})
	assignmentService := service.NewAssignmentService(service.AssignmentDependencies{
		TicketRepo: stores.tickets,
		Audit:      audit,
		Dispatcher: dispatcher,
		Logger:     logger,
	})

	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		DisableStartupMessage: true,
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:  handlers.NewHealthHandler(cfg.App, cfg.Store.Driver, metrics, stores.dependencies),
		Tickets: handlers.NewTicketsHandler(ticketService, assignmentService),
	})

	go func() {
		logger.Info("http server listening",
			zap.String("addr", cfg.App.Addr()),
			zap.String("store", cfg.Store.Driver),
			zap.Bool("cache", cfg.Cache.Enabled))
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
}

// storeSet holds the selected ticket and history stores plus whatever must
// be pinged for readiness and closed on exit.
type storeSet struct {
	tickets      repository.TicketRepository
	history      repository.TicketHistoryRepository
	dependencies map[string]handlers.Pinger
	closers      []func()
}

func (s *storeSet) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func openStores(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*storeSet, error) {
	set := &storeSet{dependencies: map[string]handlers.Pinger{}}

	switch cfg.Store.Driver {
	case config.StoreMemory:
		set.tickets = memory.NewTicketRepository()
		set.history = memory.NewTicketHistoryRepository()
		logger.Warn("using in-memory stores; data is lost on restart")

	case config.StoreBolt:
		db, err := persistence.OpenBolt(cfg.Bolt, logger)
		if err != nil {
			return nil, fmt.Errorf("open bolt: %w", err)
		}
		set.closers = append(set.closers, db.Close)
		set.dependencies["bolt"] = db
		if set.tickets, err = boltdb.NewTicketRepository(db.DB); err != nil {
			set.Close()
			return nil, err
		}
		if set.history, err = boltdb.NewTicketHistoryRepository(db.DB); err != nil {
			set.Close()
			return nil, err
		}

	case config.StorePostgres:
		pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		set.closers = append(set.closers, pg.Close)
		set.dependencies["postgres"] = pg
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
				set.Close()
				return nil, err
			}
		}
		set.tickets = repository.NewTicketRepository(pg.PoolHandle())
		set.history = repository.NewTicketHistoryRepository(pg.PoolHandle())

	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}

	if cfg.Cache.Enabled {
		redis := persistence.NewRedis(cfg.Redis, logger)
		set.closers = append(set.closers, redis.Close)
		set.dependencies["redis"] = redis
		set.tickets = rediscache.NewTicketRepository(set.tickets, redis.Client, cfg.Cache.TTL(), logger)
	}

	return set, nil
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
