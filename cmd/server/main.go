package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/event-ticketing/internal/clock"
	"github.com/iliyamo/event-ticketing/internal/config"
	"github.com/iliyamo/event-ticketing/internal/database"
	"github.com/iliyamo/event-ticketing/internal/handler"
	"github.com/iliyamo/event-ticketing/internal/inventory"
	"github.com/iliyamo/event-ticketing/internal/middleware"
	"github.com/iliyamo/event-ticketing/internal/queue"
	"github.com/iliyamo/event-ticketing/internal/repository"
	"github.com/iliyamo/event-ticketing/internal/router"
	"github.com/iliyamo/event-ticketing/internal/service"
)

func main() {
	cfg := config.Load()
	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		return err
	}
	defer db.Close()
	if cfg.DBAutoMigrate {
		if err := database.EnsureSchema(ctx, db); err != nil {
			return err
		}
	}

	rdb := config.NewRedisClient()
	if rdb == nil {
		logger.Warn("redis unavailable, rate limiting and response cache disabled")
	} else {
		defer rdb.Close()
	}

	events := repository.NewEventRepo(db)
	purchases := repository.NewPurchaseRepo(db)

	var (
		store  service.InventoryStore = repository.NewInventoryRepo(db)
		seeder service.InventorySeeder
	)
	if cfg.InventoryBackend == config.BackendRedis {
		if rdb == nil {
			return errors.New("INVENTORY_BACKEND=redis needs a reachable redis")
		}
		rs := inventory.NewRedisStore(rdb, "inventory")
		store, seeder = rs, rs
	}
	ledger := service.NewLedger(store, logger)
	eventSvc := service.NewEventService(events, ledger, seeder, logger)
	if _, err := eventSvc.SyncInventory(ctx, cfg.InventoryResync); err != nil {
		return err
	}

	opts := []service.PurchaseServiceOption{
		service.WithLogger(logger),
		service.WithCompensationTimeout(cfg.CompensationTimeout),
	}
	if cfg.RabbitURL != "" {
		pub := queue.NewPublisher(cfg.RabbitURL, cfg.PurchaseQueue, cfg.RabbitDialTimeout)
		defer pub.Close()
		opts = append(opts, service.WithPublisher(pub))

		consumer := queue.NewAuditConsumer(cfg.RabbitURL, cfg.PurchaseQueue, cfg.AuditLogDir, logger)
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("audit consumer stopped", "error", err)
			}
		}()
	} else {
		logger.Info("RABBITMQ_URL not set, purchase events are not published")
	}
	purchaseSvc := service.NewPurchaseService(ledger, events, purchases, clock.NewSystem(), opts...)

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			attrs := []any{"method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency}
			if v.Error != nil {
				logger.Error("request", append(attrs, "error", v.Error)...)
				return nil
			}
			logger.Info("request", attrs...)
			return nil
		},
	}))

	ph := handler.NewPurchaseHandler(purchaseSvc, logger)
	eh := handler.NewEventHandler(eventSvc, logger)
	router.RegisterPublic(e, db, eh, middleware.NewRedisCache(config.LoadCacheConfig(), redisOrNil(rdb)))
	router.RegisterCustomer(e, ph, cfg.JWTSecret,
		middleware.NewTokenBucket(config.LoadRateLimitConfig(), redisOrNil(rdb), clock.NewSystem()))
	router.RegisterAdmin(e, ph, eh, cfg.JWTSecret)

	errc := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", ":"+cfg.Port, "env", cfg.Env, "inventory", cfg.InventoryBackend)
		errc <- e.Start(":" + cfg.Port)
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

// redisOrNil keeps a missing client a nil interface, which the middleware
// treat as disabled.
func redisOrNil(rdb *redis.Client) redis.Cmdable {
	if rdb == nil {
		return nil
	}
	return rdb
}
