package main // Entry point package

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/script-marketplace/internal/config"
	"github.com/iliyamo/script-marketplace/internal/database"
	"github.com/iliyamo/script-marketplace/internal/guard"
	"github.com/iliyamo/script-marketplace/internal/handler"
	"github.com/iliyamo/script-marketplace/internal/lifecycle"
	"github.com/iliyamo/script-marketplace/internal/middleware"
	"github.com/iliyamo/script-marketplace/internal/queue"
	"github.com/iliyamo/script-marketplace/internal/realtime"
	"github.com/iliyamo/script-marketplace/internal/repository"
	"github.com/iliyamo/script-marketplace/internal/router"
	"github.com/iliyamo/script-marketplace/internal/service"
	"github.com/iliyamo/script-marketplace/internal/utils"
)

const shutdownTimeout = 10 * time.Second

func main() {
	_ = godotenv.Load() // .env is optional; real environments set variables directly

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := utils.InitLogger(cfg.LogLevel)

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		logger.Error("database open failed", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.DBMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			logger.Error("migration failed", "error", err)
			os.Exit(1)
		}
		logger.Info("schema applied")
	}

	// Redis backs rate limiting, the browse cache and realtime fan-out.
	// A nil client disables all three.
	rdb := config.NewRedisClient(config.LoadRedisConfig(nil))
	if rdb != nil {
		defer rdb.Close()
	} else {
		logger.Warn("redis unavailable; rate limit, cache and cross-instance chat disabled")
	}

	var pageGuard *guard.Guard
	if cfg.GuardRulesFile != "" {
		pageGuard, err = guard.Load(cfg.GuardRulesFile)
		if err != nil {
			logger.Error("guard rules", "file", cfg.GuardRulesFile, "error", err)
			os.Exit(1)
		}
	} else {
		pageGuard = guard.New(guard.DefaultRules(), guard.DefaultConfig())
	}

	// ---- Repositories ----
	market := repository.NewMarketplace(db)
	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	interests := repository.NewInterestRepo(db)
	inbox := repository.NewNotificationRepo(db)

	// ---- Services ----
	notifier := service.NewNotifier(cfg.AMQPURL, inbox, logger)
	lc := lifecycle.NewService(market, lifecycle.WithNotifier(notifier), lifecycle.WithLogger(logger))
	hub := realtime.NewHub(rdb, logger)

	cacheCfg := config.LoadCacheConfig(nil)
	listings := handler.NewListingHandler(market.Listings, market.Applications)
	if rdb != nil {
		listings.OnChange = func(ctx context.Context) error {
			return middleware.PurgeRoute(ctx, cacheCfg, rdb, "/v1/listings")
		}
	}

	// ---- HTTP ----
	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.RequestLogger(logger))
	e.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(nil), rdb))

	router.RegisterRoutes(e, db)
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, users, tokens), cfg.JWTSecret)
	router.RegisterMarketplace(e, router.Marketplace{
		Scripts:       handler.NewScriptHandler(market.Scripts, market.Applications),
		Listings:      listings,
		Applications:  handler.NewApplicationHandler(lc, market.Applications, market.Conversations, market.Orders),
		Conversations: handler.NewConversationHandler(market.Conversations, market.Applications, hub),
	}, cfg.JWTSecret, middleware.NewRedisCache(cacheCfg, rdb))
	router.RegisterAPI(e, handler.NewInterestHandler(interests, notifier))
	router.RegisterNotifications(e, handler.NewNotificationHandler(inbox), cfg.JWTSecret)
	router.RegisterPages(e, pageGuard, cfg.JWTSecret)

	g, gctx := errgroup.WithContext(ctx)

	addr := ":" + cfg.Port
	g.Go(func() error {
		logger.Info("listening", "addr", addr, "env", cfg.Env)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return e.Shutdown(sctx)
	})
	g.Go(func() error { return hub.Run(gctx) })
	if cfg.AMQPURL != "" {
		consumer := &queue.Consumer{URL: cfg.AMQPURL, Sink: inbox, LogDir: cfg.NotifyLogDir, Log: logger}
		g.Go(func() error { return consumer.Run(gctx) })
	}
	if publisher, ok := notifier.(*service.QueuePublisher); ok {
		g.Go(func() error { return publisher.Run(gctx) })
	}

	if err := g.Wait(); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}
