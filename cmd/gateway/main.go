package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/pashumandi/mandi-gateway/internal/adapter/cache/memory"
	redisCache "github.com/pashumandi/mandi-gateway/internal/adapter/cache/redis"
	"github.com/pashumandi/mandi-gateway/internal/adapter/grpcclient"
	natsAdapter "github.com/pashumandi/mandi-gateway/internal/adapter/nats"
	"github.com/pashumandi/mandi-gateway/internal/config"
	"github.com/pashumandi/mandi-gateway/internal/handler"
	"github.com/pashumandi/mandi-gateway/internal/identity"
	"github.com/pashumandi/mandi-gateway/internal/platform/logger"
	"github.com/pashumandi/mandi-gateway/internal/platform/metrics"
	"github.com/pashumandi/mandi-gateway/internal/platform/tracer"
	"github.com/pashumandi/mandi-gateway/internal/port/cache"
	"github.com/pashumandi/mandi-gateway/internal/query"
	"github.com/pashumandi/mandi-gateway/internal/roles"
	"github.com/pashumandi/mandi-gateway/internal/router"
	"github.com/pashumandi/mandi-gateway/internal/usecase/browse"
	"github.com/pashumandi/mandi-gateway/internal/usecase/dashboard"
	"github.com/pashumandi/mandi-gateway/internal/usecase/marketplace"
	"github.com/pashumandi/mandi-gateway/internal/usecase/messaging"
	"github.com/pashumandi/mandi-gateway/internal/usecase/posting"
	"github.com/pashumandi/mandi-gateway/internal/usecase/support"

	"go.uber.org/zap"
)

func main() {
	configPath := os.Getenv("MANDI_CONFIG_PATH")
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		logger.New(nil).Fatal("Failed to load configuration", zap.Error(err))
	}

	appLogger := logger.New(&cfg.Log)
	defer func() { _ = appLogger.Sync() }()
	appLogger.Info("Application starting...",
		zap.String("service_name", cfg.ServiceName),
		zap.String("backend", cfg.Backend.Address),
		zap.String("cache_driver", cfg.Cache.Driver),
		zap.Bool("nats_enabled", cfg.NATS.URL != ""),
	)
	log := appLogger.Zap()

	tp := tracer.InitTracer(cfg.ServiceName, cfg.Tracing.OTLPEndpoint, appLogger)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			appLogger.Error("Failed to shutdown tracer provider", zap.Error(err))
		}
	}()

	metricsManager := metrics.NewMetricsManager(cfg.ServiceName)
	metricsServer := metrics.NewMetricsServer(cfg.Metrics.Port, metricsManager.Registry)
	go func() {
		if err := metrics.StartMetricsServer(metricsServer, appLogger); err != nil {
			appLogger.Error("Prometheus metrics server failed", zap.Error(err))
		}
	}()

	var store cache.CacheRepository
	switch cfg.Cache.Driver {
	case "redis":
		rdb, err := redisCache.NewRedisClient(&cfg.Redis, log)
		if err != nil {
			appLogger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer rdb.Close()
		store = redisCache.NewRedisCacheRepository(rdb, cfg.Cache.Namespace, log)
	default:
		store = memory.NewCacheRepository()
	}

	conn, err := grpcclient.Dial(cfg.Backend, metricsManager, log)
	if err != nil {
		appLogger.Fatal("Failed to create backend client", zap.Error(err))
	}
	defer conn.Close()

	rootCtx, stop := context.WithCancel(context.Background())
	defer stop()
	ready := grpcclient.NewSignal()
	go grpcclient.WatchReadiness(rootCtx, conn, cfg.Backend.HealthCheck, ready, log)

	queryOpts := []query.Option{query.WithMetrics(metricsManager)}
	var bus *natsAdapter.InvalidationBus
	if cfg.NATS.URL != "" {
		bus, err = natsAdapter.NewInvalidationBus(&cfg.NATS, log)
		if err != nil {
			appLogger.Fatal("Failed to initialize NATS", zap.Error(err))
		}
		defer bus.Close()
		queryOpts = append(queryOpts, query.WithBroadcaster(bus))
	}
	queryClient := query.NewClient(store, ready, cfg.Backend.ReadyWait, cfg.Cache.DefaultTTL, log, queryOpts...)
	if bus != nil {
		if err := bus.Subscribe(queryClient); err != nil {
			appLogger.Fatal("Failed to subscribe to invalidations", zap.Error(err))
		}
	}

	var tickets support.Sink = support.NewLogSink(log)
	if bus != nil {
		tickets = bus.Tickets(cfg.NATS.SupportSubject)
	}

	loc, err := time.LoadLocation(cfg.Messaging.Timezone)
	if err != nil {
		appLogger.Fatal("Failed to load messaging timezone", zap.Error(err))
	}

	backendClient := grpcclient.NewBackendClient(conn, log)
	market := marketplace.NewService(backendClient, queryClient, cfg.Cache, log)

	tokens := identity.NewTokenProvider(cfg.Auth.JWTSecret, store, cfg.Auth.SessionTTL, log)
	sessions := identity.NewManager(tokens, store, cfg.Auth.SessionTTL, cfg.Auth.LoginRetryDelay, log)
	roleResolver := roles.NewResolver(market, cfg.Roles, log)

	pricer := posting.NewPricer(cfg.Payment)
	postingService := posting.NewService(store, market, market, pricer, cfg.Posting, log)

	handlers := router.Handlers{
		Listings:  handler.NewListingHandler(market, browse.NewService(market), log),
		Locations: handler.NewLocationHandler(browse.NewLocations(cfg.Locations.States), log),
		Profiles:  handler.NewProfileHandler(market, log),
		Messages:  handler.NewMessageHandler(messaging.NewService(market, loc, log), log),
		PostAd:    handler.NewPostAdHandler(postingService, pricer, log),
		Views:     handler.NewViewHandler(dashboard.NewService(market, log), log),
		Sessions:  handler.NewSessionHandler(sessions, roleResolver, market, cfg.Auth, log),
		Info:      handler.NewInfoHandler(support.NewService(cfg.Support, tickets, log), log),
		Health:    handler.NewHealthHandler(market, log),
	}
	mux := router.New(handlers, router.Deps{
		Verifier:   tokens,
		Sessions:   sessions,
		Roles:      roleResolver,
		CookieName: cfg.Auth.CookieName,
		Metrics:    metricsManager,
		Logger:     log,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTP.Port,
		Handler:      mux,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}
	go func() {
		appLogger.Info("Starting HTTP server", zap.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	appLogger.Info("Received shutdown signal", zap.String("signal", sig.String()))
	stop()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error("HTTP server shutdown failed", zap.Error(err))
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(ctx); err != nil {
			appLogger.Error("Metrics server shutdown failed", zap.Error(err))
		}
	}
	appLogger.Info("Application shutting down...")
}
