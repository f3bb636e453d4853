package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/varunity/affinityserve/internal/analytics"
	"github.com/varunity/affinityserve/internal/api"
	"github.com/varunity/affinityserve/internal/config"
	"github.com/varunity/affinityserve/internal/db"
	"github.com/varunity/affinityserve/internal/geo"
	"github.com/varunity/affinityserve/internal/geoip"
	"github.com/varunity/affinityserve/internal/logic/intent"
	"github.com/varunity/affinityserve/internal/logic/segment"
	"github.com/varunity/affinityserve/internal/middleware"
	"github.com/varunity/affinityserve/internal/models"
	"github.com/varunity/affinityserve/internal/newsletter"
	"github.com/varunity/affinityserve/internal/observability"
	"github.com/varunity/affinityserve/internal/personalization"
	"github.com/varunity/affinityserve/internal/visitor"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	logger, err := observability.InitLoggerWithService(cfg.ServiceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}

	defer func() {
		if err := logger.Sync(); err != nil {
			fmt.Fprintf(os.Stderr, "failed to sync logger: %v\n", err)
		}
	}()

	if err := run(logger, cfg); err != nil {
		logger.Error("server error", zap.Error(err))
		os.Exit(1)
	}
}

func run(logger *zap.Logger, cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.TracingEnabled {
		shutdown, err := observability.InitTracing(ctx, logger, observability.TracingOptions{
			ServiceName: cfg.ServiceName,
			Environment: cfg.Environment,
			Endpoint:    cfg.TempoEndpoint,
			SampleRate:  cfg.TracingSampleRate,
			ProfileMode: cfg.ProfileMode,
		})
		if err != nil {
			return fmt.Errorf("init tracing: %w", err)
		}
		defer shutdown()
	}

	metricsRegistry := observability.NewPrometheusRegistry()

	// Visitor state lives in Redis when configured; otherwise it is per-process.
	var (
		visitorStore visitor.Store
		redisStore   *db.RedisStore
	)
	if cfg.RedisAddr != "" {
		rs, err := db.InitRedis(cfg.RedisAddr, cfg.VisitorTTL)
		if err != nil {
			return fmt.Errorf("failed to connect redis: %w", err)
		}
		defer rs.Close()
		redisStore, visitorStore = rs, rs
	} else {
		logger.Warn("REDIS_ADDR not set, visitor state kept in memory")
		visitorStore = visitor.NewMemoryStore(cfg.VisitorTTL)
	}

	// The catalogue and subscriber list come from Postgres when configured,
	// else from local files.
	var (
		catalogSrc db.CatalogSource
		subsRepo   newsletter.Repository
	)
	if cfg.PostgresDSN != "" {
		pg, err := db.InitPostgres(cfg.PostgresDSN, cfg.DBMaxOpenConns, cfg.DBMaxIdleConns, cfg.DBConnMaxLifetime, cfg.DBConnMaxIdleTime)
		if err != nil {
			return fmt.Errorf("failed to connect postgres: %w", err)
		}
		defer pg.Close()
		catalogSrc = pg
		subsRepo = newsletter.PostgresRepository{PG: pg}
	} else {
		catalogSrc = db.FileCatalog{Path: cfg.CatalogFile}
		subsRepo = newsletter.NewFileRepository(cfg.SubscribersFile)
	}

	contentStore := models.NewInMemoryContentStore()
	catalog := db.NewCatalog(catalogSrc, contentStore, metricsRegistry, logger)
	if err := catalog.Reload(ctx); err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}

	var analyticsSvc analytics.AnalyticsService
	if cfg.ClickHouseDSN != "" {
		ch, err := analytics.InitClickHouse(cfg.ClickHouseDSN)
		if err != nil {
			return fmt.Errorf("failed to connect clickhouse: %w", err)
		}
		defer ch.Close()
		analyticsSvc = ch
	}

	var locator geo.Locator
	if cfg.GeoIPDB != "" {
		geoSvc, err := geoip.Init(cfg.GeoIPDB)
		if err != nil {
			return fmt.Errorf("failed to load geoip db: %w", err)
		}
		defer func() { _ = geoSvc.Close() }()
		locator = geoSvc
	}

	engine, err := personalization.NewEngine(personalization.Options{
		Features:       cfg.Features,
		DefaultSite:    cfg.DefaultSite,
		ProfileMode:    cfg.ProfileMode,
		AllowOverrides: cfg.AllowTestOverrides,
		DebugTrace:     cfg.DebugTrace,
	},
		geo.NewResolver(geo.Options{
			HomeCountry:    cfg.HomeCountry,
			AllowOverrides: cfg.AllowTestOverrides,
			Development:    cfg.Development(),
		}, locator),
		segment.NewClassifier(cfg.HomeCountry),
		intent.NewDetector(logger),
		visitorStore, contentStore, metricsRegistry, analyticsSvc, logger)
	if err != nil {
		return fmt.Errorf("init engine: %w", err)
	}

	nl := newsletter.NewService(subsRepo, cfg.NewsletterWindow, cfg.NewsletterPruneWindow, metricsRegistry, analyticsSvc, logger)
	srvDeps := api.NewServer(logger, engine, nl, catalog, redisStore, metricsRegistry, cfg)

	r := mux.NewRouter()
	r.Use(middleware.WithTraceLogger(logger))
	r.Use(middleware.WithTestOverrides(cfg.AllowTestOverrides))

	r.HandleFunc("/health", srvDeps.HealthHandler).Methods("GET")
	r.HandleFunc("/reload", srvDeps.ReloadHandler).Methods("POST")
	r.Handle("/metrics", promhttp.Handler())

	apiRouter := r.PathPrefix("/api").Subrouter()
	apiRouter.Use(middleware.WithVisitorID(cfg.VisitorCookie, !cfg.Development()))
	apiRouter.HandleFunc("/visitor-context", srvDeps.VisitorContextHandler).Methods("GET")
	apiRouter.HandleFunc("/content", srvDeps.ContentHandler).Methods("GET")
	apiRouter.HandleFunc("/interactions", srvDeps.InteractionHandler).Methods("POST")
	apiRouter.HandleFunc("/preferences", srvDeps.PreferencesHandler).Methods("POST")
	apiRouter.HandleFunc("/newsletter", srvDeps.NewsletterHandler).Methods("POST")

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      otelhttp.NewHandler(r, "affinityserve"),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	logger.Info("Affinity server running",
		zap.String("addr", addr),
		zap.String("profile_mode", cfg.ProfileMode),
		zap.Bool("personalization", cfg.Features.Personalization))

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("listen: %w", err)
		}
	}()

	go srvDeps.SubscribeUpdates(ctx)

	if cfg.ReloadInterval > 0 {
		ticker := time.NewTicker(cfg.ReloadInterval)
		go func() {
			for {
				select {
				case <-ticker.C:
					if err := srvDeps.Reload(ctx); err != nil {
						logger.Error("auto reload", zap.Error(err))
					}
					if n := srvDeps.Interactions.Prune(cfg.ReloadInterval); n > 0 {
						logger.Debug("pruned interaction limiter", zap.Int("removed", n))
					}
				case <-ctx.Done():
					ticker.Stop()
					return
				}
			}
		}()
	}

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	return nil
}
