package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"
	_ "time/tzdata" // PLAN_TIMEZONE must resolve on hosts without a zoneinfo database

	"github.com/benvon/smart-trips/internal/config"
	"github.com/benvon/smart-trips/internal/database"
	"github.com/benvon/smart-trips/internal/handlers"
	"github.com/benvon/smart-trips/internal/kvstore"
	"github.com/benvon/smart-trips/internal/logger"
	"github.com/benvon/smart-trips/internal/middleware"
	"github.com/benvon/smart-trips/internal/querycache"
	"github.com/benvon/smart-trips/internal/queue"
	"github.com/benvon/smart-trips/internal/services/plans"
	"github.com/benvon/smart-trips/internal/telemetry"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/spf13/afero"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.uber.org/zap"
)

const serviceName = "smart-trips-api"

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	debugFlag := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	debugMode := cfg.ServerDebugMode || *debugFlag
	instanceID := uuid.NewString()

	zapLogger, err := logger.NewProductionLogger(debugMode, serviceName, instanceID)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() {
		_ = logger.Sync(zapLogger)
	}()

	zapLogger.Info("starting_server",
		zap.String("version", version),
		zap.Bool("debug_mode", debugMode),
		zap.String("server_port", cfg.ServerPort),
		zap.String("frontend_url", cfg.FrontendURL),
		zap.String("plan_timezone", cfg.PlanTimezone),
		zap.Bool("change_events", cfg.RabbitMQURL != ""),
		zap.Bool("shared_rate_limit", cfg.RedisURL != ""),
		zap.Bool("otel_enabled", cfg.OTELEnabled),
	)

	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	if cfg.OTELEnabled {
		tp, err := telemetry.InitTracer(rootCtx, telemetry.Options{
			ServiceName:    serviceName,
			ServiceVersion: version,
			InstanceID:     instanceID,
			Endpoint:       cfg.OTELEndpoint,
			SampleRatio:    cfg.OTELSampleRatio,
			Insecure:       true,
		})
		if err != nil {
			zapLogger.Warn("failed_to_initialize_otel_tracer", zap.Error(err))
		} else {
			zapLogger.Info("otel_tracer_initialized", zap.String("endpoint", cfg.OTELEndpoint))
			defer func() {
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer shutdownCancel()
				if err := telemetry.Shutdown(shutdownCtx, tp); err != nil {
					zapLogger.Error("failed_to_shutdown_otel_tracer", zap.Error(err))
				}
			}()
		}
	}

	// Key-value store
	backend, err := kvstore.Open(rootCtx, cfg.KVBackendURL)
	if err != nil {
		zapLogger.Fatal("failed_to_open_kv_backend", zap.Error(err))
	}
	store, err := kvstore.New(backend,
		kvstore.WithLogger(zapLogger),
		kvstore.WithCacheSize(cfg.KVCacheSize),
	)
	if err != nil {
		zapLogger.Fatal("failed_to_create_kv_store", zap.Error(err))
	}
	defer func() {
		if err := store.Close(); err != nil {
			zapLogger.Warn("failed_to_close_kv_store", zap.Error(err))
		}
	}()
	zapLogger.Info("kv_store_opened",
		zap.String("backend", logger.RedactURL(cfg.KVBackendURL)),
		zap.Int("cache_size", cfg.KVCacheSize),
	)

	// Repositories and services
	planRepo := database.NewPlanRepository(store)
	planRepo.SetLogger(zapLogger)
	corsConfigRepo := database.NewCorsConfigRepository(store)
	ratelimitConfigRepo := database.NewRatelimitConfigRepository(store)

	location, ok := plans.LoadLocation(cfg.PlanTimezone)
	if !ok {
		zapLogger.Warn("unknown_plan_timezone_using_fallback",
			zap.String("plan_timezone", cfg.PlanTimezone),
			zap.String("fallback", location.String()),
		)
	}

	planService := plans.NewService(plans.Repositories{
		Plans:       planRepo,
		Drafts:      database.NewDraftRepository(store),
		Preferences: database.NewPreferencesRepository(store),
		SyncState:   database.NewSyncStateRepository(store),
	}, plans.WithLogger(zapLogger), plans.WithLocation(location))

	queryCache := querycache.New(planService, querycache.WithLogger(zapLogger))

	// Change events: other instances sharing the backend drop their caches
	bus := connectEventBus(rootCtx, cfg.RabbitMQURL, zapLogger)
	defer func() {
		if err := bus.Close(); err != nil {
			zapLogger.Warn("failed_to_close_event_bus", zap.Error(err))
		}
	}()

	planService.OnChange(func(ctx context.Context, change plans.Change) {
		publishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		event := queue.NewChangeEvent(instanceID, string(change.Op), change.PlanIDs)
		if err := bus.Publish(publishCtx, event); err != nil {
			zapLogger.Error("failed_to_publish_change_event",
				zap.String("op", string(change.Op)),
				zap.Int("plans", len(change.PlanIDs)),
				zap.Error(err),
			)
		}
	})

	listener := queue.NewListener(bus, instanceID, zapLogger, func(ctx context.Context, event *queue.ChangeEvent) {
		planRepo.InvalidateCache(event.PlanIDs...)
		queryCache.InvalidateAll()
	})
	listener.SetPrefetch(cfg.RabbitMQPrefetch)
	if cfg.RabbitMQURL != "" {
		go func() {
			if err := listener.Run(rootCtx); err != nil {
				zapLogger.Error("change_listener_stopped", zap.Error(err))
			}
		}()
	}

	// Rate limiting counters live in Redis when configured
	limiterStore, err := middleware.NewLimiterStore(rootCtx, cfg.RedisURL)
	if err != nil {
		zapLogger.Fatal("failed_to_create_rate_limit_store", zap.Error(err))
	}
	defer func() {
		if err := limiterStore.Close(); err != nil {
			zapLogger.Warn("failed_to_close_redis_connection", zap.Error(err))
		}
	}()

	// Handlers
	planHandler := handlers.NewPlanHandler(planService, queryCache, zapLogger)

	checks := map[string]handlers.Pinger{"kvstore": store}
	if limiterStore.Shared() {
		checks["redis"] = limiterStore
	}
	if cfg.RabbitMQURL != "" {
		checks["rabbitmq"] = handlers.PingFunc(bus.HealthCheck)
	}
	healthChecker := handlers.NewHealthChecker(checks)

	openAPIFs := afero.NewReadOnlyFs(afero.NewBasePathFs(afero.NewOsFs(), filepath.Dir(cfg.OpenAPIPath)))
	openAPIHandler := handlers.NewOpenAPIHandler(openAPIFs, filepath.Base(cfg.OpenAPIPath), zapLogger)

	r := mux.NewRouter()

	// gorilla/mux applies middleware in registration order: the first one
	// registered is the outermost wrapper.
	if cfg.OTELEnabled {
		r.Use(otelmux.Middleware(serviceName))
	}
	r.Use(middleware.RequestID)
	r.Use(middleware.SecurityHeaders(cfg.EnableHSTS))
	corsReloader := middleware.NewCORSReloader(corsConfigRepo, cfg.FrontendURL, zapLogger, cfg.ConfigReloadInterval)
	r.Use(corsReloader.Middleware())
	r.Use(middleware.Logging(zapLogger))
	r.Use(middleware.Audit(zapLogger))
	r.Use(middleware.ErrorHandler(zapLogger))
	r.Use(middleware.MaxRequestSize(middleware.DefaultMaxRequestSize, middleware.DefaultMaxImportSize))
	r.Use(middleware.ContentType)
	r.Use(middleware.Timeout(cfg.RequestTimeout))

	// Rate limiting applies to the API only, not to health checks
	rateLimitReloader := middleware.NewRateLimitReloader(limiterStore, ratelimitConfigRepo, cfg.RateLimit, zapLogger, cfg.ConfigReloadInterval)

	r.HandleFunc("/healthz", healthChecker.HealthCheck).Methods("GET")
	r.HandleFunc("/version", versionInfo).Methods("GET")
	openAPIHandler.RegisterRoutes(r)

	apiRouter := r.PathPrefix("/api/v1").Subrouter()
	apiRouter.Use(rateLimitReloader.Middleware())
	planHandler.RegisterRoutes(apiRouter.PathPrefix("/plans").Subrouter())
	planHandler.RegisterDraftRoutes(apiRouter.PathPrefix("/drafts").Subrouter())
	planHandler.RegisterPreferenceRoutes(apiRouter.PathPrefix("/preferences").Subrouter())
	planHandler.RegisterSyncRoutes(apiRouter.PathPrefix("/sync").Subrouter())

	// Preflight requests need a matching route for the middleware chain to run;
	// CORS answers them before this handler is reached
	r.Methods("OPTIONS").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	srv := &http.Server{
		Addr:           ":" + cfg.ServerPort,
		Handler:        r,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go corsReloader.Start(rootCtx)
	go rateLimitReloader.Start(rootCtx)

	go func() {
		zapLogger.Info("server_starting", zap.String("port", cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Fatal("server_failed_to_start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("server_shutting_down")
	rootCancel()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Error("server_forced_to_shutdown", zap.Error(err))
	}

	zapLogger.Info("server_exited")
}

// connectEventBus connects to RabbitMQ with exponential backoff to ride out
// broker startup. Without a URL, or when every attempt fails, change events
// are disabled and a no-op bus is returned.
func connectEventBus(ctx context.Context, amqpURL string, zapLogger *zap.Logger) queue.EventBus {
	if amqpURL == "" {
		zapLogger.Info("change_events_disabled")
		return queue.NewNopBus()
	}

	const maxRetries = 10
	const initialDelay = 2 * time.Second

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		bus, err := queue.NewRabbitMQBus(amqpURL)
		if err == nil {
			zapLogger.Info("connected_to_rabbitmq")
			return bus
		}
		lastErr = err

		delay := initialDelay * time.Duration(1<<uint(attempt))
		if delay > 30*time.Second {
			delay = 30 * time.Second
		}
		zapLogger.Warn("failed_to_connect_to_rabbitmq_retrying",
			zap.Int("attempt", attempt+1),
			zap.Int("max_retries", maxRetries),
			zap.Error(err),
			zap.Duration("retry_delay", delay),
		)

		select {
		case <-ctx.Done():
			return queue.NewNopBus()
		case <-time.After(delay):
		}
	}

	zapLogger.Error("failed_to_connect_to_rabbitmq_change_events_disabled",
		zap.Int("max_retries", maxRetries),
		zap.Error(lastErr),
	)
	return queue.NewNopBus()
}

func versionInfo(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, `{"version":%q,"timestamp":%q}`, version, time.Now().UTC().Format(time.RFC3339))
}
