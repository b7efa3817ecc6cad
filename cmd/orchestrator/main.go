package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/ethiscan/orchestrator/internal/cachestore"
	"github.com/ethiscan/orchestrator/internal/config"
	"github.com/ethiscan/orchestrator/internal/gateway"
	"github.com/ethiscan/orchestrator/internal/orchestrator"
	"github.com/ethiscan/orchestrator/internal/policy"
	"github.com/ethiscan/orchestrator/internal/pricing"
	"github.com/ethiscan/orchestrator/internal/provider"
	"github.com/ethiscan/orchestrator/internal/ratelimit"
	"github.com/ethiscan/orchestrator/internal/telemetry"
	"github.com/ethiscan/orchestrator/internal/tier"
)

var version = "dev"

func main() {
	configDir := flag.String("config", "configs", "path to configuration directory")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	loader := config.NewLoader(*configDir, logger)
	if err := loader.Load(); err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	cfg := loader.Config()
	ctx := context.Background()

	// PostgreSQL backs the response cache, tier lookups, and usage metrics.
	// The service starts without it, degraded to in-memory behavior.
	var dbPool *pgxpool.Pool
	if pool, err := pgxpool.New(ctx, cfg.Database.DSN()); err != nil {
		logger.Error("invalid database configuration", "error", err)
		os.Exit(1)
	} else if err := pool.Ping(ctx); err != nil {
		logger.Warn("database not reachable, durable cache and tier lookups degraded", "error", err)
		pool.Close()
	} else {
		logger.Info("database connected")
		dbPool = pool
		defer pool.Close()
	}

	var rdb *redis.Client
	if cfg.Redis.Address != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("redis not reachable, falling back to in-memory counters", "error", err)
			rdb = nil
		} else {
			logger.Info("redis connected")
		}
	}

	registry, err := provider.BuildFromConfig(loader.Providers())
	if err != nil {
		logger.Error("failed to build provider registry", "error", err)
		os.Exit(1)
	}

	lensTable, err := policy.FromConfig(loader.Lenses())
	if err != nil {
		logger.Error("invalid lens rules", "error", err)
		os.Exit(1)
	}
	validator := policy.NewValidator(lensTable)
	logger.Info("lens rules loaded", "version", validator.TableVersion())

	loader.OnReload(func() {
		if newRegistry, err := provider.BuildFromConfig(loader.Providers()); err != nil {
			logger.Error("provider config invalid, keeping previous registry", "error", err)
		} else {
			registry.ReplaceAll(newRegistry)
			logger.Info("provider registry reloaded")
		}
		if table, err := policy.FromConfig(loader.Lenses()); err != nil {
			logger.Error("lens rules invalid, keeping previous table", "error", err)
		} else {
			validator.Reload(table)
			logger.Info("lens rules reloaded", "version", table.Version)
		}
	})
	if err := loader.Watch(); err != nil {
		logger.Warn("failed to start config watcher", "error", err)
	}

	// Rate limit counters: redis when available so all instances share
	// windows, memory otherwise.
	var counters ratelimit.CounterStore
	if cfg.RateLimit.Backend == "redis" && rdb != nil {
		counters = ratelimit.NewRedisStore(rdb)
		logger.Info("rate limit counters on redis")
	} else {
		mem := ratelimit.NewMemoryStore(time.Now)
		mem.StartSweeper(ctx, cfg.RateLimit.SweepInterval)
		counters = mem
	}
	ipLimit := ratelimit.NewIPLimiter(counters, cfg.RateLimit.IPPerMinute, time.Minute)
	quotas := ratelimit.Quotas{}
	for name, limit := range cfg.RateLimit.TierQuotas {
		quotas[ratelimit.Tier(name)] = limit
	}
	userLimit := ratelimit.NewTierLimiter(counters, tier.NewResolver(dbPool, rdb), quotas)

	var store cachestore.Store
	if cfg.Cache.Backend == "postgres" && dbPool != nil {
		pg := cachestore.NewPostgresStore(dbPool)
		go func() {
			ticker := time.NewTicker(cfg.Cache.SweepInterval)
			defer ticker.Stop()
			for range ticker.C {
				if n, err := pg.PurgeExpired(ctx); err != nil {
					logger.Warn("cache purge failed", "error", err)
				} else if n > 0 {
					logger.Info("purged expired cache rows", "rows", n)
				}
			}
		}()
		store = pg
		logger.Info("response cache on postgres")
	} else {
		mem := cachestore.NewMemoryStore(time.Now)
		mem.StartSweeper(ctx, cfg.Cache.SweepInterval)
		store = mem
		logger.Info("response cache in memory")
	}

	metrics := telemetry.NewMetrics(prometheus.DefaultRegisterer)
	recorder := cachestore.NewRecorder(dbPool, pricing.NewTable(nil))

	orch := orchestrator.New(orchestrator.Options{
		DefaultProvider: cfg.Orchestrator.DefaultProvider,
		DefaultTimeout:  cfg.Orchestrator.DefaultTimeout,
		CacheTTL:        cfg.Cache.TTL,
		MaxImageBytes:   int(cfg.Orchestrator.MaxImageBytes),
		MaxTextChars:    cfg.Orchestrator.MaxTextChars,
	}, registry, ipLimit, userLimit, store, recorder, validator, metrics, logger)

	handler := gateway.NewHandler(orch, logger)

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestIDMiddleware)
	r.Get("/v1/health", gateway.Health(version))
	r.Get("/v1/lenses", handler.Lenses)
	r.Post("/v1/analyze", handler.Analyze)

	// Metrics are served on their own port, off the request path.
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Telemetry.MetricsPort)
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		logger.Info("metrics listening", "addr", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Error("metrics server failed", "error", err)
		}
	}()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("orchestrator starting", "addr", addr, "version", version)
		errCh <- srv.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info("received shutdown signal", "signal", sig)
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulShutdown)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
	logger.Info("orchestrator stopped")
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = generateRequestID()
		}
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r)
	})
}

func generateRequestID() string {
	b := make([]byte, 8)
	rand.Read(b)
	return fmt.Sprintf("req_%d_%s", time.Now().UnixMilli(), hex.EncodeToString(b))
}
