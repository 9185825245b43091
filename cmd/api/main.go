package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/geocoder89/attendhub/internal/app"
	"github.com/geocoder89/attendhub/internal/auth"
	"github.com/geocoder89/attendhub/internal/cache"
	"github.com/geocoder89/attendhub/internal/config"
	"github.com/geocoder89/attendhub/internal/db"
	httpx "github.com/geocoder89/attendhub/internal/http"
	"github.com/geocoder89/attendhub/internal/http/handlers"
	"github.com/geocoder89/attendhub/internal/media"
	"github.com/geocoder89/attendhub/internal/observability"
	"github.com/geocoder89/attendhub/internal/queue/redisclient"
	"github.com/geocoder89/attendhub/internal/queue/redisqueue"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const serviceName = "attendhub-api"

func main() {
	// a missing .env is fine outside dev
	_ = godotenv.Load()

	cfg := config.Load()

	log := observability.NewLogger(cfg.Env)
	slog.SetDefault(log)

	if err := cfg.Validate(); err != nil {
		log.Error("invalid config", "err", err)
		os.Exit(1)
	}

	if err := run(cfg, log); err != nil {
		log.Error("api stopped", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer := observability.NoopShutdown
	if cfg.OTelEnabled {
		shutdown, err := observability.InitTracer(ctx, serviceName, cfg.OTelEndpoint, cfg.Env)
		if err != nil {
			log.Warn("tracing disabled", "err", err)
		} else {
			shutdownTracer = shutdown
		}
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracer(sctx)
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	prom := observability.NewProm(reg)

	storage, err := app.OpenStorage(ctx, cfg, prom, log)
	if err != nil {
		return err
	}
	defer storage.Close(context.Background())

	seedCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	err = db.EnsureAdminUser(seedCtx, storage.Users, cfg, log)
	cancel()
	if err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}

	md, err := app.OpenMedia(cfg, prom)
	if err != nil {
		return err
	}

	ready := map[string]handlers.Pinger{"storage": storage.Pinger}

	// redis backs the shared list cache and the media retry queue when configured
	var (
		store   cache.Store = cache.NewMemory(cfg.CacheTTL())
		retries media.Enqueuer
	)
	if cfg.RedisAddr != "" {
		rc := redisclient.New(redisclient.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer rc.Close()

		store = cache.NewRedis(rc.Raw(), cfg.CacheTTL(), log)
		retries = redisqueue.New(rc.Raw(), "")
		ready["redis"] = rc
		log.Info("redis enabled", "addr", cfg.RedisAddr)
	}

	router := httpx.NewRouter(httpx.Deps{
		Log:                log,
		Env:                cfg.Env,
		Events:             storage.Events,
		Users:              storage.Users,
		Tokens:             auth.NewManager(cfg.JWTSecret, cfg.JWTTTL()),
		Media:              md.Store,
		Cleaner:            media.NewCleaner(md.Store, retries, log),
		Cache:              cache.NewObserved(store, prom.ObserveCache),
		Ready:              ready,
		Prom:               prom,
		Gatherer:           reg,
		Tracing:            cfg.OTelEnabled,
		ServiceName:        serviceName,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		MaxBodyBytes:       cfg.MaxBodyBytes,
		AuthRateLimit:      cfg.AuthRateLimit,
		AttendanceLimit:    cfg.AttendanceRateLimit,
		StaticPath:         md.StaticPath,
		StaticDir:          md.StaticDir,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server starting", "port", cfg.Port, "env", cfg.Env, "store", cfg.StoreDriver, "media", cfg.MediaDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	log.Info("server shutting down")

	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(sctx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}

	log.Info("shutdown complete")
	return nil
}
