package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/geocoder89/attendhub/internal/app"
	"github.com/geocoder89/attendhub/internal/config"
	"github.com/geocoder89/attendhub/internal/jobs"
	"github.com/geocoder89/attendhub/internal/observability"
	"github.com/geocoder89/attendhub/internal/queue/redisclient"
	"github.com/geocoder89/attendhub/internal/queue/redisqueue"
	"github.com/geocoder89/attendhub/internal/queue/worker"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()

	log := observability.NewLogger(cfg.Env)
	slog.SetDefault(log)

	if cfg.RedisAddr == "" {
		log.Error("worker needs REDIS_ADDR")
		os.Exit(1)
	}

	if err := run(cfg, log); err != nil {
		log.Error("worker stopped", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	prom := observability.NewProm(reg)

	md, err := app.OpenMedia(cfg, prom)
	if err != nil {
		return err
	}

	rc := redisclient.New(redisclient.Config{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer rc.Close()

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	err = rc.Ping(pctx)
	cancel()
	if err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}

	q := redisqueue.New(rc.Raw(), "")

	host, _ := os.Hostname()
	workerID := host + "-" + strconv.Itoa(os.Getpid())

	w := worker.New(worker.Config{
		WorkerID:      workerID,
		PollInterval:  250 * time.Millisecond,
		Concurrency:   cfg.WorkerConcurrency,
		JobTimeout:    30 * time.Second,
		ShutdownGrace: 10 * time.Second,
	}, q, prom, log)
	w.Handle(jobs.JobMediaDelete, worker.MediaDeleteHandler(md.Store))

	healthSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.WorkerHealthPort),
		Handler:           w.HealthHandler(q, q, reg),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("worker health server starting", "port", cfg.WorkerHealthPort)
		if err := healthSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("worker health server failed", "err", err)
		}
	}()

	runErr := w.Run(ctx)

	sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = healthSrv.Shutdown(sctx)

	log.Info("worker shutdown complete")
	return runErr
}
