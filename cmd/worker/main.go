package main

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

	"github.com/tylerursuy/ARMR/internal/bootstrap"
	"github.com/tylerursuy/ARMR/internal/config"
	"github.com/tylerursuy/ARMR/internal/infrastructure/scheduler"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, "worker")
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	metricsServer := &http.Server{
		Addr:    ":" + cfg.WorkerMetricsPort,
		Handler: app.WorkerMetrics.Handler(),
	}
	go func() {
		log.Printf("worker metrics listening on :%s", cfg.WorkerMetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("worker metrics server error: %v", err)
		}
	}()

	// Swap in newly published model versions without a restart.
	go func() {
		err := app.Signal.SubscribeModelReloaded(ctx, func(reloadCtx context.Context, version string) error {
			reloadCtx, cancel := context.WithTimeout(reloadCtx, 30*time.Second)
			defer cancel()
			return app.Recognizer.Reload(reloadCtx, version)
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("model reload subscription error: %v", err)
		}
	}()

	log.Printf("worker polling every %s", cfg.WorkerPollInterval)
	loop := scheduler.NewInterval(cfg.WorkerPollInterval, app.Worker.Tick, app.Logger)
	if err := loop.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("worker loop error: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("worker metrics shutdown error: %v", err)
	}
}
