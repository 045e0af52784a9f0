package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/tylerursuy/ARMR/internal/bootstrap"
	"github.com/tylerursuy/ARMR/internal/config"
)

func main() {
	once := flag.Bool("once", false, "run a single retraining cycle and exit")
	flag.Parse()

	_ = godotenv.Load()
	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, "retrain")
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	runCycle := func() {
		start := time.Now()
		report, err := app.Retrainer.Run(ctx)
		if err != nil {
			app.RetrainMetrics.RecordRun(time.Since(start), 0, nil, err)
			log.Printf("retraining run failed: %v", err)
			return
		}
		app.RetrainMetrics.RecordRun(time.Since(start), report.Examples, report.EpochLosses, nil)
		log.Printf("retraining run published version %s from %d examples", report.Version, report.Examples)
	}

	if *once {
		runCycle()
		return
	}

	metricsServer := &http.Server{
		Addr:    ":" + cfg.RetrainMetricsPort,
		Handler: app.RetrainMetrics.Handler(),
	}
	go func() {
		log.Printf("retrain metrics listening on :%s", cfg.RetrainMetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("retrain metrics server error: %v", err)
		}
	}()

	c := cron.New()
	if _, err := c.AddFunc(cfg.RetrainSchedule, runCycle); err != nil {
		log.Fatalf("invalid retrain schedule %q: %v", cfg.RetrainSchedule, err)
	}
	c.Start()
	log.Printf("retraining scheduled: %s", cfg.RetrainSchedule)

	<-ctx.Done()
	cronCtx := c.Stop()
	<-cronCtx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("retrain metrics shutdown error: %v", err)
	}
}
