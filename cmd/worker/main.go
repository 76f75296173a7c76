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

	"github.com/cmlabs-hris/manpower-payroll-go/internal/app"
	"github.com/cmlabs-hris/manpower-payroll-go/internal/config"
	"github.com/cmlabs-hris/manpower-payroll-go/internal/jobs"
)

func main() {
	if err := run(); err != nil {
		slog.Error("Worker exited with error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if !cfg.Redis.Enabled() {
		return errors.New("REDIS_ADDR is required to run the worker")
	}

	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	cronEntries, err := jobs.DefaultCron(cfg.Jobs.OverdueScanSpec, cfg.Jobs.LeaveInitializeSpec)
	if err != nil {
		return err
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   a.RedisOpts(),
		Logger:      a.Logger,
		Concurrency: cfg.Jobs.Concurrency,
		Processor:   jobs.NewProcessor(a.Payroll, a.Compliance, a.Ledger, a.Companies, a.Metrics),
		Cron:        cronEntries,
	})
	if err != nil {
		return fmt.Errorf("init worker: %w", err)
	}

	if cfg.Jobs.MetricsPort > 0 {
		metricsServer := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Jobs.MetricsPort),
			Handler:           a.Metrics.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("Metrics server failed", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = metricsServer.Shutdown(shutdownCtx)
		}()
	}

	return worker.Run(ctx)
}
