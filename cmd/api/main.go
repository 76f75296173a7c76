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
	appHTTP "github.com/cmlabs-hris/manpower-payroll-go/internal/handler/http"
	"github.com/cmlabs-hris/manpower-payroll-go/internal/jobs"
	"github.com/cmlabs-hris/manpower-payroll-go/internal/pkg/cron"
	"github.com/cmlabs-hris/manpower-payroll-go/internal/pkg/jwt"
)

func main() {
	if err := run(); err != nil {
		slog.Error("Server exited with error", "error", err)
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

	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	// Queued runs go to the worker when Redis is available; otherwise async
	// requests run inline and this process schedules the periodic jobs.
	var enqueuer appHTTP.PayrollEnqueuer
	if cfg.Redis.Enabled() {
		queue := jobs.NewClient(a.RedisOpts())
		defer queue.Close()
		enqueuer = queue
	} else {
		processor := jobs.NewProcessor(a.Payroll, a.Compliance, a.Ledger, a.Companies, a.Metrics)
		scheduler := cron.NewScheduler(a.Metrics)
		scheduler.AddJob(jobs.TaskOverdueScan, cfg.Jobs.OverdueScanInterval, processor.ScanOverdue)
		scheduler.AddJob(jobs.TaskLeaveInitializeYear, cfg.Jobs.LeaveInitializeInterval, func(ctx context.Context) error {
			return processor.InitializeLeaveYear(ctx, 0)
		})
		scheduler.Start(ctx)
		defer scheduler.Stop()
	}

	jwtService := jwt.NewJWTService(cfg.JWT.Secret, cfg.JWT.AccessExpiration)
	router := appHTTP.NewRouter(jwtService, a.Metrics, appHTTP.Handlers{
		Payroll:    appHTTP.NewPayrollHandler(a.Payroll, enqueuer),
		Leave:      appHTTP.NewLeaveHandler(a.Ledger, a.Employees),
		Compliance: appHTTP.NewComplianceHandler(a.Compliance),
	}, appHTTP.RouterOptions{
		Logger:         a.Logger,
		LogLevel:       a.Level,
		AllowedOrigins: cfg.App.AllowedOrigins,
		RunsPerMinute:  cfg.Payroll.RunsPerMinute,
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server starting", "port", cfg.App.Port, "env", cfg.App.Env)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	slog.Info("Server stopped")
	return nil
}
