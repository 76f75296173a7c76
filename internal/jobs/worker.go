package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

// Worker wraps the asynq server and the periodic scheduler.
type Worker struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	scheduler *asynq.Scheduler
	logger    *slog.Logger
}

// CronRegistration wires a cron expression to a prepared task.
type CronRegistration struct {
	Spec    string
	Task    *asynq.Task
	Options []asynq.Option
}

type WorkerConfig struct {
	RedisOpts   asynq.RedisConnOpt
	Logger      *slog.Logger
	Concurrency int
	Processor   *Processor
	Cron        []CronRegistration
}

// DefaultCron schedules the overdue scan and the year-start leave
// initialization. Empty specs disable the entry.
func DefaultCron(overdueSpec, leaveSpec string) ([]CronRegistration, error) {
	var entries []CronRegistration
	if overdueSpec != "" {
		entries = append(entries, CronRegistration{
			Spec:    overdueSpec,
			Task:    NewOverdueScanTask(),
			Options: []asynq.Option{asynq.Queue(QueueDefault)},
		})
	}
	if leaveSpec != "" {
		task, err := NewLeaveInitializeYearTask(0)
		if err != nil {
			return nil, err
		}
		entries = append(entries, CronRegistration{
			Spec:    leaveSpec,
			Task:    task,
			Options: []asynq.Option{asynq.Queue(QueueDefault)},
		})
	}
	return entries, nil
}

func NewWorker(cfg WorkerConfig) (*Worker, error) {
	if cfg.Processor == nil {
		return nil, errors.New("worker: processor is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}

	srv := asynq.NewServer(cfg.RedisOpts, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			QueuePayroll: 3,
			QueueDefault: 1,
		},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			retried, _ := asynq.GetRetryCount(ctx)
			maxRetry, _ := asynq.GetMaxRetry(ctx)
			cfg.Logger.Error("Job failed", "type", task.Type(), "retry", retried, "max_retry", maxRetry, "error", err)
		}),
	})

	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskComputePayroll, cfg.Processor.HandleComputePayroll)
	mux.HandleFunc(TaskOverdueScan, cfg.Processor.HandleOverdueScan)
	mux.HandleFunc(TaskLeaveInitializeYear, cfg.Processor.HandleLeaveInitializeYear)

	var scheduler *asynq.Scheduler
	if len(cfg.Cron) > 0 {
		scheduler = asynq.NewScheduler(cfg.RedisOpts, &asynq.SchedulerOpts{Location: time.UTC})
		for _, entry := range cfg.Cron {
			if entry.Spec == "" || entry.Task == nil {
				continue
			}
			if _, err := scheduler.Register(entry.Spec, entry.Task, entry.Options...); err != nil {
				return nil, fmt.Errorf("failed to register %s at %q: %w", entry.Task.Type(), entry.Spec, err)
			}
			cfg.Logger.Info("Job scheduled", "type", entry.Task.Type(), "spec", entry.Spec)
		}
	}

	return &Worker{server: srv, mux: mux, scheduler: scheduler, logger: cfg.Logger}, nil
}

// Run processes jobs until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	if w == nil {
		return errors.New("worker: not configured")
	}
	if w.scheduler != nil {
		if err := w.scheduler.Start(); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
	}

	if err := w.server.Start(w.mux); err != nil {
		if w.scheduler != nil {
			w.scheduler.Shutdown()
		}
		return fmt.Errorf("failed to start worker: %w", err)
	}
	w.logger.Info("Worker started")

	<-ctx.Done()
	w.shutdown()
	return nil
}

func (w *Worker) shutdown() {
	if w.scheduler != nil {
		w.scheduler.Shutdown()
	}
	w.server.Shutdown()
	w.logger.Info("Worker stopped")
}
