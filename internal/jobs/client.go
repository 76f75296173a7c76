package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cmlabs-hris/manpower-payroll-go/internal/domain/payroll"
	"github.com/hibiken/asynq"
)

// Client submits payroll runs to the worker queue.
type Client struct {
	client *asynq.Client
}

func NewClient(redisOpts asynq.RedisConnOpt) *Client {
	return &Client{client: asynq.NewClient(redisOpts)}
}

// EnqueueComputePayroll queues one run per company period. A run already
// waiting in the queue for the same period is reported as ErrRunInProgress.
func (c *Client) EnqueueComputePayroll(ctx context.Context, req payroll.ComputePayrollRequest) (payroll.QueuedPayrollResponse, error) {
	task, err := NewComputePayrollTask(req)
	if err != nil {
		return payroll.QueuedPayrollResponse{}, err
	}

	taskID := ComputePayrollTaskID(req)
	info, err := c.client.EnqueueContext(ctx, task, asynq.Queue(QueuePayroll), asynq.TaskID(taskID))
	if err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			return payroll.QueuedPayrollResponse{}, fmt.Errorf("task %s already queued: %w", taskID, payroll.ErrRunInProgress)
		}
		return payroll.QueuedPayrollResponse{}, fmt.Errorf("failed to enqueue payroll run: %w", err)
	}

	slog.Info("Payroll run queued", "task_id", info.ID, "company_id", req.CompanyID, "month", req.Month, "year", req.Year, "force", req.Force)
	return payroll.QueuedPayrollResponse{
		TaskID: info.ID,
		Queue:  info.Queue,
		Month:  req.Month,
		Year:   req.Year,
	}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}
