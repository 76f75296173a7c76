// Package jobs runs payroll work outside the request path: queued payroll
// runs, the compliance overdue scan and the year-start leave initialization.
package jobs

import (
	"encoding/json"
	"fmt"

	"github.com/cmlabs-hris/manpower-payroll-go/internal/domain/payroll"
	"github.com/hibiken/asynq"
)

const (
	QueueDefault = "default"
	QueuePayroll = "payroll"

	TaskComputePayroll      = "payroll:compute"
	TaskOverdueScan         = "compliance:overdue-scan"
	TaskLeaveInitializeYear = "leave:initialize-year"
)

// ComputePayrollPayload carries a validated payroll request to the worker.
type ComputePayrollPayload struct {
	CompanyID   string   `json:"company_id"`
	Month       int      `json:"month"`
	Year        int      `json:"year"`
	EmployeeIDs []string `json:"employee_ids,omitempty"`
	Force       bool     `json:"force"`
}

func (p ComputePayrollPayload) Request() payroll.ComputePayrollRequest {
	return payroll.ComputePayrollRequest{
		CompanyID:   p.CompanyID,
		Month:       p.Month,
		Year:        p.Year,
		EmployeeIDs: p.EmployeeIDs,
		Force:       p.Force,
	}
}

// LeaveInitializeYearPayload selects the year to open. Zero means the
// current year at execution time.
type LeaveInitializeYearPayload struct {
	Year int `json:"year,omitempty"`
}

// ComputePayrollTaskID identifies a queued run. Asynq rejects a second task
// with the same ID while the first one is still pending or active.
func ComputePayrollTaskID(req payroll.ComputePayrollRequest) string {
	id := fmt.Sprintf("%s:%s:%04d-%02d", TaskComputePayroll, req.CompanyID, req.Year, req.Month)
	if req.Force {
		id += ":force"
	}
	return id
}

func NewComputePayrollTask(req payroll.ComputePayrollRequest) (*asynq.Task, error) {
	data, err := json.Marshal(ComputePayrollPayload{
		CompanyID:   req.CompanyID,
		Month:       req.Month,
		Year:        req.Year,
		EmployeeIDs: req.EmployeeIDs,
		Force:       req.Force,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode payroll task: %w", err)
	}
	return asynq.NewTask(TaskComputePayroll, data, asynq.MaxRetry(3)), nil
}

func NewOverdueScanTask() *asynq.Task {
	return asynq.NewTask(TaskOverdueScan, nil, asynq.MaxRetry(1))
}

func NewLeaveInitializeYearTask(year int) (*asynq.Task, error) {
	data, err := json.Marshal(LeaveInitializeYearPayload{Year: year})
	if err != nil {
		return nil, fmt.Errorf("failed to encode leave task: %w", err)
	}
	return asynq.NewTask(TaskLeaveInitializeYear, data), nil
}
