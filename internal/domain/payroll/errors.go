package payroll

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrRunNotFound      = errors.New("payroll run not found")
	ErrRunInProgress    = errors.New("payroll run is already in progress for this period")
	ErrAlreadyProcessed = errors.New("payroll run already completed for this period")
	ErrConfiguration    = errors.New("payroll configuration error")
	ErrPartialRun       = errors.New("payroll run completed with employee failures")
	ErrRunNotCompleted  = errors.New("payroll run is not completed")
	ErrComplianceSync   = errors.New("compliance obligations could not be synced")
)

// ConfigurationError - run-level setup problem (settings, rule table, norm) that aborts the run
type ConfigurationError struct {
	CompanyID  string
	EmployeeID string
	Reason     string
	Err        error
}

func (e *ConfigurationError) Error() string {
	msg := "payroll configuration error"
	if e.CompanyID != "" {
		msg += " for company " + e.CompanyID
	}
	if e.EmployeeID != "" {
		msg += " employee " + e.EmployeeID
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigurationError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrConfiguration}
	}
	return []error{ErrConfiguration, e.Err}
}

// AlreadyProcessedError - the period has a completed run and force was not set
type AlreadyProcessedError struct {
	CompanyID string
	Month     int
	Year      int
	RunID     string
}

func (e *AlreadyProcessedError) Error() string {
	return fmt.Sprintf("payroll for company %s %04d-%02d already processed by run %s; reprocess with force",
		e.CompanyID, e.Year, e.Month, e.RunID)
}

func (e *AlreadyProcessedError) Unwrap() error {
	return ErrAlreadyProcessed
}

// PartialRunFailure - the run completed but some employees could not be resolved
type PartialRunFailure struct {
	RunID    string
	Failures []EmployeeFailure
}

func (e *PartialRunFailure) Error() string {
	ids := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		ids = append(ids, f.EmployeeCode)
	}
	return fmt.Sprintf("payroll run %s: %d employee(s) failed: %s", e.RunID, len(e.Failures), strings.Join(ids, ", "))
}

func (e *PartialRunFailure) Unwrap() error {
	return ErrPartialRun
}

// ComplianceSyncError - the run was saved as completed but its compliance
// obligations were not updated. SyncCompliance retries the sync.
type ComplianceSyncError struct {
	RunID     string
	CompanyID string
	Month     int
	Year      int
	Err       error
}

func (e *ComplianceSyncError) Error() string {
	return fmt.Sprintf("payroll run %s for company %s %04d-%02d: compliance sync failed: %v",
		e.RunID, e.CompanyID, e.Year, e.Month, e.Err)
}

func (e *ComplianceSyncError) Unwrap() []error {
	return []error{ErrComplianceSync, e.Err}
}
