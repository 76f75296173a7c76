package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/cmlabs-hris/manpower-payroll-go/internal/domain/payroll"
	"github.com/cmlabs-hris/manpower-payroll-go/internal/handler/http/middleware"
	"github.com/cmlabs-hris/manpower-payroll-go/internal/handler/http/response"
	"github.com/cmlabs-hris/manpower-payroll-go/internal/pkg/validator"
	"github.com/go-chi/chi/v5"
)

type PayrollHandler interface {
	ComputePayroll(w http.ResponseWriter, r *http.Request)
	GetRun(w http.ResponseWriter, r *http.Request)
	ListSalaryRecords(w http.ResponseWriter, r *http.Request)
	SyncCompliance(w http.ResponseWriter, r *http.Request)
}

// PayrollEnqueuer hands a run to the background worker.
type PayrollEnqueuer interface {
	EnqueueComputePayroll(ctx context.Context, req payroll.ComputePayrollRequest) (payroll.QueuedPayrollResponse, error)
}

type payrollHandlerImpl struct {
	payrollService payroll.PayrollService
	enqueuer       PayrollEnqueuer
}

// NewPayrollHandler builds the handler. A nil enqueuer runs async requests inline.
func NewPayrollHandler(payrollService payroll.PayrollService, enqueuer PayrollEnqueuer) PayrollHandler {
	return &payrollHandlerImpl{payrollService: payrollService, enqueuer: enqueuer}
}

// ========== RUNS ==========

func (h *payrollHandlerImpl) ComputePayroll(w http.ResponseWriter, r *http.Request) {
	var req payroll.ComputePayrollRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", nil)
		return
	}
	req.CompanyID = middleware.CompanyID(r.Context())

	if req.Async && h.enqueuer != nil {
		if err := req.Validate(); err != nil {
			response.HandleError(w, err)
			return
		}
		queued, err := h.enqueuer.EnqueueComputePayroll(r.Context(), req)
		if err != nil {
			response.HandleError(w, err)
			return
		}
		response.Accepted(w, "Payroll run queued", queued)
		return
	}

	result, err := h.payrollService.ComputePayroll(r.Context(), req)
	var syncErr *payroll.ComplianceSyncError
	if err != nil && !errors.As(err, &syncErr) {
		response.HandleError(w, err)
		return
	}

	message := "Payroll run completed"
	if result.Err() != nil {
		message = "Payroll run completed with employee failures"
	}
	if syncErr != nil {
		message += "; compliance obligations were not synced, retry with the compliance-sync endpoint"
	}
	response.SuccessWithMessage(w, message, payroll.NewComputePayrollResponse(result))
}

func (h *payrollHandlerImpl) GetRun(w http.ResponseWriter, r *http.Request) {
	month, year, err := periodParams(r)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	run, err := h.payrollService.GetRun(r.Context(), middleware.CompanyID(r.Context()), month, year)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, payroll.NewRunResponse(run))
}

func (h *payrollHandlerImpl) ListSalaryRecords(w http.ResponseWriter, r *http.Request) {
	month, year, err := periodParams(r)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	records, err := h.payrollService.ListSalaryRecords(r.Context(), middleware.CompanyID(r.Context()), month, year)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, payroll.NewSalaryRecordResponses(records))
}

func (h *payrollHandlerImpl) SyncCompliance(w http.ResponseWriter, r *http.Request) {
	month, year, err := periodParams(r)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	run, err := h.payrollService.SyncCompliance(r.Context(), middleware.CompanyID(r.Context()), month, year)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Compliance obligations synced", payroll.NewRunResponse(run))
}

// periodParams reads {year} and {month} from the route.
func periodParams(r *http.Request) (int, int, error) {
	var errs validator.ValidationErrors
	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil {
		errs = append(errs, validator.ValidationError{Field: "year", Message: "year must be a number"})
	}
	month, err := strconv.Atoi(chi.URLParam(r, "month"))
	if err != nil {
		errs = append(errs, validator.ValidationError{Field: "month", Message: "month must be a number"})
	}
	if len(errs) == 0 && !validator.IsValidPeriod(month, year) {
		errs = append(errs, validator.ValidationError{Field: "period", Message: "month must be 1-12 and year 2000-9999"})
	}
	if len(errs) > 0 {
		return 0, 0, errs
	}
	return month, year, nil
}
