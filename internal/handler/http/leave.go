package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/cmlabs-hris/manpower-payroll-go/internal/domain/employee"
	"github.com/cmlabs-hris/manpower-payroll-go/internal/domain/leave"
	"github.com/cmlabs-hris/manpower-payroll-go/internal/handler/http/middleware"
	"github.com/cmlabs-hris/manpower-payroll-go/internal/handler/http/response"
	"github.com/cmlabs-hris/manpower-payroll-go/internal/pkg/validator"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type LeaveHandler interface {
	InitializeYear(w http.ResponseWriter, r *http.Request)
	GetBalances(w http.ResponseWriter, r *http.Request)
	RecordUsage(w http.ResponseWriter, r *http.Request)
}

type leaveHandlerImpl struct {
	ledgerService leave.LedgerService
	employeeRepo  employee.EmployeeRepository
}

func NewLeaveHandler(ledgerService leave.LedgerService, employeeRepo employee.EmployeeRepository) LeaveHandler {
	return &leaveHandlerImpl{ledgerService: ledgerService, employeeRepo: employeeRepo}
}

// ========== BALANCES ==========

func (h *leaveHandlerImpl) InitializeYear(w http.ResponseWriter, r *http.Request) {
	employeeID, year, err := balanceParams(r)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	if err := h.ensureEmployee(r.Context(), employeeID); err != nil {
		response.HandleError(w, err)
		return
	}

	balances, err := h.ledgerService.InitializeYear(r.Context(), employeeID, year)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Created(w, "Leave year initialized", leave.NewListBalanceResponse(employeeID, year, balances))
}

func (h *leaveHandlerImpl) GetBalances(w http.ResponseWriter, r *http.Request) {
	employeeID, year, err := balanceParams(r)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	if err := h.ensureEmployee(r.Context(), employeeID); err != nil {
		response.HandleError(w, err)
		return
	}

	balances, err := h.ledgerService.GetBalances(r.Context(), employeeID, year)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, leave.NewListBalanceResponse(employeeID, year, balances))
}

// ========== USAGE ==========

func (h *leaveHandlerImpl) RecordUsage(w http.ResponseWriter, r *http.Request) {
	var req leave.RecordUsageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", nil)
		return
	}
	if err := req.Validate(); err != nil {
		response.HandleError(w, err)
		return
	}
	if err := h.ensureEmployee(r.Context(), req.EmployeeID); err != nil {
		response.HandleError(w, err)
		return
	}

	balance, err := h.ledgerService.RecordUsage(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Leave usage recorded", leave.NewBalanceResponse(balance))
}

// ensureEmployee hides employees of other companies behind not found.
func (h *leaveHandlerImpl) ensureEmployee(ctx context.Context, employeeID string) error {
	emp, err := h.employeeRepo.GetByID(ctx, employeeID)
	if err != nil {
		return err
	}
	if emp.CompanyID != middleware.CompanyID(ctx) {
		return employee.ErrEmployeeNotFound
	}
	return nil
}

func balanceParams(r *http.Request) (string, int, error) {
	employeeID := chi.URLParam(r, "employee_id")
	if _, err := uuid.Parse(employeeID); err != nil {
		return "", 0, validator.ValidationErrors{{Field: "employee_id", Message: "employee_id must be a UUID"}}
	}
	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil || year < 2000 || year > 9999 {
		return "", 0, validator.ValidationErrors{{Field: "year", Message: "year must be between 2000 and 9999"}}
	}
	return employeeID, year, nil
}
