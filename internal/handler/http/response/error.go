package response

import (
	"context"
	"errors"
	"net/http"

	"github.com/cmlabs-hris/manpower-payroll-go/internal/domain/company"
	"github.com/cmlabs-hris/manpower-payroll-go/internal/domain/compliance"
	"github.com/cmlabs-hris/manpower-payroll-go/internal/domain/employee"
	"github.com/cmlabs-hris/manpower-payroll-go/internal/domain/leave"
	"github.com/cmlabs-hris/manpower-payroll-go/internal/domain/payroll"
	"github.com/cmlabs-hris/manpower-payroll-go/internal/domain/ruletable"
	"github.com/cmlabs-hris/manpower-payroll-go/internal/pkg/jwt"
	"github.com/cmlabs-hris/manpower-payroll-go/internal/pkg/validator"
)

// HandleError maps domain errors to HTTP responses
func HandleError(w http.ResponseWriter, err error) {
	// Check if it's a validation error
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		ValidationError(w, validationErrs.ToMap())
		return
	}

	var insufficient *leave.InsufficientBalanceError
	if errors.As(err, &insufficient) {
		BadRequest(w, "Insufficient leave balance", map[string]string{
			"employee_id":   insufficient.EmployeeID,
			"leave_type_id": insufficient.LeaveTypeID,
		})
		return
	}

	var mismatch *compliance.AmountMismatchError
	if errors.As(err, &mismatch) {
		BadRequest(w, "Filed amount does not match the obligation", map[string]string{
			"expected": mismatch.Expected.StringFixed(2),
			"got":      mismatch.Got.StringFixed(2),
		})
		return
	}

	switch {
	// Auth errors
	case errors.Is(err, jwt.ErrInvalidToken):
		Unauthorized(w, "Invalid or expired token")
	case errors.Is(err, jwt.ErrCompanyIDRequired):
		Forbidden(w, "No company associated with this token")
	case errors.Is(err, jwt.ErrManagerAccessRequired):
		Forbidden(w, "Manager or owner role required")

	// Payroll domain errors
	case errors.Is(err, payroll.ErrConfiguration):
		UnprocessableEntity(w, "CONFIGURATION_ERROR", err.Error())
	case errors.Is(err, ruletable.ErrUnsupportedJurisdiction):
		UnprocessableEntity(w, "UNSUPPORTED_JURISDICTION", err.Error())
	case errors.Is(err, payroll.ErrAlreadyProcessed):
		Conflict(w, err.Error())
	case errors.Is(err, payroll.ErrRunInProgress):
		Conflict(w, "Payroll run already in progress for this period")
	case errors.Is(err, payroll.ErrRunNotFound):
		NotFound(w, "Payroll run not found")
	case errors.Is(err, payroll.ErrRunNotCompleted):
		Conflict(w, "Payroll run is not completed for this period")
	case errors.Is(err, payroll.ErrComplianceSync):
		InternalServerError(w, "Compliance obligations could not be synced, retry later")

	// Leave domain errors
	case errors.Is(err, leave.ErrLeaveTypeNotFound):
		NotFound(w, "Leave type not found")
	case errors.Is(err, leave.ErrBalanceNotFound):
		NotFound(w, "Leave balance not found, initialize the year first")
	case errors.Is(err, leave.ErrLeaveTypeInactive):
		BadRequest(w, "Leave type is inactive", nil)
	case errors.Is(err, leave.ErrNotEmployedInYear):
		BadRequest(w, "Employee did not join before the end of the year", nil)

	// Compliance domain errors
	case errors.Is(err, compliance.ErrItemNotFound):
		NotFound(w, "Compliance obligation not found")
	case errors.Is(err, compliance.ErrAmbiguousState):
		BadRequest(w, "Obligation is filed per state, state is required", nil)
	case errors.Is(err, compliance.ErrAlreadyFiled):
		Conflict(w, "Compliance obligation already filed")
	case errors.Is(err, compliance.ErrInvalidTransition):
		Conflict(w, "Invalid compliance status transition")

	// Master data errors
	case errors.Is(err, employee.ErrEmployeeNotFound):
		NotFound(w, "Employee not found")
	case errors.Is(err, company.ErrCompanyNotFound):
		NotFound(w, "Company not found")

	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		ServiceUnavailable(w, "Request cancelled before completion")

	// Default
	default:
		InternalServerError(w, "An unexpected error occurred")
	}
}
