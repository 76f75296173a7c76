package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/cmlabs-hris/manpower-payroll-go/internal/domain/compliance"
	"github.com/cmlabs-hris/manpower-payroll-go/internal/domain/ruletable"
	"github.com/cmlabs-hris/manpower-payroll-go/internal/handler/http/middleware"
	"github.com/cmlabs-hris/manpower-payroll-go/internal/handler/http/response"
	"github.com/go-chi/chi/v5"
)

type ComplianceHandler interface {
	GetObligations(w http.ResponseWriter, r *http.Request)
	StartFiling(w http.ResponseWriter, r *http.Request)
	FileObligation(w http.ResponseWriter, r *http.Request)
}

type complianceHandlerImpl struct {
	complianceService compliance.ComplianceService
}

func NewComplianceHandler(complianceService compliance.ComplianceService) ComplianceHandler {
	return &complianceHandlerImpl{complianceService: complianceService}
}

func (h *complianceHandlerImpl) GetObligations(w http.ResponseWriter, r *http.Request) {
	month, year, err := periodParams(r)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	items, err := h.complianceService.GetComplianceObligations(r.Context(), middleware.CompanyID(r.Context()), month, year)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, compliance.NewComplianceItemResponses(items))
}

// StartFiling accepts the state of a PT or LWF obligation as ?state=.
func (h *complianceHandlerImpl) StartFiling(w http.ResponseWriter, r *http.Request) {
	month, year, err := periodParams(r)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	req := compliance.StartFilingRequest{
		CompanyID: middleware.CompanyID(r.Context()),
		Type:      typeParam(r),
		State:     stateParam(r.URL.Query().Get("state")),
		Month:     month,
		Year:      year,
	}
	item, err := h.complianceService.StartFiling(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Filing started", compliance.NewComplianceItemResponse(item))
}

func (h *complianceHandlerImpl) FileObligation(w http.ResponseWriter, r *http.Request) {
	month, year, err := periodParams(r)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	var req compliance.FileObligationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", nil)
		return
	}
	req.CompanyID = middleware.CompanyID(r.Context())
	req.Type = typeParam(r)
	req.Month = month
	req.Year = year
	if req.State == "" {
		req.State = ruletable.State(r.URL.Query().Get("state"))
	}
	req.State = stateParam(string(req.State))

	item, err := h.complianceService.FileObligation(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Obligation filed", compliance.NewComplianceItemResponse(item))
}

func typeParam(r *http.Request) compliance.Type {
	return compliance.Type(strings.ToUpper(chi.URLParam(r, "type")))
}

func stateParam(s string) ruletable.State {
	return ruletable.State(strings.ToUpper(strings.TrimSpace(s)))
}
