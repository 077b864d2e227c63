package payrollhandler

import (
	"errors"
	"log/slog"
	"net/http"

	"payslip/internal/domain/payroll"
	"payslip/internal/transport/http/api"
	"payslip/internal/transport/http/middleware"
)

func classifyError(err error) (int, string) {
	switch {
	case errors.Is(err, payroll.ErrConfigNotFound):
		return http.StatusNotFound, "tax_year_not_found"
	case errors.Is(err, payroll.ErrInvalidRuleConfiguration):
		return http.StatusUnprocessableEntity, "invalid_rule"
	case errors.Is(err, payroll.ErrNegativeInput),
		errors.Is(err, payroll.ErrUnknownFrequency),
		errors.Is(err, payroll.ErrInvalidAllowanceCode),
		errors.Is(err, payroll.ErrInvalidRequest):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, payroll.ErrPayslipNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, payroll.ErrDocumentNotReady):
		return http.StatusConflict, "document_not_ready"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	requestID := middleware.GetRequestID(r.Context())
	status, code := classifyError(err)
	message := err.Error()
	if status >= http.StatusInternalServerError {
		slog.Error("payroll request failed", "path", r.URL.Path, "requestId", requestID, "err", err)
		message = "internal server error"
	}
	api.Fail(w, status, code, message, requestID)
}
