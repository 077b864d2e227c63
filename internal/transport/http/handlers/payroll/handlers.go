package payrollhandler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"payslip/internal/domain/audit"
	"payslip/internal/domain/auth"
	"payslip/internal/domain/payroll"
	"payslip/internal/platform/jobs"
	"payslip/internal/transport/http/api"
	"payslip/internal/transport/http/middleware"
	"payslip/internal/transport/http/shared"
)

const maxBatchItems = 500

type Calculator interface {
	CalculatePayslip(req payroll.PayslipRequest) (payroll.PayslipResult, error)
	CalculateDeductions(annualIncome decimal.Decimal, allowanceCode string, frequency payroll.PayFrequency, taxYear string) (payroll.DeductionSummary, error)
}

type TaxYearCatalog interface {
	TaxYear(id string) (payroll.TaxYearConfig, error)
	IDs() []string
}

type AuditLog interface {
	Record(ctx context.Context, entry audit.Entry) error
	List(ctx context.Context, tenantID string, filter audit.Filter, limit, offset int) ([]audit.Event, error)
}

type DocumentRenderer interface {
	Generate(payslip payroll.StoredPayslip) (string, error)
	Open(path string) ([]byte, error)
}

// JobQueue renders documents in the background, or inline with RunNow.
type JobQueue interface {
	Enqueue(jobType, tenantID string, run jobs.RunFunc) error
	RunNow(ctx context.Context, jobType, tenantID string, run jobs.RunFunc) (any, error)
}

type CalculationMetrics interface {
	RecordCalculation(failureKind string, duration time.Duration)
	RecordDocument(queued bool)
}

type Deps struct {
	Calculator Calculator
	TaxYears   TaxYearCatalog
	Store      payroll.StoreAPI
	Audit      AuditLog
	Documents  DocumentRenderer
	Jobs       JobQueue
	Metrics    CalculationMetrics
	Perms      middleware.PermissionStore
	Workers    int
}

type Handler struct {
	Deps
}

func NewHandler(deps Deps) *Handler {
	if deps.Workers <= 0 {
		deps.Workers = 1
	}
	return &Handler{Deps: deps}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	read := middleware.RequirePermission(auth.PermPayrollRead, h.Perms)
	run := middleware.RequirePermission(auth.PermPayrollRun, h.Perms)

	r.Route("/payroll", func(r chi.Router) {
		r.With(read).Get("/tax-years", h.handleListTaxYears)
		r.With(read).Get("/tax-years/{taxYear}", h.handleGetTaxYear)
		r.With(read).Post("/deductions", h.handleDeductions)
		r.With(read).Post("/calculate", h.handleCalculate)
		r.With(run).Post("/calculate/batch", h.handleCalculateBatch)
		r.With(run).Post("/payslips", h.handleCreatePayslip)
		r.With(read).Get("/payslips", h.handleListPayslips)
		r.With(read).Get("/payslips/{payslipID}", h.handleGetPayslip)
		r.With(read).Get("/payslips/{payslipID}/download", h.handleDownloadPayslip)
		r.With(run).Post("/payslips/{payslipID}/regenerate", h.handleRegeneratePayslip)
		r.With(run).Get("/payslips/{payslipID}/audit", h.handlePayslipAudit)
	})
}

func (h *Handler) handleListTaxYears(w http.ResponseWriter, r *http.Request) {
	api.Success(w, map[string]any{
		"taxYears":    h.TaxYears.IDs(),
		"frequencies": payroll.Frequencies(),
	}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGetTaxYear(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.TaxYears.TaxYear(chi.URLParam(r, "taxYear"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	api.Success(w, cfg, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleDeductions(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	var payload deductionsPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", requestID)
		return
	}

	v := shared.NewValidator()
	v.Required("taxYear", payload.TaxYear, "is required")
	v.NonNegative("annualIncome", payload.AnnualIncome)
	frequency := parseFrequency(v, "frequency", payload.Frequency)
	if v.Reject(w, requestID) {
		return
	}

	start := time.Now()
	summary, err := h.Calculator.CalculateDeductions(payload.AnnualIncome, allowanceCodeOrDefault(payload.AllowanceCode), frequency, payload.TaxYear)
	h.recordCalculation(err, time.Since(start))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	api.Success(w, summary, requestID)
}

func (h *Handler) handleCalculate(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	var payload payslipPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", requestID)
		return
	}

	v := shared.NewValidator()
	req := payload.toRequest(v)
	if v.Reject(w, requestID) {
		return
	}

	result, err := h.calculate(req)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	api.Success(w, result, requestID)
}

type batchItemResult struct {
	Index  int                    `json:"index"`
	Result *payroll.PayslipResult `json:"result,omitempty"`
	Error  *api.Error             `json:"error,omitempty"`
}

// handleCalculateBatch evaluates each item independently; a failing item never fails its siblings.
func (h *Handler) handleCalculateBatch(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	var payload batchPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", requestID)
		return
	}
	if len(payload.Items) == 0 {
		shared.FailValidation(w, requestID, []shared.ValidationIssue{{Field: "items", Reason: "must contain at least one request"}})
		return
	}
	if len(payload.Items) > maxBatchItems {
		shared.FailValidation(w, requestID, []shared.ValidationIssue{{Field: "items", Reason: "must contain at most 500 requests"}})
		return
	}

	results := make([]batchItemResult, len(payload.Items))
	g, ctx := errgroup.WithContext(r.Context())
	g.SetLimit(h.Workers)
	for i, item := range payload.Items {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = h.calculateBatchItem(i, item)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		api.Fail(w, http.StatusServiceUnavailable, "batch_cancelled", "batch calculation cancelled", requestID)
		return
	}

	failed := 0
	for _, res := range results {
		if res.Error != nil {
			failed++
		}
	}
	api.Success(w, map[string]any{
		"items":     results,
		"total":     len(results),
		"succeeded": len(results) - failed,
		"failed":    failed,
	}, requestID)
}

func (h *Handler) calculateBatchItem(index int, item payslipPayload) batchItemResult {
	v := shared.NewValidator()
	req := item.toRequest(v)
	if v.HasIssues() {
		return batchItemResult{Index: index, Error: &api.Error{
			Code:    "validation_error",
			Message: "payload validation failed",
			Details: map[string]any{"fields": v.Issues()},
		}}
	}
	result, err := h.calculate(req)
	if err != nil {
		status, code := classifyError(err)
		message := err.Error()
		if status >= http.StatusInternalServerError {
			message = "calculation failed"
		}
		return batchItemResult{Index: index, Error: &api.Error{Code: code, Message: message}}
	}
	return batchItemResult{Index: index, Result: &result}
}

func (h *Handler) calculate(req payroll.PayslipRequest) (payroll.PayslipResult, error) {
	start := time.Now()
	result, err := h.Calculator.CalculatePayslip(req)
	h.recordCalculation(err, time.Since(start))
	return result, err
}

func (h *Handler) recordCalculation(err error, duration time.Duration) {
	if h.Metrics == nil {
		return
	}
	kind := ""
	if err != nil {
		_, kind = classifyError(err)
	}
	h.Metrics.RecordCalculation(kind, duration)
}
