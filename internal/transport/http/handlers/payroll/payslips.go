package payrollhandler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"payslip/internal/domain/audit"
	"payslip/internal/domain/auth"
	"payslip/internal/domain/payroll"
	"payslip/internal/transport/http/api"
	"payslip/internal/transport/http/middleware"
	"payslip/internal/transport/http/shared"
)

type createdPayslip struct {
	ID             string                `json:"id"`
	DocumentStatus string                `json:"documentStatus"`
	Result         payroll.PayslipResult `json:"result"`
}

// canViewAll reports whether the caller may read other employees' payslips.
// Everyone else sees only payslips whose employee id is their own user id.
func canViewAll(user auth.UserContext) bool {
	return user.RoleName == auth.RoleHR || user.RoleName == auth.RolePayroll
}

func (h *Handler) handleCreatePayslip(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	requestID := middleware.GetRequestID(r.Context())

	var payload payslipPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", requestID)
		return
	}
	v := shared.NewValidator()
	v.Required("employeeId", payload.EmployeeID, "is required")
	req := payload.toRequest(v)
	if v.Reject(w, requestID) {
		return
	}

	result, err := h.calculate(req)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	id, err := h.Store.SavePayslip(r.Context(), user.TenantID, user.UserID, req, result)
	if err != nil {
		slog.Error("payslip save failed", "requestId", requestID, "err", err)
		api.Fail(w, http.StatusInternalServerError, "payslip_save_failed", "failed to store payslip", requestID)
		return
	}

	h.recordAudit(r, user, audit.ActionPayslipCalculated, id, payload, result)

	status := "queued"
	tenantID := user.TenantID
	if err := h.Jobs.Enqueue(payroll.JobRenderPayslip, tenantID, func(ctx context.Context) (any, error) {
		return h.renderDocument(ctx, tenantID, id)
	}); err != nil {
		status = "deferred"
	}
	if h.Metrics != nil {
		h.Metrics.RecordDocument(status == "queued")
	}

	api.Created(w, createdPayslip{ID: id, DocumentStatus: status, Result: result}, requestID)
}

// renderDocument generates and stores the PDF for a persisted payslip.
func (h *Handler) renderDocument(ctx context.Context, tenantID, payslipID string) (map[string]any, error) {
	stored, err := h.Store.GetPayslip(ctx, tenantID, payslipID)
	if err != nil {
		return nil, err
	}
	path, err := h.Documents.Generate(stored)
	if err != nil {
		return nil, fmt.Errorf("render payslip %s: %w", payslipID, err)
	}
	if err := h.Store.UpdateDocumentPath(ctx, tenantID, payslipID, path); err != nil {
		return nil, err
	}
	return map[string]any{"payslipId": payslipID, "path": path}, nil
}

func (h *Handler) handleListPayslips(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	requestID := middleware.GetRequestID(r.Context())

	employeeID := r.URL.Query().Get("employeeId")
	if !canViewAll(user) {
		employeeID = user.UserID
	}
	page := shared.ParsePagination(r, 50, 200)

	total, err := h.Store.CountPayslips(r.Context(), user.TenantID, employeeID)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "payslip_list_failed", "failed to list payslips", requestID)
		return
	}
	payslips, err := h.Store.ListPayslips(r.Context(), user.TenantID, employeeID, page.Limit, page.Offset)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "payslip_list_failed", "failed to list payslips", requestID)
		return
	}
	if payslips == nil {
		payslips = []payroll.StoredPayslip{}
	}
	api.SuccessList(w, payslips, api.ListMeta{Total: total, Limit: page.Limit, Offset: page.Offset}, requestID)
}

// loadPayslip fetches a payslip the caller is allowed to see, writing the failure response otherwise.
func (h *Handler) loadPayslip(w http.ResponseWriter, r *http.Request) (auth.UserContext, payroll.StoredPayslip, bool) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return auth.UserContext{}, payroll.StoredPayslip{}, false
	}
	stored, err := h.Store.GetPayslip(r.Context(), user.TenantID, chi.URLParam(r, "payslipID"))
	if err != nil {
		writeDomainError(w, r, err)
		return user, payroll.StoredPayslip{}, false
	}
	if !canViewAll(user) && stored.EmployeeID != user.UserID {
		api.Fail(w, http.StatusForbidden, "forbidden", "not allowed", middleware.GetRequestID(r.Context()))
		return user, payroll.StoredPayslip{}, false
	}
	return user, stored, true
}

func (h *Handler) handleGetPayslip(w http.ResponseWriter, r *http.Request) {
	_, stored, ok := h.loadPayslip(w, r)
	if !ok {
		return
	}
	api.Success(w, stored, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleDownloadPayslip(w http.ResponseWriter, r *http.Request) {
	user, stored, ok := h.loadPayslip(w, r)
	if !ok {
		return
	}
	requestID := middleware.GetRequestID(r.Context())

	path := stored.DocumentPath
	if path == "" {
		details, err := h.renderDocument(r.Context(), user.TenantID, stored.ID)
		if err != nil {
			slog.Warn("payslip on-demand render failed", "payslipId", stored.ID, "requestId", requestID, "err", err)
			api.Fail(w, http.StatusInternalServerError, "payslip_missing", "payslip not available", requestID)
			return
		}
		path, _ = details["path"].(string)
	}

	data, err := h.Documents.Open(path)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	h.recordAudit(r, user, audit.ActionPayslipDownloaded, stored.ID, nil, nil)

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "payslip-"+stored.ID+".pdf"))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h *Handler) handleRegeneratePayslip(w http.ResponseWriter, r *http.Request) {
	user, stored, ok := h.loadPayslip(w, r)
	if !ok {
		return
	}
	requestID := middleware.GetRequestID(r.Context())

	tenantID := user.TenantID
	details, err := h.Jobs.RunNow(r.Context(), payroll.JobRenderPayslip, tenantID, func(ctx context.Context) (any, error) {
		return h.renderDocument(ctx, tenantID, stored.ID)
	})
	if err != nil {
		slog.Error("payslip regenerate failed", "payslipId", stored.ID, "requestId", requestID, "err", err)
		api.Fail(w, http.StatusInternalServerError, "payslip_generate_failed", "failed to regenerate payslip", requestID)
		return
	}
	h.recordAudit(r, user, audit.ActionPayslipRendered, stored.ID, nil, details)
	api.Success(w, map[string]string{"status": "regenerated"}, requestID)
}

func (h *Handler) handlePayslipAudit(w http.ResponseWriter, r *http.Request) {
	user, stored, ok := h.loadPayslip(w, r)
	if !ok {
		return
	}
	requestID := middleware.GetRequestID(r.Context())
	page := shared.ParsePagination(r, 50, 200)

	events, err := h.Audit.List(r.Context(), user.TenantID, audit.Filter{EntityType: audit.EntityPayslip, EntityID: stored.ID}, page.Limit, page.Offset)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "audit_list_failed", "failed to list audit events", requestID)
		return
	}
	if events == nil {
		events = []audit.Event{}
	}
	api.Success(w, events, requestID)
}

func (h *Handler) recordAudit(r *http.Request, user auth.UserContext, action, payslipID string, inputs, outputs any) {
	if h.Audit == nil {
		return
	}
	if err := h.Audit.Record(r.Context(), audit.Entry{
		TenantID:   user.TenantID,
		ActorID:    user.UserID,
		Action:     action,
		EntityType: audit.EntityPayslip,
		EntityID:   payslipID,
		RequestID:  middleware.GetRequestID(r.Context()),
		IP:         shared.ClientIP(r),
		Inputs:     inputs,
		Outputs:    outputs,
	}); err != nil {
		slog.Warn("audit record failed", "action", action, "payslipId", payslipID, "err", err)
	}
}
