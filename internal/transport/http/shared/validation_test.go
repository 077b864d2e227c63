package shared

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
)

func TestValidatorCollectsSortedIssues(t *testing.T) {
	v := NewValidator()
	v.Required("taxYear", " ", "is required")
	v.Enum("frequency", "hourly", []string{"monthly", "weekly"}, "is not supported")
	v.NonNegative("annualBasicSalary", decimal.NewFromInt(-1))
	v.NonNegative("hourlyRate", decimal.RequireFromString("-0.01"))
	v.NonNegative("hours", decimal.Zero)

	issues := v.Issues()
	if len(issues) != 4 {
		t.Fatalf("expected 4 issues, got %d: %+v", len(issues), issues)
	}
	if issues[0].Field != "annualBasicSalary" || issues[3].Field != "taxYear" {
		t.Fatalf("expected sorted issues, got %+v", issues)
	}
}

func TestValidatorDates(t *testing.T) {
	v := NewValidator()
	if bad := v.OptionalDate("periodStart", "01/04/2024"); !bad.IsZero() || !v.HasIssues() {
		t.Fatal("expected invalid date issue")
	}
	v = NewValidator()
	start := v.OptionalDate("periodStart", "2024-04-01")
	end := v.OptionalDate("periodEnd", "2024-03-01")
	v.DateOrder("periodStart", start, "periodEnd", end)
	if !v.HasIssues() {
		t.Fatal("expected date order issue")
	}
	if blank := v.OptionalDate("periodEnd", ""); !blank.IsZero() {
		t.Fatal("expected zero date for blank input")
	}
}

func TestRejectWritesEnvelope(t *testing.T) {
	v := NewValidator()
	v.Add("frequency", "is required")
	rec := httptest.NewRecorder()
	if !v.Reject(rec, "req-1") {
		t.Fatal("expected reject")
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	var body struct {
		Success bool `json:"success"`
		Error   struct {
			Code    string `json:"code"`
			Details struct {
				Fields []ValidationIssue `json:"fields"`
			} `json:"details"`
		} `json:"error"`
		RequestID string `json:"requestId"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Success || body.Error.Code != "validation_error" || len(body.Error.Details.Fields) != 1 || body.RequestID != "req-1" {
		t.Fatalf("unexpected body %+v", body)
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:5555"
	if ip := ClientIP(req); ip != "192.0.2.1" {
		t.Fatalf("expected remote host, got %s", ip)
	}
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	if ip := ClientIP(req); ip != "203.0.113.9" {
		t.Fatalf("expected forwarded ip, got %s", ip)
	}
}
