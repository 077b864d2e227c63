package middleware

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"payslip/internal/domain/auth"
)

func TestRequestIDGeneratedAndPropagated(t *testing.T) {
	var seen string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if seen == "" || rec.Header().Get("X-Request-ID") != seen {
		t.Fatalf("expected generated request id, got %q / %q", seen, rec.Header().Get("X-Request-ID"))
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "caller-123")
	handler.ServeHTTP(httptest.NewRecorder(), req)
	if seen != "caller-123" {
		t.Fatalf("expected caller request id, got %q", seen)
	}
}

func TestRecovererReturnsEnvelope(t *testing.T) {
	handler := Recoverer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "internal_error") {
		t.Fatalf("expected error envelope, got %s", rec.Body.String())
	}
}

type countingRecorder struct {
	mu       sync.Mutex
	statuses []int
}

func (c *countingRecorder) Record(status int, _ time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.statuses = append(c.statuses, status)
}

func TestLoggerRecordsStatus(t *testing.T) {
	recorder := &countingRecorder{}
	handler := Logger(recorder)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if len(recorder.statuses) != 1 || recorder.statuses[0] != http.StatusTeapot {
		t.Fatalf("unexpected recorded statuses %v", recorder.statuses)
	}
}

func TestBodyLimit(t *testing.T) {
	handler := BodyLimit(8)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := io.ReadAll(r.Body); err != nil {
			w.WriteHeader(http.StatusRequestEntityTooLarge)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("0123456789")))
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{}")))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected small body to pass, got %d", rec.Code)
	}
}

func TestSecureHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	SecureHeaders(true)(noContent()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Header().Get("Cache-Control") != "no-store" {
		t.Fatal("expected no-store cache control")
	}
	if rec.Header().Get("Strict-Transport-Security") == "" {
		t.Fatal("expected HSTS in production")
	}
}

type idempotencyEntry struct {
	hash     string
	pending  bool
	response StoredResponse
}

type memoryIdempotency struct {
	mu      sync.Mutex
	entries map[string]idempotencyEntry
}

func newMemoryIdempotency() *memoryIdempotency {
	return &memoryIdempotency{entries: map[string]idempotencyEntry{}}
}

func (m *memoryIdempotency) Claim(_ context.Context, tenantID, userID, endpoint, key, requestHash string) (StoredResponse, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := tenantID + userID + endpoint + key
	entry, ok := m.entries[id]
	if !ok {
		m.entries[id] = idempotencyEntry{hash: requestHash, pending: true}
		return StoredResponse{}, false, nil
	}
	if entry.hash != requestHash {
		return StoredResponse{}, false, ErrIdempotencyConflict
	}
	if entry.pending {
		return StoredResponse{}, false, ErrIdempotencyInProgress
	}
	return entry.response, true, nil
}

func (m *memoryIdempotency) Save(_ context.Context, tenantID, userID, endpoint, key, requestHash string, response StoredResponse) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := tenantID + userID + endpoint + key
	if entry, ok := m.entries[id]; !ok || entry.hash != requestHash {
		return ErrIdempotencyConflict
	}
	m.entries[id] = idempotencyEntry{hash: requestHash, response: response}
	return nil
}

func (m *memoryIdempotency) Release(_ context.Context, tenantID, userID, endpoint, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := tenantID + userID + endpoint + key
	if entry, ok := m.entries[id]; ok && entry.pending {
		delete(m.entries, id)
	}
	return nil
}

func TestIdempotentReplaysAndRejectsConflicts(t *testing.T) {
	calls := 0
	handler := Idempotent(newMemoryIdempotency())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		body, _ := io.ReadAll(r.Body)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write(body)
	}))
	userCtx := WithUser(context.Background(), auth.UserContext{TenantID: "t1", UserID: "u1"})

	send := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/payroll/payslips", bytes.NewBufferString(body)).WithContext(userCtx)
		req.Header.Set(IdempotencyHeader, "key-1")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	first := send(`{"employeeId":"e1"}`)
	if first.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", first.Code)
	}
	replay := send(`{"employeeId":"e1"}`)
	if replay.Code != http.StatusCreated || replay.Body.String() != `{"employeeId":"e1"}` {
		t.Fatalf("expected replayed response, got %d %s", replay.Code, replay.Body.String())
	}
	if replay.Header().Get("Idempotent-Replayed") != "true" {
		t.Fatal("expected replay header")
	}
	if calls != 1 {
		t.Fatalf("expected handler to run once, ran %d times", calls)
	}

	conflict := send(`{"employeeId":"e2"}`)
	if conflict.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", conflict.Code)
	}
}

func TestIdempotentPassesThroughWithoutKey(t *testing.T) {
	calls := 0
	handler := Idempotent(newMemoryIdempotency())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
	}))
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/payroll/payslips", strings.NewReader("{}"))
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}
	if calls != 2 {
		t.Fatalf("expected both requests to run, got %d", calls)
	}
}

func TestIdempotentRejectsConcurrentDuplicate(t *testing.T) {
	var calls atomic.Int32
	started := make(chan struct{})
	finish := make(chan struct{})
	handler := Idempotent(newMemoryIdempotency())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			close(started)
			<-finish
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"p1"}`))
	}))
	userCtx := WithUser(context.Background(), auth.UserContext{TenantID: "t1", UserID: "u1"})
	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/payroll/payslips", strings.NewReader(`{"employeeId":"e1"}`)).WithContext(userCtx)
		req.Header.Set(IdempotencyHeader, "key-race")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	firstDone := make(chan *httptest.ResponseRecorder, 1)
	go func() { firstDone <- send() }()
	<-started

	duplicate := send()
	if duplicate.Code != http.StatusConflict || !strings.Contains(duplicate.Body.String(), "idempotency_in_progress") {
		t.Fatalf("expected in-progress conflict, got %d %s", duplicate.Code, duplicate.Body.String())
	}

	close(finish)
	if first := <-firstDone; first.Code != http.StatusCreated {
		t.Fatalf("expected first request to succeed, got %d", first.Code)
	}
	replay := send()
	if replay.Code != http.StatusCreated || replay.Header().Get("Idempotent-Replayed") != "true" {
		t.Fatalf("expected replay after completion, got %d", replay.Code)
	}
	if n := calls.Load(); n != 1 {
		t.Fatalf("expected handler to run once, ran %d times", n)
	}
}

func TestIdempotentReleasesClaimOnFailure(t *testing.T) {
	calls := 0
	handler := Idempotent(newMemoryIdempotency())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))
	userCtx := WithUser(context.Background(), auth.UserContext{TenantID: "t1", UserID: "u1"})
	for i, want := range []int{http.StatusInternalServerError, http.StatusCreated, http.StatusCreated} {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/payroll/payslips", strings.NewReader("{}")).WithContext(userCtx)
		req.Header.Set(IdempotencyHeader, "key-retry")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != want {
			t.Fatalf("attempt %d: expected %d, got %d", i, want, rec.Code)
		}
	}
	if calls != 2 {
		t.Fatalf("expected the failed attempt to be retried once, ran %d times", calls)
	}
}
