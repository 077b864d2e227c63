package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"payslip/internal/transport/http/api"
)

const IdempotencyHeader = "Idempotency-Key"

var (
	ErrIdempotencyConflict   = errors.New("idempotency key conflicts with existing request")
	ErrIdempotencyInProgress = errors.New("idempotency key is held by a request still running")
)

// pendingClaimTTL bounds how long a claim left behind by a crashed request
// blocks its key.
const pendingClaimTTL = 5 * time.Minute

// StoredResponse is a replayable response for an idempotent request.
type StoredResponse struct {
	StatusCode int
	Body       []byte
}

// IdempotencyBackend reserves a key before the handler runs. Claim returns
// replay=true with the stored response when the key already completed,
// ErrIdempotencyInProgress while another request holds it, and
// ErrIdempotencyConflict when the key was used for a different payload.
type IdempotencyBackend interface {
	Claim(ctx context.Context, tenantID, userID, endpoint, key, requestHash string) (stored StoredResponse, replay bool, err error)
	Save(ctx context.Context, tenantID, userID, endpoint, key, requestHash string, response StoredResponse) error
	Release(ctx context.Context, tenantID, userID, endpoint, key string) error
}

type IdempotencyStore struct {
	db *pgxpool.Pool
}

func NewIdempotencyStore(db *pgxpool.Pool) *IdempotencyStore {
	return &IdempotencyStore{db: db}
}

func RequestHash(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// Claim inserts a pending row (status_code 0). A pending row older than
// pendingClaimTTL is taken over.
func (s *IdempotencyStore) Claim(ctx context.Context, tenantID, userID, endpoint, key, requestHash string) (StoredResponse, bool, error) {
	if s == nil || s.db == nil {
		return StoredResponse{}, false, nil
	}
	tag, err := s.db.Exec(ctx, `
    INSERT INTO idempotency_keys (tenant_id, user_id, idempotency_key, endpoint, request_hash, status_code, response_body)
    VALUES ($1, $2, $3, $4, $5, 0, ''::bytea)
    ON CONFLICT (tenant_id, user_id, idempotency_key, endpoint)
    DO UPDATE SET request_hash = EXCLUDED.request_hash, created_at = now()
    WHERE idempotency_keys.status_code = 0 AND idempotency_keys.created_at < now() - make_interval(secs => $6)
  `, tenantID, userID, key, endpoint, requestHash, pendingClaimTTL.Seconds())
	if err != nil {
		return StoredResponse{}, false, err
	}
	if tag.RowsAffected() == 1 {
		return StoredResponse{}, false, nil
	}

	var storedHash string
	var stored StoredResponse
	err = s.db.QueryRow(ctx, `
    SELECT request_hash, status_code, response_body
    FROM idempotency_keys
    WHERE tenant_id = $1 AND user_id = $2 AND idempotency_key = $3 AND endpoint = $4
  `, tenantID, userID, key, endpoint).Scan(&storedHash, &stored.StatusCode, &stored.Body)
	if errors.Is(err, pgx.ErrNoRows) {
		// Released between the insert and the read.
		return StoredResponse{}, false, ErrIdempotencyInProgress
	}
	if err != nil {
		return StoredResponse{}, false, err
	}
	if storedHash != requestHash {
		return StoredResponse{}, false, ErrIdempotencyConflict
	}
	if stored.StatusCode == 0 {
		return StoredResponse{}, false, ErrIdempotencyInProgress
	}
	return stored, true, nil
}

func (s *IdempotencyStore) Save(ctx context.Context, tenantID, userID, endpoint, key, requestHash string, response StoredResponse) error {
	if s == nil || s.db == nil {
		return nil
	}
	tag, err := s.db.Exec(ctx, `
    UPDATE idempotency_keys
    SET status_code = $6, response_body = $7
    WHERE tenant_id = $1 AND user_id = $2 AND idempotency_key = $3 AND endpoint = $4 AND request_hash = $5
  `, tenantID, userID, key, endpoint, requestHash, response.StatusCode, response.Body)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrIdempotencyConflict
	}
	return nil
}

// Release drops a pending claim so the key can be retried. Completed
// responses are left alone.
func (s *IdempotencyStore) Release(ctx context.Context, tenantID, userID, endpoint, key string) error {
	if s == nil || s.db == nil {
		return nil
	}
	_, err := s.db.Exec(ctx, `
    DELETE FROM idempotency_keys
    WHERE tenant_id = $1 AND user_id = $2 AND idempotency_key = $3 AND endpoint = $4 AND status_code = 0
  `, tenantID, userID, key, endpoint)
	return err
}

type captureWriter struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (c *captureWriter) WriteHeader(code int) {
	c.status = code
	c.ResponseWriter.WriteHeader(code)
}

func (c *captureWriter) Write(p []byte) (int, error) {
	c.body.Write(p)
	return c.ResponseWriter.Write(p)
}

// Idempotent replays the stored response when a request repeats an
// Idempotency-Key with the same body, and rejects a reused key with a different body.
// Requests without the header, or without an authenticated user, pass straight through.
func Idempotent(backend IdempotencyBackend) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := strings.TrimSpace(r.Header.Get(IdempotencyHeader))
			user, ok := GetUser(r.Context())
			if key == "" || !ok || backend == nil {
				next.ServeHTTP(w, r)
				return
			}
			requestID := GetRequestID(r.Context())

			payload, err := io.ReadAll(r.Body)
			if err != nil {
				api.Fail(w, http.StatusBadRequest, "invalid_body", "request body could not be read", requestID)
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(payload))
			hash := RequestHash(payload)
			endpoint := r.Method + " " + normalizedAPIPath(r.URL.Path)

			stored, replay, err := backend.Claim(r.Context(), user.TenantID, user.UserID, endpoint, key, hash)
			if errors.Is(err, ErrIdempotencyConflict) {
				api.Fail(w, http.StatusConflict, "idempotency_conflict", "idempotency key reused with a different payload", requestID)
				return
			}
			if errors.Is(err, ErrIdempotencyInProgress) {
				api.Fail(w, http.StatusConflict, "idempotency_in_progress", "a request with this idempotency key is still running", requestID)
				return
			}
			if err != nil {
				api.Fail(w, http.StatusInternalServerError, "idempotency_error", "idempotency check failed", requestID)
				return
			}
			if replay {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Idempotent-Replayed", "true")
				w.WriteHeader(stored.StatusCode)
				_, _ = w.Write(stored.Body)
				return
			}

			saved := false
			defer func() {
				if saved {
					return
				}
				if err := backend.Release(context.WithoutCancel(r.Context()), user.TenantID, user.UserID, endpoint, key); err != nil {
					slog.Warn("idempotency release failed", "endpoint", endpoint, "requestId", requestID, "err", err)
				}
			}()

			capture := &captureWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(capture, r)
			if capture.status < 200 || capture.status >= 300 {
				return
			}
			if err := backend.Save(context.WithoutCancel(r.Context()), user.TenantID, user.UserID, endpoint, key, hash, StoredResponse{
				StatusCode: capture.status,
				Body:       capture.body.Bytes(),
			}); err != nil {
				slog.Warn("idempotency save failed", "endpoint", endpoint, "requestId", requestID, "err", err)
				return
			}
			saved = true
		})
	}
}
