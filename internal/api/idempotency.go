package api

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/safar/storefront/internal/auth"
	"github.com/safar/storefront/internal/redisx"
)

const (
	idempotencyHeader      = "Idempotency-Key"
	defaultIdempotencyTTL  = 24 * time.Hour
	criticalIdempotencyTTL = 7 * 24 * time.Hour
	pendingIdempotencyTTL  = time.Minute
)

// IdempotencyStore is satisfied by *redisx.Client.
type IdempotencyStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	IdempotencyKey(scope, id string) string
}

type idempotencyRecord struct {
	Status      int    `json:"status"`
	Body        string `json:"body"`
	ContentType string `json:"content_type,omitempty"`
	RequestHash string `json:"request_hash"`
	Pending     bool   `json:"pending,omitempty"`
}

var (
	errIdempotencyInProgress = &apiError{
		status:  http.StatusConflict,
		code:    codeConflict,
		message: "a request with this idempotency key is still in progress",
	}
	errIdempotencyMismatch = &apiError{
		status:  http.StatusConflict,
		code:    codeConflict,
		message: "idempotency key reused with a different request body",
	}
)

// idempotent replays the stored response when a request is retried with the
// same Idempotency-Key. The header is optional; requests without it run
// normally. The key is reserved with a pending marker while the handler
// runs, so a concurrent retry gets 409 instead of a second execution. Only
// successful responses are stored; a failure releases the key.
func (s *Server) idempotent(ttl time.Duration, next sessionHandler) sessionHandler {
	return func(w http.ResponseWriter, r *http.Request, session auth.Session) {
		idemKey := strings.TrimSpace(r.Header.Get(idempotencyHeader))
		if idemKey == "" || s.idempotency == nil {
			next(w, r, session)
			return
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
		if err != nil {
			respondError(r.Context(), s.logg, w, badRequest("read request", err))
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))

		requestHash := hashBody(body)
		scope := strings.Join([]string{session.UserID.String(), r.Method, r.URL.Path}, "|")
		key := s.idempotency.IdempotencyKey(scope, idemKey)

		marker, err := json.Marshal(idempotencyRecord{RequestHash: requestHash, Pending: true})
		if err != nil {
			respondError(r.Context(), s.logg, w, err)
			return
		}
		reserved, err := s.idempotency.SetNX(r.Context(), key, string(marker), pendingIdempotencyTTL)
		if err != nil {
			respondError(r.Context(), s.logg, w, err)
			return
		}
		if !reserved {
			s.replayIdempotent(w, r, key, requestHash)
			return
		}

		rec := &responseCapture{ResponseWriter: w}
		next(rec, r, session)

		ctx := context.WithoutCancel(r.Context())
		if rec.status >= http.StatusBadRequest {
			if err := s.idempotency.Del(ctx, key); err != nil {
				s.logg.Error(ctx, "idempotency.release_failed", err)
			}
			return
		}
		payload, err := json.Marshal(idempotencyRecord{
			Status:      defaultStatus(rec.status),
			Body:        base64.StdEncoding.EncodeToString(rec.body.Bytes()),
			ContentType: rec.Header().Get("Content-Type"),
			RequestHash: requestHash,
		})
		if err != nil {
			s.logg.Error(ctx, "idempotency.encode_failed", err)
			return
		}
		if err := s.idempotency.Set(ctx, key, string(payload), ttl); err != nil {
			s.logg.Error(ctx, "idempotency.persist_failed", err)
		}
	}
}

// replayIdempotent answers a request whose key is already taken.
func (s *Server) replayIdempotent(w http.ResponseWriter, r *http.Request, key, requestHash string) {
	stored, err := s.idempotency.Get(r.Context(), key)
	if err != nil {
		if errors.Is(err, redisx.ErrNotFound) {
			// Released or expired since the reservation failed.
			respondError(r.Context(), s.logg, w, errIdempotencyInProgress)
			return
		}
		respondError(r.Context(), s.logg, w, err)
		return
	}

	var record idempotencyRecord
	if err := json.Unmarshal([]byte(stored), &record); err != nil {
		respondError(r.Context(), s.logg, w, err)
		return
	}
	switch {
	case record.RequestHash != requestHash:
		respondError(r.Context(), s.logg, w, errIdempotencyMismatch)
	case record.Pending:
		respondError(r.Context(), s.logg, w, errIdempotencyInProgress)
	default:
		writeStoredResponse(w, record)
	}
}

func writeStoredResponse(w http.ResponseWriter, record idempotencyRecord) {
	if record.ContentType != "" {
		w.Header().Set("Content-Type", record.ContentType)
	}
	w.Header().Set("Idempotent-Replay", "true")
	w.WriteHeader(record.Status)
	if decoded, err := base64.StdEncoding.DecodeString(record.Body); err == nil {
		_, _ = w.Write(decoded)
	}
}

func hashBody(payload []byte) string {
	sum := sha256.Sum256(payload)
	return base64.StdEncoding.EncodeToString(sum[:])
}

func defaultStatus(value int) int {
	if value == 0 {
		return http.StatusOK
	}
	return value
}

type responseCapture struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (r *responseCapture) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseCapture) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}
