package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/safar/storefront/internal/auth"
	"github.com/safar/storefront/internal/cart"
	"github.com/safar/storefront/internal/database"
	"github.com/safar/storefront/internal/logger"
	"github.com/safar/storefront/internal/models"
	"github.com/safar/storefront/internal/orders"
	"github.com/safar/storefront/internal/users"
)

const (
	codeBadRequest    = "bad_request"
	codeValidation    = "validation_error"
	codeUnauthorized  = "unauthorized"
	codeForbidden     = "forbidden"
	codeNotFound      = "not_found"
	codeConflict      = "conflict"
	codeUnprocessable = "unprocessable"
	codeInternal      = "internal_error"
)

// apiError is an error that already knows its HTTP shape.
type apiError struct {
	status  int
	code    string
	message string
	details any
	cause   error
}

func (e *apiError) Error() string {
	if e.cause != nil {
		return e.message + ": " + e.cause.Error()
	}
	return e.message
}

func (e *apiError) Unwrap() error { return e.cause }

func badRequest(message string, cause error) *apiError {
	return &apiError{status: http.StatusBadRequest, code: codeBadRequest, message: message, cause: cause}
}

type errorBody struct {
	Error errorPayload `json:"error"`
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// classify maps domain errors onto status, code and public message.
func classify(err error) *apiError {
	var ae *apiError
	if errors.As(err, &ae) {
		return ae
	}

	switch {
	case errors.Is(err, models.ErrValidation),
		errors.Is(err, cart.ErrInvalidQuantity),
		errors.Is(err, cart.ErrQuantityTooLarge),
		errors.Is(err, auth.ErrWeakPassword),
		errors.Is(err, auth.ErrPasswordMismatch):
		return &apiError{status: http.StatusUnprocessableEntity, code: codeValidation, message: err.Error()}

	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrUnauthenticated):
		return &apiError{status: http.StatusUnauthorized, code: codeUnauthorized, message: err.Error()}

	case errors.Is(err, auth.ErrForbidden),
		errors.Is(err, users.ErrSelfDemotion):
		return &apiError{status: http.StatusForbidden, code: codeForbidden, message: err.Error()}

	case errors.Is(err, database.ErrUserNotFound),
		errors.Is(err, database.ErrProductNotFound),
		errors.Is(err, database.ErrOrderNotFound),
		errors.Is(err, database.ErrPickingNotFound),
		errors.Is(err, cart.ErrItemNotInCart):
		return &apiError{status: http.StatusNotFound, code: codeNotFound, message: err.Error()}

	case errors.Is(err, database.ErrEmailInUse),
		errors.Is(err, database.ErrOrderAlreadyClaimed),
		errors.Is(err, database.ErrInvalidTransition),
		errors.Is(err, database.ErrOptimisticLockFailed),
		errors.Is(err, database.ErrLockTimeout):
		return &apiError{status: http.StatusConflict, code: codeConflict, message: err.Error()}

	case errors.Is(err, database.ErrInsufficientStock),
		errors.Is(err, orders.ErrEmptyCart):
		return &apiError{status: http.StatusUnprocessableEntity, code: codeUnprocessable, message: err.Error()}
	}

	return &apiError{status: http.StatusInternalServerError, code: codeInternal, message: "internal server error", cause: err}
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(data)
}

// respondError writes the error body. Server errors are logged with the
// full chain; the client only sees a generic message.
func respondError(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, err error) {
	ae := classify(err)
	if ae.status >= http.StatusInternalServerError {
		logg.Error(ctx, "request.error", err)
	}
	respondJSON(w, ae.status, errorBody{Error: errorPayload{
		Code:    ae.code,
		Message: ae.message,
		Details: ae.details,
	}})
}
