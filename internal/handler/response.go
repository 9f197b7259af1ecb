package handler

// RESPONSE HELPERS:
// Every handler answers through writeJSON or writeError, so the headers, status
// and encoding are set the same way everywhere:
//
//	writeJSON(w, http.StatusOK, comments)
//	writeError(w, err)
//
// CONSISTENT ERROR FORMAT:
// Every error response has the same shape:
//
//	{"error": "validation_error", "message": "token, station_id and comment are required"}
//
// Internal errors add "detail" with the underlying store message:
//
//	{"error": "internal_error", "message": "failed to create comment", "detail": "database is locked"}
//
// A client can always read "error" for the category and "message" for display,
// whatever the status code.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/station-comments/internal/apperror"
)

// ErrorResponse is the standard error format returned by all API endpoints.
type ErrorResponse struct {
	Error   string `json:"error"`            // Machine-readable error type (e.g., "not_found")
	Message string `json:"message"`          // Human-readable description
	Detail  string `json:"detail,omitempty"` // Underlying cause, internal errors only
}

// MessageResponse confirms a write.
type MessageResponse struct {
	Message string `json:"message"`      // e.g. "comment created"
	ID      string `json:"id,omitempty"` // Set on create only
}

// writeJSON sends a JSON response with the given status code.
//
// HEADER ORDER MATTERS:
// Headers are sent with the status line, so they must be set first:
//  1. w.Header().Set(...)     ← set headers
//  2. w.WriteHeader(status)   ← send status + headers
//  3. json.Encode(data)       ← send body
//
// A header set after step 2 is silently dropped.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent; all we can do is log.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError maps a domain error to its HTTP status and sends it.
//
// ERROR MAPPING:
//
//	apperror.ErrValidation   → 400 validation_error
//	apperror.ErrUnauthorized → 401 unauthorized
//	apperror.ErrForbidden    → 403 forbidden
//	apperror.ErrNotFound     → 404 not_found
//	anything else            → 500 internal_error (+ detail)
//
// The service layer only returns apperror values and never sees a status code.
//
// errors.As AND errors.Is:
// errors.As walks the chain and fills appErr with the first *AppError it finds,
// which carries Message and Detail. errors.Is then checks the category.
// AppError.Unwrap returns both the sentinel and the cause, so this works:
//
//	service returns: apperror.Internal("failed to create comment", storeErr)
//	which wraps:     AppError{Err: ErrInternal, cause: storeErr}
//	errors.Is walks: AppError → ErrInternal ✓
func writeError(w http.ResponseWriter, err error) {
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		// Not one of ours. Keep the raw error out of the response.
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "An internal error occurred",
		})
		return
	}

	status := http.StatusInternalServerError
	errorType := "internal_error"

	switch {
	case errors.Is(err, apperror.ErrValidation):
		status = http.StatusBadRequest // 400
		errorType = "validation_error"
	case errors.Is(err, apperror.ErrUnauthorized):
		status = http.StatusUnauthorized // 401
		errorType = "unauthorized"
	case errors.Is(err, apperror.ErrForbidden):
		status = http.StatusForbidden // 403
		errorType = "forbidden"
	case errors.Is(err, apperror.ErrNotFound):
		status = http.StatusNotFound // 404
		errorType = "not_found"
	}

	resp := ErrorResponse{
		Error:   errorType,
		Message: appErr.Message,
	}
	if status == http.StatusInternalServerError {
		resp.Detail = appErr.Detail
	}
	writeJSON(w, status, resp)
}
