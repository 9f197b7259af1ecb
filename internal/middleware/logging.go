// Package middleware contains HTTP middleware shared by all routes.
//
// WHAT IS MIDDLEWARE?
// Middleware is a function that wraps an HTTP handler to add behaviour that
// every route needs (logging, request ids, CORS) without touching the handler.
//
// The shape is always the same:
//
//	func MyMiddleware(next http.Handler) http.Handler {
//	    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
//	        // before the handler
//	        next.ServeHTTP(w, r)
//	        // after the handler
//	    })
//	}
//
// chi runs them in the order they are registered with router.Use, so the
// first one added is the outermost wrapper.
package middleware

import (
	"log/slog"
	"net/http"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// responseWriter wraps http.ResponseWriter to record the status code and body
// size. http.ResponseWriter has no getter for the status once WriteHeader has
// been called, so the wrapper keeps its own copy.
type responseWriter struct {
	http.ResponseWriter       // Embedded: every method we don't define passes straight through
	statusCode          int   // Last status passed to WriteHeader
	written             int64 // Body bytes written so far
}

// WriteHeader records the status code and delegates to the embedded writer.
// Defining it here shadows the embedded ResponseWriter's WriteHeader.
func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Write counts the bytes and delegates to the embedded writer.
func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.written += int64(n)
	return n, err
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Logger returns a middleware that writes one structured slog line per request
// with the method, path, status, duration, bytes written and request id.
//
// LOG LEVELS:
//   - 5xx → error (store failures, panics caught by Recoverer)
//   - 4xx → warn  (bad input, missing or rejected tokens)
//   - everything else → info
//
// Place it after chimiddleware.RequestID so the request id is available.
func Logger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Wrap the writer so the status and size are visible after the handler returns
			wrapped := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK, // Default if WriteHeader is never called
			}

			next.ServeHTTP(wrapped, r)

			level := slog.LevelInfo
			switch {
			case wrapped.statusCode >= 500:
				level = slog.LevelError
			case wrapped.statusCode >= 400:
				level = slog.LevelWarn
			}

			logger.LogAttrs(r.Context(), level, "request completed",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", wrapped.statusCode),
				slog.Duration("duration", time.Since(start)),
				slog.Int64("bytes", wrapped.written),
				slog.String("request_id", chimiddleware.GetReqID(r.Context())),
			)
		})
	}
}
