/*-------------------------------------------------------------------------
 *
 * middleware.go
 *    HTTP middleware for the NeuronBoard API
 *
 * Copyright (c) 2024-2026, neurondb, Inc. <support@neurondb.ai>
 *
 * IDENTIFICATION
 *    NeuronBoard/internal/api/middleware.go
 *
 *-------------------------------------------------------------------------
 */

package api

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gorilla/mux"

	"github.com/neurondb/NeuronBoard/internal/metrics"
)

/* LoggingMiddleware logs requests and records HTTP metrics by route template */
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start)
		endpoint := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tpl, err := route.GetPathTemplate(); err == nil {
				endpoint = tpl
			}
		}
		metrics.RecordHTTPRequest(r.Method, endpoint, wrapped.statusCode, duration)

		fields := map[string]interface{}{
			"method":      r.Method,
			"endpoint":    endpoint,
			"status":      wrapped.statusCode,
			"duration_ms": duration.Milliseconds(),
		}
		if wrapped.statusCode >= http.StatusInternalServerError {
			metrics.WarnWithContext(r.Context(), "HTTP request failed", fields)
			return
		}
		metrics.DebugWithContext(r.Context(), "HTTP request", fields)
	})
}

/* RecoveryMiddleware turns a handler panic into a 500 */
func RecoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				metrics.ErrorWithContext(r.Context(), "HTTP handler panicked", fmt.Errorf("panic: %v", rec), map[string]interface{}{
					"path":  r.URL.Path,
					"stack": string(debug.Stack()),
				})
				respondError(w, r, fmt.Errorf("internal server error"))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

/* Hijack lets the websocket upgrade through the wrapper */
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	return h.Hijack()
}
