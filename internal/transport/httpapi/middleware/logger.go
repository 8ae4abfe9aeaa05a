package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/ledgerworks/ledgercore/pkg/logger"
)

// errCapture wraps chi's WrapResponseWriter to capture response body for error status codes.
type errCapture struct {
	chimiddleware.WrapResponseWriter
	buf        bytes.Buffer
	statusCode int
}

func (e *errCapture) WriteHeader(code int) {
	e.statusCode = code
	e.WrapResponseWriter.WriteHeader(code)
}

func (e *errCapture) Write(b []byte) (int, error) {
	if e.statusCode >= 400 {
		e.buf.Write(b)
	}
	return e.WrapResponseWriter.Write(b)
}

// errorBody is the subset of an error response the request log keeps
type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
	Field string `json:"field"`
}

// errorAttrs pulls the error, kind and field of a JSON error body into log attributes.
func errorAttrs(body []byte) []any {
	var obj errorBody
	if json.Unmarshal(body, &obj) != nil || obj.Error == "" {
		return nil
	}
	attrs := []any{"error", obj.Error}
	if obj.Kind != "" {
		attrs = append(attrs, "error_kind", obj.Kind)
	}
	if obj.Field != "" {
		attrs = append(attrs, "error_field", obj.Field)
	}
	return attrs
}

// Logger returns a request logging middleware
func Logger(log *logger.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			ec := &errCapture{WrapResponseWriter: ww}
			// the JWT middleware runs later and records the caller here
			caller := &callerSlot{}
			start := time.Now()

			// Propagate chi's request ID into our typed context key
			ctx := context.WithValue(r.Context(), callerSlotKey, caller)
			reqID := chimiddleware.GetReqID(ctx)
			if reqID != "" {
				ctx = context.WithValue(ctx, logger.RequestIDKey, reqID)
				w.Header().Set("X-Request-Id", reqID)
			}
			r = r.WithContext(ctx)

			defer func() {
				status := ww.Status()
				attrs := []any{
					"method", r.Method,
					"path", r.URL.Path,
					"remote_addr", r.RemoteAddr,
					"user_agent", r.UserAgent(),
					"status", status,
					"bytes", ww.BytesWritten(),
					"duration_ms", time.Since(start).Milliseconds(),
				}
				if reqID != "" {
					attrs = append(attrs, "request_id", reqID)
				}
				if caller.id != "" {
					attrs = append(attrs, "user_id", caller.id)
				}

				switch {
				case status >= 500:
					attrs = append(attrs, errorAttrs(ec.buf.Bytes())...)
					log.Error("HTTP request", attrs...)
				case status >= 400:
					attrs = append(attrs, errorAttrs(ec.buf.Bytes())...)
					log.Warn("HTTP request", attrs...)
				default:
					log.Info("HTTP request", attrs...)
				}
			}()

			next.ServeHTTP(ec, r)
		}
		return http.HandlerFunc(fn)
	}
}
