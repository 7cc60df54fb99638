package httpapi

import (
	"context"
	"net/http"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"backoffice-backend/internal/service"
	apperrors "backoffice-backend/pkg/errors"
	"backoffice-backend/pkg/observability"
)

type contextKey string

const requestIDKey contextKey = "requestID"

// ScopeHeader carries the company id that scopes every data operation.
const ScopeHeader = "X-Company-ID"

// RequestID extracts or generates the correlation id, stores it in the
// context and echoes it on the response.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.New().String()
		}
		ctx := context.WithValue(r.Context(), requestIDKey, id)
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestIDFrom returns the correlation id stored by RequestID, or "".
func RequestIDFrom(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// Logger records one structured line per request with latency and status.
func Logger(logger *zap.Logger, metrics *observability.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			elapsed := time.Since(start)
			route := chi.RouteContext(r.Context()).RoutePattern()
			if route == "" {
				route = r.URL.Path
			}
			metrics.ObserveHTTP(route, r.Method, strconv.Itoa(rec.status), elapsed)
			logger.Info("request",
				zap.String("request_id", RequestIDFrom(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", rec.status),
				zap.Duration("duration", elapsed))
		})
	}
}

// Recovery converts panics into 500 responses and logs the stack.
func Recovery(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered",
						zap.String("request_id", RequestIDFrom(r.Context())),
						zap.Any("panic", rec),
						zap.ByteString("stack", debug.Stack()))
					if w.Header().Get("Content-Type") == "" {
						writeJSON(w, http.StatusInternalServerError, errorBody{
							Code:       "INTERNAL_ERROR",
							Message:    "internal server error",
							StatusCode: http.StatusInternalServerError,
							Category:   string(apperrors.CategoryServer),
						})
					}
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// scopeFrom reads the company id header. Missing scope is a client error;
// no handler runs without one.
func scopeFrom(r *http.Request) (string, error) {
	scope := r.Header.Get(ScopeHeader)
	if scope == "" {
		return "", apperrors.NewValidation(ScopeHeader + " header is required")
	}
	return scope, nil
}

func metaFrom(r *http.Request) service.Meta {
	return service.Meta{
		CorrelationID: RequestIDFrom(r.Context()),
		Actor:         r.Header.Get("X-Actor"),
	}
}
