// Package client is the Go consumer library for the back-office API. It
// mirrors the UI's data layer: an HTTP client with a circuit breaker, an
// optimistic entity store, stale-response suppression for list fetches and
// the upload session state machine for POS imports.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	apperrors "backoffice-backend/pkg/errors"
)

// API is a thin JSON client. Every request carries the company scope and a
// correlation id; calls honor context cancellation, and a circuit breaker
// sheds load when the server is failing.
type API struct {
	baseURL string
	scope   string
	actor   string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

// APIOptions tunes the client.
type APIOptions struct {
	Scope   string
	Actor   string
	Timeout time.Duration
	Logger  *zap.Logger
}

// NewAPI creates the client for one company scope.
func NewAPI(baseURL string, opts APIOptions) *API {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "backoffice-api",
		MaxRequests: 5,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 5 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.8
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
		IsSuccessful: func(err error) bool {
			// Client errors are the caller's problem, not server health.
			var app *apperrors.AppError
			if errors.As(err, &app) {
				return app.Category() == apperrors.CategoryClient
			}
			return err == nil
		},
	})
	return &API{
		baseURL: baseURL,
		scope:   opts.Scope,
		actor:   opts.Actor,
		http:    &http.Client{Timeout: timeout},
		breaker: breaker,
		logger:  logger,
	}
}

// Get issues a GET and decodes the response into out.
func (a *API) Get(ctx context.Context, path string, out interface{}) error {
	return a.do(ctx, http.MethodGet, path, nil, out)
}

// Post issues a POST with a JSON body and decodes the response into out.
func (a *API) Post(ctx context.Context, path string, body, out interface{}) error {
	return a.do(ctx, http.MethodPost, path, body, out)
}

// Put issues a PUT with a JSON body and decodes the response into out.
func (a *API) Put(ctx context.Context, path string, body, out interface{}) error {
	return a.do(ctx, http.MethodPut, path, body, out)
}

// Delete issues a DELETE.
func (a *API) Delete(ctx context.Context, path string) error {
	return a.do(ctx, http.MethodDelete, path, nil, nil)
}

func (a *API) do(ctx context.Context, method, path string, body, out interface{}) error {
	_, err := a.breaker.Execute(func() (interface{}, error) {
		return nil, a.roundTrip(ctx, method, path, body, out)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return apperrors.NewInternal("service unavailable", err)
	}
	return err
}

func (a *API) roundTrip(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return apperrors.NewInternal("encode request", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, reader)
	if err != nil {
		return apperrors.NewInternal("build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Company-ID", a.scope)
	if a.actor != "" {
		req.Header.Set("X-Actor", a.actor)
	}
	if correlationID := CorrelationIDFrom(ctx); correlationID != "" {
		req.Header.Set("X-Request-ID", correlationID)
	}

	resp, err := a.http.Do(req)
	if err != nil {
		// Context cancellation is a caller decision, not a failure.
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return apperrors.NewInternal("request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeAPIError(resp)
	}
	if out != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return apperrors.NewInternal("decode response", err)
		}
	}
	return nil
}

// decodeAPIError rebuilds the server's error taxonomy from the wire shape.
func decodeAPIError(resp *http.Response) error {
	var wire struct {
		Code       string                 `json:"code"`
		Message    string                 `json:"message"`
		StatusCode int                    `json:"statusCode"`
		Category   string                 `json:"category"`
		Details    map[string]interface{} `json:"details"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return apperrors.NewInternal(fmt.Sprintf("unexpected status %d", resp.StatusCode), err)
	}
	return &apperrors.AppError{
		Type:    typeForStatus(resp.StatusCode, wire.Code),
		Code:    wire.Code,
		Message: wire.Message,
		Details: wire.Details,
	}
}

func typeForStatus(status int, code string) apperrors.ErrorType {
	switch {
	case code == "BULK_LIMIT_EXCEEDED":
		return apperrors.ErrorTypeBulkLimit
	case status == http.StatusBadRequest:
		return apperrors.ErrorTypeValidation
	case status == http.StatusForbidden:
		return apperrors.ErrorTypeForbidden
	case status == http.StatusNotFound:
		return apperrors.ErrorTypeNotFound
	case status == http.StatusConflict:
		return apperrors.ErrorTypeConflict
	default:
		return apperrors.ErrorTypeInternal
	}
}

type contextKey string

const correlationKey contextKey = "correlationID"

// WithCorrelationID stores a correlation id the client forwards as
// X-Request-ID.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey, id)
}

// CorrelationIDFrom returns the correlation id stored by WithCorrelationID.
func CorrelationIDFrom(ctx context.Context) string {
	if id, ok := ctx.Value(correlationKey).(string); ok {
		return id
	}
	return ""
}
