// Package httpapi is the JSON transport for the back-office API: a chi
// router, request middleware and thin handlers that decode, call the
// service layer and encode.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	apperrors "backoffice-backend/pkg/errors"
)

// errorBody is the error contract every endpoint shares. Internal causes
// are logged server-side only, never serialized.
type errorBody struct {
	Code       string                 `json:"code"`
	Message    string                 `json:"message"`
	StatusCode int                    `json:"statusCode"`
	Category   string                 `json:"category"`
	Details    map[string]interface{} `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	var app *apperrors.AppError
	if !errors.As(err, &app) {
		app = &apperrors.AppError{
			Type:    apperrors.ErrorTypeInternal,
			Code:    "INTERNAL_ERROR",
			Message: "internal server error",
			Err:     err,
		}
	}

	status := app.StatusCode()
	body := errorBody{
		Code:       app.Code,
		Message:    app.Message,
		StatusCode: status,
		Category:   string(app.Category()),
		Details:    app.Details,
	}
	if status >= 500 {
		// Hide the cause from the client, keep it in the log.
		body.Message = "internal server error"
		logger.Error("request failed",
			zap.String("request_id", RequestIDFrom(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err))
	}
	writeJSON(w, status, body)
}

func decodeBody(r *http.Request, target interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(target); err != nil {
		return apperrors.NewValidation("malformed request body: " + err.Error())
	}
	return nil
}
