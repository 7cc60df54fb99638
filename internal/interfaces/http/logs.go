package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"backoffice-backend/internal/service"
)

// LogsHandler serves the read-only system log resource. The retention
// window used by the purge endpoint comes from configuration.
type LogsHandler struct {
	svc       *service.SystemLogs
	retention time.Duration
	logger    *zap.Logger
}

// NewLogsHandler creates the handler.
func NewLogsHandler(svc *service.SystemLogs, retention time.Duration, logger *zap.Logger) *LogsHandler {
	return &LogsHandler{svc: svc, retention: retention, logger: logger}
}

// Routes mounts the resource endpoints.
func (h *LogsHandler) Routes(r chi.Router) {
	r.Get("/", scoped(h.logger, h.list))
	r.Get("/filter-options", scoped(h.logger, h.filterOptions))
	r.Get("/{id}", scoped(h.logger, h.get))
	r.Post("/purge", scoped(h.logger, h.purge))
}

func (h *LogsHandler) list(w http.ResponseWriter, r *http.Request, scope string) error {
	page, err := h.svc.List(r.Context(), metaFrom(r), scope, parseListQuery(r))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, page)
	return nil
}

func (h *LogsHandler) get(w http.ResponseWriter, r *http.Request, scope string) error {
	record, err := h.svc.Get(r.Context(), metaFrom(r), scope, chi.URLParam(r, "id"))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, record)
	return nil
}

func (h *LogsHandler) filterOptions(w http.ResponseWriter, r *http.Request, scope string) error {
	options, err := h.svc.FilterOptions(r.Context(), metaFrom(r), scope)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, options)
	return nil
}

func (h *LogsHandler) purge(w http.ResponseWriter, r *http.Request, scope string) error {
	purged, err := h.svc.Purge(r.Context(), metaFrom(r), scope, h.retention)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, countResult{Purged: purged})
	return nil
}
