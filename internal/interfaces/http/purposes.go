package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"backoffice-backend/internal/service"
)

// PurposesHandler serves the accounting-purposes resource.
type PurposesHandler struct {
	svc    *service.Purposes
	logger *zap.Logger
}

// NewPurposesHandler creates the handler.
func NewPurposesHandler(svc *service.Purposes, logger *zap.Logger) *PurposesHandler {
	return &PurposesHandler{svc: svc, logger: logger}
}

// Routes mounts the resource endpoints.
func (h *PurposesHandler) Routes(r chi.Router) {
	r.Get("/", scoped(h.logger, h.list))
	r.Post("/", scoped(h.logger, h.create))
	r.Get("/filter-options", scoped(h.logger, h.filterOptions))
	r.Get("/code/{code}", scoped(h.logger, h.getByCode))
	r.Get("/{id}", scoped(h.logger, h.get))
	r.Put("/{id}", scoped(h.logger, h.update))
	r.Delete("/{id}", scoped(h.logger, h.delete))
	r.Post("/{id}/restore", scoped(h.logger, h.restore))
	r.Post("/bulk-update", scoped(h.logger, h.bulkUpdate))
	r.Post("/bulk-delete", scoped(h.logger, h.bulkDelete))
}

func (h *PurposesHandler) list(w http.ResponseWriter, r *http.Request, scope string) error {
	page, err := h.svc.List(r.Context(), metaFrom(r), scope, parseListQuery(r))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, page)
	return nil
}

func (h *PurposesHandler) get(w http.ResponseWriter, r *http.Request, scope string) error {
	record, err := h.svc.Get(r.Context(), metaFrom(r), scope, chi.URLParam(r, "id"))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, record)
	return nil
}

func (h *PurposesHandler) getByCode(w http.ResponseWriter, r *http.Request, scope string) error {
	record, err := h.svc.GetByCode(r.Context(), metaFrom(r), scope, chi.URLParam(r, "code"))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, record)
	return nil
}

func (h *PurposesHandler) filterOptions(w http.ResponseWriter, r *http.Request, scope string) error {
	options, err := h.svc.FilterOptions(r.Context(), metaFrom(r), scope)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, options)
	return nil
}

func (h *PurposesHandler) create(w http.ResponseWriter, r *http.Request, scope string) error {
	var input service.CreatePurposeInput
	if err := decodeBody(r, &input); err != nil {
		return err
	}
	created, err := h.svc.Create(r.Context(), metaFrom(r), scope, input)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, created)
	return nil
}

func (h *PurposesHandler) update(w http.ResponseWriter, r *http.Request, scope string) error {
	var input service.UpdatePurposeInput
	if err := decodeBody(r, &input); err != nil {
		return err
	}
	updated, err := h.svc.Update(r.Context(), metaFrom(r), scope, chi.URLParam(r, "id"), input)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, updated)
	return nil
}

func (h *PurposesHandler) delete(w http.ResponseWriter, r *http.Request, scope string) error {
	if err := h.svc.Delete(r.Context(), metaFrom(r), scope, chi.URLParam(r, "id")); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (h *PurposesHandler) restore(w http.ResponseWriter, r *http.Request, scope string) error {
	restored, err := h.svc.Restore(r.Context(), metaFrom(r), scope, chi.URLParam(r, "id"))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, restored)
	return nil
}

func (h *PurposesHandler) bulkUpdate(w http.ResponseWriter, r *http.Request, scope string) error {
	var body struct {
		IDs      []string `json:"ids"`
		IsActive bool     `json:"is_active"`
	}
	if err := decodeBody(r, &body); err != nil {
		return err
	}
	n, err := h.svc.BulkSetActive(r.Context(), metaFrom(r), scope, body.IDs, body.IsActive)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, bulkResult{Affected: n})
	return nil
}

func (h *PurposesHandler) bulkDelete(w http.ResponseWriter, r *http.Request, scope string) error {
	var body idsBody
	if err := decodeBody(r, &body); err != nil {
		return err
	}
	n, err := h.svc.BulkDelete(r.Context(), metaFrom(r), scope, body.IDs)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, bulkResult{Affected: n})
	return nil
}
