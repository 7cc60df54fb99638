package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"backoffice-backend/internal/service"
	apperrors "backoffice-backend/pkg/errors"
)

// BranchesHandler serves the employee-branch-assignments resource.
type BranchesHandler struct {
	svc    *service.EmployeeBranches
	logger *zap.Logger
}

// NewBranchesHandler creates the handler.
func NewBranchesHandler(svc *service.EmployeeBranches, logger *zap.Logger) *BranchesHandler {
	return &BranchesHandler{svc: svc, logger: logger}
}

// Routes mounts the resource endpoints. Assignments have no business code,
// so there is no /code route.
func (h *BranchesHandler) Routes(r chi.Router) {
	r.Get("/", scoped(h.logger, h.list))
	r.Post("/", scoped(h.logger, h.create))
	r.Get("/filter-options", scoped(h.logger, h.filterOptions))
	r.Get("/{id}", scoped(h.logger, h.get))
	r.Put("/{id}", scoped(h.logger, h.update))
	r.Delete("/{id}", scoped(h.logger, h.delete))
	r.Post("/{id}/restore", scoped(h.logger, h.restore))
	r.Post("/bulk-update", scoped(h.logger, h.bulkEnd))
	r.Post("/bulk-delete", scoped(h.logger, h.bulkDelete))
}

func (h *BranchesHandler) list(w http.ResponseWriter, r *http.Request, scope string) error {
	page, err := h.svc.List(r.Context(), metaFrom(r), scope, parseListQuery(r))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, page)
	return nil
}

func (h *BranchesHandler) get(w http.ResponseWriter, r *http.Request, scope string) error {
	record, err := h.svc.Get(r.Context(), metaFrom(r), scope, chi.URLParam(r, "id"))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, record)
	return nil
}

func (h *BranchesHandler) filterOptions(w http.ResponseWriter, r *http.Request, scope string) error {
	options, err := h.svc.FilterOptions(r.Context(), metaFrom(r), scope)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, options)
	return nil
}

func (h *BranchesHandler) create(w http.ResponseWriter, r *http.Request, scope string) error {
	var input service.CreateAssignmentInput
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

func (h *BranchesHandler) update(w http.ResponseWriter, r *http.Request, scope string) error {
	var input service.UpdateAssignmentInput
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

func (h *BranchesHandler) delete(w http.ResponseWriter, r *http.Request, scope string) error {
	if err := h.svc.Delete(r.Context(), metaFrom(r), scope, chi.URLParam(r, "id")); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (h *BranchesHandler) restore(w http.ResponseWriter, r *http.Request, scope string) error {
	restored, err := h.svc.Restore(r.Context(), metaFrom(r), scope, chi.URLParam(r, "id"))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, restored)
	return nil
}

func (h *BranchesHandler) bulkEnd(w http.ResponseWriter, r *http.Request, scope string) error {
	var body struct {
		IDs     []string   `json:"ids"`
		ValidTo *time.Time `json:"valid_to"`
	}
	if err := decodeBody(r, &body); err != nil {
		return err
	}
	if body.ValidTo == nil {
		return apperrors.NewValidation("valid_to is required")
	}
	n, err := h.svc.BulkEnd(r.Context(), metaFrom(r), scope, body.IDs, *body.ValidTo)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, bulkResult{Affected: n})
	return nil
}

func (h *BranchesHandler) bulkDelete(w http.ResponseWriter, r *http.Request, scope string) error {
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
