package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"backoffice-backend/internal/service"
)

// ImportsHandler serves the POS imports workflow.
type ImportsHandler struct {
	svc    *service.PosImports
	logger *zap.Logger
}

// NewImportsHandler creates the handler.
func NewImportsHandler(svc *service.PosImports, logger *zap.Logger) *ImportsHandler {
	return &ImportsHandler{svc: svc, logger: logger}
}

// Routes mounts the resource endpoints. Imports are immutable once created;
// the only mutations are the workflow transitions.
func (h *ImportsHandler) Routes(r chi.Router) {
	r.Get("/", scoped(h.logger, h.list))
	r.Post("/", scoped(h.logger, h.create))
	r.Get("/filter-options", scoped(h.logger, h.filterOptions))
	r.Get("/{id}", scoped(h.logger, h.get))
	r.Post("/{id}/analyze", scoped(h.logger, h.analyze))
	r.Post("/{id}/confirm", scoped(h.logger, h.confirm))
	r.Post("/{id}/fail", scoped(h.logger, h.fail))
}

func (h *ImportsHandler) list(w http.ResponseWriter, r *http.Request, scope string) error {
	page, err := h.svc.List(r.Context(), metaFrom(r), scope, parseListQuery(r))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, page)
	return nil
}

func (h *ImportsHandler) get(w http.ResponseWriter, r *http.Request, scope string) error {
	record, err := h.svc.Get(r.Context(), metaFrom(r), scope, chi.URLParam(r, "id"))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, record)
	return nil
}

func (h *ImportsHandler) filterOptions(w http.ResponseWriter, r *http.Request, scope string) error {
	options, err := h.svc.FilterOptions(r.Context(), metaFrom(r), scope)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, options)
	return nil
}

func (h *ImportsHandler) create(w http.ResponseWriter, r *http.Request, scope string) error {
	var input service.CreateImportInput
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

func (h *ImportsHandler) analyze(w http.ResponseWriter, r *http.Request, scope string) error {
	var input service.AnalyzeImportInput
	if err := decodeBody(r, &input); err != nil {
		return err
	}
	analyzed, err := h.svc.Analyze(r.Context(), metaFrom(r), scope, chi.URLParam(r, "id"), input)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, analyzed)
	return nil
}

func (h *ImportsHandler) confirm(w http.ResponseWriter, r *http.Request, scope string) error {
	var input service.ConfirmImportInput
	if err := decodeBody(r, &input); err != nil {
		return err
	}
	confirmed, err := h.svc.Confirm(r.Context(), metaFrom(r), scope, chi.URLParam(r, "id"), input)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, confirmed)
	return nil
}

func (h *ImportsHandler) fail(w http.ResponseWriter, r *http.Request, scope string) error {
	var body struct {
		Message string `json:"message"`
	}
	if err := decodeBody(r, &body); err != nil {
		return err
	}
	failed, err := h.svc.Fail(r.Context(), metaFrom(r), scope, chi.URLParam(r, "id"), body.Message)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, failed)
	return nil
}
