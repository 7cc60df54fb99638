package service

import (
	"context"

	"go.uber.org/zap"

	"backoffice-backend/internal/audit"
	"backoffice-backend/internal/domain"
	"backoffice-backend/internal/repository"
)

var purposeFilterSchema = FilterSchema{
	"search":       SearchRule("name"),
	"purpose_code": EqRule("purpose_code"),
	"is_active":    BoolRule("is_active"),
	"is_system":    BoolRule("is_system"),
}

var purposeSortable = map[string]bool{
	"purpose_code": true,
	"name":         true,
	"created_at":   true,
	"updated_at":   true,
}

// CreatePurposeInput is the request body for creating a purpose.
type CreatePurposeInput struct {
	PurposeCode string `json:"purpose_code" validate:"required,alphanum,min=2,max=20"`
	Name        string `json:"name" validate:"required,min=1,max=120"`
	Description string `json:"description" validate:"omitempty,max=500"`
	IsActive    *bool  `json:"is_active"`
}

// UpdatePurposeInput is the request body for updating a purpose. Nil fields
// are left untouched.
type UpdatePurposeInput struct {
	Name        *string `json:"name" validate:"omitempty,min=1,max=120"`
	Description *string `json:"description" validate:"omitempty,max=500"`
	IsActive    *bool   `json:"is_active"`
}

// Purposes is the accounting-purposes service.
type Purposes struct {
	repo    *repository.AccountingPurposes
	auditor *audit.Recorder
	logger  *zap.Logger
}

// NewPurposes creates the service.
func NewPurposes(repo *repository.AccountingPurposes, auditor *audit.Recorder, logger *zap.Logger) *Purposes {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Purposes{repo: repo, auditor: auditor, logger: logger}
}

// List returns one page of purposes matching the sanitized filter.
func (s *Purposes) List(ctx context.Context, meta Meta, scope string, q ListQuery) (*repository.Page[domain.AccountingPurpose], error) {
	filter := SanitizeFilter(q.Filters, purposeFilterSchema)
	return s.repo.FindMany(ctx, scope, q.Pagination(), q.Sort(purposeSortable, "purpose_code"), filter)
}

// Get returns one purpose by id.
func (s *Purposes) Get(ctx context.Context, meta Meta, scope, id string) (*domain.AccountingPurpose, error) {
	return s.repo.FindByID(ctx, scope, id)
}

// GetByCode returns one purpose by business code.
func (s *Purposes) GetByCode(ctx context.Context, meta Meta, scope, code string) (*domain.AccountingPurpose, error) {
	return s.repo.FindByCode(ctx, scope, code)
}

// FilterOptions returns the distinct values for the filterable columns.
func (s *Purposes) FilterOptions(ctx context.Context, meta Meta, scope string) (map[string][]string, error) {
	return s.repo.FilterOptions(ctx, scope)
}

// Create validates and stores a new purpose.
func (s *Purposes) Create(ctx context.Context, meta Meta, scope string, input CreatePurposeInput) (*domain.AccountingPurpose, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}
	active := true
	if input.IsActive != nil {
		active = *input.IsActive
	}
	created, err := s.repo.Create(ctx, scope, domain.AccountingPurpose{
		PurposeCode: input.PurposeCode,
		Name:        input.Name,
		Description: input.Description,
		IsActive:    active,
	})
	if err != nil {
		return nil, err
	}
	s.record(meta, scope, "create", created.ID, created.PurposeCode)
	return created, nil
}

// Update patches an existing purpose.
func (s *Purposes) Update(ctx context.Context, meta Meta, scope, id string, input UpdatePurposeInput) (*domain.AccountingPurpose, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}
	patch := map[string]interface{}{}
	if input.Name != nil {
		patch["name"] = *input.Name
	}
	if input.Description != nil {
		patch["description"] = *input.Description
	}
	if input.IsActive != nil {
		patch["is_active"] = *input.IsActive
	}
	updated, err := s.repo.Update(ctx, scope, id, patch)
	if err != nil {
		return nil, err
	}
	s.record(meta, scope, "update", id, updated.PurposeCode)
	return updated, nil
}

// Delete soft-deletes a purpose.
func (s *Purposes) Delete(ctx context.Context, meta Meta, scope, id string) error {
	if err := s.repo.Delete(ctx, scope, id); err != nil {
		return err
	}
	s.record(meta, scope, "delete", id, "")
	return nil
}

// Restore clears a purpose's soft-delete marker.
func (s *Purposes) Restore(ctx context.Context, meta Meta, scope, id string) (*domain.AccountingPurpose, error) {
	restored, err := s.repo.Restore(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	s.record(meta, scope, "restore", id, restored.PurposeCode)
	return restored, nil
}

// BulkSetActive flips is_active for a batch of purposes.
func (s *Purposes) BulkSetActive(ctx context.Context, meta Meta, scope string, ids []string, active bool) (int, error) {
	n, err := s.repo.BulkUpdate(ctx, scope, ids, map[string]interface{}{"is_active": active})
	if err != nil {
		return 0, err
	}
	s.record(meta, scope, "bulk_update", "", "")
	return n, nil
}

// BulkDelete soft-deletes a batch of purposes.
func (s *Purposes) BulkDelete(ctx context.Context, meta Meta, scope string, ids []string) (int, error) {
	n, err := s.repo.BulkDelete(ctx, scope, ids)
	if err != nil {
		return 0, err
	}
	s.record(meta, scope, "bulk_delete", "", "")
	return n, nil
}

func (s *Purposes) record(meta Meta, scope, action, recordID, detail string) {
	if s.auditor == nil {
		return
	}
	s.auditor.Record(domain.AuditLog{
		CompanyID:     scope,
		CorrelationID: meta.CorrelationID,
		Actor:         meta.Actor,
		Action:        action,
		Resource:      "accounting_purpose",
		RecordID:      recordID,
		Detail:        detail,
	})
}
