package service

import (
	"context"

	"go.uber.org/zap"

	"backoffice-backend/internal/audit"
	"backoffice-backend/internal/domain"
	"backoffice-backend/internal/repository"
	"backoffice-backend/pkg/errors"
)

var termFilterSchema = FilterSchema{
	"search":    SearchRule("name"),
	"code":      EqRule("code"),
	"is_active": BoolRule("is_active"),
}

var termSortable = map[string]bool{
	"code":       true,
	"name":       true,
	"days_net":   true,
	"created_at": true,
}

// CreateTermInput is the request body for creating a payment term.
type CreateTermInput struct {
	Code            string  `json:"code" validate:"required,alphanum,min=2,max=20"`
	Name            string  `json:"name" validate:"required,min=1,max=120"`
	DaysNet         int     `json:"days_net" validate:"gte=0,lte=365"`
	DiscountPercent float64 `json:"discount_percent" validate:"gte=0,lte=100"`
	DiscountDays    int     `json:"discount_days" validate:"gte=0,lte=365"`
	IsActive        *bool   `json:"is_active"`
}

// UpdateTermInput is the request body for updating a payment term.
type UpdateTermInput struct {
	Name            *string  `json:"name" validate:"omitempty,min=1,max=120"`
	DaysNet         *int     `json:"days_net" validate:"omitempty,gte=0,lte=365"`
	DiscountPercent *float64 `json:"discount_percent" validate:"omitempty,gte=0,lte=100"`
	DiscountDays    *int     `json:"discount_days" validate:"omitempty,gte=0,lte=365"`
	IsActive        *bool    `json:"is_active"`
}

// PaymentTerms is the payment-terms service.
type PaymentTerms struct {
	repo    *repository.PaymentTerms
	auditor *audit.Recorder
	logger  *zap.Logger
}

// NewPaymentTerms creates the service.
func NewPaymentTerms(repo *repository.PaymentTerms, auditor *audit.Recorder, logger *zap.Logger) *PaymentTerms {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaymentTerms{repo: repo, auditor: auditor, logger: logger}
}

// List returns one page of payment terms.
func (s *PaymentTerms) List(ctx context.Context, meta Meta, scope string, q ListQuery) (*repository.Page[domain.PaymentTerm], error) {
	filter := SanitizeFilter(q.Filters, termFilterSchema)
	return s.repo.FindMany(ctx, scope, q.Pagination(), q.Sort(termSortable, "code"), filter)
}

// Get returns one payment term by id.
func (s *PaymentTerms) Get(ctx context.Context, meta Meta, scope, id string) (*domain.PaymentTerm, error) {
	return s.repo.FindByID(ctx, scope, id)
}

// GetByCode returns one payment term by business code.
func (s *PaymentTerms) GetByCode(ctx context.Context, meta Meta, scope, code string) (*domain.PaymentTerm, error) {
	return s.repo.FindByCode(ctx, scope, code)
}

// FilterOptions returns the distinct values for the filterable columns.
func (s *PaymentTerms) FilterOptions(ctx context.Context, meta Meta, scope string) (map[string][]string, error) {
	return s.repo.FilterOptions(ctx, scope)
}

// Create validates and stores a new payment term. A discount window without
// a discount is almost always a data-entry mistake, so it is rejected here
// rather than stored.
func (s *PaymentTerms) Create(ctx context.Context, meta Meta, scope string, input CreateTermInput) (*domain.PaymentTerm, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}
	if input.DiscountPercent == 0 && input.DiscountDays > 0 {
		return nil, errors.NewValidation("discount_days requires a non-zero discount_percent")
	}
	active := true
	if input.IsActive != nil {
		active = *input.IsActive
	}
	created, err := s.repo.Create(ctx, scope, domain.PaymentTerm{
		Code:            input.Code,
		Name:            input.Name,
		DaysNet:         input.DaysNet,
		DiscountPercent: input.DiscountPercent,
		DiscountDays:    input.DiscountDays,
		IsActive:        active,
	})
	if err != nil {
		return nil, err
	}
	s.record(meta, scope, "create", created.ID, created.Code)
	return created, nil
}

// Update patches an existing payment term.
func (s *PaymentTerms) Update(ctx context.Context, meta Meta, scope, id string, input UpdateTermInput) (*domain.PaymentTerm, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}
	patch := map[string]interface{}{}
	if input.Name != nil {
		patch["name"] = *input.Name
	}
	if input.DaysNet != nil {
		patch["days_net"] = *input.DaysNet
	}
	if input.DiscountPercent != nil {
		patch["discount_percent"] = *input.DiscountPercent
	}
	if input.DiscountDays != nil {
		patch["discount_days"] = *input.DiscountDays
	}
	if input.IsActive != nil {
		patch["is_active"] = *input.IsActive
	}
	updated, err := s.repo.Update(ctx, scope, id, patch)
	if err != nil {
		return nil, err
	}
	s.record(meta, scope, "update", id, updated.Code)
	return updated, nil
}

// Delete soft-deletes a payment term.
func (s *PaymentTerms) Delete(ctx context.Context, meta Meta, scope, id string) error {
	if err := s.repo.Delete(ctx, scope, id); err != nil {
		return err
	}
	s.record(meta, scope, "delete", id, "")
	return nil
}

// Restore clears a payment term's soft-delete marker.
func (s *PaymentTerms) Restore(ctx context.Context, meta Meta, scope, id string) (*domain.PaymentTerm, error) {
	restored, err := s.repo.Restore(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	s.record(meta, scope, "restore", id, restored.Code)
	return restored, nil
}

// BulkSetActive flips is_active for a batch of terms.
func (s *PaymentTerms) BulkSetActive(ctx context.Context, meta Meta, scope string, ids []string, active bool) (int, error) {
	n, err := s.repo.BulkUpdate(ctx, scope, ids, map[string]interface{}{"is_active": active})
	if err != nil {
		return 0, err
	}
	s.record(meta, scope, "bulk_update", "", "")
	return n, nil
}

// BulkDelete soft-deletes a batch of terms.
func (s *PaymentTerms) BulkDelete(ctx context.Context, meta Meta, scope string, ids []string) (int, error) {
	n, err := s.repo.BulkDelete(ctx, scope, ids)
	if err != nil {
		return 0, err
	}
	s.record(meta, scope, "bulk_delete", "", "")
	return n, nil
}

func (s *PaymentTerms) record(meta Meta, scope, action, recordID, detail string) {
	if s.auditor == nil {
		return
	}
	s.auditor.Record(domain.AuditLog{
		CompanyID:     scope,
		CorrelationID: meta.CorrelationID,
		Actor:         meta.Actor,
		Action:        action,
		Resource:      "payment_term",
		RecordID:      recordID,
		Detail:        detail,
	})
}
