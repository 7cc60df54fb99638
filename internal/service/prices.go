package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"backoffice-backend/internal/audit"
	"backoffice-backend/internal/domain"
	"backoffice-backend/internal/repository"
	"backoffice-backend/pkg/errors"
)

var priceFilterSchema = FilterSchema{
	"supplier_id":  EqRule("supplier_id"),
	"product_code": EqRule("product_code"),
	"currency":     EnumRule("currency", "EUR", "USD", "GBP", "CHF", "SEK", "NOK", "DKK"),
	"search":       SearchRule("product_code"),
}

var priceSortable = map[string]bool{
	"product_code": true,
	"price":        true,
	"valid_from":   true,
	"created_at":   true,
}

// CreatePriceInput is the request body for creating a supplier price.
type CreatePriceInput struct {
	SupplierID  string     `json:"supplier_id" validate:"required"`
	ProductCode string     `json:"product_code" validate:"required,min=1,max=60"`
	Price       float64    `json:"price" validate:"gt=0"`
	Currency    string     `json:"currency" validate:"required,len=3,uppercase"`
	ValidFrom   *time.Time `json:"valid_from"`
	ValidTo     *time.Time `json:"valid_to"`
}

// UpdatePriceInput is the request body for updating a supplier price.
type UpdatePriceInput struct {
	Price     *float64   `json:"price" validate:"omitempty,gt=0"`
	Currency  *string    `json:"currency" validate:"omitempty,len=3,uppercase"`
	ValidFrom *time.Time `json:"valid_from"`
	ValidTo   *time.Time `json:"valid_to"`
}

// SupplierPrices is the supplier-product pricing service.
type SupplierPrices struct {
	repo    *repository.SupplierPrices
	auditor *audit.Recorder
	logger  *zap.Logger
}

// NewSupplierPrices creates the service.
func NewSupplierPrices(repo *repository.SupplierPrices, auditor *audit.Recorder, logger *zap.Logger) *SupplierPrices {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SupplierPrices{repo: repo, auditor: auditor, logger: logger}
}

// List returns one page of supplier prices.
func (s *SupplierPrices) List(ctx context.Context, meta Meta, scope string, q ListQuery) (*repository.Page[domain.SupplierPrice], error) {
	filter := SanitizeFilter(q.Filters, priceFilterSchema)
	return s.repo.FindMany(ctx, scope, q.Pagination(), q.Sort(priceSortable, "product_code"), filter)
}

// Get returns one supplier price by id.
func (s *SupplierPrices) Get(ctx context.Context, meta Meta, scope, id string) (*domain.SupplierPrice, error) {
	return s.repo.FindByID(ctx, scope, id)
}

// FilterOptions returns the distinct values for the filterable columns.
func (s *SupplierPrices) FilterOptions(ctx context.Context, meta Meta, scope string) (map[string][]string, error) {
	return s.repo.FilterOptions(ctx, scope)
}

// Create validates and stores a new supplier price.
func (s *SupplierPrices) Create(ctx context.Context, meta Meta, scope string, input CreatePriceInput) (*domain.SupplierPrice, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}
	if input.ValidFrom != nil && input.ValidTo != nil && input.ValidTo.Before(*input.ValidFrom) {
		return nil, errors.NewValidation("valid_to cannot be before valid_from")
	}
	created, err := s.repo.Create(ctx, scope, domain.SupplierPrice{
		SupplierID:  input.SupplierID,
		ProductCode: input.ProductCode,
		Price:       input.Price,
		Currency:    input.Currency,
		ValidFrom:   input.ValidFrom,
		ValidTo:     input.ValidTo,
	})
	if err != nil {
		return nil, err
	}
	s.record(meta, scope, "create", created.ID, created.ProductCode)
	return created, nil
}

// Update patches an existing supplier price.
func (s *SupplierPrices) Update(ctx context.Context, meta Meta, scope, id string, input UpdatePriceInput) (*domain.SupplierPrice, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}
	patch := map[string]interface{}{}
	if input.Price != nil {
		patch["price"] = *input.Price
	}
	if input.Currency != nil {
		patch["currency"] = *input.Currency
	}
	if input.ValidFrom != nil {
		patch["valid_from"] = *input.ValidFrom
	}
	if input.ValidTo != nil {
		patch["valid_to"] = *input.ValidTo
	}
	updated, err := s.repo.Update(ctx, scope, id, patch)
	if err != nil {
		return nil, err
	}
	s.record(meta, scope, "update", id, updated.ProductCode)
	return updated, nil
}

// Delete soft-deletes a supplier price.
func (s *SupplierPrices) Delete(ctx context.Context, meta Meta, scope, id string) error {
	if err := s.repo.Delete(ctx, scope, id); err != nil {
		return err
	}
	s.record(meta, scope, "delete", id, "")
	return nil
}

// Restore clears a supplier price's soft-delete marker.
func (s *SupplierPrices) Restore(ctx context.Context, meta Meta, scope, id string) (*domain.SupplierPrice, error) {
	restored, err := s.repo.Restore(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	s.record(meta, scope, "restore", id, restored.ProductCode)
	return restored, nil
}

// BulkEnd closes the validity window of a batch of prices, typically when
// a supplier publishes a replacing price list.
func (s *SupplierPrices) BulkEnd(ctx context.Context, meta Meta, scope string, ids []string, validTo time.Time) (int, error) {
	n, err := s.repo.BulkUpdate(ctx, scope, ids, map[string]interface{}{
		"valid_to": validTo,
	})
	if err != nil {
		return 0, err
	}
	s.record(meta, scope, "bulk_end", "", "")
	return n, nil
}

// BulkDelete soft-deletes a batch of supplier prices.
func (s *SupplierPrices) BulkDelete(ctx context.Context, meta Meta, scope string, ids []string) (int, error) {
	n, err := s.repo.BulkDelete(ctx, scope, ids)
	if err != nil {
		return 0, err
	}
	s.record(meta, scope, "bulk_delete", "", "")
	return n, nil
}

func (s *SupplierPrices) record(meta Meta, scope, action, recordID, detail string) {
	if s.auditor == nil {
		return
	}
	s.auditor.Record(domain.AuditLog{
		CompanyID:     scope,
		CorrelationID: meta.CorrelationID,
		Actor:         meta.Actor,
		Action:        action,
		Resource:      "supplier_price",
		RecordID:      recordID,
		Detail:        detail,
	})
}
