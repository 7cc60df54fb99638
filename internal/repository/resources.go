package repository

import (
	"context"
	"time"

	"go.uber.org/zap"

	"backoffice-backend/internal/cache"
	"backoffice-backend/internal/domain"
	"backoffice-backend/pkg/errors"
	"backoffice-backend/pkg/observability"
)

// TTLConfig carries the per-family cache lifetimes and sweep tuning shared
// by all resources.
type TTLConfig struct {
	List            time.Duration
	Detail          time.Duration
	FilterOptions   time.Duration
	CleanupInterval time.Duration
	MaxEntries      int
}

func (c TTLConfig) cacheOptions(logger *zap.Logger) cache.Options {
	return cache.Options{
		DefaultTTL:      c.List,
		CleanupInterval: c.CleanupInterval,
		MaxEntries:      c.MaxEntries,
		Logger:          logger,
	}
}

// AccountingPurposes is the repository for accounting purpose reference
// data. System purposes are read-only and shielded at the data layer.
type AccountingPurposes struct {
	*Cached[domain.AccountingPurpose]
}

// NewAccountingPurposes builds the purposes repository with its own cache.
func NewAccountingPurposes(client DataClient, ttl TTLConfig, maxBatch int, logger *zap.Logger, metrics *observability.Metrics) *AccountingPurposes {
	settings := Settings[domain.AccountingPurpose]{
		Table:         "accounting_purposes",
		Resource:      "accounting_purpose",
		CodeColumn:    "purpose_code",
		SoftDelete:    true,
		FilterColumns: []string{"purpose_code", "is_active"},
		Protected:     func(p domain.AccountingPurpose) bool { return p.IsSystem },
		Code:          func(p domain.AccountingPurpose) string { return p.PurposeCode },
		MaxBatch:      maxBatch,
		ListTTL:       ttl.List,
		DetailTTL:     ttl.Detail,
		OptionsTTL:    ttl.FilterOptions,
	}
	return &AccountingPurposes{NewCached(client, settings, ttl.cacheOptions(logger), logger, metrics)}
}

// PaymentTerms is the repository for payment term reference data.
type PaymentTerms struct {
	*Cached[domain.PaymentTerm]
}

// NewPaymentTerms builds the payment terms repository.
func NewPaymentTerms(client DataClient, ttl TTLConfig, maxBatch int, logger *zap.Logger, metrics *observability.Metrics) *PaymentTerms {
	settings := Settings[domain.PaymentTerm]{
		Table:         "payment_terms",
		Resource:      "payment_term",
		CodeColumn:    "code",
		SoftDelete:    true,
		FilterColumns: []string{"code", "is_active"},
		Code:          func(t domain.PaymentTerm) string { return t.Code },
		MaxBatch:      maxBatch,
		ListTTL:       ttl.List,
		DetailTTL:     ttl.Detail,
		OptionsTTL:    ttl.FilterOptions,
	}
	return &PaymentTerms{NewCached(client, settings, ttl.cacheOptions(logger), logger, metrics)}
}

// EmployeeBranches is the repository for employee-branch assignments.
type EmployeeBranches struct {
	*Cached[domain.EmployeeBranchAssignment]
}

// NewEmployeeBranches builds the assignments repository.
func NewEmployeeBranches(client DataClient, ttl TTLConfig, maxBatch int, logger *zap.Logger, metrics *observability.Metrics) *EmployeeBranches {
	settings := Settings[domain.EmployeeBranchAssignment]{
		Table:         "employee_branch_assignments",
		Resource:      "employee_branch_assignment",
		SoftDelete:    true,
		FilterColumns: []string{"branch_id", "is_primary"},
		MaxBatch:      maxBatch,
		ListTTL:       ttl.List,
		DetailTTL:     ttl.Detail,
		OptionsTTL:    ttl.FilterOptions,
	}
	return &EmployeeBranches{NewCached(client, settings, ttl.cacheOptions(logger), logger, metrics)}
}

// FindPrimary returns the current primary assignment for an employee, or a
// not-found error when none exists.
func (r *EmployeeBranches) FindPrimary(ctx context.Context, scope, employeeID string) (*domain.EmployeeBranchAssignment, error) {
	if employeeID == "" {
		return nil, errors.NewValidation("employee id is required")
	}
	page, err := r.FindMany(ctx, scope, Pagination{Limit: 1}, nil,
		Filter{}.Eq("employee_id", employeeID).Eq("is_primary", true))
	if err != nil {
		return nil, err
	}
	if len(page.Items) == 0 {
		return nil, errors.NewNotFound("primary assignment", employeeID)
	}
	return &page.Items[0], nil
}

// SupplierPrices is the repository for supplier-product pricing.
type SupplierPrices struct {
	*Cached[domain.SupplierPrice]
}

// NewSupplierPrices builds the supplier prices repository.
func NewSupplierPrices(client DataClient, ttl TTLConfig, maxBatch int, logger *zap.Logger, metrics *observability.Metrics) *SupplierPrices {
	settings := Settings[domain.SupplierPrice]{
		Table:         "supplier_prices",
		Resource:      "supplier_price",
		SoftDelete:    true,
		FilterColumns: []string{"supplier_id", "currency"},
		Code:          func(p domain.SupplierPrice) string { return p.ProductCode },
		MaxBatch:      maxBatch,
		ListTTL:       ttl.List,
		DetailTTL:     ttl.Detail,
		OptionsTTL:    ttl.FilterOptions,
	}
	return &SupplierPrices{NewCached(client, settings, ttl.cacheOptions(logger), logger, metrics)}
}

// PosImports is the repository for POS import sessions. Imports are never
// soft-deleted; status transitions go through UpdateStatus so a confirm can
// be made conditional on the current status.
type PosImports struct {
	*Cached[domain.PosImport]
}

// NewPosImports builds the POS imports repository.
func NewPosImports(client DataClient, ttl TTLConfig, maxBatch int, logger *zap.Logger, metrics *observability.Metrics) *PosImports {
	settings := Settings[domain.PosImport]{
		Table:         "pos_imports",
		Resource:      "pos_import",
		FilterColumns: []string{"status"},
		MaxBatch:      maxBatch,
		ListTTL:       ttl.List,
		DetailTTL:     ttl.Detail,
		OptionsTTL:    ttl.FilterOptions,
	}
	return &PosImports{NewCached(client, settings, ttl.cacheOptions(logger), logger, metrics)}
}

// Transition patches an import only when it currently holds fromStatus.
// ErrNoRows from the guard means the import either does not exist or has
// already moved on, which the caller maps to a conflict. This is the guard
// that makes a double confirm harmless.
func (r *PosImports) Transition(ctx context.Context, scope, id, fromStatus string, patch map[string]interface{}) (*domain.PosImport, error) {
	if scope == "" {
		return nil, errors.NewValidation("scope id is required")
	}
	if id == "" {
		return nil, errors.NewValidation("id is required")
	}

	patch["updated_at"] = r.now().UTC()
	raw, err := r.client.Update(ctx, scope, r.settings.Table, id, patch, Filter{}.Eq("status", fromStatus))
	if err != nil {
		if IsNoRows(err) {
			return nil, ErrNoRows
		}
		return nil, errors.NewRepository("transition", err)
	}
	record, err := decodeRow[domain.PosImport](raw)
	if err != nil {
		return nil, errors.NewRepository("transition", err)
	}
	r.invalidate()
	return record, nil
}

// SystemLogs is the append-only repository for error/audit log rows. Lists
// are cached like any other read; the only mutation is retention cleanup.
type SystemLogs struct {
	*Cached[domain.SystemLog]
}

// NewSystemLogs builds the system logs repository.
func NewSystemLogs(client DataClient, ttl TTLConfig, maxBatch int, logger *zap.Logger, metrics *observability.Metrics) *SystemLogs {
	settings := Settings[domain.SystemLog]{
		Table:         "system_logs",
		Resource:      "system_log",
		FilterColumns: []string{"level", "source"},
		MaxBatch:      maxBatch,
		ListTTL:       ttl.List,
		DetailTTL:     ttl.Detail,
		OptionsTTL:    ttl.FilterOptions,
	}
	return &SystemLogs{NewCached(client, settings, ttl.cacheOptions(logger), logger, metrics)}
}

// PurgeOlderThan hard-deletes log rows created before the cutoff, in
// batches bounded by the bulk limit.
func (r *SystemLogs) PurgeOlderThan(ctx context.Context, scope string, cutoff time.Time) (int, error) {
	if scope == "" {
		return 0, errors.NewValidation("scope id is required")
	}
	purged := 0
	for {
		page, err := r.client.Select(ctx, scope, r.settings.Table,
			Filter{}.Lte("created_at", cutoff.UTC()), nil, Pagination{Limit: r.MaxBatch()})
		if err != nil {
			return purged, errors.NewRepository("purge", err)
		}
		if len(page) == 0 {
			break
		}
		rows, err := decodeRows[domain.SystemLog](page)
		if err != nil {
			return purged, errors.NewRepository("purge", err)
		}
		ids := make([]string, 0, len(rows))
		for _, row := range rows {
			ids = append(ids, row.ID)
		}
		n, err := r.client.BulkDelete(ctx, scope, r.settings.Table, ids, nil)
		if err != nil {
			return purged, errors.NewRepository("purge", err)
		}
		purged += n
		if n == 0 {
			break
		}
	}
	if purged > 0 {
		r.invalidate()
	}
	return purged, nil
}
