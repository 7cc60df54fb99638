package service

import (
	"context"

	"go.uber.org/zap"

	"backoffice-backend/internal/audit"
	"backoffice-backend/internal/domain"
	"backoffice-backend/internal/repository"
	"backoffice-backend/pkg/errors"
)

var importFilterSchema = FilterSchema{
	"status": EnumRule("status",
		domain.ImportStatusPending,
		domain.ImportStatusAnalyzed,
		domain.ImportStatusConfirmed,
		domain.ImportStatusFailed,
	),
	"search": SearchRule("file_name"),
}

var importSortable = map[string]bool{
	"file_name":  true,
	"status":     true,
	"created_at": true,
}

// CreateImportInput registers an uploaded POS file for analysis.
type CreateImportInput struct {
	FileName string `json:"file_name" validate:"required,min=1,max=255"`
}

// AnalyzeImportInput carries the pre-parsed rows of the uploaded file. File
// parsing happens upstream; this service only deduplicates and totals.
type AnalyzeImportInput struct {
	Rows []domain.PosRow `json:"rows" validate:"required,min=1,dive"`
}

// ConfirmImportInput finalizes an analyzed import.
type ConfirmImportInput struct {
	SkipDuplicates bool `json:"skip_duplicates"`
}

// PosImports drives the upload, analyze, confirm workflow for POS data.
type PosImports struct {
	repo    *repository.PosImports
	auditor *audit.Recorder
	logger  *zap.Logger
}

// NewPosImports creates the service.
func NewPosImports(repo *repository.PosImports, auditor *audit.Recorder, logger *zap.Logger) *PosImports {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PosImports{repo: repo, auditor: auditor, logger: logger}
}

// List returns one page of imports.
func (s *PosImports) List(ctx context.Context, meta Meta, scope string, q ListQuery) (*repository.Page[domain.PosImport], error) {
	filter := SanitizeFilter(q.Filters, importFilterSchema)
	return s.repo.FindMany(ctx, scope, q.Pagination(), q.Sort(importSortable, "created_at"), filter)
}

// Get returns one import by id.
func (s *PosImports) Get(ctx context.Context, meta Meta, scope, id string) (*domain.PosImport, error) {
	return s.repo.FindByID(ctx, scope, id)
}

// FilterOptions returns the distinct values for the filterable columns.
func (s *PosImports) FilterOptions(ctx context.Context, meta Meta, scope string) (map[string][]string, error) {
	return s.repo.FilterOptions(ctx, scope)
}

// Create registers a new import in status pending.
func (s *PosImports) Create(ctx context.Context, meta Meta, scope string, input CreateImportInput) (*domain.PosImport, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}
	created, err := s.repo.Create(ctx, scope, domain.PosImport{
		FileName: input.FileName,
		Status:   domain.ImportStatusPending,
	})
	if err != nil {
		return nil, err
	}
	s.record(meta, scope, "create", created.ID, created.FileName)
	return created, nil
}

// Analyze deduplicates the submitted rows by receipt number, totals the
// amounts and moves the import from pending to analyzed. Re-analyzing an
// import that already left pending is a conflict.
func (s *PosImports) Analyze(ctx context.Context, meta Meta, scope, id string, input AnalyzeImportInput) (*domain.PosImport, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(input.Rows))
	duplicates := 0
	total := 0.0
	for _, row := range input.Rows {
		if row.ReceiptNumber == "" {
			return nil, errors.NewValidation("every row needs a receipt number")
		}
		if seen[row.ReceiptNumber] {
			duplicates++
		} else {
			seen[row.ReceiptNumber] = true
			total += row.Amount
		}
	}

	analyzed, err := s.repo.Transition(ctx, scope, id, domain.ImportStatusPending, map[string]interface{}{
		"status":          domain.ImportStatusAnalyzed,
		"row_count":       len(input.Rows),
		"duplicate_count": duplicates,
		"new_count":       len(input.Rows) - duplicates,
		"total_amount":    total,
	})
	if err != nil {
		if repository.IsNoRows(err) {
			return nil, s.transitionConflict(ctx, scope, id, "analyze")
		}
		return nil, err
	}
	s.record(meta, scope, "analyze", id, analyzed.FileName)
	return analyzed, nil
}

// Confirm moves an analyzed import to confirmed. A second confirm finds the
// status already advanced and returns the confirmed record unchanged, so
// double posting never applies the import twice.
func (s *PosImports) Confirm(ctx context.Context, meta Meta, scope, id string, input ConfirmImportInput) (*domain.PosImport, error) {
	confirmed, err := s.repo.Transition(ctx, scope, id, domain.ImportStatusAnalyzed, map[string]interface{}{
		"status":          domain.ImportStatusConfirmed,
		"skip_duplicates": input.SkipDuplicates,
	})
	if err != nil {
		if repository.IsNoRows(err) {
			current, getErr := s.repo.FindByID(ctx, scope, id)
			if getErr != nil {
				return nil, getErr
			}
			if current.Status == domain.ImportStatusConfirmed {
				return current, nil
			}
			return nil, errors.NewConflict("INVALID_STATUS",
				"import must be analyzed before it can be confirmed")
		}
		return nil, err
	}
	s.record(meta, scope, "confirm", id, confirmed.FileName)
	return confirmed, nil
}

// Fail marks an import as failed with an operator-visible message. Allowed
// from pending or analyzed.
func (s *PosImports) Fail(ctx context.Context, meta Meta, scope, id, message string) (*domain.PosImport, error) {
	current, err := s.repo.FindByID(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	if current.Status == domain.ImportStatusConfirmed {
		return nil, errors.NewConflict("INVALID_STATUS", "a confirmed import cannot be failed")
	}
	failed, err := s.repo.Transition(ctx, scope, id, current.Status, map[string]interface{}{
		"status":        domain.ImportStatusFailed,
		"error_message": message,
	})
	if err != nil {
		if repository.IsNoRows(err) {
			return nil, s.transitionConflict(ctx, scope, id, "fail")
		}
		return nil, err
	}
	s.record(meta, scope, "fail", id, message)
	return failed, nil
}

func (s *PosImports) transitionConflict(ctx context.Context, scope, id, action string) error {
	if _, err := s.repo.FindByID(ctx, scope, id); err != nil {
		return err
	}
	s.logger.Warn("import transition rejected",
		zap.String("import_id", id),
		zap.String("action", action))
	return errors.NewConflict("INVALID_STATUS", "import is not in the required status for "+action)
}

func (s *PosImports) record(meta Meta, scope, action, recordID, detail string) {
	if s.auditor == nil {
		return
	}
	s.auditor.Record(domain.AuditLog{
		CompanyID:     scope,
		CorrelationID: meta.CorrelationID,
		Actor:         meta.Actor,
		Action:        action,
		Resource:      "pos_import",
		RecordID:      recordID,
		Detail:        detail,
	})
}
