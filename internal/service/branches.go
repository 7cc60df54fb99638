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

var branchFilterSchema = FilterSchema{
	"employee_id": EqRule("employee_id"),
	"branch_id":   EqRule("branch_id"),
	"is_primary":  BoolRule("is_primary"),
}

var branchSortable = map[string]bool{
	"employee_id": true,
	"branch_id":   true,
	"created_at":  true,
}

// CreateAssignmentInput is the request body for assigning an employee to a
// branch.
type CreateAssignmentInput struct {
	EmployeeID string     `json:"employee_id" validate:"required"`
	BranchID   string     `json:"branch_id" validate:"required"`
	IsPrimary  bool       `json:"is_primary"`
	ValidFrom  *time.Time `json:"valid_from"`
	ValidTo    *time.Time `json:"valid_to"`
}

// UpdateAssignmentInput is the request body for updating an assignment.
type UpdateAssignmentInput struct {
	BranchID  *string    `json:"branch_id"`
	IsPrimary *bool      `json:"is_primary"`
	ValidFrom *time.Time `json:"valid_from"`
	ValidTo   *time.Time `json:"valid_to"`
}

// EmployeeBranches is the employee-branch-assignment service.
type EmployeeBranches struct {
	repo    *repository.EmployeeBranches
	auditor *audit.Recorder
	logger  *zap.Logger
}

// NewEmployeeBranches creates the service.
func NewEmployeeBranches(repo *repository.EmployeeBranches, auditor *audit.Recorder, logger *zap.Logger) *EmployeeBranches {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmployeeBranches{repo: repo, auditor: auditor, logger: logger}
}

// List returns one page of assignments.
func (s *EmployeeBranches) List(ctx context.Context, meta Meta, scope string, q ListQuery) (*repository.Page[domain.EmployeeBranchAssignment], error) {
	filter := SanitizeFilter(q.Filters, branchFilterSchema)
	return s.repo.FindMany(ctx, scope, q.Pagination(), q.Sort(branchSortable, "created_at"), filter)
}

// Get returns one assignment by id.
func (s *EmployeeBranches) Get(ctx context.Context, meta Meta, scope, id string) (*domain.EmployeeBranchAssignment, error) {
	return s.repo.FindByID(ctx, scope, id)
}

// FilterOptions returns the distinct values for the filterable columns.
func (s *EmployeeBranches) FilterOptions(ctx context.Context, meta Meta, scope string) (map[string][]string, error) {
	return s.repo.FilterOptions(ctx, scope)
}

// Create stores a new assignment. An employee may hold at most one primary
// assignment; a second one is a conflict the UI can resolve by unsetting
// the current primary first.
func (s *EmployeeBranches) Create(ctx context.Context, meta Meta, scope string, input CreateAssignmentInput) (*domain.EmployeeBranchAssignment, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}
	if input.ValidFrom != nil && input.ValidTo != nil && input.ValidTo.Before(*input.ValidFrom) {
		return nil, errors.NewValidation("valid_to cannot be before valid_from")
	}
	if input.IsPrimary {
		if err := s.rejectSecondPrimary(ctx, scope, input.EmployeeID, ""); err != nil {
			return nil, err
		}
	}
	created, err := s.repo.Create(ctx, scope, domain.EmployeeBranchAssignment{
		EmployeeID: input.EmployeeID,
		BranchID:   input.BranchID,
		IsPrimary:  input.IsPrimary,
		ValidFrom:  input.ValidFrom,
		ValidTo:    input.ValidTo,
	})
	if err != nil {
		return nil, err
	}
	s.record(meta, scope, "create", created.ID, created.EmployeeID)
	return created, nil
}

// Update patches an existing assignment, enforcing the single-primary rule
// when the patch promotes it.
func (s *EmployeeBranches) Update(ctx context.Context, meta Meta, scope, id string, input UpdateAssignmentInput) (*domain.EmployeeBranchAssignment, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}
	if input.IsPrimary != nil && *input.IsPrimary {
		current, err := s.repo.FindByID(ctx, scope, id)
		if err != nil {
			return nil, err
		}
		if err := s.rejectSecondPrimary(ctx, scope, current.EmployeeID, id); err != nil {
			return nil, err
		}
	}
	patch := map[string]interface{}{}
	if input.BranchID != nil {
		patch["branch_id"] = *input.BranchID
	}
	if input.IsPrimary != nil {
		patch["is_primary"] = *input.IsPrimary
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
	s.record(meta, scope, "update", id, updated.EmployeeID)
	return updated, nil
}

// Delete soft-deletes an assignment.
func (s *EmployeeBranches) Delete(ctx context.Context, meta Meta, scope, id string) error {
	if err := s.repo.Delete(ctx, scope, id); err != nil {
		return err
	}
	s.record(meta, scope, "delete", id, "")
	return nil
}

// Restore clears an assignment's soft-delete marker.
func (s *EmployeeBranches) Restore(ctx context.Context, meta Meta, scope, id string) (*domain.EmployeeBranchAssignment, error) {
	restored, err := s.repo.Restore(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	s.record(meta, scope, "restore", id, restored.EmployeeID)
	return restored, nil
}

// BulkEnd closes the validity window of a batch of assignments.
func (s *EmployeeBranches) BulkEnd(ctx context.Context, meta Meta, scope string, ids []string, validTo time.Time) (int, error) {
	n, err := s.repo.BulkUpdate(ctx, scope, ids, map[string]interface{}{
		"valid_to":   validTo,
		"is_primary": false,
	})
	if err != nil {
		return 0, err
	}
	s.record(meta, scope, "bulk_end", "", "")
	return n, nil
}

// BulkDelete soft-deletes a batch of assignments.
func (s *EmployeeBranches) BulkDelete(ctx context.Context, meta Meta, scope string, ids []string) (int, error) {
	n, err := s.repo.BulkDelete(ctx, scope, ids)
	if err != nil {
		return 0, err
	}
	s.record(meta, scope, "bulk_delete", "", "")
	return n, nil
}

func (s *EmployeeBranches) rejectSecondPrimary(ctx context.Context, scope, employeeID, exceptID string) error {
	existing, err := s.repo.FindPrimary(ctx, scope, employeeID)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil
		}
		return err
	}
	if existing.ID == exceptID {
		return nil
	}
	return errors.NewConflict("PRIMARY_EXISTS",
		"employee already has a primary branch assignment")
}

func (s *EmployeeBranches) record(meta Meta, scope, action, recordID, detail string) {
	if s.auditor == nil {
		return
	}
	s.auditor.Record(domain.AuditLog{
		CompanyID:     scope,
		CorrelationID: meta.CorrelationID,
		Actor:         meta.Actor,
		Action:        action,
		Resource:      "employee_branch_assignment",
		RecordID:      recordID,
		Detail:        detail,
	})
}
