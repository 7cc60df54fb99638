package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"backoffice-backend/internal/domain"
	"backoffice-backend/internal/repository"
	"backoffice-backend/internal/repository/memory"
	"backoffice-backend/internal/service"
	"backoffice-backend/pkg/errors"
)

const scope = "company-1"

var meta = service.Meta{CorrelationID: "corr-1", Actor: "tester"}

func testTTL() repository.TTLConfig {
	return repository.TTLConfig{
		List:            5 * time.Minute,
		Detail:          2 * time.Minute,
		FilterOptions:   5 * time.Minute,
		CleanupInterval: time.Minute,
		MaxEntries:      1000,
	}
}

func newPurposesService(t *testing.T) (*service.Purposes, *memory.Client) {
	t.Helper()
	client := memory.NewClient(map[string]memory.TableSpec{
		"accounting_purposes": {UniqueBy: [][]string{{"purpose_code"}}},
	})
	repo := repository.NewAccountingPurposes(client, testTTL(), 100, zap.NewNop(), nil)
	t.Cleanup(repo.Close)
	return service.NewPurposes(repo, nil, zap.NewNop()), client
}

func newBranchesService(t *testing.T) *service.EmployeeBranches {
	t.Helper()
	client := memory.NewClient(nil)
	repo := repository.NewEmployeeBranches(client, testTTL(), 100, zap.NewNop(), nil)
	t.Cleanup(repo.Close)
	return service.NewEmployeeBranches(repo, nil, zap.NewNop())
}

func newImportsService(t *testing.T) *service.PosImports {
	t.Helper()
	client := memory.NewClient(nil)
	repo := repository.NewPosImports(client, testTTL(), 100, zap.NewNop(), nil)
	t.Cleanup(repo.Close)
	return service.NewPosImports(repo, nil, zap.NewNop())
}

func newTermsService(t *testing.T) *service.PaymentTerms {
	t.Helper()
	client := memory.NewClient(map[string]memory.TableSpec{
		"payment_terms": {UniqueBy: [][]string{{"code"}}},
	})
	repo := repository.NewPaymentTerms(client, testTTL(), 100, zap.NewNop(), nil)
	t.Cleanup(repo.Close)
	return service.NewPaymentTerms(repo, nil, zap.NewNop())
}

func TestCreatePurposeRejectsInvalidInput(t *testing.T) {
	svc, client := newPurposesService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, meta, scope, service.CreatePurposeInput{
		PurposeCode: "x", // too short
		Name:        "Sales",
	})
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))

	_, err = svc.Create(ctx, meta, scope, service.CreatePurposeInput{
		PurposeCode: "SALES01",
	})
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))

	// nothing reached the data layer
	assert.Zero(t, client.Calls("insert", "accounting_purposes"))
}

func TestCreatePurposeDuplicateCodeIsConflict(t *testing.T) {
	svc, _ := newPurposesService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, meta, scope, service.CreatePurposeInput{
		PurposeCode: "SALES01", Name: "Sales",
	})
	require.NoError(t, err)

	_, err = svc.Create(ctx, meta, scope, service.CreatePurposeInput{
		PurposeCode: "SALES01", Name: "Sales again",
	})
	require.Error(t, err)
	assert.True(t, errors.IsConflict(err))
	assert.Equal(t, "CODE_EXISTS", errors.CodeOf(err))
}

func TestListDropsUnknownFilterKeys(t *testing.T) {
	svc, _ := newPurposesService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, meta, scope, service.CreatePurposeInput{
		PurposeCode: "SALES01", Name: "Sales",
	})
	require.NoError(t, err)

	page, err := svc.List(ctx, meta, scope, service.ListQuery{
		Filters: map[string]string{"company_id": "someone-else", "nonsense": "1"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Total)
}

func TestCreateTermDiscountDaysRequireDiscount(t *testing.T) {
	svc := newTermsService(t)

	_, err := svc.Create(context.Background(), meta, scope, service.CreateTermInput{
		Code: "NET30", Name: "Net 30", DaysNet: 30, DiscountDays: 10,
	})
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
}

func TestSecondPrimaryAssignmentIsConflict(t *testing.T) {
	svc := newBranchesService(t)
	ctx := context.Background()

	first, err := svc.Create(ctx, meta, scope, service.CreateAssignmentInput{
		EmployeeID: "emp-1", BranchID: "branch-1", IsPrimary: true,
	})
	require.NoError(t, err)

	_, err = svc.Create(ctx, meta, scope, service.CreateAssignmentInput{
		EmployeeID: "emp-1", BranchID: "branch-2", IsPrimary: true,
	})
	require.Error(t, err)
	assert.True(t, errors.IsConflict(err))
	assert.Equal(t, "PRIMARY_EXISTS", errors.CodeOf(err))

	// non-primary assignments are unrestricted
	_, err = svc.Create(ctx, meta, scope, service.CreateAssignmentInput{
		EmployeeID: "emp-1", BranchID: "branch-2",
	})
	require.NoError(t, err)

	// promoting the existing primary again is a no-op, not a conflict
	yes := true
	_, err = svc.Update(ctx, meta, scope, first.ID, service.UpdateAssignmentInput{IsPrimary: &yes})
	require.NoError(t, err)
}

func TestImportAnalyzeCountsDuplicatesAndTotals(t *testing.T) {
	svc := newImportsService(t)
	ctx := context.Background()

	imp, err := svc.Create(ctx, meta, scope, service.CreateImportInput{FileName: "sales.csv"})
	require.NoError(t, err)
	assert.Equal(t, domain.ImportStatusPending, imp.Status)

	sold := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	analyzed, err := svc.Analyze(ctx, meta, scope, imp.ID, service.AnalyzeImportInput{
		Rows: []domain.PosRow{
			{ReceiptNumber: "R-1", SoldAt: sold, Amount: 10},
			{ReceiptNumber: "R-2", SoldAt: sold, Amount: 20},
			{ReceiptNumber: "R-1", SoldAt: sold, Amount: 10},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ImportStatusAnalyzed, analyzed.Status)
	assert.Equal(t, 3, analyzed.RowCount)
	assert.Equal(t, 1, analyzed.DuplicateCount)
	assert.Equal(t, 2, analyzed.NewCount)
	assert.InDelta(t, 30.0, analyzed.TotalAmount, 0.001)
}

func TestImportConfirmIsIdempotent(t *testing.T) {
	svc := newImportsService(t)
	ctx := context.Background()

	imp, err := svc.Create(ctx, meta, scope, service.CreateImportInput{FileName: "sales.csv"})
	require.NoError(t, err)
	_, err = svc.Analyze(ctx, meta, scope, imp.ID, service.AnalyzeImportInput{
		Rows: []domain.PosRow{{ReceiptNumber: "R-1", Amount: 10}},
	})
	require.NoError(t, err)

	confirmed, err := svc.Confirm(ctx, meta, scope, imp.ID, service.ConfirmImportInput{SkipDuplicates: true})
	require.NoError(t, err)
	assert.Equal(t, domain.ImportStatusConfirmed, confirmed.Status)
	assert.True(t, confirmed.SkipDuplicates)

	again, err := svc.Confirm(ctx, meta, scope, imp.ID, service.ConfirmImportInput{})
	require.NoError(t, err)
	assert.Equal(t, domain.ImportStatusConfirmed, again.Status)
	assert.True(t, again.SkipDuplicates, "second confirm must not overwrite the first")
}

func TestImportConfirmBeforeAnalyzeIsConflict(t *testing.T) {
	svc := newImportsService(t)
	ctx := context.Background()

	imp, err := svc.Create(ctx, meta, scope, service.CreateImportInput{FileName: "sales.csv"})
	require.NoError(t, err)

	_, err = svc.Confirm(ctx, meta, scope, imp.ID, service.ConfirmImportInput{})
	require.Error(t, err)
	assert.True(t, errors.IsConflict(err))
}

func TestImportAnalyzeTwiceIsConflict(t *testing.T) {
	svc := newImportsService(t)
	ctx := context.Background()

	imp, err := svc.Create(ctx, meta, scope, service.CreateImportInput{FileName: "sales.csv"})
	require.NoError(t, err)

	rows := service.AnalyzeImportInput{Rows: []domain.PosRow{{ReceiptNumber: "R-1", Amount: 10}}}
	_, err = svc.Analyze(ctx, meta, scope, imp.ID, rows)
	require.NoError(t, err)

	_, err = svc.Analyze(ctx, meta, scope, imp.ID, rows)
	require.Error(t, err)
	assert.True(t, errors.IsConflict(err))
}
