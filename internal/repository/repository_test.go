package repository_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backoffice-backend/internal/domain"
	"backoffice-backend/internal/repository"
	"backoffice-backend/internal/repository/memory"
	"backoffice-backend/pkg/errors"
)

const scope = "company-1"

func testTTL() repository.TTLConfig {
	return repository.TTLConfig{
		List:            5 * time.Minute,
		Detail:          2 * time.Minute,
		FilterOptions:   5 * time.Minute,
		CleanupInterval: time.Hour,
	}
}

func newPurposesRepo(t *testing.T) (*repository.AccountingPurposes, *memory.Client) {
	t.Helper()
	client := memory.NewClient(map[string]memory.TableSpec{
		"accounting_purposes": {UniqueBy: [][]string{{"purpose_code"}}},
	})
	repo := repository.NewAccountingPurposes(client, testTTL(), 100, nil, nil)
	t.Cleanup(repo.Close)
	return repo, client
}

func seedPurposes(t *testing.T, repo *repository.AccountingPurposes, n int) []domain.AccountingPurpose {
	t.Helper()
	ctx := context.Background()
	out := make([]domain.AccountingPurpose, 0, n)
	for i := 0; i < n; i++ {
		created, err := repo.Create(ctx, scope, domain.AccountingPurpose{
			PurposeCode: fmt.Sprintf("P%03d", i),
			Name:        fmt.Sprintf("Purpose %d", i),
			IsActive:    i%2 == 0,
		})
		require.NoError(t, err)
		out = append(out, *created)
	}
	return out
}

func TestFindManyPaginationAndCountAgree(t *testing.T) {
	repo, _ := newPurposesRepo(t)
	ctx := context.Background()
	seedPurposes(t, repo, 23)

	sortBy := &repository.Sort{Column: "purpose_code"}

	page, err := repo.FindMany(ctx, scope, repository.Pagination{Limit: 10, Offset: 20}, sortBy, nil)
	require.NoError(t, err)
	assert.Len(t, page.Items, 3)
	assert.EqualValues(t, 23, page.Total)
	assert.GreaterOrEqual(t, page.Total, int64(page.Offset+len(page.Items)))
	assert.False(t, page.HasMore())

	// Re-running with limit == total yields exactly total rows, no dupes.
	full, err := repo.FindMany(ctx, scope, repository.Pagination{Limit: int(page.Total)}, sortBy, nil)
	require.NoError(t, err)
	assert.Len(t, full.Items, 23)
	seen := make(map[string]bool)
	for _, item := range full.Items {
		assert.False(t, seen[item.ID], "duplicate row %s", item.ID)
		seen[item.ID] = true
	}
}

func TestFindManyFilterAppliesToRowsAndTotal(t *testing.T) {
	repo, _ := newPurposesRepo(t)
	ctx := context.Background()
	seedPurposes(t, repo, 10)

	active := repository.Filter{}.Eq("is_active", true)
	page, err := repo.FindMany(ctx, scope, repository.Pagination{Limit: 3}, nil, active)
	require.NoError(t, err)
	assert.Len(t, page.Items, 3)
	assert.EqualValues(t, 5, page.Total)
	for _, item := range page.Items {
		assert.True(t, item.IsActive)
	}
}

func TestFindManyValidation(t *testing.T) {
	repo, _ := newPurposesRepo(t)
	ctx := context.Background()

	_, err := repo.FindMany(ctx, "", repository.Pagination{Limit: 10}, nil, nil)
	assert.True(t, errors.IsValidation(err))

	_, err = repo.FindMany(ctx, scope, repository.Pagination{Limit: 0}, nil, nil)
	assert.True(t, errors.IsValidation(err))

	_, err = repo.FindMany(ctx, scope, repository.Pagination{Limit: 10, Offset: -1}, nil, nil)
	assert.True(t, errors.IsValidation(err))
}

func TestListIsServedFromCacheUntilInvalidated(t *testing.T) {
	repo, client := newPurposesRepo(t)
	ctx := context.Background()
	seedPurposes(t, repo, 5)

	page := repository.Pagination{Limit: 10}
	_, err := repo.FindMany(ctx, scope, page, nil, nil)
	require.NoError(t, err)
	selects := client.Calls("select", "accounting_purposes")

	// Same query again: served from cache, no new data-client calls.
	_, err = repo.FindMany(ctx, scope, page, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, selects, client.Calls("select", "accounting_purposes"))

	// A mutation invalidates every derived family.
	_, err = repo.Create(ctx, scope, domain.AccountingPurpose{PurposeCode: "FRESH", Name: "Fresh"})
	require.NoError(t, err)

	refreshed, err := repo.FindMany(ctx, scope, page, nil, nil)
	require.NoError(t, err)
	assert.Greater(t, client.Calls("select", "accounting_purposes"), selects)
	assert.EqualValues(t, 6, refreshed.Total)
}

func TestTuneAppliesReloadedLimitsAndTTLs(t *testing.T) {
	repo, client := newPurposesRepo(t)
	ctx := context.Background()
	seeded := seedPurposes(t, repo, 3)

	ids := []string{seeded[0].ID, seeded[1].ID, seeded[2].ID}
	_, err := repo.BulkUpdate(ctx, scope, ids, map[string]interface{}{"is_active": false})
	require.NoError(t, err)

	repo.Tune(repository.TTLConfig{List: time.Nanosecond}, 2)
	assert.Equal(t, 2, repo.MaxBatch())

	// The same batch now exceeds the reloaded limit.
	_, err = repo.BulkUpdate(ctx, scope, ids, map[string]interface{}{"is_active": true})
	require.Error(t, err)
	assert.True(t, errors.IsBulkLimitExceeded(err))

	// With a nanosecond list TTL the cached page expires immediately, so the
	// repeated query reaches the client again.
	page := repository.Pagination{Limit: 10}
	_, err = repo.FindMany(ctx, scope, page, nil, nil)
	require.NoError(t, err)
	selects := client.Calls("select", "accounting_purposes")

	time.Sleep(time.Millisecond)
	_, err = repo.FindMany(ctx, scope, page, nil, nil)
	require.NoError(t, err)
	assert.Greater(t, client.Calls("select", "accounting_purposes"), selects)
}

func TestFindByIDAndCode(t *testing.T) {
	repo, _ := newPurposesRepo(t)
	ctx := context.Background()
	created := seedPurposes(t, repo, 3)

	byID, err := repo.FindByID(ctx, scope, created[1].ID)
	require.NoError(t, err)
	assert.Equal(t, created[1].PurposeCode, byID.PurposeCode)

	byCode, err := repo.FindByCode(ctx, scope, "P002")
	require.NoError(t, err)
	assert.Equal(t, created[2].ID, byCode.ID)

	_, err = repo.FindByID(ctx, scope, "missing")
	assert.True(t, errors.IsNotFound(err))

	// Records are invisible outside their scope.
	_, err = repo.FindByID(ctx, "company-2", created[0].ID)
	assert.True(t, errors.IsNotFound(err))
}

func TestCreateDuplicateCodeLeavesStoreUnchanged(t *testing.T) {
	repo, client := newPurposesRepo(t)
	ctx := context.Background()

	_, err := repo.Create(ctx, scope, domain.AccountingPurpose{PurposeCode: "SALES01", Name: "Sales"})
	require.NoError(t, err)
	before := client.RowCount("accounting_purposes")

	_, err = repo.Create(ctx, scope, domain.AccountingPurpose{PurposeCode: "SALES01", Name: "Sales again"})
	require.Error(t, err)
	assert.True(t, errors.IsConflict(err))
	assert.Equal(t, "CODE_EXISTS", errors.CodeOf(err))
	assert.Equal(t, before, client.RowCount("accounting_purposes"))

	// The same code in another company is fine.
	_, err = repo.Create(ctx, "company-2", domain.AccountingPurpose{PurposeCode: "SALES01", Name: "Sales"})
	assert.NoError(t, err)
}

func TestSystemRecordIsReadonly(t *testing.T) {
	repo, client := newPurposesRepo(t)
	ctx := context.Background()

	system, err := repo.Create(ctx, scope, domain.AccountingPurpose{PurposeCode: "SYS", Name: "System", IsSystem: true})
	require.NoError(t, err)

	deletes := client.Calls("update", "accounting_purposes")
	err = repo.Delete(ctx, scope, system.ID)
	require.Error(t, err)
	assert.True(t, errors.IsForbidden(err))
	assert.Equal(t, "SYSTEM_RECORD_READONLY", errors.CodeOf(err))
	assert.Equal(t, deletes, client.Calls("update", "accounting_purposes"),
		"no write may reach the data client for a system record")

	_, err = repo.Update(ctx, scope, system.ID, map[string]interface{}{"name": "hacked"})
	assert.True(t, errors.IsForbidden(err))
}

func TestBulkDeleteExcludesSystemRecordsAtDataLayer(t *testing.T) {
	repo, _ := newPurposesRepo(t)
	ctx := context.Background()

	user, err := repo.Create(ctx, scope, domain.AccountingPurpose{PurposeCode: "U1", Name: "User"})
	require.NoError(t, err)
	system, err := repo.Create(ctx, scope, domain.AccountingPurpose{PurposeCode: "S1", Name: "Sys", IsSystem: true})
	require.NoError(t, err)

	n, err := repo.BulkDelete(ctx, scope, []string{user.ID, system.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, n, "the is_system guard must exclude protected rows")

	still, err := repo.FindByID(ctx, scope, system.ID)
	require.NoError(t, err)
	assert.True(t, still.IsSystem)
}

func TestBulkLimitFailsFastWithoutWrites(t *testing.T) {
	repo, client := newPurposesRepo(t)
	ctx := context.Background()

	ids := make([]string, 101)
	for i := range ids {
		ids[i] = fmt.Sprintf("id-%d", i)
	}

	_, err := repo.BulkDelete(ctx, scope, ids)
	require.Error(t, err)
	assert.True(t, errors.IsBulkLimitExceeded(err))
	var appErr *errors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "delete", appErr.Details["operation"])
	assert.Equal(t, 100, appErr.Details["limit"])
	assert.Equal(t, 101, appErr.Details["actual"])
	assert.Zero(t, client.Calls("bulkUpdate", "accounting_purposes"))
	assert.Zero(t, client.Calls("bulkDelete", "accounting_purposes"))
}

func TestSoftDeleteAndRestore(t *testing.T) {
	repo, _ := newPurposesRepo(t)
	ctx := context.Background()
	created := seedPurposes(t, repo, 1)

	require.NoError(t, repo.Delete(ctx, scope, created[0].ID))

	_, err := repo.FindByID(ctx, scope, created[0].ID)
	assert.True(t, errors.IsNotFound(err), "soft-deleted rows are invisible to reads")

	restored, err := repo.Restore(ctx, scope, created[0].ID)
	require.NoError(t, err)
	assert.Nil(t, restored.DeletedAt)

	again, err := repo.FindByID(ctx, scope, created[0].ID)
	require.NoError(t, err)
	assert.Equal(t, created[0].PurposeCode, again.PurposeCode)
}

func TestRepositoryErrorWrapsDataClientFailure(t *testing.T) {
	repo, client := newPurposesRepo(t)
	ctx := context.Background()

	client.SetError("select", "accounting_purposes", fmt.Errorf("connection refused"))
	_, err := repo.FindMany(ctx, scope, repository.Pagination{Limit: 10}, nil, nil)
	require.Error(t, err)
	assert.True(t, errors.IsInternal(err))
	assert.Equal(t, "REPOSITORY_ERROR", errors.CodeOf(err))
}

func TestFilterOptions(t *testing.T) {
	repo, client := newPurposesRepo(t)
	ctx := context.Background()
	seedPurposes(t, repo, 4)

	options, err := repo.FilterOptions(ctx, scope)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"P000", "P001", "P002", "P003"}, options["purpose_code"])
	assert.ElementsMatch(t, []string{"true", "false"}, options["is_active"])

	// Cached on the second read.
	calls := client.Calls("distinct", "accounting_purposes")
	_, err = repo.FilterOptions(ctx, scope)
	require.NoError(t, err)
	assert.Equal(t, calls, client.Calls("distinct", "accounting_purposes"))
}

func TestPosImportTransitionGuardsDoubleConfirm(t *testing.T) {
	client := memory.NewClient(nil)
	repo := repository.NewPosImports(client, testTTL(), 100, nil, nil)
	t.Cleanup(repo.Close)
	ctx := context.Background()

	created, err := repo.Create(ctx, scope, domain.PosImport{
		FileName: "sales.xlsx",
		Status:   domain.ImportStatusAnalyzed,
	})
	require.NoError(t, err)

	confirmed, err := repo.Transition(ctx, scope, created.ID, domain.ImportStatusAnalyzed,
		map[string]interface{}{"status": domain.ImportStatusConfirmed})
	require.NoError(t, err)
	assert.Equal(t, domain.ImportStatusConfirmed, confirmed.Status)

	// The second confirm matches no row in the analyzed state.
	_, err = repo.Transition(ctx, scope, created.ID, domain.ImportStatusAnalyzed,
		map[string]interface{}{"status": domain.ImportStatusConfirmed})
	assert.True(t, repository.IsNoRows(err))
}
