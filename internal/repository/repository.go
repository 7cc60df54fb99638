// Package repository implements the cache-bounded data access layer: every
// resource gets a typed repository wrapping the shared DataClient with a
// TTL read-cache in front of its query methods and pattern invalidation
// behind its mutation methods.
package repository

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"backoffice-backend/internal/cache"
	"backoffice-backend/pkg/errors"
	"backoffice-backend/pkg/observability"
)

// Cache-key families. A detail change can affect every derived view, so
// mutations invalidate all of them.
const (
	familyList          = "list"
	familyDetail        = "detail"
	familyCode          = "code"
	familyFilterOptions = "filter-options"
)

var allFamilies = []string{familyList, familyDetail, familyCode, familyFilterOptions}

// Settings describes one resource to the generic repository.
type Settings[T any] struct {
	Table    string
	Resource string

	// CodeColumn is the business-code column for by-code lookups; empty if
	// the resource has none.
	CodeColumn string

	// SoftDelete scopes reads by deleted_at IS NULL and turns Delete into a
	// deleted_at patch.
	SoftDelete bool

	// FilterColumns are the columns whose distinct values feed the
	// filter-options aggregate.
	FilterColumns []string

	// Protected reports whether a record is platform-managed and therefore
	// read-only. Protected records are also excluded from write predicates
	// at the data layer, so the storage guard holds even if a caller's
	// check is bypassed.
	Protected func(T) bool

	// Code extracts the business code from a record, for conflict errors.
	Code func(T) string

	MaxBatch   int
	ListTTL    time.Duration
	DetailTTL  time.Duration
	OptionsTTL time.Duration
}

// Cached is the generic cache-bounded repository. Reads check the owned
// cache store first; writes invalidate every affected key family after the
// underlying write succeeds. The cache is an accelerator, never a source of
// truth: any cache failure degrades to a data-client call.
type Cached[T any] struct {
	client   DataClient
	store    *cache.Store
	settings Settings[T]
	logger   *zap.Logger
	metrics  *observability.Metrics
	now      func() time.Time

	// tuneMu guards the reloadable fields of settings: the three TTLs and
	// MaxBatch. Everything else in settings is fixed at construction.
	tuneMu sync.RWMutex
}

// NewCached constructs a repository owning its cache store. Close releases
// the store; the store is never shared with another component.
func NewCached[T any](client DataClient, settings Settings[T], cacheOpts cache.Options, logger *zap.Logger, metrics *observability.Metrics) *Cached[T] {
	if settings.MaxBatch <= 0 {
		settings.MaxBatch = 100
	}
	if settings.ListTTL <= 0 {
		settings.ListTTL = 5 * time.Minute
	}
	if settings.DetailTTL <= 0 {
		settings.DetailTTL = 2 * time.Minute
	}
	if settings.OptionsTTL <= 0 {
		settings.OptionsTTL = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cached[T]{
		client:   client,
		store:    cache.New(cacheOpts),
		settings: settings,
		logger:   logger.With(zap.String("resource", settings.Resource)),
		metrics:  metrics,
		now:      time.Now,
	}
}

// Close tears down the owned cache store.
func (r *Cached[T]) Close() {
	r.store.Close()
}

// MaxBatch returns the configured bulk-operation limit.
func (r *Cached[T]) MaxBatch() int {
	r.tuneMu.RLock()
	defer r.tuneMu.RUnlock()
	return r.settings.MaxBatch
}

// Tune applies reloaded cache lifetimes and the bulk limit to a running
// repository. Zero or negative values keep the current setting; the sweep
// interval and entry cap of the owned store are fixed at construction.
func (r *Cached[T]) Tune(ttl TTLConfig, maxBatch int) {
	r.tuneMu.Lock()
	defer r.tuneMu.Unlock()
	if ttl.List > 0 {
		r.settings.ListTTL = ttl.List
	}
	if ttl.Detail > 0 {
		r.settings.DetailTTL = ttl.Detail
	}
	if ttl.FilterOptions > 0 {
		r.settings.OptionsTTL = ttl.FilterOptions
	}
	if maxBatch > 0 {
		r.settings.MaxBatch = maxBatch
	}
}

func (r *Cached[T]) listTTL() time.Duration {
	r.tuneMu.RLock()
	defer r.tuneMu.RUnlock()
	return r.settings.ListTTL
}

func (r *Cached[T]) detailTTL() time.Duration {
	r.tuneMu.RLock()
	defer r.tuneMu.RUnlock()
	return r.settings.DetailTTL
}

func (r *Cached[T]) optionsTTL() time.Duration {
	r.tuneMu.RLock()
	defer r.tuneMu.RUnlock()
	return r.settings.OptionsTTL
}

// baseFilter is the predicate applied to every read.
func (r *Cached[T]) baseFilter() Filter {
	var f Filter
	if r.settings.SoftDelete {
		f = f.IsNull("deleted_at")
	}
	return f
}

// writeGuard is the predicate applied to every destructive write, the final
// guard below any service-level check.
func (r *Cached[T]) writeGuard() Filter {
	var f Filter
	if r.settings.Protected != nil {
		f = f.Eq("is_system", false)
	}
	return f
}

// canonicalFilter returns a copy of f with a deterministic condition order,
// so the cache key does not depend on how the caller assembled the filter.
func canonicalFilter(f Filter) Filter {
	out := make(Filter, len(f))
	copy(out, f)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Column != out[j].Column {
			return out[i].Column < out[j].Column
		}
		return out[i].Op < out[j].Op
	})
	return out
}

// FindMany returns one page of rows plus the total for the same filter. On a
// cache miss the rows and the count are fetched concurrently against the
// identical predicate and combined only after both resolve.
func (r *Cached[T]) FindMany(ctx context.Context, scope string, page Pagination, sortBy *Sort, filter Filter) (*Page[T], error) {
	if scope == "" {
		return nil, errors.NewValidation("scope id is required")
	}
	if err := page.Validate(); err != nil {
		return nil, err
	}

	params := map[string]interface{}{
		"scope":  scope,
		"limit":  page.Limit,
		"offset": page.Offset,
		"filter": canonicalFilter(filter),
	}
	if sortBy != nil {
		params["sort"] = *sortBy
	}
	key := cache.Key(familyList, params)
	if cached, ok := r.store.Get(key); ok {
		if result, ok := cached.(*Page[T]); ok {
			r.metrics.CacheHit(r.settings.Resource, familyList)
			return result, nil
		}
	}
	r.metrics.CacheMiss(r.settings.Resource, familyList)

	// One predicate for both sub-queries. Rows and count disagreeing about
	// the filter is the bug class this exists to prevent.
	predicate := append(r.baseFilter(), filter...)

	var (
		raw   []json.RawMessage
		total int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rows, err := r.client.Select(gctx, scope, r.settings.Table, predicate, sortBy, page)
		if err != nil {
			return err
		}
		raw = rows
		return nil
	})
	g.Go(func() error {
		n, err := r.client.Count(gctx, scope, r.settings.Table, predicate)
		if err != nil {
			return err
		}
		total = n
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, errors.NewRepository("findMany", err)
	}

	items, err := decodeRows[T](raw)
	if err != nil {
		return nil, errors.NewRepository("findMany", err)
	}
	result := &Page[T]{Items: items, Total: total, Limit: page.Limit, Offset: page.Offset}
	r.store.SetTTL(key, result, r.listTTL())
	return result, nil
}

// FindByID returns the record with the given id within scope.
func (r *Cached[T]) FindByID(ctx context.Context, scope, id string) (*T, error) {
	if scope == "" {
		return nil, errors.NewValidation("scope id is required")
	}
	if id == "" {
		return nil, errors.NewValidation("id is required")
	}

	key := cache.Key(familyDetail, map[string]interface{}{"scope": scope, "id": id})
	if cached, ok := r.store.Get(key); ok {
		if record, ok := cached.(*T); ok {
			r.metrics.CacheHit(r.settings.Resource, familyDetail)
			return record, nil
		}
	}
	r.metrics.CacheMiss(r.settings.Resource, familyDetail)

	record, err := r.findOne(ctx, scope, r.baseFilter().Eq("id", id), id)
	if err != nil {
		return nil, err
	}
	r.store.SetTTL(key, record, r.detailTTL())
	return record, nil
}

// FindByCode returns the record with the given business code within scope.
func (r *Cached[T]) FindByCode(ctx context.Context, scope, code string) (*T, error) {
	if scope == "" {
		return nil, errors.NewValidation("scope id is required")
	}
	if r.settings.CodeColumn == "" || code == "" {
		return nil, errors.NewValidation("code is required")
	}

	key := cache.Key(familyCode, map[string]interface{}{"scope": scope, "code": code})
	if cached, ok := r.store.Get(key); ok {
		if record, ok := cached.(*T); ok {
			r.metrics.CacheHit(r.settings.Resource, familyCode)
			return record, nil
		}
	}
	r.metrics.CacheMiss(r.settings.Resource, familyCode)

	record, err := r.findOne(ctx, scope, r.baseFilter().Eq(r.settings.CodeColumn, code), code)
	if err != nil {
		return nil, err
	}
	r.store.SetTTL(key, record, r.detailTTL())
	return record, nil
}

func (r *Cached[T]) findOne(ctx context.Context, scope string, predicate Filter, ref string) (*T, error) {
	rows, err := r.client.Select(ctx, scope, r.settings.Table, predicate, nil, Pagination{Limit: 1})
	if err != nil {
		return nil, errors.NewRepository("findOne", err)
	}
	if len(rows) == 0 {
		return nil, errors.NewNotFound(r.settings.Resource, ref)
	}
	items, err := decodeRows[T](rows)
	if err != nil {
		return nil, errors.NewRepository("findOne", err)
	}
	return &items[0], nil
}

// FilterOptions returns the distinct values per configured filter column,
// for populating filter dropdowns without a full table fetch client-side.
func (r *Cached[T]) FilterOptions(ctx context.Context, scope string) (map[string][]string, error) {
	if scope == "" {
		return nil, errors.NewValidation("scope id is required")
	}
	if len(r.settings.FilterColumns) == 0 {
		return map[string][]string{}, nil
	}

	key := cache.Key(familyFilterOptions, map[string]interface{}{"scope": scope})
	if cached, ok := r.store.Get(key); ok {
		if options, ok := cached.(map[string][]string); ok {
			r.metrics.CacheHit(r.settings.Resource, familyFilterOptions)
			return options, nil
		}
	}
	r.metrics.CacheMiss(r.settings.Resource, familyFilterOptions)

	predicate := r.baseFilter()
	values := make([][]string, len(r.settings.FilterColumns))
	g, gctx := errgroup.WithContext(ctx)
	for i, column := range r.settings.FilterColumns {
		i, column := i, column
		g.Go(func() error {
			distinct, err := r.client.Distinct(gctx, scope, r.settings.Table, column, predicate)
			if err != nil {
				return err
			}
			values[i] = distinct
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, errors.NewRepository("filterOptions", err)
	}

	options := make(map[string][]string, len(r.settings.FilterColumns))
	for i, column := range r.settings.FilterColumns {
		options[column] = values[i]
	}
	r.store.SetTTL(key, options, r.optionsTTL())
	return options, nil
}

// Create inserts record and invalidates every derived key family.
func (r *Cached[T]) Create(ctx context.Context, scope string, record T) (*T, error) {
	if scope == "" {
		return nil, errors.NewValidation("scope id is required")
	}

	raw, err := r.client.Insert(ctx, scope, r.settings.Table, record)
	if err != nil {
		if IsUniqueViolation(err) {
			code := ""
			if r.settings.Code != nil {
				code = r.settings.Code(record)
			}
			return nil, errors.NewCodeExists(r.settings.Resource, code)
		}
		return nil, errors.NewRepository("create", err)
	}

	created, err := decodeRow[T](raw)
	if err != nil {
		return nil, errors.NewRepository("create", err)
	}
	r.invalidate()
	return created, nil
}

// Update patches the record with the given id. Protected records are
// rejected before any write is issued.
func (r *Cached[T]) Update(ctx context.Context, scope, id string, patch map[string]interface{}) (*T, error) {
	if scope == "" {
		return nil, errors.NewValidation("scope id is required")
	}
	if id == "" {
		return nil, errors.NewValidation("id is required")
	}
	if err := r.rejectProtected(ctx, scope, id); err != nil {
		return nil, err
	}

	patch["updated_at"] = r.now().UTC()
	raw, err := r.client.Update(ctx, scope, r.settings.Table, id, patch, r.writeGuard())
	if err != nil {
		if IsNoRows(err) {
			return nil, errors.NewNotFound(r.settings.Resource, id)
		}
		if IsUniqueViolation(err) {
			code, _ := patch[r.settings.CodeColumn].(string)
			return nil, errors.NewCodeExists(r.settings.Resource, code)
		}
		return nil, errors.NewRepository("update", err)
	}

	updated, err := decodeRow[T](raw)
	if err != nil {
		return nil, errors.NewRepository("update", err)
	}
	r.invalidate()
	return updated, nil
}

// Delete removes the record with the given id: a deleted_at patch for
// soft-deleted resources, a hard delete otherwise. Protected records are
// rejected before the data client is touched.
func (r *Cached[T]) Delete(ctx context.Context, scope, id string) error {
	if scope == "" {
		return errors.NewValidation("scope id is required")
	}
	if id == "" {
		return errors.NewValidation("id is required")
	}
	if err := r.rejectProtected(ctx, scope, id); err != nil {
		return err
	}

	var err error
	if r.settings.SoftDelete {
		patch := map[string]interface{}{"deleted_at": r.now().UTC()}
		_, err = r.client.Update(ctx, scope, r.settings.Table, id, patch, r.writeGuard().IsNull("deleted_at"))
	} else {
		err = r.client.Delete(ctx, scope, r.settings.Table, id, r.writeGuard())
	}
	if err != nil {
		if IsNoRows(err) {
			return errors.NewNotFound(r.settings.Resource, id)
		}
		return errors.NewRepository("delete", err)
	}
	r.invalidate()
	return nil
}

// Restore clears the soft-delete marker.
func (r *Cached[T]) Restore(ctx context.Context, scope, id string) (*T, error) {
	if scope == "" {
		return nil, errors.NewValidation("scope id is required")
	}
	if id == "" {
		return nil, errors.NewValidation("id is required")
	}
	if !r.settings.SoftDelete {
		return nil, errors.NewValidation(r.settings.Resource + " cannot be restored")
	}

	patch := map[string]interface{}{"deleted_at": nil, "updated_at": r.now().UTC()}
	raw, err := r.client.Update(ctx, scope, r.settings.Table, id, patch, r.writeGuard().NotNull("deleted_at"))
	if err != nil {
		if IsNoRows(err) {
			return nil, errors.NewNotFound(r.settings.Resource, id)
		}
		return nil, errors.NewRepository("restore", err)
	}

	restored, err := decodeRow[T](raw)
	if err != nil {
		return nil, errors.NewRepository("restore", err)
	}
	r.invalidate()
	return restored, nil
}

// BulkUpdate patches every given id. The batch size is enforced before any
// write is issued; protected records are excluded by the write guard.
func (r *Cached[T]) BulkUpdate(ctx context.Context, scope string, ids []string, patch map[string]interface{}) (int, error) {
	if scope == "" {
		return 0, errors.NewValidation("scope id is required")
	}
	if len(ids) == 0 {
		return 0, errors.NewValidation("at least one id is required")
	}
	if limit := r.MaxBatch(); len(ids) > limit {
		return 0, errors.NewBulkLimitExceeded("update", limit, len(ids))
	}

	patch["updated_at"] = r.now().UTC()
	n, err := r.client.BulkUpdate(ctx, scope, r.settings.Table, ids, patch, r.writeGuard())
	if err != nil {
		return 0, errors.NewRepository("bulkUpdate", err)
	}
	r.invalidate()
	return n, nil
}

// BulkDelete removes every given id, soft or hard per the resource settings,
// with the same fail-fast batch limit as BulkUpdate.
func (r *Cached[T]) BulkDelete(ctx context.Context, scope string, ids []string) (int, error) {
	if scope == "" {
		return 0, errors.NewValidation("scope id is required")
	}
	if len(ids) == 0 {
		return 0, errors.NewValidation("at least one id is required")
	}
	if limit := r.MaxBatch(); len(ids) > limit {
		return 0, errors.NewBulkLimitExceeded("delete", limit, len(ids))
	}

	var (
		n   int
		err error
	)
	if r.settings.SoftDelete {
		patch := map[string]interface{}{"deleted_at": r.now().UTC()}
		n, err = r.client.BulkUpdate(ctx, scope, r.settings.Table, ids, patch, r.writeGuard().IsNull("deleted_at"))
	} else {
		n, err = r.client.BulkDelete(ctx, scope, r.settings.Table, ids, r.writeGuard())
	}
	if err != nil {
		return 0, errors.NewRepository("bulkDelete", err)
	}
	r.invalidate()
	return n, nil
}

// rejectProtected fails with a forbidden error when the target record is
// platform-managed, without issuing the write.
func (r *Cached[T]) rejectProtected(ctx context.Context, scope, id string) error {
	if r.settings.Protected == nil {
		return nil
	}
	record, err := r.FindByID(ctx, scope, id)
	if err != nil {
		return err
	}
	if r.settings.Protected(*record) {
		return errors.NewSystemRecordReadonly(r.settings.Resource, id)
	}
	return nil
}

// invalidate drops every key family that may hold data derived from a
// mutated row. Called unconditionally after each successful write; the brief
// window between write commit and invalidation is accepted, with the TTL as
// the backstop.
func (r *Cached[T]) invalidate() {
	for _, family := range allFamilies {
		r.store.Invalidate(family)
	}
}

func decodeRows[T any](raw []json.RawMessage) ([]T, error) {
	items := make([]T, 0, len(raw))
	for _, row := range raw {
		var item T
		if err := json.Unmarshal(row, &item); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func decodeRow[T any](raw json.RawMessage) (*T, error) {
	var item T
	if err := json.Unmarshal(raw, &item); err != nil {
		return nil, err
	}
	return &item, nil
}
