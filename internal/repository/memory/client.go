// Package memory implements repository.DataClient against in-process maps.
// It backs the test suites and the local development mode; production uses
// the postgrest adapter.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"backoffice-backend/internal/repository"
)

type row = map[string]interface{}

// TableSpec declares the unique constraints of one table. Each entry is a
// column set that must be unique per company among non-deleted rows.
type TableSpec struct {
	UniqueBy [][]string
}

// Client is an in-memory DataClient. All rows live behind one mutex; the
// JSON round trip on insert keeps stored values in the same shape the
// postgrest adapter would return.
type Client struct {
	mu     sync.Mutex
	tables map[string][]row
	specs  map[string]TableSpec

	// calls counts operations per "op:table", for asserting that guarded
	// paths never reach the data client.
	calls map[string]int

	// failures maps "op:table" to an error to inject.
	failures map[string]error

	now func() time.Time
}

// NewClient creates an empty client with the given table specs.
func NewClient(specs map[string]TableSpec) *Client {
	if specs == nil {
		specs = map[string]TableSpec{}
	}
	return &Client{
		tables:   make(map[string][]row),
		specs:    specs,
		calls:    make(map[string]int),
		failures: make(map[string]error),
		now:      time.Now,
	}
}

// SetError injects an error for the given operation and table.
func (c *Client) SetError(op, table string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures[op+":"+table] = err
}

// Calls returns how many times the given operation hit the given table.
func (c *Client) Calls(op, table string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[op+":"+table]
}

// RowCount returns the number of stored rows in a table across all scopes.
func (c *Client) RowCount(table string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tables[table])
}

func (c *Client) track(op, table string) error {
	c.calls[op+":"+table]++
	if err := c.failures[op+":"+table]; err != nil {
		return err
	}
	return nil
}

// Select implements repository.DataClient.
func (c *Client) Select(ctx context.Context, scope, table string, filter repository.Filter, sortBy *repository.Sort, page repository.Pagination) ([]json.RawMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.track("select", table); err != nil {
		return nil, err
	}

	matched := c.matchLocked(scope, table, filter)
	if sortBy != nil {
		sortRows(matched, *sortBy)
	}

	start := page.Offset
	if start > len(matched) {
		start = len(matched)
	}
	end := start + page.Limit
	if page.Limit <= 0 || end > len(matched) {
		end = len(matched)
	}

	out := make([]json.RawMessage, 0, end-start)
	for _, r := range matched[start:end] {
		encoded, err := json.Marshal(r)
		if err != nil {
			return nil, err
		}
		out = append(out, encoded)
	}
	return out, nil
}

// Count implements repository.DataClient.
func (c *Client) Count(ctx context.Context, scope, table string, filter repository.Filter) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.track("count", table); err != nil {
		return 0, err
	}
	return int64(len(c.matchLocked(scope, table, filter))), nil
}

// Distinct implements repository.DataClient.
func (c *Client) Distinct(ctx context.Context, scope, table, column string, filter repository.Filter) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.track("distinct", table); err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var values []string
	for _, r := range c.matchLocked(scope, table, filter) {
		v := stringValue(r[column])
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		values = append(values, v)
	}
	sort.Strings(values)
	return values, nil
}

// Insert implements repository.DataClient. Missing id/timestamps are filled
// in the way the database defaults would.
func (c *Client) Insert(ctx context.Context, scope, table string, record interface{}) (json.RawMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.track("insert", table); err != nil {
		return nil, err
	}

	encoded, err := json.Marshal(record)
	if err != nil {
		return nil, err
	}
	var r row
	if err := json.Unmarshal(encoded, &r); err != nil {
		return nil, err
	}

	r["company_id"] = scope
	if stringValue(r["id"]) == "" {
		r["id"] = uuid.New().String()
	}
	stamp := c.now().UTC().Format(time.RFC3339Nano)
	if stringValue(r["created_at"]) == "" || strings.HasPrefix(stringValue(r["created_at"]), "0001-") {
		r["created_at"] = stamp
	}
	r["updated_at"] = stamp

	if err := c.checkUniqueLocked(scope, table, r, ""); err != nil {
		return nil, err
	}

	c.tables[table] = append(c.tables[table], r)
	return json.Marshal(r)
}

// Update implements repository.DataClient.
func (c *Client) Update(ctx context.Context, scope, table, id string, patch map[string]interface{}, guard repository.Filter) (json.RawMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.track("update", table); err != nil {
		return nil, err
	}

	for _, r := range c.tables[table] {
		if stringValue(r["company_id"]) != scope || stringValue(r["id"]) != id {
			continue
		}
		if !matches(r, guard) {
			continue
		}
		updated := applyPatch(r, patch)
		if err := c.checkUniqueLocked(scope, table, updated, id); err != nil {
			return nil, err
		}
		for k, v := range updated {
			r[k] = v
		}
		for k := range r {
			if _, ok := updated[k]; !ok {
				delete(r, k)
			}
		}
		return json.Marshal(r)
	}
	return nil, repository.ErrNoRows
}

// Delete implements repository.DataClient.
func (c *Client) Delete(ctx context.Context, scope, table, id string, guard repository.Filter) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.track("delete", table); err != nil {
		return err
	}

	rows := c.tables[table]
	for i, r := range rows {
		if stringValue(r["company_id"]) != scope || stringValue(r["id"]) != id {
			continue
		}
		if !matches(r, guard) {
			continue
		}
		c.tables[table] = append(rows[:i], rows[i+1:]...)
		return nil
	}
	return repository.ErrNoRows
}

// BulkUpdate implements repository.DataClient.
func (c *Client) BulkUpdate(ctx context.Context, scope, table string, ids []string, patch map[string]interface{}, guard repository.Filter) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.track("bulkUpdate", table); err != nil {
		return 0, err
	}

	wanted := toSet(ids)
	updated := 0
	for _, r := range c.tables[table] {
		if stringValue(r["company_id"]) != scope || !wanted[stringValue(r["id"])] {
			continue
		}
		if !matches(r, guard) {
			continue
		}
		for k, v := range patch {
			if v == nil {
				delete(r, k)
				continue
			}
			r[k] = normalize(v)
		}
		updated++
	}
	return updated, nil
}

// BulkDelete implements repository.DataClient.
func (c *Client) BulkDelete(ctx context.Context, scope, table string, ids []string, guard repository.Filter) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.track("bulkDelete", table); err != nil {
		return 0, err
	}

	wanted := toSet(ids)
	kept := c.tables[table][:0]
	removed := 0
	for _, r := range c.tables[table] {
		if stringValue(r["company_id"]) == scope && wanted[stringValue(r["id"])] && matches(r, guard) {
			removed++
			continue
		}
		kept = append(kept, r)
	}
	c.tables[table] = kept
	return removed, nil
}

// matchLocked returns the rows of table in scope matching filter.
func (c *Client) matchLocked(scope, table string, filter repository.Filter) []row {
	var out []row
	for _, r := range c.tables[table] {
		if stringValue(r["company_id"]) != scope {
			continue
		}
		if matches(r, filter) {
			out = append(out, r)
		}
	}
	return out
}

func (c *Client) checkUniqueLocked(scope, table string, candidate row, excludeID string) error {
	spec := c.specs[table]
	for _, columns := range spec.UniqueBy {
		for _, existing := range c.tables[table] {
			if stringValue(existing["company_id"]) != scope {
				continue
			}
			if excludeID != "" && stringValue(existing["id"]) == excludeID {
				continue
			}
			if existing["deleted_at"] != nil {
				continue
			}
			same := true
			for _, col := range columns {
				if stringValue(existing[col]) != stringValue(candidate[col]) {
					same = false
					break
				}
			}
			if same {
				return fmt.Errorf("%w: %s(%s)", repository.ErrUniqueViolation, table, strings.Join(columns, ","))
			}
		}
	}
	return nil
}

func applyPatch(r row, patch map[string]interface{}) row {
	out := make(row, len(r))
	for k, v := range r {
		out[k] = v
	}
	for k, v := range patch {
		if v == nil {
			delete(out, k)
			continue
		}
		out[k] = normalize(v)
	}
	return out
}

// normalize pushes a patch value through JSON so stored shapes stay
// consistent with inserted rows.
func normalize(v interface{}) interface{} {
	encoded, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out interface{}
	if err := json.Unmarshal(encoded, &out); err != nil {
		return v
	}
	return out
}

func matches(r row, filter repository.Filter) bool {
	for _, cond := range filter {
		if !matchCondition(r, cond) {
			return false
		}
	}
	return true
}

func matchCondition(r row, cond repository.Condition) bool {
	value, present := r[cond.Column]
	switch cond.Op {
	case repository.OpIsNull:
		return !present || value == nil
	case repository.OpNotNull:
		return present && value != nil
	case repository.OpEq:
		return compare(value, cond.Value) == 0
	case repository.OpNeq:
		return compare(value, cond.Value) != 0
	case repository.OpIn:
		values, ok := cond.Value.([]string)
		if !ok {
			return false
		}
		for _, candidate := range values {
			if stringValue(value) == candidate {
				return true
			}
		}
		return false
	case repository.OpILike:
		pattern := strings.ToLower(strings.Trim(stringValue(cond.Value), "%"))
		return strings.Contains(strings.ToLower(stringValue(value)), pattern)
	case repository.OpGte:
		return compare(value, cond.Value) >= 0
	case repository.OpLte:
		return compare(value, cond.Value) <= 0
	default:
		return false
	}
}

// compare orders two values numerically when both parse as numbers and
// lexically otherwise; RFC 3339 timestamps order correctly as strings.
func compare(a, b interface{}) int {
	as, bs := stringValue(a), stringValue(b)
	af, errA := strconv.ParseFloat(as, 64)
	bf, errB := strconv.ParseFloat(bs, 64)
	if errA == nil && errB == nil {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(as, bs)
}

func stringValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case time.Time:
		return val.UTC().Format(time.RFC3339Nano)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return fmt.Sprintf("%v", val)
	}
}

func sortRows(rows []row, by repository.Sort) {
	sort.SliceStable(rows, func(i, j int) bool {
		c := compare(rows[i][by.Column], rows[j][by.Column])
		if by.Descending {
			return c > 0
		}
		return c < 0
	})
}

func toSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
