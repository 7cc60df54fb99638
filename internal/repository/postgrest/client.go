// Package postgrest implements repository.DataClient on top of the Supabase
// PostgREST API. This is the production adapter; tests and local development
// use the memory adapter.
package postgrest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/supabase-community/postgrest-go"
	"github.com/supabase-community/supabase-go"

	"backoffice-backend/internal/repository"
)

// Client adapts a Supabase client to the DataClient port. postgrest-go
// builds and sends its own requests without taking a context, so the ctx
// parameters here cannot interrupt a sub-query once Execute has started;
// callers running sibling sub-queries (rows plus count) must expect the
// loser to run to completion even after the group context is canceled.
// This layer only translates predicates and error shapes.
type Client struct {
	sb *supabase.Client
}

// New creates the adapter.
func New(url, serviceRoleKey, schema string) (*Client, error) {
	opts := &supabase.ClientOptions{}
	if schema != "" {
		opts.Schema = schema
	}
	sb, err := supabase.NewClient(url, serviceRoleKey, opts)
	if err != nil {
		return nil, fmt.Errorf("create supabase client: %w", err)
	}
	return &Client{sb: sb}, nil
}

// Select implements repository.DataClient.
func (c *Client) Select(ctx context.Context, scope, table string, filter repository.Filter, sortBy *repository.Sort, page repository.Pagination) ([]json.RawMessage, error) {
	fb := c.sb.From(table).Select("*", "", false).Eq("company_id", scope)
	fb = applyFilter(fb, filter)
	if sortBy != nil {
		fb = fb.Order(sortBy.Column, &postgrest.OrderOpts{Ascending: !sortBy.Descending})
	}
	if page.Limit > 0 {
		fb = fb.Range(page.Offset, page.Offset+page.Limit-1, "")
	}

	data, _, err := fb.Execute()
	if err != nil {
		return nil, translate(err)
	}
	var rows []json.RawMessage
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("decode select response: %w", err)
	}
	return rows, nil
}

// Count implements repository.DataClient using a head request with an exact
// count, so no row payload crosses the wire.
func (c *Client) Count(ctx context.Context, scope, table string, filter repository.Filter) (int64, error) {
	fb := c.sb.From(table).Select("id", "exact", true).Eq("company_id", scope)
	fb = applyFilter(fb, filter)
	_, count, err := fb.Execute()
	if err != nil {
		return 0, translate(err)
	}
	return count, nil
}

// Distinct implements repository.DataClient. PostgREST has no distinct
// projection, so the column is fetched and deduplicated here.
func (c *Client) Distinct(ctx context.Context, scope, table, column string, filter repository.Filter) ([]string, error) {
	fb := c.sb.From(table).Select(column, "", false).Eq("company_id", scope)
	fb = applyFilter(fb, filter)
	data, _, err := fb.Execute()
	if err != nil {
		return nil, translate(err)
	}

	var rows []map[string]interface{}
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("decode distinct response: %w", err)
	}
	seen := make(map[string]bool)
	var values []string
	for _, row := range rows {
		v := stringify(row[column])
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		values = append(values, v)
	}
	return values, nil
}

// Insert implements repository.DataClient.
func (c *Client) Insert(ctx context.Context, scope, table string, record interface{}) (json.RawMessage, error) {
	payload, err := toMap(record)
	if err != nil {
		return nil, err
	}
	payload["company_id"] = scope
	stripEmpty(payload, "id", "created_at", "updated_at", "deleted_at")

	data, _, err := c.sb.From(table).Insert(payload, false, "", "representation", "").Execute()
	if err != nil {
		return nil, translate(err)
	}
	return firstRow(data)
}

// Update implements repository.DataClient.
func (c *Client) Update(ctx context.Context, scope, table, id string, patch map[string]interface{}, guard repository.Filter) (json.RawMessage, error) {
	fb := c.sb.From(table).Update(patch, "representation", "").
		Eq("company_id", scope).
		Eq("id", id)
	fb = applyFilter(fb, guard)

	data, _, err := fb.Execute()
	if err != nil {
		return nil, translate(err)
	}
	return firstRow(data)
}

// Delete implements repository.DataClient.
func (c *Client) Delete(ctx context.Context, scope, table, id string, guard repository.Filter) error {
	fb := c.sb.From(table).Delete("representation", "").
		Eq("company_id", scope).
		Eq("id", id)
	fb = applyFilter(fb, guard)

	data, _, err := fb.Execute()
	if err != nil {
		return translate(err)
	}
	if _, err := firstRow(data); err != nil {
		return err
	}
	return nil
}

// BulkUpdate implements repository.DataClient.
func (c *Client) BulkUpdate(ctx context.Context, scope, table string, ids []string, patch map[string]interface{}, guard repository.Filter) (int, error) {
	fb := c.sb.From(table).Update(patch, "representation", "").
		Eq("company_id", scope).
		In("id", ids)
	fb = applyFilter(fb, guard)

	data, _, err := fb.Execute()
	if err != nil {
		return 0, translate(err)
	}
	return rowCount(data)
}

// BulkDelete implements repository.DataClient.
func (c *Client) BulkDelete(ctx context.Context, scope, table string, ids []string, guard repository.Filter) (int, error) {
	fb := c.sb.From(table).Delete("representation", "").
		Eq("company_id", scope).
		In("id", ids)
	fb = applyFilter(fb, guard)

	data, _, err := fb.Execute()
	if err != nil {
		return 0, translate(err)
	}
	return rowCount(data)
}

func applyFilter(fb *postgrest.FilterBuilder, filter repository.Filter) *postgrest.FilterBuilder {
	for _, cond := range filter {
		switch cond.Op {
		case repository.OpEq:
			fb = fb.Eq(cond.Column, stringify(cond.Value))
		case repository.OpNeq:
			fb = fb.Neq(cond.Column, stringify(cond.Value))
		case repository.OpIn:
			if values, ok := cond.Value.([]string); ok {
				fb = fb.In(cond.Column, values)
			}
		case repository.OpILike:
			fb = fb.Ilike(cond.Column, stringify(cond.Value))
		case repository.OpGte:
			fb = fb.Gte(cond.Column, stringify(cond.Value))
		case repository.OpLte:
			fb = fb.Lte(cond.Column, stringify(cond.Value))
		case repository.OpIsNull:
			fb = fb.Is(cond.Column, "null")
		case repository.OpNotNull:
			fb = fb.Filter(cond.Column, "not.is", "null")
		}
	}
	return fb
}

// translate maps PostgREST error payloads to the port's sentinels.
func translate(err error) error {
	msg := err.Error()
	if strings.Contains(msg, "23505") || strings.Contains(msg, "duplicate key") {
		return fmt.Errorf("%w: %s", repository.ErrUniqueViolation, msg)
	}
	return err
}

// firstRow unwraps a representation response; an empty array means the
// write's predicate matched nothing.
func firstRow(data []byte) (json.RawMessage, error) {
	var rows []json.RawMessage
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("decode write response: %w", err)
	}
	if len(rows) == 0 {
		return nil, repository.ErrNoRows
	}
	return rows[0], nil
}

func rowCount(data []byte) (int, error) {
	var rows []json.RawMessage
	if err := json.Unmarshal(data, &rows); err != nil {
		return 0, fmt.Errorf("decode write response: %w", err)
	}
	return len(rows), nil
}

func toMap(record interface{}) (map[string]interface{}, error) {
	encoded, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	var payload map[string]interface{}
	if err := json.Unmarshal(encoded, &payload); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	return payload, nil
}

// stripEmpty removes zero-valued columns so database defaults apply.
func stripEmpty(payload map[string]interface{}, columns ...string) {
	for _, column := range columns {
		switch v := payload[column].(type) {
		case nil:
			delete(payload, column)
		case string:
			if v == "" || strings.HasPrefix(v, "0001-01-01") {
				delete(payload, column)
			}
		}
	}
}

func stringify(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case time.Time:
		return val.UTC().Format(time.RFC3339Nano)
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprintf("%v", val)
	}
}
