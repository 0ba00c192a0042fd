package repository

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/noah-isme/sma-lifecycle-api/internal/tenancy"
)

// ErrUnscoped is returned when a query is built from an unresolved scope.
var ErrUnscoped = errors.New("repository: query requires a resolved tenant scope")

// scopedQuery builds statements against one table of one tenant. The tenant
// predicate is always the first condition and cannot be removed, so every
// statement produced here is bounded to the scope's tenant. Placeholders are
// written as '?' and must be passed through Rebind before execution.
type scopedQuery struct {
	table string
	conds []string
	args  []interface{}
}

func newScopedQuery(scope tenancy.Scope, table string) (*scopedQuery, error) {
	if !scope.Valid() {
		return nil, ErrUnscoped
	}
	return &scopedQuery{
		table: table,
		conds: []string{"tenant_id = ?"},
		args:  []interface{}{scope.TenantID()},
	}, nil
}

// Where adds an AND condition.
func (q *scopedQuery) Where(cond string, args ...interface{}) *scopedQuery {
	q.conds = append(q.conds, cond)
	q.args = append(q.args, args...)
	return q
}

// WhereIn adds "column IN (...)". An empty set matches nothing.
func (q *scopedQuery) WhereIn(column string, values []string) *scopedQuery {
	if len(values) == 0 {
		q.conds = append(q.conds, "1 = 0")
		return q
	}
	placeholders := make([]string, len(values))
	for i, v := range values {
		placeholders[i] = "?"
		q.args = append(q.args, v)
	}
	q.conds = append(q.conds, fmt.Sprintf("%s IN (%s)", column, strings.Join(placeholders, ", ")))
	return q
}

func (q *scopedQuery) where() string {
	return " WHERE " + strings.Join(q.conds, " AND ")
}

// Select renders SELECT columns FROM table WHERE ... suffix.
func (q *scopedQuery) Select(columns, suffix string) (string, []interface{}) {
	query := "SELECT " + columns + " FROM " + q.table + q.where()
	if suffix != "" {
		query += " " + strings.TrimSpace(suffix)
	}
	return query, q.args
}

// Count renders SELECT COUNT(*) for the current conditions.
func (q *scopedQuery) Count() (string, []interface{}) {
	return q.Select("COUNT(*)", "")
}

// Update renders UPDATE table SET ... WHERE .... Set arguments precede the
// condition arguments.
func (q *scopedQuery) Update(set []string, setArgs []interface{}) (string, []interface{}) {
	args := make([]interface{}, 0, len(setArgs)+len(q.args))
	args = append(args, setArgs...)
	args = append(args, q.args...)
	return "UPDATE " + q.table + " SET " + strings.Join(set, ", ") + q.where(), args
}

// Delete renders DELETE FROM table WHERE ....
func (q *scopedQuery) Delete() (string, []interface{}) {
	return "DELETE FROM " + q.table + q.where(), q.args
}

// scopedInsert renders an INSERT whose tenant_id column comes from the scope.
// Columns are emitted in sorted order so statements are deterministic.
func scopedInsert(scope tenancy.Scope, table string, values map[string]interface{}) (string, []interface{}, error) {
	if !scope.Valid() {
		return "", nil, ErrUnscoped
	}
	if _, ok := values["tenant_id"]; ok {
		return "", nil, fmt.Errorf("repository: tenant_id is set from the scope")
	}

	columns := make([]string, 0, len(values))
	for column := range values {
		columns = append(columns, column)
	}
	sort.Strings(columns)

	args := make([]interface{}, 0, len(columns)+1)
	args = append(args, scope.TenantID())
	placeholders := make([]string, 0, len(columns)+1)
	placeholders = append(placeholders, "?")
	for _, column := range columns {
		args = append(args, values[column])
		placeholders = append(placeholders, "?")
	}

	query := fmt.Sprintf("INSERT INTO %s (tenant_id, %s) VALUES (%s)",
		table,
		strings.Join(columns, ", "),
		strings.Join(placeholders, ", "),
	)
	return query, args, nil
}
