package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-lifecycle-api/internal/dependency"
	"github.com/noah-isme/sma-lifecycle-api/internal/tenancy"
	"github.com/noah-isme/sma-lifecycle-api/pkg/database"
)

// DependencyRepository inspects the catalog and runs detach statements for the
// dependency resolver.
type DependencyRepository struct {
	dialect database.Dialect
}

// NewDependencyRepository constructs the repository.
func NewDependencyRepository(dialect database.Dialect) *DependencyRepository {
	return &DependencyRepository{dialect: dialect}
}

// ColumnExists reports whether table.column exists in the current schema.
func (r *DependencyRepository) ColumnExists(ctx context.Context, q sqlx.ExtContext, table, column string) (bool, error) {
	var count int
	if err := sqlx.GetContext(ctx, q, &count, q.Rebind(r.dialect.ColumnExistsQuery()), table, column); err != nil {
		return false, fmt.Errorf("inspect %s.%s: %w", table, column, err)
	}
	return count > 0, nil
}

// Detach rewrites the rows of ref pointing at targetID within scope and
// returns how many rows it touched. Reassign falls back to NULL without a
// successor.
func (r *DependencyRepository) Detach(ctx context.Context, q sqlx.ExtContext, scope tenancy.Scope, ref dependency.Reference, targetID string, successorID *string) (int64, error) {
	qb, err := newScopedQuery(scope, ref.Table)
	if err != nil {
		return 0, err
	}
	qb.Where(ref.Column+" = ?", targetID)

	var (
		query string
		args  []interface{}
	)
	switch ref.Action {
	case dependency.ActionCascade:
		query, args = qb.Delete()
	case dependency.ActionReassign:
		query, args = qb.Update([]string{ref.Column + " = ?"}, []interface{}{successorID})
	case dependency.ActionNullify:
		query, args = qb.Update([]string{ref.Column + " = NULL"}, nil)
	default:
		return 0, fmt.Errorf("repository: unknown detach action %q", ref.Action)
	}

	result, err := q.ExecContext(ctx, q.Rebind(query), args...)
	if err != nil {
		return 0, fmt.Errorf("detach %s: %w", ref.String(), err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("check %s detach rows: %w", ref.String(), err)
	}
	return rows, nil
}
