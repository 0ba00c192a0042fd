package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-lifecycle-api/internal/models"
	"github.com/noah-isme/sma-lifecycle-api/internal/tenancy"
	"github.com/noah-isme/sma-lifecycle-api/pkg/database"
	appErrors "github.com/noah-isme/sma-lifecycle-api/pkg/errors"
)

const actorColumns = "id, tenant_id, email, password_hash, full_name, role, active, created_at, updated_at"

// ActorRepository provides database access for actor accounts.
type ActorRepository struct {
	db      *sqlx.DB
	dialect database.Dialect
}

// NewActorRepository creates a new instance of ActorRepository.
func NewActorRepository(db *sqlx.DB, dialect database.Dialect) *ActorRepository {
	return &ActorRepository{db: db, dialect: dialect}
}

// DB exposes the pool for transaction scoping.
func (r *ActorRepository) DB() *sqlx.DB { return r.db }

// FindByID looks an actor up by primary key without a tenant predicate. It
// exists only to resolve the caller's own identity from a verified token; the
// caller compares the row's tenant with the token's.
func (r *ActorRepository) FindByID(ctx context.Context, id string) (*models.Actor, error) {
	query := r.db.Rebind("SELECT " + actorColumns + " FROM actors WHERE id = ? LIMIT 1")
	var actor models.Actor
	if err := r.db.GetContext(ctx, &actor, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "actor not found")
		}
		return nil, fmt.Errorf("find actor by id: %w", err)
	}
	return &actor, nil
}

// FindByEmail looks an actor up for login. Emails are unique across tenants.
func (r *ActorRepository) FindByEmail(ctx context.Context, email string) (*models.Actor, error) {
	query := r.db.Rebind("SELECT " + actorColumns + " FROM actors WHERE email = ? LIMIT 1")
	var actor models.Actor
	if err := r.db.GetContext(ctx, &actor, query, strings.ToLower(email)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "actor not found")
		}
		return nil, fmt.Errorf("find actor by email: %w", err)
	}
	return &actor, nil
}

// Get loads an actor of the scope's tenant, locking it when lock is set.
func (r *ActorRepository) Get(ctx context.Context, q sqlx.ExtContext, scope tenancy.Scope, id string, lock bool) (*models.Actor, error) {
	qb, err := newScopedQuery(scope, "actors")
	if err != nil {
		return nil, err
	}
	suffix := ""
	if lock {
		suffix = r.dialect.LockClause()
	}
	query, args := qb.Where("id = ?", id).Select(actorColumns, suffix)

	var actor models.Actor
	if err := sqlx.GetContext(ctx, q, &actor, q.Rebind(query), args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "actor not found")
		}
		return nil, fmt.Errorf("get actor: %w", err)
	}
	return &actor, nil
}

// Create inserts an actor into the scope's tenant.
func (r *ActorRepository) Create(ctx context.Context, q sqlx.ExtContext, scope tenancy.Scope, actor *models.Actor) error {
	query, args, err := scopedInsert(scope, "actors", map[string]interface{}{
		"id":            actor.ID,
		"email":         strings.ToLower(actor.Email),
		"password_hash": actor.PasswordHash,
		"full_name":     actor.FullName,
		"role":          actor.Role,
		"active":        actor.Active,
		"created_at":    actor.CreatedAt,
		"updated_at":    actor.UpdatedAt,
	})
	if err != nil {
		return err
	}
	if _, err := q.ExecContext(ctx, q.Rebind(query), args...); err != nil {
		if r.dialect.IsUniqueViolation(err) {
			return appErrors.Wrap(err, appErrors.ErrDuplicateRecord.Code, appErrors.ErrDuplicateRecord.Status, "email already registered")
		}
		return fmt.Errorf("create actor: %w", err)
	}
	actor.TenantID = scope.TenantID()
	return nil
}

// List returns actors of the scope's tenant with the total count.
func (r *ActorRepository) List(ctx context.Context, scope tenancy.Scope, filter models.ActorFilter) ([]models.Actor, int, error) {
	qb, err := newScopedQuery(scope, "actors")
	if err != nil {
		return nil, 0, err
	}
	if filter.Role != nil {
		qb.Where("role = ?", *filter.Role)
	}
	if filter.Active != nil {
		qb.Where("active = ?", *filter.Active)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		qb.Where("(LOWER(full_name) LIKE ? OR email LIKE ?)", like, like)
	}

	countQuery, countArgs := qb.Count()
	var total int
	if err := r.db.GetContext(ctx, &total, r.db.Rebind(countQuery), countArgs...); err != nil {
		return nil, 0, fmt.Errorf("count actors: %w", err)
	}

	page, size := NormalizePage(filter.Page, filter.PageSize)
	query, args := qb.Select(actorColumns, fmt.Sprintf("ORDER BY full_name, id LIMIT %d OFFSET %d", size, (page-1)*size))
	var actors []models.Actor
	if err := r.db.SelectContext(ctx, &actors, r.db.Rebind(query), args...); err != nil {
		return nil, 0, fmt.Errorf("list actors: %w", err)
	}
	return actors, total, nil
}

// Delete removes an actor of the scope's tenant.
func (r *ActorRepository) Delete(ctx context.Context, q sqlx.ExtContext, scope tenancy.Scope, id string) error {
	qb, err := newScopedQuery(scope, "actors")
	if err != nil {
		return err
	}
	query, args := qb.Where("id = ?", id).Delete()
	result, err := q.ExecContext(ctx, q.Rebind(query), args...)
	if err != nil {
		return fmt.Errorf("delete actor: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check actor delete rows: %w", err)
	}
	if rows == 0 {
		return appErrors.Clone(appErrors.ErrNotFound, "actor not found")
	}
	return nil
}
