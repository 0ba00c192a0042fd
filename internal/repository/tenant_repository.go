package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-lifecycle-api/internal/models"
	"github.com/noah-isme/sma-lifecycle-api/pkg/database"
	appErrors "github.com/noah-isme/sma-lifecycle-api/pkg/errors"
)

const tenantColumns = "id, name, slug, active, created_at, updated_at"

// TenantRepository stores tenants. Tenants are the scope root, so its
// queries are the only unscoped ones in the package.
type TenantRepository struct {
	db      *sqlx.DB
	dialect database.Dialect
}

// NewTenantRepository constructs the repository.
func NewTenantRepository(db *sqlx.DB, dialect database.Dialect) *TenantRepository {
	return &TenantRepository{db: db, dialect: dialect}
}

// FindBySlug returns the tenant with the given slug.
func (r *TenantRepository) FindBySlug(ctx context.Context, slug string) (*models.Tenant, error) {
	return r.findOne(ctx, "slug", strings.ToLower(slug))
}

// FindByID returns the tenant with the given id.
func (r *TenantRepository) FindByID(ctx context.Context, id string) (*models.Tenant, error) {
	return r.findOne(ctx, "id", id)
}

func (r *TenantRepository) findOne(ctx context.Context, column, value string) (*models.Tenant, error) {
	query := r.db.Rebind("SELECT " + tenantColumns + " FROM tenants WHERE " + column + " = ? LIMIT 1")
	var tenant models.Tenant
	if err := r.db.GetContext(ctx, &tenant, query, value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "tenant not found")
		}
		return nil, fmt.Errorf("find tenant by %s: %w", column, err)
	}
	return &tenant, nil
}

// Create inserts a tenant.
func (r *TenantRepository) Create(ctx context.Context, q sqlx.ExtContext, tenant *models.Tenant) error {
	query := q.Rebind(`INSERT INTO tenants (id, name, slug, active, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`)
	_, err := q.ExecContext(ctx, query, tenant.ID, tenant.Name, strings.ToLower(tenant.Slug), tenant.Active, tenant.CreatedAt, tenant.UpdatedAt)
	if err != nil {
		if r.dialect.IsUniqueViolation(err) {
			return appErrors.Wrap(err, appErrors.ErrDuplicateRecord.Code, appErrors.ErrDuplicateRecord.Status, "tenant slug already taken")
		}
		return fmt.Errorf("create tenant: %w", err)
	}
	return nil
}
