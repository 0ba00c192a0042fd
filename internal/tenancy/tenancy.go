// Package tenancy resolves the tenant every storage call is bound to.
//
// A Scope can only be obtained through this package, and its zero value is
// invalid, so a repository handed an unresolved scope refuses to build a
// query instead of silently reading across tenants.
package tenancy

import (
	"context"
	"errors"
	"strings"

	"github.com/noah-isme/sma-lifecycle-api/internal/models"
	appErrors "github.com/noah-isme/sma-lifecycle-api/pkg/errors"
)

// ErrNoTenant is returned when the caller has no resolvable tenant.
var ErrNoTenant = appErrors.Clone(appErrors.ErrUnauthenticated, "no tenant resolved for caller")

// Scope binds storage calls to a single tenant.
type Scope struct {
	tenantID string
}

// TenantID returns the bound tenant id.
func (s Scope) TenantID() string { return s.tenantID }

// Valid reports whether the scope was resolved.
func (s Scope) Valid() bool { return s.tenantID != "" }

// FromActor scopes to the tenant of an authenticated actor.
func FromActor(actor *models.ActorContext) (Scope, error) {
	if actor == nil {
		return Scope{}, ErrNoTenant
	}
	return ForTenant(actor.TenantID)
}

// ForTenant scopes to an explicit tenant id. Only trusted entry points
// (bootstrap, slug resolution) should call it directly.
func ForTenant(tenantID string) (Scope, error) {
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return Scope{}, ErrNoTenant
	}
	return Scope{tenantID: tenantID}, nil
}

type tenantLookup interface {
	FindBySlug(ctx context.Context, slug string) (*models.Tenant, error)
}

// Resolver maps public tenant slugs to scopes for anonymous entry points.
type Resolver struct {
	tenants tenantLookup
}

// NewResolver constructs a Resolver.
func NewResolver(tenants tenantLookup) *Resolver {
	return &Resolver{tenants: tenants}
}

// ForSlug resolves an active tenant by slug. Unknown and inactive tenants are
// indistinguishable to the caller.
func (r *Resolver) ForSlug(ctx context.Context, slug string) (Scope, error) {
	slug = strings.ToLower(strings.TrimSpace(slug))
	if slug == "" {
		return Scope{}, appErrors.Clone(appErrors.ErrNotFound, "tenant not found")
	}
	tenant, err := r.tenants.FindBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, appErrors.ErrNotFound) {
			return Scope{}, appErrors.Clone(appErrors.ErrNotFound, "tenant not found")
		}
		return Scope{}, err
	}
	if !tenant.Active {
		return Scope{}, appErrors.Clone(appErrors.ErrNotFound, "tenant not found")
	}
	return ForTenant(tenant.ID)
}
