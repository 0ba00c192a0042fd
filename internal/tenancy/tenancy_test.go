package tenancy

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-lifecycle-api/internal/models"
	appErrors "github.com/noah-isme/sma-lifecycle-api/pkg/errors"
)

type tenantLookupStub struct {
	tenants map[string]*models.Tenant
	err     error
}

func (s *tenantLookupStub) FindBySlug(_ context.Context, slug string) (*models.Tenant, error) {
	if s.err != nil {
		return nil, s.err
	}
	if t, ok := s.tenants[slug]; ok {
		return t, nil
	}
	return nil, appErrors.ErrNotFound
}

func TestZeroScopeIsInvalid(t *testing.T) {
	var s Scope
	assert.False(t, s.Valid())
	assert.Empty(t, s.TenantID())
}

func TestFromActorFailsClosed(t *testing.T) {
	_, err := FromActor(nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrUnauthenticated))

	_, err = FromActor(&models.ActorContext{ActorID: "a1", Role: models.RoleContributor})
	assert.ErrorIs(t, err, ErrNoTenant)

	scope, err := FromActor(&models.ActorContext{ActorID: "a1", TenantID: "t1"})
	require.NoError(t, err)
	assert.True(t, scope.Valid())
	assert.Equal(t, "t1", scope.TenantID())
}

func TestResolverForSlug(t *testing.T) {
	lookup := &tenantLookupStub{tenants: map[string]*models.Tenant{
		"north":  {ID: "t-north", Slug: "north", Active: true},
		"closed": {ID: "t-closed", Slug: "closed", Active: false},
	}}
	resolver := NewResolver(lookup)

	scope, err := resolver.ForSlug(context.Background(), " North ")
	require.NoError(t, err)
	assert.Equal(t, "t-north", scope.TenantID())

	_, err = resolver.ForSlug(context.Background(), "closed")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	_, err = resolver.ForSlug(context.Background(), "missing")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	_, err = resolver.ForSlug(context.Background(), "")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestResolverPropagatesStoreErrors(t *testing.T) {
	boom := errors.New("connection refused")
	resolver := NewResolver(&tenantLookupStub{err: boom})

	_, err := resolver.ForSlug(context.Background(), "north")
	assert.ErrorIs(t, err, boom)
}
