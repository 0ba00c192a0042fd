package service

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-lifecycle-api/internal/models"
	"github.com/noah-isme/sma-lifecycle-api/internal/repository"
	"github.com/noah-isme/sma-lifecycle-api/internal/tenancy"
	appErrors "github.com/noah-isme/sma-lifecycle-api/pkg/errors"
)

type uniquenessStore interface {
	Exists(ctx context.Context, q sqlx.ExtContext, scope tenancy.Scope, t models.RecordType, key map[string]interface{}, excludeID string) (bool, error)
	KeyValues(ctx context.Context, q sqlx.ExtContext, scope tenancy.Scope, t models.RecordType, id string) (map[string]interface{}, error)
}

// UniquenessGuard fails fast on a duplicate key before the write. The unique
// index stays authoritative: a race past the guard still ends in
// DUPLICATE_RECORD through the repository's violation mapping.
type UniquenessGuard struct {
	store uniquenessStore
}

// NewUniquenessGuard constructs the guard.
func NewUniquenessGuard(store uniquenessStore) *UniquenessGuard {
	return &UniquenessGuard{store: store}
}

// CheckCreate rejects a new row whose key is already taken in the tenant.
func (g *UniquenessGuard) CheckCreate(ctx context.Context, q sqlx.ExtContext, scope tenancy.Scope, t models.RecordType, values map[string]interface{}) error {
	return g.check(ctx, q, scope, t, values, "")
}

// CheckUpdate rejects an edit that would move the row onto another row's key.
// It only reads the store when changes touch a key column.
func (g *UniquenessGuard) CheckUpdate(ctx context.Context, q sqlx.ExtContext, scope tenancy.Scope, t models.RecordType, id string, changes map[string]interface{}) error {
	key := repository.UniqueKey(t)
	touched := false
	for _, column := range key {
		if _, ok := changes[column]; ok {
			touched = true
			break
		}
	}
	if !touched {
		return nil
	}

	current, err := g.store.KeyValues(ctx, q, scope, t, id)
	if err != nil {
		return err
	}
	merged := make(map[string]interface{}, len(key))
	for _, column := range key {
		if value, ok := changes[column]; ok {
			merged[column] = value
			continue
		}
		merged[column] = current[column]
	}
	return g.check(ctx, q, scope, t, merged, id)
}

func (g *UniquenessGuard) check(ctx context.Context, q sqlx.ExtContext, scope tenancy.Scope, t models.RecordType, values map[string]interface{}, excludeID string) error {
	if len(repository.UniqueKey(t)) == 0 {
		return nil
	}
	exists, err := g.store.Exists(ctx, q, scope, t, values, excludeID)
	if err != nil {
		return err
	}
	if exists {
		return appErrors.Clone(appErrors.ErrDuplicateRecord, fmt.Sprintf("a %s with the same key already exists", t))
	}
	return nil
}
