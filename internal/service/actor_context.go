package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-lifecycle-api/internal/models"
	appErrors "github.com/noah-isme/sma-lifecycle-api/pkg/errors"
)

type actorLookup interface {
	FindByID(ctx context.Context, id string) (*models.Actor, error)
}

// ActorContextService turns verified token claims into the caller identity
// used for every authorization decision.
type ActorContextService struct {
	actors actorLookup
	logger *zap.Logger
}

// NewActorContextService constructs the resolver.
func NewActorContextService(actors actorLookup, logger *zap.Logger) *ActorContextService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ActorContextService{actors: actors, logger: logger}
}

// Resolve loads the actor named by claims. The role always comes from the
// stored row, never from the token.
func (s *ActorContextService) Resolve(ctx context.Context, claims *models.JWTClaims) (*models.ActorContext, error) {
	if claims == nil || claims.ActorID == "" {
		return nil, appErrors.ErrUnauthenticated
	}

	actor, err := s.actors.FindByID(ctx, claims.ActorID)
	if err != nil {
		if errors.Is(err, appErrors.ErrNotFound) {
			return nil, appErrors.Clone(appErrors.ErrUnauthenticated, "actor no longer exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load actor")
	}
	if !actor.Active {
		return nil, appErrors.Clone(appErrors.ErrUnauthenticated, "actor is inactive")
	}
	if actor.TenantID != claims.TenantID {
		s.logger.Warn("token tenant does not match actor tenant",
			zap.String("actor_id", actor.ID),
			zap.String("token_tenant_id", claims.TenantID),
		)
		return nil, appErrors.ErrTenantMismatch
	}

	return &models.ActorContext{
		ActorID:  actor.ID,
		TenantID: actor.TenantID,
		Role:     actor.Role,
		Email:    actor.Email,
		FullName: actor.FullName,
	}, nil
}

// CheckTenant rejects requests that name a tenant other than the caller's.
func (s *ActorContextService) CheckTenant(actor *models.ActorContext, tenantID string) error {
	if actor == nil {
		return appErrors.ErrUnauthenticated
	}
	if tenantID != "" && tenantID != actor.TenantID {
		return appErrors.ErrTenantMismatch
	}
	return nil
}
