package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/sma-lifecycle-api/internal/dependency"
	"github.com/noah-isme/sma-lifecycle-api/internal/dto"
	"github.com/noah-isme/sma-lifecycle-api/internal/models"
	"github.com/noah-isme/sma-lifecycle-api/internal/policy"
	"github.com/noah-isme/sma-lifecycle-api/internal/tenancy"
	"github.com/noah-isme/sma-lifecycle-api/pkg/database"
	appErrors "github.com/noah-isme/sma-lifecycle-api/pkg/errors"
	"github.com/noah-isme/sma-lifecycle-api/pkg/telemetry"
)

type actorStore interface {
	DB() *sqlx.DB
	Get(ctx context.Context, q sqlx.ExtContext, scope tenancy.Scope, id string, lock bool) (*models.Actor, error)
	Create(ctx context.Context, q sqlx.ExtContext, scope tenancy.Scope, actor *models.Actor) error
	List(ctx context.Context, scope tenancy.Scope, filter models.ActorFilter) ([]models.Actor, int, error)
	Delete(ctx context.Context, q sqlx.ExtContext, scope tenancy.Scope, id string) error
}

// ActorService manages the actor accounts of a tenant.
type ActorService struct {
	actors    actorStore
	resolver  *DependencyResolver
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// NewActorService constructs the service. cache may be nil.
func NewActorService(actors actorStore, resolver *DependencyResolver, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *ActorService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &ActorService{
		actors:    actors,
		resolver:  resolver,
		cache:     cache,
		validator: validate,
		logger:    logger,
		tracer:    telemetry.Tracer(),
		now:       time.Now,
	}
}

// Create registers a new actor in the caller's tenant.
func (s *ActorService) Create(ctx context.Context, actor *models.ActorContext, req dto.CreateActorRequest) (*models.Actor, error) {
	scope, err := tenancy.FromActor(actor)
	if err != nil {
		return nil, err
	}
	if err := policy.Authorize(actor, models.ActionCreateActor, policy.Target{}).Err(); err != nil {
		return nil, err
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.FullName = strings.TrimSpace(req.FullName)
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid actor payload")
	}
	role, ok := models.ParseRole(req.Role)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown role %q", req.Role))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	now := s.now().UTC()
	created := &models.Actor{
		ID:           uuid.NewString(),
		Email:        req.Email,
		PasswordHash: string(hash),
		FullName:     req.FullName,
		Role:         role,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.actors.Create(ctx, s.actors.DB(), scope, created); err != nil {
		return nil, appErrors.Storage(err, "failed to create actor")
	}

	s.logger.Info("actor created",
		zap.String("actor_id", created.ID),
		zap.String("tenant_id", scope.TenantID()),
		zap.String("role", string(role)),
	)
	return created, nil
}

// List returns the actors of the caller's tenant.
func (s *ActorService) List(ctx context.Context, actor *models.ActorContext, query dto.ActorQuery) ([]models.Actor, int, error) {
	scope, err := tenancy.FromActor(actor)
	if err != nil {
		return nil, 0, err
	}
	if err := policy.Authorize(actor, models.ActionListActors, policy.Target{}).Err(); err != nil {
		return nil, 0, err
	}

	filter := models.ActorFilter{Active: query.Active, Search: query.Search, Page: query.Page, PageSize: query.PageSize}
	if query.Role != "" {
		role, ok := models.ParseRole(query.Role)
		if !ok {
			return nil, 0, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown role %q", query.Role))
		}
		filter.Role = &role
	}

	actors, total, err := s.actors.List(ctx, scope, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list actors")
	}
	return actors, total, nil
}

// Delete removes an actor. Records the actor owns move to successorID when
// given, otherwise their owner is cleared; review stamps are cleared. The
// whole rewrite and the delete commit or roll back together.
func (s *ActorService) Delete(ctx context.Context, actor *models.ActorContext, targetID, successorID string) (err error) {
	ctx, span := s.tracer.Start(ctx, "actors.Delete", trace.WithAttributes(attribute.Bool("actor.successor", successorID != "")))
	defer func() {
		telemetry.RecordError(span, err)
		span.End()
	}()

	scope, err := tenancy.FromActor(actor)
	if err != nil {
		return err
	}
	if err := policy.Authorize(actor, models.ActionDeleteActor, policy.Target{ActorID: targetID}).Err(); err != nil {
		return err
	}
	target, err := uuid.Parse(targetID)
	if err != nil {
		return appErrors.Clone(appErrors.ErrNotFound, "actor not found")
	}
	targetID = target.String()
	if targetID == actor.ActorID {
		return appErrors.ErrSelfDeletion
	}

	var successor *string
	if successorID != "" {
		parsed, err := uuid.Parse(successorID)
		if err != nil {
			return appErrors.Clone(appErrors.ErrValidation, "successor is not an actor of this tenant")
		}
		id := parsed.String()
		if id == targetID {
			return appErrors.Clone(appErrors.ErrValidation, "an actor cannot succeed itself")
		}
		successor = &id
	}

	var report *DetachReport
	err = database.WithTx(ctx, s.actors.DB(), func(tx *sqlx.Tx) error {
		if _, err := s.actors.Get(ctx, tx, scope, targetID, true); err != nil {
			return err
		}
		if successor != nil {
			if _, err := s.actors.Get(ctx, tx, scope, *successor, true); err != nil {
				if appErr := asAppError(err); appErr != nil && appErr.Code == appErrors.ErrNotFound.Code {
					return appErrors.Clone(appErrors.ErrValidation, "successor is not an actor of this tenant")
				}
				return err
			}
		}
		var err error
		report, err = s.resolver.Resolve(ctx, tx, scope, dependency.EntityActor, targetID, successor)
		if err != nil {
			return err
		}
		return s.actors.Delete(ctx, tx, scope, targetID)
	})
	if err != nil {
		return appErrors.Storage(err, "failed to delete actor")
	}

	for _, t := range models.RecordTypes {
		if s.cache.Enabled() {
			_ = s.cache.Invalidate(ctx, scope.TenantID(), t)
		}
	}
	s.logger.Info("actor deleted",
		zap.String("actor_id", targetID),
		zap.String("tenant_id", scope.TenantID()),
		zap.Stringp("successor_id", successor),
		zap.Int64("detached_rows", report.Rows()),
	)
	return nil
}
