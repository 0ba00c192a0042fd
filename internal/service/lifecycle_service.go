package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-lifecycle-api/internal/dependency"
	"github.com/noah-isme/sma-lifecycle-api/internal/dto"
	"github.com/noah-isme/sma-lifecycle-api/internal/models"
	"github.com/noah-isme/sma-lifecycle-api/internal/policy"
	"github.com/noah-isme/sma-lifecycle-api/internal/repository"
	"github.com/noah-isme/sma-lifecycle-api/internal/tenancy"
	"github.com/noah-isme/sma-lifecycle-api/internal/workflow"
	"github.com/noah-isme/sma-lifecycle-api/pkg/database"
	appErrors "github.com/noah-isme/sma-lifecycle-api/pkg/errors"
	"github.com/noah-isme/sma-lifecycle-api/pkg/telemetry"
)

type recordStore interface {
	DB() *sqlx.DB
	Insert(ctx context.Context, q sqlx.ExtContext, scope tenancy.Scope, t models.RecordType, header repository.RecordInsert, columns map[string]interface{}) error
	UpdateState(ctx context.Context, q sqlx.ExtContext, scope tenancy.Scope, t models.RecordType, id, expectStatus string, change repository.StateChange) error
	Delete(ctx context.Context, q sqlx.ExtContext, scope tenancy.Scope, t models.RecordType, id string) error
	LockState(ctx context.Context, q sqlx.ExtContext, scope tenancy.Scope, t models.RecordType, id string) (*models.RecordState, error)
	LockStates(ctx context.Context, q sqlx.ExtContext, scope tenancy.Scope, t models.RecordType, ids []string) ([]models.RecordState, error)
	NullColumns(ctx context.Context, q sqlx.ExtContext, scope tenancy.Scope, t models.RecordType, id string, columns []string) ([]string, error)
	ColumnValues(ctx context.Context, q sqlx.ExtContext, scope tenancy.Scope, t models.RecordType, id string, columns []string) (map[string]interface{}, error)
	Get(ctx context.Context, q sqlx.ExtContext, scope tenancy.Scope, t models.RecordType, id string) (models.Record, error)
	List(ctx context.Context, scope tenancy.Scope, t models.RecordType, filter models.RecordFilter) ([]models.Record, int, error)
}

type ownerLookup interface {
	Get(ctx context.Context, q sqlx.ExtContext, scope tenancy.Scope, id string, lock bool) (*models.Actor, error)
}

// RecordPage is one page of a read-scoped listing.
type RecordPage struct {
	Items    []models.Record
	Total    int
	Page     int
	PageSize int
}

// LifecycleService is the write path of every workflow record: create,
// edit, transition and delete, each in a single transaction.
type LifecycleService struct {
	records   recordStore
	actors    ownerLookup
	guard     *UniquenessGuard
	resolver  *DependencyResolver
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	tracer    trace.Tracer
	now       func() time.Time
	newID     func() string
}

// LifecycleServiceOption configures the service.
type LifecycleServiceOption func(*LifecycleService)

// WithLifecycleCache enables listing caching and invalidation.
func WithLifecycleCache(cache *CacheService) LifecycleServiceOption {
	return func(s *LifecycleService) {
		s.cache = cache
	}
}

// WithLifecycleMetrics records operation counters and transaction timings.
func WithLifecycleMetrics(metrics *MetricsService) LifecycleServiceOption {
	return func(s *LifecycleService) {
		s.metrics = metrics
	}
}

// WithLifecycleClock overrides the time source.
func WithLifecycleClock(now func() time.Time) LifecycleServiceOption {
	return func(s *LifecycleService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewLifecycleService constructs the service.
func NewLifecycleService(records recordStore, actors ownerLookup, guard *UniquenessGuard, resolver *DependencyResolver, validate *validator.Validate, logger *zap.Logger, opts ...LifecycleServiceOption) *LifecycleService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	svc := &LifecycleService{
		records:   records,
		actors:    actors,
		guard:     guard,
		resolver:  resolver,
		validator: validate,
		logger:    logger,
		tracer:    telemetry.Tracer(),
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Create decodes fields into the variant payload and inserts a new record in
// the actor's tenant.
func (s *LifecycleService) Create(ctx context.Context, actor *models.ActorContext, t models.RecordType, fields json.RawMessage) (string, error) {
	input, err := dto.DecodeRecordInput(t, fields)
	if err != nil {
		return "", validationError(err, "invalid record payload")
	}
	scope, err := tenancy.FromActor(actor)
	if err != nil {
		return "", err
	}
	return s.CreateInScope(ctx, scope, actor, t, input)
}

// CreateInScope inserts a record into an already resolved scope. actor may be
// nil for anonymous comment submissions.
func (s *LifecycleService) CreateInScope(ctx context.Context, scope tenancy.Scope, actor *models.ActorContext, t models.RecordType, input dto.RecordInput) (id string, err error) {
	ctx, span := s.startSpan(ctx, "lifecycle.Create", t, models.ActionCreate)
	defer func() { s.finish(span, t, models.ActionCreate, err) }()

	if actor != nil && actor.TenantID != scope.TenantID() {
		return "", appErrors.ErrTenantMismatch
	}
	machine, err := workflow.For(t)
	if err != nil {
		return "", err
	}
	if err := s.validator.Struct(input); err != nil {
		return "", validationError(err, "invalid record payload")
	}
	cols, err := input.Columns()
	if err != nil {
		return "", validationError(err, "invalid record payload")
	}
	if err := missingRequired(input, cols); err != nil {
		return "", err
	}

	life := input.Lifecycle()
	owner := deref(life.OwnerID)
	if owner == "" && actor != nil {
		owner = actor.ActorID
	}
	target := policy.Target{Type: t, OwnerID: deref(life.OwnerID), Override: life.HasOverride()}
	if err := policy.Authorize(actor, models.ActionCreate, target).Err(); err != nil {
		return "", err
	}

	initial := machine.Initial()
	outcome := workflow.Outcome{Status: initial.Status, Approval: initial.Approval}
	if life.HasOverride() {
		outcome, err = machine.Override(initial, deref(life.Status), deref(life.ApprovalState))
		if err != nil {
			return "", err
		}
	}

	now := s.now().UTC()
	header := repository.RecordInsert{
		ID:        s.newID(),
		OwnerID:   stringPtr(owner),
		Status:    outcome.Status,
		Approval:  stringPtr(outcome.Approval),
		CreatedAt: now,
	}
	if outcome.Has(workflow.EffectStampReview) && actor != nil {
		reviewer := actor.ActorID
		header.ReviewedBy = &reviewer
		header.ReviewedAt = &now
	}

	start := time.Now()
	err = database.WithTx(ctx, s.records.DB(), func(tx *sqlx.Tx) error {
		if err := s.checkReferences(ctx, tx, scope, t, actor, header.OwnerID, cols); err != nil {
			return err
		}
		key := make(map[string]interface{}, len(cols)+1)
		for column, value := range cols {
			key[column] = value
		}
		key["owner_id"] = nil
		if header.OwnerID != nil {
			key["owner_id"] = *header.OwnerID
		}
		if err := s.guard.CheckCreate(ctx, tx, scope, t, key); err != nil {
			return err
		}
		return s.records.Insert(ctx, tx, scope, t, header, cols)
	})
	s.metrics.ObserveTransaction("create:"+string(t), time.Since(start))
	if err != nil {
		return "", appErrors.Storage(err, fmt.Sprintf("failed to create %s", t))
	}

	s.invalidate(ctx, scope, t)
	s.logger.Info("record created",
		zap.String("type", string(t)),
		zap.String("id", header.ID),
		zap.String("tenant_id", scope.TenantID()),
		zap.String("status", header.Status),
	)
	return header.ID, nil
}

// Transition applies action to one record. "edit" updates fields (and, for
// an owner-admin, overrides status); every other action goes through the
// variant's state machine. The updated record is returned.
func (s *LifecycleService) Transition(ctx context.Context, actor *models.ActorContext, t models.RecordType, id string, action models.Action, fields json.RawMessage) (record models.Record, err error) {
	if action == models.ActionDelete {
		return nil, s.Delete(ctx, actor, t, id)
	}

	ctx, span := s.startSpan(ctx, "lifecycle.Transition", t, action)
	defer func() { s.finish(span, t, action, err) }()

	scope, err := tenancy.FromActor(actor)
	if err != nil {
		return nil, err
	}
	id, err = normalizeID(t, id)
	if err != nil {
		return nil, err
	}
	machine, input, err := s.prepare(t, action, fields)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	err = database.WithTx(ctx, s.records.DB(), func(tx *sqlx.Tx) error {
		state, err := s.records.LockState(ctx, tx, scope, t, id)
		if err != nil {
			return err
		}
		change, err := s.plan(ctx, tx, scope, actor, machine, state, action, input)
		if err != nil {
			return err
		}
		if err := s.write(ctx, tx, scope, t, state, change); err != nil {
			return err
		}
		record, err = s.records.Get(ctx, tx, scope, t, id)
		return err
	})
	s.metrics.ObserveTransaction(string(action)+":"+string(t), time.Since(start))
	if err != nil {
		return nil, appErrors.Storage(err, fmt.Sprintf("failed to %s %s", action, t))
	}

	s.invalidate(ctx, scope, t)
	s.logger.Info("record transitioned",
		zap.String("type", string(t)),
		zap.String("id", id),
		zap.String("action", string(action)),
		zap.String("status", record.Header().Status),
	)
	return record, nil
}

// Delete removes one record after detaching everything that references it.
func (s *LifecycleService) Delete(ctx context.Context, actor *models.ActorContext, t models.RecordType, id string) (err error) {
	ctx, span := s.startSpan(ctx, "lifecycle.Delete", t, models.ActionDelete)
	defer func() { s.finish(span, t, models.ActionDelete, err) }()

	scope, err := tenancy.FromActor(actor)
	if err != nil {
		return err
	}
	if _, err := workflow.For(t); err != nil {
		return err
	}
	id, err = normalizeID(t, id)
	if err != nil {
		return err
	}

	var report *DetachReport
	start := time.Now()
	err = database.WithTx(ctx, s.records.DB(), func(tx *sqlx.Tx) error {
		state, err := s.records.LockState(ctx, tx, scope, t, id)
		if err != nil {
			return err
		}
		if err := authorizeDelete(actor, t, state); err != nil {
			return err
		}
		report, err = s.deleteLocked(ctx, tx, scope, t, id)
		return err
	})
	s.metrics.ObserveTransaction("delete:"+string(t), time.Since(start))
	if err != nil {
		return appErrors.Storage(err, fmt.Sprintf("failed to delete %s", t))
	}

	s.invalidate(ctx, scope, t)
	s.logger.Info("record deleted",
		zap.String("type", string(t)),
		zap.String("id", id),
		zap.Int64("detached_rows", report.Rows()),
	)
	return nil
}

// Get returns one record the actor may view.
func (s *LifecycleService) Get(ctx context.Context, actor *models.ActorContext, t models.RecordType, id string) (models.Record, error) {
	scope, err := tenancy.FromActor(actor)
	if err != nil {
		return nil, err
	}
	if _, err := workflow.For(t); err != nil {
		return nil, err
	}
	id, err = normalizeID(t, id)
	if err != nil {
		return nil, err
	}
	record, err := s.records.Get(ctx, s.records.DB(), scope, t, id)
	if err != nil {
		return nil, err
	}
	target := policy.Target{Type: t, OwnerID: record.Header().Owner(), Status: record.Header().Status}
	if err := policy.Authorize(actor, models.ActionView, target).Err(); err != nil {
		return nil, err
	}
	return record, nil
}

// AvailableActions lists the transitions actor may apply to record in its
// current state.
func (s *LifecycleService) AvailableActions(actor *models.ActorContext, t models.RecordType, record models.Record) []models.Action {
	machine, err := workflow.For(t)
	if err != nil || record == nil {
		return nil
	}
	header := record.Header()
	target := policy.Target{Type: t, OwnerID: header.Owner(), Status: header.Status}
	actions := []models.Action{}
	for _, action := range machine.Available(workflow.State{Status: header.Status, Approval: header.Approval()}) {
		if policy.Authorize(actor, action, target).Allowed {
			actions = append(actions, action)
		}
	}
	return actions
}

// List returns a page of records visible to the actor. Actors that may not
// see every owner's records are narrowed to their own.
func (s *LifecycleService) List(ctx context.Context, actor *models.ActorContext, t models.RecordType, filter models.RecordFilter) (*RecordPage, error) {
	scope, err := tenancy.FromActor(actor)
	if err != nil {
		return nil, err
	}
	if _, err := workflow.For(t); err != nil {
		return nil, err
	}
	if !policy.Authorize(actor, models.ActionView, policy.Target{Type: t, OwnerID: filter.OwnerID}).Allowed {
		filter.OwnerID = actor.ActorID
	}
	filter.Page, filter.PageSize = repository.NormalizePage(filter.Page, filter.PageSize)

	var cacheKey string
	if s.cache.Enabled() {
		cacheKey, err = s.cache.ListingKey(ctx, scope.TenantID(), t, filter)
		if err != nil {
			s.logger.Warn("cache key unavailable", zap.String("type", string(t)), zap.Error(err))
		} else {
			var cached cachedRecordPage
			if hit, _ := s.cache.Get(ctx, cacheKey, &cached); hit {
				items, err := decodeRecords(t, cached.Items)
				if err == nil {
					return &RecordPage{Items: items, Total: cached.Total, Page: filter.Page, PageSize: filter.PageSize}, nil
				}
				s.logger.Warn("discarding undecodable cache entry", zap.String("key", cacheKey), zap.Error(err))
			}
		}
	}

	items, total, err := s.records.List(ctx, scope, t, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, fmt.Sprintf("failed to list %s", t))
	}
	if items == nil {
		items = []models.Record{}
	}

	if cacheKey != "" {
		if raw, err := json.Marshal(items); err == nil {
			_ = s.cache.Set(ctx, cacheKey, cachedRecordPage{Items: raw, Total: total}, 0)
		}
	}
	return &RecordPage{Items: items, Total: total, Page: filter.Page, PageSize: filter.PageSize}, nil
}

// prepare resolves the machine and decodes the payload shared by single and
// bulk transitions.
func (s *LifecycleService) prepare(t models.RecordType, action models.Action, fields json.RawMessage) (*workflow.Machine, dto.RecordInput, error) {
	machine, err := workflow.For(t)
	if err != nil {
		return nil, nil, err
	}
	if action != models.ActionEdit && !machine.Supports(action) {
		return nil, nil, appErrors.Clone(appErrors.ErrInvalidTransition, fmt.Sprintf("%s has no %q action", t, action))
	}
	input, err := dto.DecodeRecordInput(t, fields)
	if err != nil {
		return nil, nil, validationError(err, "invalid record payload")
	}
	if err := s.validator.Struct(input); err != nil {
		return nil, nil, validationError(err, "invalid record payload")
	}
	return machine, input, nil
}

// plan decides, against a locked row, what one action writes. Typed client
// errors returned here leave the store untouched.
func (s *LifecycleService) plan(ctx context.Context, q sqlx.ExtContext, scope tenancy.Scope, actor *models.ActorContext, machine *workflow.Machine, state *models.RecordState, action models.Action, input dto.RecordInput) (repository.StateChange, error) {
	if action == models.ActionEdit {
		return s.planEdit(ctx, q, scope, actor, machine, state, input)
	}

	t := machine.Type()
	target := policy.Target{Type: t, OwnerID: deref(state.OwnerID), Status: state.Status}
	if err := policy.Authorize(actor, action, target).Err(); err != nil {
		return repository.StateChange{}, err
	}

	current := workflow.State{Status: state.Status, Approval: deref(state.ApprovalState)}
	outcome, err := machine.Apply(current, action)
	if err != nil {
		return repository.StateChange{}, err
	}

	life := input.Lifecycle()
	if life.OwnerID != nil || life.HasOverride() {
		return repository.StateChange{}, appErrors.Clone(appErrors.ErrValidation, "owner and status fields are only accepted on edit")
	}
	cols, err := input.Columns()
	if err != nil {
		return repository.StateChange{}, validationError(err, "invalid record payload")
	}
	for column := range cols {
		if !containsString(outcome.Requires, column) {
			return repository.StateChange{}, appErrors.Clone(appErrors.ErrValidation,
				fmt.Sprintf("field %s is not accepted by %s", column, action))
		}
	}
	if len(outcome.Requires) > 0 {
		missing, err := s.records.NullColumns(ctx, q, scope, t, state.ID, outcome.Requires)
		if err != nil {
			return repository.StateChange{}, err
		}
		for _, column := range missing {
			if value, ok := cols[column]; !ok || value == nil {
				return repository.StateChange{}, appErrors.Clone(appErrors.ErrValidation,
					fmt.Sprintf("%s is required to %s a %s", column, action, t))
			}
		}
	}

	return s.render(actor, current, outcome, cols), nil
}

func (s *LifecycleService) planEdit(ctx context.Context, q sqlx.ExtContext, scope tenancy.Scope, actor *models.ActorContext, machine *workflow.Machine, state *models.RecordState, input dto.RecordInput) (repository.StateChange, error) {
	t := machine.Type()
	life := input.Lifecycle()
	owner := deref(state.OwnerID)
	ownerChange := life.OwnerID != nil && *life.OwnerID != owner

	target := policy.Target{Type: t, OwnerID: owner, Status: state.Status, Override: life.HasOverride() || ownerChange}
	if err := policy.Authorize(actor, models.ActionEdit, target).Err(); err != nil {
		return repository.StateChange{}, err
	}

	cols, err := input.Columns()
	if err != nil {
		return repository.StateChange{}, validationError(err, "invalid record payload")
	}
	for _, column := range input.Required() {
		if value, ok := cols[column]; ok && isBlank(value) {
			return repository.StateChange{}, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s cannot be cleared", column))
		}
	}
	if _, ok := cols["news_id"]; ok {
		return repository.StateChange{}, appErrors.Clone(appErrors.ErrValidation, "a comment cannot be moved to another news item")
	}
	if t == models.RecordTimeRecord {
		if err := s.checkTimeRange(ctx, q, scope, state.ID, cols); err != nil {
			return repository.StateChange{}, err
		}
	}

	current := workflow.State{Status: state.Status, Approval: deref(state.ApprovalState)}
	outcome := workflow.Outcome{Status: current.Status, Approval: current.Approval}
	if life.HasOverride() {
		approval := current.Approval
		if life.ApprovalState != nil {
			approval = *life.ApprovalState
		}
		outcome, err = machine.Override(current, deref(life.Status), approval)
		if err != nil {
			return repository.StateChange{}, err
		}
	}

	var newOwner *string
	if ownerChange {
		newOwner = stringPtr(*life.OwnerID)
		if newOwner != nil {
			cols["owner_id"] = *newOwner
		} else {
			cols["owner_id"] = nil
		}
	}
	if len(cols) == 0 && !life.HasOverride() {
		return repository.StateChange{}, appErrors.Clone(appErrors.ErrValidation, "no fields to update")
	}

	if err := s.checkReferences(ctx, q, scope, t, actor, newOwner, cols); err != nil {
		return repository.StateChange{}, err
	}
	if err := s.guard.CheckUpdate(ctx, q, scope, t, state.ID, cols); err != nil {
		return repository.StateChange{}, err
	}
	return s.render(actor, current, outcome, cols), nil
}

// checkTimeRange validates an edited time window against the stored half the
// payload leaves untouched.
func (s *LifecycleService) checkTimeRange(ctx context.Context, q sqlx.ExtContext, scope tenancy.Scope, id string, cols map[string]interface{}) error {
	newIn, inTouched := cols["time_in"]
	newOut, outTouched := cols["time_out"]
	if !inTouched && !outTouched {
		return nil
	}
	stored, err := s.records.ColumnValues(ctx, q, scope, models.RecordTimeRecord, id, []string{"time_in", "time_out"})
	if err != nil {
		return err
	}
	timeIn, timeOut := columnText(stored["time_in"]), columnText(stored["time_out"])
	if inTouched {
		timeIn = columnText(newIn)
	}
	if outTouched {
		timeOut = columnText(newOut)
	}
	if err := dto.CheckTimeRange(timeIn, timeOut); err != nil {
		return validationError(err, "invalid record payload")
	}
	return nil
}

// render turns an outcome and its effects into the single guarded update.
func (s *LifecycleService) render(actor *models.ActorContext, current workflow.State, outcome workflow.Outcome, cols map[string]interface{}) repository.StateChange {
	now := s.now().UTC()
	change := repository.StateChange{Status: outcome.Status, Columns: cols, UpdatedAt: now}
	if outcome.Approval != current.Approval {
		change.SetApproval = true
		change.Approval = stringPtr(outcome.Approval)
	}
	if outcome.Has(workflow.EffectStampReview) && actor != nil {
		reviewer := actor.ActorID
		change.ReviewedBy = &reviewer
		change.ReviewedAt = &now
	}
	if outcome.Has(workflow.EffectStampPublished) {
		change.PublishedAt = &now
	}
	return change
}

func (s *LifecycleService) write(ctx context.Context, q sqlx.ExtContext, scope tenancy.Scope, t models.RecordType, state *models.RecordState, change repository.StateChange) error {
	err := s.records.UpdateState(ctx, q, scope, t, state.ID, state.Status, change)
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrInvalidTransition, fmt.Sprintf("%s changed state concurrently", t))
	}
	return err
}

func (s *LifecycleService) deleteLocked(ctx context.Context, q sqlx.ExtContext, scope tenancy.Scope, t models.RecordType, id string) (*DetachReport, error) {
	report, err := s.resolver.Resolve(ctx, q, scope, dependency.EntityFor(t), id, nil)
	if err != nil {
		return nil, err
	}
	if err := s.records.Delete(ctx, q, scope, t, id); err != nil {
		return nil, err
	}
	return report, nil
}

// checkReferences confirms that ids named by the payload resolve inside the
// scope; foreign keys alone would accept rows of another tenant.
func (s *LifecycleService) checkReferences(ctx context.Context, q sqlx.ExtContext, scope tenancy.Scope, t models.RecordType, actor *models.ActorContext, owner *string, cols map[string]interface{}) error {
	if owner != nil && (actor == nil || *owner != actor.ActorID) {
		if _, err := s.actors.Get(ctx, q, scope, *owner, false); err != nil {
			if errors.Is(err, appErrors.ErrNotFound) {
				return appErrors.Clone(appErrors.ErrValidation, "owner is not an actor of this tenant")
			}
			return err
		}
	}

	if ref, ok := cols["curriculum_entry_id"].(string); ok && t == models.RecordLessonPlan {
		if _, err := s.records.LockState(ctx, q, scope, models.RecordCurriculumEntry, ref); err != nil {
			if errors.Is(err, appErrors.ErrNotFound) {
				return appErrors.Clone(appErrors.ErrValidation, "curriculum entry not found")
			}
			return err
		}
	}

	if newsID, ok := cols["news_id"].(string); ok && t == models.RecordNewsComment {
		news, err := s.records.LockState(ctx, q, scope, models.RecordNewsItem, newsID)
		if err != nil {
			return err
		}
		if news.Status != workflow.NewsPublished {
			return appErrors.Clone(appErrors.ErrWrongState, "comments are only accepted on published news")
		}
	}
	return nil
}

func (s *LifecycleService) invalidate(ctx context.Context, scope tenancy.Scope, t models.RecordType) {
	if s.cache.Enabled() {
		_ = s.cache.Invalidate(ctx, scope.TenantID(), t)
	}
}

func (s *LifecycleService) startSpan(ctx context.Context, name string, t models.RecordType, action models.Action) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("record.type", string(t)),
		attribute.String("record.action", string(action)),
	))
}

func (s *LifecycleService) finish(span trace.Span, t models.RecordType, action models.Action, err error) {
	telemetry.RecordError(span, err)
	span.End()
	s.metrics.RecordLifecycle(t, action, err)
}

func authorizeDelete(actor *models.ActorContext, t models.RecordType, state *models.RecordState) error {
	target := policy.Target{Type: t, OwnerID: deref(state.OwnerID), Status: state.Status}
	return policy.Authorize(actor, models.ActionDelete, target).Err()
}

func missingRequired(input dto.RecordInput, cols map[string]interface{}) error {
	var missing []string
	for _, column := range input.Required() {
		if value, ok := cols[column]; !ok || isBlank(value) {
			missing = append(missing, column)
		}
	}
	if len(missing) > 0 {
		return appErrors.Clone(appErrors.ErrValidation, "missing required fields: "+strings.Join(missing, ", "))
	}
	return nil
}

func isBlank(value interface{}) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	case *string:
		return v == nil || strings.TrimSpace(*v) == ""
	}
	return false
}

func columnText(value interface{}) string {
	switch v := value.(type) {
	case string:
		return v
	case *string:
		return deref(v)
	case []byte:
		return string(v)
	}
	return ""
}

func containsString(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

type cachedRecordPage struct {
	Items json.RawMessage `json:"items"`
	Total int             `json:"total"`
}

func decodeRecords(t models.RecordType, raw json.RawMessage) ([]models.Record, error) {
	switch t {
	case models.RecordLessonPlan:
		return decodeInto[models.LessonPlan](raw)
	case models.RecordTimeRecord:
		return decodeInto[models.TimeRecord](raw)
	case models.RecordNewsItem:
		return decodeInto[models.NewsItem](raw)
	case models.RecordCurriculumEntry:
		return decodeInto[models.CurriculumEntry](raw)
	case models.RecordNewsComment:
		return decodeInto[models.NewsComment](raw)
	default:
		return nil, fmt.Errorf("unknown record type %q", t)
	}
}

func decodeInto[T any, PT interface {
	*T
	models.Record
}](raw json.RawMessage) ([]models.Record, error) {
	var rows []T
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, err
	}
	records := make([]models.Record, len(rows))
	for i := range rows {
		records[i] = PT(&rows[i])
	}
	return records, nil
}
