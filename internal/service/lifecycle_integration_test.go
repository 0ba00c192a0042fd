package service

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-lifecycle-api/internal/dependency"
	"github.com/noah-isme/sma-lifecycle-api/internal/dto"
	"github.com/noah-isme/sma-lifecycle-api/internal/models"
	"github.com/noah-isme/sma-lifecycle-api/internal/repository"
	"github.com/noah-isme/sma-lifecycle-api/internal/tenancy"
	"github.com/noah-isme/sma-lifecycle-api/internal/workflow"
	"github.com/noah-isme/sma-lifecycle-api/pkg/database"
	appErrors "github.com/noah-isme/sma-lifecycle-api/pkg/errors"
)

type engine struct {
	db        *sqlx.DB
	records   *repository.RecordRepository
	actorRepo *repository.ActorRepository
	tenants   *repository.TenantRepository
	lifecycle *LifecycleService
	actors    *ActorService
	comments  *CommentService
}

func newEngine(t *testing.T) *engine {
	t.Helper()

	db, dialect, err := database.OpenSQLite(filepath.Join(t.TempDir(), "lifecycle.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.Migrate(db.DB, dialect, zap.NewNop()))

	registry, err := dependency.Default()
	require.NoError(t, err)

	metrics := NewMetricsService()
	records := repository.NewRecordRepository(db, dialect)
	actorRepo := repository.NewActorRepository(db, dialect)
	tenants := repository.NewTenantRepository(db, dialect)
	resolver := NewDependencyResolver(registry, repository.NewDependencyRepository(dialect), metrics, nil)
	lifecycle := NewLifecycleService(records, actorRepo, NewUniquenessGuard(records), resolver, nil, nil, WithLifecycleMetrics(metrics))

	return &engine{
		db:        db,
		records:   records,
		actorRepo: actorRepo,
		tenants:   tenants,
		lifecycle: lifecycle,
		actors:    NewActorService(actorRepo, resolver, nil, nil, nil),
		comments:  NewCommentService(tenancy.NewResolver(tenants), lifecycle, nil, nil),
	}
}

func (e *engine) tenant(t *testing.T, slug string) string {
	t.Helper()
	now := time.Now().UTC()
	tenant := &models.Tenant{ID: uuid.NewString(), Name: slug, Slug: slug, Active: true, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, e.tenants.Create(context.Background(), e.db, tenant))
	return tenant.ID
}

func (e *engine) actor(t *testing.T, tenantID string, role models.Role) *models.ActorContext {
	t.Helper()
	scope, err := tenancy.ForTenant(tenantID)
	require.NoError(t, err)
	now := time.Now().UTC()
	actor := &models.Actor{
		ID:           uuid.NewString(),
		Email:        uuid.NewString() + "@school.test",
		PasswordHash: "unused",
		FullName:     string(role) + " user",
		Role:         role,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, e.actorRepo.Create(context.Background(), e.db, scope, actor))
	return &models.ActorContext{ActorID: actor.ID, TenantID: tenantID, Role: role, Email: actor.Email, FullName: actor.FullName}
}

func (e *engine) header(t *testing.T, actor *models.ActorContext, rt models.RecordType, id string) *models.RecordHeader {
	t.Helper()
	scope, err := tenancy.FromActor(actor)
	require.NoError(t, err)
	record, err := e.records.Get(context.Background(), e.db, scope, rt, id)
	require.NoError(t, err)
	return record.Header()
}

func lessonFields(topic, date string) json.RawMessage {
	return json.RawMessage(`{"topic":"` + topic + `","class_id":"5","date_planned":"` + date + `"}`)
}

func TestLessonPlanScenario(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	s1 := e.tenant(t, "s1")
	teacher := e.actor(t, s1, models.RoleContributor)
	principal := e.actor(t, s1, models.RoleOwnerAdmin)

	id, err := e.lifecycle.Create(ctx, teacher, models.RecordLessonPlan, lessonFields("Fractions", "2025-04-01"))
	require.NoError(t, err)

	created := e.header(t, teacher, models.RecordLessonPlan, id)
	assert.Equal(t, workflow.LessonDraft, created.Status)
	assert.Nil(t, created.ApprovalState)
	assert.Equal(t, teacher.ActorID, created.Owner())

	_, err = e.lifecycle.Create(ctx, teacher, models.RecordLessonPlan, lessonFields("Fractions", "2025-04-01"))
	assert.ErrorIs(t, err, appErrors.ErrDuplicateRecord)

	record, err := e.lifecycle.Transition(ctx, principal, models.RecordLessonPlan, id, models.ActionApprove, nil)
	require.NoError(t, err)
	header := record.Header()
	assert.Equal(t, workflow.LessonScheduled, header.Status)
	assert.Equal(t, workflow.ApprovalApproved, header.Approval())
	require.NotNil(t, header.ReviewedBy)
	assert.Equal(t, principal.ActorID, *header.ReviewedBy)
	assert.NotNil(t, header.ReviewedAt)

	_, err = e.lifecycle.Transition(ctx, teacher, models.RecordLessonPlan, id, models.ActionEdit, json.RawMessage(`{"topic":"Decimals"}`))
	assert.ErrorIs(t, err, appErrors.ErrWrongState)

	_, err = e.lifecycle.Transition(ctx, principal, models.RecordLessonPlan, id, models.ActionApprove, nil)
	assert.ErrorIs(t, err, appErrors.ErrInvalidTransition)
	assert.Equal(t, workflow.LessonScheduled, e.header(t, teacher, models.RecordLessonPlan, id).Status)
}

func TestLessonPlanSubmitFlowAndOverride(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	s1 := e.tenant(t, "s1")
	teacher := e.actor(t, s1, models.RoleContributor)
	principal := e.actor(t, s1, models.RoleOwnerAdmin)

	_, err := e.lifecycle.Create(ctx, teacher, models.RecordLessonPlan, json.RawMessage(`{"topic":"Ratios","class_id":"7","date_planned":"2025-04-02","status":"scheduled"}`))
	assert.ErrorIs(t, err, appErrors.ErrInsufficientRole)

	id, err := e.lifecycle.Create(ctx, teacher, models.RecordLessonPlan, lessonFields("Ratios", "2025-04-02"))
	require.NoError(t, err)

	record, err := e.lifecycle.Transition(ctx, teacher, models.RecordLessonPlan, id, models.ActionEdit, json.RawMessage(`{"objectives":"compare quantities"}`))
	require.NoError(t, err)
	plan := record.(*models.LessonPlan)
	require.NotNil(t, plan.Objectives)
	assert.Equal(t, "compare quantities", *plan.Objectives)

	record, err = e.lifecycle.Transition(ctx, teacher, models.RecordLessonPlan, id, models.ActionSubmit, nil)
	require.NoError(t, err)
	assert.Equal(t, workflow.LessonSubmitted, record.Header().Status)
	assert.Equal(t, workflow.ApprovalPending, record.Header().Approval())

	_, err = e.lifecycle.Transition(ctx, teacher, models.RecordLessonPlan, id, models.ActionApprove, nil)
	assert.ErrorIs(t, err, appErrors.ErrInsufficientRole)

	record, err = e.lifecycle.Transition(ctx, principal, models.RecordLessonPlan, id, models.ActionReject, nil)
	require.NoError(t, err)
	assert.Equal(t, workflow.LessonOnHold, record.Header().Status)
	assert.Equal(t, workflow.ApprovalRejected, record.Header().Approval())

	record, err = e.lifecycle.Transition(ctx, principal, models.RecordLessonPlan, id, models.ActionEdit, json.RawMessage(`{"status":"draft","approval_state":""}`))
	require.NoError(t, err)
	assert.Equal(t, workflow.LessonDraft, record.Header().Status)
	assert.Nil(t, record.Header().ApprovalState)

	_, err = e.lifecycle.Transition(ctx, principal, models.RecordLessonPlan, id, models.ActionEdit, json.RawMessage(`{"status":"lost"}`))
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = e.lifecycle.Transition(ctx, principal, models.RecordLessonPlan, id, models.ActionPublish, nil)
	assert.ErrorIs(t, err, appErrors.ErrInvalidTransition)
}

func TestAvailableActionsFollowRoleAndState(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	s1 := e.tenant(t, "s1")
	teacher := e.actor(t, s1, models.RoleContributor)
	principal := e.actor(t, s1, models.RoleOwnerAdmin)

	id, err := e.lifecycle.Create(ctx, teacher, models.RecordLessonPlan, lessonFields("Fractions", "2025-04-01"))
	require.NoError(t, err)
	record, err := e.lifecycle.Get(ctx, teacher, models.RecordLessonPlan, id)
	require.NoError(t, err)

	assert.Equal(t, []models.Action{models.ActionSubmit}, e.lifecycle.AvailableActions(teacher, models.RecordLessonPlan, record))
	assert.Equal(t, []models.Action{models.ActionApprove, models.ActionReject, models.ActionSubmit},
		e.lifecycle.AvailableActions(principal, models.RecordLessonPlan, record))

	record, err = e.lifecycle.Transition(ctx, principal, models.RecordLessonPlan, id, models.ActionApprove, nil)
	require.NoError(t, err)
	assert.Empty(t, e.lifecycle.AvailableActions(teacher, models.RecordLessonPlan, record))
	assert.Equal(t, []models.Action{models.ActionComplete, models.ActionHold},
		e.lifecycle.AvailableActions(principal, models.RecordLessonPlan, record))
}

func TestCreateValidatesPayload(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	s1 := e.tenant(t, "s1")
	teacher := e.actor(t, s1, models.RoleContributor)

	_, err := e.lifecycle.Create(ctx, teacher, models.RecordLessonPlan, json.RawMessage(`{"topic":"Fractions"}`))
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = e.lifecycle.Create(ctx, teacher, models.RecordLessonPlan, json.RawMessage(`{"topic":"Fractions","class_id":"5","date_planned":"2025-04-01","colour":"red"}`))
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = e.lifecycle.Create(ctx, teacher, models.RecordTimeRecord, json.RawMessage(`{"work_date":"2025-04-01","time_in":"09:00","time_out":"08:00"}`))
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = e.lifecycle.Create(ctx, teacher, models.RecordLessonPlan, json.RawMessage(`{"topic":"Fractions","class_id":"5","date_planned":"2025-04-01","owner_id":"`+uuid.NewString()+`"}`))
	assert.ErrorIs(t, err, appErrors.ErrNotOwner)

	_, err = e.lifecycle.Create(ctx, nil, models.RecordLessonPlan, lessonFields("Fractions", "2025-04-01"))
	assert.ErrorIs(t, err, appErrors.ErrUnauthenticated)
}

func TestOwnerAdminCreatesForActorOfTenantOnly(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	s1 := e.tenant(t, "s1")
	s2 := e.tenant(t, "s2")
	principal := e.actor(t, s1, models.RoleOwnerAdmin)
	teacher := e.actor(t, s1, models.RoleContributor)
	outsider := e.actor(t, s2, models.RoleContributor)

	id, err := e.lifecycle.Create(ctx, principal, models.RecordTimeRecord,
		json.RawMessage(`{"work_date":"2025-04-01","time_in":"07:30","owner_id":"`+teacher.ActorID+`"}`))
	require.NoError(t, err)
	assert.Equal(t, teacher.ActorID, e.header(t, teacher, models.RecordTimeRecord, id).Owner())

	_, err = e.lifecycle.Create(ctx, principal, models.RecordTimeRecord,
		json.RawMessage(`{"work_date":"2025-04-01","time_in":"07:30","owner_id":"`+outsider.ActorID+`"}`))
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestUniqueIndexBacksTheGuard(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	s1 := e.tenant(t, "s1")
	clerk := e.actor(t, s1, models.RoleAuxiliary)
	scope, err := tenancy.FromActor(clerk)
	require.NoError(t, err)

	insert := func() error {
		owner := clerk.ActorID
		header := repository.RecordInsert{ID: uuid.NewString(), OwnerID: &owner, Status: workflow.TimePending, CreatedAt: time.Now().UTC()}
		cols := map[string]interface{}{"work_date": time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC), "time_in": "08:00"}
		return e.records.Insert(ctx, e.db, scope, models.RecordTimeRecord, header, cols)
	}
	require.NoError(t, insert())
	assert.ErrorIs(t, insert(), appErrors.ErrDuplicateRecord)
}

func TestConcurrentCreatesYieldOneRecord(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	s1 := e.tenant(t, "s1")
	clerk := e.actor(t, s1, models.RoleAuxiliary)
	fields := json.RawMessage(`{"work_date":"2025-04-03","time_in":"08:00"}`)

	const attempts = 6
	errs := make([]error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = e.lifecycle.Create(ctx, clerk, models.RecordTimeRecord, fields)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, appErrors.ErrDuplicateRecord)
	}
	assert.Equal(t, 1, succeeded)
}

func TestConcurrentApproveAppliesOnce(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	s1 := e.tenant(t, "s1")
	teacher := e.actor(t, s1, models.RoleContributor)

	id, err := e.lifecycle.Create(ctx, teacher, models.RecordLessonPlan, lessonFields("Fractions", "2025-04-01"))
	require.NoError(t, err)
	_, err = e.lifecycle.Transition(ctx, teacher, models.RecordLessonPlan, id, models.ActionSubmit, nil)
	require.NoError(t, err)

	const attempts = 8
	reviewers := make([]*models.ActorContext, attempts)
	for i := range reviewers {
		reviewers[i] = e.actor(t, s1, models.RoleOwnerAdmin)
	}

	errs := make([]error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = e.lifecycle.Transition(ctx, reviewers[i], models.RecordLessonPlan, id, models.ActionApprove, nil)
		}(i)
	}
	wg.Wait()

	winner := -1
	for i, err := range errs {
		if err == nil {
			assert.Equal(t, -1, winner, "only one approve may apply")
			winner = i
			continue
		}
		assert.ErrorIs(t, err, appErrors.ErrInvalidTransition)
	}
	require.NotEqual(t, -1, winner)

	header := e.header(t, teacher, models.RecordLessonPlan, id)
	assert.Equal(t, workflow.LessonScheduled, header.Status)
	require.NotNil(t, header.ReviewedBy)
	assert.Equal(t, reviewers[winner].ActorID, *header.ReviewedBy)
}

func TestTenantIsolation(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	s1 := e.tenant(t, "s1")
	s2 := e.tenant(t, "s2")
	teacher := e.actor(t, s1, models.RoleContributor)
	foreignAdmin := e.actor(t, s2, models.RoleOwnerAdmin)

	id, err := e.lifecycle.Create(ctx, teacher, models.RecordLessonPlan, lessonFields("Fractions", "2025-04-01"))
	require.NoError(t, err)

	_, err = e.lifecycle.Get(ctx, foreignAdmin, models.RecordLessonPlan, id)
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
	_, err = e.lifecycle.Transition(ctx, foreignAdmin, models.RecordLessonPlan, id, models.ActionApprove, nil)
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
	assert.ErrorIs(t, e.lifecycle.Delete(ctx, foreignAdmin, models.RecordLessonPlan, id), appErrors.ErrNotFound)

	page, err := e.lifecycle.List(ctx, foreignAdmin, models.RecordLessonPlan, models.RecordFilter{})
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.Zero(t, page.Total)

	principal := e.actor(t, s1, models.RoleOwnerAdmin)
	_, err = e.lifecycle.Create(ctx, principal, models.RecordNewsItem, json.RawMessage(`{"title":"Open Day","body":"s1"}`))
	require.NoError(t, err)
	_, err = e.lifecycle.Create(ctx, foreignAdmin, models.RecordNewsItem, json.RawMessage(`{"title":"Open Day","body":"s2"}`))
	require.NoError(t, err, "keys are unique per tenant only")

	assert.Equal(t, workflow.LessonDraft, e.header(t, teacher, models.RecordLessonPlan, id).Status)
}

func TestListVisibility(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	s1 := e.tenant(t, "s1")
	teacher := e.actor(t, s1, models.RoleContributor)
	colleague := e.actor(t, s1, models.RoleContributor)
	supervisor := e.actor(t, s1, models.RoleSupervisor)

	mine, err := e.lifecycle.Create(ctx, teacher, models.RecordLessonPlan, lessonFields("Fractions", "2025-04-01"))
	require.NoError(t, err)
	theirs, err := e.lifecycle.Create(ctx, colleague, models.RecordLessonPlan, lessonFields("Fractions", "2025-04-01"))
	require.NoError(t, err)

	page, err := e.lifecycle.List(ctx, teacher, models.RecordLessonPlan, models.RecordFilter{OwnerID: colleague.ActorID})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, mine, page.Items[0].Header().ID)

	page, err = e.lifecycle.List(ctx, supervisor, models.RecordLessonPlan, models.RecordFilter{PageSize: 500})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)
	assert.Equal(t, 100, page.PageSize)

	_, err = e.lifecycle.Get(ctx, teacher, models.RecordLessonPlan, theirs)
	assert.ErrorIs(t, err, appErrors.ErrNotOwner)
	_, err = e.lifecycle.Get(ctx, supervisor, models.RecordLessonPlan, theirs)
	assert.NoError(t, err)
	_, err = e.lifecycle.Get(ctx, teacher, models.RecordLessonPlan, "not-a-uuid")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestBulkApproveExcludesForeignIDs(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	s1 := e.tenant(t, "s1")
	s2 := e.tenant(t, "s2")
	teacher := e.actor(t, s1, models.RoleContributor)
	principal := e.actor(t, s1, models.RoleOwnerAdmin)
	foreignTeacher := e.actor(t, s2, models.RoleContributor)

	first, err := e.lifecycle.Create(ctx, teacher, models.RecordLessonPlan, lessonFields("Fractions", "2025-04-01"))
	require.NoError(t, err)
	second, err := e.lifecycle.Create(ctx, teacher, models.RecordLessonPlan, lessonFields("Decimals", "2025-04-02"))
	require.NoError(t, err)
	_, err = e.lifecycle.Transition(ctx, principal, models.RecordLessonPlan, second, models.ActionApprove, nil)
	require.NoError(t, err)
	foreign, err := e.lifecycle.Create(ctx, foreignTeacher, models.RecordLessonPlan, lessonFields("Fractions", "2025-04-01"))
	require.NoError(t, err)

	result, err := e.lifecycle.BulkTransition(ctx, principal, models.RecordLessonPlan,
		[]string{first, second, foreign, first, "99"}, models.ActionApprove, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{first}, result.Succeeded)
	require.Len(t, result.Rejected, 1)
	assert.Equal(t, second, result.Rejected[0].ID)
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, result.Rejected[0].Code)

	assert.Equal(t, workflow.LessonScheduled, e.header(t, teacher, models.RecordLessonPlan, first).Status)
	assert.Equal(t, workflow.LessonDraft, e.header(t, foreignTeacher, models.RecordLessonPlan, foreign).Status)
}

func TestBulkRejectsPerItemPolicy(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	s1 := e.tenant(t, "s1")
	teacher := e.actor(t, s1, models.RoleContributor)
	colleague := e.actor(t, s1, models.RoleContributor)

	own, err := e.lifecycle.Create(ctx, teacher, models.RecordLessonPlan, lessonFields("Fractions", "2025-04-01"))
	require.NoError(t, err)
	other, err := e.lifecycle.Create(ctx, colleague, models.RecordLessonPlan, lessonFields("Fractions", "2025-04-01"))
	require.NoError(t, err)

	result, err := e.lifecycle.BulkTransition(ctx, teacher, models.RecordLessonPlan, []string{own, other}, models.ActionSubmit, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{own}, result.Succeeded)
	require.Len(t, result.Rejected, 1)
	assert.Equal(t, appErrors.ErrNotOwner.Code, result.Rejected[0].Code)

	result, err = e.lifecycle.BulkTransition(ctx, teacher, models.RecordLessonPlan, []string{own, other}, models.ActionDelete, nil)
	require.NoError(t, err)
	assert.Empty(t, result.Succeeded)
	require.Len(t, result.Rejected, 2)
	codes := []string{result.Rejected[0].Code, result.Rejected[1].Code}
	assert.ElementsMatch(t, []string{appErrors.ErrWrongState.Code, appErrors.ErrNotOwner.Code}, codes)

	_, err = e.lifecycle.BulkTransition(ctx, teacher, models.RecordLessonPlan, nil, models.ActionSubmit, nil)
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestBulkRollsBackWhenAWriteFails(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	s1 := e.tenant(t, "s1")
	teacher := e.actor(t, s1, models.RoleContributor)
	principal := e.actor(t, s1, models.RoleOwnerAdmin)

	first, err := e.lifecycle.Create(ctx, teacher, models.RecordLessonPlan, lessonFields("Fractions", "2025-04-01"))
	require.NoError(t, err)
	second, err := e.lifecycle.Create(ctx, teacher, models.RecordLessonPlan, lessonFields("Decimals", "2025-04-02"))
	require.NoError(t, err)

	// the batch is processed in id order; block the row written last
	blocked := first
	if second > first {
		blocked = second
	}
	_, err = e.db.Exec(`CREATE TRIGGER block_plan_review BEFORE UPDATE OF status ON lesson_plans WHEN OLD.id = '` + blocked + `' BEGIN SELECT RAISE(ABORT, 'review blocked'); END`)
	require.NoError(t, err)

	result, err := e.lifecycle.BulkTransition(ctx, principal, models.RecordLessonPlan, []string{first, second}, models.ActionApprove, nil)
	assert.ErrorIs(t, err, appErrors.ErrStorageConflict)
	assert.Nil(t, result)

	for _, id := range []string{first, second} {
		header := e.header(t, principal, models.RecordLessonPlan, id)
		assert.Equal(t, workflow.LessonDraft, header.Status)
		assert.Nil(t, header.ReviewedBy)
	}
}

func TestTimeRecordReview(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	s1 := e.tenant(t, "s1")
	clerk := e.actor(t, s1, models.RoleAuxiliary)
	supervisor := e.actor(t, s1, models.RoleSupervisor)

	id, err := e.lifecycle.Create(ctx, clerk, models.RecordTimeRecord, json.RawMessage(`{"work_date":"2025-04-01","time_in":"07:45"}`))
	require.NoError(t, err)

	_, err = e.lifecycle.Transition(ctx, clerk, models.RecordTimeRecord, id, models.ActionAgree, nil)
	assert.ErrorIs(t, err, appErrors.ErrInsufficientRole)

	record, err := e.lifecycle.Transition(ctx, supervisor, models.RecordTimeRecord, id, models.ActionAgree, nil)
	require.NoError(t, err)
	assert.Equal(t, workflow.TimeAgreed, record.Header().Status)
	assert.Equal(t, supervisor.ActorID, *record.Header().ReviewedBy)

	_, err = e.lifecycle.Transition(ctx, clerk, models.RecordTimeRecord, id, models.ActionEdit, json.RawMessage(`{"time_out":"15:00"}`))
	assert.ErrorIs(t, err, appErrors.ErrWrongState)

	record, err = e.lifecycle.Transition(ctx, supervisor, models.RecordTimeRecord, id, models.ActionReset, nil)
	require.NoError(t, err)
	assert.Equal(t, workflow.TimePending, record.Header().Status)

	record, err = e.lifecycle.Transition(ctx, clerk, models.RecordTimeRecord, id, models.ActionEdit, json.RawMessage(`{"time_out":"15:00"}`))
	require.NoError(t, err)
	assert.Equal(t, "15:00", *record.(*models.TimeRecord).TimeOut)
}

func TestTimeRecordEditKeepsTimeOrder(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	s1 := e.tenant(t, "s1")
	clerk := e.actor(t, s1, models.RoleAuxiliary)

	_, err := e.lifecycle.Create(ctx, clerk, models.RecordTimeRecord, json.RawMessage(`{"work_date":"2025-04-01","time_in":"08:00","time_out":"07:00"}`))
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	id, err := e.lifecycle.Create(ctx, clerk, models.RecordTimeRecord, json.RawMessage(`{"work_date":"2025-04-01","time_in":"08:00"}`))
	require.NoError(t, err)

	_, err = e.lifecycle.Transition(ctx, clerk, models.RecordTimeRecord, id, models.ActionEdit, json.RawMessage(`{"time_out":"07:00"}`))
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	record, err := e.lifecycle.Transition(ctx, clerk, models.RecordTimeRecord, id, models.ActionEdit, json.RawMessage(`{"time_out":"16:00"}`))
	require.NoError(t, err)
	assert.Equal(t, "16:00", *record.(*models.TimeRecord).TimeOut)

	_, err = e.lifecycle.Transition(ctx, clerk, models.RecordTimeRecord, id, models.ActionEdit, json.RawMessage(`{"time_in":"17:00"}`))
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	record, err = e.lifecycle.Transition(ctx, clerk, models.RecordTimeRecord, id, models.ActionEdit, json.RawMessage(`{"time_in":"17:00","time_out":""}`))
	require.NoError(t, err)
	stored := record.(*models.TimeRecord)
	assert.Equal(t, "17:00", stored.TimeIn)
	assert.Nil(t, stored.TimeOut)
}

func TestNewsPublishingAndComments(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	s1 := e.tenant(t, "greenfield")
	principal := e.actor(t, s1, models.RoleOwnerAdmin)
	teacher := e.actor(t, s1, models.RoleContributor)

	_, err := e.lifecycle.Create(ctx, teacher, models.RecordNewsItem, json.RawMessage(`{"title":"Open Day","body":"Welcome"}`))
	assert.ErrorIs(t, err, appErrors.ErrInsufficientRole)

	newsID, err := e.lifecycle.Create(ctx, principal, models.RecordNewsItem, json.RawMessage(`{"title":"Open Day!","body":"Welcome"}`))
	require.NoError(t, err)
	_, err = e.lifecycle.Create(ctx, principal, models.RecordNewsItem, json.RawMessage(`{"title":"Open day","body":"Again"}`))
	assert.ErrorIs(t, err, appErrors.ErrDuplicateRecord, "slug open-day is taken")

	_, err = e.comments.Submit(ctx, "greenfield", nil, newsID, dto.CommentRequest{Body: "too early"})
	assert.ErrorIs(t, err, appErrors.ErrWrongState)

	_, err = e.lifecycle.Transition(ctx, principal, models.RecordNewsItem, newsID, models.ActionSchedule, nil)
	assert.ErrorIs(t, err, appErrors.ErrValidation)
	_, err = e.lifecycle.Transition(ctx, principal, models.RecordNewsItem, newsID, models.ActionSchedule, json.RawMessage(`{"title":"Other"}`))
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	record, err := e.lifecycle.Transition(ctx, principal, models.RecordNewsItem, newsID, models.ActionSchedule, json.RawMessage(`{"publish_at":"2025-05-01T08:00:00Z"}`))
	require.NoError(t, err)
	news := record.(*models.NewsItem)
	assert.Equal(t, workflow.NewsScheduled, news.Status)
	require.NotNil(t, news.PublishAt)

	record, err = e.lifecycle.Transition(ctx, principal, models.RecordNewsItem, newsID, models.ActionPublish, nil)
	require.NoError(t, err)
	assert.NotNil(t, record.(*models.NewsItem).PublishedAt)

	commentID, err := e.comments.Submit(ctx, "greenfield", nil, newsID, dto.CommentRequest{Body: "See you there"})
	require.NoError(t, err)
	comment := e.header(t, principal, models.RecordNewsComment, commentID)
	assert.Equal(t, workflow.CommentPending, comment.Status)
	assert.Nil(t, comment.OwnerID)

	_, err = e.comments.Submit(ctx, "unknown", nil, newsID, dto.CommentRequest{Body: "hello"})
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	_, err = e.lifecycle.Transition(ctx, teacher, models.RecordNewsComment, commentID, models.ActionApprove, nil)
	assert.ErrorIs(t, err, appErrors.ErrInsufficientRole)
	record, err = e.lifecycle.Transition(ctx, principal, models.RecordNewsComment, commentID, models.ActionApprove, nil)
	require.NoError(t, err)
	assert.Equal(t, workflow.CommentApproved, record.Header().Status)

	require.NoError(t, e.lifecycle.Delete(ctx, principal, models.RecordNewsItem, newsID))
	_, err = e.lifecycle.Get(ctx, principal, models.RecordNewsComment, commentID)
	assert.ErrorIs(t, err, appErrors.ErrNotFound, "comments cascade with their news item")
}

func TestCommentFromAnotherTenantIsRejected(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	s1 := e.tenant(t, "s1")
	s2 := e.tenant(t, "s2")
	principal := e.actor(t, s1, models.RoleOwnerAdmin)
	outsider := e.actor(t, s2, models.RoleContributor)

	newsID, err := e.lifecycle.Create(ctx, principal, models.RecordNewsItem, json.RawMessage(`{"title":"Sports","body":"Results"}`))
	require.NoError(t, err)
	_, err = e.lifecycle.Transition(ctx, principal, models.RecordNewsItem, newsID, models.ActionPublish, nil)
	require.NoError(t, err)

	_, err = e.comments.Submit(ctx, "s1", outsider, newsID, dto.CommentRequest{Body: "hi"})
	assert.ErrorIs(t, err, appErrors.ErrTenantMismatch)

	_, err = e.comments.Submit(ctx, "s2", outsider, newsID, dto.CommentRequest{Body: "hi"})
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestDeleteActorReassignsToSuccessor(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	s1 := e.tenant(t, "s1")
	principal := e.actor(t, s1, models.RoleOwnerAdmin)
	leaving := e.actor(t, s1, models.RoleContributor)
	successor := e.actor(t, s1, models.RoleContributor)

	planID, err := e.lifecycle.Create(ctx, leaving, models.RecordLessonPlan, lessonFields("Fractions", "2025-04-01"))
	require.NoError(t, err)
	timeID, err := e.lifecycle.Create(ctx, leaving, models.RecordTimeRecord, json.RawMessage(`{"work_date":"2025-04-01","time_in":"08:00"}`))
	require.NoError(t, err)

	assert.ErrorIs(t, e.actors.Delete(ctx, principal, principal.ActorID, ""), appErrors.ErrSelfDeletion)
	assert.ErrorIs(t, e.actors.Delete(ctx, leaving, successor.ActorID, ""), appErrors.ErrInsufficientRole)

	require.NoError(t, e.actors.Delete(ctx, principal, leaving.ActorID, successor.ActorID))

	assert.Equal(t, successor.ActorID, e.header(t, principal, models.RecordLessonPlan, planID).Owner())
	assert.Equal(t, successor.ActorID, e.header(t, principal, models.RecordTimeRecord, timeID).Owner())

	scope, err := tenancy.FromActor(principal)
	require.NoError(t, err)
	_, err = e.actorRepo.Get(ctx, e.db, scope, leaving.ActorID, false)
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestDeleteActorWithoutSuccessorClearsOwner(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	s1 := e.tenant(t, "s1")
	principal := e.actor(t, s1, models.RoleOwnerAdmin)
	supervisor := e.actor(t, s1, models.RoleSupervisor)
	clerk := e.actor(t, s1, models.RoleAuxiliary)

	timeID, err := e.lifecycle.Create(ctx, clerk, models.RecordTimeRecord, json.RawMessage(`{"work_date":"2025-04-01","time_in":"08:00"}`))
	require.NoError(t, err)
	_, err = e.lifecycle.Transition(ctx, supervisor, models.RecordTimeRecord, timeID, models.ActionAgree, nil)
	require.NoError(t, err)

	require.NoError(t, e.actors.Delete(ctx, principal, supervisor.ActorID, ""))
	header := e.header(t, principal, models.RecordTimeRecord, timeID)
	assert.Nil(t, header.ReviewedBy)
	assert.Equal(t, clerk.ActorID, header.Owner())

	require.NoError(t, e.actors.Delete(ctx, principal, clerk.ActorID, ""))
	assert.Nil(t, e.header(t, principal, models.RecordTimeRecord, timeID).OwnerID)
}

func TestDeleteActorRollsBackWhenADetachFails(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	s1 := e.tenant(t, "s1")
	principal := e.actor(t, s1, models.RoleOwnerAdmin)
	leaving := e.actor(t, s1, models.RoleContributor)
	successor := e.actor(t, s1, models.RoleContributor)

	planID, err := e.lifecycle.Create(ctx, leaving, models.RecordLessonPlan, lessonFields("Fractions", "2025-04-01"))
	require.NoError(t, err)
	_, err = e.lifecycle.Create(ctx, leaving, models.RecordTimeRecord, json.RawMessage(`{"work_date":"2025-04-01","time_in":"08:00"}`))
	require.NoError(t, err)

	_, err = e.db.Exec(`CREATE TRIGGER block_time_owner BEFORE UPDATE OF owner_id ON time_records BEGIN SELECT RAISE(ABORT, 'owner change blocked'); END`)
	require.NoError(t, err)

	err = e.actors.Delete(ctx, principal, leaving.ActorID, successor.ActorID)
	assert.ErrorIs(t, err, appErrors.ErrStorageConflict)

	assert.Equal(t, leaving.ActorID, e.header(t, principal, models.RecordLessonPlan, planID).Owner(),
		"lesson plans detached before the failure are restored")
	scope, err := tenancy.FromActor(principal)
	require.NoError(t, err)
	_, err = e.actorRepo.Get(ctx, e.db, scope, leaving.ActorID, false)
	assert.NoError(t, err)
}

func TestDeleteLessonPlanCascadesOptionalResources(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	s1 := e.tenant(t, "s1")
	teacher := e.actor(t, s1, models.RoleContributor)

	withoutTable, err := e.lifecycle.Create(ctx, teacher, models.RecordLessonPlan, lessonFields("Fractions", "2025-04-01"))
	require.NoError(t, err)
	require.NoError(t, e.lifecycle.Delete(ctx, teacher, models.RecordLessonPlan, withoutTable), "absent optional table is skipped")

	_, err = e.db.Exec(`CREATE TABLE lesson_plan_resources (id TEXT PRIMARY KEY, tenant_id TEXT NOT NULL, lesson_plan_id TEXT NOT NULL, uploaded_by TEXT NULL)`)
	require.NoError(t, err)

	planID, err := e.lifecycle.Create(ctx, teacher, models.RecordLessonPlan, lessonFields("Decimals", "2025-04-02"))
	require.NoError(t, err)
	_, err = e.db.Exec(`INSERT INTO lesson_plan_resources (id, tenant_id, lesson_plan_id, uploaded_by) VALUES (?, ?, ?, ?)`,
		uuid.NewString(), s1, planID, teacher.ActorID)
	require.NoError(t, err)

	require.NoError(t, e.lifecycle.Delete(ctx, teacher, models.RecordLessonPlan, planID))

	var remaining int
	require.NoError(t, e.db.Get(&remaining, `SELECT COUNT(*) FROM lesson_plan_resources`))
	assert.Zero(t, remaining)
}

func TestCurriculumToggleAndReferenceNullify(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	s1 := e.tenant(t, "s1")
	principal := e.actor(t, s1, models.RoleOwnerAdmin)
	teacher := e.actor(t, s1, models.RoleContributor)

	entryID, err := e.lifecycle.Create(ctx, principal, models.RecordCurriculumEntry,
		json.RawMessage(`{"subject_id":"math","grade_level":5,"term":"T1","week":3,"topic":"Fractions"}`))
	require.NoError(t, err)

	record, err := e.lifecycle.Transition(ctx, principal, models.RecordCurriculumEntry, entryID, models.ActionDeactivate, nil)
	require.NoError(t, err)
	assert.Equal(t, workflow.CurriculumInactive, record.Header().Status)
	_, err = e.lifecycle.Transition(ctx, principal, models.RecordCurriculumEntry, entryID, models.ActionDeactivate, nil)
	assert.ErrorIs(t, err, appErrors.ErrInvalidTransition)

	planID, err := e.lifecycle.Create(ctx, teacher, models.RecordLessonPlan,
		json.RawMessage(`{"topic":"Fractions","class_id":"5","date_planned":"2025-04-01","curriculum_entry_id":"`+entryID+`"}`))
	require.NoError(t, err)
	_, err = e.lifecycle.Create(ctx, teacher, models.RecordLessonPlan,
		json.RawMessage(`{"topic":"Other","class_id":"5","date_planned":"2025-04-01","curriculum_entry_id":"`+uuid.NewString()+`"}`))
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	require.NoError(t, e.lifecycle.Delete(ctx, principal, models.RecordCurriculumEntry, entryID))
	record, err = e.lifecycle.Get(ctx, teacher, models.RecordLessonPlan, planID)
	require.NoError(t, err)
	assert.Nil(t, record.(*models.LessonPlan).CurriculumEntryID)
}
