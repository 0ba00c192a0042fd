package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-lifecycle-api/internal/models"
	"github.com/noah-isme/sma-lifecycle-api/internal/tenancy"
	"github.com/noah-isme/sma-lifecycle-api/pkg/database"
	appErrors "github.com/noah-isme/sma-lifecycle-api/pkg/errors"
)

const headerColumns = "id, tenant_id, owner_id, status, approval_state, reviewed_by, reviewed_at, created_at, updated_at"

type recordSchema struct {
	columns   []string
	uniqueKey []string
}

var recordSchemas = map[models.RecordType]recordSchema{
	models.RecordLessonPlan: {
		columns:   []string{"class_id", "subject_id", "topic", "date_planned", "objectives", "curriculum_entry_id"},
		uniqueKey: []string{"owner_id", "class_id", "topic", "date_planned"},
	},
	models.RecordTimeRecord: {
		columns:   []string{"work_date", "time_in", "time_out", "notes"},
		uniqueKey: []string{"owner_id", "work_date"},
	},
	models.RecordNewsItem: {
		columns:   []string{"title", "slug", "body", "publish_at", "published_at"},
		uniqueKey: []string{"slug"},
	},
	models.RecordCurriculumEntry: {
		columns:   []string{"subject_id", "grade_level", "term", "week", "topic", "description"},
		uniqueKey: []string{"subject_id", "grade_level", "term", "week"},
	},
	models.RecordNewsComment: {
		columns: []string{"news_id", "author_name", "body"},
	},
}

func schemaFor(t models.RecordType) (recordSchema, error) {
	schema, ok := recordSchemas[t]
	if !ok {
		return recordSchema{}, fmt.Errorf("repository: unknown record type %q", t)
	}
	return schema, nil
}

// UniqueKey returns the columns that identify a record of t within a tenant;
// nil when the variant has no uniqueness key.
func UniqueKey(t models.RecordType) []string {
	return recordSchemas[t].uniqueKey
}

// RecordInsert carries the header values of a new record.
type RecordInsert struct {
	ID         string
	OwnerID    *string
	Status     string
	Approval   *string
	ReviewedBy *string
	ReviewedAt *time.Time
	CreatedAt  time.Time
}

// StateChange is the rendered outcome of a transition or edit, written in a
// single guarded statement.
type StateChange struct {
	Status      string
	Approval    *string
	SetApproval bool
	ReviewedBy  *string
	ReviewedAt  *time.Time
	PublishedAt *time.Time
	Columns     map[string]interface{}
	UpdatedAt   time.Time
}

// RecordRepository stores every workflow record variant. Methods take the
// executor explicitly so callers compose them inside one transaction.
type RecordRepository struct {
	db      *sqlx.DB
	dialect database.Dialect
}

// NewRecordRepository constructs the repository.
func NewRecordRepository(db *sqlx.DB, dialect database.Dialect) *RecordRepository {
	return &RecordRepository{db: db, dialect: dialect}
}

// DB exposes the pool for read paths and transaction scoping.
func (r *RecordRepository) DB() *sqlx.DB { return r.db }

// Insert writes a new record. A unique index violation is returned as
// DUPLICATE_RECORD.
func (r *RecordRepository) Insert(ctx context.Context, q sqlx.ExtContext, scope tenancy.Scope, t models.RecordType, header RecordInsert, columns map[string]interface{}) error {
	schema, err := schemaFor(t)
	if err != nil {
		return err
	}

	values := make(map[string]interface{}, len(columns)+8)
	for column, value := range columns {
		if !containsColumn(schema.columns, column) {
			return fmt.Errorf("repository: %s has no column %q", t, column)
		}
		values[column] = value
	}
	values["id"] = header.ID
	values["owner_id"] = header.OwnerID
	values["status"] = header.Status
	values["approval_state"] = header.Approval
	values["reviewed_by"] = header.ReviewedBy
	values["reviewed_at"] = header.ReviewedAt
	values["created_at"] = header.CreatedAt
	values["updated_at"] = header.CreatedAt

	query, args, err := scopedInsert(scope, t.Table(), values)
	if err != nil {
		return err
	}
	if _, err := q.ExecContext(ctx, q.Rebind(query), args...); err != nil {
		if r.dialect.IsUniqueViolation(err) {
			return appErrors.Wrap(err, appErrors.ErrDuplicateRecord.Code, appErrors.ErrDuplicateRecord.Status,
				fmt.Sprintf("a %s with the same key already exists", t))
		}
		return fmt.Errorf("insert %s: %w", t, err)
	}
	return nil
}

// Exists reports whether a row of t in scope matches every key column. A nil
// value matches NULL.
func (r *RecordRepository) Exists(ctx context.Context, q sqlx.ExtContext, scope tenancy.Scope, t models.RecordType, key map[string]interface{}, excludeID string) (bool, error) {
	qb, err := newScopedQuery(scope, t.Table())
	if err != nil {
		return false, err
	}
	for _, column := range UniqueKey(t) {
		value, ok := key[column]
		if !ok || value == nil {
			qb.Where(column + " IS NULL")
			continue
		}
		qb.Where(column+" = ?", value)
	}
	if excludeID != "" {
		qb.Where("id <> ?", excludeID)
	}

	query, args := qb.Select("1", "LIMIT 1")
	var found int
	err = sqlx.GetContext(ctx, q, &found, q.Rebind(query), args...)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check %s uniqueness: %w", t, err)
	}
	return true, nil
}

// KeyValues returns the current unique key columns of a row; nil when the
// variant has no declared key.
func (r *RecordRepository) KeyValues(ctx context.Context, q sqlx.ExtContext, scope tenancy.Scope, t models.RecordType, id string) (map[string]interface{}, error) {
	key := UniqueKey(t)
	if len(key) == 0 {
		return nil, nil
	}
	return r.ColumnValues(ctx, q, scope, t, id, key)
}

// ColumnValues reads the named columns of one row. Text values are returned
// as strings.
func (r *RecordRepository) ColumnValues(ctx context.Context, q sqlx.ExtContext, scope tenancy.Scope, t models.RecordType, id string, columns []string) (map[string]interface{}, error) {
	qb, err := newScopedQuery(scope, t.Table())
	if err != nil {
		return nil, err
	}
	query, args := qb.Where("id = ?", id).Select(strings.Join(columns, ", "), "")

	values := make(map[string]interface{}, len(columns))
	if err := q.QueryRowxContext(ctx, q.Rebind(query), args...).MapScan(values); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("%s not found", t))
		}
		return nil, fmt.Errorf("read %s columns: %w", t, err)
	}
	for column, value := range values {
		// uuid and text columns may come back as raw bytes
		if raw, ok := value.([]byte); ok {
			values[column] = string(raw)
		}
	}
	return values, nil
}

// LockState reads and locks the lifecycle columns of one row.
func (r *RecordRepository) LockState(ctx context.Context, q sqlx.ExtContext, scope tenancy.Scope, t models.RecordType, id string) (*models.RecordState, error) {
	qb, err := newScopedQuery(scope, t.Table())
	if err != nil {
		return nil, err
	}
	query, args := qb.Where("id = ?", id).Select("id, owner_id, status, approval_state", r.dialect.LockClause())

	var state models.RecordState
	if err := sqlx.GetContext(ctx, q, &state, q.Rebind(query), args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("%s not found", t))
		}
		return nil, fmt.Errorf("lock %s: %w", t, err)
	}
	return &state, nil
}

// LockStates locks the rows of ids that exist in scope, in id order. Ids
// outside the scope are simply absent from the result.
func (r *RecordRepository) LockStates(ctx context.Context, q sqlx.ExtContext, scope tenancy.Scope, t models.RecordType, ids []string) ([]models.RecordState, error) {
	qb, err := newScopedQuery(scope, t.Table())
	if err != nil {
		return nil, err
	}
	query, args := qb.WhereIn("id", ids).Select("id, owner_id, status, approval_state", "ORDER BY id"+r.dialect.LockClause())

	var states []models.RecordState
	if err := sqlx.SelectContext(ctx, q, &states, q.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("lock %s batch: %w", t, err)
	}
	return states, nil
}

// UpdateState applies change to the row only while it is still in
// expectStatus. It returns sql.ErrNoRows when the guard did not match.
func (r *RecordRepository) UpdateState(ctx context.Context, q sqlx.ExtContext, scope tenancy.Scope, t models.RecordType, id, expectStatus string, change StateChange) error {
	schema, err := schemaFor(t)
	if err != nil {
		return err
	}

	set := []string{"status = ?", "updated_at = ?"}
	setArgs := []interface{}{change.Status, change.UpdatedAt}
	if change.SetApproval {
		set = append(set, "approval_state = ?")
		setArgs = append(setArgs, change.Approval)
	}
	if change.ReviewedAt != nil {
		set = append(set, "reviewed_by = ?", "reviewed_at = ?")
		setArgs = append(setArgs, change.ReviewedBy, change.ReviewedAt)
	}
	if change.PublishedAt != nil {
		set = append(set, "published_at = ?")
		setArgs = append(setArgs, change.PublishedAt)
	}
	for _, column := range sortedKeys(change.Columns) {
		if !containsColumn(schema.columns, column) && column != "owner_id" {
			return fmt.Errorf("repository: %s has no column %q", t, column)
		}
		set = append(set, column+" = ?")
		setArgs = append(setArgs, change.Columns[column])
	}

	qb, err := newScopedQuery(scope, t.Table())
	if err != nil {
		return err
	}
	query, args := qb.Where("id = ?", id).Where("status = ?", expectStatus).Update(set, setArgs)

	result, err := q.ExecContext(ctx, q.Rebind(query), args...)
	if err != nil {
		if r.dialect.IsUniqueViolation(err) {
			return appErrors.Wrap(err, appErrors.ErrDuplicateRecord.Code, appErrors.ErrDuplicateRecord.Status,
				fmt.Sprintf("a %s with the same key already exists", t))
		}
		return fmt.Errorf("update %s: %w", t, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check %s update rows: %w", t, err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// NullColumns returns which of columns are NULL on the row.
func (r *RecordRepository) NullColumns(ctx context.Context, q sqlx.ExtContext, scope tenancy.Scope, t models.RecordType, id string, columns []string) ([]string, error) {
	if len(columns) == 0 {
		return nil, nil
	}
	schema, err := schemaFor(t)
	if err != nil {
		return nil, err
	}
	exprs := make([]string, len(columns))
	for i, column := range columns {
		if !containsColumn(schema.columns, column) {
			return nil, fmt.Errorf("repository: %s has no column %q", t, column)
		}
		exprs[i] = fmt.Sprintf("CASE WHEN %s IS NULL THEN 1 ELSE 0 END", column)
	}

	qb, err := newScopedQuery(scope, t.Table())
	if err != nil {
		return nil, err
	}
	query, args := qb.Where("id = ?", id).Select(strings.Join(exprs, ", "), "")

	row := q.QueryRowxContext(ctx, q.Rebind(query), args...)
	flags := make([]int, len(columns))
	dest := make([]interface{}, len(columns))
	for i := range flags {
		dest[i] = &flags[i]
	}
	if err := row.Scan(dest...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("%s not found", t))
		}
		return nil, fmt.Errorf("inspect %s: %w", t, err)
	}

	var missing []string
	for i, flag := range flags {
		if flag == 1 {
			missing = append(missing, columns[i])
		}
	}
	return missing, nil
}

// Get loads one record of t in scope.
func (r *RecordRepository) Get(ctx context.Context, q sqlx.ExtContext, scope tenancy.Scope, t models.RecordType, id string) (models.Record, error) {
	schema, err := schemaFor(t)
	if err != nil {
		return nil, err
	}
	qb, err := newScopedQuery(scope, t.Table())
	if err != nil {
		return nil, err
	}
	query, args := qb.Where("id = ?", id).Select(selectList(schema), "")

	record := models.NewRecord(t)
	if err := sqlx.GetContext(ctx, q, record, q.Rebind(query), args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("%s not found", t))
		}
		return nil, fmt.Errorf("get %s: %w", t, err)
	}
	return record, nil
}

// List returns a page of records in scope together with the total count.
func (r *RecordRepository) List(ctx context.Context, scope tenancy.Scope, t models.RecordType, filter models.RecordFilter) ([]models.Record, int, error) {
	schema, err := schemaFor(t)
	if err != nil {
		return nil, 0, err
	}
	qb, err := newScopedQuery(scope, t.Table())
	if err != nil {
		return nil, 0, err
	}
	if filter.Status != "" {
		qb.Where("status = ?", filter.Status)
	}
	if filter.OwnerID != "" {
		qb.Where("owner_id = ?", filter.OwnerID)
	}
	if filter.NewsID != "" && t == models.RecordNewsComment {
		qb.Where("news_id = ?", filter.NewsID)
	}

	countQuery, countArgs := qb.Count()
	var total int
	if err := sqlx.GetContext(ctx, r.db, &total, r.db.Rebind(countQuery), countArgs...); err != nil {
		return nil, 0, fmt.Errorf("count %s: %w", t, err)
	}

	page, size := NormalizePage(filter.Page, filter.PageSize)
	query, args := qb.Select(selectList(schema), fmt.Sprintf("ORDER BY created_at DESC, id LIMIT %d OFFSET %d", size, (page-1)*size))
	records, err := selectRecords(ctx, r.db, t, r.db.Rebind(query), args)
	if err != nil {
		return nil, 0, fmt.Errorf("list %s: %w", t, err)
	}
	return records, total, nil
}

// Delete removes one record in scope.
func (r *RecordRepository) Delete(ctx context.Context, q sqlx.ExtContext, scope tenancy.Scope, t models.RecordType, id string) error {
	qb, err := newScopedQuery(scope, t.Table())
	if err != nil {
		return err
	}
	query, args := qb.Where("id = ?", id).Delete()
	result, err := q.ExecContext(ctx, q.Rebind(query), args...)
	if err != nil {
		return fmt.Errorf("delete %s: %w", t, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check %s delete rows: %w", t, err)
	}
	if rows == 0 {
		return appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("%s not found", t))
	}
	return nil
}

func selectRecords(ctx context.Context, q sqlx.QueryerContext, t models.RecordType, query string, args []interface{}) ([]models.Record, error) {
	switch t {
	case models.RecordLessonPlan:
		return selectInto[models.LessonPlan](ctx, q, query, args)
	case models.RecordTimeRecord:
		return selectInto[models.TimeRecord](ctx, q, query, args)
	case models.RecordNewsItem:
		return selectInto[models.NewsItem](ctx, q, query, args)
	case models.RecordCurriculumEntry:
		return selectInto[models.CurriculumEntry](ctx, q, query, args)
	case models.RecordNewsComment:
		return selectInto[models.NewsComment](ctx, q, query, args)
	default:
		return nil, fmt.Errorf("repository: unknown record type %q", t)
	}
}

func selectInto[T any, PT interface {
	*T
	models.Record
}](ctx context.Context, q sqlx.QueryerContext, query string, args []interface{}) ([]models.Record, error) {
	var rows []T
	if err := sqlx.SelectContext(ctx, q, &rows, query, args...); err != nil {
		return nil, err
	}
	records := make([]models.Record, len(rows))
	for i := range rows {
		records[i] = PT(&rows[i])
	}
	return records, nil
}

func selectList(schema recordSchema) string {
	return headerColumns + ", " + strings.Join(schema.columns, ", ")
}

// NormalizePage applies the default page size of 20 and the cap of 100.
func NormalizePage(page, size int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}
	if size > 100 {
		size = 100
	}
	return page, size
}

func containsColumn(columns []string, column string) bool {
	for _, c := range columns {
		if c == column {
			return true
		}
	}
	return false
}
