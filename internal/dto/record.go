package dto

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/noah-isme/sma-lifecycle-api/internal/models"
)

const dateLayout = "2006-01-02"

// RecordInput is the decoded field payload of one record variant. Pointer
// fields distinguish "not sent" from "cleared".
type RecordInput interface {
	// Lifecycle returns the owner/override envelope of the payload.
	Lifecycle() LifecycleFields
	// Columns returns the variant columns present in the payload.
	Columns() (map[string]interface{}, error)
	// Required lists the columns a create must carry.
	Required() []string
}

// LifecycleFields are accepted on every variant. Status and ApprovalState are
// owner-admin overrides.
type LifecycleFields struct {
	OwnerID       *string `json:"owner_id" validate:"omitempty,uuid"`
	Status        *string `json:"status" validate:"omitempty,max=32"`
	ApprovalState *string `json:"approval_state" validate:"omitempty,max=32"`
}

func (l LifecycleFields) Lifecycle() LifecycleFields { return l }

// HasOverride reports whether the payload tries to set lifecycle state.
func (l LifecycleFields) HasOverride() bool {
	return l.Status != nil || l.ApprovalState != nil
}

// NewRecordInput allocates the payload type of a variant.
func NewRecordInput(t models.RecordType) (RecordInput, error) {
	switch t {
	case models.RecordLessonPlan:
		return &LessonPlanInput{}, nil
	case models.RecordTimeRecord:
		return &TimeRecordInput{}, nil
	case models.RecordNewsItem:
		return &NewsItemInput{}, nil
	case models.RecordCurriculumEntry:
		return &CurriculumEntryInput{}, nil
	case models.RecordNewsComment:
		return &NewsCommentInput{}, nil
	default:
		return nil, fmt.Errorf("unknown record type %q", t)
	}
}

// DecodeRecordInput strictly decodes raw into the payload of t. An empty
// payload decodes to an empty input.
func DecodeRecordInput(t models.RecordType, raw json.RawMessage) (RecordInput, error) {
	input, err := NewRecordInput(t)
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(raw))) == 0 || string(raw) == "null" {
		return input, nil
	}
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(input); err != nil {
		return nil, fmt.Errorf("decode %s fields: %w", t, err)
	}
	return input, nil
}

// LessonPlanInput is the payload of a lesson plan.
type LessonPlanInput struct {
	LifecycleFields
	ClassID           *string `json:"class_id" validate:"omitempty,min=1,max=64"`
	SubjectID         *string `json:"subject_id" validate:"omitempty,max=64"`
	Topic             *string `json:"topic" validate:"omitempty,min=1,max=255"`
	DatePlanned       *string `json:"date_planned" validate:"omitempty,datetime=2006-01-02"`
	Objectives        *string `json:"objectives" validate:"omitempty,max=4000"`
	CurriculumEntryID *string `json:"curriculum_entry_id" validate:"omitempty,uuid"`
}

func (in *LessonPlanInput) Required() []string {
	return []string{"class_id", "topic", "date_planned"}
}

func (in *LessonPlanInput) Columns() (map[string]interface{}, error) {
	cols := map[string]interface{}{}
	setString(cols, "class_id", in.ClassID)
	setNullable(cols, "subject_id", in.SubjectID)
	setString(cols, "topic", in.Topic)
	setNullable(cols, "objectives", in.Objectives)
	setNullable(cols, "curriculum_entry_id", in.CurriculumEntryID)
	if err := setDate(cols, "date_planned", in.DatePlanned); err != nil {
		return nil, err
	}
	return cols, nil
}

// TimeRecordInput is the payload of a time record.
type TimeRecordInput struct {
	LifecycleFields
	WorkDate *string `json:"work_date" validate:"omitempty,datetime=2006-01-02"`
	TimeIn   *string `json:"time_in" validate:"omitempty,datetime=15:04"`
	TimeOut  *string `json:"time_out" validate:"omitempty,datetime=15:04"`
	Notes    *string `json:"notes" validate:"omitempty,max=1000"`
}

func (in *TimeRecordInput) Required() []string {
	return []string{"work_date", "time_in"}
}

func (in *TimeRecordInput) Columns() (map[string]interface{}, error) {
	cols := map[string]interface{}{}
	setString(cols, "time_in", in.TimeIn)
	setNullable(cols, "time_out", in.TimeOut)
	setNullable(cols, "notes", in.Notes)
	if err := setDate(cols, "work_date", in.WorkDate); err != nil {
		return nil, err
	}
	if in.TimeIn != nil && in.TimeOut != nil {
		if err := CheckTimeRange(*in.TimeIn, *in.TimeOut); err != nil {
			return nil, err
		}
	}
	return cols, nil
}

// CheckTimeRange rejects a time_out earlier than time_in. An empty time_out
// leaves the record open.
func CheckTimeRange(timeIn, timeOut string) error {
	timeIn, timeOut = strings.TrimSpace(timeIn), strings.TrimSpace(timeOut)
	if timeOut != "" && timeOut < timeIn {
		return fmt.Errorf("time_out %s is before time_in %s", timeOut, timeIn)
	}
	return nil
}

// NewsItemInput is the payload of a news item. A missing slug is derived
// from the title.
type NewsItemInput struct {
	LifecycleFields
	Title     *string    `json:"title" validate:"omitempty,min=1,max=200"`
	Slug      *string    `json:"slug" validate:"omitempty,max=200"`
	Body      *string    `json:"body" validate:"omitempty,min=1"`
	PublishAt *time.Time `json:"publish_at"`
}

func (in *NewsItemInput) Required() []string {
	return []string{"title", "slug", "body"}
}

func (in *NewsItemInput) Columns() (map[string]interface{}, error) {
	cols := map[string]interface{}{}
	setString(cols, "title", in.Title)
	setString(cols, "body", in.Body)
	switch {
	case in.Slug != nil:
		slug := Slugify(*in.Slug)
		if slug == "" {
			return nil, fmt.Errorf("slug %q has no usable characters", *in.Slug)
		}
		cols["slug"] = slug
	case in.Title != nil:
		if slug := Slugify(*in.Title); slug != "" {
			cols["slug"] = slug
		}
	}
	if in.PublishAt != nil {
		cols["publish_at"] = in.PublishAt.UTC()
	}
	return cols, nil
}

// CurriculumEntryInput is the payload of a curriculum entry.
type CurriculumEntryInput struct {
	LifecycleFields
	SubjectID   *string `json:"subject_id" validate:"omitempty,min=1,max=64"`
	GradeLevel  *int    `json:"grade_level" validate:"omitempty,min=1,max=12"`
	Term        *string `json:"term" validate:"omitempty,min=1,max=32"`
	Week        *int    `json:"week" validate:"omitempty,min=1,max=53"`
	Topic       *string `json:"topic" validate:"omitempty,min=1,max=255"`
	Description *string `json:"description" validate:"omitempty,max=4000"`
}

func (in *CurriculumEntryInput) Required() []string {
	return []string{"subject_id", "grade_level", "term", "week", "topic"}
}

func (in *CurriculumEntryInput) Columns() (map[string]interface{}, error) {
	cols := map[string]interface{}{}
	setString(cols, "subject_id", in.SubjectID)
	setString(cols, "term", in.Term)
	setString(cols, "topic", in.Topic)
	setNullable(cols, "description", in.Description)
	if in.GradeLevel != nil {
		cols["grade_level"] = *in.GradeLevel
	}
	if in.Week != nil {
		cols["week"] = *in.Week
	}
	return cols, nil
}

// NewsCommentInput is the payload of a comment.
type NewsCommentInput struct {
	LifecycleFields
	NewsID     *string `json:"news_id" validate:"omitempty,uuid"`
	AuthorName *string `json:"author_name" validate:"omitempty,min=1,max=120"`
	Body       *string `json:"body" validate:"omitempty,min=1,max=2000"`
}

func (in *NewsCommentInput) Required() []string {
	return []string{"news_id", "author_name", "body"}
}

func (in *NewsCommentInput) Columns() (map[string]interface{}, error) {
	cols := map[string]interface{}{}
	setString(cols, "news_id", in.NewsID)
	setString(cols, "author_name", in.AuthorName)
	setString(cols, "body", in.Body)
	return cols, nil
}

var slugInvalid = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lower-cases s and collapses everything but letters and digits into
// single hyphens.
func Slugify(s string) string {
	slug := slugInvalid.ReplaceAllString(strings.ToLower(strings.TrimSpace(s)), "-")
	return strings.Trim(slug, "-")
}

func setString(cols map[string]interface{}, column string, v *string) {
	if v != nil {
		cols[column] = strings.TrimSpace(*v)
	}
}

// setNullable stores an empty string as NULL.
func setNullable(cols map[string]interface{}, column string, v *string) {
	if v == nil {
		return
	}
	if trimmed := strings.TrimSpace(*v); trimmed != "" {
		cols[column] = trimmed
		return
	}
	cols[column] = nil
}

func setDate(cols map[string]interface{}, column string, v *string) error {
	if v == nil {
		return nil
	}
	d, err := time.Parse(dateLayout, *v)
	if err != nil {
		return fmt.Errorf("%s: %w", column, err)
	}
	cols[column] = d
	return nil
}
