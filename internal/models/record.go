package models

import (
	"strings"
	"time"
)

// RecordType names a workflow record variant.
type RecordType string

const (
	RecordLessonPlan      RecordType = "lesson_plan"
	RecordTimeRecord      RecordType = "time_record"
	RecordNewsItem        RecordType = "news_item"
	RecordCurriculumEntry RecordType = "curriculum_entry"
	RecordNewsComment     RecordType = "news_comment"
)

// RecordTypes lists every variant in a stable order.
var RecordTypes = []RecordType{
	RecordLessonPlan,
	RecordTimeRecord,
	RecordNewsItem,
	RecordCurriculumEntry,
	RecordNewsComment,
}

// ParseRecordType accepts the canonical name as well as the kebab-case and
// plural forms used in URLs ("lesson-plans").
func ParseRecordType(raw string) (RecordType, bool) {
	name := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(raw)), "-", "_")
	for _, t := range RecordTypes {
		if name == string(t) || name == t.plural() {
			return t, true
		}
	}
	return "", false
}

func (t RecordType) plural() string {
	if t == RecordCurriculumEntry {
		return "curriculum_entries"
	}
	return string(t) + "s"
}

// Table returns the backing table of the variant.
func (t RecordType) Table() string {
	return t.plural()
}

// OwnerScoped reports whether non-privileged actors only see their own rows.
func (t RecordType) OwnerScoped() bool {
	return t == RecordLessonPlan || t == RecordTimeRecord
}

// RecordHeader is the column set shared by every variant table.
type RecordHeader struct {
	ID            string     `db:"id" json:"id"`
	TenantID      string     `db:"tenant_id" json:"tenant_id"`
	OwnerID       *string    `db:"owner_id" json:"owner_id,omitempty"`
	Status        string     `db:"status" json:"status"`
	ApprovalState *string    `db:"approval_state" json:"approval_state,omitempty"`
	ReviewedBy    *string    `db:"reviewed_by" json:"reviewed_by,omitempty"`
	ReviewedAt    *time.Time `db:"reviewed_at" json:"reviewed_at,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

// Header gives access to the shared columns of any variant.
func (h *RecordHeader) Header() *RecordHeader { return h }

// Owner returns the owner id or "" when the record is unowned.
func (h *RecordHeader) Owner() string {
	if h.OwnerID == nil {
		return ""
	}
	return *h.OwnerID
}

// Approval returns the approval state or "" when none is set.
func (h *RecordHeader) Approval() string {
	if h.ApprovalState == nil {
		return ""
	}
	return *h.ApprovalState
}

// Record is implemented by pointers to every variant struct.
type Record interface {
	Header() *RecordHeader
}

// LessonPlan is a teacher's plan for one lesson of a class.
type LessonPlan struct {
	RecordHeader
	ClassID           string    `db:"class_id" json:"class_id"`
	SubjectID         *string   `db:"subject_id" json:"subject_id,omitempty"`
	Topic             string    `db:"topic" json:"topic"`
	DatePlanned       time.Time `db:"date_planned" json:"date_planned"`
	Objectives        *string   `db:"objectives" json:"objectives,omitempty"`
	CurriculumEntryID *string   `db:"curriculum_entry_id" json:"curriculum_entry_id,omitempty"`
}

// TimeRecord is one working day of an actor, reviewed by a supervisor.
type TimeRecord struct {
	RecordHeader
	WorkDate time.Time `db:"work_date" json:"work_date"`
	TimeIn   string    `db:"time_in" json:"time_in"`
	TimeOut  *string   `db:"time_out" json:"time_out,omitempty"`
	Notes    *string   `db:"notes" json:"notes,omitempty"`
}

// NewsItem is a school announcement.
type NewsItem struct {
	RecordHeader
	Title       string     `db:"title" json:"title"`
	Slug        string     `db:"slug" json:"slug"`
	Body        string     `db:"body" json:"body"`
	PublishAt   *time.Time `db:"publish_at" json:"publish_at,omitempty"`
	PublishedAt *time.Time `db:"published_at" json:"published_at,omitempty"`
}

// CurriculumEntry is one week of a subject's curriculum for a grade.
type CurriculumEntry struct {
	RecordHeader
	SubjectID   string  `db:"subject_id" json:"subject_id"`
	GradeLevel  int     `db:"grade_level" json:"grade_level"`
	Term        string  `db:"term" json:"term"`
	Week        int     `db:"week" json:"week"`
	Topic       string  `db:"topic" json:"topic"`
	Description *string `db:"description" json:"description,omitempty"`
}

// NewsComment is a moderated comment on a news item. OwnerID is empty for
// anonymous authors.
type NewsComment struct {
	RecordHeader
	NewsID     string `db:"news_id" json:"news_id"`
	AuthorName string `db:"author_name" json:"author_name"`
	Body       string `db:"body" json:"body"`
}

// NewRecord allocates an empty variant for scanning.
func NewRecord(t RecordType) Record {
	switch t {
	case RecordLessonPlan:
		return &LessonPlan{}
	case RecordTimeRecord:
		return &TimeRecord{}
	case RecordNewsItem:
		return &NewsItem{}
	case RecordCurriculumEntry:
		return &CurriculumEntry{}
	case RecordNewsComment:
		return &NewsComment{}
	default:
		return nil
	}
}

// RecordFilter narrows read-scoped listings.
type RecordFilter struct {
	Status   string
	OwnerID  string
	NewsID   string
	Page     int
	PageSize int
}

// RecordState is the locked lifecycle position of one row.
type RecordState struct {
	ID            string  `db:"id"`
	OwnerID       *string `db:"owner_id"`
	Status        string  `db:"status"`
	ApprovalState *string `db:"approval_state"`
}
