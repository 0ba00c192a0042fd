package workflow

import (
	"fmt"

	"github.com/noah-isme/sma-lifecycle-api/internal/models"
	appErrors "github.com/noah-isme/sma-lifecycle-api/pkg/errors"
)

// Lesson plan states.
const (
	LessonDraft     = "draft"
	LessonSubmitted = "submitted"
	LessonScheduled = "scheduled"
	LessonOnHold    = "on_hold"
	LessonCompleted = "completed"

	ApprovalPending  = "pending"
	ApprovalApproved = "approved"
	ApprovalRejected = "rejected"
)

// Time record states.
const (
	TimePending   = "pending"
	TimeAgreed    = "agreed"
	TimeNotAgreed = "not_agreed"
)

// News item states.
const (
	NewsDraft     = "draft"
	NewsScheduled = "scheduled"
	NewsPublished = "published"
	NewsArchived  = "archived"
)

// Curriculum entry states.
const (
	CurriculumActive   = "active"
	CurriculumInactive = "inactive"
)

// Comment moderation states.
const (
	CommentPending  = "pending"
	CommentApproved = "approved"
	CommentRejected = "rejected"
)

var machines = map[models.RecordType]*Machine{
	// Approve and reject also accept a draft so an owner-admin can review a
	// plan the teacher never submitted.
	models.RecordLessonPlan: {
		recordType: models.RecordLessonPlan,
		initial:    State{Status: LessonDraft},
		statuses:   []string{LessonDraft, LessonSubmitted, LessonScheduled, LessonOnHold, LessonCompleted},
		approvals:  []string{ApprovalPending, ApprovalApproved, ApprovalRejected},
		terminal:   []string{LessonCompleted},
		rules: map[models.Action][]rule{
			models.ActionSubmit: {
				{from: []string{LessonDraft}, to: LessonSubmitted, toApproval: ApprovalPending},
			},
			models.ActionApprove: {
				{from: []string{LessonSubmitted}, fromApproval: []string{ApprovalPending}, to: LessonScheduled, toApproval: ApprovalApproved, effects: []Effect{EffectStampReview}},
				{from: []string{LessonDraft}, fromApproval: []string{"", ApprovalPending}, to: LessonScheduled, toApproval: ApprovalApproved, effects: []Effect{EffectStampReview}},
			},
			models.ActionReject: {
				{from: []string{LessonSubmitted}, fromApproval: []string{ApprovalPending}, to: LessonOnHold, toApproval: ApprovalRejected, effects: []Effect{EffectStampReview}},
				{from: []string{LessonDraft}, fromApproval: []string{"", ApprovalPending}, to: LessonOnHold, toApproval: ApprovalRejected, effects: []Effect{EffectStampReview}},
			},
			models.ActionHold: {
				{from: []string{LessonScheduled}, to: LessonOnHold},
			},
			models.ActionResume: {
				{from: []string{LessonOnHold}, fromApproval: []string{ApprovalApproved}, to: LessonScheduled},
			},
			models.ActionComplete: {
				{from: []string{LessonScheduled}, fromApproval: []string{ApprovalApproved}, to: LessonCompleted, effects: []Effect{EffectStampReview}},
			},
		},
	},
	models.RecordTimeRecord: {
		recordType: models.RecordTimeRecord,
		initial:    State{Status: TimePending},
		statuses:   []string{TimePending, TimeAgreed, TimeNotAgreed},
		rules: map[models.Action][]rule{
			models.ActionAgree: {
				{from: []string{TimePending, TimeNotAgreed}, to: TimeAgreed, effects: []Effect{EffectStampReview}},
			},
			models.ActionDisagree: {
				{from: []string{TimePending, TimeAgreed}, to: TimeNotAgreed, effects: []Effect{EffectStampReview}},
			},
			models.ActionReset: {
				{from: []string{TimeAgreed, TimeNotAgreed}, to: TimePending, effects: []Effect{EffectStampReview}},
			},
		},
	},
	models.RecordNewsItem: {
		recordType: models.RecordNewsItem,
		initial:    State{Status: NewsDraft},
		statuses:   []string{NewsDraft, NewsScheduled, NewsPublished, NewsArchived},
		terminal:   []string{NewsArchived},
		rules: map[models.Action][]rule{
			models.ActionSchedule: {
				{from: []string{NewsDraft}, to: NewsScheduled, requires: []string{"publish_at"}},
			},
			models.ActionPublish: {
				{from: []string{NewsDraft, NewsScheduled}, to: NewsPublished, effects: []Effect{EffectStampPublished}},
			},
			models.ActionArchive: {
				{from: []string{NewsPublished}, to: NewsArchived},
			},
		},
	},
	models.RecordCurriculumEntry: {
		recordType: models.RecordCurriculumEntry,
		initial:    State{Status: CurriculumActive},
		statuses:   []string{CurriculumActive, CurriculumInactive},
		rules: map[models.Action][]rule{
			models.ActionActivate: {
				{from: []string{CurriculumInactive}, to: CurriculumActive},
			},
			models.ActionDeactivate: {
				{from: []string{CurriculumActive}, to: CurriculumInactive},
			},
		},
	},
	models.RecordNewsComment: {
		recordType: models.RecordNewsComment,
		initial:    State{Status: CommentPending},
		statuses:   []string{CommentPending, CommentApproved, CommentRejected},
		terminal:   []string{CommentApproved, CommentRejected},
		rules: map[models.Action][]rule{
			models.ActionApprove: {
				{from: []string{CommentPending}, to: CommentApproved, effects: []Effect{EffectStampReview}},
			},
			models.ActionReject: {
				{from: []string{CommentPending}, to: CommentRejected, effects: []Effect{EffectStampReview}},
			},
		},
	},
}

// For returns the machine of a record variant.
func For(t models.RecordType) (*Machine, error) {
	m, ok := machines[t]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown record type %q", t))
	}
	return m, nil
}
