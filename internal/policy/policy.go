// Package policy is the single table of role x action x ownership x state
// decisions. It performs no I/O.
package policy

import (
	"github.com/noah-isme/sma-lifecycle-api/internal/models"
	"github.com/noah-isme/sma-lifecycle-api/internal/workflow"
	appErrors "github.com/noah-isme/sma-lifecycle-api/pkg/errors"
)

// Reason is the machine-readable cause of a denial.
type Reason string

const (
	ReasonNone             Reason = ""
	ReasonUnauthenticated  Reason = "UNAUTHENTICATED"
	ReasonNotOwner         Reason = "NOT_OWNER"
	ReasonWrongState       Reason = "WRONG_STATE"
	ReasonInsufficientRole Reason = "INSUFFICIENT_ROLE"
	ReasonSelfDeletion     Reason = "SELF_DELETION"
)

// Decision is the result of Authorize.
type Decision struct {
	Allowed bool
	Reason  Reason
}

// Err converts a denial into the matching typed error, or nil when allowed.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	switch d.Reason {
	case ReasonUnauthenticated:
		return appErrors.ErrUnauthenticated
	case ReasonNotOwner:
		return appErrors.ErrNotOwner
	case ReasonWrongState:
		return appErrors.ErrWrongState
	case ReasonSelfDeletion:
		return appErrors.ErrSelfDeletion
	default:
		return appErrors.ErrInsufficientRole
	}
}

// Target describes what an action is aimed at.
type Target struct {
	Type models.RecordType
	// OwnerID is the current owner, or the requested owner on create.
	OwnerID string
	Status  string
	// Override is set when the payload carries status/approval_state.
	Override bool
	// ActorID is the subject of actor management actions.
	ActorID string
}

var (
	allow = Decision{Allowed: true}

	denyUnauthenticated = Decision{Reason: ReasonUnauthenticated}
	denyNotOwner        = Decision{Reason: ReasonNotOwner}
	denyWrongState      = Decision{Reason: ReasonWrongState}
	denyRole            = Decision{Reason: ReasonInsufficientRole}
	denySelf            = Decision{Reason: ReasonSelfDeletion}
)

// editableStatus is the early-lifecycle state in which an owner may still
// edit or delete their own record.
var editableStatus = map[models.RecordType]string{
	models.RecordLessonPlan: workflow.LessonDraft,
	models.RecordTimeRecord: workflow.TimePending,
}

// Authorize decides whether actor may perform action on target. A nil actor
// is an anonymous caller.
func Authorize(actor *models.ActorContext, action models.Action, target Target) Decision {
	if actor == nil {
		if action == models.ActionCreate && target.Type == models.RecordNewsComment && !target.Override && target.OwnerID == "" {
			return allow
		}
		return denyUnauthenticated
	}

	switch action {
	case models.ActionCreateActor, models.ActionDeleteActor, models.ActionListActors:
		return authorizeActorManagement(actor, action, target)
	case models.ActionCreate:
		return authorizeCreate(actor, target)
	case models.ActionEdit, models.ActionDelete:
		return authorizeEdit(actor, target)
	case models.ActionView:
		return authorizeView(actor, target)
	case models.ActionSubmit:
		if actor.IsOwnerAdmin() || isOwner(actor, target) {
			return allow
		}
		return denyNotOwner
	case models.ActionAgree, models.ActionDisagree, models.ActionReset:
		if actor.Role == models.RoleOwnerAdmin || actor.Role == models.RoleSupervisor {
			return allow
		}
		return denyRole
	default:
		if actor.IsOwnerAdmin() {
			return allow
		}
		return denyRole
	}
}

func authorizeActorManagement(actor *models.ActorContext, action models.Action, target Target) Decision {
	if action == models.ActionDeleteActor && target.ActorID != "" && target.ActorID == actor.ActorID {
		return denySelf
	}
	if action == models.ActionListActors && actor.Role == models.RoleSupervisor {
		return allow
	}
	if actor.IsOwnerAdmin() {
		return allow
	}
	return denyRole
}

func authorizeCreate(actor *models.ActorContext, target Target) Decision {
	if actor.IsOwnerAdmin() {
		return allow
	}
	if target.Override {
		return denyRole
	}
	switch target.Type {
	case models.RecordLessonPlan, models.RecordTimeRecord, models.RecordNewsComment:
		if target.OwnerID != "" && target.OwnerID != actor.ActorID {
			return denyNotOwner
		}
		return allow
	default:
		return denyRole
	}
}

func authorizeEdit(actor *models.ActorContext, target Target) Decision {
	if actor.IsOwnerAdmin() {
		return allow
	}
	if target.Override {
		return denyRole
	}
	status, ownerEditable := editableStatus[target.Type]
	if !ownerEditable {
		return denyRole
	}
	if !isOwner(actor, target) {
		return denyNotOwner
	}
	if target.Status != status {
		return denyWrongState
	}
	return allow
}

func authorizeView(actor *models.ActorContext, target Target) Decision {
	if actor.Role == models.RoleOwnerAdmin || actor.Role == models.RoleSupervisor {
		return allow
	}
	if target.Type.OwnerScoped() && !isOwner(actor, target) {
		return denyNotOwner
	}
	return allow
}

func isOwner(actor *models.ActorContext, target Target) bool {
	return target.OwnerID != "" && target.OwnerID == actor.ActorID
}
