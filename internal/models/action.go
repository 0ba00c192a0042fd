package models

// Action is anything an actor may attempt against a record or an actor.
type Action string

const (
	ActionCreate Action = "create"
	ActionEdit   Action = "edit"
	ActionDelete Action = "delete"
	ActionView   Action = "view"

	ActionSubmit     Action = "submit"
	ActionApprove    Action = "approve"
	ActionReject     Action = "reject"
	ActionHold       Action = "hold"
	ActionResume     Action = "resume"
	ActionComplete   Action = "complete"
	ActionAgree      Action = "agree"
	ActionDisagree   Action = "disagree"
	ActionReset      Action = "reset"
	ActionSchedule   Action = "schedule"
	ActionPublish    Action = "publish"
	ActionArchive    Action = "archive"
	ActionActivate   Action = "activate"
	ActionDeactivate Action = "deactivate"

	ActionCreateActor Action = "create_actor"
	ActionDeleteActor Action = "delete_actor"
	ActionListActors  Action = "list_actors"
)

// IsTransition reports whether a is a state-machine action rather than a
// CRUD verb.
func (a Action) IsTransition() bool {
	switch a {
	case ActionCreate, ActionEdit, ActionDelete, ActionView,
		ActionCreateActor, ActionDeleteActor, ActionListActors:
		return false
	}
	return a != ""
}
