// Package workflow holds the per-variant transition tables of workflow
// records. It is pure: callers lock the row, ask the machine for an Outcome
// and render it into a single guarded update.
package workflow

import (
	"fmt"
	"sort"

	"github.com/noah-isme/sma-lifecycle-api/internal/models"
	appErrors "github.com/noah-isme/sma-lifecycle-api/pkg/errors"
)

// Effect is a column change executed in the same statement as the status
// write.
type Effect string

const (
	// EffectStampReview sets reviewed_by/reviewed_at to the acting actor/now.
	EffectStampReview Effect = "stamp_review"
	// EffectStampPublished sets published_at to now.
	EffectStampPublished Effect = "stamp_published"
)

// State is the lifecycle position of a record. An empty Approval means the
// record carries no approval state.
type State struct {
	Status   string
	Approval string
}

// Outcome is the position a record moves to plus the effects that go with it.
type Outcome struct {
	Status   string
	Approval string
	Effects  []Effect
	// Requires names columns that must be non-null once the outcome is
	// applied (e.g. publish_at when scheduling a news item).
	Requires []string
}

// Has reports whether the outcome carries effect e.
func (o Outcome) Has(e Effect) bool {
	for _, effect := range o.Effects {
		if effect == e {
			return true
		}
	}
	return false
}

type rule struct {
	from         []string
	fromApproval []string // empty matches any approval state
	to           string
	toApproval   string // empty keeps the current approval state
	effects      []Effect
	requires     []string
}

func (r rule) matches(s State) bool {
	if !contains(r.from, s.Status) {
		return false
	}
	return len(r.fromApproval) == 0 || contains(r.fromApproval, s.Approval)
}

// Machine is the transition table of one record variant.
type Machine struct {
	recordType models.RecordType
	initial    State
	statuses   []string
	approvals  []string
	terminal   []string
	rules      map[models.Action][]rule
}

// Type returns the variant this machine governs.
func (m *Machine) Type() models.RecordType { return m.recordType }

// Initial returns the state new records start in.
func (m *Machine) Initial() State { return m.initial }

// Terminal reports whether no transition leaves status.
func (m *Machine) Terminal(status string) bool { return contains(m.terminal, status) }

// Actions lists the transition actions the variant declares, sorted.
func (m *Machine) Actions() []models.Action {
	actions := make([]models.Action, 0, len(m.rules))
	for action := range m.rules {
		actions = append(actions, action)
	}
	sort.Slice(actions, func(i, j int) bool { return actions[i] < actions[j] })
	return actions
}

// Available lists the actions that lead out of current, sorted. Terminal
// states have none.
func (m *Machine) Available(current State) []models.Action {
	if m.Terminal(current.Status) {
		return nil
	}
	var available []models.Action
	for _, action := range m.Actions() {
		if _, err := m.Apply(current, action); err == nil {
			available = append(available, action)
		}
	}
	return available
}

// Supports reports whether action is declared for the variant at all.
func (m *Machine) Supports(action models.Action) bool {
	_, ok := m.rules[action]
	return ok
}

// Apply computes the outcome of action from current. An action that is not
// declared for the current state yields INVALID_TRANSITION.
func (m *Machine) Apply(current State, action models.Action) (Outcome, error) {
	for _, r := range m.rules[action] {
		if !r.matches(current) {
			continue
		}
		out := Outcome{
			Status:   r.to,
			Approval: current.Approval,
			Effects:  append([]Effect(nil), r.effects...),
			Requires: append([]string(nil), r.requires...),
		}
		if r.toApproval != "" {
			out.Approval = r.toApproval
		}
		return out, nil
	}
	return Outcome{}, invalidTransition(m.recordType, current, action)
}

// Override validates an owner-admin override. Any declared status and
// approval state is accepted, including moves backward. An empty approval
// clears it.
func (m *Machine) Override(current State, status, approval string) (Outcome, error) {
	if status == "" {
		status = current.Status
	}
	if !contains(m.statuses, status) {
		return Outcome{}, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown %s status %q", m.recordType, status))
	}
	if approval != "" && !contains(m.approvals, approval) {
		return Outcome{}, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown %s approval state %q", m.recordType, approval))
	}
	return Outcome{Status: status, Approval: approval, Effects: []Effect{EffectStampReview}}, nil
}

func invalidTransition(t models.RecordType, s State, action models.Action) error {
	from := s.Status
	if s.Approval != "" {
		from += "/" + s.Approval
	}
	return appErrors.Clone(appErrors.ErrInvalidTransition,
		fmt.Sprintf("%s cannot %s from %s", t, action, from))
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
