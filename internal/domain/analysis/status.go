package analysis

import (
	"meridian/pkg/errors"
)

// Status is the lifecycle state of an analysis request.
//
//	pending -> planning -> assigned -> in_progress -> aggregating -> completed | escalated
//
// A request whose every step was skipped may move from assigned straight to aggregating.
type Status string

const (
	StatusPending     Status = "pending"
	StatusPlanning    Status = "planning"
	StatusAssigned    Status = "assigned"
	StatusInProgress  Status = "in_progress"
	StatusAggregating Status = "aggregating"
	StatusCompleted   Status = "completed"
	StatusEscalated   Status = "escalated"
)

var transitions = map[Status][]Status{
	StatusPending:     {StatusPlanning},
	StatusPlanning:    {StatusAssigned},
	StatusAssigned:    {StatusInProgress, StatusAggregating},
	StatusInProgress:  {StatusAggregating},
	StatusAggregating: {StatusCompleted, StatusEscalated},
}

// Terminal reports whether no further transition is possible
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusEscalated
}

// CanTransitionTo reports whether next is a legal successor of s
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Transition validates and applies a status change
func (r *AnalysisRequest) Transition(next Status) error {
	if !r.Status.CanTransitionTo(next) {
		return errors.Wrapf(errors.ErrInvalidTransition, "%s -> %s", r.Status, next)
	}
	r.Status = next
	return nil
}

// AssignmentStatus tracks a single assignment
type AssignmentStatus string

const (
	AssignmentPending    AssignmentStatus = "pending"
	AssignmentInProgress AssignmentStatus = "in_progress"
	AssignmentCompleted  AssignmentStatus = "completed"
	AssignmentFailed     AssignmentStatus = "failed"
	AssignmentSkipped    AssignmentStatus = "skipped"
)

// Terminal reports whether the assignment will not change again
func (s AssignmentStatus) Terminal() bool {
	return s == AssignmentCompleted || s == AssignmentFailed || s == AssignmentSkipped
}
