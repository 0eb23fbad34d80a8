// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package manifold

// GoalStatus is the lifecycle state of a goal.
type GoalStatus string

// Goal lifecycle states.
const (
	StatusPending    GoalStatus = "pending"
	StatusReady      GoalStatus = "ready"
	StatusInProgress GoalStatus = "in_progress"
	StatusValidating GoalStatus = "validating"
	StatusCompleted  GoalStatus = "completed"
	StatusBlocked    GoalStatus = "blocked"
	StatusFailed     GoalStatus = "failed"
	StatusDeprecated GoalStatus = "deprecated"
)

// transitions is the allowed outgoing edge set per state. Blocked may return
// to any non-terminal state so a goal can resume where it left off.
var transitions = map[GoalStatus][]GoalStatus{
	StatusPending:    {StatusReady, StatusBlocked, StatusDeprecated},
	StatusReady:      {StatusInProgress, StatusBlocked, StatusDeprecated},
	StatusInProgress: {StatusValidating, StatusBlocked, StatusFailed, StatusDeprecated},
	StatusValidating: {StatusCompleted, StatusInProgress, StatusBlocked, StatusFailed, StatusDeprecated},
	StatusBlocked:    {StatusPending, StatusReady, StatusInProgress, StatusValidating, StatusDeprecated},
	StatusCompleted:  {},
	StatusFailed:     {},
	StatusDeprecated: {},
}

// Valid reports whether s is a known status value.
func (s GoalStatus) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// IsTerminal reports whether s has no outgoing transitions.
func (s GoalStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusDeprecated:
		return true
	}
	return false
}

// IsActive reports whether s counts toward active work.
func (s GoalStatus) IsActive() bool {
	switch s {
	case StatusInProgress, StatusValidating:
		return true
	}
	return false
}

// CanTransitionTo reports whether moving from s to target is legal.
// Self-transitions are allowed and treated as no-ops by callers.
func (s GoalStatus) CanTransitionTo(target GoalStatus) bool {
	if s == target {
		return true
	}
	for _, t := range transitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

// String implements fmt.Stringer.
func (s GoalStatus) String() string {
	return string(s)
}
