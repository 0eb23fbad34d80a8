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

import (
	"errors"
	"fmt"
)

// Sentinel errors for the manifold package.
var (
	// ErrGoalNotFound is returned when a referenced goal id is absent.
	ErrGoalNotFound = errors.New("goal not found")

	// ErrDuplicateGoal is returned when adding a goal whose id already exists.
	ErrDuplicateGoal = errors.New("goal with this id already exists")

	// ErrUnknownDependency is returned when a dependency references an absent goal.
	ErrUnknownDependency = errors.New("unknown dependency")

	// ErrCyclicDependency is returned when an edge would create a cycle.
	ErrCyclicDependency = errors.New("cyclic dependency")

	// ErrAntiDependencyConflict is returned when a dependency overlaps an
	// anti-dependency on the same goal.
	ErrAntiDependencyConflict = errors.New("dependency conflicts with anti-dependency")

	// ErrInvalidTransition is returned for illegal status transitions.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrAlreadyTerminal is returned when mutating a terminal goal.
	ErrAlreadyTerminal = errors.New("goal is already terminal")

	// ErrProposalPending is returned when seeding over a locked pending proposal.
	ErrProposalPending = errors.New("governance proposal already pending")

	// ErrRequiredUnmet is returned when completing a goal while required
	// governance items are missing.
	ErrRequiredUnmet = errors.New("required governance items unmet")

	// ErrIntegrityMismatch is returned when the stored hash does not match
	// the recomputed manifold hash.
	ErrIntegrityMismatch = errors.New("manifold integrity hash mismatch")

	// ErrMalformedPredicate is returned for predicates with unknown kinds or
	// missing fields.
	ErrMalformedPredicate = errors.New("malformed predicate")

	// ErrMalformedCriterion is returned for success criteria with unknown
	// kinds or missing fields.
	ErrMalformedCriterion = errors.New("malformed success criterion")

	// ErrInvalidGoal is returned when a goal fails validation.
	ErrInvalidGoal = errors.New("invalid goal")
)

// TransitionError wraps ErrInvalidTransition with the offending states.
type TransitionError struct {
	From GoalStatus
	To   GoalStatus
}

// Error returns the transition description.
func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid status transition %s -> %s", e.From, e.To)
}

// Unwrap returns ErrInvalidTransition so callers can use errors.Is.
func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// InvariantError is returned when a Critical invariant fails during a
// mutation. Warning and Error severities are surfaced as violations on the
// result instead of aborting.
type InvariantError struct {
	InvariantID string
	Description string
	Severity    Severity
}

// Error returns the violation description.
func (e *InvariantError) Error() string {
	return fmt.Sprintf("invariant violated (%s): %s", e.Severity, e.Description)
}

// CycleError reports the goal ids participating in a detected cycle.
type CycleError struct {
	Path []string
}

// Error returns the cycle description.
func (e *CycleError) Error() string {
	return fmt.Sprintf("cyclic dependency: %v", e.Path)
}

// Unwrap returns ErrCyclicDependency so callers can use errors.Is.
func (e *CycleError) Unwrap() error {
	return ErrCyclicDependency
}
