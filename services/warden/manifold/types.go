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
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// Intent
// =============================================================================

// Intent is the root statement of what the project is for. Constraints are
// hard requirements; the infrastructure map records known external surfaces
// keyed by component name.
type Intent struct {
	Description       string            `json:"description"`
	Constraints       []string          `json:"constraints,omitempty"`
	ExpectedOutcomes  []string          `json:"expected_outcomes,omitempty"`
	TargetPlatform    string            `json:"target_platform,omitempty"`
	Languages         []string          `json:"languages,omitempty"`
	Frameworks        []string          `json:"frameworks,omitempty"`
	InfrastructureMap map[string]string `json:"infrastructure_map,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
}

// NewIntent builds an Intent with the creation time set.
func NewIntent(description string) Intent {
	return Intent{
		Description: description,
		CreatedAt:   time.Now().UTC(),
	}
}

// =============================================================================
// Complexity
// =============================================================================

// DistributionKind names the shape of a complexity estimate.
type DistributionKind string

// Supported distribution shapes.
const (
	DistributionPoint   DistributionKind = "point"
	DistributionNormal  DistributionKind = "normal"
	DistributionUniform DistributionKind = "uniform"
)

// ComplexityEstimate is a bounded effort estimate on a 0-10 scale.
type ComplexityEstimate struct {
	Mean         float64          `json:"mean"`
	StdDev       float64          `json:"std_dev"`
	Min          float64          `json:"min"`
	Max          float64          `json:"max"`
	Distribution DistributionKind `json:"distribution"`
}

// PointComplexity returns a degenerate estimate at value.
func PointComplexity(value float64) ComplexityEstimate {
	return ComplexityEstimate{
		Mean:         value,
		Min:          value,
		Max:          value,
		Distribution: DistributionPoint,
	}
}

// NormalComplexity returns a normal estimate centered on mean.
func NormalComplexity(mean, stdDev float64) ComplexityEstimate {
	return ComplexityEstimate{
		Mean:         mean,
		StdDev:       stdDev,
		Min:          max(0, mean-2*stdDev),
		Max:          min(10, mean+2*stdDev),
		Distribution: DistributionNormal,
	}
}

// Validate checks the estimate is on the 0-10 scale with coherent bounds.
func (c ComplexityEstimate) Validate() error {
	if c.Mean < 0 || c.Mean > 10 {
		return fmt.Errorf("%w: complexity mean %.2f outside [0,10]", ErrInvalidGoal, c.Mean)
	}
	if c.StdDev < 0 {
		return fmt.Errorf("%w: negative complexity std_dev", ErrInvalidGoal)
	}
	if c.Min > c.Max {
		return fmt.Errorf("%w: complexity min %.2f exceeds max %.2f", ErrInvalidGoal, c.Min, c.Max)
	}
	return nil
}

// =============================================================================
// Goal
// =============================================================================

// GoalMetadata carries bookkeeping that does not affect graph semantics.
type GoalMetadata struct {
	Tags          []string   `json:"tags,omitempty"`
	Notes         string     `json:"notes,omitempty"`
	Priority      int        `json:"priority,omitempty"`
	RetryCount    int        `json:"retry_count,omitempty"`
	FailureReason string     `json:"failure_reason,omitempty"`
	BlockedReason string     `json:"blocked_reason,omitempty"`
	PriorStatus   GoalStatus `json:"prior_status,omitempty"`
}

// Goal is a node in the goal graph. Dependencies must complete before the
// goal is ready; anti-dependencies must never be depended on.
type Goal struct {
	ID               string             `json:"id"`
	Description      string             `json:"description"`
	Status           GoalStatus         `json:"status"`
	SuccessCriteria  []Criterion        `json:"success_criteria"`
	Dependencies     []string           `json:"dependencies,omitempty"`
	AntiDependencies []string           `json:"anti_dependencies,omitempty"`
	Complexity       ComplexityEstimate `json:"complexity_estimate"`
	ValueToRoot      float64            `json:"value_to_root"`
	ParentID         string             `json:"parent_id,omitempty"`
	ValidationTests  []string           `json:"validation_tests,omitempty"`
	Metadata         GoalMetadata       `json:"metadata"`
	CreatedAt        time.Time          `json:"created_at"`
	UpdatedAt        time.Time          `json:"updated_at"`
}

// NewGoal builds a pending goal with a fresh id and a point complexity.
func NewGoal(description string, valueToRoot float64) *Goal {
	now := time.Now().UTC()
	return &Goal{
		ID:          uuid.NewString(),
		Description: description,
		Status:      StatusPending,
		Complexity:  PointComplexity(1),
		ValueToRoot: valueToRoot,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Validate checks structural constraints on the goal itself. Graph level
// constraints (dependency existence, cycles) are checked on insert.
func (g *Goal) Validate() error {
	if strings.TrimSpace(g.ID) == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidGoal)
	}
	if strings.TrimSpace(g.Description) == "" {
		return fmt.Errorf("%w: empty description", ErrInvalidGoal)
	}
	if g.ValueToRoot < 0 || g.ValueToRoot > 1 {
		return fmt.Errorf("%w: value_to_root %.2f outside [0,1]", ErrInvalidGoal, g.ValueToRoot)
	}
	if len(g.SuccessCriteria) == 0 {
		return fmt.Errorf("%w: no success criteria", ErrInvalidGoal)
	}
	for i, c := range g.SuccessCriteria {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("criterion %d: %w", i, err)
		}
	}
	if err := g.Complexity.Validate(); err != nil {
		return err
	}
	anti := make(map[string]struct{}, len(g.AntiDependencies))
	for _, id := range g.AntiDependencies {
		anti[id] = struct{}{}
	}
	for _, id := range g.Dependencies {
		if _, bad := anti[id]; bad {
			return fmt.Errorf("%w: goal %s depends on %s", ErrAntiDependencyConflict, g.ID, id)
		}
	}
	return nil
}

// Clone returns a deep copy of the goal.
func (g *Goal) Clone() *Goal {
	cp := *g
	cp.SuccessCriteria = append([]Criterion(nil), g.SuccessCriteria...)
	cp.Dependencies = append([]string(nil), g.Dependencies...)
	cp.AntiDependencies = append([]string(nil), g.AntiDependencies...)
	cp.ValidationTests = append([]string(nil), g.ValidationTests...)
	cp.Metadata.Tags = append([]string(nil), g.Metadata.Tags...)
	return &cp
}

// =============================================================================
// Invariants
// =============================================================================

// Severity grades how an invariant violation is handled. Critical violations
// abort the mutation; Warning and Error are reported on the result.
type Severity string

// Invariant severities.
const (
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// Invariant is a condition over manifold state or candidate actions that
// must continue to hold.
type Invariant struct {
	ID          string    `json:"id"`
	Description string    `json:"description"`
	Predicate   Predicate `json:"predicate"`
	Severity    Severity  `json:"severity"`
	CreatedAt   time.Time `json:"created_at"`
}

// Violation reports a failed invariant or policy check.
type Violation struct {
	InvariantID string   `json:"invariant_id,omitempty"`
	Description string   `json:"description"`
	Severity    Severity `json:"severity"`
}

// =============================================================================
// History
// =============================================================================

// VersionRecord is one entry in the append-only version history.
type VersionRecord struct {
	Version           int       `json:"version"`
	Timestamp         time.Time `json:"timestamp"`
	Hash              string    `json:"hash"`
	ChangeDescription string    `json:"change_description"`
}

// Override records a human decision that supersedes an automated verdict.
type Override struct {
	ID        string    `json:"id"`
	Operator  string    `json:"operator"`
	Decision  string    `json:"decision"`
	Rationale string    `json:"rationale"`
	Timestamp time.Time `json:"timestamp"`
}

// HandoverEntry is one note in the cross-session handover log.
type HandoverEntry struct {
	ID        string    `json:"id"`
	GoalID    string    `json:"goal_id,omitempty"`
	AgentID   string    `json:"agent_id,omitempty"`
	Warnings  []string  `json:"warnings,omitempty"`
	Category  string    `json:"category,omitempty"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}
