// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package manifold holds the durable ground truth for a governed project:
// the root intent, the goal dependency graph, invariants, governance policy,
// and the handover log. Every mutation bumps the version and recomputes the
// integrity hash.
package manifold

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Manifold is the aggregate root. Mutate it only through its methods or the
// store's update path so versioning and hashing stay consistent.
type Manifold struct {
	RootIntent     Intent           `json:"root_intent"`
	Sensitivity    float64          `json:"sensitivity"`
	GoalDAG        *GoalGraph       `json:"goal_dag"`
	Invariants     []Invariant      `json:"invariants,omitempty"`
	Governance     GovernancePolicy `json:"governance"`
	Overrides      []Override       `json:"overrides,omitempty"`
	HandoverLog    []HandoverEntry  `json:"handover_log,omitempty"`
	VersionHistory []VersionRecord  `json:"version_history"`
	Version        int              `json:"version"`
	IntegrityHash  string           `json:"integrity_hash"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// New builds a manifold around a root intent at version 1.
func New(intent Intent) *Manifold {
	now := time.Now().UTC()
	m := &Manifold{
		RootIntent:  intent,
		Sensitivity: 0.5,
		GoalDAG:     NewGoalGraph(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	m.Touch("manifold created")
	return m
}

// Touch recomputes the integrity hash, bumps the version, and appends a
// version record describing the change.
func (m *Manifold) Touch(changeDescription string) {
	m.UpdatedAt = time.Now().UTC()
	m.IntegrityHash = m.ComputeHash()
	m.Version = len(m.VersionHistory) + 1
	m.VersionHistory = append(m.VersionHistory, VersionRecord{
		Version:           m.Version,
		Timestamp:         m.UpdatedAt,
		Hash:              m.IntegrityHash,
		ChangeDescription: changeDescription,
	})
}

// ComputeHash hashes the semantically significant fields in a canonical
// order. Version history and timestamps are excluded so the hash is a
// function of content, not of when it was written.
func (m *Manifold) ComputeHash() string {
	h := sha256.New()
	write := func(parts ...string) {
		for _, p := range parts {
			h.Write([]byte(p))
			h.Write([]byte{0})
		}
	}
	write("intent", m.RootIntent.Description, m.RootIntent.TargetPlatform)
	write(m.RootIntent.Constraints...)
	write(m.RootIntent.ExpectedOutcomes...)
	write(dedupSorted(m.RootIntent.Languages)...)
	write(dedupSorted(m.RootIntent.Frameworks)...)
	infraKeys := make([]string, 0, len(m.RootIntent.InfrastructureMap))
	for k := range m.RootIntent.InfrastructureMap {
		infraKeys = append(infraKeys, k)
	}
	sort.Strings(infraKeys)
	for _, k := range infraKeys {
		write("infra", k, m.RootIntent.InfrastructureMap[k])
	}
	write("sensitivity", strconv.FormatFloat(m.Sensitivity, 'f', 6, 64))

	write("governance")
	write(dedupSorted(m.Governance.RequiredDependencies)...)
	write(dedupSorted(m.Governance.AllowedDependencies)...)
	write(dedupSorted(m.Governance.RequiredFrameworks)...)
	write(dedupSorted(m.Governance.AllowedFrameworks)...)
	epKeys := make([]string, 0, len(m.Governance.AllowedEndpoints))
	for k := range m.Governance.AllowedEndpoints {
		epKeys = append(epKeys, k)
	}
	sort.Strings(epKeys)
	for _, k := range epKeys {
		write("endpoint", k)
		write(dedupSorted(m.Governance.AllowedEndpoints[k])...)
	}
	for _, p := range m.Governance.AllowedPorts {
		write("port", strconv.Itoa(p))
	}

	if m.GoalDAG != nil {
		for _, id := range m.GoalDAG.SortedIDs() {
			g := m.GoalDAG.Goals[id]
			write("goal", g.ID, g.Description, string(g.Status),
				strconv.FormatFloat(g.ValueToRoot, 'f', 6, 64))
			write(g.Dependencies...)
			for _, c := range g.SuccessCriteria {
				write(c.String())
			}
		}
	}
	for _, inv := range m.Invariants {
		write("invariant", inv.ID, inv.Description, string(inv.Severity), inv.Predicate.String())
	}
	for _, e := range m.HandoverLog {
		write("handover", e.GoalID, e.Content)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// VerifyIntegrity recomputes the hash and compares it to the stored one.
// A blank hash on a versioned manifold counts as a mismatch so corruption
// that clears the field cannot slip past the tamper gate. The goal graph's
// own hash and adjacency mirror are checked as well.
func (m *Manifold) VerifyIntegrity() error {
	if m.IntegrityHash == "" {
		return fmt.Errorf("%w: integrity hash missing at v%d", ErrIntegrityMismatch, m.Version)
	}
	if got := m.ComputeHash(); got != m.IntegrityHash {
		return fmt.Errorf("%w: stored %s computed %s", ErrIntegrityMismatch,
			short(m.IntegrityHash), short(got))
	}
	if m.GoalDAG != nil {
		return m.GoalDAG.VerifyIntegrity()
	}
	return nil
}

func short(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}

// Clone returns a deep copy via a JSON round trip.
func (m *Manifold) Clone() (*Manifold, error) {
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("clone encode: %w", err)
	}
	var cp Manifold
	if err := json.Unmarshal(raw, &cp); err != nil {
		return nil, fmt.Errorf("clone decode: %w", err)
	}
	if cp.GoalDAG == nil {
		cp.GoalDAG = NewGoalGraph()
	}
	return &cp, nil
}

// =============================================================================
// Mutations
// =============================================================================

// AddGoal inserts a goal and records the change.
func (m *Manifold) AddGoal(g *Goal) error {
	if err := m.GoalDAG.AddGoal(g); err != nil {
		return err
	}
	m.Touch("goal added: " + g.Description)
	return nil
}

// UpdateGoalStatus transitions a goal and records the change. Completion
// fails closed while required governance items are missing from the observed
// workspace.
func (m *Manifold) UpdateGoalStatus(id string, target GoalStatus) error {
	if target == StatusCompleted {
		missing := m.Governance.MissingRequired(m.Governance.ObservedDependencies, m.RootIntent.Frameworks)
		if len(missing) > 0 {
			return fmt.Errorf("%w: %s", ErrRequiredUnmet, strings.Join(missing, ", "))
		}
	}
	if err := m.GoalDAG.UpdateStatus(id, target); err != nil {
		return err
	}
	m.Touch(fmt.Sprintf("goal %s -> %s", short(id), target))
	return nil
}

// DecomposeGoal splits a goal into children and records the change.
func (m *Manifold) DecomposeGoal(parentID string, children []*Goal) error {
	if err := m.GoalDAG.Decompose(parentID, children); err != nil {
		return err
	}
	m.Touch(fmt.Sprintf("goal %s decomposed into %d children", short(parentID), len(children)))
	return nil
}

// AddInvariant validates and appends an invariant.
func (m *Manifold) AddInvariant(inv Invariant) error {
	if err := inv.Predicate.Validate(); err != nil {
		return err
	}
	if inv.ID == "" {
		inv.ID = uuid.NewString()
	}
	if inv.Severity == "" {
		inv.Severity = SeverityError
	}
	inv.CreatedAt = time.Now().UTC()
	m.Invariants = append(m.Invariants, inv)
	m.Touch("invariant added: " + inv.Description)
	return nil
}

// AddOverride appends a human override record.
func (m *Manifold) AddOverride(o Override) {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	o.Timestamp = time.Now().UTC()
	m.Overrides = append(m.Overrides, o)
	m.Touch("override recorded by " + o.Operator)
}

// =============================================================================
// Governance
// =============================================================================

// RecordObservation stores the latest observed workspace dependencies.
// The observation is advisory input to the completion check; it does not
// change policy, so the hash is untouched.
func (m *Manifold) RecordObservation(deps []string) {
	m.Governance.ObservedDependencies = dedupSorted(deps)
}

// StageProposal sets the pending proposal. While one is pending, staging
// fails with ErrProposalPending if either side asked for the lock: a seed
// carrying lock_required refuses to displace pending work, and a locked
// pending proposal refuses silent replacement. Otherwise the incoming
// proposal replaces the pending one.
func (m *Manifold) StageProposal(p *Proposal) error {
	if cur := m.Governance.PendingProposal; cur != nil && (p.LockRequired || cur.LockRequired) {
		return fmt.Errorf("%w: %s", ErrProposalPending, cur.ID)
	}
	m.Governance.PendingProposal = p
	m.Touch("governance proposal staged: " + p.ID)
	return nil
}

// ApproveProposal applies the pending proposal. A missing pending proposal
// is a no-op rather than an error so repeated approvals are idempotent.
func (m *Manifold) ApproveProposal(note string) {
	had := m.Governance.PendingProposal != nil
	m.Governance.Approve(note)
	if had {
		m.Touch("governance proposal approved")
	}
}

// RejectProposal discards the pending proposal.
func (m *Manifold) RejectProposal(note string) {
	had := m.Governance.PendingProposal != nil
	m.Governance.Reject(note)
	if had {
		m.Touch("governance proposal rejected")
	}
}

// =============================================================================
// Validation
// =============================================================================

// predicateInput assembles the evaluation context for invariants.
func (m *Manifold) predicateInput(candidateText string) PredicateInput {
	return PredicateInput{
		CandidateText:  candidateText,
		ActiveGoals:    m.GoalDAG.ActiveGoals(),
		CompletionPct:  m.GoalDAG.CompletionPercentage(),
		TotalGoals:     m.GoalDAG.Len(),
		CompletedGoals: m.GoalDAG.CompletedGoals(),
	}
}

// CheckInvariants evaluates every invariant against the current state and an
// optional candidate action. Malformed predicates count as violations at the
// invariant's severity.
func (m *Manifold) CheckInvariants(candidateText string) []Violation {
	in := m.predicateInput(candidateText)
	var out []Violation
	for _, inv := range m.Invariants {
		ok, err := inv.Predicate.Evaluate(in)
		if err != nil {
			out = append(out, Violation{
				InvariantID: inv.ID,
				Description: fmt.Sprintf("%s: %v", inv.Description, err),
				Severity:    inv.Severity,
			})
			continue
		}
		if !ok {
			out = append(out, Violation{
				InvariantID: inv.ID,
				Description: inv.Description,
				Severity:    inv.Severity,
			})
		}
	}
	return out
}

// CriticalViolation returns the first critical violation, or nil.
func CriticalViolation(violations []Violation) *Violation {
	for i := range violations {
		if violations[i].Severity == SeverityCritical {
			return &violations[i]
		}
	}
	return nil
}
