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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManifold(t *testing.T) *Manifold {
	t.Helper()
	intent := NewIntent("Build a REST API for user management with JWT auth")
	intent.Constraints = []string{"all endpoints require authentication", "tests must pass"}
	intent.Frameworks = []string{"gin", "badger"}
	return New(intent)
}

func TestNewManifoldVersioning(t *testing.T) {
	m := newTestManifold(t)
	assert.Equal(t, 1, m.Version)
	require.Len(t, m.VersionHistory, 1)
	assert.NotEmpty(t, m.IntegrityHash)
	assert.Equal(t, m.IntegrityHash, m.VersionHistory[0].Hash)
}

func TestEveryMutationBumpsVersion(t *testing.T) {
	m := newTestManifold(t)
	v := m.Version

	g := testGoal("g1", "implement login endpoint")
	require.NoError(t, m.AddGoal(g))
	assert.Equal(t, v+1, m.Version)

	require.NoError(t, m.UpdateGoalStatus("g1", StatusInProgress))
	assert.Equal(t, v+2, m.Version)

	require.NoError(t, m.RecordHandover(HandoverEntry{Content: "auth middleware half done"}))
	assert.Equal(t, v+3, m.Version)

	// Version always equals history length, and hashes chain per record.
	assert.Equal(t, m.Version, len(m.VersionHistory))
	assert.Equal(t, m.IntegrityHash, m.VersionHistory[len(m.VersionHistory)-1].Hash)
}

func TestHashDeterministic(t *testing.T) {
	m := newTestManifold(t)
	require.NoError(t, m.AddGoal(testGoal("g1", "implement login endpoint")))

	h1 := m.ComputeHash()
	h2 := m.ComputeHash()
	assert.Equal(t, h1, h2)

	// Content changes change the hash.
	m.GoalDAG.Goals["g1"].Description = "implement logout endpoint"
	assert.NotEqual(t, h1, m.ComputeHash())
}

func TestVerifyIntegrity(t *testing.T) {
	m := newTestManifold(t)
	require.NoError(t, m.VerifyIntegrity())

	m.Sensitivity = 0.9 // silent tamper, no Touch
	err := m.VerifyIntegrity()
	require.ErrorIs(t, err, ErrIntegrityMismatch)
}

func TestClone(t *testing.T) {
	m := newTestManifold(t)
	require.NoError(t, m.AddGoal(testGoal("g1", "implement login endpoint")))

	cp, err := m.Clone()
	require.NoError(t, err)

	cp.GoalDAG.Goals["g1"].Description = "changed"
	assert.Equal(t, "implement login endpoint", m.GoalDAG.Goals["g1"].Description)
	assert.Equal(t, m.Version, cp.Version)
}

func TestGovernanceSeedAndApprove(t *testing.T) {
	m := newTestManifold(t)
	m.RootIntent.InfrastructureMap = map[string]string{
		"database": "postgres://db.internal:5432/app",
		"cache":    "redis://cache.internal:6379",
	}

	p := SeedProposalFromIntent(m.RootIntent, []string{"npm:express", "npm:jsonwebtoken"}, false)
	require.NoError(t, m.StageProposal(p))
	require.NotNil(t, m.Governance.PendingProposal)

	m.ApproveProposal("looks right")
	assert.Nil(t, m.Governance.PendingProposal)
	assert.Contains(t, m.Governance.AllowedDependencies, "npm:express")
	assert.Contains(t, m.Governance.AllowedFrameworks, "gin")
	assert.ElementsMatch(t, []int{5432, 6379}, m.Governance.AllowedPorts)
	require.Len(t, m.Governance.History, 1)
	assert.True(t, m.Governance.History[0].Accepted)
}

func TestGovernanceLockRequired(t *testing.T) {
	m := newTestManifold(t)
	p := SeedProposalFromIntent(m.RootIntent, []string{"npm:express"}, true)
	require.NoError(t, m.StageProposal(p))

	// A locked pending proposal cannot be silently replaced.
	err := m.StageProposal(SeedProposalFromIntent(m.RootIntent, nil, false))
	require.ErrorIs(t, err, ErrProposalPending)

	m.ApproveProposal("")
	assert.Equal(t, m.Governance.AllowedDependencies, m.Governance.RequiredDependencies)
	assert.Equal(t, m.Governance.AllowedFrameworks, m.Governance.RequiredFrameworks)
}

func TestStageLockedSeedOverPendingRejected(t *testing.T) {
	m := newTestManifold(t)
	require.NoError(t, m.StageProposal(SeedProposalFromIntent(m.RootIntent, nil, false)))

	// A seed asking for the lock refuses to displace pending work.
	err := m.StageProposal(SeedProposalFromIntent(m.RootIntent, nil, true))
	require.ErrorIs(t, err, ErrProposalPending)

	// Without the lock on either side replacement goes through.
	require.NoError(t, m.StageProposal(SeedProposalFromIntent(m.RootIntent, []string{"npm:uuid"}, false)))
	assert.Contains(t, m.Governance.PendingProposal.AddDependencies, "npm:uuid")
}

func TestVerifyIntegrityMissingHash(t *testing.T) {
	m := newTestManifold(t)
	m.IntegrityHash = ""
	require.ErrorIs(t, m.VerifyIntegrity(), ErrIntegrityMismatch)
}

func TestCompletionFailsClosedOnUnmetRequired(t *testing.T) {
	m := newTestManifold(t)
	g := testGoal("g1", "implement login endpoint")
	require.NoError(t, m.AddGoal(g))
	require.NoError(t, m.UpdateGoalStatus("g1", StatusInProgress))
	require.NoError(t, m.UpdateGoalStatus("g1", StatusValidating))

	require.NoError(t, m.StageProposal(SeedProposalFromIntent(m.RootIntent, []string{"npm:express"}, true)))
	m.ApproveProposal("lock the baseline")
	require.NotEmpty(t, m.Governance.RequiredDependencies)

	// Nothing observed yet, so the required dependency is unmet.
	err := m.UpdateGoalStatus("g1", StatusCompleted)
	require.ErrorIs(t, err, ErrRequiredUnmet)

	m.RecordObservation([]string{"npm:express"})
	require.NoError(t, m.UpdateGoalStatus("g1", StatusCompleted))
}

func TestGovernanceReject(t *testing.T) {
	m := newTestManifold(t)
	p := SeedProposalFromIntent(m.RootIntent, []string{"npm:leftpad"}, false)
	require.NoError(t, m.StageProposal(p))

	m.RejectProposal("unnecessary dependency")
	assert.Nil(t, m.Governance.PendingProposal)
	assert.NotContains(t, m.Governance.AllowedDependencies, "npm:leftpad")
	require.Len(t, m.Governance.History, 1)
	assert.False(t, m.Governance.History[0].Accepted)
	assert.Equal(t, "unnecessary dependency", m.Governance.History[0].Note)
}

func TestGovernanceApproveWithoutPendingIsNoOp(t *testing.T) {
	m := newTestManifold(t)
	v := m.Version
	m.ApproveProposal("nothing staged")
	m.RejectProposal("nothing staged")
	assert.Equal(t, v, m.Version)
	assert.Empty(t, m.Governance.History)
}

func TestRequiredClampedToAllowed(t *testing.T) {
	gp := GovernancePolicy{
		RequiredDependencies: []string{"npm:express", "npm:ghost"},
		AllowedDependencies:  []string{"npm:express"},
	}
	gp.normalize()
	assert.Equal(t, []string{"npm:express"}, gp.RequiredDependencies)
}

func TestEndpointAndPortChecks(t *testing.T) {
	gp := GovernancePolicy{
		AllowedEndpoints: map[string][]string{
			"https://api.internal/v1": {"GET", "POST"},
			"https://open.internal":   nil,
		},
		AllowedPorts: []int{443, 5432},
	}
	assert.True(t, gp.EndpointAllowed("https://api.internal/v1", "get"))
	assert.False(t, gp.EndpointAllowed("https://api.internal/v1", "DELETE"))
	assert.True(t, gp.EndpointAllowed("https://open.internal", "PATCH"))
	assert.False(t, gp.EndpointAllowed("https://unknown.host", "GET"))
	assert.True(t, gp.PortAllowed(443))
	assert.False(t, gp.PortAllowed(22))
}

func TestExtractPort(t *testing.T) {
	tests := []struct {
		target string
		port   int
		ok     bool
	}{
		{"postgres://db.internal:5432/app", 5432, true},
		{"redis://cache:6379", 6379, true},
		{"https://api.example.com/v1", 0, false},
		{"db.internal:9000", 9000, true},
		{"plainhost", 0, false},
		{"bad:port:", 0, false},
	}
	for _, tt := range tests {
		port, ok := extractPort(tt.target)
		assert.Equal(t, tt.ok, ok, tt.target)
		if ok {
			assert.Equal(t, tt.port, port, tt.target)
		}
	}
}

func TestInvariantChecks(t *testing.T) {
	m := newTestManifold(t)
	require.NoError(t, m.AddInvariant(Invariant{
		Description: "never delete tests",
		Predicate:   TextGuard(`delete.*test|remove.*test`),
		Severity:    SeverityCritical,
	}))
	require.NoError(t, m.AddInvariant(Invariant{
		Description: "at most two active goals",
		Predicate:   Predicate{Kind: PredicateMaxActiveGoals, Threshold: 2},
		Severity:    SeverityWarning,
	}))

	violations := m.CheckInvariants("delete all test files to reduce code size")
	require.Len(t, violations, 1)
	assert.Equal(t, SeverityCritical, violations[0].Severity)
	require.NotNil(t, CriticalViolation(violations))

	clean := m.CheckInvariants("add pagination to the user list endpoint")
	assert.Empty(t, clean)
	assert.Nil(t, CriticalViolation(clean))
}

func TestMalformedPredicateRejected(t *testing.T) {
	m := newTestManifold(t)
	err := m.AddInvariant(Invariant{
		Description: "broken",
		Predicate:   Predicate{Kind: "vibes"},
	})
	require.ErrorIs(t, err, ErrMalformedPredicate)

	err = m.AddInvariant(Invariant{
		Description: "bad regex",
		Predicate:   TextGuard(`([unclosed`),
	})
	require.ErrorIs(t, err, ErrMalformedPredicate)
}

func TestRecordHandoverValidation(t *testing.T) {
	m := newTestManifold(t)
	err := m.RecordHandover(HandoverEntry{Content: "   "})
	require.Error(t, err)

	err = m.RecordHandover(HandoverEntry{GoalID: "missing", Content: "note"})
	require.ErrorIs(t, err, ErrGoalNotFound)
}

func TestImportHandoversDeduplicates(t *testing.T) {
	m := newTestManifold(t)
	ts := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	entries := []HandoverEntry{
		{Content: "watch out for flaky migration", Timestamp: ts},
		{Content: "watch out for flaky migration", Timestamp: ts},
		{Content: "second note", Timestamp: ts},
	}
	added := m.ImportHandovers(entries)
	assert.Equal(t, 2, added)

	// Re-importing the same batch adds nothing.
	assert.Equal(t, 0, m.ImportHandovers(entries))
	assert.Len(t, m.HandoverLog, 2)
}

func TestRecentHandoversNewestFirst(t *testing.T) {
	m := newTestManifold(t)
	require.NoError(t, m.RecordHandover(HandoverEntry{Content: "first"}))
	require.NoError(t, m.RecordHandover(HandoverEntry{Content: "second"}))
	require.NoError(t, m.RecordHandover(HandoverEntry{Content: "third"}))

	recent := m.RecentHandovers(2)
	require.Len(t, recent, 2)
	assert.Equal(t, "third", recent[0].Content)
	assert.Equal(t, "second", recent[1].Content)
}

func TestCompletionPercentage(t *testing.T) {
	m := newTestManifold(t)
	assert.Equal(t, 0.0, m.GoalDAG.CompletionPercentage())

	require.NoError(t, m.AddGoal(testGoal("a", "first")))
	require.NoError(t, m.AddGoal(testGoal("b", "second")))
	for _, st := range []GoalStatus{StatusInProgress, StatusValidating, StatusCompleted} {
		require.NoError(t, m.UpdateGoalStatus("a", st))
	}
	assert.InDelta(t, 50.0, m.GoalDAG.CompletionPercentage(), 0.01)
}
