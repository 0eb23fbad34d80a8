// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package store

import (
	"encoding/json"
	"sync"
	"testing"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianWarden/services/warden/manifold"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(InMemoryBadgerConfig(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func initTestStore(t *testing.T) *Store {
	t.Helper()
	s := newTestStore(t)
	intent := manifold.NewIntent("Build a REST API for user management with JWT auth")
	_, err := s.Init(intent)
	require.NoError(t, err)
	return s
}

func goalFixture(id, description string, deps ...string) *manifold.Goal {
	g := manifold.NewGoal(description, 0.5)
	g.ID = id
	g.Dependencies = deps
	g.SuccessCriteria = []manifold.Criterion{manifold.ManualCriterion("done")}
	return g
}

func TestSnapshotBeforeInit(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Snapshot()
	require.ErrorIs(t, err, ErrNotInitialized)

	ok, err := s.Initialized()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestInitAndSnapshot(t *testing.T) {
	s := initTestStore(t)
	m, err := s.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, 1, m.Version)
	require.NoError(t, m.VerifyIntegrity())

	ok, err := s.Initialized()
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSnapshotIsACopy(t *testing.T) {
	s := initTestStore(t)
	m1, err := s.Snapshot()
	require.NoError(t, err)
	m1.RootIntent.Description = "mutated locally"

	m2, err := s.Snapshot()
	require.NoError(t, err)
	assert.NotEqual(t, "mutated locally", m2.RootIntent.Description)
}

func TestUpdatePersistsAndVersions(t *testing.T) {
	s := initTestStore(t)
	updated, violations, err := s.Update("add first goal", func(m *manifold.Manifold) error {
		return m.AddGoal(goalFixture("g1", "implement login endpoint"))
	})
	require.NoError(t, err)
	assert.Empty(t, violations)
	assert.Equal(t, 2, updated.Version)

	m, err := s.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, 2, m.Version)
	assert.Len(t, m.GoalDAG.Goals, 1)

	// Historical snapshot still has the original state.
	v1, err := s.Version(1)
	require.NoError(t, err)
	assert.Empty(t, v1.GoalDAG.Goals)
}

func TestVersionNotFound(t *testing.T) {
	s := initTestStore(t)
	_, err := s.Version(99)
	require.ErrorIs(t, err, ErrVersionNotFound)
}

func TestUpdateRollsBackOnError(t *testing.T) {
	s := initTestStore(t)
	_, _, err := s.Update("bad update", func(m *manifold.Manifold) error {
		return m.AddGoal(goalFixture("g1", "orphan", "missing-dep"))
	})
	require.ErrorIs(t, err, manifold.ErrUnknownDependency)

	m, err := s.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, 1, m.Version)
	assert.Empty(t, m.GoalDAG.Goals)
}

func TestUpdateAbortsOnCriticalViolation(t *testing.T) {
	s := initTestStore(t)
	_, _, err := s.Update("add guard", func(m *manifold.Manifold) error {
		return m.AddInvariant(manifold.Invariant{
			Description: "at most zero active goals",
			Predicate:   manifold.Predicate{Kind: manifold.PredicateMaxActiveGoals, Threshold: 0},
			Severity:    manifold.SeverityCritical,
		})
	})
	require.NoError(t, err)

	_, violations, err := s.Update("start work", func(m *manifold.Manifold) error {
		if err := m.AddGoal(goalFixture("g1", "implement login endpoint")); err != nil {
			return err
		}
		return m.UpdateGoalStatus("g1", manifold.StatusInProgress)
	})
	var invErr *manifold.InvariantError
	require.ErrorAs(t, err, &invErr)
	assert.NotEmpty(t, violations)

	// The aborted write left nothing behind.
	m, err := s.Snapshot()
	require.NoError(t, err)
	assert.Empty(t, m.GoalDAG.Goals)
}

func TestUpdateReturnsWarnings(t *testing.T) {
	s := initTestStore(t)
	_, _, err := s.Update("add guard", func(m *manifold.Manifold) error {
		return m.AddInvariant(manifold.Invariant{
			Description: "at most zero active goals",
			Predicate:   manifold.Predicate{Kind: manifold.PredicateMaxActiveGoals, Threshold: 0},
			Severity:    manifold.SeverityWarning,
		})
	})
	require.NoError(t, err)

	_, violations, err := s.Update("start work", func(m *manifold.Manifold) error {
		if err := m.AddGoal(goalFixture("g1", "implement login endpoint")); err != nil {
			return err
		}
		return m.UpdateGoalStatus("g1", manifold.StatusInProgress)
	})
	require.NoError(t, err)
	require.Len(t, violations, 1)
	assert.Equal(t, manifold.SeverityWarning, violations[0].Severity)

	m, err := s.Snapshot()
	require.NoError(t, err)
	assert.Len(t, m.GoalDAG.Goals, 1)
}

func TestDegradedModeRefusesWrites(t *testing.T) {
	s := initTestStore(t)

	// Corrupt the stored bytes behind the store's back: change content
	// without recomputing the hash.
	m, err := s.Snapshot()
	require.NoError(t, err)
	m.Sensitivity = 0.9
	raw, err := json.Marshal(m)
	require.NoError(t, err)
	require.NoError(t, s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(keyLatest), raw)
	}))

	_, err = s.Snapshot()
	require.NoError(t, err)
	assert.True(t, s.Degraded())

	_, _, err = s.Update("blocked", func(m *manifold.Manifold) error { return nil })
	require.ErrorIs(t, err, ErrDegraded)

	err = s.SetQualityReport(QualityReport{BuildOK: true})
	require.ErrorIs(t, err, ErrDegraded)

	// Reads still work in degraded mode.
	reread, err := s.Snapshot()
	require.NoError(t, err)
	assert.NotNil(t, reread)

	// Reinitializing recovers.
	_, err = s.Init(manifold.NewIntent("fresh start"))
	require.NoError(t, err)
	assert.False(t, s.Degraded())
}

func TestUpdateSerializesWriters(t *testing.T) {
	s := initTestStore(t)
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, _, err := s.Update("concurrent handover", func(m *manifold.Manifold) error {
				return m.RecordHandover(manifold.HandoverEntry{Content: "note"})
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	m, err := s.Snapshot()
	require.NoError(t, err)
	assert.Len(t, m.HandoverLog, 10)
	assert.Equal(t, 11, m.Version)
	require.NoError(t, m.VerifyIntegrity())
}

func TestAgentMessageLedgerIdempotent(t *testing.T) {
	s := initTestStore(t)
	msg := AgentMessage{ID: "m1", AgentID: "agent-a", Content: "claiming auth goal"}

	inserted, err := s.AppendAgentMessage(msg)
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = s.AppendAgentMessage(msg)
	require.NoError(t, err)
	assert.False(t, inserted)

	msgs, err := s.AgentMessages(0)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
}

func TestAgentMessagesNewestFirst(t *testing.T) {
	s := initTestStore(t)
	for _, id := range []string{"a", "b", "c"} {
		_, err := s.AppendAgentMessage(AgentMessage{ID: id, AgentID: "agent", Content: id})
		require.NoError(t, err)
	}
	msgs, err := s.AgentMessages(2)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.True(t, !msgs[0].Timestamp.Before(msgs[1].Timestamp))
}

func TestQualityReportRoundTrip(t *testing.T) {
	s := initTestStore(t)
	_, found, err := s.QualityReport()
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, s.SetQualityReport(QualityReport{
		BuildOK:      true,
		TestsPassing: true,
		TestCoverage: 82.5,
	}))
	report, found, err := s.QualityReport()
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 82.5, report.TestCoverage)
	assert.False(t, report.UpdatedAt.IsZero())
}

func TestReset(t *testing.T) {
	s := initTestStore(t)
	require.NoError(t, s.Reset())

	_, err := s.Snapshot()
	require.ErrorIs(t, err, ErrNotInitialized)
}
