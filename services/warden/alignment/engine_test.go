// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package alignment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianWarden/services/warden/manifold"
)

func jwtManifold(t *testing.T) *manifold.Manifold {
	t.Helper()
	intent := manifold.NewIntent("Build a REST API for user management with JWT authentication")
	intent.Constraints = []string{
		"all endpoints require authentication",
		"test coverage must not decrease",
	}
	m := manifold.New(intent)

	g := manifold.NewGoal("implement JWT token issuance endpoint", 0.9)
	g.ID = "auth"
	g.SuccessCriteria = []manifold.Criterion{
		manifold.TestsCriterion("auth", 80),
	}
	require.NoError(t, m.AddGoal(g))
	return m
}

func TestDestructiveActionScoresLow(t *testing.T) {
	eng := New(DefaultConfig())
	m := jwtManifold(t)

	rep := eng.ScoreAction(m, "Delete all test files to reduce code size")
	assert.Less(t, rep.Score, DefaultConfig().MinScore)
	assert.False(t, rep.Aligned)
	require.NotEmpty(t, rep.Violations)
	assert.NotNil(t, manifold.CriticalViolation(rep.Violations))
}

func TestAlignedActionScoresHigher(t *testing.T) {
	eng := New(DefaultConfig())
	m := jwtManifold(t)

	onTopic := eng.ScoreAction(m, "implement JWT authentication endpoint for user management")
	offTopic := eng.ScoreAction(m, "rewrite the frontend in a different framework")
	assert.Greater(t, onTopic.Score, offTopic.Score)
	assert.True(t, onTopic.Aligned)
}

func TestMoreOverlapNeverScoresLower(t *testing.T) {
	eng := New(DefaultConfig())
	m := jwtManifold(t)

	small := eng.ScoreAction(m, "improve authentication")
	large := eng.ScoreAction(m, "improve authentication endpoint for user management REST API")
	assert.GreaterOrEqual(t, large.Score, small.Score)
}

func TestConfidenceFloor(t *testing.T) {
	eng := New(DefaultConfig())
	m := manifold.New(manifold.NewIntent("do something"))

	rep := eng.ScoreAction(m, "anything at all")
	assert.InDelta(t, 0.1, rep.Confidence, 0.0001)

	state := eng.ScoreState(m)
	assert.InDelta(t, 0.1, state.Confidence, 0.0001)
}

func TestConfidenceGrowsWithSignal(t *testing.T) {
	eng := New(DefaultConfig())
	bare := manifold.New(manifold.NewIntent("do something"))
	rich := jwtManifold(t)

	assert.Greater(t,
		eng.ScoreAction(rich, "implement tokens").Confidence,
		eng.ScoreAction(bare, "implement tokens").Confidence)
}

func TestCriticalInvariantCapsScore(t *testing.T) {
	eng := New(DefaultConfig())
	m := jwtManifold(t)
	require.NoError(t, m.AddInvariant(manifold.Invariant{
		Description: "never touch the billing module",
		Predicate:   manifold.TextGuard(`billing`),
		Severity:    manifold.SeverityCritical,
	}))

	rep := eng.ScoreAction(m, "refactor billing authentication endpoint for user management")
	assert.False(t, rep.Aligned)
	assert.LessOrEqual(t, rep.Score, DefaultConfig().DestructiveCap)
}

func TestScoreStateEmptyManifold(t *testing.T) {
	eng := New(DefaultConfig())
	m := manifold.New(manifold.NewIntent("fresh project"))

	rep := eng.ScoreState(m)
	assert.Equal(t, 100.0, rep.Score)
	assert.True(t, rep.Aligned)
	assert.InDelta(t, 0.1, rep.Confidence, 0.0001)
}

func TestScoreStateWeightsByValue(t *testing.T) {
	eng := New(DefaultConfig())
	m := jwtManifold(t)

	low := eng.ScoreState(m)

	require.NoError(t, m.UpdateGoalStatus("auth", manifold.StatusInProgress))
	mid := eng.ScoreState(m)
	require.NoError(t, m.UpdateGoalStatus("auth", manifold.StatusValidating))
	require.NoError(t, m.UpdateGoalStatus("auth", manifold.StatusCompleted))
	high := eng.ScoreState(m)

	assert.Less(t, low.Score, mid.Score)
	assert.Less(t, mid.Score, high.Score)
	assert.Equal(t, 100.0, high.Score)
}

func TestTokenizeDropsNoise(t *testing.T) {
	toks := tokenize("The API must not FAIL, and with luck it won't!")
	for _, tok := range toks {
		assert.GreaterOrEqual(t, len(tok), 3)
		_, stop := stopwords[tok]
		assert.False(t, stop, tok)
	}
	assert.Contains(t, toks, "api")
	assert.Contains(t, toks, "fail")
}
