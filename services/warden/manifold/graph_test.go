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
	"testing"
)

func testGoal(id, description string, deps ...string) *Goal {
	g := NewGoal(description, 0.5)
	g.ID = id
	g.Dependencies = deps
	g.SuccessCriteria = []Criterion{ManualCriterion("done")}
	return g
}

func TestStatusTransitions(t *testing.T) {
	tests := []struct {
		name string
		from GoalStatus
		to   GoalStatus
		ok   bool
	}{
		{"pending to ready", StatusPending, StatusReady, true},
		{"pending to in_progress skips ready", StatusPending, StatusInProgress, false},
		{"ready to in_progress", StatusReady, StatusInProgress, true},
		{"in_progress to validating", StatusInProgress, StatusValidating, true},
		{"in_progress to completed skips validating", StatusInProgress, StatusCompleted, false},
		{"validating to completed", StatusValidating, StatusCompleted, true},
		{"validating back to in_progress", StatusValidating, StatusInProgress, true},
		{"completed is terminal", StatusCompleted, StatusInProgress, false},
		{"failed is terminal", StatusFailed, StatusInProgress, false},
		{"deprecated is terminal", StatusDeprecated, StatusReady, false},
		{"blocked to deprecated", StatusBlocked, StatusDeprecated, true},
		{"self transition", StatusReady, StatusReady, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.from.CanTransitionTo(tt.to); got != tt.ok {
				t.Errorf("CanTransitionTo(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.ok)
			}
		})
	}
}

func TestAddGoalReadyWhenNoDeps(t *testing.T) {
	gg := NewGoalGraph()
	g := testGoal("a", "first goal")
	if err := gg.AddGoal(g); err != nil {
		t.Fatalf("AddGoal: %v", err)
	}
	if g.Status != StatusReady {
		t.Errorf("status = %s, want ready", g.Status)
	}

	dep := testGoal("b", "dependent goal", "a")
	if err := gg.AddGoal(dep); err != nil {
		t.Fatalf("AddGoal: %v", err)
	}
	if dep.Status != StatusPending {
		t.Errorf("status = %s, want pending", dep.Status)
	}
}

func TestAddGoalUnknownDependency(t *testing.T) {
	gg := NewGoalGraph()
	err := gg.AddGoal(testGoal("a", "orphan", "missing"))
	if !errors.Is(err, ErrUnknownDependency) {
		t.Errorf("err = %v, want ErrUnknownDependency", err)
	}
}

func TestAddGoalDuplicateID(t *testing.T) {
	gg := NewGoalGraph()
	if err := gg.AddGoal(testGoal("a", "first")); err != nil {
		t.Fatal(err)
	}
	err := gg.AddGoal(testGoal("a", "again"))
	if !errors.Is(err, ErrDuplicateGoal) {
		t.Errorf("err = %v, want ErrDuplicateGoal", err)
	}
}

func TestAddDependencyCycleRejected(t *testing.T) {
	gg := NewGoalGraph()
	if err := gg.AddGoal(testGoal("a", "first")); err != nil {
		t.Fatal(err)
	}
	if err := gg.AddGoal(testGoal("b", "second", "a")); err != nil {
		t.Fatal(err)
	}
	if err := gg.AddGoal(testGoal("c", "third", "b")); err != nil {
		t.Fatal(err)
	}

	err := gg.AddDependency("a", "c")
	if !errors.Is(err, ErrCyclicDependency) {
		t.Fatalf("err = %v, want ErrCyclicDependency", err)
	}
	var cycle *CycleError
	if !errors.As(err, &cycle) {
		t.Fatal("expected CycleError")
	}
	if len(cycle.Path) < 2 {
		t.Errorf("cycle path too short: %v", cycle.Path)
	}
}

func TestSelfDependencyRejected(t *testing.T) {
	gg := NewGoalGraph()
	err := gg.AddGoal(testGoal("a", "self referential", "a"))
	if !errors.Is(err, ErrCyclicDependency) {
		t.Errorf("err = %v, want ErrCyclicDependency", err)
	}
}

func TestCompletePromotesDependent(t *testing.T) {
	gg := NewGoalGraph()
	if err := gg.AddGoal(testGoal("a", "first")); err != nil {
		t.Fatal(err)
	}
	if err := gg.AddGoal(testGoal("b", "second", "a")); err != nil {
		t.Fatal(err)
	}

	for _, st := range []GoalStatus{StatusInProgress, StatusValidating, StatusCompleted} {
		if err := gg.UpdateStatus("a", st); err != nil {
			t.Fatalf("UpdateStatus(a, %s): %v", st, err)
		}
	}
	b, _ := gg.Get("b")
	if b.Status != StatusReady {
		t.Errorf("b.Status = %s, want ready after a completed", b.Status)
	}
}

func TestCompleteWithUnmetDepsRejected(t *testing.T) {
	gg := NewGoalGraph()
	if err := gg.AddGoal(testGoal("a", "first")); err != nil {
		t.Fatal(err)
	}
	b := testGoal("b", "second", "a")
	b.Status = StatusValidating
	if err := gg.AddGoal(b); err != nil {
		t.Fatal(err)
	}
	err := gg.UpdateStatus("b", StatusCompleted)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("err = %v, want ErrInvalidTransition", err)
	}
}

func TestBlockedRestoresPriorStatus(t *testing.T) {
	gg := NewGoalGraph()
	if err := gg.AddGoal(testGoal("a", "first")); err != nil {
		t.Fatal(err)
	}
	if err := gg.UpdateStatus("a", StatusInProgress); err != nil {
		t.Fatal(err)
	}
	if err := gg.UpdateStatus("a", StatusBlocked); err != nil {
		t.Fatal(err)
	}

	// Unblocking to a state other than the recorded prior one is rejected.
	if err := gg.UpdateStatus("a", StatusValidating); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("err = %v, want ErrInvalidTransition", err)
	}
	if err := gg.UpdateStatus("a", StatusInProgress); err != nil {
		t.Fatalf("unblock to prior: %v", err)
	}
	a, _ := gg.Get("a")
	if a.Metadata.PriorStatus != "" {
		t.Errorf("prior status not cleared: %q", a.Metadata.PriorStatus)
	}
}

func TestTerminalGoalRejectsUpdates(t *testing.T) {
	gg := NewGoalGraph()
	g := testGoal("a", "first")
	g.Status = StatusFailed
	if err := gg.AddGoal(g); err != nil {
		t.Fatal(err)
	}
	err := gg.UpdateStatus("a", StatusInProgress)
	if !errors.Is(err, ErrAlreadyTerminal) {
		t.Errorf("err = %v, want ErrAlreadyTerminal", err)
	}
}

func TestDecompose(t *testing.T) {
	gg := NewGoalGraph()
	if err := gg.AddGoal(testGoal("dep", "prerequisite")); err != nil {
		t.Fatal(err)
	}
	parent := testGoal("parent", "big goal", "dep")
	parent.ValueToRoot = 0.8
	if err := gg.AddGoal(parent); err != nil {
		t.Fatal(err)
	}

	c1 := testGoal("c1", "first slice")
	c1.ValueToRoot = 0
	c2 := testGoal("c2", "second slice")
	c2.ValueToRoot = 0
	if err := gg.Decompose("parent", []*Goal{c1, c2}); err != nil {
		t.Fatalf("Decompose: %v", err)
	}

	if c1.ParentID != "parent" {
		t.Errorf("c1.ParentID = %q", c1.ParentID)
	}
	if len(c1.Dependencies) != 1 || c1.Dependencies[0] != "dep" {
		t.Errorf("c1 did not inherit unmet deps: %v", c1.Dependencies)
	}
	if c1.ValueToRoot != 0.4 {
		t.Errorf("c1.ValueToRoot = %.2f, want 0.4", c1.ValueToRoot)
	}

}

// An unmet parent dependency no child covers is carried into every child.
func TestDecomposeCoversParentUnmetDeps(t *testing.T) {
	gg := NewGoalGraph()
	if err := gg.AddGoal(testGoal("schema", "define schema")); err != nil {
		t.Fatal(err)
	}
	if err := gg.AddGoal(testGoal("infra", "provision infra")); err != nil {
		t.Fatal(err)
	}
	if err := gg.AddGoal(testGoal("parent3", "big goal", "schema")); err != nil {
		t.Fatal(err)
	}

	c1 := testGoal("m1", "first slice", "infra")
	c2 := testGoal("m2", "second slice", "infra")
	if err := gg.Decompose("parent3", []*Goal{c1, c2}); err != nil {
		t.Fatalf("Decompose: %v", err)
	}
	for _, c := range []*Goal{c1, c2} {
		found := false
		for _, dep := range c.Dependencies {
			if dep == "schema" {
				found = true
			}
		}
		if !found {
			t.Errorf("%s deps %v do not cover parent unmet dep schema", c.ID, c.Dependencies)
		}
	}
}

func TestAdjacencyMirrorsGoalDeps(t *testing.T) {
	gg := NewGoalGraph()
	if err := gg.AddGoal(testGoal("a", "first")); err != nil {
		t.Fatal(err)
	}
	if err := gg.AddGoal(testGoal("b", "second", "a")); err != nil {
		t.Fatal(err)
	}
	if err := gg.AddGoal(testGoal("c", "third")); err != nil {
		t.Fatal(err)
	}
	if err := gg.AddDependency("c", "b"); err != nil {
		t.Fatal(err)
	}
	if err := gg.VerifyIntegrity(); err != nil {
		t.Fatalf("VerifyIntegrity: %v", err)
	}
	if got := gg.Dependencies["c"]; len(got) != 1 || got[0] != "b" {
		t.Errorf("adjacency for c = %v, want [b]", got)
	}

	gg.Dependencies["b"] = nil
	if err := gg.VerifyIntegrity(); !errors.Is(err, ErrIntegrityMismatch) {
		t.Errorf("err = %v, want ErrIntegrityMismatch for diverged adjacency", err)
	}
}

func TestGraphHashTracksMutations(t *testing.T) {
	gg := NewGoalGraph()
	if gg.IntegrityHash == "" {
		t.Fatal("empty hash on new graph")
	}
	h0 := gg.IntegrityHash
	if err := gg.AddGoal(testGoal("a", "first")); err != nil {
		t.Fatal(err)
	}
	if gg.IntegrityHash == h0 {
		t.Error("hash unchanged after AddGoal")
	}
	h1 := gg.IntegrityHash
	if err := gg.UpdateStatus("a", StatusInProgress); err != nil {
		t.Fatal(err)
	}
	if gg.IntegrityHash == h1 {
		t.Error("hash unchanged after UpdateStatus")
	}
	if err := gg.VerifyIntegrity(); err != nil {
		t.Fatalf("VerifyIntegrity: %v", err)
	}

	gg.Goals["a"].Status = StatusReady // silent tamper
	if err := gg.VerifyIntegrity(); !errors.Is(err, ErrIntegrityMismatch) {
		t.Errorf("err = %v, want ErrIntegrityMismatch for tampered status", err)
	}
}

// Parent is retired once every child reaches a terminal state.
func TestDecomposeRetiresParent(t *testing.T) {
	gg := NewGoalGraph()
	if err := gg.AddGoal(testGoal("parent2", "big goal")); err != nil {
		t.Fatal(err)
	}
	k1 := testGoal("k1", "slice one")
	k2 := testGoal("k2", "slice two")
	if err := gg.Decompose("parent2", []*Goal{k1, k2}); err != nil {
		t.Fatal(err)
	}
	for _, id := range []string{"k1", "k2"} {
		for _, st := range []GoalStatus{StatusInProgress, StatusValidating, StatusCompleted} {
			if err := gg.UpdateStatus(id, st); err != nil {
				t.Fatalf("UpdateStatus(%s, %s): %v", id, st, err)
			}
		}
	}
	p, _ := gg.Get("parent2")
	if p.Status != StatusDeprecated {
		t.Errorf("parent status = %s, want deprecated", p.Status)
	}
}

func TestDecomposeTerminalParent(t *testing.T) {
	gg := NewGoalGraph()
	g := testGoal("a", "done goal")
	g.Status = StatusCompleted
	if err := gg.AddGoal(g); err != nil {
		t.Fatal(err)
	}
	err := gg.Decompose("a", []*Goal{testGoal("c", "child")})
	if !errors.Is(err, ErrAlreadyTerminal) {
		t.Errorf("err = %v, want ErrAlreadyTerminal", err)
	}
}

func TestDecomposeMissingParent(t *testing.T) {
	gg := NewGoalGraph()
	err := gg.Decompose("nope", []*Goal{testGoal("c", "child")})
	if !errors.Is(err, ErrGoalNotFound) {
		t.Errorf("err = %v, want ErrGoalNotFound", err)
	}
}

func TestTopologicalSort(t *testing.T) {
	gg := NewGoalGraph()
	if err := gg.AddGoal(testGoal("a", "first")); err != nil {
		t.Fatal(err)
	}
	if err := gg.AddGoal(testGoal("b", "second", "a")); err != nil {
		t.Fatal(err)
	}
	if err := gg.AddGoal(testGoal("c", "third", "a", "b")); err != nil {
		t.Fatal(err)
	}

	order, err := gg.TopologicalSort()
	if err != nil {
		t.Fatalf("TopologicalSort: %v", err)
	}
	pos := make(map[string]int, len(order))
	for i, id := range order {
		pos[id] = i
	}
	if pos["a"] > pos["b"] || pos["b"] > pos["c"] {
		t.Errorf("order violates dependencies: %v", order)
	}
}

func TestReadyGoalsOrderedByValue(t *testing.T) {
	gg := NewGoalGraph()
	low := testGoal("low", "low value")
	low.ValueToRoot = 0.2
	high := testGoal("high", "high value")
	high.ValueToRoot = 0.9
	for _, g := range []*Goal{low, high} {
		if err := gg.AddGoal(g); err != nil {
			t.Fatal(err)
		}
	}
	ready := gg.ReadyGoals()
	if len(ready) != 2 || ready[0].ID != "high" {
		t.Errorf("ready order wrong: %v", ready)
	}
}

func TestCriticalPathEstimate(t *testing.T) {
	gg := NewGoalGraph()
	a := testGoal("a", "first")
	a.Complexity = PointComplexity(3)
	b := testGoal("b", "second", "a")
	b.Complexity = PointComplexity(4)
	c := testGoal("c", "parallel")
	c.Complexity = PointComplexity(2)
	for _, g := range []*Goal{a, b, c} {
		if err := gg.AddGoal(g); err != nil {
			t.Fatal(err)
		}
	}
	if got := gg.CriticalPathEstimate(); got != 7 {
		t.Errorf("CriticalPathEstimate = %.1f, want 7", got)
	}
}

func TestGoalValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Goal)
	}{
		{"empty description", func(g *Goal) { g.Description = " " }},
		{"value above one", func(g *Goal) { g.ValueToRoot = 1.5 }},
		{"negative value", func(g *Goal) { g.ValueToRoot = -0.1 }},
		{"no criteria", func(g *Goal) { g.SuccessCriteria = nil }},
		{"complexity mean out of range", func(g *Goal) { g.Complexity.Mean = 11 }},
		{"dep overlaps anti-dep", func(g *Goal) {
			g.Dependencies = []string{"x"}
			g.AntiDependencies = []string{"x"}
		}},
		{"unknown criterion kind", func(g *Goal) {
			g.SuccessCriteria = []Criterion{{Kind: "telepathy"}}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := testGoal("g", "valid goal")
			tt.mutate(g)
			if err := g.Validate(); err == nil {
				t.Error("Validate() = nil, want error")
			}
		})
	}
}
