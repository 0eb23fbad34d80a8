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
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"time"
)

// GoalGraph is the dependency DAG over goals. An edge goal -> dep means the
// goal cannot start until dep completes. Dependencies mirrors the per-goal
// dependency lists as a flat adjacency map for consumers reading the
// persisted document; the two are kept equal by every mutator and checked
// by VerifyIntegrity along with the graph's own hash. The graph is not safe
// for concurrent mutation; the store serializes writers.
type GoalGraph struct {
	Goals         map[string]*Goal    `json:"goals"`
	Dependencies  map[string][]string `json:"dependencies"`
	IntegrityHash string              `json:"integrity_hash"`
}

// NewGoalGraph returns an empty graph.
func NewGoalGraph() *GoalGraph {
	gg := &GoalGraph{
		Goals:        make(map[string]*Goal),
		Dependencies: make(map[string][]string),
	}
	gg.rehash()
	return gg
}

// Len returns the number of goals.
func (gg *GoalGraph) Len() int {
	return len(gg.Goals)
}

// Get returns the goal with the given id.
func (gg *GoalGraph) Get(id string) (*Goal, error) {
	g, ok := gg.Goals[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrGoalNotFound, id)
	}
	return g, nil
}

// AddGoal validates and inserts a goal. Every dependency and
// anti-dependency must reference an existing goal. A goal whose dependencies
// are all satisfied enters as ready rather than pending.
func (gg *GoalGraph) AddGoal(g *Goal) error {
	if err := g.Validate(); err != nil {
		return err
	}
	if _, exists := gg.Goals[g.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateGoal, g.ID)
	}
	for _, dep := range g.Dependencies {
		if dep == g.ID {
			return &CycleError{Path: []string{g.ID, g.ID}}
		}
		if _, ok := gg.Goals[dep]; !ok {
			return fmt.Errorf("%w: %s depends on %s", ErrUnknownDependency, g.ID, dep)
		}
	}
	for _, anti := range g.AntiDependencies {
		if _, ok := gg.Goals[anti]; !ok {
			return fmt.Errorf("%w: anti-dependency %s", ErrUnknownDependency, anti)
		}
	}
	if g.Status == "" || g.Status == StatusPending {
		if gg.dependenciesSatisfied(g) {
			g.Status = StatusReady
		} else {
			g.Status = StatusPending
		}
	}
	g.UpdatedAt = time.Now().UTC()
	gg.Goals[g.ID] = g
	gg.syncAdjacency(g)
	gg.rehash()
	return nil
}

// AddDependency adds an edge from -> to after checking it would not create
// a cycle. Adding a dependency may regress a ready goal back to pending.
func (gg *GoalGraph) AddDependency(fromID, toID string) error {
	from, err := gg.Get(fromID)
	if err != nil {
		return err
	}
	if _, err := gg.Get(toID); err != nil {
		return fmt.Errorf("%w: %s", ErrUnknownDependency, toID)
	}
	if from.Status.IsTerminal() {
		return fmt.Errorf("%w: %s", ErrAlreadyTerminal, fromID)
	}
	for _, anti := range from.AntiDependencies {
		if anti == toID {
			return fmt.Errorf("%w: %s depends on %s", ErrAntiDependencyConflict, fromID, toID)
		}
	}
	for _, dep := range from.Dependencies {
		if dep == toID {
			return nil
		}
	}
	if path := gg.findPath(toID, fromID); path != nil {
		return &CycleError{Path: append(path, toID)}
	}
	from.Dependencies = append(from.Dependencies, toID)
	if from.Status == StatusReady && !gg.dependenciesSatisfied(from) {
		from.Status = StatusPending
	}
	from.UpdatedAt = time.Now().UTC()
	gg.syncAdjacency(from)
	gg.rehash()
	return nil
}

// findPath returns the goal ids on a dependency path from -> to, or nil when
// no path exists.
func (gg *GoalGraph) findPath(fromID, toID string) []string {
	if fromID == toID {
		return []string{fromID}
	}
	visited := make(map[string]bool)
	var walk func(id string) []string
	walk = func(id string) []string {
		if visited[id] {
			return nil
		}
		visited[id] = true
		g, ok := gg.Goals[id]
		if !ok {
			return nil
		}
		for _, dep := range g.Dependencies {
			if dep == toID {
				return []string{id, dep}
			}
			if rest := walk(dep); rest != nil {
				return append([]string{id}, rest...)
			}
		}
		return nil
	}
	return walk(fromID)
}

func (gg *GoalGraph) dependenciesSatisfied(g *Goal) bool {
	for _, dep := range g.Dependencies {
		d, ok := gg.Goals[dep]
		if !ok || d.Status != StatusCompleted {
			return false
		}
	}
	return true
}

// UpdateStatus applies a status transition. Completing a goal while its
// dependencies are unmet is rejected. Completing a goal promotes pending
// dependents whose dependencies are now all complete. Blocking records the
// prior state so unblocking can restore it.
func (gg *GoalGraph) UpdateStatus(id string, target GoalStatus) error {
	g, err := gg.Get(id)
	if err != nil {
		return err
	}
	if !target.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, target)
	}
	if g.Status == target {
		return nil
	}
	if g.Status.IsTerminal() {
		return fmt.Errorf("%w: %s is %s", ErrAlreadyTerminal, id, g.Status)
	}
	if !g.Status.CanTransitionTo(target) {
		return &TransitionError{From: g.Status, To: target}
	}
	if g.Status == StatusBlocked && !target.IsTerminal() &&
		g.Metadata.PriorStatus != "" && target != g.Metadata.PriorStatus {
		return &TransitionError{From: g.Status, To: target}
	}
	if target == StatusCompleted && !gg.dependenciesSatisfied(g) {
		return &TransitionError{From: g.Status, To: target}
	}

	switch target {
	case StatusBlocked:
		g.Metadata.PriorStatus = g.Status
	case StatusFailed:
		g.Metadata.RetryCount++
	}
	if g.Status == StatusBlocked && target != StatusDeprecated {
		g.Metadata.PriorStatus = ""
		g.Metadata.BlockedReason = ""
	}
	g.Status = target
	g.UpdatedAt = time.Now().UTC()

	if target == StatusCompleted {
		gg.promoteReady()
		gg.deprecateFinishedParents()
	}
	if target.IsTerminal() {
		gg.deprecateFinishedParents()
	}
	gg.rehash()
	return nil
}

// promoteReady moves pending goals whose dependencies are all complete to
// ready.
func (gg *GoalGraph) promoteReady() {
	for _, g := range gg.Goals {
		if g.Status == StatusPending && gg.dependenciesSatisfied(g) {
			g.Status = StatusReady
			g.UpdatedAt = time.Now().UTC()
		}
	}
}

// deprecateFinishedParents retires decomposed parents once every child has
// reached a terminal state.
func (gg *GoalGraph) deprecateFinishedParents() {
	children := make(map[string][]*Goal)
	for _, g := range gg.Goals {
		if g.ParentID != "" {
			children[g.ParentID] = append(children[g.ParentID], g)
		}
	}
	for parentID, kids := range children {
		parent, ok := gg.Goals[parentID]
		if !ok || parent.Status.IsTerminal() {
			continue
		}
		done := true
		for _, k := range kids {
			if !k.Status.IsTerminal() {
				done = false
				break
			}
		}
		if done {
			parent.Status = StatusDeprecated
			parent.UpdatedAt = time.Now().UTC()
		}
	}
}

// Decompose replaces a goal with child goals. Children are inserted with
// the parent id set. A child declaring no dependencies inherits all of the
// parent's unmet ones; when every child declares its own, any unmet parent
// dependency no child covers is appended to each child so the decomposition
// keeps waiting on it. The parent stays until all children finish.
func (gg *GoalGraph) Decompose(parentID string, children []*Goal) error {
	parent, err := gg.Get(parentID)
	if err != nil {
		return err
	}
	if parent.Status.IsTerminal() {
		return fmt.Errorf("%w: %s is %s", ErrAlreadyTerminal, parentID, parent.Status)
	}
	if len(children) == 0 {
		return fmt.Errorf("%w: decomposition requires children", ErrInvalidGoal)
	}
	var unmet []string
	for _, dep := range parent.Dependencies {
		if d, ok := gg.Goals[dep]; ok && d.Status != StatusCompleted {
			unmet = append(unmet, dep)
		}
	}
	covered := make(map[string]bool)
	bareChild := false
	for _, child := range children {
		if len(child.Dependencies) == 0 {
			bareChild = true
		}
		for _, dep := range child.Dependencies {
			covered[dep] = true
		}
	}
	var remainder []string
	if !bareChild {
		for _, dep := range unmet {
			if !covered[dep] {
				remainder = append(remainder, dep)
			}
		}
	}
	for _, child := range children {
		child.ParentID = parentID
		if len(child.Dependencies) == 0 {
			child.Dependencies = append([]string(nil), unmet...)
		} else {
			child.Dependencies = append(child.Dependencies, remainder...)
		}
		if child.ValueToRoot == 0 {
			child.ValueToRoot = parent.ValueToRoot / float64(len(children))
		}
		if err := gg.AddGoal(child); err != nil {
			return err
		}
	}
	return nil
}

// ReadyGoals returns goals available to start, highest value first.
func (gg *GoalGraph) ReadyGoals() []*Goal {
	var out []*Goal
	for _, g := range gg.Goals {
		if g.Status == StatusReady {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ValueToRoot != out[j].ValueToRoot {
			return out[i].ValueToRoot > out[j].ValueToRoot
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// ActiveGoals returns the count of in-progress and validating goals.
func (gg *GoalGraph) ActiveGoals() int {
	n := 0
	for _, g := range gg.Goals {
		if g.Status.IsActive() {
			n++
		}
	}
	return n
}

// CompletedGoals returns the count of completed goals.
func (gg *GoalGraph) CompletedGoals() int {
	n := 0
	for _, g := range gg.Goals {
		if g.Status == StatusCompleted {
			n++
		}
	}
	return n
}

// CompletionPercentage is completed over non-deprecated goals, 0-100.
func (gg *GoalGraph) CompletionPercentage() float64 {
	total, done := 0, 0
	for _, g := range gg.Goals {
		if g.Status == StatusDeprecated {
			continue
		}
		total++
		if g.Status == StatusCompleted {
			done++
		}
	}
	if total == 0 {
		return 0
	}
	return 100 * float64(done) / float64(total)
}

// TopologicalSort returns goal ids in dependency order (dependencies before
// dependents). Returns ErrCyclicDependency when the graph has a cycle.
func (gg *GoalGraph) TopologicalSort() ([]string, error) {
	indegree := make(map[string]int, len(gg.Goals))
	dependents := make(map[string][]string, len(gg.Goals))
	for id := range gg.Goals {
		indegree[id] = 0
	}
	for id, g := range gg.Goals {
		for _, dep := range g.Dependencies {
			if _, ok := gg.Goals[dep]; !ok {
				return nil, fmt.Errorf("%w: %s", ErrUnknownDependency, dep)
			}
			indegree[id]++
			dependents[dep] = append(dependents[dep], id)
		}
	}
	var queue []string
	for id, deg := range indegree {
		if deg == 0 {
			queue = append(queue, id)
		}
	}
	sort.Strings(queue)

	order := make([]string, 0, len(gg.Goals))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		order = append(order, id)
		next := append([]string(nil), dependents[id]...)
		sort.Strings(next)
		for _, dep := range next {
			indegree[dep]--
			if indegree[dep] == 0 {
				queue = append(queue, dep)
			}
		}
	}
	if len(order) != len(gg.Goals) {
		var stuck []string
		for id, deg := range indegree {
			if deg > 0 {
				stuck = append(stuck, id)
			}
		}
		sort.Strings(stuck)
		return nil, &CycleError{Path: stuck}
	}
	return order, nil
}

// CriticalPathEstimate returns the largest cumulative complexity mean along
// any dependency chain through non-terminal goals.
func (gg *GoalGraph) CriticalPathEstimate() float64 {
	memo := make(map[string]float64, len(gg.Goals))
	var cost func(id string) float64
	cost = func(id string) float64 {
		if v, ok := memo[id]; ok {
			return v
		}
		memo[id] = 0 // cycle guard; graphs are acyclic by construction
		g, ok := gg.Goals[id]
		if !ok || g.Status.IsTerminal() {
			return 0
		}
		best := 0.0
		for _, dep := range g.Dependencies {
			if c := cost(dep); c > best {
				best = c
			}
		}
		memo[id] = g.Complexity.Mean + best
		return memo[id]
	}
	longest := 0.0
	for id := range gg.Goals {
		if c := cost(id); c > longest {
			longest = c
		}
	}
	return longest
}

// syncAdjacency refreshes the flat adjacency entry for one goal.
func (gg *GoalGraph) syncAdjacency(g *Goal) {
	if gg.Dependencies == nil {
		gg.Dependencies = make(map[string][]string)
	}
	gg.Dependencies[g.ID] = append([]string(nil), g.Dependencies...)
}

// computeHash folds goal ids, statuses, and dependency edges in sorted id
// order.
func (gg *GoalGraph) computeHash() string {
	h := sha256.New()
	for _, id := range gg.SortedIDs() {
		g := gg.Goals[id]
		h.Write([]byte(id))
		h.Write([]byte{0})
		h.Write([]byte(g.Status))
		h.Write([]byte{0})
		for _, dep := range g.Dependencies {
			h.Write([]byte(dep))
			h.Write([]byte{0})
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

func (gg *GoalGraph) rehash() {
	gg.IntegrityHash = gg.computeHash()
}

// VerifyIntegrity checks the stored graph hash and that the flat adjacency
// map equals the per-goal dependency lists.
func (gg *GoalGraph) VerifyIntegrity() error {
	for id, g := range gg.Goals {
		if !equalDeps(gg.Dependencies[id], g.Dependencies) {
			return fmt.Errorf("%w: adjacency for %s diverges from goal dependencies",
				ErrIntegrityMismatch, id)
		}
	}
	for id := range gg.Dependencies {
		if _, ok := gg.Goals[id]; !ok {
			return fmt.Errorf("%w: adjacency entry for unknown goal %s", ErrIntegrityMismatch, id)
		}
	}
	if got := gg.computeHash(); got != gg.IntegrityHash {
		return fmt.Errorf("%w: graph stored %s computed %s", ErrIntegrityMismatch,
			short(gg.IntegrityHash), short(got))
	}
	return nil
}

func equalDeps(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of the graph.
func (gg *GoalGraph) Clone() *GoalGraph {
	cp := NewGoalGraph()
	for id, g := range gg.Goals {
		cp.Goals[id] = g.Clone()
		cp.Dependencies[id] = append([]string(nil), gg.Dependencies[id]...)
	}
	cp.IntegrityHash = gg.IntegrityHash
	return cp
}

// SortedIDs returns goal ids in lexical order for deterministic encoding.
func (gg *GoalGraph) SortedIDs() []string {
	ids := make([]string, 0, len(gg.Goals))
	for id := range gg.Goals {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
