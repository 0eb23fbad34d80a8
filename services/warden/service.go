// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package warden provides the governance service for autonomous coding
// agents. It keeps the goal manifold as durable ground truth, scores
// proposed actions against the root intent, scans the write path for
// threats, and gates dependency changes behind governance proposals.
package warden

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/AleutianAI/AleutianWarden/pkg/logging"
	"github.com/AleutianAI/AleutianWarden/pkg/validation"
	"github.com/AleutianAI/AleutianWarden/services/warden/alignment"
	"github.com/AleutianAI/AleutianWarden/services/warden/manifold"
	"github.com/AleutianAI/AleutianWarden/services/warden/security"
	"github.com/AleutianAI/AleutianWarden/services/warden/store"
)

// ErrAlreadyInitialized is returned by InitProject when a manifold exists
// and force was not set.
var ErrAlreadyInitialized = errors.New("project already initialized")

// ErrInvalidInput is returned when a request carries an identifier or path
// that fails validation before it reaches the manifold.
var ErrInvalidInput = errors.New("invalid input")

// ServiceConfig configures the warden service.
type ServiceConfig struct {
	// Alignment holds the scoring thresholds.
	Alignment alignment.Config

	// Scanner holds the write-path verdict thresholds.
	Scanner security.Config

	// HandoverLimit caps handover entries returned in the cognitive map.
	// Default: 10
	HandoverLimit int
}

// DefaultServiceConfig returns sensible defaults.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		Alignment:     alignment.DefaultConfig(),
		Scanner:       security.DefaultConfig(),
		HandoverLimit: 10,
	}
}

// Service is the warden service.
//
// Thread Safety:
//
//	Service is safe for concurrent use. The store serializes writes, and
//	reads operate on deep copies.
type Service struct {
	config  ServiceConfig
	store   *store.Store
	aligner *alignment.Engine
	scanner *security.Scanner
	log     *logging.Logger
}

// NewService creates a warden service over an open store.
func NewService(config ServiceConfig, st *store.Store, log *logging.Logger) (*Service, error) {
	if log == nil {
		log = logging.Nop()
	}
	if config.HandoverLimit <= 0 {
		config.HandoverLimit = DefaultServiceConfig().HandoverLimit
	}
	scanner, err := security.New(config.Scanner)
	if err != nil {
		return nil, fmt.Errorf("build scanner: %w", err)
	}
	return &Service{
		config:  config,
		store:   st,
		aligner: alignment.New(config.Alignment),
		scanner: scanner,
		log:     log,
	}, nil
}

// Store exposes the underlying store for auxiliary surfaces.
func (s *Service) Store() *store.Store {
	return s.store
}

func (s *Service) summary(m *manifold.Manifold) ManifoldSummary {
	return ManifoldSummary{
		Version:       m.Version,
		IntegrityHash: m.IntegrityHash,
		GoalCount:     m.GoalDAG.Len(),
		Completion:    m.GoalDAG.CompletionPercentage(),
		Degraded:      s.store.Degraded(),
	}
}

// =============================================================================
// Lifecycle
// =============================================================================

// InitProject creates the manifold for a new project. An existing manifold
// is only replaced when force is set.
func (s *Service) InitProject(req InitProjectRequest) (ManifoldSummary, error) {
	initialized, err := s.store.Initialized()
	if err != nil {
		return ManifoldSummary{}, err
	}
	if initialized && !req.Force {
		return ManifoldSummary{}, ErrAlreadyInitialized
	}

	intent := manifold.NewIntent(req.Description)
	intent.Constraints = req.Constraints
	intent.ExpectedOutcomes = req.ExpectedOutcomes
	intent.TargetPlatform = req.TargetPlatform
	intent.Languages = req.Languages
	intent.Frameworks = req.Frameworks
	intent.InfrastructureMap = req.InfrastructureMap

	m, err := s.store.Init(intent)
	if err != nil {
		return ManifoldSummary{}, err
	}
	if req.Sensitivity > 0 {
		m, _, err = s.store.Update("sensitivity set", func(m *manifold.Manifold) error {
			m.Sensitivity = req.Sensitivity
			return nil
		})
		if err != nil {
			return ManifoldSummary{}, err
		}
	}
	s.log.Info("project initialized", "goals", 0, "version", m.Version)
	return s.summary(m), nil
}

// =============================================================================
// Alignment
// =============================================================================

// ValidateAction scores a proposed action against the manifold.
func (s *Service) ValidateAction(req ValidateActionRequest) (ValidateActionResponse, error) {
	m, err := s.store.Snapshot()
	if err != nil {
		return ValidateActionResponse{}, err
	}
	text := req.Description
	if req.ActionType != "" {
		text = req.ActionType + ": " + text
	}
	rep := s.aligner.ScoreAction(m, text)
	if !rep.Aligned {
		actionsBlocked.Inc()
	}
	return ValidateActionResponse{
		Allowed:    rep.Aligned,
		Score:      rep.Score,
		Confidence: rep.Confidence,
		Violations: rep.Violations,
		Reasons:    rep.Reasons,
	}, nil
}

// GetAlignment reports how well current state serves the intent.
func (s *Service) GetAlignment() (alignment.Report, error) {
	m, err := s.store.Snapshot()
	if err != nil {
		return alignment.Report{}, err
	}
	return s.aligner.ScoreState(m), nil
}

// SafeWrite scans content bound for disk. The write itself stays with the
// caller; warden only renders the verdict.
func (s *Service) SafeWrite(req SafeWriteRequest) (SafeWriteResponse, error) {
	if req.Path != "" {
		if err := validation.ValidateRelPath(req.Path); err != nil {
			return SafeWriteResponse{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
	}
	rep := s.scanner.Scan(req.Content)
	if !rep.Safe {
		unsafeWrites.Inc()
		s.log.Warn("unsafe write attempt",
			"path", req.Path,
			"verdict", rep.Verdict,
			"risk", rep.RiskScore,
			"threats", len(rep.Threats))
	}
	return SafeWriteResponse{
		IsSafe:    rep.Safe,
		Verdict:   rep.Verdict,
		RiskScore: rep.RiskScore,
		Threats:   rep.Threats,
	}, nil
}

// =============================================================================
// Goals
// =============================================================================

// AddGoal inserts a goal into the graph.
func (s *Service) AddGoal(req AddGoalRequest) (ManifoldSummary, *manifold.Goal, error) {
	g := manifold.NewGoal(req.Description, req.ValueToRoot)
	g.Dependencies = req.Dependencies
	g.Metadata.Tags = req.Tags
	if len(req.SuccessCriteria) > 0 {
		g.SuccessCriteria = req.SuccessCriteria
	} else {
		g.SuccessCriteria = []manifold.Criterion{manifold.ManualCriterion(req.Description)}
	}
	if req.ComplexityMean > 0 {
		g.Complexity = manifold.PointComplexity(req.ComplexityMean)
	}

	m, _, err := s.store.Update("goal added", func(m *manifold.Manifold) error {
		return m.AddGoal(g)
	})
	if err != nil {
		return ManifoldSummary{}, nil, err
	}
	return s.summary(m), g, nil
}

// UpdateGoalStatus transitions a goal, recording block and failure reasons.
func (s *Service) UpdateGoalStatus(goalID string, req UpdateGoalStatusRequest) (ManifoldSummary, error) {
	target := manifold.GoalStatus(strings.ToLower(req.Status))
	m, _, err := s.store.Update("status update", func(m *manifold.Manifold) error {
		if err := m.UpdateGoalStatus(goalID, target); err != nil {
			return err
		}
		if target == manifold.StatusDeprecated {
			operator := req.Operator
			if operator == "" {
				operator = "agent"
			}
			m.AddOverride(manifold.Override{
				Operator:  operator,
				Decision:  "deprecate goal " + goalID,
				Rationale: req.Reason,
			})
		}
		if req.Reason == "" {
			return nil
		}
		g, err := m.GoalDAG.Get(goalID)
		if err != nil {
			return err
		}
		switch target {
		case manifold.StatusBlocked:
			g.Metadata.BlockedReason = req.Reason
		case manifold.StatusFailed:
			g.Metadata.FailureReason = req.Reason
		}
		return nil
	})
	if err != nil {
		return ManifoldSummary{}, err
	}
	return s.summary(m), nil
}

// DecomposeGoal splits a goal into child goals.
func (s *Service) DecomposeGoal(req DecomposeGoalRequest) (ManifoldSummary, []string, error) {
	children := make([]*manifold.Goal, 0, len(req.Children))
	ids := make([]string, 0, len(req.Children))
	for _, spec := range req.Children {
		g := manifold.NewGoal(spec.Description, spec.ValueToRoot)
		g.Dependencies = spec.Dependencies
		if len(spec.SuccessCriteria) > 0 {
			g.SuccessCriteria = spec.SuccessCriteria
		} else {
			g.SuccessCriteria = []manifold.Criterion{manifold.ManualCriterion(spec.Description)}
		}
		if spec.ComplexityMean > 0 {
			g.Complexity = manifold.PointComplexity(spec.ComplexityMean)
		}
		children = append(children, g)
		ids = append(ids, g.ID)
	}

	m, _, err := s.store.Update("goal decomposed", func(m *manifold.Manifold) error {
		return m.DecomposeGoal(req.GoalID, children)
	})
	if err != nil {
		return ManifoldSummary{}, nil, err
	}
	return s.summary(m), ids, nil
}

// GoalGraph renders the graph with layout hints: the highest value goals
// sit near the center line, alternating left and right as value drops.
func (s *Service) GoalGraph() (GoalGraphResponse, error) {
	m, err := s.store.Snapshot()
	if err != nil {
		return GoalGraphResponse{}, err
	}
	ids := m.GoalDAG.SortedIDs()
	goals := make([]*manifold.Goal, 0, len(ids))
	for _, id := range ids {
		goals = append(goals, m.GoalDAG.Goals[id])
	}
	sort.SliceStable(goals, func(i, j int) bool {
		return goals[i].ValueToRoot > goals[j].ValueToRoot
	})

	resp := GoalGraphResponse{}
	for i, g := range goals {
		x := float64((i + 1) / 2 * 250)
		if i%2 == 0 {
			x = -x
		}
		resp.Nodes = append(resp.Nodes, GraphNode{
			ID:          g.ID,
			Description: g.Description,
			Status:      g.Status,
			ValueToRoot: g.ValueToRoot,
			ParentID:    g.ParentID,
			Position:    GraphPosition{X: x, Y: float64((i + 1) * 150)},
		})
		for _, dep := range g.Dependencies {
			resp.Edges = append(resp.Edges, GraphEdge{From: g.ID, To: dep})
		}
	}
	return resp, nil
}

// =============================================================================
// Handover and orientation
// =============================================================================

// RecordHandover appends a handover note.
func (s *Service) RecordHandover(req RecordHandoverRequest) (ManifoldSummary, error) {
	agentID := req.AgentID
	if agentID != "" {
		var err error
		if agentID, err = validation.SanitizeIdentifier(agentID); err != nil {
			return ManifoldSummary{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
	}
	m, _, err := s.store.Update("handover recorded", func(m *manifold.Manifold) error {
		return m.RecordHandover(manifold.HandoverEntry{
			GoalID:   req.GoalID,
			AgentID:  agentID,
			Category: req.Category,
			Content:  req.Content,
			Warnings: req.Warnings,
		})
	})
	if err != nil {
		return ManifoldSummary{}, err
	}
	return s.summary(m), nil
}

// ExportHandovers serializes the full handover log for transfer to another
// deployment.
func (s *Service) ExportHandovers() ([]byte, error) {
	m, err := s.store.Snapshot()
	if err != nil {
		return nil, err
	}
	return m.ExportHandovers()
}

// ImportHandovers merges a prior export into the log. Re-importing the same
// export adds nothing.
func (s *Service) ImportHandovers(data []byte) (int, error) {
	added := 0
	_, _, err := s.store.Update("handover log imported", func(m *manifold.Manifold) error {
		n, err := m.ImportHandoverData(data)
		added = n
		return err
	})
	if err != nil {
		return 0, err
	}
	return added, nil
}

// CognitiveMap builds the orientation summary a fresh session needs.
func (s *Service) CognitiveMap() (CognitiveMap, error) {
	m, err := s.store.Snapshot()
	if err != nil {
		return CognitiveMap{}, err
	}
	counts := make(map[manifold.GoalStatus]int)
	for _, g := range m.GoalDAG.Goals {
		counts[g.Status]++
	}
	var ready []GraphNode
	for _, g := range m.GoalDAG.ReadyGoals() {
		ready = append(ready, GraphNode{
			ID:          g.ID,
			Description: g.Description,
			Status:      g.Status,
			ValueToRoot: g.ValueToRoot,
		})
	}
	return CognitiveMap{
		Intent:           m.RootIntent.Description,
		Constraints:      m.RootIntent.Constraints,
		StatusCounts:     counts,
		ReadyGoals:       ready,
		CompletionPct:    m.GoalDAG.CompletionPercentage(),
		CriticalPathCost: m.GoalDAG.CriticalPathEstimate(),
		RecentHandovers:  m.RecentHandovers(s.config.HandoverLimit),
		Version:          m.Version,
		Degraded:         s.store.Degraded(),
	}, nil
}

// ProposeStrategy recommends next steps from graph state and the handover
// log. Purely heuristic; the caller decides what to act on.
func (s *Service) ProposeStrategy() ([]Strategy, error) {
	m, err := s.store.Snapshot()
	if err != nil {
		return nil, err
	}
	var out []Strategy

	for i, g := range m.GoalDAG.ReadyGoals() {
		if i >= 3 {
			break
		}
		out = append(out, Strategy{
			Action:     "start goal: " + g.Description,
			GoalID:     g.ID,
			Rationale:  fmt.Sprintf("ready with value %.2f to the root intent", g.ValueToRoot),
			Confidence: 0.5 + 0.4*g.ValueToRoot,
		})
	}
	for _, g := range m.GoalDAG.Goals {
		if g.Status == manifold.StatusBlocked {
			reason := g.Metadata.BlockedReason
			if reason == "" {
				reason = "no reason recorded"
			}
			out = append(out, Strategy{
				Action:     "unblock goal: " + g.Description,
				GoalID:     g.ID,
				Rationale:  "blocked: " + reason,
				Confidence: 0.4,
			})
		}
		if g.Status == manifold.StatusFailed && g.Metadata.RetryCount < 3 {
			out = append(out, Strategy{
				Action:     "investigate failure: " + g.Description,
				GoalID:     g.ID,
				Rationale:  fmt.Sprintf("failed %d time(s): %s", g.Metadata.RetryCount, g.Metadata.FailureReason),
				Confidence: 0.3,
			})
		}
	}
	if m.Governance.PendingProposal != nil {
		out = append(out, Strategy{
			Action:     "resolve pending governance proposal",
			Rationale:  "dependency and surface changes are gated until the proposal is approved or rejected",
			Confidence: 0.9,
		})
	}
	if len(out) == 0 {
		out = append(out, Strategy{
			Action:     "decompose the intent into goals",
			Rationale:  "the goal graph is empty or fully terminal",
			Confidence: 0.6,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Confidence > out[j].Confidence })
	return out, nil
}

// =============================================================================
// Reporting
// =============================================================================

// EnforcementRules renders the active invariants and governance constraints
// as agent-readable rule lines.
func (s *Service) EnforcementRules() ([]string, error) {
	m, err := s.store.Snapshot()
	if err != nil {
		return nil, err
	}
	var rules []string
	for _, inv := range m.Invariants {
		rules = append(rules, fmt.Sprintf("[%s] %s: %s", strings.ToUpper(string(inv.Severity)),
			inv.Description, inv.Predicate.String()))
	}
	for _, c := range m.RootIntent.Constraints {
		rules = append(rules, "[CONSTRAINT] "+c)
	}
	if len(m.Governance.RequiredDependencies) > 0 {
		rules = append(rules, "[GOVERNANCE] required dependencies: "+
			strings.Join(m.Governance.RequiredDependencies, ", "))
	}
	if len(m.Governance.AllowedDependencies) > 0 {
		rules = append(rules, "[GOVERNANCE] new dependencies outside the allowed set need a proposal")
	}
	return rules, nil
}

// Reliability summarizes failures and retries across the graph.
func (s *Service) Reliability() (ReliabilityReport, error) {
	m, err := s.store.Snapshot()
	if err != nil {
		return ReliabilityReport{}, err
	}
	rep := ReliabilityReport{
		TotalGoals:  m.GoalDAG.Len(),
		RetryCounts: make(map[string]int),
	}
	for _, g := range m.GoalDAG.Goals {
		if g.Metadata.RetryCount > 0 {
			rep.RetryCounts[g.ID] = g.Metadata.RetryCount
		}
		switch g.Status {
		case manifold.StatusFailed:
			rep.FailedGoals++
			rep.Failures = append(rep.Failures, ReliabilityEntry{
				GoalID:      g.ID,
				Description: g.Description,
				Reason:      g.Metadata.FailureReason,
				Retries:     g.Metadata.RetryCount,
			})
		case manifold.StatusBlocked:
			rep.BlockedGoals++
		}
	}
	if rep.TotalGoals == 0 {
		rep.Score = 1.0
	} else {
		rep.Score = 1.0 - float64(rep.FailedGoals+rep.BlockedGoals)/float64(rep.TotalGoals)
	}
	sort.Slice(rep.Failures, func(i, j int) bool { return rep.Failures[i].GoalID < rep.Failures[j].GoalID })
	return rep, nil
}

// WorldModel returns the external surfaces the project is known to touch.
func (s *Service) WorldModel() (WorldModel, error) {
	m, err := s.store.Snapshot()
	if err != nil {
		return WorldModel{}, err
	}
	return WorldModel{
		InfrastructureMap: m.RootIntent.InfrastructureMap,
		AllowedEndpoints:  m.Governance.AllowedEndpoints,
		AllowedPorts:      m.Governance.AllowedPorts,
		Languages:         m.RootIntent.Languages,
		Frameworks:        m.RootIntent.Frameworks,
		TargetPlatform:    m.RootIntent.TargetPlatform,
		Sensitivity:       m.Sensitivity,
	}, nil
}

// QualityStatus returns the latest recorded build and test health.
func (s *Service) QualityStatus() (store.QualityReport, bool, error) {
	return s.store.QualityReport()
}

// RecordQuality stores a fresh quality observation.
func (s *Service) RecordQuality(req QualityReportRequest) error {
	return s.store.SetQualityReport(store.QualityReport{
		BuildOK:      req.BuildOK,
		TestsPassing: req.TestsPassing,
		TestCoverage: req.TestCoverage,
		LintErrors:   req.LintErrors,
		Notes:        req.Notes,
	})
}

// AddInvariant registers an invariant.
func (s *Service) AddInvariant(req AddInvariantRequest) (ManifoldSummary, error) {
	severity := manifold.Severity(strings.ToLower(req.Severity))
	if severity == "" {
		severity = manifold.SeverityError
	}
	m, _, err := s.store.Update("invariant added", func(m *manifold.Manifold) error {
		return m.AddInvariant(manifold.Invariant{
			Description: req.Description,
			Predicate:   req.Predicate,
			Severity:    severity,
		})
	})
	if err != nil {
		return ManifoldSummary{}, err
	}
	return s.summary(m), nil
}

// =============================================================================
// Governance
// =============================================================================

// GovernanceStatus returns the policy, pending proposal, and history size.
func (s *Service) GovernanceStatus() (GovernanceStatus, error) {
	m, err := s.store.Snapshot()
	if err != nil {
		return GovernanceStatus{}, err
	}
	return GovernanceStatus{
		Policy:      m.Governance,
		Pending:     m.Governance.PendingProposal,
		HistorySize: len(m.Governance.History),
	}, nil
}

// GovernanceSeed derives a proposal from the intent and observed
// dependencies. With Apply false the proposal is returned without being
// staged.
func (s *Service) GovernanceSeed(req GovernanceSeedRequest) (*manifold.Proposal, error) {
	m, err := s.store.Snapshot()
	if err != nil {
		return nil, err
	}
	proposal := manifold.SeedProposalFromIntent(m.RootIntent, req.ObservedDependencies, req.LockRequired)
	if !req.Apply {
		return proposal, nil
	}
	_, _, err = s.store.Update("governance seeded", func(m *manifold.Manifold) error {
		m.RecordObservation(req.ObservedDependencies)
		return m.StageProposal(proposal)
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("governance proposal staged", "proposal_id", proposal.ID, "lock_required", req.LockRequired)
	return proposal, nil
}

// GovernanceApprove applies the pending proposal. Approving with nothing
// pending succeeds without changing anything.
func (s *Service) GovernanceApprove(note string) (GovernanceStatus, error) {
	_, _, err := s.store.Update("governance approved", func(m *manifold.Manifold) error {
		m.ApproveProposal(note)
		return nil
	})
	if err != nil {
		return GovernanceStatus{}, err
	}
	return s.GovernanceStatus()
}

// GovernanceReject discards the pending proposal.
func (s *Service) GovernanceReject(note string) (GovernanceStatus, error) {
	_, _, err := s.store.Update("governance rejected", func(m *manifold.Manifold) error {
		m.RejectProposal(note)
		return nil
	})
	if err != nil {
		return GovernanceStatus{}, err
	}
	return s.GovernanceStatus()
}
