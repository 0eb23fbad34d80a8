// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package warden

import (
	"github.com/AleutianAI/AleutianWarden/services/warden/manifold"
	"github.com/AleutianAI/AleutianWarden/services/warden/security"
)

// ErrorResponse is the standard error payload.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// =============================================================================
// Tool call surface
// =============================================================================

// ToolCallRequest is the generic tool invocation envelope.
type ToolCallRequest struct {
	Name      string         `json:"name" binding:"required"`
	Arguments map[string]any `json:"arguments"`
}

// ToolCallResponse wraps a tool result with its name for correlation.
type ToolCallResponse struct {
	Tool   string `json:"tool"`
	Result any    `json:"result"`
}

// =============================================================================
// Requests
// =============================================================================

// InitProjectRequest bootstraps a new manifold.
type InitProjectRequest struct {
	Description       string            `json:"description" binding:"required"`
	Constraints       []string          `json:"constraints"`
	ExpectedOutcomes  []string          `json:"expected_outcomes"`
	TargetPlatform    string            `json:"target_platform"`
	Languages         []string          `json:"languages"`
	Frameworks        []string          `json:"frameworks"`
	InfrastructureMap map[string]string `json:"infrastructure_map"`
	Sensitivity       float64           `json:"sensitivity"`
	Force             bool              `json:"force"`
}

// ValidateActionRequest scores a proposed action.
type ValidateActionRequest struct {
	ActionType  string `json:"action_type"`
	Description string `json:"description" binding:"required"`
}

// SafeWriteRequest scans content before it reaches disk.
type SafeWriteRequest struct {
	Path    string `json:"path"`
	Content string `json:"content" binding:"required"`
}

// RecordHandoverRequest appends a handover note.
type RecordHandoverRequest struct {
	GoalID   string   `json:"goal_id"`
	AgentID  string   `json:"agent_id"`
	Category string   `json:"category"`
	Content  string   `json:"content" binding:"required"`
	Warnings []string `json:"warnings"`
}

// AddGoalRequest inserts a goal into the graph.
type AddGoalRequest struct {
	Description     string               `json:"description" binding:"required"`
	ValueToRoot     float64              `json:"value_to_root"`
	Dependencies    []string             `json:"dependencies"`
	SuccessCriteria []manifold.Criterion `json:"success_criteria"`
	ComplexityMean  float64              `json:"complexity_mean"`
	Tags            []string             `json:"tags"`
}

// UpdateGoalStatusRequest transitions a goal.
type UpdateGoalStatusRequest struct {
	Status   string `json:"status" binding:"required"`
	Reason   string `json:"reason"`
	Operator string `json:"operator"`
}

// ChildGoalSpec describes one child in a decomposition.
type ChildGoalSpec struct {
	Description     string               `json:"description" binding:"required"`
	ValueToRoot     float64              `json:"value_to_root"`
	Dependencies    []string             `json:"dependencies"`
	SuccessCriteria []manifold.Criterion `json:"success_criteria"`
	ComplexityMean  float64              `json:"complexity_mean"`
}

// DecomposeGoalRequest splits a goal into children.
type DecomposeGoalRequest struct {
	GoalID   string          `json:"goal_id" binding:"required"`
	Children []ChildGoalSpec `json:"children" binding:"required"`
}

// GovernanceSeedRequest derives a policy proposal from the intent and the
// observed workspace. With Apply false the proposal is only previewed.
type GovernanceSeedRequest struct {
	Apply                bool     `json:"apply"`
	LockRequired         bool     `json:"lock_required"`
	ObservedDependencies []string `json:"observed_dependencies"`
}

// GovernanceDecisionRequest resolves the pending proposal.
type GovernanceDecisionRequest struct {
	Note string `json:"note"`
}

// AddInvariantRequest registers a new invariant.
type AddInvariantRequest struct {
	Description string             `json:"description" binding:"required"`
	Predicate   manifold.Predicate `json:"predicate" binding:"required"`
	Severity    string             `json:"severity"`
}

// QualityReportRequest records build and test health from CI.
type QualityReportRequest struct {
	BuildOK      bool    `json:"build_ok"`
	TestsPassing bool    `json:"tests_passing"`
	TestCoverage float64 `json:"test_coverage"`
	LintErrors   int     `json:"lint_errors"`
	Notes        string  `json:"notes"`
}

// =============================================================================
// Responses
// =============================================================================

// ManifoldSummary is the compact projection returned by mutating calls.
type ManifoldSummary struct {
	Version       int     `json:"version"`
	IntegrityHash string  `json:"integrity_hash"`
	GoalCount     int     `json:"goal_count"`
	Completion    float64 `json:"completion_pct"`
	Degraded      bool    `json:"degraded"`
}

// ValidateActionResponse is the action verdict.
type ValidateActionResponse struct {
	Allowed    bool                 `json:"allowed"`
	Score      float64              `json:"score"`
	Confidence float64              `json:"confidence"`
	Violations []manifold.Violation `json:"violations,omitempty"`
	Reasons    []string             `json:"reasons,omitempty"`
}

// SafeWriteResponse is the scan verdict for a write.
type SafeWriteResponse struct {
	IsSafe    bool              `json:"is_safe"`
	Verdict   security.Verdict  `json:"verdict"`
	RiskScore float64           `json:"risk_score"`
	Threats   []security.Threat `json:"threats,omitempty"`
}

// GraphNode is one node in the rendered goal graph.
type GraphNode struct {
	ID          string              `json:"id"`
	Description string              `json:"description"`
	Status      manifold.GoalStatus `json:"status"`
	ValueToRoot float64             `json:"value_to_root"`
	ParentID    string              `json:"parent_id,omitempty"`
	Position    GraphPosition       `json:"position"`
}

// GraphPosition is a layout hint for graph rendering.
type GraphPosition struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// GraphEdge is one dependency edge in the rendered goal graph.
type GraphEdge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// GoalGraphResponse is the rendered goal graph.
type GoalGraphResponse struct {
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
}

// Strategy is one recommended next step.
type Strategy struct {
	Action     string  `json:"action"`
	GoalID     string  `json:"goal_id,omitempty"`
	Rationale  string  `json:"rationale"`
	Confidence float64 `json:"confidence"`
}

// CognitiveMap is the orientation summary for a fresh session.
type CognitiveMap struct {
	Intent            string                     `json:"intent"`
	Constraints       []string                   `json:"constraints,omitempty"`
	StatusCounts      map[manifold.GoalStatus]int `json:"status_counts"`
	ReadyGoals        []GraphNode                `json:"ready_goals,omitempty"`
	CompletionPct     float64                    `json:"completion_pct"`
	CriticalPathCost  float64                    `json:"critical_path_cost"`
	RecentHandovers   []manifold.HandoverEntry   `json:"recent_handovers,omitempty"`
	Version           int                        `json:"version"`
	Degraded          bool                       `json:"degraded"`
}

// ReliabilityReport summarizes failure history across the graph.
type ReliabilityReport struct {
	Score        float64            `json:"score"`
	TotalGoals   int                `json:"total_goals"`
	FailedGoals  int                `json:"failed_goals"`
	BlockedGoals int                `json:"blocked_goals"`
	RetryCounts  map[string]int     `json:"retry_counts,omitempty"`
	Failures     []ReliabilityEntry `json:"failures,omitempty"`
}

// ReliabilityEntry is one goal's failure record.
type ReliabilityEntry struct {
	GoalID      string `json:"goal_id"`
	Description string `json:"description"`
	Reason      string `json:"reason,omitempty"`
	Retries     int    `json:"retries"`
}

// GovernanceStatus is the policy surface with pending work.
type GovernanceStatus struct {
	Policy      manifold.GovernancePolicy `json:"policy"`
	Pending     *manifold.Proposal        `json:"pending_proposal,omitempty"`
	HistorySize int                       `json:"history_size"`
}

// WorldModel is the external surface the project is known to touch.
type WorldModel struct {
	InfrastructureMap map[string]string   `json:"infrastructure_map,omitempty"`
	AllowedEndpoints  map[string][]string `json:"allowed_endpoints,omitempty"`
	AllowedPorts      []int               `json:"allowed_ports,omitempty"`
	Languages         []string            `json:"languages,omitempty"`
	Frameworks        []string            `json:"frameworks,omitempty"`
	TargetPlatform    string              `json:"target_platform,omitempty"`
	Sensitivity       float64             `json:"sensitivity"`
}
