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

// ToolParam represents a parameter in a tool definition.
type ToolParam struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	Description string   `json:"description"`
	Required    bool     `json:"required"`
	Default     string   `json:"default,omitempty"`
	Enum        []string `json:"enum,omitempty"`
}

// ToolDefinition represents a tool available to the agent.
type ToolDefinition struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Category    string      `json:"category"`
	Parameters  []ToolParam `json:"parameters"`
	Returns     string      `json:"returns"`
}

// ToolRegistry provides tool definitions for agent discovery.
//
// Thread Safety:
//
//	ToolRegistry is immutable after initialization and safe for concurrent use.
type ToolRegistry struct {
	tools []ToolDefinition
}

// NewToolRegistry creates a registry with all available tools.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{
		tools: allToolDefinitions(),
	}
}

// GetTools returns all available tool definitions.
func (r *ToolRegistry) GetTools() []ToolDefinition {
	return r.tools
}

// GetToolsByCategory returns tools filtered by category.
func (r *ToolRegistry) GetToolsByCategory(category string) []ToolDefinition {
	var result []ToolDefinition
	for _, t := range r.tools {
		if t.Category == category {
			result = append(result, t)
		}
	}
	return result
}

// allToolDefinitions returns all 17 tool definitions.
func allToolDefinitions() []ToolDefinition {
	return []ToolDefinition{
		// ==================== LIFECYCLE TOOLS ====================
		{
			Name:        "init_project",
			Description: "Create the project manifold from a root intent. Records the intent description, hard constraints, frameworks, and the known infrastructure map as durable ground truth.",
			Category:    "lifecycle",
			Parameters: []ToolParam{
				{Name: "description", Type: "string", Description: "What the project is for", Required: true},
				{Name: "constraints", Type: "array", Description: "Hard requirements that must always hold", Required: false},
				{Name: "expected_outcomes", Type: "array", Description: "What done looks like for the project", Required: false},
				{Name: "target_platform", Type: "string", Description: "Deployment target, e.g. linux/amd64", Required: false},
				{Name: "languages", Type: "array", Description: "Languages the project commits to", Required: false},
				{Name: "frameworks", Type: "array", Description: "Frameworks the project commits to", Required: false},
				{Name: "infrastructure_map", Type: "object", Description: "Component name to endpoint map", Required: false},
				{Name: "sensitivity", Type: "number", Description: "How strictly to police drift, 0-1", Required: false, Default: "0.5"},
				{Name: "force", Type: "boolean", Description: "Replace an existing manifold", Required: false, Default: "false"},
			},
			Returns: "Manifold summary with version and integrity hash",
		},

		// ==================== ALIGNMENT TOOLS ====================
		{
			Name:        "validate_action",
			Description: "Score a proposed action against the root intent, active goals, and invariants before doing it. Destructive actions and critical invariant violations are never allowed.",
			Category:    "alignment",
			Parameters: []ToolParam{
				{Name: "action_type", Type: "string", Description: "Kind of action: edit, delete, refactor, command", Required: false},
				{Name: "description", Type: "string", Description: "What the agent intends to do", Required: true},
			},
			Returns: "Allowed flag, score 0-100, confidence 0-1, and violations",
		},
		{
			Name:        "get_alignment",
			Description: "Report how well the current project state serves the root intent, weighted by each goal's value to the root.",
			Category:    "alignment",
			Parameters:  []ToolParam{},
			Returns:     "Score 0-100, confidence 0-1, and outstanding violations",
		},
		{
			Name:        "safe_write",
			Description: "Scan content for credentials, injection risks, and hygiene problems before it is written to disk. Returns a verdict; the write stays with the caller.",
			Category:    "alignment",
			Parameters: []ToolParam{
				{Name: "path", Type: "string", Description: "Destination path, used for logging only", Required: false},
				{Name: "content", Type: "string", Description: "Content to scan", Required: true},
			},
			Returns: "is_safe flag, verdict (safe/flagged/blocked), risk score, and threats",
		},

		// ==================== ORIENTATION TOOLS ====================
		{
			Name:        "get_cognitive_map",
			Description: "Orient a fresh session: the intent, goal counts by status, ready goals, completion percentage, and recent handover notes.",
			Category:    "orientation",
			Parameters:  []ToolParam{},
			Returns:     "Cognitive map summary",
		},
		{
			Name:        "propose_strategy",
			Description: "Recommend next steps from graph state: ready goals by value, blocked goals to clear, failures to investigate, and pending governance work.",
			Category:    "orientation",
			Parameters:  []ToolParam{},
			Returns:     "Ranked list of strategies with confidence",
		},
		{
			Name:        "record_handover",
			Description: "Append a note to the append-only handover log so the next session does not repeat this one's mistakes.",
			Category:    "orientation",
			Parameters: []ToolParam{
				{Name: "content", Type: "string", Description: "The note", Required: true},
				{Name: "goal_id", Type: "string", Description: "Related goal", Required: false},
				{Name: "agent_id", Type: "string", Description: "Authoring agent", Required: false},
				{Name: "category", Type: "string", Description: "Note category: warning, progress, decision", Required: false},
				{Name: "warnings", Type: "array", Description: "Pitfalls the next session should avoid", Required: false},
			},
			Returns: "Manifold summary",
		},
		{
			Name:        "get_world_model",
			Description: "The external surfaces the project is known to touch: infrastructure map, allowed endpoints and ports, frameworks.",
			Category:    "orientation",
			Parameters:  []ToolParam{},
			Returns:     "World model",
		},

		// ==================== GOAL TOOLS ====================
		{
			Name:        "decompose_goal",
			Description: "Split a goal into child goals. Children inherit the parent's unmet dependencies and share its value; the parent retires when all children finish.",
			Category:    "goals",
			Parameters: []ToolParam{
				{Name: "goal_id", Type: "string", Description: "The goal to decompose", Required: true},
				{Name: "children", Type: "array", Description: "Child goal specs with description and optional value_to_root, dependencies, complexity_mean", Required: true},
			},
			Returns: "Manifold summary and the new child ids",
		},
		{
			Name:        "get_goal_graph",
			Description: "The goal dependency graph with node layout hints for rendering.",
			Category:    "goals",
			Parameters:  []ToolParam{},
			Returns:     "Nodes with positions and dependency edges",
		},

		// ==================== ENFORCEMENT TOOLS ====================
		{
			Name:        "get_enforcement_rules",
			Description: "The active invariants, intent constraints, and governance rules rendered as plain rule lines an agent can follow.",
			Category:    "enforcement",
			Parameters:  []ToolParam{},
			Returns:     "List of rule strings",
		},
		{
			Name:        "get_reliability",
			Description: "Failure history across the graph: failed and blocked goals, retry counts, and an overall reliability score.",
			Category:    "enforcement",
			Parameters:  []ToolParam{},
			Returns:     "Reliability report",
		},
		{
			Name:        "get_quality_status",
			Description: "The latest recorded build and test health from CI.",
			Category:    "enforcement",
			Parameters:  []ToolParam{},
			Returns:     "Quality report and whether one has been recorded",
		},

		// ==================== GOVERNANCE TOOLS ====================
		{
			Name:        "governance_status",
			Description: "The governance policy, the pending proposal if any, and the resolution history size.",
			Category:    "governance",
			Parameters:  []ToolParam{},
			Returns:     "Governance status",
		},
		{
			Name:        "governance_seed",
			Description: "Derive a policy proposal from the root intent and the observed workspace dependencies. Preview by default; stage it with apply.",
			Category:    "governance",
			Parameters: []ToolParam{
				{Name: "apply", Type: "boolean", Description: "Stage the proposal instead of previewing", Required: false, Default: "false"},
				{Name: "lock_required", Type: "boolean", Description: "On approval, make the allowed sets required too", Required: false, Default: "false"},
				{Name: "observed_dependencies", Type: "array", Description: "Dependencies observed in the workspace, prefixed by ecosystem (npm:, pip:, cargo:)", Required: false},
			},
			Returns: "The proposal and whether it was staged",
		},
		{
			Name:        "governance_approve",
			Description: "Apply the pending governance proposal to the policy. A no-op when nothing is pending.",
			Category:    "governance",
			Parameters: []ToolParam{
				{Name: "note", Type: "string", Description: "Reviewer note for the history", Required: false},
			},
			Returns: "Governance status after the decision",
		},
		{
			Name:        "governance_reject",
			Description: "Discard the pending governance proposal. A no-op when nothing is pending.",
			Category:    "governance",
			Parameters: []ToolParam{
				{Name: "note", Type: "string", Description: "Reviewer note for the history", Required: false},
			},
			Returns: "Governance status after the decision",
		},
	}
}
