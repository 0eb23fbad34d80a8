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
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/AleutianAI/AleutianWarden/pkg/validation"
	"github.com/AleutianAI/AleutianWarden/services/warden/manifold"
	"github.com/AleutianAI/AleutianWarden/services/warden/store"
)

// Handlers holds the HTTP handlers for the warden service.
type Handlers struct {
	svc      *Service
	registry *ToolRegistry
}

// NewHandlers creates handlers for the service.
func NewHandlers(svc *Service) *Handlers {
	return &Handlers{
		svc:      svc,
		registry: NewToolRegistry(),
	}
}

func getOrCreateRequestID(c *gin.Context) string {
	if id := c.GetHeader("X-Request-ID"); id != "" {
		return id
	}
	return uuid.NewString()
}

// decodeArgs round-trips loosely typed tool arguments into a request
// struct so both surfaces share validation.
func decodeArgs(args map[string]any, dst any) error {
	raw, err := json.Marshal(args)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dst)
}

// errorStatus maps domain errors onto HTTP status codes.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest, "INVALID_INPUT"
	case errors.Is(err, store.ErrNotInitialized):
		return http.StatusConflict, "NOT_INITIALIZED"
	case errors.Is(err, ErrAlreadyInitialized):
		return http.StatusConflict, "ALREADY_INITIALIZED"
	case errors.Is(err, store.ErrDegraded):
		return http.StatusServiceUnavailable, "DEGRADED"
	case errors.Is(err, store.ErrVersionNotFound):
		return http.StatusNotFound, "VERSION_NOT_FOUND"
	case errors.Is(err, manifold.ErrGoalNotFound):
		return http.StatusNotFound, "GOAL_NOT_FOUND"
	case errors.Is(err, manifold.ErrCyclicDependency):
		return http.StatusUnprocessableEntity, "CYCLIC_DEPENDENCY"
	case errors.Is(err, manifold.ErrUnknownDependency):
		return http.StatusUnprocessableEntity, "UNKNOWN_DEPENDENCY"
	case errors.Is(err, manifold.ErrInvalidTransition):
		return http.StatusUnprocessableEntity, "INVALID_TRANSITION"
	case errors.Is(err, manifold.ErrAlreadyTerminal):
		return http.StatusUnprocessableEntity, "ALREADY_TERMINAL"
	case errors.Is(err, manifold.ErrProposalPending):
		return http.StatusConflict, "PROPOSAL_PENDING"
	case errors.Is(err, manifold.ErrIntegrityMismatch):
		return http.StatusServiceUnavailable, "INTEGRITY_MISMATCH"
	case errors.Is(err, manifold.ErrMalformedPredicate),
		errors.Is(err, manifold.ErrMalformedCriterion),
		errors.Is(err, manifold.ErrInvalidGoal),
		errors.Is(err, manifold.ErrAntiDependencyConflict),
		errors.Is(err, manifold.ErrDuplicateGoal):
		return http.StatusBadRequest, "INVALID_INPUT"
	}
	var invErr *manifold.InvariantError
	if errors.As(err, &invErr) {
		return http.StatusUnprocessableEntity, "INVARIANT_VIOLATED"
	}
	return http.StatusInternalServerError, "INTERNAL"
}

func respondErr(c *gin.Context, err error) {
	status, code := errorStatus(err)
	c.JSON(status, ErrorResponse{Error: err.Error(), Code: code})
}

// =============================================================================
// Tool surface
// =============================================================================

// HandleListTools returns the tool definitions for agent discovery.
func (h *Handlers) HandleListTools(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tools": h.registry.GetTools()})
}

// HandleToolCall dispatches a generic tool invocation to the matching
// service operation.
func (h *Handlers) HandleToolCall(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := h.svc.log.With("request_id", requestID, "handler", "HandleToolCall")

	var req ToolCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Code: "INVALID_REQUEST"})
		return
	}
	logger.Info("tool call", "tool", req.Name)
	toolCallsTotal.WithLabelValues(req.Name).Inc()

	result, err := h.dispatch(req)
	if err != nil {
		toolCallErrors.WithLabelValues(req.Name).Inc()
		logger.Warn("tool call failed", "tool", req.Name, "error", err)
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, ToolCallResponse{Tool: req.Name, Result: result})
}

func (h *Handlers) dispatch(req ToolCallRequest) (any, error) {
	switch req.Name {
	case "init_project":
		var r InitProjectRequest
		if err := decodeArgs(req.Arguments, &r); err != nil {
			return nil, err
		}
		if r.Description == "" {
			return nil, fmt.Errorf("%w: description is required", manifold.ErrInvalidGoal)
		}
		return h.svc.InitProject(r)

	case "validate_action":
		var r ValidateActionRequest
		if err := decodeArgs(req.Arguments, &r); err != nil {
			return nil, err
		}
		if r.Description == "" {
			return nil, fmt.Errorf("%w: description is required", manifold.ErrInvalidGoal)
		}
		return h.svc.ValidateAction(r)

	case "get_alignment":
		return h.svc.GetAlignment()

	case "safe_write":
		var r SafeWriteRequest
		if err := decodeArgs(req.Arguments, &r); err != nil {
			return nil, err
		}
		return h.svc.SafeWrite(r)

	case "propose_strategy":
		return h.svc.ProposeStrategy()

	case "record_handover":
		var r RecordHandoverRequest
		if err := decodeArgs(req.Arguments, &r); err != nil {
			return nil, err
		}
		return h.svc.RecordHandover(r)

	case "get_cognitive_map":
		return h.svc.CognitiveMap()

	case "get_enforcement_rules":
		rules, err := h.svc.EnforcementRules()
		if err != nil {
			return nil, err
		}
		return gin.H{"rules": rules}, nil

	case "get_reliability":
		return h.svc.Reliability()

	case "governance_status":
		return h.svc.GovernanceStatus()

	case "get_world_model":
		return h.svc.WorldModel()

	case "get_quality_status":
		report, found, err := h.svc.QualityStatus()
		if err != nil {
			return nil, err
		}
		return gin.H{"report": report, "recorded": found}, nil

	case "decompose_goal":
		var r DecomposeGoalRequest
		if err := decodeArgs(req.Arguments, &r); err != nil {
			return nil, err
		}
		summary, ids, err := h.svc.DecomposeGoal(r)
		if err != nil {
			return nil, err
		}
		return gin.H{"manifold": summary, "child_ids": ids}, nil

	case "get_goal_graph":
		return h.svc.GoalGraph()

	case "governance_approve":
		var r GovernanceDecisionRequest
		if err := decodeArgs(req.Arguments, &r); err != nil {
			return nil, err
		}
		return h.svc.GovernanceApprove(r.Note)

	case "governance_reject":
		var r GovernanceDecisionRequest
		if err := decodeArgs(req.Arguments, &r); err != nil {
			return nil, err
		}
		return h.svc.GovernanceReject(r.Note)

	case "governance_seed":
		var r GovernanceSeedRequest
		if err := decodeArgs(req.Arguments, &r); err != nil {
			return nil, err
		}
		proposal, err := h.svc.GovernanceSeed(r)
		if err != nil {
			return nil, err
		}
		return gin.H{"proposal": proposal, "applied": r.Apply}, nil
	}
	return nil, fmt.Errorf("unknown tool: %s", req.Name)
}

// =============================================================================
// REST surface
// =============================================================================

// HandleInitProject bootstraps the manifold.
func (h *Handlers) HandleInitProject(c *gin.Context) {
	var req InitProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "INVALID_REQUEST"})
		return
	}
	summary, err := h.svc.InitProject(req)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, summary)
}

// HandleAddGoal inserts a goal.
func (h *Handlers) HandleAddGoal(c *gin.Context) {
	var req AddGoalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "INVALID_REQUEST"})
		return
	}
	summary, goal, err := h.svc.AddGoal(req)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"manifold": summary, "goal": goal})
}

// HandleUpdateGoalStatus transitions a goal.
func (h *Handlers) HandleUpdateGoalStatus(c *gin.Context) {
	var req UpdateGoalStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "INVALID_REQUEST"})
		return
	}
	summary, err := h.svc.UpdateGoalStatus(c.Param("id"), req)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// HandleAddInvariant registers an invariant.
func (h *Handlers) HandleAddInvariant(c *gin.Context) {
	var req AddInvariantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "INVALID_REQUEST"})
		return
	}
	summary, err := h.svc.AddInvariant(req)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, summary)
}

// HandleRecordQuality records CI health.
func (h *Handlers) HandleRecordQuality(c *gin.Context) {
	var req QualityReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "INVALID_REQUEST"})
		return
	}
	if err := h.svc.RecordQuality(req); err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusNoContent, nil)
}

// HandleAgentMessage appends to the cross-agent ledger.
func (h *Handlers) HandleAgentMessage(c *gin.Context) {
	var msg store.AgentMessage
	if err := c.ShouldBindJSON(&msg); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "INVALID_REQUEST"})
		return
	}
	if msg.AgentID != "" {
		if err := validation.ValidateIdentifier(msg.AgentID); err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "INVALID_INPUT"})
			return
		}
	}
	inserted, err := h.svc.Store().AppendAgentMessage(msg)
	if err != nil {
		respondErr(c, err)
		return
	}
	status := http.StatusCreated
	if !inserted {
		status = http.StatusOK // duplicate delivery, already stored
	}
	c.JSON(status, gin.H{"inserted": inserted})
}

// HandleExportHandovers streams the serialized handover log.
func (h *Handlers) HandleExportHandovers(c *gin.Context) {
	data, err := h.svc.ExportHandovers()
	if err != nil {
		respondErr(c, err)
		return
	}
	c.Data(http.StatusOK, "application/json", data)
}

// HandleImportHandovers merges a prior export into the log. Idempotent:
// re-posting the same export reports zero imported entries.
func (h *Handlers) HandleImportHandovers(c *gin.Context) {
	data, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "INVALID_REQUEST"})
		return
	}
	added, err := h.svc.ImportHandovers(data)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"imported": added})
}

// HandleListAgentMessages returns recent ledger entries.
func (h *Handlers) HandleListAgentMessages(c *gin.Context) {
	limit := 50
	if v := c.Query("limit"); v != "" {
		if _, err := fmt.Sscanf(v, "%d", &limit); err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid limit", Code: "INVALID_REQUEST"})
			return
		}
	}
	msgs, err := h.svc.Store().AgentMessages(limit)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// HandleVersion returns a historical manifold snapshot.
func (h *Handlers) HandleVersion(c *gin.Context) {
	var n int
	if _, err := fmt.Sscanf(c.Param("n"), "%d", &n); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid version", Code: "INVALID_REQUEST"})
		return
	}
	m, err := h.svc.Store().Version(n)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

// HandleHealth is the liveness probe.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// HandleReady is the readiness probe. Degraded mode is reported but still
// ready; read surfaces keep working.
func (h *Handlers) HandleReady(c *gin.Context) {
	initialized, err := h.svc.Store().Initialized()
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "storage error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":      "ready",
		"initialized": initialized,
		"degraded":    h.svc.Store().Degraded(),
	})
}
