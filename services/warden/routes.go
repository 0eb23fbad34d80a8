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
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers all warden routes with the router.
//
// Description:
//
//	Registers all /v1/warden/* endpoints with the given Gin router group.
//	The router group should already have any required middleware applied.
//
// Inputs:
//
//	rg - Gin router group (typically /v1)
//	handlers - The handlers instance
//
// Endpoints:
//
//	GET  /v1/warden/tools - List tool definitions
//	POST /v1/warden/tools/call - Invoke a tool by name
//	POST /v1/warden/init - Initialize the project manifold
//	POST /v1/warden/goals - Add a goal
//	POST /v1/warden/goals/:id/status - Transition a goal
//	POST /v1/warden/invariants - Register an invariant
//	POST /v1/warden/quality - Record CI health
//	POST /v1/warden/messages - Append to the agent message ledger
//	GET  /v1/warden/messages - List recent agent messages
//	GET  /v1/warden/handovers/export - Export the handover log
//	POST /v1/warden/handovers/import - Merge a prior handover export
//	GET  /v1/warden/versions/:n - Fetch a historical manifold snapshot
//	GET  /v1/warden/health - Health check
//	GET  /v1/warden/ready - Readiness check
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	warden := rg.Group("/warden")
	{
		// Tool surface for agent clients
		warden.GET("/tools", handlers.HandleListTools)
		warden.POST("/tools/call", handlers.HandleToolCall)

		// Lifecycle
		warden.POST("/init", handlers.HandleInitProject)

		// Goals
		warden.POST("/goals", handlers.HandleAddGoal)
		warden.POST("/goals/:id/status", handlers.HandleUpdateGoalStatus)

		// Invariants and quality
		warden.POST("/invariants", handlers.HandleAddInvariant)
		warden.POST("/quality", handlers.HandleRecordQuality)

		// Agent message ledger
		warden.POST("/messages", handlers.HandleAgentMessage)
		warden.GET("/messages", handlers.HandleListAgentMessages)

		// Handover log transfer
		warden.GET("/handovers/export", handlers.HandleExportHandovers)
		warden.POST("/handovers/import", handlers.HandleImportHandovers)

		// History
		warden.GET("/versions/:n", handlers.HandleVersion)

		// Probes
		warden.GET("/health", handlers.HandleHealth)
		warden.GET("/ready", handlers.HandleReady)
	}
}
