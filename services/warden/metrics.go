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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	toolCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "warden",
		Name:      "tool_calls_total",
		Help:      "Tool invocations by tool name.",
	}, []string{"tool"})

	toolCallErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "warden",
		Name:      "tool_call_errors_total",
		Help:      "Failed tool invocations by tool name.",
	}, []string{"tool"})

	unsafeWrites = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "warden",
		Name:      "unsafe_writes_total",
		Help:      "Write attempts that tripped the threat scanner.",
	})

	actionsBlocked = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "warden",
		Name:      "actions_blocked_total",
		Help:      "Actions rejected by alignment scoring.",
	})
)
