// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command warden runs the governance service for autonomous coding agents.
//
// Usage:
//
//	warden serve
//	warden serve --port 9090
//	warden init --description "Build a REST API for user management"
//
// Example requests:
//
//	# Health check
//	curl http://localhost:8080/v1/warden/health
//
//	# List agent tools
//	curl http://localhost:8080/v1/warden/tools | jq
//
//	# Validate a proposed action
//	curl -X POST http://localhost:8080/v1/warden/tools/call \
//	  -H "Content-Type: application/json" \
//	  -d '{"name": "validate_action", "arguments": {"description": "add pagination to user list"}}'
package main

import (
	"log"

	"github.com/spf13/cobra"
)

var config Config

var rootCmd = &cobra.Command{
	Use:   "warden",
	Short: "Governance service for autonomous coding agents",
	Long: "Warden keeps a durable goal manifold as project ground truth, scores\n" +
		"proposed actions against the root intent, scans the write path for\n" +
		"threats, and gates dependency changes behind governance proposals.",
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error executing command: %v", err)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "Path to the configuration file")
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		cfg, err := LoadConfig(configPath)
		if err != nil {
			log.Fatalf("Error loading %s: %v", configPath, err)
		}
		config = cfg
	}
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
}

var configPath string

// Version is set at build time via -ldflags.
var Version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the warden version",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("warden %s\n", Version)
	},
}
