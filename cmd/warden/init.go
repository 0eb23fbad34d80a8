// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianWarden/pkg/logging"
	"github.com/AleutianAI/AleutianWarden/services/warden"
	"github.com/AleutianAI/AleutianWarden/services/warden/store"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the project manifold without starting the server",
	Long: `Creates the manifold for a new project directly in the store. Useful for
pre-seeding a deployment before the first agent connects.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		description, _ := cmd.Flags().GetString("description")
		constraints, _ := cmd.Flags().GetStringSlice("constraint")
		frameworks, _ := cmd.Flags().GetStringSlice("framework")
		force, _ := cmd.Flags().GetBool("force")
		if description == "" {
			return fmt.Errorf("--description is required")
		}

		log, err := logging.New(logging.Config{
			Service: "warden",
			Level:   config.Logging.Level,
			LogDir:  config.Logging.Dir,
			JSON:    config.Logging.JSON,
			Quiet:   true,
		})
		if err != nil {
			return err
		}
		defer log.Close()

		storeCfg := store.DefaultBadgerConfig(config.Storage.Dir)
		if config.Storage.InMemory {
			return fmt.Errorf("init requires persistent storage, unset storage.in_memory")
		}
		st, err := store.Open(storeCfg, log)
		if err != nil {
			return err
		}
		defer st.Close()

		svc, err := warden.NewService(warden.DefaultServiceConfig(), st, log)
		if err != nil {
			return err
		}
		summary, err := svc.InitProject(warden.InitProjectRequest{
			Description: description,
			Constraints: constraints,
			Frameworks:  frameworks,
			Force:       force,
		})
		if err != nil {
			return err
		}
		fmt.Printf("manifold initialized: version=%d hash=%s\n", summary.Version, summary.IntegrityHash)
		return nil
	},
}

func init() {
	initCmd.Flags().String("description", "", "Project intent description")
	initCmd.Flags().StringSlice("constraint", nil, "Constraint the project must honor (repeatable)")
	initCmd.Flags().StringSlice("framework", nil, "Framework the project uses (repeatable)")
	initCmd.Flags().Bool("force", false, "Replace an existing manifold")
}
