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
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/AleutianWarden/pkg/logging"
	"github.com/AleutianAI/AleutianWarden/services/warden"
	"github.com/AleutianAI/AleutianWarden/services/warden/alignment"
	"github.com/AleutianAI/AleutianWarden/services/warden/security"
	"github.com/AleutianAI/AleutianWarden/services/warden/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the warden HTTP service",
	RunE: func(cmd *cobra.Command, args []string) error {
		if port, _ := cmd.Flags().GetInt("port"); port > 0 {
			config.Server.Port = port
		}
		return runServe(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().Int("port", 0, "Override the configured listen port")
}

func runServe(parent context.Context) error {
	log, err := logging.New(logging.Config{
		Service: "warden",
		Level:   config.Logging.Level,
		LogDir:  config.Logging.Dir,
		JSON:    config.Logging.JSON,
	})
	if err != nil {
		return err
	}
	defer log.Close()

	storeCfg := store.DefaultBadgerConfig(config.Storage.Dir)
	if config.Storage.InMemory {
		storeCfg = store.InMemoryBadgerConfig()
	}
	st, err := store.Open(storeCfg, log)
	if err != nil {
		return err
	}
	defer st.Close()

	svcCfg := warden.DefaultServiceConfig()
	svcCfg.Alignment = alignment.Config{MinScore: config.Warden.MinAlignmentScore}
	svcCfg.Scanner = security.Config{
		WarnThreshold:  config.Warden.WarnThreshold,
		BlockThreshold: config.Warden.BlockThreshold,
	}
	svc, err := warden.NewService(svcCfg, st, log)
	if err != nil {
		return err
	}

	if config.Server.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	if config.Server.Debug {
		router.Use(gin.Logger())
	}
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	warden.RegisterRoutes(router.Group("/v1"), warden.NewHandlers(svc))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", config.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("warden listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
