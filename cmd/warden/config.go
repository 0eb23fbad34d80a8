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
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config is the full warden deployment configuration.
type Config struct {
	Server struct {
		Port  int  `yaml:"port" validate:"gte=1,lte=65535"`
		Debug bool `yaml:"debug"`
	} `yaml:"server"`

	Storage struct {
		Dir      string `yaml:"dir" validate:"required"`
		InMemory bool   `yaml:"in_memory"`
	} `yaml:"storage"`

	Logging struct {
		Level string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
		Dir   string `yaml:"dir"`
		JSON  bool   `yaml:"json"`
	} `yaml:"logging"`

	Warden struct {
		MinAlignmentScore float64 `yaml:"min_alignment_score" validate:"gte=0,lte=100"`
		WarnThreshold     float64 `yaml:"warn_threshold" validate:"gte=0,lte=1"`
		BlockThreshold    float64 `yaml:"block_threshold" validate:"gte=0,lte=1"`
	} `yaml:"warden"`
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() Config {
	var cfg Config
	cfg.Server.Port = 8080
	cfg.Storage.Dir = "~/.aleutian/warden"
	cfg.Logging.Level = "info"
	cfg.Warden.MinAlignmentScore = 40
	cfg.Warden.WarnThreshold = 0.3
	cfg.Warden.BlockThreshold = 0.8
	return cfg
}

// LoadConfig reads and validates the YAML configuration. A missing file is
// not an error; defaults apply.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return Config{}, err
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
