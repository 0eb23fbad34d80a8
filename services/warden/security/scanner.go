// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package security scans content on the write path for threat patterns.
// The pattern battery is data-driven YAML compiled at construction so
// deployments can extend it without code changes.
package security

import (
	_ "embed"
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed patterns.yaml
var defaultRules []byte

// Verdict classifies scan results by risk.
type Verdict string

// Scan verdicts.
const (
	VerdictSafe    Verdict = "safe"
	VerdictFlagged Verdict = "flagged"
	VerdictBlocked Verdict = "blocked"
)

// Config tunes the verdict thresholds.
type Config struct {
	// WarnThreshold is the risk score at which content is flagged.
	WarnThreshold float64 `yaml:"warn_threshold"`
	// BlockThreshold is the risk score at which content is blocked.
	BlockThreshold float64 `yaml:"block_threshold"`
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{
		WarnThreshold:  0.3,
		BlockThreshold: 0.8,
	}
}

// =============================================================================
// Rule schema
// =============================================================================

type patternSpec struct {
	ID          string  `yaml:"id"`
	Description string  `yaml:"description"`
	Regex       string  `yaml:"regex"`
	Weight      float64 `yaml:"weight"`
}

type categorySpec struct {
	Name        string        `yaml:"name"`
	Description string        `yaml:"description"`
	Patterns    []patternSpec `yaml:"patterns"`
}

type ruleSet struct {
	Version    int            `yaml:"version"`
	Categories []categorySpec `yaml:"categories"`
}

type compiledPattern struct {
	id          string
	category    string
	description string
	weight      float64
	re          *regexp.Regexp
}

// =============================================================================
// Scanner
// =============================================================================

// Threat is one pattern hit in scanned content.
type Threat struct {
	Category    string  `json:"category"`
	PatternID   string  `json:"pattern"`
	Description string  `json:"description"`
	Severity    string  `json:"severity"`
	Line        int     `json:"line"`
	Weight      float64 `json:"-"`
}

// Report is the outcome of a scan. Safe means zero hits; risk alone never
// makes content safe.
type Report struct {
	Safe      bool     `json:"is_safe"`
	Verdict   Verdict  `json:"verdict"`
	RiskScore float64  `json:"risk_score"`
	Threats   []Threat `json:"threats,omitempty"`
}

// Scanner matches content against the compiled pattern battery.
// It is safe for concurrent use.
type Scanner struct {
	cfg      Config
	patterns []compiledPattern
}

// New builds a scanner from the embedded default rules.
func New(cfg Config) (*Scanner, error) {
	return NewFromRules(defaultRules, cfg)
}

// NewFromRules builds a scanner from a YAML rule document.
func NewFromRules(raw []byte, cfg Config) (*Scanner, error) {
	if cfg.WarnThreshold <= 0 {
		cfg.WarnThreshold = DefaultConfig().WarnThreshold
	}
	if cfg.BlockThreshold <= 0 {
		cfg.BlockThreshold = DefaultConfig().BlockThreshold
	}
	if cfg.BlockThreshold < cfg.WarnThreshold {
		return nil, fmt.Errorf("block threshold %.2f below warn threshold %.2f",
			cfg.BlockThreshold, cfg.WarnThreshold)
	}

	var rules ruleSet
	if err := yaml.Unmarshal(raw, &rules); err != nil {
		return nil, fmt.Errorf("parse rules: %w", err)
	}
	s := &Scanner{cfg: cfg}
	for _, cat := range rules.Categories {
		for _, p := range cat.Patterns {
			re, err := regexp.Compile(p.Regex)
			if err != nil {
				return nil, fmt.Errorf("pattern %s: %w", p.ID, err)
			}
			s.patterns = append(s.patterns, compiledPattern{
				id:          p.ID,
				category:    cat.Name,
				description: p.Description,
				weight:      p.Weight,
				re:          re,
			})
		}
	}
	if len(s.patterns) == 0 {
		return nil, fmt.Errorf("rule set contains no patterns")
	}
	return s, nil
}

// loopback addresses are not treated as hardcoded infrastructure.
var benignAddresses = map[string]struct{}{
	"127.0.0.1": {},
	"0.0.0.0":   {},
	"localhost": {},
}

// Scan matches every pattern against every line of content. The risk score
// is the capped sum of hit weights; the verdict follows the thresholds. Any
// hit flags the content even when its weight is below the warn threshold,
// so a safe verdict always means zero hits.
func (s *Scanner) Scan(content string) Report {
	rep := Report{Verdict: VerdictSafe}
	lines := strings.Split(content, "\n")
	for _, p := range s.patterns {
		for i, line := range lines {
			match := p.re.FindString(line)
			if match == "" {
				continue
			}
			if p.id == "hardcoded-ip" {
				if _, benign := benignAddresses[match]; benign {
					continue
				}
			}
			rep.Threats = append(rep.Threats, Threat{
				Category:    p.category,
				PatternID:   p.id,
				Description: p.description,
				Severity:    severityFor(p.weight),
				Line:        i + 1,
				Weight:      p.weight,
			})
			rep.RiskScore += p.weight
			break // one hit per pattern is enough signal
		}
	}
	if rep.RiskScore > 1.0 {
		rep.RiskScore = 1.0
	}
	rep.Safe = len(rep.Threats) == 0
	switch {
	case rep.RiskScore >= s.cfg.BlockThreshold:
		rep.Verdict = VerdictBlocked
	case rep.RiskScore >= s.cfg.WarnThreshold || !rep.Safe:
		rep.Verdict = VerdictFlagged
	}
	return rep
}

func severityFor(weight float64) string {
	switch {
	case weight >= 0.8:
		return "critical"
	case weight >= 0.5:
		return "high"
	case weight >= 0.3:
		return "medium"
	}
	return "low"
}

// PatternCount returns the number of compiled patterns, for status surfaces.
func (s *Scanner) PatternCount() int {
	return len(s.patterns)
}
