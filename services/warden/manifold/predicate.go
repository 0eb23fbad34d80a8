// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package manifold

import (
	"fmt"
	"regexp"
	"strings"
)

// =============================================================================
// Success criteria
// =============================================================================

// CriterionKind names a success criterion variant.
type CriterionKind string

// Criterion variants. The set is closed; unknown kinds are rejected.
const (
	CriterionFileExists      CriterionKind = "file_exists"
	CriterionDirectoryExists CriterionKind = "directory_exists"
	CriterionTestsPassing    CriterionKind = "tests_passing"
	CriterionAPIAvailable    CriterionKind = "api_available"
	CriterionCommandSucceeds CriterionKind = "command_succeeds"
	CriterionManual          CriterionKind = "manual"
	CriterionAlwaysTrue      CriterionKind = "always_true"
)

// Criterion describes one checkable condition for goal completion. Which
// fields are meaningful depends on Kind.
type Criterion struct {
	Kind        CriterionKind `json:"type"`
	Path        string        `json:"path,omitempty"`
	Suite       string        `json:"suite,omitempty"`
	MinCoverage float64       `json:"min_coverage,omitempty"`
	Endpoint    string        `json:"endpoint,omitempty"`
	Method      string        `json:"method,omitempty"`
	Command     string        `json:"command,omitempty"`
	Description string        `json:"description,omitempty"`
}

// ManualCriterion returns a human-verified criterion.
func ManualCriterion(description string) Criterion {
	return Criterion{Kind: CriterionManual, Description: description}
}

// TestsCriterion returns a tests_passing criterion for a suite.
func TestsCriterion(suite string, minCoverage float64) Criterion {
	return Criterion{Kind: CriterionTestsPassing, Suite: suite, MinCoverage: minCoverage}
}

// Validate rejects unknown kinds and missing required fields.
func (c Criterion) Validate() error {
	switch c.Kind {
	case CriterionFileExists, CriterionDirectoryExists:
		if c.Path == "" {
			return fmt.Errorf("%w: %s requires path", ErrMalformedCriterion, c.Kind)
		}
	case CriterionTestsPassing:
		if c.MinCoverage < 0 || c.MinCoverage > 100 {
			return fmt.Errorf("%w: min_coverage %.1f outside [0,100]", ErrMalformedCriterion, c.MinCoverage)
		}
	case CriterionAPIAvailable:
		if c.Endpoint == "" {
			return fmt.Errorf("%w: api_available requires endpoint", ErrMalformedCriterion)
		}
	case CriterionCommandSucceeds:
		if c.Command == "" {
			return fmt.Errorf("%w: command_succeeds requires command", ErrMalformedCriterion)
		}
	case CriterionManual:
		if c.Description == "" {
			return fmt.Errorf("%w: manual requires description", ErrMalformedCriterion)
		}
	case CriterionAlwaysTrue:
	default:
		return fmt.Errorf("%w: unknown criterion kind %q", ErrMalformedCriterion, c.Kind)
	}
	return nil
}

// String renders the criterion for enforcement rule listings.
func (c Criterion) String() string {
	switch c.Kind {
	case CriterionFileExists:
		return fmt.Sprintf("file exists: %s", c.Path)
	case CriterionDirectoryExists:
		return fmt.Sprintf("directory exists: %s", c.Path)
	case CriterionTestsPassing:
		if c.Suite != "" {
			return fmt.Sprintf("tests passing: %s (min coverage %.0f%%)", c.Suite, c.MinCoverage)
		}
		return fmt.Sprintf("tests passing (min coverage %.0f%%)", c.MinCoverage)
	case CriterionAPIAvailable:
		return fmt.Sprintf("api available: %s %s", c.Method, c.Endpoint)
	case CriterionCommandSucceeds:
		return fmt.Sprintf("command succeeds: %s", c.Command)
	case CriterionManual:
		return fmt.Sprintf("manual: %s", c.Description)
	case CriterionAlwaysTrue:
		return "always true"
	}
	return string(c.Kind)
}

// =============================================================================
// Predicates
// =============================================================================

// PredicateKind names a predicate variant.
type PredicateKind string

// Predicate variants. The set is closed; unknown kinds fail evaluation.
const (
	PredicateAlwaysTrue        PredicateKind = "always_true"
	PredicateAlwaysFalse       PredicateKind = "always_false"
	PredicateTextNotMatches    PredicateKind = "text_not_matches"
	PredicateTextMatches       PredicateKind = "text_matches"
	PredicateMaxActiveGoals    PredicateKind = "max_active_goals"
	PredicateCompletionAtLeast PredicateKind = "completion_at_least"
	PredicateAll               PredicateKind = "all"
	PredicateAny               PredicateKind = "any"
	PredicateNot               PredicateKind = "not"
)

// PredicateInput is the evaluation context for a predicate. CandidateText is
// empty when validating state that is not tied to a proposed action.
type PredicateInput struct {
	CandidateText  string
	ActiveGoals    int
	CompletionPct  float64
	TotalGoals     int
	CompletedGoals int
}

// Predicate is a condition over manifold state and candidate actions.
// Composite kinds use All, Any, or Not; leaf kinds use the scalar fields.
type Predicate struct {
	Kind      PredicateKind `json:"type"`
	Pattern   string        `json:"pattern,omitempty"`
	Threshold float64       `json:"threshold,omitempty"`
	All       []Predicate   `json:"all,omitempty"`
	Any       []Predicate   `json:"any,omitempty"`
	Not       *Predicate    `json:"not,omitempty"`
}

// TextGuard returns a predicate that fails when candidate text matches the
// given pattern.
func TextGuard(pattern string) Predicate {
	return Predicate{Kind: PredicateTextNotMatches, Pattern: pattern}
}

// Validate rejects unknown kinds, bad regexes, and empty composites.
func (p Predicate) Validate() error {
	switch p.Kind {
	case PredicateAlwaysTrue, PredicateAlwaysFalse:
	case PredicateTextNotMatches, PredicateTextMatches:
		if p.Pattern == "" {
			return fmt.Errorf("%w: %s requires pattern", ErrMalformedPredicate, p.Kind)
		}
		if _, err := regexp.Compile(p.Pattern); err != nil {
			return fmt.Errorf("%w: bad pattern %q: %v", ErrMalformedPredicate, p.Pattern, err)
		}
	case PredicateMaxActiveGoals, PredicateCompletionAtLeast:
		if p.Threshold < 0 {
			return fmt.Errorf("%w: %s requires non-negative threshold", ErrMalformedPredicate, p.Kind)
		}
	case PredicateAll:
		if len(p.All) == 0 {
			return fmt.Errorf("%w: all requires children", ErrMalformedPredicate)
		}
		for _, child := range p.All {
			if err := child.Validate(); err != nil {
				return err
			}
		}
	case PredicateAny:
		if len(p.Any) == 0 {
			return fmt.Errorf("%w: any requires children", ErrMalformedPredicate)
		}
		for _, child := range p.Any {
			if err := child.Validate(); err != nil {
				return err
			}
		}
	case PredicateNot:
		if p.Not == nil {
			return fmt.Errorf("%w: not requires child", ErrMalformedPredicate)
		}
		return p.Not.Validate()
	default:
		return fmt.Errorf("%w: unknown predicate kind %q", ErrMalformedPredicate, p.Kind)
	}
	return nil
}

// Evaluate returns whether the predicate holds for the given input.
func (p Predicate) Evaluate(in PredicateInput) (bool, error) {
	switch p.Kind {
	case PredicateAlwaysTrue:
		return true, nil
	case PredicateAlwaysFalse:
		return false, nil
	case PredicateTextMatches:
		re, err := regexp.Compile(p.Pattern)
		if err != nil {
			return false, fmt.Errorf("%w: %v", ErrMalformedPredicate, err)
		}
		return re.MatchString(strings.ToLower(in.CandidateText)), nil
	case PredicateTextNotMatches:
		re, err := regexp.Compile(p.Pattern)
		if err != nil {
			return false, fmt.Errorf("%w: %v", ErrMalformedPredicate, err)
		}
		return !re.MatchString(strings.ToLower(in.CandidateText)), nil
	case PredicateMaxActiveGoals:
		return float64(in.ActiveGoals) <= p.Threshold, nil
	case PredicateCompletionAtLeast:
		return in.CompletionPct >= p.Threshold, nil
	case PredicateAll:
		for _, child := range p.All {
			ok, err := child.Evaluate(in)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	case PredicateAny:
		for _, child := range p.Any {
			ok, err := child.Evaluate(in)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	case PredicateNot:
		ok, err := p.Not.Evaluate(in)
		return !ok, err
	}
	return false, fmt.Errorf("%w: unknown predicate kind %q", ErrMalformedPredicate, p.Kind)
}

// String renders the predicate for enforcement rule listings.
func (p Predicate) String() string {
	switch p.Kind {
	case PredicateTextNotMatches:
		return fmt.Sprintf("action must not match /%s/", p.Pattern)
	case PredicateTextMatches:
		return fmt.Sprintf("action must match /%s/", p.Pattern)
	case PredicateMaxActiveGoals:
		return fmt.Sprintf("at most %.0f active goals", p.Threshold)
	case PredicateCompletionAtLeast:
		return fmt.Sprintf("completion at least %.0f%%", p.Threshold)
	case PredicateAll:
		parts := make([]string, len(p.All))
		for i, c := range p.All {
			parts[i] = c.String()
		}
		return "all of: " + strings.Join(parts, "; ")
	case PredicateAny:
		parts := make([]string, len(p.Any))
		for i, c := range p.Any {
			parts[i] = c.String()
		}
		return "any of: " + strings.Join(parts, "; ")
	case PredicateNot:
		return "not: " + p.Not.String()
	}
	return string(p.Kind)
}
