// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package alignment scores how well proposed actions and current state serve
// the root intent. Scores are on a 0-100 scale with an explicit confidence;
// low confidence means "not enough signal", never "all clear".
package alignment

import (
	"regexp"
	"strings"

	"github.com/AleutianAI/AleutianWarden/services/warden/manifold"
)

// Config tunes the scoring thresholds.
type Config struct {
	// MinScore is the floor below which an action is not aligned.
	MinScore float64
	// DestructiveCap caps the score of actions matching a destructive
	// pattern, keeping them under MinScore regardless of keyword overlap.
	DestructiveCap float64
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{
		MinScore:       40,
		DestructiveCap: 10,
	}
}

// Engine evaluates actions and manifold state against the root intent.
// The zero value is not usable; construct with New.
type Engine struct {
	cfg         Config
	destructive []destructivePattern
}

type destructivePattern struct {
	re          *regexp.Regexp
	description string
}

// New returns an engine with the built-in destructive pattern table.
func New(cfg Config) *Engine {
	if cfg.MinScore <= 0 {
		cfg.MinScore = DefaultConfig().MinScore
	}
	if cfg.DestructiveCap <= 0 {
		cfg.DestructiveCap = DefaultConfig().DestructiveCap
	}
	return &Engine{cfg: cfg, destructive: compileDestructive()}
}

func compileDestructive() []destructivePattern {
	specs := []struct{ pattern, description string }{
		{`(?i)\b(delete|remove|rm|drop)\b.*\btests?\b`, "removes or deletes tests"},
		{`(?i)\b(disable|bypass|skip|comment out)\b.*\b(auth|authentication|validation|verification|security|checks?)\b`, "disables a safety or auth mechanism"},
		{`(?i)\bdrop\s+(table|database|schema)\b`, "drops database objects"},
		{`(?i)\brm\s+-rf?\b`, "recursive filesystem delete"},
		{`(?i)\bforce[- ]push\b`, "force push rewrites shared history"},
		{`(?i)\b(hardcode|hard-code|embed)\b.*\b(secret|password|credential|token|key)\b`, "embeds credentials in code"},
		{`(?i)\b(delete|remove|truncate)\b.*\b(log|audit|history)\b`, "destroys audit records"},
	}
	out := make([]destructivePattern, 0, len(specs))
	for _, s := range specs {
		out = append(out, destructivePattern{
			re:          regexp.MustCompile(s.pattern),
			description: s.description,
		})
	}
	return out
}

// =============================================================================
// Reports
// =============================================================================

// Report is the outcome of an alignment evaluation.
type Report struct {
	Score      float64              `json:"score"`
	Confidence float64              `json:"confidence"`
	Aligned    bool                 `json:"aligned"`
	Violations []manifold.Violation `json:"violations,omitempty"`
	Reasons    []string             `json:"reasons,omitempty"`
}

// =============================================================================
// Action scoring
// =============================================================================

// ScoreAction evaluates a proposed action description against the intent,
// active goals, and invariants. Destructive patterns cap the score under the
// minimum; critical invariant violations do the same.
func (e *Engine) ScoreAction(m *manifold.Manifold, action string) Report {
	rep := Report{}
	cand := tokenize(action)

	intentTexts := append([]string{m.RootIntent.Description}, m.RootIntent.Constraints...)
	intentTexts = append(intentTexts, m.RootIntent.ExpectedOutcomes...)
	intentVocab := vocabulary(intentTexts...)
	intentOverlap := overlap(cand, intentVocab)

	goalTerm, weight := 0.0, 0.0
	for _, g := range m.GoalDAG.Goals {
		if g.Status.IsTerminal() {
			continue
		}
		goalTerm += overlap(cand, vocabulary(g.Description)) * g.ValueToRoot
		weight += g.ValueToRoot
	}
	if weight > 0 {
		goalTerm /= weight
	} else {
		goalTerm = intentOverlap
	}
	rep.Score = 100 * (0.6*intentOverlap + 0.4*goalTerm)

	for _, dp := range e.destructive {
		if dp.re.MatchString(action) {
			if rep.Score > e.cfg.DestructiveCap {
				rep.Score = e.cfg.DestructiveCap
			}
			rep.Violations = append(rep.Violations, manifold.Violation{
				Description: dp.description,
				Severity:    manifold.SeverityCritical,
			})
			rep.Reasons = append(rep.Reasons, "destructive pattern: "+dp.description)
		}
	}

	for _, v := range m.CheckInvariants(action) {
		rep.Violations = append(rep.Violations, v)
		if v.Severity == manifold.SeverityCritical && rep.Score > e.cfg.DestructiveCap {
			rep.Score = e.cfg.DestructiveCap
		}
	}

	if rep.Score < e.cfg.MinScore {
		rep.Violations = append(rep.Violations, manifold.Violation{
			Description: "alignment score below minimum threshold",
			Severity:    manifold.SeverityError,
		})
	}

	rep.Confidence = e.actionConfidence(m)
	rep.Aligned = rep.Score >= e.cfg.MinScore && manifold.CriticalViolation(rep.Violations) == nil
	if rep.Aligned {
		rep.Reasons = append(rep.Reasons, "action vocabulary consistent with intent and active goals")
	}
	return rep
}

// actionConfidence grows with the amount of signal available to score
// against. A bare intent with no goals or constraints bottoms out at 0.1.
func (e *Engine) actionConfidence(m *manifold.Manifold) float64 {
	signal := 0.15*float64(m.GoalDAG.Len()) + 0.1*float64(len(m.RootIntent.Constraints))
	if signal > 0.85 {
		signal = 0.85
	}
	return 0.1 + signal
}

// =============================================================================
// State scoring
// =============================================================================

// statusScores maps goal status to its contribution to state alignment.
var statusScores = map[manifold.GoalStatus]float64{
	manifold.StatusCompleted:  100,
	manifold.StatusValidating: 90,
	manifold.StatusInProgress: 50,
	manifold.StatusReady:      20,
	manifold.StatusPending:    10,
	manifold.StatusBlocked:    5,
	manifold.StatusFailed:     0,
	manifold.StatusDeprecated: 0,
}

// ScoreState evaluates how far the manifold has progressed toward its
// intent, weighted by each goal's value to the root. A manifold with no
// goals scores 100 at minimum confidence: nothing has diverged yet, but
// nothing is known either.
func (e *Engine) ScoreState(m *manifold.Manifold) Report {
	rep := Report{}
	if m.GoalDAG.Len() == 0 {
		rep.Score = 100
		rep.Confidence = 0.1
		rep.Aligned = true
		rep.Reasons = []string{"no goals recorded yet"}
		return rep
	}

	total, weight := 0.0, 0.0
	withTests, terminal := 0, 0
	for _, g := range m.GoalDAG.Goals {
		w := g.ValueToRoot
		if w <= 0 {
			w = 0.01
		}
		total += statusScores[g.Status] * w
		weight += w
		if len(g.ValidationTests) > 0 || hasTestCriterion(g) {
			withTests++
		}
		if g.Status.IsTerminal() {
			terminal++
		}
	}
	rep.Score = total / weight

	n := float64(m.GoalDAG.Len())
	coverage := float64(withTests) / n
	progress := float64(terminal) / n
	rep.Confidence = 0.1 + 0.9*(0.6*coverage+0.4*progress)

	rep.Violations = m.CheckInvariants("")
	rep.Aligned = rep.Score >= e.cfg.MinScore && manifold.CriticalViolation(rep.Violations) == nil
	return rep
}

func hasTestCriterion(g *manifold.Goal) bool {
	for _, c := range g.SuccessCriteria {
		if c.Kind == manifold.CriterionTestsPassing {
			return true
		}
	}
	return false
}

// =============================================================================
// Tokenization
// =============================================================================

var stopwords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "with": {}, "that": {}, "this": {},
	"all": {}, "are": {}, "was": {}, "will": {}, "must": {}, "should": {},
	"have": {}, "has": {}, "from": {}, "into": {}, "not": {},
}

func tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	})
	out := fields[:0]
	for _, f := range fields {
		if len(f) < 3 {
			continue
		}
		if _, stop := stopwords[f]; stop {
			continue
		}
		out = append(out, f)
	}
	return out
}

func vocabulary(texts ...string) map[string]struct{} {
	vocab := make(map[string]struct{})
	for _, t := range texts {
		for _, tok := range tokenize(t) {
			vocab[tok] = struct{}{}
		}
	}
	return vocab
}

// overlap is the fraction of candidate tokens present in the vocabulary.
func overlap(cand []string, vocab map[string]struct{}) float64 {
	if len(cand) == 0 || len(vocab) == 0 {
		return 0
	}
	hits := 0
	for _, tok := range cand {
		if _, ok := vocab[tok]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(cand))
}
