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
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// Policy
// =============================================================================

// GovernancePolicy records what the project is allowed to use and what it is
// required to keep. Required sets are always subsets of the allowed sets.
type GovernancePolicy struct {
	RequiredDependencies []string            `json:"required_dependencies,omitempty"`
	AllowedDependencies  []string            `json:"allowed_dependencies,omitempty"`
	RequiredFrameworks   []string            `json:"required_frameworks,omitempty"`
	AllowedFrameworks    []string            `json:"allowed_frameworks,omitempty"`
	AllowedEndpoints     map[string][]string `json:"allowed_endpoints,omitempty"`
	AllowedPorts         []int               `json:"allowed_ports,omitempty"`
	PendingProposal      *Proposal           `json:"pending_proposal,omitempty"`
	History              []ProposalRecord    `json:"history,omitempty"`

	// ObservedDependencies is the latest workspace observation, recorded at
	// seed time. The completion check compares required items against it.
	ObservedDependencies []string `json:"observed_dependencies,omitempty"`
}

// Proposal is a staged change to the policy. It takes effect only on
// approval.
type Proposal struct {
	ID                 string              `json:"id"`
	Rationale          string              `json:"rationale,omitempty"`
	AddDependencies    []string            `json:"add_dependencies,omitempty"`
	RemoveDependencies []string            `json:"remove_dependencies,omitempty"`
	AddFrameworks      []string            `json:"add_frameworks,omitempty"`
	RemoveFrameworks   []string            `json:"remove_frameworks,omitempty"`
	AddEndpoints       map[string][]string `json:"add_endpoints,omitempty"`
	RemoveEndpoints    []string            `json:"remove_endpoints,omitempty"`
	AddPorts           []int               `json:"add_ports,omitempty"`
	RemovePorts        []int               `json:"remove_ports,omitempty"`
	LockRequired       bool                `json:"lock_required,omitempty"`
	Evidence           []string            `json:"evidence,omitempty"`
	CreatedAt          time.Time           `json:"created_at"`
}

// ProposalRecord is one resolved proposal in the policy history.
type ProposalRecord struct {
	ProposalID string    `json:"proposal_id"`
	Accepted   bool      `json:"accepted"`
	Note       string    `json:"note,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Empty reports whether the proposal would change nothing.
func (p *Proposal) Empty() bool {
	return len(p.AddDependencies) == 0 && len(p.RemoveDependencies) == 0 &&
		len(p.AddFrameworks) == 0 && len(p.RemoveFrameworks) == 0 &&
		len(p.AddEndpoints) == 0 && len(p.RemoveEndpoints) == 0 &&
		len(p.AddPorts) == 0 && len(p.RemovePorts) == 0
}

// DependencyAllowed reports whether name is in the allowed dependency set.
// An empty allowed set permits everything.
func (gp *GovernancePolicy) DependencyAllowed(name string) bool {
	if len(gp.AllowedDependencies) == 0 {
		return true
	}
	return contains(gp.AllowedDependencies, name)
}

// FrameworkAllowed reports whether name is in the allowed framework set.
func (gp *GovernancePolicy) FrameworkAllowed(name string) bool {
	if len(gp.AllowedFrameworks) == 0 {
		return true
	}
	return contains(gp.AllowedFrameworks, name)
}

// EndpointAllowed reports whether the endpoint permits the method. Endpoints
// absent from the map are denied once any endpoint is listed.
func (gp *GovernancePolicy) EndpointAllowed(endpoint, method string) bool {
	if len(gp.AllowedEndpoints) == 0 {
		return true
	}
	methods, ok := gp.AllowedEndpoints[endpoint]
	if !ok {
		return false
	}
	if len(methods) == 0 {
		return true
	}
	method = strings.ToUpper(method)
	for _, m := range methods {
		if strings.ToUpper(m) == method {
			return true
		}
	}
	return false
}

// PortAllowed reports whether port is in the allowed set.
func (gp *GovernancePolicy) PortAllowed(port int) bool {
	if len(gp.AllowedPorts) == 0 {
		return true
	}
	for _, p := range gp.AllowedPorts {
		if p == port {
			return true
		}
	}
	return false
}

// MissingRequired returns required dependencies and frameworks absent from
// the observed sets.
func (gp *GovernancePolicy) MissingRequired(observedDeps, observedFrameworks []string) []string {
	var missing []string
	for _, req := range gp.RequiredDependencies {
		if !contains(observedDeps, req) {
			missing = append(missing, "dependency: "+req)
		}
	}
	for _, req := range gp.RequiredFrameworks {
		if !contains(observedFrameworks, req) {
			missing = append(missing, "framework: "+req)
		}
	}
	return missing
}

// normalize sorts and deduplicates all policy sets and clamps required to
// subsets of allowed.
func (gp *GovernancePolicy) normalize() {
	gp.AllowedDependencies = dedupSorted(gp.AllowedDependencies)
	gp.AllowedFrameworks = dedupSorted(gp.AllowedFrameworks)
	gp.RequiredDependencies = intersectSorted(gp.RequiredDependencies, gp.AllowedDependencies)
	gp.RequiredFrameworks = intersectSorted(gp.RequiredFrameworks, gp.AllowedFrameworks)
	sort.Ints(gp.AllowedPorts)
	gp.AllowedPorts = dedupInts(gp.AllowedPorts)
	for ep, methods := range gp.AllowedEndpoints {
		gp.AllowedEndpoints[ep] = dedupSorted(methods)
	}
}

// =============================================================================
// Seeding
// =============================================================================

// SeedProposalFromIntent derives a policy proposal from the root intent and
// the observed workspace. Frameworks come from the intent; endpoints and
// ports are parsed from the infrastructure map; dependencies come from the
// workspace observation.
func SeedProposalFromIntent(intent Intent, observedDeps []string, lockRequired bool) *Proposal {
	p := &Proposal{
		ID:           uuid.NewString(),
		Rationale:    "seeded from root intent and observed workspace",
		LockRequired: lockRequired,
		CreatedAt:    time.Now().UTC(),
	}
	p.AddFrameworks = dedupSorted(intent.Frameworks)
	p.AddDependencies = dedupSorted(observedDeps)
	for component, target := range intent.InfrastructureMap {
		if p.AddEndpoints == nil {
			p.AddEndpoints = make(map[string][]string)
		}
		p.AddEndpoints[target] = nil
		if port, ok := extractPort(target); ok {
			p.AddPorts = append(p.AddPorts, port)
		}
		p.Evidence = append(p.Evidence, "infrastructure: "+component)
	}
	sort.Ints(p.AddPorts)
	p.AddPorts = dedupInts(p.AddPorts)
	sort.Strings(p.Evidence)
	return p
}

// extractPort parses an explicit port from scheme://host:port/... or
// host:port strings.
func extractPort(target string) (int, bool) {
	s := target
	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
	}
	if i := strings.IndexAny(s, "/?"); i >= 0 {
		s = s[:i]
	}
	i := strings.LastIndex(s, ":")
	if i < 0 || i == len(s)-1 {
		return 0, false
	}
	port, err := strconv.Atoi(s[i+1:])
	if err != nil || port <= 0 || port > 65535 {
		return 0, false
	}
	return port, true
}

// =============================================================================
// Resolution
// =============================================================================

// Approve applies the pending proposal to the policy. Approving with no
// pending proposal is a no-op. With lock_required set the approved allowed
// sets become required as well; otherwise required is re-clamped to allowed.
func (gp *GovernancePolicy) Approve(note string) {
	p := gp.PendingProposal
	if p == nil {
		return
	}
	gp.AllowedDependencies = removeAll(append(gp.AllowedDependencies, p.AddDependencies...), p.RemoveDependencies)
	gp.AllowedFrameworks = removeAll(append(gp.AllowedFrameworks, p.AddFrameworks...), p.RemoveFrameworks)
	for ep, methods := range p.AddEndpoints {
		if gp.AllowedEndpoints == nil {
			gp.AllowedEndpoints = make(map[string][]string)
		}
		gp.AllowedEndpoints[ep] = append(gp.AllowedEndpoints[ep], methods...)
	}
	for _, ep := range p.RemoveEndpoints {
		delete(gp.AllowedEndpoints, ep)
	}
	gp.AllowedPorts = append(gp.AllowedPorts, p.AddPorts...)
	gp.AllowedPorts = removePorts(gp.AllowedPorts, p.RemovePorts)
	if p.LockRequired {
		gp.RequiredDependencies = append([]string(nil), gp.AllowedDependencies...)
		gp.RequiredFrameworks = append([]string(nil), gp.AllowedFrameworks...)
	}
	gp.normalize()
	gp.History = append(gp.History, ProposalRecord{
		ProposalID: p.ID,
		Accepted:   true,
		Note:       note,
		Timestamp:  time.Now().UTC(),
	})
	gp.PendingProposal = nil
}

// Reject discards the pending proposal. Rejecting with no pending proposal
// is a no-op.
func (gp *GovernancePolicy) Reject(note string) {
	p := gp.PendingProposal
	if p == nil {
		return
	}
	gp.History = append(gp.History, ProposalRecord{
		ProposalID: p.ID,
		Accepted:   false,
		Note:       note,
		Timestamp:  time.Now().UTC(),
	})
	gp.PendingProposal = nil
}

// =============================================================================
// Helpers
// =============================================================================

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

func dedupSorted(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	if len(out) == 0 {
		return nil
	}
	return out
}

func intersectSorted(a, b []string) []string {
	var out []string
	for _, s := range a {
		if contains(b, s) {
			out = append(out, s)
		}
	}
	return dedupSorted(out)
}

func removeAll(set, remove []string) []string {
	var out []string
	for _, s := range set {
		if !contains(remove, s) {
			out = append(out, s)
		}
	}
	return out
}

func dedupInts(in []int) []int {
	if len(in) == 0 {
		return nil
	}
	out := in[:1]
	for _, v := range in[1:] {
		if v != out[len(out)-1] {
			out = append(out, v)
		}
	}
	return out
}

func removePorts(set, remove []int) []int {
	var out []int
	for _, p := range set {
		drop := false
		for _, r := range remove {
			if p == r {
				drop = true
				break
			}
		}
		if !drop {
			out = append(out, p)
		}
	}
	return out
}
