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
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// RecordHandover appends a note to the handover log. The log is append-only;
// entries are never edited or removed.
func (m *Manifold) RecordHandover(entry HandoverEntry) error {
	if strings.TrimSpace(entry.Content) == "" {
		return fmt.Errorf("%w: empty handover content", ErrInvalidGoal)
	}
	if entry.GoalID != "" {
		if _, err := m.GoalDAG.Get(entry.GoalID); err != nil {
			return err
		}
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	m.HandoverLog = append(m.HandoverLog, entry)
	m.Touch("handover recorded")
	return nil
}

// RecentHandovers returns the newest entries up to limit, newest first.
func (m *Manifold) RecentHandovers(limit int) []HandoverEntry {
	if limit <= 0 || limit > len(m.HandoverLog) {
		limit = len(m.HandoverLog)
	}
	out := make([]HandoverEntry, 0, limit)
	for i := len(m.HandoverLog) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.HandoverLog[i])
	}
	return out
}

// handoverKey identifies an entry for import deduplication. Two entries with
// the same goal, content, and timestamp are the same note.
func handoverKey(e HandoverEntry) string {
	return e.GoalID + "\x00" + e.Content + "\x00" + e.Timestamp.UTC().Format(time.RFC3339Nano)
}

// ImportHandovers merges entries from another session, skipping duplicates.
// It returns the number of entries actually added. Goal references that no
// longer resolve are kept; the log is a record, not a constraint.
func (m *Manifold) ImportHandovers(entries []HandoverEntry) int {
	seen := make(map[string]struct{}, len(m.HandoverLog))
	for _, e := range m.HandoverLog {
		seen[handoverKey(e)] = struct{}{}
	}
	added := 0
	for _, e := range entries {
		if strings.TrimSpace(e.Content) == "" {
			continue
		}
		key := handoverKey(e)
		if _, dup := seen[key]; dup {
			continue
		}
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		if e.Timestamp.IsZero() {
			e.Timestamp = time.Now().UTC()
		}
		seen[key] = struct{}{}
		m.HandoverLog = append(m.HandoverLog, e)
		added++
	}
	if added > 0 {
		m.Touch(fmt.Sprintf("imported %d handover entries", added))
	}
	return added
}

// ExportHandovers serializes the full handover log. The output round-trips
// through ImportHandoverData without creating duplicates.
func (m *Manifold) ExportHandovers() ([]byte, error) {
	return json.MarshalIndent(m.HandoverLog, "", "  ")
}

// ImportHandoverData parses a prior export and merges it into the log.
func (m *Manifold) ImportHandoverData(data []byte) (int, error) {
	var entries []HandoverEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return 0, fmt.Errorf("%w: malformed handover export: %v", ErrInvalidGoal, err)
	}
	return m.ImportHandovers(entries), nil
}
