// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package store persists the manifold in an embedded badger database.
// A single writer lock serializes every mutation; readers get deep copies
// so callers can never alias the persisted state. Integrity failures on
// load put the store into a degraded read-only mode until it is reset.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/AleutianAI/AleutianWarden/pkg/logging"
	"github.com/AleutianAI/AleutianWarden/services/warden/manifold"
)

// Storage keys. Version snapshots use a zero-padded decimal so lexical key
// order matches version order.
const (
	keyLatest    = "manifold:latest"
	keyVersionFt = "manifold:v:%08d"
	prefixAgent  = "agentmsg:"
	keyQuality   = "quality:latest"
)

// Sentinel errors for the store package.
var (
	// ErrNotInitialized is returned when no manifold has been created yet.
	ErrNotInitialized = errors.New("manifold not initialized")

	// ErrDegraded is returned for writes while the store is in degraded
	// read-only mode after an integrity failure.
	ErrDegraded = errors.New("store is in degraded read-only mode")

	// ErrVersionNotFound is returned for missing version snapshots.
	ErrVersionNotFound = errors.New("version snapshot not found")
)

// AgentMessage is one entry in the append-only cross-agent ledger.
type AgentMessage struct {
	ID        string    `json:"id"`
	AgentID   string    `json:"agent_id"`
	Role      string    `json:"role,omitempty"`
	GoalID    string    `json:"goal_id,omitempty"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// QualityReport is the latest observed build and test health.
type QualityReport struct {
	BuildOK      bool      `json:"build_ok"`
	TestsPassing bool      `json:"tests_passing"`
	TestCoverage float64   `json:"test_coverage"`
	LintErrors   int       `json:"lint_errors"`
	Notes        string    `json:"notes,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Store is the durable manifold repository. Safe for concurrent use.
type Store struct {
	db       *badger.DB
	stopGC   func()
	log      *logging.Logger
	mu       sync.Mutex
	degraded atomic.Bool
}

// Open opens or creates the store at the configured location.
func Open(cfg BadgerConfig, log *logging.Logger) (*Store, error) {
	if log == nil {
		log = logging.Nop()
	}
	cfg.Logger = log
	db, stopGC, err := openBadger(cfg)
	if err != nil {
		return nil, err
	}
	return &Store{db: db, stopGC: stopGC, log: log}, nil
}

// Close stops background work and closes the database.
func (s *Store) Close() error {
	s.stopGC()
	return s.db.Close()
}

// Degraded reports whether the store refuses writes.
func (s *Store) Degraded() bool {
	return s.degraded.Load()
}

// =============================================================================
// Manifold lifecycle
// =============================================================================

// Init creates a fresh manifold for the intent, replacing any existing one,
// and clears degraded mode. This is the project bootstrap path.
func (s *Store) Init(intent manifold.Intent) (*manifold.Manifold, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := manifold.New(intent)
	if err := s.persist(m); err != nil {
		return nil, err
	}
	s.degraded.Store(false)
	s.log.Info("manifold initialized", "version", m.Version, "hash", m.IntegrityHash[:12])
	return m, nil
}

// Initialized reports whether a manifold exists.
func (s *Store) Initialized() (bool, error) {
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(keyLatest))
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read manifold: %w", err)
	}
	return true, nil
}

// Snapshot returns a deep copy of the latest manifold. An integrity
// mismatch flips the store into degraded mode; the copy is still returned
// so read surfaces keep working.
func (s *Store) Snapshot() (*manifold.Manifold, error) {
	m, err := s.loadLatest()
	if err != nil {
		return nil, err
	}
	if err := m.VerifyIntegrity(); err != nil {
		if !s.degraded.Swap(true) {
			s.log.Error("integrity check failed, entering degraded mode", "err", err)
		}
	}
	return m, nil
}

// Update runs fn against the latest manifold under the writer lock and
// persists the result. Invariants are checked after fn: a critical
// violation aborts the write; lesser violations are returned alongside the
// committed manifold. Mutations through manifold methods record their own
// version entries; raw field edits get one recorded here.
func (s *Store) Update(description string, fn func(*manifold.Manifold) error) (*manifold.Manifold, []manifold.Violation, error) {
	if s.degraded.Load() {
		return nil, nil, ErrDegraded
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.loadLatest()
	if err != nil {
		return nil, nil, err
	}
	if err := m.VerifyIntegrity(); err != nil {
		s.degraded.Store(true)
		s.log.Error("integrity check failed, entering degraded mode", "err", err)
		return nil, nil, err
	}

	if err := fn(m); err != nil {
		return nil, nil, err
	}

	violations := m.CheckInvariants("")
	if v := manifold.CriticalViolation(violations); v != nil {
		return nil, violations, &manifold.InvariantError{
			InvariantID: v.InvariantID,
			Description: v.Description,
			Severity:    v.Severity,
		}
	}

	if m.ComputeHash() != m.IntegrityHash {
		m.Touch(description)
	}
	if err := s.persist(m); err != nil {
		return nil, nil, err
	}
	return m, violations, nil
}

func (s *Store) loadLatest() (*manifold.Manifold, error) {
	var m *manifold.Manifold
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyLatest))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			m = &manifold.Manifold{}
			return json.Unmarshal(val, m)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotInitialized
	}
	if err != nil {
		return nil, fmt.Errorf("load manifold: %w", err)
	}
	if m.GoalDAG == nil {
		m.GoalDAG = manifold.NewGoalGraph()
	}
	return m, nil
}

// persist writes the latest pointer and the version snapshot in one
// transaction.
func (s *Store) persist(m *manifold.Manifold) error {
	raw, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode manifold: %w", err)
	}
	versionKey := fmt.Sprintf(keyVersionFt, m.Version)
	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(keyLatest), raw); err != nil {
			return err
		}
		return txn.Set([]byte(versionKey), raw)
	})
	if err != nil {
		return fmt.Errorf("persist manifold v%d: %w", m.Version, err)
	}
	return nil
}

// Version returns the snapshot stored for an exact version number.
func (s *Store) Version(n int) (*manifold.Manifold, error) {
	var m *manifold.Manifold
	key := fmt.Sprintf(keyVersionFt, n)
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			m = &manifold.Manifold{}
			return json.Unmarshal(val, m)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: v%d", ErrVersionNotFound, n)
	}
	if err != nil {
		return nil, fmt.Errorf("load version %d: %w", n, err)
	}
	return m, nil
}

// Reset drops all stored data and clears degraded mode.
func (s *Store) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.db.DropAll(); err != nil {
		return fmt.Errorf("reset store: %w", err)
	}
	s.degraded.Store(false)
	s.log.Warn("store reset, all data dropped")
	return nil
}

// =============================================================================
// Agent message ledger
// =============================================================================

// AppendAgentMessage inserts a message into the append-only ledger. The
// insert is idempotent on message id; a duplicate returns false with no
// error so retried deliveries are harmless.
func (s *Store) AppendAgentMessage(msg AgentMessage) (bool, error) {
	if s.degraded.Load() {
		return false, ErrDegraded
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	raw, err := json.Marshal(msg)
	if err != nil {
		return false, fmt.Errorf("encode agent message: %w", err)
	}
	key := []byte(prefixAgent + msg.ID)

	inserted := false
	err = s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		if err == nil {
			return nil // already present
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		inserted = true
		return txn.Set(key, raw)
	})
	if err != nil {
		return false, fmt.Errorf("append agent message: %w", err)
	}
	return inserted, nil
}

// AgentMessages returns up to limit messages, newest first. A non-positive
// limit returns everything.
func (s *Store) AgentMessages(limit int) ([]AgentMessage, error) {
	var out []AgentMessage
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte(prefixAgent)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var msg AgentMessage
				if err := json.Unmarshal(val, &msg); err != nil {
					return err
				}
				out = append(out, msg)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list agent messages: %w", err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// =============================================================================
// Quality report
// =============================================================================

// SetQualityReport stores the latest build and test health observation.
func (s *Store) SetQualityReport(report QualityReport) error {
	if s.degraded.Load() {
		return ErrDegraded
	}
	report.UpdatedAt = time.Now().UTC()
	raw, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encode quality report: %w", err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(keyQuality), raw)
	})
	if err != nil {
		return fmt.Errorf("store quality report: %w", err)
	}
	return nil
}

// QualityReport returns the latest stored report. The boolean is false
// when none has been recorded yet.
func (s *Store) QualityReport() (QualityReport, bool, error) {
	var report QualityReport
	found := false
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyQuality))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &report)
		})
	})
	if err != nil {
		return QualityReport{}, false, fmt.Errorf("load quality report: %w", err)
	}
	return report, found, nil
}
