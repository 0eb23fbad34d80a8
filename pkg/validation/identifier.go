// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validation provides input validation utilities for security-critical operations.
//
// This package contains validators for agent-provided inputs that end up in
// storage keys, log lines, or filesystem paths. Using these validators
// prevents injection attacks (key collisions, log forgery, path traversal).
package validation

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// identifierPattern matches agent and session identifiers.
// Allows: letters, digits, dots, underscores, hyphens.
// Max length: 64 characters (covers UUIDs and hostname-style names)
var identifierPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._\-]{0,63}$`)

// ValidateIdentifier validates an agent or session identifier before it is
// embedded in a storage key or structured log attribute.
//
// Valid identifiers:
//   - 1-64 characters
//   - Letters A-Z, a-z
//   - Digits 0-9
//   - Dots (.), underscores (_), hyphens (-)
//
// Returns an error if the identifier is invalid.
//
// Example:
//
//	if err := validation.ValidateIdentifier(agentID); err != nil {
//	    return fmt.Errorf("invalid agent id: %w", err)
//	}
//	// Safe to use in a badger key
func ValidateIdentifier(id string) error {
	if id == "" {
		return fmt.Errorf("identifier cannot be empty")
	}

	if !identifierPattern.MatchString(id) {
		return fmt.Errorf("invalid identifier format: %q (must be 1-64 alphanumeric chars, dots, underscores, or hyphens)", id)
	}

	return nil
}

// SanitizeIdentifier normalizes and validates an identifier.
// Returns the trimmed identifier if valid, or an error if invalid.
func SanitizeIdentifier(id string) (string, error) {
	normalized := strings.TrimSpace(id)
	if err := ValidateIdentifier(normalized); err != nil {
		return "", err
	}
	return normalized, nil
}

// ValidateRelPath validates a workspace-relative file path supplied by an
// agent. It rejects absolute paths and any path that escapes the workspace
// root via parent-directory components.
//
// Example:
//
//	if err := validation.ValidateRelPath(req.Path); err != nil {
//	    return fmt.Errorf("invalid path: %w", err)
//	}
//	// Safe to join onto the workspace root
func ValidateRelPath(path string) error {
	if path == "" {
		return fmt.Errorf("path cannot be empty")
	}
	if strings.ContainsRune(path, '\x00') {
		return fmt.Errorf("path contains NUL byte")
	}
	if filepath.IsAbs(path) || strings.HasPrefix(path, "/") || strings.HasPrefix(path, "\\") {
		return fmt.Errorf("absolute paths are not allowed: %q", path)
	}
	if len(path) >= 2 && path[1] == ':' {
		return fmt.Errorf("absolute paths are not allowed: %q", path)
	}

	clean := filepath.ToSlash(filepath.Clean(path))
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return fmt.Errorf("path escapes the workspace root: %q", path)
	}

	return nil
}
