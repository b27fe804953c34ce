// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package index

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/mod/modfile"
)

// CanonicalRoot returns the absolute, symlink-resolved, cleaned form of dir.
//
// Outputs:
//   - string: The canonical directory.
//   - error: ErrInvalidRoot if dir does not exist or is not a directory.
func CanonicalRoot(dir string) (string, error) {
	if strings.TrimSpace(dir) == "" {
		return "", fmt.Errorf("%w: empty path", ErrInvalidRoot)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrInvalidRoot, dir, err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrInvalidRoot, dir, err)
	}
	resolved = filepath.Clean(resolved)

	info, err := os.Stat(resolved)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrInvalidRoot, dir, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%w: %s is not a directory", ErrInvalidRoot, dir)
	}
	return resolved, nil
}

// NormalizeExcludes trims, deduplicates and sorts exclude patterns.
func NormalizeExcludes(patterns []string) []string {
	seen := make(map[string]bool, len(patterns))
	out := make([]string, 0, len(patterns))
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// ProjectID derives the stable project id from the cache key.
//
// The id is the first 16 hex characters of SHA-256 over the canonical root
// and the normalized exclude patterns, so it survives rebuilds and restarts.
func ProjectID(canonicalRoot string, excludes []string) string {
	h := sha256.New()
	h.Write([]byte(canonicalRoot))
	for _, p := range NormalizeExcludes(excludes) {
		h.Write([]byte{0})
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// detectModulePath returns the module path declared in root/go.mod, or "".
func detectModulePath(root string, logger *slog.Logger) string {
	data, err := os.ReadFile(filepath.Join(root, "go.mod"))
	if err != nil {
		return ""
	}
	path := modfile.ModulePath(data)
	if path == "" {
		logger.Debug("go.mod has no module directive", slog.String("root", root))
	}
	return path
}
