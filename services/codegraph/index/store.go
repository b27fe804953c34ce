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
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/AleutianAI/codegraph/services/codegraph/graph"
	"github.com/AleutianAI/codegraph/services/codegraph/storage/badger"
)

// SnapshotStore persists generation snapshots keyed by project id.
//
// Implementations must be safe for concurrent use.
type SnapshotStore interface {
	// Save replaces the stored snapshot for s.Metadata.ProjectID.
	Save(ctx context.Context, s *graph.Snapshot) error

	// Load returns the stored snapshot or ErrSnapshotNotFound.
	Load(ctx context.Context, projectID string) (*graph.Snapshot, error)

	// ProjectIDs lists every stored project id.
	ProjectIDs(ctx context.Context) ([]string, error)

	// Delete removes a project's snapshot.
	Delete(ctx context.Context, projectID string) error
}

const snapshotKeyPrefix = "snapshot:"

// BadgerStore is a SnapshotStore on BadgerDB. Snapshots are stored as JSON.
type BadgerStore struct {
	db *badger.DB
}

// NewBadgerStore wraps an opened database. The caller keeps ownership of db.
func NewBadgerStore(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db}
}

// Save implements SnapshotStore.
func (s *BadgerStore) Save(ctx context.Context, snap *graph.Snapshot) error {
	if snap == nil || snap.Metadata.ProjectID == "" {
		return errors.New("save snapshot: missing project id")
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot %s: %w", snap.Metadata.ProjectID, err)
	}
	if err := s.db.Put(ctx, snapshotKeyPrefix+snap.Metadata.ProjectID, data); err != nil {
		return fmt.Errorf("save snapshot %s: %w", snap.Metadata.ProjectID, err)
	}
	return nil
}

// Load implements SnapshotStore.
func (s *BadgerStore) Load(ctx context.Context, projectID string) (*graph.Snapshot, error) {
	data, err := s.db.Get(ctx, snapshotKeyPrefix+projectID)
	if errors.Is(err, badger.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrSnapshotNotFound, projectID)
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot %s: %w", projectID, err)
	}
	var snap graph.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", projectID, err)
	}
	return &snap, nil
}

// ProjectIDs implements SnapshotStore.
func (s *BadgerStore) ProjectIDs(ctx context.Context) ([]string, error) {
	keys, err := s.db.Keys(ctx, snapshotKeyPrefix)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	ids := make([]string, 0, len(keys))
	for _, k := range keys {
		ids = append(ids, strings.TrimPrefix(k, snapshotKeyPrefix))
	}
	return ids, nil
}

// Delete implements SnapshotStore.
func (s *BadgerStore) Delete(ctx context.Context, projectID string) error {
	return s.db.Delete(ctx, snapshotKeyPrefix+projectID)
}
