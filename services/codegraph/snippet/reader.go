// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package snippet

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"golang.org/x/sync/singleflight"
)

// Defaults for CachedReader.
const (
	DefaultCacheEntries = 256
	DefaultMaxFileSize  = 10 * 1024 * 1024
)

var (
	// ErrFileNotFound is returned when the file does not exist.
	ErrFileNotFound = errors.New("file not found")

	// ErrNotRegularFile is returned for directories and devices.
	ErrNotRegularFile = errors.New("not a regular file")

	// ErrFileTooLarge is returned when the file exceeds the read limit.
	ErrFileTooLarge = errors.New("file exceeds maximum size")

	// ErrReadFailed wraps any other stat or read failure.
	ErrReadFailed = errors.New("read failed")
)

// Content is a file's bytes and its lines without terminators.
type Content struct {
	Data  []byte
	Lines []string
}

// FileReader reads source files for snippet and skeleton extraction.
//
// Implementations must be safe for concurrent use. Returned Content must
// be treated as read-only.
type FileReader interface {
	Read(ctx context.Context, path string) (*Content, error)
}

type contentKey struct {
	path    string
	size    int64
	modTime int64
}

// CachedReader reads files through a bounded LRU cache keyed by path, size
// and modification time, so an edited file is never served stale.
// Concurrent misses on the same file share one read.
type CachedReader struct {
	cache       *lruCache[contentKey, *Content]
	group       singleflight.Group
	maxFileSize int64
}

// NewCachedReader creates a reader. Non-positive arguments use the defaults.
func NewCachedReader(entries int, maxFileSize int64) *CachedReader {
	if maxFileSize <= 0 {
		maxFileSize = DefaultMaxFileSize
	}
	return &CachedReader{
		cache:       newLRUCache[contentKey, *Content](entries),
		maxFileSize: maxFileSize,
	}
}

// Read implements FileReader.
func (r *CachedReader) Read(ctx context.Context, path string) (*Content, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: stat %s: %w", ErrReadFailed, path, err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: %s", ErrNotRegularFile, path)
	}
	if info.Size() > r.maxFileSize {
		return nil, fmt.Errorf("%w: %s is %d bytes", ErrFileTooLarge, path, info.Size())
	}

	key := contentKey{path: path, size: info.Size(), modTime: info.ModTime().UnixNano()}
	if c, ok := r.cache.get(key); ok {
		return c, nil
	}

	flightKey := fmt.Sprintf("%s\x00%d\x00%d", key.path, key.size, key.modTime)
	v, err, _ := r.group.Do(flightKey, func() (interface{}, error) {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%w: read %s: %w", ErrReadFailed, path, err)
		}
		c := &Content{Data: data, Lines: SplitLines(data)}
		r.cache.set(key, c)
		return c, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Content), nil
}

// Stats returns cache hits, misses and evictions.
func (r *CachedReader) Stats() (hits, misses, evictions int64) {
	return r.cache.hits.Load(), r.cache.misses.Load(), r.cache.evictions.Load()
}

// Len returns the number of cached files.
func (r *CachedReader) Len() int {
	return r.cache.len()
}

// SplitLines splits data on "\n", dropping one trailing terminator and any
// "\r" before each terminator.
func SplitLines(data []byte) []string {
	if len(data) == 0 {
		return []string{}
	}
	text := strings.TrimSuffix(string(data), "\n")
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}
