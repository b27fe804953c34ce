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
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/AleutianAI/codegraph/services/codegraph/ast"
)

// ChangeOp is the kind of file system change.
type ChangeOp int

const (
	ChangeCreate ChangeOp = iota
	ChangeWrite
	ChangeRemove
	ChangeRename
)

// String returns the lowercase operation name.
func (op ChangeOp) String() string {
	switch op {
	case ChangeCreate:
		return "create"
	case ChangeWrite:
		return "write"
	case ChangeRemove:
		return "remove"
	case ChangeRename:
		return "rename"
	default:
		return "unknown"
	}
}

// Change is one debounced change to a parseable source file.
type Change struct {
	// Path is slash-separated and relative to the project root.
	Path string
	Op   ChangeOp
}

// WatcherOptions configures a Watcher.
type WatcherOptions struct {
	// Debounce is the quiet period before a batch is delivered.
	// Default: 500ms
	Debounce time.Duration

	// BufferSize is the capacity of the pending event channel.
	// Default: 1000
	BufferSize int
}

// DefaultWatcherOptions returns the defaults.
func DefaultWatcherOptions() WatcherOptions {
	return WatcherOptions{Debounce: 500 * time.Millisecond, BufferSize: 1000}
}

// Watcher watches a project tree and delivers debounced batches of changes
// to source files the registry can parse.
//
// # Debouncing
//
// Events are collected until no new event arrives for the debounce window,
// then deduplicated by path (latest op wins) and handed to onChange.
//
// # Thread Safety
//
// Safe for concurrent use. onChange runs on a single goroutine, so batches
// never overlap.
type Watcher struct {
	root     string
	ex       *excluder
	registry *ast.ParserRegistry
	fsw      *fsnotify.Watcher
	onChange func([]Change)
	debounce time.Duration
	logger   *slog.Logger

	changes  chan Change
	done     chan struct{}
	stopOnce sync.Once

	mu       sync.Mutex
	watching bool
}

// newWatcher creates a watcher for root. Call Start to begin watching.
func newWatcher(root string, ex *excluder, registry *ast.ParserRegistry, onChange func([]Change), opts WatcherOptions, logger *slog.Logger) (*Watcher, error) {
	defaults := DefaultWatcherOptions()
	if opts.Debounce <= 0 {
		opts.Debounce = defaults.Debounce
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = defaults.BufferSize
	}
	if logger == nil {
		logger = slog.Default()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		root:     root,
		ex:       ex,
		registry: registry,
		fsw:      fsw,
		onChange: onChange,
		debounce: opts.Debounce,
		logger:   logger.With(slog.String("root", root)),
		changes:  make(chan Change, opts.BufferSize),
		done:     make(chan struct{}),
	}, nil
}

// Start registers every non-excluded directory and starts the event and
// debounce goroutines. Both exit on Stop or when ctx is canceled.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.watching {
		w.mu.Unlock()
		return nil
	}
	w.watching = true
	w.mu.Unlock()

	if err := w.addTree(w.root); err != nil {
		return err
	}

	go w.processEvents(ctx)
	go w.debounceLoop(ctx)
	return nil
}

// Stop stops watching. Safe to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		_ = w.fsw.Close()

		w.mu.Lock()
		w.watching = false
		w.mu.Unlock()
	})
}

func (w *Watcher) relative(path string) (string, bool) {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return "", false
	}
	rel = filepath.ToSlash(rel)
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return "", false
	}
	return rel, true
}

func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if rel, ok := w.relative(path); ok && rel != "." && w.ex.match(rel) {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
}

func (w *Watcher) processEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			rel, ok := w.relative(event.Name)
			if !ok || w.ex.match(rel) {
				continue
			}

			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.addTree(event.Name); err != nil {
						w.logger.Warn("watch new directory failed",
							slog.String("dir", rel),
							slog.String("error", err.Error()))
					}
					continue
				}
			}
			if !w.registry.Supports(rel) {
				continue
			}

			select {
			case w.changes <- Change{Path: rel, Op: convertOp(event.Op)}:
			default:
				w.logger.Warn("change buffer full, dropping event", slog.String("file", rel))
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("file watcher error", slog.String("error", err.Error()))
		}
	}
}

func convertOp(op fsnotify.Op) ChangeOp {
	switch {
	case op.Has(fsnotify.Create):
		return ChangeCreate
	case op.Has(fsnotify.Remove):
		return ChangeRemove
	case op.Has(fsnotify.Rename):
		return ChangeRename
	default:
		return ChangeWrite
	}
}

func (w *Watcher) debounceLoop(ctx context.Context) {
	var batch []Change
	var timer *time.Timer
	var timerC <-chan time.Time

	flush := func() {
		if len(batch) > 0 && w.onChange != nil {
			w.onChange(dedupeChanges(batch))
		}
		batch = batch[:0]
		if timer != nil {
			timer.Stop()
			timer = nil
			timerC = nil
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case c := <-w.changes:
			batch = append(batch, c)
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.debounce)
			}
		case <-timerC:
			flush()
		}
	}
}

// dedupeChanges keeps the latest change per path, in first-seen order.
func dedupeChanges(changes []Change) []Change {
	seen := make(map[string]int, len(changes))
	out := make([]Change, 0, len(changes))
	for _, c := range changes {
		if i, ok := seen[c.Path]; ok {
			out[i] = c
			continue
		}
		seen[c.Path] = len(out)
		out = append(out, c)
	}
	return out
}
