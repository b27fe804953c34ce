// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/AleutianAI/codegraph/pkg/logging"
	"github.com/AleutianAI/codegraph/services/codegraph"
	"github.com/AleutianAI/codegraph/services/codegraph/config"
	"github.com/AleutianAI/codegraph/services/codegraph/index"
	"github.com/AleutianAI/codegraph/services/codegraph/snippet"
	"github.com/AleutianAI/codegraph/services/codegraph/storage/badger"
)

// runtime is the wired object graph shared by every command.
type runtime struct {
	cfg     *config.Config
	logger  *logging.Logger
	db      *badger.DB
	index   *index.Index
	service *codegraph.Service
}

// runtimeOptions select the optional parts of a runtime.
type runtimeOptions struct {
	// store opens the snapshot store when the config enables it.
	store bool

	// watch honors watch.enabled.
	watch bool

	// quiet drops stderr logging below warn, for commands that print results.
	quiet bool
}

func newRuntime(cfg *config.Config, opts runtimeOptions) (*runtime, error) {
	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	if opts.quiet && level < logging.LevelWarn {
		level = logging.LevelWarn
	}
	logger := logging.New(logging.Config{
		Level:   level,
		Format:  logging.Format(cfg.Logging.Format),
		LogDir:  cfg.Logging.Dir,
		Service: cfg.Logging.Service,
	})
	slog.SetDefault(logger.Slog())

	rt := &runtime{cfg: cfg, logger: logger}

	idxOpts := index.DefaultOptions()
	idxOpts.Workers = cfg.Index.Workers
	idxOpts.MaxProjectFiles = cfg.Index.MaxProjectFiles
	idxOpts.MaxFileSize = cfg.Index.MaxFileSize
	idxOpts.RespectGitignore = cfg.Index.RespectGitignore
	idxOpts.RebuildTimeout = cfg.Index.BuildTimeout
	idxOpts.Logger = logger.Slog()
	if opts.watch && cfg.Watch.Enabled {
		idxOpts.Watch = true
		idxOpts.WatchOptions.Debounce = cfg.Watch.Debounce
	}

	if opts.store && cfg.Store.Enabled {
		dbCfg := badger.InMemoryConfig()
		if !cfg.Store.InMemory {
			path, err := cfg.StorePath()
			if err != nil {
				return nil, err
			}
			dbCfg = badger.DefaultConfig(path)
			dbCfg.GCInterval = cfg.Store.GCInterval
		}
		dbCfg.Logger = logger.Slog()
		db, err := badger.Open(dbCfg)
		if err != nil {
			_ = logger.Close()
			return nil, fmt.Errorf("open snapshot store: %w", err)
		}
		rt.db = db
		idxOpts.Store = index.NewBadgerStore(db)
	}

	rt.index = index.New(idxOpts)

	extractor := snippet.NewExtractor(
		snippet.NewCachedReader(cfg.Snippet.CacheEntries, cfg.Index.MaxFileSize),
		rt.index.Registry(),
		cfg.Index.Workers,
	)
	rt.service = codegraph.NewService(codegraph.ServiceConfig{
		AllowedRoots:    cfg.Security.AllowedRoots,
		BuildTimeout:    cfg.Index.BuildTimeout,
		DefaultExcludes: cfg.Index.ExcludePatterns,
	}, rt.index, extractor, logger.Slog())
	return rt, nil
}

// Close stops watchers, then closes the store and the log file.
func (rt *runtime) Close() error {
	rt.index.Close()
	var errs []error
	if rt.db != nil {
		errs = append(errs, rt.db.Close())
	}
	errs = append(errs, rt.logger.Close())
	return errors.Join(errs...)
}
