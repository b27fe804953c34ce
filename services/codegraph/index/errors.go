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

import "errors"

var (
	// ErrProjectNotFound is returned when no generation is published for a project.
	ErrProjectNotFound = errors.New("project not found")

	// ErrBuildInProgress is returned when another build holds the project lock.
	ErrBuildInProgress = errors.New("build already in progress for project")

	// ErrInvalidRoot is returned when the project root is missing or not a directory.
	ErrInvalidRoot = errors.New("invalid project root")

	// ErrNoSourceFiles is returned when discovery finds nothing to parse.
	ErrNoSourceFiles = errors.New("no source files found")

	// ErrProjectTooLarge is returned when discovery exceeds the file limit.
	ErrProjectTooLarge = errors.New("project exceeds maximum file count")

	// ErrParseFailure is returned when every discovered file failed extraction.
	ErrParseFailure = errors.New("no file could be parsed")

	// ErrSnapshotNotFound is returned by a SnapshotStore for an unknown project.
	ErrSnapshotNotFound = errors.New("snapshot not found")
)
