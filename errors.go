// Copyright (C) The hrdep Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package hrdep

import (
	"errors"
	"fmt"
)

// ErrNotFound indicates the remote store returned an HTTP 404 for a
// dataset file. It is wrapped by the download stage so callers can
// distinguish "release moved" from transient network trouble.
var ErrNotFound = errors.New("file not found on remote store")

// SchemaError indicates an input table is missing a column the stage
// depends on. Fatal: the stage writes no output.
type SchemaError struct {
	Path   string
	Column string
}

func (e *SchemaError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("missing required column %q", e.Column)
	}
	return fmt.Sprintf("%s: missing required column %q", e.Path, e.Column)
}

// GeneNotFoundError indicates the configured gene symbol resolved to
// zero or multiple columns of the score matrix.
type GeneNotFoundError struct {
	Gene       string
	Candidates []string
}

func (e *GeneNotFoundError) Error() string {
	if len(e.Candidates) == 0 {
		return fmt.Sprintf("gene %q not found among score matrix columns (update -gene, or the configured dataset release)", e.Gene)
	}
	return fmt.Sprintf("gene %q matches multiple score matrix columns %q", e.Gene, e.Candidates)
}

// InsufficientDataError indicates a status group is too small for
// variance-based statistics. Descriptive statistics for the other
// group are still reported by the caller.
type InsufficientDataError struct {
	Label string
	N     int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("group %q has %d observation(s), need at least 2 for variance-based statistics", e.Label, e.N)
}
