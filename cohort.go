// Copyright (C) The hrdep Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package hrdep

import (
	"flag"
	"fmt"
	"io"
	"path/filepath"

	log "github.com/sirupsen/logrus"
)

// cohortcmd narrows the full sample metadata table to the target
// lineage and writes the subset as the cohort artifact.
type cohortcmd struct {
	lineage string
}

func (cmd *cohortcmd) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var err error
	defer func() {
		if err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
		}
	}()
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.SetOutput(stderr)
	inputFilename := flags.String("i", filepath.Join(defaultRawDir, metadataFile), "sample metadata `file`")
	outputFilename := flags.String("o", filepath.Join(defaultOutDir, "cohort.csv"), "cohort output `file`")
	flags.StringVar(&cmd.lineage, "lineage", defaultLineage, "target lineage `value`")
	err = flags.Parse(args)
	if err == flag.ErrHelp {
		err = nil
		return 0
	} else if err != nil {
		return 2
	}

	samples, err := ReadTableFile(*inputFilename)
	if err != nil {
		return 1
	}
	log.Infof("loaded %d samples from %s", len(samples.Rows), *inputFilename)

	cohort, err := FilterCohort(samples, cmd.lineage)
	if err != nil {
		err = fmt.Errorf("%s: %w", *inputFilename, err)
		return 1
	}
	if len(cohort.Rows) == 0 {
		log.Warnf("0 samples have lineage %q; writing empty cohort", cmd.lineage)
	} else {
		log.Infof("%d samples have lineage %q", len(cohort.Rows), cmd.lineage)
	}

	err = mkdirFor(*outputFilename)
	if err != nil {
		return 1
	}
	err = WriteTableFile(*outputFilename, cohort)
	if err != nil {
		return 1
	}
	return 0
}

// FilterCohort returns the subsequence of sample rows whose lineage
// column equals target, preserving all columns and input order. An
// empty result is valid.
func FilterCohort(samples *Table, target string) (*Table, error) {
	if _, err := samples.Column(colSampleID); err != nil {
		return nil, err
	}
	lineageCol, err := samples.Column(colLineage)
	if err != nil {
		return nil, err
	}
	out := &Table{Columns: samples.Columns}
	for _, row := range samples.Rows {
		if len(row) > lineageCol && row[lineageCol] == target {
			out.Rows = append(out.Rows, row)
		}
	}
	return out, nil
}
