// Copyright (C) The hrdep Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package hrdep

import (
	"flag"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	log "github.com/sirupsen/logrus"
)

// MutationEvent is one observed somatic variant in one sample.
type MutationEvent struct {
	SampleID      string
	GeneSymbol    string
	Impact        string
	ProteinChange string
}

// HRStatus is the derived homologous-recombination classification of
// one cohort sample. EvidenceGenes is the set of panel genes carrying
// a damaging event; it is empty exactly when Deficient is false.
type HRStatus struct {
	SampleID      string
	Deficient     bool
	EvidenceGenes map[string]bool
}

// Label returns the fixed status string for the artifact tables.
func (st HRStatus) Label() string {
	if st.Deficient {
		return labelDeficient
	}
	return labelProficient
}

// EvidenceList returns the evidence set sorted alphabetically. The
// ordering is cosmetic, for the comma-joined artifact column only;
// classification never depends on it.
func (st HRStatus) EvidenceList() []string {
	genes := make([]string, 0, len(st.EvidenceGenes))
	for g := range st.EvidenceGenes {
		genes = append(genes, g)
	}
	sort.Strings(genes)
	return genes
}

// Classify reduces mutation events to one HRStatus per cohort sample.
// A sample is deficient iff it has at least one event whose gene is in
// the panel and whose impact category is in the damaging set; category
// filtering happens before grouping, so a panel-gene event with a
// benign category never contributes evidence. The result is total over
// cohortIDs, in the same order.
func Classify(cohortIDs []string, events []MutationEvent, panel, damaging []string) []HRStatus {
	inCohort := stringSet(cohortIDs)
	inPanel := stringSet(panel)
	isDamaging := stringSet(damaging)

	evidence := map[string]map[string]bool{}
	for _, ev := range events {
		if !inCohort[ev.SampleID] || !inPanel[ev.GeneSymbol] || !isDamaging[ev.Impact] {
			continue
		}
		if evidence[ev.SampleID] == nil {
			evidence[ev.SampleID] = map[string]bool{}
		}
		evidence[ev.SampleID][ev.GeneSymbol] = true
	}

	out := make([]HRStatus, 0, len(cohortIDs))
	for _, id := range cohortIDs {
		out = append(out, HRStatus{
			SampleID:      id,
			Deficient:     len(evidence[id]) > 0,
			EvidenceGenes: evidence[id],
		})
	}
	return out
}

// MutationEvents extracts the event columns from a raw mutation table.
func MutationEvents(t *Table) ([]MutationEvent, error) {
	idCol, err := t.Column(colSampleID)
	if err != nil {
		return nil, err
	}
	geneCol, err := t.Column(colGeneSymbol)
	if err != nil {
		return nil, err
	}
	impactCol, err := t.Column(colImpact)
	if err != nil {
		return nil, err
	}
	protCol, _ := t.Column(colProtChange) // optional, passthrough only
	events := make([]MutationEvent, 0, len(t.Rows))
	for _, row := range t.Rows {
		if len(row) <= idCol || len(row) <= geneCol || len(row) <= impactCol {
			continue
		}
		ev := MutationEvent{
			SampleID:   row[idCol],
			GeneSymbol: row[geneCol],
			Impact:     row[impactCol],
		}
		if protCol >= 0 && len(row) > protCol {
			ev.ProteinChange = row[protCol]
		}
		events = append(events, ev)
	}
	return events, nil
}

// StatusTable joins the classification back onto the cohort table,
// producing the HR status artifact: one row per cohort sample with
// sample id, display name, lineage, boolean status, status label, and
// the comma-joined evidence genes.
func StatusTable(cohort *Table, statuses []HRStatus) (*Table, error) {
	idCol, err := cohort.Column(colSampleID)
	if err != nil {
		return nil, err
	}
	nameCol, err := cohort.Column(colDisplayName)
	if err != nil {
		return nil, err
	}
	lineageCol, err := cohort.Column(colLineage)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]HRStatus, len(statuses))
	for _, st := range statuses {
		byID[st.SampleID] = st
	}
	out := &Table{Columns: []string{colSampleID, colDisplayName, colLineage, "is_deficient", "status_label", "evidence_genes"}}
	for _, row := range cohort.Rows {
		st := byID[row[idCol]]
		out.Rows = append(out.Rows, []string{
			row[idCol],
			row[nameCol],
			row[lineageCol],
			fmt.Sprintf("%v", st.Deficient),
			st.Label(),
			strings.Join(st.EvidenceList(), ","),
		})
	}
	return out, nil
}

// classifycmd is the classification stage: cohort + mutation table in,
// HR status table out.
type classifycmd struct {
	panel    string
	damaging string
}

func (cmd *classifycmd) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var err error
	defer func() {
		if err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
		}
	}()
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.SetOutput(stderr)
	cohortFilename := flags.String("cohort", filepath.Join(defaultOutDir, "cohort.csv"), "cohort `file` written by the cohort stage")
	mutationsFilename := flags.String("mutations", filepath.Join(defaultRawDir, mutationsFile), "somatic mutation `file`")
	outputFilename := flags.String("o", filepath.Join(defaultOutDir, "hr_status.csv"), "HR status output `file`")
	flags.StringVar(&cmd.panel, "genes", strings.Join(defaultGenePanel, ","), "comma-separated gene `panel`")
	flags.StringVar(&cmd.damaging, "damaging", strings.Join(defaultDamaging, ","), "comma-separated damaging impact `categories`")
	err = flags.Parse(args)
	if err == flag.ErrHelp {
		err = nil
		return 0
	} else if err != nil {
		return 2
	}

	cohort, err := ReadTableFile(*cohortFilename)
	if err != nil {
		return 1
	}
	idCol, err := cohort.Column(colSampleID)
	if err != nil {
		err = fmt.Errorf("%s: %w", *cohortFilename, err)
		return 1
	}
	cohortIDs := make([]string, 0, len(cohort.Rows))
	for _, row := range cohort.Rows {
		cohortIDs = append(cohortIDs, row[idCol])
	}

	mutations, err := ReadTableFile(*mutationsFilename)
	if err != nil {
		return 1
	}
	events, err := MutationEvents(mutations)
	if err != nil {
		err = fmt.Errorf("%s: %w", *mutationsFilename, err)
		return 1
	}
	log.Infof("loaded %d mutation events from %s", len(events), *mutationsFilename)

	statuses := Classify(cohortIDs, events, splitList(cmd.panel), splitList(cmd.damaging))
	deficient := 0
	for _, st := range statuses {
		if st.Deficient {
			deficient++
		}
	}
	log.Infof("classified %d cohort samples: %d %s, %d %s", len(statuses), deficient, labelDeficient, len(statuses)-deficient, labelProficient)

	status, err := StatusTable(cohort, statuses)
	if err != nil {
		err = fmt.Errorf("%s: %w", *cohortFilename, err)
		return 1
	}
	err = mkdirFor(*outputFilename)
	if err != nil {
		return 1
	}
	err = WriteTableFile(*outputFilename, status)
	if err != nil {
		return 1
	}
	return 0
}
