// Copyright (C) The hrdep Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package hrdep

import (
	"os"
	"strings"
)

// Pipeline defaults. Every value here is overridable by a subcommand
// flag; the base URL can also come from the environment so batch jobs
// can point at a mirrored release without editing command lines.
const (
	defaultBaseURL  = "https://depmap.org/portal/download/api/download/file"
	defaultLineage  = "Ovary"
	defaultGene     = "PARP1"
	defaultRawDir   = "./depmap"
	defaultOutDir   = "./results"
	metadataFile    = "Model.csv"
	mutationsFile   = "OmicsSomaticMutations.csv"
	scoreMatrixFile = "CRISPRGeneEffect.csv"
)

// Column names of the DepMap release this pipeline was written
// against. The sample key column is shared by all three tables.
const (
	colSampleID    = "ModelID"
	colDisplayName = "CellLineName"
	colLineage     = "OncotreeLineage"
	colGeneSymbol  = "HugoSymbol"
	colImpact      = "VariantInfo"
	colProtChange  = "ProteinChange"
)

// Status labels are fixed strings shared by the classifier artifact,
// the comparator join, and the plot legend.
const (
	labelDeficient  = "deficient"
	labelProficient = "proficient"
)

// defaultGenePanel is the homologous-recombination panel, in reporting
// order. Evidence sets are sorted alphabetically at serialization time
// regardless of panel order.
var defaultGenePanel = []string{
	"BRCA1", "BRCA2", "PALB2", "ATM", "ATR", "BARD1",
	"BRIP1", "CHEK1", "CHEK2", "RAD51B", "RAD51C", "RAD51D",
}

// defaultDamaging is the set of impact categories treated as
// function-abolishing. Matching is exact, never substring.
var defaultDamaging = []string{"damaging", "truncating", "hotspot"}

// defaultDatasets lists the remote files the download stage fetches,
// in pipeline order.
var defaultDatasets = []string{metadataFile, mutationsFile, scoreMatrixFile}

func baseURLFromEnv() string {
	if v := os.Getenv("HRDEP_BASE_URL"); v != "" {
		return v
	}
	return defaultBaseURL
}

// splitList parses a comma-separated flag value, dropping empty
// elements so trailing commas are harmless.
func splitList(s string) []string {
	var out []string
	for _, tok := range strings.Split(s, ",") {
		tok = strings.TrimSpace(tok)
		if tok != "" {
			out = append(out, tok)
		}
	}
	return out
}

// stringSet builds a membership set for exact matching.
func stringSet(list []string) map[string]bool {
	set := make(map[string]bool, len(list))
	for _, s := range list {
		set[s] = true
	}
	return set
}
