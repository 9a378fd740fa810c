// Copyright (C) The hrdep Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package hrdep

import (
	"bytes"
	"encoding/json"
	"io/ioutil"
	"os"

	"github.com/sergi/go-diff/diffmatchpatch"
	"gopkg.in/check.v1"
)

type pipelineSuite struct{}

var _ = check.Suite(&pipelineSuite{})

// checkArtifact compares a written artifact against its expected
// content, logging a readable diff on mismatch.
func checkArtifact(c *check.C, path, expected string) {
	buf, err := ioutil.ReadFile(path)
	c.Assert(err, check.IsNil)
	if string(buf) != expected {
		dmp := diffmatchpatch.New()
		c.Logf("%s differs from expected:\n%s", path, dmp.DiffPrettyText(dmp.DiffMain(expected, string(buf), false)))
		c.Fail()
	}
}

func (s *pipelineSuite) TestCohortClassifyCompare(c *check.C) {
	tmpdir := c.MkDir()
	err := ioutil.WriteFile(tmpdir+"/Model.csv", []byte(`ModelID,CellLineName,OncotreeLineage,Age
ACH-1,OVCAR-3,Ovary,60
ACH-2,A549,Lung,58
ACH-3,KURAMOCHI,Ovary,
ACH-4,COV362,Ovary,48
ACH-5,OVSAHO,Ovary,52
ACH-6,JHOS-2,Ovary,38
ACH-7,OVKATE,Ovary,44
`), 0644)
	c.Assert(err, check.IsNil)
	err = ioutil.WriteFile(tmpdir+"/OmicsSomaticMutations.csv", []byte(`ModelID,HugoSymbol,VariantInfo,ProteinChange
ACH-1,BRCA1,damaging,p.Q1756fs
ACH-1,RAD51C,truncating,p.R193*
ACH-2,BRCA1,damaging,p.E23fs
ACH-3,BRCA2,benign,p.N372H
ACH-4,BRCA2,hotspot,p.K3326*
ACH-5,TP53,damaging,p.R175H
`), 0644)
	c.Assert(err, check.IsNil)
	err = ioutil.WriteFile(tmpdir+"/CRISPRGeneEffect.csv", []byte(`ModelID,PARP1 (142),PARP2 (10038)
ACH-1,-0.82,-0.1
ACH-2,-0.95,0.0
ACH-3,-0.05,0.1
ACH-4,-0.64,-0.2
ACH-5,0.02,0.0
ACH-6,-0.11,0.1
`), 0644)
	c.Assert(err, check.IsNil)

	c.Log("=== cohort ===")
	exited := (&cohortcmd{}).RunCommand("cohort", []string{
		"-i", tmpdir + "/Model.csv",
		"-o", tmpdir + "/cohort.csv",
		"-lineage", "Ovary",
	}, bytes.NewReader(nil), os.Stderr, os.Stderr)
	c.Assert(exited, check.Equals, 0)
	checkArtifact(c, tmpdir+"/cohort.csv", `ModelID,CellLineName,OncotreeLineage,Age
ACH-1,OVCAR-3,Ovary,60
ACH-3,KURAMOCHI,Ovary,
ACH-4,COV362,Ovary,48
ACH-5,OVSAHO,Ovary,52
ACH-6,JHOS-2,Ovary,38
ACH-7,OVKATE,Ovary,44
`)

	c.Log("=== classify ===")
	exited = (&classifycmd{}).RunCommand("classify", []string{
		"-cohort", tmpdir + "/cohort.csv",
		"-mutations", tmpdir + "/OmicsSomaticMutations.csv",
		"-o", tmpdir + "/hr_status.csv",
	}, bytes.NewReader(nil), os.Stderr, os.Stderr)
	c.Assert(exited, check.Equals, 0)
	// ACH-2's damaging BRCA1 event is outside the cohort; ACH-3's
	// BRCA2 event is benign; ACH-5's damaging event is off-panel.
	checkArtifact(c, tmpdir+"/hr_status.csv", `ModelID,CellLineName,OncotreeLineage,is_deficient,status_label,evidence_genes
ACH-1,OVCAR-3,Ovary,true,deficient,"BRCA1,RAD51C"
ACH-3,KURAMOCHI,Ovary,false,proficient,
ACH-4,COV362,Ovary,true,deficient,BRCA2
ACH-5,OVSAHO,Ovary,false,proficient,
ACH-6,JHOS-2,Ovary,false,proficient,
ACH-7,OVKATE,Ovary,false,proficient,
`)

	c.Log("=== compare ===")
	exited = (&comparecmd{}).RunCommand("compare", []string{
		"-status", tmpdir + "/hr_status.csv",
		"-scores", tmpdir + "/CRISPRGeneEffect.csv",
		"-output-dir", tmpdir,
		"-numpy-out", tmpdir + "/scores.npy",
		"-gene", "PARP1",
	}, bytes.NewReader(nil), os.Stderr, os.Stderr)
	c.Assert(exited, check.Equals, 0)

	// ACH-7 has no score column entry and must be dropped.
	checkArtifact(c, tmpdir+"/dependency.csv", `ModelID,CellLineName,OncotreeLineage,is_deficient,status_label,evidence_genes,score
ACH-1,OVCAR-3,Ovary,true,deficient,"BRCA1,RAD51C",-0.82
ACH-3,KURAMOCHI,Ovary,false,proficient,,-0.05
ACH-4,COV362,Ovary,true,deficient,BRCA2,-0.64
ACH-5,OVSAHO,Ovary,false,proficient,,0.02
ACH-6,JHOS-2,Ovary,false,proficient,,-0.11
`)

	buf, err := ioutil.ReadFile(tmpdir + "/results.json")
	c.Assert(err, check.IsNil)
	var results ComparisonResults
	c.Assert(json.Unmarshal(buf, &results), check.IsNil)
	c.Check(results.Gene, check.Equals, "PARP1")
	c.Check(results.Lineage, check.Equals, "Ovary")
	c.Assert(results.Summaries, check.HasLen, 2)
	c.Check(results.Summaries[0].Label, check.Equals, "deficient")
	c.Check(results.Summaries[0].N, check.Equals, 2)
	c.Check(results.Summaries[1].Label, check.Equals, "proficient")
	c.Check(results.Summaries[1].N, check.Equals, 3)
	c.Assert(results.Test, check.NotNil)
	c.Check(float64(results.Test.P) > 0, check.Equals, true)
	c.Check(float64(results.Test.P) < 1, check.Equals, true)
	c.Check(float64(results.Test.Statistic) < 0, check.Equals, true)
	c.Assert(results.Model, check.NotNil)
	c.Check(float64(results.Model.Slope) > 0, check.Equals, true)

	// npy artifact exists and has the magic header
	npy, err := ioutil.ReadFile(tmpdir + "/scores.npy")
	c.Assert(err, check.IsNil)
	c.Check(len(npy) > 6, check.Equals, true)
	c.Check(string(npy[1:6]), check.Equals, "NUMPY")

	c.Log("=== compare (unknown gene) ===")
	stderr := &bytes.Buffer{}
	exited = (&comparecmd{}).RunCommand("compare", []string{
		"-status", tmpdir + "/hr_status.csv",
		"-scores", tmpdir + "/CRISPRGeneEffect.csv",
		"-output-dir", c.MkDir(),
		"-gene", "NOSUCHGENE",
	}, bytes.NewReader(nil), os.Stderr, stderr)
	c.Check(exited, check.Equals, 1)
	c.Check(stderr.String(), check.Matches, `(?s).*"NOSUCHGENE" not found.*`)
}

func (s *pipelineSuite) TestCompareInsufficientGroup(c *check.C) {
	tmpdir := c.MkDir()
	err := ioutil.WriteFile(tmpdir+"/hr_status.csv", []byte(`ModelID,CellLineName,OncotreeLineage,is_deficient,status_label,evidence_genes
ACH-1,OVCAR-3,Ovary,true,deficient,BRCA1
ACH-2,KURAMOCHI,Ovary,false,proficient,
ACH-3,COV362,Ovary,false,proficient,
`), 0644)
	c.Assert(err, check.IsNil)
	err = ioutil.WriteFile(tmpdir+"/scores.csv", []byte(`ModelID,PARP1 (142)
ACH-1,-0.8
ACH-2,0.0
ACH-3,0.1
`), 0644)
	c.Assert(err, check.IsNil)

	stderr := &bytes.Buffer{}
	exited := (&comparecmd{}).RunCommand("compare", []string{
		"-status", tmpdir + "/hr_status.csv",
		"-scores", tmpdir + "/scores.csv",
		"-output-dir", tmpdir,
	}, bytes.NewReader(nil), os.Stderr, stderr)
	// The test and model cannot run with one deficient observation...
	c.Check(exited, check.Equals, 1)
	c.Check(stderr.String(), check.Matches, `(?s).*"deficient" has 1 observation.*`)

	// ...but the descriptive artifacts were still written, with the
	// undefined stddev/stderr left empty rather than zero.
	summary, err := ReadTableFile(tmpdir + "/summary.csv")
	c.Assert(err, check.IsNil)
	c.Check(summary.Columns, check.DeepEquals, []string{"status_label", "n", "mean", "median", "stddev", "stderr"})
	c.Assert(summary.Rows, check.HasLen, 2)
	c.Check(summary.Rows[0], check.DeepEquals, []string{"deficient", "1", "-0.8", "-0.8", "", ""})
	c.Check(summary.Rows[1][:2], check.DeepEquals, []string{"proficient", "2"})
	c.Check(summary.Rows[1][4], check.Not(check.Equals), "")

	_, err = os.Stat(tmpdir + "/results.json")
	c.Check(os.IsNotExist(err), check.Equals, true)
}
