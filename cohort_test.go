// Copyright (C) The hrdep Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package hrdep

import (
	"bytes"
	"errors"
	"strings"

	"gopkg.in/check.v1"
)

type cohortSuite struct{}

var _ = check.Suite(&cohortSuite{})

const metadataCSV = `ModelID,CellLineName,OncotreeLineage,Age,Sex
ACH-000001,OVCAR-3,Ovary,60,Female
ACH-000002,A549,Lung,58,Male
ACH-000003,KURAMOCHI,Ovary,,Female
ACH-000004,SK-MEL-28,Skin,51,Male
`

func (s *cohortSuite) TestFilterCohort(c *check.C) {
	t, err := ReadTable(strings.NewReader(metadataCSV), false)
	c.Assert(err, check.IsNil)

	cohort, err := FilterCohort(t, "Ovary")
	c.Assert(err, check.IsNil)
	c.Check(cohort.Columns, check.DeepEquals, t.Columns)
	c.Assert(cohort.Rows, check.HasLen, 2)
	c.Check(cohort.Rows[0][0], check.Equals, "ACH-000001")
	c.Check(cohort.Rows[1][0], check.Equals, "ACH-000003")
	// all original columns pass through
	c.Check(cohort.Rows[0][4], check.Equals, "Female")
}

func (s *cohortSuite) TestFilterCohortEmpty(c *check.C) {
	t, err := ReadTable(strings.NewReader(metadataCSV), false)
	c.Assert(err, check.IsNil)

	cohort, err := FilterCohort(t, "Bone")
	c.Assert(err, check.IsNil)
	c.Check(cohort.Rows, check.HasLen, 0)
}

func (s *cohortSuite) TestFilterCohortMissingColumn(c *check.C) {
	t, err := ReadTable(strings.NewReader("ModelID,CellLineName\nACH-000001,OVCAR-3\n"), false)
	c.Assert(err, check.IsNil)

	_, err = FilterCohort(t, "Ovary")
	var serr *SchemaError
	c.Assert(errors.As(err, &serr), check.Equals, true)
	c.Check(serr.Column, check.Equals, "OncotreeLineage")
}

func (s *cohortSuite) TestTableGzipRoundTrip(c *check.C) {
	t, err := ReadTable(strings.NewReader(metadataCSV), false)
	c.Assert(err, check.IsNil)

	var buf bytes.Buffer
	c.Assert(WriteTable(&buf, t, true), check.IsNil)
	t2, err := ReadTable(&buf, true)
	c.Assert(err, check.IsNil)
	c.Check(t2.Columns, check.DeepEquals, t.Columns)
	c.Check(t2.Rows, check.DeepEquals, t.Rows)
}
