// Copyright (C) The hrdep Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package hrdep

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/kshedden/gonpy"
	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// jsonFloat marshals NaN as null so undefined statistics are never
// serialized as a fabricated number.
type jsonFloat float64

func (f jsonFloat) MarshalJSON() ([]byte, error) {
	if math.IsNaN(float64(f)) || math.IsInf(float64(f), 0) {
		return []byte("null"), nil
	}
	return json.Marshal(float64(f))
}

// GroupSummary holds descriptive statistics for one status group.
// StdDev is the sample standard deviation (denominator n-1); it and
// StdErr are NaN when N < 2.
type GroupSummary struct {
	Label  string    `json:"status_label"`
	N      int       `json:"n"`
	Mean   jsonFloat `json:"mean"`
	Median jsonFloat `json:"median"`
	StdDev jsonFloat `json:"stddev"`
	StdErr jsonFloat `json:"stderr"`
}

// TestResult is the one-tailed Welch test of the alternative
// "deficient mean < proficient mean". UpperBound is the 95% one-sided
// upper confidence bound on (deficient mean - proficient mean).
type TestResult struct {
	Statistic   jsonFloat `json:"statistic"`
	DF          jsonFloat `json:"df"`
	P           jsonFloat `json:"p_value"`
	UpperBound  jsonFloat `json:"upper_bound_95"`
	Alternative string    `json:"alternative"`
}

// ModelResult is the single-predictor OLS effect model. The predictor
// is 1 for proficient samples, so Intercept is the deficient group
// mean and Slope is (proficient mean - deficient mean): positive slope
// agrees with the test's alternative direction.
type ModelResult struct {
	Intercept   jsonFloat `json:"intercept"`
	Slope       jsonFloat `json:"slope"`
	SlopeLow    jsonFloat `json:"slope_ci_low"`
	SlopeHigh   jsonFloat `json:"slope_ci_high"`
	RSquared    jsonFloat `json:"r_squared"`
	AdjRSquared jsonFloat `json:"adj_r_squared"`
}

// ComparisonResults is the statistical results bundle written as JSON.
type ComparisonResults struct {
	Gene      string         `json:"gene"`
	Lineage   string         `json:"lineage,omitempty"`
	Summaries []GroupSummary `json:"summary"`
	Test      *TestResult    `json:"test"`
	Model     *ModelResult   `json:"model"`
}

// ResolveScoreColumn locates the score matrix column for the given
// gene symbol. Matrix columns are named "SYMBOL (ID)"; the symbol
// token before " (" must match exactly -- substring matching would let
// PARP1 select PARP12. Zero or multiple matches are fatal.
func ResolveScoreColumn(columns []string, gene string) (int, error) {
	found := -1
	var matches []string
	for i, name := range columns {
		token := name
		if j := strings.Index(name, " ("); j >= 0 {
			token = name[:j]
		}
		if token == gene {
			matches = append(matches, name)
			if found < 0 {
				found = i
			}
		}
	}
	if len(matches) != 1 {
		return -1, &GeneNotFoundError{Gene: gene, Candidates: matches}
	}
	return found, nil
}

// ReadScoreColumn streams the score matrix, keeping only the sample id
// and the target gene's column. Empty and non-numeric cells count as
// missing and are omitted from the returned map.
func ReadScoreColumn(rdr io.Reader, gz bool, gene string) (map[string]float64, error) {
	if gz {
		zr, err := newPgzipReader(rdr)
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		rdr = zr
	}
	csvr := csv.NewReader(rdr)
	csvr.FieldsPerRecord = -1
	header, err := csvr.Read()
	if err != nil {
		return nil, fmt.Errorf("read score matrix header: %w", err)
	}
	idCol := -1
	for i, name := range header {
		if name == colSampleID {
			idCol = i
			break
		}
	}
	if idCol < 0 {
		return nil, &SchemaError{Column: colSampleID}
	}
	scoreCol, err := ResolveScoreColumn(header, gene)
	if err != nil {
		return nil, err
	}
	log.Infof("resolved gene %s to score column %q", gene, header[scoreCol])

	scores := map[string]float64{}
	for {
		rec, err := csvr.Read()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, err
		}
		if len(rec) <= idCol || len(rec) <= scoreCol {
			continue
		}
		v, err := strconv.ParseFloat(rec[scoreCol], 64)
		if err != nil || math.IsNaN(v) {
			continue
		}
		scores[rec[idCol]] = v
	}
	return scores, nil
}

// JoinScores inner-joins the HR status table with the score map: one
// output row per status row whose sample has a score, original columns
// plus a trailing "score" column. It also returns the scores grouped
// by status label.
func JoinScores(status *Table, scores map[string]float64) (*Table, map[string][]float64, error) {
	idCol, err := status.Column(colSampleID)
	if err != nil {
		return nil, nil, err
	}
	labelCol, err := status.Column("status_label")
	if err != nil {
		return nil, nil, err
	}
	out := &Table{Columns: append(append([]string{}, status.Columns...), "score")}
	groups := map[string][]float64{}
	for _, row := range status.Rows {
		score, ok := scores[row[idCol]]
		if !ok {
			continue
		}
		out.Rows = append(out.Rows, append(append([]string{}, row...), strconv.FormatFloat(score, 'g', -1, 64)))
		groups[row[labelCol]] = append(groups[row[labelCol]], score)
	}
	return out, groups, nil
}

// Summarize computes descriptive statistics for one group. With fewer
// than 2 observations the standard deviation is undefined and
// propagates as NaN, never zero.
func Summarize(label string, scores []float64) GroupSummary {
	s := GroupSummary{Label: label, N: len(scores)}
	if len(scores) == 0 {
		s.Mean, s.Median, s.StdDev, s.StdErr = jsonFloat(math.NaN()), jsonFloat(math.NaN()), jsonFloat(math.NaN()), jsonFloat(math.NaN())
		return s
	}
	s.Mean = jsonFloat(stat.Mean(scores, nil))
	s.Median = jsonFloat(median(scores))
	if len(scores) < 2 {
		s.StdDev = jsonFloat(math.NaN())
		s.StdErr = jsonFloat(math.NaN())
		return s
	}
	sd := stat.StdDev(scores, nil)
	s.StdDev = jsonFloat(sd)
	s.StdErr = jsonFloat(sd / math.Sqrt(float64(len(scores))))
	return s
}

func median(scores []float64) float64 {
	sorted := append([]float64{}, scores...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// WelchTest runs the unequal-variance two-sample t-test with
// alternative "deficient mean < proficient mean". Both groups need at
// least 2 observations.
func WelchTest(deficient, proficient []float64) (*TestResult, error) {
	if err := needTwo(deficient, proficient); err != nil {
		return nil, err
	}
	md, vd := stat.MeanVariance(deficient, nil)
	mp, vp := stat.MeanVariance(proficient, nil)
	nd, np := float64(len(deficient)), float64(len(proficient))

	se2 := vd/nd + vp/np
	se := math.Sqrt(se2)
	t := (md - mp) / se
	// Welch-Satterthwaite degrees of freedom.
	df := se2 * se2 / (vd*vd/(nd*nd*(nd-1)) + vp*vp/(np*np*(np-1)))

	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	return &TestResult{
		Statistic:   jsonFloat(t),
		DF:          jsonFloat(df),
		P:           jsonFloat(dist.CDF(t)),
		UpperBound:  jsonFloat(md - mp + dist.Quantile(0.95)*se),
		Alternative: labelDeficient + " mean < " + labelProficient + " mean",
	}, nil
}

// FitEffectModel fits score ~ intercept + slope*x by ordinary least
// squares, where x is 1 for proficient samples and 0 for deficient
// ones. Both groups need at least 2 observations.
func FitEffectModel(deficient, proficient []float64) (*ModelResult, error) {
	if err := needTwo(deficient, proficient); err != nil {
		return nil, err
	}
	var score, x []float64
	score = append(append(score, deficient...), proficient...)
	for range deficient {
		x = append(x, 0)
	}
	for range proficient {
		x = append(x, 1)
	}
	intercept, slope, slopeSE, err := fitOLS(score, x)
	if err != nil {
		return nil, err
	}

	n := float64(len(score))
	mean := stat.Mean(score, nil)
	var rss, tss float64
	for i, y := range score {
		r := y - (intercept + slope*x[i])
		rss += r * r
		d := y - mean
		tss += d * d
	}
	r2 := 1 - rss/tss
	tdist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: n - 2}
	q := tdist.Quantile(0.975)
	return &ModelResult{
		Intercept:   jsonFloat(intercept),
		Slope:       jsonFloat(slope),
		SlopeLow:    jsonFloat(slope - q*slopeSE),
		SlopeHigh:   jsonFloat(slope + q*slopeSE),
		RSquared:    jsonFloat(r2),
		AdjRSquared: jsonFloat(1 - (1-r2)*(n-1)/(n-2)),
	}, nil
}

func needTwo(deficient, proficient []float64) error {
	if len(deficient) < 2 {
		return &InsufficientDataError{Label: labelDeficient, N: len(deficient)}
	}
	if len(proficient) < 2 {
		return &InsufficientDataError{Label: labelProficient, N: len(proficient)}
	}
	return nil
}

// comparecmd is the final stage: it joins the resolved score column to
// the HR status table and writes the dependency table, the group
// summary table, and the statistical results bundle.
type comparecmd struct {
	gene string
}

func (cmd *comparecmd) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var err error
	defer func() {
		if err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
		}
	}()
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.SetOutput(stderr)
	statusFilename := flags.String("status", filepath.Join(defaultOutDir, "hr_status.csv"), "HR status `file` written by the classify stage")
	scoresFilename := flags.String("scores", filepath.Join(defaultRawDir, scoreMatrixFile), "gene effect score matrix `file`")
	outputDir := flags.String("output-dir", defaultOutDir, "output `directory`")
	numpyFilename := flags.String("numpy-out", "", "also write joined scores as a npy `file`")
	flags.StringVar(&cmd.gene, "gene", defaultGene, "target dependency gene `symbol`")
	err = flags.Parse(args)
	if err == flag.ErrHelp {
		err = nil
		return 0
	} else if err != nil {
		return 2
	}

	status, err := ReadTableFile(*statusFilename)
	if err != nil {
		return 1
	}

	f, err := os.Open(*scoresFilename)
	if err != nil {
		return 1
	}
	scores, err := ReadScoreColumn(f, strings.HasSuffix(*scoresFilename, ".gz"), cmd.gene)
	f.Close()
	if err != nil {
		err = fmt.Errorf("%s: %w", *scoresFilename, err)
		return 1
	}

	joined, groups, err := JoinScores(status, scores)
	if err != nil {
		err = fmt.Errorf("%s: %w", *statusFilename, err)
		return 1
	}
	log.Infof("%d of %d cohort samples have a %s score", len(joined.Rows), len(status.Rows), cmd.gene)

	err = os.MkdirAll(*outputDir, 0777)
	if err != nil {
		return 1
	}
	err = WriteTableFile(filepath.Join(*outputDir, "dependency.csv"), joined)
	if err != nil {
		return 1
	}
	if *numpyFilename != "" {
		err = writeScoresNpy(*numpyFilename, joined)
		if err != nil {
			return 1
		}
	}

	deficient, proficient := groups[labelDeficient], groups[labelProficient]
	summaries := []GroupSummary{
		Summarize(labelDeficient, deficient),
		Summarize(labelProficient, proficient),
	}
	err = writeSummaryTable(filepath.Join(*outputDir, "summary.csv"), summaries)
	if err != nil {
		return 1
	}
	for _, s := range summaries {
		log.Infof("%s: n=%d mean=%g median=%g stddev=%g stderr=%g", s.Label, s.N, s.Mean, s.Median, s.StdDev, s.StdErr)
	}

	// Descriptive artifacts above are written even if the groups are
	// too small for the test; the error below is still fatal.
	test, err := WelchTest(deficient, proficient)
	if err != nil {
		return 1
	}
	model, err := FitEffectModel(deficient, proficient)
	if err != nil {
		return 1
	}
	log.Infof("welch t=%g df=%g p=%g", test.Statistic, test.DF, test.P)
	log.Infof("effect model slope=%g (95%% CI %g..%g) r2=%g", model.Slope, model.SlopeLow, model.SlopeHigh, model.RSquared)

	results := ComparisonResults{
		Gene:      cmd.gene,
		Lineage:   statusLineage(status),
		Summaries: summaries,
		Test:      test,
		Model:     model,
	}
	err = writeResults(filepath.Join(*outputDir, "results.json"), &results)
	if err != nil {
		return 1
	}
	return 0
}

// statusLineage returns the cohort lineage recorded in the status
// table, for provenance in the results bundle.
func statusLineage(status *Table) string {
	col, err := status.Column(colLineage)
	if err != nil || len(status.Rows) == 0 {
		return ""
	}
	return status.Rows[0][col]
}

func writeSummaryTable(path string, summaries []GroupSummary) error {
	t := &Table{Columns: []string{"status_label", "n", "mean", "median", "stddev", "stderr"}}
	for _, s := range summaries {
		t.Rows = append(t.Rows, []string{
			s.Label,
			strconv.Itoa(s.N),
			formatStat(s.Mean),
			formatStat(s.Median),
			formatStat(s.StdDev),
			formatStat(s.StdErr),
		})
	}
	return WriteTableFile(path, t)
}

// formatStat renders an undefined statistic as an empty cell.
func formatStat(f jsonFloat) string {
	if math.IsNaN(float64(f)) {
		return ""
	}
	return strconv.FormatFloat(float64(f), 'g', -1, 64)
}

func writeResults(path string, results *ComparisonResults) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0666)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	err = enc.Encode(results)
	if err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

// writeScoresNpy writes the joined table's score column as a float64
// npy vector, in table row order, for downstream numeric tooling.
func writeScoresNpy(path string, joined *Table) error {
	scoreCol, err := joined.Column("score")
	if err != nil {
		return err
	}
	data := make([]float64, 0, len(joined.Rows))
	for _, row := range joined.Rows {
		v, err := strconv.ParseFloat(row[scoreCol], 64)
		if err != nil {
			return fmt.Errorf("%s: bad score %q: %w", path, row[scoreCol], err)
		}
		data = append(data, v)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0666)
	if err != nil {
		return err
	}
	bufw := bufio.NewWriter(f)
	npw, err := gonpy.NewWriter(nopCloser{bufw})
	if err != nil {
		f.Close()
		return fmt.Errorf("gonpy.NewWriter: %w", err)
	}
	npw.Shape = []int{len(data)}
	err = npw.WriteFloat64(data)
	if err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err = bufw.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }
