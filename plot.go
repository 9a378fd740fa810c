// Copyright (C) The hrdep Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package hrdep

import (
	_ "embed"
	"flag"
	"fmt"
	"io"
	"os/exec"
	"path/filepath"
	"strings"
)

// pythonPlot renders the dependency table as a score-by-status chart.
// Everything interesting happens in the embedded matplotlib script;
// nothing here feeds back into the pipeline.
type pythonPlot struct{}

//go:embed plot.py
var plotscript string

func (cmd *pythonPlot) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var err error
	defer func() {
		if err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
		}
	}()
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.SetOutput(stderr)
	inputFilename := flags.String("i", filepath.Join(defaultOutDir, "dependency.csv"), "dependency table `file`")
	outputFilename := flags.String("o", "", "output `filename` (e.g., './plot.png')")
	gene := flags.String("gene", defaultGene, "gene `symbol` for the axis label")
	err = flags.Parse(args)
	if err == flag.ErrHelp {
		err = nil
		return 0
	} else if err != nil {
		return 2
	}
	if *outputFilename == "" {
		fmt.Fprintln(stderr, "error: must specify -o filename.png (or try -help)")
		return 1
	}
	python := exec.Command("python3", "-", *inputFilename, *gene, *outputFilename)
	python.Stdin = strings.NewReader(plotscript)
	python.Stdout = stdout
	python.Stderr = stderr
	err = python.Run()
	if err != nil {
		return 1
	}
	return 0
}
