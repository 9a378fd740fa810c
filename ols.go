// Copyright (C) The hrdep Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package hrdep

import (
	"fmt"
	"io"
	"log"

	"github.com/kshedden/statmodel/glm"
	"github.com/kshedden/statmodel/statmodel"
)

var olsConfig = &glm.Config{
	Family:    glm.NewFamily(glm.GaussianFamily),
	FitMethod: "IRLS",
	Log:       log.New(io.Discard, "", 0),
}

// fitOLS fits score = intercept + slope*x by least squares (a
// Gaussian-family GLM converges to the OLS solution) and returns the
// coefficients plus the slope's standard error.
func fitOLS(score, x []float64) (intercept, slope, slopeSE float64, err error) {
	defer func() {
		if recover() != nil {
			// typically "matrix singular or near-singular"
			err = fmt.Errorf("effect model: singular fit (are all scores in one group identical?)")
		}
	}()

	n := len(score)
	outcome := make([]statmodel.Dtype, n)
	icept := make([]statmodel.Dtype, n)
	pred := make([]statmodel.Dtype, n)
	for i := range score {
		outcome[i] = statmodel.Dtype(score[i])
		icept[i] = 1
		pred[i] = statmodel.Dtype(x[i])
	}
	data := [][]statmodel.Dtype{outcome, icept, pred}
	names := []string{"score", "icept", "proficient"}
	dataset := statmodel.NewDataset(data, names)

	model, err := glm.NewGLM(dataset, "score", names[1:], olsConfig)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("effect model: %w", err)
	}
	result := model.Fit()
	params := result.Params()
	stderrs := result.StdErr()
	return float64(params[0]), float64(params[1]), float64(stderrs[1]), nil
}
