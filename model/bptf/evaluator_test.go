// Copyright 2024 bptf Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package bptf

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bayesflow/bptf/tensor"
)

func TestRMSE(t *testing.T) {
	truth := []float64{1, 2, 3}
	predictions := []float64{1, 2, 3}
	assert.Equal(t, 0.0, RMSE(truth, predictions))
	predictions = []float64{2, 3, 4}
	assert.InDelta(t, 1, RMSE(truth, predictions), 1e-12)
}

func TestMAPE(t *testing.T) {
	truth := []float64{1, 2, 4}
	predictions := []float64{2, 1, 3}
	mape, err := MAPE(truth, predictions)
	assert.NoError(t, err)
	assert.InDelta(t, (1+0.5+0.25)/3, mape, 1e-12)
}

func TestMAPEUndefined(t *testing.T) {
	mape, err := MAPE([]float64{1, 0, 2}, []float64{1, 1, 2})
	assert.ErrorIs(t, err, ErrMAPEUndefined)
	assert.True(t, math.IsNaN(mape))
}

func TestEvaluate(t *testing.T) {
	reference := tensor.NewDense(2, 2, 2)
	sparse := tensor.NewDense(2, 2, 2)
	for idx := range reference.Data() {
		reference.Data()[idx] = float64(idx + 1)
		sparse.Data()[idx] = float64(idx + 1)
	}
	// hide two entries
	sparse.Data()[3] = 0
	sparse.Data()[6] = 0
	data, err := tensor.NewDataset(sparse, reference)
	assert.NoError(t, err)

	// a perfect estimate scores zero
	score, err := Evaluate(reference, data)
	assert.NoError(t, err)
	assert.Equal(t, 0.0, score.RMSE)
	assert.Equal(t, 0.0, score.MAPE)

	// a degraded estimate scores worse
	estimate := reference.Clone()
	estimate.Data()[3] += 2
	estimate.Data()[6] += 2
	score, err = Evaluate(estimate, data)
	assert.NoError(t, err)
	assert.InDelta(t, 2, score.RMSE, 1e-12)
	assert.Greater(t, score.MAPE, 0.0)
}

func TestEvaluateEmptyTestSet(t *testing.T) {
	reference := tensor.NewDense(2, 2, 2)
	for idx := range reference.Data() {
		reference.Data()[idx] = 1
	}
	data, err := tensor.NewDataset(reference, reference)
	assert.NoError(t, err)
	_, err = Evaluate(reference, data)
	assert.Error(t, err)
}
