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
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bayesflow/bptf/model"
	"github.com/bayesflow/bptf/tensor"
)

func searchFixture(t *testing.T) *tensor.Dataset {
	reference := lowRankTensor(t, 9, 5, 6, 7, 2)
	data, err := tensor.SplitMissing(reference, 0.2, 10)
	assert.NoError(t, err)
	return data
}

func TestGridSearchCV(t *testing.T) {
	data := searchFixture(t)
	estimator := NewBPTF(model.Params{
		model.BurnIn:      15,
		model.NSamples:    10,
		model.RandomState: int64(0),
	})
	grid := model.ParamsGrid{
		model.NFactors: []interface{}{2, 3},
		model.Beta0:    []interface{}{1.0},
	}
	result, err := GridSearchCV(context.Background(), estimator, data, grid, NewFitConfig())
	assert.NoError(t, err)
	assert.Len(t, result.Scores, 2)
	assert.Len(t, result.Params, 2)
	for _, score := range result.Scores {
		assert.GreaterOrEqual(t, score.RMSE, result.BestScore.RMSE)
	}
	assert.Equal(t, result.Scores[result.BestIndex].RMSE, result.BestScore.RMSE)
	assert.Contains(t, result.BestParams, model.NFactors)
}

func TestRandomSearchCV(t *testing.T) {
	data := searchFixture(t)
	estimator := NewBPTF(model.Params{
		model.BurnIn:      15,
		model.NSamples:    10,
		model.RandomState: int64(0),
	})
	grid := model.ParamsGrid{
		model.NFactors: []interface{}{2, 3},
	}
	// more trials than combinations falls back to grid search
	result, err := RandomSearchCV(context.Background(), estimator, data, grid, 10, 0, NewFitConfig())
	assert.NoError(t, err)
	assert.Len(t, result.Scores, 2)

	// random sampling from a larger grid
	grid = model.ParamsGrid{
		model.NFactors: []interface{}{2, 3},
		model.Beta0:    []interface{}{0.5, 1.0, 2.0},
	}
	result, err = RandomSearchCV(context.Background(), estimator, data, grid, 3, 0, NewFitConfig())
	assert.NoError(t, err)
	assert.Len(t, result.Scores, 3)
}
