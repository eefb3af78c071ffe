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
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bayesflow/bptf/base"
	"github.com/bayesflow/bptf/model"
	"github.com/bayesflow/bptf/tensor"
)

func TestChooseStrategy(t *testing.T) {
	// small problem fits the budget
	assert.Equal(t, StrategyBatch, chooseStrategy(10, 5, 10*20*30, 1e8))
	// unfolding intermediate blows the budget
	assert.Equal(t, StrategyPerRow, chooseStrategy(10, 100, 10*1000*1000, 1e8))
	// mode dimension blows the budget
	assert.Equal(t, StrategyPerRow, chooseStrategy(10*1000*1000, 100, 10*1000*1000*2, 1e8))
	// budget is configurable, not a hardware invariant
	assert.Equal(t, StrategyPerRow, chooseStrategy(10, 5, 10*20*30, 100))
}

func TestStrategyString(t *testing.T) {
	assert.Equal(t, "auto", StrategyAuto.String())
	assert.Equal(t, "batch", StrategyBatch.String())
	assert.Equal(t, "per-row", StrategyPerRow.String())
}

// Both strategies must produce identical sufficient statistics for every row
// of every mode on the same inputs.
func TestProvidersAgree(t *testing.T) {
	rng := base.NewRandomGenerator(7)
	reference := tensor.NewDenseFromData(5, 6, 7, rng.UniformVector(5*6*7, 1, 2))
	data, err := tensor.SplitMissing(reference, 0.3, 11)
	assert.NoError(t, err)

	b := NewBPTF(model.Params{model.NFactors: 4})
	b.Factor[0] = rng.UniformMatrix(5, 4, 0, 1)
	b.Factor[1] = rng.UniformMatrix(6, 4, 0, 1)
	b.Factor[2] = rng.UniformMatrix(7, 4, 0, 1)
	b.tau = 2.5

	for mode := 0; mode < 3; mode++ {
		batch, err := b.newRowStats(mode, data, StrategyBatch)
		assert.NoError(t, err)
		perRow, err := b.newRowStats(mode, data, StrategyPerRow)
		assert.NoError(t, err)
		for row := 0; row < data.Sparse.Dim(mode); row++ {
			precA, rhsA := batch.rowStats(row)
			precB, rhsB := perRow.rowStats(row)
			for i := 0; i < 4; i++ {
				assert.InDelta(t, rhsB[i], rhsA[i], 1e-9, "mode %d row %d", mode, row)
				for j := 0; j < 4; j++ {
					assert.InDelta(t, precB.At(i, j), precA.At(i, j), 1e-9, "mode %d row %d", mode, row)
				}
			}
		}
	}
}
