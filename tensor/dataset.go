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

package tensor

import (
	"github.com/bits-and-blooms/bitset"
	"github.com/juju/errors"

	"github.com/bayesflow/bptf/base"
)

// Observation is one observed entry seen from a fixed mode: A and B index
// the two cofactor modes in ascending mode order.
type Observation struct {
	A, B  int
	Value float64
}

// Dataset holds a sparse observation tensor together with the train/test
// index sets derived from it. The train set contains every nonzero entry of
// the sparse tensor; the test set contains entries that are observed in the
// reference tensor but zero in the sparse one. Both sets are computed once
// by NewDataset and never change, so they are disjoint for the lifetime of
// the dataset.
type Dataset struct {
	Sparse    *Dense // observations, zero = missing
	Reference *Dense // fully observed ground truth, nil if unavailable
	Mask      *Dense // 1 at train entries, 0 elsewhere

	trainSet  *bitset.BitSet
	testIndex []int
	modeIndex [3][][]Observation
}

// NewDataset builds the immutable train/test split. reference may be nil
// when no held-out evaluation is wanted.
func NewDataset(sparse, reference *Dense) (*Dataset, error) {
	if sparse == nil {
		return nil, errors.New("dataset: sparse tensor is nil")
	}
	if reference != nil {
		sm, sn, sf := sparse.Shape()
		rm, rn, rf := reference.Shape()
		if sm != rm || sn != rn || sf != rf {
			return nil, errors.Errorf("dataset: shape mismatch between sparse (%d,%d,%d) and reference (%d,%d,%d)",
				sm, sn, sf, rm, rn, rf)
		}
	}
	d := &Dataset{
		Sparse:    sparse,
		Reference: reference,
		Mask:      NewDense(sparse.m, sparse.n, sparse.f),
		trainSet:  bitset.New(uint(sparse.Size())),
	}
	for i := 0; i < sparse.m; i++ {
		d.modeIndex[0] = append(d.modeIndex[0], nil)
	}
	for j := 0; j < sparse.n; j++ {
		d.modeIndex[1] = append(d.modeIndex[1], nil)
	}
	for k := 0; k < sparse.f; k++ {
		d.modeIndex[2] = append(d.modeIndex[2], nil)
	}
	for idx, y := range sparse.data {
		if y != 0 {
			i, j, k := sparse.Coordinate(idx)
			d.trainSet.Set(uint(idx))
			d.Mask.data[idx] = 1
			d.modeIndex[0][i] = append(d.modeIndex[0][i], Observation{A: j, B: k, Value: y})
			d.modeIndex[1][j] = append(d.modeIndex[1][j], Observation{A: i, B: k, Value: y})
			d.modeIndex[2][k] = append(d.modeIndex[2][k], Observation{A: i, B: j, Value: y})
		} else if reference != nil && reference.data[idx] != 0 {
			d.testIndex = append(d.testIndex, idx)
		}
	}
	return d, nil
}

// TrainCount returns the number of observed (train) entries.
func (d *Dataset) TrainCount() int {
	return int(d.trainSet.Count())
}

// TestCount returns the number of held-out entries.
func (d *Dataset) TestCount() int {
	return len(d.testIndex)
}

// TestIndex returns the flattened indices of the held-out entries.
func (d *Dataset) TestIndex() []int {
	return d.testIndex
}

// IsTrain reports whether a flattened index belongs to the train set.
func (d *Dataset) IsTrain(idx int) bool {
	return d.trainSet.Test(uint(idx))
}

// Observed returns the observed entries of one slice of a mode: for mode k
// and slice index i, the entries (a, b, value) with a and b indexing the
// other two modes in ascending order.
func (d *Dataset) Observed(mode, i int) []Observation {
	return d.modeIndex[mode][i]
}

// SplitMissing hides a fraction of the observed entries of a fully observed
// tensor and returns the resulting dataset: the hidden entries become the
// test set, the rest the train set. Sampling is seeded and reproducible.
func SplitMissing(reference *Dense, ratio float64, seed int64) (*Dataset, error) {
	if ratio < 0 || ratio >= 1 {
		return nil, errors.Errorf("split: ratio %v out of [0, 1)", ratio)
	}
	observed := make([]int, 0, reference.Size())
	for idx, y := range reference.data {
		if y != 0 {
			observed = append(observed, idx)
		}
	}
	rng := base.NewRandomGenerator(seed)
	hidden := rng.Sample(0, len(observed), int(float64(len(observed))*ratio))
	sparse := reference.Clone()
	for _, pos := range hidden {
		sparse.data[observed[pos]] = 0
	}
	return NewDataset(sparse, reference)
}
