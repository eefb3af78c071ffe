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
	"github.com/juju/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/bayesflow/bptf/tensor"
)

// Strategy selects how the per-row sufficient statistics of a factor update
// are computed. Both strategies produce identical posterior parameters; only
// the cost profile differs.
type Strategy int

const (
	// StrategyAuto picks per mode based on the memory budget.
	StrategyAuto Strategy = iota
	// StrategyBatch materializes the full Khatri-Rao cofactor and computes
	// all rows' statistics with two matrix products. It needs an
	// intermediate of rank² columns per column of the unfolding.
	StrategyBatch
	// StrategyPerRow enumerates each row's observed entries directly and
	// accumulates its statistics by summation.
	StrategyPerRow
)

func (s Strategy) String() string {
	switch s {
	case StrategyAuto:
		return "auto"
	case StrategyBatch:
		return "batch"
	case StrategyPerRow:
		return "per-row"
	default:
		return "unknown"
	}
}

// chooseStrategy is the pure selection function for one mode's update: dim
// is the mode dimension, size the total tensor size and budget the maximum
// number of float64 elements the batch intermediates may occupy. The batch
// strategy allocates rank² statistics per column of the unfolding and per
// slice of the mode, so either side blowing the budget falls back to
// per-row accumulation. The default budget is a tuned constant, not a
// hardware invariant; override it through model.MemoryBudget.
func chooseStrategy(dim, rank, size int, budget float64) Strategy {
	rankSq := float64(rank) * float64(rank)
	unfoldCost := float64(size/dim) * rankSq
	sliceCost := float64(dim) * rankSq
	if unfoldCost <= budget && sliceCost <= budget {
		return StrategyBatch
	}
	return StrategyPerRow
}

// rowStats provides the τ-scaled sufficient statistics of one row's
// conditional posterior: prec = τ·Σ c·cᵀ and rhs = τ·Σ y·c over the row's
// observed entries, c being the matching Khatri-Rao cofactor row. Callers
// own the returned values and may mutate them.
type rowStats interface {
	rowStats(row int) (prec *mat.SymDense, rhs []float64)
}

func (b *BPTF) newRowStats(mode int, data *tensor.Dataset, strategy Strategy) (rowStats, error) {
	if strategy == StrategyAuto {
		strategy = chooseStrategy(data.Sparse.Dim(mode), b.nFactors, data.Sparse.Size(), b.memoryBudget)
	}
	a, c := cofactorModes[mode][0], cofactorModes[mode][1]
	switch strategy {
	case StrategyBatch:
		return newBatchProvider(mode, data, b.Factor[a], b.Factor[c], b.tau)
	case StrategyPerRow:
		return &perRowProvider{
			mode: mode,
			data: data,
			fa:   b.Factor[a],
			fb:   b.Factor[c],
			rank: b.nFactors,
			tau:  b.tau,
		}, nil
	default:
		return nil, errors.Errorf("unknown strategy %v", strategy)
	}
}

// batchProvider precomputes the statistics of every row at construction:
// s holds vec(c·cᵀ) summed over each row's observed columns, r holds Σ y·c.
type batchProvider struct {
	rank int
	tau  float64
	s    *mat.Dense // dim × rank²
	r    *mat.Dense // dim × rank
}

func newBatchProvider(mode int, data *tensor.Dataset, fa, fb *mat.Dense, tau float64) (*batchProvider, error) {
	cofactor, err := tensor.KhatriRao(fa, fb)
	if err != nil {
		return nil, errors.Trace(err)
	}
	cols, rank := cofactor.Dims()
	// outer-product rows of the cofactor, flattened to rank² columns
	outer := mat.NewDense(cols, rank*rank, nil)
	for row := 0; row < cols; row++ {
		for i := 0; i < rank; i++ {
			ci := cofactor.At(row, i)
			for j := 0; j < rank; j++ {
				outer.Set(row, i*rank+j, ci*cofactor.At(row, j))
			}
		}
	}
	p := &batchProvider{
		rank: rank,
		tau:  tau,
		s:    &mat.Dense{},
		r:    &mat.Dense{},
	}
	// the mask unfolding zeroes unobserved columns; the sparse unfolding
	// already carries zeros at missing entries
	p.s.Mul(data.Mask.Unfold(mode), outer)
	p.r.Mul(data.Sparse.Unfold(mode), cofactor)
	return p, nil
}

func (p *batchProvider) rowStats(row int) (*mat.SymDense, []float64) {
	prec := mat.NewSymDense(p.rank, nil)
	for i := 0; i < p.rank; i++ {
		for j := i; j < p.rank; j++ {
			// symmetrize (M+Mᵗ)/2 before the Cholesky-based draw
			v := 0.5 * (p.s.At(row, i*p.rank+j) + p.s.At(row, j*p.rank+i))
			prec.SetSym(i, j, p.tau*v)
		}
	}
	rhs := make([]float64, p.rank)
	for i := 0; i < p.rank; i++ {
		rhs[i] = p.tau * p.r.At(row, i)
	}
	return prec, rhs
}

// perRowProvider walks a row's observed entries straight off the dataset's
// per-mode index, trading the batch intermediates for per-row iteration.
type perRowProvider struct {
	mode   int
	data   *tensor.Dataset
	fa, fb *mat.Dense
	rank   int
	tau    float64
}

func (p *perRowProvider) rowStats(row int) (*mat.SymDense, []float64) {
	prec := mat.NewSymDense(p.rank, nil)
	rhs := make([]float64, p.rank)
	c := make([]float64, p.rank)
	for _, o := range p.data.Observed(p.mode, row) {
		for s := 0; s < p.rank; s++ {
			c[s] = p.fa.At(o.A, s) * p.fb.At(o.B, s)
		}
		for i := 0; i < p.rank; i++ {
			rhs[i] += p.tau * o.Value * c[i]
			for j := i; j < p.rank; j++ {
				prec.SetSym(i, j, prec.At(i, j)+p.tau*c[i]*c[j])
			}
		}
	}
	return prec, rhs
}
