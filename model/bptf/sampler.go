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
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distmat"
	"gonum.org/v1/gonum/stat/distmv"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/bayesflow/bptf/base"
	"github.com/bayesflow/bptf/base/parallel"
	"github.com/bayesflow/bptf/tensor"
)

// ErrNotPositiveDefinite is returned when a precision matrix fails its
// Cholesky factorization even after symmetrization. The Gibbs chain cannot
// continue past it: a draw from a non-positive-definite precision would be
// garbage, so the run aborts with the sweep and mode attached.
var ErrNotPositiveDefinite = errors.New("precision matrix is not positive definite")

// cofactorModes maps each mode to the other two modes in ascending order,
// so the three symmetric factor updates share one code path.
var cofactorModes = [3][2]int{{1, 2}, {0, 2}, {0, 1}}

// hyperPrior holds the fixed hyper-hyperparameters of the Normal-Wishart
// prior on each mode's factor rows.
type hyperPrior struct {
	mu0   []float64     // prior mean, zero vector
	beta0 float64       // precision scale of the Gaussian hyper-prior
	nu0   float64       // Wishart degrees of freedom
	w0inv *mat.SymDense // inverse of the Wishart scale, identity by default
}

func newHyperPrior(rank int, beta0, nu0 float64) *hyperPrior {
	w0inv := mat.NewSymDense(rank, nil)
	for i := 0; i < rank; i++ {
		w0inv.SetSym(i, i, 1)
	}
	return &hyperPrior{
		mu0:   make([]float64, rank),
		beta0: beta0,
		nu0:   nu0,
		w0inv: w0inv,
	}
}

// sampleHyper draws a (mean, precision) pair for one mode from its
// Normal-Wishart conditional posterior given the mode's current factor
// matrix. The pair is redrawn fresh every sweep and never cached.
func sampleHyper(factor *mat.Dense, prior *hyperPrior, src rand.Source) (mu []float64, lambda *mat.SymDense, err error) {
	dim, rank := factor.Dims()
	rowMean := tensor.ColMean(factor)
	scatter := tensor.Scatter(factor)
	// W*⁻¹ = W0⁻¹ + S + (dim·β0/(dim+β0))·outer(m̄−μ0, m̄−μ0)
	coef := float64(dim) * prior.beta0 / (float64(dim) + prior.beta0)
	winv := mat.NewSymDense(rank, nil)
	for i := 0; i < rank; i++ {
		di := rowMean[i] - prior.mu0[i]
		for j := i; j < rank; j++ {
			dj := rowMean[j] - prior.mu0[j]
			winv.SetSym(i, j, prior.w0inv.At(i, j)+scatter.At(i, j)+coef*di*dj)
		}
	}
	wstar, err := invertSPD(winv)
	if err != nil {
		return nil, nil, errors.Trace(err)
	}
	wishart, ok := distmat.NewWishart(wstar, float64(dim)+prior.nu0, src)
	if !ok {
		return nil, nil, errors.Trace(ErrNotPositiveDefinite)
	}
	lambda = &mat.SymDense{}
	wishart.RandSymTo(lambda)
	// μ ~ N((dim·m̄ + β0·μ0)/(dim+β0), ((dim+β0)·Λ)⁻¹)
	muMean := make([]float64, rank)
	for i := range muMean {
		muMean[i] = (float64(dim)*rowMean[i] + prior.beta0*prior.mu0[i]) / (float64(dim) + prior.beta0)
	}
	muPrec := mat.NewSymDense(rank, nil)
	for i := 0; i < rank; i++ {
		for j := i; j < rank; j++ {
			muPrec.SetSym(i, j, (float64(dim)+prior.beta0)*lambda.At(i, j))
		}
	}
	normal, ok := distmv.NewNormalPrecision(muMean, muPrec, src)
	if !ok {
		return nil, nil, errors.Trace(ErrNotPositiveDefinite)
	}
	mu = normal.Rand(nil)
	return mu, lambda, nil
}

// samplePrecision draws the global noise precision τ from its Gamma
// conditional posterior over the train-set residual. The rate (not scale)
// parameterization is used. Called exactly once per sweep, after all three
// factor matrices have been updated.
func samplePrecision(data *tensor.Dataset, estimate *tensor.Dense, alpha, beta float64, src rand.Source) float64 {
	var sqErr float64
	var count int
	estimated := estimate.Data()
	for idx, y := range data.Sparse.Data() {
		if y != 0 {
			r := y - estimated[idx]
			sqErr += r * r
			count++
		}
	}
	gamma := distuv.Gamma{
		Alpha: alpha + 0.5*float64(count),
		Beta:  beta + 0.5*sqErr,
		Src:   src,
	}
	return gamma.Rand()
}

// sampleFactor redraws the full factor matrix of one mode from its
// conditional posterior. Rows are conditionally independent given everything
// else, so they are drawn in parallel; each row samples from its own
// deterministic sub-stream, which keeps the output invariant to the worker
// count under a fixed seed.
func (b *BPTF) sampleFactor(mode int, data *tensor.Dataset, mu []float64, lambda *mat.SymDense,
	rng base.RandomGenerator, config *FitConfig) error {
	dim := data.Sparse.Dim(mode)
	rank := b.nFactors
	provider, err := b.newRowStats(mode, data, config.Strategy)
	if err != nil {
		return errors.Trace(err)
	}
	// Λ_hyper·μ_hyper term shared by every row
	hyperTerm := mat.NewVecDense(rank, nil)
	hyperTerm.MulVec(lambda, mat.NewVecDense(rank, mu))
	seeds := rng.SubSeeds(dim)
	next := mat.NewDense(dim, rank, nil)
	err = parallel.Parallel(dim, config.Jobs, func(_, row int) error {
		prec, rhs := provider.rowStats(row)
		for i := 0; i < rank; i++ {
			rhs[i] += hyperTerm.AtVec(i)
			for j := i; j < rank; j++ {
				prec.SetSym(i, j, prec.At(i, j)+lambda.At(i, j))
			}
		}
		var chol mat.Cholesky
		if !chol.Factorize(prec) {
			return errors.Annotatef(ErrNotPositiveDefinite, "row %d", row)
		}
		var mean mat.VecDense
		if err := chol.SolveVecTo(&mean, mat.NewVecDense(rank, rhs)); err != nil {
			return errors.Trace(err)
		}
		normal, ok := distmv.NewNormalPrecision(mean.RawVector().Data, prec, base.NewSource(seeds[row]))
		if !ok {
			return errors.Annotatef(ErrNotPositiveDefinite, "row %d", row)
		}
		next.SetRow(row, normal.Rand(nil))
		return nil
	})
	if err != nil {
		return errors.Trace(err)
	}
	b.Factor[mode] = next
	return nil
}

// invertSPD inverts a symmetric positive definite matrix via Cholesky.
func invertSPD(s *mat.SymDense) (*mat.SymDense, error) {
	var chol mat.Cholesky
	if !chol.Factorize(s) {
		return nil, errors.Trace(ErrNotPositiveDefinite)
	}
	inv := mat.NewSymDense(s.Symmetric(), nil)
	if err := chol.InverseTo(inv); err != nil {
		return nil, errors.Trace(err)
	}
	return inv, nil
}
