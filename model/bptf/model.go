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

// Package bptf implements Bayesian probabilistic tensor factorization:
// low-rank CP completion of a 3-D tensor under conjugate Normal-Wishart and
// Gamma priors, inferred by Gibbs sampling. The posterior mean over the
// collection sweeps is the point estimate for both the completed tensor and
// the per-mode factor matrices.
package bptf

import (
	"context"
	"fmt"
	"time"

	"github.com/juju/errors"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"github.com/bayesflow/bptf/base"
	"github.com/bayesflow/bptf/base/log"
	"github.com/bayesflow/bptf/base/progress"
	"github.com/bayesflow/bptf/model"
	"github.com/bayesflow/bptf/tensor"
)

// FitConfig carries runtime options of one fit, as opposed to the model
// hyper-parameters carried by model.Params.
type FitConfig struct {
	Jobs     int      // workers for row-parallel factor draws
	Verbose  int      // burn-in monitoring period in sweeps
	Strategy Strategy // row-statistics strategy, StrategyAuto by default
}

func NewFitConfig() *FitConfig {
	return &FitConfig{
		Jobs:    1,
		Verbose: 10,
	}
}

func (config *FitConfig) SetJobs(jobs int) *FitConfig {
	config.Jobs = jobs
	return config
}

func (config *FitConfig) SetVerbose(verbose int) *FitConfig {
	config.Verbose = verbose
	return config
}

func (config *FitConfig) SetStrategy(strategy Strategy) *FitConfig {
	config.Strategy = strategy
	return config
}

// BPTF is the Bayesian CP model. The three factor matrices are owned by the
// model and rewritten every sweep; all posterior-mean outputs are filled at
// the end of a successful fit.
type BPTF struct {
	model.BaseModel
	// resolved hyper-parameters
	nFactors     int
	burnIn       int
	nSamples     int
	beta0        float64
	nu0          float64
	alpha        float64
	beta         float64
	initLow      float64
	initHigh     float64
	memoryBudget float64
	// sampler state
	Factor [3]*mat.Dense
	tau    float64
	// posterior means
	MeanFactor [3]*mat.Dense
	MeanTensor *tensor.Dense
}

// NewBPTF creates a BPTF model from hyper-parameters.
func NewBPTF(params model.Params) *BPTF {
	b := new(BPTF)
	b.SetParams(params)
	return b
}

// SetParams sets hyper-parameters.
func (b *BPTF) SetParams(params model.Params) {
	b.BaseModel.SetParams(params)
	b.nFactors = params.GetInt(model.NFactors, 30)
	b.burnIn = params.GetInt(model.BurnIn, 1000)
	b.nSamples = params.GetInt(model.NSamples, 200)
	b.beta0 = params.GetFloat64(model.Beta0, 1)
	b.nu0 = params.GetFloat64(model.Nu0, float64(b.nFactors))
	b.alpha = params.GetFloat64(model.Alpha, 1e-6)
	b.beta = params.GetFloat64(model.Beta, 1e-6)
	b.initLow = params.GetFloat64(model.InitLow, 0)
	b.initHigh = params.GetFloat64(model.InitHigh, 0.1)
	b.memoryBudget = params.GetFloat64(model.MemoryBudget, 1e8)
}

// GetParamsGrid returns the default candidate grid for hyper-parameter search.
func (b *BPTF) GetParamsGrid() model.ParamsGrid {
	return model.ParamsGrid{
		model.NFactors: []interface{}{10, 20, 30, 50},
		model.Beta0:    []interface{}{0.1, 1.0, 10.0},
	}
}

// Clear drops model weights.
func (b *BPTF) Clear() {
	b.Factor = [3]*mat.Dense{}
	b.MeanFactor = [3]*mat.Dense{}
	b.MeanTensor = nil
	b.tau = 0
}

// Invalid reports whether the model has been cleared or never fitted.
func (b *BPTF) Invalid() bool {
	return b.MeanTensor == nil
}

// SetFactors installs warm-start factor matrices. Dimensions are validated
// eagerly against the configured rank.
func (b *BPTF) SetFactors(u, v, x *mat.Dense) error {
	for mode, factor := range []*mat.Dense{u, v, x} {
		_, cols := factor.Dims()
		if cols != b.nFactors {
			return errors.Errorf("rank mismatch: configured rank %d, mode %d factor has %d columns",
				b.nFactors, mode, cols)
		}
	}
	b.Factor = [3]*mat.Dense{u, v, x}
	return nil
}

// Predict returns the posterior-mean CP estimate of one entry. The model
// must have been fitted.
func (b *BPTF) Predict(i, j, t int) float64 {
	if b.Invalid() {
		log.Logger().Warn("predict on unfitted model")
		return 0
	}
	var sum float64
	for s := 0; s < b.nFactors; s++ {
		sum += b.MeanFactor[0].At(i, s) * b.MeanFactor[1].At(j, s) * b.MeanFactor[2].At(t, s)
	}
	return sum
}

// PosteriorMean returns the completed tensor and the posterior-mean factor
// matrices. Nil until the model is fitted.
func (b *BPTF) PosteriorMean() (*tensor.Dense, [3]*mat.Dense) {
	return b.MeanTensor, b.MeanFactor
}

func (b *BPTF) validate(data *tensor.Dataset) error {
	if data == nil || data.Sparse == nil {
		return errors.New("dataset is nil")
	}
	if b.nFactors <= 0 {
		return errors.Errorf("rank must be positive, got %d", b.nFactors)
	}
	if b.burnIn <= 0 {
		return errors.Errorf("burn-in sweeps must be positive, got %d", b.burnIn)
	}
	if b.nSamples <= 0 {
		return errors.Errorf("collection sweeps must be positive, got %d", b.nSamples)
	}
	for mode, factor := range b.Factor {
		if factor == nil {
			continue
		}
		rows, cols := factor.Dims()
		if cols != b.nFactors {
			return errors.Errorf("rank mismatch: configured rank %d, mode %d factor has %d columns",
				b.nFactors, mode, cols)
		}
		if dim := data.Sparse.Dim(mode); rows != dim {
			return errors.Errorf("dimension mismatch: tensor mode %d has size %d, factor has %d rows",
				mode, dim, rows)
		}
	}
	return nil
}

func (b *BPTF) init(data *tensor.Dataset, rng base.RandomGenerator) {
	b.tau = 1
	for mode := 0; mode < 3; mode++ {
		if b.Factor[mode] == nil {
			// small positive random values
			b.Factor[mode] = rng.UniformMatrix(data.Sparse.Dim(mode), b.nFactors, b.initLow, b.initHigh)
		}
	}
}

// Fit runs the Gibbs sampler: burnIn discarded sweeps followed by nSamples
// collection sweeps whose factor matrices and reconstructions are averaged
// into the posterior-mean outputs. Within a sweep the modes are updated in
// the fixed order 0,1,2 and each mode's hyperparameters are redrawn right
// before its factor draw, so later modes see the earlier modes' fresh
// values. The noise precision is redrawn once per sweep from the residual of
// the full reconstruction. Cancellation is honored only between sweeps; a
// numerical failure aborts with the sweep and mode attached.
func (b *BPTF) Fit(ctx context.Context, data *tensor.Dataset, config *FitConfig) (Score, error) {
	if config == nil {
		config = NewFitConfig()
	}
	if err := b.validate(data); err != nil {
		return Score{}, errors.Trace(err)
	}
	log.Logger().Info("fit bptf",
		zap.Int("train_set_size", data.TrainCount()),
		zap.Int("test_set_size", data.TestCount()),
		zap.Any("params", b.GetParams()),
		zap.Any("config", config))
	rng := b.GetRandomGenerator()
	b.init(data, rng)
	prior := newHyperPrior(b.nFactors, b.beta0, b.nu0)

	m, n, f := data.Sparse.Shape()
	sumFactor := [3]*mat.Dense{
		mat.NewDense(m, b.nFactors, nil),
		mat.NewDense(n, b.nFactors, nil),
		mat.NewDense(f, b.nFactors, nil),
	}
	sumTensor := tensor.NewDense(m, n, f)

	total := b.burnIn + b.nSamples
	_, span := progress.Start(ctx, "BPTF.Fit", total)
	for sweep := 1; sweep <= total; sweep++ {
		// between-sweep cancellation: stopping mid-sweep would leave the
		// factor state partially updated
		if ctx != nil {
			if err := ctx.Err(); err != nil {
				span.Fail(err)
				return Score{}, errors.Trace(err)
			}
		}
		fitStart := time.Now()
		for mode := 0; mode < 3; mode++ {
			mu, lambda, err := sampleHyper(b.Factor[mode], prior, rng.Rand)
			if err != nil {
				span.Fail(err)
				return Score{}, errors.Annotatef(err, "sweep %d mode %d", sweep, mode)
			}
			if err := b.sampleFactor(mode, data, mu, lambda, rng, config); err != nil {
				span.Fail(err)
				return Score{}, errors.Annotatef(err, "sweep %d mode %d", sweep, mode)
			}
		}
		estimate, err := tensor.CPCombine(b.Factor[0], b.Factor[1], b.Factor[2])
		if err != nil {
			span.Fail(err)
			return Score{}, errors.Annotatef(err, "sweep %d", sweep)
		}
		b.tau = samplePrecision(data, estimate, b.alpha, b.beta, rng.Rand)
		fitTime := time.Since(fitStart)

		if sweep <= b.burnIn {
			// monitoring only, no effect on sampling
			if (sweep%config.Verbose == 0 || sweep == b.burnIn) && data.TestCount() > 0 {
				score, err := Evaluate(estimate, data)
				if errors.Is(err, ErrMAPEUndefined) {
					log.Logger().Warn("MAPE undefined on test set", zap.Int("sweep", sweep))
				}
				log.Logger().Debug(fmt.Sprintf("burn-in %v/%v", sweep, b.burnIn),
					zap.String("fit_time", fitTime.String()),
					zap.Float64("RMSE", score.RMSE),
					zap.Float64("MAPE", score.MAPE),
					zap.Float64("tau", b.tau))
			}
		} else {
			for mode := 0; mode < 3; mode++ {
				sumFactor[mode].Add(sumFactor[mode], b.Factor[mode])
			}
			sumTensor.Add(estimate)
		}
		span.Add(1)
	}
	// finalize posterior means
	for mode := 0; mode < 3; mode++ {
		mean := &mat.Dense{}
		mean.Scale(1/float64(b.nSamples), sumFactor[mode])
		b.MeanFactor[mode] = mean
	}
	sumTensor.Scale(1 / float64(b.nSamples))
	b.MeanTensor = sumTensor
	span.End()

	if data.TestCount() == 0 {
		return Score{}, nil
	}
	score, err := Evaluate(b.MeanTensor, data)
	if err != nil && !errors.Is(err, ErrMAPEUndefined) {
		return score, errors.Trace(err)
	}
	log.Logger().Info("fit bptf complete",
		zap.Float64("RMSE", score.RMSE),
		zap.Float64("MAPE", score.MAPE))
	return score, errors.Trace(err)
}
