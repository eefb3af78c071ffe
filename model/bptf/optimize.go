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
	"fmt"

	"github.com/juju/errors"
	"go.uber.org/zap"

	"github.com/bayesflow/bptf/base"
	"github.com/bayesflow/bptf/base/log"
	"github.com/bayesflow/bptf/base/progress"
	"github.com/bayesflow/bptf/model"
	"github.com/bayesflow/bptf/tensor"
)

// ParamsSearchResult contains the return of hyper-parameter search. Lower
// held-out RMSE wins.
type ParamsSearchResult struct {
	BestScore  Score
	BestParams model.Params
	BestIndex  int
	Scores     []Score
	Params     []model.Params
}

func (r *ParamsSearchResult) addScore(params model.Params, score Score) {
	r.Scores = append(r.Scores, score)
	r.Params = append(r.Params, params.Copy())
	if len(r.Scores) == 1 || score.RMSE < r.BestScore.RMSE {
		r.BestScore = score
		r.BestParams = params.Copy()
		r.BestIndex = len(r.Params) - 1
	}
}

// GridSearchCV finds the best parameters for a model over the full grid.
func GridSearchCV(ctx context.Context, estimator *BPTF, data *tensor.Dataset,
	paramGrid model.ParamsGrid, fitConfig *FitConfig) (ParamsSearchResult, error) {
	// Retrieve parameter names and the grid size
	paramNames := make([]model.ParamName, 0, len(paramGrid))
	total := 1
	for paramName, values := range paramGrid {
		paramNames = append(paramNames, paramName)
		total *= len(values)
	}
	// Construct DFS procedure
	results := ParamsSearchResult{
		Scores: make([]Score, 0, total),
		Params: make([]model.Params, 0, total),
	}
	newCtx, span := progress.Start(ctx, "GridSearchCV", total)
	var dfs func(deep int, params model.Params) error
	dfs = func(deep int, params model.Params) error {
		if deep == len(paramNames) {
			log.Logger().Info(fmt.Sprintf("grid search (%v/%v)", span.Count()+1, total),
				zap.Any("params", params))
			estimator.Clear()
			estimator.SetParams(estimator.GetParams().Overwrite(params))
			score, err := estimator.Fit(newCtx, data, fitConfig)
			if err != nil && !errors.Is(err, ErrMAPEUndefined) {
				return errors.Trace(err)
			}
			results.addScore(params, score)
			span.Add(1)
			return nil
		}
		paramName := paramNames[deep]
		for _, val := range paramGrid[paramName] {
			params[paramName] = val
			if err := dfs(deep+1, params); err != nil {
				return errors.Trace(err)
			}
		}
		return nil
	}
	if err := dfs(0, make(model.Params)); err != nil {
		span.Fail(err)
		return results, errors.Trace(err)
	}
	span.End()
	return results, nil
}

// RandomSearchCV searches hyper-parameters by random sampling from the grid.
func RandomSearchCV(ctx context.Context, estimator *BPTF, data *tensor.Dataset,
	paramGrid model.ParamsGrid, numTrials int, seed int64, fitConfig *FitConfig) (ParamsSearchResult, error) {
	// if the number of combinations is less than the number of trials, use grid search
	if paramGrid.NumCombinations() < numTrials {
		return GridSearchCV(ctx, estimator, data, paramGrid, fitConfig)
	}
	rng := base.NewRandomGenerator(seed)
	results := ParamsSearchResult{
		Scores: make([]Score, 0, numTrials),
		Params: make([]model.Params, 0, numTrials),
	}
	newCtx, span := progress.Start(ctx, "RandomSearchCV", numTrials)
	for i := 1; i <= numTrials; i++ {
		params := model.Params{}
		for paramName, values := range paramGrid {
			params[paramName] = values[rng.Intn(len(values))]
		}
		log.Logger().Info(fmt.Sprintf("random search (%v/%v)", i, numTrials),
			zap.Any("params", params))
		estimator.Clear()
		estimator.SetParams(estimator.GetParams().Overwrite(params))
		score, err := estimator.Fit(newCtx, data, fitConfig)
		if err != nil && !errors.Is(err, ErrMAPEUndefined) {
			span.Fail(err)
			return results, errors.Trace(err)
		}
		results.addScore(params, score)
		span.Add(1)
	}
	span.End()
	return results, nil
}
