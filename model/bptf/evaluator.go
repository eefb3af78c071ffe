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

	"github.com/juju/errors"

	"github.com/bayesflow/bptf/tensor"
)

// ErrMAPEUndefined is returned when a ground-truth value in the evaluation
// set is exactly zero: the relative error of such an entry has no defined
// value, and silently dropping it would bias the metric.
var ErrMAPEUndefined = errors.New("MAPE undefined: ground truth contains zero")

// Score is the held-out evaluation of a reconstruction.
type Score struct {
	RMSE float64
	MAPE float64
}

// RMSE computes the root mean squared error between truth and predictions.
func RMSE(truth, predictions []float64) float64 {
	var se float64
	for i := range truth {
		diff := truth[i] - predictions[i]
		se += diff * diff
	}
	return math.Sqrt(se / float64(len(truth)))
}

// MAPE computes the mean absolute percentage error between truth and
// predictions. A zero ground-truth value makes the metric undefined and is
// reported through ErrMAPEUndefined together with a NaN value.
func MAPE(truth, predictions []float64) (float64, error) {
	var ape float64
	for i := range truth {
		if truth[i] == 0 {
			return math.NaN(), errors.Trace(ErrMAPEUndefined)
		}
		ape += math.Abs((truth[i] - predictions[i]) / truth[i])
	}
	return ape / float64(len(truth)), nil
}

// Evaluate scores a reconstructed tensor over the dataset's held-out
// entries. The returned error is ErrMAPEUndefined when the test set carries
// a zero ground truth; RMSE is valid either way.
func Evaluate(estimate *tensor.Dense, data *tensor.Dataset) (Score, error) {
	testIndex := data.TestIndex()
	if len(testIndex) == 0 {
		return Score{}, errors.New("evaluate: empty test set")
	}
	truth := make([]float64, len(testIndex))
	predictions := make([]float64, len(testIndex))
	for i, idx := range testIndex {
		truth[i] = data.Reference.Data()[idx]
		predictions[i] = estimate.Data()[idx]
	}
	score := Score{RMSE: RMSE(truth, predictions)}
	var err error
	score.MAPE, err = MAPE(truth, predictions)
	return score, errors.Trace(err)
}
