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
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"

	"github.com/bayesflow/bptf/base"
)

func TestKhatriRao(t *testing.T) {
	a := mat.NewDense(2, 2, []float64{1, 2, 3, 4})
	b := mat.NewDense(3, 2, []float64{5, 6, 7, 8, 9, 10})
	c, err := KhatriRao(a, b)
	assert.NoError(t, err)
	expected := mat.NewDense(6, 2, []float64{
		5, 12,
		7, 16,
		9, 20,
		15, 24,
		21, 32,
		27, 40,
	})
	assert.True(t, mat.Equal(expected, c))
}

func TestKhatriRaoMismatch(t *testing.T) {
	a := mat.NewDense(2, 2, nil)
	b := mat.NewDense(3, 3, nil)
	_, err := KhatriRao(a, b)
	assert.Error(t, err)
}

func TestCPCombine(t *testing.T) {
	u := mat.NewDense(2, 2, []float64{1, 2, 3, 4})
	v := mat.NewDense(3, 2, []float64{1, 3, 2, 4, 5, 6})
	x := mat.NewDense(4, 2, []float64{1, 5, 2, 6, 3, 7, 4, 8})
	got, err := CPCombine(u, v, x)
	assert.NoError(t, err)
	m, n, f := got.Shape()
	assert.Equal(t, 2, m)
	assert.Equal(t, 3, n)
	assert.Equal(t, 4, f)
	// expected[t][i][j]
	expected := [4][2][3]float64{
		{{31, 42, 65}, {63, 86, 135}},
		{{38, 52, 82}, {78, 108, 174}},
		{{45, 62, 99}, {93, 130, 213}},
		{{52, 72, 116}, {108, 152, 252}},
	}
	for k := 0; k < 4; k++ {
		for i := 0; i < 2; i++ {
			for j := 0; j < 3; j++ {
				assert.Equal(t, expected[k][i][j], got.At(i, j, k))
			}
		}
	}
}

func TestCPCombineRankMismatch(t *testing.T) {
	u := mat.NewDense(2, 2, nil)
	v := mat.NewDense(3, 2, nil)
	x := mat.NewDense(4, 3, nil)
	_, err := CPCombine(u, v, x)
	assert.Error(t, err)
}

func TestUnfoldFoldRoundTrip(t *testing.T) {
	rng := base.NewRandomGenerator(0)
	src := NewDenseFromData(3, 4, 5, rng.UniformVector(60, -1, 1))
	for mode := 0; mode < 3; mode++ {
		unfolded := src.Unfold(mode)
		folded, err := Fold(unfolded, mode, 3, 4, 5)
		assert.NoError(t, err)
		assert.Equal(t, src.Data(), folded.Data(), "mode %d", mode)
	}
}

func TestFoldShapeMismatch(t *testing.T) {
	_, err := Fold(mat.NewDense(2, 2, nil), 0, 3, 4, 5)
	assert.Error(t, err)
}

func TestUnfoldConvention(t *testing.T) {
	src := NewDense(2, 3, 4)
	src.Set(1, 2, 3, 7)
	// mode 0: columns flatten (j,t), t fastest
	assert.Equal(t, 7.0, src.Unfold(0).At(1, 2*4+3))
	// mode 1: columns flatten (i,t), t fastest
	assert.Equal(t, 7.0, src.Unfold(1).At(2, 1*4+3))
	// mode 2: columns flatten (i,j), j fastest
	assert.Equal(t, 7.0, src.Unfold(2).At(3, 1*3+2))
}

func TestScatter(t *testing.T) {
	a := mat.NewDense(2, 2, []float64{1, 2, 3, 4})
	s := Scatter(a)
	assert.Equal(t, 2.0, s.At(0, 0))
	assert.Equal(t, 2.0, s.At(0, 1))
	assert.Equal(t, 2.0, s.At(1, 0))
	assert.Equal(t, 2.0, s.At(1, 1))
}

func TestColMean(t *testing.T) {
	a := mat.NewDense(3, 2, []float64{1, 2, 3, 4, 5, 6})
	assert.Equal(t, []float64{3, 4}, ColMean(a))
}

func TestCoordinate(t *testing.T) {
	src := NewDense(3, 4, 5)
	for i := 0; i < 3; i++ {
		for j := 0; j < 4; j++ {
			for k := 0; k < 5; k++ {
				ci, cj, ck := src.Coordinate(src.Index(i, j, k))
				assert.Equal(t, i, ci)
				assert.Equal(t, j, cj)
				assert.Equal(t, k, ck)
			}
		}
	}
}
