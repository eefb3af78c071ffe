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

// Package tensor provides the dense 3-D tensor type and the linear algebra
// kernels used by CP factorization: Khatri-Rao products, mode-k unfolding
// and CP reconstruction.
//
// A single flattening convention is used everywhere: indices are laid out
// row-major, so entry (i,j,t) of an (m,n,f) tensor lives at offset
// (i*n+j)*f+t. Mode-k unfolding puts mode k on the rows and flattens the
// remaining modes in ascending mode order with the later mode varying
// fastest. The Khatri-Rao product follows the same order: row ia*rb+ib of
// KhatriRao(a, b) pairs row ia of a with row ib of b. Mixing conventions
// silently corrupts every downstream statistic, so Fold exists mostly to
// let tests verify the round-trip.
package tensor

import (
	"github.com/juju/errors"
	"gonum.org/v1/gonum/mat"
)

// Dense is a dense 3-D tensor of float64. In observation tensors a zero
// entry means "unobserved".
type Dense struct {
	m, n, f int
	data    []float64
}

// NewDense creates a zero tensor with shape (m, n, f).
func NewDense(m, n, f int) *Dense {
	return &Dense{m: m, n: n, f: f, data: make([]float64, m*n*f)}
}

// NewDenseFromData creates a tensor wrapping data laid out row-major.
// It panics if len(data) != m*n*f.
func NewDenseFromData(m, n, f int, data []float64) *Dense {
	if len(data) != m*n*f {
		panic("tensor: data length does not match shape")
	}
	return &Dense{m: m, n: n, f: f, data: data}
}

// Shape returns the three dimensions of the tensor.
func (t *Dense) Shape() (m, n, f int) {
	return t.m, t.n, t.f
}

// Dim returns the size of one mode.
func (t *Dense) Dim(mode int) int {
	switch mode {
	case 0:
		return t.m
	case 1:
		return t.n
	case 2:
		return t.f
	default:
		panic("tensor: mode out of range")
	}
}

// Size returns the total number of entries.
func (t *Dense) Size() int {
	return len(t.data)
}

// Index returns the flattened offset of (i, j, k).
func (t *Dense) Index(i, j, k int) int {
	return (i*t.n+j)*t.f + k
}

// Coordinate is the inverse of Index.
func (t *Dense) Coordinate(idx int) (i, j, k int) {
	k = idx % t.f
	idx /= t.f
	j = idx % t.n
	i = idx / t.n
	return
}

// At returns the entry at (i, j, k).
func (t *Dense) At(i, j, k int) float64 {
	return t.data[(i*t.n+j)*t.f+k]
}

// Set sets the entry at (i, j, k).
func (t *Dense) Set(i, j, k int, v float64) {
	t.data[(i*t.n+j)*t.f+k] = v
}

// Data returns the backing slice.
func (t *Dense) Data() []float64 {
	return t.data
}

// Clone returns a deep copy.
func (t *Dense) Clone() *Dense {
	data := make([]float64, len(t.data))
	copy(data, t.data)
	return &Dense{m: t.m, n: t.n, f: t.f, data: data}
}

// Add accumulates other into t. Shapes must match.
func (t *Dense) Add(other *Dense) {
	for i, v := range other.data {
		t.data[i] += v
	}
}

// Scale multiplies every entry by alpha.
func (t *Dense) Scale(alpha float64) {
	for i := range t.data {
		t.data[i] *= alpha
	}
}

// Unfold returns the mode-k matricization: rows are indexed by mode k,
// columns by the remaining modes in ascending order, the later mode varying
// fastest. Unfold(0) is a free reshape of the row-major layout; the other
// modes copy.
func (t *Dense) Unfold(mode int) *mat.Dense {
	switch mode {
	case 0:
		return mat.NewDense(t.m, t.n*t.f, t.data)
	case 1:
		u := mat.NewDense(t.n, t.m*t.f, nil)
		for j := 0; j < t.n; j++ {
			for i := 0; i < t.m; i++ {
				for k := 0; k < t.f; k++ {
					u.Set(j, i*t.f+k, t.At(i, j, k))
				}
			}
		}
		return u
	case 2:
		u := mat.NewDense(t.f, t.m*t.n, nil)
		for k := 0; k < t.f; k++ {
			for i := 0; i < t.m; i++ {
				for j := 0; j < t.n; j++ {
					u.Set(k, i*t.n+j, t.At(i, j, k))
				}
			}
		}
		return u
	default:
		panic("tensor: mode out of range")
	}
}

// Fold inverts Unfold: it rebuilds an (m, n, f) tensor from a mode-k
// matricization produced with the package's flattening convention.
func Fold(u *mat.Dense, mode, m, n, f int) (*Dense, error) {
	rows, cols := u.Dims()
	t := NewDense(m, n, f)
	if rows != t.Dim(mode) || cols != t.Size()/t.Dim(mode) {
		return nil, errors.Errorf("fold: matrix %dx%d does not match mode-%d unfolding of (%d,%d,%d)",
			rows, cols, mode, m, n, f)
	}
	switch mode {
	case 0:
		copy(t.data, u.RawMatrix().Data)
	case 1:
		for j := 0; j < n; j++ {
			for i := 0; i < m; i++ {
				for k := 0; k < f; k++ {
					t.Set(i, j, k, u.At(j, i*f+k))
				}
			}
		}
	case 2:
		for k := 0; k < f; k++ {
			for i := 0; i < m; i++ {
				for j := 0; j < n; j++ {
					t.Set(i, j, k, u.At(k, i*n+j))
				}
			}
		}
	default:
		return nil, errors.Errorf("fold: mode %d out of range", mode)
	}
	return t, nil
}

// KhatriRao computes the column-wise Kronecker product of a and b. Row
// ia*rb+ib of the result is the element-wise product of row ia of a and row
// ib of b. The column counts of a and b must match.
func KhatriRao(a, b *mat.Dense) (*mat.Dense, error) {
	ra, ca := a.Dims()
	rb, cb := b.Dims()
	if ca != cb {
		return nil, errors.Errorf("khatri-rao: column counts differ (%d vs %d)", ca, cb)
	}
	out := mat.NewDense(ra*rb, ca, nil)
	for ia := 0; ia < ra; ia++ {
		for ib := 0; ib < rb; ib++ {
			row := ia*rb + ib
			for s := 0; s < ca; s++ {
				out.Set(row, s, a.At(ia, s)*b.At(ib, s))
			}
		}
	}
	return out, nil
}

// CPCombine reconstructs the dense tensor estimate from three factor
// matrices: entry (i,j,t) = sum_s u[i,s]*v[j,s]*x[t,s]. The factor matrices
// must share the same rank.
func CPCombine(u, v, x *mat.Dense) (*Dense, error) {
	m, ru := u.Dims()
	n, rv := v.Dims()
	f, rx := x.Dims()
	if ru != rv || rv != rx {
		return nil, errors.Errorf("cp-combine: ranks differ (%d, %d, %d)", ru, rv, rx)
	}
	// (m x r) * (r x n*f) via the Khatri-Rao cofactor keeps this a single
	// matrix product in the shared flattening convention.
	c, err := KhatriRao(v, x)
	if err != nil {
		return nil, errors.Trace(err)
	}
	var unfolded mat.Dense
	unfolded.Mul(u, c.T())
	return Fold(&unfolded, 0, m, n, f)
}

// Scatter computes the unnormalized row-scatter of a matrix about its column
// mean: sum over rows of outer(row-mean, row-mean). It is the sufficient
// statistic for the Wishart update, not a population covariance.
func Scatter(a *mat.Dense) *mat.SymDense {
	rows, cols := a.Dims()
	mean := ColMean(a)
	s := mat.NewSymDense(cols, nil)
	centered := make([]float64, cols)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			centered[c] = a.At(r, c) - mean[c]
		}
		for i := 0; i < cols; i++ {
			for j := i; j < cols; j++ {
				s.SetSym(i, j, s.At(i, j)+centered[i]*centered[j])
			}
		}
	}
	return s
}

// ColMean returns the column means of a matrix.
func ColMean(a *mat.Dense) []float64 {
	rows, cols := a.Dims()
	mean := make([]float64, cols)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			mean[c] += a.At(r, c)
		}
	}
	for c := 0; c < cols; c++ {
		mean[c] /= float64(rows)
	}
	return mean
}
