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
	"encoding/binary"
	"io"

	"github.com/juju/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/bayesflow/bptf/model"
	"github.com/bayesflow/bptf/tensor"
)

type modelHeader struct {
	NFactors int64
	M, N, F  int64
}

// Marshal writes the fitted posterior means to a byte stream. Only a fitted
// model can be marshaled.
func (b *BPTF) Marshal(w io.Writer) error {
	if b.Invalid() {
		return errors.New("cannot marshal unfitted model")
	}
	m, n, f := b.MeanTensor.Shape()
	header := modelHeader{
		NFactors: int64(b.nFactors),
		M:        int64(m),
		N:        int64(n),
		F:        int64(f),
	}
	if err := binary.Write(w, binary.LittleEndian, header); err != nil {
		return errors.Trace(err)
	}
	for _, factor := range b.MeanFactor {
		if _, err := factor.MarshalBinaryTo(w); err != nil {
			return errors.Trace(err)
		}
	}
	if err := binary.Write(w, binary.LittleEndian, b.MeanTensor.Data()); err != nil {
		return errors.Trace(err)
	}
	return nil
}

// Unmarshal reads a fitted model written by Marshal.
func Unmarshal(r io.Reader) (*BPTF, error) {
	var header modelHeader
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return nil, errors.Trace(err)
	}
	b := NewBPTF(model.Params{model.NFactors: int(header.NFactors)})
	for mode := 0; mode < 3; mode++ {
		factor := &mat.Dense{}
		if _, err := factor.UnmarshalBinaryFrom(r); err != nil {
			return nil, errors.Trace(err)
		}
		b.MeanFactor[mode] = factor
	}
	data := make([]float64, header.M*header.N*header.F)
	if err := binary.Read(r, binary.LittleEndian, data); err != nil {
		return nil, errors.Trace(err)
	}
	b.MeanTensor = tensor.NewDenseFromData(int(header.M), int(header.N), int(header.F), data)
	return b, nil
}
