// Copyright 2024 gorse Project Authors
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

package sparse

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dense(m *CSR) [][]float64 {
	d := make([][]float64, m.Rows)
	for i := range d {
		d[i] = make([]float64, m.Cols)
		for k := m.RowPtrs[i]; k < m.RowPtrs[i+1]; k++ {
			d[i][m.ColInds[k]] += m.Value(k)
		}
	}
	return d
}

// randomMatrix generates a matrix whose rows have unit L2 norm.
func randomMatrix(rng *rand.Rand, rows, cols int, density float64) *CSR {
	b := NewBuilder(rows, cols, int(float64(rows*cols)*density))
	for i := 0; i < rows; i++ {
		var rowCols []int32
		var rowValues []float64
		var norm float64
		for j := 0; j < cols; j++ {
			if rng.Float64() < density {
				v := rng.Float64()*2 - 1
				rowCols = append(rowCols, int32(j))
				rowValues = append(rowValues, v)
				norm += v * v
			}
		}
		for k := range rowValues {
			rowValues[k] /= math.Sqrt(norm)
		}
		b.AppendRow(rowCols, rowValues)
	}
	return b.Build()
}

// randomScaledMatrix generates a matrix with values in [-scale, scale].
func randomScaledMatrix(rng *rand.Rand, rows, cols int, density, scale float64) *CSR {
	b := NewBuilder(rows, cols, int(float64(rows*cols)*density))
	for i := 0; i < rows; i++ {
		var rowCols []int32
		var rowValues []float64
		for j := 0; j < cols; j++ {
			if rng.Float64() < density {
				rowCols = append(rowCols, int32(j))
				rowValues = append(rowValues, (rng.Float64()*2-1)*scale)
			}
		}
		b.AppendRow(rowCols, rowValues)
	}
	return b.Build()
}

func TestKernels(t *testing.T) {
	assert.Equal(t, []string{Gustavson, Parallel, Single}, Kernels())
	_, err := NewKernel("magic", 1)
	assert.True(t, errors.Is(err, ErrUnknownKernel))
	for _, name := range Kernels() {
		k, err := NewKernel(name, 2)
		require.NoError(t, err)
		assert.Equal(t, name, k.Name())
	}
}

func TestMultiply(t *testing.T) {
	m := newTestMatrix(t)
	for _, name := range Kernels() {
		k, err := NewKernel(name, 2)
		require.NoError(t, err)
		p, err := k.Multiply(context.Background(), m, m.Transpose())
		require.NoError(t, err, name)
		assert.NoError(t, p.Validate())
		// A*A^T of the test matrix
		expected := [][]float64{{5, 6, 4}, {6, 9, 0}, {4, 0, 41}}
		assert.Equal(t, expected, dense(p), name)
		// the zero entry of row 1 is structurally absent
		assert.Equal(t, []int32{0, 1}, p.ColInds[p.RowPtrs[1]:p.RowPtrs[2]], name)
	}
}

func TestMultiplyUnnormalized(t *testing.T) {
	m, err := NewCSR(2, 2, []int64{0, 2, 3}, []int32{0, 1, 1}, []float64{2, 3, 0.5})
	require.NoError(t, err)
	for _, name := range Kernels() {
		k, err := NewKernel(name, 2)
		require.NoError(t, err)
		p, err := k.Multiply(context.Background(), m, m.Transpose())
		require.NoError(t, err, name)
		assert.Equal(t, [][]float64{{13, 1.5}, {1.5, 0.25}}, dense(p), name)
	}
}

func TestSingleOverflow(t *testing.T) {
	m, err := NewCSR(1, 1, []int64{0, 1}, []int32{0}, []float64{1e30})
	require.NoError(t, err)
	_, err = single{}.Multiply(context.Background(), m, m.Transpose())
	assert.ErrorContains(t, err, "overflow")
}

func TestMultiplyShapeMismatch(t *testing.T) {
	m := newTestMatrix(t)
	r := &CSR{Rows: 2, Cols: 2, RowPtrs: []int64{0, 0, 0}}
	for _, name := range Kernels() {
		k, err := NewKernel(name, 2)
		require.NoError(t, err)
		_, err = k.Multiply(context.Background(), m, r)
		assert.Error(t, err, name)
	}
}

func TestStructuralZero(t *testing.T) {
	// rows 0 and 1 are orthogonal but share columns
	m, err := NewCSR(2, 2, []int64{0, 2, 4}, []int32{0, 1, 0, 1},
		[]float64{math.Sqrt(0.5), math.Sqrt(0.5), math.Sqrt(0.5), -math.Sqrt(0.5)})
	require.NoError(t, err)
	for _, name := range Kernels() {
		k, err := NewKernel(name, 2)
		require.NoError(t, err)
		p, err := k.Multiply(context.Background(), m, m.Transpose())
		require.NoError(t, err)
		assert.Equal(t, 4, p.NNZ(), name)
		assert.InDelta(t, 0, p.Values[1], 1e-6, name)
	}
}

func TestCrossKernel(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	a := randomMatrix(rng, 300, 200, 0.05)
	at := a.Transpose()
	reference, err := gustavson{}.Multiply(context.Background(), a, at)
	require.NoError(t, err)
	for _, name := range []string{Parallel, Single} {
		for _, jobs := range []int{1, 3, 8} {
			k, err := NewKernel(name, jobs)
			require.NoError(t, err)
			p, err := k.Multiply(context.Background(), a, at)
			require.NoError(t, err)
			assert.Equal(t, reference.NNZ(), p.NNZ(), name)
			assert.Equal(t, reference.RowPtrs, p.RowPtrs, name)
			assert.Equal(t, reference.ColInds, p.ColInds, name)
			assert.InDeltaSlice(t, reference.Values, p.Values, 1e-3, name)
		}
	}
}

func TestCrossKernelUnnormalized(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	a := randomScaledMatrix(rng, 200, 150, 0.05, 2)
	b := randomScaledMatrix(rng, 150, 120, 0.05, 2)
	reference, err := gustavson{}.Multiply(context.Background(), a, b)
	require.NoError(t, err)
	for _, name := range Kernels() {
		k, err := NewKernel(name, 4)
		require.NoError(t, err)
		p, err := k.Multiply(context.Background(), a, b)
		require.NoError(t, err)
		assert.Equal(t, reference.RowPtrs, p.RowPtrs, name)
		assert.Equal(t, reference.ColInds, p.ColInds, name)
		assert.InDeltaSlice(t, reference.Values, p.Values, 1e-3, name)
	}
}

func TestMultiplyCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m := newTestMatrix(t)
	for _, name := range Kernels() {
		k, err := NewKernel(name, 2)
		require.NoError(t, err)
		_, err = k.Multiply(ctx, m, m.Transpose())
		assert.ErrorIs(t, err, context.Canceled, name)
	}
}
