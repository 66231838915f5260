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
	"slices"

	"github.com/juju/errors"
)

// CSR is a compressed sparse row matrix. Values is nil for a structure-only
// matrix, in which case every stored entry is implicitly 1.
type CSR struct {
	Rows    int
	Cols    int
	RowPtrs []int64
	ColInds []int32
	Values  []float64
}

// NewCSR creates a matrix from its arrays and validates the layout.
func NewCSR(rows, cols int, rowPtrs []int64, colInds []int32, values []float64) (*CSR, error) {
	m := &CSR{Rows: rows, Cols: cols, RowPtrs: rowPtrs, ColInds: colInds, Values: values}
	if err := m.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	return m, nil
}

// NNZ returns the number of stored entries.
func (m *CSR) NNZ() int {
	if len(m.RowPtrs) == 0 {
		return 0
	}
	return int(m.RowPtrs[len(m.RowPtrs)-1])
}

// RowLen returns the number of stored entries in row i.
func (m *CSR) RowLen(i int) int {
	return int(m.RowPtrs[i+1] - m.RowPtrs[i])
}

// Row returns the column indices and values of row i. Values is nil for a
// structure-only matrix. The returned slices alias the matrix storage.
func (m *CSR) Row(i int) ([]int32, []float64) {
	begin, end := m.RowPtrs[i], m.RowPtrs[i+1]
	if m.Values == nil {
		return m.ColInds[begin:end], nil
	}
	return m.ColInds[begin:end], m.Values[begin:end]
}

// Value returns the k-th stored value, 1 for a structure-only matrix.
func (m *CSR) Value(k int64) float64 {
	if m.Values == nil {
		return 1
	}
	return m.Values[k]
}

// Validate checks array lengths, row pointer monotonicity and column bounds.
func (m *CSR) Validate() error {
	if m.Rows < 0 || m.Cols < 0 {
		return errors.Errorf("invalid shape %dx%d", m.Rows, m.Cols)
	}
	if len(m.RowPtrs) != m.Rows+1 {
		return errors.Errorf("expect %d row pointers, got %d", m.Rows+1, len(m.RowPtrs))
	}
	if m.RowPtrs[0] != 0 {
		return errors.Errorf("first row pointer must be zero, got %d", m.RowPtrs[0])
	}
	for i := 0; i < m.Rows; i++ {
		if m.RowPtrs[i+1] < m.RowPtrs[i] {
			return errors.Errorf("row pointers decrease at row %d", i)
		}
	}
	nnz := m.RowPtrs[m.Rows]
	if int64(len(m.ColInds)) != nnz {
		return errors.Errorf("expect %d column indices, got %d", nnz, len(m.ColInds))
	}
	if m.Values != nil && int64(len(m.Values)) != nnz {
		return errors.Errorf("expect %d values, got %d", nnz, len(m.Values))
	}
	for k, c := range m.ColInds {
		if c < 0 || int(c) >= m.Cols {
			return errors.Errorf("column index %d out of range at entry %d", c, k)
		}
	}
	return nil
}

// Transpose returns the transposed matrix. Columns within each row of the result
// are in ascending order.
func (m *CSR) Transpose() *CSR {
	t := &CSR{
		Rows:    m.Cols,
		Cols:    m.Rows,
		RowPtrs: make([]int64, m.Cols+1),
		ColInds: make([]int32, m.NNZ()),
	}
	if m.Values != nil {
		t.Values = make([]float64, m.NNZ())
	}
	for _, c := range m.ColInds {
		t.RowPtrs[c+1]++
	}
	for i := 0; i < m.Cols; i++ {
		t.RowPtrs[i+1] += t.RowPtrs[i]
	}
	next := slices.Clone(t.RowPtrs[:m.Cols])
	for i := 0; i < m.Rows; i++ {
		for k := m.RowPtrs[i]; k < m.RowPtrs[i+1]; k++ {
			c := m.ColInds[k]
			pos := next[c]
			t.ColInds[pos] = int32(i)
			if m.Values != nil {
				t.Values[pos] = m.Values[k]
			}
			next[c]++
		}
	}
	return t
}

// Clone returns a deep copy.
func (m *CSR) Clone() *CSR {
	return &CSR{
		Rows:    m.Rows,
		Cols:    m.Cols,
		RowPtrs: slices.Clone(m.RowPtrs),
		ColInds: slices.Clone(m.ColInds),
		Values:  slices.Clone(m.Values),
	}
}

// Builder collects entries row by row. Rows must be appended in order.
type Builder struct {
	cols    int
	rowPtrs []int64
	colInds []int32
	values  []float64
}

func NewBuilder(rows, cols, nnz int) *Builder {
	b := &Builder{
		cols:    cols,
		rowPtrs: make([]int64, 1, rows+1),
		colInds: make([]int32, 0, nnz),
		values:  make([]float64, 0, nnz),
	}
	return b
}

// AppendRow appends the next row.
func (b *Builder) AppendRow(cols []int32, values []float64) {
	b.colInds = append(b.colInds, cols...)
	b.values = append(b.values, values...)
	b.rowPtrs = append(b.rowPtrs, int64(len(b.colInds)))
}

// Build returns the matrix built so far.
func (b *Builder) Build() *CSR {
	return &CSR{
		Rows:    len(b.rowPtrs) - 1,
		Cols:    b.cols,
		RowPtrs: b.rowPtrs,
		ColInds: b.colInds,
		Values:  b.values,
	}
}
