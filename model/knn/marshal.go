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

package knn

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/gorse-io/itemknn/common/encoding"
	"github.com/gorse-io/itemknn/common/sparse"
	"github.com/gorse-io/itemknn/dataset"
	"github.com/juju/errors"
)

const (
	modelName    = "itemknn"
	modelVersion = int32(1)
)

// MarshalModel writes the model with a name and version header.
func MarshalModel(w io.Writer, m *Model) error {
	if err := encoding.WriteString(w, modelName); err != nil {
		return errors.Trace(err)
	}
	if err := binary.Write(w, binary.LittleEndian, modelVersion); err != nil {
		return errors.Trace(err)
	}
	if err := m.Marshal(w); err != nil {
		return errors.Trace(err)
	}
	return nil
}

// UnmarshalModel reads a model written by MarshalModel.
func UnmarshalModel(r io.Reader) (*Model, error) {
	name, err := encoding.ReadString(r)
	if err != nil {
		return nil, corruptError("read header: %v", err)
	}
	if name != modelName {
		return nil, corruptError("unknown model %q", name)
	}
	var version int32
	if err = binary.Read(r, binary.LittleEndian, &version); err != nil {
		return nil, corruptError("read version: %v", err)
	}
	if version != modelVersion {
		return nil, corruptError("unsupported version %d", version)
	}
	m := new(Model)
	if err = m.Unmarshal(r); err != nil {
		return nil, errors.Trace(err)
	}
	return m, nil
}

// Marshal model into byte stream. Rows are written in stored order.
func (m *Model) Marshal(w io.Writer) error {
	// write params
	if err := encoding.WriteGob(w, m.params); err != nil {
		return errors.Trace(err)
	}
	// write item index
	if err := m.itemIndex.Marshal(w); err != nil {
		return errors.Trace(err)
	}
	// write means
	means, centered := m.centering.Means()
	if err := encoding.WriteBool(w, centered); err != nil {
		return errors.Trace(err)
	}
	if centered {
		if err := encoding.WriteSlice(w, means); err != nil {
			return errors.Trace(err)
		}
	}
	// write counts
	if err := encoding.WriteSlice(w, m.counts); err != nil {
		return errors.Trace(err)
	}
	// write similarities
	if err := marshalCSR(w, m.similarities); err != nil {
		return errors.Trace(err)
	}
	// write user history
	if err := encoding.WriteBool(w, m.userItems != nil); err != nil {
		return errors.Trace(err)
	}
	if m.userItems != nil {
		if err := m.userIndex.Marshal(w); err != nil {
			return errors.Trace(err)
		}
		if err := marshalCSR(w, m.userItems); err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

// Unmarshal model from byte stream. The layout is validated and every problem is
// reported as ErrCorruptModel.
func (m *Model) Unmarshal(r io.Reader) error {
	var err error
	// read params
	if err = encoding.ReadGob(r, &m.params); err != nil {
		return corruptError("read params: %v", err)
	}
	if err = m.params.validate(); err != nil {
		return corruptError("%v", err)
	}
	// read item index
	if m.itemIndex, err = dataset.UnmarshalIndex(r); err != nil {
		return corruptError("read item index: %v", err)
	}
	nItems := int(m.itemIndex.Len())
	// read means
	centered, err := encoding.ReadBool(r)
	if err != nil {
		return corruptError("read centering: %v", err)
	}
	m.centering = Centering{}
	if centered {
		means, err := encoding.ReadSlice[float64](r)
		if err != nil {
			return corruptError("read means: %v", err)
		}
		if len(means) != nItems {
			return corruptError("expect %d means, got %d", nItems, len(means))
		}
		m.centering = Centered(means)
	}
	// read counts
	if m.counts, err = encoding.ReadSlice[int32](r); err != nil {
		return corruptError("read counts: %v", err)
	}
	if len(m.counts) != nItems {
		return corruptError("expect %d counts, got %d", nItems, len(m.counts))
	}
	if m.counts == nil {
		m.counts = []int32{}
	}
	// read similarities
	if m.similarities, err = unmarshalCSR(r); err != nil {
		return corruptError("read similarities: %v", err)
	}
	if m.similarities.Rows != nItems || m.similarities.Cols != nItems {
		return corruptError("expect %dx%d similarities, got %dx%d",
			nItems, nItems, m.similarities.Rows, m.similarities.Cols)
	}
	if m.similarities.Values == nil {
		return corruptError("similarities without values")
	}
	for i, count := range m.counts {
		if int(count) != m.similarities.RowLen(i) {
			return corruptError("count %d of item %d mismatches row length %d", count, i, m.similarities.RowLen(i))
		}
		if err = checkNeighbors(m.similarities, i, m.params.NeighborhoodSize); err != nil {
			return corruptError("%v", err)
		}
	}
	// read user history
	hasHistory, err := encoding.ReadBool(r)
	if err != nil {
		return corruptError("read history flag: %v", err)
	}
	m.userIndex, m.userItems = nil, nil
	if hasHistory {
		if m.userIndex, err = dataset.UnmarshalIndex(r); err != nil {
			return corruptError("read user index: %v", err)
		}
		if m.userItems, err = unmarshalCSR(r); err != nil {
			return corruptError("read history: %v", err)
		}
		if m.userItems.Rows != int(m.userIndex.Len()) || m.userItems.Cols != nItems {
			return corruptError("expect %dx%d history, got %dx%d",
				m.userIndex.Len(), nItems, m.userItems.Rows, m.userItems.Cols)
		}
		for _, v := range m.userItems.Values {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return corruptError("invalid rating %v in history", v)
			}
		}
	}
	m.warnings = nil
	return nil
}

// checkNeighbors checks that row i holds positive similarities off the diagonal,
// sorted by compareNeighbors without repeated items and at most size long.
func checkNeighbors(sims *sparse.CSR, i, size int) error {
	cols, values := sims.Row(i)
	if size > 0 && len(cols) > size {
		return errors.Errorf("item %d has %d neighbors, more than %d", i, len(cols), size)
	}
	for k, j := range cols {
		if int(j) == i {
			return errors.Errorf("item %d is its own neighbor", i)
		}
		if !(values[k] > 0) || math.IsInf(values[k], 0) {
			return errors.Errorf("invalid similarity %v between items %d and %d", values[k], i, j)
		}
		if k > 0 && compareNeighbors(neighbor{item: cols[k-1], similarity: values[k-1]},
			neighbor{item: j, similarity: values[k]}) >= 0 {
			return errors.Errorf("neighbors of item %d are out of order at %d", i, k)
		}
	}
	return nil
}

func marshalCSR(w io.Writer, a *sparse.CSR) error {
	if err := binary.Write(w, binary.LittleEndian, []int64{int64(a.Rows), int64(a.Cols)}); err != nil {
		return errors.Trace(err)
	}
	if err := encoding.WriteSlice(w, a.RowPtrs); err != nil {
		return errors.Trace(err)
	}
	if err := encoding.WriteSlice(w, a.ColInds); err != nil {
		return errors.Trace(err)
	}
	if err := encoding.WriteBool(w, a.Values != nil); err != nil {
		return errors.Trace(err)
	}
	if a.Values != nil {
		if err := encoding.WriteSlice(w, a.Values); err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

func unmarshalCSR(r io.Reader) (*sparse.CSR, error) {
	shape := make([]int64, 2)
	if err := binary.Read(r, binary.LittleEndian, shape); err != nil {
		return nil, errors.Trace(err)
	}
	if shape[0] < 0 || shape[1] < 0 || shape[0] > encoding.MaxSliceLength || shape[1] > encoding.MaxSliceLength {
		return nil, errors.Errorf("invalid shape %dx%d", shape[0], shape[1])
	}
	rowPtrs, err := encoding.ReadSlice[int64](r)
	if err != nil {
		return nil, errors.Trace(err)
	}
	colInds, err := encoding.ReadSlice[int32](r)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if colInds == nil {
		colInds = []int32{}
	}
	hasValues, err := encoding.ReadBool(r)
	if err != nil {
		return nil, errors.Trace(err)
	}
	var values []float64
	if hasValues {
		if values, err = encoding.ReadSlice[float64](r); err != nil {
			return nil, errors.Trace(err)
		}
		if values == nil {
			values = []float64{}
		}
	}
	return sparse.NewCSR(int(shape[0]), int(shape[1]), rowPtrs, colInds, values)
}
