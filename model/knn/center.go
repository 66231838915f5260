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
	"github.com/gorse-io/itemknn/common/sparse"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/stat"
)

// degenerateTolerance is the largest magnitude treated as zero after centering.
const degenerateTolerance = 1e-8

// Centering is either uncentered (the zero value) or carries the mean of every item.
type Centering struct {
	means []float64
}

// Centered creates a centering with the mean of every item.
func Centered(means []float64) Centering {
	if means == nil {
		means = []float64{}
	}
	return Centering{means: means}
}

func (c Centering) IsCentered() bool {
	return c.means != nil
}

// Means returns the item means and whether the model is centered.
func (c Centering) Means() ([]float64, bool) {
	return c.means, c.means != nil
}

// Offset returns the mean of item i, or 0 for an uncentered model.
func (c Centering) Offset(i int32) float64 {
	if c.means == nil {
		return 0
	}
	return c.means[i]
}

// center subtracts the mean of every item row. The second return value reports
// whether every centered value is zero.
func center(itemUsers *sparse.CSR) (*sparse.CSR, Centering, bool) {
	centered := &sparse.CSR{
		Rows:    itemUsers.Rows,
		Cols:    itemUsers.Cols,
		RowPtrs: itemUsers.RowPtrs,
		ColInds: itemUsers.ColInds,
		Values:  make([]float64, itemUsers.NNZ()),
	}
	means := make([]float64, itemUsers.Rows)
	degenerate := true
	for i := 0; i < itemUsers.Rows; i++ {
		begin, end := itemUsers.RowPtrs[i], itemUsers.RowPtrs[i+1]
		if begin == end {
			continue
		}
		values := centered.Values[begin:end]
		for k := begin; k < end; k++ {
			values[k-begin] = itemUsers.Value(k)
		}
		means[i] = stat.Mean(values, nil)
		floats.AddConst(-means[i], values)
		for _, v := range values {
			if !scalar.EqualWithinAbs(v, 0, degenerateTolerance) {
				degenerate = false
			}
		}
	}
	return centered, Centered(means), degenerate
}
