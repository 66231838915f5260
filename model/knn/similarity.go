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
	"context"

	"github.com/gorse-io/itemknn/common/sparse"
	"github.com/juju/errors"
	"gonum.org/v1/gonum/floats"
)

// similarities computes the cosine similarity between every pair of item rows
// sharing at least one user. The result is the structural product of the
// normalized rows, so it may hold zeros, negatives and the diagonal.
func similarities(ctx context.Context, kernel sparse.Kernel, itemUsers *sparse.CSR) (*sparse.CSR, error) {
	normalized := normalize(itemUsers)
	product, err := kernel.Multiply(ctx, normalized, normalized.Transpose())
	if err != nil {
		return nil, errors.Trace(err)
	}
	return product, nil
}

// normalize scales every row to unit L2 norm. Rows of zero norm are left as zeros.
func normalize(m *sparse.CSR) *sparse.CSR {
	normalized := &sparse.CSR{
		Rows:    m.Rows,
		Cols:    m.Cols,
		RowPtrs: m.RowPtrs,
		ColInds: m.ColInds,
		Values:  make([]float64, m.NNZ()),
	}
	for i := 0; i < m.Rows; i++ {
		begin, end := m.RowPtrs[i], m.RowPtrs[i+1]
		values := normalized.Values[begin:end]
		if m.Values != nil {
			copy(values, m.Values[begin:end])
		} else {
			for k := range values {
				values[k] = 1
			}
		}
		norm := floats.Norm(values, 2)
		if norm > 0 {
			floats.Scale(1/norm, values)
		}
	}
	return normalized
}
