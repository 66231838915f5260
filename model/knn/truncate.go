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
	"cmp"
	"context"
	"slices"

	"github.com/gorse-io/itemknn/common/parallel"
	"github.com/gorse-io/itemknn/common/sparse"
	"github.com/juju/errors"
)

type neighbor struct {
	item       int32
	similarity float64
}

// compareNeighbors orders by similarity descending, then by item position ascending.
func compareNeighbors(a, b neighbor) int {
	if c := cmp.Compare(b.similarity, a.similarity); c != 0 {
		return c
	}
	return cmp.Compare(a.item, b.item)
}

// truncate keeps, for every row, the entries off the diagonal with similarity above
// max(0, minSimilarity), sorted by compareNeighbors and capped to size when size > 0.
// It returns the truncated matrix and the length of every row.
func truncate(ctx context.Context, sims *sparse.CSR, minSimilarity float64, size, jobs int) (*sparse.CSR, []int32, error) {
	threshold := max(0, minSimilarity)
	rows := make([][]neighbor, sims.Rows)
	err := parallel.For(ctx, sims.Rows, jobs, func(i int) {
		cols, _ := sims.Row(i)
		var row []neighbor
		for k, j := range cols {
			if j == int32(i) {
				continue
			}
			v := sims.Value(sims.RowPtrs[i] + int64(k))
			if v > threshold {
				row = append(row, neighbor{item: j, similarity: v})
			}
		}
		slices.SortFunc(row, compareNeighbors)
		if size > 0 && len(row) > size {
			row = row[:size:size]
		}
		rows[i] = row
	})
	if err != nil {
		return nil, nil, errors.Trace(err)
	}
	counts := make([]int32, sims.Rows)
	nnz := 0
	for i, row := range rows {
		counts[i] = int32(len(row))
		nnz += len(row)
	}
	builder := sparse.NewBuilder(sims.Rows, sims.Cols, nnz)
	cols := make([]int32, 0)
	values := make([]float64, 0)
	for _, row := range rows {
		cols, values = cols[:0], values[:0]
		for _, n := range row {
			cols = append(cols, n.item)
			values = append(values, n.similarity)
		}
		builder.AppendRow(cols, values)
	}
	return builder.Build(), counts, nil
}
