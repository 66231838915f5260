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
	"slices"
	"sort"
	"sync"

	"github.com/chewxy/math32"
	"github.com/gorse-io/itemknn/common/parallel"
	"github.com/juju/errors"
	"github.com/samber/lo"
)

// ErrUnknownKernel is returned by NewKernel for an unregistered name.
var ErrUnknownKernel = errors.New("unknown sparse kernel")

// Kernel multiplies two sparse matrices. Every kernel returns the structural
// product: an entry (i, j) is stored whenever row i of a and column j of b share
// an index, even if the products cancel to zero, and columns are sorted within
// each row. Kernels therefore agree on nnz, row pointers and column indices.
type Kernel interface {
	Name() string
	Multiply(ctx context.Context, a, b *CSR) (*CSR, error)
}

// Factory creates a kernel using at most jobs goroutines.
type Factory func(jobs int) Kernel

var (
	kernelsLock sync.RWMutex
	kernels     = map[string]Factory{}
)

const (
	Gustavson = "gustavson"
	Parallel  = "parallel"
	Single    = "single"
)

func init() {
	Register(Gustavson, func(int) Kernel { return gustavson{} })
	Register(Parallel, func(jobs int) Kernel { return &parallelKernel{jobs: jobs} })
	Register(Single, func(int) Kernel { return single{} })
}

// Register adds a kernel factory. A later registration with the same name replaces the former.
func Register(name string, factory Factory) {
	kernelsLock.Lock()
	defer kernelsLock.Unlock()
	kernels[name] = factory
}

// NewKernel creates the kernel registered under name.
func NewKernel(name string, jobs int) (Kernel, error) {
	kernelsLock.RLock()
	defer kernelsLock.RUnlock()
	factory, ok := kernels[name]
	if !ok {
		return nil, errors.Annotatef(ErrUnknownKernel, "kernel %q", name)
	}
	return factory(max(jobs, 1)), nil
}

// Kernels returns registered kernel names in ascending order.
func Kernels() []string {
	kernelsLock.RLock()
	defer kernelsLock.RUnlock()
	names := lo.Keys(kernels)
	sort.Strings(names)
	return names
}

func checkShape(a, b *CSR) error {
	if a.Cols != b.Rows {
		return errors.Errorf("shape mismatch: %dx%d * %dx%d", a.Rows, a.Cols, b.Rows, b.Cols)
	}
	return nil
}

// accumulator is the dense workspace of Gustavson's algorithm.
type accumulator[T float32 | float64] struct {
	sums   []T
	marked []int32
	cols   []int32
}

func newAccumulator[T float32 | float64](n int) *accumulator[T] {
	marked := make([]int32, n)
	for i := range marked {
		marked[i] = -1
	}
	return &accumulator[T]{sums: make([]T, n), marked: marked}
}

// row computes row i of a*b and appends it to cols and values.
func (acc *accumulator[T]) row(a, b *CSR, i int, cols []int32, values []T) ([]int32, []T) {
	acc.cols = acc.cols[:0]
	for ka := a.RowPtrs[i]; ka < a.RowPtrs[i+1]; ka++ {
		k := a.ColInds[ka]
		av := T(a.Value(ka))
		for kb := b.RowPtrs[k]; kb < b.RowPtrs[k+1]; kb++ {
			j := b.ColInds[kb]
			if acc.marked[j] != int32(i) {
				acc.marked[j] = int32(i)
				acc.sums[j] = 0
				acc.cols = append(acc.cols, j)
			}
			acc.sums[j] += av * T(b.Value(kb))
		}
	}
	slices.Sort(acc.cols)
	for _, j := range acc.cols {
		cols = append(cols, j)
		values = append(values, acc.sums[j])
	}
	return cols, values
}

type gustavson struct{}

func (gustavson) Name() string {
	return Gustavson
}

// Multiply computes a*b row by row with a dense accumulator.
func (gustavson) Multiply(ctx context.Context, a, b *CSR) (*CSR, error) {
	if err := checkShape(a, b); err != nil {
		return nil, errors.Trace(err)
	}
	acc := newAccumulator[float64](b.Cols)
	builder := NewBuilder(a.Rows, b.Cols, a.NNZ())
	var cols []int32
	var values []float64
	for i := 0; i < a.Rows; i++ {
		if err := ctx.Err(); err != nil {
			return nil, errors.Trace(err)
		}
		cols, values = acc.row(a, b, i, cols[:0], values[:0])
		builder.AppendRow(cols, values)
	}
	return builder.Build(), nil
}

type parallelKernel struct {
	jobs int
}

func (k *parallelKernel) Name() string {
	return Parallel
}

// Multiply splits the rows of a into contiguous blocks, computes each block with
// its own accumulator and concatenates the blocks in row order.
func (k *parallelKernel) Multiply(ctx context.Context, a, b *CSR) (*CSR, error) {
	if err := checkShape(a, b); err != nil {
		return nil, errors.Trace(err)
	}
	type block struct {
		rowLens []int64
		cols    []int32
		values  []float64
	}
	ranges := parallel.Ranges(a.Rows, k.jobs*4)
	blocks := make([]block, len(ranges))
	accs := make([]*accumulator[float64], k.jobs)
	err := parallel.Parallel(ctx, len(ranges), k.jobs, func(workerId, jobId int) error {
		if accs[workerId] == nil {
			accs[workerId] = newAccumulator[float64](b.Cols)
		}
		acc := accs[workerId]
		begin, end := ranges[jobId][0], ranges[jobId][1]
		blk := block{rowLens: make([]int64, 0, end-begin)}
		for i := begin; i < end; i++ {
			n := len(blk.cols)
			blk.cols, blk.values = acc.row(a, b, i, blk.cols, blk.values)
			blk.rowLens = append(blk.rowLens, int64(len(blk.cols)-n))
		}
		blocks[jobId] = blk
		return nil
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	nnz := lo.SumBy(blocks, func(blk block) int { return len(blk.cols) })
	c := &CSR{
		Rows:    a.Rows,
		Cols:    b.Cols,
		RowPtrs: make([]int64, 1, a.Rows+1),
		ColInds: make([]int32, 0, nnz),
		Values:  make([]float64, 0, nnz),
	}
	for _, blk := range blocks {
		for _, n := range blk.rowLens {
			c.RowPtrs = append(c.RowPtrs, c.RowPtrs[len(c.RowPtrs)-1]+n)
		}
		c.ColInds = append(c.ColInds, blk.cols...)
		c.Values = append(c.Values, blk.values...)
	}
	return c, nil
}

type single struct{}

func (single) Name() string {
	return Single
}

// Multiply accumulates in single precision. A product overflowing float32 is an error.
func (single) Multiply(ctx context.Context, a, b *CSR) (*CSR, error) {
	if err := checkShape(a, b); err != nil {
		return nil, errors.Trace(err)
	}
	acc := newAccumulator[float32](b.Cols)
	builder := NewBuilder(a.Rows, b.Cols, a.NNZ())
	var cols []int32
	var values32 []float32
	var values []float64
	for i := 0; i < a.Rows; i++ {
		if err := ctx.Err(); err != nil {
			return nil, errors.Trace(err)
		}
		cols, values32 = acc.row(a, b, i, cols[:0], values32[:0])
		values = values[:0]
		for k, v := range values32 {
			if math32.IsInf(v, 0) || math32.IsNaN(v) {
				return nil, errors.Errorf("single precision overflow at (%d, %d)", i, cols[k])
			}
			values = append(values, float64(v))
		}
		builder.AppendRow(cols, values)
	}
	return builder.Build(), nil
}
