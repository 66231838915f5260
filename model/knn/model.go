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
	"github.com/gorse-io/itemknn/dataset"
)

// Model is a trained item-item model. It is never mutated after construction,
// so it can be shared by concurrent predictions.
type Model struct {
	params       Params
	itemIndex    *dataset.Index
	centering    Centering
	counts       []int32
	similarities *sparse.CSR
	// user history, absent in models built without it
	userIndex *dataset.Index
	userItems *sparse.CSR
	warnings  []Warning
}

func (m *Model) Params() Params {
	return m.params
}

func (m *Model) ItemIndex() *dataset.Index {
	return m.itemIndex
}

// UserIndex returns the index of users with retained history, nil if absent.
func (m *Model) UserIndex() *dataset.Index {
	return m.userIndex
}

// UserItems returns the retained user x item ratings, nil if absent.
func (m *Model) UserItems() *sparse.CSR {
	return m.userItems
}

func (m *Model) Centering() Centering {
	return m.centering
}

// ItemCounts returns the number of stored neighbors of every item.
func (m *Model) ItemCounts() []int32 {
	return m.counts
}

// Similarities returns the item x item similarity matrix. Every row is sorted by
// similarity descending, ties by item position ascending.
func (m *Model) Similarities() *sparse.CSR {
	return m.similarities
}

// Warnings returns the warnings raised while fitting this model. A loaded model
// has none.
func (m *Model) Warnings() []Warning {
	return m.warnings
}

// Neighbor is a stored neighbor of an item.
type Neighbor struct {
	Item       string
	Similarity float64
}

// Neighbors returns the stored neighbors of an item, strongest first.
func (m *Model) Neighbors(item string) ([]Neighbor, bool) {
	i := m.itemIndex.ToNumber(item)
	if i == dataset.NotId {
		return nil, false
	}
	cols, values := m.similarities.Row(int(i))
	neighbors := make([]Neighbor, len(cols))
	for k, j := range cols {
		neighbors[k] = Neighbor{Item: m.itemIndex.ToName(j), Similarity: values[k]}
	}
	return neighbors, true
}

// WithMinSimilarity returns a copy predicting with another similarity threshold.
// A threshold not above zero makes prediction scan whole rows.
func (m *Model) WithMinSimilarity(minSimilarity float64) *Model {
	c := *m
	c.params.MinSimilarity = minSimilarity
	return &c
}

// WithPredictNeighbors returns a copy using at most n neighbors per prediction,
// all of them if n is 0.
func (m *Model) WithPredictNeighbors(n int) *Model {
	c := *m
	c.params.PredictNeighbors = max(n, 0)
	return &c
}
