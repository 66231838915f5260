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
	"math"
	"slices"

	"github.com/bits-and-blooms/bitset"
	"github.com/gorse-io/itemknn/dataset"
	"github.com/juju/errors"
)

// history is the ratings of one user over item positions.
type history struct {
	rated   *bitset.BitSet
	ratings map[int32]float64 // nil if every rating is 1
}

func (h *history) rating(item int32) float64 {
	if h.ratings == nil {
		return 1
	}
	return h.ratings[item]
}

// Predict scores items for a user of the training data. Items that are unknown
// or lack enough rated neighbors are absent from the result, and so is every item
// for an unknown user.
func (m *Model) Predict(user string, items []string) map[string]float64 {
	scores := make(map[string]float64)
	if m.userIndex == nil {
		return scores
	}
	u := m.userIndex.ToNumber(user)
	if u == dataset.NotId {
		return scores
	}
	h := &history{rated: bitset.New(uint(m.itemIndex.Len()))}
	cols, values := m.userItems.Row(int(u))
	if values != nil {
		h.ratings = make(map[int32]float64, len(cols))
	}
	for k, j := range cols {
		h.rated.Set(uint(j))
		if values != nil {
			h.ratings[j] = values[k]
		}
	}
	m.predict(h, items, scores)
	return scores
}

// PredictWithHistory scores items for a user given by the ratings of known items.
// Unknown items in the history are ignored. Ratings are ignored as well when the
// model doesn't use them.
func (m *Model) PredictWithHistory(ratings map[string]float64, items []string) (map[string]float64, error) {
	h := &history{rated: bitset.New(uint(m.itemIndex.Len()))}
	if m.params.UseRatings {
		h.ratings = make(map[int32]float64, len(ratings))
	}
	for item, rating := range ratings {
		if math.IsNaN(rating) || math.IsInf(rating, 0) {
			return nil, errors.Annotatef(dataset.ErrData, "invalid rating %v for item %q", rating, item)
		}
		j := m.itemIndex.ToNumber(item)
		if j == dataset.NotId {
			continue
		}
		h.rated.Set(uint(j))
		if h.ratings != nil {
			h.ratings[j] = rating
		}
	}
	scores := make(map[string]float64)
	m.predict(h, items, scores)
	return scores, nil
}

func (m *Model) predict(h *history, items []string, scores map[string]float64) {
	if h.rated.None() {
		return
	}
	buf := make([]neighbor, 0, m.params.PredictNeighbors)
	for _, item := range items {
		i := m.itemIndex.ToNumber(item)
		if i == dataset.NotId {
			continue
		}
		buf = m.neighbors(h, i, buf[:0])
		if len(buf) < m.params.MinNeighbors {
			continue
		}
		if score, ok := m.aggregate(h, i, buf); ok {
			scores[item] = score
		}
	}
}

// neighbors collects the neighbors of item i rated by the user. Both strategies
// return the strongest rated neighbors above the threshold in the same order.
func (m *Model) neighbors(h *history, i int32, buf []neighbor) []neighbor {
	minSimilarity := m.params.MinSimilarity
	limit := m.params.PredictNeighbors
	cols, values := m.similarities.Row(int(i))
	switch m.params.Strategy() {
	case StopEarly:
		for k, j := range cols {
			if values[k] <= minSimilarity {
				break
			}
			if h.rated.Test(uint(j)) {
				buf = append(buf, neighbor{item: j, similarity: values[k]})
				if limit > 0 && len(buf) >= limit {
					break
				}
			}
		}
	case ScanAll:
		for k, j := range cols {
			if values[k] > minSimilarity && h.rated.Test(uint(j)) {
				buf = append(buf, neighbor{item: j, similarity: values[k]})
			}
		}
		slices.SortFunc(buf, compareNeighbors)
		if limit > 0 && len(buf) > limit {
			buf = buf[:limit]
		}
	}
	return buf
}

func (m *Model) aggregate(h *history, i int32, neighbors []neighbor) (float64, bool) {
	switch m.params.Aggregate {
	case WeightedAverage:
		var num, den float64
		for _, n := range neighbors {
			num += n.similarity * (h.rating(n.item) - m.centering.Offset(n.item))
			den += n.similarity
		}
		if den <= 0 {
			return 0, false
		}
		return m.centering.Offset(i) + num/den, true
	case Sum:
		var sum float64
		for _, n := range neighbors {
			sum += n.similarity
		}
		return sum, true
	}
	return 0, false
}
