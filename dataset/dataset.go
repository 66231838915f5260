// Copyright 2020 gorse Project Authors
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

package dataset

import (
	"math"
	"slices"
	"sort"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/gorse-io/itemknn/common/sparse"
	"github.com/juju/errors"
)

// ErrData is the kind of every error caused by malformed ratings.
var ErrData = errors.New("invalid ratings")

// Dataset is the indexed form of a rating table.
type Dataset struct {
	userIndex      *Index
	itemIndex      *Index
	userItems      *sparse.CSR // user x item, columns sorted
	itemUsers      *sparse.CSR // item x user, columns sorted
	duplicates     int
	duplicateUsers mapset.Set[string]
}

type entry struct {
	user  int32
	item  int32
	value float64
}

// Build indexes users and items in first-seen order and groups ratings by user and
// by item. Ratings are kept only if useRatings is set and the table carries them,
// otherwise every interaction has strength 1. If requireRatings is set, a table
// without ratings is an error. Duplicate (user, item) entries are counted and the
// last one wins.
func Build(ratings *Ratings, useRatings, requireRatings bool) (*Dataset, error) {
	if ratings == nil || ratings.Users == nil {
		return nil, errors.Annotate(ErrData, "user column is absent")
	}
	if ratings.Items == nil {
		return nil, errors.Annotate(ErrData, "item column is absent")
	}
	if len(ratings.Users) != len(ratings.Items) {
		return nil, errors.Annotatef(ErrData, "%d users but %d items", len(ratings.Users), len(ratings.Items))
	}
	if ratings.Values == nil && requireRatings {
		return nil, errors.Annotate(ErrData, "rating column is absent")
	}
	if ratings.Values != nil && len(ratings.Values) != len(ratings.Users) {
		return nil, errors.Annotatef(ErrData, "%d users but %d ratings", len(ratings.Users), len(ratings.Values))
	}
	withValues := useRatings && ratings.HasValues()

	d := &Dataset{
		userIndex:      NewIndex(),
		itemIndex:      NewIndex(),
		duplicateUsers: mapset.NewThreadUnsafeSet[string](),
	}
	entries := make([]entry, 0, ratings.Count())
	seen := make(map[[2]int32]int, ratings.Count())
	for i := 0; i < ratings.Count(); i++ {
		user, item := ratings.Users[i], ratings.Items[i]
		if user == "" {
			return nil, errors.Annotatef(ErrData, "empty user at row %d", i)
		}
		if item == "" {
			return nil, errors.Annotatef(ErrData, "empty item at row %d", i)
		}
		value := 1.0
		if withValues {
			value = ratings.Values[i]
			if math.IsNaN(value) || math.IsInf(value, 0) {
				return nil, errors.Annotatef(ErrData, "invalid rating %v at row %d", value, i)
			}
		}
		e := entry{user: d.userIndex.Add(user), item: d.itemIndex.Add(item), value: value}
		key := [2]int32{e.user, e.item}
		if pos, exist := seen[key]; exist {
			entries[pos].value = e.value
			d.duplicates++
			d.duplicateUsers.Add(user)
			continue
		}
		seen[key] = len(entries)
		entries = append(entries, e)
	}

	// group by user
	counts := make([]int64, d.userIndex.Len()+1)
	for _, e := range entries {
		counts[e.user+1]++
	}
	for i := 1; i < len(counts); i++ {
		counts[i] += counts[i-1]
	}
	userItems := &sparse.CSR{
		Rows:    int(d.userIndex.Len()),
		Cols:    int(d.itemIndex.Len()),
		RowPtrs: slices.Clone(counts),
		ColInds: make([]int32, len(entries)),
	}
	if withValues {
		userItems.Values = make([]float64, len(entries))
	}
	for _, e := range entries {
		pos := counts[e.user]
		userItems.ColInds[pos] = e.item
		if withValues {
			userItems.Values[pos] = e.value
		}
		counts[e.user]++
	}
	for u := 0; u < userItems.Rows; u++ {
		sortRow(userItems, u)
	}
	d.userItems = userItems
	d.itemUsers = userItems.Transpose()
	return d, nil
}

type rowSorter struct {
	cols   []int32
	values []float64
}

func (s rowSorter) Len() int           { return len(s.cols) }
func (s rowSorter) Less(i, j int) bool { return s.cols[i] < s.cols[j] }
func (s rowSorter) Swap(i, j int) {
	s.cols[i], s.cols[j] = s.cols[j], s.cols[i]
	if s.values != nil {
		s.values[i], s.values[j] = s.values[j], s.values[i]
	}
}

func sortRow(m *sparse.CSR, i int) {
	cols, values := m.Row(i)
	sort.Sort(rowSorter{cols: cols, values: values})
}

func (d *Dataset) UserIndex() *Index {
	return d.userIndex
}

func (d *Dataset) ItemIndex() *Index {
	return d.itemIndex
}

func (d *Dataset) CountUsers() int {
	return int(d.userIndex.Len())
}

func (d *Dataset) CountItems() int {
	return int(d.itemIndex.Len())
}

// CountRatings returns the number of distinct (user, item) pairs.
func (d *Dataset) CountRatings() int {
	return d.userItems.NNZ()
}

// HasValues reports whether rating magnitudes are kept.
func (d *Dataset) HasValues() bool {
	return d.userItems.Values != nil
}

// UserItems returns the user x item matrix. Row u lists the (item position, rating)
// pairs of user u in ascending item position.
func (d *Dataset) UserItems() *sparse.CSR {
	return d.userItems
}

// ItemUsers returns the item x user matrix.
func (d *Dataset) ItemUsers() *sparse.CSR {
	return d.itemUsers
}

// Duplicates returns the number of entries overwritten by a later entry for the same pair.
func (d *Dataset) Duplicates() int {
	return d.duplicates
}

// DuplicateUsers returns the users having duplicate entries, sorted.
func (d *Dataset) DuplicateUsers() []string {
	users := d.duplicateUsers.ToSlice()
	sort.Strings(users)
	return users
}
