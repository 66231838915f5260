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

// Ratings is a columnar table of rating entries. Values is nil when the source
// carries presence only.
type Ratings struct {
	Users  []string
	Items  []string
	Values []float64
}

// NewRatings creates an empty table. Explicit tables carry a Values column.
func NewRatings(explicit bool) *Ratings {
	r := &Ratings{Users: []string{}, Items: []string{}}
	if explicit {
		r.Values = []float64{}
	}
	return r
}

// Add appends an entry with a rating.
func (r *Ratings) Add(user, item string, value float64) {
	r.Users = append(r.Users, user)
	r.Items = append(r.Items, item)
	r.Values = append(r.Values, value)
}

// AddImplicit appends an entry without rating.
func (r *Ratings) AddImplicit(user, item string) {
	r.Users = append(r.Users, user)
	r.Items = append(r.Items, item)
}

// Count returns the number of entries.
func (r *Ratings) Count() int {
	return len(r.Users)
}

// HasValues reports whether the table carries ratings.
func (r *Ratings) HasValues() bool {
	return r.Values != nil
}

// Value returns the rating of entry i, 1 when the table carries presence only.
func (r *Ratings) Value(i int) float64 {
	if r.Values == nil {
		return 1
	}
	return r.Values[i]
}
