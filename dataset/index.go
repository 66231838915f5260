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
	"encoding/binary"
	"io"

	"github.com/gorse-io/itemknn/common/encoding"
	"github.com/juju/errors"
)

// Index manages the map between identifiers and dense positions. Positions are
// assigned in first-seen order, so the same input order always yields the same index.
type Index struct {
	numbers map[string]int32 // identifier -> dense position
	names   []string         // dense position -> identifier
}

// NotId represents an identifier that doesn't exist.
const NotId = int32(-1)

// maxPrealloc bounds the capacity reserved from a length prefix before the names are read.
const maxPrealloc = 1 << 16

// NewIndex creates an empty index.
func NewIndex() *Index {
	return &Index{
		numbers: make(map[string]int32),
		names:   make([]string, 0),
	}
}

// Len returns the number of indexed identifiers.
func (idx *Index) Len() int32 {
	if idx == nil {
		return 0
	}
	return int32(len(idx.names))
}

// Add adds an identifier and returns its position.
func (idx *Index) Add(name string) int32 {
	if id, exist := idx.numbers[name]; exist {
		return id
	}
	id := int32(len(idx.names))
	idx.numbers[name] = id
	idx.names = append(idx.names, name)
	return id
}

// ToNumber converts an identifier to a dense position.
func (idx *Index) ToNumber(name string) int32 {
	if idx == nil {
		return NotId
	}
	if id, exist := idx.numbers[name]; exist {
		return id
	}
	return NotId
}

// ToName converts a dense position to an identifier.
func (idx *Index) ToName(id int32) string {
	return idx.names[id]
}

// GetNames returns all identifiers in position order.
func (idx *Index) GetNames() []string {
	return idx.names
}

// Marshal index into byte stream.
func (idx *Index) Marshal(w io.Writer) error {
	// write length
	err := binary.Write(w, binary.LittleEndian, int32(len(idx.names)))
	if err != nil {
		return errors.Trace(err)
	}
	// write names
	for _, s := range idx.names {
		err = encoding.WriteString(w, s)
		if err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

// Unmarshal index from byte stream.
func (idx *Index) Unmarshal(r io.Reader) error {
	// read length
	var n int32
	err := binary.Read(r, binary.LittleEndian, &n)
	if err != nil {
		return errors.Trace(err)
	}
	if n < 0 {
		return errors.Errorf("invalid index length %d", n)
	}
	// read names
	idx.names = make([]string, 0, min(n, maxPrealloc))
	idx.numbers = make(map[string]int32, min(n, maxPrealloc))
	for i := 0; i < int(n); i++ {
		name, err := encoding.ReadString(r)
		if err != nil {
			return errors.Trace(err)
		}
		if idx.Add(name) != int32(i) {
			return errors.Errorf("duplicate identifier %q in index", name)
		}
	}
	return nil
}

// UnmarshalIndex unmarshal index from byte stream.
func UnmarshalIndex(r io.Reader) (*Index, error) {
	index := NewIndex()
	if err := index.Unmarshal(r); err != nil {
		return nil, errors.Trace(err)
	}
	return index, nil
}
