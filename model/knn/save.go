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
	"bufio"
	"io"

	"github.com/gorse-io/itemknn/storage/blob"
	"github.com/juju/errors"
)

// Save writes the model to a blob store. It returns after the model is committed,
// and a failed write commits nothing.
func Save(store blob.Store, name string, m *Model) error {
	w, err := store.Create(name)
	if err != nil {
		return errors.Trace(err)
	}
	buf := bufio.NewWriter(w)
	if err = MarshalModel(buf, m); err == nil {
		err = buf.Flush()
	}
	if err != nil {
		abort(w, err)
		return errors.Trace(err)
	}
	return errors.Trace(w.Close())
}

// abort closes a writer without committing a partial object when the store allows it.
func abort(w io.WriteCloser, cause error) {
	if a, ok := w.(interface{ CloseWithError(error) error }); ok {
		_ = a.CloseWithError(cause)
		return
	}
	_ = w.Close()
}

// Load reads a model saved by Save.
func Load(store blob.Store, name string) (*Model, error) {
	r, err := store.Open(name)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer r.Close()
	m, err := UnmarshalModel(bufio.NewReader(r))
	if err != nil {
		return nil, errors.Trace(err)
	}
	return m, nil
}
