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

package meta

import (
	"strings"
	"time"

	"github.com/XSAM/otelsql"
	"github.com/gorse-io/itemknn/storage"
	"github.com/juju/errors"
)

// Model is the record of a trained model. The model itself lives in the blob
// store under Name.
type Model struct {
	UUID       string
	Name       string
	Feedback   string
	Kernel     string
	NItems     int
	NUsers     int
	NNZ        int
	CreateTime time.Time
}

type Database interface {
	Close() error
	Init() error
	// Put adds a record. Records with the same name are kept as history.
	Put(model *Model) error
	// Get returns the latest record of a name, or nil if there is none.
	Get(name string) (*Model, error)
	// List returns the latest record of every name, ordered by name.
	List() ([]*Model, error)
}

// Open a connection to a database. A path without scheme is a SQLite file.
func Open(path string) (Database, error) {
	if !strings.Contains(path, "://") {
		path = storage.SQLitePrefix + path
	}
	if strings.HasPrefix(path, storage.SQLitePrefix) {
		dataSourceName, err := storage.SQLiteDSN(path)
		if err != nil {
			return nil, errors.Trace(err)
		}
		// connect to database
		database := new(SQLite)
		if database.db, err = otelsql.Open("sqlite", dataSourceName, storage.OpenOptions("sqlite")...); err != nil {
			return nil, errors.Trace(err)
		}
		return database, nil
	}
	return nil, errors.Errorf("Unknown database: %s", path)
}
