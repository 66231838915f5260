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
	"database/sql"

	"github.com/google/uuid"
	"github.com/juju/errors"
	_ "modernc.org/sqlite"
)

type SQLite struct {
	db *sql.DB
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) Init() error {
	if _, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS models (
	uuid TEXT PRIMARY KEY,
	name TEXT,
	feedback TEXT,
	kernel TEXT,
	n_items INTEGER,
	n_users INTEGER,
	nnz INTEGER,
	create_time DATETIME
);`); err != nil {
		return errors.Trace(err)
	}
	if _, err := s.db.Exec(`
CREATE INDEX IF NOT EXISTS models_name ON models (name, create_time);`); err != nil {
		return errors.Trace(err)
	}
	return nil
}

func (s *SQLite) Put(model *Model) error {
	if model.UUID == "" {
		model.UUID = uuid.New().String()
	}
	_, err := s.db.Exec(`
INSERT INTO models (uuid, name, feedback, kernel, n_items, n_users, nnz, create_time)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`, model.UUID, model.Name, model.Feedback, model.Kernel, model.NItems, model.NUsers, model.NNZ, model.CreateTime.UTC())
	return errors.Trace(err)
}

func (s *SQLite) Get(name string) (*Model, error) {
	var model Model
	err := s.db.QueryRow(`
SELECT uuid, name, feedback, kernel, n_items, n_users, nnz, create_time FROM models
WHERE name = ? ORDER BY create_time DESC, rowid DESC LIMIT 1
`, name).Scan(&model.UUID, &model.Name, &model.Feedback, &model.Kernel,
		&model.NItems, &model.NUsers, &model.NNZ, &model.CreateTime)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // model not found
		}
		return nil, errors.Trace(err)
	}
	return &model, nil
}

func (s *SQLite) List() ([]*Model, error) {
	rs, err := s.db.Query(`
SELECT uuid, name, feedback, kernel, n_items, n_users, nnz, create_time FROM models AS m
WHERE rowid = (
	SELECT rowid FROM models WHERE name = m.name ORDER BY create_time DESC, rowid DESC LIMIT 1
)
ORDER BY name
`)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer rs.Close()
	var models []*Model
	for rs.Next() {
		var model Model
		if err = rs.Scan(&model.UUID, &model.Name, &model.Feedback, &model.Kernel,
			&model.NItems, &model.NUsers, &model.NNZ, &model.CreateTime); err != nil {
			return nil, errors.Trace(err)
		}
		models = append(models, &model)
	}
	return models, errors.Trace(rs.Err())
}
