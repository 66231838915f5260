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

package data

import (
	"context"
	"database/sql"

	_ "github.com/go-sql-driver/mysql"
	"github.com/gorse-io/itemknn/dataset"
	"github.com/juju/errors"
	_ "github.com/lib/pq"
	"github.com/samber/lo"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	_ "modernc.org/sqlite"
)

type SQLDriver int

const (
	MySQL SQLDriver = iota
	Postgres
	SQLite
)

// SQLDatabase reads ratings from a table in MySQL, Postgres or SQLite.
type SQLDatabase struct {
	gormDB *gorm.DB
	client *sql.DB
	driver SQLDriver
	table  string
}

// Init creates the ratings table.
func (d *SQLDatabase) Init() error {
	return errors.Trace(d.gormDB.Table(d.table).AutoMigrate(&Rating{}))
}

// Close the connection.
func (d *SQLDatabase) Close() error {
	return d.client.Close()
}

func (d *SQLDatabase) LoadRatings(ctx context.Context) (*dataset.Ratings, error) {
	rows, err := d.gormDB.WithContext(ctx).Table(d.table).Select("user_id, item_id, rating").Rows()
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer rows.Close()
	builder := newRatingsBuilder()
	for rows.Next() {
		var row Rating
		if err = rows.Scan(&row.UserId, &row.ItemId, &row.Rating); err != nil {
			return nil, errors.Trace(err)
		}
		builder.add(row)
	}
	if err = rows.Err(); err != nil {
		return nil, errors.Trace(err)
	}
	ratings, err := builder.build()
	return ratings, errors.Trace(err)
}

func (d *SQLDatabase) BatchInsertRatings(ctx context.Context, ratings *dataset.Ratings) error {
	for _, chunk := range lo.Chunk(toRows(ratings), batchSize) {
		if err := d.gormDB.WithContext(ctx).Table(d.table).
			Clauses(clause.OnConflict{UpdateAll: true}).
			Create(&chunk).Error; err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}
