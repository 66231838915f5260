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
	"strings"

	"github.com/XSAM/otelsql"
	"github.com/gorse-io/itemknn/dataset"
	"github.com/gorse-io/itemknn/storage"
	"github.com/juju/errors"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/x/mongo/driver/connstring"
	"go.opentelemetry.io/contrib/instrumentation/go.mongodb.org/mongo-driver/mongo/otelmongo"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const batchSize = 10000

// Rating is a row of the ratings table. A nil Rating is presence only.
type Rating struct {
	UserId string   `gorm:"column:user_id;primaryKey" bson:"user_id"`
	ItemId string   `gorm:"column:item_id;primaryKey" bson:"item_id"`
	Rating *float64 `gorm:"column:rating" bson:"rating,omitempty"`
}

// Database is a source of ratings.
type Database interface {
	Init() error
	Close() error
	// LoadRatings reads every rating. The result carries values only if every row has a rating.
	LoadRatings(ctx context.Context) (*dataset.Ratings, error)
	// BatchInsertRatings inserts ratings, overwriting existing ratings of the same pairs.
	BatchInsertRatings(ctx context.Context, ratings *dataset.Ratings) error
}

// toRows converts a ratings table to rows. The last rating of a repeated pair wins.
func toRows(ratings *dataset.Ratings) []Rating {
	rows := make([]Rating, 0, ratings.Count())
	positions := make(map[[2]string]int, ratings.Count())
	for i := 0; i < ratings.Count(); i++ {
		row := Rating{UserId: ratings.Users[i], ItemId: ratings.Items[i]}
		if ratings.HasValues() {
			row.Rating = &ratings.Values[i]
		}
		key := [2]string{row.UserId, row.ItemId}
		if pos, exist := positions[key]; exist {
			rows[pos] = row
		} else {
			positions[key] = len(rows)
			rows = append(rows, row)
		}
	}
	return rows
}

// ratingsBuilder collects rows and decides whether the table carries values.
type ratingsBuilder struct {
	ratings  *dataset.Ratings
	withNull int
}

func newRatingsBuilder() *ratingsBuilder {
	return &ratingsBuilder{ratings: dataset.NewRatings(true)}
}

func (b *ratingsBuilder) add(row Rating) {
	if row.Rating == nil {
		b.withNull++
		b.ratings.Add(row.UserId, row.ItemId, 0)
	} else {
		b.ratings.Add(row.UserId, row.ItemId, *row.Rating)
	}
}

func (b *ratingsBuilder) build() (*dataset.Ratings, error) {
	switch b.withNull {
	case 0:
		return b.ratings, nil
	case b.ratings.Count():
		b.ratings.Values = nil
		return b.ratings, nil
	default:
		return nil, errors.Annotatef(dataset.ErrData, "%d of %d rows have no rating", b.withNull, b.ratings.Count())
	}
}

// Open a connection to a rating source.
func Open(path, table string) (Database, error) {
	var err error
	if strings.HasPrefix(path, storage.MySQLPrefix) {
		name := path[len(storage.MySQLPrefix):]
		// append parameters
		if name, err = storage.AppendMySQLParams(name, map[string]string{
			"sql_mode":  "'ONLY_FULL_GROUP_BY,STRICT_TRANS_TABLES,ERROR_FOR_DIVISION_BY_ZERO,NO_ENGINE_SUBSTITUTION'",
			"parseTime": "true",
		}); err != nil {
			return nil, errors.Trace(err)
		}
		// connect to database
		database := &SQLDatabase{driver: MySQL, table: table}
		if database.client, err = otelsql.Open("mysql", name, storage.OpenOptions("mysql")...); err != nil {
			return nil, errors.Trace(err)
		}
		database.gormDB, err = gorm.Open(mysql.New(mysql.Config{Conn: database.client}), storage.NewGORMConfig())
		if err != nil {
			return nil, errors.Trace(err)
		}
		return database, nil
	} else if strings.HasPrefix(path, storage.PostgresPrefix) || strings.HasPrefix(path, storage.PostgreSQLPrefix) {
		database := &SQLDatabase{driver: Postgres, table: table}
		if database.client, err = otelsql.Open("postgres", path, storage.OpenOptions("postgresql")...); err != nil {
			return nil, errors.Trace(err)
		}
		database.gormDB, err = gorm.Open(postgres.New(postgres.Config{Conn: database.client}), storage.NewGORMConfig())
		if err != nil {
			return nil, errors.Trace(err)
		}
		return database, nil
	} else if strings.HasPrefix(path, storage.MongoPrefix) || strings.HasPrefix(path, storage.MongoSrvPrefix) {
		// connect to database
		database := &MongoDB{table: table}
		opts := options.Client()
		opts.Monitor = otelmongo.NewMonitor()
		opts.ApplyURI(path)
		if database.client, err = mongo.Connect(context.Background(), opts); err != nil {
			return nil, errors.Trace(err)
		}
		// parse DSN and extract database name
		if cs, err := connstring.ParseAndValidate(path); err != nil {
			return nil, errors.Trace(err)
		} else {
			database.dbName = cs.Database
		}
		return database, nil
	} else if strings.HasPrefix(path, storage.SQLitePrefix) {
		name, err := storage.SQLiteDSN(path)
		if err != nil {
			return nil, errors.Trace(err)
		}
		// connect to database
		database := &SQLDatabase{driver: SQLite, table: table}
		if database.client, err = otelsql.Open("sqlite", name, storage.OpenOptions("sqlite")...); err != nil {
			return nil, errors.Trace(err)
		}
		database.gormDB, err = gorm.Open(sqlite.Dialector{Conn: database.client}, storage.NewGORMConfig())
		if err != nil {
			return nil, errors.Trace(err)
		}
		return database, nil
	} else if strings.HasPrefix(path, storage.CSVPrefix) || strings.HasSuffix(path, ".csv") {
		return NewCSV(strings.TrimPrefix(path, storage.CSVPrefix)), nil
	}
	return nil, errors.Errorf("Unknown database: %s", path)
}
