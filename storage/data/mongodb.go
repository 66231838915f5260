// Copyright 2021 gorse Project Authors
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

	"github.com/gorse-io/itemknn/dataset"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoDB reads ratings from a collection.
type MongoDB struct {
	client *mongo.Client
	dbName string
	table  string
}

// Init the collection and its unique index on (user_id, item_id).
func (db *MongoDB) Init() error {
	ctx := context.Background()
	d := db.client.Database(db.dbName)
	collections, err := d.ListCollectionNames(ctx, bson.M{"name": db.table})
	if err != nil {
		return errors.Trace(err)
	}
	if len(collections) == 0 {
		if err = d.CreateCollection(ctx, db.table); err != nil {
			return errors.Trace(err)
		}
	}
	_, err = d.Collection(db.table).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "item_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return errors.Trace(err)
}

// Close connection to MongoDB.
func (db *MongoDB) Close() error {
	return db.client.Disconnect(context.Background())
}

func (db *MongoDB) LoadRatings(ctx context.Context) (*dataset.Ratings, error) {
	c := db.client.Database(db.dbName).Collection(db.table)
	cur, err := c.Find(ctx, bson.M{}, options.Find().SetBatchSize(batchSize))
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer cur.Close(ctx)
	builder := newRatingsBuilder()
	for cur.Next(ctx) {
		var row Rating
		if err = cur.Decode(&row); err != nil {
			return nil, errors.Trace(err)
		}
		builder.add(row)
	}
	if err = cur.Err(); err != nil {
		return nil, errors.Trace(err)
	}
	ratings, err := builder.build()
	return ratings, errors.Trace(err)
}

func (db *MongoDB) BatchInsertRatings(ctx context.Context, ratings *dataset.Ratings) error {
	c := db.client.Database(db.dbName).Collection(db.table)
	for _, chunk := range lo.Chunk(toRows(ratings), batchSize) {
		models := make([]mongo.WriteModel, 0, len(chunk))
		for _, row := range chunk {
			filter := bson.M{"user_id": row.UserId, "item_id": row.ItemId}
			update := bson.M{"$set": bson.M{"rating": row.Rating}}
			if row.Rating == nil {
				update = bson.M{"$unset": bson.M{"rating": ""}}
			}
			models = append(models, mongo.NewUpdateOneModel().
				SetUpsert(true).
				SetFilter(filter).
				SetUpdate(update))
		}
		if _, err := c.BulkWrite(ctx, models); err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}
