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

package data

import (
	"bufio"
	"context"
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/gorse-io/itemknn/dataset"
	"github.com/juju/errors"
	"github.com/schollz/progressbar/v3"
)

var csvHeader = []string{"user_id", "item_id", "rating"}

// CSV reads ratings from a file with a header row. The header names the user
// column (user or user_id), the item column (item or item_id) and optionally the
// rating column. Appended rows override earlier rows of the same pair.
type CSV struct {
	path     string
	progress bool
}

func NewCSV(path string) *CSV {
	return &CSV{path: path}
}

// ShowProgress prints a progress bar to stderr while loading.
func (c *CSV) ShowProgress() {
	c.progress = true
}

// Init creates the file with a header if it does not exist.
func (c *CSV) Init() error {
	file, err := os.OpenFile(c.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if os.IsExist(err) {
		return nil
	} else if err != nil {
		return errors.Trace(err)
	}
	w := csv.NewWriter(file)
	if err = w.Write(csvHeader); err != nil {
		_ = file.Close()
		return errors.Trace(err)
	}
	w.Flush()
	if err = w.Error(); err != nil {
		_ = file.Close()
		return errors.Trace(err)
	}
	return errors.Trace(file.Close())
}

func (c *CSV) Close() error {
	return nil
}

func (c *CSV) LoadRatings(ctx context.Context) (*dataset.Ratings, error) {
	file, err := os.Open(c.path)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer file.Close()
	var r io.Reader = bufio.NewReader(file)
	if c.progress {
		stat, err := file.Stat()
		if err != nil {
			return nil, errors.Trace(err)
		}
		bar := progressbar.DefaultBytes(stat.Size(), "Loading ratings")
		defer bar.Close()
		pbReader := progressbar.NewReader(r, bar)
		r = &pbReader
	}
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.ReuseRecord = true

	// locate columns
	header, err := reader.Read()
	if err == io.EOF {
		return nil, errors.Annotatef(dataset.ErrData, "%s has no header", c.path)
	} else if err != nil {
		return nil, errors.Trace(err)
	}
	userCol, itemCol, ratingCol := -1, -1, -1
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "user", "user_id":
			userCol = i
		case "item", "item_id":
			itemCol = i
		case "rating":
			ratingCol = i
		}
	}
	if userCol < 0 || itemCol < 0 {
		return nil, errors.Annotatef(dataset.ErrData, "%s has no user or item column", c.path)
	}

	builder := newRatingsBuilder()
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, errors.Trace(err)
		}
		if line%batchSize == 0 {
			if err = ctx.Err(); err != nil {
				return nil, errors.Trace(err)
			}
		}
		if len(record) <= max(userCol, itemCol) {
			return nil, errors.Annotatef(dataset.ErrData, "line %d has %d fields", line, len(record))
		}
		row := Rating{UserId: record[userCol], ItemId: record[itemCol]}
		if ratingCol >= 0 && ratingCol < len(record) && record[ratingCol] != "" {
			rating, err := strconv.ParseFloat(strings.TrimSpace(record[ratingCol]), 64)
			if err != nil {
				return nil, errors.Annotatef(dataset.ErrData, "line %d: %v", line, err)
			}
			row.Rating = &rating
		}
		builder.add(row)
	}
	ratings, err := builder.build()
	return ratings, errors.Trace(err)
}

// BatchInsertRatings appends ratings to the file.
func (c *CSV) BatchInsertRatings(_ context.Context, ratings *dataset.Ratings) error {
	if err := c.Init(); err != nil {
		return errors.Trace(err)
	}
	file, err := os.OpenFile(c.path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return errors.Trace(err)
	}
	w := csv.NewWriter(file)
	for _, row := range toRows(ratings) {
		rating := ""
		if row.Rating != nil {
			rating = strconv.FormatFloat(*row.Rating, 'g', -1, 64)
		}
		if err = w.Write([]string{row.UserId, row.ItemId, rating}); err != nil {
			_ = file.Close()
			return errors.Trace(err)
		}
	}
	w.Flush()
	if err = w.Error(); err != nil {
		_ = file.Close()
		return errors.Trace(err)
	}
	return errors.Trace(file.Close())
}
