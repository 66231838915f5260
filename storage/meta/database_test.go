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
	"time"

	"github.com/stretchr/testify/suite"
)

type baseTestSuite struct {
	suite.Suite
	Database
}

func (suite *baseTestSuite) TestModels() {
	now := time.Now().Truncate(time.Second)
	// add models
	err := suite.Database.Put(&Model{
		Name:       "movies",
		Feedback:   "explicit",
		Kernel:     "gustavson",
		NItems:     100,
		NUsers:     1000,
		NNZ:        2000,
		CreateTime: now.Add(-time.Hour),
	})
	suite.NoError(err)
	latest := &Model{
		Name:       "movies",
		Feedback:   "explicit",
		Kernel:     "parallel",
		NItems:     120,
		NUsers:     1100,
		NNZ:        2400,
		CreateTime: now,
	}
	err = suite.Database.Put(latest)
	suite.NoError(err)
	suite.NotEmpty(latest.UUID)
	err = suite.Database.Put(&Model{
		Name:       "books",
		Feedback:   "implicit",
		Kernel:     "single",
		NItems:     10,
		NUsers:     20,
		NNZ:        30,
		CreateTime: now,
	})
	suite.NoError(err)

	// get latest model
	model, err := suite.Database.Get("movies")
	suite.NoError(err)
	if suite.NotNil(model) {
		suite.Equal(latest.UUID, model.UUID)
		suite.Equal("parallel", model.Kernel)
		suite.Equal(120, model.NItems)
		suite.Equal(1100, model.NUsers)
		suite.Equal(2400, model.NNZ)
		suite.True(now.Equal(model.CreateTime))
	}

	// list models
	models, err := suite.Database.List()
	suite.NoError(err)
	if suite.Equal(2, len(models)) {
		suite.Equal("books", models[0].Name)
		suite.Equal("single", models[0].Kernel)
		suite.Equal("movies", models[1].Name)
		suite.Equal(latest.UUID, models[1].UUID)
	}

	// test non-existing model
	model, err = suite.Database.Get("music")
	suite.NoError(err)
	suite.Nil(model)
}

func (suite *baseTestSuite) TestEmpty() {
	models, err := suite.Database.List()
	suite.NoError(err)
	suite.Empty(models)
}
