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
	"os"
	"testing"

	"github.com/stretchr/testify/suite"
)

const testTable = "itemknn_test_ratings"

// remoteTestSuite runs against a server given by an environment variable.
type remoteTestSuite struct {
	baseTestSuite
	env string
}

func (suite *remoteTestSuite) SetupSuite() {
	if os.Getenv(suite.env) == "" {
		suite.T().Skipf("%s is not set", suite.env)
	}
}

func (suite *remoteTestSuite) SetupTest() {
	var err error
	suite.Database, err = Open(os.Getenv(suite.env), testTable)
	suite.Require().NoError(err)
	suite.drop()
	suite.NoError(suite.Database.Init())
}

func (suite *remoteTestSuite) TearDownTest() {
	suite.drop()
	suite.NoError(suite.Database.Close())
}

func (suite *remoteTestSuite) drop() {
	switch database := suite.Database.(type) {
	case *SQLDatabase:
		suite.NoError(database.gormDB.Migrator().DropTable(testTable))
	case *MongoDB:
		suite.NoError(database.client.Database(database.dbName).Collection(testTable).Drop(context.Background()))
	}
}

func TestMySQL(t *testing.T) {
	suite.Run(t, &remoteTestSuite{env: "MYSQL_URI"})
}

func TestPostgres(t *testing.T) {
	suite.Run(t, &remoteTestSuite{env: "POSTGRES_URI"})
}

func TestMongoDB(t *testing.T) {
	suite.Run(t, &remoteTestSuite{env: "MONGO_URI"})
}
