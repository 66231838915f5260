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

package main

import (
	"context"
	"os"
	"strconv"
	"time"

	"github.com/gorse-io/itemknn/common/log"
	"github.com/gorse-io/itemknn/storage/data"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var modelsCommand = &cobra.Command{
	Use:   "models",
	Short: "List trained models.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig(cmd)
		_, registry, err := openStores(cfg)
		if err != nil {
			log.Logger().Fatal("failed to open model stores", zap.Error(err))
		}
		defer registry.Close()
		models, err := registry.List()
		if err != nil {
			log.Logger().Fatal("failed to list models", zap.Error(err))
		}
		table := tablewriter.NewWriter(os.Stdout)
		table.Header([]string{"Name", "UUID", "Feedback", "Kernel", "Items", "Users", "Neighbors", "Created"})
		for _, m := range models {
			_ = table.Append([]string{m.Name, m.UUID, m.Feedback, m.Kernel,
				strconv.Itoa(m.NItems), strconv.Itoa(m.NUsers), strconv.Itoa(m.NNZ),
				m.CreateTime.Local().Format(time.DateTime)})
		}
		_ = table.Render()
	},
}

var importCommand = &cobra.Command{
	Use:   "import <file>",
	Short: "Import ratings from a CSV file into the data source.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig(cmd)
		file := data.NewCSV(args[0])
		file.ShowProgress()
		ctx, cancel := withTimeout(context.Background(), cfg.Data.Timeout)
		defer cancel()
		ratings, err := file.LoadRatings(ctx)
		if err != nil {
			log.Logger().Fatal("failed to read ratings", zap.String("file", args[0]), zap.Error(err))
		}
		database, err := data.Open(cfg.Data.Source, cfg.Data.Table)
		if err != nil {
			log.Logger().Fatal("failed to open data source",
				zap.String("source", log.RedactDBURL(cfg.Data.Source)), zap.Error(err))
		}
		defer database.Close()
		if err = database.Init(); err != nil {
			log.Logger().Fatal("failed to init data source", zap.Error(err))
		}
		if err = database.BatchInsertRatings(ctx, ratings); err != nil {
			log.Logger().Fatal("failed to insert ratings", zap.Error(err))
		}
		log.Logger().Info("import ratings", zap.String("file", args[0]), zap.Int("n_ratings", ratings.Count()))
	},
}

func init() {
	rootCommand.AddCommand(modelsCommand)
	rootCommand.AddCommand(importCommand)
}
