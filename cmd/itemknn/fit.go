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
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/google/uuid"
	"github.com/gorse-io/itemknn/common/log"
	"github.com/gorse-io/itemknn/common/progress"
	"github.com/gorse-io/itemknn/model/knn"
	"github.com/gorse-io/itemknn/storage/data"
	"github.com/gorse-io/itemknn/storage/meta"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var fitCommand = &cobra.Command{
	Use:   "fit",
	Short: "Fit a model on the ratings of the data source.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig(cmd)
		name, _ := cmd.Flags().GetString("name")
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		tracer := progress.NewTracer("itemknn")
		ctx, span := tracer.Start(ctx, "fit "+name, 3)

		// load ratings
		database, err := data.Open(cfg.Data.Source, cfg.Data.Table)
		if err != nil {
			log.Logger().Fatal("failed to open data source",
				zap.String("source", log.RedactDBURL(cfg.Data.Source)), zap.Error(err))
		}
		if csv, ok := database.(*data.CSV); ok {
			csv.ShowProgress()
		}
		loadCtx, cancel := withTimeout(ctx, cfg.Data.Timeout)
		ratings, err := database.LoadRatings(loadCtx)
		cancel()
		_ = database.Close()
		if err != nil {
			log.Logger().Fatal("failed to load ratings", zap.Error(err))
		}
		log.Logger().Info("load ratings", zap.Int("n_ratings", ratings.Count()), zap.Bool("explicit", ratings.HasValues()))
		span.Add(1)

		// fit model
		estimator, err := knn.New(knn.ConfigFrom(cfg.KNN))
		if err != nil {
			log.Logger().Fatal("invalid model configuration", zap.Error(err))
		}
		model, err := estimator.Fit(ctx, ratings)
		if err != nil {
			span.Fail(err)
			log.Logger().Fatal("failed to fit model", zap.Error(err))
		}
		span.Add(1)

		// save model
		store, registry, err := openStores(cfg)
		if err != nil {
			log.Logger().Fatal("failed to open model stores", zap.Error(err))
		}
		defer registry.Close()
		record := &meta.Model{
			UUID:       uuid.New().String(),
			Name:       name,
			Feedback:   string(model.Params().Feedback),
			Kernel:     model.Params().Kernel,
			NItems:     int(model.ItemIndex().Len()),
			NUsers:     int(model.UserIndex().Len()),
			NNZ:        model.Similarities().NNZ(),
			CreateTime: time.Now(),
		}
		if err = knn.Save(store, modelFile(record), model); err != nil {
			log.Logger().Fatal("failed to save model", zap.Error(err))
		}
		if err = registry.Put(record); err != nil {
			log.Logger().Fatal("failed to register model", zap.Error(err))
		}
		span.Add(1)
		span.End()

		// print summary
		table := tablewriter.NewWriter(os.Stdout)
		table.Header([]string{"Step", "Status", "Progress", "Time"})
		for _, p := range tracer.List() {
			_ = table.Append([]string{p.Name, string(p.Status), fmt.Sprintf("%d/%d", p.Count, p.Total),
				p.FinishTime.Sub(p.StartTime).Round(time.Millisecond).String()})
		}
		_ = table.Render()
		for _, warning := range model.Warnings() {
			fmt.Println("warning:", warning.String())
		}
		fmt.Printf("model %s (%s): %d items, %d users, %d neighbors\n",
			record.Name, record.UUID, record.NItems, record.NUsers, record.NNZ)
	},
}

func init() {
	rootCommand.AddCommand(fitCommand)
}
