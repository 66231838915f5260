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
	"cmp"
	"os"
	"runtime"
	"slices"
	"strconv"

	"github.com/gorse-io/itemknn/common/log"
	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type score struct {
	user  string
	item  string
	score float64
}

var predictCommand = &cobra.Command{
	Use:   "predict",
	Short: "Score items for users.",
	Run: func(cmd *cobra.Command, args []string) {
		users, _ := cmd.Flags().GetStringSlice("user")
		items, _ := cmd.Flags().GetStringSlice("item")
		top, _ := cmd.Flags().GetInt("top")
		model := loadModel(cmd)
		if len(items) == 0 {
			items = model.ItemIndex().GetNames()
		}

		// score users concurrently
		results := make([][]score, len(users))
		var g errgroup.Group
		g.SetLimit(runtime.NumCPU())
		for i, user := range users {
			g.Go(func() error {
				for item, s := range model.Predict(user, items) {
					results[i] = append(results[i], score{user: user, item: item, score: s})
				}
				slices.SortFunc(results[i], func(a, b score) int {
					if c := cmp.Compare(b.score, a.score); c != 0 {
						return c
					}
					return cmp.Compare(a.item, b.item)
				})
				if top > 0 && len(results[i]) > top {
					results[i] = results[i][:top]
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			log.Logger().Fatal("failed to predict", zap.Error(err))
		}

		table := tablewriter.NewWriter(os.Stdout)
		table.Header([]string{"User", "Item", "Score"})
		for _, s := range lo.Flatten(results) {
			_ = table.Append([]string{s.user, s.item, strconv.FormatFloat(s.score, 'f', 6, 64)})
		}
		_ = table.Render()
	},
}

func init() {
	rootCommand.AddCommand(predictCommand)
	predictCommand.Flags().StringSlice("user", nil, "Users to score for.")
	predictCommand.Flags().StringSlice("item", nil, "Items to score, all items if empty.")
	predictCommand.Flags().Int("top", 10, "Number of items per user, all if 0.")
	_ = predictCommand.MarkFlagRequired("user")
}
