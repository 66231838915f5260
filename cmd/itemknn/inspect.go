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
	"fmt"
	"os"
	"strconv"

	"github.com/gorse-io/itemknn/common/log"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var inspectCommand = &cobra.Command{
	Use:   "inspect",
	Short: "Print the stored neighbors of items.",
	Run: func(cmd *cobra.Command, args []string) {
		items, _ := cmd.Flags().GetStringSlice("item")
		model := loadModel(cmd)
		if len(items) == 0 {
			params := model.Params()
			fmt.Printf("feedback: %s, aggregate: %s, center: %v, use ratings: %v, kernel: %s\n",
				params.Feedback, params.Aggregate, params.Center, params.UseRatings, params.Kernel)
			fmt.Printf("%d items, %d users, %d neighbors\n",
				model.ItemIndex().Len(), model.UserIndex().Len(), model.Similarities().NNZ())
			return
		}
		table := tablewriter.NewWriter(os.Stdout)
		table.Header([]string{"Item", "Rank", "Neighbor", "Similarity"})
		for _, item := range items {
			neighbors, ok := model.Neighbors(item)
			if !ok {
				log.Logger().Warn("unknown item", zap.String("item", item))
				continue
			}
			for rank, n := range neighbors {
				_ = table.Append([]string{item, strconv.Itoa(rank + 1), n.Item, strconv.FormatFloat(n.Similarity, 'f', 6, 64)})
			}
		}
		_ = table.Render()
	},
}

func init() {
	rootCommand.AddCommand(inspectCommand)
	inspectCommand.Flags().StringSlice("item", nil, "Items to inspect, a summary of the model if empty.")
}
