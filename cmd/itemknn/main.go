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
	"time"

	"github.com/gorse-io/itemknn/cmd/version"
	"github.com/gorse-io/itemknn/common/log"
	"github.com/gorse-io/itemknn/config"
	"github.com/gorse-io/itemknn/model/knn"
	"github.com/gorse-io/itemknn/storage/blob"
	"github.com/gorse-io/itemknn/storage/meta"
	"github.com/juju/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var rootCommand = &cobra.Command{
	Use:   "itemknn",
	Short: "Item-based collaborative filtering.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		debug, _ := cmd.Flags().GetBool("debug")
		log.SetLogger(cmd.Flags(), debug)
	},
	Run: func(cmd *cobra.Command, args []string) {
		if showVersion, _ := cmd.Flags().GetBool("version"); showVersion {
			fmt.Print(version.BuildInfo())
			return
		}
		_ = cmd.Help()
	},
}

func init() {
	rootCommand.PersistentFlags().StringP("config", "c", "", "Configuration file path.")
	rootCommand.PersistentFlags().Bool("debug", false, "Debug log mode.")
	rootCommand.PersistentFlags().String("name", "itemknn", "Model name.")
	log.AddFlags(rootCommand.PersistentFlags())
	rootCommand.Flags().BoolP("version", "v", false, "Print version.")
}

func main() {
	defer log.CloseLogger()
	if err := rootCommand.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command) *config.Config {
	configPath, _ := cmd.Flags().GetString("config")
	log.Logger().Info("load config", zap.String("config", configPath))
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Logger().Fatal("failed to load config", zap.Error(err))
	}
	return cfg
}

func openStores(cfg *config.Config) (blob.Store, meta.Database, error) {
	store, err := blob.Open(cfg.Blob)
	if err != nil {
		return nil, nil, errors.Trace(err)
	}
	registry, err := meta.Open(cfg.Meta.Path)
	if err != nil {
		return nil, nil, errors.Trace(err)
	}
	if err = registry.Init(); err != nil {
		_ = registry.Close()
		return nil, nil, errors.Trace(err)
	}
	return store, registry, nil
}

// loadModel loads the latest model of a name.
func loadModel(cmd *cobra.Command) *knn.Model {
	cfg := loadConfig(cmd)
	name, _ := cmd.Flags().GetString("name")
	store, registry, err := openStores(cfg)
	if err != nil {
		log.Logger().Fatal("failed to open model stores", zap.Error(err))
	}
	defer registry.Close()
	record, err := registry.Get(name)
	if err != nil {
		log.Logger().Fatal("failed to query model registry", zap.Error(err))
	} else if record == nil {
		log.Logger().Fatal("model not found", zap.String("name", name))
	}
	m, err := knn.Load(store, modelFile(record))
	if err != nil {
		log.Logger().Fatal("failed to load model", zap.String("name", name), zap.Error(err))
	}
	log.Logger().Info("load model",
		zap.String("name", name),
		zap.String("uuid", record.UUID),
		zap.Time("create_time", record.CreateTime))
	return m
}

func modelFile(record *meta.Model) string {
	return record.Name + "/" + record.UUID
}

// withTimeout bounds ctx by timeout unless timeout is zero.
func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
