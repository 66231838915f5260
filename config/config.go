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

package config

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/juju/errors"
	"github.com/spf13/viper"
)

const (
	BlobPOSIX = "posix"
	BlobS3    = "s3"
	BlobGCS   = "gcs"
	BlobAzure = "azure"
)

// Config is the configuration of the itemknn command.
type Config struct {
	KNN  KNNConfig  `mapstructure:"knn"`
	Data DataConfig `mapstructure:"data"`
	Blob BlobConfig `mapstructure:"blob"`
	Meta MetaConfig `mapstructure:"meta"`
}

// KNNConfig is the configuration of item-item models. Center and UseRatings are
// left nil to take the default of the feedback type.
type KNNConfig struct {
	Feedback         string  `mapstructure:"feedback" validate:"oneof=explicit implicit"`
	NeighborhoodSize int     `mapstructure:"neighborhood_size" validate:"gte=0"`
	PredictNeighbors int     `mapstructure:"predict_neighbors" validate:"gte=0"`
	MinNeighbors     int     `mapstructure:"min_neighbors" validate:"gte=1"`
	MinSimilarity    float64 `mapstructure:"min_similarity"`
	Center           *bool   `mapstructure:"center"`
	Aggregate        string  `mapstructure:"aggregate" validate:"omitempty,oneof=weighted-average sum"`
	UseRatings       *bool   `mapstructure:"use_ratings"`
	Kernel           string  `mapstructure:"kernel" validate:"oneof=gustavson parallel single"`
	Jobs             int     `mapstructure:"jobs" validate:"gte=1"`
}

// DataConfig locates the ratings. Source is a database URL or a CSV file.
type DataConfig struct {
	Source  string        `mapstructure:"source"`
	Table   string        `mapstructure:"table" validate:"required"`
	Timeout time.Duration `mapstructure:"timeout" validate:"gte=0"`
}

// BlobConfig locates model files.
type BlobConfig struct {
	Type  string          `mapstructure:"type" validate:"oneof=posix s3 gcs azure"`
	Dir   string          `mapstructure:"dir"`
	S3    S3Config        `mapstructure:"s3"`
	GCS   GCSConfig       `mapstructure:"gcs"`
	Azure AzureBlobConfig `mapstructure:"azure"`
}

type S3Config struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	Bucket          string `mapstructure:"bucket"`
	Prefix          string `mapstructure:"prefix"`
	UseSSL          bool   `mapstructure:"use_ssl"`
}

type GCSConfig struct {
	Bucket          string `mapstructure:"bucket"`
	Prefix          string `mapstructure:"prefix"`
	CredentialsFile string `mapstructure:"credentials_file"`
}

type AzureBlobConfig struct {
	AccountName      string `mapstructure:"account_name"`
	AccountKey       string `mapstructure:"account_key"`
	ConnectionString string `mapstructure:"connection_string"`
	Endpoint         string `mapstructure:"endpoint"`
	Container        string `mapstructure:"container"`
	Prefix           string `mapstructure:"prefix"`
}

// MetaConfig locates the SQLite registry of trained models.
type MetaConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

// GetDefaultConfig returns the default configuration.
func GetDefaultConfig() *Config {
	return &Config{
		KNN: KNNConfig{
			Feedback:         "explicit",
			PredictNeighbors: 20,
			MinNeighbors:     1,
			MinSimilarity:    1e-6,
			Kernel:           "gustavson",
			Jobs:             1,
		},
		Data: DataConfig{
			Table:   "ratings",
			Timeout: time.Minute,
		},
		Blob: BlobConfig{
			Type: BlobPOSIX,
			Dir:  "models",
		},
		Meta: MetaConfig{
			Path: "itemknn.db",
		},
	}
}

func setDefault(v *viper.Viper) {
	defaultConfig := GetDefaultConfig()
	// [knn]
	v.SetDefault("knn.feedback", defaultConfig.KNN.Feedback)
	v.SetDefault("knn.neighborhood_size", defaultConfig.KNN.NeighborhoodSize)
	v.SetDefault("knn.predict_neighbors", defaultConfig.KNN.PredictNeighbors)
	v.SetDefault("knn.min_neighbors", defaultConfig.KNN.MinNeighbors)
	v.SetDefault("knn.min_similarity", defaultConfig.KNN.MinSimilarity)
	v.SetDefault("knn.kernel", defaultConfig.KNN.Kernel)
	v.SetDefault("knn.jobs", defaultConfig.KNN.Jobs)
	// [data]
	v.SetDefault("data.table", defaultConfig.Data.Table)
	v.SetDefault("data.timeout", defaultConfig.Data.Timeout)
	// [blob]
	v.SetDefault("blob.type", defaultConfig.Blob.Type)
	v.SetDefault("blob.dir", defaultConfig.Blob.Dir)
	// [meta]
	v.SetDefault("meta.path", defaultConfig.Meta.Path)
}

type configBinding struct {
	key string
	env string
}

var bindings = []configBinding{
	{"knn.feedback", "ITEMKNN_FEEDBACK"},
	{"knn.neighborhood_size", "ITEMKNN_NEIGHBORHOOD_SIZE"},
	{"knn.kernel", "ITEMKNN_KERNEL"},
	{"knn.jobs", "ITEMKNN_JOBS"},
	{"data.source", "ITEMKNN_DATA_SOURCE"},
	{"data.table", "ITEMKNN_DATA_TABLE"},
	{"blob.type", "ITEMKNN_BLOB_TYPE"},
	{"blob.dir", "ITEMKNN_BLOB_DIR"},
	{"blob.s3.endpoint", "ITEMKNN_S3_ENDPOINT"},
	{"blob.s3.access_key_id", "ITEMKNN_S3_ACCESS_KEY_ID"},
	{"blob.s3.secret_access_key", "ITEMKNN_S3_SECRET_ACCESS_KEY"},
	{"blob.gcs.credentials_file", "ITEMKNN_GCS_CREDENTIALS_FILE"},
	{"blob.azure.connection_string", "ITEMKNN_AZURE_CONNECTION_STRING"},
	{"meta.path", "ITEMKNN_META_PATH"},
}

// LoadConfig loads a TOML configuration file. An empty path loads defaults and
// environment variables only.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefault(v)
	for _, binding := range bindings {
		if err := v.BindEnv(binding.key, binding.env); err != nil {
			return nil, errors.Trace(err)
		}
	}
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Trace(err)
		}
	}
	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))); err != nil {
		return nil, errors.Trace(err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	return &cfg, nil
}

// Validate checks the configuration against its validate tags.
func (config *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(config); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			fields := make([]string, 0, len(validationErrors))
			for _, fieldError := range validationErrors {
				fields = append(fields, fieldError.Namespace()+" "+fieldError.Tag())
			}
			return errors.NotValidf("config (%s)", strings.Join(fields, ", "))
		}
		return errors.Trace(err)
	}
	return nil
}
