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

package knn

import (
	"math"
	"testing"

	"github.com/gorse-io/itemknn/config"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveDefaults(t *testing.T) {
	params, warnings, err := DefaultConfig().Resolve()
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, Params{
		Feedback:         Explicit,
		PredictNeighbors: DefaultPredictNeighbors,
		MinNeighbors:     DefaultMinNeighbors,
		MinSimilarity:    DefaultMinSimilarity,
		Center:           true,
		Aggregate:        WeightedAverage,
		UseRatings:       true,
		Kernel:           "gustavson",
		Jobs:             1,
	}, params)
	assert.Equal(t, StopEarly, params.Strategy())
	assert.True(t, params.RequireRatings())

	cfg := DefaultConfig()
	cfg.Feedback = Implicit
	params, warnings, err = cfg.Resolve()
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.False(t, params.Center)
	assert.False(t, params.UseRatings)
	assert.Equal(t, Sum, params.Aggregate)
	assert.False(t, params.RequireRatings())
}

func TestResolveOverrides(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Center = lo.ToPtr(false)
	cfg.Aggregate = Sum
	cfg.MinSimilarity = -1
	params, warnings, err := cfg.Resolve()
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.False(t, params.Center)
	assert.True(t, params.UseRatings)
	assert.Equal(t, Sum, params.Aggregate)
	assert.Equal(t, ScanAll, params.Strategy())
	assert.False(t, params.RequireRatings())
	// empty fields take defaults
	params, _, err = Config{MinNeighbors: 1}.Resolve()
	require.NoError(t, err)
	assert.Equal(t, Explicit, params.Feedback)
	assert.Equal(t, "gustavson", params.Kernel)
	assert.Equal(t, 1, params.Jobs)
}

func TestConfigWarnings(t *testing.T) {
	// weighted average and centering without ratings
	cfg := DefaultConfig()
	cfg.UseRatings = lo.ToPtr(false)
	knn, err := New(cfg)
	require.NoError(t, err)
	require.Len(t, knn.Warnings(), 2)
	assert.Equal(t, ConfigWarning, knn.Warnings()[0].Kind)
	assert.Equal(t, ConfigWarning, knn.Warnings()[1].Kind)
	// centering without ratings
	cfg = DefaultConfig()
	cfg.UseRatings = lo.ToPtr(false)
	cfg.Aggregate = Sum
	knn, err = New(cfg)
	require.NoError(t, err)
	require.Len(t, knn.Warnings(), 1)
	assert.Contains(t, knn.Warnings()[0].Message, "centering")
	// weighted average without ratings
	cfg = DefaultConfig()
	cfg.UseRatings = lo.ToPtr(false)
	cfg.Center = lo.ToPtr(false)
	knn, err = New(cfg)
	require.NoError(t, err)
	require.Len(t, knn.Warnings(), 1)
	assert.Contains(t, knn.Warnings()[0].Message, "weighted-average")
	// implicit feedback is consistent
	cfg = DefaultConfig()
	cfg.Feedback = Implicit
	knn, err = New(cfg)
	require.NoError(t, err)
	assert.Empty(t, knn.Warnings())
}

func TestConfigErrors(t *testing.T) {
	for name, modify := range map[string]func(*Config){
		"negative neighborhood size": func(c *Config) { c.NeighborhoodSize = -1 },
		"negative predict neighbors": func(c *Config) { c.PredictNeighbors = -1 },
		"zero min neighbors":         func(c *Config) { c.MinNeighbors = 0 },
		"min exceeds predict":        func(c *Config) { c.MinNeighbors = 30 },
		"unknown feedback":           func(c *Config) { c.Feedback = "unary" },
		"unknown aggregate":          func(c *Config) { c.Aggregate = "max" },
		"unknown kernel":             func(c *Config) { c.Kernel = "cusparse" },
		"negative jobs":              func(c *Config) { c.Jobs = -2 },
		"nan min similarity":         func(c *Config) { c.MinSimilarity = math.NaN() },
	} {
		cfg := DefaultConfig()
		modify(&cfg)
		_, err := New(cfg)
		assert.True(t, errors.Is(err, ErrConfig), name)
	}
	// min neighbors is unbounded by an unlimited neighborhood
	cfg := DefaultConfig()
	cfg.PredictNeighbors = 0
	cfg.MinNeighbors = 30
	_, err := New(cfg)
	assert.NoError(t, err)
}

func TestConfigFrom(t *testing.T) {
	params, _, err := ConfigFrom(config.GetDefaultConfig().KNN).Resolve()
	require.NoError(t, err)
	expected, _, err := DefaultConfig().Resolve()
	require.NoError(t, err)
	assert.Equal(t, expected, params)
}
