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

	"github.com/gorse-io/itemknn/common/sparse"
	"github.com/gorse-io/itemknn/config"
	"github.com/juju/errors"
	"github.com/samber/lo"
)

type Feedback string

const (
	Explicit Feedback = "explicit"
	Implicit Feedback = "implicit"
)

type Aggregate string

const (
	WeightedAverage Aggregate = "weighted-average"
	Sum             Aggregate = "sum"
)

const (
	DefaultPredictNeighbors = 20
	DefaultMinNeighbors     = 1
	DefaultMinSimilarity    = 1e-6
)

// Config is the user facing configuration. Start from DefaultConfig: nil Center
// and UseRatings, and an empty Aggregate, take the default of the feedback type.
type Config struct {
	Feedback Feedback
	// NeighborhoodSize caps the stored neighbors per item, 0 keeps all.
	NeighborhoodSize int
	// PredictNeighbors caps the neighbors used per prediction, 0 uses all.
	PredictNeighbors int
	MinNeighbors     int
	// MinSimilarity is the smallest similarity strictly exceeded by a usable neighbor.
	// A positive value lets prediction stop at the first weaker neighbor.
	MinSimilarity float64
	Center        *bool
	Aggregate     Aggregate
	UseRatings    *bool
	Kernel        string
	Jobs          int
}

// DefaultConfig returns the configuration for explicit feedback.
func DefaultConfig() Config {
	return Config{
		Feedback:         Explicit,
		PredictNeighbors: DefaultPredictNeighbors,
		MinNeighbors:     DefaultMinNeighbors,
		MinSimilarity:    DefaultMinSimilarity,
		Kernel:           sparse.Gustavson,
		Jobs:             1,
	}
}

// ConfigFrom converts the [knn] section of a configuration file.
func ConfigFrom(c config.KNNConfig) Config {
	return Config{
		Feedback:         Feedback(c.Feedback),
		NeighborhoodSize: c.NeighborhoodSize,
		PredictNeighbors: c.PredictNeighbors,
		MinNeighbors:     c.MinNeighbors,
		MinSimilarity:    c.MinSimilarity,
		Center:           c.Center,
		Aggregate:        Aggregate(c.Aggregate),
		UseRatings:       c.UseRatings,
		Kernel:           c.Kernel,
		Jobs:             c.Jobs,
	}
}

// Params is the resolved configuration stored with a model.
type Params struct {
	Feedback         Feedback
	NeighborhoodSize int
	PredictNeighbors int
	MinNeighbors     int
	MinSimilarity    float64
	Center           bool
	Aggregate        Aggregate
	UseRatings       bool
	Kernel           string
	Jobs             int
}

// RequireRatings reports whether fitting needs rating magnitudes.
func (p Params) RequireRatings() bool {
	return p.UseRatings && (p.Center || p.Aggregate == WeightedAverage)
}

// Strategy is how prediction walks a similarity row.
type Strategy int

const (
	// StopEarly walks a row in stored order and stops at the first similarity not
	// above the threshold.
	StopEarly Strategy = iota
	// ScanAll examines every stored similarity.
	ScanAll
)

func (s Strategy) String() string {
	if s == StopEarly {
		return "stop-early"
	}
	return "scan-all"
}

// Strategy returns StopEarly when MinSimilarity is positive.
func (p Params) Strategy() Strategy {
	if p.MinSimilarity > 0 {
		return StopEarly
	}
	return ScanAll
}

// Resolve fills defaults and validates the configuration.
func (cfg Config) Resolve() (Params, []Warning, error) {
	feedback := lo.Ternary(cfg.Feedback == "", Explicit, cfg.Feedback)
	p := Params{
		Feedback:         feedback,
		NeighborhoodSize: cfg.NeighborhoodSize,
		PredictNeighbors: cfg.PredictNeighbors,
		MinNeighbors:     cfg.MinNeighbors,
		MinSimilarity:    cfg.MinSimilarity,
		Aggregate:        cfg.Aggregate,
		Kernel:           lo.Ternary(cfg.Kernel == "", sparse.Gustavson, cfg.Kernel),
		Jobs:             lo.Ternary(cfg.Jobs == 0, 1, cfg.Jobs),
	}
	switch feedback {
	case Explicit:
		p.Center, p.UseRatings = true, true
		if p.Aggregate == "" {
			p.Aggregate = WeightedAverage
		}
	case Implicit:
		p.Center, p.UseRatings = false, false
		if p.Aggregate == "" {
			p.Aggregate = Sum
		}
	default:
		return Params{}, nil, configError("unknown feedback %q", cfg.Feedback)
	}
	if cfg.Center != nil {
		p.Center = *cfg.Center
	}
	if cfg.UseRatings != nil {
		p.UseRatings = *cfg.UseRatings
	}
	if err := p.validate(); err != nil {
		return Params{}, nil, errors.Trace(err)
	}
	var warnings []Warning
	if !p.UseRatings && p.Aggregate == WeightedAverage {
		warnings = warn(warnings, ConfigWarning, "weighted-average aggregation ignores rating magnitudes when ratings are not used")
	}
	if !p.UseRatings && p.Center {
		warnings = warn(warnings, ConfigWarning, "centering is meaningless when ratings are not used")
	}
	return p, warnings, nil
}

func (p Params) validate() error {
	if p.Feedback != Explicit && p.Feedback != Implicit {
		return configError("unknown feedback %q", p.Feedback)
	}
	if p.Aggregate != WeightedAverage && p.Aggregate != Sum {
		return configError("unknown aggregate %q", p.Aggregate)
	}
	if p.NeighborhoodSize < 0 {
		return configError("negative neighborhood size %d", p.NeighborhoodSize)
	}
	if p.PredictNeighbors < 0 {
		return configError("negative predict neighbors %d", p.PredictNeighbors)
	}
	if p.MinNeighbors < 1 {
		return configError("min neighbors must be at least 1, got %d", p.MinNeighbors)
	}
	if p.PredictNeighbors > 0 && p.MinNeighbors > p.PredictNeighbors {
		return configError("min neighbors %d exceeds predict neighbors %d", p.MinNeighbors, p.PredictNeighbors)
	}
	if math.IsNaN(p.MinSimilarity) {
		return configError("min similarity is NaN")
	}
	if p.Jobs < 1 {
		return configError("jobs must be positive, got %d", p.Jobs)
	}
	if !lo.Contains(sparse.Kernels(), p.Kernel) {
		return configError("unknown kernel %q", p.Kernel)
	}
	return nil
}
