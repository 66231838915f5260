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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const LabelStep = "step"

const (
	stepIndex    = "index"
	stepCenter   = "center"
	stepSimilar  = "similarity"
	stepTruncate = "truncate"
)

var (
	FitStepSecondsVec = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "itemknn",
		Subsystem: "fit",
		Name:      "step_seconds",
	}, []string{LabelStep})
	FitTotalSeconds = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "itemknn",
		Subsystem: "fit",
		Name:      "total_seconds",
	})
	SimilarityEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "itemknn",
		Subsystem: "fit",
		Name:      "similarity_entries",
	})
	DuplicateRatingsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "itemknn",
		Subsystem: "fit",
		Name:      "duplicate_ratings_total",
	})
)
