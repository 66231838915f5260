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
	"context"
	"fmt"
	"time"

	"github.com/gorse-io/itemknn/common/log"
	"github.com/gorse-io/itemknn/common/progress"
	"github.com/gorse-io/itemknn/common/sparse"
	"github.com/gorse-io/itemknn/dataset"
	"github.com/juju/errors"
	"go.uber.org/zap"
)

// ItemKNN fits item-item models. It holds no state changed by Fit, so one
// estimator may fit several datasets concurrently.
type ItemKNN struct {
	params   Params
	kernel   sparse.Kernel
	warnings []Warning
}

// New validates the configuration. Suspicious configurations are accepted with
// warnings.
func New(cfg Config) (*ItemKNN, error) {
	params, warnings, err := cfg.Resolve()
	if err != nil {
		return nil, errors.Trace(err)
	}
	kernel, err := sparse.NewKernel(params.Kernel, params.Jobs)
	if err != nil {
		return nil, configError("%v", err)
	}
	return &ItemKNN{params: params, kernel: kernel, warnings: warnings}, nil
}

func (knn *ItemKNN) Params() Params {
	return knn.params
}

// Warnings returns the configuration warnings.
func (knn *ItemKNN) Warnings() []Warning {
	return knn.warnings
}

// Fit trains a model. Data problems that leave the model computable are
// reported by Model.Warnings.
func (knn *ItemKNN) Fit(ctx context.Context, ratings *dataset.Ratings) (*Model, error) {
	fitStart := time.Now()
	ctx, span := progress.Start(ctx, "ItemKNN.Fit", 4)
	m, err := knn.fit(ctx, span, ratings)
	if err != nil {
		span.Fail(err)
		return nil, errors.Trace(err)
	}
	span.End()
	FitTotalSeconds.Set(time.Since(fitStart).Seconds())
	SimilarityEntries.Set(float64(m.similarities.NNZ()))
	log.Logger().Info("fit item knn complete",
		zap.Int("n_items", int(m.itemIndex.Len())),
		zap.Int("n_users", int(m.userIndex.Len())),
		zap.Int("n_similarities", m.similarities.NNZ()),
		zap.Int("n_warnings", len(m.warnings)),
		zap.Duration("fit_time", time.Since(fitStart)))
	return m, nil
}

func (knn *ItemKNN) fit(ctx context.Context, span *progress.Span, ratings *dataset.Ratings) (*Model, error) {
	m := &Model{params: knn.params, warnings: append([]Warning(nil), knn.warnings...)}

	// index ratings
	start := time.Now()
	data, err := dataset.Build(ratings, knn.params.UseRatings, knn.params.RequireRatings())
	if err != nil {
		return nil, errors.Trace(err)
	}
	if data.Duplicates() > 0 {
		m.warnings = warn(m.warnings, DataWarning,
			fmt.Sprintf("%d duplicate ratings from %d users, the last rating of each pair is used",
				data.Duplicates(), len(data.DuplicateUsers())),
			zap.Strings("users", data.DuplicateUsers()))
		DuplicateRatingsTotal.Set(float64(data.Duplicates()))
	}
	m.itemIndex = data.ItemIndex()
	m.userIndex = data.UserIndex()
	m.userItems = data.UserItems()
	FitStepSecondsVec.WithLabelValues(stepIndex).Set(time.Since(start).Seconds())
	log.Logger().Info("index ratings",
		zap.Int("n_ratings", data.CountRatings()),
		zap.Int("n_users", data.CountUsers()),
		zap.Int("n_items", data.CountItems()),
		zap.Bool("use_ratings", data.HasValues()))
	span.Add(1)

	// center ratings
	start = time.Now()
	itemUsers := data.ItemUsers()
	if knn.params.Center {
		var degenerate bool
		itemUsers, m.centering, degenerate = center(itemUsers)
		if degenerate && data.CountRatings() > 0 {
			m.warnings = warn(m.warnings, DataWarning, "every rating equals its item mean, centered similarities are meaningless")
		}
	}
	FitStepSecondsVec.WithLabelValues(stepCenter).Set(time.Since(start).Seconds())
	span.Add(1)
	if err = ctx.Err(); err != nil {
		return nil, errors.Trace(err)
	}

	// compute similarities
	start = time.Now()
	sims, err := similarities(ctx, knn.kernel, itemUsers)
	if err != nil {
		return nil, errors.Trace(err)
	}
	FitStepSecondsVec.WithLabelValues(stepSimilar).Set(time.Since(start).Seconds())
	log.Logger().Info("compute similarities",
		zap.String("kernel", knn.kernel.Name()),
		zap.Int("n_products", sims.NNZ()),
		zap.Duration("time", time.Since(start)))
	span.Add(1)

	// truncate neighborhoods
	start = time.Now()
	m.similarities, m.counts, err = truncate(ctx, sims, knn.params.MinSimilarity, knn.params.NeighborhoodSize, knn.params.Jobs)
	if err != nil {
		return nil, errors.Trace(err)
	}
	FitStepSecondsVec.WithLabelValues(stepTruncate).Set(time.Since(start).Seconds())
	log.Logger().Info("truncate neighborhoods",
		zap.Int("neighborhood_size", knn.params.NeighborhoodSize),
		zap.Float64("min_similarity", knn.params.MinSimilarity),
		zap.Int("n_similarities", m.similarities.NNZ()))
	span.Add(1)
	return m, nil
}
