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
	"fmt"

	"github.com/gorse-io/itemknn/common/log"
	"github.com/juju/errors"
	"go.uber.org/zap"
)

var (
	// ErrConfig is the kind of every error caused by an invalid configuration.
	ErrConfig = errors.New("invalid configuration")
	// ErrCorruptModel is the kind of every error caused by a malformed model stream.
	ErrCorruptModel = errors.New("corrupt model")
)

func configError(format string, args ...any) error {
	return errors.Annotatef(ErrConfig, format, args...)
}

func corruptError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrCorruptModel, fmt.Sprintf(format, args...))
}

type WarningKind string

const (
	// ConfigWarning flags a suspicious but legal configuration.
	ConfigWarning WarningKind = "config"
	// DataWarning flags a data quality problem observed during fit.
	DataWarning WarningKind = "data"
)

// Warning is a non-fatal condition. Warnings are logged when raised and kept
// for callers to inspect.
type Warning struct {
	Kind    WarningKind
	Message string
}

func (w Warning) String() string {
	return fmt.Sprintf("%s warning: %s", w.Kind, w.Message)
}

func warn(warnings []Warning, kind WarningKind, message string, fields ...zap.Field) []Warning {
	log.Logger().Warn(message, append(fields, zap.String("kind", string(kind)))...)
	return append(warnings, Warning{Kind: kind, Message: message})
}
