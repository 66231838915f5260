// Copyright 2025 gorse Project Authors
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

package blob

import (
	"context"
	"io"
	"os"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/gorse-io/itemknn/config"
	"github.com/juju/errors"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// GCS stores objects in a Google Cloud Storage bucket. GCS_EMULATOR_ENDPOINT points
// the client to an emulator without authentication.
type GCS struct {
	client *storage.Client
	bucket *storage.BucketHandle
	prefix string
}

func NewGCS(cfg config.GCSConfig) (*GCS, error) {
	var opts []option.ClientOption
	if endpoint := os.Getenv("GCS_EMULATOR_ENDPOINT"); endpoint != "" {
		opts = append(opts, option.WithEndpoint(endpoint), option.WithoutAuthentication())
	}
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	client, err := storage.NewClient(context.Background(), opts...)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return &GCS{client: client, bucket: client.Bucket(cfg.Bucket), prefix: keyPrefix(cfg.Prefix)}, nil
}

func (g *GCS) object(name string) *storage.ObjectHandle {
	return g.bucket.Object(g.prefix + name)
}

func (g *GCS) Open(name string) (io.ReadCloser, error) {
	r, err := g.object(name).NewReader(context.Background())
	if err != nil {
		return nil, errors.Trace(err)
	}
	return r, nil
}

// Create an object. GCS commits it when the storage writer closes, which never
// happens after its context is canceled.
func (g *GCS) Create(name string) (io.WriteCloser, error) {
	return upload(func(r io.Reader) error {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		w := g.object(name).NewWriter(ctx)
		if _, err := io.Copy(w, r); err != nil {
			cancel()
			_ = w.Close()
			return errors.Trace(err)
		}
		return errors.Trace(w.Close())
	}), nil
}

func (g *GCS) List() ([]string, error) {
	var names []string
	it := g.bucket.Objects(context.Background(), &storage.Query{Prefix: g.prefix})
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			return names, nil
		} else if err != nil {
			return nil, errors.Trace(err)
		}
		names = append(names, strings.TrimPrefix(attrs.Name, g.prefix))
	}
}

func (g *GCS) Remove(name string) error {
	return errors.Trace(g.object(name).Delete(context.Background()))
}
