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
	"io"
	"strings"

	"github.com/gorse-io/itemknn/config"
	"github.com/juju/errors"
)

// Store keeps named binary objects such as trained models.
type Store interface {
	// Open an object for reading.
	Open(name string) (io.ReadCloser, error)
	// Create an object for writing. Close on the writer returns once the object is
	// committed, with the error of committing it.
	Create(name string) (io.WriteCloser, error)
	// List names of all objects.
	List() ([]string, error)
	// Remove an object.
	Remove(name string) error
}

// Open creates the store selected by the configuration.
func Open(cfg config.BlobConfig) (Store, error) {
	switch cfg.Type {
	case config.BlobPOSIX, "":
		return NewPOSIX(cfg.Dir), nil
	case config.BlobS3:
		return NewS3(cfg.S3)
	case config.BlobGCS:
		return NewGCS(cfg.GCS)
	case config.BlobAzure:
		return NewAzureBlob(cfg.Azure)
	}
	return nil, errors.NotSupportedf("blob store %q", cfg.Type)
}

// Uploader pipes the bytes written to it into a commit function running on its own
// goroutine. The commit function must not persist the object if reading fails.
type Uploader struct {
	*io.PipeWriter
	done chan struct{}
	err  error
}

func upload(commit func(r io.Reader) error) *Uploader {
	pr, pw := io.Pipe()
	u := &Uploader{PipeWriter: pw, done: make(chan struct{})}
	go func() {
		defer close(u.done)
		u.err = commit(pr)
		_ = pr.CloseWithError(u.err)
	}()
	return u
}

// Close ends the object and waits for the commit result.
func (u *Uploader) Close() error {
	_ = u.PipeWriter.Close()
	<-u.done
	return errors.Trace(u.err)
}

// CloseWithError aborts the object and waits until the commit function returns.
func (u *Uploader) CloseWithError(cause error) error {
	_ = u.PipeWriter.CloseWithError(cause)
	<-u.done
	return nil
}

// keyPrefix turns a configured prefix into "" or "dir/".
func keyPrefix(prefix string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return ""
	}
	return prefix + "/"
}
