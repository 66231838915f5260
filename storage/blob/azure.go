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
	"fmt"
	"io"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/gorse-io/itemknn/common/log"
	"github.com/gorse-io/itemknn/config"
	"github.com/juju/errors"
	"go.uber.org/zap"
)

// AzureBlob stores objects as block blobs of one container.
type AzureBlob struct {
	client    *azblob.Client
	container string
	prefix    string
}

// NewAzureBlob connects with a connection string if given, otherwise with a shared key.
func NewAzureBlob(cfg config.AzureBlobConfig) (*AzureBlob, error) {
	client, err := newAzureClient(cfg)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return &AzureBlob{client: client, container: cfg.Container, prefix: keyPrefix(cfg.Prefix)}, nil
}

func newAzureClient(cfg config.AzureBlobConfig) (*azblob.Client, error) {
	if cfg.ConnectionString != "" {
		return azblob.NewClientFromConnectionString(cfg.ConnectionString, nil)
	}
	if cfg.AccountName == "" || cfg.AccountKey == "" {
		return nil, errors.NotValidf("azure blob without account_name and account_key or connection_string")
	}
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://%s.blob.core.windows.net/", cfg.AccountName)
	}
	cred, err := azblob.NewSharedKeyCredential(cfg.AccountName, cfg.AccountKey)
	if err != nil {
		return nil, err
	}
	return azblob.NewClientWithSharedKeyCredential(endpoint, cred, nil)
}

func (a *AzureBlob) Open(name string) (io.ReadCloser, error) {
	resp, err := a.client.DownloadStream(context.Background(), a.container, a.prefix+name, nil)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return resp.Body, nil
}

// Create uploads blocks as they are written. The block list is committed only
// after the whole stream has been read.
func (a *AzureBlob) Create(name string) (io.WriteCloser, error) {
	blobName := a.prefix + name
	return upload(func(r io.Reader) error {
		if _, err := a.client.UploadStream(context.Background(), a.container, blobName, r, nil); err != nil {
			log.Logger().Error("failed to upload blob to Azure", zap.String("blob", blobName), zap.Error(err))
			return errors.Trace(err)
		}
		return nil
	}), nil
}

func (a *AzureBlob) List() ([]string, error) {
	var names []string
	opts := &azblob.ListBlobsFlatOptions{}
	if a.prefix != "" {
		opts.Prefix = &a.prefix
	}
	pager := a.client.NewListBlobsFlatPager(a.container, opts)
	for pager.More() {
		page, err := pager.NextPage(context.Background())
		if err != nil {
			return nil, errors.Trace(err)
		}
		for _, item := range page.Segment.BlobItems {
			if item.Name != nil {
				names = append(names, strings.TrimPrefix(*item.Name, a.prefix))
			}
		}
	}
	return names, nil
}

func (a *AzureBlob) Remove(name string) error {
	_, err := a.client.DeleteBlob(context.Background(), a.container, a.prefix+name, nil)
	return errors.Trace(err)
}
