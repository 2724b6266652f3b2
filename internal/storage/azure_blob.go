// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/specialistvlad/printgraph/internal/ctxlog"
)

// AzureBlobSink stores objects as block blobs in one container, using a
// shared-key connection string. Plain http endpoints (Azurite) are allowed.
type AzureBlobSink struct {
	client        *azblob.Client
	serviceURL    string
	containerName string
	prefix        string

	mu            sync.Mutex
	containerInit bool
}

// AzureBlobConfig configures an AzureBlobSink.
type AzureBlobConfig struct {
	ConnectionString string
	Container        string
	// Prefix is prepended to every blob name.
	Prefix string
}

// NewAzureBlobSink creates a sink from a standard connection string.
func NewAzureBlobSink(cfg AzureBlobConfig) (*AzureBlobSink, error) {
	if cfg.ConnectionString == "" {
		return nil, fmt.Errorf("connection string is required")
	}
	if cfg.Container == "" {
		return nil, fmt.Errorf("container name is required")
	}

	params := parseConnectionString(cfg.ConnectionString)
	accountName := params["AccountName"]
	accountKey := params["AccountKey"]
	serviceURL := params["BlobEndpoint"]
	if accountName == "" || accountKey == "" {
		return nil, fmt.Errorf("account name and key are required in the connection string")
	}
	if serviceURL == "" {
		serviceURL = fmt.Sprintf("https://%s.blob.core.windows.net", accountName)
	}

	credential, err := azblob.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create shared key credential: %w", err)
	}

	var clientOpts *azblob.ClientOptions
	if strings.HasPrefix(strings.ToLower(serviceURL), "http://") {
		clientOpts = &azblob.ClientOptions{
			ClientOptions: azcore.ClientOptions{
				InsecureAllowCredentialWithHTTP: true,
			},
		}
	}

	client, err := azblob.NewClientWithSharedKeyCredential(serviceURL, credential, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to create blob client: %w", err)
	}

	return &AzureBlobSink{
		client:        client,
		serviceURL:    strings.TrimRight(serviceURL, "/"),
		containerName: cfg.Container,
		prefix:        strings.Trim(cfg.Prefix, "/"),
	}, nil
}

// Put uploads data and returns the blob URL.
func (s *AzureBlobSink) Put(ctx context.Context, name string, data []byte, contentType string) (string, error) {
	logger := ctxlog.FromContext(ctx)

	blobPath, err := s.blobPath(name)
	if err != nil {
		return "", err
	}
	if err := s.ensureContainer(ctx); err != nil {
		return "", err
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	blobClient := s.client.ServiceClient().NewContainerClient(s.containerName).NewBlockBlobClient(blobPath)
	_, err = blobClient.UploadBuffer(ctx, data, &azblob.UploadBufferOptions{
		HTTPHeaders: &blob.HTTPHeaders{
			BlobContentType: to.Ptr(contentType),
		},
	})
	if err != nil {
		logger.Error("Failed to upload to blob storage.", "blobPath", blobPath, "size", len(data), "error", err)
		return "", fmt.Errorf("blob upload failed: %w", err)
	}

	logger.Debug("Uploaded blob.", "blobPath", blobPath, "size", len(data))
	return blobClient.URL(), nil
}

func (s *AzureBlobSink) blobPath(name string) (string, error) {
	clean, err := cleanName(name)
	if err != nil {
		return "", err
	}
	if s.prefix == "" {
		return clean, nil
	}
	return s.prefix + "/" + clean, nil
}

func (s *AzureBlobSink) ensureContainer(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.containerInit {
		return nil
	}

	_, err := s.client.CreateContainer(ctx, s.containerName, nil)
	if err != nil {
		var respErr *azcore.ResponseError
		if errors.As(err, &respErr) && respErr.ErrorCode == "ContainerAlreadyExists" {
			s.containerInit = true
			return nil
		}
		return fmt.Errorf("failed to ensure container: %w", err)
	}

	ctxlog.FromContext(ctx).Debug("Created blob container.", "container", s.containerName)
	s.containerInit = true
	return nil
}

func parseConnectionString(connectionString string) map[string]string {
	parts := strings.Split(connectionString, ";")
	params := make(map[string]string, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		idx := strings.Index(part, "=")
		if idx <= 0 {
			continue
		}
		params[part[:idx]] = part[idx+1:]
	}
	return params
}
