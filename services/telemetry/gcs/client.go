// Copyright (C) 2025 The QAPulse Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package gcs wraps the Cloud Storage client for the cloud snapshot
// tier: the service reads a previously published snapshot object, the
// CLI writes one.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// maxObjectBytes caps snapshot object reads. Snapshots are small JSON
// documents; anything near this limit is not ours.
const maxObjectBytes = 4 << 20

// ErrObjectNotFound is returned when the snapshot object does not exist
// in the bucket.
var ErrObjectNotFound = errors.New("gcs: object not found")

type Client struct {
	storageClient *storage.Client
	BucketName    string
}

// NewClient creates a GCS client bound to one bucket. If saKeyPath is
// empty, ambient application-default credentials are used.
func NewClient(ctx context.Context, bucketName, saKeyPath string) (*Client, error) {
	if bucketName == "" {
		return nil, fmt.Errorf("gcs: bucket name is required")
	}

	var opts []option.ClientOption
	if saKeyPath != "" {
		if _, err := os.Stat(saKeyPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("service account key not found at path: %s", saKeyPath)
		}
		opts = append(opts, option.WithCredentialsFile(saKeyPath))
	}

	storageClient, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS storage client: %w", err)
	}

	return &Client{
		storageClient: storageClient,
		BucketName:    bucketName,
	}, nil
}

// ReadObject fetches the named object and returns its bytes.
func (c *Client) ReadObject(ctx context.Context, objectPath string) ([]byte, error) {
	reader, err := c.storageClient.Bucket(c.BucketName).Object(objectPath).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, fmt.Errorf("%w: gs://%s/%s", ErrObjectNotFound, c.BucketName, objectPath)
		}
		return nil, fmt.Errorf("failed to open GCS object %s: %w", objectPath, err)
	}
	defer reader.Close()

	data, err := io.ReadAll(io.LimitReader(reader, maxObjectBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read GCS object %s: %w", objectPath, err)
	}
	return data, nil
}

// WriteObject uploads data as the named object with JSON content type.
func (c *Client) WriteObject(ctx context.Context, objectPath string, data []byte) error {
	obj := c.storageClient.Bucket(c.BucketName).Object(objectPath)
	writer := obj.NewWriter(ctx)
	writer.ContentType = "application/json"
	writer.CacheControl = "no-cache, no-store, must-revalidate"

	if _, err := writer.Write(data); err != nil {
		writer.Close()
		return fmt.Errorf("failed to write GCS object %s: %w", objectPath, err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close GCS writer for %s: %w", objectPath, err)
	}
	return nil
}

// UploadFile uploads a local file as the named object.
func (c *Client) UploadFile(ctx context.Context, localPath, objectPath string) error {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return fmt.Errorf("failed to read the local file %s: %w", localPath, err)
	}
	return c.WriteObject(ctx, objectPath, data)
}

// Close releases the underlying storage client.
func (c *Client) Close() error {
	return c.storageClient.Close()
}
