package remote

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/theonlywayisdigital/donedex-sub004/internal/errors"
	"github.com/theonlywayisdigital/donedex-sub004/internal/logging"
)

// MinIOStore implements BlobStore against any S3-compatible endpoint
// through the MinIO SDK. MinIO itself needs path-style access, which
// the SDK handles when given a bare host endpoint.
type MinIOStore struct {
	client *minio.Client
	bucket string
}

// NewMinIOStore configures the blob store. A scheme on the endpoint
// overrides useSSL; otherwise useSSL decides.
func NewMinIOStore(endpoint, bucket, accessKey, secretKey string, useSSL bool) (*MinIOStore, error) {
	if endpoint == "" {
		return nil, errors.New(errors.ErrInvalid, "blob endpoint cannot be empty")
	}
	if bucket == "" {
		return nil, errors.New(errors.ErrInvalid, "blob bucket cannot be empty")
	}

	if strings.HasPrefix(endpoint, "https://") {
		endpoint = strings.TrimPrefix(endpoint, "https://")
		useSSL = true
	} else if strings.HasPrefix(endpoint, "http://") {
		endpoint = strings.TrimPrefix(endpoint, "http://")
		useSSL = false
	}
	endpoint = strings.TrimSuffix(endpoint, "/")

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, errors.Wrap(errors.ErrInvalid, "failed to configure blob store", err)
	}
	return &MinIOStore{client: client, bucket: bucket}, nil
}

var _ BlobStore = (*MinIOStore)(nil)

// Upload writes the blob. Re-uploading the same path overwrites, so a
// retried photo dispatch is safe.
func (s *MinIOStore) Upload(ctx context.Context, path string, r io.Reader, size int64, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucket, path, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return errors.Wrap(errors.ErrBlobUploadFailed, fmt.Sprintf("failed to upload blob %s", path), err)
	}
	logging.Debug("blob uploaded", map[string]interface{}{
		"path":  path,
		"bytes": size,
	})
	return nil
}

// Download opens the blob for reading. The caller closes the reader.
func (s *MinIOStore) Download(ctx context.Context, path string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, path, minio.GetObjectOptions{})
	if err != nil {
		return nil, errors.Wrap(errors.ErrSyncFailed, fmt.Sprintf("failed to open blob %s", path), err)
	}
	// GetObject is lazy; stat now so a missing blob errors here
	// instead of on first read.
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		return nil, errors.Wrap(errors.ErrFileNotFound, fmt.Sprintf("blob %s not found", path), err)
	}
	return obj, nil
}

// Delete removes the blob. Deleting an absent path is a no-op
// server-side.
func (s *MinIOStore) Delete(ctx context.Context, path string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, path, minio.RemoveObjectOptions{}); err != nil {
		return errors.Wrap(errors.ErrSyncFailed, fmt.Sprintf("failed to delete blob %s", path), err)
	}
	return nil
}

// List returns the keys under a prefix.
func (s *MinIOStore) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, errors.Wrap(errors.ErrSyncFailed, "failed to list blobs", obj.Err)
		}
		keys = append(keys, obj.Key)
	}
	return keys, nil
}

// TestConnection verifies the endpoint is reachable and the bucket
// exists.
func (s *MinIOStore) TestConnection(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return errors.Wrap(errors.ErrSyncFailed, "failed to reach blob store", err)
	}
	if !exists {
		return errors.New(errors.ErrNotFound, fmt.Sprintf("bucket %q does not exist", s.bucket))
	}
	return nil
}
