package storage

import (
	"bytes"
	"context"
	"fmt"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// PhotoArchive keeps a long-term copy of uploaded photos.
type PhotoArchive interface {
	// Put stores data under key and returns the object URL.
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// ArchiveKey returns the object key for an analysis photo.
func ArchiveKey(analysisID string) string {
	return fmt.Sprintf("analyses/%s/original.jpg", analysisID)
}

// MinioArchive stores photos in an S3-compatible bucket.
type MinioArchive struct {
	client *minio.Client
	bucket string
}

// NewMinioArchive connects to endpoint and creates the bucket if it is missing.
func NewMinioArchive(ctx context.Context, endpoint, region, bucket, accessKey, secretKey string, useSSL bool) (*MinioArchive, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("creating minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("checking bucket %s: %w", bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: region}); err != nil {
			return nil, fmt.Errorf("creating bucket %s: %w", bucket, err)
		}
	}

	return &MinioArchive{client: client, bucket: bucket}, nil
}

func (a *MinioArchive) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	_, err := a.client.PutObject(ctx, a.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("uploading %s: %w", key, err)
	}

	u := *a.client.EndpointURL()
	u.Path = fmt.Sprintf("/%s/%s", a.bucket, key)
	return u.String(), nil
}
