package blob

import (
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/dharsanguruparan/VaultSign/internal/config"
)

// MinioStore wraps MinIO/S3-compatible interactions.
type MinioStore struct {
	client    *minio.Client
	buckets   registry
	order     []Bucket
	region    string
	publicURL string
}

// NewMinio creates a MinIO client from the Config serving the given buckets.
func NewMinio(cfg *config.Config, buckets ...Bucket) (*MinioStore, error) {
	client, err := minio.New(cfg.S3Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		Secure: cfg.S3UseSSL,
		Region: cfg.S3Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio: %w", err)
	}
	return &MinioStore{
		client:    client,
		buckets:   newRegistry(buckets),
		order:     buckets,
		region:    cfg.S3Region,
		publicURL: cfg.PublicBlobURL,
	}, nil
}

// EnsureBuckets makes sure every bucket exists and public ones carry an
// anonymous read policy.
func (s *MinioStore) EnsureBuckets(ctx context.Context) error {
	for _, b := range s.order {
		exists, err := s.client.BucketExists(ctx, b.Name)
		if err != nil {
			return fmt.Errorf("check bucket %s: %w", b.Name, err)
		}
		if !exists {
			if err := s.client.MakeBucket(ctx, b.Name, minio.MakeBucketOptions{Region: s.region}); err != nil {
				return fmt.Errorf("make bucket %s: %w", b.Name, err)
			}
		}
		if b.Public {
			if err := s.client.SetBucketPolicy(ctx, b.Name, publicReadPolicy(b.Name)); err != nil {
				return fmt.Errorf("set policy %s: %w", b.Name, err)
			}
		}
	}
	return nil
}

// Put uploads an object after checking the bucket limits.
func (s *MinioStore) Put(ctx context.Context, bucket, key string, r io.Reader, size int64, contentType string) error {
	if err := s.buckets.check(bucket, size, contentType); err != nil {
		return err
	}
	opts := minio.PutObjectOptions{ContentType: contentType}
	if _, err := s.client.PutObject(ctx, bucket, key, r, size, opts); err != nil {
		return fmt.Errorf("put object %s/%s: %w", bucket, key, err)
	}
	return nil
}

// PublicURL returns the anonymous URL of an object.
func (s *MinioStore) PublicURL(bucket, key string) string {
	return publicURL(s.publicURL, bucket, key)
}

// List returns every object in bucket.
func (s *MinioStore) List(ctx context.Context, bucket string) ([]Object, error) {
	var out []Object
	for obj := range s.client.ListObjects(ctx, bucket, minio.ListObjectsOptions{Recursive: true}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list %s: %w", bucket, obj.Err)
		}
		out = append(out, Object{Key: obj.Key, Size: obj.Size, LastModified: obj.LastModified})
	}
	return out, nil
}

// Delete removes one object.
func (s *MinioStore) Delete(ctx context.Context, bucket, key string) error {
	if err := s.client.RemoveObject(ctx, bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove object %s/%s: %w", bucket, key, err)
	}
	return nil
}
