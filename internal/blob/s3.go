package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/dharsanguruparan/VaultSign/internal/config"
)

// S3Store talks to AWS S3 or an S3-compatible endpoint such as R2 through
// the AWS SDK.
type S3Store struct {
	client    *s3.Client
	buckets   registry
	order     []Bucket
	region    string
	publicURL string
}

// NewS3 builds an S3 client with static credentials. A configured endpoint
// switches the client to path-style addressing.
func NewS3(ctx context.Context, cfg *config.Config, buckets ...Bucket) (*S3Store, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.S3Region)}
	if cfg.S3AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3AccessKey, cfg.S3SecretKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	endpoint := endpointURL(cfg.S3Endpoint, cfg.S3UseSSL)
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})
	return &S3Store{
		client:    client,
		buckets:   newRegistry(buckets),
		order:     buckets,
		region:    cfg.S3Region,
		publicURL: cfg.PublicBlobURL,
	}, nil
}

func endpointURL(endpoint string, useSSL bool) string {
	if endpoint == "" || strings.Contains(endpoint, "://") {
		return endpoint
	}
	if useSSL {
		return "https://" + endpoint
	}
	return "http://" + endpoint
}

// EnsureBuckets creates missing buckets and applies the public read policy.
func (s *S3Store) EnsureBuckets(ctx context.Context) error {
	for _, b := range s.order {
		_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(b.Name)})
		if err != nil {
			var nf *types.NotFound
			if !errors.As(err, &nf) {
				return fmt.Errorf("check bucket %s: %w", b.Name, err)
			}
			input := &s3.CreateBucketInput{Bucket: aws.String(b.Name)}
			if s.region != "" && s.region != "us-east-1" {
				input.CreateBucketConfiguration = &types.CreateBucketConfiguration{
					LocationConstraint: types.BucketLocationConstraint(s.region),
				}
			}
			if _, err := s.client.CreateBucket(ctx, input); err != nil {
				return fmt.Errorf("create bucket %s: %w", b.Name, err)
			}
		}
		if b.Public {
			_, err := s.client.PutBucketPolicy(ctx, &s3.PutBucketPolicyInput{
				Bucket: aws.String(b.Name),
				Policy: aws.String(publicReadPolicy(b.Name)),
			})
			if err != nil {
				return fmt.Errorf("put policy %s: %w", b.Name, err)
			}
		}
	}
	return nil
}

// Put uploads an object after checking the bucket limits.
func (s *S3Store) Put(ctx context.Context, bucket, key string, r io.Reader, size int64, contentType string) error {
	if err := s.buckets.check(bucket, size, contentType); err != nil {
		return err
	}
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          r,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("put object %s/%s: %w", bucket, key, err)
	}
	return nil
}

// PublicURL returns the anonymous URL of an object.
func (s *S3Store) PublicURL(bucket, key string) string {
	return publicURL(s.publicURL, bucket, key)
}

// List pages through every object in bucket.
func (s *S3Store) List(ctx context.Context, bucket string) ([]Object, error) {
	var out []Object
	pages := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{Bucket: aws.String(bucket)})
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", bucket, err)
		}
		for _, obj := range page.Contents {
			out = append(out, Object{
				Key:          aws.ToString(obj.Key),
				Size:         aws.ToInt64(obj.Size),
				LastModified: aws.ToTime(obj.LastModified),
			})
		}
	}
	return out, nil
}

// Delete removes one object.
func (s *S3Store) Delete(ctx context.Context, bucket, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)})
	if err != nil {
		return fmt.Errorf("delete object %s/%s: %w", bucket, key, err)
	}
	return nil
}
