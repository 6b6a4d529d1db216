// Package store implements the finalize stage's object-store backend:
// an S3-compatible PutObject/HeadObject client tuned for the same
// high-throughput, low-latency transfer pattern the teacher's S3
// client used for flat-file ingestion.
package store

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Config holds the S3-compatible endpoint and credentials used for
// both the primary write bucket and the read-only buckets an existing
// file may already live in.
type Config struct {
	Endpoint     string
	Bucket       string
	AccessKey    string
	SecretKey    string
	Region       string
	UseTLS       bool
	CheckBuckets []string // additional buckets consulted by Exists, never written to
}

// ObjectStore is the finalize stage's terminal sink.
type ObjectStore struct {
	client       *s3.Client
	bucket       string
	checkBuckets []string
}

// New builds an ObjectStore against cfg's S3-compatible endpoint.
func New(cfg Config) (*ObjectStore, error) {
	scheme := "http"
	if cfg.UseTLS {
		scheme = "https"
	}
	endpoint := fmt.Sprintf("%s://%s", scheme, cfg.Endpoint)

	awsCfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
		config.WithEndpointResolverWithOptions(aws.EndpointResolverWithOptionsFunc(
			func(service, region string, _ ...interface{}) (aws.Endpoint, error) {
				return aws.Endpoint{URL: endpoint, SigningRegion: region, HostnameImmutable: true}, nil
			}),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("store: loading aws config: %w", err)
	}

	httpClient := &http.Client{Timeout: 30 * time.Second}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.HTTPClient = httpClient
		o.UsePathStyle = true
	})

	return &ObjectStore{client: client, bucket: cfg.Bucket, checkBuckets: cfg.CheckBuckets}, nil
}

// Put uploads parquet bytes under objectKey in the primary bucket.
// Satisfies pipeline.Backend.
func (s *ObjectStore) Put(ctx context.Context, objectKey string, parquet []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(objectKey),
		Body:        bytes.NewReader(parquet),
		ContentType: aws.String("application/octet-stream"),
	})
	if err != nil {
		return fmt.Errorf("store: putting %s: %w", objectKey, err)
	}
	return nil
}

// Exists reports whether objectKey is already present in the primary
// bucket or any of the configured check buckets, so the caller can
// skip re-fetching and re-finalizing a file that already exists
// (spec's dedup-before-emission behavior), unless force refresh is
// requested.
func (s *ObjectStore) Exists(ctx context.Context, objectKey string) (bool, error) {
	buckets := append([]string{s.bucket}, s.checkBuckets...)
	for _, bucket := range buckets {
		_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(objectKey),
		})
		if err == nil {
			return true, nil
		}
	}
	return false, nil
}
