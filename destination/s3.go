package destination

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	s3config "github.com/aws/aws-sdk-go-v2/config"

	"github.com/baophamtd/reolink-automation/config"
)

var _ DestinationProvider = (*S3Destination)(nil)

// S3API is the slice of the S3 client the destination uses, so tests can
// substitute a mock.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3Destination archives clips to an S3 (or S3-compatible) bucket.
type S3Destination struct {
	client S3API
	cfg    *config.S3Config
	common *config.CommonDestinationConfig
}

// NewS3Destination creates an S3 destination from configuration.
func NewS3Destination(cfg *config.S3Config, common *config.CommonDestinationConfig) (*S3Destination, error) {
	common.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid s3 config: %w", err)
	}

	// For S3-compatible storage, region is often just a placeholder
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	s3cfg, err := s3config.LoadDefaultConfig(
		context.TODO(),
		s3config.WithRegion(region),
		s3config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")),
		// Suppress AWS SDK logging warnings about missing checksums
		s3config.WithClientLogMode(0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load s3 config: %v", err)
	}

	client := s3.NewFromConfig(s3cfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			// Path-style addressing for S3-compatible storage
			o.UsePathStyle = true
		}
	})

	return &S3Destination{
		client: client,
		cfg:    cfg,
		common: common,
	}, nil
}

// fullKey prefixes the configured base prefix onto a clip key.
func (d *S3Destination) fullKey(key string) string {
	if d.cfg.Prefix == "" {
		return key
	}
	return path.Join(d.cfg.Prefix, key)
}

// Upload stores content under key, retrying with exponential backoff. When
// content is seekable (clips are uploaded from local files) each retry rewinds
// it to the start.
func (d *S3Destination) Upload(ctx context.Context, key string, content io.Reader) error {
	fullKey := d.fullKey(key)

	var lastErr error
	for attempt := 0; attempt < d.common.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt))) * 200 * time.Millisecond
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
			if seeker, ok := content.(io.Seeker); ok {
				if _, err := seeker.Seek(0, io.SeekStart); err != nil {
					return fmt.Errorf("failed to rewind upload body: %w", err)
				}
			} else {
				// Non-seekable body was consumed by the failed attempt.
				break
			}
		}

		reqCtx, cancel := context.WithTimeout(ctx, time.Duration(d.common.TimeoutSeconds)*time.Second)
		_, err := d.client.PutObject(reqCtx, &s3.PutObjectInput{
			Bucket: aws.String(d.cfg.Bucket),
			Key:    aws.String(fullKey),
			Body:   content,
		})
		cancel()

		if err == nil {
			return nil
		}
		lastErr = fmt.Errorf("failed to put object %s: %w", fullKey, err)
	}

	return fmt.Errorf("upload failed after %d attempts: %w", d.common.MaxRetries, lastErr)
}

// FileExists checks the destination for key via a head request.
func (d *S3Destination) FileExists(ctx context.Context, key string) (bool, error) {
	reqCtx, cancel := context.WithTimeout(ctx, time.Duration(d.common.TimeoutSeconds)*time.Second)
	defer cancel()

	_, err := d.client.HeadObject(reqCtx, &s3.HeadObjectInput{
		Bucket: aws.String(d.cfg.Bucket),
		Key:    aws.String(d.fullKey(key)),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check object %s: %w", key, err)
	}
	return true, nil
}

// Delete removes key from the bucket. S3 deletes are idempotent.
func (d *S3Destination) Delete(ctx context.Context, key string) error {
	reqCtx, cancel := context.WithTimeout(ctx, time.Duration(d.common.TimeoutSeconds)*time.Second)
	defer cancel()

	_, err := d.client.DeleteObject(reqCtx, &s3.DeleteObjectInput{
		Bucket: aws.String(d.cfg.Bucket),
		Key:    aws.String(d.fullKey(key)),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object %s: %w", key, err)
	}
	return nil
}

// ListKeys returns every object key under the configured prefix, following
// continuation tokens. The index refresher uses it to build the manifest.
func (d *S3Destination) ListKeys(ctx context.Context) ([]string, error) {
	var (
		keys              []string
		continuationToken *string
	)

	for {
		reqCtx, cancel := context.WithTimeout(ctx, time.Duration(d.common.TimeoutSeconds)*time.Second)
		resp, err := d.client.ListObjectsV2(reqCtx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(d.cfg.Bucket),
			Prefix:            aws.String(d.cfg.Prefix),
			ContinuationToken: continuationToken,
		})
		cancel()
		if err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", err)
		}

		for _, v := range resp.Contents {
			keys = append(keys, aws.ToString(v.Key))
		}

		if aws.ToBool(resp.IsTruncated) {
			continuationToken = resp.NextContinuationToken
		} else {
			break
		}
	}

	return keys, nil
}

// GetWorkerCount returns the configured number of parallel workers
func (d *S3Destination) GetWorkerCount() int {
	return d.common.WorkerCount
}

// Close is a no-op: the S3 client holds no persistent connections to release.
func (d *S3Destination) Close() error {
	return nil
}
