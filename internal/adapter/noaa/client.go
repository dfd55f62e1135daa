// Package noaa fetches model output from the NOAA Open Data Dissemination
// S3 buckets. The buckets are public; the client signs nothing and needs no
// credentials.
package noaa

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/couchcryptid/model-imagery-service/internal/domain"
	"github.com/couchcryptid/model-imagery-service/internal/grib"
)

// s3API is the slice of the S3 client the adapter uses; tests substitute a
// fake.
type s3API interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Client reads NOAA open data buckets anonymously.
type Client struct {
	api    s3API
	logger *slog.Logger
}

// NewClient builds an anonymous S3 client for the given region (the NODD
// buckets live in us-east-1).
func NewClient(ctx context.Context, region string, logger *slog.Logger) (*Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(aws.AnonymousCredentials{}),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &Client{api: s3.NewFromConfig(cfg), logger: logger}, nil
}

// Name identifies the source in logs and metrics.
func (c *Client) Name() string { return "s3" }

// ProbeRun reports whether the cycle's F01 inventory object exists, the
// readiness signal for the run's analysis.
func (c *Client) ProbeRun(ctx context.Context, m domain.Model, cycle time.Time) (bool, error) {
	key := m.IndexKey(cycle, 1)
	_, err := c.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(m.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("head s3://%s/%s: %w", m.Bucket, key, err)
	}
	return true, nil
}

// FetchInventory downloads and parses the ".idx" inventory of the cycle's
// file at the given forecast hour.
func (c *Client) FetchInventory(ctx context.Context, m domain.Model, cycle time.Time, fxx int) (grib.Inventory, error) {
	key := m.IndexKey(cycle, fxx)
	out, err := c.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(m.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("get s3://%s/%s: %w", m.Bucket, key, err)
	}
	defer out.Body.Close()

	inv, err := grib.ParseInventory(out.Body)
	if err != nil {
		return nil, fmt.Errorf("s3://%s/%s: %w", m.Bucket, key, err)
	}
	return inv, nil
}

// FetchRange downloads the byte range [start, end] of the cycle's GRIB2
// file. A negative end requests everything from start to EOF.
func (c *Client) FetchRange(ctx context.Context, m domain.Model, cycle time.Time, fxx int, start, end int64) ([]byte, error) {
	key := m.DataKey(cycle, fxx)
	out, err := c.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(m.Bucket),
		Key:    aws.String(key),
		Range:  aws.String(rangeHeader(start, end)),
	})
	if err != nil {
		return nil, fmt.Errorf("get s3://%s/%s range %d-%d: %w", m.Bucket, key, start, end, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read s3://%s/%s: %w", m.Bucket, key, err)
	}
	c.logger.Debug("fetched grib range", "bucket", m.Bucket, "key", key, "bytes", len(data))
	return data, nil
}

func rangeHeader(start, end int64) string {
	if end < 0 {
		return fmt.Sprintf("bytes=%d-", start)
	}
	return fmt.Sprintf("bytes=%d-%d", start, end)
}

func isNotFound(err error) bool {
	var notFound *types.NotFound
	var noSuchKey *types.NoSuchKey
	return errors.As(err, &notFound) || errors.As(err, &noSuchKey)
}
