package ingest

import (
	"context"
	"fmt"
	"io"
	"path"
	"sort"

	"ticket-kiosk/internal/code"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
)

// S3API is the subset of the S3 client used by S3Source.
type S3API interface {
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Config holds the location of batch files in a bucket.
type S3Config struct {
	Bucket   string
	Region   string
	Prefix   string
	Filename string
}

// S3Source discovers batch files under a bucket prefix. An object matches
// when its base name is the batch filename (or the filename plus ".gz").
type S3Source struct {
	client   S3API
	bucket   string
	prefix   string
	filename string
	logger   zerolog.Logger
}

// NewS3Source creates a source using the default AWS credential chain.
func NewS3Source(ctx context.Context, cfg S3Config, logger zerolog.Logger) (*S3Source, error) {
	logger = logger.With().Str("component", "s3-source").Logger()

	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		logger.Error().Err(err).Msg("failed to load AWS configuration")
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	logger.Info().
		Str("bucket", cfg.Bucket).
		Str("region", cfg.Region).
		Str("prefix", cfg.Prefix).
		Msg("S3 source initialised")

	return newS3Source(s3.NewFromConfig(awsCfg), cfg, logger), nil
}

func newS3Source(client S3API, cfg S3Config, logger zerolog.Logger) *S3Source {
	filename := cfg.Filename
	if filename == "" {
		filename = DefaultFilename
	}
	return &S3Source{
		client:   client,
		bucket:   cfg.Bucket,
		prefix:   cfg.Prefix,
		filename: filename,
		logger:   logger,
	}
}

// Name implements Source.
func (s *S3Source) Name() string {
	return "s3"
}

// Discover implements Source. Matching keys are returned in lexical order.
func (s *S3Source) Discover(ctx context.Context) ([]Batch, error) {
	var keys []string
	var token *string

	for {
		out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(s.bucket),
			Prefix:            aws.String(s.prefix),
			ContinuationToken: token,
		})
		if err != nil {
			s.logger.Error().
				Err(err).
				Str("bucket", s.bucket).
				Str("prefix", s.prefix).
				Msg("failed to list objects")
			return nil, fmt.Errorf("failed to list objects (bucket=%s, prefix=%s): %w", s.bucket, s.prefix, err)
		}

		for _, obj := range out.Contents {
			key := aws.ToString(obj.Key)
			base := path.Base(key)
			if base == s.filename || base == s.filename+code.GzipSuffix {
				keys = append(keys, key)
			}
		}

		if !aws.ToBool(out.IsTruncated) || out.NextContinuationToken == nil {
			break
		}
		token = out.NextContinuationToken
	}

	sort.Strings(keys)

	batches := make([]Batch, 0, len(keys))
	for _, key := range keys {
		batches = append(batches, &s3Batch{source: s, key: key})
	}
	return batches, nil
}

type s3Batch struct {
	source *S3Source
	key    string
}

func (b *s3Batch) Location() string {
	return "s3://" + b.source.bucket + "/" + b.key
}

func (b *s3Batch) Open(ctx context.Context) (io.ReadCloser, error) {
	out, err := b.source.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.source.bucket),
		Key:    aws.String(b.key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get object from S3 (bucket=%s, key=%s): %w", b.source.bucket, b.key, err)
	}
	return out.Body, nil
}

func (b *s3Batch) Remove(ctx context.Context) error {
	_, err := b.source.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.source.bucket),
		Key:    aws.String(b.key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object from S3 (bucket=%s, key=%s): %w", b.source.bucket, b.key, err)
	}
	return nil
}
