package sink

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/BonelessWater/aura/internal/archive"
	"github.com/BonelessWater/aura/internal/config"
	"github.com/BonelessWater/aura/internal/models"
)

const contentTypeNDJSON = "application/x-ndjson"

// putObjectAPI is the subset of the S3 client the sink uses.
type putObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Sink writes each source's chunks as one JSON lines object.
// Re-ingesting a source overwrites its object.
type S3Sink struct {
	client      putObjectAPI
	bucket      string
	prefix      string
	keyBySource bool
}

// NewS3Sink loads AWS credentials from the default chain.
func NewS3Sink(ctx context.Context, cfg *config.S3Config) (*S3Sink, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	s := newS3Sink(client, cfg.Bucket, cfg.Prefix)
	s.keyBySource = cfg.KeyBySource
	return s, nil
}

func newS3Sink(client putObjectAPI, bucket, prefix string) *S3Sink {
	return &S3Sink{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

// ObjectKey returns the object key for source: <prefix>/<stem>.jsonl, or
// <prefix>/<stem>-<hash>.jsonl when keys include the source path.
func (s *S3Sink) ObjectKey(source string) string {
	name := archive.Stem(source)
	if s.keyBySource {
		sum := sha256.Sum256([]byte(filepath.Clean(source)))
		name += "-" + hex.EncodeToString(sum[:6])
	}
	name += ".jsonl"
	if s.prefix == "" {
		return name
	}
	return path.Join(s.prefix, name)
}

// Publish uploads the batch.
func (s *S3Sink) Publish(ctx context.Context, source string, chunks []*models.ChunkRecord) error {
	if len(chunks) == 0 {
		return nil
	}
	data, err := encodeLines(chunks)
	if err != nil {
		return err
	}
	key := s.ObjectKey(source)
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentTypeNDJSON),
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s to S3: %w", key, err)
	}
	return nil
}

// Close is a no-op.
func (s *S3Sink) Close() error { return nil }
