// Package archive keeps a copy of each published data file in an S3 bucket.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// PutObjectAPI is the part of the S3 client the archiver needs.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// NewS3Client builds an S3 client from the default AWS credential chain. A
// non-empty endpoint switches to path-style addressing for MinIO and friends.
func NewS3Client(ctx context.Context, region, endpoint string) (*s3.Client, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	var opts []func(*s3.Options)
	if endpoint != "" {
		opts = append(opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		})
	}

	return s3.NewFromConfig(awsCfg, opts...), nil
}

type Archiver struct {
	client PutObjectAPI
	bucket string
	prefix string
	logger *slog.Logger
}

func New(client PutObjectAPI, bucket, prefix string, logger *slog.Logger) *Archiver {
	return &Archiver{client: client, bucket: bucket, prefix: prefix, logger: logger}
}

// Key returns the object key used for a run's data file.
func (a *Archiver) Key(runID, name string) string {
	return path.Join(a.prefix, runID, name)
}

// Archive uploads payload under <prefix>/<runID>/<name> and returns the key.
func (a *Archiver) Archive(ctx context.Context, runID, name string, payload []byte) (string, error) {
	key := a.Key(runID, name)

	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(a.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(payload),
		ContentLength: aws.Int64(int64(len(payload))),
		ContentType:   aws.String("application/x-ndjson"),
	})
	if err != nil {
		return "", fmt.Errorf("put s3://%s/%s: %w", a.bucket, key, err)
	}

	a.logger.Info("archived data file", "bucket", a.bucket, "key", key, "bytes", len(payload))
	return key, nil
}
