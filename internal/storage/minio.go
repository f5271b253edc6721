package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	miniocreds "github.com/minio/minio-go/v7/pkg/credentials"
)

// minioPutAPI is the subset of the MinIO client used by MinioSink.
type minioPutAPI interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// MinioSink uploads exports to a MinIO (or other S3-compatible) bucket.
type MinioSink struct {
	client   minioPutAPI
	endpoint string
	bucket   string
	prefix   string
}

// NewMinioSink connects to cfg.Endpoint and creates the bucket if needed.
func NewMinioSink(ctx context.Context, cfg SinkConfig) (*MinioSink, error) {
	cli, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  miniocreds.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("creating minio client: %w", err)
	}

	exists, err := cli.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("checking bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := cli.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, fmt.Errorf("creating bucket %s: %w", cfg.Bucket, err)
		}
	}

	return newMinioSink(cli, cli.EndpointURL().Host, cfg.Bucket, cfg.Prefix), nil
}

func newMinioSink(client minioPutAPI, endpoint, bucket, prefix string) *MinioSink {
	return &MinioSink{client: client, endpoint: endpoint, bucket: bucket, prefix: prefix}
}

// Name implements Sink.
func (s *MinioSink) Name() string { return SinkMinio }

// Put implements Sink.
func (s *MinioSink) Put(ctx context.Context, name string, data []byte, contentType string) (string, error) {
	key := objectKey(s.prefix, name)
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("uploading %s/%s: %w", s.bucket, key, err)
	}
	return fmt.Sprintf("%s/%s/%s", s.endpoint, s.bucket, key), nil
}
