//go:build integration
// +build integration

package storage

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/minio/minio-go/v7"
	miniocreds "github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const exportBody = "Check Title,Suggestion\nS3 encryption,Enable SSE-KMS\n"

// TestS3Sink_LocalStackPut uploads an export through S3Sink into LocalStack
// and reads it back. Requires Docker.
func TestS3Sink_LocalStackPut(t *testing.T) {
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "localstack/localstack:3.8",
			ExposedPorts: []string{"4566/tcp"},
			Env: map[string]string{
				"SERVICES":       "s3",
				"DEFAULT_REGION": "us-east-1",
			},
			WaitingFor: wait.ForHTTP("/_localstack/health").WithPort("4566/tcp").WithStartupTimeout(90 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	testcontainers.CleanupContainer(t, container)

	endpoint, err := container.Endpoint(ctx, "http")
	require.NoError(t, err)

	cfg := SinkConfig{
		Type:      SinkS3,
		Bucket:    "warlens-exports",
		Prefix:    "runs/2024-05-01",
		Region:    "us-east-1",
		Endpoint:  endpoint,
		AccessKey: "test",
		SecretKey: "test",
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
	)
	require.NoError(t, err)
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
	})
	_, err = client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(cfg.Bucket)})
	require.NoError(t, err)

	sink, err := NewS3Sink(ctx, cfg)
	require.NoError(t, err)

	location, err := sink.Put(ctx, "review-enriched.csv", []byte(exportBody), ContentTypeCSV)
	require.NoError(t, err)
	assert.Equal(t, "s3://warlens-exports/runs/2024-05-01/review-enriched.csv", location)

	out, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(cfg.Bucket),
		Key:    aws.String("runs/2024-05-01/review-enriched.csv"),
	})
	require.NoError(t, err)
	defer func() { _ = out.Body.Close() }()

	body, err := io.ReadAll(out.Body)
	require.NoError(t, err)
	assert.Equal(t, exportBody, string(body))
	assert.Equal(t, ContentTypeCSV, aws.ToString(out.ContentType))
}

// TestMinioSink_Put uploads an export through MinioSink, letting the sink
// create its bucket, and reads it back. Requires Docker.
func TestMinioSink_Put(t *testing.T) {
	ctx := context.Background()
	const user, password = "warlens", "warlens-secret"

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "minio/minio:RELEASE.2024-05-01T01-11-10Z",
			ExposedPorts: []string{"9000/tcp"},
			Cmd:          []string{"server", "/data"},
			Env: map[string]string{
				"MINIO_ROOT_USER":     user,
				"MINIO_ROOT_PASSWORD": password,
			},
			WaitingFor: wait.ForHTTP("/minio/health/live").WithPort("9000/tcp").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	testcontainers.CleanupContainer(t, container)

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	sink, err := NewMinioSink(ctx, SinkConfig{
		Type:      SinkMinio,
		Bucket:    "warlens-exports",
		Endpoint:  endpoint,
		AccessKey: user,
		SecretKey: password,
	})
	require.NoError(t, err)

	location, err := sink.Put(ctx, "review-enriched.csv", []byte(exportBody), ContentTypeCSV)
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("%s/warlens-exports/review-enriched.csv", endpoint), location)

	cli, err := minio.New(endpoint, &minio.Options{Creds: miniocreds.NewStaticV4(user, password, "")})
	require.NoError(t, err)
	obj, err := cli.GetObject(ctx, "warlens-exports", "review-enriched.csv", minio.GetObjectOptions{})
	require.NoError(t, err)
	defer func() { _ = obj.Close() }()

	body, err := io.ReadAll(obj)
	require.NoError(t, err)
	assert.Equal(t, exportBody, string(body))

	info, err := obj.Stat()
	require.NoError(t, err)
	assert.Equal(t, ContentTypeCSV, info.ContentType)
}
