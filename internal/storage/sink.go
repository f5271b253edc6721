package storage

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/joshsymonds/warlens/pkg/pathutil"
)

// Sink types.
const (
	SinkLocal = "local"
	SinkS3    = "s3"
	SinkMinio = "minio"
)

// ContentTypeCSV is used for enriched exports.
const ContentTypeCSV = "text/csv; charset=utf-8"

// SinkConfig selects where enriched exports are delivered.
type SinkConfig struct {
	Type         string `yaml:"type"`
	Bucket       string `yaml:"bucket"`
	Prefix       string `yaml:"prefix"`
	Region       string `yaml:"region"`
	Endpoint     string `yaml:"endpoint"`
	AccessKeyEnv string `yaml:"access_key_env"`
	SecretKeyEnv string `yaml:"secret_key_env"`
	UseSSL       bool   `yaml:"use_ssl"`

	// Resolved from AccessKeyEnv and SecretKeyEnv at load time.
	AccessKey string `yaml:"-"`
	SecretKey string `yaml:"-"`
}

// Validate checks that the settings needed by the selected sink are present.
func (c SinkConfig) Validate() error {
	switch c.Type {
	case "", SinkLocal:
		return nil
	case SinkS3:
		if c.Bucket == "" {
			return fmt.Errorf("sink.bucket is required for %s", c.Type)
		}
		return nil
	case SinkMinio:
		if c.Bucket == "" || c.Endpoint == "" {
			return fmt.Errorf("sink.bucket and sink.endpoint are required for %s", c.Type)
		}
		return nil
	default:
		return fmt.Errorf("unknown sink type %q", c.Type)
	}
}

// Sink receives finished export files. Put returns a human-readable location
// of the stored object.
type Sink interface {
	Put(ctx context.Context, name string, data []byte, contentType string) (string, error)
	Name() string
}

// LocalSink writes exports into a directory.
type LocalSink struct {
	dir string
}

// NewLocalSink creates a sink writing into dir.
func NewLocalSink(dir string) *LocalSink {
	return &LocalSink{dir: dir}
}

// Name implements Sink.
func (s *LocalSink) Name() string { return SinkLocal }

// Put implements Sink.
func (s *LocalSink) Put(_ context.Context, name string, data []byte, _ string) (string, error) {
	dest, err := pathutil.JoinAndValidate(s.dir, filepath.Base(name))
	if err != nil {
		return "", err
	}
	if err := WriteFileAtomic(dest, data, 0644); err != nil {
		return "", err
	}
	return dest, nil
}

// NewSink builds the sink selected by cfg. Local sinks write to outputDir.
func NewSink(ctx context.Context, cfg SinkConfig, outputDir string) (Sink, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Type {
	case SinkS3:
		return NewS3Sink(ctx, cfg)
	case SinkMinio:
		return NewMinioSink(ctx, cfg)
	default:
		return NewLocalSink(outputDir), nil
	}
}

// ResolveCredentials fills AccessKey and SecretKey from the environment.
func (c *SinkConfig) ResolveCredentials() {
	if c.AccessKeyEnv != "" {
		c.AccessKey = os.Getenv(c.AccessKeyEnv)
	}
	if c.SecretKeyEnv != "" {
		c.SecretKey = os.Getenv(c.SecretKeyEnv)
	}
}

func objectKey(prefix, name string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return name
	}
	return path.Join(prefix, name)
}
