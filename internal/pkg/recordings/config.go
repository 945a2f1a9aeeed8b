package recordings

import (
	"errors"
	"fmt"
	"time"

	"github.com/spoqen/spoqen/internal/pkg/env"
)

// Config holds the call-recording storage configuration. Recordings are
// written to the bucket by the voice pipeline; this app only presigns reads.
type Config struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	BucketName      string
	EndpointURL     string // Optional for S3-compatible services
	Enabled         bool
	PresignTTL      time.Duration
}

// LoadConfig loads the recording storage configuration from environment
// variables.
func LoadConfig() (*Config, error) {
	ttl, err := time.ParseDuration(env.GetEnv("RECORDINGS_PRESIGN_TTL", "15m"))
	if err != nil {
		return nil, fmt.Errorf("invalid RECORDINGS_PRESIGN_TTL: %w", err)
	}

	config := &Config{
		AccessKeyID:     env.GetEnv("RECORDINGS_S3_ACCESS_KEY_ID", ""),
		SecretAccessKey: env.GetEnv("RECORDINGS_S3_SECRET_ACCESS_KEY", ""),
		Region:          env.GetEnv("RECORDINGS_S3_REGION", "us-east-1"),
		BucketName:      env.GetEnv("RECORDINGS_S3_BUCKET", ""),
		EndpointURL:     env.GetEnv("RECORDINGS_S3_ENDPOINT_URL", ""),
		Enabled:         env.GetEnv("RECORDINGS_ENABLED", "false") == "true",
		PresignTTL:      ttl,
	}

	if config.Enabled {
		if config.AccessKeyID == "" {
			return nil, errors.New("RECORDINGS_S3_ACCESS_KEY_ID is required when recordings are enabled")
		}
		if config.SecretAccessKey == "" {
			return nil, errors.New("RECORDINGS_S3_SECRET_ACCESS_KEY is required when recordings are enabled")
		}
		if config.BucketName == "" {
			return nil, errors.New("RECORDINGS_S3_BUCKET is required when recordings are enabled")
		}
	}

	return config, nil
}

// IsEnabled reports whether recording playback is configured.
func (c *Config) IsEnabled() bool {
	return c.Enabled
}
