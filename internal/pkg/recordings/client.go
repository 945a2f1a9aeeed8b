package recordings

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gofiber/fiber/v2/log"
)

// Client presigns read access to call recordings. Object keys come from the
// calls table and are never exposed to the browser directly.
type Client struct {
	presign *s3.PresignClient
	config  *Config
}

// NewClient creates a recording storage client. A disabled config yields an
// error; callers treat that as "no playback available".
func NewClient(cfg *Config) (*Client, error) {
	if !cfg.IsEnabled() {
		return nil, errors.New("recording storage is disabled")
	}

	awsConfig, err := config.LoadDefaultConfig(context.TODO(),
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
	)
	if err != nil {
		return nil, err
	}

	s3Client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.EndpointURL)
			o.UsePathStyle = true
		}
	})

	log.Infof("[Recordings] Initialized recording storage client for bucket: %s", cfg.BucketName)
	return &Client{
		presign: s3.NewPresignClient(s3Client),
		config:  cfg,
	}, nil
}

// PresignPlaybackURL returns a time-limited URL for one recording object.
func (c *Client) PresignPlaybackURL(ctx context.Context, objectKey string) (string, error) {
	objectKey = strings.TrimSpace(objectKey)
	if objectKey == "" {
		return "", errors.New("recording object key is empty")
	}

	ttl := c.config.PresignTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}

	req, err := c.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.config.BucketName),
		Key:    aws.String(objectKey),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", err
	}

	return req.URL, nil
}
