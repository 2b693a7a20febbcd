// Package s3 reads elector photos from object storage.
package s3

import (
	"context"
	"fmt"
	"io"
	"strings"

	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// PhotoStore streams photo objects referenced by S3 ARNs or s3:// URLs.
type PhotoStore struct {
	client *s3.Client
}

func NewPhotoStore(ctx context.Context, region string) (*PhotoStore, error) {
	cfg, err := awsConfig.LoadDefaultConfig(ctx, awsConfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}
	return &PhotoStore{client: s3.NewFromConfig(cfg)}, nil
}

// Photo opens a streaming read of the object at the given location. The
// caller owns the returned reader and must close it.
func (s *PhotoStore) Photo(ctx context.Context, location string) (io.ReadCloser, error) {
	bucket, key, err := parseLocation(location)
	if err != nil {
		return nil, err
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get photo s3://%s/%s: %w", bucket, key, err)
	}
	return out.Body, nil
}

// parseLocation accepts "arn:aws:s3:::bucket/key" and "s3://bucket/key".
func parseLocation(location string) (bucket, key string, err error) {
	var trimmed string
	switch {
	case strings.HasPrefix(location, "arn:aws:s3:::"):
		trimmed = strings.TrimPrefix(location, "arn:aws:s3:::")
	case strings.HasPrefix(location, "s3://"):
		trimmed = strings.TrimPrefix(location, "s3://")
	default:
		return "", "", fmt.Errorf("unsupported photo location %q", location)
	}

	bucket, key, found := strings.Cut(trimmed, "/")
	if !found || bucket == "" || key == "" {
		return "", "", fmt.Errorf("photo location %q has no bucket/key", location)
	}
	return bucket, key, nil
}
