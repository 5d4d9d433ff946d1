package storage

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"scheduling-server/config"
)

// S3Store deletes objects from an S3-compatible store addressed path-style.
type S3Store struct {
	client     *s3.Client
	publicBase string
}

func NewS3Store(cfg config.StorageConfig) (*S3Store, error) {
	if cfg.S3Endpoint == "" {
		return nil, fmt.Errorf("S3_ENDPOINT is required for the s3 storage backend")
	}

	opts := s3.Options{
		Region:       cfg.S3Region,
		BaseEndpoint: aws.String(cfg.S3Endpoint),
		UsePathStyle: true,
	}
	if cfg.S3AccessKey != "" {
		opts.Credentials = credentials.NewStaticCredentialsProvider(cfg.S3AccessKey, cfg.S3SecretKey, "")
	}

	return &S3Store{
		client:     s3.New(opts),
		publicBase: cfg.S3PublicBaseURL,
	}, nil
}

func (s *S3Store) Delete(ctx context.Context, rawURL string) error {
	bucket, key, err := ParseS3URL(rawURL, s.publicBase)
	if err != nil {
		return err
	}
	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete s3://%s/%s: %w", bucket, key, err)
	}
	return nil
}

// ParseS3URL extracts bucket and key from a path-style object URL. The
// publicBase prefix, when set, is stripped first; a leading "buckets/"
// segment is accepted for gateways that expose buckets under that path.
func ParseS3URL(rawURL, publicBase string) (bucket, key string, err error) {
	path := rawURL
	if publicBase != "" && strings.HasPrefix(rawURL, publicBase) {
		path = strings.TrimPrefix(rawURL, publicBase)
	} else {
		u, perr := url.Parse(rawURL)
		if perr != nil || u.Host == "" {
			return "", "", fmt.Errorf("%w: %s", ErrUnrecognisedURL, rawURL)
		}
		path = u.Path
	}
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}

	path = strings.TrimPrefix(path, "/")
	path = strings.TrimPrefix(path, "buckets/")

	bucket, key, ok := strings.Cut(path, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", fmt.Errorf("%w: %s", ErrUnrecognisedURL, rawURL)
	}
	if unescaped, err := url.PathUnescape(key); err == nil {
		key = unescaped
	}
	return bucket, key, nil
}
