package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const presignTTL = 15 * time.Minute

// S3Store keeps uploads in a bucket. Stored URLs point at Handler, which
// redirects to a presigned read URL, so they never expire.
type S3Store struct {
	client    *s3.Client
	presigner *s3.PresignClient
	bucket    string
	prefix    string
	baseURL   string
	maxSize   int64
	now       func() time.Time
}

// NewS3Store loads AWS credentials from the default chain.
func NewS3Store(ctx context.Context, region, bucket, prefix, baseURL string, maxSize int64) (*S3Store, error) {
	if bucket == "" {
		return nil, errors.New("S3_BUCKET_NAME is required for the s3 storage backend")
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}
	client := s3.NewFromConfig(cfg)
	return &S3Store{
		client:    client,
		presigner: s3.NewPresignClient(client),
		bucket:    bucket,
		prefix:    strings.Trim(prefix, "/"),
		baseURL:   strings.TrimRight(baseURL, "/"),
		maxSize:   maxSize,
		now:       time.Now,
	}, nil
}

func (s *S3Store) objectKey(key string) string {
	if s.prefix == "" {
		return key
	}
	return s.prefix + "/" + key
}

func (s *S3Store) Save(ctx context.Context, folder, originalName string, r io.Reader, size int64, contentType string) (string, error) {
	if s.maxSize > 0 && size > s.maxSize {
		return "", ErrTooLarge
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	key := path.Join(folder, UniqueName(originalName, s.now()))
	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.objectKey(key)),
		Body:        r,
		ContentType: aws.String(contentType),
	}
	if size > 0 {
		input.ContentLength = aws.Int64(size)
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return key, nil
}

func (s *S3Store) URL(_ context.Context, key string) (string, error) {
	return s.baseURL + "/" + key, nil
}

// Presign returns a short-lived direct read URL for key.
func (s *S3Store) Presign(ctx context.Context, key string) (string, error) {
	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	}, s3.WithPresignExpires(presignTTL))
	if err != nil {
		return "", err
	}
	return req.URL, nil
}

// Handler redirects to a short-lived presigned URL.
func (s *S3Store) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimPrefix(path.Clean("/"+r.URL.Path), "/")
		if key == "" {
			http.NotFound(w, r)
			return
		}
		url, err := s.Presign(r.Context(), key)
		if err != nil {
			http.Error(w, "file unavailable", http.StatusBadGateway)
			return
		}
		http.Redirect(w, r, url, http.StatusFound)
	})
}
