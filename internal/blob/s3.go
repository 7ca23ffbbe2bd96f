package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
)

// S3 stores uploads in a bucket under an optional key prefix.
type S3 struct {
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string
	prefix  string
}

// PresignedPut describes a presigned upload URL handed to browser clients.
type PresignedPut struct {
	Key              string `json:"key"`
	UploadURL        string `json:"uploadUrl"`
	ExpiresInSeconds int    `json:"expiresInSeconds"`
}

// NewS3 builds an S3 store from the default AWS credential chain.
func NewS3(ctx context.Context, bucket, prefix, region string) (*S3, error) {
	if bucket == "" {
		return nil, fmt.Errorf("s3 storage requires a bucket")
	}

	opts := []func(*awsconfig.LoadOptions) error{}
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg)
	return &S3{
		client:  client,
		presign: s3.NewPresignClient(client),
		bucket:  bucket,
		prefix:  strings.Trim(prefix, "/"),
	}, nil
}

// ReadBytes downloads the object stored under key.
func (s *S3) ReadBytes(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, fmt.Errorf("failed to get s3 object %s: %w", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read s3 object %s: %w", key, err)
	}
	return data, nil
}

// SaveBytes uploads data under a fresh key derived from filename.
func (s *S3) SaveBytes(ctx context.Context, filename string, data []byte) (string, error) {
	key := s.objectKey(filename)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentTypeFor(filename)),
	})
	if err != nil {
		return "", fmt.Errorf("failed to put s3 object: %w", err)
	}
	return key, nil
}

// PresignPut issues a presigned PUT URL so clients can upload directly.
func (s *S3) PresignPut(ctx context.Context, filename, contentType string, expires time.Duration) (*PresignedPut, error) {
	if contentType == "" {
		contentType = contentTypeFor(filename)
	}
	key := s.objectKey(filename)

	req, err := s.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(expires))
	if err != nil {
		return nil, fmt.Errorf("failed to presign put: %w", err)
	}

	return &PresignedPut{
		Key:              key,
		UploadURL:        req.URL,
		ExpiresInSeconds: int(expires.Seconds()),
	}, nil
}

func (s *S3) objectKey(filename string) string {
	name := uuid.New().String() + sanitizeExt(filename)
	if s.prefix == "" {
		return name
	}
	return path.Join(s.prefix, name)
}

func contentTypeFor(filename string) string {
	if ct := mime.TypeByExtension(filepath.Ext(filename)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
