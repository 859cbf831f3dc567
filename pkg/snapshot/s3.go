package snapshot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// S3API is the subset of *s3.Client used by S3Store.
type S3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Store stores snapshots as objects under a key prefix.
//
// Example usage:
//
//	client := snapshot.NewS3Client(snapshot.S3Options{Region: "eu-west-1"})
//	store := snapshot.NewS3Store(client, "my-bucket", "snapshots/")
type S3Store struct {
	client S3API
	bucket string
	prefix string
}

// NewS3Store creates a new S3 snapshot store.
func NewS3Store(client S3API, bucket, prefix string) *S3Store {
	return &S3Store{client: client, bucket: bucket, prefix: prefix}
}

// Put implements Store. Objects are immutable, so an existing key is simply
// overwritten with the same bytes.
func (s *S3Store) Put(ctx context.Context, data []byte) (string, error) {
	h := Hash(data)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.prefix + h),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/octet-stream"),
	})
	if err != nil {
		return "", fmt.Errorf("s3 put %s: %w", h, err)
	}
	return h, nil
}

// Get implements Store.
func (s *S3Store) Get(ctx context.Context, hash string) ([]byte, error) {
	if !ValidHash(hash) {
		return nil, fmt.Errorf("%w: %q", ErrBadHash, hash)
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.prefix + hash),
	})
	if err != nil {
		if isNoSuchKey(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, hash)
		}
		return nil, fmt.Errorf("s3 get %s: %w", hash, err)
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}

func isNoSuchKey(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var api smithy.APIError
	if errors.As(err, &api) {
		switch api.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}

// S3Options configures NewS3Client.
type S3Options struct {
	Region   string
	Endpoint string // empty uses AWS; set for MinIO and other compatible servers

	// Static credentials. When empty, AWS_ACCESS_KEY_ID,
	// AWS_SECRET_ACCESS_KEY and AWS_SESSION_TOKEN are read from the
	// environment on every request.
	AccessKeyID     string
	SecretAccessKey string
}

// NewS3Client builds an S3 client. A custom endpoint implies path-style
// addressing.
func NewS3Client(o S3Options) *s3.Client {
	return s3.New(s3.Options{
		Region:       o.Region,
		BaseEndpoint: endpoint(o.Endpoint),
		UsePathStyle: o.Endpoint != "",
		Credentials:  credentials(o.AccessKeyID, o.SecretAccessKey),

		RequestChecksumCalculation: aws.RequestChecksumCalculationWhenRequired,
		ResponseChecksumValidation: aws.ResponseChecksumValidationWhenRequired,
	})
}

func endpoint(url string) *string {
	if url == "" {
		return nil
	}
	return aws.String(url)
}

func credentials(id, secret string) aws.CredentialsProvider {
	return aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
		if id != "" {
			return aws.Credentials{AccessKeyID: id, SecretAccessKey: secret, Source: "vdiff"}, nil
		}
		c := aws.Credentials{
			AccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
			SessionToken:    os.Getenv("AWS_SESSION_TOKEN"),
			Source:          "environment",
		}
		if c.AccessKeyID == "" || c.SecretAccessKey == "" {
			return aws.Credentials{}, errors.New("snapshot: no AWS credentials in environment")
		}
		return c, nil
	})
}
