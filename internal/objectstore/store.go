// Package objectstore is the C1 gateway: presigned PUT/GET URLs, HEAD,
// existence checks, and best-effort delete against an S3-compatible
// object store. Client construction follows the teacher's
// controlplane/s3-uploader pattern (path-style endpoint override for
// MinIO-alikes); presign calls follow telemetry/state-ingest's
// PresignClient usage.
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	smithyhttp "github.com/aws/smithy-go/transport/http"

	"github.com/porkytheblack/oasis/internal/metrics"
)

// HeadResult is the subset of object metadata the artifact manager needs
// at confirmation time.
type HeadResult struct {
	Size int64
}

// Store is the C1 contract. A real S3Store and a fake in-memory
// implementation (Fake) both satisfy it.
type Store interface {
	PresignPut(ctx context.Context, key string, ttl time.Duration, contentType string) (string, error)
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
	PublicURL(key string) (string, bool)
	Head(ctx context.Context, key string) (HeadResult, error)
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
}

// BuildArtifactKey implements the layout from §6: <slug>/releases/<version>/<filename>.
func BuildArtifactKey(appSlug, version, filename string) string {
	return fmt.Sprintf("%s/releases/%s/%s", appSlug, version, filename)
}

// BuildInstallerKey implements the parallel installer layout.
func BuildInstallerKey(appSlug, version, filename string) string {
	return fmt.Sprintf("%s/installers/%s/%s", appSlug, version, filename)
}

// Config configures the S3-backed implementation.
type Config struct {
	Bucket        string
	Region        string
	Endpoint      string // optional, for MinIO/R2-style custom endpoints
	AccessKey     string
	SecretKey     string
	PublicBaseURL string // optional; preferred over presigned GET when set
}

// S3Store is the production Store implementation.
type S3Store struct {
	client    *s3.Client
	presigner *s3.PresignClient
	bucket    string
	publicURL string
}

// New builds an S3Store, mirroring the teacher's uploader.New: static
// credentials, optional custom endpoint with path-style addressing.
func New(ctx context.Context, cfg Config) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("objectstore: bucket is required")
	}

	creds := credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(creds),
	)
	if err != nil {
		return nil, fmt.Errorf("objectstore: load aws config: %w", err)
	}

	var client *s3.Client
	if cfg.Endpoint != "" {
		client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	} else {
		client = s3.NewFromConfig(awsCfg)
	}

	return &S3Store{
		client:    client,
		presigner: s3.NewPresignClient(client),
		bucket:    cfg.Bucket,
		publicURL: cfg.PublicBaseURL,
	}, nil
}

// PresignPut issues a presigned PUT URL. The caller must later PUT with
// the identical Content-Type or the store rejects the request with a
// signature mismatch (§4.1).
func (s *S3Store) PresignPut(ctx context.Context, key string, ttl time.Duration, contentType string) (string, error) {
	start := time.Now()
	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	req, err := s.presigner.PresignPutObject(ctx, input, func(o *s3.PresignOptions) { o.Expires = ttl })
	metrics.RecordObjectStoreOperation("presign_put", time.Since(start), err)
	if err != nil {
		return "", wrapTransport(err)
	}
	return req.URL, nil
}

// PresignGet issues a presigned GET URL.
func (s *S3Store) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	start := time.Now()
	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, func(o *s3.PresignOptions) { o.Expires = ttl })
	metrics.RecordObjectStoreOperation("presign_get", time.Since(start), err)
	if err != nil {
		return "", wrapTransport(err)
	}
	return req.URL, nil
}

// PublicURL returns the public-base-URL-qualified URL for key, if a
// public base URL is configured.
func (s *S3Store) PublicURL(key string) (string, bool) {
	if s.publicURL == "" {
		return "", false
	}
	return fmt.Sprintf("%s/%s", trimTrailingSlash(s.publicURL), key), true
}

// Head returns object size, used at confirmation to populate file_size.
func (s *S3Store) Head(ctx context.Context, key string) (HeadResult, error) {
	start := time.Now()
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	metrics.RecordObjectStoreOperation("head", time.Since(start), err)
	if err != nil {
		return HeadResult{}, wrapNotFoundOrTransport(err)
	}
	size := int64(0)
	if out.ContentLength != nil {
		size = *out.ContentLength
	}
	return HeadResult{Size: size}, nil
}

// Exists reports whether the object is present.
func (s *S3Store) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.Head(ctx, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Delete removes an object; a missing object is not an error (§4.1).
func (s *S3Store) Delete(ctx context.Context, key string) error {
	start := time.Now()
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	metrics.RecordObjectStoreOperation("delete", time.Since(start), err)
	if err != nil {
		return wrapTransport(err)
	}
	return nil
}

func trimTrailingSlash(s string) string {
	for len(s) > 0 && s[len(s)-1] == '/' {
		s = s[:len(s)-1]
	}
	return s
}

var (
	// ErrNotFound signals the object-store "not found" failure kind from §4.1.
	ErrNotFound = errors.New("objectstore: not found")
	// ErrTransport signals the object-store "transport" failure kind from §4.1.
	ErrTransport = errors.New("objectstore: transport error")
)

func wrapNotFoundOrTransport(err error) error {
	var re *smithyhttp.ResponseError
	if errors.As(err, &re) && re.HTTPStatusCode() == 404 {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return wrapTransport(err)
}

func wrapTransport(err error) error {
	return fmt.Errorf("%w: %v", ErrTransport, err)
}
