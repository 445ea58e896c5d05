package download

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// FileLocator turns a product's stored file location into a URL the
// customer's browser can fetch.
type FileLocator interface {
	Locate(ctx context.Context, fileURL string) (string, error)
}

// BaseURLLocator joins relative file paths onto a base URL. Absolute
// http(s) locations pass through.
type BaseURLLocator struct {
	base string
}

// NewBaseURLLocator creates a locator rooted at base.
func NewBaseURLLocator(base string) *BaseURLLocator {
	return &BaseURLLocator{base: strings.TrimRight(base, "/")}
}

// Locate implements FileLocator.
func (l *BaseURLLocator) Locate(_ context.Context, fileURL string) (string, error) {
	if fileURL == "" {
		return "", fmt.Errorf("product has no file")
	}
	if strings.HasPrefix(fileURL, "http://") || strings.HasPrefix(fileURL, "https://") {
		return fileURL, nil
	}
	return l.base + "/" + strings.TrimLeft(fileURL, "/"), nil
}

// Presigner is the subset of *s3.PresignClient used to sign object URLs.
type Presigner interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// S3Locator serves product files from a private bucket through short-lived
// presigned URLs. File locations are object keys.
type S3Locator struct {
	presigner Presigner
	bucket    string
	expires   time.Duration
}

// NewS3Locator creates a locator for bucket using client.
func NewS3Locator(client *s3.Client, bucket string, expires time.Duration) *S3Locator {
	return NewS3LocatorWithPresigner(s3.NewPresignClient(client), bucket, expires)
}

// NewS3LocatorWithPresigner creates a locator over an existing presigner.
func NewS3LocatorWithPresigner(p Presigner, bucket string, expires time.Duration) *S3Locator {
	return &S3Locator{presigner: p, bucket: bucket, expires: expires}
}

// Locate implements FileLocator.
func (l *S3Locator) Locate(ctx context.Context, fileURL string) (string, error) {
	key := strings.TrimLeft(fileURL, "/")
	if key == "" {
		return "", fmt.Errorf("product has no file")
	}

	req, err := l.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(l.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(l.expires))
	if err != nil {
		return "", fmt.Errorf("failed to presign %s: %w", key, err)
	}
	return req.URL, nil
}
