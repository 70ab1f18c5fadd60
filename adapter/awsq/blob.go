package awsq

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/s3"

	"github.com/trickstertwo/xclaim"
)

// Blob is an S3-backed blob transport. Capability URIs are presigned GET
// URLs, resolvable by any HTTP client without AWS credentials.
type Blob struct {
	bucket string
	client *s3.S3
}

// NewBlob builds an S3 transport for cfg.Bucket. The bucket itself is
// created by EnsureContainer, not here.
func NewBlob(cfg Config) (*Blob, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("config: bucket required")
	}
	sess, err := cfg.newSession()
	if err != nil {
		return nil, fmt.Errorf("awsq: create session: %w", err)
	}
	return &Blob{bucket: cfg.Bucket, client: s3.New(sess)}, nil
}

// EnsureContainer creates the bucket if it does not exist.
func (b *Blob) EnsureContainer(ctx context.Context) error {
	_, err := b.client.CreateBucketWithContext(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(b.bucket),
	})
	if err != nil {
		if aerr, ok := err.(awserr.Error); ok {
			switch aerr.Code() {
			case s3.ErrCodeBucketAlreadyExists, s3.ErrCodeBucketAlreadyOwnedByYou:
				return nil
			}
		}
		return fmt.Errorf("awsq: create bucket %q: %w", b.bucket, err)
	}
	return nil
}

func (b *Blob) Container() string { return b.bucket }

// storageClass maps the portable access tier names to S3 storage classes.
func storageClass(tier string) *string {
	switch strings.ToLower(tier) {
	case "", "hot":
		return nil // bucket default (STANDARD)
	case "cool":
		return aws.String(s3.StorageClassStandardIa)
	case "archive":
		return aws.String(s3.StorageClassGlacier)
	default:
		return aws.String(tier)
	}
}

func (b *Blob) Put(ctx context.Context, name string, data []byte, metadata map[string]string, tier string) error {
	meta := make(map[string]*string, len(metadata))
	for k, v := range metadata {
		meta[k] = aws.String(v)
	}
	in := &s3.PutObjectInput{
		Bucket:       aws.String(b.bucket),
		Key:          aws.String(name),
		Body:         bytes.NewReader(data),
		Metadata:     meta,
		StorageClass: storageClass(tier),
	}
	if _, err := b.client.PutObjectWithContext(ctx, in); err != nil {
		return fmt.Errorf("awsq: put object %q: %w", name, err)
	}
	return nil
}

func (b *Blob) Get(ctx context.Context, name string) ([]byte, error) {
	out, err := b.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(name),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, xclaim.ErrBlobNotFound
		}
		return nil, fmt.Errorf("awsq: get object %q: %w", name, err)
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("awsq: read object %q: %w", name, err)
	}
	return data, nil
}

func (b *Blob) Delete(ctx context.Context, name string) error {
	// S3 DeleteObject succeeds on absent keys; probe first so the
	// transport contract (not-found is reported) holds.
	if _, err := b.head(ctx, name); err != nil {
		return err
	}
	_, err := b.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(name),
	})
	if err != nil {
		return fmt.Errorf("awsq: delete object %q: %w", name, err)
	}
	return nil
}

func (b *Blob) List(ctx context.Context) ([]string, error) {
	var names []string
	err := b.client.ListObjectsV2PagesWithContext(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(b.bucket),
	}, func(page *s3.ListObjectsV2Output, _ bool) bool {
		for _, obj := range page.Contents {
			names = append(names, aws.StringValue(obj.Key))
		}
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("awsq: list objects: %w", err)
	}
	return names, nil
}

func (b *Blob) Metadata(ctx context.Context, name string) (map[string]string, error) {
	out, err := b.head(ctx, name)
	if err != nil {
		return nil, err
	}
	meta := make(map[string]string, len(out.Metadata))
	for k, v := range out.Metadata {
		meta[k] = aws.StringValue(v)
	}
	return meta, nil
}

func (b *Blob) head(ctx context.Context, name string) (*s3.HeadObjectOutput, error) {
	out, err := b.client.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(name),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, xclaim.ErrBlobNotFound
		}
		return nil, fmt.Errorf("awsq: head object %q: %w", name, err)
	}
	return out, nil
}

// SignedURL presigns a GET for the object, valid for validFor.
func (b *Blob) SignedURL(ctx context.Context, name string, validFor time.Duration) (string, error) {
	if _, err := b.head(ctx, name); err != nil {
		return "", err
	}
	req, _ := b.client.GetObjectRequest(&s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(name),
	})
	url, err := req.Presign(validFor)
	if err != nil {
		return "", fmt.Errorf("awsq: presign object %q: %w", name, err)
	}
	return url, nil
}

func isNotFound(err error) bool {
	if aerr, ok := err.(awserr.Error); ok {
		switch aerr.Code() {
		case s3.ErrCodeNoSuchKey, s3.ErrCodeNoSuchBucket, "NotFound":
			return true
		}
	}
	return false
}
