// Package objectstore issues presigned URLs for photo objects on S3 or any
// S3-compatible endpoint.
package objectstore

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go/middleware"
	smithyhttp "github.com/aws/smithy-go/transport/http"
)

// Options configures the S3 client.
type Options struct {
	Bucket string
	Region string
	// Endpoint points at an S3-compatible service such as MinIO. Path-style
	// addressing is used when it is set.
	Endpoint string
}

// S3 presigns uploads and downloads and deletes objects in one bucket.
type S3 struct {
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string
}

// NewS3 loads AWS credentials from the default chain.
func NewS3(ctx context.Context, opts Options) (*S3, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("objectstore: bucket is required")
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(opts.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewS3FromConfig(awsCfg, opts), nil
}

// NewS3FromConfig builds the store from an existing aws.Config.
func NewS3FromConfig(awsCfg aws.Config, opts Options) *S3 {
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &S3{
		client:  client,
		presign: s3.NewPresignClient(client),
		bucket:  opts.Bucket,
	}
}

// PresignPut returns a URL the client can PUT the object body to, along with
// the headers the upload must carry. Content-Type is part of the signature,
// so S3 rejects a body sent with any other type.
func (s *S3) PresignPut(ctx context.Context, key, contentType string, expiry time.Duration) (string, http.Header, error) {
	req, err := s.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(expiry), signContentType(contentType))
	if err != nil {
		return "", nil, fmt.Errorf("presign put %s: %w", key, err)
	}
	header := make(http.Header, len(req.SignedHeader))
	for k, v := range req.SignedHeader {
		if strings.EqualFold(k, "host") {
			continue
		}
		for _, val := range v {
			header.Add(k, val)
		}
	}
	return req.URL, header, nil
}

// signContentType puts Content-Type back on the request ahead of signing.
// The presign client strips it from PUT requests otherwise.
func signContentType(contentType string) func(*s3.PresignOptions) {
	return func(o *s3.PresignOptions) {
		o.ClientOptions = append(o.ClientOptions, func(so *s3.Options) {
			so.APIOptions = append(so.APIOptions, func(stack *middleware.Stack) error {
				return stack.Finalize.Add(contentTypeHeader(contentType), middleware.Before)
			})
		})
	}
}

type contentTypeHeader string

func (contentTypeHeader) ID() string { return "SignedContentType" }

func (c contentTypeHeader) HandleFinalize(ctx context.Context, in middleware.FinalizeInput, next middleware.FinalizeHandler) (
	middleware.FinalizeOutput, middleware.Metadata, error,
) {
	if req, ok := in.Request.(*smithyhttp.Request); ok {
		req.Header.Set("Content-Type", string(c))
	}
	return next.HandleFinalize(ctx, in)
}

// PresignGet returns a time-limited download URL.
func (s *S3) PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error) {
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(expiry))
	if err != nil {
		return "", fmt.Errorf("presign get %s: %w", key, err)
	}
	return req.URL, nil
}

// Delete removes the object. Deleting a missing key succeeds.
func (s *S3) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// Ping checks the bucket is reachable.
func (s *S3) Ping(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	return err
}
