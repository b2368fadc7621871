// Package s3 stores catalog payloads in an S3 or S3-compatible bucket and
// hands out presigned download links.
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/tendant/content-catalog/pkg/catalog"
)

const (
	defaultRegion          = "us-east-1"
	defaultPresignDuration = 3600
	defaultContentType     = "application/octet-stream"
)

// Config options for the S3 backend
type Config struct {
	Region          string
	Bucket          string
	AccessKeyID     string // static credentials; empty uses the default AWS chain
	SecretAccessKey string
	Endpoint        string // custom endpoint for S3-compatible services such as MinIO
	UsePathStyle    bool
	PresignDuration int // seconds; 0 means one hour

	EnableSSE    bool
	SSEAlgorithm string // "AES256" or "aws:kms"
	SSEKMSKeyID  string

	CreateBucketIfNotExist bool
}

// Backend is a catalog.BlobStore backed by one bucket.
//
// Delete is idempotent: S3 does not report missing keys on delete.
type Backend struct {
	client   *s3.Client
	uploader *manager.Uploader
	presign  *s3.PresignClient
	bucket   string
	ttl      time.Duration
	config   Config
}

var (
	_ catalog.BlobStore           = (*Backend)(nil)
	_ catalog.DownloadURLProvider = (*Backend)(nil)
)

// New builds the client and, when asked, makes sure the bucket exists.
func New(config Config) (*Backend, error) {
	if config.Bucket == "" {
		return nil, errors.New("s3 storage: bucket name is required")
	}
	if config.Region == "" {
		config.Region = defaultRegion
	}
	if config.PresignDuration <= 0 {
		config.PresignDuration = defaultPresignDuration
	}

	ctx := context.Background()
	client, err := newClient(ctx, config)
	if err != nil {
		return nil, err
	}

	b := &Backend{
		client:   client,
		uploader: manager.NewUploader(client),
		presign:  s3.NewPresignClient(client),
		bucket:   config.Bucket,
		ttl:      time.Duration(config.PresignDuration) * time.Second,
		config:   config,
	}

	if config.CreateBucketIfNotExist {
		if err := b.ensureBucket(ctx); err != nil {
			return nil, err
		}
	}
	return b, nil
}

func newClient(ctx context.Context, config Config) (*s3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(config.Region)}
	if config.AccessKeyID != "" && config.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(config.AccessKeyID, config.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("s3 storage: load AWS config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if config.Endpoint != "" {
			o.BaseEndpoint = aws.String(config.Endpoint)
		}
		o.UsePathStyle = config.UsePathStyle
	}), nil
}

func (b *Backend) ensureBucket(ctx context.Context) error {
	_, err := b.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(b.bucket)})
	switch {
	case err == nil:
		return nil
	case !isNotFound(err) && !hasCode(err, "BadRequest"):
		return fmt.Errorf("s3 storage: check bucket %s: %w", b.bucket, err)
	}

	input := &s3.CreateBucketInput{Bucket: aws.String(b.bucket)}
	if b.config.Region != defaultRegion {
		input.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(b.config.Region),
		}
	}
	if _, err := b.client.CreateBucket(ctx, input); err != nil && !hasCode(err, "BucketAlreadyExists", "BucketAlreadyOwnedByYou") {
		return fmt.Errorf("s3 storage: create bucket %s: %w", b.bucket, err)
	}
	return nil
}

// Upload streams the payload through the multipart upload manager.
func (b *Backend) Upload(ctx context.Context, reader io.Reader, params catalog.UploadParams) error {
	input := &s3.PutObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(params.ObjectKey),
		Body:   reader,
	}
	if params.MimeType != "" {
		input.ContentType = aws.String(params.MimeType)
	}
	if b.config.EnableSSE {
		switch b.config.SSEAlgorithm {
		case "aws:kms":
			input.ServerSideEncryption = types.ServerSideEncryptionAwsKms
			if b.config.SSEKMSKeyID != "" {
				input.SSEKMSKeyId = aws.String(b.config.SSEKMSKeyID)
			}
		default:
			input.ServerSideEncryption = types.ServerSideEncryptionAes256
		}
	}

	if _, err := b.uploader.Upload(ctx, input); err != nil {
		return fmt.Errorf("s3 storage: upload %s: %w", params.ObjectKey, err)
	}
	return nil
}

func (b *Backend) Download(ctx context.Context, objectKey string) (io.ReadCloser, error) {
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		return nil, b.classify("download", objectKey, err)
	}
	return out.Body, nil
}

func (b *Backend) GetObjectMeta(ctx context.Context, objectKey string) (*catalog.ObjectMeta, error) {
	out, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		return nil, b.classify("head", objectKey, err)
	}

	contentType := aws.ToString(out.ContentType)
	if contentType == "" {
		contentType = defaultContentType
	}
	metadata := map[string]string{"content_type": contentType}
	for k, v := range out.Metadata {
		metadata[k] = v
	}

	return &catalog.ObjectMeta{
		Key:         objectKey,
		Size:        aws.ToInt64(out.ContentLength),
		ContentType: contentType,
		UpdatedAt:   aws.ToTime(out.LastModified),
		ETag:        strings.Trim(aws.ToString(out.ETag), `"`),
		Metadata:    metadata,
	}, nil
}

func (b *Backend) Delete(ctx context.Context, objectKey string) error {
	_, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		return b.classify("delete", objectKey, err)
	}
	return nil
}

// GetDownloadURL presigns a GET that downloads as downloadFilename.
func (b *Backend) GetDownloadURL(ctx context.Context, objectKey string, downloadFilename string) (string, error) {
	input := &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(objectKey),
	}
	if downloadFilename != "" {
		input.ResponseContentDisposition = aws.String(
			mime.FormatMediaType("attachment", map[string]string{"filename": downloadFilename}))
	}

	req, err := b.presign.PresignGetObject(ctx, input, s3.WithPresignExpires(b.ttl))
	if err != nil {
		return "", fmt.Errorf("s3 storage: presign %s: %w", objectKey, err)
	}
	return req.URL, nil
}

func (b *Backend) classify(op, objectKey string, err error) error {
	if isNotFound(err) {
		return catalog.ErrObjectNotFound
	}
	return fmt.Errorf("s3 storage: %s %s: %w", op, objectKey, err)
}

// isNotFound covers the typed SDK errors and the bare codes MinIO returns.
func isNotFound(err error) bool {
	var notFound *types.NotFound
	var noSuchKey *types.NoSuchKey
	var noSuchBucket *types.NoSuchBucket
	if errors.As(err, &notFound) || errors.As(err, &noSuchKey) || errors.As(err, &noSuchBucket) {
		return true
	}
	return hasCode(err, "NotFound", "NoSuchKey", "NoSuchBucket")
}

func hasCode(err error, codes ...string) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	for _, code := range codes {
		if apiErr.ErrorCode() == code {
			return true
		}
	}
	return false
}
