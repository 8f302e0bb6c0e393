// Package s3 keeps snapshots in an S3-compatible bucket. A custom endpoint
// switches to path-style addressing for MinIO and similar services.
package s3

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/blogem/memorial-registry/config"
	"github.com/blogem/memorial-registry/storage"
)

const checksumMetaKey = "sha256"

func init() {
	storage.Register("s3", func(cfg config.BackupConfig) (storage.Storage, error) {
		return New(context.Background(), cfg.S3)
	})
}

// S3Storage implements storage.Storage on an S3 bucket
type S3Storage struct {
	client *s3.Client
	bucket string
	prefix string
}

// New creates an S3 backend. Static keys are used when both are set,
// otherwise the default AWS credential chain applies.
func New(ctx context.Context, cfg config.S3Config) (*S3Storage, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket name is required")
	}
	if cfg.Region == "" {
		return nil, fmt.Errorf("s3 region is required")
	}
	if (cfg.AccessKeyID == "") != (cfg.SecretAccessKey == "") {
		return nil, fmt.Errorf("s3 access key id and secret access key must be set together")
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
			o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
			o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
		})
	}

	prefix := strings.Trim(cfg.Prefix, "/")
	if prefix != "" {
		prefix += "/"
	}

	return &S3Storage{
		client: s3.NewFromConfig(awsCfg, s3Opts...),
		bucket: cfg.Bucket,
		prefix: prefix,
	}, nil
}

// Put uploads data with its SHA256 stored as object metadata. The write is
// conditional on the key being absent.
func (s *S3Storage) Put(ctx context.Context, name string, data []byte) (*storage.Object, error) {
	sum := sha256.Sum256(data)
	checksum := hex.EncodeToString(sum[:])

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(s.key(name)),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String("application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"),
		Metadata:      map[string]string{checksumMetaKey: checksum},
		IfNoneMatch:   aws.String("*"),
	})
	if err != nil {
		if hasStatus(err, http.StatusPreconditionFailed) {
			return nil, fmt.Errorf("%s: %w", name, storage.ErrExists)
		}
		return nil, fmt.Errorf("failed to upload to S3: %w", err)
	}

	return &storage.Object{
		Name:     name,
		Size:     int64(len(data)),
		Checksum: checksum,
	}, nil
}

// Get downloads the whole object
func (s *S3Storage) Get(ctx context.Context, name string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%s: %w", name, storage.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to download from S3: %w", err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read S3 object: %w", err)
	}
	return data, nil
}

// List pages through the bucket prefix and reads each object's checksum
// from its metadata
func (s *S3Storage) List(ctx context.Context) ([]storage.Object, error) {
	objects := []storage.Object{}

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list S3 objects: %w", err)
		}
		for _, item := range page.Contents {
			name := strings.TrimPrefix(aws.ToString(item.Key), s.prefix)
			if name == "" || strings.Contains(name, "/") {
				continue
			}
			obj := storage.Object{
				Name:         name,
				Size:         aws.ToInt64(item.Size),
				LastModified: aws.ToTime(item.LastModified),
			}
			obj.Checksum, err = s.checksum(ctx, name)
			if err != nil {
				return nil, err
			}
			objects = append(objects, obj)
		}
	}
	return objects, nil
}

// Delete removes the object
func (s *S3Storage) Delete(ctx context.Context, name string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name)),
	})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("failed to delete from S3: %w", err)
	}
	return nil
}

// checksum prefers the stored metadata and falls back to hashing the body
// for objects uploaded by other tools
func (s *S3Storage) checksum(ctx context.Context, name string) (string, error) {
	head, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name)),
	})
	if err != nil {
		return "", fmt.Errorf("failed to get object metadata: %w", err)
	}
	if sum := head.Metadata[checksumMetaKey]; sum != "" {
		return sum, nil
	}

	data, err := s.Get(ctx, name)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

func (s *S3Storage) key(name string) string {
	return s.prefix + name
}

func isNotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return true
	}
	return hasStatus(err, http.StatusNotFound)
}

func hasStatus(err error, status int) bool {
	var respErr *awshttp.ResponseError
	return errors.As(err, &respErr) && respErr.HTTPStatusCode() == status
}
