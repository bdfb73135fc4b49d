package service

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/AnTengye/contractdesk/config"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// FileStorage keeps uploaded contract documents
type FileStorage interface {
	Upload(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) error
	PresignedURL(ctx context.Context, objectName string) (string, error)
	Delete(ctx context.Context, objectName string) error
}

// MinioStorage stores documents in an S3 compatible bucket
type MinioStorage struct {
	client *minio.Client
	bucket string
	region string
	expiry time.Duration
}

func NewMinioStorage(cfg *config.MinioConfig) (*MinioStorage, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	return &MinioStorage{
		client: client,
		bucket: cfg.Bucket,
		region: cfg.Region,
		expiry: time.Duration(cfg.ExpireDays) * 24 * time.Hour,
	}, nil
}

// EnsureBucket creates the bucket unless it exists. Losing a creation race
// against another replica is not an error.
func (s *MinioStorage) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if exists {
		return nil
	}

	err = s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region})
	if err != nil && minio.ToErrorResponse(err).Code != "BucketAlreadyOwnedByYou" {
		return fmt.Errorf("create bucket %s: %w", s.bucket, err)
	}
	return nil
}

// Upload stores a document under objectName, tagged with its contract id
func (s *MinioStorage) Upload(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) error {
	opts := minio.PutObjectOptions{
		ContentType:        contentType,
		ContentDisposition: attachment(objectName),
	}
	if id := contractIDOf(objectName); id != "" {
		opts.UserMetadata = map[string]string{"contract-id": id}
	}

	if _, err := s.client.PutObject(ctx, s.bucket, objectName, reader, size, opts); err != nil {
		return fmt.Errorf("upload %s: %w", objectName, err)
	}
	return nil
}

// PresignedURL returns a download link valid for the configured number of
// days. The browser saves the file under its original name.
func (s *MinioStorage) PresignedURL(ctx context.Context, objectName string) (string, error) {
	params := url.Values{}
	params.Set("response-content-disposition", attachment(objectName))

	u, err := s.client.PresignedGetObject(ctx, s.bucket, objectName, s.expiry, params)
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", objectName, err)
	}
	return u.String(), nil
}

// Delete removes a document. A document that is already gone counts as deleted.
func (s *MinioStorage) Delete(ctx context.Context, objectName string) error {
	err := s.client.RemoveObject(ctx, s.bucket, objectName, minio.RemoveObjectOptions{})
	if err != nil && minio.ToErrorResponse(err).Code != "NoSuchKey" {
		return fmt.Errorf("delete %s: %w", objectName, err)
	}
	return nil
}

const objectPrefix = "contracts/"

// ObjectName builds the storage key for a contract document
func ObjectName(contractID, filename string) string {
	return objectPrefix + contractID + "/" + filename
}

// contractIDOf is the inverse of ObjectName
func contractIDOf(objectName string) string {
	rest, ok := strings.CutPrefix(objectName, objectPrefix)
	if !ok {
		return ""
	}
	id, _, ok := strings.Cut(rest, "/")
	if !ok {
		return ""
	}
	return id
}

func attachment(objectName string) string {
	return mime.FormatMediaType("attachment", map[string]string{"filename": path.Base(objectName)})
}
