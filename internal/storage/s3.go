// Package storage wraps the object store used for profile images. Clients
// upload directly through short-lived presigned PUT URLs; the API server
// never proxies image bytes.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/contested-app/contested/internal/config"
)

// ErrNotConfigured is returned when no bucket is configured; image
// endpoints surface it as a service-unavailable error.
var ErrNotConfigured = errors.New("object storage not configured")

// ImageStore issues presigned upload URLs and deletes stored objects.
type ImageStore struct {
	cfg config.Config
}

func NewImageStore(cfg config.Config) *ImageStore {
	return &ImageStore{cfg: cfg}
}

func (s *ImageStore) client(ctx context.Context) (*s3.Client, error) {
	if s.cfg.S3Bucket == "" {
		return nil, ErrNotConfigured
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(s.cfg.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			s.cfg.S3AccessKey,
			s.cfg.S3SecretKey,
			"", // session token unused with static keys
		)))
	if err != nil {
		return nil, err
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if s.cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(s.cfg.S3Endpoint)
		}
	}), nil
}

// imageKey builds a date-partitioned storage key for a user's image.
func imageKey(userID uint64) string {
	d := time.Now().UTC()
	return fmt.Sprintf("profiles/%d/%d/%02d/%v", userID, d.Year(), d.Month(), uuid.New())
}

// PresignUpload returns a storage key and a presigned PUT URL valid for 15
// minutes. The caller records the key on the profile once the upload
// succeeds client-side.
func (s *ImageStore) PresignUpload(ctx context.Context, userID uint64) (key, url string, err error) {
	client, err := s.client(ctx)
	if err != nil {
		return "", "", err
	}
	presign := s3.NewPresignClient(client)
	key = imageKey(userID)
	req, err := presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket: &s.cfg.S3Bucket,
		Key:    &key,
	}, s3.WithPresignExpires(15*time.Minute))
	if err != nil {
		return "", "", err
	}
	return key, req.URL, nil
}

// Delete removes a stored object. Deleting a missing key is not an error.
func (s *ImageStore) Delete(ctx context.Context, key string) error {
	client, err := s.client(ctx)
	if err != nil {
		return err
	}
	_, err = client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: &s.cfg.S3Bucket,
		Key:    &key,
	})
	return err
}
