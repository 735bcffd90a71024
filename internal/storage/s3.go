package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/pkg/errors"

	"example.com/eazyy/fulfillment/config"
)

const defaultURLExpiry = 15 * time.Minute

// PhotoStorage issues presigned uploads for proof-of-delivery photos
type PhotoStorage struct {
	presigner        *s3.PresignClient
	bucket           string
	region           string
	cloudFrontDomain string
	expiry           time.Duration
}

// NewPhotoStorage creates an S3 backed photo store. It returns nil when no
// bucket is configured.
func NewPhotoStorage(ctx context.Context, cfg config.StorageConfig) (*PhotoStorage, error) {
	if cfg.Bucket == "" {
		return nil, nil
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	sdkConfig, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load AWS config")
	}

	expiry := cfg.URLExpiry
	if expiry <= 0 {
		expiry = defaultURLExpiry
	}

	return &PhotoStorage{
		presigner:        s3.NewPresignClient(s3.NewFromConfig(sdkConfig)),
		bucket:           cfg.Bucket,
		region:           cfg.Region,
		cloudFrontDomain: cfg.CloudFrontDomain,
		expiry:           expiry,
	}, nil
}

// PresignPut returns a presigned PUT url for key and the public url the
// object will be served from once uploaded
func (s *PhotoStorage) PresignPut(ctx context.Context, key string) (string, string, error) {
	req, err := s.presigner.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String("image/jpeg"),
	}, s3.WithPresignExpires(s.expiry))
	if err != nil {
		return "", "", errors.Wrapf(err, "failed to presign upload for %s", key)
	}
	return req.URL, s.ObjectURL(key), nil
}

// ObjectURL returns the public url of key, preferring the CloudFront domain
func (s *PhotoStorage) ObjectURL(key string) string {
	if s.cloudFrontDomain != "" {
		return fmt.Sprintf("https://%s/%s", s.cloudFrontDomain, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key)
}
