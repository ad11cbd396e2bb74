package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/infinitehq/aimlgw/internal/config"
	"github.com/infinitehq/aimlgw/internal/observability"
)

// presignAPI is the subset of the S3 presign client the service uses.
type presignAPI interface {
	PresignPutObject(ctx context.Context, params *s3.PutObjectInput,
		optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput,
		optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// objectAPI is the subset of the S3 client the service calls directly.
type objectAPI interface {
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput,
		optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Service issues presigned URLs and manages objects in a single bucket.
type Service struct {
	presigner presignAPI
	objects   objectAPI
	bucket    string
	expiry    time.Duration
	logger    observability.Logger
}

// ServiceOption is a functional option for the service.
type ServiceOption func(*Service)

// WithServiceLogger sets the observability logger.
func WithServiceLogger(logger observability.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithPresignClient sets the presign client, overriding the one built
// from the AWS configuration chain. Used by tests.
func WithPresignClient(presigner presignAPI) ServiceOption {
	return func(s *Service) {
		s.presigner = presigner
	}
}

// WithObjectClient sets the object client, overriding the one built
// from the AWS configuration chain. Used by tests.
func WithObjectClient(objects objectAPI) ServiceOption {
	return func(s *Service) {
		s.objects = objects
	}
}

// NewService creates a presigning service for the configured bucket.
// Credentials and endpoint resolution follow the standard AWS
// configuration chain.
func NewService(ctx context.Context, cfg *config.StorageConfig, opts ...ServiceOption) (*Service, error) {
	if cfg == nil || cfg.Bucket == "" {
		return nil, errors.New("storage bucket is required")
	}

	s := &Service{
		bucket: cfg.Bucket,
		expiry: cfg.GetEffectiveURLExpiry(),
		logger: observability.NopLogger(),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.presigner == nil || s.objects == nil {
		loadOpts := []func(*awsconfig.LoadOptions) error{
			awsconfig.WithRegion(cfg.Region),
		}
		if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
			loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
			))
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to load aws configuration: %w", err)
		}
		client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			if cfg.Endpoint != "" {
				o.BaseEndpoint = aws.String(cfg.Endpoint)
				o.UsePathStyle = true
			}
		})
		if s.presigner == nil {
			s.presigner = s3.NewPresignClient(client)
		}
		if s.objects == nil {
			s.objects = client
		}
	}

	return s, nil
}

// Bucket returns the bucket the service signs URLs for.
func (s *Service) Bucket() string {
	return s.bucket
}

// PresignUpload returns a presigned PUT URL for the given object key.
func (s *Service) PresignUpload(ctx context.Context, key, contentType string) (string, error) {
	req, err := s.presigner.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, func(po *s3.PresignOptions) {
		po.Expires = s.expiry
	})
	if err != nil {
		s.logger.Error("failed to presign upload",
			observability.String("key", key),
			observability.Error(err),
		)
		return "", fmt.Errorf("failed to presign upload for %s: %w", key, err)
	}
	return req.URL, nil
}

// DeleteObject removes an object from the bucket.
func (s *Service) DeleteObject(ctx context.Context, key string) error {
	_, err := s.objects.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		s.logger.Error("failed to delete object",
			observability.String("key", key),
			observability.Error(err),
		)
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// PresignDownload returns a presigned GET URL for the given object key.
func (s *Service) PresignDownload(ctx context.Context, key string) (string, error) {
	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, func(po *s3.PresignOptions) {
		po.Expires = s.expiry
	})
	if err != nil {
		s.logger.Error("failed to presign download",
			observability.String("key", key),
			observability.Error(err),
		)
		return "", fmt.Errorf("failed to presign download for %s: %w", key, err)
	}
	return req.URL, nil
}
