package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"carimport/internal/adapters/http/perf"
)

// R2Config holds Cloudflare R2 credentials. Endpoint is
// https://<account-id>.r2.cloudflarestorage.com unless overridden.
type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	Endpoint        string
	URLExpiry       time.Duration
}

// R2Store stores blobs in an R2 bucket.
type R2Store struct {
	client    *s3.Client
	presign   *s3.PresignClient
	bucket    string
	expiry    time.Duration
	collector *perf.Collector
}

var _ Store = (*R2Store)(nil)

// NewR2Store builds an S3 client pointed at R2.
// PRE: cfg has credentials and a bucket
// POST: Returns a store; no network call is made
func NewR2Store(cfg R2Config, collector *perf.Collector) (*R2Store, error) {
	if cfg.Bucket == "" || cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" {
		return nil, errors.New("r2: bucket and credentials are required")
	}
	endpoint := cfg.Endpoint
	if endpoint == "" {
		if cfg.AccountID == "" {
			return nil, errors.New("r2: account ID or endpoint is required")
		}
		endpoint = fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.AccountID)
	}
	expiry := cfg.URLExpiry
	if expiry <= 0 {
		expiry = DefaultURLExpiry
	}

	awsCfg := aws.Config{
		Region:      "auto",
		Credentials: credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
		// R2 rejects the SDK's default CRC trailers on some operations.
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
	})
	return &R2Store{
		client:    client,
		presign:   s3.NewPresignClient(client),
		bucket:    cfg.Bucket,
		expiry:    expiry,
		collector: collector,
	}, nil
}

// Put uploads data with its content type.
func (s *R2Store) Put(ctx context.Context, key string, data []byte, contentType string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	start := time.Now()
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType),
	})
	s.collector.ObserveCall("blob.r2.put", start, err)
	if err != nil {
		slog.Error("r2_put_failed", "key", key, "error", err)
		return fmt.Errorf("r2 put %s: %w", key, err)
	}
	return nil
}

// Get downloads a blob and its stored content type.
func (s *R2Store) Get(ctx context.Context, key string) ([]byte, string, error) {
	if err := ValidateKey(key); err != nil {
		return nil, "", err
	}
	start := time.Now()
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			s.collector.ObserveCall("blob.r2.get", start, nil)
			return nil, "", fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		s.collector.ObserveCall("blob.r2.get", start, err)
		return nil, "", fmt.Errorf("r2 get %s: %w", key, err)
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	s.collector.ObserveCall("blob.r2.get", start, err)
	if err != nil {
		return nil, "", fmt.Errorf("r2 read %s: %w", key, err)
	}
	return data, aws.ToString(out.ContentType), nil
}

// Delete removes a blob. S3 semantics make deleting a missing key a no-op.
func (s *R2Store) Delete(ctx context.Context, key string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	start := time.Now()
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	s.collector.ObserveCall("blob.r2.delete", start, err)
	if err != nil {
		return fmt.Errorf("r2 delete %s: %w", key, err)
	}
	return nil
}

// URL returns a presigned GET URL valid for the configured expiry.
func (s *R2Store) URL(ctx context.Context, key string) (string, error) {
	if err := ValidateKey(key); err != nil {
		return "", err
	}
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.expiry))
	if err != nil {
		return "", fmt.Errorf("r2 presign %s: %w", key, err)
	}
	return req.URL, nil
}
