// Package storage copies supplier product images into S3-compatible object
// storage so the shop does not hotlink distributor servers.
package storage

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
	"go.uber.org/zap"

	importapp "github.com/eshop/backend/internal/application/import"
	infraconfig "github.com/eshop/backend/internal/infrastructure/config"
)

var _ importapp.ImageStore = (*S3ImageStore)(nil)

// maxImageBytes caps a single downloaded image.
const maxImageBytes = 15 << 20

// ErrNotImage is returned when a supplier URL serves something else.
var ErrNotImage = errors.New("storage: not an image")

// s3API is the part of the S3 client the store uses.
type s3API interface {
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, in *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3ImageStore downloads supplier images and uploads them to a bucket.
// Keys derive from the source URL, so an image already uploaded by an
// earlier run is not uploaded again.
type S3ImageStore struct {
	client     s3API
	httpClient *http.Client
	bucket     string
	keyPrefix  string
	publicURL  string
	logger     *zap.Logger
}

// S3ImageStoreOption is a functional option for configuring S3ImageStore
type S3ImageStoreOption func(*S3ImageStore)

// WithLogger sets a custom logger for S3ImageStore
func WithLogger(logger *zap.Logger) S3ImageStoreOption {
	return func(s *S3ImageStore) {
		s.logger = logger
	}
}

// WithHTTPClient sets the client images are downloaded with.
func WithHTTPClient(c *http.Client) S3ImageStoreOption {
	return func(s *S3ImageStore) {
		s.httpClient = c
	}
}

// NewS3ImageStore creates a store from configuration. It works with any
// S3-compatible backend (AWS S3, MinIO, RustFS).
func NewS3ImageStore(cfg *infraconfig.StorageConfig, opts ...S3ImageStoreOption) (*S3ImageStore, error) {
	if cfg == nil {
		return nil, errors.New("storage configuration is required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("storage bucket is required")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, errors.New("storage access key and secret key are required")
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = "http://localhost:9000"
	}
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		if cfg.UseSSL {
			endpoint = "https://" + endpoint
		} else {
			endpoint = "http://" + endpoint
		}
	}
	if _, err := url.Parse(endpoint); err != nil {
		return nil, fmt.Errorf("invalid storage endpoint: %w", err)
	}

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	awsCfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithRegion(region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		o.BaseEndpoint = aws.String(endpoint)
	})

	publicURL := strings.TrimRight(cfg.PublicURL, "/")
	if publicURL == "" {
		publicURL = strings.TrimRight(endpoint, "/") + "/" + cfg.Bucket
	}
	timeout := cfg.DownloadTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return newS3ImageStore(client, cfg.Bucket, cfg.KeyPrefix, publicURL,
		append([]S3ImageStoreOption{WithHTTPClient(&http.Client{Timeout: timeout})}, opts...)...), nil
}

func newS3ImageStore(client s3API, bucket, keyPrefix, publicURL string, opts ...S3ImageStoreOption) *S3ImageStore {
	s := &S3ImageStore{
		client:     client,
		httpClient: http.DefaultClient,
		bucket:     bucket,
		keyPrefix:  strings.Trim(keyPrefix, "/"),
		publicURL:  publicURL,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EnsureBucket creates the bucket if it doesn't exist.
func (s *S3ImageStore) EnsureBucket(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err == nil {
		return nil
	}
	var notFound *types.NotFound
	var noSuchBucket *types.NoSuchBucket
	if !errors.As(err, &notFound) && !errors.As(err, &noSuchBucket) {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}

	s.logger.Info("Creating image bucket", zap.String("bucket", s.bucket))
	_, err = s.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(s.bucket)})
	var alreadyOwned *types.BucketAlreadyOwnedByYou
	if err != nil && !errors.As(err, &alreadyOwned) {
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

// Store implements importapp.ImageStore. Any failing image fails the call
// and the caller keeps the supplier URLs.
func (s *S3ImageStore) Store(ctx context.Context, supplier string, productID uuid.UUID, urls []string) ([]string, error) {
	out := make([]string, 0, len(urls))
	for _, src := range urls {
		key := s.objectKey(supplier, productID, src)
		exists, err := s.exists(ctx, key)
		if err != nil {
			return nil, err
		}
		if !exists {
			if err := s.copy(ctx, src, key); err != nil {
				return nil, fmt.Errorf("image %s: %w", src, err)
			}
		}
		out = append(out, s.publicURL+"/"+key)
	}
	return out, nil
}

// objectKey is prefix/supplier/product/hash.ext.
func (s *S3ImageStore) objectKey(supplier string, productID uuid.UUID, src string) string {
	sum := sha1.Sum([]byte(src))
	name := hex.EncodeToString(sum[:])[:16]
	if u, err := url.Parse(src); err == nil {
		if ext := strings.ToLower(path.Ext(u.Path)); ext != "" && len(ext) <= 5 {
			name += ext
		}
	}
	parts := []string{strings.ToLower(supplier), productID.String(), name}
	if s.keyPrefix != "" {
		parts = append([]string{s.keyPrefix}, parts...)
	}
	return strings.Join(parts, "/")
}

func (s *S3ImageStore) exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}
	var notFound *types.NotFound
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &notFound) || errors.As(err, &noSuchKey) {
		return false, nil
	}
	return false, fmt.Errorf("failed to check object %s: %w", key, err)
}

func (s *S3ImageStore) copy(ctx context.Context, src, key string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return err
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download: HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return fmt.Errorf("download: %w", err)
	}
	if len(body) > maxImageBytes {
		return fmt.Errorf("download: image larger than %d bytes", maxImageBytes)
	}

	contentType := resp.Header.Get("Content-Type")
	if mt, _, err := mime.ParseMediaType(contentType); err != nil || !strings.HasPrefix(mt, "image/") {
		contentType = http.DetectContentType(body)
	}
	if !strings.HasPrefix(contentType, "image/") {
		return ErrNotImage
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
		ContentType:   aws.String(contentType),
		CacheControl:  aws.String("public, max-age=31536000, immutable"),
	})
	if err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	s.logger.Debug("image stored", zap.String("key", key), zap.Int("bytes", len(body)))
	return nil
}

// GetBucket returns the bucket name
func (s *S3ImageStore) GetBucket() string {
	return s.bucket
}
