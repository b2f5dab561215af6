package s3infra

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/go-sale-provisioner/internal/config"
	"github.com/go-sale-provisioner/internal/domain"
	"github.com/go-sale-provisioner/internal/logger"
)

// API is the subset of the S3 client used here.
type API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Store wraps S3 operations for the application.
type Store struct {
	client API
	bucket string
}

// NewClient creates an S3 client. When cfg.EndpointURL is set (LocalStack),
// it overrides the endpoint and enables path-style addressing.
func NewClient(ctx context.Context, cfg config.AWS) (*s3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}

	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config for S3: %w", err)
	}

	clientOpts := []func(*s3.Options){}
	if cfg.EndpointURL != "" {
		clientOpts = append(clientOpts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.EndpointURL)
			o.UsePathStyle = true
		})
	}

	return s3.NewFromConfig(awsCfg, clientOpts...), nil
}

// NewStore creates a Store with the given S3 client and bucket name.
func NewStore(client API, bucket string) *Store {
	return &Store{client: client, bucket: bucket}
}

// Upload streams r to S3 under key and returns the object URL and the
// version id assigned by a versioned bucket (empty otherwise).
func (s *Store) Upload(ctx context.Context, key string, r io.Reader, contentType string) (url, version string, err error) {
	out, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        r,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", "", fmt.Errorf("s3 put object: %w", err)
	}
	return fmt.Sprintf("s3://%s/%s", s.bucket, key), aws.ToString(out.VersionId), nil
}

// Publisher mirrors the user store snapshot to a single S3 object. Bucket
// versioning keeps the history.
type Publisher struct {
	store *Store
	key   string
}

func NewPublisher(store *Store, key string) *Publisher {
	return &Publisher{store: store, key: key}
}

func (p *Publisher) Publish(ctx context.Context, snap domain.Snapshot) error {
	data, err := snap.Marshal()
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	url, version, err := p.store.Upload(ctx, p.key, bytes.NewReader(data), "application/json")
	if err != nil {
		return err
	}
	logger.FromContext(ctx).Info().
		Str("url", url).
		Str("version_id", version).
		Int("users", len(snap)).
		Msg("snapshot uploaded")
	return nil
}

func (p *Publisher) String() string { return "s3://" + p.store.bucket + "/" + p.key }
