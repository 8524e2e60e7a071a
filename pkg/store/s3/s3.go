// Package s3 is a snapshot store that keeps each snapshot as one JSON object
// in an S3 bucket.
package s3

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/marmos91/memfsd/internal/logger"
	"github.com/marmos91/memfsd/pkg/store"
)

// ObjectName is the name of the snapshot object under the key prefix.
const ObjectName = "snapshot.json"

// ObjectAPI is the subset of *s3.Client the store calls.
type ObjectAPI interface {
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3SnapshotStoreConfig configures the store. The mapstructure tags match the
// snapshot.s3 configuration section.
type S3SnapshotStoreConfig struct {
	Bucket          string `mapstructure:"bucket"`
	Region          string `mapstructure:"region"`
	KeyPrefix       string `mapstructure:"key_prefix"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	MaxRetries      int    `mapstructure:"max_retries"`

	// Client is used instead of building one from the fields above.
	Client ObjectAPI `mapstructure:"-"`
}

// S3SnapshotStore persists snapshots in S3.
type S3SnapshotStore struct {
	client ObjectAPI
	bucket string
	key    string
}

// NewS3SnapshotStore builds the store and checks that the bucket is
// reachable.
func NewS3SnapshotStore(ctx context.Context, cfg S3SnapshotStoreConfig) (*S3SnapshotStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}

	client := cfg.Client
	if client == nil {
		if cfg.Region == "" {
			return nil, fmt.Errorf("S3 region is required")
		}
		c, err := NewS3Client(ctx, ClientConfig{
			Region:          cfg.Region,
			Endpoint:        cfg.Endpoint,
			AccessKeyID:     cfg.AccessKeyID,
			SecretAccessKey: cfg.SecretAccessKey,
			MaxRetries:      cfg.MaxRetries,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create S3 client: %w", err)
		}
		client = c
	}

	_, err := client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(cfg.Bucket),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to access bucket %q: %w", cfg.Bucket, err)
	}

	s := &S3SnapshotStore{
		client: client,
		bucket: cfg.Bucket,
		key:    cfg.KeyPrefix + ObjectName,
	}
	logger.Info("S3 snapshot store initialized: bucket=%s, key=%s", s.bucket, s.key)
	return s, nil
}

func (s *S3SnapshotStore) Save(ctx context.Context, snap *store.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
		Metadata:    map[string]string{"snapshot-id": snap.ID},
	})
	if err != nil {
		return fmt.Errorf("failed to put object %q: %w", s.key, err)
	}
	return nil
}

func (s *S3SnapshotStore) Load(ctx context.Context) (*store.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, store.ErrNoSnapshot
		}
		return nil, fmt.Errorf("failed to get object %q: %w", s.key, err)
	}
	defer func() { _ = out.Body.Close() }()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read object %q: %w", s.key, err)
	}

	var snap store.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &snap, nil
}

// Close is a no-op; the client holds no resources that need releasing.
func (s *S3SnapshotStore) Close() error { return nil }

func (s *S3SnapshotStore) Type() string { return "s3" }
