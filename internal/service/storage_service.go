// Package service contains the business logic layer.
package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	appconfig "github.com/clienthubhq/clienthub-api/internal/config"
	"github.com/clienthubhq/clienthub-api/internal/models"
)

// ErrNotFound is returned when a requested object is not in the sink.
var ErrNotFound = errors.New("object not found")

// ErrStorageDisabled is returned by read operations when no sink is
// configured. Writes silently skip instead so the pipeline can run in
// metadata-only mode.
var ErrStorageDisabled = errors.New("storage is not enabled")

// StorageService is the document sink: full extracted payloads as JSON on
// S3-compatible object storage, keyed by client and content hash.
type StorageService struct {
	client  *s3.Client
	bucket  string
	enabled bool
	logger  *slog.Logger
}

// NewStorageService creates the document sink. With no bucket configured the
// service runs disabled and the system degrades to metadata-only.
func NewStorageService(cfg *appconfig.Config, logger *slog.Logger) (*StorageService, error) {
	if !cfg.StorageEnabled {
		logger.Info("document sink disabled - no bucket configured, running metadata-only")
		return &StorageService{
			enabled: false,
			logger:  logger,
		}, nil
	}

	awsCfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithRegion(cfg.StorageRegion),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.StorageAccessKey,
			cfg.StorageSecretKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	// Custom endpoint and path-style addressing cover the S3-compatible
	// services (Tigris, MinIO, R2) as well as AWS itself.
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.StorageEndpoint)
		o.UsePathStyle = true
	})

	logger.Info("document sink initialized",
		"bucket", cfg.StorageBucket,
		"endpoint", cfg.StorageEndpoint,
	)

	return &StorageService{
		client:  client,
		bucket:  cfg.StorageBucket,
		enabled: true,
		logger:  logger,
	}, nil
}

// IsEnabled reports whether the sink is configured and available.
func (s *StorageService) IsEnabled() bool {
	return s.enabled
}

// Client exposes the underlying S3 client for other bucket consumers,
// such as the IP blocklist loader. Nil when the sink is disabled.
func (s *StorageService) Client() *s3.Client {
	return s.client
}

// DocumentKey returns the object key for a client's document payload.
func DocumentKey(clientID, contentHash string) string {
	return fmt.Sprintf("documents/%s/%s.json", clientID, contentHash)
}

// Put stores raw bytes under a key. Disabled sinks silently skip.
func (s *StorageService) Put(ctx context.Context, key string, data []byte) error {
	if !s.enabled {
		return nil
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to store object %s: %w", key, err)
	}
	return nil
}

// Get retrieves raw bytes by key. Missing objects yield ErrNotFound.
func (s *StorageService) Get(ctx context.Context, key string) ([]byte, error) {
	if !s.enabled {
		return nil, ErrStorageDisabled
	}

	output, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get object %s: %w", key, err)
	}
	defer func() { _ = output.Body.Close() }()

	data, err := io.ReadAll(output.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read object %s: %w", key, err)
	}
	return data, nil
}

// PutDocument stores a full extracted payload for a client.
func (s *StorageService) PutDocument(ctx context.Context, clientID string, doc *models.ExtractedDocument) error {
	if !s.enabled {
		return nil
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}

	key := DocumentKey(clientID, doc.ContentHash)
	if err := s.Put(ctx, key, data); err != nil {
		return err
	}

	s.logger.Info("stored document payload",
		"client_id", clientID,
		"key", key,
		"size_bytes", len(data),
	)
	return nil
}

// GetDocument retrieves a stored payload by client and content hash.
func (s *StorageService) GetDocument(ctx context.Context, clientID, contentHash string) (*models.ExtractedDocument, error) {
	data, err := s.Get(ctx, DocumentKey(clientID, contentHash))
	if err != nil {
		return nil, err
	}

	var doc models.ExtractedDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal document: %w", err)
	}
	return &doc, nil
}

// DeleteDocument removes a single payload. Disabled sinks silently skip.
func (s *StorageService) DeleteDocument(ctx context.Context, clientID, contentHash string) error {
	if !s.enabled {
		return nil
	}

	key := DocumentKey(clientID, contentHash)
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object %s: %w", key, err)
	}
	return nil
}

// DeleteClientDocuments removes every payload under a client's prefix.
// Returns the number of deleted objects.
func (s *StorageService) DeleteClientDocuments(ctx context.Context, clientID string) (int, error) {
	if !s.enabled {
		return 0, nil
	}

	deleted := 0
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(fmt.Sprintf("documents/%s/", clientID)),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return deleted, fmt.Errorf("failed to list objects: %w", err)
		}

		for _, obj := range page.Contents {
			_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
				Bucket: aws.String(s.bucket),
				Key:    obj.Key,
			})
			if err != nil {
				s.logger.Warn("failed to delete object",
					"key", aws.ToString(obj.Key),
					"error", err,
				)
				continue
			}
			deleted++
		}
	}

	s.logger.Info("purged client documents from sink",
		"client_id", clientID,
		"deleted_count", deleted,
	)
	return deleted, nil
}
