// Package s3store is a ReloadCache persistence backend for deployments that
// want the cache shared across multiple orchestrator processes, backed by
// aws-sdk-go-v2's S3 client. The store is swappable plumbing; the core
// orchestrator still does not coordinate scheduling across machines.
package s3store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"github.com/deskmux/deskmux/pkg/models"
)

// Store persists the whole CacheEntry document as one object.
type Store struct {
	client *s3.Client
	bucket string
	key    string
}

// New builds a Store using the default AWS credential chain.
func New(ctx context.Context, bucket, prefix string) (*Store, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("s3store: load aws config: %w", err)
	}
	return &Store{
		client: s3.NewFromConfig(cfg),
		bucket: bucket,
		key:    prefix + "reload_cache.json",
	}, nil
}

// Load fetches and decodes the cache document, returning an empty slice if
// the object doesn't exist yet.
func (s *Store) Load(ctx context.Context) ([]models.CacheEntry, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == "NoSuchKey" {
			return nil, nil
		}
		return nil, fmt.Errorf("s3store: get object: %w", err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("s3store: read body: %w", err)
	}
	var entries []models.CacheEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("s3store: decode: %w", err)
	}
	return entries, nil
}

// Save uploads the whole document, overwriting the prior one.
func (s *Store) Save(ctx context.Context, entries []models.CacheEntry) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("s3store: encode: %w", err)
	}
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("s3store: put object: %w", err)
	}
	return nil
}
