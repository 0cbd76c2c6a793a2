// Package storage stores uploaded blobs in a Supabase Storage bucket.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	storage_go "github.com/supabase-community/storage-go"
	"go.uber.org/zap"

	"github.com/upb/medrag/services/providers"
)

const (
	providerName = "supabase-storage"
	storageAPI   = "/storage/v1"
)

// Store is the blob store used by ingestion and voice generation
type Store interface {
	Upload(ctx context.Context, path string, data []byte, contentType string) error
	Remove(ctx context.Context, path string) error
	PublicURL(path string) string
}

// Config configures the Supabase Storage client
type Config struct {
	URL     string
	Key     string
	Bucket  string
	Timeout time.Duration
}

// SupabaseStore implements Store with the supabase-community storage client
type SupabaseStore struct {
	cfg    Config
	client *storage_go.Client
	logger *zap.Logger
}

// NewSupabaseStore creates a storage client for cfg.Bucket
func NewSupabaseStore(cfg Config, logger *zap.Logger) *SupabaseStore {
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	cfg.URL = strings.TrimRight(cfg.URL, "/")

	return &SupabaseStore{
		cfg:    cfg,
		client: storage_go.NewClient(cfg.URL+storageAPI, cfg.Key, map[string]string{"apikey": cfg.Key}),
		logger: logger,
	}
}

// Upload writes data at path, failing if an object already exists there
func (s *SupabaseStore) Upload(ctx context.Context, path string, data []byte, contentType string) error {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	upsert := false

	err := s.call(ctx, "upload", func() error {
		resp, err := s.client.UploadFile(s.cfg.Bucket, path, bytes.NewReader(data), storage_go.FileOptions{
			ContentType: &contentType,
			Upsert:      &upsert,
		})
		if err != nil {
			return err
		}
		if resp.Key == "" {
			return errors.New("upload response carried no object key")
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Debug("object uploaded",
		zap.String("bucket", s.cfg.Bucket),
		zap.String("path", path),
		zap.Int("bytes", len(data)),
	)
	return nil
}

// Remove deletes the object at path. Removing a missing object is not an error.
func (s *SupabaseStore) Remove(ctx context.Context, path string) error {
	return s.call(ctx, "remove", func() error {
		_, err := s.client.RemoveFile(s.cfg.Bucket, []string{path})
		return err
	})
}

// PublicURL returns the public download URL for path
func (s *SupabaseStore) PublicURL(path string) string {
	return s.client.GetPublicUrl(s.cfg.Bucket, strings.TrimLeft(path, "/")).SignedURL
}

// call runs fn under the request context and the configured timeout. The
// storage client has no context support, so an abandoned call finishes in
// the background.
func (s *SupabaseStore) call(ctx context.Context, op string, fn func() error) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- fn() }()

	select {
	case err := <-done:
		if err != nil {
			return providers.NewProviderError(providerName, "API_ERROR", fmt.Sprintf("storage %s failed", op), 0, false, err)
		}
		return nil
	case <-ctx.Done():
		return providers.NewProviderError(providerName, "TIMEOUT", fmt.Sprintf("storage %s did not complete", op), 0, true, ctx.Err())
	}
}
