package repository

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/appforge/appforge-go/pkg/httputil"
)

// ObjectStore dispatches manifest and artifact fetches by URL scheme: plain
// https URLs go through the HTTP client with retries, s3:// addresses go
// through the S3 client when one is configured.
type ObjectStore struct {
	HTTP       *http.Client
	S3         *S3Store
	MaxRetries int
	RetryDelay time.Duration
}

func NewObjectStore(s3store *S3Store) *ObjectStore {
	return &ObjectStore{
		HTTP:       &http.Client{Timeout: 5 * time.Minute},
		S3:         s3store,
		MaxRetries: 3,
		RetryDelay: 2 * time.Second,
	}
}

func (s *ObjectStore) GetJSON(ctx context.Context, rawURL string, target interface{}) error {
	reader, err := s.Fetch(ctx, rawURL)
	if err != nil {
		return err
	}
	defer reader.Close()
	return httputil.DecodeJSON(reader, target)
}

func (s *ObjectStore) Fetch(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}

	if parsed.Scheme == "s3" {
		if s.S3 == nil {
			return nil, errors.New("s3 object storage is not configured")
		}
		bucket, key := splitObjectURL(parsed)
		return s.S3.Fetch(ctx, bucket, key)
	}

	return httputil.FetchWithRetry(ctx, s.HTTP, rawURL, s.MaxRetries, s.RetryDelay, func(attempt, maxAttempts int, err error) {
		log.Printf("[ObjectStore] fetch %s attempt %d/%d failed: %v", rawURL, attempt, maxAttempts, err)
	})
}

func (s *ObjectStore) Download(ctx context.Context, rawURL string, localPath string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return err
	}

	if parsed.Scheme == "s3" {
		if s.S3 == nil {
			return errors.New("s3 object storage is not configured")
		}
		bucket, key := splitObjectURL(parsed)
		return s.S3.Download(ctx, bucket, key, localPath)
	}

	reader, err := s.Fetch(ctx, rawURL)
	if err != nil {
		return err
	}
	defer reader.Close()

	out, err := os.Create(localPath)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, reader)
	if err != nil {
		return fmt.Errorf("writing %s: %w", localPath, err)
	}
	return nil
}
