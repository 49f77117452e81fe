package gcs

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/storage"
)

// uploadTimeout bounds a single object write.
const uploadTimeout = 2 * time.Minute

// ObjectStore reads and writes whole objects. It enables mocking of cloud
// storage in tests.
type ObjectStore interface {
	// WriteObject stores data under bucket/object.
	WriteObject(ctx context.Context, bucket, object, contentType string, data []byte) error

	// ReadObject returns the bytes of bucket/object.
	ReadObject(ctx context.Context, bucket, object string) ([]byte, error)
}

// Client is the Google Cloud Storage implementation of ObjectStore. It
// assumes Application Default Credentials are configured.
type Client struct {
	client *storage.Client
}

// NewClient creates a storage client.
func NewClient(ctx context.Context) (*Client, error) {
	c, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &Client{client: c}, nil
}

// Close releases the underlying client.
func (c *Client) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// WriteObject implements ObjectStore.
func (c *Client) WriteObject(ctx context.Context, bucket, object, contentType string, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	w := c.client.Bucket(bucket).Object(object).NewWriter(ctx)
	w.ContentType = contentType

	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("write gs://%s/%s: %w", bucket, object, err)
	}

	// Close finalizes the upload
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize upload gs://%s/%s: %w", bucket, object, err)
	}
	return nil
}

// ReadObject implements ObjectStore.
func (c *Client) ReadObject(ctx context.Context, bucket, object string) ([]byte, error) {
	r, err := c.client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("open GCS object reader: %w", err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read GCS object: %w", err)
	}
	return data, nil
}

var _ ObjectStore = (*Client)(nil)

// ParseURI splits gs://bucket/path/to/object.
func ParseURI(uri string) (bucket, object string, err error) {
	if !strings.HasPrefix(uri, "gs://") {
		return "", "", fmt.Errorf("invalid GCS URI: %s", uri)
	}

	parts := strings.SplitN(strings.TrimPrefix(uri, "gs://"), "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid GCS URI (no object path): %s", uri)
	}
	return parts[0], parts[1], nil
}

// ReadLocation reads a gs:// URI through store, or a local file otherwise.
// store may be nil when only local paths are expected.
func ReadLocation(ctx context.Context, store ObjectStore, location string) ([]byte, error) {
	if !strings.HasPrefix(location, "gs://") {
		data, err := os.ReadFile(location)
		if err != nil {
			return nil, fmt.Errorf("read %q: %w", location, err)
		}
		return data, nil
	}

	bucket, object, err := ParseURI(location)
	if err != nil {
		return nil, err
	}
	if store == nil {
		return nil, fmt.Errorf("read %s: no storage client configured", location)
	}
	return store.ReadObject(ctx, bucket, object)
}
