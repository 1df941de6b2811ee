package gcs

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// Client is a thin blob-transfer layer over one bucket. Blobs are addressed
// by object key; transfers are single-attempt (connectivity failures are
// reported to the caller, not retried).
type Client struct {
	bucket string
	client *storage.Client
}

// NewClient creates a storage client bound to bucketName, authenticated
// with the service-account credentials file at credentialsPath.
func NewClient(ctx context.Context, bucketName, credentialsPath string) (*Client, error) {
	var opts []option.ClientOption
	if credentialsPath != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsPath))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}

	return &Client{bucket: bucketName, client: client}, nil
}

// Close releases the underlying storage client.
func (c *Client) Close() error {
	return c.client.Close()
}

// Bucket returns the bucket name this client is bound to.
func (c *Client) Bucket() string {
	return c.bucket
}

// Upload writes data to the given object key.
func (c *Client) Upload(ctx context.Context, key string, data []byte) error {
	w := c.client.Bucket(c.bucket).Object(key).NewWriter(ctx)
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("write object %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize upload of %s: %w", key, err)
	}
	return nil
}

// UploadFile uploads a local file to the given object key.
func (c *Client) UploadFile(ctx context.Context, key, filePath string) error {
	f, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("open file %q: %w", filePath, err)
	}
	defer f.Close()

	w := c.client.Bucket(c.bucket).Object(key).NewWriter(ctx)
	if _, err := io.Copy(w, f); err != nil {
		_ = w.Close()
		return fmt.Errorf("copy %q to object writer: %w", filePath, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize upload of %s: %w", key, err)
	}
	return nil
}

// Download returns the bytes of the given object key.
func (c *Client) Download(ctx context.Context, key string) ([]byte, error) {
	r, err := c.client.Bucket(c.bucket).Object(key).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("open object reader %s: %w", key, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read object %s: %w", key, err)
	}
	return data, nil
}

// DownloadToFile writes the given object to a local path.
func (c *Client) DownloadToFile(ctx context.Context, key, filePath string) error {
	data, err := c.Download(ctx, key)
	if err != nil {
		return err
	}
	if dir := path.Dir(filePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create download dir %q: %w", dir, err)
		}
	}
	if err := os.WriteFile(filePath, data, 0o644); err != nil {
		return fmt.Errorf("write file %q: %w", filePath, err)
	}
	return nil
}

// List returns all object keys under the given prefix.
func (c *Client) List(ctx context.Context, prefix string) ([]string, error) {
	it := c.client.Bucket(c.bucket).Objects(ctx, &storage.Query{Prefix: prefix})

	var keys []string
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list objects under %s: %w", prefix, err)
		}
		keys = append(keys, attrs.Name)
	}
	return keys, nil
}

// PathIndex maps each object's base name under prefix to its full storage
// path ("/bucket/key"). The Tabular Metadata Loader uses it to resolve a
// benchmark task's file_name to a file_path.
func (c *Client) PathIndex(ctx context.Context, prefix string) (map[string]string, error) {
	keys, err := c.List(ctx, prefix)
	if err != nil {
		return nil, err
	}

	index := make(map[string]string, len(keys))
	for _, key := range keys {
		if strings.HasSuffix(key, "/") {
			continue
		}
		index[path.Base(key)] = fmt.Sprintf("/%s/%s", c.bucket, key)
	}
	return index, nil
}
