package filestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"cloud.google.com/go/storage"
)

// GCS stores files as objects in a Google Cloud Storage bucket, optionally
// under a prefix. It assumes Application Default Credentials are configured.
type GCS struct {
	client *storage.Client
	bucket string
	prefix string
}

// NewGCS creates a GCS file store with a shared storage client.
func NewGCS(ctx context.Context, bucket, prefix string) (*GCS, error) {
	if bucket == "" {
		return nil, fmt.Errorf("NewGCS: bucket is required")
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("NewGCS: create storage client: %w", err)
	}
	return &GCS{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}, nil
}

// objectName maps a stored filename to its object name.
func (g *GCS) objectName(filename string) string {
	if g.prefix == "" {
		return filename
	}
	return path.Join(g.prefix, filename)
}

// URI returns the gs:// URI of a stored filename.
func (g *GCS) URI(filename string) string {
	return fmt.Sprintf("gs://%s/%s", g.bucket, g.objectName(filename))
}

// ReadBytes implements pipeline.FileStore.
func (g *GCS) ReadBytes(ctx context.Context, filename string) ([]byte, error) {
	name := g.objectName(filename)
	rc, err := g.client.Bucket(g.bucket).Object(name).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("ReadBytes: reading object %s/%s: %w", g.bucket, name, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("ReadBytes: reading bytes: %w", err)
	}
	return data, nil
}

// Write uploads r under filename.
func (g *GCS) Write(ctx context.Context, filename, contentType string, r io.Reader) (int64, error) {
	name := g.objectName(filename)
	w := g.client.Bucket(g.bucket).Object(name).NewWriter(ctx)
	w.ContentType = contentType

	n, err := io.Copy(w, r)
	if err != nil {
		_ = w.Close()
		return 0, fmt.Errorf("Write: copy to GCS writer: %w", err)
	}
	// Close finalizes the upload.
	if err := w.Close(); err != nil {
		return 0, fmt.Errorf("Write: finalize upload: %w", err)
	}
	return n, nil
}

// Delete removes the object stored under filename. A missing object is not
// an error.
func (g *GCS) Delete(ctx context.Context, filename string) error {
	name := g.objectName(filename)
	err := g.client.Bucket(g.bucket).Object(name).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("Delete: deleting object %s/%s: %w", g.bucket, name, err)
	}
	return nil
}

// Close closes the storage client.
func (g *GCS) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}
