// Package artifacts is the Artifact Store Client of spec.md §4.5: a thin
// abstraction over an object store, keyed by "<flow-id>/<output-name>".
// Grounded on the teacher's platform/gcp bucket client, simplified from a
// two-bucket (avatar/material) CDN-aware service down to the single
// flow-scoped bucket this spec calls for.
package artifacts

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/flowmium-io/flowmium/internal/platform/gcp"
	"github.com/flowmium-io/flowmium/internal/platform/logger"
)

type Client interface {
	// Put uploads the contents of localPath to flow-id/output-name.
	Put(ctx context.Context, flowID uint64, outputName, localPath string) error
	// Get downloads flow-id/output-name to localPath, creating parent
	// directories as needed.
	Get(ctx context.Context, flowID uint64, outputName, localPath string) error
	// GetToClient streams flow-id/output-name for the download API.
	GetToClient(ctx context.Context, flowID uint64, outputName string) (io.ReadCloser, error)
}

type gcsClient struct {
	log    *logger.Logger
	client *storage.Client
	bucket string
}

// New resolves the object storage mode (real GCS vs. emulator) the same
// way the teacher's bucket service does, then opens a single bucket for
// artifact storage.
func New(ctx context.Context, bucketName, storeURL string, log *logger.Logger) (Client, error) {
	cfg, err := gcp.ResolveObjectStorageConfigFromEnv()
	if err != nil {
		return nil, fmt.Errorf("resolve object storage config: %w", err)
	}

	var stClient *storage.Client
	if cfg.IsEmulatorMode() {
		_ = os.Setenv("STORAGE_EMULATOR_HOST", cfg.EmulatorHost)
		stClient, err = storage.NewClient(ctx, option.WithoutAuthentication())
	} else {
		opts := gcp.ClientOptionsFromEnv()
		opts = append(opts, option.WithScopes(storage.ScopeReadWrite))
		stClient, err = storage.NewClient(ctx, opts...)
	}
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}

	log.Info("artifact store initialized", "bucket", bucketName, "mode", cfg.Mode, "store_url", storeURL)
	return &gcsClient{log: log.With("component", "ArtifactStore"), client: stClient, bucket: bucketName}, nil
}

func key(flowID uint64, outputName string) string {
	return fmt.Sprintf("%d/%s", flowID, outputName)
}

func (c *gcsClient) Put(ctx context.Context, flowID uint64, outputName, localPath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", localPath, err)
	}
	defer f.Close()

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := c.client.Bucket(c.bucket).Object(key(flowID, outputName)).NewWriter(ctx)
	if _, err := io.Copy(w, f); err != nil {
		_ = w.Close()
		return fmt.Errorf("upload %s: %w", key(flowID, outputName), err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close writer for %s: %w", key(flowID, outputName), err)
	}
	return nil
}

func (c *gcsClient) Get(ctx context.Context, flowID uint64, outputName, localPath string) error {
	rc, err := c.GetToClient(ctx, flowID, outputName)
	if err != nil {
		return err
	}
	defer rc.Close()

	if dir := parentDir(localPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}
	f, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", localPath, err)
	}
	defer f.Close()

	if _, err := io.Copy(f, rc); err != nil {
		return fmt.Errorf("download %s: %w", key(flowID, outputName), err)
	}
	return nil
}

func (c *gcsClient) GetToClient(ctx context.Context, flowID uint64, outputName string) (io.ReadCloser, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	r, err := c.client.Bucket(c.bucket).Object(key(flowID, outputName)).NewReader(ctx)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("open reader for %s: %w", key(flowID, outputName), err)
	}
	return &cancelingReadCloser{ReadCloser: r, cancel: cancel}, nil
}

type cancelingReadCloser struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelingReadCloser) Close() error {
	defer c.cancel()
	return c.ReadCloser.Close()
}

func parentDir(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[:i]
		}
	}
	return ""
}
