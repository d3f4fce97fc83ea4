// Package storage mirrors remote generation results into storage the
// system owns. Upstream provider URLs are ephemeral; only the mirrored
// location is recorded.
package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"time"
)

const maxDownloadBytes = 32 << 20 // generation outputs are images, not archives

// Mirror copies a remote URL into owned storage and returns the durable
// location to record.
type Mirror interface {
	Mirror(ctx context.Context, remoteURL string) (string, error)
}

// FileMirror stores downloads on the local filesystem under
// content-addressed names, served back under the public prefix. Identical
// content mirrors to the same path, so re-mirroring is idempotent.
type FileMirror struct {
	dir          string
	publicPrefix string
	client       *http.Client
}

// NewFileMirror creates a FileMirror writing into dir. publicPrefix is the
// URL path prefix the mirrored files are served under (e.g. "/media").
func NewFileMirror(dir, publicPrefix string) (*FileMirror, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create mirror directory: %w", err)
	}
	return &FileMirror{
		dir:          dir,
		publicPrefix: publicPrefix,
		client:       &http.Client{Timeout: 60 * time.Second},
	}, nil
}

// Mirror downloads remoteURL and stores it content-addressed. The write
// goes through a temp file and rename so a crashed download never leaves
// a partial object at the final path.
func (m *FileMirror) Mirror(ctx context.Context, remoteURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, remoteURL, nil)
	if err != nil {
		return "", fmt.Errorf("build download request: %w", err)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("download %s: %w", remoteURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download %s: unexpected status %d", remoteURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDownloadBytes))
	if err != nil {
		return "", fmt.Errorf("read download body: %w", err)
	}

	sum := sha256.Sum256(body)
	name := hex.EncodeToString(sum[:]) + extensionFor(remoteURL)
	final := filepath.Join(m.dir, name)

	if _, err := os.Stat(final); err == nil {
		return path.Join(m.publicPrefix, name), nil
	}

	tmp, err := os.CreateTemp(m.dir, "mirror-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(body); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("write mirrored object: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("close mirrored object: %w", err)
	}
	if err := os.Rename(tmp.Name(), final); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("finalize mirrored object: %w", err)
	}

	return path.Join(m.publicPrefix, name), nil
}

func extensionFor(remoteURL string) string {
	ext := path.Ext(remoteURL)
	switch ext {
	case ".png", ".jpg", ".jpeg", ".webp", ".gif":
		return ext
	default:
		return ".png"
	}
}
