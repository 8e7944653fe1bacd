// Package index regenerates the storage-side manifest of archived clips. The
// refresh runs once at the end of every run regardless of outcome, so partial
// progress is always visible.
package index

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/baophamtd/reolink-automation/logger"
)

// Refresher rebuilds the destination's clip index.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Source is the slice of the destination the manifest needs: listing what is
// stored and writing the manifest back. The S3 destination satisfies it.
type Source interface {
	ListKeys(ctx context.Context) ([]string, error)
	Upload(ctx context.Context, key string, content io.Reader) error
}

const manifestKey = "index.json"

type manifest struct {
	GeneratedAt string   `json:"generated_at"`
	Count       int      `json:"count"`
	Keys        []string `json:"keys"`
}

// ManifestRefresher lists every archived clip and writes an index.json
// manifest next to them.
type ManifestRefresher struct {
	src Source
	log logger.Logger
	now func() time.Time
}

// NewManifestRefresher creates a manifest refresher over the given source.
func NewManifestRefresher(src Source, log logger.Logger) *ManifestRefresher {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &ManifestRefresher{src: src, log: log, now: time.Now}
}

// Refresh rebuilds and uploads the manifest.
func (m *ManifestRefresher) Refresh(ctx context.Context) error {
	keys, err := m.src.ListKeys(ctx)
	if err != nil {
		return fmt.Errorf("failed to list archived clips: %w", err)
	}

	// The previous manifest shows up in the listing; it is not a clip.
	clipKeys := keys[:0]
	for _, k := range keys {
		if k != manifestKey && !isManifestKey(k) {
			clipKeys = append(clipKeys, k)
		}
	}

	body, err := json.Marshal(manifest{
		GeneratedAt: m.now().UTC().Format(time.RFC3339),
		Count:       len(clipKeys),
		Keys:        clipKeys,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}

	if err := m.src.Upload(ctx, manifestKey, bytes.NewReader(body)); err != nil {
		return fmt.Errorf("failed to upload manifest: %w", err)
	}

	m.log.Info("storage index refreshed: %d clips", len(clipKeys))
	return nil
}

func isManifestKey(k string) bool {
	return len(k) >= len(manifestKey) && k[len(k)-len(manifestKey):] == manifestKey
}

// NoOpRefresher is used when the destination has no index to maintain.
type NoOpRefresher struct{}

func NewNoOpRefresher() Refresher { return &NoOpRefresher{} }

func (n *NoOpRefresher) Refresh(ctx context.Context) error { return nil }
