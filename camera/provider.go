package camera

import (
	"context"
	"fmt"
	"time"

	"github.com/baophamtd/reolink-automation/config"
	"github.com/baophamtd/reolink-automation/logger"
	"github.com/baophamtd/reolink-automation/model"
)

// CameraProvider lists and fetches motion clips from a camera. Only the
// configured channel is ever queried.
type CameraProvider interface {
	// ListClips returns the motion clips recorded on the configured channel
	// during the given calendar day, in the camera's listing order.
	ListClips(ctx context.Context, day time.Time) ([]model.ClipRecord, error)
	// Download fetches a clip into localPath. The file appears atomically:
	// either the download completes and the file exists, or it does not.
	Download(ctx context.Context, clip model.ClipRecord, localPath string) error
	Close() error
}

// CreateCamera creates a camera provider based on configuration.
func CreateCamera(cfg *config.CameraConfig, log logger.Logger) (CameraProvider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid camera configuration: %w", err)
	}
	return NewReolinkCamera(cfg, log)
}
