package destination

import (
	"context"
	"fmt"
	"io"

	"github.com/baophamtd/reolink-automation/config"
)

// DestinationProvider is the durable storage clips are archived to.
type DestinationProvider interface {
	// Upload stores content under key. Implementations retry internally.
	Upload(ctx context.Context, key string, content io.Reader) error
	// FileExists verifies that key is present; used to confirm an upload
	// before the local copy is deleted.
	FileExists(ctx context.Context, key string) (bool, error)
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	GetWorkerCount() int
	Close() error
}

// CreateDestination creates a destination provider based on configuration
func CreateDestination(cfg *config.DestinationConfig) (DestinationProvider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid destination configuration: %w", err)
	}

	switch cfg.DestinationType {
	case config.DestinationTypeS3:
		return NewS3Destination(cfg.S3, &cfg.Common)
	case config.DestinationTypeFTP:
		return NewFTPDestination(cfg.FTP, &cfg.Common)
	default:
		return nil, fmt.Errorf("unsupported destination type: %s", cfg.DestinationType)
	}
}
