// Package ledger persists the terminal status of every clip a run touched,
// keyed by the clip's local file name. It exists for diagnosability: after a
// crash or partial run, the ledger shows which locally-present clips were
// confirmed uploaded and which never were. The pipeline's skip decision is
// based on local file existence, not on the ledger.
package ledger

import (
	"errors"
	"fmt"

	"github.com/baophamtd/reolink-automation/config"
	"github.com/baophamtd/reolink-automation/model"
)

type LedgerProvider interface {
	Put(name string, meta model.ClipMeta) error
	Get(name string) (*model.ClipMeta, error)
	Delete(name string) error
	DumpAll() (map[string]model.ClipMeta, error)
	Count() (int64, error)
	Close() error
}

var (
	ErrKeyNotFound    = errors.New("key not found")
	ErrBucketNotFound = errors.New("bucket not found")
)

// CreateLedger creates a ledger provider based on configuration.
func CreateLedger(cfg *config.LedgerConfig) (LedgerProvider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid ledger configuration: %w", err)
	}
	return NewBboltLedger(cfg)
}
