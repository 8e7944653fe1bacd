package ledger

import (
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/baophamtd/reolink-automation/config"
	"github.com/baophamtd/reolink-automation/model"
)

var _ LedgerProvider = (*BboltLedger)(nil)

// BboltLedger is the bbolt-backed ledger implementation.
type BboltLedger struct {
	db     *bbolt.DB
	bucket string
}

// NewBboltLedger opens (or creates) the ledger database and its bucket.
func NewBboltLedger(cfg *config.LedgerConfig) (*BboltLedger, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid ledger config: %w", err)
	}

	db, err := bbolt.Open(cfg.Path, cfg.Mode, &bbolt.Options{NoSync: cfg.NoSync})
	if err != nil {
		return nil, err
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(cfg.Bucket))
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create bucket: %w", err)
	}

	return &BboltLedger{
		db:     db,
		bucket: cfg.Bucket,
	}, nil
}

func (l *BboltLedger) Close() error {
	return l.db.Close()
}

func (l *BboltLedger) Put(name string, meta model.ClipMeta) error {
	return l.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(l.bucket))
		if b == nil {
			return ErrBucketNotFound
		}
		val, err := json.Marshal(meta)
		if err != nil {
			return err
		}
		return b.Put([]byte(name), val)
	})
}

func (l *BboltLedger) Get(name string) (*model.ClipMeta, error) {
	var meta model.ClipMeta
	err := l.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(l.bucket))
		if b == nil {
			return ErrBucketNotFound
		}
		val := b.Get([]byte(name))
		if val == nil {
			return ErrKeyNotFound
		}
		return json.Unmarshal(val, &meta)
	})
	if err != nil {
		return nil, err
	}
	return &meta, nil
}

func (l *BboltLedger) Delete(name string) error {
	return l.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(l.bucket))
		if b == nil {
			return ErrBucketNotFound
		}
		return b.Delete([]byte(name))
	})
}

func (l *BboltLedger) DumpAll() (map[string]model.ClipMeta, error) {
	results := make(map[string]model.ClipMeta)

	err := l.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(l.bucket))
		if b == nil {
			return ErrBucketNotFound
		}

		return b.ForEach(func(k, v []byte) error {
			var meta model.ClipMeta
			if err := json.Unmarshal(v, &meta); err != nil {
				return fmt.Errorf("unmarshal error for key %s: %w", k, err)
			}
			results[string(k)] = meta
			return nil
		})
	})

	return results, err
}

func (l *BboltLedger) Count() (int64, error) {
	var count int64
	err := l.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(l.bucket))
		if b == nil {
			return ErrBucketNotFound
		}
		count = int64(b.Stats().KeyN)
		return nil
	})
	return count, err
}
