package destination

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"math"
	"path"
	"strings"
	"time"

	"github.com/jlaffaye/ftp"

	"github.com/baophamtd/reolink-automation/config"
)

var _ DestinationProvider = (*FTPDestination)(nil)

// FTPDestination archives clips to an FTP server, for deployments that keep a
// NAS instead of an object store.
type FTPDestination struct {
	cfg      *config.FTPConfig
	common   *config.CommonDestinationConfig
	connPool chan *ftp.ServerConn
	dialOpts []ftp.DialOption
}

// NewFTPDestination creates an FTP destination and verifies connectivity with
// an initial connection.
func NewFTPDestination(cfg *config.FTPConfig, common *config.CommonDestinationConfig) (*FTPDestination, error) {
	cfg.ApplyDefaults()
	common.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid ftp config: %w", err)
	}

	dialOpts := []ftp.DialOption{
		ftp.DialWithTimeout(time.Duration(common.TimeoutSeconds) * time.Second),
	}
	if cfg.UseTLS {
		dialOpts = append(dialOpts, ftp.DialWithExplicitTLS(&tls.Config{}))
	}

	d := &FTPDestination{
		cfg:      cfg,
		common:   common,
		connPool: make(chan *ftp.ServerConn, common.WorkerCount),
		dialOpts: dialOpts,
	}

	conn, err := d.connect()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to FTP server: %w", err)
	}
	d.putConn(conn)

	return d, nil
}

func (d *FTPDestination) connect() (*ftp.ServerConn, error) {
	addr := fmt.Sprintf("%s:%d", d.cfg.Host, d.cfg.Port)
	conn, err := ftp.Dial(addr, d.dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", addr, err)
	}
	if err := conn.Login(d.cfg.Username, d.cfg.Password); err != nil {
		conn.Quit()
		return nil, fmt.Errorf("failed to login: %w", err)
	}
	return conn, nil
}

// getConn hands out a pooled connection, re-dialing if the pooled one died.
func (d *FTPDestination) getConn(ctx context.Context) (*ftp.ServerConn, error) {
	select {
	case conn := <-d.connPool:
		if err := conn.NoOp(); err != nil {
			conn.Quit()
			return d.connect()
		}
		return conn, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
		return d.connect()
	}
}

func (d *FTPDestination) putConn(conn *ftp.ServerConn) {
	if conn == nil {
		return
	}
	select {
	case d.connPool <- conn:
	default:
		conn.Quit()
	}
}

// Upload stores content under key, creating parent directories as needed.
// Retries rewind seekable bodies.
func (d *FTPDestination) Upload(ctx context.Context, key string, content io.Reader) error {
	fullPath := path.Join(d.cfg.BasePath, key)

	var lastErr error
	for attempt := 0; attempt < d.common.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt))) * 200 * time.Millisecond
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
			if seeker, ok := content.(io.Seeker); ok {
				if _, err := seeker.Seek(0, io.SeekStart); err != nil {
					return fmt.Errorf("failed to rewind upload body: %w", err)
				}
			} else {
				break
			}
		}

		conn, err := d.getConn(ctx)
		if err != nil {
			lastErr = err
			continue
		}

		if err := d.ensureDir(conn, path.Dir(fullPath)); err != nil {
			d.putConn(conn)
			lastErr = fmt.Errorf("failed to create directory for %s: %w", fullPath, err)
			continue
		}

		err = conn.Stor(fullPath, content)
		d.putConn(conn)

		if err == nil {
			return nil
		}
		lastErr = fmt.Errorf("failed to store %s: %w", fullPath, err)
	}

	return fmt.Errorf("upload failed after %d attempts: %w", d.common.MaxRetries, lastErr)
}

// ensureDir creates each path segment; MakeDir errors on already-existing
// directories are ignored.
func (d *FTPDestination) ensureDir(conn *ftp.ServerConn, dir string) error {
	if dir == "/" || dir == "." || dir == "" {
		return nil
	}
	var current string
	for _, part := range strings.Split(strings.Trim(dir, "/"), "/") {
		current = current + "/" + part
		conn.MakeDir(current)
	}
	return nil
}

// FileExists probes key with a size request.
func (d *FTPDestination) FileExists(ctx context.Context, key string) (bool, error) {
	fullPath := path.Join(d.cfg.BasePath, key)

	conn, err := d.getConn(ctx)
	if err != nil {
		return false, err
	}
	defer d.putConn(conn)

	_, err = conn.FileSize(fullPath)
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return false, nil
	}
	return false, fmt.Errorf("failed to check %s: %w", fullPath, err)
}

// Delete removes key; a missing file is not an error.
func (d *FTPDestination) Delete(ctx context.Context, key string) error {
	fullPath := path.Join(d.cfg.BasePath, key)

	conn, err := d.getConn(ctx)
	if err != nil {
		return err
	}
	defer d.putConn(conn)

	if err := conn.Delete(fullPath); err != nil && !isNotFound(err) {
		return fmt.Errorf("failed to delete %s: %w", fullPath, err)
	}
	return nil
}

// 550 is the FTP "file unavailable" reply.
func isNotFound(err error) bool {
	return strings.Contains(err.Error(), "550") || strings.Contains(err.Error(), "not found")
}

// GetWorkerCount returns the configured number of parallel workers
func (d *FTPDestination) GetWorkerCount() int {
	return d.common.WorkerCount
}

// Close drains and quits all pooled connections.
func (d *FTPDestination) Close() error {
	close(d.connPool)
	for conn := range d.connPool {
		conn.Quit()
	}
	return nil
}
