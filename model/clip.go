package model

import (
	"fmt"
	"path/filepath"
	"time"
)

// ClipRecord describes one motion-triggered recording as reported by the
// camera's playback search.
type ClipRecord struct {
	Channel  int       // camera channel the clip was recorded on
	Start    time.Time // capture start timestamp (camera local time)
	RemoteID string    // filename on the camera, used for download requests
	Size     int64     // size in bytes as reported by the search, 0 if unknown
}

// LocalName returns the file name a clip is stored under locally:
// "2006-01-02 15-04-05_ch<N>.mp4". The name doubles as the idempotency key;
// a run never re-fetches a clip whose local file already exists.
func (c ClipRecord) LocalName() string {
	return fmt.Sprintf("%s_ch%d.mp4", c.Start.Format("2006-01-02 15-04-05"), c.Channel)
}

// LocalPath returns the full local path for a clip under the date-partitioned
// storage directory: <storageDir>/<YYYY-MM-DD>/<LocalName>.
func (c ClipRecord) LocalPath(storageDir string) string {
	return filepath.Join(storageDir, c.Start.Format("2006-01-02"), c.LocalName())
}

// RemoteKey returns the destination object key for a clip:
// <YYYY-MM-DD>/<LocalName>. Forward slashes regardless of platform.
func (c ClipRecord) RemoteKey() string {
	return c.Start.Format("2006-01-02") + "/" + c.LocalName()
}
