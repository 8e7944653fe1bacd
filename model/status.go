package model

// ClipStatus is the terminal state of a clip recorded in the ledger after a
// run touched it.
type ClipStatus int

const (
	StatusDiscovered ClipStatus = iota // listed but not yet acted on
	StatusSkipped                      // local file already existed, nothing done
	StatusDownloaded                   // fetched from the camera, not yet uploaded
	StatusArchived                     // uploaded, verified, local copy removed
	StatusError                        // failed at download or upload, local state untouched
)

func (s ClipStatus) String() string {
	switch s {
	case StatusDiscovered:
		return "DISCOVERED"
	case StatusSkipped:
		return "SKIPPED"
	case StatusDownloaded:
		return "DOWNLOADED"
	case StatusArchived:
		return "ARCHIVED"
	case StatusError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ClipMeta is the ledger value stored per clip (keyed by local file name).
type ClipMeta struct {
	Status     ClipStatus `json:"status"`
	Channel    int        `json:"channel"`
	RemoteID   string     `json:"remote_id"`
	RemoteKey  string     `json:"remote_key,omitempty"`
	Size       int64      `json:"size,omitempty"`
	UpdatedAt  int64      `json:"updated_at"`            // unix seconds of the last status change
	UploadedAt int64      `json:"uploaded_at,omitempty"` // unix seconds of confirmed upload, 0 if never
	LastError  string     `json:"last_error,omitempty"`
}
