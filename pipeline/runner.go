// Package pipeline drives the per-clip archive flow: list the day's motion
// clips, filter them by the configured time windows, and for each qualifying
// clip download, upload, verify, and delete the local copy. A clip present
// locally is treated as fully handled and skipped without any network I/O,
// which makes re-running the same date range safe.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/baophamtd/reolink-automation/camera"
	"github.com/baophamtd/reolink-automation/destination"
	"github.com/baophamtd/reolink-automation/ledger"
	"github.com/baophamtd/reolink-automation/logger"
	"github.com/baophamtd/reolink-automation/model"
	"github.com/baophamtd/reolink-automation/notify"
	"github.com/baophamtd/reolink-automation/schedule"
)

// Runner executes the clip pipeline over a date range.
type Runner struct {
	camera   camera.CameraProvider
	dest     destination.DestinationProvider
	ledger   ledger.LedgerProvider
	notifier notify.Notifier
	log      logger.Logger

	windows       schedule.Windows
	storageDir    string
	indexingDelay time.Duration
	dryRun        bool

	now func() time.Time
}

// Options carries the run-scoped settings for a Runner.
type Options struct {
	Windows       schedule.Windows
	StorageDir    string
	IndexingDelay time.Duration
	DryRun        bool
}

// NewRunner creates a Runner with the provided collaborators.
func NewRunner(cam camera.CameraProvider, dest destination.DestinationProvider, led ledger.LedgerProvider, notifier notify.Notifier, log logger.Logger, opts Options) *Runner {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	if notifier == nil {
		notifier = notify.NewNoOpNotifier()
	}
	return &Runner{
		camera:        cam,
		dest:          dest,
		ledger:        led,
		notifier:      notifier,
		log:           log,
		windows:       opts.Windows,
		storageDir:    opts.StorageDir,
		indexingDelay: opts.IndexingDelay,
		dryRun:        opts.DryRun,
		now:           time.Now,
	}
}

// RunStats aggregates what the run did across all days.
type RunStats struct {
	DaysProcessed int64 // days iterated
	ListFailures  int64 // days whose listing failed after retries
	Listed        int64 // clips reported by the camera
	Matched       int64 // clips inside a configured window
	Skipped       int64 // clips whose local file already existed
	Downloaded    int64 // clips fetched from the camera
	Archived      int64 // clips uploaded, verified, and removed locally
	Failed        int64 // clips that failed at download or upload
	BytesArchived int64 // total size of archived clips as reported by the camera
}

func (s *RunStats) String() string {
	return fmt.Sprintf("Run: days=%d, listed=%d, matched=%d, skipped=%d, downloaded=%d, archived=%d, failed=%d, list_failures=%d, bytes=%d",
		s.DaysProcessed, s.Listed, s.Matched, s.Skipped, s.Downloaded, s.Archived, s.Failed, s.ListFailures, s.BytesArchived)
}

func (s *RunStats) add(d *DayStats) {
	s.DaysProcessed++
	s.Listed += d.Listed
	s.Matched += d.Matched
	s.Skipped += d.Skipped
	s.Downloaded += d.Downloaded
	s.Archived += d.Archived
	s.Failed += d.Failed
	s.BytesArchived += d.BytesArchived
}

// DayStats aggregates one day's processing.
type DayStats struct {
	Day           time.Time
	Listed        int64
	Matched       int64
	Skipped       int64
	Downloaded    int64
	Archived      int64
	Failed        int64
	BytesArchived int64
}

func (s *DayStats) String() string {
	return fmt.Sprintf("Day %s: listed=%d, matched=%d, skipped=%d, downloaded=%d, archived=%d, failed=%d",
		s.Day.Format("2006-01-02"), s.Listed, s.Matched, s.Skipped, s.Downloaded, s.Archived, s.Failed)
}

// Run processes every day of the range in ascending order. Clip-level
// failures are contained; a day whose listing fails is logged and the rest of
// the range still runs, with the first such error returned at the end so the
// run is classified as failed. Only context cancellation aborts mid-range.
func (r *Runner) Run(ctx context.Context, dates schedule.DateRange) (*RunStats, error) {
	stats := &RunStats{}
	var firstErr error

	for _, day := range dates.Days() {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		dayStats, err := r.processDay(ctx, day)
		stats.add(dayStats)
		r.log.Info(dayStats.String())

		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return stats, err
			}
			stats.ListFailures++
			r.log.Error("failed to process %s: %v", day.Format("2006-01-02"), err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	return stats, firstErr
}

// processDay lists one day's clips, filters them, and pushes each qualifying
// clip through the per-clip state machine.
func (r *Runner) processDay(ctx context.Context, day time.Time) (*DayStats, error) {
	stats := &DayStats{Day: day}

	r.log.Info("processing %s", day.Format("2006-01-02"))

	// Recent motion events may not be indexed yet when the run fires right
	// after a window closes.
	if r.indexingDelay > 0 && sameDay(day, r.now()) {
		r.log.Debug("waiting %s for camera indexing", r.indexingDelay)
		select {
		case <-time.After(r.indexingDelay):
		case <-ctx.Done():
			return stats, ctx.Err()
		}
	}

	clips, err := r.camera.ListClips(ctx, day)
	if err != nil {
		return stats, fmt.Errorf("listing failed: %w", err)
	}
	stats.Listed = int64(len(clips))

	matched := matchClips(clips, r.windows)
	stats.Matched = int64(len(matched))
	r.log.Info("found %d of %d clips in configured windows for %s", len(matched), len(clips), day.Format("2006-01-02"))

	if len(matched) > 0 {
		r.notifier.Notify(ctx, fmt.Sprintf("Processing %d clips from %s", len(matched), day.Format("2006-01-02")))
	}

	for _, clip := range matched {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		r.processClip(ctx, clip, stats)
	}

	return stats, nil
}

// matchClips selects the clips falling inside any configured window,
// iterating windows in their configured order and the listing in its stable
// order within each window. A clip matched by overlapping windows is
// processed once.
func matchClips(clips []model.ClipRecord, windows schedule.Windows) []model.ClipRecord {
	matched := make([]model.ClipRecord, 0, len(clips))
	taken := make(map[string]bool, len(clips))

	for _, w := range windows {
		for _, clip := range clips {
			if taken[clip.RemoteID] {
				continue
			}
			if w.Contains(clip.Start) {
				taken[clip.RemoteID] = true
				matched = append(matched, clip)
			}
		}
	}
	return matched
}

// processClip runs one clip through Discovered → Downloaded → Uploaded →
// Deleted, or stops at the skip check. Failures are logged and recorded in
// the ledger; the local file is left intact so the next run can retry, and
// the error never propagates.
func (r *Runner) processClip(ctx context.Context, clip model.ClipRecord, stats *DayStats) {
	name := clip.LocalName()
	localPath := clip.LocalPath(r.storageDir)

	if localFileExists(localPath) {
		r.log.Info("clip %s already exists locally, skipping", name)
		stats.Skipped++
		r.recordSkip(name, clip)
		return
	}

	if r.dryRun {
		r.log.Info("dry-run: would download %s and upload as %s", clip.RemoteID, clip.RemoteKey())
		return
	}

	r.log.Info("downloading %s as %s", clip.RemoteID, name)
	if err := r.camera.Download(ctx, clip, localPath); err != nil {
		r.log.Error("failed to download %s: %v", name, err)
		stats.Failed++
		r.record(name, clip, model.StatusError, err)
		return
	}
	stats.Downloaded++
	r.record(name, clip, model.StatusDownloaded, nil)

	key := clip.RemoteKey()
	if err := r.uploadClip(ctx, localPath, key); err != nil {
		r.log.Error("failed to upload %s: %v", name, err)
		stats.Failed++
		r.record(name, clip, model.StatusError, err)
		return
	}

	// Upload confirmed: the local copy can go.
	if err := os.Remove(localPath); err != nil {
		r.log.Warn("uploaded %s but failed to remove local copy: %v", name, err)
	}

	stats.Archived++
	stats.BytesArchived += clip.Size
	r.record(name, clip, model.StatusArchived, nil)
	r.log.Info("archived %s as %s", name, key)
}

// uploadClip uploads the local file and verifies the destination actually has
// it before the caller deletes the local copy.
func (r *Runner) uploadClip(ctx context.Context, localPath, key string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open local clip: %w", err)
	}
	defer f.Close()

	if err := r.dest.Upload(ctx, key, f); err != nil {
		return err
	}

	exists, err := r.dest.FileExists(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to verify upload: %w", err)
	}
	if !exists {
		return fmt.Errorf("upload of %s not visible on destination", key)
	}
	return nil
}

// record writes the clip's state transition to the ledger. Ledger failures
// are log-only: the ledger is diagnostic, not load-bearing.
func (r *Runner) record(name string, clip model.ClipRecord, status model.ClipStatus, clipErr error) {
	if r.ledger == nil {
		return
	}
	meta := model.ClipMeta{
		Status:    status,
		Channel:   clip.Channel,
		RemoteID:  clip.RemoteID,
		RemoteKey: clip.RemoteKey(),
		Size:      clip.Size,
		UpdatedAt: r.now().Unix(),
	}
	if status == model.StatusArchived {
		meta.UploadedAt = meta.UpdatedAt
	}
	if clipErr != nil {
		meta.LastError = clipErr.Error()
	}
	if err := r.ledger.Put(name, meta); err != nil {
		r.log.Warn("failed to record %s in ledger: %v", name, err)
	}
}

// recordSkip writes a skip entry only when the clip has no ledger history.
// Keeping an earlier DOWNLOADED or ERROR entry preserves the evidence that a
// locally-present clip was never confirmed uploaded.
func (r *Runner) recordSkip(name string, clip model.ClipRecord) {
	if r.ledger == nil {
		return
	}
	if _, err := r.ledger.Get(name); err == nil {
		return
	} else if !errors.Is(err, ledger.ErrKeyNotFound) {
		r.log.Warn("failed to read ledger entry for %s: %v", name, err)
		return
	}
	r.record(name, clip, model.StatusSkipped, nil)
}

func localFileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}
