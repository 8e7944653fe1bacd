package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/baophamtd/reolink-automation/ledger"
	"github.com/baophamtd/reolink-automation/model"
	"github.com/baophamtd/reolink-automation/schedule"
)

// ---- mocks ----

type mockCamera struct {
	clips       map[string][]model.ClipRecord // keyed by YYYY-MM-DD
	listErr     map[string]error
	listCalls   int
	downloads   []string
	downloadErr map[string]error // keyed by RemoteID
}

func (m *mockCamera) ListClips(ctx context.Context, day time.Time) ([]model.ClipRecord, error) {
	m.listCalls++
	key := day.Format("2006-01-02")
	if err := m.listErr[key]; err != nil {
		return nil, err
	}
	return m.clips[key], nil
}

func (m *mockCamera) Download(ctx context.Context, clip model.ClipRecord, localPath string) error {
	if err := m.downloadErr[clip.RemoteID]; err != nil {
		return err
	}
	m.downloads = append(m.downloads, clip.RemoteID)
	if err := os.MkdirAll(filepath.Dir(localPath), 0755); err != nil {
		return err
	}
	return os.WriteFile(localPath, []byte("clip body"), 0644)
}

func (m *mockCamera) Close() error { return nil }

type mockDestination struct {
	mu        sync.Mutex
	objects   map[string][]byte
	uploadErr map[string]error // keyed by destination key
	invisible map[string]bool  // uploaded but FileExists lies
	uploads   []string
}

func newMockDestination() *mockDestination {
	return &mockDestination{objects: make(map[string][]byte)}
}

func (m *mockDestination) Upload(ctx context.Context, key string, content io.Reader) error {
	if err := m.uploadErr[key]; err != nil {
		return err
	}
	data, err := io.ReadAll(content)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	m.uploads = append(m.uploads, key)
	return nil
}

func (m *mockDestination) FileExists(ctx context.Context, key string) (bool, error) {
	if m.invisible[key] {
		return false, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok, nil
}

func (m *mockDestination) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *mockDestination) GetWorkerCount() int { return 1 }
func (m *mockDestination) Close() error        { return nil }

type mockLedger struct {
	entries map[string]model.ClipMeta
}

func newMockLedger() *mockLedger {
	return &mockLedger{entries: make(map[string]model.ClipMeta)}
}

func (m *mockLedger) Put(name string, meta model.ClipMeta) error {
	m.entries[name] = meta
	return nil
}

func (m *mockLedger) Get(name string) (*model.ClipMeta, error) {
	meta, ok := m.entries[name]
	if !ok {
		return nil, ledger.ErrKeyNotFound
	}
	return &meta, nil
}

func (m *mockLedger) Delete(name string) error {
	delete(m.entries, name)
	return nil
}

func (m *mockLedger) DumpAll() (map[string]model.ClipMeta, error) { return m.entries, nil }
func (m *mockLedger) Count() (int64, error)                       { return int64(len(m.entries)), nil }
func (m *mockLedger) Close() error                                { return nil }

type recordingNotifier struct {
	messages []string
}

func (n *recordingNotifier) Notify(ctx context.Context, message string) error {
	n.messages = append(n.messages, message)
	return nil
}

// ---- helpers ----

func clipAt(day string, hour, min int, channel int) model.ClipRecord {
	d, _ := time.ParseInLocation("2006-01-02", day, time.Local)
	start := time.Date(d.Year(), d.Month(), d.Day(), hour, min, 0, 0, time.Local)
	return model.ClipRecord{
		Channel:  channel,
		Start:    start,
		RemoteID: fmt.Sprintf("Rec_%s_%02d%02d.mp4", day, hour, min),
	}
}

func testWindows(t *testing.T) schedule.Windows {
	t.Helper()
	morning, err := schedule.ParseWindow("09:00", "09:30")
	require.NoError(t, err)
	evening, err := schedule.ParseWindow("18:00", "18:30")
	require.NoError(t, err)
	return schedule.Windows{morning, evening}
}

func singleDay(t *testing.T, day string) schedule.DateRange {
	t.Helper()
	r, err := schedule.ParseRange(day, day, time.Now())
	require.NoError(t, err)
	return r
}

// ---- tests ----

func TestRunArchivesClipsInsideWindows(t *testing.T) {
	const day = "2026-08-10"
	cam := &mockCamera{clips: map[string][]model.ClipRecord{
		day: {
			clipAt(day, 9, 10, 0),  // inside morning window
			clipAt(day, 12, 0, 0),  // outside all windows
			clipAt(day, 18, 15, 0), // inside evening window
		},
	}}
	dest := newMockDestination()
	led := newMockLedger()
	storageDir := t.TempDir()

	r := NewRunner(cam, dest, led, nil, nil, Options{
		Windows:    testWindows(t),
		StorageDir: storageDir,
	})

	stats, err := r.Run(context.Background(), singleDay(t, day))
	require.NoError(t, err)

	require.Equal(t, int64(3), stats.Listed)
	require.Equal(t, int64(2), stats.Matched)
	require.Equal(t, int64(2), stats.Downloaded)
	require.Equal(t, int64(2), stats.Archived)
	require.Equal(t, int64(0), stats.Failed)

	// Both uploads landed under the date-partitioned key
	require.Contains(t, dest.objects, day+"/"+"2026-08-10 09-10-00_ch0.mp4")
	require.Contains(t, dest.objects, day+"/"+"2026-08-10 18-15-00_ch0.mp4")
	require.NotContains(t, dest.objects, day+"/"+"2026-08-10 12-00-00_ch0.mp4")

	// Local copies are gone after the verified upload
	entries, err := os.ReadDir(filepath.Join(storageDir, day))
	require.NoError(t, err)
	require.Empty(t, entries)

	// Ledger recorded the terminal status
	meta, err := led.Get("2026-08-10 09-10-00_ch0.mp4")
	require.NoError(t, err)
	require.Equal(t, model.StatusArchived, meta.Status)
}

func TestRunSkipsClipsAlreadyPresentLocally(t *testing.T) {
	const day = "2026-08-09"
	clip := clipAt(day, 9, 10, 0)
	cam := &mockCamera{clips: map[string][]model.ClipRecord{day: {clip}}}
	dest := newMockDestination()
	storageDir := t.TempDir()

	// Pre-existing local file is the idempotency marker
	localPath := clip.LocalPath(storageDir)
	require.NoError(t, os.MkdirAll(filepath.Dir(localPath), 0755))
	require.NoError(t, os.WriteFile(localPath, []byte("already here"), 0644))

	r := NewRunner(cam, dest, newMockLedger(), nil, nil, Options{
		Windows:    testWindows(t),
		StorageDir: storageDir,
	})

	stats, err := r.Run(context.Background(), singleDay(t, day))
	require.NoError(t, err)

	require.Equal(t, int64(1), stats.Skipped)
	require.Equal(t, int64(0), stats.Downloaded)
	require.Empty(t, cam.downloads, "no camera I/O for a skipped clip")
	require.Empty(t, dest.uploads, "no destination I/O for a skipped clip")

	// The local file is untouched
	data, err := os.ReadFile(localPath)
	require.NoError(t, err)
	require.Equal(t, "already here", string(data))
}

func TestRunSecondPassIsIdempotent(t *testing.T) {
	const day = "2026-08-08"
	cam := &mockCamera{clips: map[string][]model.ClipRecord{
		day: {clipAt(day, 9, 10, 0), clipAt(day, 18, 5, 0)},
	}}
	dest := newMockDestination()
	storageDir := t.TempDir()

	r := NewRunner(cam, dest, newMockLedger(), nil, nil, Options{
		Windows:    testWindows(t),
		StorageDir: storageDir,
	})

	_, err := r.Run(context.Background(), singleDay(t, day))
	require.NoError(t, err)
	require.Len(t, dest.uploads, 2)

	// Archived clips were deleted locally, so a second run re-downloads
	// nothing only if the local files still exist. Recreate them the way an
	// interrupted run would have left them.
	for _, clip := range cam.clips[day] {
		p := clip.LocalPath(storageDir)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
		require.NoError(t, os.WriteFile(p, []byte("local copy"), 0644))
	}
	cam.downloads = nil

	stats, err := r.Run(context.Background(), singleDay(t, day))
	require.NoError(t, err)
	require.Equal(t, int64(2), stats.Skipped)
	require.Empty(t, cam.downloads)
	require.Len(t, dest.uploads, 2, "no new uploads on the second pass")
}

func TestRunContainsPerClipFailures(t *testing.T) {
	const day = "2026-08-07"
	bad := clipAt(day, 9, 5, 0)
	good := clipAt(day, 9, 20, 0)
	cam := &mockCamera{
		clips:       map[string][]model.ClipRecord{day: {bad, good}},
		downloadErr: map[string]error{bad.RemoteID: errors.New("camera hiccup")},
	}
	dest := newMockDestination()
	led := newMockLedger()

	r := NewRunner(cam, dest, led, nil, nil, Options{
		Windows:    testWindows(t),
		StorageDir: t.TempDir(),
	})

	stats, err := r.Run(context.Background(), singleDay(t, day))
	require.NoError(t, err, "clip failures never fail the run")

	require.Equal(t, int64(1), stats.Failed)
	require.Equal(t, int64(1), stats.Archived)

	meta, err := led.Get(bad.LocalName())
	require.NoError(t, err)
	require.Equal(t, model.StatusError, meta.Status)
	require.Contains(t, meta.LastError, "camera hiccup")
}

func TestRunKeepsLocalFileWhenUploadUnverified(t *testing.T) {
	const day = "2026-08-06"
	clip := clipAt(day, 18, 10, 0)
	cam := &mockCamera{clips: map[string][]model.ClipRecord{day: {clip}}}
	dest := newMockDestination()
	dest.invisible = map[string]bool{clip.RemoteKey(): true}
	storageDir := t.TempDir()

	r := NewRunner(cam, dest, newMockLedger(), nil, nil, Options{
		Windows:    testWindows(t),
		StorageDir: storageDir,
	})

	stats, err := r.Run(context.Background(), singleDay(t, day))
	require.NoError(t, err)
	require.Equal(t, int64(1), stats.Failed)
	require.Equal(t, int64(0), stats.Archived)

	// The local copy survives an unverified upload for the next run to retry
	_, err = os.Stat(clip.LocalPath(storageDir))
	require.NoError(t, err)
}

func TestRunContinuesPastListingFailure(t *testing.T) {
	cam := &mockCamera{
		clips: map[string][]model.ClipRecord{
			"2026-08-02": {clipAt("2026-08-02", 9, 10, 0)},
		},
		listErr: map[string]error{"2026-08-01": errors.New("search failed")},
	}
	dest := newMockDestination()

	r := NewRunner(cam, dest, newMockLedger(), nil, nil, Options{
		Windows:    testWindows(t),
		StorageDir: t.TempDir(),
	})

	dates, err := schedule.ParseRange("2026-08-01", "2026-08-02", time.Now())
	require.NoError(t, err)

	stats, err := r.Run(context.Background(), dates)
	require.Error(t, err, "a failed day classifies the run as failed")
	require.Equal(t, int64(2), stats.DaysProcessed)
	require.Equal(t, int64(1), stats.ListFailures)
	require.Equal(t, int64(1), stats.Archived, "the healthy day still ran")
}

func TestRunDryRunTouchesNothing(t *testing.T) {
	const day = "2026-08-05"
	cam := &mockCamera{clips: map[string][]model.ClipRecord{
		day: {clipAt(day, 9, 10, 0)},
	}}
	dest := newMockDestination()

	r := NewRunner(cam, dest, newMockLedger(), nil, nil, Options{
		Windows:    testWindows(t),
		StorageDir: t.TempDir(),
		DryRun:     true,
	})

	stats, err := r.Run(context.Background(), singleDay(t, day))
	require.NoError(t, err)
	require.Equal(t, int64(1), stats.Matched)
	require.Empty(t, cam.downloads)
	require.Empty(t, dest.uploads)
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	cam := &mockCamera{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := NewRunner(cam, newMockDestination(), newMockLedger(), nil, nil, Options{
		Windows:    testWindows(t),
		StorageDir: t.TempDir(),
	})

	_, err := r.Run(ctx, singleDay(t, "2026-08-04"))
	require.ErrorIs(t, err, context.Canceled)
	require.Zero(t, cam.listCalls)
}

func TestRunNotifiesWhenClipsMatch(t *testing.T) {
	const day = "2026-08-03"
	cam := &mockCamera{clips: map[string][]model.ClipRecord{
		day: {clipAt(day, 9, 10, 0)},
	}}
	n := &recordingNotifier{}

	r := NewRunner(cam, newMockDestination(), newMockLedger(), n, nil, Options{
		Windows:    testWindows(t),
		StorageDir: t.TempDir(),
	})

	_, err := r.Run(context.Background(), singleDay(t, day))
	require.NoError(t, err)
	require.Len(t, n.messages, 1)
	require.Contains(t, n.messages[0], "1 clips from "+day)
}

func TestSkipPreservesEarlierLedgerEvidence(t *testing.T) {
	const day = "2026-08-01"
	clip := clipAt(day, 9, 10, 0)
	cam := &mockCamera{clips: map[string][]model.ClipRecord{day: {clip}}}
	led := newMockLedger()
	storageDir := t.TempDir()

	// A previous run downloaded the clip but crashed before the upload
	require.NoError(t, led.Put(clip.LocalName(), model.ClipMeta{Status: model.StatusDownloaded}))
	p := clip.LocalPath(storageDir)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
	require.NoError(t, os.WriteFile(p, []byte("stranded"), 0644))

	r := NewRunner(cam, newMockDestination(), led, nil, nil, Options{
		Windows:    testWindows(t),
		StorageDir: storageDir,
	})

	_, err := r.Run(context.Background(), singleDay(t, day))
	require.NoError(t, err)

	meta, err := led.Get(clip.LocalName())
	require.NoError(t, err)
	require.Equal(t, model.StatusDownloaded, meta.Status,
		"skip must not overwrite the evidence of an unconfirmed upload")
}
