package index

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	keys    []string
	listErr error

	uploadedKey  string
	uploadedBody []byte
}

func (f *fakeSource) ListKeys(ctx context.Context) ([]string, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.keys, nil
}

func (f *fakeSource) Upload(ctx context.Context, key string, content io.Reader) error {
	data, err := io.ReadAll(content)
	if err != nil {
		return err
	}
	f.uploadedKey = key
	f.uploadedBody = data
	return nil
}

func TestRefreshWritesManifest(t *testing.T) {
	src := &fakeSource{keys: []string{
		"2026-08-09/2026-08-09 09-10-00_ch0.mp4",
		"2026-08-10/2026-08-10 18-05-00_ch0.mp4",
	}}

	err := NewManifestRefresher(src, nil).Refresh(context.Background())
	require.NoError(t, err)
	require.Equal(t, "index.json", src.uploadedKey)

	var m manifest
	require.NoError(t, json.Unmarshal(src.uploadedBody, &m))
	require.Equal(t, 2, m.Count)
	require.Equal(t, src.keys, m.Keys)
	require.NotEmpty(t, m.GeneratedAt)
}

func TestRefreshExcludesPreviousManifest(t *testing.T) {
	src := &fakeSource{keys: []string{
		"2026-08-10/2026-08-10 09-10-00_ch0.mp4",
		"index.json",
		"camera-1/index.json",
	}}

	err := NewManifestRefresher(src, nil).Refresh(context.Background())
	require.NoError(t, err)

	var m manifest
	require.NoError(t, json.Unmarshal(src.uploadedBody, &m))
	require.Equal(t, 1, m.Count)
	require.Equal(t, []string{"2026-08-10/2026-08-10 09-10-00_ch0.mp4"}, m.Keys)
}

func TestRefreshEmptyStore(t *testing.T) {
	src := &fakeSource{}

	err := NewManifestRefresher(src, nil).Refresh(context.Background())
	require.NoError(t, err)

	var m manifest
	require.NoError(t, json.Unmarshal(src.uploadedBody, &m))
	require.Equal(t, 0, m.Count)
}

func TestRefreshPropagatesListError(t *testing.T) {
	src := &fakeSource{listErr: errors.New("access denied")}

	err := NewManifestRefresher(src, nil).Refresh(context.Background())
	require.Error(t, err)
	require.Empty(t, src.uploadedKey, "nothing uploaded when the listing fails")
}

func TestNoOpRefresher(t *testing.T) {
	require.NoError(t, NewNoOpRefresher().Refresh(context.Background()))
}
