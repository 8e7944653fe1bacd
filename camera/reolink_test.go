package camera

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/baophamtd/reolink-automation/config"
	"github.com/baophamtd/reolink-automation/model"
)

type fakeDoer struct {
	handler func(req *http.Request) (*http.Response, error)
	calls   []string // cmd of each request, in order
}

func (f *fakeDoer) Do(req *http.Request) (*http.Response, error) {
	f.calls = append(f.calls, req.URL.Query().Get("cmd"))
	return f.handler(req)
}

func jsonResponse(body string) *http.Response {
	return &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

const loginOK = `[{"cmd":"Login","code":0,"value":{"Token":{"name":"tok123","leaseTime":3600}}}]`

func searchOK(files string) string {
	return fmt.Sprintf(`[{"cmd":"Search","code":0,"value":{"SearchResult":{"channel":0,"File":[%s]}}}]`, files)
}

func newTestCamera(t *testing.T, doer *fakeDoer) *ReolinkCamera {
	t.Helper()
	cam, err := NewReolinkCamera(&config.CameraConfig{
		Host:              "cam.local",
		Username:          "admin",
		Password:          "secret",
		Stream:            "main",
		TimeoutSeconds:    5,
		MaxRetries:        2,
		RetryDelaySeconds: 1,
	}, nil)
	require.NoError(t, err)
	cam.client = doer
	return cam
}

func TestListClips(t *testing.T) {
	doer := &fakeDoer{}
	doer.handler = func(req *http.Request) (*http.Response, error) {
		switch req.URL.Query().Get("cmd") {
		case "Login":
			return jsonResponse(loginOK), nil
		case "Search":
			require.Equal(t, "tok123", req.URL.Query().Get("token"))
			return jsonResponse(searchOK(`
				{"name":"Rec_001.mp4","size":1048576,"type":"main",
				 "StartTime":{"year":2026,"mon":8,"day":10,"hour":9,"min":10,"sec":42},
				 "EndTime":{"year":2026,"mon":8,"day":10,"hour":9,"min":11,"sec":12}},
				{"name":"Rec_002.mp4","size":2097152,"type":"main",
				 "StartTime":{"year":2026,"mon":8,"day":10,"hour":18,"min":5,"sec":0},
				 "EndTime":{"year":2026,"mon":8,"day":10,"hour":18,"min":5,"sec":30}}`)), nil
		default:
			t.Fatalf("unexpected cmd %s", req.URL.Query().Get("cmd"))
			return nil, nil
		}
	}
	cam := newTestCamera(t, doer)

	day := time.Date(2026, 8, 10, 0, 0, 0, 0, time.Local)
	clips, err := cam.ListClips(context.Background(), day)
	require.NoError(t, err)
	require.Len(t, clips, 2)

	require.Equal(t, "Rec_001.mp4", clips[0].RemoteID)
	require.Equal(t, int64(1048576), clips[0].Size)
	require.Equal(t, time.Date(2026, 8, 10, 9, 10, 42, 0, time.Local), clips[0].Start)
	require.Equal(t, "2026-08-10 09-10-42_ch0.mp4", clips[0].LocalName())

	require.Equal(t, []string{"Login", "Search"}, doer.calls)
}

func TestListClipsReusesToken(t *testing.T) {
	doer := &fakeDoer{}
	doer.handler = func(req *http.Request) (*http.Response, error) {
		switch req.URL.Query().Get("cmd") {
		case "Login":
			return jsonResponse(loginOK), nil
		default:
			return jsonResponse(searchOK("")), nil
		}
	}
	cam := newTestCamera(t, doer)

	day := time.Date(2026, 8, 10, 0, 0, 0, 0, time.Local)
	_, err := cam.ListClips(context.Background(), day)
	require.NoError(t, err)
	_, err = cam.ListClips(context.Background(), day)
	require.NoError(t, err)

	// One login serves both searches while the lease is valid
	require.Equal(t, []string{"Login", "Search", "Search"}, doer.calls)
}

func TestListClipsRetriesAfterApiError(t *testing.T) {
	searchAttempts := 0
	doer := &fakeDoer{}
	doer.handler = func(req *http.Request) (*http.Response, error) {
		switch req.URL.Query().Get("cmd") {
		case "Login":
			return jsonResponse(loginOK), nil
		case "Search":
			searchAttempts++
			if searchAttempts == 1 {
				return jsonResponse(`[{"cmd":"Search","code":1,"error":{"rspCode":-6,"detail":"login required"}}]`), nil
			}
			return jsonResponse(searchOK("")), nil
		default:
			return nil, fmt.Errorf("unexpected cmd")
		}
	}
	cam := newTestCamera(t, doer)

	clips, err := cam.ListClips(context.Background(), time.Date(2026, 8, 10, 0, 0, 0, 0, time.Local))
	require.NoError(t, err)
	require.Empty(t, clips)
	// The failed attempt dropped the token, so the retry logged in again
	require.Equal(t, []string{"Login", "Search", "Login", "Search"}, doer.calls)
}

func TestListClipsFailsAfterRetriesExhausted(t *testing.T) {
	doer := &fakeDoer{}
	doer.handler = func(req *http.Request) (*http.Response, error) {
		if req.URL.Query().Get("cmd") == "Login" {
			return jsonResponse(loginOK), nil
		}
		return &http.Response{StatusCode: http.StatusBadGateway, Body: io.NopCloser(strings.NewReader(""))}, nil
	}
	cam := newTestCamera(t, doer)

	_, err := cam.ListClips(context.Background(), time.Date(2026, 8, 10, 0, 0, 0, 0, time.Local))
	require.Error(t, err)
	require.Contains(t, err.Error(), "all retries failed")
}

func TestDownloadWritesFileAtomically(t *testing.T) {
	doer := &fakeDoer{}
	doer.handler = func(req *http.Request) (*http.Response, error) {
		switch req.URL.Query().Get("cmd") {
		case "Login":
			return jsonResponse(loginOK), nil
		case "Download":
			require.Equal(t, "Rec_001.mp4", req.URL.Query().Get("source"))
			return jsonResponse("fake clip bytes"), nil
		default:
			return nil, fmt.Errorf("unexpected cmd")
		}
	}
	cam := newTestCamera(t, doer)

	clip := model.ClipRecord{
		Channel:  0,
		Start:    time.Date(2026, 8, 10, 9, 10, 42, 0, time.Local),
		RemoteID: "Rec_001.mp4",
	}
	dir := t.TempDir()
	localPath := clip.LocalPath(dir)

	require.NoError(t, cam.Download(context.Background(), clip, localPath))

	data, err := os.ReadFile(localPath)
	require.NoError(t, err)
	require.Equal(t, "fake clip bytes", string(data))

	// No temp file left behind
	_, err = os.Stat(localPath + ".part")
	require.True(t, os.IsNotExist(err))
}

func TestDownloadLeavesNoFileOnHTTPError(t *testing.T) {
	doer := &fakeDoer{}
	doer.handler = func(req *http.Request) (*http.Response, error) {
		if req.URL.Query().Get("cmd") == "Login" {
			return jsonResponse(loginOK), nil
		}
		return &http.Response{StatusCode: http.StatusNotFound, Body: io.NopCloser(strings.NewReader(""))}, nil
	}
	cam := newTestCamera(t, doer)

	clip := model.ClipRecord{
		Start:    time.Date(2026, 8, 10, 9, 10, 42, 0, time.Local),
		RemoteID: "Rec_gone.mp4",
	}
	localPath := clip.LocalPath(t.TempDir())

	err := cam.Download(context.Background(), clip, localPath)
	require.Error(t, err)

	// A failed download must not satisfy a later run's skip check
	_, statErr := os.Stat(localPath)
	require.True(t, os.IsNotExist(statErr))
	_, statErr = os.Stat(localPath + ".part")
	require.True(t, os.IsNotExist(statErr))
}

func TestCloseLogsOut(t *testing.T) {
	doer := &fakeDoer{}
	doer.handler = func(req *http.Request) (*http.Response, error) {
		switch req.URL.Query().Get("cmd") {
		case "Login":
			return jsonResponse(loginOK), nil
		case "Search":
			return jsonResponse(searchOK("")), nil
		case "Logout":
			return jsonResponse(`[{"cmd":"Logout","code":0}]`), nil
		default:
			return nil, fmt.Errorf("unexpected cmd")
		}
	}
	cam := newTestCamera(t, doer)

	_, err := cam.ListClips(context.Background(), time.Date(2026, 8, 10, 0, 0, 0, 0, time.Local))
	require.NoError(t, err)
	require.NoError(t, cam.Close())
	require.Equal(t, "Logout", doer.calls[len(doer.calls)-1])

	// Close without a session is a no-op
	require.NoError(t, cam.Close())
	require.Equal(t, 3, len(doer.calls))
}
