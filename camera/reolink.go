package camera

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/baophamtd/reolink-automation/config"
	"github.com/baophamtd/reolink-automation/logger"
	"github.com/baophamtd/reolink-automation/model"
)

var _ CameraProvider = (*ReolinkCamera)(nil)

// httpDoer is the seam for testing the client without a camera.
type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ReolinkCamera talks to the Reolink CGI API (api.cgi). Commands are JSON
// arrays POSTed to the endpoint; downloads stream from a GET with the clip's
// on-camera filename as source.
type ReolinkCamera struct {
	cfg     *config.CameraConfig
	log     logger.Logger
	client  httpDoer
	limiter *rate.Limiter
	baseURL string

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

// NewReolinkCamera creates a camera client. Cameras commonly serve HTTPS with
// a self-signed certificate, so verification is disabled for the camera
// connection only.
func NewReolinkCamera(cfg *config.CameraConfig, log logger.Logger) (*ReolinkCamera, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid camera config: %w", err)
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}

	scheme := "http"
	if cfg.UseHTTPS {
		scheme = "https"
	}

	var limiter *rate.Limiter
	if cfg.MaxRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.MaxRPS), cfg.MaxRPS)
	}

	return &ReolinkCamera{
		cfg: cfg,
		log: log,
		client: &http.Client{
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
			},
		},
		limiter: limiter,
		baseURL: fmt.Sprintf("%s://%s/cgi-bin/api.cgi", scheme, cfg.Host),
	}, nil
}

// ---- wire types ----

type timeSpec struct {
	Year int `json:"year"`
	Mon  int `json:"mon"`
	Day  int `json:"day"`
	Hour int `json:"hour"`
	Min  int `json:"min"`
	Sec  int `json:"sec"`
}

func toTimeSpec(t time.Time) timeSpec {
	return timeSpec{
		Year: t.Year(), Mon: int(t.Month()), Day: t.Day(),
		Hour: t.Hour(), Min: t.Minute(), Sec: t.Second(),
	}
}

func (ts timeSpec) toTime(loc *time.Location) time.Time {
	return time.Date(ts.Year, time.Month(ts.Mon), ts.Day, ts.Hour, ts.Min, ts.Sec, 0, loc)
}

type apiCommand struct {
	Cmd    string      `json:"cmd"`
	Action int         `json:"action"`
	Param  interface{} `json:"param"`
}

type apiResponse struct {
	Cmd   string          `json:"cmd"`
	Code  int             `json:"code"`
	Value json.RawMessage `json:"value,omitempty"`
	Error *apiError       `json:"error,omitempty"`
}

type apiError struct {
	RspCode int    `json:"rspCode"`
	Detail  string `json:"detail"`
}

type loginValue struct {
	Token struct {
		Name      string `json:"name"`
		LeaseTime int    `json:"leaseTime"`
	} `json:"Token"`
}

type searchValue struct {
	SearchResult struct {
		Channel int          `json:"channel"`
		File    []searchFile `json:"File"`
	} `json:"SearchResult"`
}

type searchFile struct {
	Name      string   `json:"name"`
	Size      int64    `json:"size"`
	Type      string   `json:"type"`
	StartTime timeSpec `json:"StartTime"`
	EndTime   timeSpec `json:"EndTime"`
}

// ---- token handling ----

// ensureToken logs in if there is no token or the lease is about to expire.
func (c *ReolinkCamera) ensureToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Now().Before(c.tokenExpiry) {
		return c.token, nil
	}

	cmd := apiCommand{
		Cmd:    "Login",
		Action: 0,
		Param: map[string]interface{}{
			"User": map[string]string{
				"userName": c.cfg.Username,
				"password": c.cfg.Password,
			},
		},
	}

	var value loginValue
	if err := c.call(ctx, "Login", "", cmd, &value); err != nil {
		return "", fmt.Errorf("camera login failed: %w", err)
	}
	if value.Token.Name == "" {
		return "", fmt.Errorf("camera login returned empty token")
	}

	c.token = value.Token.Name
	// Renew a minute before the lease runs out.
	lease := time.Duration(value.Token.LeaseTime) * time.Second
	if lease <= time.Minute {
		lease = 2 * time.Minute
	}
	c.tokenExpiry = time.Now().Add(lease - time.Minute)
	c.log.Debug("camera login ok, token lease %s", lease)

	return c.token, nil
}

// dropToken forces a fresh login on the next call.
func (c *ReolinkCamera) dropToken() {
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
}

// call POSTs a single command and decodes its value into out.
func (c *ReolinkCamera) call(ctx context.Context, cmd, token string, body apiCommand, out interface{}) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter error: %w", err)
		}
	}

	payload, err := json.Marshal([]apiCommand{body})
	if err != nil {
		return fmt.Errorf("failed to marshal command: %w", err)
	}

	u := c.baseURL + "?cmd=" + cmd
	if token != "" {
		u += "&token=" + url.QueryEscape(token)
	}

	reqCtx, cancel := context.WithTimeout(ctx, time.Duration(c.cfg.TimeoutSeconds)*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, u, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("camera request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("camera returned HTTP %d", resp.StatusCode)
	}

	var responses []apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&responses); err != nil {
		return fmt.Errorf("failed to decode camera response: %w", err)
	}
	if len(responses) == 0 {
		return fmt.Errorf("empty camera response for %s", cmd)
	}
	r := responses[0]
	if r.Code != 0 {
		if r.Error != nil {
			return fmt.Errorf("camera %s failed: rspCode=%d detail=%s", cmd, r.Error.RspCode, r.Error.Detail)
		}
		return fmt.Errorf("camera %s failed with code %d", cmd, r.Code)
	}
	if out != nil && r.Value != nil {
		if err := json.Unmarshal(r.Value, out); err != nil {
			return fmt.Errorf("failed to decode %s value: %w", cmd, err)
		}
	}
	return nil
}

// callWithRetry wraps call with exponential backoff; an auth-looking failure
// drops the cached token so the next attempt logs in again.
func (c *ReolinkCamera) callWithRetry(ctx context.Context, cmd string, body apiCommand, out interface{}) error {
	var lastErr error
	retries := c.cfg.MaxRetries
	if retries <= 0 {
		retries = 1
	}
	for i := 0; i < retries; i++ {
		if i > 0 {
			backoff := time.Duration(math.Pow(2, float64(i))) * 200 * time.Millisecond
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		token, err := c.ensureToken(ctx)
		if err != nil {
			lastErr = err
			continue
		}

		if err := c.call(ctx, cmd, token, body, out); err != nil {
			lastErr = err
			c.dropToken()
			continue
		}
		return nil
	}
	return fmt.Errorf("all retries failed: %w", lastErr)
}

// ---- CameraProvider ----

// ListClips searches the configured channel for motion recordings covering
// the whole day (midnight to 23:59:59).
func (c *ReolinkCamera) ListClips(ctx context.Context, day time.Time) ([]model.ClipRecord, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	end := time.Date(day.Year(), day.Month(), day.Day(), 23, 59, 59, 0, day.Location())

	cmd := apiCommand{
		Cmd:    "Search",
		Action: 0,
		Param: map[string]interface{}{
			"Search": map[string]interface{}{
				"channel":    c.cfg.Channel,
				"onlyStatus": 0,
				"streamType": c.cfg.Stream,
				"StartTime":  toTimeSpec(start),
				"EndTime":    toTimeSpec(end),
			},
		},
	}

	var value searchValue
	if err := c.callWithRetry(ctx, "Search", cmd, &value); err != nil {
		return nil, fmt.Errorf("failed to list clips for %s: %w", day.Format("2006-01-02"), err)
	}

	clips := make([]model.ClipRecord, 0, len(value.SearchResult.File))
	for _, f := range value.SearchResult.File {
		if f.Name == "" {
			continue
		}
		clips = append(clips, model.ClipRecord{
			Channel:  c.cfg.Channel,
			Start:    f.StartTime.toTime(day.Location()),
			RemoteID: f.Name,
			Size:     f.Size,
		})
	}

	c.log.Debug("channel %d: %d clips listed for %s", c.cfg.Channel, len(clips), day.Format("2006-01-02"))
	return clips, nil
}

// Download streams a clip to localPath. The body is written to a ".part"
// temp file first and renamed on completion, so a partially transferred clip
// never satisfies the skip-if-exists check of a later run. Each retry starts
// from a fresh login.
func (c *ReolinkCamera) Download(ctx context.Context, clip model.ClipRecord, localPath string) error {
	if err := os.MkdirAll(filepath.Dir(localPath), 0755); err != nil {
		return fmt.Errorf("failed to create storage directory: %w", err)
	}

	var lastErr error
	retries := c.cfg.MaxRetries
	if retries <= 0 {
		retries = 1
	}
	for attempt := 0; attempt < retries; attempt++ {
		if attempt > 0 {
			c.log.Info("retrying download of %s (%d/%d) in %ds",
				clip.RemoteID, attempt+1, retries, c.cfg.RetryDelaySeconds)
			select {
			case <-time.After(time.Duration(c.cfg.RetryDelaySeconds) * time.Second):
			case <-ctx.Done():
				return ctx.Err()
			}
			c.dropToken()
		}

		if err := c.downloadOnce(ctx, clip, localPath); err != nil {
			lastErr = err
			c.log.Warn("download attempt %d/%d for %s failed: %v", attempt+1, retries, clip.RemoteID, err)
			continue
		}
		return nil
	}
	return fmt.Errorf("download of %s failed after %d attempts: %w", clip.RemoteID, retries, lastErr)
}

func (c *ReolinkCamera) downloadOnce(ctx context.Context, clip model.ClipRecord, localPath string) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter error: %w", err)
		}
	}

	token, err := c.ensureToken(ctx)
	if err != nil {
		return err
	}

	q := url.Values{}
	q.Set("cmd", "Download")
	q.Set("source", clip.RemoteID)
	q.Set("output", clip.LocalName())
	q.Set("token", token)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to create download request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("download request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("camera returned HTTP %d for download", resp.StatusCode)
	}

	tmpPath := localPath + ".part"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write clip body: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, localPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to finalize download: %w", err)
	}
	return nil
}

// Close logs out the current token, best effort.
func (c *ReolinkCamera) Close() error {
	c.mu.Lock()
	token := c.token
	c.token = ""
	c.mu.Unlock()

	if token == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cmd := apiCommand{Cmd: "Logout", Action: 0, Param: map[string]interface{}{}}
	if err := c.call(ctx, "Logout", token, cmd, nil); err != nil {
		c.log.Debug("camera logout failed: %v", err)
	}
	return nil
}
