// Package schedule holds the run's time dimension: the configured download
// time windows and the date range a run iterates over.
package schedule

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// TimeWindow is a half-open time-of-day interval [Start, End) within a single
// day. Start and End are seconds since midnight.
type TimeWindow struct {
	Start int
	End   int
}

// ParseWindow builds a TimeWindow from "HH:MM" strings. A window whose end is
// not after its start is valid but matches nothing.
func ParseWindow(start, end string) (TimeWindow, error) {
	s, err := parseTimeOfDay(start)
	if err != nil {
		return TimeWindow{}, fmt.Errorf("invalid window start %q: %w", start, err)
	}
	e, err := parseTimeOfDay(end)
	if err != nil {
		return TimeWindow{}, fmt.Errorf("invalid window end %q: %w", end, err)
	}
	return TimeWindow{Start: s, End: e}, nil
}

func parseTimeOfDay(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, err
	}
	return t.Hour()*3600 + t.Minute()*60, nil
}

// Contains reports whether the time-of-day of t falls within [Start, End).
// The date component of t is ignored.
func (w TimeWindow) Contains(t time.Time) bool {
	sec := t.Hour()*3600 + t.Minute()*60 + t.Second()
	return sec >= w.Start && sec < w.End
}

func (w TimeWindow) String() string {
	return fmt.Sprintf("[%02d:%02d,%02d:%02d)",
		w.Start/3600, w.Start%3600/60, w.End/3600, w.End%3600/60)
}

// Windows is the configured ordered sequence of download windows. Overlapping
// windows are permitted and simply both match.
type Windows []TimeWindow

// Match reports whether any window contains t. An empty configuration matches
// nothing: only explicitly configured windows are ever processed.
func (ws Windows) Match(t time.Time) bool {
	for _, w := range ws {
		if w.Contains(t) {
			return true
		}
	}
	return false
}

type windowSpec struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// LoadWindows reads the window configuration file, a JSON array of
// {"start":"HH:MM","end":"HH:MM"} objects, preserving order.
func LoadWindows(path string) (Windows, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read windows file: %w", err)
	}
	var specs []windowSpec
	if err := json.Unmarshal(data, &specs); err != nil {
		return nil, fmt.Errorf("failed to parse windows file %s: %w", path, err)
	}

	windows := make(Windows, 0, len(specs))
	for i, spec := range specs {
		w, err := ParseWindow(spec.Start, spec.End)
		if err != nil {
			return nil, fmt.Errorf("window %d in %s: %w", i, path, err)
		}
		windows = append(windows, w)
	}
	return windows, nil
}
