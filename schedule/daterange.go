package schedule

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidArguments means the start/end date arguments cannot form a run
// range. It is raised before any camera or storage I/O and maps to exit
// code 1.
var ErrInvalidArguments = errors.New("invalid date arguments")

// DateRange is an inclusive range of calendar days, both bounds normalized to
// midnight in the local timezone.
type DateRange struct {
	Start time.Time
	End   time.Time
}

const dateLayout = "2006-01-02"

// ParseRange validates the date arguments and builds the range to process.
// Exactly zero or exactly two of {start, end} must be supplied: zero means the
// single current date, one is an error, two require start <= end.
func ParseRange(start, end string, now time.Time) (DateRange, error) {
	switch {
	case start == "" && end == "":
		day := midnight(now)
		return DateRange{Start: day, End: day}, nil
	case start == "" || end == "":
		return DateRange{}, fmt.Errorf("%w: both --start and --end must be provided for range mode", ErrInvalidArguments)
	}

	s, err := time.ParseInLocation(dateLayout, start, now.Location())
	if err != nil {
		return DateRange{}, fmt.Errorf("%w: bad start date %q (want YYYY-MM-DD)", ErrInvalidArguments, start)
	}
	e, err := time.ParseInLocation(dateLayout, end, now.Location())
	if err != nil {
		return DateRange{}, fmt.Errorf("%w: bad end date %q (want YYYY-MM-DD)", ErrInvalidArguments, end)
	}
	if s.After(e) {
		return DateRange{}, fmt.Errorf("%w: start %s is after end %s", ErrInvalidArguments, start, end)
	}
	return DateRange{Start: s, End: e}, nil
}

// Days expands the range into the ascending inclusive sequence of days.
// Equal bounds yield exactly one day.
func (r DateRange) Days() []time.Time {
	var days []time.Time
	for d := r.Start; !d.After(r.End); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

func (r DateRange) String() string {
	if r.Start.Equal(r.End) {
		return r.Start.Format(dateLayout)
	}
	return r.Start.Format(dateLayout) + ".." + r.End.Format(dateLayout)
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
