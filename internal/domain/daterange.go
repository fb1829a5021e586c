package domain

import (
	"fmt"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// DateRange is an inclusive range of calendar days in a fixed location.
type DateRange struct {
	Start    time.Time
	End      time.Time
	Location *time.Location
}

// ParseDateRange builds a range from either start/end dates or the combined
// "YYYY-MM-DD - YYYY-MM-DD" form. It returns nil when no filter was supplied.
func ParseDateRange(start, end, combined string, loc *time.Location) (*DateRange, error) {
	if loc == nil {
		loc = time.UTC
	}

	start = strings.TrimSpace(start)
	end = strings.TrimSpace(end)
	combined = strings.TrimSpace(combined)

	if combined != "" {
		if start != "" || end != "" {
			return nil, fmt.Errorf("%w: use either daterange or start_date/end_date", ErrInvalidDateRange)
		}
		parts := strings.SplitN(combined, " - ", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("%w: expected \"YYYY-MM-DD - YYYY-MM-DD\"", ErrInvalidDateRange)
		}
		start, end = strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
	}

	if start == "" && end == "" {
		return nil, nil
	}
	if start == "" || end == "" {
		return nil, fmt.Errorf("%w: both start and end dates are required", ErrInvalidDateRange)
	}

	from, err := time.ParseInLocation(dateLayout, start, loc)
	if err != nil {
		return nil, fmt.Errorf("%w: bad start date %q", ErrInvalidDateRange, start)
	}
	to, err := time.ParseInLocation(dateLayout, end, loc)
	if err != nil {
		return nil, fmt.Errorf("%w: bad end date %q", ErrInvalidDateRange, end)
	}
	if to.Before(from) {
		return nil, fmt.Errorf("%w: end date is before start date", ErrInvalidDateRange)
	}

	return &DateRange{Start: from, End: to, Location: loc}, nil
}

// Bounds returns the half-open instant interval [from, until) covered by the range.
func (r DateRange) Bounds() (from, until time.Time) {
	return r.Start, r.End.AddDate(0, 0, 1)
}

// Contains reports whether t falls on one of the range's days.
func (r DateRange) Contains(t time.Time) bool {
	from, until := r.Bounds()
	return !t.Before(from) && t.Before(until)
}

func (r DateRange) String() string {
	return r.Start.Format(dateLayout) + " - " + r.End.Format(dateLayout)
}
