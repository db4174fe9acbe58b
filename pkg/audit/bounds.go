package audit

import (
	"errors"
	"strings"
	"time"
)

var ErrBadDate = errors.New("invalid date, use YYYY-MM-DD or YYYY-MM-DDTHH:MM:SS")

var dateTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
}

// ParseBound parses a query date bound. Values without a zone are UTC. A
// date-only end bound (endOfDay) covers the whole day.
func ParseBound(raw string, endOfDay bool) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range dateTimeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t, nil
		}
	}
	d, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return nil, ErrBadDate
	}
	if endOfDay {
		d = d.Add(24*time.Hour - time.Nanosecond)
	}
	return &d, nil
}
