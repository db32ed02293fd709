package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"
)

// Window is the recurring weekly period during which withdrawals are accepted.
// Hours are evaluated in Location; StartHour is inclusive, EndHour exclusive.
type Window struct {
	Days      [7]bool // indexed by time.Weekday
	StartHour int
	EndHour   int
	Location  *time.Location
}

// NewWindow builds a window from a day list ("1-5", "1,3,5"; 0 is Sunday),
// an hour range and an IANA zone name.
func NewWindow(days string, startHour, endHour int, tz string) (Window, error) {
	if startHour < 0 || endHour > 24 || startHour >= endHour {
		return Window{}, fmt.Errorf("invalid window hours %d-%d", startHour, endHour)
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return Window{}, fmt.Errorf("load timezone %q: %w", tz, err)
	}
	w := Window{StartHour: startHour, EndHour: endHour, Location: loc}
	for _, part := range strings.Split(days, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		lo, hi, isRange := strings.Cut(part, "-")
		from, err := parseWeekday(lo)
		if err != nil {
			return Window{}, err
		}
		to := from
		if isRange {
			if to, err = parseWeekday(hi); err != nil {
				return Window{}, err
			}
		}
		if to < from {
			return Window{}, fmt.Errorf("invalid day range %q", part)
		}
		for d := from; d <= to; d++ {
			w.Days[d] = true
		}
	}
	return w, nil
}

func parseWeekday(s string) (int, error) {
	d, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || d < 0 || d > 6 {
		return 0, fmt.Errorf("invalid weekday %q", s)
	}
	return d, nil
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	loc := w.Location
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	if !w.Days[local.Weekday()] {
		return false
	}
	h := local.Hour()
	return h >= w.StartHour && h < w.EndHour
}

func (w Window) String() string {
	var days []string
	for d, ok := range w.Days {
		if ok {
			days = append(days, time.Weekday(d).String()[:3])
		}
	}
	zone := "UTC"
	if w.Location != nil {
		zone = w.Location.String()
	}
	return fmt.Sprintf("%s %02d:00-%02d:00 %s", strings.Join(days, ","), w.StartHour, w.EndHour, zone)
}
