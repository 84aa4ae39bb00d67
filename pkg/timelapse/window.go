package timelapse

import (
	"fmt"
	"strings"
	"time"

	"github.com/transitkit/shapedist/pkg/util"
)

// Window is a time window to solve across: a start and end day + time of day,
// stepped by Increment. Days are either generic weekday names or specific
// YYYYMMDD dates; generic runs must start and end on the same weekday while
// dated runs may span several days. The end time is inclusive.
type Window struct {
	StartDay  string
	StartTime string
	EndDay    string
	EndTime   string
	Increment time.Duration
}

// Generic weekdays map to the first week of January 1900, the convention
// transit network datasets use for "any Monday"
var genericWeekdays = map[string]time.Time{
	"monday":    time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC),
	"tuesday":   time.Date(1900, 1, 2, 0, 0, 0, 0, time.UTC),
	"wednesday": time.Date(1900, 1, 3, 0, 0, 0, 0, time.UTC),
	"thursday":  time.Date(1900, 1, 4, 0, 0, 0, 0, time.UTC),
	"friday":    time.Date(1900, 1, 5, 0, 0, 0, 0, time.UTC),
	"saturday":  time.Date(1900, 1, 6, 0, 0, 0, 0, time.UTC),
	"sunday":    time.Date(1900, 1, 7, 0, 0, 0, 0, time.UTC),
}

// Times expands the window into the list of times of day to solve at
func (w Window) Times() ([]time.Time, error) {
	if w.Increment <= 0 {
		return nil, fmt.Errorf("time increment must be positive")
	}

	startDay, startGeneric, err := parseDay(w.StartDay)
	if err != nil {
		return nil, err
	}
	endDay, endGeneric, err := parseDay(w.EndDay)
	if err != nil {
		return nil, err
	}

	if startGeneric != endGeneric {
		return nil, fmt.Errorf("start and end days must either both be weekdays or both be dates")
	}
	if startGeneric && !startDay.Equal(endDay) {
		return nil, fmt.Errorf("weekday windows must start and end on the same day - use YYYYMMDD dates to span days")
	}

	start, err := atTimeOfDay(startDay, w.StartTime)
	if err != nil {
		return nil, err
	}
	end, err := atTimeOfDay(endDay, w.EndTime)
	if err != nil {
		return nil, err
	}

	if end.Before(start) {
		return nil, fmt.Errorf("the time window ends before it starts")
	}

	var times []time.Time
	for t := start; !t.After(end); t = t.Add(w.Increment) {
		times = append(times, t)
	}

	return times, nil
}

func parseDay(value string) (time.Time, bool, error) {
	if day, exists := genericWeekdays[strings.ToLower(value)]; exists {
		return day, true, nil
	}

	day, err := time.Parse("20060102", value)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("day must be a weekday name or a YYYYMMDD date, got %q", value)
	}

	return day, false, nil
}

func atTimeOfDay(day time.Time, value string) (time.Time, error) {
	clock, err := time.Parse("15:04", value)
	if err != nil {
		return time.Time{}, fmt.Errorf("time of day must be in HH:MM format, got %q", value)
	}

	return util.AddTimeToDate(day, clock), nil
}
