package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// QuarterHour is the billing granularity used for attendance totals.
const QuarterHour = 15 * time.Minute

// TotalHours returns the whole hours between start and end plus 0.25 for each
// complete quarter hour in the remaining minutes. Both components truncate
// toward zero, so an end before start yields a negative total.
func TotalHours(start, end TimeOfDay) float64 {
	span := time.Duration(end - start)
	hours := int64(span / time.Hour)
	minutes := int64((span % time.Hour) / time.Minute)
	quarters := minutes / int64(QuarterHour/time.Minute)
	return float64(hours) + float64(quarters)*0.25
}

// TimeOfDay is an offset from midnight.
type TimeOfDay time.Duration

// Clock builds a TimeOfDay from hour and minute components.
func Clock(hour, minute int) TimeOfDay {
	return TimeOfDay(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

// ParseTimeOfDay accepts HH:MM or HH:MM:SS with one or two digits per part.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, fmt.Errorf("invalid time of day %q", s)
	}
	var fields [3]int
	for i, part := range parts {
		n, ok := clockField(part)
		if !ok {
			return 0, fmt.Errorf("invalid time of day %q", s)
		}
		fields[i] = n
	}
	h, m, sec := fields[0], fields[1], fields[2]
	if h > 23 || m > 59 || sec > 59 {
		return 0, fmt.Errorf("time of day %q out of range", s)
	}
	return TimeOfDay(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(sec)*time.Second), nil
}

func clockField(part string) (int, bool) {
	if len(part) == 0 || len(part) > 2 {
		return 0, false
	}
	n := 0
	for _, r := range part {
		if r < '0' || r > '9' {
			return 0, false
		}
		n = n*10 + int(r-'0')
	}
	return n, true
}

// Duration returns the offset as a time.Duration.
func (t TimeOfDay) Duration() time.Duration { return time.Duration(t) }

func (t TimeOfDay) String() string {
	d := time.Duration(t)
	h := int(d / time.Hour)
	m := int((d % time.Hour) / time.Minute)
	s := int((d % time.Minute) / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// MarshalJSON encodes the value as "HH:MM:SS".
func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON accepts "HH:MM[:SS]".
func (t *TimeOfDay) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseTimeOfDay(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
