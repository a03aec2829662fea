package domain

import (
	"encoding/json"
	"testing"
	"time"
)

func TestTotalHoursQuarterRounding(t *testing.T) {
	cases := []struct {
		name       string
		start, end TimeOfDay
		want       float64
	}{
		{"whole hours", Clock(8, 0), Clock(16, 0), 8},
		{"quarter", Clock(8, 0), Clock(8, 15), 0.25},
		{"partial quarter drops", Clock(8, 0), Clock(12, 44), 4.5},
		{"three quarters", Clock(7, 30), Clock(12, 15), 4.75},
		{"under a quarter", Clock(9, 0), Clock(9, 14), 0},
		{"same time", Clock(9, 0), Clock(9, 0), 0},
		{"end before start", Clock(10, 10), Clock(9, 0), -1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := TotalHours(tc.start, tc.end); got != tc.want {
				t.Fatalf("TotalHours(%s, %s) = %v, want %v", tc.start, tc.end, got, tc.want)
			}
		})
	}
}

func TestTimeAttendanceRecalculate(t *testing.T) {
	entry := NewTimeAttendance(time.Date(2024, 3, 5, 14, 30, 0, 0, time.UTC))
	if !entry.Date.Equal(time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected date truncated to midnight, got %v", entry.Date)
	}
	entry.StartTime = Clock(6, 0)
	entry.EndTime = Clock(14, 40)
	if !entry.Recalculate() {
		t.Fatalf("expected recalculation to change total")
	}
	if entry.TotalHours != 8.5 {
		t.Fatalf("expected 8.5 hours, got %v", entry.TotalHours)
	}
	if entry.Recalculate() {
		t.Fatalf("expected unchanged total on second recalculation")
	}
}

func TestParseTimeOfDay(t *testing.T) {
	got, err := ParseTimeOfDay("07:45")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got != Clock(7, 45) {
		t.Fatalf("expected 07:45, got %s", got)
	}
	withSeconds, err := ParseTimeOfDay("23:59:30")
	if err != nil {
		t.Fatalf("parse seconds: %v", err)
	}
	if withSeconds.Duration() != 23*time.Hour+59*time.Minute+30*time.Second {
		t.Fatalf("unexpected duration %v", withSeconds.Duration())
	}
	if short, err := ParseTimeOfDay(" 8:5 "); err != nil || short != Clock(8, 5) {
		t.Fatalf("expected single digit parts to parse, got %s %v", short, err)
	}
	for _, bad := range []string{"", "7", "24:00", "12:60", "a:b", "08:30junk", "8:30:15x", "08:30:", "+8:30", "8:-3", "008:30", "1:2:3:4"} {
		if _, err := ParseTimeOfDay(bad); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}

func TestTimeOfDayJSON(t *testing.T) {
	entry := TimeAttendance{StartTime: Clock(8, 5), EndTime: Clock(17, 0)}
	data, err := json.Marshal(entry)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal raw: %v", err)
	}
	if raw["start_time"] != "08:05:00" {
		t.Fatalf("expected clock string, got %v", raw["start_time"])
	}
	var decoded TimeAttendance
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.EndTime != Clock(17, 0) {
		t.Fatalf("expected 17:00 round trip, got %s", decoded.EndTime)
	}
}
