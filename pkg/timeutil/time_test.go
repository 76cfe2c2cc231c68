package timeutil

import (
	"testing"
	"time"
)

func TestNow_AlwaysUTC(t *testing.T) {
	now := Now()

	if now.Location() != time.UTC {
		t.Errorf("Now() returned non-UTC timezone: %v", now.Location())
	}
}

func TestSystemClock_Location(t *testing.T) {
	loc := time.FixedZone("EAT", 3*60*60)
	clock := NewSystemClock(loc)

	if got := clock.Now().Location(); got != loc {
		t.Errorf("SystemClock.Now() location = %v, want %v", got, loc)
	}

	if got := NewSystemClock(nil).Now().Location(); got != time.UTC {
		t.Errorf("nil location should default to UTC, got %v", got)
	}
}

func TestFixedClock(t *testing.T) {
	start := time.Date(2024, 5, 21, 9, 0, 0, 0, time.UTC)
	clock := NewFixedClock(start)

	if !clock.Now().Equal(start) {
		t.Errorf("FixedClock.Now() = %v, want %v", clock.Now(), start)
	}

	next := start.Add(24 * time.Hour)
	clock.Set(next)
	if !clock.Now().Equal(next) {
		t.Errorf("FixedClock.Now() after Set = %v, want %v", clock.Now(), next)
	}
}

func TestStartOfDay(t *testing.T) {
	eat := time.FixedZone("EAT", 3*60*60)

	tests := []struct {
		name     string
		input    time.Time
		expected time.Time
	}{
		{
			name:     "noon UTC",
			input:    time.Date(2025, 11, 20, 12, 30, 45, 0, time.UTC),
			expected: time.Date(2025, 11, 20, 0, 0, 0, 0, time.UTC),
		},
		{
			name:     "keeps local calendar day",
			input:    time.Date(2025, 11, 20, 1, 15, 0, 0, eat), // still 19th in UTC
			expected: time.Date(2025, 11, 20, 0, 0, 0, 0, eat),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := StartOfDay(tt.input)
			if !result.Equal(tt.expected) {
				t.Errorf("StartOfDay() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestParseDate(t *testing.T) {
	eat := time.FixedZone("EAT", 3*60*60)

	got, err := ParseDate("2006-01-02", "2024-06-20", eat)
	if err != nil {
		t.Fatalf("ParseDate() error = %v", err)
	}
	if got.Location() != eat || got.Day() != 20 {
		t.Errorf("ParseDate() = %v", got)
	}

	if _, err := ParseDate("2006-01-02", "20/06/2024", nil); err == nil {
		t.Error("ParseDate() should reject a malformed date")
	}
}

func TestLoadLocation(t *testing.T) {
	loc, err := LoadLocation("")
	if err != nil || loc != time.UTC {
		t.Errorf("LoadLocation(\"\") = %v, %v", loc, err)
	}

	if _, err := LoadLocation("Not/AZone"); err == nil {
		t.Error("LoadLocation should reject an unknown zone")
	}
}
