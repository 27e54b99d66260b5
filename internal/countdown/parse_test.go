package countdown

import (
	"errors"
	"testing"
	"time"
)

func TestParseClock(t *testing.T) {
	cases := []struct {
		in   string
		want time.Duration
	}{
		{"05:00", 300 * time.Second},
		{"01:30:00", 5400 * time.Second},
		{"135:00", 8100 * time.Second},
		{"00:30", 30 * time.Second},
		{"0:05", 5 * time.Second},
		{"1:00:00", time.Hour},
		{" 10:00 ", 600 * time.Second},
	}
	for _, tc := range cases {
		got, err := ParseClock(tc.in)
		if err != nil {
			t.Errorf("ParseClock(%q) failed: %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseClock(%q) = %s, want %s", tc.in, got, tc.want)
		}
	}
}

func TestParseClockRejections(t *testing.T) {
	for _, in := range []string{
		"00:00",
		"-1:00",
		"00:00:00",
		"05:61",
		"01:75:00",
		"five minutes",
		"",
		"5",
		"1:2:3:4",
	} {
		if _, err := ParseClock(in); !errors.Is(err, ErrInvalidDuration) {
			t.Errorf("ParseClock(%q): expected ErrInvalidDuration, got %v", in, err)
		}
	}
}

func TestExtractFromText(t *testing.T) {
	cases := []struct {
		in   string
		want time.Duration
	}{
		{"set a timer for 5 minutes", 5 * time.Minute},
		{"timer 30 seconds please", 30 * time.Second},
		{"1 hour timer", time.Hour},
		{"i want a timer of 3 min", 3 * time.Minute},
		{"study for 2 hours and 15 minutes", 2*time.Hour + 15*time.Minute},
		{"2 minutes and 30 seconds", 2*time.Minute + 30*time.Second},
		{"set timer 01:30:00", 5400 * time.Second},
		{"a 25:00 pomodoro", 25 * time.Minute},
	}
	for _, tc := range cases {
		got, ok := ExtractFromText(tc.in)
		if !ok {
			t.Errorf("ExtractFromText(%q): no duration found", tc.in)
			continue
		}
		if got != tc.want {
			t.Errorf("ExtractFromText(%q) = %s, want %s", tc.in, got, tc.want)
		}
	}
}

func TestExtractFromTextMixedUnitsIgnoresTrailingSeconds(t *testing.T) {
	// An hours+minutes pair wins even when a seconds term is also present;
	// preserved from the service's own request parsing.
	got, ok := ExtractFromText("2 hours and 15 minutes and 30 seconds")
	if !ok {
		t.Fatal("expected a duration")
	}
	if want := 2*time.Hour + 15*time.Minute; got != want {
		t.Fatalf("got %s, want %s", got, want)
	}
}

func TestExtractFromTextNoDuration(t *testing.T) {
	for _, in := range []string{
		"hello there",
		"remind me later",
		"",
		"-1:00",
		"1:2:3:4",
	} {
		if d, ok := ExtractFromText(in); ok {
			t.Errorf("ExtractFromText(%q): unexpected duration %s", in, d)
		}
	}
}

func TestFormatClock(t *testing.T) {
	cases := []struct {
		in   time.Duration
		want string
	}{
		{300 * time.Second, "05:00"},
		{8100 * time.Second, "02:15:00"},
		{5400 * time.Second, "01:30:00"},
		{0, "00:00"},
		{-5 * time.Second, "00:00"},
	}
	for _, tc := range cases {
		if got := FormatClock(tc.in); got != tc.want {
			t.Errorf("FormatClock(%s) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
