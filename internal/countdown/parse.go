package countdown

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var ErrInvalidDuration = errors.New("invalid timer duration")

var (
	clockHMS = regexp.MustCompile(`^(\d{1,2}):(\d{1,2}):(\d{1,2})$`)
	clockMS  = regexp.MustCompile(`^(\d{1,3}):(\d{1,2})$`)

	// Free-text patterns, most specific first. A seconds term mentioned
	// alongside an hours+minutes pair is ignored, matching the service's
	// own request parsing.
	textHM = regexp.MustCompile(`(\d+)\s*(?:hours?|hrs?|h)\s+(?:and\s+)?(\d+)\s*(?:minutes?|mins?|m)\b`)
	textMS = regexp.MustCompile(`(\d+)\s*(?:minutes?|mins?|m)\s+(?:and\s+)?(\d+)\s*(?:seconds?|secs?|s)\b`)
	textM  = regexp.MustCompile(`(\d+)\s*(?:minutes?|mins?|m)\b`)
	textH  = regexp.MustCompile(`(\d+)\s*(?:hours?|hrs?|h)\b`)
	textS  = regexp.MustCompile(`(\d+)\s*(?:seconds?|secs?|s)\b`)

	// The clock must stand alone: no sign, digit, or colon on either side,
	// so "-1:00" and any slice of a longer field run never match.
	clockInText = regexp.MustCompile(`(?:^|[^\d:-])(\d{1,3}):(\d{1,2})(?::(\d{1,2}))?(?:[^\d:]|$)`)
)

// ParseClock parses "MM:SS" or "HH:MM:SS". Minutes in the two-part form are
// unbounded ("135:00" is 8100 seconds); the trailing fields must stay below
// 60. Zero and malformed values are rejected.
func ParseClock(raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)

	if m := clockHMS.FindStringSubmatch(s); m != nil {
		hours := mustInt(m[1])
		minutes := mustInt(m[2])
		seconds := mustInt(m[3])
		if minutes >= 60 || seconds >= 60 {
			return 0, fmt.Errorf("%w: %q", ErrInvalidDuration, raw)
		}
		return positive(raw, time.Duration(hours*3600+minutes*60+seconds)*time.Second)
	}

	if m := clockMS.FindStringSubmatch(s); m != nil {
		minutes := mustInt(m[1])
		seconds := mustInt(m[2])
		if seconds >= 60 {
			return 0, fmt.Errorf("%w: %q", ErrInvalidDuration, raw)
		}
		return positive(raw, time.Duration(minutes*60+seconds)*time.Second)
	}

	return 0, fmt.Errorf("%w: %q", ErrInvalidDuration, raw)
}

// ExtractFromText pulls a duration out of free text, as spoken durations
// arrive ("set a timer for 2 hours and 15 minutes"). Clock forms win first,
// then unit pairs, then single units in minute, hour, second precedence.
func ExtractFromText(text string) (time.Duration, bool) {
	lower := strings.ToLower(text)

	if m := clockInText.FindStringSubmatch(lower); m != nil {
		var raw string
		if m[3] != "" {
			raw = fmt.Sprintf("%s:%s:%s", m[1], m[2], m[3])
		} else {
			raw = fmt.Sprintf("%s:%s", m[1], m[2])
		}
		if d, err := ParseClock(raw); err == nil {
			return d, true
		}
	}

	if m := textHM.FindStringSubmatch(lower); m != nil {
		d := time.Duration(mustInt(m[1]))*time.Hour + time.Duration(mustInt(m[2]))*time.Minute
		return d, d > 0
	}
	if m := textMS.FindStringSubmatch(lower); m != nil {
		d := time.Duration(mustInt(m[1]))*time.Minute + time.Duration(mustInt(m[2]))*time.Second
		return d, d > 0
	}
	if m := textM.FindStringSubmatch(lower); m != nil {
		d := time.Duration(mustInt(m[1])) * time.Minute
		return d, d > 0
	}
	if m := textH.FindStringSubmatch(lower); m != nil {
		d := time.Duration(mustInt(m[1])) * time.Hour
		return d, d > 0
	}
	if m := textS.FindStringSubmatch(lower); m != nil {
		d := time.Duration(mustInt(m[1])) * time.Second
		return d, d > 0
	}

	return 0, false
}

// FormatClock renders a duration as MM:SS, or HH:MM:SS once it reaches an
// hour, mirroring the display format the coach service emits.
func FormatClock(d time.Duration) string {
	total := int(d / time.Second)
	if total < 0 {
		total = 0
	}
	hours := total / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60
	if hours > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%02d:%02d", minutes, seconds)
}

func positive(raw string, d time.Duration) (time.Duration, error) {
	if d <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDuration, raw)
	}
	return d, nil
}

func mustInt(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
