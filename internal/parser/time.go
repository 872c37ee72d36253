package parser

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// parseISOTimestamp parses the ISO 8601 timestamps found in FDSN responses.
// Fractional seconds of any precision are normalized to microseconds, a
// trailing Z is treated as +00:00, and a timestamp with no zone is assumed
// UTC. The result is always in UTC.
func parseISOTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.New("empty timestamp")
	}
	if strings.HasSuffix(s, "Z") {
		s = strings.TrimSuffix(s, "Z") + "+00:00"
	}

	// Split off a +hh:mm / -hh:mm zone suffix. Offsets can only start after
	// the time part, so date separators at positions 4 and 7 never match.
	base, zone := s, ""
	if i := strings.LastIndexAny(s, "+-"); i > 10 {
		base, zone = s[:i], s[i:]
	}

	// Right-pad or truncate the fractional part to exactly 6 digits.
	if j := strings.IndexByte(base, '.'); j >= 0 {
		frac := base[j+1:]
		if len(frac) > 6 {
			frac = frac[:6]
		}
		base = base[:j+1] + frac + strings.Repeat("0", 6-len(frac))
	} else {
		base += ".000000"
	}

	const layout = "2006-01-02T15:04:05.000000"
	if zone != "" {
		t, err := time.Parse(layout+"-07:00", base+zone)
		if err != nil {
			return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
		}
		return t.UTC(), nil
	}
	t, err := time.ParseInLocation(layout, base, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}
