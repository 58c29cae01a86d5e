package tools

import (
	"strconv"
	"strings"
	"time"
)

// time layouts accepted for absolute inputs, tried in order.
var absoluteLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseTimeInput turns a human time phrase into a UTC timestamp.
// Accepted forms: "now", "today", "yesterday", "N minutes|hours|days|weeks ago"
// and the absolute layouts above. Anything unparseable falls back to 24 hours
// before now, which keeps a sloppy chat request from turning into an
// unbounded trail query.
func ParseTimeInput(input string, now time.Time) time.Time {
	s := strings.ToLower(strings.TrimSpace(input))
	now = now.UTC()

	switch s {
	case "now", "":
		return now
	case "today":
		return now.Truncate(24 * time.Hour)
	case "yesterday":
		return now.Add(-24 * time.Hour).Truncate(24 * time.Hour)
	}

	if strings.Contains(s, "ago") {
		if t, ok := parseRelative(s, now); ok {
			return t
		}
	}

	for _, layout := range absoluteLayouts {
		if t, err := time.Parse(layout, input); err == nil {
			return t.UTC()
		}
	}

	return now.Add(-24 * time.Hour)
}

func parseRelative(s string, now time.Time) (time.Time, bool) {
	parts := strings.Fields(strings.TrimSuffix(s, "ago"))
	if len(parts) < 2 {
		return time.Time{}, false
	}
	amount, err := strconv.Atoi(parts[0])
	if err != nil {
		return time.Time{}, false
	}

	unit := parts[1]
	switch {
	case strings.Contains(unit, "minute"):
		return now.Add(-time.Duration(amount) * time.Minute), true
	case strings.Contains(unit, "hour"):
		return now.Add(-time.Duration(amount) * time.Hour), true
	case strings.Contains(unit, "day"):
		return now.AddDate(0, 0, -amount), true
	case strings.Contains(unit, "week"):
		return now.AddDate(0, 0, -7*amount), true
	}
	return time.Time{}, false
}
