package shared

import (
	"strings"
	"time"
)

// ParseDate accepts RFC3339 or YYYY-MM-DD. Blank input yields the zero time.
func ParseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}
	if parsed, err := time.Parse(time.RFC3339, value); err == nil {
		return parsed.UTC(), nil
	}
	return time.Parse("2006-01-02", value)
}
