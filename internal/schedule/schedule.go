// Package schedule parses recurrence expressions and runs the polling
// loop that enqueues recurring searches when they fall due.
package schedule

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ParseError indicates a malformed schedule expression
type ParseError struct {
	Expr string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid schedule expression: %q", e.Expr)
}

// presets are the named recurrences, normalized to minute granularity.
var presets = map[string]time.Duration{
	"hourly": time.Hour,
	"daily":  24 * time.Hour,
	"weekly": 7 * 24 * time.Hour,
}

var intervalPattern = regexp.MustCompile(`^(?:every\s+)?(\d+)\s*(m|min|minute|minutes|h|hr|hour|hours)$`)

// Parse converts a schedule expression into an interval. Accepted forms
// are a count plus unit ("30m", "2 hours", "every 15 minutes") or one of
// the presets hourly/daily/weekly. Sub-minute intervals are rejected.
func Parse(expr string) (time.Duration, error) {
	normalized := strings.ToLower(strings.TrimSpace(expr))
	if normalized == "" {
		return 0, &ParseError{Expr: expr}
	}
	if d, ok := presets[normalized]; ok {
		return d, nil
	}

	match := intervalPattern.FindStringSubmatch(normalized)
	if match == nil {
		return 0, &ParseError{Expr: expr}
	}
	count, err := strconv.Atoi(match[1])
	if err != nil || count <= 0 {
		return 0, &ParseError{Expr: expr}
	}

	switch match[2][0] {
	case 'h':
		return time.Duration(count) * time.Hour, nil
	default:
		return time.Duration(count) * time.Minute, nil
	}
}
