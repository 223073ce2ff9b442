package validate

import (
	"fmt"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
)

const (
	// DateLayout is the normalized form of date-only columns.
	DateLayout = "2006-01-02"
	// DateTimeLayout is the normalized form of timestamp columns (UTC, millisecond precision).
	DateTimeLayout = "2006-01-02T15:04:05.000Z"
)

// JSON checks that raw holds a valid JSON document and re-serializes it in
// compact form. Invalid documents become nil with a warning.
func JSON(raw any) Result[*string] {
	s, _ := Text(raw)
	s = strings.TrimSpace(s)
	if s == "" {
		return Result[*string]{}
	}
	if !gjson.Valid(s) {
		return Clean[*string](nil, fmt.Sprintf("invalid JSON dropped (%d bytes)", len(s)))
	}
	out := string(pretty.Ugly([]byte(s)))
	return Clean(&out)
}

// DateTime parses a timestamp in any common layout and normalizes it to a
// full ISO-8601 UTC timestamp. Inputs without a zone are read as UTC.
func DateTime(raw any) Result[*string] {
	t, s, ok := parseTime(raw)
	if s == "" {
		return Result[*string]{}
	}
	if !ok {
		return Clean[*string](nil, fmt.Sprintf("invalid datetime %q dropped", s))
	}
	out := t.UTC().Format(DateTimeLayout)
	return Clean(&out)
}

// Date parses a date or timestamp and normalizes it to YYYY-MM-DD in the
// zone it was written in.
func Date(raw any) Result[*string] {
	t, s, ok := parseTime(raw)
	if s == "" {
		return Result[*string]{}
	}
	if !ok {
		return Clean[*string](nil, fmt.Sprintf("invalid date %q dropped", s))
	}
	out := t.Format(DateLayout)
	return Clean(&out)
}

func parseTime(raw any) (time.Time, string, bool) {
	if t, ok := raw.(time.Time); ok {
		if t.IsZero() {
			return t, "", false
		}
		return t, t.String(), true
	}
	s, _ := Text(raw)
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, "", false
	}
	t, err := dateparse.ParseIn(s, time.UTC)
	if err != nil || t.IsZero() {
		return time.Time{}, s, false
	}
	return t, s, true
}
