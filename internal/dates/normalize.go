// Package dates coerces spreadsheet date text into YYYY-MM-DD.
package dates

import (
	"regexp"
	"strings"
	"time"

	"github.com/wonny/stratbook/pkg/logger"
)

// Layout is the canonical calendar-date layout
const Layout = "2006-01-02"

var (
	canonical = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	looseISO  = regexp.MustCompile(`^\d{4}-\d{1,2}-\d{1,2}$`)
)

// Layout groups, tried in order: month-first, day-first, then the explicit list.
var (
	monthFirst = []string{
		"1/2/2006",
		"1-2-2006",
		"1/2/06",
		"2006/1/2",
		"2006-01-02T15:04:05Z07:00",
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"1/2/2006 15:04:05",
		"1/2/2006 15:04",
		"Jan 2, 2006",
		"Jan 2 2006",
		"January 2, 2006",
		"January 2 2006",
		"Mon, Jan 2, 2006",
		"Monday, January 2, 2006",
		"20060102",
	}
	dayFirst = []string{
		"2/1/2006",
		"2-1-2006",
		"2.1.2006",
		"2/1/06",
		"2 Jan 2006",
		"2 January 2006",
		"2-Jan-2006",
		"2-Jan-06",
	}
	explicit = []string{
		"01/02/2006",
		"02/01/2006",
		"01-02-2006",
		"02-01-2006",
		"2006/01/02",
		"2006.01.02",
		"02.01.2006",
		"01.02.2006",
		"Jan 02, 2006",
		"02 Jan 2006",
		"January 02, 2006",
		"02 January 2006",
	}
)

// Normalize returns text as YYYY-MM-DD. ok is false when no layout matched,
// in which case the trimmed input is returned unchanged.
func Normalize(text string) (string, bool) {
	s := strings.TrimSpace(text)
	if s == "" {
		return s, false
	}

	if canonical.MatchString(s) {
		return s, true
	}

	if looseISO.MatchString(s) {
		if t, err := time.Parse("2006-1-2", s); err == nil {
			return t.Format(Layout), true
		}
	}

	for _, group := range [][]string{monthFirst, dayFirst, explicit} {
		if out, ok := parseAny(s, group); ok {
			return out, true
		}
	}

	return s, false
}

// NormalizeOrWarn is Normalize that logs a warning when the text cannot be parsed.
// Empty text is returned without a warning.
func NormalizeOrWarn(log *logger.Logger, text string) string {
	out, ok := Normalize(text)
	if !ok && out != "" {
		log.WithField("date", text).Warn("Could not normalize date, keeping original text")
	}
	return out
}

func parseAny(s string, layouts []string) (string, bool) {
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(Layout), true
		}
	}
	return "", false
}

// Today returns the current calendar date in loc
func Today(loc *time.Location) string {
	return TodayAt(time.Now(), loc)
}

// TodayAt returns now's calendar date in loc
func TodayAt(now time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return now.In(loc).Format(Layout)
}
