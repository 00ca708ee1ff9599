package normalizer

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// ErrInvalidDate is returned when a raw date value cannot be normalized.
var ErrInvalidDate = errors.New("invalid date")

var dateLayouts = []string{"2006-01-02", "01/02/2006", "02/01/2006"}

// ParseDate normalizes a user-supplied date string.
func ParseDate(raw string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if d, err := time.Parse(layout, raw); err == nil {
			return d, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q (use YYYY-MM-DD or MM/DD/YYYY)", ErrInvalidDate, raw)
}

// DateToken is a month/day pair lifted from a statement line, with an
// optional explicit year.
type DateToken struct {
	Month   int
	Day     int
	Year    int
	HasYear bool
}

// validDate reports whether the calendar actually contains the given day.
// time.Date silently normalizes overflow (e.g. Feb 30 becomes Mar 2), so the
// round trip is checked explicitly.
func validDate(year, month, day int) (time.Time, bool) {
	d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if d.Year() != year || int(d.Month()) != month || d.Day() != day {
		return time.Time{}, false
	}
	return d, true
}

// ResolveDateToken turns a statement date token into a concrete date. Tokens
// with a two-digit year are pinned to the 2000s. Yearless tokens try the
// reference year and the year before it, preferring the most recent date that
// is not after the reference.
func ResolveDateToken(tok DateToken, reference time.Time) (time.Time, error) {
	if tok.HasYear {
		year := tok.Year
		if year < 100 {
			year += 2000
		}
		d, ok := validDate(year, tok.Month, tok.Day)
		if !ok {
			return time.Time{}, fmt.Errorf("%w: %02d/%02d/%d", ErrInvalidDate, tok.Month, tok.Day, tok.Year)
		}
		return d, nil
	}

	var candidates []time.Time
	for _, year := range []int{reference.Year(), reference.Year() - 1} {
		if d, ok := validDate(year, tok.Month, tok.Day); ok {
			candidates = append(candidates, d)
		}
	}
	if len(candidates) == 0 {
		return time.Time{}, fmt.Errorf("%w: %02d/%02d", ErrInvalidDate, tok.Month, tok.Day)
	}

	var latest time.Time
	found := false
	for _, c := range candidates {
		if c.After(reference) {
			continue
		}
		if !found || c.After(latest) {
			latest = c
			found = true
		}
	}
	if found {
		return latest, nil
	}

	earliest := candidates[0]
	for _, c := range candidates[1:] {
		if c.Before(earliest) {
			earliest = c
		}
	}
	return earliest, nil
}

var filenameDateRe = regexp.MustCompile(`(20\d{2})(\d{2})(\d{2})`)

// StatementDateFromFilename pulls a YYYYMMDD statement date out of a filename
// like "statement_20250131.pdf". Digit runs embedded in longer numbers are
// ignored, as are impossible calendar dates. Returns nil when nothing usable
// is found.
func StatementDateFromFilename(filename string) *time.Time {
	for _, m := range filenameDateRe.FindAllStringSubmatchIndex(filename, -1) {
		start, end := m[0], m[1]
		if start > 0 && isDigit(filename[start-1]) {
			continue
		}
		if end < len(filename) && isDigit(filename[end]) {
			continue
		}
		year, _ := strconv.Atoi(filename[m[2]:m[3]])
		month, _ := strconv.Atoi(filename[m[4]:m[5]])
		day, _ := strconv.Atoi(filename[m[6]:m[7]])
		if d, ok := validDate(year, month, day); ok {
			return &d
		}
	}
	return nil
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}
