package ics

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrUnsupportedDate is returned by DecodeDate for any DTSTART/DTEND line
// that is not one of the three recognised shapes.
var ErrUnsupportedDate = errors.New("ics: unsupported date format")

// MoscowZone is the fixed UTC+03:00 offset used both for TZID=Europe/Moscow
// and for bare date-times without a zone marker. Moscow has no DST, so a
// fixed zone is exact.
var MoscowZone = time.FixedZone("UTC+03:00", 3*60*60)

const (
	moscowMarker = "TZID=Europe/Moscow:"
	digitsLayout = "20060102T150405"
	// YYYYMMDDTHHMMSS
	digitsLen = 15
)

// DateShape selects one of the DTSTART/DTEND encodings DecodeDate accepts.
type DateShape int

const (
	// ShapeMoscow: DTSTART;TZID=Europe/Moscow:20250922T104500
	ShapeMoscow DateShape = iota
	// ShapeUTC: DTSTART:20250921T180000Z
	ShapeUTC
	// ShapeFloating: DTSTART:20250922T104500 (read as UTC+03:00)
	ShapeFloating
)

func (s DateShape) String() string {
	switch s {
	case ShapeMoscow:
		return "moscow"
	case ShapeUTC:
		return "utc"
	case ShapeFloating:
		return "floating"
	default:
		return "unknown"
	}
}

// DecodeDate decodes a whole DTSTART/DTEND field line, parameters included.
//
// Recognised shapes, checked in order:
//   - a TZID=Europe/Moscow parameter: local time at UTC+03:00
//   - a value ending in "Z": UTC
//   - any other line of at least 15 characters containing "T": UTC+03:00
//
// Everything else, and any value whose digits do not form a real
// date-time, yields ErrUnsupportedDate.
func DecodeDate(fieldLine string) (time.Time, error) {
	line := strings.TrimSpace(fieldLine)

	if i := strings.Index(line, moscowMarker); i >= 0 {
		return decodeDigits(line[i+len(moscowMarker):], MoscowZone)
	}

	if strings.HasSuffix(line, "Z") {
		value, ok := valueAfterColon(line)
		if !ok {
			return time.Time{}, fmt.Errorf("%w: no ':' separator in %q", ErrUnsupportedDate, line)
		}
		return decodeDigits(value, time.UTC)
	}

	if len(line) >= digitsLen && strings.Contains(line, "T") {
		value, ok := valueAfterColon(line)
		if !ok {
			return time.Time{}, fmt.Errorf("%w: no ':' separator in %q", ErrUnsupportedDate, line)
		}
		return decodeDigits(value, MoscowZone)
	}

	return time.Time{}, fmt.Errorf("%w: %q", ErrUnsupportedDate, line)
}

// EncodeDate renders t as a field line for key (e.g. "DTSTART") in the
// given shape. DecodeDate(EncodeDate(k, t, s)) == t for whole seconds.
func EncodeDate(key string, t time.Time, shape DateShape) string {
	switch shape {
	case ShapeMoscow:
		return key + ";" + moscowMarker + t.In(MoscowZone).Format(digitsLayout)
	case ShapeUTC:
		return key + ":" + t.UTC().Format(digitsLayout) + "Z"
	default:
		return key + ":" + t.In(MoscowZone).Format(digitsLayout)
	}
}

func valueAfterColon(line string) (string, bool) {
	i := strings.IndexByte(line, ':')
	if i < 0 {
		return "", false
	}
	return line[i+1:], true
}

// decodeDigits reads YYYYMMDD at offset 0 and HHMMSS at offset 9; offset 8
// must be the 'T' separator. Trailing characters (such as "Z") are ignored.
func decodeDigits(v string, loc *time.Location) (time.Time, error) {
	if len(v) < digitsLen || v[8] != 'T' {
		return time.Time{}, fmt.Errorf("%w: malformed date-time %q", ErrUnsupportedDate, v)
	}

	fields := [6]struct {
		from, to int
	}{
		{0, 4}, {4, 6}, {6, 8}, {9, 11}, {11, 13}, {13, 15},
	}
	var n [6]int
	for i, f := range fields {
		part := v[f.from:f.to]
		x, err := strconv.Atoi(part)
		if err != nil || strings.ContainsAny(part, "+-") {
			return time.Time{}, fmt.Errorf("%w: non-numeric component %q in %q", ErrUnsupportedDate, part, v)
		}
		n[i] = x
	}

	t := time.Date(n[0], time.Month(n[1]), n[2], n[3], n[4], n[5], 0, loc)

	// time.Date normalises out-of-range values (month 13, 25:00); reject them.
	if t.Year() != n[0] || int(t.Month()) != n[1] || t.Day() != n[2] ||
		t.Hour() != n[3] || t.Minute() != n[4] || t.Second() != n[5] {
		return time.Time{}, fmt.Errorf("%w: out-of-range date-time %q", ErrUnsupportedDate, v)
	}
	return t, nil
}
