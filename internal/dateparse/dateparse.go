// Package dateparse turns the relative and absolute date strings accepted by
// --since flags into the start of a local calendar day.
package dateparse

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Since parses input relative to the current time. See SinceFrom.
func Since(input string) (time.Time, error) {
	return SinceFrom(input, time.Now())
}

// SinceFrom parses input relative to now and returns midnight of the day it
// names, in now's location.
//
// Supported formats:
//   - Exact dates: "2026-03-01"
//   - Days, weeks or months ago: "7d", "-2w", "1m"
//   - Day names: "monday", "tuesday", etc. (most recent occurrence, never today)
//   - Keywords: "today", "yesterday", "last-week", "last-month"
func SinceFrom(input string, now time.Time) (time.Time, error) {
	input = strings.TrimSpace(strings.ToLower(input))
	if input == "" {
		return time.Time{}, fmt.Errorf("empty date input")
	}

	if t, err := time.ParseInLocation(time.DateOnly, input, now.Location()); err == nil {
		return t, nil
	}

	switch input {
	case "today":
		return startOfDay(now), nil
	case "yesterday":
		return startOfDay(now.AddDate(0, 0, -1)), nil
	case "last-week":
		// Monday of the previous week
		sinceMonday := (int(now.Weekday()) - int(time.Monday) + 7) % 7
		return startOfDay(now.AddDate(0, 0, -sinceMonday-7)), nil
	case "last-month":
		year, month, _ := now.Date()
		return time.Date(year, month-1, 1, 0, 0, 0, 0, now.Location()), nil
	}

	rel := strings.TrimPrefix(input, "-")
	if len(rel) >= 2 {
		suffix := rel[len(rel)-1]
		if n, err := strconv.Atoi(rel[:len(rel)-1]); err == nil && n >= 0 {
			switch suffix {
			case 'd':
				return startOfDay(now.AddDate(0, 0, -n)), nil
			case 'w':
				return startOfDay(now.AddDate(0, 0, -7*n)), nil
			case 'm':
				return startOfDay(now.AddDate(0, -n, 0)), nil
			default:
				return time.Time{}, fmt.Errorf("unknown relative unit %q in %q (use d, w, or m)", string(suffix), input)
			}
		}
	}

	dayMap := map[string]time.Weekday{
		"sunday":    time.Sunday,
		"monday":    time.Monday,
		"tuesday":   time.Tuesday,
		"wednesday": time.Wednesday,
		"thursday":  time.Thursday,
		"friday":    time.Friday,
		"saturday":  time.Saturday,
	}
	if target, ok := dayMap[input]; ok {
		daysBack := (int(now.Weekday()) - int(target) + 7) % 7
		if daysBack == 0 {
			daysBack = 7
		}
		return startOfDay(now.AddDate(0, 0, -daysBack)), nil
	}

	return time.Time{}, fmt.Errorf("unrecognized date format: %q", input)
}

func startOfDay(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}
