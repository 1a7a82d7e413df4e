package sermons

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var sermonDatePattern = regexp.MustCompile(`(\w+)\s+(\d+)(?:st|nd|rd|th)\s+(\d+)`)

var monthsByName = map[string]time.Month{
	"january":   time.January,
	"february":  time.February,
	"march":     time.March,
	"april":     time.April,
	"may":       time.May,
	"june":      time.June,
	"july":      time.July,
	"august":    time.August,
	"september": time.September,
	"october":   time.October,
	"november":  time.November,
	"december":  time.December,
}

// ParseSermonDate reads dates written like "November 2nd 2024". Anything else maps
// to the Unix epoch so every record still has a place in the ordering.
func ParseSermonDate(s string) time.Time {
	m := sermonDatePattern.FindStringSubmatch(s)
	if m == nil {
		return time.Unix(0, 0).UTC()
	}
	month, ok := monthsByName[strings.ToLower(m[1])]
	if !ok {
		return time.Unix(0, 0).UTC()
	}
	day, err := strconv.Atoi(m[2])
	if err != nil {
		return time.Unix(0, 0).UTC()
	}
	year, err := strconv.Atoi(m[3])
	if err != nil {
		return time.Unix(0, 0).UTC()
	}
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// FormatSermonDate is the inverse of ParseSermonDate.
func FormatSermonDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Month().String() + " " + strconv.Itoa(t.Day()) + ordinalSuffix(t.Day()) + " " + strconv.Itoa(t.Year())
}

func ordinalSuffix(day int) string {
	if day%100 >= 11 && day%100 <= 13 {
		return "th"
	}
	switch day % 10 {
	case 1:
		return "st"
	case 2:
		return "nd"
	case 3:
		return "rd"
	default:
		return "th"
	}
}

func monthIndex(name string) int {
	if m, ok := monthsByName[strings.ToLower(strings.TrimSpace(name))]; ok {
		return int(m)
	}
	return 0
}
