package utils

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// Legacy JSON date format used by v2-era and SAP services: /Date(milliseconds[+/-hhmm])/
var odataLegacyDateRegex = regexp.MustCompile(`^/Date\((-?\d+)([\+\-]\d{4})?\)/$`)

// IsODataLegacyDate checks if a string is in the legacy date format
func IsODataLegacyDate(s string) bool {
	return odataLegacyDateRegex.MatchString(s)
}

// ParseODataLegacyDate extracts milliseconds and offset from a legacy date
func ParseODataLegacyDate(s string) (milliseconds int64, offset string, ok bool) {
	matches := odataLegacyDateRegex.FindStringSubmatch(s)
	if len(matches) < 2 {
		return 0, "", false
	}

	ms, err := strconv.ParseInt(matches[1], 10, 64)
	if err != nil {
		return 0, "", false
	}

	if len(matches) > 2 && matches[2] != "" {
		offset = matches[2]
	}

	return ms, offset, true
}

// LegacyDateToTime converts a legacy date into a time.Time.
// The milliseconds are UTC; an offset only selects the zone the instant is shown in.
func LegacyDateToTime(s string) (time.Time, bool) {
	ms, offset, ok := ParseODataLegacyDate(s)
	if !ok {
		return time.Time{}, false
	}

	t := time.UnixMilli(ms).UTC()
	if offset == "" {
		return t, true
	}

	hours, _ := strconv.Atoi(offset[1:3])
	minutes, _ := strconv.Atoi(offset[3:5])
	seconds := hours*3600 + minutes*60
	if offset[0] == '-' {
		seconds = -seconds
	}
	return t.In(time.FixedZone("", seconds)), true
}

// FormatODataLegacyDate formats t as a legacy date, with offset when withOffset is set
func FormatODataLegacyDate(t time.Time, withOffset bool) string {
	if !withOffset {
		return fmt.Sprintf("/Date(%d)/", t.UnixMilli())
	}

	_, offset := t.Zone()
	sign := "+"
	if offset < 0 {
		sign = "-"
		offset = -offset
	}
	return fmt.Sprintf("/Date(%d%s%02d%02d)/", t.UnixMilli(), sign, offset/3600, (offset%3600)/60)
}
