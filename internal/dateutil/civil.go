package dateutil

import (
	"fmt"
	"time"
)

// Package dateutil provides civil-date helpers for the fixed reference
// timezone. Retention bucketing and date exclusion both compare calendar
// dates as observed in JST (UTC+9), regardless of where an article's
// timestamp originated.

const civilDateLayout = "2006-01-02"

// ReferenceZone returns the fixed-offset location for the given hour
// offset from UTC.
func ReferenceZone(offsetHours int) *time.Location {
	return time.FixedZone(fmt.Sprintf("UTC%+d", offsetHours), offsetHours*3600)
}

// CivilDate formats the instant as YYYY-MM-DD in the given location.
func CivilDate(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(civilDateLayout)
}

// Today returns the current civil date in the given location.
func Today(loc *time.Location) string {
	return CivilDate(time.Now(), loc)
}

// ValidCivilDate reports whether s is a well-formed YYYY-MM-DD string.
func ValidCivilDate(s string) bool {
	_, err := time.Parse(civilDateLayout, s)
	return err == nil
}
