package dateutil

import (
	"testing"
	"time"
)

func TestCivilDateCrossesMidnightInReferenceZone(t *testing.T) {
	jst := ReferenceZone(9)

	cases := []struct {
		instant time.Time
		want    string
	}{
		{time.Date(2023, 12, 31, 14, 59, 0, 0, time.UTC), "2023-12-31"},
		{time.Date(2023, 12, 31, 15, 0, 0, 0, time.UTC), "2024-01-01"},
		{time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC), "2024-01-01"},
		{time.Date(2024, 1, 1, 12, 0, 0, 0, jst), "2024-01-01"},
	}
	for _, c := range cases {
		if got := CivilDate(c.instant, jst); got != c.want {
			t.Fatalf("CivilDate(%v) = %s, want %s", c.instant, got, c.want)
		}
	}
}

func TestReferenceZoneOffset(t *testing.T) {
	loc := ReferenceZone(9)
	instant := time.Date(2024, 5, 15, 0, 0, 0, 0, time.UTC).In(loc)
	_, offset := instant.Zone()
	if offset != 9*3600 {
		t.Fatalf("expected +9h offset, got %d seconds", offset)
	}
}

func TestValidCivilDate(t *testing.T) {
	valid := []string{"2024-01-01", "1999-12-31"}
	for _, s := range valid {
		if !ValidCivilDate(s) {
			t.Fatalf("expected %q valid", s)
		}
	}
	invalid := []string{"2024-13-01", "2024-1-1", "20240101", "yesterday", ""}
	for _, s := range invalid {
		if ValidCivilDate(s) {
			t.Fatalf("expected %q invalid", s)
		}
	}
}
