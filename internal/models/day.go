package models

import (
	"strings"
	"time"
)

const DayLayout = "2006-01-02"

// ParseDay parses a YYYY-MM-DD calendar day as midnight UTC.
func ParseDay(s string) (time.Time, error) {
	return time.Parse(DayLayout, strings.TrimSpace(s))
}

func FormatDay(t time.Time) string {
	return t.Format(DayLayout)
}

func FormatOptionalDay(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := FormatDay(*t)
	return &s
}
