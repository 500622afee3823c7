package ir

import (
	"fmt"
	"time"
)

// TimestampLayout is the fixed-width UTC layout used for timestamp fields.
// Fixed width keeps lexical order equal to chronological order.
const TimestampLayout = "2006-01-02T15:04:05.000000000Z"

// Timestamp encodes t as an IRString in TimestampLayout.
func Timestamp(t time.Time) IRString {
	return IRString(t.UTC().Format(TimestampLayout))
}

// ParseTimestamp accepts any RFC 3339 timestamp and returns it normalized to
// TimestampLayout.
func ParseTimestamp(s string) (IRString, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return "", fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return Timestamp(t), nil
}
