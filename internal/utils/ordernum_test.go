package utils

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewOrderNumberFormat(t *testing.T) {
	now := time.Date(2025, time.March, 7, 23, 59, 0, 0, time.UTC)
	pattern := regexp.MustCompile(`^ORD-20250307-\d{4}$`)
	for i := 0; i < 20; i++ {
		require.Regexp(t, pattern, NewOrderNumber(now))
	}
}

func TestNewOrderNumberUsesUTCDate(t *testing.T) {
	// 23:00 in UTC-5 is already the next day in UTC.
	loc := time.FixedZone("UTC-5", -5*3600)
	now := time.Date(2025, time.March, 7, 23, 0, 0, 0, loc)
	require.Contains(t, NewOrderNumber(now), "ORD-20250308-")
}
