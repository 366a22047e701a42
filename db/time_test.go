package db

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatTimeSortsAsText(t *testing.T) {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	a := FormatTime(base.Add(100 * time.Millisecond))
	b := FormatTime(base.Add(120 * time.Millisecond))
	assert.Less(t, a, b)
	assert.Equal(t, "2026-03-01T09:00:00.100000000Z", a)
}

func TestParseTimeRoundTrip(t *testing.T) {
	now := time.Now()
	assert.True(t, now.Equal(ParseTime(FormatTime(now))))
	assert.True(t, ParseTime("").IsZero())
	assert.True(t, ParseTime("2026-03-01T09:00:00Z").Equal(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)))
}
