package shared

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDateOnlyTruncatesToUTCDay(t *testing.T) {
	zurich := time.FixedZone("CEST", 2*60*60)

	got := DateOnly(time.Date(2026, 3, 11, 0, 30, 0, 0, zurich))
	require.Equal(t, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), got)

	got = DateOnly(time.Date(2026, 3, 10, 23, 59, 0, 0, time.UTC))
	require.Equal(t, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), got)
}

func TestFixedClockSetAndAdvance(t *testing.T) {
	c := NewFixedClock(time.Date(2026, 3, 10, 22, 0, 0, 0, time.UTC))
	c.Advance(3 * time.Hour)
	require.Equal(t, time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC), DateOnly(c.Now()))
	c.Set(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	require.Equal(t, time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC), c.Now())
}
