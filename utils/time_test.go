package utils_test

import (
	"testing"
	"time"

	"github.com/podscale/adops/utils"
	"github.com/stretchr/testify/assert"
)

func TestDateRangesOverlap(t *testing.T) {
	day := func(d int) time.Time {
		return time.Date(2026, 9, d, 0, 0, 0, 0, time.UTC)
	}

	t.Run("Overlapping", func(t *testing.T) {
		assert.True(t, utils.DateRangesOverlap(day(1), day(10), day(5), day(15)))
		assert.True(t, utils.DateRangesOverlap(day(5), day(15), day(1), day(10)))
		assert.True(t, utils.DateRangesOverlap(day(1), day(30), day(10), day(12)))
	})

	t.Run("TouchingBoundsCount", func(t *testing.T) {
		assert.True(t, utils.DateRangesOverlap(day(1), day(10), day(10), day(20)))
	})

	t.Run("Disjoint", func(t *testing.T) {
		assert.False(t, utils.DateRangesOverlap(day(1), day(9), day(10), day(20)))
		assert.False(t, utils.DateRangesOverlap(day(10), day(20), day(1), day(9)))
	})
}

func TestDateOnly(t *testing.T) {
	stamp := time.Date(2026, 9, 7, 18, 45, 12, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC), utils.DateOnly(stamp))
	assert.True(t, utils.SameDay(stamp, utils.DateOnly(stamp)))
	assert.False(t, utils.SameDay(stamp, stamp.Add(24*time.Hour)))
}
