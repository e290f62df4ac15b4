package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHHMM(t *testing.T) {
	s, err := ParseHHMM("05:00")
	require.NoError(t, err)
	assert.Equal(t, Seconds(5*3600), s)

	_, err = ParseHHMM("24:00")
	assert.Error(t, err)
	_, err = ParseHHMM("05:60")
	assert.Error(t, err)
	_, err = ParseHHMM("05:00:00")
	assert.Error(t, err)
	_, err = ParseHHMM("nope")
	assert.Error(t, err)
}

func TestFormatTimeDayWrap(t *testing.T) {
	assert.Equal(t, "5:00:00", FormatTime(5*3600))
	assert.Equal(t, "1:00:00 the next day", FormatTime(SecondsPerDay+3600))
	assert.Equal(t, "0:00:00 the 2nd day", FormatTime(2*SecondsPerDay))
	assert.Equal(t, "0:00:00 the 3rd day", FormatTime(3*SecondsPerDay))
	assert.Equal(t, "0:00:00 the 4th day", FormatTime(4*SecondsPerDay))
}

func TestWallClockWrapsNegativeAndOverflow(t *testing.T) {
	assert.Equal(t, Seconds(0), WallClock(SecondsPerDay-10, 10))
	assert.Equal(t, Seconds(SecondsPerDay-1), WallClock(0, -1))
}

func TestGreatCircleKMKnownDistance(t *testing.T) {
	// Roughly the distance between two GTFS sample-feed stops one km apart.
	d := GreatCircleKM(36.425288, -117.133162, 36.43, -117.14)
	assert.Greater(t, d, 0.0)
	assert.Less(t, d, 2.0)
}

func TestWalkTimeByPace(t *testing.T) {
	assert.Equal(t, Seconds(864), WalkTime(1.0, Normal)) // 720*1.2
	assert.Greater(t, WalkTime(1.0, Slow), WalkTime(1.0, Normal))
	assert.Greater(t, WalkTime(1.0, Normal), WalkTime(1.0, Fast))
}
