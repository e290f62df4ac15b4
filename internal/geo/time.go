// Package geo provides the seconds-since-midnight time arithmetic and
// great-circle distance primitives the timetable builder and RAPTOR engine
// share.
package geo

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Seconds is a signed count of seconds since midnight of the service day.
// Offsets from a departure time are allowed to exceed 86400 when a journey
// crosses midnight; WallClock reduces them to the cyclic 24h clock. The
// RAPTOR engine does not apply that reduction when comparing an offset with
// a trip's timetable time: it compares departure+offset with the raw time,
// so a trip is only catchable when its timetable time (24:00 and later for
// trips past midnight) is later than that sum.
type Seconds int64

const SecondsPerDay Seconds = 86400

// Undefined and Inf are the sentinel extremes of the time domain, mirroring
// the original's undefined_time (minimum) and inf_time (maximum).
const (
	Undefined Seconds = math.MinInt64
	Inf       Seconds = math.MaxInt64
)

// WallClock reduces an offset-from-departure (which may exceed one day) to
// its equivalent seconds-since-midnight on the cyclic 24h clock.
func WallClock(departure, offset Seconds) Seconds {
	total := (departure + offset) % SecondsPerDay
	if total < 0 {
		total += SecondsPerDay
	}
	return total
}

// InvalidTimeError is returned by ParseHHMM for malformed or out-of-range
// input.
type InvalidTimeError struct {
	Input string
}

func (e *InvalidTimeError) Error() string {
	return fmt.Sprintf("geo: invalid time %q, want HH:MM with hours in [0,23] and minutes in [0,59]", e.Input)
}

// ParseHHMM parses a strict "HH:MM" string into seconds since midnight.
func ParseHHMM(s string) (Seconds, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, &InvalidTimeError{Input: s}
	}
	if len(parts[0]) == 0 || len(parts[1]) == 0 {
		return 0, &InvalidTimeError{Input: s}
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, &InvalidTimeError{Input: s}
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, &InvalidTimeError{Input: s}
	}
	return Seconds(h*3600 + m*60), nil
}

// FormatTime renders seconds since midnight as "H:MM:SS", with a trailing
// " the next day" / " the Nth day" suffix when seconds spills past 86400 —
// matching the original's toString().
func FormatTime(t Seconds) string {
	days := t / SecondsPerDay
	rem := t % SecondsPerDay
	if rem < 0 {
		rem += SecondsPerDay
	}
	hours := rem / 3600
	rem %= 3600
	minutes := rem / 60
	seconds := rem % 60

	var suffix string
	switch days {
	case 0:
		suffix = ""
	case 1:
		suffix = " the next day"
	case 2:
		suffix = " the 2nd day"
	case 3:
		suffix = " the 3rd day"
	default:
		suffix = fmt.Sprintf(" the %dth day", days)
	}
	return fmt.Sprintf("%d:%02d:%02d%s", hours, minutes, seconds, suffix)
}
