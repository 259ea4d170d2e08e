// Package humanize renders raw trace durations and timestamps, expressed in
// microseconds as reported by the query backend, into compact strings for the
// dashboard.
package humanize

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

// Microsecond scale factors shared with callers that need consistent
// formatting elsewhere.
const (
	Millisecond float64 = 1000
	Second              = 1000 * Millisecond
	Minute              = 60 * Second
	Hour                = 60 * Minute
	Day                 = 24 * Hour
)

// Standard format patterns.
const (
	StandardDatePattern     = "2006-01-02"
	StandardTimePattern     = "15:04"
	StandardDatetimePattern = "January 2 2006, 15:04:05.000"
)

// unitStep is one entry in the display-unit ladder. ofPrevious is how many of
// this unit fit into the next larger one; a value of 1000 marks a unit that is
// rendered as a single decimal number instead of a compound pair.
type unitStep struct {
	unit         string
	microseconds float64
	ofPrevious   int64
}

var unitSteps = []unitStep{
	{unit: "d", microseconds: Day, ofPrevious: 24},
	{unit: "h", microseconds: Hour, ofPrevious: 60},
	{unit: "m", microseconds: Minute, ofPrevious: 60},
	{unit: "s", microseconds: Second, ofPrevious: 1000},
	{unit: "ms", microseconds: Millisecond, ofPrevious: 1000},
	{unit: "μs", microseconds: 1, ofPrevious: 1000},
}

// FormatDuration renders a microsecond count as a humanized string, e.g.
// "0ms", "1ms", "1.5s", "2d 3h". The largest unit whose scale does not exceed
// the duration becomes the primary unit. Sub-minute primaries are shown as a
// single decimal rounded to two places; day/hour/minute primaries are shown
// as a compound pair with the remainder rounded to the nearest secondary
// unit. Negative durations are formatted as the negated absolute value.
func FormatDuration(duration int64) string {
	if duration < 0 {
		return "-" + FormatDuration(-duration)
	}
	d := float64(duration)

	// Pick the primary unit: the first step from the top whose scale fits.
	// When the duration is below every scale (only 0 for integer input) the
	// window collapses onto the millisecond/microsecond pair.
	idx := len(unitSteps) - 2
	for i, step := range unitSteps {
		if step.microseconds <= d {
			idx = i
			break
		}
	}
	primary := unitSteps[idx]

	if primary.ofPrevious == 1000 {
		// Decimal-style unit, read as a single number like "1.5s".
		return formatFloat(roundTo(d/primary.microseconds, 2)) + primary.unit
	}

	secondary := unitSteps[idx+1]
	primaryValue := int64(math.Floor(d / primary.microseconds))
	// The remainder can round up to ofPrevious itself ("1h 60m" for
	// 119.6 minutes); callers rely on that exact output, so it stays.
	secondaryValue := int64(math.Round(math.Mod(d/secondary.microseconds, float64(primary.ofPrevious))))
	if secondaryValue == 0 {
		return fmt.Sprintf("%d%s", primaryValue, primary.unit)
	}
	return fmt.Sprintf("%d%s %d%s", primaryValue, primary.unit, secondaryValue, secondary.unit)
}

// FormatDate renders an epoch-microsecond timestamp as a calendar date.
func FormatDate(duration int64) string {
	return time.UnixMicro(duration).Format(StandardDatePattern)
}

// FormatTime renders an epoch-microsecond timestamp as a clock time.
func FormatTime(duration int64) string {
	return time.UnixMicro(duration).Format(StandardTimePattern)
}

// FormatDatetime renders an epoch-microsecond timestamp with full date, time
// and milliseconds.
func FormatDatetime(duration int64) string {
	return time.UnixMicro(duration).Format(StandardDatetimePattern)
}

// msPrecision is the decimal precision used when quantizing durations to
// millisecond granularity: log10(µs per ms).
const msPrecision = 3

// quantizeDuration rounds a duration to a fixed decimal precision relative to
// the given unit scale, then rescales back to microseconds. Applying it twice
// is a no-op.
func quantizeDuration(duration float64, precision int, conversionFactor float64) float64 {
	return roundTo(duration/conversionFactor, precision) * conversionFactor
}

// FormatMillisecondTime renders a duration in milliseconds, e.g. "12ms".
func FormatMillisecondTime(duration int64) string {
	target := quantizeDuration(float64(duration), msPrecision, Millisecond)
	return formatFloat(target/Millisecond) + "ms"
}

// FormatSecondTime renders a duration in seconds, e.g. "3s".
func FormatSecondTime(duration int64) string {
	target := quantizeDuration(float64(duration), msPrecision, Millisecond)
	return formatFloat(target/Second) + "s"
}

// GetPercentageOfDuration returns duration as a percentage of totalDuration.
// The result is not clamped and a zero total yields ±Inf or NaN per float
// semantics.
func GetPercentageOfDuration(duration, totalDuration float64) float64 {
	return duration / totalDuration * 100
}

// TimeConversion is the older humanizer with coarse buckets and fixed
// two-decimal output, e.g. "5.00s". Kept alongside FormatDuration because
// existing call sites depend on its exact rendering.
func TimeConversion(microseconds int64) string {
	milliseconds := microseconds / 1000
	seconds := float64(milliseconds) / 1000
	minutes := float64(milliseconds) / (1000 * 60)
	hours := float64(milliseconds) / (1000 * 60 * 60)
	days := float64(milliseconds) / (1000 * 60 * 60 * 24)
	switch {
	case seconds < 60:
		return fmt.Sprintf("%.2fs", seconds)
	case minutes < 60:
		return fmt.Sprintf("%.2fm", minutes)
	case hours < 24:
		return fmt.Sprintf("%.2fh", hours)
	default:
		return fmt.Sprintf("%.2fd", days)
	}
}

// roundTo rounds half away from zero at the given number of decimal places.
func roundTo(value float64, places int) float64 {
	shift := math.Pow(10, float64(places))
	return math.Round(value*shift) / shift
}

// formatFloat renders a float without trailing zeros, so 5.00 becomes "5"
// and 1.50 becomes "1.5".
func formatFloat(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}
