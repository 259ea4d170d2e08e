package humanize

import (
	"fmt"
	"time"
)

// FormatRelativeDate classifies a timestamp against the current date and
// returns "Today", "Yesterday", or a formatted month/day (with the year
// appended when it differs from the current one). fullMonthName selects
// "January" over "Jan".
func FormatRelativeDate(value time.Time, fullMonthName bool) string {
	return FormatRelativeDateAt(time.Now(), value, fullMonthName)
}

// FormatRelativeDateAt is FormatRelativeDate with the reference time passed
// explicitly. The reference is read once, so a midnight rollover between the
// Today and Yesterday checks cannot split a single call.
func FormatRelativeDateAt(now, value time.Time, fullMonthName bool) string {
	monthPattern := "Jan"
	if fullMonthName {
		monthPattern = "January"
	}
	if now.Year() != value.Year() {
		return fmt.Sprintf("%s %d, %d", value.Format(monthPattern), value.Day(), value.Year())
	}
	if value.Month() == now.Month() && value.Day() == now.Day() {
		return "Today"
	}
	// Step back one calendar day rather than 24 hours so month boundaries
	// classify correctly.
	yesterday := now.AddDate(0, 0, -1)
	if value.Month() == yesterday.Month() && value.Day() == yesterday.Day() {
		return "Yesterday"
	}
	return fmt.Sprintf("%s %d", value.Format(monthPattern), value.Day())
}
