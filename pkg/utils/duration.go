package utils

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FormatDuration formats a duration as "1h 2m 3s", dropping leading zero units
func FormatDuration(d time.Duration) string {
	totalSeconds := int64(d / time.Second)
	if totalSeconds < 0 {
		totalSeconds = 0
	}
	h := totalSeconds / 3600
	m := (totalSeconds % 3600) / 60
	s := totalSeconds % 60

	switch {
	case h > 0:
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	case m > 0:
		return fmt.Sprintf("%dm %ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}

// FormatHours formats a duration as "Xh Ym"
func FormatHours(d time.Duration) string {
	totalMinutes := int64(d / time.Minute)
	if totalMinutes < 0 {
		totalMinutes = 0
	}
	return fmt.Sprintf("%dh %dm", totalMinutes/60, totalMinutes%60)
}

// FormatMillis formats a millisecond count as "Xh Ym"
func FormatMillis(ms int64) string {
	return FormatHours(time.Duration(ms) * time.Millisecond)
}

// Format12Hour converts "15:04" to "3:04 PM". Unparseable input is returned unchanged.
func Format12Hour(time24 string) string {
	parts := strings.SplitN(time24, ":", 2)
	if len(parts) != 2 {
		return time24
	}
	hours, err := strconv.Atoi(parts[0])
	if err != nil {
		return time24
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil {
		return time24
	}

	period := "AM"
	if hours >= 12 {
		period = "PM"
	}
	displayHours := hours % 12
	if displayHours == 0 {
		displayHours = 12
	}
	return fmt.Sprintf("%d:%02d %s", displayHours, minutes, period)
}
