package calendar

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"voicecal/internal/models"
)

// Days lists the weekday names in calendar order; the index is the offset from Monday
var Days = []string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"}

// Accepts "8", "8pm", "8 PM", "3:00 PM", "15:30", "1530".
var wallClockPattern = regexp.MustCompile(`(?i)^(\d{1,2}):?(\d{2})?\s*(AM|PM)?$`)

const (
	dateLayout     = "2006-01-02"
	wallLayout     = "15:04"
	dateTimeLayout = dateLayout + " " + wallLayout
)

// ParseWallClock normalizes a user-entered time of day to 24-hour "HH:MM"
func ParseWallClock(input string) (string, error) {
	match := wallClockPattern.FindStringSubmatch(strings.TrimSpace(input))
	if match == nil {
		return "", models.NewValidationError("time", "invalid time format %q, use formats like 3:00 PM, 15:30, 8 PM or 14:00", input)
	}

	hours, _ := strconv.Atoi(match[1])
	minutes := 0
	if match[2] != "" {
		minutes, _ = strconv.Atoi(match[2])
	}

	switch strings.ToUpper(match[3]) {
	case "PM":
		if hours != 12 {
			hours += 12
		}
	case "AM":
		if hours == 12 {
			hours = 0
		}
	}

	if hours < 0 || hours > 23 || minutes < 0 || minutes > 59 {
		return "", models.NewValidationError("time", "invalid time %q, hours must be 0-23 and minutes 0-59", input)
	}

	return fmt.Sprintf("%02d:%02d", hours, minutes), nil
}

// ParseDay returns the offset of a weekday name from Monday (0..6)
func ParseDay(day string) (int, error) {
	day = strings.ToLower(strings.TrimSpace(day))
	for i, d := range Days {
		if d == day {
			return i, nil
		}
	}
	return 0, models.NewValidationError("day", "invalid day %q, use monday through sunday", day)
}

// LoadTimezone resolves an IANA timezone name. An empty name means UTC.
func LoadTimezone(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return time.UTC, nil
	}
	if name == "Local" {
		return nil, models.NewValidationError("timezone", "invalid timezone %q", name)
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, models.NewValidationError("timezone", "invalid timezone %q", name)
	}
	return loc, nil
}

// WeekBounds returns Monday 00:00:00 and Sunday 23:59:59 of the week containing now,
// both as wall-clock times in loc. Weeks run Monday to Sunday.
func WeekBounds(now time.Time, loc *time.Location) (time.Time, time.Time) {
	local := now.In(loc)
	weekday := int(local.Weekday())
	if weekday == 0 {
		weekday = 7
	}
	y, m, d := local.Date()
	monday := time.Date(y, m, d-(weekday-1), 0, 0, 0, 0, loc)
	nextMonday := time.Date(y, m, d-(weekday-1)+7, 0, 0, 0, 0, loc)
	return monday, nextMonday.Add(-time.Second)
}

// DateInWeek returns the calendar date of the given weekday offset in the week containing now
func DateInWeek(now time.Time, loc *time.Location, offset int) string {
	monday, _ := WeekBounds(now, loc)
	y, m, d := monday.Date()
	return time.Date(y, m, d+offset, 0, 0, 0, 0, loc).Format(dateLayout)
}

// WallClockInstant converts a date and "HH:MM" read as wall-clock time in loc to an absolute instant.
// The UTC offset is the one in effect in loc on that date.
func WallClockInstant(date, hhmm string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(dateTimeLayout, date+" "+hhmm, loc)
	if err != nil {
		return time.Time{}, models.NewValidationError("date", "invalid date or time %q %q", date, hhmm)
	}
	return t.UTC(), nil
}

// Slot is where a day and time of the current week land
type Slot struct {
	Day     string
	Date    string
	Time    string
	Instant time.Time
}

// ResolveSlot places a weekday and user-entered time in the current week of loc
func ResolveSlot(day, wallClock string, loc *time.Location, now time.Time) (Slot, error) {
	offset, err := ParseDay(day)
	if err != nil {
		return Slot{}, err
	}
	hhmm, err := ParseWallClock(wallClock)
	if err != nil {
		return Slot{}, err
	}
	date := DateInWeek(now, loc, offset)
	instant, err := WallClockInstant(date, hhmm, loc)
	if err != nil {
		return Slot{}, err
	}
	return Slot{Day: Days[offset], Date: date, Time: hhmm, Instant: instant}, nil
}
