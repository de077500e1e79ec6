package calendar

import (
	"sort"
	"time"

	"voicecal/internal/models"
)

// EventView is an event as displayed to one viewer
type EventView struct {
	Event       models.CalendarEvent
	DisplayDate string
	DisplayTime string
	Legacy      bool
}

func newEventView(e models.CalendarEvent, viewer *time.Location) EventView {
	if instant, ok := e.Instant(); ok {
		local := instant.In(viewer)
		return EventView{
			Event:       e,
			DisplayDate: local.Format(dateLayout),
			DisplayTime: local.Format(wallLayout),
		}
	}
	wall := e.WallClock()
	if wall == "" {
		wall = "00:00"
	}
	return EventView{Event: e, DisplayDate: e.Date, DisplayTime: wall, Legacy: true}
}

// sortKey orders timestamped events by instant and legacy events by date and time.
// Both render as UTC "YYYY-MM-DD HH:MM" so the keys compare across kinds.
func (v EventView) sortKey() string {
	if instant, ok := v.Event.Instant(); ok {
		return instant.UTC().Format(dateTimeLayout + ":05")
	}
	return v.Event.Date + " " + v.DisplayTime + ":00"
}

// DayBucket is one guild-local day of the week
type DayBucket struct {
	Day    string
	Date   string
	Events []EventView
}

// Week is the current Monday to Sunday of a guild calendar
type Week struct {
	Start time.Time
	End   time.Time
	Days  [7]DayBucket
}

// Len returns the number of events in the week
func (w Week) Len() int {
	n := 0
	for _, d := range w.Days {
		n += len(d.Events)
	}
	return n
}

// BuildWeek buckets events into the guild-local days of the week containing now.
//
// Timestamped events belong to the week when their instant falls between
// Monday 00:00:00 and Sunday 23:59:59 in guildLoc, both inclusive, and land in
// the bucket of their guild-local day. Legacy events are matched by date string.
// Display times are rendered in viewerLoc.
func BuildWeek(events []models.CalendarEvent, guildLoc, viewerLoc *time.Location, now time.Time) Week {
	start, end := WeekBounds(now, guildLoc)
	w := Week{Start: start, End: end}

	dates := make(map[string]int, len(Days))
	y, m, d := start.Date()
	for i, day := range Days {
		date := time.Date(y, m, d+i, 0, 0, 0, 0, guildLoc).Format(dateLayout)
		w.Days[i] = DayBucket{Day: day, Date: date}
		dates[date] = i
	}

	startUnix, endUnix := start.Unix(), end.Unix()
	for _, e := range events {
		idx := -1
		if instant, ok := e.Instant(); ok {
			if u := instant.Unix(); u >= startUnix && u <= endUnix {
				idx = (int(instant.In(guildLoc).Weekday()) + 6) % 7
			}
		} else if i, ok := dates[e.Date]; ok {
			idx = i
		}
		if idx < 0 {
			continue
		}
		w.Days[idx].Events = append(w.Days[idx].Events, newEventView(e, viewerLoc))
	}

	for i := range w.Days {
		events := w.Days[i].Events
		sort.SliceStable(events, func(a, b int) bool {
			return lessInDay(events[a], events[b])
		})
	}
	return w
}

// lessInDay orders events by instant when both have one, otherwise by time string
func lessInDay(a, b EventView) bool {
	ia, okA := a.Event.Instant()
	ib, okB := b.Event.Instant()
	if okA && okB {
		return ia.Before(ib)
	}
	return a.Event.WallClock() < b.Event.WallClock()
}
