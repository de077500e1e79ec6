package models

import "time"

// CalendarEvent is a roleplay event on a guild calendar.
//
// An event is either timestamped (UTCTimestamp set, authoritative) or legacy
// (created before timestamps were stored, only Date and Time are known).
// Use Instant to tell them apart.
type CalendarEvent struct {
	ID            string    `bson:"id"`
	GuildID       string    `bson:"guildId"`
	Day           string    `bson:"day"`
	Date          string    `bson:"date"`
	Time          string    `bson:"time,omitempty"`
	InputTime     string    `bson:"inputTime,omitempty"`
	UTCTimestamp  *int64    `bson:"utcTimestamp,omitempty"`
	GuildTimezone string    `bson:"guildTimezone,omitempty"`
	Title         string    `bson:"title"`
	Description   string    `bson:"description"`
	Author        string    `bson:"author"`
	AuthorName    string    `bson:"authorName"`
	CreatedAt     time.Time `bson:"createdAt"`
	UpdatedAt     time.Time `bson:"updatedAt"`
}

// Instant returns the absolute start of a timestamped event.
// The second return value is false for legacy events.
func (e CalendarEvent) Instant() (time.Time, bool) {
	if e.UTCTimestamp == nil {
		return time.Time{}, false
	}
	return time.Unix(*e.UTCTimestamp, 0).UTC(), true
}

// WallClock returns the HH:MM the event was entered with
func (e CalendarEvent) WallClock() string {
	if e.InputTime != "" {
		return e.InputTime
	}
	return e.Time
}

// SetInstant pins the event to an absolute instant
func (e *CalendarEvent) SetInstant(t time.Time) {
	ts := t.Unix()
	e.UTCTimestamp = &ts
}
