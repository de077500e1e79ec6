// Package calendar keeps a weekly roleplay calendar per guild.
//
// Events are entered as a weekday and a wall-clock time in the guild's
// timezone, anchored to the current week and stored as an absolute instant.
// Views bucket events by the guild's local days and display times in the
// viewer's timezone. Events stored before instants were recorded (legacy)
// are filtered and shown by their stored date and time string.
package calendar

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"voicecal/internal/models"
)

// EventStore persists calendar events
type EventStore interface {
	AddCalendarEvent(ctx context.Context, e models.CalendarEvent) error
	UpdateCalendarEvent(ctx context.Context, e models.CalendarEvent) error
	GetCalendarEvent(ctx context.Context, guildID, eventID string) (models.CalendarEvent, error)
	ListCalendarEvents(ctx context.Context, guildID string) ([]models.CalendarEvent, error)
	DeleteCalendarEvent(ctx context.Context, guildID, eventID string) error
}

// TimezoneStore persists guild and user timezones
type TimezoneStore interface {
	GuildTimezone(ctx context.Context, guildID string) (string, error)
	SetGuildTimezone(ctx context.Context, guildID, timezone string) error
	GetUserTimezone(ctx context.Context, userID string) (string, error)
	SetUserTimezone(ctx context.Context, userID, timezone string) error
}

// Store is everything the calendar service persists
type Store interface {
	EventStore
	TimezoneStore
}

// Actor is the member asking to change an event
type Actor struct {
	UserID string
	Admin  bool
}

// EventInput describes a new event
type EventInput struct {
	Day         string
	Time        string
	Title       string
	Description string
	AuthorID    string
	AuthorName  string
}

// EventPatch holds the fields to change on an event; nil fields are left alone
type EventPatch struct {
	Day         *string
	Time        *string
	Title       *string
	Description *string
}

func (p EventPatch) empty() bool {
	return p.Day == nil && p.Time == nil && p.Title == nil && p.Description == nil
}

// Service manages calendar events and timezones
type Service struct {
	store Store
	newID func() string
}

// NewService creates a calendar service
func NewService(store Store) *Service {
	return &Service{store: store, newID: uuid.NewString}
}

// SetEvent creates an event on the given weekday of the guild's current week
func (s *Service) SetEvent(ctx context.Context, guildID string, in EventInput, now time.Time) (models.CalendarEvent, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return models.CalendarEvent{}, models.NewValidationError("title", "event title is required")
	}

	tzName, loc, err := s.guildLocation(ctx, guildID)
	if err != nil {
		return models.CalendarEvent{}, err
	}

	slot, err := ResolveSlot(in.Day, in.Time, loc, now)
	if err != nil {
		return models.CalendarEvent{}, err
	}

	e := models.CalendarEvent{
		ID:            s.newID(),
		GuildID:       guildID,
		Day:           slot.Day,
		Date:          slot.Date,
		Time:          slot.Time,
		InputTime:     slot.Time,
		GuildTimezone: tzName,
		Title:         title,
		Description:   strings.TrimSpace(in.Description),
		Author:        in.AuthorID,
		AuthorName:    in.AuthorName,
		CreatedAt:     now.UTC(),
		UpdatedAt:     now.UTC(),
	}
	e.SetInstant(slot.Instant)

	if err := s.store.AddCalendarEvent(ctx, e); err != nil {
		return models.CalendarEvent{}, fmt.Errorf("failed to save event: %w", err)
	}

	log.Printf("📅 Event %s set by %s: %s %s %s (%s)", e.ID, in.AuthorName, e.Day, e.Date, e.Time, tzName)
	return e, nil
}

// EditEvent applies a patch to an event.
//
// Changing the day re-anchors the event to that weekday of the current week.
// Changing the day or time recomputes the instant in the guild's current timezone.
// A legacy event gets an instant on its first edit.
func (s *Service) EditEvent(ctx context.Context, guildID, eventID string, actor Actor, p EventPatch, now time.Time) (models.CalendarEvent, error) {
	if p.empty() {
		return models.CalendarEvent{}, models.NewValidationError("patch", "nothing to change, provide a day, time, title or description")
	}

	e, err := s.store.GetCalendarEvent(ctx, guildID, eventID)
	if err != nil {
		return models.CalendarEvent{}, err
	}
	if !mayModify(e, actor) {
		return models.CalendarEvent{}, models.ErrForbidden
	}

	// Validate everything before touching the event
	offset := -1
	if p.Day != nil {
		if offset, err = ParseDay(*p.Day); err != nil {
			return models.CalendarEvent{}, err
		}
	}
	hhmm := ""
	if p.Time != nil {
		if hhmm, err = ParseWallClock(*p.Time); err != nil {
			return models.CalendarEvent{}, err
		}
	}
	title := ""
	if p.Title != nil {
		if title = strings.TrimSpace(*p.Title); title == "" {
			return models.CalendarEvent{}, models.NewValidationError("title", "event title cannot be empty")
		}
	}

	_, legacy := e.Instant()
	legacy = !legacy

	if offset >= 0 || hhmm != "" {
		tzName, loc, err := s.guildLocation(ctx, guildID)
		if err != nil {
			return models.CalendarEvent{}, err
		}
		if offset >= 0 {
			e.Day = Days[offset]
			e.Date = DateInWeek(now, loc, offset)
		}
		if hhmm != "" {
			e.Time = hhmm
			e.InputTime = hhmm
		}
		if err := reanchor(&e, tzName, loc); err != nil {
			return models.CalendarEvent{}, err
		}
	} else if legacy {
		// Legacy dates and times were entered in UTC
		if err := reanchor(&e, models.DefaultTimezone, time.UTC); err != nil {
			log.Printf("⚠️ Leaving legacy event %s without a timestamp: %v", e.ID, err)
		}
	}

	if p.Title != nil {
		e.Title = title
	}
	if p.Description != nil {
		e.Description = strings.TrimSpace(*p.Description)
	}
	e.UpdatedAt = now.UTC()

	if err := s.store.UpdateCalendarEvent(ctx, e); err != nil {
		return models.CalendarEvent{}, fmt.Errorf("failed to update event: %w", err)
	}

	log.Printf("✏️ Event %s edited by %s", e.ID, actor.UserID)
	return e, nil
}

// reanchor recomputes the event's instant from its date and wall-clock time in loc
func reanchor(e *models.CalendarEvent, tzName string, loc *time.Location) error {
	wall := e.WallClock()
	instant, err := WallClockInstant(e.Date, wall, loc)
	if err != nil {
		return err
	}
	e.SetInstant(instant)
	e.Time = wall
	e.InputTime = wall
	e.GuildTimezone = tzName
	return nil
}

// DeleteEvent removes an event
func (s *Service) DeleteEvent(ctx context.Context, guildID, eventID string, actor Actor) (models.CalendarEvent, error) {
	e, err := s.store.GetCalendarEvent(ctx, guildID, eventID)
	if err != nil {
		return models.CalendarEvent{}, err
	}
	if !mayModify(e, actor) {
		return models.CalendarEvent{}, models.ErrForbidden
	}
	if err := s.store.DeleteCalendarEvent(ctx, guildID, eventID); err != nil {
		return models.CalendarEvent{}, err
	}

	log.Printf("🗑️ Event %s deleted by %s", e.ID, actor.UserID)
	return e, nil
}

// GetEvent returns a single event
func (s *Service) GetEvent(ctx context.Context, guildID, eventID string) (models.CalendarEvent, error) {
	return s.store.GetCalendarEvent(ctx, guildID, eventID)
}

func mayModify(e models.CalendarEvent, actor Actor) bool {
	return actor.Admin || (actor.UserID != "" && e.Author == actor.UserID)
}

// WeekView returns the guild's current week as seen from viewerTimezone
func (s *Service) WeekView(ctx context.Context, guildID, viewerTimezone string, now time.Time) (Week, error) {
	_, guildLoc, err := s.guildLocation(ctx, guildID)
	if err != nil {
		return Week{}, err
	}
	viewerLoc, err := LoadTimezone(viewerTimezone)
	if err != nil {
		return Week{}, err
	}
	events, err := s.store.ListCalendarEvents(ctx, guildID)
	if err != nil {
		return Week{}, fmt.Errorf("failed to list events: %w", err)
	}
	return BuildWeek(events, guildLoc, viewerLoc, now), nil
}

// WeekViewFor returns the guild's current week in the user's own timezone
func (s *Service) WeekViewFor(ctx context.Context, guildID, userID string, now time.Time) (Week, error) {
	tz, err := s.UserTimezone(ctx, userID)
	if err != nil {
		return Week{}, err
	}
	if _, err := LoadTimezone(tz); err != nil {
		log.Printf("Stored timezone %q for %s is invalid, using UTC", tz, userID)
		tz = models.DefaultTimezone
	}
	return s.WeekView(ctx, guildID, tz, now)
}

// ListEvents returns every event of the guild in chronological order, displayed in viewerTimezone
func (s *Service) ListEvents(ctx context.Context, guildID, viewerTimezone string) ([]EventView, error) {
	viewerLoc, err := LoadTimezone(viewerTimezone)
	if err != nil {
		return nil, err
	}
	events, err := s.store.ListCalendarEvents(ctx, guildID)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}

	views := make([]EventView, 0, len(events))
	for _, e := range events {
		views = append(views, newEventView(e, viewerLoc))
	}
	sort.SliceStable(views, func(i, j int) bool {
		return views[i].sortKey() < views[j].sortKey()
	})
	return views, nil
}

// SetGuildTimezone validates and stores the guild's timezone. Existing events keep their instants.
func (s *Service) SetGuildTimezone(ctx context.Context, guildID, timezone string) (string, error) {
	loc, err := LoadTimezone(timezone)
	if err != nil {
		return "", err
	}
	if err := s.store.SetGuildTimezone(ctx, guildID, loc.String()); err != nil {
		return "", fmt.Errorf("failed to save guild timezone: %w", err)
	}
	return loc.String(), nil
}

// SetUserTimezone validates and stores a user's display timezone
func (s *Service) SetUserTimezone(ctx context.Context, userID, timezone string) (string, error) {
	loc, err := LoadTimezone(timezone)
	if err != nil {
		return "", err
	}
	if err := s.store.SetUserTimezone(ctx, userID, loc.String()); err != nil {
		return "", fmt.Errorf("failed to save user timezone: %w", err)
	}
	return loc.String(), nil
}

// UserTimezone returns the user's display timezone, UTC when unset
func (s *Service) UserTimezone(ctx context.Context, userID string) (string, error) {
	tz, err := s.store.GetUserTimezone(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("failed to load user timezone: %w", err)
	}
	if tz == "" {
		return models.DefaultTimezone, nil
	}
	return tz, nil
}

// GuildTimezone returns the guild's timezone, UTC when unset
func (s *Service) GuildTimezone(ctx context.Context, guildID string) (string, error) {
	name, _, err := s.guildLocation(ctx, guildID)
	return name, err
}

func (s *Service) guildLocation(ctx context.Context, guildID string) (string, *time.Location, error) {
	name, err := s.store.GuildTimezone(ctx, guildID)
	if err != nil {
		return "", nil, fmt.Errorf("failed to load guild timezone: %w", err)
	}
	loc, err := LoadTimezone(name)
	if err != nil {
		log.Printf("Stored timezone %q for guild %s is invalid, using UTC", name, guildID)
		return models.DefaultTimezone, time.UTC, nil
	}
	if name == "" {
		name = models.DefaultTimezone
	}
	return name, loc, nil
}
