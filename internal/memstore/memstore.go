// Package memstore is a process-local implementation of the bot's storage.
// It backs STORE_DRIVER=memory and is the test double for the other packages.
// Every mutation happens under one lock, so increments are atomic.
package memstore

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"voicecal/internal/models"
)

// Store keeps all records in maps guarded by a mutex
type Store struct {
	mu               sync.Mutex
	userTimes        map[string]models.UserTime
	factionTimes     map[string]int64
	factionPoints    map[string]models.FactionPoints
	botAdmins        models.BotAdmins
	guildSettings    map[string]models.GuildSettings
	calendarSettings map[string]models.CalendarSettings
	userTimezones    map[string]string
	events           map[string]map[string]models.CalendarEvent // guildID -> eventID -> event
}

// New creates an empty store
func New() *Store {
	return &Store{
		userTimes:        make(map[string]models.UserTime),
		factionTimes:     make(map[string]int64),
		factionPoints:    make(map[string]models.FactionPoints),
		guildSettings:    make(map[string]models.GuildSettings),
		calendarSettings: make(map[string]models.CalendarSettings),
		userTimezones:    make(map[string]string),
		events:           make(map[string]map[string]models.CalendarEvent),
	}
}

// IncrementUserTime folds one finished session into the user's totals
func (s *Store) IncrementUserTime(_ context.Context, userID string, d time.Duration, now time.Time) error {
	ms := d.Milliseconds()

	s.mu.Lock()
	defer s.mu.Unlock()

	ut := s.userTimes[userID]
	ut.UserID = userID
	ut.TotalMs += ms
	ut.TodayMs += ms
	ut.Sessions++
	if ms > ut.LongestMs {
		ut.LongestMs = ms
	}
	active := now.UTC()
	ut.LastActive = &active
	s.userTimes[userID] = ut
	return nil
}

// GetUserTime returns the user's totals, zero when nothing is recorded
func (s *Store) GetUserTime(_ context.Context, userID string) (models.UserTime, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ut, ok := s.userTimes[userID]
	if !ok {
		return models.UserTime{UserID: userID}, nil
	}
	return ut, nil
}

// TopUserTimes returns users ordered by total time, highest first
func (s *Store) TopUserTimes(_ context.Context, limit int) ([]models.UserTime, error) {
	s.mu.Lock()
	out := make([]models.UserTime, 0, len(s.userTimes))
	for _, ut := range s.userTimes {
		out = append(out, ut)
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalMs != out[j].TotalMs {
			return out[i].TotalMs > out[j].TotalMs
		}
		return out[i].UserID < out[j].UserID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// IncrementFactionTime adds d to the faction's total
func (s *Store) IncrementFactionTime(_ context.Context, key string, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.factionTimes[key] += d.Milliseconds()
	return nil
}

// GetFactionTimes returns every stored faction total ordered by key
func (s *Store) GetFactionTimes(_ context.Context) ([]models.FactionTime, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.FactionTime, 0, len(s.factionTimes))
	for key, ms := range s.factionTimes {
		out = append(out, models.FactionTime{Faction: key, TotalMs: ms})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Faction < out[j].Faction })
	return out, nil
}

// ResetFactionTimes zeroes every faction total
func (s *Store) ResetFactionTimes(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key := range s.factionTimes {
		s.factionTimes[key] = 0
	}
	return nil
}

// GetGuildSettings returns the guild's settings or the defaults
func (s *Store) GetGuildSettings(_ context.Context, guildID string) (models.GuildSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.guildSettingsLocked(guildID), nil
}

func (s *Store) guildSettingsLocked(guildID string) models.GuildSettings {
	if gs, ok := s.guildSettings[guildID]; ok {
		return gs
	}
	return models.DefaultGuildSettings(guildID)
}

// FactionsEnabled reports whether faction features are on for the guild
func (s *Store) FactionsEnabled(ctx context.Context, guildID string) (bool, error) {
	gs, err := s.GetGuildSettings(ctx, guildID)
	return gs.FactionsEnabled, err
}

// SetFactionsEnabled toggles faction features for the guild
func (s *Store) SetFactionsEnabled(_ context.Context, guildID string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	gs := s.guildSettingsLocked(guildID)
	gs.FactionsEnabled = enabled
	s.guildSettings[guildID] = gs
	return nil
}

// SetClockChannel sets the channel receiving clock-in announcements
func (s *Store) SetClockChannel(_ context.Context, guildID, channelID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	gs := s.guildSettingsLocked(guildID)
	gs.ClockChannelID = channelID
	s.guildSettings[guildID] = gs
	return nil
}

// GetCalendarSettings returns the guild's calendar settings or the defaults
func (s *Store) GetCalendarSettings(_ context.Context, guildID string) (models.CalendarSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.calendarSettingsLocked(guildID), nil
}

func (s *Store) calendarSettingsLocked(guildID string) models.CalendarSettings {
	if cs, ok := s.calendarSettings[guildID]; ok {
		return cs
	}
	return models.DefaultCalendarSettings(guildID)
}

// GuildTimezone returns the guild's timezone name
func (s *Store) GuildTimezone(ctx context.Context, guildID string) (string, error) {
	cs, err := s.GetCalendarSettings(ctx, guildID)
	if cs.Timezone == "" {
		return models.DefaultTimezone, err
	}
	return cs.Timezone, err
}

// SetGuildTimezone stores the guild's timezone name
func (s *Store) SetGuildTimezone(_ context.Context, guildID, timezone string) error {
	return s.updateCalendarSettings(guildID, func(cs *models.CalendarSettings) {
		cs.Timezone = timezone
	})
}

// SetCalendarChannel stores the calendar channel and forgets the old rendered message
func (s *Store) SetCalendarChannel(_ context.Context, guildID, channelID string) error {
	return s.updateCalendarSettings(guildID, func(cs *models.CalendarSettings) {
		cs.ChannelID = channelID
		cs.MessageID = ""
	})
}

// SetCalendarMessage stores the id of the rendered calendar message
func (s *Store) SetCalendarMessage(_ context.Context, guildID, messageID string) error {
	return s.updateCalendarSettings(guildID, func(cs *models.CalendarSettings) {
		cs.MessageID = messageID
	})
}

func (s *Store) updateCalendarSettings(guildID string, apply func(*models.CalendarSettings)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cs := s.calendarSettingsLocked(guildID)
	apply(&cs)
	now := time.Now().UTC()
	cs.LastUpdated = &now
	s.calendarSettings[guildID] = cs
	return nil
}

// CalendarGuilds returns the settings of every guild with a calendar channel
func (s *Store) CalendarGuilds(_ context.Context) ([]models.CalendarSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.CalendarSettings
	for _, cs := range s.calendarSettings {
		if cs.ChannelID != "" {
			out = append(out, cs)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GuildID < out[j].GuildID })
	return out, nil
}

// GetUserTimezone returns the user's timezone name, UTC when unset
func (s *Store) GetUserTimezone(_ context.Context, userID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if tz, ok := s.userTimezones[userID]; ok {
		return tz, nil
	}
	return models.DefaultTimezone, nil
}

// SetUserTimezone stores the user's timezone name
func (s *Store) SetUserTimezone(_ context.Context, userID, timezone string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.userTimezones[userID] = timezone
	return nil
}

// AddCalendarEvent stores a new event
func (s *Store) AddCalendarEvent(_ context.Context, e models.CalendarEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.events[e.GuildID] == nil {
		s.events[e.GuildID] = make(map[string]models.CalendarEvent)
	}
	s.events[e.GuildID][e.ID] = e
	return nil
}

// UpdateCalendarEvent replaces an existing event
func (s *Store) UpdateCalendarEvent(_ context.Context, e models.CalendarEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.events[e.GuildID][e.ID]; !ok {
		return &models.NotFoundError{Kind: "event", ID: e.ID}
	}
	s.events[e.GuildID][e.ID] = e
	return nil
}

// GetCalendarEvent returns one event
func (s *Store) GetCalendarEvent(_ context.Context, guildID, eventID string) (models.CalendarEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.events[guildID][eventID]
	if !ok {
		return models.CalendarEvent{}, &models.NotFoundError{Kind: "event", ID: eventID}
	}
	return e, nil
}

// ListCalendarEvents returns every event of the guild ordered by creation
func (s *Store) ListCalendarEvents(_ context.Context, guildID string) ([]models.CalendarEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.CalendarEvent, 0, len(s.events[guildID]))
	for _, e := range s.events[guildID] {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// DeleteCalendarEvent removes one event
func (s *Store) DeleteCalendarEvent(_ context.Context, guildID, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.events[guildID][eventID]; !ok {
		return &models.NotFoundError{Kind: "event", ID: eventID}
	}
	delete(s.events[guildID], eventID)
	return nil
}

// IncrementFactionPoints adds to a faction's points, victories and activities
func (s *Store) IncrementFactionPoints(_ context.Context, key string, points, victories, activities int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	fp := s.factionPoints[key]
	fp.Faction = key
	fp.Points += points
	fp.Victories += victories
	fp.Activities += activities
	s.factionPoints[key] = fp
	return nil
}

// GetFactionPoints returns every stored faction record, most points first
func (s *Store) GetFactionPoints(_ context.Context) ([]models.FactionPoints, error) {
	s.mu.Lock()
	out := make([]models.FactionPoints, 0, len(s.factionPoints))
	for _, fp := range s.factionPoints {
		out = append(out, fp)
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Points != out[j].Points {
			return out[i].Points > out[j].Points
		}
		return out[i].Faction < out[j].Faction
	})
	return out, nil
}

// GetBotAdmins returns the granted bot administrators
func (s *Store) GetBotAdmins(_ context.Context) (models.BotAdmins, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return models.BotAdmins{
		UserIDs: append([]string(nil), s.botAdmins.UserIDs...),
		RoleIDs: append([]string(nil), s.botAdmins.RoleIDs...),
	}, nil
}

// AddBotAdmin grants bot administrator rights, reporting false when already granted
func (s *Store) AddBotAdmin(_ context.Context, kind models.AdminKind, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.adminListLocked(kind)
	if slices.Contains(*list, id) {
		return false, nil
	}
	*list = append(*list, id)
	return true, nil
}

// RemoveBotAdmin revokes bot administrator rights, reporting false when none were granted
func (s *Store) RemoveBotAdmin(_ context.Context, kind models.AdminKind, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.adminListLocked(kind)
	i := slices.Index(*list, id)
	if i < 0 {
		return false, nil
	}
	*list = slices.Delete(*list, i, i+1)
	return true, nil
}

func (s *Store) adminListLocked(kind models.AdminKind) *[]string {
	if kind == models.AdminRole {
		return &s.botAdmins.RoleIDs
	}
	return &s.botAdmins.UserIDs
}
