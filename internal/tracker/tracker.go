// Package tracker accumulates voice channel time.
//
// A member is either idle or in exactly one voice channel. Joining opens a
// session, leaving closes it and folds its duration into the member's totals
// and, when faction features are on, into their faction's total. Moving to
// another channel closes the current session and opens a new one in the same
// step. All totals are changed with atomic increments in the store.
package tracker

import (
	"context"
	"fmt"
	"log"
	"time"

	"voicecal/internal/faction"
	"voicecal/internal/models"
	"voicecal/pkg/utils"
)

// Member is the part of a guild member the tracker needs
type Member struct {
	GuildID     string
	UserID      string
	Username    string
	DisplayName string
	RoleNames   []string
}

// Channel identifies a voice channel
type Channel struct {
	ID   string
	Name string
}

// TimeStore applies atomic increments to cumulative counters
type TimeStore interface {
	IncrementUserTime(ctx context.Context, userID string, d time.Duration, now time.Time) error
	IncrementFactionTime(ctx context.Context, key string, d time.Duration) error
}

// SettingsStore answers whether faction features are on for a guild
type SettingsStore interface {
	FactionsEnabled(ctx context.Context, guildID string) (bool, error)
}

// FactionResolver maps role names to a faction
type FactionResolver interface {
	Resolve(roleNames []string) (faction.Faction, bool)
}

// Notifier sends best-effort announcements. A nil faction means the member has none.
type Notifier interface {
	ClockIn(ctx context.Context, m Member, ch Channel, f *faction.Faction) models.NotifyResult
	ClockOut(ctx context.Context, m Member, ch Channel, d time.Duration, f *faction.Faction) models.NotifyResult
	Switch(ctx context.Context, m Member, from, to Channel, d time.Duration, f *faction.Faction) models.NotifyResult
	DirectMessage(ctx context.Context, m Member, d time.Duration, f *faction.Faction) models.NotifyResult
}

// Tracker handles voice transitions
type Tracker struct {
	sessions SessionStore
	times    TimeStore
	settings SettingsStore
	factions FactionResolver
	notifier Notifier
}

// New creates a tracker
func New(sessions SessionStore, times TimeStore, settings SettingsStore, factions FactionResolver, notifier Notifier) *Tracker {
	return &Tracker{
		sessions: sessions,
		times:    times,
		settings: settings,
		factions: factions,
		notifier: notifier,
	}
}

// Elapsed returns now - start, never negative
func Elapsed(start, now time.Time) time.Duration {
	d := now.Sub(start)
	if d < 0 {
		return 0
	}
	return d
}

// OnJoin opens a session for a member who entered voice
func (t *Tracker) OnJoin(ctx context.Context, m Member, ch Channel, now time.Time) error {
	created, err := t.sessions.Open(ctx, models.VoiceSession{
		GuildID:   m.GuildID,
		UserID:    m.UserID,
		ChannelID: ch.ID,
		Start:     now.UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to open voice session: %w", err)
	}
	if !created {
		return models.ErrSessionOpen
	}

	log.Printf("➡️ Join: %s channel=%s", m.Username, ch.Name)

	_, f := t.attribution(ctx, m)
	t.report("clock-in", m, t.notifier.ClockIn(ctx, m, ch, f))
	return nil
}

// OnLeave closes the member's session and returns its duration
func (t *Tracker) OnLeave(ctx context.Context, m Member, ch Channel, now time.Time) (time.Duration, error) {
	s, ok, err := t.sessions.Take(ctx, m.GuildID, m.UserID)
	if err != nil {
		return 0, fmt.Errorf("failed to close voice session: %w", err)
	}
	if !ok {
		return 0, &models.NotFoundError{Kind: "voice session", ID: m.UserID}
	}
	if ch.ID == "" {
		ch.ID = s.ChannelID
	}

	d := Elapsed(s.Start, now)
	enabled, f := t.fold(ctx, m, d, now)

	t.report("clock-out", m, t.notifier.ClockOut(ctx, m, ch, d, f))
	if enabled {
		t.report("direct message", m, t.notifier.DirectMessage(ctx, m, d, f))
	}

	log.Printf("⬅️ Leave: %s, +%s channel=%s", m.Username, utils.FormatDuration(d), ch.Name)
	return d, nil
}

// OnSwitch closes the session in the old channel and opens one in the new channel.
// A member without an open session starts being tracked from now.
func (t *Tracker) OnSwitch(ctx context.Context, m Member, from, to Channel, now time.Time) (time.Duration, error) {
	prev, ok, err := t.sessions.Replace(ctx, models.VoiceSession{
		GuildID:   m.GuildID,
		UserID:    m.UserID,
		ChannelID: to.ID,
		Start:     now.UTC(),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to switch voice session: %w", err)
	}
	if !ok {
		log.Printf("🔀 Switch: %s had no open session, tracking %s from now", m.Username, to.Name)
		return 0, nil
	}

	d := Elapsed(prev.Start, now)
	_, f := t.fold(ctx, m, d, now)

	t.report("switch", m, t.notifier.Switch(ctx, m, from, to, d, f))

	log.Printf("🔀 Switch: %s %s → %s (%s)", m.Username, from.Name, to.Name, utils.FormatDuration(d))
	return d, nil
}

// OpenChannel returns the channel of the member's open session
func (t *Tracker) OpenChannel(ctx context.Context, guildID, userID string) (string, bool) {
	s, ok, err := t.sessions.Get(ctx, guildID, userID)
	if err != nil {
		log.Printf("Error reading voice session for %s: %v", userID, err)
		return "", false
	}
	return s.ChannelID, ok
}

// fold adds d to the member's totals and to their faction when attribution applies.
// Increment failures are logged and the duration is dropped.
func (t *Tracker) fold(ctx context.Context, m Member, d time.Duration, now time.Time) (bool, *faction.Faction) {
	if err := t.times.IncrementUserTime(ctx, m.UserID, d, now); err != nil {
		log.Printf("❌ Error adding voice time for %s: %v", m.Username, err)
	}

	enabled, f := t.attribution(ctx, m)
	if f != nil {
		if err := t.times.IncrementFactionTime(ctx, f.Key, d); err != nil {
			log.Printf("❌ Error adding faction time for %s (%s): %v", m.Username, f.Name, err)
		}
	}
	return enabled, f
}

// attribution reports whether factions are on for the member's guild and the faction they count for
func (t *Tracker) attribution(ctx context.Context, m Member) (bool, *faction.Faction) {
	enabled, err := t.settings.FactionsEnabled(ctx, m.GuildID)
	if err != nil {
		log.Printf("Error reading faction settings for guild %s: %v", m.GuildID, err)
		return false, nil
	}
	if !enabled {
		return false, nil
	}
	f, ok := t.factions.Resolve(m.RoleNames)
	if !ok {
		return true, nil
	}
	return true, &f
}

func (t *Tracker) report(kind string, m Member, res models.NotifyResult) {
	if res.Err != nil {
		log.Printf("⚠️ Could not send %s for %s: %v", kind, m.Username, res.Err)
	}
}
