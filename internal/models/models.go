package models

import "time"

// VoiceSession represents a user's open voice channel session
type VoiceSession struct {
	GuildID   string    `json:"guild_id"`
	UserID    string    `json:"user_id"`
	ChannelID string    `json:"channel_id"`
	Start     time.Time `json:"start"`
}

// UserTime represents the cumulative voice time of a user.
// Durations are stored in milliseconds.
type UserTime struct {
	UserID     string     `bson:"userId"`
	TotalMs    int64      `bson:"totalTime"`
	Sessions   int64      `bson:"sessions"`
	LongestMs  int64      `bson:"longestSession"`
	TodayMs    int64      `bson:"todayTime"`
	LastActive *time.Time `bson:"lastActive,omitempty"`
}

// Total returns the cumulative time as a duration
func (u UserTime) Total() time.Duration {
	return time.Duration(u.TotalMs) * time.Millisecond
}

// Longest returns the longest single session as a duration
func (u UserTime) Longest() time.Duration {
	return time.Duration(u.LongestMs) * time.Millisecond
}

// Today returns the time accumulated in todayTime as a duration
func (u UserTime) Today() time.Duration {
	return time.Duration(u.TodayMs) * time.Millisecond
}

// Average returns the mean session length, zero when there are no sessions
func (u UserTime) Average() time.Duration {
	if u.Sessions == 0 {
		return 0
	}
	return time.Duration(u.TotalMs/u.Sessions) * time.Millisecond
}

// FactionTime represents the cumulative voice time attributed to a faction
type FactionTime struct {
	Faction string `bson:"faction"`
	TotalMs int64  `bson:"totalTime"`
}

// GuildSettings holds per-guild feature flags and channels
type GuildSettings struct {
	GuildID         string `bson:"guildId"`
	FactionsEnabled bool   `bson:"factionsEnabled"`
	ClockChannelID  string `bson:"clockInChannelId"`
}

// DefaultGuildSettings returns the settings used when a guild has none stored
func DefaultGuildSettings(guildID string) GuildSettings {
	return GuildSettings{GuildID: guildID, FactionsEnabled: true}
}

// CalendarSettings holds the calendar channel, its rendered message and the guild timezone
type CalendarSettings struct {
	GuildID     string     `bson:"guildId"`
	ChannelID   string     `bson:"calendarChannelId"`
	MessageID   string     `bson:"calendarMessageId"`
	Timezone    string     `bson:"guildTimezone"`
	LastUpdated *time.Time `bson:"lastUpdated,omitempty"`
}

// DefaultTimezone is used for guilds and users without a stored preference
const DefaultTimezone = "UTC"

// DefaultCalendarSettings returns the settings used when a guild has none stored
func DefaultCalendarSettings(guildID string) CalendarSettings {
	return CalendarSettings{GuildID: guildID, Timezone: DefaultTimezone}
}

// FactionPoints is a faction's record in the points competition.
// Unlike FactionTime it is never reset.
type FactionPoints struct {
	Faction    string `bson:"faction"`
	Points     int64  `bson:"points"`
	Victories  int64  `bson:"victories"`
	Activities int64  `bson:"activities"`
}

// Level is one plus a level per hundred points
func (p FactionPoints) Level() int64 {
	if p.Points < 0 {
		return 1
	}
	return p.Points/100 + 1
}

// AdminKind says whether a bot administrator entry names a user or a role
type AdminKind string

const (
	AdminUser AdminKind = "user"
	AdminRole AdminKind = "role"
)

// BotAdmins lists the users and roles granted bot administrator rights
// on top of the guild owner and Discord administrators.
type BotAdmins struct {
	UserIDs []string
	RoleIDs []string
}

// Allows reports whether the user, or any of the given roles, is listed
func (a BotAdmins) Allows(userID string, roleIDs []string) bool {
	for _, id := range a.UserIDs {
		if id == userID {
			return true
		}
	}
	for _, held := range roleIDs {
		for _, id := range a.RoleIDs {
			if id == held {
				return true
			}
		}
	}
	return false
}
