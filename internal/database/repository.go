package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"voicecal/internal/models"
)

// Repository handles database operations
type Repository struct {
	db *DB
}

// NewRepository creates a new repository
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// IncrementUserTime folds one finished session into the user's totals
func (r *Repository) IncrementUserTime(ctx context.Context, userID string, d time.Duration, now time.Time) error {
	_, err := r.db.conn.ExecContext(ctx, `
		INSERT INTO user_times (user_id, total_ms, sessions, longest_ms, today_ms, last_active)
		VALUES ($1, $2, 1, $2, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET
			total_ms = user_times.total_ms + EXCLUDED.total_ms,
			sessions = user_times.sessions + 1,
			longest_ms = GREATEST(user_times.longest_ms, EXCLUDED.longest_ms),
			today_ms = user_times.today_ms + EXCLUDED.today_ms,
			last_active = EXCLUDED.last_active`,
		userID, d.Milliseconds(), now.UTC())
	if err != nil {
		return fmt.Errorf("failed to add user time: %w", err)
	}
	return nil
}

// GetUserTime returns the user's totals, zero when nothing is recorded
func (r *Repository) GetUserTime(ctx context.Context, userID string) (models.UserTime, error) {
	ut := models.UserTime{UserID: userID}
	var lastActive sql.NullTime
	err := r.db.conn.QueryRowContext(ctx,
		"SELECT total_ms, sessions, longest_ms, today_ms, last_active FROM user_times WHERE user_id = $1",
		userID).Scan(&ut.TotalMs, &ut.Sessions, &ut.LongestMs, &ut.TodayMs, &lastActive)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return ut, fmt.Errorf("failed to get user time: %w", err)
	}
	if lastActive.Valid {
		t := lastActive.Time.UTC()
		ut.LastActive = &t
	}
	return ut, nil
}

// TopUserTimes returns users ordered by total time, highest first
func (r *Repository) TopUserTimes(ctx context.Context, limit int) ([]models.UserTime, error) {
	rows, err := r.db.conn.QueryContext(ctx,
		"SELECT user_id, total_ms, sessions, longest_ms, today_ms FROM user_times ORDER BY total_ms DESC, user_id LIMIT $1",
		limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get top user times: %w", err)
	}
	defer rows.Close()

	var out []models.UserTime
	for rows.Next() {
		var ut models.UserTime
		if err := rows.Scan(&ut.UserID, &ut.TotalMs, &ut.Sessions, &ut.LongestMs, &ut.TodayMs); err != nil {
			log.Printf("Error scanning user time row: %v", err)
			continue
		}
		out = append(out, ut)
	}
	return out, rows.Err()
}

// IncrementFactionTime adds d to the faction's total
func (r *Repository) IncrementFactionTime(ctx context.Context, key string, d time.Duration) error {
	_, err := r.db.conn.ExecContext(ctx, `
		INSERT INTO faction_times (faction, total_ms)
		VALUES ($1, $2)
		ON CONFLICT (faction) DO UPDATE SET total_ms = faction_times.total_ms + EXCLUDED.total_ms`,
		key, d.Milliseconds())
	if err != nil {
		return fmt.Errorf("failed to add faction time: %w", err)
	}
	return nil
}

// GetFactionTimes returns every stored faction total ordered by key
func (r *Repository) GetFactionTimes(ctx context.Context) ([]models.FactionTime, error) {
	rows, err := r.db.conn.QueryContext(ctx, "SELECT faction, total_ms FROM faction_times ORDER BY faction")
	if err != nil {
		return nil, fmt.Errorf("failed to get faction times: %w", err)
	}
	defer rows.Close()

	var out []models.FactionTime
	for rows.Next() {
		var ft models.FactionTime
		if err := rows.Scan(&ft.Faction, &ft.TotalMs); err != nil {
			log.Printf("Error scanning faction time row: %v", err)
			continue
		}
		out = append(out, ft)
	}
	return out, rows.Err()
}

// ResetFactionTimes zeroes every faction total
func (r *Repository) ResetFactionTimes(ctx context.Context) error {
	if _, err := r.db.conn.ExecContext(ctx, "UPDATE faction_times SET total_ms = 0"); err != nil {
		return fmt.Errorf("failed to reset faction times: %w", err)
	}
	return nil
}

// IncrementFactionPoints adds to a faction's points, victories and activities
func (r *Repository) IncrementFactionPoints(ctx context.Context, key string, points, victories, activities int64) error {
	_, err := r.db.conn.ExecContext(ctx, `
		INSERT INTO faction_points (faction, points, victories, activities)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (faction) DO UPDATE SET
			points = faction_points.points + EXCLUDED.points,
			victories = faction_points.victories + EXCLUDED.victories,
			activities = faction_points.activities + EXCLUDED.activities`,
		key, points, victories, activities)
	if err != nil {
		return fmt.Errorf("failed to add faction points: %w", err)
	}
	return nil
}

// GetFactionPoints returns every stored faction record, most points first
func (r *Repository) GetFactionPoints(ctx context.Context) ([]models.FactionPoints, error) {
	rows, err := r.db.conn.QueryContext(ctx,
		"SELECT faction, points, victories, activities FROM faction_points ORDER BY points DESC, faction")
	if err != nil {
		return nil, fmt.Errorf("failed to get faction points: %w", err)
	}
	defer rows.Close()

	var out []models.FactionPoints
	for rows.Next() {
		var fp models.FactionPoints
		if err := rows.Scan(&fp.Faction, &fp.Points, &fp.Victories, &fp.Activities); err != nil {
			log.Printf("Error scanning faction points row: %v", err)
			continue
		}
		out = append(out, fp)
	}
	return out, rows.Err()
}

// GetBotAdmins returns the granted bot administrators
func (r *Repository) GetBotAdmins(ctx context.Context) (models.BotAdmins, error) {
	var admins models.BotAdmins
	rows, err := r.db.conn.QueryContext(ctx, "SELECT kind, subject_id FROM bot_admins ORDER BY kind, subject_id")
	if err != nil {
		return admins, fmt.Errorf("failed to get bot admins: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var kind, id string
		if err := rows.Scan(&kind, &id); err != nil {
			log.Printf("Error scanning bot admin row: %v", err)
			continue
		}
		if models.AdminKind(kind) == models.AdminRole {
			admins.RoleIDs = append(admins.RoleIDs, id)
		} else {
			admins.UserIDs = append(admins.UserIDs, id)
		}
	}
	return admins, rows.Err()
}

// AddBotAdmin grants bot administrator rights, reporting false when already granted
func (r *Repository) AddBotAdmin(ctx context.Context, kind models.AdminKind, id string) (bool, error) {
	res, err := r.db.conn.ExecContext(ctx,
		"INSERT INTO bot_admins (kind, subject_id) VALUES ($1, $2) ON CONFLICT DO NOTHING",
		string(kind), id)
	if err != nil {
		return false, fmt.Errorf("failed to add bot admin: %w", err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// RemoveBotAdmin revokes bot administrator rights, reporting false when none were granted
func (r *Repository) RemoveBotAdmin(ctx context.Context, kind models.AdminKind, id string) (bool, error) {
	res, err := r.db.conn.ExecContext(ctx,
		"DELETE FROM bot_admins WHERE kind = $1 AND subject_id = $2",
		string(kind), id)
	if err != nil {
		return false, fmt.Errorf("failed to remove bot admin: %w", err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// GetGuildSettings returns the guild's settings or the defaults
func (r *Repository) GetGuildSettings(ctx context.Context, guildID string) (models.GuildSettings, error) {
	gs := models.DefaultGuildSettings(guildID)
	err := r.db.conn.QueryRowContext(ctx,
		"SELECT factions_enabled, clock_channel_id FROM guild_settings WHERE guild_id = $1",
		guildID).Scan(&gs.FactionsEnabled, &gs.ClockChannelID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return gs, fmt.Errorf("failed to get guild settings: %w", err)
	}
	return gs, nil
}

// FactionsEnabled reports whether faction features are on for the guild
func (r *Repository) FactionsEnabled(ctx context.Context, guildID string) (bool, error) {
	gs, err := r.GetGuildSettings(ctx, guildID)
	return gs.FactionsEnabled, err
}

// SetFactionsEnabled toggles faction features for the guild
func (r *Repository) SetFactionsEnabled(ctx context.Context, guildID string, enabled bool) error {
	_, err := r.db.conn.ExecContext(ctx, `
		INSERT INTO guild_settings (guild_id, factions_enabled)
		VALUES ($1, $2)
		ON CONFLICT (guild_id) DO UPDATE SET factions_enabled = EXCLUDED.factions_enabled`,
		guildID, enabled)
	if err != nil {
		return fmt.Errorf("failed to set factions enabled: %w", err)
	}
	return nil
}

// SetClockChannel sets the channel receiving clock-in announcements
func (r *Repository) SetClockChannel(ctx context.Context, guildID, channelID string) error {
	_, err := r.db.conn.ExecContext(ctx, `
		INSERT INTO guild_settings (guild_id, clock_channel_id)
		VALUES ($1, $2)
		ON CONFLICT (guild_id) DO UPDATE SET clock_channel_id = EXCLUDED.clock_channel_id`,
		guildID, channelID)
	if err != nil {
		return fmt.Errorf("failed to set clock channel: %w", err)
	}
	return nil
}

// GetCalendarSettings returns the guild's calendar settings or the defaults
func (r *Repository) GetCalendarSettings(ctx context.Context, guildID string) (models.CalendarSettings, error) {
	cs := models.DefaultCalendarSettings(guildID)
	var lastUpdated sql.NullTime
	err := r.db.conn.QueryRowContext(ctx,
		"SELECT channel_id, message_id, timezone, last_updated FROM calendar_settings WHERE guild_id = $1",
		guildID).Scan(&cs.ChannelID, &cs.MessageID, &cs.Timezone, &lastUpdated)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return cs, fmt.Errorf("failed to get calendar settings: %w", err)
	}
	if lastUpdated.Valid {
		t := lastUpdated.Time.UTC()
		cs.LastUpdated = &t
	}
	return cs, nil
}

// GuildTimezone returns the guild's timezone name
func (r *Repository) GuildTimezone(ctx context.Context, guildID string) (string, error) {
	cs, err := r.GetCalendarSettings(ctx, guildID)
	if cs.Timezone == "" {
		return models.DefaultTimezone, err
	}
	return cs.Timezone, err
}

// SetGuildTimezone stores the guild's timezone name
func (r *Repository) SetGuildTimezone(ctx context.Context, guildID, timezone string) error {
	_, err := r.db.conn.ExecContext(ctx, `
		INSERT INTO calendar_settings (guild_id, timezone, last_updated)
		VALUES ($1, $2, NOW())
		ON CONFLICT (guild_id) DO UPDATE SET timezone = EXCLUDED.timezone, last_updated = NOW()`,
		guildID, timezone)
	if err != nil {
		return fmt.Errorf("failed to set guild timezone: %w", err)
	}
	return nil
}

// SetCalendarChannel stores the calendar channel and forgets the old rendered message
func (r *Repository) SetCalendarChannel(ctx context.Context, guildID, channelID string) error {
	_, err := r.db.conn.ExecContext(ctx, `
		INSERT INTO calendar_settings (guild_id, channel_id, message_id, last_updated)
		VALUES ($1, $2, '', NOW())
		ON CONFLICT (guild_id) DO UPDATE SET channel_id = EXCLUDED.channel_id, message_id = '', last_updated = NOW()`,
		guildID, channelID)
	if err != nil {
		return fmt.Errorf("failed to set calendar channel: %w", err)
	}
	return nil
}

// SetCalendarMessage stores the id of the rendered calendar message
func (r *Repository) SetCalendarMessage(ctx context.Context, guildID, messageID string) error {
	_, err := r.db.conn.ExecContext(ctx, `
		INSERT INTO calendar_settings (guild_id, message_id, last_updated)
		VALUES ($1, $2, NOW())
		ON CONFLICT (guild_id) DO UPDATE SET message_id = EXCLUDED.message_id, last_updated = NOW()`,
		guildID, messageID)
	if err != nil {
		return fmt.Errorf("failed to set calendar message: %w", err)
	}
	return nil
}

// CalendarGuilds returns the settings of every guild with a calendar channel
func (r *Repository) CalendarGuilds(ctx context.Context) ([]models.CalendarSettings, error) {
	rows, err := r.db.conn.QueryContext(ctx,
		"SELECT guild_id, channel_id, message_id, timezone FROM calendar_settings WHERE channel_id <> '' ORDER BY guild_id")
	if err != nil {
		return nil, fmt.Errorf("failed to get calendar guilds: %w", err)
	}
	defer rows.Close()

	var out []models.CalendarSettings
	for rows.Next() {
		var cs models.CalendarSettings
		if err := rows.Scan(&cs.GuildID, &cs.ChannelID, &cs.MessageID, &cs.Timezone); err != nil {
			log.Printf("Error scanning calendar settings row: %v", err)
			continue
		}
		out = append(out, cs)
	}
	return out, rows.Err()
}

// GetUserTimezone returns the user's timezone name, UTC when unset
func (r *Repository) GetUserTimezone(ctx context.Context, userID string) (string, error) {
	var tz string
	err := r.db.conn.QueryRowContext(ctx,
		"SELECT timezone FROM user_timezones WHERE user_id = $1", userID).Scan(&tz)
	if errors.Is(err, sql.ErrNoRows) {
		return models.DefaultTimezone, nil
	}
	if err != nil {
		return models.DefaultTimezone, fmt.Errorf("failed to get user timezone: %w", err)
	}
	return tz, nil
}

// SetUserTimezone stores the user's timezone name
func (r *Repository) SetUserTimezone(ctx context.Context, userID, timezone string) error {
	_, err := r.db.conn.ExecContext(ctx, `
		INSERT INTO user_timezones (user_id, timezone)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET timezone = EXCLUDED.timezone`,
		userID, timezone)
	if err != nil {
		return fmt.Errorf("failed to set user timezone: %w", err)
	}
	return nil
}

const eventColumns = `id, guild_id, day, date, time, input_time, utc_ts, guild_timezone,
	title, description, author, author_name, created_at, updated_at`

// AddCalendarEvent stores a new event
func (r *Repository) AddCalendarEvent(ctx context.Context, e models.CalendarEvent) error {
	_, err := r.db.conn.ExecContext(ctx, `
		INSERT INTO calendar_events (`+eventColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		e.ID, e.GuildID, e.Day, e.Date, e.Time, e.InputTime, nullInt64(e.UTCTimestamp), e.GuildTimezone,
		e.Title, e.Description, e.Author, e.AuthorName, e.CreatedAt, e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to add calendar event: %w", err)
	}
	return nil
}

// UpdateCalendarEvent replaces an existing event
func (r *Repository) UpdateCalendarEvent(ctx context.Context, e models.CalendarEvent) error {
	res, err := r.db.conn.ExecContext(ctx, `
		UPDATE calendar_events SET
			day = $3, date = $4, time = $5, input_time = $6, utc_ts = $7, guild_timezone = $8,
			title = $9, description = $10, updated_at = $11
		WHERE guild_id = $1 AND id = $2`,
		e.GuildID, e.ID, e.Day, e.Date, e.Time, e.InputTime, nullInt64(e.UTCTimestamp), e.GuildTimezone,
		e.Title, e.Description, e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update calendar event: %w", err)
	}
	return expectRow(res, e.ID)
}

// GetCalendarEvent returns one event
func (r *Repository) GetCalendarEvent(ctx context.Context, guildID, eventID string) (models.CalendarEvent, error) {
	row := r.db.conn.QueryRowContext(ctx,
		"SELECT "+eventColumns+" FROM calendar_events WHERE guild_id = $1 AND id = $2",
		guildID, eventID)
	e, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.CalendarEvent{}, &models.NotFoundError{Kind: "event", ID: eventID}
	}
	if err != nil {
		return models.CalendarEvent{}, fmt.Errorf("failed to get calendar event: %w", err)
	}
	return e, nil
}

// ListCalendarEvents returns every event of the guild ordered by creation
func (r *Repository) ListCalendarEvents(ctx context.Context, guildID string) ([]models.CalendarEvent, error) {
	rows, err := r.db.conn.QueryContext(ctx,
		"SELECT "+eventColumns+" FROM calendar_events WHERE guild_id = $1 ORDER BY created_at, id",
		guildID)
	if err != nil {
		return nil, fmt.Errorf("failed to list calendar events: %w", err)
	}
	defer rows.Close()

	var out []models.CalendarEvent
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			log.Printf("Error scanning calendar event row: %v", err)
			continue
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// DeleteCalendarEvent removes one event
func (r *Repository) DeleteCalendarEvent(ctx context.Context, guildID, eventID string) error {
	res, err := r.db.conn.ExecContext(ctx,
		"DELETE FROM calendar_events WHERE guild_id = $1 AND id = $2", guildID, eventID)
	if err != nil {
		return fmt.Errorf("failed to delete calendar event: %w", err)
	}
	return expectRow(res, eventID)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (models.CalendarEvent, error) {
	var e models.CalendarEvent
	var ts sql.NullInt64
	err := row.Scan(&e.ID, &e.GuildID, &e.Day, &e.Date, &e.Time, &e.InputTime, &ts, &e.GuildTimezone,
		&e.Title, &e.Description, &e.Author, &e.AuthorName, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return e, err
	}
	if ts.Valid {
		v := ts.Int64
		e.UTCTimestamp = &v
	}
	return e, nil
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func expectRow(res sql.Result, eventID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return &models.NotFoundError{Kind: "event", ID: eventID}
	}
	return nil
}
