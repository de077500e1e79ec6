// Package mongostore implements the bot's storage on MongoDB.
// Collection and field names match the documents written by earlier
// versions of the bot so existing databases keep working.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"voicecal/internal/models"
)

const (
	userTimesCollection        = "userTimes"
	factionTimesCollection     = "factionTimes"
	calendarEventsCollection   = "calendarEvents"
	calendarSettingsCollection = "calendarSettings"
	guildSettingsCollection    = "guildSettings"
	userTimezonesCollection    = "userTimezones"
	factionPointsCollection    = "factionPoints"
	botAdminsCollection        = "botAdmins"

	// Bot administrators live in one global document
	botAdminsDocID = "admins"
)

// Store wraps a MongoDB database
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// Connect opens a client, checks it and ensures indexes
func Connect(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	s := &Store{client: client, db: client.Database(database)}
	s.ensureIndexes(ctx)
	return s, nil
}

// Close disconnects the client
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *Store) ensureIndexes(ctx context.Context) {
	indexes := map[string]mongo.IndexModel{
		userTimesCollection:        {Keys: bson.D{{Key: "userId", Value: 1}}, Options: options.Index().SetUnique(true)},
		factionTimesCollection:     {Keys: bson.D{{Key: "faction", Value: 1}}, Options: options.Index().SetUnique(true)},
		factionPointsCollection:    {Keys: bson.D{{Key: "faction", Value: 1}}, Options: options.Index().SetUnique(true)},
		calendarSettingsCollection: {Keys: bson.D{{Key: "guildId", Value: 1}}, Options: options.Index().SetUnique(true)},
		guildSettingsCollection:    {Keys: bson.D{{Key: "guildId", Value: 1}}, Options: options.Index().SetUnique(true)},
		userTimezonesCollection:    {Keys: bson.D{{Key: "userId", Value: 1}}, Options: options.Index().SetUnique(true)},
		calendarEventsCollection:   {Keys: bson.D{{Key: "guildId", Value: 1}, {Key: "createdAt", Value: 1}}},
	}
	for name, index := range indexes {
		if _, err := s.db.Collection(name).Indexes().CreateOne(ctx, index); err != nil {
			log.Printf("Warning: could not create index on %s: %v", name, err)
		}
	}
}

func (s *Store) coll(name string) *mongo.Collection {
	return s.db.Collection(name)
}

var upsert = options.Update().SetUpsert(true)

// IncrementUserTime folds one finished session into the user's totals
func (s *Store) IncrementUserTime(ctx context.Context, userID string, d time.Duration, now time.Time) error {
	ms := d.Milliseconds()
	_, err := s.coll(userTimesCollection).UpdateOne(ctx,
		bson.M{"userId": userID},
		bson.M{
			"$inc": bson.M{"totalTime": ms, "sessions": 1, "todayTime": ms},
			"$max": bson.M{"longestSession": ms},
			"$set": bson.M{"lastActive": now.UTC()},
		},
		upsert)
	if err != nil {
		return fmt.Errorf("failed to add user time: %w", err)
	}
	return nil
}

// GetUserTime returns the user's totals, zero when nothing is recorded
func (s *Store) GetUserTime(ctx context.Context, userID string) (models.UserTime, error) {
	var ut models.UserTime
	err := s.coll(userTimesCollection).FindOne(ctx, bson.M{"userId": userID}).Decode(&ut)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.UserTime{UserID: userID}, nil
	}
	if err != nil {
		return models.UserTime{UserID: userID}, fmt.Errorf("failed to get user time: %w", err)
	}
	return ut, nil
}

// TopUserTimes returns users ordered by total time, highest first
func (s *Store) TopUserTimes(ctx context.Context, limit int) ([]models.UserTime, error) {
	opts := options.Find().SetSort(bson.D{{Key: "totalTime", Value: -1}, {Key: "userId", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cursor, err := s.coll(userTimesCollection).Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to get top user times: %w", err)
	}
	var out []models.UserTime
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("failed to decode user times: %w", err)
	}
	return out, nil
}

// IncrementFactionTime adds d to the faction's total
func (s *Store) IncrementFactionTime(ctx context.Context, key string, d time.Duration) error {
	_, err := s.coll(factionTimesCollection).UpdateOne(ctx,
		bson.M{"faction": key},
		bson.M{"$inc": bson.M{"totalTime": d.Milliseconds()}},
		upsert)
	if err != nil {
		return fmt.Errorf("failed to add faction time: %w", err)
	}
	return nil
}

// GetFactionTimes returns every stored faction total ordered by key
func (s *Store) GetFactionTimes(ctx context.Context) ([]models.FactionTime, error) {
	cursor, err := s.coll(factionTimesCollection).Find(ctx, bson.M{},
		options.Find().SetSort(bson.D{{Key: "faction", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to get faction times: %w", err)
	}
	var out []models.FactionTime
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("failed to decode faction times: %w", err)
	}
	return out, nil
}

// ResetFactionTimes zeroes every faction total
func (s *Store) ResetFactionTimes(ctx context.Context) error {
	_, err := s.coll(factionTimesCollection).UpdateMany(ctx, bson.M{}, bson.M{"$set": bson.M{"totalTime": int64(0)}})
	if err != nil {
		return fmt.Errorf("failed to reset faction times: %w", err)
	}
	return nil
}

// IncrementFactionPoints adds to a faction's points, victories and activities
func (s *Store) IncrementFactionPoints(ctx context.Context, key string, points, victories, activities int64) error {
	_, err := s.coll(factionPointsCollection).UpdateOne(ctx,
		bson.M{"faction": key},
		bson.M{"$inc": bson.M{"points": points, "victories": victories, "activities": activities}},
		upsert)
	if err != nil {
		return fmt.Errorf("failed to add faction points: %w", err)
	}
	return nil
}

// GetFactionPoints returns every stored faction record, most points first
func (s *Store) GetFactionPoints(ctx context.Context) ([]models.FactionPoints, error) {
	cursor, err := s.coll(factionPointsCollection).Find(ctx, bson.M{},
		options.Find().SetSort(bson.D{{Key: "points", Value: -1}, {Key: "faction", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to get faction points: %w", err)
	}
	var out []models.FactionPoints
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("failed to decode faction points: %w", err)
	}
	return out, nil
}

// botAdminsDoc is the stored admin list. Older versions kept users in adminIds.
type botAdminsDoc struct {
	Users  []string `bson:"adminUsers"`
	Roles  []string `bson:"adminRoles"`
	Legacy []string `bson:"adminIds"`
}

// GetBotAdmins returns the granted bot administrators
func (s *Store) GetBotAdmins(ctx context.Context) (models.BotAdmins, error) {
	var doc botAdminsDoc
	err := s.coll(botAdminsCollection).FindOne(ctx, bson.M{"_id": botAdminsDocID}).Decode(&doc)
	if err != nil && !errors.Is(err, mongo.ErrNoDocuments) {
		return models.BotAdmins{}, fmt.Errorf("failed to get bot admins: %w", err)
	}

	users := append([]string(nil), doc.Users...)
	for _, id := range doc.Legacy {
		if !slices.Contains(users, id) {
			users = append(users, id)
		}
	}
	return models.BotAdmins{UserIDs: users, RoleIDs: doc.Roles}, nil
}

func adminField(kind models.AdminKind) string {
	if kind == models.AdminRole {
		return "adminRoles"
	}
	return "adminUsers"
}

// AddBotAdmin grants bot administrator rights, reporting false when already granted
func (s *Store) AddBotAdmin(ctx context.Context, kind models.AdminKind, id string) (bool, error) {
	if kind == models.AdminUser {
		admins, err := s.GetBotAdmins(ctx)
		if err != nil {
			return false, err
		}
		if slices.Contains(admins.UserIDs, id) {
			return false, nil
		}
	}

	res, err := s.coll(botAdminsCollection).UpdateOne(ctx,
		bson.M{"_id": botAdminsDocID},
		bson.M{
			"$addToSet": bson.M{adminField(kind): id},
			"$set":      bson.M{"lastUpdated": time.Now().UTC()},
		},
		upsert)
	if err != nil {
		return false, fmt.Errorf("failed to add bot admin: %w", err)
	}
	return res.UpsertedCount > 0 || res.ModifiedCount > 0, nil
}

// RemoveBotAdmin revokes bot administrator rights, reporting false when none were granted
func (s *Store) RemoveBotAdmin(ctx context.Context, kind models.AdminKind, id string) (bool, error) {
	admins, err := s.GetBotAdmins(ctx)
	if err != nil {
		return false, err
	}
	listed := admins.UserIDs
	if kind == models.AdminRole {
		listed = admins.RoleIDs
	}
	if !slices.Contains(listed, id) {
		return false, nil
	}

	pull := bson.M{adminField(kind): id}
	if kind == models.AdminUser {
		pull["adminIds"] = id
	}
	_, err = s.coll(botAdminsCollection).UpdateOne(ctx,
		bson.M{"_id": botAdminsDocID},
		bson.M{"$pull": pull, "$set": bson.M{"lastUpdated": time.Now().UTC()}})
	if err != nil {
		return false, fmt.Errorf("failed to remove bot admin: %w", err)
	}
	return true, nil
}

// GetGuildSettings returns the guild's settings or the defaults
func (s *Store) GetGuildSettings(ctx context.Context, guildID string) (models.GuildSettings, error) {
	gs := models.DefaultGuildSettings(guildID)
	err := s.coll(guildSettingsCollection).FindOne(ctx, bson.M{"guildId": guildID}).Decode(&gs)
	if err != nil && !errors.Is(err, mongo.ErrNoDocuments) {
		return models.DefaultGuildSettings(guildID), fmt.Errorf("failed to get guild settings: %w", err)
	}
	return gs, nil
}

// FactionsEnabled reports whether faction features are on for the guild
func (s *Store) FactionsEnabled(ctx context.Context, guildID string) (bool, error) {
	gs, err := s.GetGuildSettings(ctx, guildID)
	return gs.FactionsEnabled, err
}

// SetFactionsEnabled toggles faction features for the guild
func (s *Store) SetFactionsEnabled(ctx context.Context, guildID string, enabled bool) error {
	_, err := s.coll(guildSettingsCollection).UpdateOne(ctx,
		bson.M{"guildId": guildID},
		bson.M{"$set": bson.M{"factionsEnabled": enabled}},
		upsert)
	if err != nil {
		return fmt.Errorf("failed to set factions enabled: %w", err)
	}
	return nil
}

// SetClockChannel sets the channel receiving clock-in announcements
func (s *Store) SetClockChannel(ctx context.Context, guildID, channelID string) error {
	_, err := s.coll(guildSettingsCollection).UpdateOne(ctx,
		bson.M{"guildId": guildID},
		bson.M{
			"$set":         bson.M{"clockInChannelId": channelID},
			"$setOnInsert": bson.M{"factionsEnabled": true},
		},
		upsert)
	if err != nil {
		return fmt.Errorf("failed to set clock channel: %w", err)
	}
	return nil
}

// GetCalendarSettings returns the guild's calendar settings or the defaults
func (s *Store) GetCalendarSettings(ctx context.Context, guildID string) (models.CalendarSettings, error) {
	cs := models.DefaultCalendarSettings(guildID)
	err := s.coll(calendarSettingsCollection).FindOne(ctx, bson.M{"guildId": guildID}).Decode(&cs)
	if err != nil && !errors.Is(err, mongo.ErrNoDocuments) {
		return models.DefaultCalendarSettings(guildID), fmt.Errorf("failed to get calendar settings: %w", err)
	}
	return cs, nil
}

// GuildTimezone returns the guild's timezone name
func (s *Store) GuildTimezone(ctx context.Context, guildID string) (string, error) {
	cs, err := s.GetCalendarSettings(ctx, guildID)
	if cs.Timezone == "" {
		return models.DefaultTimezone, err
	}
	return cs.Timezone, err
}

func (s *Store) updateCalendarSettings(ctx context.Context, guildID string, set bson.M) error {
	set["lastUpdated"] = time.Now().UTC()
	update := bson.M{"$set": set}
	if _, ok := set["guildTimezone"]; !ok {
		update["$setOnInsert"] = bson.M{"guildTimezone": models.DefaultTimezone}
	}
	_, err := s.coll(calendarSettingsCollection).UpdateOne(ctx, bson.M{"guildId": guildID}, update, upsert)
	return err
}

// SetGuildTimezone stores the guild's timezone name
func (s *Store) SetGuildTimezone(ctx context.Context, guildID, timezone string) error {
	if err := s.updateCalendarSettings(ctx, guildID, bson.M{"guildTimezone": timezone}); err != nil {
		return fmt.Errorf("failed to set guild timezone: %w", err)
	}
	return nil
}

// SetCalendarChannel stores the calendar channel and forgets the old rendered message
func (s *Store) SetCalendarChannel(ctx context.Context, guildID, channelID string) error {
	if err := s.updateCalendarSettings(ctx, guildID, bson.M{"calendarChannelId": channelID, "calendarMessageId": ""}); err != nil {
		return fmt.Errorf("failed to set calendar channel: %w", err)
	}
	return nil
}

// SetCalendarMessage stores the id of the rendered calendar message
func (s *Store) SetCalendarMessage(ctx context.Context, guildID, messageID string) error {
	if err := s.updateCalendarSettings(ctx, guildID, bson.M{"calendarMessageId": messageID}); err != nil {
		return fmt.Errorf("failed to set calendar message: %w", err)
	}
	return nil
}

// CalendarGuilds returns the settings of every guild with a calendar channel
func (s *Store) CalendarGuilds(ctx context.Context) ([]models.CalendarSettings, error) {
	cursor, err := s.coll(calendarSettingsCollection).Find(ctx,
		bson.M{"calendarChannelId": bson.M{"$nin": bson.A{"", nil}}},
		options.Find().SetSort(bson.D{{Key: "guildId", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to get calendar guilds: %w", err)
	}
	var out []models.CalendarSettings
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("failed to decode calendar settings: %w", err)
	}
	return out, nil
}

type userTimezone struct {
	UserID   string `bson:"userId"`
	Timezone string `bson:"timezone"`
}

// GetUserTimezone returns the user's timezone name, UTC when unset
func (s *Store) GetUserTimezone(ctx context.Context, userID string) (string, error) {
	var doc userTimezone
	err := s.coll(userTimezonesCollection).FindOne(ctx, bson.M{"userId": userID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) || (err == nil && doc.Timezone == "") {
		return models.DefaultTimezone, nil
	}
	if err != nil {
		return models.DefaultTimezone, fmt.Errorf("failed to get user timezone: %w", err)
	}
	return doc.Timezone, nil
}

// SetUserTimezone stores the user's timezone name
func (s *Store) SetUserTimezone(ctx context.Context, userID, timezone string) error {
	_, err := s.coll(userTimezonesCollection).UpdateOne(ctx,
		bson.M{"userId": userID},
		bson.M{"$set": bson.M{"timezone": timezone, "updatedAt": time.Now().UTC()}},
		upsert)
	if err != nil {
		return fmt.Errorf("failed to set user timezone: %w", err)
	}
	return nil
}

// AddCalendarEvent stores a new event
func (s *Store) AddCalendarEvent(ctx context.Context, e models.CalendarEvent) error {
	if _, err := s.coll(calendarEventsCollection).InsertOne(ctx, e); err != nil {
		return fmt.Errorf("failed to add calendar event: %w", err)
	}
	return nil
}

// UpdateCalendarEvent replaces an existing event
func (s *Store) UpdateCalendarEvent(ctx context.Context, e models.CalendarEvent) error {
	res, err := s.coll(calendarEventsCollection).ReplaceOne(ctx, bson.M{"guildId": e.GuildID, "id": e.ID}, e)
	if err != nil {
		return fmt.Errorf("failed to update calendar event: %w", err)
	}
	if res.MatchedCount == 0 {
		return &models.NotFoundError{Kind: "event", ID: e.ID}
	}
	return nil
}

// GetCalendarEvent returns one event
func (s *Store) GetCalendarEvent(ctx context.Context, guildID, eventID string) (models.CalendarEvent, error) {
	var e models.CalendarEvent
	err := s.coll(calendarEventsCollection).FindOne(ctx, bson.M{"guildId": guildID, "id": eventID}).Decode(&e)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.CalendarEvent{}, &models.NotFoundError{Kind: "event", ID: eventID}
	}
	if err != nil {
		return models.CalendarEvent{}, fmt.Errorf("failed to get calendar event: %w", err)
	}
	return e, nil
}

// ListCalendarEvents returns every event of the guild ordered by creation
func (s *Store) ListCalendarEvents(ctx context.Context, guildID string) ([]models.CalendarEvent, error) {
	cursor, err := s.coll(calendarEventsCollection).Find(ctx, bson.M{"guildId": guildID},
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list calendar events: %w", err)
	}
	var out []models.CalendarEvent
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("failed to decode calendar events: %w", err)
	}
	return out, nil
}

// DeleteCalendarEvent removes one event
func (s *Store) DeleteCalendarEvent(ctx context.Context, guildID, eventID string) error {
	res, err := s.coll(calendarEventsCollection).DeleteOne(ctx, bson.M{"guildId": guildID, "id": eventID})
	if err != nil {
		return fmt.Errorf("failed to delete calendar event: %w", err)
	}
	if res.DeletedCount == 0 {
		return &models.NotFoundError{Kind: "event", ID: eventID}
	}
	return nil
}
