package mongostore

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"

	"voicecal/internal/models"
)

// connectTest returns a store on a throwaway database, or skips when MONGO_TEST_URI is unset
func connectTest(t *testing.T) *Store {
	t.Helper()
	uri := os.Getenv("MONGO_TEST_URI")
	if uri == "" {
		t.Skip("MONGO_TEST_URI not set")
	}

	ctx := context.Background()
	s, err := Connect(ctx, uri, "voicecal_test_"+uuid.NewString()[:8])
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() {
		_ = s.db.Drop(ctx)
		_ = s.Close(ctx)
	})
	return s
}

func TestIncrementUserTime(t *testing.T) {
	s := connectTest(t)
	ctx := context.Background()
	now := time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC)

	_ = s.IncrementUserTime(ctx, "u1", 90*time.Second, now)
	_ = s.IncrementUserTime(ctx, "u1", 30*time.Second, now)

	ut, err := s.GetUserTime(ctx, "u1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if ut.TotalMs != 120000 || ut.Sessions != 2 || ut.LongestMs != 90000 {
		t.Errorf("Unexpected totals %+v", ut)
	}
}

func TestFactionReset(t *testing.T) {
	s := connectTest(t)
	ctx := context.Background()

	_ = s.IncrementFactionTime(ctx, "Alpha", time.Minute)
	_ = s.IncrementFactionTime(ctx, "Bravo", time.Second)
	if err := s.ResetFactionTimes(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}

	times, err := s.GetFactionTimes(ctx)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(times) != 2 || times[0].TotalMs != 0 || times[1].TotalMs != 0 {
		t.Errorf("Expected two zeroed factions, got %+v", times)
	}
}

func TestCalendarEvents(t *testing.T) {
	s := connectTest(t)
	ctx := context.Background()

	ts := int64(1741032000)
	e := models.CalendarEvent{ID: "e1", GuildID: "g1", Day: "monday", Date: "2025-03-03", Title: "Heist", UTCTimestamp: &ts}
	if err := s.AddCalendarEvent(ctx, e); err != nil {
		t.Fatalf("add: %v", err)
	}

	got, err := s.GetCalendarEvent(ctx, "g1", "e1")
	if err != nil || got.UTCTimestamp == nil || *got.UTCTimestamp != ts {
		t.Fatalf("Expected stored timestamp, got %+v %v", got, err)
	}

	if err := s.DeleteCalendarEvent(ctx, "g1", "e1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.GetCalendarEvent(ctx, "g1", "e1"); !models.IsNotFound(err) {
		t.Errorf("Expected not found, got %v", err)
	}
}

func TestSettingsDefaults(t *testing.T) {
	s := connectTest(t)
	ctx := context.Background()

	_ = s.SetClockChannel(ctx, "g1", "c1")
	enabled, err := s.FactionsEnabled(ctx, "g1")
	if err != nil || !enabled {
		t.Errorf("Expected factions enabled after setting clock channel, got %v %v", enabled, err)
	}

	_ = s.SetCalendarChannel(ctx, "g1", "cal")
	tz, _ := s.GuildTimezone(ctx, "g1")
	if tz != "UTC" {
		t.Errorf("Expected UTC, got %s", tz)
	}
	guilds, _ := s.CalendarGuilds(ctx)
	if len(guilds) != 1 || guilds[0].ChannelID != "cal" {
		t.Errorf("Expected one calendar guild, got %+v", guilds)
	}
}

func TestConcurrentFactionPointIncrements(t *testing.T) {
	s := connectTest(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.IncrementFactionPoints(ctx, "Alpha", 5, 0, 1); err != nil {
				t.Errorf("increment points: %v", err)
			}
		}()
	}
	wg.Wait()

	points, err := s.GetFactionPoints(ctx)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(points) != 1 || points[0].Points != 100 || points[0].Activities != 20 {
		t.Errorf("Unexpected standings %+v", points)
	}
}

func TestBotAdminsReadLegacyUsers(t *testing.T) {
	s := connectTest(t)
	ctx := context.Background()

	_, err := s.coll(botAdminsCollection).InsertOne(ctx, bson.M{"_id": botAdminsDocID, "adminIds": []string{"old"}})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	if added, _ := s.AddBotAdmin(ctx, models.AdminUser, "old"); added {
		t.Error("Expected legacy admin to count as already granted")
	}
	if added, err := s.AddBotAdmin(ctx, models.AdminRole, "r1"); err != nil || !added {
		t.Fatalf("Expected role grant, got %v %v", added, err)
	}
	if removed, err := s.RemoveBotAdmin(ctx, models.AdminUser, "old"); err != nil || !removed {
		t.Fatalf("Expected legacy admin to be revoked, got %v %v", removed, err)
	}

	admins, _ := s.GetBotAdmins(ctx)
	if admins.Allows("old", nil) || !admins.Allows("u2", []string{"r1"}) {
		t.Errorf("Unexpected admins %+v", admins)
	}
}
