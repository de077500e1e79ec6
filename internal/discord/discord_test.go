package discord

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/bwmarrin/discordgo"

	"voicecal/internal/calendar"
	"voicecal/internal/faction"
	"voicecal/internal/jobs"
	"voicecal/internal/memstore"
	"voicecal/internal/models"
	"voicecal/internal/tracker"
)

func TestClassifyVoiceTransition(t *testing.T) {
	tests := []struct {
		before, after string
		expected      transition
	}{
		{"", "c1", transitionJoin},
		{"c1", "", transitionLeave},
		{"c1", "c2", transitionSwitch},
		{"c1", "c1", transitionNone},
		{"", "", transitionNone},
	}

	for _, tc := range tests {
		if got := classifyVoiceTransition(tc.before, tc.after); got != tc.expected {
			t.Errorf("classifyVoiceTransition(%q, %q) = %s, expected %s", tc.before, tc.after, got, tc.expected)
		}
	}
}

func TestDisplayName(t *testing.T) {
	tests := []struct {
		name     string
		member   *discordgo.Member
		expected string
	}{
		{"nick wins", &discordgo.Member{Nick: "Ace", User: &discordgo.User{Username: "alice", GlobalName: "Alice"}}, "Ace"},
		{"global name", &discordgo.Member{User: &discordgo.User{Username: "alice", GlobalName: "Alice"}}, "Alice"},
		{"username", &discordgo.Member{User: &discordgo.User{Username: "alice"}}, "alice"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := displayName(tc.member); got != tc.expected {
				t.Errorf("Expected %q, got %q", tc.expected, got)
			}
		})
	}
}

func TestErrorResponse(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		contains string
	}{
		{"forbidden", models.ErrForbidden, "permission"},
		{"validation", models.NewValidationError("time", "Invalid time format: 25:00"), "Invalid time format: 25:00"},
		{"not found", &models.NotFoundError{Kind: "event", ID: "abc"}, `event "abc" not found`},
		{"internal", errors.New("pq: connection refused"), "There was an error executing this command!"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			data := errorResponse(tc.err)
			if data.Flags&discordgo.MessageFlagsEphemeral == 0 {
				t.Errorf("Expected an ephemeral reply")
			}
			if !strings.Contains(data.Content, tc.contains) {
				t.Errorf("Expected %q to contain %q", data.Content, tc.contains)
			}
			if strings.Contains(data.Content, "pq:") {
				t.Errorf("Internal error leaked to the user: %q", data.Content)
			}
		})
	}
}

func TestMotivationalMessage(t *testing.T) {
	f := &faction.Faction{Name: "Alpha Team", Key: "Alpha_Team"}
	for n := 0; n < 8; n++ {
		if msg := motivationalMessage(f, n); !strings.Contains(msg, "Alpha Team") {
			t.Errorf("Expected faction message %d to name the faction, got %q", n, msg)
		}
		if msg := motivationalMessage(nil, n); !strings.Contains(msg, "faction") {
			t.Errorf("Expected solo message %d to mention factions, got %q", n, msg)
		}
	}
}

func TestFactionColor(t *testing.T) {
	r := faction.NewResolver([]string{"Alpha", "Bravo"})
	alpha, _ := r.ByKey("Alpha")
	bravo, _ := r.ByKey("Bravo")

	if factionColor(&alpha, r) == factionColor(&bravo, r) {
		t.Errorf("Expected distinct faction colors")
	}
	if got := factionColor(nil, r); got != colorNeutral {
		t.Errorf("Expected neutral color without a faction, got %x", got)
	}
	if got := factionColor(&faction.Faction{Key: "Retired"}, r); got != colorNeutral {
		t.Errorf("Expected neutral color for an unknown faction, got %x", got)
	}
}

func TestActivityLevel(t *testing.T) {
	tests := []struct {
		hours    float64
		expected string
	}{
		{0, "Casual"},
		{4.9, "Casual"},
		{5, "Regular"},
		{10, "Active"},
		{25, "Elite"},
		{50, "Legendary"},
		{500, "Legendary"},
	}

	for _, tc := range tests {
		d := time.Duration(tc.hours * float64(time.Hour))
		if got := activityLevel(d); !strings.Contains(got, tc.expected) {
			t.Errorf("activityLevel(%vh) = %q, expected %s", tc.hours, got, tc.expected)
		}
	}
}

func TestCountFactionMembers(t *testing.T) {
	r := faction.NewResolver([]string{"Alpha", "Bravo", "Charlie"})
	guild := &discordgo.Guild{
		Roles: []*discordgo.Role{
			{ID: "r1", Name: "Alpha"},
			{ID: "r2", Name: "Bravo"},
			{ID: "r3", Name: "Moderator"},
		},
		Members: []*discordgo.Member{
			{Roles: []string{"r1"}},
			{Roles: []string{"r2", "r1"}},
			{Roles: []string{"r2"}},
			{Roles: []string{"r3"}},
			{},
		},
	}

	counts := countFactionMembers(guild, r)
	expected := map[string]int{"Alpha": 2, "Bravo": 1, "Charlie": 0}
	for key, want := range expected {
		if counts[key] != want {
			t.Errorf("Expected %d members in %s, got %d", want, key, counts[key])
		}
	}
}

func TestLeaderboardEmbed(t *testing.T) {
	now := time.Date(2025, 3, 5, 12, 0, 0, 0, time.UTC)
	standings := []jobs.Standing{
		{Faction: faction.Faction{Name: "Bravo", Key: "Bravo"}, Total: 2*time.Hour + 5*time.Minute},
		{Faction: faction.Faction{Name: "Alpha", Key: "Alpha"}, Total: 30 * time.Minute},
	}

	embed := leaderboardEmbed(standings, map[string]int{"Bravo": 1200, "Alpha": 3}, now)
	if embed.Title != "📊 Daily Faction Leaderboard" || embed.Color != colorBoard {
		t.Errorf("Unexpected embed header: %q %x", embed.Title, embed.Color)
	}
	lines := strings.Split(embed.Description, "\n")
	if len(lines) != 2 {
		t.Fatalf("Expected 2 lines, got %q", embed.Description)
	}
	if lines[0] != "🥇 **Bravo** - 2h 5m (1,200 members)" {
		t.Errorf("Unexpected first line %q", lines[0])
	}
	if lines[1] != "🥈 **Alpha** - 0h 30m (3 members)" {
		t.Errorf("Unexpected second line %q", lines[1])
	}

	if empty := leaderboardEmbed(nil, nil, now); empty.Description == "" {
		t.Errorf("Expected placeholder text for an empty leaderboard")
	}
}

func TestClockEmbeds(t *testing.T) {
	now := time.Date(2025, 3, 5, 12, 0, 0, 0, time.UTC)
	m := tracker.Member{Username: "alice", DisplayName: "Ace"}
	ch := tracker.Channel{ID: "c1", Name: "General"}

	in := clockInEmbed(m, ch, nil, now)
	if in.Color != colorJoin || in.Fields[0].Value != "Ace (alice)" || in.Fields[2].Value != noFaction {
		t.Errorf("Unexpected clock-in embed: %+v", in.Fields)
	}

	out := clockOutEmbed(m, ch, 90*time.Second, &faction.Faction{Name: "Alpha"}, now)
	if out.Color != colorLeave || out.Fields[3].Value != "1m 30s" || out.Fields[2].Value != "Alpha" {
		t.Errorf("Unexpected clock-out embed: %+v", out.Fields)
	}

	sw := switchEmbed(m, ch, tracker.Channel{Name: "Ops"}, time.Hour, nil, now)
	if sw.Color != colorSwitch || sw.Fields[2].Value != "General" || sw.Fields[3].Value != "Ops" || sw.Fields[4].Value != "1h 0m 0s" {
		t.Errorf("Unexpected switch embed: %+v", sw.Fields)
	}
}

func TestServerCalendarEmbedUsesDiscordTimestamps(t *testing.T) {
	now := time.Date(2025, 3, 5, 12, 0, 0, 0, time.UTC)
	instant := time.Date(2025, 3, 7, 20, 0, 0, 0, time.UTC)
	ts := instant.Unix()
	events := []models.CalendarEvent{
		{ID: "a", Day: "friday", Date: "2025-03-07", UTCTimestamp: &ts, Title: "Heist"},
		{ID: "b", Day: "saturday", Date: "2025-03-08", Time: "18:00", Title: "Legacy Night"},
	}
	week := calendar.BuildWeek(events, time.UTC, time.UTC, now)

	embed := serverCalendarEmbed(week, "UTC", now)
	if len(embed.Fields) != 7 {
		t.Fatalf("Expected 7 day fields, got %d", len(embed.Fields))
	}
	if want := fmt.Sprintf("<t:%d:t>", ts); !strings.Contains(embed.Fields[4].Value, want) {
		t.Errorf("Expected friday to contain %s, got %q", want, embed.Fields[4].Value)
	}
	if !strings.Contains(embed.Fields[5].Value, "18:00 UTC") {
		t.Errorf("Expected legacy event with its stored time, got %q", embed.Fields[5].Value)
	}
	if !strings.Contains(embed.Fields[0].Value, "No events") {
		t.Errorf("Expected empty monday, got %q", embed.Fields[0].Value)
	}
}

func TestPersonalWeekEmbed(t *testing.T) {
	now := time.Date(2025, 3, 5, 12, 0, 0, 0, time.UTC)
	ts := time.Date(2025, 3, 7, 20, 0, 0, 0, time.UTC).Unix()
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		t.Fatalf("LoadLocation: %v", err)
	}
	events := []models.CalendarEvent{{ID: "a", Day: "friday", Date: "2025-03-07", UTCTimestamp: &ts, Title: "Heist"}}
	week := calendar.BuildWeek(events, time.UTC, tokyo, now)

	embed := personalWeekEmbed(week, "Asia/Tokyo", now)
	friday := embed.Fields[4].Value
	if !strings.Contains(friday, "5:00 AM") || !strings.Contains(friday, "2025-03-08") {
		t.Errorf("Expected the Tokyo rendering of the event, got %q", friday)
	}
	if !strings.Contains(embed.Footer.Text, "/settimezone") {
		t.Errorf("Expected footer to mention /settimezone, got %q", embed.Footer.Text)
	}
}

// Command handler tests run against the in-memory store with no gateway session.

var testNow = time.Date(2025, 3, 5, 12, 0, 0, 0, time.UTC)

func newTestBot() (*Bot, *memstore.Store) {
	store := memstore.New()
	factions := faction.NewResolver([]string{"Alpha", "Bravo"})
	bot := New(nil, Options{
		Store:    store,
		Calendar: calendar.NewService(store),
		Rollover: jobs.NewFactionRollover(store, factions, nil),
		Factions: factions,
	})
	bot.now = func() time.Time { return testNow }
	return bot, store
}

func strOpt(name, value string) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{Name: name, Type: discordgo.ApplicationCommandOptionString, Value: value}
}

func boolOpt(name string, value bool) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{Name: name, Type: discordgo.ApplicationCommandOptionBoolean, Value: value}
}

func command(name, userID string, admin bool, opts ...*discordgo.ApplicationCommandInteractionDataOption) *discordgo.InteractionCreate {
	var perms int64
	if admin {
		perms = discordgo.PermissionAdministrator
	}
	return &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		Type:    discordgo.InteractionApplicationCommand,
		GuildID: "g1",
		Member:  &discordgo.Member{User: &discordgo.User{ID: userID, Username: userID}, Permissions: perms},
		Data:    discordgo.ApplicationCommandInteractionData{Name: name, Options: opts},
	}}
}

func run(t *testing.T, b *Bot, i *discordgo.InteractionCreate) (*discordgo.InteractionResponseData, error) {
	t.Helper()
	h, ok := b.commandHandlers[i.ApplicationCommandData().Name]
	if !ok {
		t.Fatalf("No handler for %s", i.ApplicationCommandData().Name)
	}
	return h(context.Background(), i)
}

func TestEveryCommandHasHandler(t *testing.T) {
	b, _ := newTestBot()
	for _, cmd := range botCommands {
		if _, ok := b.commandHandlers[cmd.Name]; !ok {
			t.Errorf("Command %s has no handler", cmd.Name)
		}
	}
	if len(b.commandHandlers) != len(botCommands) {
		t.Errorf("Expected %d handlers, got %d", len(botCommands), len(b.commandHandlers))
	}
}

func TestRPSetRequiresAdmin(t *testing.T) {
	b, store := newTestBot()

	_, err := run(t, b, command("rpset", "u1", false, strOpt("day", "friday"), strOpt("time", "19:30"), strOpt("title", "Heist")))
	if !errors.Is(err, models.ErrForbidden) {
		t.Fatalf("Expected ErrForbidden, got %v", err)
	}
	events, _ := store.ListCalendarEvents(context.Background(), "g1")
	if len(events) != 0 {
		t.Errorf("Expected no events, got %d", len(events))
	}
}

func TestRPSetEditDelete(t *testing.T) {
	b, store := newTestBot()
	ctx := context.Background()

	data, err := run(t, b, command("rpset", "admin", true, strOpt("day", "friday"), strOpt("time", "7:30 PM"), strOpt("title", "Heist")))
	if err != nil {
		t.Fatalf("rpset failed: %v", err)
	}
	if len(data.Embeds) != 1 {
		t.Fatalf("Expected a confirmation embed")
	}

	events, _ := store.ListCalendarEvents(ctx, "g1")
	if len(events) != 1 {
		t.Fatalf("Expected one event, got %d", len(events))
	}
	event := events[0]
	instant, ok := event.Instant()
	if !ok || !instant.Equal(time.Date(2025, 3, 7, 19, 30, 0, 0, time.UTC)) {
		t.Fatalf("Unexpected instant %v", instant)
	}

	// Another member may not edit it
	_, err = run(t, b, command("rpedit", "u2", false, strOpt("event_id", event.ID), strOpt("title", "Mine now")))
	if !errors.Is(err, models.ErrForbidden) {
		t.Fatalf("Expected ErrForbidden, got %v", err)
	}

	data, err = run(t, b, command("rpedit", "admin", true, strOpt("event_id", event.ID), strOpt("time", "21:00")))
	if err != nil {
		t.Fatalf("rpedit failed: %v", err)
	}
	if data.Flags&discordgo.MessageFlagsEphemeral == 0 {
		t.Errorf("Expected an ephemeral edit confirmation")
	}
	edited, _ := store.GetCalendarEvent(ctx, "g1", event.ID)
	if instant, _ := edited.Instant(); !instant.Equal(time.Date(2025, 3, 7, 21, 0, 0, 0, time.UTC)) {
		t.Errorf("Expected edited instant 21:00 UTC, got %v", instant)
	}

	if _, err := run(t, b, command("rpdelete", "admin", true, strOpt("event_id", event.ID))); err != nil {
		t.Fatalf("rpdelete failed: %v", err)
	}
	_, err = run(t, b, command("rpdelete", "admin", true, strOpt("event_id", event.ID)))
	if !models.IsNotFound(err) {
		t.Errorf("Expected not found on second delete, got %v", err)
	}
}

func TestRPSetInvalidTime(t *testing.T) {
	b, _ := newTestBot()

	_, err := run(t, b, command("rpset", "admin", true, strOpt("day", "friday"), strOpt("time", "25:00"), strOpt("title", "Heist")))
	if !models.IsValidation(err) {
		t.Fatalf("Expected a validation error, got %v", err)
	}
}

func TestCalendarUsesViewerTimezone(t *testing.T) {
	b, _ := newTestBot()

	if _, err := run(t, b, command("rpset", "admin", true, strOpt("day", "friday"), strOpt("time", "20:00"), strOpt("title", "Heist"))); err != nil {
		t.Fatalf("rpset failed: %v", err)
	}
	if _, err := run(t, b, command("settimezone", "viewer", false, strOpt("timezone", "Asia/Tokyo"))); err != nil {
		t.Fatalf("settimezone failed: %v", err)
	}

	data, err := run(t, b, command("calendar", "viewer", false))
	if err != nil {
		t.Fatalf("calendar failed: %v", err)
	}
	if data.Flags&discordgo.MessageFlagsEphemeral == 0 {
		t.Errorf("Expected an ephemeral calendar")
	}
	if !strings.Contains(data.Embeds[0].Description, "Asia/Tokyo") {
		t.Errorf("Expected the viewer timezone in the description, got %q", data.Embeds[0].Description)
	}
}

func TestSetTimezoneRejectsUnknownZone(t *testing.T) {
	b, _ := newTestBot()

	_, err := run(t, b, command("settimezone", "u1", false, strOpt("timezone", "Mars/Olympus")))
	if !models.IsValidation(err) {
		t.Fatalf("Expected a validation error, got %v", err)
	}
}

func TestToggleFactions(t *testing.T) {
	b, store := newTestBot()
	ctx := context.Background()

	if _, err := run(t, b, command("togglefactions", "admin", true)); err != nil {
		t.Fatalf("togglefactions failed: %v", err)
	}
	if enabled, _ := store.FactionsEnabled(ctx, "g1"); enabled {
		t.Errorf("Expected factions to flip to disabled")
	}

	if _, err := run(t, b, command("togglefactions", "admin", true, boolOpt("enabled", true))); err != nil {
		t.Fatalf("togglefactions failed: %v", err)
	}
	if enabled, _ := store.FactionsEnabled(ctx, "g1"); !enabled {
		t.Errorf("Expected factions to be enabled")
	}

	if _, err := run(t, b, command("togglefactions", "u1", false)); !errors.Is(err, models.ErrForbidden) {
		t.Errorf("Expected non-admins to be rejected, got %v", err)
	}
}

func TestMyTime(t *testing.T) {
	b, store := newTestBot()
	ctx := context.Background()
	_ = store.IncrementUserTime(ctx, "u1", 2*time.Hour, testNow)
	_ = store.IncrementUserTime(ctx, "u1", time.Hour, testNow)

	data, err := run(t, b, command("mytime", "u1", false))
	if err != nil {
		t.Fatalf("mytime failed: %v", err)
	}
	fields := data.Embeds[0].Fields
	if fields[0].Value != "3h 0m" {
		t.Errorf("Expected total 3h 0m, got %q", fields[0].Value)
	}
	if fields[1].Value != "2" {
		t.Errorf("Expected 2 sessions, got %q", fields[1].Value)
	}
	if fields[2].Value != "2h 0m 0s" {
		t.Errorf("Expected longest 2h 0m 0s, got %q", fields[2].Value)
	}
}

func TestResetTimesNeedsConfirmation(t *testing.T) {
	b, store := newTestBot()
	ctx := context.Background()
	_ = store.IncrementFactionTime(ctx, "Alpha", time.Hour)

	if _, err := run(t, b, command("resettimes", "admin", true, boolOpt("confirm", false))); err != nil {
		t.Fatalf("resettimes failed: %v", err)
	}
	times, _ := store.GetFactionTimes(ctx)
	if len(times) != 1 || times[0].TotalMs == 0 {
		t.Fatalf("Expected times untouched without confirmation, got %+v", times)
	}

	if _, err := run(t, b, command("resettimes", "admin", true, boolOpt("confirm", true))); err != nil {
		t.Fatalf("resettimes failed: %v", err)
	}
	times, _ = store.GetFactionTimes(ctx)
	if times[0].TotalMs != 0 {
		t.Errorf("Expected faction time reset, got %d", times[0].TotalMs)
	}
}
