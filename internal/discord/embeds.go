package discord

import (
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/dustin/go-humanize"

	"voicecal/internal/calendar"
	"voicecal/internal/faction"
	"voicecal/internal/jobs"
	"voicecal/internal/models"
	"voicecal/internal/tracker"
	"voicecal/pkg/utils"
)

const (
	colorJoin     = 0x00ff00
	colorLeave    = 0xff0000
	colorSwitch   = 0xffaa00
	colorBoard    = 0x3498db
	colorCalendar = 0x5865f2
	colorSuccess  = 0x2ecc71
	colorWarning  = 0xe67e22
	colorNeutral  = 0x95a5a6
	colorPoints   = 0xffd700
	colorRevoked  = 0xff6b00

	noFaction = "No Faction"

	// Discord rejects field values longer than this
	fieldValueLimit = 1024
)

var factionPalette = []int{0xff6b6b, 0x9b59b6, 0x3498db, 0xf1c40f, 0x1abc9c}

var factionMessages = []string{
	"Another victory for %s! Your time and effort strengthen the ranks!",
	"Magnificent work! %s grows stronger with every moment you contribute!",
	"Your commitment brings honor to %s! Keep it up!",
	"%s salutes your dedication! Stay focused!",
}

var soloMessages = []string{
	"Great work in voice! Consider joining a faction to maximize your impact!",
	"Impressive dedication! A faction would be lucky to have someone with your commitment!",
	"Keep up the excellent work! Your potential could shine even brighter with a faction!",
	"Outstanding effort! Think about which faction could benefit from your dedication!",
}

func factionName(f *faction.Faction) string {
	if f == nil {
		return noFaction
	}
	return f.Name
}

// factionColor gives each configured faction a stable color by its position in the list
func factionColor(f *faction.Faction, r *faction.Resolver) int {
	if f == nil || r == nil {
		return colorNeutral
	}
	for i, key := range r.Keys() {
		if key == f.Key {
			return factionPalette[i%len(factionPalette)]
		}
	}
	return colorNeutral
}

// motivationalMessage picks message n (modulo the pool size) for the member's faction
func motivationalMessage(f *faction.Faction, n int) string {
	if n < 0 {
		n = -n
	}
	if f == nil {
		return soloMessages[n%len(soloMessages)]
	}
	return fmt.Sprintf(factionMessages[n%len(factionMessages)], f.Name)
}

func memberLabel(m tracker.Member) string {
	if m.DisplayName == "" || m.DisplayName == m.Username {
		return m.Username
	}
	return fmt.Sprintf("%s (%s)", m.DisplayName, m.Username)
}

func clockInEmbed(m tracker.Member, ch tracker.Channel, f *faction.Faction, now time.Time) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title: "🟢 Voice Channel Join",
		Color: colorJoin,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "👤 User", Value: memberLabel(m), Inline: true},
			{Name: "🔊 Channel", Value: ch.Name, Inline: true},
			{Name: "👥 Faction", Value: factionName(f), Inline: true},
		},
		Footer:    &discordgo.MessageEmbedFooter{Text: "Clock-in System"},
		Timestamp: now.Format(time.RFC3339),
	}
}

func clockOutEmbed(m tracker.Member, ch tracker.Channel, d time.Duration, f *faction.Faction, now time.Time) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title: "🔴 Voice Channel Leave",
		Color: colorLeave,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "👤 User", Value: memberLabel(m), Inline: true},
			{Name: "🔊 Channel", Value: ch.Name, Inline: true},
			{Name: "👥 Faction", Value: factionName(f), Inline: true},
			{Name: "⏱️ Session Duration", Value: utils.FormatDuration(d), Inline: false},
		},
		Footer:    &discordgo.MessageEmbedFooter{Text: "Clock-in System"},
		Timestamp: now.Format(time.RFC3339),
	}
}

func switchEmbed(m tracker.Member, from, to tracker.Channel, d time.Duration, f *faction.Faction, now time.Time) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title: "🔄 Voice Channel Switch",
		Color: colorSwitch,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "👤 User", Value: memberLabel(m), Inline: true},
			{Name: "👥 Faction", Value: factionName(f), Inline: true},
			{Name: "📤 Left Channel", Value: from.Name, Inline: true},
			{Name: "📥 Joined Channel", Value: to.Name, Inline: true},
			{Name: "⏱️ Previous Session", Value: utils.FormatDuration(d), Inline: true},
		},
		Footer:    &discordgo.MessageEmbedFooter{Text: "Clock-in System"},
		Timestamp: now.Format(time.RFC3339),
	}
}

func sessionDMEmbed(d time.Duration, f *faction.Faction, color int, message string, now time.Time) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       "🏆 Session Complete!",
		Color:       color,
		Description: message,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "⏱️ Time Clocked", Value: utils.FormatDuration(d), Inline: true},
			{Name: "🏴 Faction", Value: factionName(f), Inline: true},
		},
		Footer:    &discordgo.MessageEmbedFooter{Text: "Every minute counts for your faction's glory!"},
		Timestamp: now.Format(time.RFC3339),
	}
}

// leaderboardEmbed renders the daily faction standings; members maps faction keys to role holder counts
func leaderboardEmbed(standings []jobs.Standing, members map[string]int, now time.Time) *discordgo.MessageEmbed {
	var lines []string
	for i, s := range standings {
		entry := utils.FormatLeaderboardEntry(i+1, "**"+s.Faction.Name+"**", utils.FormatHours(s.Total))
		if n, ok := members[s.Faction.Key]; ok {
			entry += fmt.Sprintf(" (%s members)", humanize.Comma(int64(n)))
		}
		lines = append(lines, entry)
	}
	description := strings.Join(lines, "\n")
	if description == "" {
		description = "No faction time was recorded today."
	}

	return &discordgo.MessageEmbed{
		Title:       "📊 Daily Faction Leaderboard",
		Color:       colorBoard,
		Description: description,
		Footer:      &discordgo.MessageEmbedFooter{Text: "Faction times have been reset for the new day"},
		Timestamp:   now.Format(time.RFC3339),
	}
}

func factionTimeEmbed(standings []jobs.Standing, now time.Time) *discordgo.MessageEmbed {
	var lines []string
	for i, s := range standings {
		lines = append(lines, utils.FormatLeaderboardEntry(i+1, "**"+s.Faction.Name+"**", utils.FormatHours(s.Total)))
	}
	description := strings.Join(lines, "\n")
	if description == "" {
		description = "No factions are configured."
	}
	return &discordgo.MessageEmbed{
		Title:       "🏴 Faction Time Today",
		Color:       colorBoard,
		Description: description,
		Footer:      &discordgo.MessageEmbedFooter{Text: "Resets daily"},
		Timestamp:   now.Format(time.RFC3339),
	}
}

// activityLevel ranks a member by total tracked hours
func activityLevel(total time.Duration) string {
	hours := total.Hours()
	switch {
	case hours >= 50:
		return "🔥 Legendary"
	case hours >= 25:
		return "⭐ Elite"
	case hours >= 10:
		return "💪 Active"
	case hours >= 5:
		return "👍 Regular"
	default:
		return "🌱 Casual"
	}
}

func userTimeEmbed(name string, ut models.UserTime, f *faction.Faction, now time.Time) *discordgo.MessageEmbed {
	lastActive := "Never"
	if ut.LastActive != nil {
		lastActive = utils.FormatTimestamp(*ut.LastActive, "R")
	}

	return &discordgo.MessageEmbed{
		Title: fmt.Sprintf("⏱️ Voice Time for %s", name),
		Color: colorBoard,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "🕐 Total Time", Value: utils.FormatHours(ut.Total()), Inline: true},
			{Name: "📈 Sessions", Value: humanize.Comma(ut.Sessions), Inline: true},
			{Name: "🏅 Longest Session", Value: utils.FormatDuration(ut.Longest()), Inline: true},
			{Name: "📅 Today", Value: utils.FormatHours(ut.Today()), Inline: true},
			{Name: "📊 Average Session", Value: utils.FormatDuration(ut.Average()), Inline: true},
			{Name: "🎯 Activity Level", Value: activityLevel(ut.Total()), Inline: true},
			{Name: "🏴 Faction", Value: factionName(f), Inline: true},
			{Name: "🕒 Last Active", Value: lastActive, Inline: true},
		},
		Timestamp: now.Format(time.RFC3339),
	}
}

func topTimesEmbed(entries []models.UserTime, now time.Time) *discordgo.MessageEmbed {
	var lines []string
	for i, ut := range entries {
		lines = append(lines, utils.FormatLeaderboardEntry(i+1, utils.FormatUserMention(ut.UserID), utils.FormatHours(ut.Total())))
	}
	description := strings.Join(lines, "\n")
	if description == "" {
		description = "No voice time has been tracked yet."
	}
	return &discordgo.MessageEmbed{
		Title:       "🏆 Voice Time Leaderboard",
		Color:       colorBoard,
		Description: description,
		Timestamp:   now.Format(time.RFC3339),
	}
}

func titleCase(day string) string {
	if day == "" {
		return day
	}
	return strings.ToUpper(day[:1]) + day[1:]
}

// personalWeekEmbed renders the week with times in the viewer's timezone
func personalWeekEmbed(week calendar.Week, viewerTZ string, now time.Time) *discordgo.MessageEmbed {
	fields := make([]*discordgo.MessageEmbedField, 0, len(week.Days))
	for _, day := range week.Days {
		value := "*No events*"
		if len(day.Events) > 0 {
			lines := make([]string, 0, len(day.Events))
			for _, v := range day.Events {
				line := fmt.Sprintf("**%s** %s", utils.Format12Hour(v.DisplayTime), v.Event.Title)
				if v.DisplayDate != day.Date {
					line += fmt.Sprintf(" (%s)", v.DisplayDate)
				}
				lines = append(lines, line)
			}
			value = strings.Join(lines, "\n")
		}
		fields = append(fields, &discordgo.MessageEmbedField{
			Name:  fmt.Sprintf("%s (%s)", titleCase(day.Day), day.Date),
			Value: utils.TruncateString(value, fieldValueLimit),
		})
	}

	return &discordgo.MessageEmbed{
		Title:       "📅 Your Roleplay Calendar",
		Description: fmt.Sprintf("Times shown in **%s**", viewerTZ),
		Color:       colorCalendar,
		Fields:      fields,
		Footer:      &discordgo.MessageEmbedFooter{Text: "Use /settimezone to change your timezone"},
		Timestamp:   now.Format(time.RFC3339),
	}
}

// serverCalendarEmbed renders the shared calendar message; timestamped events use Discord timestamps
// so every reader sees their own local time
func serverCalendarEmbed(week calendar.Week, guildTZ string, now time.Time) *discordgo.MessageEmbed {
	fields := make([]*discordgo.MessageEmbedField, 0, len(week.Days))
	for _, day := range week.Days {
		value := "*No events scheduled*"
		if len(day.Events) > 0 {
			lines := make([]string, 0, len(day.Events))
			for _, v := range day.Events {
				when := v.DisplayTime + " UTC"
				if instant, ok := v.Event.Instant(); ok {
					when = utils.FormatTimestamp(instant, "t")
				}
				line := fmt.Sprintf("**%s** %s", when, v.Event.Title)
				if v.Event.Description != "" {
					line += "\n" + utils.TruncateString(v.Event.Description, 100)
				}
				lines = append(lines, line)
			}
			value = strings.Join(lines, "\n")
		}
		fields = append(fields, &discordgo.MessageEmbedField{
			Name:  fmt.Sprintf("%s (%s)", titleCase(day.Day), day.Date),
			Value: utils.TruncateString(value, fieldValueLimit),
		})
	}

	return &discordgo.MessageEmbed{
		Title:       "📅 Weekly Roleplay Calendar",
		Description: fmt.Sprintf("Week of %s to %s (%s). Times appear in your local timezone.", week.Days[0].Date, week.Days[6].Date, guildTZ),
		Color:       colorCalendar,
		Fields:      fields,
		Footer:      &discordgo.MessageEmbedFooter{Text: "Use /calendar for a personal view and /settimezone to set your timezone"},
		Timestamp:   now.Format(time.RFC3339),
	}
}

func eventListEmbed(views []calendar.EventView, viewerTZ string, now time.Time) *discordgo.MessageEmbed {
	description := "No events scheduled."
	if len(views) > 0 {
		lines := make([]string, 0, len(views))
		for _, v := range views {
			lines = append(lines, fmt.Sprintf("`%s` **%s** %s %s by %s",
				v.Event.ID, v.Event.Title, v.DisplayDate, utils.Format12Hour(v.DisplayTime), v.Event.AuthorName))
		}
		description = utils.TruncateString(strings.Join(lines, "\n"), 4096)
	}
	return &discordgo.MessageEmbed{
		Title:       "📋 Scheduled Events",
		Description: description,
		Color:       colorCalendar,
		Footer:      &discordgo.MessageEmbedFooter{Text: fmt.Sprintf("Times shown in %s", viewerTZ)},
		Timestamp:   now.Format(time.RFC3339),
	}
}

// eventEmbed confirms a created or edited event
func eventEmbed(title string, e models.CalendarEvent, now time.Time) *discordgo.MessageEmbed {
	when := fmt.Sprintf("%s %s UTC", e.Date, e.WallClock())
	if instant, ok := e.Instant(); ok {
		when = fmt.Sprintf("%s (%s)", utils.FormatTimestamp(instant, "F"), utils.FormatTimestamp(instant, "R"))
	}

	fields := []*discordgo.MessageEmbedField{
		{Name: "📌 Title", Value: e.Title},
		{Name: "📆 Day", Value: fmt.Sprintf("%s (%s)", titleCase(e.Day), e.Date), Inline: true},
		{Name: "🕒 Time", Value: when, Inline: true},
		{Name: "🆔 Event ID", Value: "`" + e.ID + "`"},
	}
	if e.Description != "" {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "📝 Description", Value: utils.TruncateString(e.Description, fieldValueLimit)})
	}
	if e.GuildTimezone != "" {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "🌍 Entered In", Value: e.GuildTimezone, Inline: true})
	}

	return &discordgo.MessageEmbed{
		Title:     title,
		Color:     colorSuccess,
		Fields:    fields,
		Timestamp: now.Format(time.RFC3339),
	}
}

func resetNoticeEmbed(admin string, now time.Time) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       "🔄 Faction Times Reset",
		Description: fmt.Sprintf("All faction times were reset by %s.", admin),
		Color:       colorWarning,
		Timestamp:   now.Format(time.RFC3339),
	}
}

var pointMedals = []string{"🥇", "🥈", "🥉"}

func levelEmoji(level int64) string {
	switch {
	case level >= 50:
		return "✨"
	case level >= 20:
		return "💫"
	case level >= 10:
		return "🌟"
	default:
		return "⭐"
	}
}

func factionPointsEmbed(standings []models.FactionPoints, now time.Time) *discordgo.MessageEmbed {
	var b strings.Builder
	for i, fp := range standings {
		medal := "🏅"
		if i < len(pointMedals) {
			medal = pointMedals[i]
		}
		level := fp.Level()
		fmt.Fprintf(&b, "%s **%s**\n", medal, faction.NameFor(fp.Faction))
		fmt.Fprintf(&b, "%s Level %d • %s points\n", levelEmoji(level), level, humanize.Comma(fp.Points))
		fmt.Fprintf(&b, "⚔️ Victories: %s • 📈 Activities: %s\n\n", humanize.Comma(fp.Victories), humanize.Comma(fp.Activities))
	}
	rankings := strings.TrimSpace(b.String())
	if rankings == "" {
		rankings = "No factions are configured."
	}

	return &discordgo.MessageEmbed{
		Title:       "🏆 Faction Points & Achievements",
		Color:       colorPoints,
		Description: "Compete for faction supremacy!",
		Fields: []*discordgo.MessageEmbedField{
			{Name: "🏴 Faction Rankings", Value: utils.TruncateString(rankings, fieldValueLimit)},
			{Name: "📊 How to Earn Points", Value: fmt.Sprintf("🏆 Daily #1: %d pts\n🎖️ Awards from bot administrators", jobs.DailyWinnerPoints)},
		},
		Timestamp: now.Format(time.RFC3339),
	}
}

func pointsAwardEmbed(f faction.Faction, fp models.FactionPoints, reason, admin string, now time.Time) *discordgo.MessageEmbed {
	fields := []*discordgo.MessageEmbedField{
		{Name: "⭐ Points", Value: fmt.Sprintf("%+d", fp.Points), Inline: true},
		{Name: "⚔️ Victories", Value: fmt.Sprintf("%+d", fp.Victories), Inline: true},
		{Name: "📈 Activities", Value: fmt.Sprintf("%+d", fp.Activities), Inline: true},
	}
	if reason != "" {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "📝 Reason", Value: utils.TruncateString(reason, fieldValueLimit)})
	}
	return &discordgo.MessageEmbed{
		Title:       "🎖️ Faction Points Awarded",
		Description: fmt.Sprintf("**%s** points updated by %s.", f.Name, admin),
		Color:       colorPoints,
		Fields:      fields,
		Timestamp:   now.Format(time.RFC3339),
	}
}

func mentionList(ids []string, mention func(string) string) string {
	if len(ids) == 0 {
		return "None"
	}
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = mention(id)
	}
	return utils.TruncateString(strings.Join(out, "\n"), fieldValueLimit)
}

func botAdminsEmbed(admins models.BotAdmins, now time.Time) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       "🔧 Bot Administrators",
		Description: "The server owner and Discord administrators always have access.",
		Color:       colorBoard,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "👤 Users", Value: mentionList(admins.UserIDs, utils.FormatUserMention), Inline: true},
			{Name: "🎭 Roles", Value: mentionList(admins.RoleIDs, utils.FormatRoleMention), Inline: true},
		},
		Timestamp: now.Format(time.RFC3339),
	}
}

func botAdminChangeEmbed(title, description string, color int, now time.Time) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       title,
		Description: description,
		Color:       color,
		Timestamp:   now.Format(time.RFC3339),
	}
}
