package discord

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/bwmarrin/discordgo"

	"voicecal/internal/calendar"
	"voicecal/internal/faction"
	"voicecal/internal/models"
	"voicecal/pkg/utils"
)

// commandHandler runs a slash command and returns the reply to send
type commandHandler func(ctx context.Context, i *discordgo.InteractionCreate) (*discordgo.InteractionResponseData, error)

// botadmin is only offered to Discord administrators, the guild owner is allowed regardless
var adminPermission int64 = discordgo.PermissionAdministrator

var dayChoices = func() []*discordgo.ApplicationCommandOptionChoice {
	choices := make([]*discordgo.ApplicationCommandOptionChoice, 0, len(calendar.Days))
	for _, day := range calendar.Days {
		choices = append(choices, &discordgo.ApplicationCommandOptionChoice{Name: titleCase(day), Value: day})
	}
	return choices
}()

var botCommands = []*discordgo.ApplicationCommand{
	{
		Name:        "rpset",
		Description: "Add a roleplay event to this week's calendar",
		Options: []*discordgo.ApplicationCommandOption{
			{Type: discordgo.ApplicationCommandOptionString, Name: "day", Description: "Day of the current week", Required: true, Choices: dayChoices},
			{Type: discordgo.ApplicationCommandOptionString, Name: "time", Description: "Start time in the server timezone, e.g. 19:30 or 7:30 PM", Required: true},
			{Type: discordgo.ApplicationCommandOptionString, Name: "title", Description: "Event title", Required: true},
			{Type: discordgo.ApplicationCommandOptionString, Name: "description", Description: "Event description"},
		},
	},
	{
		Name:        "rpedit",
		Description: "Edit a roleplay event",
		Options: []*discordgo.ApplicationCommandOption{
			{Type: discordgo.ApplicationCommandOptionString, Name: "event_id", Description: "ID shown by /rplist", Required: true},
			{Type: discordgo.ApplicationCommandOptionString, Name: "day", Description: "New day", Choices: dayChoices},
			{Type: discordgo.ApplicationCommandOptionString, Name: "time", Description: "New start time in the server timezone"},
			{Type: discordgo.ApplicationCommandOptionString, Name: "title", Description: "New title"},
			{Type: discordgo.ApplicationCommandOptionString, Name: "description", Description: "New description"},
		},
	},
	{
		Name:        "rpdelete",
		Description: "Delete a roleplay event",
		Options: []*discordgo.ApplicationCommandOption{
			{Type: discordgo.ApplicationCommandOptionString, Name: "event_id", Description: "ID shown by /rplist", Required: true},
		},
	},
	{
		Name:        "rplist",
		Description: "List all scheduled roleplay events",
	},
	{
		Name:        "calendar",
		Description: "Show this week's calendar in your timezone",
	},
	{
		Name:        "settimezone",
		Description: "Set your timezone for calendar views",
		Options: []*discordgo.ApplicationCommandOption{
			{Type: discordgo.ApplicationCommandOptionString, Name: "timezone", Description: "IANA timezone, e.g. America/New_York", Required: true},
		},
	},
	{
		Name:        "setguildtimezone",
		Description: "Set the timezone event times are entered in",
		Options: []*discordgo.ApplicationCommandOption{
			{Type: discordgo.ApplicationCommandOptionString, Name: "timezone", Description: "IANA timezone, e.g. Europe/London", Required: true},
		},
	},
	{
		Name:        "setcalendarchannel",
		Description: "Set the channel the weekly calendar is posted in",
		Options: []*discordgo.ApplicationCommandOption{
			{Type: discordgo.ApplicationCommandOptionChannel, Name: "channel", Description: "Calendar channel", Required: true, ChannelTypes: []discordgo.ChannelType{discordgo.ChannelTypeGuildText}},
		},
	},
	{
		Name:        "setclockchannel",
		Description: "Set the channel clock-in messages are posted in",
		Options: []*discordgo.ApplicationCommandOption{
			{Type: discordgo.ApplicationCommandOptionChannel, Name: "channel", Description: "Clock-in channel", Required: true, ChannelTypes: []discordgo.ChannelType{discordgo.ChannelTypeGuildText}},
		},
	},
	{
		Name:        "togglefactions",
		Description: "Enable or disable faction time tracking",
		Options: []*discordgo.ApplicationCommandOption{
			{Type: discordgo.ApplicationCommandOptionBoolean, Name: "enabled", Description: "Leave empty to flip the current setting"},
		},
	},
	{
		Name:        "mytime",
		Description: "Show tracked voice time",
		Options: []*discordgo.ApplicationCommandOption{
			{Type: discordgo.ApplicationCommandOptionUser, Name: "user", Description: "Member to look up"},
		},
	},
	{
		Name:        "factiontime",
		Description: "Show today's faction standings",
	},
	{
		Name:        "timeleaderboard",
		Description: "Show the members with the most voice time",
	},
	{
		Name:        "factionpoints",
		Description: "View faction points and achievements",
	},
	{
		Name:        "awardpoints",
		Description: "Award or deduct faction points",
		Options: []*discordgo.ApplicationCommandOption{
			{Type: discordgo.ApplicationCommandOptionString, Name: "faction", Description: "Faction role name", Required: true},
			{Type: discordgo.ApplicationCommandOptionInteger, Name: "points", Description: "Points to add, negative to deduct", Required: true},
			{Type: discordgo.ApplicationCommandOptionInteger, Name: "victories", Description: "Victories to add"},
			{Type: discordgo.ApplicationCommandOptionInteger, Name: "activities", Description: "Activities to add"},
			{Type: discordgo.ApplicationCommandOptionString, Name: "reason", Description: "Shown in the announcement"},
		},
	},
	{
		Name:                     "botadmin",
		Description:              "Manage bot administrators",
		DefaultMemberPermissions: &adminPermission,
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type: discordgo.ApplicationCommandOptionSubCommand, Name: "add", Description: "Grant a user bot administrator rights",
				Options: []*discordgo.ApplicationCommandOption{
					{Type: discordgo.ApplicationCommandOptionUser, Name: "user", Description: "User to grant", Required: true},
				},
			},
			{
				Type: discordgo.ApplicationCommandOptionSubCommand, Name: "remove", Description: "Revoke a user's bot administrator rights",
				Options: []*discordgo.ApplicationCommandOption{
					{Type: discordgo.ApplicationCommandOptionUser, Name: "user", Description: "User to revoke", Required: true},
				},
			},
			{
				Type: discordgo.ApplicationCommandOptionSubCommand, Name: "addrole", Description: "Grant a role bot administrator rights",
				Options: []*discordgo.ApplicationCommandOption{
					{Type: discordgo.ApplicationCommandOptionRole, Name: "role", Description: "Role to grant", Required: true},
				},
			},
			{
				Type: discordgo.ApplicationCommandOptionSubCommand, Name: "removerole", Description: "Revoke a role's bot administrator rights",
				Options: []*discordgo.ApplicationCommandOption{
					{Type: discordgo.ApplicationCommandOptionRole, Name: "role", Description: "Role to revoke", Required: true},
				},
			},
			{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "list", Description: "List bot administrators"},
		},
	},
	{
		Name:        "resettimes",
		Description: "Reset all faction times",
		Options: []*discordgo.ApplicationCommandOption{
			{Type: discordgo.ApplicationCommandOptionBoolean, Name: "confirm", Description: "Confirm the reset", Required: true},
		},
	},
}

func (b *Bot) handlers() map[string]commandHandler {
	return map[string]commandHandler{
		"rpset":              b.adminOnly(b.rpSet),
		"rpedit":             b.rpEdit,
		"rpdelete":           b.rpDelete,
		"rplist":             b.rpList,
		"calendar":           b.showCalendar,
		"settimezone":        b.setTimezone,
		"setguildtimezone":   b.adminOnly(b.setGuildTimezone),
		"setcalendarchannel": b.adminOnly(b.setCalendarChannel),
		"setclockchannel":    b.adminOnly(b.setClockChannel),
		"togglefactions":     b.adminOnly(b.toggleFactions),
		"mytime":             b.myTime,
		"factiontime":        b.factionTime,
		"timeleaderboard":    b.timeLeaderboard,
		"factionpoints":      b.factionPoints,
		"awardpoints":        b.adminOnly(b.awardPoints),
		"botadmin":           b.serverAdminOnly(b.botAdmin),
		"resettimes":         b.adminOnly(b.resetTimes),
	}
}

// interactionCreate handles slash command interactions
func (b *Bot) interactionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}

	name := i.ApplicationCommandData().Name
	handler, ok := b.commandHandlers[name]
	if !ok {
		log.Printf("Unknown command: %s", name)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	data, err := handler(ctx, i)
	if err != nil {
		log.Printf("❌ Command /%s failed for %s: %v", name, interactionUserID(i), err)
		data = errorResponse(err)
	}

	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: data,
	}); err != nil {
		log.Printf("Error responding to /%s: %v", name, err)
	}
}

// errorResponse turns a handler error into an ephemeral reply. Only user errors are shown verbatim.
func errorResponse(err error) *discordgo.InteractionResponseData {
	content := "❌ There was an error executing this command!"
	switch {
	case errors.Is(err, models.ErrForbidden):
		content = "❌ You don't have permission to do that."
	case models.IsValidation(err), models.IsNotFound(err):
		content = "❌ " + err.Error()
	}
	return ephemeral(content)
}

func ephemeral(content string) *discordgo.InteractionResponseData {
	return &discordgo.InteractionResponseData{Content: content, Flags: discordgo.MessageFlagsEphemeral}
}

func embedReply(embed *discordgo.MessageEmbed, private bool) *discordgo.InteractionResponseData {
	data := &discordgo.InteractionResponseData{Embeds: []*discordgo.MessageEmbed{embed}}
	if private {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	return data
}

func interactionUser(i *discordgo.InteractionCreate) *discordgo.User {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User
	}
	return i.User
}

func interactionUserID(i *discordgo.InteractionCreate) string {
	if u := interactionUser(i); u != nil {
		return u.ID
	}
	return ""
}

func interactionUserName(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return displayName(i.Member)
	}
	if i.User != nil {
		return i.User.Username
	}
	return ""
}

func options(i *discordgo.InteractionCreate) map[string]*discordgo.ApplicationCommandInteractionDataOption {
	opts := i.ApplicationCommandData().Options
	m := make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(opts))
	for _, opt := range opts {
		m[opt.Name] = opt
	}
	return m
}

func stringOption(opts map[string]*discordgo.ApplicationCommandInteractionDataOption, name string) *string {
	opt, ok := opts[name]
	if !ok {
		return nil
	}
	v := opt.StringValue()
	return &v
}

func (b *Bot) requireGuild(i *discordgo.InteractionCreate) error {
	if i.GuildID == "" {
		return models.NewValidationError("guild", "This command can only be used in a server.")
	}
	return nil
}

func (b *Bot) rpSet(ctx context.Context, i *discordgo.InteractionCreate) (*discordgo.InteractionResponseData, error) {
	if err := b.requireGuild(i); err != nil {
		return nil, err
	}
	opts := options(i)
	in := calendar.EventInput{AuthorID: interactionUserID(i), AuthorName: interactionUserName(i)}
	if v := stringOption(opts, "day"); v != nil {
		in.Day = *v
	}
	if v := stringOption(opts, "time"); v != nil {
		in.Time = *v
	}
	if v := stringOption(opts, "title"); v != nil {
		in.Title = *v
	}
	if v := stringOption(opts, "description"); v != nil {
		in.Description = *v
	}

	now := b.now()
	event, err := b.calendar.SetEvent(ctx, i.GuildID, in, now)
	if err != nil {
		return nil, err
	}
	log.Printf("📅 %s added event %s (%s) in %s", in.AuthorName, event.ID, event.Title, i.GuildID)

	b.refreshCalendar(ctx, i.GuildID)
	return embedReply(eventEmbed("✅ Event Added", event, now), false), nil
}

func (b *Bot) rpEdit(ctx context.Context, i *discordgo.InteractionCreate) (*discordgo.InteractionResponseData, error) {
	if err := b.requireGuild(i); err != nil {
		return nil, err
	}
	opts := options(i)
	eventID := ""
	if v := stringOption(opts, "event_id"); v != nil {
		eventID = *v
	}
	patch := calendar.EventPatch{
		Day:         stringOption(opts, "day"),
		Time:        stringOption(opts, "time"),
		Title:       stringOption(opts, "title"),
		Description: stringOption(opts, "description"),
	}
	actor, err := b.actor(ctx, i)
	if err != nil {
		return nil, err
	}

	now := b.now()
	event, err := b.calendar.EditEvent(ctx, i.GuildID, eventID, actor, patch, now)
	if err != nil {
		return nil, err
	}
	log.Printf("✏️ %s edited event %s in %s", actor.UserID, event.ID, i.GuildID)

	b.refreshCalendar(ctx, i.GuildID)
	return embedReply(eventEmbed("✏️ Event Updated", event, now), true), nil
}

func (b *Bot) rpDelete(ctx context.Context, i *discordgo.InteractionCreate) (*discordgo.InteractionResponseData, error) {
	if err := b.requireGuild(i); err != nil {
		return nil, err
	}
	eventID := ""
	if v := stringOption(options(i), "event_id"); v != nil {
		eventID = *v
	}
	actor, err := b.actor(ctx, i)
	if err != nil {
		return nil, err
	}

	event, err := b.calendar.DeleteEvent(ctx, i.GuildID, eventID, actor)
	if err != nil {
		return nil, err
	}
	log.Printf("🗑️ %s deleted event %s in %s", actor.UserID, event.ID, i.GuildID)

	b.refreshCalendar(ctx, i.GuildID)
	return ephemeral(fmt.Sprintf("🗑️ Deleted **%s** (%s).", event.Title, event.Date)), nil
}

func (b *Bot) rpList(ctx context.Context, i *discordgo.InteractionCreate) (*discordgo.InteractionResponseData, error) {
	if err := b.requireGuild(i); err != nil {
		return nil, err
	}
	tz := b.viewerTimezone(ctx, interactionUserID(i))
	views, err := b.calendar.ListEvents(ctx, i.GuildID, tz)
	if err != nil {
		return nil, err
	}
	return embedReply(eventListEmbed(views, tz, b.now()), true), nil
}

func (b *Bot) showCalendar(ctx context.Context, i *discordgo.InteractionCreate) (*discordgo.InteractionResponseData, error) {
	if err := b.requireGuild(i); err != nil {
		return nil, err
	}
	now := b.now()
	tz := b.viewerTimezone(ctx, interactionUserID(i))
	week, err := b.calendar.WeekView(ctx, i.GuildID, tz, now)
	if err != nil {
		return nil, err
	}
	return embedReply(personalWeekEmbed(week, tz, now), true), nil
}

// viewerTimezone returns the user's stored timezone, falling back to UTC when it is unusable
func (b *Bot) viewerTimezone(ctx context.Context, userID string) string {
	tz, err := b.calendar.UserTimezone(ctx, userID)
	if err != nil {
		log.Printf("Could not load timezone for %s: %v", userID, err)
		return models.DefaultTimezone
	}
	if _, err := calendar.LoadTimezone(tz); err != nil {
		return models.DefaultTimezone
	}
	return tz
}

func (b *Bot) setTimezone(ctx context.Context, i *discordgo.InteractionCreate) (*discordgo.InteractionResponseData, error) {
	tz := ""
	if v := stringOption(options(i), "timezone"); v != nil {
		tz = *v
	}
	name, err := b.calendar.SetUserTimezone(ctx, interactionUserID(i), tz)
	if err != nil {
		return nil, err
	}
	loc, _ := calendar.LoadTimezone(name)
	return ephemeral(fmt.Sprintf("🌍 Your timezone is now **%s** (currently %s).", name, b.now().In(loc).Format("15:04"))), nil
}

func (b *Bot) setGuildTimezone(ctx context.Context, i *discordgo.InteractionCreate) (*discordgo.InteractionResponseData, error) {
	if err := b.requireGuild(i); err != nil {
		return nil, err
	}
	tz := ""
	if v := stringOption(options(i), "timezone"); v != nil {
		tz = *v
	}
	name, err := b.calendar.SetGuildTimezone(ctx, i.GuildID, tz)
	if err != nil {
		return nil, err
	}
	log.Printf("🌍 Guild %s timezone set to %s", i.GuildID, name)

	b.refreshCalendar(ctx, i.GuildID)
	return ephemeral(fmt.Sprintf("🌍 Event times will now be entered in **%s**. Existing events keep their times.", name)), nil
}

func channelOption(i *discordgo.InteractionCreate, name string) (string, error) {
	opt, ok := options(i)[name]
	if !ok {
		return "", models.NewValidationError(name, "A channel is required.")
	}
	return opt.ChannelValue(nil).ID, nil
}

func (b *Bot) setCalendarChannel(ctx context.Context, i *discordgo.InteractionCreate) (*discordgo.InteractionResponseData, error) {
	if err := b.requireGuild(i); err != nil {
		return nil, err
	}
	channelID, err := channelOption(i, "channel")
	if err != nil {
		return nil, err
	}
	if err := b.store.SetCalendarChannel(ctx, i.GuildID, channelID); err != nil {
		return nil, err
	}

	b.refreshCalendar(ctx, i.GuildID)
	return ephemeral(fmt.Sprintf("📅 The calendar will be posted in %s.", utils.FormatChannelMention(channelID))), nil
}

func (b *Bot) setClockChannel(ctx context.Context, i *discordgo.InteractionCreate) (*discordgo.InteractionResponseData, error) {
	if err := b.requireGuild(i); err != nil {
		return nil, err
	}
	channelID, err := channelOption(i, "channel")
	if err != nil {
		return nil, err
	}
	if err := b.store.SetClockChannel(ctx, i.GuildID, channelID); err != nil {
		return nil, err
	}
	return ephemeral(fmt.Sprintf("🕐 Clock-in messages will be posted in %s.", utils.FormatChannelMention(channelID))), nil
}

func (b *Bot) toggleFactions(ctx context.Context, i *discordgo.InteractionCreate) (*discordgo.InteractionResponseData, error) {
	if err := b.requireGuild(i); err != nil {
		return nil, err
	}
	settings, err := b.store.GetGuildSettings(ctx, i.GuildID)
	if err != nil {
		return nil, err
	}
	enabled := !settings.FactionsEnabled
	if opt, ok := options(i)["enabled"]; ok {
		enabled = opt.BoolValue()
	}
	if err := b.store.SetFactionsEnabled(ctx, i.GuildID, enabled); err != nil {
		return nil, err
	}
	log.Printf("🏴 Factions %s in %s", enabledWord(enabled), i.GuildID)

	if enabled {
		return ephemeral("✅ Factions are now **enabled**. Voice time counts toward faction totals."), nil
	}
	return ephemeral("⏸️ Factions are now **disabled**. Only personal voice time is tracked."), nil
}

func enabledWord(enabled bool) string {
	if enabled {
		return "enabled"
	}
	return "disabled"
}

func (b *Bot) myTime(ctx context.Context, i *discordgo.InteractionCreate) (*discordgo.InteractionResponseData, error) {
	userID := interactionUserID(i)
	name := interactionUserName(i)
	var roles []string
	if i.Member != nil {
		roles = roleNames(b.session, i.GuildID, i.Member.Roles)
	}

	if opt, ok := options(i)["user"]; ok {
		user := opt.UserValue(nil)
		userID, name, roles = user.ID, user.ID, nil
		if resolved := i.ApplicationCommandData().Resolved; resolved != nil {
			if u, ok := resolved.Users[user.ID]; ok {
				name = u.Username
			}
			if m, ok := resolved.Members[user.ID]; ok {
				roles = roleNames(b.session, i.GuildID, m.Roles)
				if m.Nick != "" {
					name = m.Nick
				}
			}
		}
	}

	ut, err := b.store.GetUserTime(ctx, userID)
	if err != nil {
		return nil, err
	}
	f, ok := b.factions.Resolve(roles)
	fp := &f
	if !ok {
		fp = nil
	}
	return embedReply(userTimeEmbed(name, ut, fp, b.now()), false), nil
}

func (b *Bot) factionTime(ctx context.Context, i *discordgo.InteractionCreate) (*discordgo.InteractionResponseData, error) {
	if i.GuildID != "" {
		settings, err := b.store.GetGuildSettings(ctx, i.GuildID)
		if err != nil {
			return nil, err
		}
		if !settings.FactionsEnabled {
			return ephemeral("⏸️ Factions are disabled in this server."), nil
		}
	}
	standings, err := b.rollover.Standings(ctx)
	if err != nil {
		return nil, err
	}
	return embedReply(factionTimeEmbed(standings, b.now()), false), nil
}

const leaderboardSize = 10

func (b *Bot) timeLeaderboard(ctx context.Context, _ *discordgo.InteractionCreate) (*discordgo.InteractionResponseData, error) {
	top, err := b.store.TopUserTimes(ctx, leaderboardSize)
	if err != nil {
		return nil, err
	}
	return embedReply(topTimesEmbed(top, b.now()), false), nil
}

func (b *Bot) factionPoints(ctx context.Context, i *discordgo.InteractionCreate) (*discordgo.InteractionResponseData, error) {
	standings, err := b.rollover.PointStandings(ctx)
	if err != nil {
		return nil, err
	}
	return embedReply(factionPointsEmbed(standings, b.now()), false), nil
}

func intOption(opts map[string]*discordgo.ApplicationCommandInteractionDataOption, name string) int64 {
	if opt, ok := opts[name]; ok {
		return opt.IntValue()
	}
	return 0
}

func (b *Bot) awardPoints(ctx context.Context, i *discordgo.InteractionCreate) (*discordgo.InteractionResponseData, error) {
	opts := options(i)
	name := ""
	if v := stringOption(opts, "faction"); v != nil {
		name = *v
	}
	f, ok := b.factions.ByKey(faction.KeyFor(name))
	if !ok {
		return nil, models.NewValidationError("faction", "Unknown faction %q. Choose one of: %s.", name, strings.Join(factionNames(b.factions), ", "))
	}

	award := models.FactionPoints{
		Faction:    f.Key,
		Points:     intOption(opts, "points"),
		Victories:  intOption(opts, "victories"),
		Activities: intOption(opts, "activities"),
	}
	if award.Points == 0 && award.Victories == 0 && award.Activities == 0 {
		return nil, models.NewValidationError("points", "Nothing to award.")
	}
	if err := b.store.IncrementFactionPoints(ctx, f.Key, award.Points, award.Victories, award.Activities); err != nil {
		return nil, err
	}
	admin := interactionUserName(i)
	log.Printf("🎖️ %s awarded %s %+d points", admin, f.Name, award.Points)

	reason := ""
	if v := stringOption(opts, "reason"); v != nil {
		reason = *v
	}
	return embedReply(pointsAwardEmbed(f, award, reason, admin, b.now()), false), nil
}

func factionNames(r *faction.Resolver) []string {
	var names []string
	for _, f := range r.Factions() {
		names = append(names, f.Name)
	}
	return names
}

func (b *Bot) resetTimes(ctx context.Context, i *discordgo.InteractionCreate) (*discordgo.InteractionResponseData, error) {
	if opt, ok := options(i)["confirm"]; !ok || !opt.BoolValue() {
		return ephemeral("Reset cancelled."), nil
	}
	if err := b.store.ResetFactionTimes(ctx); err != nil {
		return nil, err
	}
	admin := interactionUserName(i)
	log.Printf("🔄 Faction times reset by %s", admin)

	if b.notifier != nil && i.GuildID != "" {
		b.notifier.post(ctx, i.GuildID, resetNoticeEmbed(admin, b.now()))
	}
	return ephemeral("🔄 All faction times have been reset."), nil
}

// refreshCalendar republishes the guild's calendar message if a calendar channel is set
func (b *Bot) refreshCalendar(ctx context.Context, guildID string) {
	settings, err := b.store.GetCalendarSettings(ctx, guildID)
	if err != nil {
		log.Printf("Could not load calendar settings for %s: %v", guildID, err)
		return
	}
	if settings.ChannelID == "" {
		return
	}
	if err := b.publishCalendar(ctx, settings); err != nil {
		log.Printf("❌ Error refreshing calendar for %s: %v", guildID, err)
	}
}

// PublishAll refreshes the calendar message of every guild with a calendar channel
func (b *Bot) PublishAll(ctx context.Context) error {
	guilds, err := b.store.CalendarGuilds(ctx)
	if err != nil {
		return fmt.Errorf("failed to list calendar guilds: %w", err)
	}

	var errs []error
	for _, settings := range guilds {
		if err := b.publishCalendar(ctx, settings); err != nil {
			errs = append(errs, fmt.Errorf("guild %s: %w", settings.GuildID, err))
		}
	}
	log.Printf("📅 Refreshed %d calendars (%d failed)", len(guilds)-len(errs), len(errs))
	return errors.Join(errs...)
}

// publishCalendar edits the stored calendar message, posting a new one when it is gone
func (b *Bot) publishCalendar(ctx context.Context, settings models.CalendarSettings) error {
	now := b.now()
	tz, err := b.calendar.GuildTimezone(ctx, settings.GuildID)
	if err != nil {
		return err
	}
	week, err := b.calendar.WeekView(ctx, settings.GuildID, tz, now)
	if err != nil {
		return err
	}
	embed := serverCalendarEmbed(week, tz, now)

	if settings.MessageID != "" {
		_, err := b.session.ChannelMessageEditEmbed(settings.ChannelID, settings.MessageID, embed, discordgo.WithContext(ctx))
		if err == nil {
			return nil
		}
		log.Printf("Could not edit calendar message %s, posting a new one: %v", settings.MessageID, err)
	}

	msg, err := b.session.ChannelMessageSendEmbed(settings.ChannelID, embed, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to post calendar: %w", err)
	}
	return b.store.SetCalendarMessage(ctx, settings.GuildID, msg.ID)
}
