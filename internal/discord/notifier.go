package discord

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand/v2"
	"time"

	"github.com/bwmarrin/discordgo"

	"voicecal/internal/faction"
	"voicecal/internal/jobs"
	"voicecal/internal/models"
	"voicecal/internal/tracker"
)

// SettingsReader resolves where a guild wants announcements
type SettingsReader interface {
	GetGuildSettings(ctx context.Context, guildID string) (models.GuildSettings, error)
}

// Notifier posts clock-in embeds, session DMs and the daily leaderboard
type Notifier struct {
	session  *discordgo.Session
	settings SettingsReader
	factions *faction.Resolver
	now      func() time.Time
}

// NewNotifier creates a notifier on the given session
func NewNotifier(session *discordgo.Session, settings SettingsReader, factions *faction.Resolver) *Notifier {
	return &Notifier{
		session:  session,
		settings: settings,
		factions: factions,
		now:      time.Now,
	}
}

var (
	_ tracker.Notifier = (*Notifier)(nil)
	_ jobs.Announcer   = (*Notifier)(nil)
)

// ClockIn announces a member joining voice
func (n *Notifier) ClockIn(ctx context.Context, m tracker.Member, ch tracker.Channel, f *faction.Faction) models.NotifyResult {
	return n.post(ctx, m.GuildID, clockInEmbed(m, ch, f, n.now()))
}

// ClockOut announces a member leaving voice
func (n *Notifier) ClockOut(ctx context.Context, m tracker.Member, ch tracker.Channel, d time.Duration, f *faction.Faction) models.NotifyResult {
	return n.post(ctx, m.GuildID, clockOutEmbed(m, ch, d, f, n.now()))
}

// Switch announces a member moving between voice channels
func (n *Notifier) Switch(ctx context.Context, m tracker.Member, from, to tracker.Channel, d time.Duration, f *faction.Faction) models.NotifyResult {
	return n.post(ctx, m.GuildID, switchEmbed(m, from, to, d, f, n.now()))
}

// DirectMessage sends the member a summary of the session they just finished
func (n *Notifier) DirectMessage(ctx context.Context, m tracker.Member, d time.Duration, f *faction.Faction) models.NotifyResult {
	channel, err := n.session.UserChannelCreate(m.UserID, discordgo.WithContext(ctx))
	if err != nil {
		return models.NotifyFailed(fmt.Errorf("failed to open DM channel: %w", err))
	}

	embed := sessionDMEmbed(d, f, factionColor(f, n.factions), motivationalMessage(f, rand.IntN(len(soloMessages))), n.now())
	if _, err := n.session.ChannelMessageSendEmbed(channel.ID, embed, discordgo.WithContext(ctx)); err != nil {
		return models.NotifyFailed(fmt.Errorf("failed to send DM: %w", err))
	}
	return models.NotifyOK()
}

// post sends an embed to the guild's clock-in channel, skipping guilds without one
func (n *Notifier) post(ctx context.Context, guildID string, embed *discordgo.MessageEmbed) models.NotifyResult {
	settings, err := n.settings.GetGuildSettings(ctx, guildID)
	if err != nil {
		return models.NotifyFailed(fmt.Errorf("failed to load guild settings: %w", err))
	}
	if settings.ClockChannelID == "" {
		return models.NotifySkipped()
	}

	if _, err := n.session.ChannelMessageSendEmbed(settings.ClockChannelID, embed, discordgo.WithContext(ctx)); err != nil {
		return models.NotifyFailed(fmt.Errorf("failed to post to %s: %w", settings.ClockChannelID, err))
	}
	return models.NotifyOK()
}

// AnnounceLeaderboard posts the standings to every guild with factions enabled and a clock-in channel
func (n *Notifier) AnnounceLeaderboard(ctx context.Context, standings []jobs.Standing) models.NotifyResult {
	n.session.State.RLock()
	guilds := append([]*discordgo.Guild(nil), n.session.State.Guilds...)
	n.session.State.RUnlock()

	var errs []error
	delivered := false
	for _, guild := range guilds {
		settings, err := n.settings.GetGuildSettings(ctx, guild.ID)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !settings.FactionsEnabled || settings.ClockChannelID == "" {
			continue
		}

		embed := leaderboardEmbed(standings, n.memberCounts(guild), n.now())
		if _, err := n.session.ChannelMessageSendEmbed(settings.ClockChannelID, embed, discordgo.WithContext(ctx)); err != nil {
			errs = append(errs, fmt.Errorf("failed to post leaderboard to %s: %w", guild.Name, err))
			continue
		}
		log.Printf("📊 Posted daily leaderboard to %s", guild.Name)
		delivered = true
	}

	if err := errors.Join(errs...); err != nil {
		return models.NotifyResult{Delivered: delivered, Err: err}
	}
	if !delivered {
		return models.NotifySkipped()
	}
	return models.NotifyOK()
}

// memberCounts counts the cached members holding each faction's role
func (n *Notifier) memberCounts(guild *discordgo.Guild) map[string]int {
	n.session.State.RLock()
	defer n.session.State.RUnlock()
	return countFactionMembers(guild, n.factions)
}

func countFactionMembers(guild *discordgo.Guild, factions *faction.Resolver) map[string]int {
	roleNames := make(map[string]string, len(guild.Roles))
	for _, role := range guild.Roles {
		roleNames[role.ID] = role.Name
	}

	counts := make(map[string]int)
	for _, f := range factions.Factions() {
		counts[f.Key] = 0
	}
	for _, member := range guild.Members {
		names := make([]string, 0, len(member.Roles))
		for _, id := range member.Roles {
			names = append(names, roleNames[id])
		}
		if f, ok := factions.Resolve(names); ok {
			counts[f.Key]++
		}
	}
	return counts
}
