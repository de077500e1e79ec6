package discord

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/bwmarrin/discordgo"

	"voicecal/internal/calendar"
	"voicecal/internal/faction"
	"voicecal/internal/jobs"
	"voicecal/internal/models"
	"voicecal/internal/tracker"
)

const handlerTimeout = 15 * time.Second

// Store is the persistence the command surface reads and writes directly
type Store interface {
	GetUserTime(ctx context.Context, userID string) (models.UserTime, error)
	TopUserTimes(ctx context.Context, limit int) ([]models.UserTime, error)
	GetGuildSettings(ctx context.Context, guildID string) (models.GuildSettings, error)
	SetFactionsEnabled(ctx context.Context, guildID string, enabled bool) error
	SetClockChannel(ctx context.Context, guildID, channelID string) error
	GetCalendarSettings(ctx context.Context, guildID string) (models.CalendarSettings, error)
	SetCalendarChannel(ctx context.Context, guildID, channelID string) error
	SetCalendarMessage(ctx context.Context, guildID, messageID string) error
	CalendarGuilds(ctx context.Context) ([]models.CalendarSettings, error)
	ResetFactionTimes(ctx context.Context) error
	IncrementFactionPoints(ctx context.Context, key string, points, victories, activities int64) error
	GetBotAdmins(ctx context.Context) (models.BotAdmins, error)
	AddBotAdmin(ctx context.Context, kind models.AdminKind, id string) (bool, error)
	RemoveBotAdmin(ctx context.Context, kind models.AdminKind, id string) (bool, error)
}

// Options wires the bot to the rest of the application
type Options struct {
	GuildID  string
	Store    Store
	Tracker  *tracker.Tracker
	Calendar *calendar.Service
	Rollover *jobs.FactionRollover
	Factions *faction.Resolver
	Notifier *Notifier
}

// Bot represents the Discord bot
type Bot struct {
	session         *discordgo.Session
	guildID         string
	store           Store
	tracker         *tracker.Tracker
	calendar        *calendar.Service
	rollover        *jobs.FactionRollover
	factions        *faction.Resolver
	notifier        *Notifier
	commandHandlers map[string]commandHandler
	now             func() time.Time
}

// NewSession creates a Discord session with the intents the bot needs
func NewSession(token string) (*discordgo.Session, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}

	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsGuildVoiceStates

	return session, nil
}

// New creates a new Discord bot on an unopened session
func New(session *discordgo.Session, opts Options) *Bot {
	bot := &Bot{
		session:  session,
		guildID:  opts.GuildID,
		store:    opts.Store,
		tracker:  opts.Tracker,
		calendar: opts.Calendar,
		rollover: opts.Rollover,
		factions: opts.Factions,
		notifier: opts.Notifier,
		now:      time.Now,
	}
	bot.commandHandlers = bot.handlers()

	if session != nil {
		session.AddHandler(bot.ready)
		session.AddHandler(bot.voiceStateUpdate)
		session.AddHandler(bot.interactionCreate)
	}

	return bot
}

// Start opens the gateway connection and registers slash commands
func (b *Bot) Start() error {
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("failed to open Discord connection: %w", err)
	}

	created, err := b.session.ApplicationCommandBulkOverwrite(b.session.State.User.ID, b.guildID, botCommands)
	if err != nil {
		return fmt.Errorf("failed to register commands: %w", err)
	}
	log.Printf("✅ Registered %d commands", len(created))

	log.Println("✅ Bot is running...")
	return nil
}

// Stop stops the bot
func (b *Bot) Stop() error {
	return b.session.Close()
}

func (b *Bot) ready(s *discordgo.Session, r *discordgo.Ready) {
	log.Printf("🤖 Logged in as %s (%d guilds)", r.User.Username, len(r.Guilds))
}

type transition int

const (
	transitionNone transition = iota
	transitionJoin
	transitionLeave
	transitionSwitch
)

func (t transition) String() string {
	switch t {
	case transitionJoin:
		return "join"
	case transitionLeave:
		return "leave"
	case transitionSwitch:
		return "switch"
	default:
		return "none"
	}
}

// classifyVoiceTransition maps the channel before and after a voice state update to a transition.
// Mute, deafen and stream updates keep the channel and are ignored.
func classifyVoiceTransition(before, after string) transition {
	switch {
	case before == "" && after != "":
		return transitionJoin
	case before != "" && after == "":
		return transitionLeave
	case before != "" && after != "" && before != after:
		return transitionSwitch
	default:
		return transitionNone
	}
}

// voiceStateUpdate handles voice state updates
func (b *Bot) voiceStateUpdate(s *discordgo.Session, vs *discordgo.VoiceStateUpdate) {
	if vs.Member != nil && vs.Member.User != nil && vs.Member.User.Bot {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	before := ""
	if vs.BeforeUpdate != nil {
		before = vs.BeforeUpdate.ChannelID
	}
	if before == "" {
		// The state cache is empty after a reconnect, the tracker still knows the open session
		if ch, ok := b.tracker.OpenChannel(ctx, vs.GuildID, vs.UserID); ok {
			before = ch
		}
	}

	t := classifyVoiceTransition(before, vs.ChannelID)
	if t == transitionNone {
		return
	}

	member := b.member(s, vs.GuildID, vs.UserID, vs.Member)
	now := b.now()

	switch t {
	case transitionJoin:
		err := b.tracker.OnJoin(ctx, member, b.channel(s, vs.ChannelID), now)
		if errors.Is(err, models.ErrSessionOpen) {
			log.Printf("Join for %s ignored, session already open", member.Username)
		} else if err != nil {
			log.Printf("❌ Error handling join for %s: %v", member.Username, err)
		}
	case transitionLeave:
		_, err := b.tracker.OnLeave(ctx, member, b.channel(s, before), now)
		if models.IsNotFound(err) {
			log.Printf("Leave for %s ignored, no open session", member.Username)
		} else if err != nil {
			log.Printf("❌ Error handling leave for %s: %v", member.Username, err)
		}
	case transitionSwitch:
		if _, err := b.tracker.OnSwitch(ctx, member, b.channel(s, before), b.channel(s, vs.ChannelID), now); err != nil {
			log.Printf("❌ Error handling switch for %s: %v", member.Username, err)
		}
	}
}

// member builds the tracker's view of a guild member, falling back to the state cache
func (b *Bot) member(s *discordgo.Session, guildID, userID string, dm *discordgo.Member) tracker.Member {
	m := tracker.Member{GuildID: guildID, UserID: userID, Username: userID, DisplayName: userID}
	if dm == nil && s != nil {
		dm, _ = s.State.Member(guildID, userID)
	}
	if dm == nil {
		return m
	}
	if dm.User != nil {
		m.Username = dm.User.Username
		m.DisplayName = displayName(dm)
	}
	m.RoleNames = roleNames(s, guildID, dm.Roles)
	return m
}

func displayName(m *discordgo.Member) string {
	switch {
	case m.Nick != "":
		return m.Nick
	case m.User != nil && m.User.GlobalName != "":
		return m.User.GlobalName
	case m.User != nil:
		return m.User.Username
	default:
		return ""
	}
}

func roleNames(s *discordgo.Session, guildID string, roleIDs []string) []string {
	if s == nil {
		return nil
	}
	names := make([]string, 0, len(roleIDs))
	for _, id := range roleIDs {
		if role, err := s.State.Role(guildID, id); err == nil {
			names = append(names, role.Name)
		}
	}
	return names
}

func (b *Bot) channel(s *discordgo.Session, channelID string) tracker.Channel {
	if s != nil {
		if ch, err := s.State.Channel(channelID); err == nil {
			return tracker.Channel{ID: ch.ID, Name: ch.Name}
		}
	}
	return tracker.Channel{ID: channelID, Name: channelID}
}
