package discord

import (
	"context"
	"fmt"
	"log"

	"github.com/bwmarrin/discordgo"

	"voicecal/internal/calendar"
	"voicecal/internal/models"
	"voicecal/pkg/utils"
)

// isServerAdmin reports whether the member owns the guild or holds the Administrator permission
func (b *Bot) isServerAdmin(i *discordgo.InteractionCreate) bool {
	if i.Member == nil {
		return false
	}
	if i.Member.Permissions&discordgo.PermissionAdministrator != 0 {
		return true
	}
	if b.session == nil || i.Member.User == nil {
		return false
	}
	guild, err := b.session.State.Guild(i.GuildID)
	return err == nil && guild.OwnerID == i.Member.User.ID
}

// isBotAdmin reports whether the member may run administrative commands.
// Server admins always may, other members need a grant for themselves or one of their roles.
func (b *Bot) isBotAdmin(ctx context.Context, i *discordgo.InteractionCreate) (bool, error) {
	if i.Member == nil || i.Member.User == nil {
		return false, nil
	}
	if b.isServerAdmin(i) {
		return true, nil
	}
	admins, err := b.store.GetBotAdmins(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to load bot admins: %w", err)
	}
	return admins.Allows(i.Member.User.ID, i.Member.Roles), nil
}

// actor identifies the member for event ownership checks
func (b *Bot) actor(ctx context.Context, i *discordgo.InteractionCreate) (calendar.Actor, error) {
	admin, err := b.isBotAdmin(ctx, i)
	if err != nil {
		return calendar.Actor{}, err
	}
	return calendar.Actor{UserID: interactionUserID(i), Admin: admin}, nil
}

func (b *Bot) adminOnly(h commandHandler) commandHandler {
	return func(ctx context.Context, i *discordgo.InteractionCreate) (*discordgo.InteractionResponseData, error) {
		admin, err := b.isBotAdmin(ctx, i)
		if err != nil {
			return nil, err
		}
		if !admin {
			return nil, models.ErrForbidden
		}
		return h(ctx, i)
	}
}

func (b *Bot) serverAdminOnly(h commandHandler) commandHandler {
	return func(ctx context.Context, i *discordgo.InteractionCreate) (*discordgo.InteractionResponseData, error) {
		if !b.isServerAdmin(i) {
			return nil, models.ErrForbidden
		}
		return h(ctx, i)
	}
}

// botAdmin manages the granted users and roles
func (b *Bot) botAdmin(ctx context.Context, i *discordgo.InteractionCreate) (*discordgo.InteractionResponseData, error) {
	data := i.ApplicationCommandData()
	if len(data.Options) == 0 {
		return nil, models.NewValidationError("subcommand", "Choose add, remove, addrole, removerole or list.")
	}
	sub := data.Options[0]
	now := b.now()

	if sub.Name == "list" {
		admins, err := b.store.GetBotAdmins(ctx)
		if err != nil {
			return nil, err
		}
		return embedReply(botAdminsEmbed(admins, now), true), nil
	}

	if len(sub.Options) == 0 {
		return nil, models.NewValidationError(sub.Name, "A user or role is required.")
	}
	opt := sub.Options[0]

	var (
		kind    models.AdminKind
		id      string
		mention string
	)
	switch sub.Name {
	case "add", "remove":
		kind, id = models.AdminUser, opt.UserValue(nil).ID
		mention = utils.FormatUserMention(id)
	case "addrole", "removerole":
		kind, id = models.AdminRole, opt.RoleValue(nil, "").ID
		mention = utils.FormatRoleMention(id)
	default:
		return nil, models.NewValidationError("subcommand", "Unknown subcommand %q.", sub.Name)
	}

	by := interactionUserName(i)
	if sub.Name == "add" || sub.Name == "addrole" {
		added, err := b.store.AddBotAdmin(ctx, kind, id)
		if err != nil {
			return nil, err
		}
		if !added {
			return ephemeral(fmt.Sprintf("❌ %s is already a bot administrator!", mention)), nil
		}
		log.Printf("🔧 %s granted bot admin to %s %s", by, kind, id)
		return embedReply(botAdminChangeEmbed("✅ Bot Administrator Added",
			fmt.Sprintf("%s has been granted bot administrator privileges!", mention), colorSuccess, now), true), nil
	}

	removed, err := b.store.RemoveBotAdmin(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	if !removed {
		return ephemeral(fmt.Sprintf("❌ %s is not a bot administrator!", mention)), nil
	}
	log.Printf("🔧 %s revoked bot admin from %s %s", by, kind, id)
	title := "❌ Bot Administrator Removed"
	if kind == models.AdminRole {
		title = "❌ Bot Administrator Role Removed"
	}
	return embedReply(botAdminChangeEmbed(title,
		fmt.Sprintf("%s no longer has bot administrator privileges.", mention), colorRevoked, now), true), nil
}
