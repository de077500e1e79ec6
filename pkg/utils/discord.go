package utils

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
)

// FormatUserMention formats a user ID as a Discord mention
func FormatUserMention(userID string) string {
	return fmt.Sprintf("<@%s>", userID)
}

// FormatChannelMention formats a channel ID as a Discord channel mention
func FormatChannelMention(channelID string) string {
	return fmt.Sprintf("<#%s>", channelID)
}

// FormatRoleMention formats a role ID as a Discord role mention
func FormatRoleMention(roleID string) string {
	return fmt.Sprintf("<@&%s>", roleID)
}

// FormatTimestamp formats an instant as a Discord timestamp tag rendered in each reader's timezone.
// Style is one of Discord's format letters ("t", "F", "R", ...).
func FormatTimestamp(t time.Time, style string) string {
	return fmt.Sprintf("<t:%d:%s>", t.Unix(), style)
}

// FormatLeaderboardEntry formats a leaderboard entry with rank, name, and duration
func FormatLeaderboardEntry(rank int, name, duration string) string {
	medal := ""
	switch rank {
	case 1:
		medal = "🥇"
	case 2:
		medal = "🥈"
	case 3:
		medal = "🥉"
	default:
		medal = humanize.Ordinal(rank)
	}

	return fmt.Sprintf("%s %s - %s", medal, name, duration)
}

// TruncateString truncates a string to max length and adds ellipsis if needed
func TruncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
