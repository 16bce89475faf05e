package notify

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"
)

// discordSession abstracts the discordgo methods we use, enabling test mocks.
type discordSession interface {
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// DiscordNotifier delivers events to a Discord channel via the REST API.
type DiscordNotifier struct {
	sess      discordSession
	channelID string
}

// NewDiscord creates a Discord notifier posting to the given channel.
func NewDiscord(botToken, channelID string) (*DiscordNotifier, error) {
	sess, err := discordgo.New("Bot " + botToken)
	if err != nil {
		return nil, fmt.Errorf("notify: create discord session: %w", err)
	}
	return &DiscordNotifier{sess: sess, channelID: channelID}, nil
}

// Send posts the event as an embed. Plain REST sends don't need a gateway
// connection; discordgo handles its own rate-limit waits.
func (n *DiscordNotifier) Send(ctx context.Context, ev Event) error {
	embed := &discordgo.MessageEmbed{
		Title:       ev.Title,
		Description: ev.Body,
		Color:       hexColor(severityColor(ev.Severity)),
	}
	if _, err := n.sess.ChannelMessageSendEmbed(n.channelID, embed, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("notify: discord send: %w", err)
	}
	return nil
}

// hexColor converts a "#rrggbb" hint to the integer form Discord expects.
func hexColor(s string) int {
	v, err := strconv.ParseInt(strings.TrimPrefix(s, "#"), 16, 32)
	if err != nil {
		return 0
	}
	return int(v)
}
