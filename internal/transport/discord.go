package transport

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// DiscordTransport is a bonus channel beyond spec §4.9's email/sms pair,
// sending a DM through the same discordgo.Session the bot already holds —
// grounded on the teacher's BuildNotificationEmbed/ChannelMessageSendEmbed
// pairing in the now-removed internal/manager/notifications.go, trimmed from
// a rich embed down to plain text to match this package's SendSMS-shaped
// single string body.
type DiscordTransport struct {
	session *discordgo.Session
}

func NewDiscordTransport(session *discordgo.Session) *DiscordTransport {
	return &DiscordTransport{session: session}
}

// SendDiscordDM opens (or reuses) a DM channel with the Discord user id and
// posts body. Returns the sent message's id as the external id.
func (t *DiscordTransport) SendDiscordDM(discordUserID, body string) (string, error) {
	channel, err := t.session.UserChannelCreate(discordUserID)
	if err != nil {
		return "", &Error{Kind: Discord, Err: fmt.Errorf("open DM channel: %w", err)}
	}
	msg, err := t.session.ChannelMessageSend(channel.ID, body)
	if err != nil {
		return "", &Error{Kind: Discord, Err: fmt.Errorf("send DM: %w", err)}
	}
	return msg.ID, nil
}
