package chat

import (
	"time"

	"github.com/bwmarrin/discordgo"
)

// Invite is the resolved form of an invite code: where it leads and
// when it stops working. A nil ExpiresAt means the invite never expires.
type Invite struct {
	Code      string
	GuildID   string
	GuildName string
	ExpiresAt *time.Time
}

// Chat is the surface of the platform the engine talks to. Everything
// else in the engine depends on this interface rather than on a live
// session, so tests can run against an in-memory fake.
type Chat interface {
	Channel(channelID string) (*discordgo.Channel, error)
	Message(channelID, messageID string) (*discordgo.Message, error)

	// LatestMessage returns the single most recent message in the
	// channel, or nil if the channel is empty.
	LatestMessage(channelID string) (*discordgo.Message, error)

	// History returns up to limit messages strictly after afterID,
	// ordered oldest first. An empty afterID starts from the beginning
	// of the channel.
	History(channelID, afterID string, limit int) ([]*discordgo.Message, error)

	Invite(code string) (*Invite, error)

	// WebhookSend posts content through the webhook URL and returns
	// the ID of the created message.
	WebhookSend(webhookURL, username, content string) (string, error)
	WebhookDelete(webhookURL, messageID string) error
}
