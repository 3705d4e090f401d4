package chat

import (
	"regexp"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/pkg/errors"
)

var webhookURLRegexp = regexp.MustCompile(
	`https?://(?:\w+\.)?discord(?:app)?\.com/api/(?:v\d+/)?webhooks/(\d+)/([\w-]+)`,
)

// ErrInvalidWebhookURL is returned when a stored webhook URL cannot be
// split into an ID and token.
var ErrInvalidWebhookURL = errors.New("invalid webhook URL")

// Discord implements Chat on top of a discordgo session.
type Discord struct {
	session *discordgo.Session
}

func NewDiscord(session *discordgo.Session) *Discord {
	return &Discord{
		session: session,
	}
}

func (d *Discord) Channel(channelID string) (*discordgo.Channel, error) {
	return d.session.Channel(channelID)
}

func (d *Discord) Message(channelID, messageID string) (*discordgo.Message, error) {
	return d.session.ChannelMessage(channelID, messageID)
}

func (d *Discord) LatestMessage(channelID string) (*discordgo.Message, error) {
	messages, err := d.session.ChannelMessages(channelID, 1, "", "", "")
	if err != nil {
		return nil, err
	}
	if len(messages) == 0 {
		return nil, nil
	}

	return messages[0], nil
}

func (d *Discord) History(channelID, afterID string, limit int) ([]*discordgo.Message, error) {
	messages, err := d.session.ChannelMessages(channelID, limit, "", afterID, "")
	if err != nil {
		return nil, err
	}

	// the API returns pages newest first
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}

func (d *Discord) Invite(code string) (*Invite, error) {
	invite, err := d.session.Invite(code)
	if err != nil {
		return nil, err
	}

	resolved := &Invite{
		Code: invite.Code,
	}
	if invite.Guild != nil {
		resolved.GuildID = invite.Guild.ID
		resolved.GuildName = invite.Guild.Name
	}
	if invite.MaxAge > 0 {
		expiresAt := time.Now().Add(time.Duration(invite.MaxAge) * time.Second)
		resolved.ExpiresAt = &expiresAt
	}

	return resolved, nil
}

func (d *Discord) WebhookSend(webhookURL, username, content string) (string, error) {
	id, token, err := splitWebhookURL(webhookURL)
	if err != nil {
		return "", err
	}

	message, err := d.session.WebhookExecute(id, token, true, &discordgo.WebhookParams{
		Content:  content,
		Username: username,
	})
	if err != nil {
		return "", err
	}

	return message.ID, nil
}

func (d *Discord) WebhookDelete(webhookURL, messageID string) error {
	id, token, err := splitWebhookURL(webhookURL)
	if err != nil {
		return err
	}

	return d.session.WebhookMessageDelete(id, token, messageID)
}

func splitWebhookURL(webhookURL string) (id, token string, err error) {
	parts := webhookURLRegexp.FindStringSubmatch(webhookURL)
	if parts == nil {
		return "", "", errors.Wrap(ErrInvalidWebhookURL, webhookURL)
	}

	return parts[1], parts[2], nil
}
