package ads

import (
	"github.com/jinzhu/gorm"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"gitlab.com/AdWatch/Engine/metrics"
	"gitlab.com/AdWatch/Engine/pkg/chat"
)

// Webhook usernames per event kind.
const (
	senderNewAd          = "New Ad"
	senderAdEdited       = "Ad Edited"
	senderAdDeleted      = "Ad Deleted"
	senderChannelDeleted = "Channel Deleted"
)

// Notifier posts control notices through a channel's webhook and keeps
// track of which platform message currently represents an ad.
type Notifier struct {
	db     *gorm.DB
	chat   chat.Chat
	logger *zap.Logger
}

func NewNotifier(db *gorm.DB, chatClient chat.Chat, logger *zap.Logger) *Notifier {
	return &Notifier{
		db:     db,
		chat:   chatClient,
		logger: logger,
	}
}

// Send posts content through the channel's webhook and returns the ID
// of the created notice. A channel without a webhook is a quiet no-op.
// A webhook the platform no longer accepts gets cleared, the channel
// stops receiving notifications until someone reconfigures it.
func (n *Notifier) Send(channel *Channel, username, content string) (string, error) {
	if channel == nil || channel.WebhookURL == nil {
		return "", nil
	}

	noticeID, err := n.chat.WebhookSend(*channel.WebhookURL, username, content)
	if err != nil {
		if chat.IsGone(err) {
			n.logger.Warn("webhook rejected, disabling notifications for channel",
				zap.String("channel_id", channel.ID),
				zap.Error(err),
			)

			clearErr := channelSetWebhook(n.db, channel.ID, nil)
			if clearErr != nil {
				return "", errors.Wrap(clearErr, "unable to clear invalid webhook")
			}
			channel.WebhookURL = nil

			return "", nil
		}

		return "", err
	}

	metrics.NoticesSent.Add(1)

	return noticeID, nil
}

// Delete removes a previous control notice, best effort. The notice
// being gone already, or the webhook having rotated, is steady state.
func (n *Notifier) Delete(channel *Channel, noticeID string) {
	if channel == nil || channel.WebhookURL == nil || noticeID == "" {
		return
	}

	err := n.chat.WebhookDelete(*channel.WebhookURL, noticeID)
	if err != nil && !chat.IsGone(err) {
		n.logger.Warn("unable to delete previous notice",
			zap.String("channel_id", channel.ID),
			zap.String("notice_id", noticeID),
			zap.Error(err),
		)
	}
}

// Replace sends a fresh control notice for the ad and only then
// removes the previous one, so an edited ad never has a window with no
// visible notice. The new notice ID is persisted on the ad.
func (n *Notifier) Replace(channel *Channel, ad *Ad, username, content string) error {
	noticeID, err := n.Send(channel, username, content)
	if err != nil {
		return err
	}
	if noticeID == "" {
		return nil
	}

	previous := ad.LastNoticeID

	err = adSetLastNotice(n.db, ad, &noticeID)
	if err != nil {
		return err
	}

	if previous != nil && *previous != noticeID {
		n.Delete(channel, *previous)
	}

	return nil
}
