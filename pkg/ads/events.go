package ads

import (
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"gitlab.com/AdWatch/Engine/metrics"
	"gitlab.com/AdWatch/Engine/pkg/chat"
)

// HandleMessageCreate records a new ad in a monitored channel and
// sends its first control notice. Creation notices are not debounced,
// they must be timely. A duplicate create for an ad already stored is
// treated as a plain amend.
func (e *Engine) HandleMessageCreate(message *discordgo.Message) error {
	if message.Author != nil && message.Author.ID == e.botUserID {
		return nil
	}

	channel, err := channelFind(e.db, message.ChannelID)
	if err != nil {
		return err
	}
	if channel == nil {
		return nil
	}

	existing, err := adFindAny(e.db, message.ID)
	if err != nil {
		return err
	}
	if existing != nil {
		return e.amendAd(channel, existing, message)
	}

	ad, err := e.createAd(channel, message)
	if err != nil {
		return err
	}

	e.notifyAdded(channel, ad)

	return nil
}

// HandleMessageEdit re-parses an edited ad. When notification-relevant
// fields changed, an edit notice is registered under the ad's key so
// rapid successive edits coalesce into a single notice after the quiet
// period.
func (e *Engine) HandleMessageEdit(message *discordgo.Message) error {
	if message.Author != nil && message.Author.ID == e.botUserID {
		return nil
	}

	channel, err := channelFind(e.db, message.ChannelID)
	if err != nil {
		return err
	}
	if channel == nil {
		return nil
	}

	ad, err := adFind(e.db, message.ID)
	if err != nil {
		return err
	}
	if ad == nil {
		// an edit for a message we never saw, index it now
		return e.HandleMessageCreate(message)
	}

	return e.amendAd(channel, ad, message)
}

// HandleMessageDelete soft-deletes the ad, cancels any pending edit
// notice for it, and sends the deletion notice. A delete for an ID we
// only know as a control notice means the notice itself was removed
// externally, that just clears the tracking field.
func (e *Engine) HandleMessageDelete(guildID, channelID, messageID string) error {
	ad, err := adFindAny(e.db, messageID)
	if err != nil {
		return err
	}
	if ad == nil {
		owner, err := adFindByNotice(e.db, messageID)
		if err != nil {
			return err
		}
		if owner != nil {
			return adSetLastNotice(e.db, owner, nil)
		}

		return nil
	}
	if ad.DeletedAt != nil {
		return nil
	}

	channel, err := channelFind(e.db, ad.ChannelID)
	if err != nil {
		return err
	}

	// a late edit notice must never fire after the deletion notice
	e.scheduler.Deregister(ad.ID)

	err = adSoftDelete(e.db, ad, time.Now(), nil)
	if err != nil {
		return err
	}

	e.notifyDeleted(channel, ad, messageID)

	return nil
}

// HandleChannelDelete cascades over a removed channel: every live ad
// is soft-deleted with one shared timestamp and a single summary
// notice reports the count.
func (e *Engine) HandleChannelDelete(channelID string) error {
	channel, err := channelFind(e.db, channelID)
	if err != nil {
		return err
	}
	if channel == nil {
		return nil
	}

	return e.removeChannel(channel)
}

// HandleStartup reconciles every monitored channel against platform
// history and routes the detected actions through the same
// notification paths live events use.
func (e *Engine) HandleStartup() error {
	return e.ReindexAll()
}

func (e *Engine) removeChannel(channel *Channel) error {
	ads, err := adsLiveForChannel(e.db, channel.ID)
	if err != nil {
		return err
	}
	for _, ad := range ads {
		e.scheduler.Deregister(ad.ID)
	}

	count, err := channelSoftDelete(e.db, channel, time.Now())
	if err != nil {
		return err
	}

	// the struct still carries the webhook URL the row just lost, the
	// summary notice is the last thing it ever delivers
	_, err = e.notifier.Send(channel, senderChannelDeleted, renderChannelDeleted(channel, count))
	if err != nil {
		e.except(err, zap.String("channel_id", channel.ID))
	}

	e.logger.Info("channel removed",
		zap.String("channel_id", channel.ID),
		zap.Int64("ads_deleted", count),
	)

	return nil
}

func (e *Engine) createAd(channel *Channel, message *discordgo.Message) (*Ad, error) {
	fields := e.buildFields(channel, message)

	ad := &Ad{ID: message.ID}
	fields.Apply(ad)

	err := adCreate(e.db, ad)
	if err != nil {
		return nil, err
	}

	metrics.AdsTracked.Add(1)

	return ad, nil
}

// amendAd persists the latest incarnation of an existing ad. The full
// field set is written either way, only allow-listed changes register
// a debounced edit notice. An ad the platform still shows is live, a
// stale soft-delete gets reverted here.
func (e *Engine) amendAd(channel *Channel, ad *Ad, message *discordgo.Message) error {
	fields := e.buildFields(channel, message)
	changes := Diff(ad, fields)

	restored := ad.DeletedAt != nil

	fields.Apply(ad)
	ad.DeletedAt = nil
	ad.DeletedByID = nil

	err := adUpdate(e.db, ad)
	if err != nil {
		return err
	}

	if len(changes) == 0 && !restored {
		return nil
	}

	e.registerEditNotice(channel, ad, changedFields(changes))

	return nil
}

// registerEditNotice schedules the debounced edit notice for an ad.
// Registration replaces any pending notice under the same key, so the
// notice that eventually fires reflects the newest state.
func (e *Engine) registerEditNotice(channel *Channel, ad *Ad, changed map[string]bool) {
	channelID := channel.ID
	adID := ad.ID

	_, err := e.scheduler.Register(adID, e.editDelay, func() {
		e.fireEditNotice(channelID, adID, changed)
	})
	if err != nil {
		e.except(err, zap.String("ad_id", adID))
	}
}

// fireEditNotice runs when the quiet period elapses. State is loaded
// fresh, the ad or channel may have gone away while we waited.
func (e *Engine) fireEditNotice(channelID, adID string, changed map[string]bool) {
	channel, err := channelFind(e.db, channelID)
	if err != nil || channel == nil {
		e.except(err, zap.String("channel_id", channelID))
		return
	}

	ad, err := adFind(e.db, adID)
	if err != nil || ad == nil {
		e.except(err, zap.String("ad_id", adID))
		return
	}

	invite := e.resolveForRender(ad)
	content := renderAdEdited(e.db, ad, channel, invite, changed)

	err = e.notifier.Replace(channel, ad, senderAdEdited, content)
	if err != nil {
		e.except(err, zap.String("ad_id", adID))
	}
}

// notifyAdded sends the immediate notice for a newly indexed ad and
// starts tracking its control notice.
func (e *Engine) notifyAdded(channel *Channel, ad *Ad) {
	invite := e.resolveForRender(ad)
	content := renderNewAd(e.db, ad, channel, invite)

	noticeID, err := e.notifier.Send(channel, senderNewAd, content)
	if err != nil {
		e.except(err, zap.String("ad_id", ad.ID))
		return
	}
	if noticeID == "" {
		return
	}

	err = adSetLastNotice(e.db, ad, &noticeID)
	if err != nil {
		e.except(err, zap.String("ad_id", ad.ID))
	}
}

// notifyDeleted sends the deletion notice and then retires the ad's
// control notice. deletedMessageID is the platform message whose
// removal triggered this, a control notice that died together with the
// ad must not be deleted twice. The channel row may already be gone
// when the deletes raced a channel removal, tracking still gets
// cleared, only the notice is skipped.
func (e *Engine) notifyDeleted(channel *Channel, ad *Ad, deletedMessageID string) {
	if channel != nil {
		invite := e.resolveForRender(ad)

		_, err := e.notifier.Send(channel, senderAdDeleted, renderAdDeleted(ad, channel, invite))
		if err != nil {
			e.except(err, zap.String("ad_id", ad.ID))
		}
	}

	if ad.LastNoticeID == nil {
		return
	}

	if *ad.LastNoticeID != deletedMessageID {
		e.notifier.Delete(channel, *ad.LastNoticeID)
	}

	err := adSetLastNotice(e.db, ad, nil)
	if err != nil {
		e.except(err, zap.String("ad_id", ad.ID))
	}
}

func (e *Engine) buildFields(channel *Channel, message *discordgo.Message) AdFields {
	fields := fieldsFromMessage(message)
	if fields.GuildID == "" {
		fields.GuildID = channel.GuildID
	}

	err := e.invites.resolveInto(&fields)
	if err != nil {
		// degrade to no invite data rather than stalling the event
		e.except(err, zap.String("message_id", message.ID))
	}

	return fields
}

func (e *Engine) resolveForRender(ad *Ad) *chat.Invite {
	if ad.InviteCount != 1 || ad.InviteCode == nil {
		return nil
	}

	invite, err := e.invites.Resolve(*ad.InviteCode)
	if err != nil {
		e.except(err, zap.String("ad_id", ad.ID))
		return nil
	}

	return invite
}
