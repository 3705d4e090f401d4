package ads

import (
	"time"

	"github.com/jinzhu/gorm"
	"github.com/pkg/errors"
)

func channelFind(db *gorm.DB, channelID string) (*Channel, error) {
	var channel Channel

	err := db.First(&channel, "id = ?", channelID).Error
	if gorm.IsRecordNotFoundError(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &channel, nil
}

func channelAll(db *gorm.DB) ([]Channel, error) {
	var channels []Channel

	err := db.Find(&channels).Error
	if err != nil {
		return nil, err
	}

	return channels, nil
}

func channelCreate(db *gorm.DB, channel *Channel) error {
	if channel.ID == "" {
		return errors.New("submitted invalid channel id")
	}

	return db.Create(channel).Error
}

func channelSetWebhook(db *gorm.DB, channelID string, webhookURL *string) error {
	return db.Model(&Channel{}).
		Where("id = ?", channelID).
		Update("webhook_url", webhookURL).Error
}

// channelSoftDelete marks the channel gone and cascades onto its live
// ads, all with the same timestamp. The webhook is cleared alongside,
// an unregistered channel must stop receiving notifications. Returns
// how many ads went down with it.
func channelSoftDelete(db *gorm.DB, channel *Channel, at time.Time) (int64, error) {
	result := db.Model(&Ad{}).
		Where("channel_id = ?", channel.ID).
		Updates(map[string]interface{}{"deleted_at": at})
	if result.Error != nil {
		return 0, result.Error
	}

	err := db.Model(&Channel{}).
		Where("id = ?", channel.ID).
		Updates(map[string]interface{}{
			"deleted_at":  at,
			"webhook_url": nil,
		}).Error
	if err != nil {
		return 0, err
	}
	channel.DeletedAt = &at

	return result.RowsAffected, nil
}

func adFind(db *gorm.DB, adID string) (*Ad, error) {
	var ad Ad

	err := db.First(&ad, "id = ?", adID).Error
	if gorm.IsRecordNotFoundError(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &ad, nil
}

// adFindAny looks an ad up regardless of deletion state.
func adFindAny(db *gorm.DB, adID string) (*Ad, error) {
	var ad Ad

	err := db.Unscoped().First(&ad, "id = ?", adID).Error
	if gorm.IsRecordNotFoundError(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &ad, nil
}

func adFindByNotice(db *gorm.DB, noticeID string) (*Ad, error) {
	var ad Ad

	err := db.First(&ad, "last_notice_id = ?", noticeID).Error
	if gorm.IsRecordNotFoundError(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &ad, nil
}

func adCreate(db *gorm.DB, ad *Ad) error {
	if ad.ID == "" {
		return errors.New("submitted invalid ad id")
	}

	return db.Create(ad).Error
}

// adUpdate writes the full row back, deleted or not. Restoring an ad a
// reindex found alive again goes through here too, so the write must
// not be limited to live rows.
func adUpdate(db *gorm.DB, ad *Ad) error {
	if ad.ID == "" {
		return errors.New("submitted invalid ad id")
	}

	return db.Unscoped().Save(ad).Error
}

func adSoftDelete(db *gorm.DB, ad *Ad, at time.Time, byID *string) error {
	err := db.Model(&Ad{}).
		Where("id = ?", ad.ID).
		Updates(map[string]interface{}{
			"deleted_at":    at,
			"deleted_by_id": byID,
		}).Error
	if err != nil {
		return err
	}

	ad.DeletedAt = &at
	ad.DeletedByID = byID

	return nil
}

func adSetLastNotice(db *gorm.DB, ad *Ad, noticeID *string) error {
	err := db.Unscoped().Model(&Ad{}).
		Where("id = ?", ad.ID).
		Update("last_notice_id", noticeID).Error
	if err != nil {
		return err
	}

	ad.LastNoticeID = noticeID

	return nil
}

func adsLiveForChannel(db *gorm.DB, channelID string) ([]Ad, error) {
	var ads []Ad

	err := db.Where("channel_id = ?", channelID).Find(&ads).Error
	if err != nil {
		return nil, err
	}

	return ads, nil
}

// adMostRecentByAuthor returns the author's previous live ad in the
// same channel, nil when this is their first.
func adMostRecentByAuthor(db *gorm.DB, ad *Ad) (*Ad, error) {
	var previous Ad

	err := db.
		Where("channel_id = ? AND author_id = ? AND id <> ? AND created_at < ?",
			ad.ChannelID, ad.AuthorID, ad.ID, ad.CreatedAt).
		Order("created_at DESC").
		First(&previous).Error
	if gorm.IsRecordNotFoundError(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &previous, nil
}

// adMostRecentByInviteGuild returns the previous live ad in the same
// channel advertising the same target server.
func adMostRecentByInviteGuild(db *gorm.DB, ad *Ad) (*Ad, error) {
	if ad.InviteGuildID == nil {
		return nil, nil
	}

	var previous Ad

	err := db.
		Where("channel_id = ? AND invite_guild_id = ? AND id <> ? AND created_at < ?",
			ad.ChannelID, *ad.InviteGuildID, ad.ID, ad.CreatedAt).
		Order("created_at DESC").
		First(&previous).Error
	if gorm.IsRecordNotFoundError(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &previous, nil
}
