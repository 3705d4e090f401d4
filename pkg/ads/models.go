package ads

import (
	"time"

	"github.com/jinzhu/gorm/dialects/postgres"
)

// Channel is a monitored advertisement channel. A nil WebhookURL means
// notifications are disabled until a moderator reconfigures it. Rows
// are only ever soft-deleted, the audit trail keeps them around.
type Channel struct {
	ID      string `gorm:"primary_key"`
	GuildID string `gorm:"index"`

	// display name, may differ from the name on the platform
	Name string

	// whether ads posted here are expected to carry a server invite
	RequiresInvite bool

	WebhookURL *string
	DeletedAt  *time.Time

	// ad-hoc extension data
	Data postgres.Jsonb `gorm:"column:jsondata"`
}

func (*Channel) TableName() string {
	return "ads_channels"
}

// Ad is one tracked advertisement posting, one row per platform
// message, keyed by the platform-assigned message ID.
type Ad struct {
	ID        string `gorm:"primary_key"`
	ChannelID string `gorm:"index"`
	GuildID   string `gorm:"index"`
	AuthorID  string `gorm:"index"`

	CreatedAt time.Time
	UpdatedAt *time.Time

	DeletedAt   *time.Time
	DeletedByID *string

	InviteCount     int
	InviteCode      *string
	InviteGuildID   *string `gorm:"index"`
	InviteGuildName *string
	InviteExpiresAt *time.Time

	AgeGate *string

	// ID of the currently live control notice for this ad, nil when
	// none exists or the previous one was removed.
	LastNoticeID *string `gorm:"index"`
}

func (*Ad) TableName() string {
	return "ads_messages"
}

// HasValidAgeGate reports whether the stored age gate is usable for
// compliance: exactly one age, and at least 18. The second return is
// the parsed ages, nil when no age gate was detected at all.
func (a *Ad) HasValidAgeGate() (bool, []int) {
	if a.AgeGate == nil {
		return false, nil
	}

	ages := parseAgeGate(*a.AgeGate)
	if len(ages) != 1 {
		return false, ages
	}

	return ages[0] >= 18, ages
}
