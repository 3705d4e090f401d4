package ads

import (
	"fmt"
	"strings"
	"time"

	humanize "github.com/dustin/go-humanize"
	"github.com/jinzhu/gorm"

	"gitlab.com/AdWatch/Engine/pkg/chat"
)

const (
	noticeTimeFormat = "Monday, 01/02/06 at 15:04:05 MST"

	editedMarker = "  **<<< EDITED**"
)

func formatNoticeTime(t time.Time) string {
	return t.UTC().Format(noticeTimeFormat)
}

func renderInvite(ad *Ad, invite *chat.Invite) string {
	switch {
	case ad.InviteCount == 0:
		return "NO INVITE PROVIDED."

	case ad.InviteCount == 1:
		name := "_unknown server_"
		if ad.InviteGuildName != nil {
			name = fmt.Sprintf("`%s`", *ad.InviteGuildName)
		}

		if invite == nil {
			return fmt.Sprintf("server: %s\n**INVITE HAS EXPIRED**", name)
		}

		expires := "Never"
		if invite.ExpiresAt != nil {
			expires = formatNoticeTime(*invite.ExpiresAt)
		}

		return fmt.Sprintf(
			"server: %s\ninvite: https://discord.gg/%s\nexpires: `%s`",
			name, invite.Code, expires,
		)
	}

	return fmt.Sprintf("There were %d invites attached to this ad.", ad.InviteCount)
}

func renderAgeGate(ad *Ad) string {
	valid, ages := ad.HasValidAgeGate()
	if ages == nil {
		return `**No Age Gate ("18+" or similar) Found**`
	}

	if valid {
		return *ad.AgeGate
	}

	if len(ages) > 1 {
		return fmt.Sprintf("**Multiple potential age gates found: %s**", *ad.AgeGate)
	}

	return fmt.Sprintf("**Invalid age gate: %s**", *ad.AgeGate)
}

// renderTimers summarises when this author and this advertised server
// last showed up in the channel, the context a moderator wants when
// judging repost frequency.
func renderTimers(db *gorm.DB, ad *Ad) string {
	var lines []string

	pastUser, err := adMostRecentByAuthor(db, ad)
	if err == nil && pastUser != nil {
		server := "_unknown server_"
		if pastUser.InviteGuildName != nil {
			server = *pastUser.InviteGuildName
		}
		lines = append(lines, fmt.Sprintf(
			"User last posted %s on %s for %s",
			humanize.Time(pastUser.CreatedAt),
			formatNoticeTime(pastUser.CreatedAt),
			server,
		))
	}

	pastGuild, err := adMostRecentByInviteGuild(db, ad)
	if err == nil && pastGuild != nil && (pastUser == nil || pastGuild.ID != pastUser.ID) {
		lines = append(lines, fmt.Sprintf(
			"Server last posted %s on %s by <@%s>",
			humanize.Time(pastGuild.CreatedAt),
			formatNoticeTime(pastGuild.CreatedAt),
			pastGuild.AuthorID,
		))
	}

	if len(lines) == 0 {
		return ""
	}

	return strings.Join(lines, "\n") + "\n"
}

func jumpURL(ad *Ad) string {
	return fmt.Sprintf("https://discord.com/channels/%s/%s/%s", ad.GuildID, ad.ChannelID, ad.ID)
}

func renderNewAd(db *gorm.DB, ad *Ad, channel *Channel, invite *chat.Invite) string {
	return fmt.Sprintf(
		"%s\nChannel: %s (<#%s>)\nAuthor: <@%s>\nAge Gate: %s\n%s\n%sMessage ID: %s\n%s",
		formatNoticeTime(time.Now()),
		channel.Name,
		channel.ID,
		ad.AuthorID,
		renderAgeGate(ad),
		renderInvite(ad, invite),
		renderTimers(db, ad),
		ad.ID,
		jumpURL(ad),
	)
}

func renderAdEdited(db *gorm.DB, ad *Ad, channel *Channel, invite *chat.Invite, changed map[string]bool) string {
	var ageGateEdited, inviteEdited string
	if changed[FieldAgeGate] {
		ageGateEdited = editedMarker
	}
	for field := range changed {
		if strings.HasPrefix(field, "invite_") {
			inviteEdited = editedMarker
			break
		}
	}

	return fmt.Sprintf(
		"%s\nChannel: %s (<#%s>)\nAuthor: <@%s>\nAge Gate: %s%s\n%s%s\n%sMessage ID: %s\n%s",
		formatNoticeTime(time.Now()),
		channel.Name,
		channel.ID,
		ad.AuthorID,
		renderAgeGate(ad),
		ageGateEdited,
		renderInvite(ad, invite),
		inviteEdited,
		renderTimers(db, ad),
		ad.ID,
		jumpURL(ad),
	)
}

func renderAdDeleted(ad *Ad, channel *Channel, invite *chat.Invite) string {
	deletedAt := time.Now()
	if ad.DeletedAt != nil {
		deletedAt = *ad.DeletedAt
	}

	return fmt.Sprintf(
		"%s\nChannel: %s (<#%s>)\nAuthor: <@%s> (id: %s)\n%s\nMessage ID: %s",
		formatNoticeTime(deletedAt),
		channel.Name,
		channel.ID,
		ad.AuthorID,
		ad.AuthorID,
		renderInvite(ad, invite),
		ad.ID,
	)
}

func renderChannelDeleted(channel *Channel, count int64) string {
	deletedAt := time.Now()
	if channel.DeletedAt != nil {
		deletedAt = *channel.DeletedAt
	}

	return fmt.Sprintf(
		"%s\nChannel `%s` was deleted with %d active ads.",
		formatNoticeTime(deletedAt),
		channel.Name,
		count,
	)
}
