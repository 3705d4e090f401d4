package ads

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
)

var (
	inviteRegexp  = regexp.MustCompile(`https?://(?:discord\.gg|(?:discord|discordapp)\.com/invite)/(\w+)`)
	ageGateRegexp = regexp.MustCompile(`\b(\d{2})\+`)
)

// Content is the signal parsed out of a raw message text. InviteCode is
// only set when exactly one invite URL matched, an ambiguous message is
// reported as a count without a code.
type Content struct {
	InviteCount int
	InviteCode  string
	AgeGate     string
}

func ParseContent(text string) Content {
	var content Content

	invites := inviteRegexp.FindAllStringSubmatch(text, -1)
	content.InviteCount = len(invites)
	if len(invites) == 1 {
		content.InviteCode = invites[0][1]
	}

	ages := ageGateRegexp.FindAllStringSubmatch(text, -1)
	if len(ages) > 0 {
		values := make([]string, len(ages))
		for i, age := range ages {
			values[i] = age[1]
		}
		content.AgeGate = strings.Join(values, ", ") + "+"
	}

	return content
}

// parseAgeGate turns a stored age gate display string ("16, 21+") back
// into its numeric values.
func parseAgeGate(display string) []int {
	var ages []int

	for _, part := range strings.Split(display, ",") {
		part = strings.TrimSuffix(strings.TrimSpace(part), "+")

		age, err := strconv.Atoi(part)
		if err != nil {
			continue
		}
		ages = append(ages, age)
	}

	return ages
}

// AdFields is one parsed incarnation of an ad, ready to be diffed
// against a stored row or assigned onto one.
type AdFields struct {
	ChannelID string
	GuildID   string
	AuthorID  string

	CreatedAt time.Time
	UpdatedAt *time.Time

	InviteCount     int
	InviteCode      *string
	InviteGuildID   *string
	InviteGuildName *string
	InviteExpiresAt *time.Time

	AgeGate *string
}

// fieldsFromMessage extracts everything that can be known about an ad
// without touching the network. Invite details beyond the count and
// code are filled in by the invite resolver.
func fieldsFromMessage(message *discordgo.Message) AdFields {
	fields := AdFields{
		ChannelID: message.ChannelID,
		GuildID:   message.GuildID,
		CreatedAt: message.Timestamp,
		UpdatedAt: message.EditedTimestamp,
	}
	if message.Author != nil {
		fields.AuthorID = message.Author.ID
	}

	content := ParseContent(message.Content)
	fields.InviteCount = content.InviteCount
	if content.InviteCode != "" {
		fields.InviteCode = &content.InviteCode
	}
	if content.AgeGate != "" {
		fields.AgeGate = &content.AgeGate
	}

	return fields
}

// Apply assigns every field onto the ad, not just the ones that
// trigger notifications.
func (f AdFields) Apply(ad *Ad) {
	ad.ChannelID = f.ChannelID
	ad.GuildID = f.GuildID
	ad.AuthorID = f.AuthorID
	ad.CreatedAt = f.CreatedAt
	ad.UpdatedAt = f.UpdatedAt
	ad.InviteCount = f.InviteCount
	ad.InviteCode = f.InviteCode
	ad.InviteGuildID = f.InviteGuildID
	ad.InviteGuildName = f.InviteGuildName
	ad.InviteExpiresAt = f.InviteExpiresAt
	ad.AgeGate = f.AgeGate
}
