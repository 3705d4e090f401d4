package ads

import "time"

// Field names reported by Diff. Only these fields ever trigger a
// notification, everything else on an amend is persisted silently.
const (
	FieldAgeGate         = "age_gate"
	FieldInviteCount     = "invite_count"
	FieldInviteCode      = "invite_code"
	FieldInviteGuildID   = "invite_guild_id"
	FieldInviteGuildName = "invite_guild_name"
	FieldInviteExpiresAt = "invite_expires_at"
)

type FieldChange struct {
	Field string
	Old   interface{}
	New   interface{}
}

// Diff compares a stored ad against a freshly parsed incarnation and
// returns the notification-relevant changes. An empty result means an
// amend would carry no new information anyone needs to hear about.
func Diff(ad *Ad, fields AdFields) []FieldChange {
	var changes []FieldChange

	if ad.InviteCount != fields.InviteCount {
		changes = append(changes, FieldChange{FieldInviteCount, ad.InviteCount, fields.InviteCount})
	}
	if !stringPtrEqual(ad.InviteCode, fields.InviteCode) {
		changes = append(changes, FieldChange{FieldInviteCode, ad.InviteCode, fields.InviteCode})
	}
	if !stringPtrEqual(ad.InviteGuildID, fields.InviteGuildID) {
		changes = append(changes, FieldChange{FieldInviteGuildID, ad.InviteGuildID, fields.InviteGuildID})
	}
	if !stringPtrEqual(ad.InviteGuildName, fields.InviteGuildName) {
		changes = append(changes, FieldChange{FieldInviteGuildName, ad.InviteGuildName, fields.InviteGuildName})
	}
	if !timePtrEqual(ad.InviteExpiresAt, fields.InviteExpiresAt) {
		changes = append(changes, FieldChange{FieldInviteExpiresAt, ad.InviteExpiresAt, fields.InviteExpiresAt})
	}
	if !stringPtrEqual(ad.AgeGate, fields.AgeGate) {
		changes = append(changes, FieldChange{FieldAgeGate, ad.AgeGate, fields.AgeGate})
	}

	return changes
}

func changedFields(changes []FieldChange) map[string]bool {
	fields := make(map[string]bool, len(changes))
	for _, change := range changes {
		fields[change.Field] = true
	}

	return fields
}

func stringPtrEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}

	return *a == *b
}

func timePtrEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}

	return a.Equal(*b)
}
