package chat

import (
	"net/http"

	"github.com/bwmarrin/discordgo"
	"github.com/pkg/errors"
)

// IsGone reports whether err means the target no longer exists or is no
// longer reachable with the current credentials. Callers treat these as
// steady-state conditions, not failures: a gone webhook gets cleared, a
// gone message is already what a delete wanted, a gone channel gets
// reconciled away.
func IsGone(err error) bool {
	if err == nil {
		return false
	}

	errD, ok := errors.Cause(err).(*discordgo.RESTError)
	if !ok || errD == nil {
		return false
	}

	if errD.Response != nil &&
		(errD.Response.StatusCode == http.StatusNotFound ||
			errD.Response.StatusCode == http.StatusForbidden) {
		return true
	}

	if errD.Message != nil {
		switch errD.Message.Code {
		case discordgo.ErrCodeUnknownChannel,
			discordgo.ErrCodeUnknownMessage,
			discordgo.ErrCodeUnknownInvite,
			discordgo.ErrCodeUnknownWebhook,
			discordgo.ErrCodeMissingAccess,
			discordgo.ErrCodeMissingPermissions:
			return true
		}
	}

	return false
}
