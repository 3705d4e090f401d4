package chat

import (
	"net/http"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/pkg/errors"
)

func restError(statusCode, apiCode int) *discordgo.RESTError {
	err := &discordgo.RESTError{
		Response: &http.Response{StatusCode: statusCode},
	}
	if apiCode != 0 {
		err.Message = &discordgo.APIErrorMessage{Code: apiCode}
	}

	return err
}

func TestIsGone(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain error", errors.New("boom"), false},
		{"not found", restError(http.StatusNotFound, 0), true},
		{"forbidden", restError(http.StatusForbidden, 0), true},
		{"rate limited", restError(http.StatusTooManyRequests, 0), false},
		{"server error", restError(http.StatusInternalServerError, 0), false},
		{"unknown channel", restError(http.StatusBadRequest, discordgo.ErrCodeUnknownChannel), true},
		{"unknown message", restError(http.StatusBadRequest, discordgo.ErrCodeUnknownMessage), true},
		{"unknown invite", restError(http.StatusBadRequest, discordgo.ErrCodeUnknownInvite), true},
		{"unknown webhook", restError(http.StatusBadRequest, discordgo.ErrCodeUnknownWebhook), true},
		{"missing access", restError(http.StatusBadRequest, discordgo.ErrCodeMissingAccess), true},
		{"other api code", restError(http.StatusBadRequest, discordgo.ErrCodeCannotSendEmptyMessage), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsGone(tc.err); got != tc.want {
				t.Fatalf("IsGone() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestIsGoneUnwrapsCause(t *testing.T) {
	err := errors.Wrap(restError(http.StatusNotFound, 0), "deleting notice")
	if !IsGone(err) {
		t.Fatalf("wrapped REST errors should still classify")
	}
}
