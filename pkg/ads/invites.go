package ads

import (
	"encoding/json"
	"time"

	"github.com/go-redis/redis"
	"go.uber.org/zap"

	"gitlab.com/AdWatch/Engine/pkg/chat"
)

const (
	inviteCacheKeyPrefix = "adwatch:engine:invite:"
	inviteCacheTTL       = 10 * time.Minute
)

// InviteResolver looks invite codes up on the platform, memoising
// resolutions in redis so a reindex walking hundreds of ads does not
// hammer the invite endpoint for the same code.
type InviteResolver struct {
	chat   chat.Chat
	redis  *redis.Client
	logger *zap.Logger
}

func NewInviteResolver(chatClient chat.Chat, redisClient *redis.Client, logger *zap.Logger) *InviteResolver {
	return &InviteResolver{
		chat:   chatClient,
		redis:  redisClient,
		logger: logger,
	}
}

// Resolve returns the invite behind code, or nil when the platform no
// longer knows it. A dead invite is a data state, not an error.
func (r *InviteResolver) Resolve(code string) (*chat.Invite, error) {
	if cached := r.fromCache(code); cached != nil {
		return cached, nil
	}

	invite, err := r.chat.Invite(code)
	if err != nil {
		if chat.IsGone(err) {
			return nil, nil
		}

		return nil, err
	}

	r.toCache(code, invite)

	return invite, nil
}

// resolveInto fills the invite target fields when the parse produced
// exactly one code. Ambiguous ads (two or more invites) intentionally
// stay unresolved, the count is all that gets reported.
func (r *InviteResolver) resolveInto(fields *AdFields) error {
	if fields.InviteCount != 1 || fields.InviteCode == nil {
		return nil
	}

	invite, err := r.Resolve(*fields.InviteCode)
	if err != nil {
		return err
	}
	if invite == nil {
		return nil
	}

	fields.InviteGuildID = &invite.GuildID
	fields.InviteGuildName = &invite.GuildName
	fields.InviteExpiresAt = invite.ExpiresAt

	return nil
}

func (r *InviteResolver) fromCache(code string) *chat.Invite {
	if r.redis == nil {
		return nil
	}

	raw, err := r.redis.Get(inviteCacheKeyPrefix + code).Bytes()
	if err == redis.Nil {
		return nil
	} else if err != nil {
		r.logger.Warn("invite cache read failed",
			zap.String("code", code),
			zap.Error(err),
		)
		return nil
	}

	var invite chat.Invite
	err = json.Unmarshal(raw, &invite)
	if err != nil {
		return nil
	}

	return &invite
}

func (r *InviteResolver) toCache(code string, invite *chat.Invite) {
	if r.redis == nil {
		return
	}

	raw, err := json.Marshal(invite)
	if err != nil {
		return
	}

	err = r.redis.Set(inviteCacheKeyPrefix+code, raw, inviteCacheTTL).Err()
	if err != nil {
		r.logger.Warn("invite cache write failed",
			zap.String("code", code),
			zap.Error(err),
		)
	}
}
