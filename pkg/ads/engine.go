package ads

import (
	"time"

	raven "github.com/getsentry/raven-go"
	"github.com/go-redis/redis"
	"github.com/jinzhu/gorm"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"gitlab.com/AdWatch/Engine/pkg/chat"
	"gitlab.com/AdWatch/Engine/pkg/debounce"
)

const defaultEditDelay = 30 * time.Second

// Params carries everything the engine needs to run.
type Params struct {
	Logger    *zap.Logger
	DB        *gorm.DB
	Redis     *redis.Client
	Chat      chat.Chat
	Scheduler *debounce.Scheduler

	// EditDelay is the quiet period before an edit notice goes out.
	// Zero means the default of 30s.
	EditDelay time.Duration
}

// Engine tracks advertisement postings in monitored channels and keeps
// one live control notice per ad in sync with what the platform shows.
type Engine struct {
	logger    *zap.Logger
	db        *gorm.DB
	redis     *redis.Client
	chat      chat.Chat
	scheduler *debounce.Scheduler
	invites   *InviteResolver
	notifier  *Notifier

	botUserID string
	editDelay time.Duration
}

func New(params Params) *Engine {
	editDelay := params.EditDelay
	if editDelay == 0 {
		editDelay = defaultEditDelay
	}

	return &Engine{
		logger:    params.Logger,
		db:        params.DB,
		redis:     params.Redis,
		chat:      params.Chat,
		scheduler: params.Scheduler,
		invites:   NewInviteResolver(params.Chat, params.Redis, params.Logger),
		notifier:  NewNotifier(params.DB, params.Chat, params.Logger),
		editDelay: editDelay,
	}
}

// Start prepares the schema.
func (e *Engine) Start() error {
	err := e.db.AutoMigrate(&Channel{}, &Ad{}).Error
	if err != nil {
		return errors.Wrap(err, "unable to migrate ads schema")
	}

	return nil
}

// Stop cancels every pending debounced notice.
func (e *Engine) Stop() {
	e.scheduler.Shutdown()
}

// SetBotUserID tells the engine which author to ignore as itself. Call
// it once the session is open, before events start flowing.
func (e *Engine) SetBotUserID(id string) {
	e.botUserID = id
}

func (e *Engine) except(err error, fields ...zap.Field) {
	if err == nil {
		return
	}

	e.logger.Error("error occurred while handling event",
		append(fields, zap.Error(err))...,
	)

	if raven.DefaultClient != nil {
		raven.CaptureError(err, map[string]string{
			"service": "engine",
		})
	}
}

// RegisterChannel starts tracking ads in a channel. The storage-side
// half of the moderator command surface.
func (e *Engine) RegisterChannel(channelID, guildID, name string, requiresInvite bool) error {
	existing, err := channelFind(e.db, channelID)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}

	return channelCreate(e.db, &Channel{
		ID:             channelID,
		GuildID:        guildID,
		Name:           name,
		RequiresInvite: requiresInvite,
	})
}

// UnregisterChannel stops tracking a channel and soft-deletes its ads.
func (e *Engine) UnregisterChannel(channelID string) error {
	return e.HandleChannelDelete(channelID)
}

// SetChannelWebhook points a channel's notifications at a webhook, or
// disables them when url is nil.
func (e *Engine) SetChannelWebhook(channelID string, url *string) error {
	channel, err := channelFind(e.db, channelID)
	if err != nil {
		return err
	}
	if channel == nil {
		return errors.New("channel is not registered")
	}

	return channelSetWebhook(e.db, channelID, url)
}
