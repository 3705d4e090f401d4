package ads

import (
	"time"

	lock "github.com/bsm/redis-lock"
	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"gitlab.com/AdWatch/Engine/metrics"
	"gitlab.com/AdWatch/Engine/pkg/chat"
)

const (
	historyPageSize = 100

	reindexLockKey = "adwatch:engine:reindex:run-lock"
)

type ActionKind string

const (
	ActionAdded   ActionKind = "added"
	ActionEdited  ActionKind = "edited"
	ActionDeleted ActionKind = "deleted"
)

// Action is one repair a reindex made to bring stored state back in
// line with platform history.
type Action struct {
	Kind    ActionKind
	Ad      *Ad
	Changes []FieldChange
}

// ReindexAll reconciles every monitored channel. One channel failing
// never stops the others. Overlapping runs (a slow startup pass still
// going when the cron fires) are skipped via a redis lock.
func (e *Engine) ReindexAll() error {
	if e.redis != nil {
		locker := lock.New(e.redis, reindexLockKey, &lock.Options{
			LockTimeout: 1 * time.Hour,
			RetryCount:  0, // do not wait for a running pass
		})

		ok, err := locker.Lock()
		if err != nil {
			return err
		}
		if !ok {
			e.logger.Info("reindex already running, skipping")
			return nil
		}
		defer locker.Unlock() // nolint: errcheck
	}

	channels, err := channelAll(e.db)
	if err != nil {
		return err
	}

	for i := range channels {
		channel := &channels[i]

		logger := e.logger.With(zap.String("channel_id", channel.ID))

		actions, err := e.reindexChannel(channel)
		if err != nil {
			e.except(err, zap.String("channel_id", channel.ID))
			continue
		}

		logger.Info("channel reindexed",
			zap.Int("actions", len(actions)),
		)

		for _, action := range actions {
			switch action.Kind {
			case ActionAdded:
				e.notifyAdded(channel, action.Ad)
			case ActionEdited:
				e.registerEditNotice(channel, action.Ad, changedFields(action.Changes))
			case ActionDeleted:
				e.notifyDeleted(channel, action.Ad, "")
			}
		}
	}

	metrics.ReindexRuns.Add(1)

	return nil
}

// reindexChannel walks a channel's history oldest first and repairs
// the stored ads against it: unknown messages become ads, known ones
// are re-diffed, and stored ads the walk never visited are gone from
// the platform and get soft-deleted.
func (e *Engine) reindexChannel(channel *Channel) ([]Action, error) {
	_, err := e.chat.Channel(channel.ID)
	if err != nil {
		if chat.IsGone(err) {
			// the channel itself no longer resolves
			return nil, e.removeChannel(channel)
		}

		return nil, err
	}

	end, err := e.chat.LatestMessage(channel.ID)
	if err != nil {
		return nil, err
	}
	if end == nil {
		return e.reindexEmptyChannel(channel)
	}

	visited := make(map[string]bool)
	var actions []Action

	cursor := ""
	for {
		page, err := e.chat.History(channel.ID, cursor, historyPageSize)
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			break
		}

		for _, message := range page {
			visited[message.ID] = true

			action, err := e.reindexMessage(channel, message)
			if err != nil {
				e.except(err,
					zap.String("channel_id", channel.ID),
					zap.String("message_id", message.ID),
				)
				continue
			}
			if action != nil {
				actions = append(actions, *action)
			}
		}

		cursor = page[len(page)-1].ID
		if visited[end.ID] || len(page) < historyPageSize {
			break
		}
	}

	deleted, err := e.reindexMissing(channel, visited)
	if err != nil {
		return actions, err
	}

	return append(actions, deleted...), nil
}

func (e *Engine) reindexMessage(channel *Channel, message *discordgo.Message) (*Action, error) {
	if message.Author != nil && message.Author.ID == e.botUserID {
		return nil, nil
	}

	ad, err := adFindAny(e.db, message.ID)
	if err != nil {
		return nil, err
	}

	if ad == nil {
		created, err := e.createAd(channel, message)
		if err != nil {
			return nil, err
		}

		return &Action{Kind: ActionAdded, Ad: created}, nil
	}

	fields := e.buildFields(channel, message)
	changes := Diff(ad, fields)
	restored := ad.DeletedAt != nil

	fields.Apply(ad)
	ad.DeletedAt = nil
	ad.DeletedByID = nil

	err = adUpdate(e.db, ad)
	if err != nil {
		return nil, err
	}

	if len(changes) == 0 && !restored {
		return nil, nil
	}

	return &Action{Kind: ActionEdited, Ad: ad, Changes: changes}, nil
}

// reindexEmptyChannel handles a channel the platform reports as having
// no messages at all: every live stored ad is gone.
func (e *Engine) reindexEmptyChannel(channel *Channel) ([]Action, error) {
	return e.reindexMissing(channel, nil)
}

// reindexMissing soft-deletes every live ad the walk did not visit.
// IDs tracked as control notices are excluded, a notice legitimately
// never appears in the ad channel's history as an ad.
func (e *Engine) reindexMissing(channel *Channel, visited map[string]bool) ([]Action, error) {
	live, err := adsLiveForChannel(e.db, channel.ID)
	if err != nil {
		return nil, err
	}

	noticeIDs := make(map[string]bool, len(live))
	for _, ad := range live {
		if ad.LastNoticeID != nil {
			noticeIDs[*ad.LastNoticeID] = true
		}
	}

	now := time.Now()
	var actions []Action

	for i := range live {
		ad := &live[i]

		if visited[ad.ID] || noticeIDs[ad.ID] {
			continue
		}

		e.scheduler.Deregister(ad.ID)

		err = adSoftDelete(e.db, ad, now, nil)
		if err != nil {
			return actions, err
		}

		actions = append(actions, Action{Kind: ActionDeleted, Ad: ad})
	}

	return actions, nil
}
