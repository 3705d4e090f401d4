package ads

import (
	"net/http"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/sqlite"
	"go.uber.org/zap"

	"gitlab.com/AdWatch/Engine/pkg/chat"
	"gitlab.com/AdWatch/Engine/pkg/debounce"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open("sqlite3", filepath.Join(t.TempDir(), "engine.db"))
	if err != nil {
		t.Fatalf("unable to open test database: %v", err)
	}
	db.DB().SetMaxOpenConns(1)
	t.Cleanup(func() {
		db.Close()
	})

	err = db.AutoMigrate(&Channel{}, &Ad{}).Error
	if err != nil {
		t.Fatalf("unable to migrate test database: %v", err)
	}

	return db
}

func testEngine(t *testing.T, db *gorm.DB, fake *fakeChat) *Engine {
	t.Helper()

	logger := zap.NewNop()
	engine := New(Params{
		Logger:    logger,
		DB:        db,
		Chat:      fake,
		Scheduler: debounce.NewScheduler(logger),
		EditDelay: time.Second,
	})
	engine.SetBotUserID("bot-user")
	t.Cleanup(engine.Stop)

	return engine
}

type sentNotice struct {
	WebhookURL string
	Username   string
	Content    string
	MessageID  string
}

// fakeChat is an in-memory platform: channels, their histories, and
// resolvable invites, plus a record of webhook traffic. Webhook state
// is guarded because debounced notices fire from timer goroutines.
type fakeChat struct {
	channels map[string]*discordgo.Channel
	history  map[string][]*discordgo.Message // oldest first
	invites  map[string]*chat.Invite

	mu         sync.Mutex
	sent       []sentNotice
	deleted    []string
	nextNotice int

	sendErr error
}

func (f *fakeChat) sentNotices() []sentNotice {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]sentNotice(nil), f.sent...)
}

func (f *fakeChat) deletedNotices() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]string(nil), f.deleted...)
}

func newFakeChat() *fakeChat {
	return &fakeChat{
		channels: make(map[string]*discordgo.Channel),
		history:  make(map[string][]*discordgo.Message),
		invites:  make(map[string]*chat.Invite),
	}
}

func (f *fakeChat) addChannel(channelID, guildID string) {
	f.channels[channelID] = &discordgo.Channel{
		ID:      channelID,
		GuildID: guildID,
	}
}

func (f *fakeChat) addMessage(channelID string, message *discordgo.Message) {
	f.history[channelID] = append(f.history[channelID], message)
}

func (f *fakeChat) Channel(channelID string) (*discordgo.Channel, error) {
	channel, ok := f.channels[channelID]
	if !ok {
		return nil, goneError()
	}

	return channel, nil
}

func (f *fakeChat) Message(channelID, messageID string) (*discordgo.Message, error) {
	for _, message := range f.history[channelID] {
		if message.ID == messageID {
			return message, nil
		}
	}

	return nil, goneError()
}

func (f *fakeChat) LatestMessage(channelID string) (*discordgo.Message, error) {
	messages := f.history[channelID]
	if len(messages) == 0 {
		return nil, nil
	}

	return messages[len(messages)-1], nil
}

func (f *fakeChat) History(channelID, afterID string, limit int) ([]*discordgo.Message, error) {
	after := int64(0)
	if afterID != "" {
		after, _ = strconv.ParseInt(afterID, 10, 64)
	}

	var page []*discordgo.Message
	for _, message := range f.history[channelID] {
		id, _ := strconv.ParseInt(message.ID, 10, 64)
		if id <= after {
			continue
		}

		page = append(page, message)
		if len(page) >= limit {
			break
		}
	}

	return page, nil
}

func (f *fakeChat) Invite(code string) (*chat.Invite, error) {
	invite, ok := f.invites[code]
	if !ok {
		return nil, goneError()
	}

	return invite, nil
}

func (f *fakeChat) WebhookSend(webhookURL, username, content string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.sendErr != nil {
		return "", f.sendErr
	}

	f.nextNotice++
	messageID := "notice-" + strconv.Itoa(f.nextNotice)

	f.sent = append(f.sent, sentNotice{
		WebhookURL: webhookURL,
		Username:   username,
		Content:    content,
		MessageID:  messageID,
	})

	return messageID, nil
}

func (f *fakeChat) WebhookDelete(webhookURL, messageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.deleted = append(f.deleted, messageID)
	return nil
}

func goneError() error {
	return &discordgo.RESTError{
		Response: &http.Response{StatusCode: http.StatusNotFound},
	}
}

func strPtr(s string) *string {
	return &s
}

func seedChannel(t *testing.T, db *gorm.DB, channelID, guildID string, webhookURL *string) *Channel {
	t.Helper()

	channel := &Channel{
		ID:         channelID,
		GuildID:    guildID,
		Name:       "ads-" + channelID,
		WebhookURL: webhookURL,
	}
	err := channelCreate(db, channel)
	if err != nil {
		t.Fatalf("unable to seed channel: %v", err)
	}

	return channel
}

func testMessage(messageID, channelID, guildID, authorID, content string) *discordgo.Message {
	return &discordgo.Message{
		ID:        messageID,
		ChannelID: channelID,
		GuildID:   guildID,
		Author:    &discordgo.User{ID: authorID},
		Content:   content,
		Timestamp: time.Now().Add(-time.Hour),
	}
}

// waitFor polls until the condition holds or the deadline passes.
func waitFor(t *testing.T, timeout time.Duration, condition func() bool) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}

	t.Fatalf("condition not met within %v", timeout)
}
