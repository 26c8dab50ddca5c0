package bot

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appconfig "github.com/vidgate/videobot/internal/config"
	"github.com/vidgate/videobot/internal/engine"
	"github.com/vidgate/videobot/internal/history"
	"github.com/vidgate/videobot/internal/limits"
)

type memQuotaStore struct {
	mu     sync.Mutex
	record *limits.Record
}

func (s *memQuotaStore) Load(ctx context.Context) *limits.Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.record == nil {
		return limits.NewRecord(time.Now())
	}
	return s.record
}

func (s *memQuotaStore) Save(ctx context.Context, record *limits.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.record = record
	return nil
}

// fakeClient records outgoing message texts and feeds updates from a channel.
type fakeClient struct {
	mu      sync.Mutex
	sent    []string
	updates chan tgbotapi.Update
}

func newFakeClient() *fakeClient {
	return &fakeClient{updates: make(chan tgbotapi.Update, 8)}
}

func (c *fakeClient) Send(m tgbotapi.Chattable) (tgbotapi.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch v := m.(type) {
	case tgbotapi.MessageConfig:
		c.sent = append(c.sent, v.Text)
	case tgbotapi.EditMessageTextConfig:
		c.sent = append(c.sent, v.Text)
	}

	return tgbotapi.Message{MessageID: len(c.sent)}, nil
}

func (c *fakeClient) GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return c.updates
}

func (c *fakeClient) StopReceivingUpdates() {
	close(c.updates)
}

func (c *fakeClient) contains(sub string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, s := range c.sent {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

type stubEngine struct {
	probeFn func(ctx context.Context) (*engine.Metadata, error)
}

func (e *stubEngine) Probe(ctx context.Context, url string) (*engine.Metadata, error) {
	return e.probeFn(ctx)
}

func (e *stubEngine) Download(ctx context.Context, req engine.Request, onProgress func(engine.Progress)) error {
	return nil
}

type fakeUsers struct{}

func (fakeUsers) TouchUser(ctx context.Context, user history.User) (bool, error) { return false, nil }
func (fakeUsers) IncrementDownloads(ctx context.Context, userID int64) error     { return nil }
func (fakeUsers) ListUsers(ctx context.Context, limit int) ([]history.User, error) {
	return nil, nil
}
func (fakeUsers) CountUsers(ctx context.Context) (int, error) { return 0, nil }

func testController(t *testing.T) *limits.Controller {
	t.Helper()

	return limits.NewController(context.Background(), limits.Thresholds{
		MaxConcurrentDownloads: 2,
		MaxUsersPerDay:         2,
		MaxVideosPerUser:       2,
		MaxTotalDailyDownloads: 3,
	}, &memQuotaStore{})
}

func newTestBot(t *testing.T) *Bot {
	t.Helper()

	return New(Config{
		Admins: []int64{99},
		Limits: testController(t),
		App: &appconfig.Config{
			MaxVideoDuration: 380 * time.Second,
			MaxFileSize:      50 * 1024 * 1024,
		},
	})
}

func newTestBotWith(t *testing.T, client TelegramClient, eng engine.Engine) *Bot {
	t.Helper()

	return New(Config{
		API:    client,
		Engine: eng,
		Users:  fakeUsers{},
		Admins: []int64{99},
		Limits: testController(t),
		App: &appconfig.Config{
			MaxVideoDuration: 380 * time.Second,
			MaxFileSize:      50 * 1024 * 1024,
		},
	})
}

func urlUpdate(userID int64, text string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: 1,
		From:      &tgbotapi.User{ID: userID, FirstName: "user"},
		Chat:      &tgbotapi.Chat{ID: userID},
		Text:      text,
	}}
}

func commandUpdate(userID int64, command string) tgbotapi.Update {
	text := "/" + command
	return tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: 1,
		From:      &tgbotapi.User{ID: userID, FirstName: "user"},
		Chat:      &tgbotapi.Chat{ID: userID},
		Text:      text,
		Entities:  []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(text)}},
	}}
}

func TestWelcomeTextMentionsLimits(t *testing.T) {
	b := newTestBot(t)

	text := b.welcomeText()
	assert.Contains(t, text, "Maximum 2 videos per user per day")
}

func TestHelpTextMentionsPolicies(t *testing.T) {
	b := newTestBot(t)

	text := b.helpText()
	assert.Contains(t, text, "50 MB")
	assert.Contains(t, text, "6m20s")
}

func TestStatsTextReflectsUsage(t *testing.T) {
	ctx := context.Background()
	b := newTestBot(t)

	text := b.statsText(ctx, 1)
	assert.Contains(t, text, "Your downloads today: 0/2")
	assert.Contains(t, text, "✅ Yes")

	for i := 0; i < 2; i++ {
		require.True(t, b.limits.Admit(ctx, 1).Allowed)
		b.limits.Complete(ctx, 1, true)
	}

	text = b.statsText(ctx, 1)
	assert.Contains(t, text, "Your downloads today: 2/2")
	assert.Contains(t, text, "❌ No")
}

func TestAdminsOnlyFlag(t *testing.T) {
	b := newTestBot(t)

	assert.True(t, b.admins[99])
	assert.False(t, b.admins[1])
}

func TestTruncateTitle(t *testing.T) {
	assert.Equal(t, "short", truncateTitle("short", 50))
	assert.Equal(t, "abcde...", truncateTitle("abcdefgh", 5))
}

func TestTruncateTitleKeepsRuneBoundaries(t *testing.T) {
	out := truncateTitle("日本語のタイトルです", 5)

	assert.Equal(t, "日本語のタ...", out)
	assert.True(t, utf8.ValidString(out))

	long := strings.Repeat("видео", 20)
	assert.True(t, utf8.ValidString(truncateTitle(long, 50)))
}

// One user's long-running metadata probe must not delay another user's
// updates: every update gets its own goroutine.
func TestUpdatesDispatchConcurrently(t *testing.T) {
	probing := make(chan struct{})
	release := make(chan struct{})

	eng := &stubEngine{probeFn: func(ctx context.Context) (*engine.Metadata, error) {
		close(probing)
		select {
		case <-release:
		case <-ctx.Done():
		}
		return &engine.Metadata{Title: "slow", Duration: time.Minute}, nil
	}}

	client := newFakeClient()
	b := newTestBotWith(t, client, eng)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		defer close(done)
		b.Start(ctx)
	}()

	client.updates <- urlUpdate(1, "https://example.com/watch?v=slow")

	select {
	case <-probing:
	case <-time.After(time.Second):
		t.Fatal("probe never started")
	}

	// The probe for user 1 is still blocked; user 2's command must be
	// answered anyway.
	client.updates <- commandUpdate(2, "start")

	require.Eventually(t, func() bool {
		return client.contains("Welcome")
	}, time.Second, 5*time.Millisecond, "second user's command waited behind the probe")

	close(release)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("update loop did not stop on cancellation")
	}
}

func TestProbeFailureTellsUser(t *testing.T) {
	eng := &stubEngine{probeFn: func(ctx context.Context) (*engine.Metadata, error) {
		return nil, errors.New("no extractor for this url")
	}}

	client := newFakeClient()
	b := newTestBotWith(t, client, eng)

	b.handleMessage(context.Background(), urlUpdate(1, "https://example.com/broken").Message)

	assert.True(t, client.contains("Unable to process"))
}
