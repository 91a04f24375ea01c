package chat

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"huddle_backend/database"
	"huddle_backend/internal/blobstore"
	"huddle_backend/internal/realtime"
	"huddle_backend/internal/repositories"
	"huddle_backend/internal/services/dto"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const mediaBase = "https://cdn.huddle.test/media/"

type published struct {
	topic realtime.Topic
	event realtime.Event
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []published
}

func (p *recordingPublisher) Publish(_ context.Context, topic realtime.Topic, ev realtime.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, published{topic: topic, event: ev})
	return nil
}

func (p *recordingPublisher) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = nil
}

// on returns the events published to topic, in publish order.
func (p *recordingPublisher) on(topic realtime.Topic) []realtime.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []realtime.Event
	for _, e := range p.events {
		if e.topic == topic {
			out = append(out, e.event)
		}
	}
	return out
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

// failingPublisher rejects every event, like a broker that is down.
type failingPublisher struct {
	mu    sync.Mutex
	calls int
}

func (p *failingPublisher) Publish(context.Context, realtime.Topic, realtime.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return errors.New("broker unavailable")
}

// testClock advances one second per reading unless pinned with set.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

func (c *testClock) set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t.Add(-time.Second)
}

type fixture struct {
	db    *gorm.DB
	repo  repositories.ChatRepository
	pub   *recordingPublisher
	clock *testClock
	svc   *Services
	ctx   context.Context
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "chat.db")), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db))

	f := &fixture{
		db:    db,
		repo:  repositories.NewChatRepository(),
		pub:   &recordingPublisher{},
		clock: &testClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)},
		ctx:   context.Background(),
	}
	f.svc = NewServices(f.repo, f.pub, blobstore.NewPrefixVerifier([]string{mediaBase}), WithClock(f.clock.Now))
	return f
}

// withPublisher rebuilds the services on the same store with pub.
func (f *fixture) withPublisher(pub realtime.Publisher) {
	f.svc = NewServices(f.repo, pub, blobstore.NewPrefixVerifier([]string{mediaBase}), WithClock(f.clock.Now))
}

func (f *fixture) group(t *testing.T, admin string, members ...string) *dto.ChatResponse {
	t.Helper()
	c, err := f.svc.Membership.CreateGroupChat(f.ctx, f.db, admin, &dto.CreateGroupChatRequest{
		Name:           "crew",
		ParticipantIDs: members,
	})
	require.NoError(t, err)
	return c
}

func (f *fixture) text(t *testing.T, sender, chatID, content string) *dto.MessageResponse {
	t.Helper()
	m, err := f.svc.Messages.SendMessage(f.ctx, f.db, sender, chatID, &dto.SendMessageRequest{
		Type:    "TEXT",
		Content: content,
	})
	require.NoError(t, err)
	return m
}

func (f *fixture) unread(t *testing.T, userID, chatID string) int64 {
	t.Helper()
	resp, err := f.svc.ReadReceipts.GetUnreadCount(f.ctx, f.db, userID, chatID)
	require.NoError(t, err)
	return resp.UnreadCount
}

func ptr[T any](v T) *T {
	return &v
}
