package services_test

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/crickpick/prediction-league/storage"
)

// fakeClock is a settable clock so tests control lock stamps, windows and
// cache ages.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type broadcastEvent struct {
	Room    string
	Message interface{}
}

// fakeNotifier records every broadcast instead of pushing to sockets.
type fakeNotifier struct {
	mu     sync.Mutex
	events []broadcastEvent
}

func (n *fakeNotifier) BroadcastToRoom(roomID string, message interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, broadcastEvent{Room: roomID, Message: message})
}

func (n *fakeNotifier) Events() []broadcastEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]broadcastEvent(nil), n.events...)
}

// fakeInvalidator counts cache invalidations.
type fakeInvalidator struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeInvalidator) InvalidateCache() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
}

func (f *fakeInvalidator) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeUploader resolves avatar keys to predictable URLs.
type fakeUploader struct{}

func (fakeUploader) Upload(ctx context.Context, key, contentType string, reader io.Reader) (*storage.UploadResult, error) {
	return &storage.UploadResult{Key: key}, nil
}

func (fakeUploader) GetPublicURL(key string) string {
	return "https://cdn.test/" + key
}

// newTxDB returns a *sql.DB whose transactions always succeed. Repository
// calls never reach it; the fakes intercept them.
func newTxDB(t *testing.T) *sql.DB {
	t.Helper()
	db, dbMock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	dbMock.MatchExpectationsInOrder(false)
	for i := 0; i < 16; i++ {
		dbMock.ExpectBegin()
		dbMock.ExpectCommit()
		dbMock.ExpectRollback()
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func intPtr(n int) *int { return &n }
