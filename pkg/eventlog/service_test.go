package eventlog

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func openTestLog(t *testing.T, retention int) *Log {
	t.Helper()
	l, err := Open(filepath.Join(t.TempDir(), "events.db"), retention)
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l
}

func waitForEvents(t *testing.T, l *Log, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		events, err := l.Recent(context.Background(), 100)
		return err == nil && len(events) == n
	}, 5*time.Second, 10*time.Millisecond)
}

func TestOpen_MigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.db")

	l, err := Open(path, 0)
	require.NoError(t, err)
	l.RecordEvent("connected", "/dev/ttyUSB0", "")
	require.NoError(t, l.Close())

	l, err = Open(path, 0)
	require.NoError(t, err)
	defer l.Close()

	events, err := l.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
}

func TestRecent_NewestFirst(t *testing.T) {
	l := openTestLog(t, 0)
	l.now = func() time.Time { return time.Unix(1700000000, 0) }

	l.RecordEvent("connected", "/dev/ttyUSB0", "")
	l.RecordEvent("io_error", "/dev/ttyUSB0", "input/output error")
	l.RecordEvent("connect_failed", "COM_FAKE", "no such file or directory")
	waitForEvents(t, l, 3)

	events, err := l.Recent(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, "connect_failed", events[0].Kind)
	require.Equal(t, "COM_FAKE", events[0].Port)
	require.Equal(t, "io_error", events[1].Kind)
	require.Equal(t, "input/output error", events[1].Detail)
	require.Equal(t, int64(1700000000), events[1].Timestamp)
}

func TestInsert_AssignsID(t *testing.T) {
	l := openTestLog(t, 0)

	e := &Event{Kind: "connected", Port: "/dev/ttyACM0", Timestamp: 42}
	require.NoError(t, l.Insert(e))
	require.NotZero(t, e.ID)
	require.Equal(t, int64(42), e.Timestamp)
}

func TestInsert_PrunesToRetention(t *testing.T) {
	l := openTestLog(t, 10)

	for i := 0; i < 100; i++ {
		require.NoError(t, l.Insert(&Event{Kind: "connected"}))
	}

	events, err := l.Recent(context.Background(), 500)
	require.NoError(t, err)
	require.Len(t, events, 10)
	require.Equal(t, int64(100), events[0].ID)
}

func TestRecordEvent_DoesNotWaitForLockedDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.db")
	l, err := Open(path, 0)
	require.NoError(t, err)
	defer l.Close()

	// A second connection holds the write lock.
	other, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer other.Close()
	tx, err := other.Begin()
	require.NoError(t, err)
	_, err = tx.Exec("INSERT INTO connection_events (timestamp, kind) VALUES (1, 'other')")
	require.NoError(t, err)

	start := time.Now()
	l.RecordEvent("connected", "/dev/ttyUSB0", "")
	require.Less(t, time.Since(start), 100*time.Millisecond)

	require.NoError(t, tx.Rollback())
	waitForEvents(t, l, 1)
}

func TestClose_FlushesQueuedEvents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.db")
	l, err := Open(path, 0)
	require.NoError(t, err)

	for i := 0; i < 50; i++ {
		l.RecordEvent("connected", "/dev/ttyUSB0", "")
	}
	require.NoError(t, l.Close())

	// Recording after Close is ignored.
	l.RecordEvent("connected", "/dev/ttyUSB0", "")

	l, err = Open(path, 0)
	require.NoError(t, err)
	defer l.Close()

	events, err := l.Recent(context.Background(), 100)
	require.NoError(t, err)
	require.Len(t, events, 50)
}
