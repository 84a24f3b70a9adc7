// Package eventlog keeps a small SQLite log of serial connection events
// (connects, disconnects, dropped connections) for troubleshooting.
package eventlog

import (
	"database/sql"
	"embed"
	"fmt"
	"sync"
	"time"

	"github.com/NotCoffee418/dbmigrator"

	_ "modernc.org/sqlite"
)

// Rows kept after pruning.
const DefaultRetention = 1000

// Events waiting for the writer. RecordEvent drops events beyond this.
const queueSize = 256

//go:embed migrations/*.sql
var migrationFS embed.FS

type Log struct {
	db        *sql.DB
	now       func() time.Time
	retention int

	queue      chan Event
	writerDone chan struct{}

	mu      sync.Mutex
	closed  bool
	inserts int
}

// Open opens or creates the database at path and applies migrations.
func Open(path string, retention int) (*Log, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open event log: %w", err)
	}
	// Verify connection
	if err = db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("open event log: %w", err)
	}

	if retention <= 0 {
		retention = DefaultRetention
	}
	l := &Log{db: db, now: time.Now, retention: retention}
	// Apply migrations
	l.migrate()
	if _, err := db.Exec("SELECT COUNT(*) FROM connection_events"); err != nil {
		db.Close()
		return nil, fmt.Errorf("event log schema missing after migrations: %w", err)
	}

	l.queue = make(chan Event, queueSize)
	l.writerDone = make(chan struct{})
	go l.writer()
	return l, nil
}

// Close writes out queued events and closes the database.
func (l *Log) Close() error {
	l.mu.Lock()
	if !l.closed {
		l.closed = true
		close(l.queue)
	}
	l.mu.Unlock()

	<-l.writerDone
	return l.db.Close()
}

func (l *Log) migrate() {
	dbmigrator.SetDatabaseType(dbmigrator.SQLite)
	<-dbmigrator.MigrateUpCh(
		l.db,
		migrationFS,
		"migrations",
	)
}
