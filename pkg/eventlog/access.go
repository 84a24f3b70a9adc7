package eventlog

import (
	"context"

	"github.com/rs/zerolog/log"
)

func (l *Log) Insert(event *Event) error {
	if event.Timestamp == 0 {
		event.Timestamp = l.now().Unix()
	}

	res, err := l.db.Exec(
		"INSERT INTO connection_events (timestamp, kind, port, detail) "+
			"VALUES (?, ?, ?, ?)",
		event.Timestamp,
		event.Kind,
		event.Port,
		event.Detail,
	)
	if err != nil {
		return err
	}
	if id, err := res.LastInsertId(); err == nil {
		event.ID = id
	}

	l.mu.Lock()
	l.inserts++
	prune := l.inserts%100 == 0
	l.mu.Unlock()
	if prune {
		return l.prune()
	}
	return nil
}

// RecordEvent queues a lifecycle event for the background writer and returns immediately.
// Events are dropped when the queue is full or the log is closed.
func (l *Log) RecordEvent(kind, port, detail string) {
	event := Event{Timestamp: l.now().Unix(), Kind: kind, Port: port, Detail: detail}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	select {
	case l.queue <- event:
	default:
		log.Warn().Str("kind", kind).Msg("Event log queue full, dropping connection event")
	}
}

func (l *Log) writer() {
	defer close(l.writerDone)
	for event := range l.queue {
		if err := l.Insert(&event); err != nil {
			log.Warn().Err(err).Str("kind", event.Kind).Msg("Could not record connection event")
		}
	}
}

// Recent returns up to limit events, newest first.
func (l *Log) Recent(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := l.db.QueryContext(ctx,
		"SELECT id, timestamp, kind, port, detail FROM connection_events "+
			"ORDER BY id DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]Event, 0, limit)
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.Kind, &e.Port, &e.Detail); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// prune drops everything but the newest retention rows.
func (l *Log) prune() error {
	_, err := l.db.Exec(
		"DELETE FROM connection_events WHERE id <= (SELECT MAX(id) FROM connection_events) - ?",
		l.retention,
	)
	return err
}
