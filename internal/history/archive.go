package history

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"liveclass/pkg/logger"
	"liveclass/pkg/types"
)

// Archive persists session records and sequenced chat messages to SQLite so
// they outlive the process. It is a write-behind collaborator: rooms enqueue
// writes without blocking, and a single writer goroutine applies them, which
// is also what SQLite wants for write contention.
type Archive struct {
	db      *sql.DB
	writes  chan writeOp
	done    chan struct{}
	wg      sync.WaitGroup
	log     *logger.Logger
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
}

type writeOp func(db *sql.DB) error

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	room_id    TEXT NOT NULL,
	started_at DATETIME NOT NULL,
	ended_at   DATETIME,
	PRIMARY KEY (room_id, started_at)
);
CREATE TABLE IF NOT EXISTS chat_messages (
	id          TEXT PRIMARY KEY,
	room_id     TEXT NOT NULL,
	seq         INTEGER NOT NULL,
	sender_id   TEXT NOT NULL,
	sender_name TEXT NOT NULL,
	body        TEXT NOT NULL,
	sent_at     DATETIME NOT NULL,
	UNIQUE (room_id, seq)
);
CREATE INDEX IF NOT EXISTS idx_chat_messages_room ON chat_messages(room_id, seq);
`

// Open opens (or creates) the archive database and starts the writer.
func Open(path string, timeout time.Duration, log *logger.Logger) (*Archive, error) {
	if log == nil {
		log = logger.Default
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open archive database: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetConnMaxLifetime(timeout)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply archive schema: %w", err)
	}

	a := &Archive{
		db:      db,
		writes:  make(chan writeOp, 256),
		done:    make(chan struct{}),
		log:     log,
		timeout: timeout,
	}
	a.wg.Add(1)
	go a.writeLoop()
	return a, nil
}

// writeLoop applies queued writes one at a time, retrying each failure once.
func (a *Archive) writeLoop() {
	defer a.wg.Done()
	for {
		select {
		case op := <-a.writes:
			if err := op(a.db); err != nil {
				a.log.Error("archive write failed, retrying: %v", err)
				time.Sleep(time.Second)
				if err := op(a.db); err != nil {
					a.log.Error("archive write failed after retry: %v", err)
				}
			}
		case <-a.done:
			// Drain what is already queued before exiting.
			for {
				select {
				case op := <-a.writes:
					if err := op(a.db); err != nil {
						a.log.Error("archive write failed during drain: %v", err)
					}
				default:
					return
				}
			}
		}
	}
}

// enqueue hands a write to the writer without blocking the caller. A full
// queue drops the write: the archive is best-effort by contract and must
// never stall a room operation.
func (a *Archive) enqueue(op writeOp) {
	a.mu.RLock()
	closed := a.closed
	a.mu.RUnlock()
	if closed {
		return
	}
	select {
	case a.writes <- op:
	default:
		a.log.Error("archive queue full, dropping write")
	}
}

// SessionStarted records that a room opened.
func (a *Archive) SessionStarted(roomID string, at time.Time) {
	a.enqueue(func(db *sql.DB) error {
		_, err := db.Exec(
			`INSERT OR IGNORE INTO sessions (room_id, started_at) VALUES (?, ?)`,
			roomID, at.UTC(),
		)
		return err
	})
}

// SessionEnded records that a room was destroyed or explicitly ended.
func (a *Archive) SessionEnded(roomID string, at time.Time) {
	a.enqueue(func(db *sql.DB) error {
		_, err := db.Exec(
			`UPDATE sessions SET ended_at = ? WHERE room_id = ? AND ended_at IS NULL`,
			at.UTC(), roomID,
		)
		return err
	})
}

// SaveMessage persists one sequenced chat message.
func (a *Archive) SaveMessage(roomID string, msg types.ChatMessage) {
	a.enqueue(func(db *sql.DB) error {
		_, err := db.Exec(
			`INSERT OR IGNORE INTO chat_messages (id, room_id, seq, sender_id, sender_name, body, sent_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			uuid.New().String(), roomID, msg.Seq, msg.SenderID, msg.SenderName, msg.Body, msg.SentAt.UTC(),
		)
		return err
	})
}

// RoomMessages reads back the archived messages for a room in seq order.
// Serves the ops API; live replay comes from room memory, not from here.
func (a *Archive) RoomMessages(ctx context.Context, roomID string, sinceSeq int64) ([]types.ChatMessage, error) {
	rows, err := a.db.QueryContext(ctx,
		`SELECT seq, sender_id, sender_name, body, sent_at
		 FROM chat_messages WHERE room_id = ? AND seq > ? ORDER BY seq`,
		roomID, sinceSeq,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query archived messages: %w", err)
	}
	defer rows.Close()

	var out []types.ChatMessage
	for rows.Next() {
		var m types.ChatMessage
		if err := rows.Scan(&m.Seq, &m.SenderID, &m.SenderName, &m.Body, &m.SentAt); err != nil {
			return nil, fmt.Errorf("failed to scan archived message: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Close stops accepting writes, drains the queue and closes the database.
func (a *Archive) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	a.mu.Unlock()

	close(a.done)
	a.wg.Wait()
	return a.db.Close()
}
