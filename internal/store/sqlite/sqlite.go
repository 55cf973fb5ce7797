package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/vovakirdan/wirechat-tcp/internal/banlog"
	"github.com/vovakirdan/wirechat-tcp/internal/store"
)

// Schema creates the ban_events table.
const Schema = `
CREATE TABLE IF NOT EXISTS ban_events (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	event_time  TEXT NOT NULL DEFAULT '',
	action      TEXT NOT NULL,
	ip          TEXT NOT NULL,
	recorded_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_ban_events_ip ON ban_events(ip);
`

// SQLiteStore implements store.AuditStore for SQLite.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time

	mu     sync.Mutex
	closed bool
}

var _ store.AuditStore = (*SQLiteStore)(nil)

// New opens the database at dbPath and applies Schema.
func New(dbPath string) (*SQLiteStore, error) {
	return NewWithSetup(dbPath, func(db *sql.DB) error {
		_, err := db.Exec(Schema)
		return err
	})
}

// NewWithSetup opens the database and runs setup instead of the default schema.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection; it also keeps ":memory:" databases alive.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db, now: time.Now}, nil
}

// Close closes the database connection. Closing twice is a no-op.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func (s *SQLiteStore) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Record inserts one ban log event.
func (s *SQLiteStore) Record(ctx context.Context, ev banlog.Event) error {
	if s.isClosed() {
		return store.ErrClosed
	}

	query := `
		INSERT INTO ban_events (event_time, action, ip, recorded_at)
		VALUES (?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query, formatTime(ev.Time), string(ev.Action), ev.IP, formatTime(s.now()))
	if err != nil {
		return fmt.Errorf("insert ban event: %w", err)
	}
	return nil
}

// ListBanEvents returns the newest events first.
func (s *SQLiteStore) ListBanEvents(ctx context.Context, limit int) ([]*store.BanEvent, error) {
	if s.isClosed() {
		return nil, store.ErrClosed
	}

	query := `
		SELECT id, event_time, action, ip, recorded_at
		FROM ban_events
		ORDER BY id DESC
		LIMIT ?
	`
	return s.queryEvents(ctx, query, sqlLimit(limit))
}

// ListBanEventsForIP returns the events of ip, newest first.
func (s *SQLiteStore) ListBanEventsForIP(ctx context.Context, ip string, limit int) ([]*store.BanEvent, error) {
	if s.isClosed() {
		return nil, store.ErrClosed
	}

	query := `
		SELECT id, event_time, action, ip, recorded_at
		FROM ban_events
		WHERE ip = ?
		ORDER BY id DESC
		LIMIT ?
	`
	return s.queryEvents(ctx, query, ip, sqlLimit(limit))
}

// CountByAction returns the number of events per action.
func (s *SQLiteStore) CountByAction(ctx context.Context) (map[banlog.Action]int, error) {
	if s.isClosed() {
		return nil, store.ErrClosed
	}

	rows, err := s.db.QueryContext(ctx, `SELECT action, COUNT(*) FROM ban_events GROUP BY action`)
	if err != nil {
		return nil, fmt.Errorf("count ban events: %w", err)
	}
	defer rows.Close()

	counts := make(map[banlog.Action]int)
	for rows.Next() {
		var (
			action string
			n      int
		)
		if err := rows.Scan(&action, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[banlog.Action(action)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate counts: %w", err)
	}
	return counts, nil
}

func (s *SQLiteStore) queryEvents(ctx context.Context, query string, args ...any) ([]*store.BanEvent, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query ban events: %w", err)
	}
	defer rows.Close()

	events := []*store.BanEvent{}
	for rows.Next() {
		var (
			ev                  store.BanEvent
			eventTime, recorded string
			action              string
		)
		if err := rows.Scan(&ev.ID, &eventTime, &action, &ev.IP, &recorded); err != nil {
			return nil, fmt.Errorf("scan ban event: %w", err)
		}
		ev.Action = banlog.Action(action)
		ev.Time = parseTime(eventTime)
		ev.RecordedAt = parseTime(recorded)
		events = append(events, &ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ban events: %w", err)
	}
	return events, nil
}

// sqlLimit maps "no limit" to SQLite's -1.
func sqlLimit(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
