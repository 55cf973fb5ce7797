// Package store defines persistence for the ban audit trail. The ban log file
// stays the source of truth; a store mirrors it for querying.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/vovakirdan/wirechat-tcp/internal/banlog"
)

// ErrClosed is returned by a store after Close.
var ErrClosed = errors.New("store: closed")

// BanEvent is one persisted ban log entry.
type BanEvent struct {
	ID         int64         `json:"id"`
	Time       time.Time     `json:"time"`
	Action     banlog.Action `json:"action"`
	IP         string        `json:"ip"`
	RecordedAt time.Time     `json:"recorded_at"`
}

// AuditStore mirrors ban, unban and refused-connection events.
type AuditStore interface {
	// Record persists one event. It satisfies core.BanRecorder.
	Record(ctx context.Context, ev banlog.Event) error

	// ListBanEvents returns the newest events first. A non-positive limit returns all.
	ListBanEvents(ctx context.Context, limit int) ([]*BanEvent, error)

	// ListBanEventsForIP returns the events of one address, newest first.
	ListBanEventsForIP(ctx context.Context, ip string, limit int) ([]*BanEvent, error)

	// CountByAction returns how many events of each action were recorded.
	CountByAction(ctx context.Context) (map[banlog.Action]int, error)

	// Close closes the underlying database connection.
	Close() error
}
