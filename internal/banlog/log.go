package banlog

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"
)

// Read parses every well-formed event from r in order. Malformed lines are skipped.
func Read(r io.Reader, logger *zerolog.Logger) ([]Event, error) {
	var events []Event

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if line == "" {
			continue
		}
		ev, err := Parse(line)
		if err != nil {
			if logger != nil {
				logger.Debug().Err(err).Int("line", lineNo).Msg("skipping ban log line")
			}
			continue
		}
		events = append(events, ev)
	}
	if err := scanner.Err(); err != nil {
		return events, fmt.Errorf("scan ban log: %w", err)
	}
	return events, nil
}

// Load reads the events stored at path. A missing file yields no events and no error.
func Load(path string, logger *zerolog.Logger) ([]Event, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open ban log: %w", err)
	}
	defer f.Close()

	return Read(f, logger)
}

// Writer appends events to the ban log file.
type Writer struct {
	mu   sync.Mutex
	f    *os.File
	path string
}

// OpenWriter opens path for appending, creating it when needed.
func OpenWriter(path string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open ban log for append: %w", err)
	}
	return &Writer{f: f, path: path}, nil
}

// Path returns the file the writer appends to.
func (w *Writer) Path() string {
	return w.path
}

// Record appends one event and syncs it to disk.
func (w *Writer) Record(_ context.Context, ev Event) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.f == nil {
		return os.ErrClosed
	}
	if _, err := fmt.Fprintln(w.f, ev.String()); err != nil {
		return fmt.Errorf("append ban event: %w", err)
	}
	return w.f.Sync()
}

// Close flushes and closes the file. It is safe to call more than once.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.f == nil {
		return nil
	}
	err := w.f.Close()
	w.f = nil
	return err
}
