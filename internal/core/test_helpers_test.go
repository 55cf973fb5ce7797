package core

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/vovakirdan/wirechat-tcp/internal/banlog"
)

// fakeConn records what the hub sends to a client.
type fakeConn struct {
	mu     sync.Mutex
	msgs   []string
	closed bool
	full   bool
}

func (f *fakeConn) Send(msg []byte) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed || f.full {
		return false
	}
	f.msgs = append(f.msgs, string(msg))
	return true
}

// SendFinal ignores full, like a session's reserved farewell slot.
func (f *fakeConn) SendFinal(msg []byte) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return false
	}
	f.msgs = append(f.msgs, string(msg))
	return true
}

func (f *fakeConn) SetFull(full bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.full = full
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeConn) Messages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.msgs))
	copy(out, f.msgs)
	return out
}

func (f *fakeConn) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeConn) Received(msg string) bool {
	for _, m := range f.Messages() {
		if m == msg {
			return true
		}
	}
	return false
}

// memRecorder keeps recorded ban events in memory.
type memRecorder struct {
	mu     sync.Mutex
	events []banlog.Event
}

func (m *memRecorder) Record(_ context.Context, ev banlog.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return nil
}

func (m *memRecorder) Actions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.events))
	for _, ev := range m.events {
		out = append(out, string(ev.Action)+" "+ev.IP)
	}
	return out
}

func startHub(t *testing.T, capacity int, rec BanRecorder) (*Hub, context.Context) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	hub := NewHub(NewRegistry(capacity), NewBanStore(rec, nil), nil)
	go hub.Run(ctx)
	return hub, ctx
}

func mustAccept(t *testing.T, ctx context.Context, hub *Hub, ip string) (ClientID, *fakeConn) {
	t.Helper()

	conn := &fakeConn{}
	id, err := hub.Accept(ctx, conn, ip)
	if err != nil {
		t.Fatalf("accept %s: %v", ip, err)
	}
	return id, conn
}

// mustJoin connects a client and registers name, waiting until the hub has named it.
func mustJoin(t *testing.T, ctx context.Context, hub *Hub, ip, name string) (ClientID, *fakeConn) {
	t.Helper()

	id, conn := mustAccept(t, ctx, hub, ip)
	if err := hub.Deliver(ctx, id, []byte(name+"\n")); err != nil {
		t.Fatalf("deliver name: %v", err)
	}
	eventually(t, func() bool {
		st, err := hub.Stats(ctx)
		if err != nil {
			return false
		}
		for _, c := range st.Clients {
			if c.ID == id && c.Named {
				return true
			}
		}
		return false
	}, "client %s never got named", name)
	return id, conn
}

func eventually(t *testing.T, cond func() bool, format string, args ...any) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf(format, args...)
}

func hasPrefix(msgs []string, prefix string) bool {
	for _, m := range msgs {
		if strings.HasPrefix(m, prefix) {
			return true
		}
	}
	return false
}
