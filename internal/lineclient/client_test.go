package lineclient

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func runClient(t *testing.T, name string, in io.Reader) (net.Conn, *syncBuffer, <-chan error) {
	t.Helper()

	server, conn := net.Pipe()
	t.Cleanup(func() { _ = server.Close() })

	out := &syncBuffer{}
	done := make(chan error, 1)
	go func() { done <- New(conn, name, in, out).Run(context.Background()) }()
	return server, out, done
}

func wait(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(3 * time.Second):
		t.Fatalf("client did not return")
		return nil
	}
}

func TestClientSendsNameAndRelays(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	server, out, done := runClient(t, "alice", pr)
	r := bufio.NewReader(server)

	line, err := r.ReadString('\n')
	if err != nil || line != "alice\n" {
		t.Fatalf("expected name line, got %q (%v)", line, err)
	}

	go func() { _, _ = io.WriteString(pw, "hello\n") }()
	line, err = r.ReadString('\n')
	if err != nil || line != "hello\n" {
		t.Fatalf("expected relayed line, got %q (%v)", line, err)
	}

	if _, err := io.WriteString(server, "bob > hi\n"); err != nil {
		t.Fatalf("server write: %v", err)
	}
	_ = server.Close()

	if err := wait(t, done); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(out.String(), "bob > hi\nalice> ") {
		t.Fatalf("server output not printed with prompt: %q", out.String())
	}
}

func TestClientDefaultName(t *testing.T) {
	server, _, done := runClient(t, "", strings.NewReader(""))

	line, err := bufio.NewReader(server).ReadString('\n')
	if err != nil || line != DefaultName+"\n" {
		t.Fatalf("expected default name, got %q (%v)", line, err)
	}
	_ = server.Close()
	wait(t, done)
}

func TestClientBanned(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	server, out, done := runClient(t, "alice", pr)
	if _, err := bufio.NewReader(server).ReadString('\n'); err != nil {
		t.Fatalf("read name: %v", err)
	}
	if _, err := io.WriteString(server, "BANNED\n"); err != nil {
		t.Fatalf("server write: %v", err)
	}

	if err := wait(t, done); !errors.Is(err, ErrBanned) {
		t.Fatalf("expected ErrBanned, got %v", err)
	}
	if !strings.Contains(out.String(), "You have been banned from the server.") {
		t.Fatalf("missing ban notice: %q", out.String())
	}
}

func TestBanNotice(t *testing.T) {
	tests := []struct {
		msg  string
		want string
	}{
		{msg: "BANNED\n", want: "You have been banned from the server."},
		{msg: "BANNED", want: "You have been banned from the server."},
		{msg: "BANNED: you have been kicked from the server.\n", want: "You have been kicked from the server."},
		{msg: "BANNED\ntrailing\n", want: "You have been banned from the server."},
	}
	for _, tt := range tests {
		if got := banNotice(tt.msg); got != tt.want {
			t.Errorf("banNotice(%q) = %q, want %q", tt.msg, got, tt.want)
		}
	}
}

func TestClientBannedAfterNoticeInSameRead(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	server, out, done := runClient(t, "alice", pr)
	if _, err := bufio.NewReader(server).ReadString('\n'); err != nil {
		t.Fatalf("read name: %v", err)
	}
	if _, err := io.WriteString(server, "bob joined the chat.\nBANNED\n"); err != nil {
		t.Fatalf("server write: %v", err)
	}

	if err := wait(t, done); !errors.Is(err, ErrBanned) {
		t.Fatalf("expected ErrBanned, got %v", err)
	}
	got := out.String()
	if !strings.Contains(got, "bob joined the chat.") {
		t.Fatalf("notice before the farewell should still be printed: %q", got)
	}
	if !strings.Contains(got, "You have been banned from the server.") {
		t.Fatalf("missing ban notice: %q", got)
	}
}

func TestBannedAt(t *testing.T) {
	tests := []struct {
		msg  string
		want int
	}{
		{msg: "BANNED\n", want: 0},
		{msg: "bob joined the chat.\nBANNED\n", want: 21},
		{msg: "a\nb\nBANNED: you have been kicked from the server.\n", want: 4},
		{msg: "bob > BANNED is a word\n", want: -1},
		{msg: "hello\n", want: -1},
		{msg: "", want: -1},
	}
	for _, tt := range tests {
		if got := bannedAt([]byte(tt.msg)); got != tt.want {
			t.Errorf("bannedAt(%q) = %d, want %d", tt.msg, got, tt.want)
		}
	}
}
