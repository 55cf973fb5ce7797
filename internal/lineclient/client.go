// Package lineclient is a terminal client for the chat server: it announces a
// name, relays input lines and prints whatever the server sends.
package lineclient

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"

	"github.com/vovakirdan/wirechat-tcp/internal/core"
)

// DefaultName is announced when no name is given.
const DefaultName = "You"

// ErrBanned is returned when the server reports a ban or a kick.
var ErrBanned = errors.New("banned from the server")

// Client relays one terminal session.
type Client struct {
	conn net.Conn
	name string
	in   io.Reader
	out  io.Writer

	mu sync.Mutex
}

// New builds a client on an established connection.
func New(conn net.Conn, name string, in io.Reader, out io.Writer) *Client {
	if name == "" {
		name = DefaultName
	}
	return &Client{conn: conn, name: name, in: in, out: out}
}

// Run sends the name line and relays until ctx is done, input ends, the
// server closes the connection or bans the client. The connection is closed
// on return.
func (c *Client) Run(ctx context.Context) error {
	defer c.conn.Close()

	if _, err := fmt.Fprintf(c.conn, "%s\n", c.name); err != nil {
		return fmt.Errorf("send name: %w", err)
	}
	c.printf("connected as '%s'\n%s> ", c.name, c.name)

	readDone := make(chan error, 1)
	go func() { readDone <- c.readLoop() }()

	writeDone := make(chan error, 1)
	go func() { writeDone <- c.writeLoop() }()

	select {
	case <-ctx.Done():
		c.printf("\nconnection to the server closed\n")
		return nil
	case err := <-readDone:
		return err
	case err := <-writeDone:
		if err != nil {
			c.printf("\nconnection lost\n")
			return err
		}
		// input ended: let the server see EOF and finish what it already sent
		if cw, ok := c.conn.(interface{ CloseWrite() error }); ok {
			_ = cw.CloseWrite()
			select {
			case err := <-readDone:
				return err
			case <-ctx.Done():
			}
		}
		return nil
	}
}

func (c *Client) readLoop() error {
	buf := make([]byte, 1024)
	for {
		n, err := c.conn.Read(buf)
		if n > 0 {
			msg := buf[:n]
			if i := bannedAt(msg); i >= 0 {
				if i > 0 {
					c.printf("\n%s", msg[:i])
				}
				c.printf("\n%s\n", banNotice(string(msg[i:])))
				return ErrBanned
			}
			c.printf("\n%s%s> ", msg, c.name)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				c.printf("\nserver closed the connection\n")
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}
	}
}

func (c *Client) writeLoop() error {
	scanner := bufio.NewScanner(c.in)
	for scanner.Scan() {
		if _, err := io.WriteString(c.conn, scanner.Text()+"\n"); err != nil {
			return fmt.Errorf("write: %w", err)
		}
	}
	return scanner.Err()
}

func (c *Client) printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, format, args...)
}

// bannedAt returns the offset of the first line of msg that starts with the
// ban sentinel, or -1. Notices queued before the farewell can share its read.
func bannedAt(msg []byte) int {
	sentinel := []byte(core.BannedSentinel)
	for off := 0; off < len(msg); {
		if bytes.HasPrefix(msg[off:], sentinel) {
			return off
		}
		nl := bytes.IndexByte(msg[off:], '\n')
		if nl < 0 {
			break
		}
		off += nl + 1
	}
	return -1
}

// banNotice turns a BANNED message into text for the user. A kick carries its
// reason after the sentinel.
func banNotice(msg string) string {
	if i := strings.IndexByte(msg, '\n'); i >= 0 {
		msg = msg[:i]
	}
	reason := strings.TrimSpace(strings.TrimPrefix(msg, core.BannedSentinel))
	reason = strings.TrimSpace(strings.TrimPrefix(reason, ":"))
	if reason == "" {
		return "You have been banned from the server."
	}
	return strings.ToUpper(reason[:1]) + reason[1:]
}
