package core

import (
	"time"

	"github.com/google/uuid"
)

// ClientID identifies a registered connection.
type ClientID string

// NoClient excludes nobody when passed to Broadcast.
const NoClient ClientID = ""

// NewClientID returns a fresh random identifier.
func NewClientID() ClientID {
	return ClientID(uuid.NewString())
}

// Short is a compact form of the id for console listings.
func (id ClientID) Short() string {
	if len(id) > 8 {
		return string(id[:8])
	}
	return string(id)
}

// Conn is the outbound half of a client connection as seen by the core.
// Send must not block; it reports whether the message was queued.
type Conn interface {
	Send(msg []byte) bool
	Close() error
}

// FinalSender is implemented by connections that can queue one last message
// even when their regular queue is full. The core uses it for farewells that
// are followed by Close.
type FinalSender interface {
	SendFinal(msg []byte) bool
}

// sendFinal queues msg as the last message on conn.
func sendFinal(conn Conn, msg []byte) bool {
	if fs, ok := conn.(FinalSender); ok {
		return fs.SendFinal(msg)
	}
	return conn.Send(msg)
}

// Client is a chat participant as seen by the core layer.
type Client struct {
	ID          ClientID
	IP          string
	Name        string
	ConnectedAt time.Time

	named bool
	conn  Conn
}

// Named reports whether the client has completed registration.
func (c *Client) Named() bool {
	return c.named
}

// Send queues msg on the client's connection.
func (c *Client) Send(msg []byte) bool {
	if c.conn == nil {
		return false
	}
	return c.conn.Send(msg)
}

// Farewell queues the last message before the client is closed. Unlike
// Send it is not dropped when the connection is backed up.
func (c *Client) Farewell(msg []byte) bool {
	if c.conn == nil {
		return false
	}
	return sendFinal(c.conn, msg)
}

// DisplayName is the name or, for unnamed clients, the ip.
func (c *Client) DisplayName() string {
	if c.named {
		return c.Name
	}
	return c.IP
}

// ClientInfo is a read-only view of a client.
type ClientInfo struct {
	ID          ClientID  `json:"id"`
	Name        string    `json:"name,omitempty"`
	IP          string    `json:"ip"`
	Named       bool      `json:"named"`
	ConnectedAt time.Time `json:"connected_at"`
}

// Info copies the public state of the client.
func (c *Client) Info() ClientInfo {
	return ClientInfo{
		ID:          c.ID,
		Name:        c.Name,
		IP:          c.IP,
		Named:       c.named,
		ConnectedAt: c.ConnectedAt,
	}
}
