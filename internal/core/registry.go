package core

import (
	"strings"
	"time"
)

// Registry is the ordered collection of connected clients.
// It is owned by the hub goroutine and is not safe for concurrent use.
type Registry struct {
	max   int
	order []*Client
	byID  map[ClientID]*Client
}

// NewRegistry constructs an empty registry holding at most max clients.
func NewRegistry(max int) *Registry {
	return &Registry{
		max:  max,
		byID: make(map[ClientID]*Client, max),
	}
}

// Add registers an unnamed client for conn.
func (r *Registry) Add(conn Conn, ip string) (*Client, error) {
	if len(r.order) >= r.max {
		return nil, ErrCapacityExceeded
	}

	c := &Client{
		ID:          NewClientID(),
		IP:          ip,
		ConnectedAt: time.Now(),
		conn:        conn,
	}
	r.order = append(r.order, c)
	r.byID[c.ID] = c
	return c, nil
}

// AssignName marks the client named. Trailing CR/LF are ignored and names are
// compared case-sensitively against the other named clients.
func (r *Registry) AssignName(id ClientID, name string) error {
	c, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	if c.named {
		return ErrAlreadyNamed
	}

	name = strings.TrimRight(name, "\r\n")
	if name == "" {
		return ErrInvalidName
	}
	for _, other := range r.order {
		if other.named && other.Name == name {
			return ErrNameTaken
		}
	}

	c.Name = name
	c.named = true
	return nil
}

// Remove unregisters the client and closes its connection.
func (r *Registry) Remove(id ClientID) (*Client, bool) {
	c, ok := r.byID[id]
	if !ok {
		return nil, false
	}
	delete(r.byID, id)
	for i, other := range r.order {
		if other == c {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
	return c, true
}

// Get returns the client registered under id.
func (r *Registry) Get(id ClientID) (*Client, bool) {
	c, ok := r.byID[id]
	return c, ok
}

// FindByName returns the named client holding name.
func (r *Registry) FindByName(name string) (*Client, error) {
	for _, c := range r.order {
		if c.named && c.Name == name {
			return c, nil
		}
	}
	return nil, ErrNotFound
}

// ByIP returns every client connected from ip, in connection order.
func (r *Registry) ByIP(ip string) []*Client {
	var out []*Client
	for _, c := range r.order {
		if c.IP == ip {
			out = append(out, c)
		}
	}
	return out
}

// Snapshot copies the current client list in connection order.
func (r *Registry) Snapshot() []*Client {
	out := make([]*Client, len(r.order))
	copy(out, r.order)
	return out
}

// Len returns the number of registered clients.
func (r *Registry) Len() int {
	return len(r.order)
}

// Cap returns the registry capacity.
func (r *Registry) Cap() int {
	return r.max
}
