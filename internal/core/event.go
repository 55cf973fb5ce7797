package core

// acceptRequest asks the hub to admit a freshly accepted connection.
type acceptRequest struct {
	conn  Conn
	ip    string
	reply chan acceptReply
}

type acceptReply struct {
	id  ClientID
	err error
}

// inbound is what a connection reader hands to the hub: either a chunk of
// data from one read, or the end of the stream.
type inbound struct {
	id     ClientID
	data   []byte
	closed bool
}

// adminRequest carries an operator command, or a read-only stats query when
// stats is set.
type adminRequest struct {
	line  string
	stats bool
	reply chan adminReply
}

type adminReply struct {
	result AdminResult
	stats  Stats
}

// Stats is a point-in-time view of the room.
type Stats struct {
	Clients  []ClientInfo `json:"clients"`
	Bans     []string     `json:"bans"`
	Capacity int          `json:"capacity"`
}

// pass is the batch of requests handled in one wake-up of the hub.
type pass struct {
	admin   []*adminRequest
	accepts []*acceptRequest
	inbound []inbound
}
