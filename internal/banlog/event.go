// Package banlog reads and appends the human-readable ban event log.
//
// Each line has the form
//
//	[Mon Jan  2 15:04:05 2006] BAN: 10.0.0.5
//
// and the file is only ever appended to.
package banlog

import (
	"errors"
	"fmt"
	"net/netip"
	"regexp"
	"strings"
	"time"
)

// Action is the kind of a ban event.
type Action string

const (
	ActionBan         Action = "BAN"
	ActionUnban       Action = "UNBAN"
	ActionConnRefused Action = "CONN_REFUSED"
)

// TimeLayout is the ctime-style layout used for event timestamps.
const TimeLayout = time.ANSIC

// ErrMalformed is returned by Parse for lines that are not ban events.
var ErrMalformed = errors.New("malformed ban log line")

var lineRe = regexp.MustCompile(`^\[([^\]]*)\] ([A-Z_]+): (\S+)\s*$`)

// Event is a single ban log entry.
type Event struct {
	Time   time.Time
	Action Action
	IP     string
}

// NewEvent stamps an event with the current local time.
func NewEvent(action Action, ip string) Event {
	return Event{Time: time.Now(), Action: action, IP: ip}
}

// Valid reports whether the action is one of the known ones.
func (a Action) Valid() bool {
	switch a {
	case ActionBan, ActionUnban, ActionConnRefused:
		return true
	default:
		return false
	}
}

// Replayed reports whether the action participates in rebuilding the ban set.
func (a Action) Replayed() bool {
	return a == ActionBan || a == ActionUnban
}

// String formats the event as a log line without the trailing newline.
func (e Event) String() string {
	return fmt.Sprintf("[%s] %s: %s", e.Time.Format(TimeLayout), e.Action, e.IP)
}

// Parse decodes one log line. The address comes back in canonical form.
// Timestamps that do not follow TimeLayout are tolerated and leave Time zero;
// anything else off-format, including an address that does not parse, is
// ErrMalformed.
func Parse(line string) (Event, error) {
	m := lineRe.FindStringSubmatch(strings.TrimRight(line, "\r\n"))
	if m == nil {
		return Event{}, ErrMalformed
	}

	action := Action(m[2])
	if !action.Valid() {
		return Event{}, fmt.Errorf("%w: unknown action %q", ErrMalformed, m[2])
	}

	addr, err := netip.ParseAddr(m[3])
	if err != nil {
		return Event{}, fmt.Errorf("%w: invalid address %q", ErrMalformed, m[3])
	}

	ev := Event{Action: action, IP: addr.Unmap().String()}
	if ts, err := time.ParseInLocation(TimeLayout, m[1], time.Local); err == nil {
		ev.Time = ts
	}
	return ev, nil
}
