package core

import "errors"

var (
	ErrCapacityExceeded = errors.New("client registry is full")
	ErrNameTaken        = errors.New("name already taken")
	ErrInvalidName      = errors.New("invalid name")
	ErrAlreadyNamed     = errors.New("client already has a name")
	ErrNotFound         = errors.New("not found")
	ErrAlreadyBanned    = errors.New("ip already banned")
	ErrNotBanned        = errors.New("ip not banned")
	ErrInvalidIP        = errors.New("invalid ip address")
	ErrBanned           = errors.New("ip is banned")
	ErrUnknownCommand   = errors.New("unknown command")
	ErrMissingArgument  = errors.New("missing argument")
	ErrHubStopped       = errors.New("hub stopped")
)

// Result labels used for metrics and logs.
const (
	resultOK = "ok"
)

// errorLabel maps a domain error to a short label.
func errorLabel(err error) string {
	switch {
	case err == nil:
		return resultOK
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrAlreadyBanned):
		return "already_banned"
	case errors.Is(err, ErrNotBanned):
		return "not_banned"
	case errors.Is(err, ErrInvalidIP):
		return "invalid_ip"
	case errors.Is(err, ErrMissingArgument):
		return "missing_argument"
	case errors.Is(err, ErrUnknownCommand):
		return "unknown_command"
	default:
		return "error"
	}
}
