package core

import (
	"fmt"
	"strings"
)

// CommandKind describes what the operator wants to do.
type CommandKind int

const (
	// CommandKick evicts a named client.
	CommandKick CommandKind = iota
	// CommandBan bans an ip and evicts every client connected from it.
	CommandBan
	// CommandUnban lifts a ban.
	CommandUnban
	// CommandShowBans lists banned ips.
	CommandShowBans
	// CommandList lists connected clients.
	CommandList
	// CommandHelp prints the command summary.
	CommandHelp
	// CommandQuit stops the server.
	CommandQuit
)

var commandNames = map[CommandKind]string{
	CommandKick:     "kick",
	CommandBan:      "ban",
	CommandUnban:    "unban",
	CommandShowBans: "showbans",
	CommandList:     "list",
	CommandHelp:     "help",
	CommandQuit:     "quit",
}

func (k CommandKind) String() string {
	if name, ok := commandNames[k]; ok {
		return name
	}
	return fmt.Sprintf("command(%d)", int(k))
}

// Command is a parsed operator console line.
type Command struct {
	Kind CommandKind
	Arg  string
}

// HelpText is printed by the help command and at startup.
const HelpText = `Available commands:
  kick <name>   - disconnect a user
  ban <ip>      - ban an ip and disconnect its clients
  unban <ip>    - lift a ban
  showbans      - list banned ips
  list          - list connected clients
  help          - show this help
  quit          - stop the server`

// ParseCommand decodes one console line.
func ParseCommand(line string) (Command, error) {
	line = strings.TrimSpace(strings.TrimRight(line, "\r\n"))
	verb, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	var kind CommandKind
	takesArg := false
	switch verb {
	case "kick":
		kind, takesArg = CommandKick, true
	case "ban":
		kind, takesArg = CommandBan, true
	case "unban":
		kind, takesArg = CommandUnban, true
	case "showbans":
		kind = CommandShowBans
	case "list":
		kind = CommandList
	case "help":
		kind = CommandHelp
	case "quit":
		kind = CommandQuit
	default:
		return Command{}, fmt.Errorf("%w: %q", ErrUnknownCommand, line)
	}

	if takesArg && arg == "" {
		return Command{}, fmt.Errorf("%w: usage %s <%s>", ErrMissingArgument, verb, argName(kind))
	}
	if !takesArg && arg != "" {
		return Command{}, fmt.Errorf("%w: %q", ErrUnknownCommand, line)
	}
	return Command{Kind: kind, Arg: arg}, nil
}

func argName(kind CommandKind) string {
	if kind == CommandKick {
		return "name"
	}
	return "ip"
}

// AdminResult is the outcome of an operator command.
type AdminResult struct {
	Output string
	Err    error
	Quit   bool
}
