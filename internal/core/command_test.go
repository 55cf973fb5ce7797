package core

import (
	"errors"
	"testing"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		line string
		kind CommandKind
		arg  string
		err  error
	}{
		{line: "kick bob", kind: CommandKick, arg: "bob"},
		{line: "kick  John Doe\r\n", kind: CommandKick, arg: "John Doe"},
		{line: "ban 10.0.0.5\n", kind: CommandBan, arg: "10.0.0.5"},
		{line: "unban 10.0.0.5", kind: CommandUnban, arg: "10.0.0.5"},
		{line: "showbans", kind: CommandShowBans},
		{line: "list", kind: CommandList},
		{line: "  help  ", kind: CommandHelp},
		{line: "quit\n", kind: CommandQuit},
		{line: "kick", err: ErrMissingArgument},
		{line: "ban ", err: ErrMissingArgument},
		{line: "list all", err: ErrUnknownCommand},
		{line: "restart", err: ErrUnknownCommand},
		{line: "", err: ErrUnknownCommand},
		{line: "KICK bob", err: ErrUnknownCommand},
	}

	for _, tt := range tests {
		cmd, err := ParseCommand(tt.line)
		if tt.err != nil {
			if !errors.Is(err, tt.err) {
				t.Fatalf("%q: expected %v, got %v", tt.line, tt.err, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%q: %v", tt.line, err)
		}
		if cmd.Kind != tt.kind || cmd.Arg != tt.arg {
			t.Fatalf("%q: unexpected command %+v", tt.line, cmd)
		}
	}
}

func TestCommandKindString(t *testing.T) {
	if CommandShowBans.String() != "showbans" {
		t.Fatalf("unexpected name %q", CommandShowBans.String())
	}
	if CommandKind(99).String() != "command(99)" {
		t.Fatalf("unexpected fallback %q", CommandKind(99).String())
	}
}
