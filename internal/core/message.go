package core

import "fmt"

// BannedSentinel starts every message telling a client it was evicted by the
// operator, so the remote side can show a dedicated notice.
const BannedSentinel = "BANNED"

var (
	bannedMsg   = []byte(BannedSentinel + "\n")
	kickedMsg   = []byte(BannedSentinel + ": you have been kicked from the server.\n")
	shutdownMsg = []byte("Server is shutting down.\n")
	emptyName   = []byte("ERROR: empty name, reconnect with a name.\n")
)

const chatSeparator = " > "

func nameTakenMsg(name string) []byte {
	return fmt.Appendf(nil, "ERROR: name '%s' is already taken, reconnect with another one.\n", name)
}

func joinedMsg(name string) []byte {
	return fmt.Appendf(nil, "%s joined the chat.\n", name)
}

func leftMsg(name string) []byte {
	return fmt.Appendf(nil, "%s left the chat.\n", name)
}

func kickNotice(name string) []byte {
	return fmt.Appendf(nil, "%s was kicked from the server.\n", name)
}

func banNotice(who string) []byte {
	return fmt.Appendf(nil, "%s was banned and disconnected.\n", who)
}

// chatMsg prefixes the raw payload with the author's name.
func chatMsg(name string, payload []byte) []byte {
	out := make([]byte, 0, len(name)+len(chatSeparator)+len(payload))
	out = append(out, name...)
	out = append(out, chatSeparator...)
	return append(out, payload...)
}
