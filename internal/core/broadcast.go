package core

// Broadcast sends msg to every client except exclude and returns how many
// sends were queued. A client whose send fails is left for its own reader
// to clean up.
func Broadcast(clients []*Client, exclude ClientID, msg []byte) int {
	sent := 0
	for _, c := range clients {
		if exclude != NoClient && c.ID == exclude {
			continue
		}
		if c.Send(msg) {
			sent++
		}
	}
	return sent
}
