package receiver

// --- App to UI Messages ---

// ListeningMsg is sent each time the receiver waits for a new sender.
type ListeningMsg struct {
	Port int
}
