// Package dedup filters repeated and echoed webhook deliveries before they
// reach session logic.
package dedup

import "sync"

// Verdict is the outcome of checking an inbound message.
type Verdict int

const (
	// Accepted means the message should be relayed.
	Accepted Verdict = iota
	// Duplicate means the message ID matches the immediately preceding one.
	Duplicate
	// Loop means the message came from the bot itself or is a system
	// message, and relaying it would feed our own output back in.
	Loop
)

// Message is the subset of an inbound delivery the guard inspects.
type Message struct {
	ID              string
	SenderUsername  string
	IsSystemMessage bool
}

// Guard is a single-slot dedup filter: only the most recent message ID is
// remembered, so it catches back-to-back redeliveries but not out-of-order
// duplicates. That narrow window is deliberate and must not be widened to a
// set without changing the documented behaviour.
type Guard struct {
	mu                  sync.Mutex
	botUsername         string
	lastSeenID          string
	lastProcessedUserID string
}

// NewGuard creates a guard that treats botUsername as the bridge's own
// identity for loop prevention.
func NewGuard(botUsername string) *Guard {
	return &Guard{botUsername: botUsername}
}

// Check decides whether an inbound message may proceed. On acceptance the
// message ID is recorded as the new last-seen ID before returning, so a
// duplicate racing with the original is still caught by the next check.
func (g *Guard) Check(msg Message) Verdict {
	g.mu.Lock()
	defer g.mu.Unlock()

	if msg.ID != "" && msg.ID == g.lastSeenID {
		return Duplicate
	}
	if msg.SenderUsername == g.botUsername || msg.IsSystemMessage {
		return Loop
	}

	g.lastSeenID = msg.ID
	g.lastProcessedUserID = msg.ID
	return Accepted
}

// LastProcessedUserMessageID returns the ID of the most recently accepted
// user message.
func (g *Guard) LastProcessedUserMessageID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastProcessedUserID
}
