package dedup

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGuard_AcceptsFreshMessage(t *testing.T) {
	g := NewGuard("rocket.cat")

	verdict := g.Check(Message{ID: "m1", SenderUsername: "alice"})
	assert.Equal(t, Accepted, verdict)
	assert.Equal(t, "m1", g.LastProcessedUserMessageID())
}

func TestGuard_RejectsImmediateRedelivery(t *testing.T) {
	g := NewGuard("rocket.cat")

	assert.Equal(t, Accepted, g.Check(Message{ID: "m1", SenderUsername: "alice"}))
	assert.Equal(t, Duplicate, g.Check(Message{ID: "m1", SenderUsername: "alice"}))
}

func TestGuard_SingleSlotMissesInterleavedDuplicate(t *testing.T) {
	// Known weakness, kept on purpose: a duplicate separated by a distinct
	// message is not caught.
	g := NewGuard("rocket.cat")

	assert.Equal(t, Accepted, g.Check(Message{ID: "m1", SenderUsername: "alice"}))
	assert.Equal(t, Accepted, g.Check(Message{ID: "m2", SenderUsername: "alice"}))
	assert.Equal(t, Accepted, g.Check(Message{ID: "m1", SenderUsername: "alice"}))
}

func TestGuard_RejectsBotMessages(t *testing.T) {
	g := NewGuard("rocket.cat")

	verdict := g.Check(Message{ID: "m1", SenderUsername: "rocket.cat"})
	assert.Equal(t, Loop, verdict)

	// Rejected messages must not update dedup state
	assert.Empty(t, g.LastProcessedUserMessageID())
	assert.Equal(t, Accepted, g.Check(Message{ID: "m1", SenderUsername: "alice"}))
}

func TestGuard_RejectsSystemMessages(t *testing.T) {
	g := NewGuard("rocket.cat")

	verdict := g.Check(Message{ID: "m1", SenderUsername: "alice", IsSystemMessage: true})
	assert.Equal(t, Loop, verdict)
}

func TestGuard_DuplicateCheckedBeforeLoop(t *testing.T) {
	g := NewGuard("rocket.cat")

	assert.Equal(t, Accepted, g.Check(Message{ID: "m1", SenderUsername: "alice"}))
	// Same ID from the bot still reads as a duplicate first
	assert.Equal(t, Duplicate, g.Check(Message{ID: "m1", SenderUsername: "rocket.cat"}))
}
