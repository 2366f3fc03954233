package server

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestMarkDeliveredDropsDuplicates(t *testing.T) {
	c := &Client{lastSeq: make(map[uuid.UUID]int64)}
	convID := uuid.New()

	assert.True(t, c.markDelivered(convID, 1))
	assert.True(t, c.markDelivered(convID, 2))
	assert.False(t, c.markDelivered(convID, 2))
	assert.False(t, c.markDelivered(convID, 1))
	assert.True(t, c.markDelivered(convID, 3))

	// Other conversations track independently.
	other := uuid.New()
	assert.True(t, c.markDelivered(other, 1))
}

func TestResumeFromSkipsAlreadyFetched(t *testing.T) {
	c := &Client{lastSeq: make(map[uuid.UUID]int64)}
	convID := uuid.New()

	c.ResumeFrom(convID, 7)
	assert.False(t, c.markDelivered(convID, 5))
	assert.False(t, c.markDelivered(convID, 7))
	assert.True(t, c.markDelivered(convID, 8))

	// ResumeFrom never rewinds the mark.
	c.ResumeFrom(convID, 3)
	assert.False(t, c.markDelivered(convID, 8))
}

func TestClientRateLimiterBudgets(t *testing.T) {
	rl := NewClientRateLimiter()

	for i := 0; i < DefaultRateLimits.MaxTypingEvents; i++ {
		assert.True(t, rl.Allow("typing:start"))
	}
	assert.False(t, rl.Allow("typing:stop"))

	// Other budgets are unaffected.
	assert.True(t, rl.Allow("read"))
	assert.True(t, rl.Allow("ping"))

	// Unknown types are never allowed.
	assert.False(t, rl.Allow("shrug"))
}
