package conversation

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestDirectKeyForIsOrderIndependent(t *testing.T) {
	a := uuid.New()
	b := uuid.New()

	assert.Equal(t, DirectKeyFor(a, b), DirectKeyFor(b, a))
	assert.NotEqual(t, DirectKeyFor(a, b), DirectKeyFor(a, uuid.New()))
}
