package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewIDIsBase36(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := NewID()
		assert.True(t, Valid(id), "id %q", id)
		assert.False(t, seen[id], "duplicate id %q", id)
		seen[id] = true
	}
}

func TestValid(t *testing.T) {
	assert.True(t, Valid("abc123"))
	assert.False(t, Valid(""))
	assert.False(t, Valid("ABC"))
	assert.False(t, Valid("a-b"))
}

func TestContextRoundTrip(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	_, ok = FromContext(WithID(context.Background(), ""))
	assert.False(t, ok, "an empty id is no session")

	id, ok := FromContext(WithID(context.Background(), "k3j2"))
	assert.True(t, ok)
	assert.Equal(t, "k3j2", id)
}
