package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func millis(v int64) *int64 {
	return &v
}

func TestWasParticipantAt_NeverAdded(t *testing.T) {
	assert.False(t, WasParticipantAt(nil, nil, 100))
	assert.False(t, WasParticipantAt(nil, millis(50), 100))
}

func TestWasParticipantAt_AddedNeverRemoved(t *testing.T) {
	added := millis(10)

	assert.False(t, WasParticipantAt(added, nil, 5))
	assert.True(t, WasParticipantAt(added, nil, 10))
	assert.True(t, WasParticipantAt(added, nil, 100))
}

func TestWasParticipantAt_AddedThenRemoved(t *testing.T) {
	added := millis(10)
	removed := millis(20)

	assert.False(t, WasParticipantAt(added, removed, 5), "before being added")
	assert.True(t, WasParticipantAt(added, removed, 10), "the instant of the add")
	assert.True(t, WasParticipantAt(added, removed, 15), "between add and remove")
	assert.False(t, WasParticipantAt(added, removed, 20), "the instant of the remove")
	assert.False(t, WasParticipantAt(added, removed, 25), "after being removed")
}

func TestWasParticipantAt_ReAdded(t *testing.T) {
	added := millis(30)
	removed := millis(20)

	assert.False(t, WasParticipantAt(added, removed, 25), "between remove and re-add")
	assert.True(t, WasParticipantAt(added, removed, 30))
	assert.True(t, WasParticipantAt(added, removed, 100), "re-add supersedes the old remove")
}
