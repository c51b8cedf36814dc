package types

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRole(t *testing.T) {
	assert.True(t, RoleTeacher.Moderator())
	assert.True(t, RoleAdmin.Moderator())
	assert.False(t, RoleStudent.Moderator())

	assert.True(t, RoleStudent.Valid())
	assert.False(t, Role("JANITOR").Valid())
	assert.False(t, Role("").Valid())
}

func TestMediaStatePatch(t *testing.T) {
	assert.True(t, MediaStatePatch{}.Empty())
	muted := true
	assert.False(t, MediaStatePatch{AudioMuted: &muted}.Empty())
}

func TestIDValidation(t *testing.T) {
	assert.True(t, IsValidParticipantID("alice-1"))
	assert.True(t, IsValidRoomID("math_101"))

	assert.False(t, IsValidParticipantID(""))
	assert.False(t, IsValidParticipantID("has space"))
	assert.False(t, IsValidParticipantID(strings.Repeat("x", 65)))
	assert.False(t, IsValidRoomID("sneaky/../path"))
}

func TestErrorCode(t *testing.T) {
	cases := map[error]string{
		ErrUnauthorized:   "unauthorized",
		ErrForbidden:      "forbidden",
		ErrRoomClosed:     "room-closed",
		ErrAlreadySharing: "already-sharing",
		ErrNotFound:       "not-found",
		ErrValidation:     "validation-error",
	}
	for err, want := range cases {
		assert.Equal(t, want, ErrorCode(err))
		// Wrapped taxonomy errors keep their code.
		assert.Equal(t, want, ErrorCode(fmt.Errorf("context: %w", err)))
	}
	assert.Equal(t, "internal", ErrorCode(fmt.Errorf("boom")))
}
