package types

import "regexp"

var idRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// IsValidParticipantID checks that an identity id is usable as a map key and
// safe to echo back over the wire. Identities come from the external auth
// provider but are validated again at the boundary.
func IsValidParticipantID(id string) bool {
	if len(id) < 1 || len(id) > 64 {
		return false
	}
	return idRegex.MatchString(id)
}

// IsValidRoomID checks a room (class session) id.
func IsValidRoomID(id string) bool {
	if len(id) < 1 || len(id) > 64 {
		return false
	}
	return idRegex.MatchString(id)
}
