package types

import (
	"time"
)

// Role is the platform-assigned role of a participant. Roles are issued by
// the identity provider and verified before a connection reaches any room.
type Role string

const (
	RoleStudent Role = "STUDENT"
	RoleTeacher Role = "TEACHER"
	RoleAdmin   Role = "ADMIN"
)

// Moderator reports whether the role may perform session-control and
// moderation operations (recording, force-mute, removal, ending the session).
func (r Role) Moderator() bool {
	return r == RoleTeacher || r == RoleAdmin
}

// Valid reports whether the role is one the coordinator recognizes.
func (r Role) Valid() bool {
	return r == RoleStudent || r == RoleTeacher || r == RoleAdmin
}

// Identity is the verified identity bound to a connection. It is produced by
// the auth layer from a signed token; the coordinator never mints identities.
type Identity struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Role        Role   `json:"role"`
}

// MediaState carries a participant's media intent flags. The coordinator
// tracks intent only; actual media bytes flow through an external transport.
type MediaState struct {
	AudioMuted bool `json:"audioMuted"`
	VideoOff   bool `json:"videoOff"`
	HandRaised bool `json:"handRaised"`
}

// MediaStatePatch is a partial MediaState update. Nil fields are untouched;
// each set field is applied last-write-wins and broadcast individually.
type MediaStatePatch struct {
	AudioMuted *bool `json:"audioMuted,omitempty"`
	VideoOff   *bool `json:"videoOff,omitempty"`
	HandRaised *bool `json:"handRaised,omitempty"`
}

// Empty reports whether the patch sets no fields.
func (p MediaStatePatch) Empty() bool {
	return p.AudioMuted == nil && p.VideoOff == nil && p.HandRaised == nil
}

// ParticipantInfo is the wire-visible view of a participant inside a room
// snapshot. Connected is false while the participant is in the reconnection
// grace window.
type ParticipantInfo struct {
	ID          string     `json:"id"`
	DisplayName string     `json:"displayName"`
	Role        Role       `json:"role"`
	MediaState  MediaState `json:"mediaState"`
	Connected   bool       `json:"connected"`
}

// ChatMessage is an immutable, sequenced chat entry. Seq is assigned by the
// room at ingestion and defines the single total order all members observe.
type ChatMessage struct {
	Seq        int64     `json:"seq"`
	SenderID   string    `json:"senderId"`
	SenderName string    `json:"senderName"`
	Body       string    `json:"body"`
	SentAt     time.Time `json:"sentAt"`
}

// RoomSnapshot is the authoritative room state returned on join and
// reconnect. Clients replace their local view with it wholesale rather than
// reconciling individual missed events.
type RoomSnapshot struct {
	RoomID         string            `json:"roomId"`
	Participants   []ParticipantInfo `json:"participants"`
	IsRecording    bool              `json:"isRecording"`
	ScreenSharerID *string           `json:"screenSharerId"`
	ChatSeq        int64             `json:"chatSeq"`
}

// RoomStats is the read-only per-room summary exposed by the ops API.
type RoomStats struct {
	RoomID         string    `json:"roomId"`
	Participants   int       `json:"participants"`
	Connected      int       `json:"connected"`
	IsRecording    bool      `json:"isRecording"`
	CreatedAt      time.Time `json:"createdAt"`
	LastActivityAt time.Time `json:"lastActivityAt"`
}
