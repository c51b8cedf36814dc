package types

// Server -> client event types.
const (
	EventRoomSnapshot            = "room-snapshot"
	EventParticipantJoined       = "participant-joined"
	EventParticipantDisconnected = "participant-disconnected"
	EventParticipantLeft         = "participant-left"
	EventParticipantUpdated      = "participant-updated"
	EventChatMessage             = "chat-message"
	EventRecordingStateChanged   = "recording-state-changed"
	EventScreenShareChanged      = "screen-share-changed"
	EventSessionEnded            = "session-ended"
	EventError                   = "error"
)

// Client -> server command types.
const (
	CommandJoinRoom           = "join-room"
	CommandLeaveRoom          = "leave-room"
	CommandSetMediaState      = "set-media-state"
	CommandRequestScreenShare = "request-screen-share"
	CommandStopScreenShare    = "stop-screen-share"
	CommandChatPost           = "chat-post"
	CommandChatReplay         = "chat-replay"
	CommandStartRecording     = "start-recording"
	CommandStopRecording      = "stop-recording"
	CommandForceMute          = "force-mute"
	CommandRemoveParticipant  = "remove-participant"
	CommandEndSession         = "end-session"
)

// Event is the envelope for every server -> client push.
type Event struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// ParticipantEvent accompanies joined/disconnected/left events.
type ParticipantEvent struct {
	Participant ParticipantInfo `json:"participant"`
}

// ParticipantUpdatedEvent carries a single applied state change. Connected is
// set (non-nil) only when the change is a reconnect rebinding the slot.
type ParticipantUpdatedEvent struct {
	ParticipantID string          `json:"participantId"`
	Patch         MediaStatePatch `json:"patch"`
	Connected     *bool           `json:"connected,omitempty"`
}

// RecordingStateEvent accompanies recording-state-changed.
type RecordingStateEvent struct {
	IsRecording bool `json:"isRecording"`
}

// ScreenShareEvent accompanies screen-share-changed. ScreenSharerID is nil
// when the slot was released.
type ScreenShareEvent struct {
	ScreenSharerID *string `json:"screenSharerId"`
}

// ErrorEvent is the typed failure response for a rejected command.
type ErrorEvent struct {
	Command string `json:"command"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Command is the envelope for every client -> server request.
type Command struct {
	Type    string         `json:"type"`
	Payload CommandPayload `json:"payload"`
}

// CommandPayload is the union of all client command fields; each command
// reads only the fields it needs.
type CommandPayload struct {
	RoomID        string          `json:"roomId,omitempty"`
	Patch         MediaStatePatch `json:"patch,omitempty"`
	Body          string          `json:"body,omitempty"`
	SinceSeq      int64           `json:"sinceSeq,omitempty"`
	ParticipantID string          `json:"participantId,omitempty"`
}
