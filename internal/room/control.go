package room

import (
	"time"

	"liveclass/pkg/types"
)

// Session control: TEACHER/ADMIN only. STUDENT calls fail with Forbidden
// before any state is touched.

// moderatorLocked resolves the actor and enforces the role gate.
func (r *Room) moderatorLocked(actorID string) (*participant, error) {
	actor, ok := r.participants[actorID]
	if !ok {
		return nil, types.ErrNotFound
	}
	if !actor.identity.Role.Moderator() {
		return nil, types.ErrForbidden
	}
	return actor, nil
}

// StartRecording turns recording on. Starting while already recording is a
// no-op that still re-broadcasts the current state.
func (r *Room) StartRecording(actorID string) error {
	return r.setRecording(actorID, true)
}

// StopRecording turns recording off, with the same idempotent re-broadcast.
func (r *Room) StopRecording(actorID string) error {
	return r.setRecording(actorID, false)
}

func (r *Room) setRecording(actorID string, on bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return types.ErrRoomClosed
	}
	if _, err := r.moderatorLocked(actorID); err != nil {
		return err
	}

	r.isRecording = on
	r.touchLocked()
	r.publishLocked(types.Event{
		Type:    types.EventRecordingStateChanged,
		Payload: types.RecordingStateEvent{IsRecording: r.isRecording},
	}, "")
	r.log.Info("room %s: recording=%t by %s", r.id, on, actorID)
	return nil
}

// ForceMute is the moderation override for muting another participant.
func (r *Room) ForceMute(actorID, targetID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return types.ErrRoomClosed
	}
	if _, err := r.moderatorLocked(actorID); err != nil {
		return err
	}
	target, ok := r.participants[targetID]
	if !ok {
		return types.ErrNotFound
	}

	muted := true
	r.applyMediaPatchLocked(target, types.MediaStatePatch{AudioMuted: &muted})
	r.log.Info("room %s: %s force-muted %s", r.id, actorID, targetID)
	return nil
}

// RemoveParticipant ejects a participant through the same path as explicit
// leave. The removed client sees its own participant-left and is expected to
// drop the connection; any further commands from it fail with NotFound.
func (r *Room) RemoveParticipant(actorID, targetID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return types.ErrRoomClosed
	}
	if _, err := r.moderatorLocked(actorID); err != nil {
		return err
	}
	target, ok := r.participants[targetID]
	if !ok {
		return types.ErrNotFound
	}

	r.removeLocked(target)
	r.log.Info("room %s: %s removed %s", r.id, actorID, targetID)
	return nil
}

// EndSession moves the room to its terminal CLOSED state: session-ended is
// broadcast to everyone, all participants are force-left, no further joins
// are accepted and the room becomes eligible for immediate destruction.
func (r *Room) EndSession(actorID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return types.ErrRoomClosed
	}
	if _, err := r.moderatorLocked(actorID); err != nil {
		return err
	}

	r.closeLocked()
	r.log.Info("room %s: session ended by %s", r.id, actorID)
	return nil
}

// closeLocked is shared by EndSession and directory shutdown.
func (r *Room) closeLocked() {
	r.closed = true
	r.publishLocked(types.Event{Type: types.EventSessionEnded}, "")

	for _, p := range r.participants {
		if p.timer != nil {
			p.timer.Stop()
			p.timer = nil
		}
	}
	r.participants = make(map[string]*participant)
	r.screenSharerID = ""
	r.isRecording = false
	r.touchLocked()

	if !r.endRecorded {
		r.endRecorded = true
		r.archive.SessionEnded(r.id, time.Now())
	}
}

// forceClose ends the room without a moderator, used on process shutdown.
func (r *Room) forceClose() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.closed {
		r.closeLocked()
	}
}
