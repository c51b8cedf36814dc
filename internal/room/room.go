package room

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"liveclass/internal/gateway"
	"liveclass/pkg/logger"
	"liveclass/pkg/types"
)

// Archiver is the optional persistence collaborator. Implementations must
// not block: rooms call these while holding their lock.
type Archiver interface {
	SessionStarted(roomID string, at time.Time)
	SessionEnded(roomID string, at time.Time)
	SaveMessage(roomID string, msg types.ChatMessage)
}

// NopArchiver discards everything. Used when no archive is configured.
type NopArchiver struct{}

func (NopArchiver) SessionStarted(string, time.Time)      {}
func (NopArchiver) SessionEnded(string, time.Time)        {}
func (NopArchiver) SaveMessage(string, types.ChatMessage) {}

// Options carries the per-room tunables handed down by the directory.
type Options struct {
	ReconnectGrace    time.Duration
	MaxParticipants   int
	ChatMaxBodyLength int
	ChatRetention     int
	ChatRatePerMinute int
}

type participantState int

const (
	stateActive participantState = iota
	stateDisconnected
	stateEvicted
)

// participant is the room-owned record for one identity. The entry survives
// transport drops for the reconnect grace window; only explicit leave,
// moderation removal or grace expiry removes it.
type participant struct {
	identity types.Identity
	media    types.MediaState
	state    participantState
	sender   gateway.Sender // nil while disconnected

	// evictGen invalidates pending eviction timers. A timer fired for an
	// older generation is a reconnect that beat it and must do nothing.
	evictGen uint64
	timer    *time.Timer
}

// Room is the isolated state container for one live class session. Every
// mutating operation takes the room mutex, which is held only for the
// in-memory transition; broadcasts are non-blocking enqueues onto each
// connection's outbound queue, so no network peer is ever waited on under
// the lock. Separate rooms share nothing.
type Room struct {
	id      string
	opts    Options
	gw      *gateway.Gateway
	archive Archiver
	log     *logger.Logger

	mu             sync.Mutex
	participants   map[string]*participant
	closed         bool
	isRecording    bool
	screenSharerID string

	nextSeq int64
	chat    []types.ChatMessage
	limiter *chatLimiter

	createdAt      time.Time
	lastActivityAt time.Time
	endRecorded    bool

	// joinRefs counts joins in flight between directory lookup and room
	// admission so the sweep never destroys a room under a racing join.
	joinRefs int32
}

func newRoom(id string, opts Options, gw *gateway.Gateway, archive Archiver, log *logger.Logger) *Room {
	now := time.Now()
	r := &Room{
		id:             id,
		opts:           opts,
		gw:             gw,
		archive:        archive,
		log:            log,
		participants:   make(map[string]*participant),
		limiter:        newChatLimiter(opts.ChatRatePerMinute),
		createdAt:      now,
		lastActivityAt: now,
	}
	archive.SessionStarted(id, now)
	return r
}

// ID returns the room id (the class session id).
func (r *Room) ID() string { return r.id }

// Join admits an identity, or rebinds it when the participant already exists
// (reconnect within the grace window, or a replacement tab). The returned
// snapshot is authoritative: the client renders it wholesale instead of
// racing individual events.
func (r *Room) Join(identity types.Identity, sender gateway.Sender) (types.RoomSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return types.RoomSnapshot{}, types.ErrRoomClosed
	}

	if p, ok := r.participants[identity.ID]; ok {
		return r.rebindLocked(p, sender), nil
	}

	if len(r.participants) >= r.opts.MaxParticipants {
		return types.RoomSnapshot{}, fmt.Errorf("%w: room is full", types.ErrValidation)
	}

	p := &participant{
		identity: identity,
		media:    types.MediaState{AudioMuted: true, VideoOff: true},
		state:    stateActive,
		sender:   sender,
	}
	r.participants[identity.ID] = p
	r.touchLocked()

	r.publishLocked(types.Event{
		Type:    types.EventParticipantJoined,
		Payload: types.ParticipantEvent{Participant: r.infoLocked(p)},
	}, identity.ID)

	r.log.Info("room %s: %s joined as %s", r.id, identity.ID, identity.Role)

	// The snapshot goes onto the joiner's queue under the room lock, so no
	// later broadcast can be observed ahead of it.
	snap := r.snapshotLocked()
	r.gw.Send(sender, types.Event{Type: types.EventRoomSnapshot, Payload: snap})
	return snap, nil
}

// rebindLocked attaches a new connection to an existing participant. Media
// flags are preserved: reconnecting restores state, it does not reset it.
func (r *Room) rebindLocked(p *participant, sender gateway.Sender) types.RoomSnapshot {
	p.evictGen++
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	wasDisconnected := p.state == stateDisconnected
	p.state = stateActive
	p.sender = sender
	r.touchLocked()

	if wasDisconnected {
		connected := true
		r.publishLocked(types.Event{
			Type: types.EventParticipantUpdated,
			Payload: types.ParticipantUpdatedEvent{
				ParticipantID: p.identity.ID,
				Connected:     &connected,
			},
		}, p.identity.ID)
		r.log.Info("room %s: %s reconnected", r.id, p.identity.ID)
	}

	snap := r.snapshotLocked()
	r.gw.Send(sender, types.Event{Type: types.EventRoomSnapshot, Payload: snap})
	return snap
}

// Leave removes a participant immediately and broadcasts participant-left.
func (r *Room) Leave(participantID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.participants[participantID]
	if !ok {
		return types.ErrNotFound
	}
	r.removeLocked(p)
	return nil
}

// MarkDisconnected handles a transport drop. The participant keeps its slot
// for the grace window so transient network loss does not flicker the UI;
// sender guards against a stale connection clobbering a rebind that already
// happened.
func (r *Room) MarkDisconnected(participantID string, sender gateway.Sender) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.participants[participantID]
	if !ok || p.state != stateActive {
		return
	}
	if sender != nil && p.sender != sender {
		return // a newer connection owns this participant now
	}

	p.sender = nil
	p.state = stateDisconnected
	p.evictGen++
	gen := p.evictGen
	p.timer = time.AfterFunc(r.opts.ReconnectGrace, func() {
		r.evict(participantID, gen)
	})
	r.touchLocked()

	r.publishLocked(types.Event{
		Type:    types.EventParticipantDisconnected,
		Payload: types.ParticipantEvent{Participant: r.infoLocked(p)},
	}, participantID)
	r.log.Info("room %s: %s disconnected, grace window %s", r.id, participantID, r.opts.ReconnectGrace)
}

// evict runs when the grace window expires without a reconnect.
func (r *Room) evict(participantID string, gen uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.participants[participantID]
	if !ok || p.state != stateDisconnected || p.evictGen != gen {
		return // reconnected, already gone, or a newer timer owns the slot
	}
	p.state = stateEvicted
	r.removeLocked(p)
	r.log.Info("room %s: %s evicted after grace window", r.id, participantID)
}

// removeLocked deletes the participant, releases any screen-share slot it
// held and broadcasts participant-left exactly once. The departing client,
// if still connected, gets the event too so a moderation removal is visible
// to the removed tab.
func (r *Room) removeLocked(p *participant) {
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	sender := p.sender
	delete(r.participants, p.identity.ID)
	r.limiter.forget(p.identity.ID)
	r.touchLocked()

	if r.screenSharerID == p.identity.ID {
		r.screenSharerID = ""
		r.publishLocked(types.Event{
			Type:    types.EventScreenShareChanged,
			Payload: types.ScreenShareEvent{ScreenSharerID: nil},
		}, "")
	}

	left := types.Event{
		Type:    types.EventParticipantLeft,
		Payload: types.ParticipantEvent{Participant: r.infoLocked(p)},
	}
	r.publishLocked(left, "")
	if sender != nil {
		r.gw.Send(sender, left)
	}
}

// SetMediaState applies a partial media update, last-write-wins per field.
// A participant may patch itself; TEACHER/ADMIN may patch anyone. Each
// applied field is broadcast individually in a fixed order.
func (r *Room) SetMediaState(actorID, targetID string, patch types.MediaStatePatch) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return types.ErrRoomClosed
	}
	if patch.Empty() {
		return fmt.Errorf("%w: empty media patch", types.ErrValidation)
	}

	actor, ok := r.participants[actorID]
	if !ok {
		return types.ErrNotFound
	}
	if actorID != targetID && !actor.identity.Role.Moderator() {
		return types.ErrForbidden
	}
	target, ok := r.participants[targetID]
	if !ok {
		return types.ErrNotFound
	}

	r.applyMediaPatchLocked(target, patch)
	return nil
}

func (r *Room) applyMediaPatchLocked(target *participant, patch types.MediaStatePatch) {
	publish := func(field types.MediaStatePatch) {
		r.publishLocked(types.Event{
			Type: types.EventParticipantUpdated,
			Payload: types.ParticipantUpdatedEvent{
				ParticipantID: target.identity.ID,
				Patch:         field,
			},
		}, "")
	}

	if patch.AudioMuted != nil {
		target.media.AudioMuted = *patch.AudioMuted
		publish(types.MediaStatePatch{AudioMuted: patch.AudioMuted})
	}
	if patch.VideoOff != nil {
		target.media.VideoOff = *patch.VideoOff
		publish(types.MediaStatePatch{VideoOff: patch.VideoOff})
	}
	if patch.HandRaised != nil {
		target.media.HandRaised = *patch.HandRaised
		publish(types.MediaStatePatch{HandRaised: patch.HandRaised})
	}
	r.touchLocked()
}

// RequestScreenShare claims the room's single screen-share slot.
func (r *Room) RequestScreenShare(participantID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return types.ErrRoomClosed
	}
	p, ok := r.participants[participantID]
	if !ok || p.state != stateActive {
		return types.ErrNotFound
	}
	if r.screenSharerID != "" && r.screenSharerID != participantID {
		return types.ErrAlreadySharing
	}
	if r.screenSharerID == participantID {
		return nil // already the holder
	}

	r.screenSharerID = participantID
	r.touchLocked()
	sharer := participantID
	r.publishLocked(types.Event{
		Type:    types.EventScreenShareChanged,
		Payload: types.ScreenShareEvent{ScreenSharerID: &sharer},
	}, "")
	return nil
}

// StopScreenShare releases the slot. Only the current holder or a moderator
// may release it; releasing an empty slot is a no-op.
func (r *Room) StopScreenShare(actorID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return types.ErrRoomClosed
	}
	actor, ok := r.participants[actorID]
	if !ok {
		return types.ErrNotFound
	}
	if r.screenSharerID == "" {
		return nil
	}
	if r.screenSharerID != actorID && !actor.identity.Role.Moderator() {
		return types.ErrForbidden
	}

	r.screenSharerID = ""
	r.touchLocked()
	r.publishLocked(types.Event{
		Type:    types.EventScreenShareChanged,
		Payload: types.ScreenShareEvent{ScreenSharerID: nil},
	}, "")
	return nil
}

// Snapshot returns the current authoritative room state.
func (r *Room) Snapshot() types.RoomSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

// Stats returns the per-room summary for the ops API.
func (r *Room) Stats() types.RoomStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	connected := 0
	for _, p := range r.participants {
		if p.state == stateActive {
			connected++
		}
	}
	return types.RoomStats{
		RoomID:         r.id,
		Participants:   len(r.participants),
		Connected:      connected,
		IsRecording:    r.isRecording,
		CreatedAt:      r.createdAt,
		LastActivityAt: r.lastActivityAt,
	}
}

func (r *Room) snapshotLocked() types.RoomSnapshot {
	snap := types.RoomSnapshot{
		RoomID:       r.id,
		Participants: make([]types.ParticipantInfo, 0, len(r.participants)),
		IsRecording:  r.isRecording,
		ChatSeq:      r.nextSeq,
	}
	if r.screenSharerID != "" {
		sharer := r.screenSharerID
		snap.ScreenSharerID = &sharer
	}
	for _, p := range r.participants {
		snap.Participants = append(snap.Participants, r.infoLocked(p))
	}
	return snap
}

func (r *Room) infoLocked(p *participant) types.ParticipantInfo {
	return types.ParticipantInfo{
		ID:          p.identity.ID,
		DisplayName: p.identity.DisplayName,
		Role:        p.identity.Role,
		MediaState:  p.media,
		Connected:   p.state == stateActive,
	}
}

// publishLocked fans an event out to every live connection except skipID.
// Safe under the room lock: gateway enqueues are in-memory handoffs only.
func (r *Room) publishLocked(event types.Event, skipID string) {
	targets := make([]gateway.Sender, 0, len(r.participants))
	for id, p := range r.participants {
		if id == skipID || p.sender == nil {
			continue
		}
		targets = append(targets, p.sender)
	}
	r.gw.Publish(r.id, event, targets)
}

func (r *Room) touchLocked() {
	r.lastActivityAt = time.Now()
}

// beginJoin / endJoin bracket the window between directory lookup and
// admission so the idle sweep cannot destroy the room mid-join.
func (r *Room) beginJoin() { atomic.AddInt32(&r.joinRefs, 1) }
func (r *Room) endJoin()   { atomic.AddInt32(&r.joinRefs, -1) }

// destroyable reports whether the sweep may reclaim this room.
func (r *Room) destroyable(idleTimeout time.Duration) bool {
	if atomic.LoadInt32(&r.joinRefs) != 0 {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return true
	}
	return len(r.participants) == 0 && time.Since(r.lastActivityAt) > idleTimeout
}

// destroy tears the room down. Called only by the directory once the room
// is out of the map.
func (r *Room) destroy() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.participants {
		if p.timer != nil {
			p.timer.Stop()
		}
	}
	r.participants = make(map[string]*participant)
	if !r.endRecorded {
		r.endRecorded = true
		r.archive.SessionEnded(r.id, time.Now())
	}
}
