package room

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"liveclass/pkg/types"
)

// PostChat validates, sequences and fans out one chat message. The sequence
// number is assigned under the room lock, which is what makes it unique and
// gap-free under concurrent posters; a duplicate assignment means the
// serialization discipline is broken and panics rather than corrupting the
// order.
func (r *Room) PostChat(senderID, body string) (types.ChatMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return types.ChatMessage{}, types.ErrRoomClosed
	}
	sender, ok := r.participants[senderID]
	if !ok || sender.state != stateActive {
		return types.ChatMessage{}, types.ErrNotFound
	}

	trimmed := strings.TrimSpace(body)
	if trimmed == "" {
		return types.ChatMessage{}, fmt.Errorf("%w: empty chat body", types.ErrValidation)
	}
	if len(body) > r.opts.ChatMaxBodyLength {
		return types.ChatMessage{}, fmt.Errorf("%w: chat body exceeds %d bytes", types.ErrValidation, r.opts.ChatMaxBodyLength)
	}
	if !r.limiter.allow(senderID) {
		return types.ChatMessage{}, fmt.Errorf("%w: chat rate limit exceeded", types.ErrValidation)
	}

	seq := r.nextSeq + 1
	if n := len(r.chat); n > 0 && r.chat[n-1].Seq >= seq {
		panic(fmt.Sprintf("room %s: duplicate chat seq %d", r.id, seq))
	}
	r.nextSeq = seq

	msg := types.ChatMessage{
		Seq:        seq,
		SenderID:   senderID,
		SenderName: sender.identity.DisplayName,
		Body:       body,
		SentAt:     time.Now(),
	}
	r.chat = append(r.chat, msg)
	if len(r.chat) > r.opts.ChatRetention {
		// Drop the oldest retained messages; replay callers tolerate gaps
		// at the low end.
		r.chat = append(r.chat[:0:0], r.chat[len(r.chat)-r.opts.ChatRetention:]...)
	}
	r.touchLocked()

	r.publishLocked(types.Event{Type: types.EventChatMessage, Payload: msg}, "")
	r.archive.SaveMessage(r.id, msg)
	return msg, nil
}

// ReplayChat returns the retained messages with seq greater than sinceSeq,
// in order. Used on reconnect to close the gap a client missed while
// disconnected.
func (r *Room) ReplayChat(sinceSeq int64) []types.ChatMessage {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Retained log is sorted by seq; find the first entry past sinceSeq.
	start := len(r.chat)
	for i, m := range r.chat {
		if m.Seq > sinceSeq {
			start = i
			break
		}
	}
	out := make([]types.ChatMessage, len(r.chat)-start)
	copy(out, r.chat[start:])
	return out
}

// chatLimiter applies a fixed per-minute window per sender.
type chatLimiter struct {
	mu      sync.Mutex
	perMin  int
	windows map[string]*rateWindow
}

type rateWindow struct {
	count int
	start time.Time
}

func newChatLimiter(perMinute int) *chatLimiter {
	return &chatLimiter{
		perMin:  perMinute,
		windows: make(map[string]*rateWindow),
	}
}

func (l *chatLimiter) allow(senderID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	w, ok := l.windows[senderID]
	if !ok || now.Sub(w.start) >= time.Minute {
		l.windows[senderID] = &rateWindow{count: 1, start: now}
		return true
	}
	if w.count >= l.perMin {
		return false
	}
	w.count++
	return true
}

func (l *chatLimiter) forget(senderID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.windows, senderID)
}
