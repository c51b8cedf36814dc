package gateway

import (
	"encoding/json"

	"liveclass/pkg/logger"
	"liveclass/pkg/types"
)

// Sender is one live connection's outbound side. Enqueue must never block:
// implementations put the frame on a buffered queue and report a full queue
// or closed connection as an error so one stalled peer cannot delay anyone
// else.
type Sender interface {
	ID() string
	Enqueue(frame []byte) error
}

// Gateway fans room events out to live connections. Delivery is best-effort
// and at-most-once per connection; participants in the reconnection grace
// window hold no Sender and are skipped, they catch up from the snapshot on
// reconnect.
type Gateway struct {
	log *logger.Logger
}

func New(log *logger.Logger) *Gateway {
	if log == nil {
		log = logger.Default
	}
	return &Gateway{log: log}
}

// Publish encodes the event once and enqueues the frame on every target.
// Callers may invoke it while holding a room lock: enqueueing is purely an
// in-memory handoff, the network write happens on each connection's own
// writer goroutine.
func (g *Gateway) Publish(roomID string, event types.Event, targets []Sender) {
	if len(targets) == 0 {
		return
	}

	frame, err := json.Marshal(event)
	if err != nil {
		g.log.Error("room %s: failed to encode %s event: %v", roomID, event.Type, err)
		return
	}

	for _, t := range targets {
		if t == nil {
			continue
		}
		if err := t.Enqueue(frame); err != nil {
			// Slow or dead consumer. The frame is dropped for this
			// connection only; its read pump will notice the closed
			// transport and run the disconnect path.
			g.log.Debug("room %s: dropped %s event for %s: %v", roomID, event.Type, t.ID(), err)
		}
	}
}

// Send delivers an event to a single connection, typically a command
// response or a typed error.
func (g *Gateway) Send(target Sender, event types.Event) {
	if target == nil {
		return
	}
	frame, err := json.Marshal(event)
	if err != nil {
		g.log.Error("failed to encode %s event: %v", event.Type, err)
		return
	}
	if err := target.Enqueue(frame); err != nil {
		g.log.Debug("dropped %s event for %s: %v", event.Type, target.ID(), err)
	}
}
