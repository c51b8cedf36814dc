package websocket

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"liveclass/internal/config"
	"liveclass/internal/gateway"
	"liveclass/internal/room"
	"liveclass/pkg/logger"
	"liveclass/pkg/types"
)

var upgrader = websocket.Upgrader{
	HandshakeTimeout: 10 * time.Second,
	CheckOrigin: func(r *http.Request) bool {
		// The platform fronts this service; origin policy is enforced there.
		return true
	},
}

// Handler upgrades client connections, authenticates them and pumps their
// commands into the room layer.
type Handler struct {
	registry  *Registry
	directory *room.Directory
	gw        *gateway.Gateway
	cfg       config.WebSocketConfig
	log       *logger.Logger
}

func NewHandler(registry *Registry, directory *room.Directory, gw *gateway.Gateway, cfg config.WebSocketConfig, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.Default
	}
	return &Handler{
		registry:  registry,
		directory: directory,
		gw:        gw,
		cfg:       cfg,
		log:       log,
	}
}

// session tracks what one connection has joined. Owned by the connection's
// read goroutine only, so it needs no locking.
type session struct {
	room          *room.Room
	participantID string
}

// HandleWebSocket authenticates and upgrades a client connection. The token
// comes from the Authorization header or, for browser WebSocket clients that
// cannot set headers, the token query parameter.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	identity, err := h.registry.Authenticate(token)
	if err != nil {
		http.Error(w, "invalid or missing token", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("websocket upgrade failed for %s: %v", identity.ID, err)
		return
	}

	c := NewConnection(conn, h.cfg.SendBuffer, h.cfg.WriteTimeout)
	c.Bind(identity)
	if err := h.registry.Register(c); err != nil {
		h.log.Error("failed to register connection for %s: %v", identity.ID, err)
		_ = c.Close()
		return
	}

	h.log.Info("connection open: user=%s role=%s", identity.ID, identity.Role)
	go h.handleConnection(c, identity)
}

func bearerToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return r.URL.Query().Get("token")
}

// handleConnection runs the read pump and heartbeat for one connection. A
// transport drop is not an error: it marks the participant disconnected and
// starts the reconnection grace window.
func (h *Handler) handleConnection(c *Connection, identity types.Identity) {
	sess := &session{}
	defer func() {
		if sess.room != nil {
			sess.room.MarkDisconnected(sess.participantID, c)
		}
		h.registry.Unregister(c)
		_ = c.Close()
		h.log.Info("connection closed: user=%s", identity.ID)
	}()

	if err := c.conn.SetReadDeadline(time.Now().Add(h.cfg.ReadTimeout)); err != nil {
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(h.cfg.ReadTimeout))
	})

	// Heartbeat. WriteControl is safe concurrently with the writer goroutine.
	go func() {
		ticker := time.NewTicker(h.cfg.PingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				deadline := time.Now().Add(h.cfg.WriteTimeout)
				if err := c.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
					return
				}
			case <-c.Done():
				return
			}
		}
	}()

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				h.log.Error("read error for %s: %v", identity.ID, err)
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		var cmd types.Command
		if err := json.Unmarshal(data, &cmd); err != nil {
			h.sendError(c, "", types.ErrValidation)
			continue
		}
		h.dispatch(c, sess, identity, cmd)
	}
}

// dispatch routes one client command. All failures are typed events back to
// this connection; none of them touch other participants.
func (h *Handler) dispatch(c *Connection, sess *session, identity types.Identity, cmd types.Command) {
	if cmd.Type == types.CommandJoinRoom {
		h.handleJoin(c, sess, identity, cmd)
		return
	}

	if sess.room == nil {
		h.sendError(c, cmd.Type, types.ErrNotFound)
		return
	}
	rm, pid := sess.room, sess.participantID

	var err error
	switch cmd.Type {
	case types.CommandLeaveRoom:
		err = rm.Leave(pid)
		sess.room = nil
		sess.participantID = ""

	case types.CommandSetMediaState:
		target := cmd.Payload.ParticipantID
		if target == "" {
			target = pid
		}
		err = rm.SetMediaState(pid, target, cmd.Payload.Patch)

	case types.CommandRequestScreenShare:
		err = rm.RequestScreenShare(pid)

	case types.CommandStopScreenShare:
		err = rm.StopScreenShare(pid)

	case types.CommandChatPost:
		_, err = rm.PostChat(pid, cmd.Payload.Body)

	case types.CommandChatReplay:
		// Replayed messages flow through the connection's own queue, so
		// they arrive in seq order like live chat.
		for _, msg := range rm.ReplayChat(cmd.Payload.SinceSeq) {
			h.gw.Send(c, types.Event{Type: types.EventChatMessage, Payload: msg})
		}

	case types.CommandStartRecording:
		err = rm.StartRecording(pid)

	case types.CommandStopRecording:
		err = rm.StopRecording(pid)

	case types.CommandForceMute:
		err = rm.ForceMute(pid, cmd.Payload.ParticipantID)

	case types.CommandRemoveParticipant:
		err = rm.RemoveParticipant(pid, cmd.Payload.ParticipantID)

	case types.CommandEndSession:
		err = rm.EndSession(pid)
		if err == nil {
			sess.room = nil
			sess.participantID = ""
		}

	default:
		err = types.ErrValidation
	}

	if err != nil {
		h.sendError(c, cmd.Type, err)
	}
}

func (h *Handler) handleJoin(c *Connection, sess *session, identity types.Identity, cmd types.Command) {
	if sess.room != nil {
		h.sendError(c, cmd.Type, types.ErrValidation)
		return
	}

	rm, release, err := h.directory.GetOrCreate(cmd.Payload.RoomID)
	if err != nil {
		h.sendError(c, cmd.Type, err)
		return
	}
	defer release()

	// Join pushes the authoritative room-snapshot onto this connection.
	if _, err := rm.Join(identity, c); err != nil {
		h.sendError(c, cmd.Type, err)
		return
	}
	sess.room = rm
	sess.participantID = identity.ID
}

func (h *Handler) sendError(c *Connection, command string, err error) {
	h.gw.Send(c, types.Event{
		Type: types.EventError,
		Payload: types.ErrorEvent{
			Command: command,
			Code:    types.ErrorCode(err),
			Message: err.Error(),
		},
	})
}
