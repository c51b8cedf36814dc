package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"liveclass/internal/room"
	"liveclass/pkg/logger"
	"liveclass/pkg/types"
)

// ConnectionCounter reports live transport connections, satisfied by the
// websocket registry.
type ConnectionCounter interface {
	Count() int
}

// MessageReader serves archived chat history, satisfied by the history
// archive. Nil when no archive is configured.
type MessageReader interface {
	RoomMessages(ctx context.Context, roomID string, sinceSeq int64) ([]types.ChatMessage, error)
}

// Server is the read-only ops surface of the coordinator: health, a summary
// of active rooms and archived chat history. All session interaction happens
// over WebSocket; nothing here mutates state.
type Server struct {
	directory *room.Directory
	conns     ConnectionCounter
	messages  MessageReader
	router    *http.ServeMux
	log       *logger.Logger
	startedAt time.Time
}

func NewServer(directory *room.Directory, conns ConnectionCounter, messages MessageReader, log *logger.Logger) *Server {
	if log == nil {
		log = logger.Default
	}
	s := &Server{
		directory: directory,
		conns:     conns,
		messages:  messages,
		router:    http.NewServeMux(),
		log:       log,
		startedAt: time.Now(),
	}
	s.router.HandleFunc("/healthz", s.handleHealth)
	s.router.HandleFunc("/api/rooms", s.handleRooms)
	s.router.HandleFunc("/api/messages", s.handleMessages)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.sendError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.sendJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "ok",
		"uptime":      time.Since(s.startedAt).String(),
		"connections": s.conns.Count(),
	})
}

func (s *Server) handleRooms(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.sendError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.sendJSON(w, http.StatusOK, map[string]interface{}{
		"rooms": s.directory.Stats(),
	})
}

// handleMessages serves archived chat for a room, optionally after a given
// sequence number. The archive is write-behind, so very recent messages may
// not have landed yet.
func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.sendError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.messages == nil {
		s.sendError(w, "archive not configured", http.StatusNotFound)
		return
	}

	roomID := r.URL.Query().Get("room")
	if !types.IsValidRoomID(roomID) {
		s.sendError(w, "missing or invalid room parameter", http.StatusBadRequest)
		return
	}
	var sinceSeq int64
	if raw := r.URL.Query().Get("since"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n < 0 {
			s.sendError(w, "invalid since parameter", http.StatusBadRequest)
			return
		}
		sinceSeq = n
	}

	msgs, err := s.messages.RoomMessages(r.Context(), roomID, sinceSeq)
	if err != nil {
		s.log.Error("failed to read archived messages for %s: %v", roomID, err)
		s.sendError(w, "failed to read archive", http.StatusInternalServerError)
		return
	}
	s.sendJSON(w, http.StatusOK, map[string]interface{}{
		"roomId":   roomID,
		"messages": msgs,
	})
}

func (s *Server) sendJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.log.Error("failed to encode response: %v", err)
	}
}

func (s *Server) sendError(w http.ResponseWriter, msg string, status int) {
	s.sendJSON(w, status, map[string]string{"error": msg})
}
