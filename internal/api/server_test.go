package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"liveclass/internal/gateway"
	"liveclass/internal/room"
	"liveclass/pkg/logger"
	"liveclass/pkg/types"
)

type fixedCounter int

func (c fixedCounter) Count() int { return int(c) }

type fixedMessages []types.ChatMessage

func (m fixedMessages) RoomMessages(_ context.Context, _ string, sinceSeq int64) ([]types.ChatMessage, error) {
	var out []types.ChatMessage
	for _, msg := range m {
		if msg.Seq > sinceSeq {
			out = append(out, msg)
		}
	}
	return out, nil
}

type nopSender struct{ id string }

func (s nopSender) ID() string           { return s.id }
func (s nopSender) Enqueue([]byte) error { return nil }

func newTestDirectory(t *testing.T) *room.Directory {
	t.Helper()
	log := logger.New(false)
	d := room.NewDirectory(room.DirectoryOptions{
		Room: room.Options{
			ReconnectGrace:    time.Minute,
			MaxParticipants:   50,
			ChatMaxBodyLength: 500,
			ChatRetention:     100,
			ChatRatePerMinute: 1000,
		},
		IdleTimeout:   time.Hour,
		SweepInterval: time.Hour,
	}, gateway.New(log), room.NopArchiver{}, log)
	t.Cleanup(d.Close)
	return d
}

func TestServer(t *testing.T) {
	directory := newTestDirectory(t)
	archived := fixedMessages{
		{Seq: 1, SenderID: "alice", SenderName: "Alice", Body: "hello", SentAt: time.Now()},
		{Seq: 2, SenderID: "bob", SenderName: "Bob", Body: "hi", SentAt: time.Now()},
	}
	server := httptest.NewServer(NewServer(directory, fixedCounter(3), archived, logger.New(false)))
	defer server.Close()

	t.Run("healthz reports status and connections", func(t *testing.T) {
		resp, err := http.Get(server.URL + "/healthz")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

		var body struct {
			Status      string `json:"status"`
			Connections int    `json:"connections"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, "ok", body.Status)
		assert.Equal(t, 3, body.Connections)
	})

	t.Run("rooms lists active rooms", func(t *testing.T) {
		r, release, err := directory.GetOrCreate("math-101")
		require.NoError(t, err)
		_, err = r.Join(types.Identity{ID: "alice", DisplayName: "Alice", Role: types.RoleTeacher}, nopSender{id: "alice"})
		release()
		require.NoError(t, err)

		resp, err := http.Get(server.URL + "/api/rooms")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var body struct {
			Rooms []types.RoomStats `json:"rooms"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		require.Len(t, body.Rooms, 1)
		assert.Equal(t, "math-101", body.Rooms[0].RoomID)
		assert.Equal(t, 1, body.Rooms[0].Participants)
	})

	t.Run("messages serves archived chat after a sequence number", func(t *testing.T) {
		resp, err := http.Get(server.URL + "/api/messages?room=math-101&since=1")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var body struct {
			RoomID   string              `json:"roomId"`
			Messages []types.ChatMessage `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, "math-101", body.RoomID)
		require.Len(t, body.Messages, 1)
		assert.Equal(t, int64(2), body.Messages[0].Seq)
	})

	t.Run("messages requires a valid room parameter", func(t *testing.T) {
		resp, err := http.Get(server.URL + "/api/messages")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("messages without an archive is not found", func(t *testing.T) {
		bare := httptest.NewServer(NewServer(directory, fixedCounter(0), nil, logger.New(false)))
		defer bare.Close()
		resp, err := http.Get(bare.URL + "/api/messages?room=math-101")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("rejects non-GET methods", func(t *testing.T) {
		resp, err := http.Post(server.URL+"/healthz", "application/json", nil)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	})
}
