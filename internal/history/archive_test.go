package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"liveclass/pkg/logger"
	"liveclass/pkg/types"
)

func openTestArchive(t *testing.T) *Archive {
	t.Helper()
	a, err := Open(filepath.Join(t.TempDir(), "archive.db"), 5*time.Second, logger.New(false))
	require.NoError(t, err)
	return a
}

func TestArchive(t *testing.T) {
	t.Run("messages survive close and reopen", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "archive.db")
		a, err := Open(path, 5*time.Second, logger.New(false))
		require.NoError(t, err)

		a.SessionStarted("r1", time.Now())
		for i := int64(1); i <= 3; i++ {
			a.SaveMessage("r1", types.ChatMessage{
				Seq: i, SenderID: "bob", SenderName: "Bob", Body: "hello", SentAt: time.Now(),
			})
		}
		require.NoError(t, a.Close())

		reopened, err := Open(path, 5*time.Second, logger.New(false))
		require.NoError(t, err)
		defer reopened.Close()

		msgs, err := reopened.RoomMessages(context.Background(), "r1", 0)
		require.NoError(t, err)
		require.Len(t, msgs, 3)
		assert.Equal(t, int64(1), msgs[0].Seq)
		assert.Equal(t, int64(3), msgs[2].Seq)
	})

	t.Run("reads are filtered by seq and scoped to the room", func(t *testing.T) {
		a := openTestArchive(t)
		defer a.Close()

		for i := int64(1); i <= 4; i++ {
			a.SaveMessage("r1", types.ChatMessage{Seq: i, SenderID: "bob", SenderName: "Bob", Body: "m", SentAt: time.Now()})
		}
		a.SaveMessage("r2", types.ChatMessage{Seq: 1, SenderID: "carol", SenderName: "Carol", Body: "m", SentAt: time.Now()})

		// Writes are asynchronous; give the writer a moment.
		require.Eventually(t, func() bool {
			msgs, err := a.RoomMessages(context.Background(), "r1", 2)
			return err == nil && len(msgs) == 2
		}, 2*time.Second, 10*time.Millisecond)

		msgs, err := a.RoomMessages(context.Background(), "r1", 2)
		require.NoError(t, err)
		assert.Equal(t, int64(3), msgs[0].Seq)
		assert.Equal(t, int64(4), msgs[1].Seq)
	})

	t.Run("duplicate sequence writes are ignored", func(t *testing.T) {
		a := openTestArchive(t)
		defer a.Close()

		msg := types.ChatMessage{Seq: 1, SenderID: "bob", SenderName: "Bob", Body: "m", SentAt: time.Now()}
		a.SaveMessage("r1", msg)
		a.SaveMessage("r1", msg)

		require.Eventually(t, func() bool {
			msgs, err := a.RoomMessages(context.Background(), "r1", 0)
			return err == nil && len(msgs) == 1
		}, 2*time.Second, 10*time.Millisecond)
	})

	t.Run("writes after close are dropped silently", func(t *testing.T) {
		a := openTestArchive(t)
		require.NoError(t, a.Close())
		a.SaveMessage("r1", types.ChatMessage{Seq: 1, SenderID: "bob", SenderName: "Bob", Body: "m", SentAt: time.Now()})
		require.NoError(t, a.Close(), "double close is safe")
	})
}
