package room

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"liveclass/pkg/types"
)

func TestPostChat(t *testing.T) {
	t.Run("rejects empty and oversized bodies", func(t *testing.T) {
		r := newTestRoom(t, testOptions())
		_, err := r.Join(identity("bob", types.RoleStudent), newFakeSender("bob"))
		require.NoError(t, err)

		_, err = r.PostChat("bob", "")
		assert.ErrorIs(t, err, types.ErrValidation)
		_, err = r.PostChat("bob", "   ")
		assert.ErrorIs(t, err, types.ErrValidation)
		_, err = r.PostChat("bob", strings.Repeat("x", testOptions().ChatMaxBodyLength+1))
		assert.ErrorIs(t, err, types.ErrValidation)
	})

	t.Run("unknown sender is rejected", func(t *testing.T) {
		r := newTestRoom(t, testOptions())
		_, err := r.PostChat("ghost", "boo")
		assert.ErrorIs(t, err, types.ErrNotFound)
	})

	t.Run("disconnected sender cannot post", func(t *testing.T) {
		r := newTestRoom(t, testOptions())
		bob := newFakeSender("bob")
		_, err := r.Join(identity("bob", types.RoleStudent), bob)
		require.NoError(t, err)
		r.MarkDisconnected("bob", bob)

		_, err = r.PostChat("bob", "hello?")
		assert.ErrorIs(t, err, types.ErrNotFound)
	})

	t.Run("concurrent posters get gapless unique sequence numbers", func(t *testing.T) {
		r := newTestRoom(t, testOptions())
		const posters = 8
		const perPoster = 25

		for i := 0; i < posters; i++ {
			id := fmt.Sprintf("user%d", i)
			_, err := r.Join(identity(id, types.RoleStudent), newFakeSender(id))
			require.NoError(t, err)
		}

		var mu sync.Mutex
		var seqs []int64
		var wg sync.WaitGroup
		for i := 0; i < posters; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				for j := 0; j < perPoster; j++ {
					msg, err := r.PostChat(fmt.Sprintf("user%d", i), "m")
					if err != nil {
						t.Error(err)
						return
					}
					mu.Lock()
					seqs = append(seqs, msg.Seq)
					mu.Unlock()
				}
			}(i)
		}
		wg.Wait()

		require.Len(t, seqs, posters*perPoster)
		sort.Slice(seqs, func(a, b int) bool { return seqs[a] < seqs[b] })
		for i, seq := range seqs {
			assert.Equal(t, int64(i+1), seq, "sequence must be exactly 1..N")
		}
	})

	t.Run("observers see one strictly increasing order", func(t *testing.T) {
		r := newTestRoom(t, testOptions())
		observer := newFakeSender("observer")
		_, err := r.Join(identity("observer", types.RoleStudent), observer)
		require.NoError(t, err)
		_, err = r.Join(identity("bob", types.RoleStudent), newFakeSender("bob"))
		require.NoError(t, err)
		_, err = r.Join(identity("carol", types.RoleStudent), newFakeSender("carol"))
		require.NoError(t, err)

		var wg sync.WaitGroup
		for _, sender := range []string{"bob", "carol"} {
			wg.Add(1)
			go func(sender string) {
				defer wg.Done()
				for j := 0; j < 20; j++ {
					if _, err := r.PostChat(sender, "m"); err != nil {
						t.Error(err)
						return
					}
				}
			}(sender)
		}
		wg.Wait()

		chat := observer.eventsOfType(t, types.EventChatMessage)
		require.Len(t, chat, 40)
		last := int64(0)
		for _, ev := range chat {
			var msg types.ChatMessage
			require.NoError(t, json.Unmarshal(ev.Payload, &msg))
			assert.Greater(t, msg.Seq, last, "no member may observe seq N before N-1")
			last = msg.Seq
		}
	})

	t.Run("per-sender rate limit", func(t *testing.T) {
		opts := testOptions()
		opts.ChatRatePerMinute = 2
		r := newTestRoom(t, opts)
		_, err := r.Join(identity("bob", types.RoleStudent), newFakeSender("bob"))
		require.NoError(t, err)

		_, err = r.PostChat("bob", "one")
		require.NoError(t, err)
		_, err = r.PostChat("bob", "two")
		require.NoError(t, err)
		_, err = r.PostChat("bob", "three")
		assert.ErrorIs(t, err, types.ErrValidation)
	})
}

func TestReplayChat(t *testing.T) {
	t.Run("returns messages after the requested seq", func(t *testing.T) {
		r := newTestRoom(t, testOptions())
		_, err := r.Join(identity("bob", types.RoleStudent), newFakeSender("bob"))
		require.NoError(t, err)

		for i := 1; i <= 5; i++ {
			_, err := r.PostChat("bob", fmt.Sprintf("msg %d", i))
			require.NoError(t, err)
		}

		replay := r.ReplayChat(2)
		require.Len(t, replay, 3)
		assert.Equal(t, int64(3), replay[0].Seq)
		assert.Equal(t, int64(5), replay[2].Seq)
	})

	t.Run("empty replay when caller is current", func(t *testing.T) {
		r := newTestRoom(t, testOptions())
		_, err := r.Join(identity("bob", types.RoleStudent), newFakeSender("bob"))
		require.NoError(t, err)
		_, err = r.PostChat("bob", "only")
		require.NoError(t, err)

		assert.Empty(t, r.ReplayChat(1))
	})

	t.Run("retention cap drops the low end but keeps order", func(t *testing.T) {
		opts := testOptions()
		opts.ChatRetention = 3
		r := newTestRoom(t, opts)
		_, err := r.Join(identity("bob", types.RoleStudent), newFakeSender("bob"))
		require.NoError(t, err)

		for i := 1; i <= 5; i++ {
			_, err := r.PostChat("bob", fmt.Sprintf("msg %d", i))
			require.NoError(t, err)
		}

		replay := r.ReplayChat(0)
		require.Len(t, replay, 3)
		assert.Equal(t, int64(3), replay[0].Seq)
		assert.Equal(t, int64(4), replay[1].Seq)
		assert.Equal(t, int64(5), replay[2].Seq)
	})
}
