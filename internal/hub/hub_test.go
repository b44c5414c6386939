package hub

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sudo-init-do/realtime-stack/internal/config"
	"github.com/sudo-init-do/realtime-stack/internal/domain"
)

func testConfig() config.WebSocketConfig {
	return config.WebSocketConfig{SendBuffer: 16}
}

func newTestClient(h *Hub, id, identity string) *Client {
	c := NewClient(id, identity, h, nil, testConfig())
	h.Register(c)
	return c
}

func drain(c *Client) [][]byte {
	var out [][]byte
	for {
		select {
		case msg := <-c.Send:
			out = append(out, msg)
		default:
			return out
		}
	}
}

func TestBroadcastRoomIsolation(t *testing.T) {
	h := NewHub(testConfig())
	a := newTestClient(h, "a", "alice")
	b := newTestClient(h, "b", "bob")
	c := newTestClient(h, "c", "carol")

	h.Join(a, "r1")
	h.Join(b, "r1")
	h.Join(c, "r2")

	require.NoError(t, h.Broadcast("r1", &domain.ChatBroadcast{Type: domain.EnvelopeChat, RoomID: "r1", From: "alice", Ts: 1}))

	require.Len(t, drain(a), 1)
	require.Len(t, drain(b), 1)
	require.Empty(t, drain(c))
}

func TestBroadcastEchoesToSender(t *testing.T) {
	h := NewHub(testConfig())
	a := newTestClient(h, "a", "alice")
	h.Join(a, "r1")

	require.NoError(t, h.Broadcast("r1", &domain.ChatBroadcast{Type: domain.EnvelopeChat, RoomID: "r1", From: "alice", Ts: 1}))

	msgs := drain(a)
	require.Len(t, msgs, 1)

	var out domain.ChatBroadcast
	require.NoError(t, json.Unmarshal(msgs[0], &out))
	require.Equal(t, "alice", out.From)
}

func TestFanOutCompleteness(t *testing.T) {
	h := NewHub(testConfig())
	clients := make([]*Client, 10)
	for i := range clients {
		clients[i] = newTestClient(h, fmt.Sprintf("c%d", i), fmt.Sprintf("user%d", i))
		h.Join(clients[i], "r1")
	}

	require.NoError(t, h.Broadcast("r1", &domain.ChatBroadcast{Type: domain.EnvelopeChat, RoomID: "r1", From: "user0", Ts: 1}))

	for i, c := range clients {
		require.Len(t, drain(c), 1, "client %d", i)
	}
}

func TestJoinIsIdempotent(t *testing.T) {
	h := NewHub(testConfig())
	a := newTestClient(h, "a", "alice")

	h.Join(a, "r1")
	h.Join(a, "r1")
	h.Join(a, "r1")

	require.Equal(t, 1, h.RoomCount("r1"))

	require.NoError(t, h.Broadcast("r1", &domain.ChatBroadcast{Type: domain.EnvelopeChat, RoomID: "r1", Ts: 1}))
	require.Len(t, drain(a), 1)
}

func TestLeaveRemovesMembership(t *testing.T) {
	h := NewHub(testConfig())
	a := newTestClient(h, "a", "alice")
	b := newTestClient(h, "b", "bob")
	h.Join(a, "r1")
	h.Join(b, "r1")

	h.Leave(a, "r1")

	require.NoError(t, h.Broadcast("r1", &domain.ChatBroadcast{Type: domain.EnvelopeChat, RoomID: "r1", Ts: 1}))
	require.Empty(t, drain(a))
	require.Len(t, drain(b), 1)

	// Leaving again is a no-op.
	h.Leave(a, "r1")
	require.Equal(t, 1, h.RoomCount("r1"))
}

func TestUnregisterLeavesAllRooms(t *testing.T) {
	h := NewHub(testConfig())
	a := newTestClient(h, "a", "alice")
	b := newTestClient(h, "b", "bob")
	h.Join(a, "r1")
	h.Join(a, "r2")
	h.Join(b, "r1")

	h.Unregister(a)

	require.Equal(t, 1, h.RoomCount("r1"))
	require.Equal(t, 0, h.RoomCount("r2"))
	require.True(t, a.Closed())

	// Remaining members still receive broadcasts.
	require.NoError(t, h.Broadcast("r1", &domain.ChatBroadcast{Type: domain.EnvelopeChat, RoomID: "r1", Ts: 1}))
	require.Len(t, drain(b), 1)
	require.Empty(t, drain(a))
}

func TestJoinAfterCloseIsRejected(t *testing.T) {
	h := NewHub(testConfig())
	a := newTestClient(h, "a", "alice")
	h.Unregister(a)

	h.Join(a, "r1")

	require.Equal(t, 0, h.RoomCount("r1"))
}

func TestMembersSnapshot(t *testing.T) {
	h := NewHub(testConfig())
	a := newTestClient(h, "a", "alice")
	b := newTestClient(h, "b", "bob")
	h.Join(a, "r1")
	h.Join(b, "r1")

	members := h.Members("r1")
	require.Len(t, members, 2)

	// Mutating membership afterwards does not alter the snapshot.
	h.Leave(b, "r1")
	require.Len(t, members, 2)
	require.Len(t, h.Members("r1"), 1)
}

func TestBroadcastSkipsFullBuffer(t *testing.T) {
	cfg := config.WebSocketConfig{SendBuffer: 1}
	h := NewHub(cfg)
	a := NewClient("a", "alice", h, nil, cfg)
	h.Register(a)
	h.Join(a, "r1")

	require.NoError(t, h.Broadcast("r1", &domain.ChatBroadcast{Type: domain.EnvelopeChat, RoomID: "r1", Ts: 1}))
	// Buffer now full; the next delivery is skipped, not blocked on.
	require.NoError(t, h.Broadcast("r1", &domain.ChatBroadcast{Type: domain.EnvelopeChat, RoomID: "r1", Ts: 2}))

	require.Len(t, drain(a), 1)
}

func TestConcurrentJoinLeaveBroadcast(t *testing.T) {
	h := NewHub(testConfig())

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c := newTestClient(h, fmt.Sprintf("c%d", i), fmt.Sprintf("user%d", i))
			h.Join(c, "r1")
			h.Broadcast("r1", &domain.ChatBroadcast{Type: domain.EnvelopeChat, RoomID: "r1", Ts: int64(i)})
			if i%2 == 0 {
				h.Leave(c, "r1")
			} else {
				h.Unregister(c)
			}
		}(i)
	}
	wg.Wait()

	require.Equal(t, 0, h.RoomCount("r1"))
}
