package realtime

import (
	"bytes"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"transport-connect/internal/general/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePeer struct {
	conn, user string
	capacity   int

	mu     sync.Mutex
	frames [][]byte
	closed bool
}

func newPeer(user, conn string) *fakePeer {
	return &fakePeer{user: user, conn: conn, capacity: 100}
}

func (p *fakePeer) ConnID() string { return p.conn }
func (p *fakePeer) UserID() string { return p.user }

func (p *fakePeer) Send(frame []byte) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || len(p.frames) >= p.capacity {
		return false
	}
	p.frames = append(p.frames, frame)
	return true
}

func (p *fakePeer) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
}

func (p *fakePeer) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, f := range p.frames {
		var env struct{ Type string }
		_ = json.Unmarshal(f, &env)
		out = append(out, env.Type)
	}
	return out
}

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestRegistryNewestConnectionWins(t *testing.T) {
	reg := NewRegistry(nil)
	first := newPeer("u1", "c1")
	second := newPeer("u1", "c2")

	assert.Nil(t, reg.Register(first))
	replaced := reg.Register(second)
	require.NotNil(t, replaced)
	assert.Equal(t, "c1", replaced.ConnID())

	// the old connection tearing down must not evict the new one
	_, removed := reg.Unregister("u1", "c1")
	assert.False(t, removed)
	assert.True(t, reg.IsOnline("u1"))

	p, ok := reg.Lookup("u1")
	require.True(t, ok)
	assert.Equal(t, "c2", p.ConnID())

	_, removed = reg.Unregister("u1", "c2")
	assert.True(t, removed)
	assert.False(t, reg.IsOnline("u1"))
	assert.Equal(t, 0, reg.Len())
}

func TestRegistryEvictIdle(t *testing.T) {
	clock := &manualClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	reg := NewRegistry(clock.Now)

	stale := newPeer("stale", "c1")
	fresh := newPeer("fresh", "c2")
	reg.Register(stale)
	reg.Register(fresh)

	clock.Advance(4 * time.Minute)
	assert.True(t, reg.Touch("fresh"))
	clock.Advance(2 * time.Minute)

	evicted := reg.EvictIdle(5 * time.Minute)
	require.Len(t, evicted, 1)
	assert.Equal(t, "stale", evicted[0].UserID)
	assert.True(t, stale.closed)
	assert.False(t, fresh.closed)

	online := reg.ListOnline()
	require.Len(t, online, 1)
	assert.Equal(t, "fresh", online[0].UserID)
	assert.False(t, reg.Touch("stale"))
}

func TestRoomsJoinLeave(t *testing.T) {
	rooms := NewRooms()
	room := RoomName("r1")
	assert.Equal(t, "request_r1", room)

	assert.True(t, rooms.Join(room, "a"))
	assert.False(t, rooms.Join(room, "a"))
	assert.True(t, rooms.Join(room, "b"))
	assert.True(t, rooms.Join(RoomName("r2"), "a"))
	assert.Equal(t, []string{"a", "b"}, rooms.Members(room))
	assert.Equal(t, 2, rooms.Len())

	assert.True(t, rooms.Leave(room, "b"))
	assert.False(t, rooms.Leave(room, "b"))
	assert.False(t, rooms.Leave("request_missing", "b"))

	assert.Equal(t, []string{"request_r1", "request_r2"}, rooms.LeaveAll("a"))
	assert.Empty(t, rooms.Members(room))
	assert.Empty(t, rooms.RoomsOf("a"))
	assert.Equal(t, 0, rooms.Len())
}

func TestHubToRoomSkipsSenderAndOfflineMembers(t *testing.T) {
	reg := NewRegistry(nil)
	hub := NewHub(nil, reg, NewRooms())

	a, b := newPeer("a", "ca"), newPeer("b", "cb")
	reg.Register(a)
	reg.Register(b)
	hub.Join("r1", "a")
	hub.Join("r1", "b")
	hub.Join("r1", "offline")

	assert.Equal(t, 2, hub.ToRoom("r1", "new_message", map[string]string{"x": "y"}, ""))
	assert.Equal(t, 1, hub.ToRoom("r1", "user_typing", nil, "a"))

	assert.Equal(t, []string{"new_message"}, a.types())
	assert.Equal(t, []string{"new_message", "user_typing"}, b.types())

	assert.True(t, hub.ToUser("a", "new_message_notification", nil))
	assert.False(t, hub.ToUser("offline", "new_message_notification", nil))
}

func TestHubClosesSlowConsumer(t *testing.T) {
	reg := NewRegistry(nil)
	hub := NewHub(nil, reg, NewRooms())
	slow := newPeer("s", "cs")
	slow.capacity = 1
	reg.Register(slow)

	assert.True(t, hub.ToUser("s", "one", nil))
	assert.False(t, hub.ToUser("s", "two", nil))
	assert.True(t, slow.closed)
}

func TestHubLogsUnencodablePayload(t *testing.T) {
	var buf bytes.Buffer
	reg := NewRegistry(nil)
	hub := NewHub(logger.NewWithWriter("realtime-test", &buf), reg, NewRooms())
	a := newPeer("a", "ca")
	reg.Register(a)
	hub.Join("r1", "a")

	bad := map[string]any{"ch": make(chan int)}
	assert.Equal(t, 0, hub.ToRoom("r1", "new_message", bad, ""))
	assert.False(t, hub.ToUser("a", "new_message_notification", bad))
	assert.Equal(t, 0, hub.ToAll("user_online", bad, ""))
	assert.Empty(t, a.types())

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 3)
	var entry struct {
		Level  string `json:"level"`
		Action string `json:"action"`
	}
	require.NoError(t, json.Unmarshal(lines[0], &entry))
	assert.Equal(t, "ERROR", entry.Level)
	assert.Equal(t, "frame_encode_failed", entry.Action)
	assert.Contains(t, buf.String(), "user_online")
}
