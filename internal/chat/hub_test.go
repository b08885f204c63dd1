package chat

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeConn records every delivered event and can be flipped to failing to
// simulate a dead connection.
type fakeConn struct {
	mu     sync.Mutex
	events []any
	fail   bool
}

func (c *fakeConn) Send(event any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errors.New("connection gone")
	}
	c.events = append(c.events, event)
	return nil
}

func (c *fakeConn) setFail(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fail = v
}

func (c *fakeConn) received() []any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]any(nil), c.events...)
}

func (c *fakeConn) messagesOnly() []MessageEvent {
	var out []MessageEvent
	for _, e := range c.received() {
		if m, ok := e.(MessageEvent); ok {
			out = append(out, m)
		}
	}
	return out
}

func (c *fakeConn) lastCount() (int, bool) {
	evs := c.received()
	for i := len(evs) - 1; i >= 0; i-- {
		if ce, ok := evs[i].(CountEvent); ok {
			return ce.Count, true
		}
	}
	return 0, false
}

// fakePresence is an in-memory stand-in for the broadcast registry.
type fakePresence struct {
	mu        sync.Mutex
	listeners map[string]map[string]struct{}
	coHosts   map[string]bool // sessionID:userID -> active
}

func newFakePresence() *fakePresence {
	return &fakePresence{
		listeners: make(map[string]map[string]struct{}),
		coHosts:   make(map[string]bool),
	}
}

func (p *fakePresence) ListenerJoined(sessionID, listenerID string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	m, ok := p.listeners[sessionID]
	if !ok {
		m = make(map[string]struct{})
		p.listeners[sessionID] = m
	}
	m[listenerID] = struct{}{}
	return len(m)
}

func (p *fakePresence) ListenerLeft(sessionID, listenerID string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.listeners[sessionID], listenerID)
	return len(p.listeners[sessionID])
}

func (p *fakePresence) ListenerCount(sessionID string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.listeners[sessionID])
}

func (p *fakePresence) MarkCoHostPresence(sessionID, userID string, active bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.coHosts[sessionID+":"+userID] = active
}

func newTestHub() (*Hub, *fakePresence) {
	presence := newFakePresence()
	return NewHub(presence, nil, nil, nil), presence
}

func TestJoinDeliversCountNotHistoryWhenEmpty(t *testing.T) {
	hub, _ := newTestHub()
	conn := &fakeConn{}

	hub.Join(conn, "b1", "u1", "Ana", false)

	evs := conn.received()
	require.Len(t, evs, 1)
	ce, ok := evs[0].(CountEvent)
	require.True(t, ok)
	assert.Equal(t, EventUserCount, ce.Type)
	assert.Equal(t, 1, ce.Count)
	assert.Equal(t, 1, hub.RoomSize("b1"))
}

func TestHistorySnapshotOnJoin(t *testing.T) {
	hub, _ := newTestHub()
	first := &fakeConn{}
	hub.Join(first, "b1", "u1", "Ana", false)
	require.NoError(t, hub.SendMessage(first, "b1", "u1", "hello"))
	require.NoError(t, hub.SendMessage(first, "b1", "u1", "world"))

	late := &fakeConn{}
	hub.Join(late, "b1", "u2", "Bo", false)

	evs := late.received()
	require.NotEmpty(t, evs)
	he, ok := evs[0].(HistoryEvent)
	require.True(t, ok, "history must arrive before anything else")
	assert.Equal(t, EventHistory, he.Type)
	require.Len(t, he.Messages, 2)
	assert.Equal(t, "hello", he.Messages[0].Message)
	assert.Equal(t, "world", he.Messages[1].Message)
}

func TestHistoryEvictsOldestAtLimit(t *testing.T) {
	hub, _ := newTestHub()
	conn := &fakeConn{}
	hub.Join(conn, "b1", "u1", "Ana", false)

	for i := 1; i <= HistoryLimit+1; i++ {
		require.NoError(t, hub.SendMessage(conn, "b1", "u1", fmt.Sprintf("msg-%d", i)))
	}

	late := &fakeConn{}
	hub.Join(late, "b1", "u2", "Bo", false)
	he, ok := late.received()[0].(HistoryEvent)
	require.True(t, ok)
	require.Len(t, he.Messages, HistoryLimit)
	assert.Equal(t, "msg-2", he.Messages[0].Message)
	assert.Equal(t, fmt.Sprintf("msg-%d", HistoryLimit+1), he.Messages[HistoryLimit-1].Message)
}

func TestSendMessageIdentityMismatch(t *testing.T) {
	hub, _ := newTestHub()
	conn := &fakeConn{}
	hub.Join(conn, "b1", "u1", "Ana", false)

	err := hub.SendMessage(conn, "b1", "someone-else", "spoofed")
	assert.ErrorIs(t, err, ErrIdentityMismatch)

	// nothing was fanned out
	assert.Empty(t, conn.messagesOnly())
}

func TestSendMessageFansOutToRoom(t *testing.T) {
	hub, _ := newTestHub()
	a := &fakeConn{}
	b := &fakeConn{}
	hub.Join(a, "b1", "u1", "Ana", true)
	hub.Join(b, "b1", "u2", "Bo", false)

	require.NoError(t, hub.SendMessage(a, "b1", "u1", "welcome"))

	for _, conn := range []*fakeConn{a, b} {
		msgs := conn.messagesOnly()
		require.Len(t, msgs, 1)
		assert.Equal(t, "welcome", msgs[0].Message)
		assert.Equal(t, "Ana", msgs[0].UserName)
		assert.True(t, msgs[0].IsHost)
		assert.NotEmpty(t, msgs[0].ID)
	}
}

func TestHostJoinDoesNotCountAsListener(t *testing.T) {
	hub, presence := newTestHub()
	host := &fakeConn{}
	listener := &fakeConn{}

	hub.Join(host, "b1", "h1", "Host", true)
	count, ok := host.lastCount()
	require.True(t, ok)
	assert.Equal(t, 0, count)

	hub.Join(listener, "b1", "u1", "Ana", false)
	count, ok = host.lastCount()
	require.True(t, ok)
	assert.Equal(t, 1, count)
	assert.Equal(t, 1, presence.ListenerCount("b1"))
}

func TestLeaveBroadcastsUpdatedCount(t *testing.T) {
	hub, presence := newTestHub()
	a := &fakeConn{}
	b := &fakeConn{}
	hub.Join(a, "b1", "u1", "Ana", false)
	hub.Join(b, "b1", "u2", "Bo", false)

	hub.Leave(b, "b1")

	count, ok := a.lastCount()
	require.True(t, ok)
	assert.Equal(t, 1, count)
	assert.Equal(t, 1, hub.RoomSize("b1"))
	assert.Equal(t, 1, presence.ListenerCount("b1"))

	// leaving twice is a no-op
	hub.Leave(b, "b1")
	assert.Equal(t, 1, hub.RoomSize("b1"))
}

func TestRoomDestroyedWhenEmpty(t *testing.T) {
	hub, _ := newTestHub()
	conn := &fakeConn{}
	hub.Join(conn, "b1", "u1", "Ana", false)
	require.NoError(t, hub.SendMessage(conn, "b1", "u1", "only message"))

	hub.ConnectionClosed(conn)
	assert.Equal(t, 0, hub.RoomSize("b1"))

	// a fresh join sees no history: the room state died with the room
	fresh := &fakeConn{}
	hub.Join(fresh, "b1", "u2", "Bo", false)
	evs := fresh.received()
	require.Len(t, evs, 1)
	_, isCount := evs[0].(CountEvent)
	assert.True(t, isCount)
}

func TestDeadConnectionPrunedOnFanOut(t *testing.T) {
	hub, presence := newTestHub()
	alive := &fakeConn{}
	dead := &fakeConn{}
	hub.Join(alive, "b1", "u1", "Ana", false)
	hub.Join(dead, "b1", "u2", "Bo", false)

	dead.setFail(true)
	require.NoError(t, hub.SendMessage(alive, "b1", "u1", "still here"))

	assert.Equal(t, 1, hub.RoomSize("b1"))
	assert.Equal(t, 1, presence.ListenerCount("b1"))

	// the survivors got the message and exactly one follow-up count frame
	count, ok := alive.lastCount()
	require.True(t, ok)
	assert.Equal(t, 1, count)

	var countFramesAfterMessage int
	seenMessage := false
	for _, e := range alive.received() {
		if _, isMsg := e.(MessageEvent); isMsg {
			seenMessage = true
			continue
		}
		if _, isCount := e.(CountEvent); isCount && seenMessage {
			countFramesAfterMessage++
		}
	}
	assert.Equal(t, 1, countFramesAfterMessage)
}

func TestPerRoomOrderingPreserved(t *testing.T) {
	hub, _ := newTestHub()
	sender := &fakeConn{}
	watcher := &fakeConn{}
	hub.Join(sender, "b1", "u1", "Ana", false)
	hub.Join(watcher, "b1", "u2", "Bo", false)

	for i := 0; i < 10; i++ {
		require.NoError(t, hub.SendMessage(sender, "b1", "u1", fmt.Sprintf("m%d", i)))
	}

	msgs := watcher.messagesOnly()
	require.Len(t, msgs, 10)
	for i, m := range msgs {
		assert.Equal(t, fmt.Sprintf("m%d", i), m.Message)
	}
}

func TestMessagesIsolatedPerRoom(t *testing.T) {
	hub, _ := newTestHub()
	roomA := &fakeConn{}
	roomB := &fakeConn{}
	hub.Join(roomA, "a", "u1", "Ana", false)
	hub.Join(roomB, "b", "u2", "Bo", false)

	require.NoError(t, hub.SendMessage(roomA, "a", "u1", "room a only"))

	assert.Len(t, roomA.messagesOnly(), 1)
	assert.Empty(t, roomB.messagesOnly())
}

// fakeBridge wires hubs together in-process the way the Redis channel does
// in production.
type fakeBridge struct {
	mu       sync.Mutex
	handlers map[string][]func([]byte)
}

func newFakeBridge() *fakeBridge {
	return &fakeBridge{handlers: make(map[string][]func([]byte))}
}

func (b *fakeBridge) PublishRoomEvent(broadcastID string, payload []byte) error {
	b.mu.Lock()
	handlers := make([]func([]byte), 0, len(b.handlers[broadcastID]))
	handlers = append(handlers, b.handlers[broadcastID]...)
	b.mu.Unlock()
	for _, h := range handlers {
		h(payload)
	}
	return nil
}

func (b *fakeBridge) SubscribeRoom(broadcastID string, handler func(payload []byte)) (func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[broadcastID] = append(b.handlers[broadcastID], handler)
	return func() {}, nil
}

func TestCrossInstanceRelay(t *testing.T) {
	bridge := newFakeBridge()
	hub1 := NewHub(newFakePresence(), bridge, bridge, nil)
	hub2 := NewHub(newFakePresence(), bridge, bridge, nil)

	local := &fakeConn{}
	remote := &fakeConn{}
	hub1.Join(local, "b1", "u1", "Ana", false)
	hub2.Join(remote, "b1", "u2", "Bo", false)

	require.NoError(t, hub1.SendMessage(local, "b1", "u1", "over the wire"))

	// the remote instance delivered the relayed frame
	var sawRelayed bool
	for _, e := range remote.received() {
		if _, ok := e.(json.RawMessage); ok {
			sawRelayed = true
		}
	}
	assert.True(t, sawRelayed)

	// the origin instance did not re-deliver its own echo
	assert.Len(t, local.messagesOnly(), 1)
}

func TestCoHostPresenceMirroredOnJoinAndLeave(t *testing.T) {
	hub, presence := newTestHub()
	conn := &fakeConn{}
	hub.Join(conn, "b1", "c1", "Rio", true)
	assert.True(t, presence.coHosts["b1:c1"])

	hub.Leave(conn, "b1")
	assert.False(t, presence.coHosts["b1:c1"])
}
