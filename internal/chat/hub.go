package chat

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/amadeodlp/canalradionov-service/internal/models"
)

// HistoryLimit bounds each room's message history; insertion past the limit
// evicts the oldest message first.
const HistoryLimit = 100

// ErrIdentityMismatch is returned when a send claims a userId other than the
// one registered for the connection at join time.
var ErrIdentityMismatch = errors.New("user ID mismatch")

// Conn is one participant connection. Send must not block; an error marks
// the connection dead and the hub prunes it from its room.
type Conn interface {
	Send(event any) error
}

// Presence mirrors chat membership into the live broadcast registry: listener
// join/leave counts and co-host activity. Implemented by broadcast.Registry.
type Presence interface {
	ListenerJoined(sessionID, listenerID string) int
	ListenerLeft(sessionID, listenerID string) int
	ListenerCount(sessionID string) int
	MarkCoHostPresence(sessionID, userID string, active bool)
}

// Publisher relays room frames to other instances.
type Publisher interface {
	PublishRoomEvent(broadcastID string, payload []byte) error
}

// Subscriber subscribes to a room's relay channel while the room is occupied.
type Subscriber interface {
	SubscribeRoom(broadcastID string, handler func(payload []byte)) (cancel func(), err error)
}

type participant struct {
	userID      string
	userName    string
	broadcastID string
	isHost      bool
}

type room struct {
	conns   map[Conn]struct{}
	history []models.ChatMessage
}

// Hub owns every chat room: the live connection sets, bounded histories and
// the participant info registered per connection. All room state is guarded
// by one mutex and every delivery is an enqueue, which gives each room
// sequential consistency: connections that stay attached observe messages
// and count updates in the order the hub accepted them.
type Hub struct {
	mu           sync.Mutex
	rooms        map[string]*room
	participants map[Conn]*participant
	subs         map[string]func()

	presence   Presence
	publisher  Publisher
	subscriber Subscriber
	originID   string
	logger     *zap.Logger
}

// NewHub creates a chat hub. publisher and subscriber may be nil for
// single-instance deployments.
func NewHub(presence Presence, publisher Publisher, subscriber Subscriber, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		rooms:        make(map[string]*room),
		participants: make(map[Conn]*participant),
		subs:         make(map[string]func()),
		presence:     presence,
		publisher:    publisher,
		subscriber:   subscriber,
		originID:     uuid.New().String(),
		logger:       logger,
	}
}

// Join registers the connection in the room for broadcastID, creating the
// room if absent. The room history (when non-empty) is delivered to the new
// connection as one snapshot, then every connection in the room receives the
// updated listener count. Non-host joins are mirrored into the presence
// tracker.
func (h *Hub) Join(conn Conn, broadcastID, userID, userName string, isHost bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	rm, ok := h.rooms[broadcastID]
	if !ok {
		rm = &room{conns: make(map[Conn]struct{})}
		h.rooms[broadcastID] = rm
		if h.subscriber != nil {
			cancel, err := h.subscriber.SubscribeRoom(broadcastID, func(payload []byte) {
				h.deliverRemote(broadcastID, payload)
			})
			if err != nil {
				h.logger.Warn("room subscribe failed", zap.Error(err), zap.String("broadcast_id", broadcastID))
			} else {
				h.subs[broadcastID] = cancel
			}
		}
	}

	h.participants[conn] = &participant{
		userID:      userID,
		userName:    userName,
		broadcastID: broadcastID,
		isHost:      isHost,
	}
	rm.conns[conn] = struct{}{}

	if len(rm.history) > 0 {
		snapshot := append([]models.ChatMessage(nil), rm.history...)
		if err := conn.Send(newHistoryEvent(snapshot)); err != nil {
			h.removeConnLocked(conn, broadcastID)
			return
		}
	}

	var count int
	if isHost {
		count = h.presence.ListenerCount(broadcastID)
	} else {
		count = h.presence.ListenerJoined(broadcastID, userID)
	}
	h.presence.MarkCoHostPresence(broadcastID, userID, true)

	h.logger.Debug("chat join", zap.String("broadcast_id", broadcastID), zap.String("user_id", userID))
	h.broadcastCountLocked(broadcastID, count)
}

// SendMessage appends a message to the room history and fans it out to every
// connection in the room. The claimed userID must match the identity
// registered for the connection at join time.
func (h *Hub) SendMessage(conn Conn, broadcastID, userID, content string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	p := h.participants[conn]
	if p == nil || p.userID != userID {
		h.logger.Warn("chat identity mismatch", zap.String("broadcast_id", broadcastID), zap.String("claimed_user_id", userID))
		return ErrIdentityMismatch
	}

	msg := models.ChatMessage{
		ID:        uuid.New().String(),
		UserID:    p.userID,
		UserName:  p.userName,
		Message:   content,
		Timestamp: time.Now(),
		IsHost:    p.isHost,
	}

	rm, ok := h.rooms[broadcastID]
	if !ok {
		return nil
	}
	if len(rm.history) >= HistoryLimit {
		rm.history = rm.history[1:]
	}
	rm.history = append(rm.history, msg)

	event := newMessageEvent(msg)
	h.fanOutLocked(broadcastID, rm, event)
	h.publish(broadcastID, event)
	return nil
}

// Leave removes the connection from its room, mirrors the departure into the
// presence tracker and broadcasts the updated count. A connection with no
// registered participant is a no-op. The room is destroyed, history
// included, when the last connection leaves.
func (h *Hub) Leave(conn Conn, broadcastID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(conn, broadcastID)
}

// ConnectionClosed is the cleanup path for abrupt disconnects: it behaves
// like Leave using the session recorded for the connection at join time.
func (h *Hub) ConnectionClosed(conn Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	p := h.participants[conn]
	if p == nil {
		return
	}
	h.leaveLocked(conn, p.broadcastID)
}

// RoomSize reports the number of connections in a room.
func (h *Hub) RoomSize(broadcastID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if rm, ok := h.rooms[broadcastID]; ok {
		return len(rm.conns)
	}
	return 0
}

func (h *Hub) leaveLocked(conn Conn, broadcastID string) {
	p := h.participants[conn]
	if p == nil {
		return
	}
	if p.broadcastID != "" {
		broadcastID = p.broadcastID
	}

	count := h.removeConnLocked(conn, broadcastID)
	h.logger.Debug("chat leave", zap.String("broadcast_id", broadcastID), zap.String("user_id", p.userID))
	h.broadcastCountLocked(broadcastID, count)
}

// removeConnLocked performs the single-removal cleanup for a connection:
// room membership, presence mirror, co-host activity and participant info.
// It returns the resulting listener count and destroys the room when empty.
func (h *Hub) removeConnLocked(conn Conn, broadcastID string) int {
	p := h.participants[conn]
	count := h.presence.ListenerCount(broadcastID)
	if p != nil {
		if !p.isHost {
			count = h.presence.ListenerLeft(broadcastID, p.userID)
		}
		h.presence.MarkCoHostPresence(broadcastID, p.userID, false)
	}
	delete(h.participants, conn)

	rm, ok := h.rooms[broadcastID]
	if !ok {
		return count
	}
	delete(rm.conns, conn)
	if len(rm.conns) == 0 {
		delete(h.rooms, broadcastID)
		if cancel, ok := h.subs[broadcastID]; ok {
			cancel()
			delete(h.subs, broadcastID)
		}
	}
	return count
}

// fanOutLocked delivers an event to every connection in the room. A
// connection whose Send fails is removed once, and a single count update is
// broadcast after the full pass when anything was pruned.
func (h *Hub) fanOutLocked(broadcastID string, rm *room, event any) {
	var dead []Conn
	for c := range rm.conns {
		if err := c.Send(event); err != nil {
			dead = append(dead, c)
		}
	}
	if len(dead) == 0 {
		return
	}

	count := 0
	for _, c := range dead {
		count = h.removeConnLocked(c, broadcastID)
	}
	h.logger.Debug("pruned dead connections", zap.String("broadcast_id", broadcastID), zap.Int("count", len(dead)))
	if _, ok := h.rooms[broadcastID]; ok {
		h.broadcastCountLocked(broadcastID, count)
	}
}

// broadcastCountLocked fans out a userCount frame. Failed deliveries here
// are pruned without a follow-up count broadcast.
func (h *Hub) broadcastCountLocked(broadcastID string, count int) {
	rm, ok := h.rooms[broadcastID]
	if !ok {
		return
	}
	event := newCountEvent(count)
	var dead []Conn
	for c := range rm.conns {
		if err := c.Send(event); err != nil {
			dead = append(dead, c)
		}
	}
	for _, c := range dead {
		h.removeConnLocked(c, broadcastID)
	}
	h.publish(broadcastID, event)
}

// relayEnvelope wraps a frame for cross-instance relay. Origin lets each hub
// drop its own echoes.
type relayEnvelope struct {
	Origin string          `json:"origin"`
	Frame  json.RawMessage `json:"frame"`
}

func (h *Hub) publish(broadcastID string, event any) {
	if h.publisher == nil {
		return
	}
	frame, err := json.Marshal(event)
	if err != nil {
		return
	}
	body, err := json.Marshal(relayEnvelope{Origin: h.originID, Frame: frame})
	if err != nil {
		return
	}
	if err := h.publisher.PublishRoomEvent(broadcastID, body); err != nil {
		h.logger.Warn("room publish failed", zap.Error(err), zap.String("broadcast_id", broadcastID))
	}
}

// deliverRemote pushes a frame relayed from another instance to every local
// connection in the room.
func (h *Hub) deliverRemote(broadcastID string, payload []byte) {
	var env relayEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return
	}
	if env.Origin == h.originID {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	rm, ok := h.rooms[broadcastID]
	if !ok {
		return
	}
	h.fanOutLocked(broadcastID, rm, json.RawMessage(env.Frame))
}
