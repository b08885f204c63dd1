package chat

import "github.com/amadeodlp/canalradionov-service/internal/models"

// Outbound frame types.
const (
	EventHistory   = "history"
	EventMessage   = "message"
	EventUserCount = "userCount"
	EventError     = "error"
)

// Inbound actions. The set is closed: anything else is rejected at the
// websocket boundary with an error frame.
const (
	ActionJoinChat    = "joinChat"
	ActionSendMessage = "sendMessage"
	ActionLeaveChat   = "leaveChat"
)

// Inbound is the decoded client frame.
type Inbound struct {
	Action      string `json:"action"`
	BroadcastID string `json:"broadcastId"`
	UserID      string `json:"userId"`
	UserName    string `json:"userName"`
	IsHost      bool   `json:"isHost"`
	Message     string `json:"message"`
}

// HistoryEvent delivers the room's message history to a joining connection,
// oldest first.
type HistoryEvent struct {
	Type     string               `json:"type"`
	Messages []models.ChatMessage `json:"messages"`
}

// MessageEvent carries one chat message; the ChatMessage fields are
// flattened into the frame.
type MessageEvent struct {
	Type string `json:"type"`
	models.ChatMessage
}

// CountEvent announces the session's listener count.
type CountEvent struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

// ErrorEvent reports a rejected operation with a human-readable reason.
type ErrorEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func newHistoryEvent(messages []models.ChatMessage) HistoryEvent {
	return HistoryEvent{Type: EventHistory, Messages: messages}
}

func newMessageEvent(msg models.ChatMessage) MessageEvent {
	return MessageEvent{Type: EventMessage, ChatMessage: msg}
}

func newCountEvent(count int) CountEvent {
	return CountEvent{Type: EventUserCount, Count: count}
}

func newErrorEvent(reason string) ErrorEvent {
	return ErrorEvent{Type: EventError, Message: reason}
}
