package models

import "time"

// ChatMessage is one message in a broadcast chat room.
type ChatMessage struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	UserName  string    `json:"userName"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	IsHost    bool      `json:"isHost"`
}
