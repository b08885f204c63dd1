package models

import "time"

// Valid interaction target kinds.
const (
	TargetShow      = "show"
	TargetEpisode   = "episode"
	TargetBroadcast = "broadcast"
)

// Comment is a user comment on a show, episode or broadcast.
type Comment struct {
	ID         string    `json:"id"`
	UserID     string    `json:"userId"`
	Username   string    `json:"username"`
	UserAvatar string    `json:"userAvatar"`
	Content    string    `json:"content"`
	Timestamp  time.Time `json:"timestamp"`
	ReplyTo    string    `json:"replyTo,omitempty"`
}

// CommentRequest is the inbound payload for posting a comment.
type CommentRequest struct {
	TargetType string `json:"targetType" binding:"required"`
	TargetID   string `json:"targetId" binding:"required"`
	Content    string `json:"content" binding:"required"`
	ReplyTo    string `json:"replyTo"`
}

// Like marks a user liking a target.
type Like struct {
	ID         string    `json:"id"`
	UserID     string    `json:"userId"`
	TargetID   string    `json:"targetId"`
	TargetType string    `json:"targetType"`
	Timestamp  time.Time `json:"timestamp"`
}
