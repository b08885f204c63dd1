package models

import "time"

// Broadcast session status. A session transitions live -> ended exactly once.
const (
	StatusLive  = "live"
	StatusEnded = "ended"
)

// CoHost is a secondary participant of a broadcast session. IsActive is true
// only while that user's connection is present in the session's chat room.
type CoHost struct {
	UserID   string    `json:"userId"`
	UserName string    `json:"userName"`
	JoinedAt time.Time `json:"joinedAt"`
	IsActive bool      `json:"isActive"`
}

// BroadcastSession is the authoritative session record owned by the registry.
// ListenerCount mirrors the presence tracker and is recomputed on every read.
type BroadcastSession struct {
	ID            string    `json:"id"`
	HostID        string    `json:"hostId"`
	HostName      string    `json:"hostName"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	Tags          []string  `json:"tags"`
	CoHosts       []CoHost  `json:"coHosts"`
	StartTime     time.Time `json:"startTime"`
	StreamURL     string    `json:"streamUrl"`
	Status        string    `json:"status"`
	RecordingURL  string    `json:"recordingUrl,omitempty"`
	ListenerCount int       `json:"listenerCount"`
	IsPrivate     bool      `json:"isPrivate"`
}

// ActiveCoHost is the public projection of a co-host.
type ActiveCoHost struct {
	UserID       string `json:"userId"`
	UserName     string `json:"userName"`
	UserImageURL string `json:"userImageUrl"`
}

// ActiveBroadcast is the public projection of a session for listings and
// detail views. It omits the internal stream URL and includes only active
// co-hosts.
type ActiveBroadcast struct {
	ID               string         `json:"id"`
	HostID           string         `json:"hostId"`
	HostName         string         `json:"hostName"`
	HostImageURL     string         `json:"hostImageUrl"`
	Title            string         `json:"title"`
	Description      string         `json:"description"`
	Tags             []string       `json:"tags"`
	CoHosts          []ActiveCoHost `json:"coHosts"`
	StartTime        time.Time      `json:"startTime"`
	EstimatedEndTime time.Time      `json:"estimatedEndTime"`
	ListenerCount    int            `json:"listenerCount"`
	Status           string         `json:"status"`
}

// BroadcastRequest carries the mutable session fields for start and update.
// Nil pointer fields on update keep the current value; a nil CoHostIDs slice
// leaves the co-host list untouched.
type BroadcastRequest struct {
	Title       *string  `json:"title"`
	Description *string  `json:"description"`
	Tags        []string `json:"tags"`
	CoHostIDs   []string `json:"coHostIds"`
	IsPrivate   *bool    `json:"isPrivate"`
}
