package broadcast

import "fmt"

// StreamURLAllocator derives the streaming endpoint for a session id.
// It must be a pure function: the same id always yields the same URL.
type StreamURLAllocator func(sessionID string) string

// RecordingURLAllocator derives the recording location for a session id.
type RecordingURLAllocator func(sessionID string) string

// StreamAllocator returns an allocator rooted at base, e.g.
// wss://stream.canalradionov.com/broadcast/{id}.
func StreamAllocator(base string) StreamURLAllocator {
	return func(sessionID string) string {
		return fmt.Sprintf("%s/%s", base, sessionID)
	}
}

// RecordingAllocator returns an allocator rooted at base, e.g.
// https://storage.canalradionov.com/recordings/{id}.mp3.
func RecordingAllocator(base string) RecordingURLAllocator {
	return func(sessionID string) string {
		return fmt.Sprintf("%s/%s.mp3", base, sessionID)
	}
}

// AvatarURL derives the public avatar location for a user id. Projections use
// it instead of a directory round-trip.
func AvatarURL(userID string) string {
	return fmt.Sprintf("https://cdn.canalradionov.com/avatars/%s.jpg", userID)
}
