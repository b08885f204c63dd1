package broadcast

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/amadeodlp/canalradionov-service/internal/models"
)

// Directory resolves user ids to platform accounts. A nil user or an error
// both mean the id does not resolve.
type Directory interface {
	GetUserByID(ctx context.Context, id string) (*models.User, error)
}

// Registry owns all live broadcast sessions and their listener presence maps.
// Every mutation for a given session happens under the registry mutex, so
// concurrent operations on the same id are linearizable: the loser of a race
// against Stop observes ErrSessionNotFound. State is volatile and does not
// survive a restart; terminal snapshots are handed to the caller of Stop.
type Registry struct {
	mu        sync.Mutex
	sessions  map[string]*models.BroadcastSession
	listeners map[string]map[string]time.Time

	users         Directory
	streamURL     StreamURLAllocator
	recordingURL  RecordingURLAllocator
	sessionLength time.Duration
	logger        *zap.Logger
}

// NewRegistry creates a session registry backed by the given user directory.
func NewRegistry(users Directory, streamURL StreamURLAllocator, recordingURL RecordingURLAllocator, sessionLength time.Duration, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	if sessionLength <= 0 {
		sessionLength = 2 * time.Hour
	}
	return &Registry{
		sessions:      make(map[string]*models.BroadcastSession),
		listeners:     make(map[string]map[string]time.Time),
		users:         users,
		streamURL:     streamURL,
		recordingURL:  recordingURL,
		sessionLength: sessionLength,
		logger:        logger,
	}
}

// Start creates a live session for the host. Requested co-hosts that do not
// resolve are dropped silently; a missing host fails with ErrUserNotFound.
func (r *Registry) Start(ctx context.Context, hostID string, req models.BroadcastRequest) (*models.BroadcastSession, error) {
	host, err := r.users.GetUserByID(ctx, hostID)
	if err != nil || host == nil {
		r.logger.Warn("host not found", zap.String("user_id", hostID))
		return nil, ErrUserNotFound
	}

	coHosts := make([]models.CoHost, 0, len(req.CoHostIDs))
	for _, id := range req.CoHostIDs {
		u, err := r.users.GetUserByID(ctx, id)
		if err != nil || u == nil {
			continue
		}
		coHosts = append(coHosts, models.CoHost{
			UserID:   id,
			UserName: u.Name,
			JoinedAt: time.Now(),
			IsActive: false, // not active until they join the chat room
		})
	}

	sessionID := uuid.New().String()
	session := &models.BroadcastSession{
		ID:          sessionID,
		HostID:      hostID,
		HostName:    host.Name,
		Title:       strOrEmpty(req.Title),
		Description: strOrEmpty(req.Description),
		Tags:        cloneTags(req.Tags),
		CoHosts:     coHosts,
		StartTime:   time.Now(),
		StreamURL:   r.streamURL(sessionID),
		Status:      models.StatusLive,
		IsPrivate:   boolOrFalse(req.IsPrivate),
	}

	r.mu.Lock()
	r.sessions[sessionID] = session
	r.listeners[sessionID] = make(map[string]time.Time)
	snapshot := r.snapshotLocked(session)
	r.mu.Unlock()

	r.logger.Info("broadcast started", zap.String("session_id", sessionID), zap.String("host_id", hostID))
	return &snapshot, nil
}

// Stop ends a live session. Only the host may stop it; stopping an already
// ended (or unknown) id fails with ErrSessionNotFound. The returned snapshot
// carries the final listener count and the derived recording location; the
// session and its listener map are evicted from live storage.
func (r *Registry) Stop(sessionID, callerID string) (*models.BroadcastSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if session.HostID != callerID {
		r.logger.Warn("stop rejected", zap.String("session_id", sessionID), zap.String("caller_id", callerID))
		return nil, ErrNotHost
	}

	final := r.snapshotLocked(session)
	final.Status = models.StatusEnded
	final.RecordingURL = r.recordingURL(sessionID)

	delete(r.sessions, sessionID)
	delete(r.listeners, sessionID)

	r.logger.Info("broadcast ended", zap.String("session_id", sessionID), zap.Int("listener_count", final.ListenerCount))
	return &final, nil
}

// AddCoHost appends a co-host to a live session. Adding an existing co-host
// is a no-op returning the current session; an unresolvable target fails
// with ErrUserNotFound and leaves the session untouched.
func (r *Registry) AddCoHost(ctx context.Context, sessionID, callerID, targetUserID string) (*models.BroadcastSession, error) {
	r.mu.Lock()
	session, ok := r.sessions[sessionID]
	if !ok {
		r.mu.Unlock()
		return nil, ErrSessionNotFound
	}
	if session.HostID != callerID {
		r.mu.Unlock()
		return nil, ErrNotHost
	}
	if hasCoHost(session.CoHosts, targetUserID) {
		snapshot := r.snapshotLocked(session)
		r.mu.Unlock()
		return &snapshot, nil
	}
	r.mu.Unlock()

	// Directory lookup happens outside the lock; the session is re-checked
	// afterwards so a concurrent Stop wins with ErrSessionNotFound.
	target, err := r.users.GetUserByID(ctx, targetUserID)
	if err != nil || target == nil {
		return nil, ErrUserNotFound
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok = r.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if session.HostID != callerID {
		return nil, ErrNotHost
	}
	if !hasCoHost(session.CoHosts, targetUserID) {
		session.CoHosts = append(session.CoHosts, models.CoHost{
			UserID:   targetUserID,
			UserName: target.Name,
			JoinedAt: time.Now(),
			IsActive: false,
		})
	}
	snapshot := r.snapshotLocked(session)
	r.logger.Info("co-host added", zap.String("session_id", sessionID), zap.String("co_host_id", targetUserID))
	return &snapshot, nil
}

// RemoveCoHost filters the target out of the co-host list. Removing a
// non-member is a silent no-op.
func (r *Registry) RemoveCoHost(sessionID, callerID, targetUserID string) (*models.BroadcastSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if session.HostID != callerID {
		return nil, ErrNotHost
	}

	kept := session.CoHosts[:0]
	for _, ch := range session.CoHosts {
		if ch.UserID != targetUserID {
			kept = append(kept, ch)
		}
	}
	session.CoHosts = kept

	snapshot := r.snapshotLocked(session)
	r.logger.Info("co-host removed", zap.String("session_id", sessionID), zap.String("co_host_id", targetUserID))
	return &snapshot, nil
}

// Update replaces title/description/tags/isPrivate when present in the
// request and reconciles the co-host list against req.CoHostIDs: existing
// entries not in the list are dropped, new ids are resolved and appended
// (silently skipping any that do not resolve). A nil CoHostIDs leaves the
// list untouched.
func (r *Registry) Update(ctx context.Context, sessionID, callerID string, req models.BroadcastRequest) (*models.BroadcastSession, error) {
	r.mu.Lock()
	session, ok := r.sessions[sessionID]
	if !ok {
		r.mu.Unlock()
		return nil, ErrSessionNotFound
	}
	if session.HostID != callerID {
		r.mu.Unlock()
		return nil, ErrNotHost
	}
	var missing []string
	if req.CoHostIDs != nil {
		for _, id := range req.CoHostIDs {
			if !hasCoHost(session.CoHosts, id) {
				missing = append(missing, id)
			}
		}
	}
	r.mu.Unlock()

	resolved := make(map[string]string, len(missing))
	for _, id := range missing {
		u, err := r.users.GetUserByID(ctx, id)
		if err != nil || u == nil {
			continue
		}
		resolved[id] = u.Name
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok = r.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if session.HostID != callerID {
		return nil, ErrNotHost
	}

	if req.Title != nil {
		session.Title = *req.Title
	}
	if req.Description != nil {
		session.Description = *req.Description
	}
	if req.Tags != nil {
		session.Tags = cloneTags(req.Tags)
	}
	if req.IsPrivate != nil {
		session.IsPrivate = *req.IsPrivate
	}
	if req.CoHostIDs != nil {
		requested := make(map[string]struct{}, len(req.CoHostIDs))
		for _, id := range req.CoHostIDs {
			requested[id] = struct{}{}
		}
		kept := make([]models.CoHost, 0, len(req.CoHostIDs))
		for _, ch := range session.CoHosts {
			if _, ok := requested[ch.UserID]; ok {
				kept = append(kept, ch)
			}
		}
		for _, id := range req.CoHostIDs {
			if hasCoHost(kept, id) {
				continue
			}
			name, ok := resolved[id]
			if !ok {
				continue
			}
			kept = append(kept, models.CoHost{UserID: id, UserName: name, JoinedAt: time.Now()})
		}
		session.CoHosts = kept
	}

	snapshot := r.snapshotLocked(session)
	r.logger.Info("broadcast updated", zap.String("session_id", sessionID))
	return &snapshot, nil
}

// ListActive returns public projections of every live, non-private session.
func (r *Registry) ListActive() []models.ActiveBroadcast {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]models.ActiveBroadcast, 0, len(r.sessions))
	for _, session := range r.sessions {
		if session.IsPrivate {
			continue
		}
		out = append(out, r.projectLocked(session))
	}
	return out
}

// GetByID returns the public projection of one session. Unlike ListActive it
// does not filter private sessions: a caller who knows the id sees the
// details.
func (r *Registry) GetByID(sessionID string) (*models.ActiveBroadcast, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	p := r.projectLocked(session)
	return &p, nil
}

// ListenerJoined records a listener joining a session and returns the new
// distinct-listener count. A repeat join from the same listener refreshes
// the timestamp without double-counting. Unknown sessions are a no-op
// returning 0.
func (r *Registry) ListenerJoined(sessionID, listenerID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.listeners[sessionID]
	if !ok {
		return 0
	}
	m[listenerID] = time.Now()
	return len(m)
}

// ListenerLeft removes a listener and returns the new count. Unknown
// sessions or listeners are a no-op.
func (r *Registry) ListenerLeft(sessionID, listenerID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.listeners[sessionID]
	if !ok {
		return 0
	}
	delete(m, listenerID)
	return len(m)
}

// ListenerCount reports the tracked listener count for a session.
func (r *Registry) ListenerCount(sessionID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.listeners[sessionID])
}

// MarkCoHostPresence flips a co-host's IsActive flag when their connection
// enters or leaves the session's chat room. Unknown sessions and users that
// are not co-hosts are a no-op.
func (r *Registry) MarkCoHostPresence(sessionID, userID string, active bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[sessionID]
	if !ok {
		return
	}
	for i := range session.CoHosts {
		if session.CoHosts[i].UserID == userID {
			session.CoHosts[i].IsActive = active
			return
		}
	}
}

// snapshotLocked copies a session with the live listener count filled in.
// Callers must hold r.mu.
func (r *Registry) snapshotLocked(session *models.BroadcastSession) models.BroadcastSession {
	s := *session
	s.Tags = cloneTags(session.Tags)
	s.CoHosts = append([]models.CoHost(nil), session.CoHosts...)
	s.ListenerCount = len(r.listeners[session.ID])
	return s
}

// projectLocked builds the public shape: stream URL omitted, only active
// co-hosts, estimated end time derived from the configured session length.
func (r *Registry) projectLocked(session *models.BroadcastSession) models.ActiveBroadcast {
	coHosts := make([]models.ActiveCoHost, 0, len(session.CoHosts))
	for _, ch := range session.CoHosts {
		if !ch.IsActive {
			continue
		}
		coHosts = append(coHosts, models.ActiveCoHost{
			UserID:       ch.UserID,
			UserName:     ch.UserName,
			UserImageURL: AvatarURL(ch.UserID),
		})
	}
	return models.ActiveBroadcast{
		ID:               session.ID,
		HostID:           session.HostID,
		HostName:         session.HostName,
		HostImageURL:     AvatarURL(session.HostID),
		Title:            session.Title,
		Description:      session.Description,
		Tags:             cloneTags(session.Tags),
		CoHosts:          coHosts,
		StartTime:        session.StartTime,
		EstimatedEndTime: session.StartTime.Add(r.sessionLength),
		ListenerCount:    len(r.listeners[session.ID]),
		Status:           session.Status,
	}
}

func hasCoHost(coHosts []models.CoHost, userID string) bool {
	for _, ch := range coHosts {
		if ch.UserID == userID {
			return true
		}
	}
	return false
}

func cloneTags(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return append([]string(nil), tags...)
}

func strOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func boolOrFalse(b *bool) bool {
	return b != nil && *b
}
