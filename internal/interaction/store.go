package interaction

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/amadeodlp/canalradionov-service/internal/models"
)

var (
	// ErrCommentNotFound is returned when deleting an unknown comment.
	ErrCommentNotFound = errors.New("comment not found")
	// ErrNotCommentOwner is returned when a caller deletes someone else's comment.
	ErrNotCommentOwner = errors.New("only the author can delete a comment")
)

// Store keeps comments and likes per target in volatile memory.
type Store struct {
	mu           sync.Mutex
	comments     map[string][]models.Comment // targetKey -> ordered comments
	likes        map[string]map[string]models.Like // targetKey -> userID -> like
	baseShareURL string
}

// NewStore creates an interaction store.
func NewStore(baseShareURL string) *Store {
	if baseShareURL == "" {
		baseShareURL = "https://canalradionov.com/share"
	}
	return &Store{
		comments:     make(map[string][]models.Comment),
		likes:        make(map[string]map[string]models.Like),
		baseShareURL: baseShareURL,
	}
}

func targetKey(targetType, targetID string) string {
	return targetType + ":" + targetID
}

// AddComment appends a comment for a target.
func (s *Store) AddComment(userID, username, userAvatar string, req models.CommentRequest) models.Comment {
	comment := models.Comment{
		ID:         uuid.New().String(),
		UserID:     userID,
		Username:   username,
		UserAvatar: userAvatar,
		Content:    req.Content,
		Timestamp:  time.Now(),
		ReplyTo:    req.ReplyTo,
	}
	key := targetKey(req.TargetType, req.TargetID)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.comments[key] = append(s.comments[key], comment)
	return comment
}

// Comments returns the comments for a target, oldest first.
func (s *Store) Comments(targetType, targetID string) []models.Comment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Comment(nil), s.comments[targetKey(targetType, targetID)]...)
}

// DeleteComment removes a comment; only its author may delete it.
func (s *Store) DeleteComment(commentID, callerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, list := range s.comments {
		for i, cm := range list {
			if cm.ID != commentID {
				continue
			}
			if cm.UserID != callerID {
				return ErrNotCommentOwner
			}
			s.comments[key] = append(list[:i], list[i+1:]...)
			return nil
		}
	}
	return ErrCommentNotFound
}

// AddLike records a like; liking twice is a no-op. Returns the new count.
func (s *Store) AddLike(userID, targetType, targetID string) int {
	key := targetKey(targetType, targetID)

	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.likes[key]
	if !ok {
		m = make(map[string]models.Like)
		s.likes[key] = m
	}
	if _, exists := m[userID]; !exists {
		m[userID] = models.Like{
			ID:         uuid.New().String(),
			UserID:     userID,
			TargetID:   targetID,
			TargetType: targetType,
			Timestamp:  time.Now(),
		}
	}
	return len(m)
}

// RemoveLike removes a user's like. Returns the new count.
func (s *Store) RemoveLike(userID, targetType, targetID string) int {
	key := targetKey(targetType, targetID)

	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.likes[key]
	if !ok {
		return 0
	}
	delete(m, userID)
	return len(m)
}

// LikeCount reports the like count for a target.
func (s *Store) LikeCount(targetType, targetID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.likes[targetKey(targetType, targetID)])
}

// ShareURL derives a shareable link for a target.
func (s *Store) ShareURL(targetType, targetID string) string {
	return fmt.Sprintf("%s/%s/%s", s.baseShareURL, targetType, targetID)
}
