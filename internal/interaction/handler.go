package interaction

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/amadeodlp/canalradionov-service/internal/middleware"
	"github.com/amadeodlp/canalradionov-service/internal/models"
	"github.com/amadeodlp/canalradionov-service/pkg/response"
)

// UserLookup resolves the authenticated user's display details.
type UserLookup interface {
	GetUserByID(ctx context.Context, id string) (*models.User, error)
}

// Handler exposes comments, likes and share links over HTTP.
type Handler struct {
	store  *Store
	users  UserLookup
	logger *zap.Logger
}

// NewHandler creates an interaction handler.
func NewHandler(store *Store, users UserLookup, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, users: users, logger: logger}
}

func validTarget(t string) bool {
	switch t {
	case models.TargetShow, models.TargetEpisode, models.TargetBroadcast:
		return true
	}
	return false
}

// AddComment handles POST /comments.
func (h *Handler) AddComment(c *gin.Context) {
	var req models.CommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if !validTarget(req.TargetType) {
		response.BadRequest(c, "unknown target type: "+req.TargetType)
		return
	}
	callerID := c.MustGet(middleware.ContextUserID).(string)

	name := callerID
	avatar := ""
	if h.users != nil {
		if u, err := h.users.GetUserByID(c.Request.Context(), callerID); err == nil && u != nil {
			name = u.Name
			avatar = u.AvatarURL
		}
	}

	comment := h.store.AddComment(callerID, name, avatar, req)
	response.Created(c, comment)
}

// ListComments handles GET /comments/:targetType/:targetId.
func (h *Handler) ListComments(c *gin.Context) {
	targetType := c.Param("targetType")
	if !validTarget(targetType) {
		response.BadRequest(c, "unknown target type: "+targetType)
		return
	}
	response.OK(c, h.store.Comments(targetType, c.Param("targetId")))
}

// DeleteComment handles DELETE /comments/:id.
func (h *Handler) DeleteComment(c *gin.Context) {
	callerID := c.MustGet(middleware.ContextUserID).(string)

	err := h.store.DeleteComment(c.Param("id"), callerID)
	switch {
	case err == nil:
		response.NoContent(c)
	case errors.Is(err, ErrCommentNotFound):
		response.NotFound(c, err.Error())
	case errors.Is(err, ErrNotCommentOwner):
		response.Forbidden(c, err.Error())
	default:
		h.logger.Error("delete comment", zap.Error(err))
		response.Internal(c, "failed to delete comment")
	}
}

// Like handles POST /likes/:targetType/:targetId.
func (h *Handler) Like(c *gin.Context) {
	targetType := c.Param("targetType")
	if !validTarget(targetType) {
		response.BadRequest(c, "unknown target type: "+targetType)
		return
	}
	callerID := c.MustGet(middleware.ContextUserID).(string)
	count := h.store.AddLike(callerID, targetType, c.Param("targetId"))
	response.OK(c, gin.H{"count": count, "liked": true})
}

// Unlike handles DELETE /likes/:targetType/:targetId.
func (h *Handler) Unlike(c *gin.Context) {
	targetType := c.Param("targetType")
	if !validTarget(targetType) {
		response.BadRequest(c, "unknown target type: "+targetType)
		return
	}
	callerID := c.MustGet(middleware.ContextUserID).(string)
	count := h.store.RemoveLike(callerID, targetType, c.Param("targetId"))
	response.OK(c, gin.H{"count": count, "liked": false})
}

// LikeCount handles GET /likes/:targetType/:targetId.
func (h *Handler) LikeCount(c *gin.Context) {
	targetType := c.Param("targetType")
	if !validTarget(targetType) {
		response.BadRequest(c, "unknown target type: "+targetType)
		return
	}
	response.OK(c, gin.H{"count": h.store.LikeCount(targetType, c.Param("targetId"))})
}

// ShareURL handles GET /share/:targetType/:targetId.
func (h *Handler) ShareURL(c *gin.Context) {
	targetType := c.Param("targetType")
	if !validTarget(targetType) {
		response.BadRequest(c, "unknown target type: "+targetType)
		return
	}
	response.OK(c, gin.H{"url": h.store.ShareURL(targetType, c.Param("targetId"))})
}
