package users

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/amadeodlp/canalradionov-service/internal/middleware"
	"github.com/amadeodlp/canalradionov-service/pkg/response"
)

// UpdateProfileRequest is the body for PATCH /users/me.
type UpdateProfileRequest struct {
	Name      *string `json:"name"`
	AvatarURL *string `json:"avatarUrl"`
	Bio       *string `json:"bio"`
}

// Handler handles user profile HTTP endpoints.
type Handler struct {
	repo   *Repository
	logger *zap.Logger
}

// NewHandler creates a users handler.
func NewHandler(repo *Repository, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, logger: logger}
}

// Me handles GET /users/me.
func (h *Handler) Me(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(string)

	u, err := h.repo.GetUserByID(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("get user", zap.Error(err))
		response.Internal(c, "failed to load profile")
		return
	}
	if u == nil {
		response.NotFound(c, "user not found")
		return
	}
	response.OK(c, u.ToPublic())
}

// UpdateMe handles PATCH /users/me. Absent fields keep their current value.
func (h *Handler) UpdateMe(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(string)

	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	u, err := h.repo.GetUserByID(c.Request.Context(), userID)
	if err != nil {
		response.Internal(c, "failed to load profile")
		return
	}
	if u == nil {
		response.NotFound(c, "user not found")
		return
	}

	name, avatar, bio := u.Name, u.AvatarURL, u.Bio
	if req.Name != nil {
		name = *req.Name
	}
	if req.AvatarURL != nil {
		avatar = *req.AvatarURL
	}
	if req.Bio != nil {
		bio = *req.Bio
	}

	updated, err := h.repo.UpdateProfile(c.Request.Context(), userID, name, avatar, bio)
	if err != nil || updated == nil {
		h.logger.Error("update profile", zap.Error(err))
		response.Internal(c, "failed to update profile")
		return
	}
	response.OK(c, updated.ToPublic())
}

// List handles GET /users (admin only).
func (h *Handler) List(c *gin.Context) {
	list, err := h.repo.List(c.Request.Context())
	if err != nil {
		response.Internal(c, "failed to list users")
		return
	}
	response.OK(c, list)
}
