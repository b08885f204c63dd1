package broadcast

import (
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/amadeodlp/canalradionov-service/internal/middleware"
	"github.com/amadeodlp/canalradionov-service/internal/models"
	"github.com/amadeodlp/canalradionov-service/pkg/queue"
	"github.com/amadeodlp/canalradionov-service/pkg/response"
	"github.com/amadeodlp/canalradionov-service/pkg/storage"
)

// Handler exposes the session registry over HTTP.
type Handler struct {
	registry *Registry
	archive  *Archive
	queue    *queue.Queue
	s3       *storage.S3
	logger   *zap.Logger
}

// NewHandler creates a broadcast handler. archive, q and s3 may be nil when
// the durable archive or object storage is not configured.
func NewHandler(registry *Registry, archive *Archive, q *queue.Queue, s3 *storage.S3, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{registry: registry, archive: archive, queue: q, s3: s3, logger: logger}
}

// Start handles POST /broadcasts.
func (h *Handler) Start(c *gin.Context) {
	var req models.BroadcastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	callerID := c.MustGet(middleware.ContextUserID).(string)

	session, err := h.registry.Start(c.Request.Context(), callerID, req)
	if err != nil {
		h.renderError(c, err)
		return
	}
	response.Created(c, session)
}

// Stop handles POST /broadcasts/:id/stop. The final snapshot is returned to
// the caller and queued for archival; the live registry has already evicted
// the session by the time this responds.
func (h *Handler) Stop(c *gin.Context) {
	callerID := c.MustGet(middleware.ContextUserID).(string)

	final, err := h.registry.Stop(c.Param("id"), callerID)
	if err != nil {
		h.renderError(c, err)
		return
	}
	if h.queue != nil {
		raw, err := json.Marshal(final)
		if err == nil {
			err = h.queue.EnqueueBroadcastArchive(c.Request.Context(), queue.BroadcastArchivePayload{
				SessionID: final.ID,
				Session:   raw,
				EndedAt:   time.Now(),
			})
		}
		if err != nil {
			h.logger.Error("enqueue archive job", zap.Error(err), zap.String("session_id", final.ID))
		}
	}
	response.OK(c, final)
}

// AddCoHost handles POST /broadcasts/:id/cohosts/:userId.
func (h *Handler) AddCoHost(c *gin.Context) {
	callerID := c.MustGet(middleware.ContextUserID).(string)

	session, err := h.registry.AddCoHost(c.Request.Context(), c.Param("id"), callerID, c.Param("userId"))
	if err != nil {
		h.renderError(c, err)
		return
	}
	response.OK(c, session)
}

// RemoveCoHost handles DELETE /broadcasts/:id/cohosts/:userId.
func (h *Handler) RemoveCoHost(c *gin.Context) {
	callerID := c.MustGet(middleware.ContextUserID).(string)

	session, err := h.registry.RemoveCoHost(c.Param("id"), callerID, c.Param("userId"))
	if err != nil {
		h.renderError(c, err)
		return
	}
	response.OK(c, session)
}

// Update handles PATCH /broadcasts/:id.
func (h *Handler) Update(c *gin.Context) {
	var req models.BroadcastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	callerID := c.MustGet(middleware.ContextUserID).(string)

	session, err := h.registry.Update(c.Request.Context(), c.Param("id"), callerID, req)
	if err != nil {
		h.renderError(c, err)
		return
	}
	response.OK(c, session)
}

// ListActive handles GET /broadcasts. Private sessions are filtered out.
func (h *Handler) ListActive(c *gin.Context) {
	response.OK(c, h.registry.ListActive())
}

// GetByID handles GET /broadcasts/:id. Private sessions are visible to a
// direct id lookup, unlike the listing.
func (h *Handler) GetByID(c *gin.Context) {
	b, err := h.registry.GetByID(c.Param("id"))
	if err != nil {
		h.renderError(c, err)
		return
	}
	response.OK(c, b)
}

// ListenerCount handles GET /broadcasts/:id/listeners.
func (h *Handler) ListenerCount(c *gin.Context) {
	response.OK(c, gin.H{"count": h.registry.ListenerCount(c.Param("id"))})
}

// History handles GET /broadcasts/history, serving archived terminal
// snapshots of ended sessions.
func (h *Handler) History(c *gin.Context) {
	if h.archive == nil {
		response.ServiceUnavailable(c, "broadcast archive not configured")
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	list, err := h.archive.List(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("list archive", zap.Error(err))
		response.Internal(c, "failed to list broadcast history")
		return
	}
	if list == nil {
		list = []models.BroadcastSession{}
	}
	response.OK(c, list)
}

// HistoryByID handles GET /broadcasts/history/:id.
func (h *Handler) HistoryByID(c *gin.Context) {
	if h.archive == nil {
		response.ServiceUnavailable(c, "broadcast archive not configured")
		return
	}
	s, err := h.archive.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			response.NotFound(c, "archived broadcast not found")
			return
		}
		h.logger.Error("get archived broadcast", zap.Error(err), zap.String("id", c.Param("id")))
		response.Internal(c, "failed to load archived broadcast")
		return
	}
	response.OK(c, s)
}

// DeleteArchived handles DELETE /broadcasts/history/:id. The archive row is
// removed first; recording and transcript objects are cleaned up best effort.
func (h *Handler) DeleteArchived(c *gin.Context) {
	if h.archive == nil {
		response.ServiceUnavailable(c, "broadcast archive not configured")
		return
	}
	id := c.Param("id")
	found, err := h.archive.Delete(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("delete archived broadcast", zap.Error(err), zap.String("id", id))
		response.Internal(c, "failed to delete archived broadcast")
		return
	}
	if !found {
		response.NotFound(c, "archived broadcast not found")
		return
	}
	if h.s3 != nil {
		ctx := c.Request.Context()
		if err := h.s3.DeleteRecording(ctx, storage.RecordingKey(id)); err != nil {
			h.logger.Warn("delete recording object", zap.Error(err), zap.String("id", id))
		}
		if err := h.s3.DeleteObject(ctx, h.s3.RecordingsBucket(), storage.TranscriptKey(id)); err != nil {
			h.logger.Warn("delete transcript object", zap.Error(err), zap.String("id", id))
		}
	}
	response.NoContent(c)
}

func (h *Handler) renderError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrSessionNotFound), errors.Is(err, ErrUserNotFound):
		response.NotFound(c, err.Error())
	case errors.Is(err, ErrNotHost):
		response.Forbidden(c, err.Error())
	default:
		h.logger.Error("broadcast operation failed", zap.Error(err))
		response.Internal(c, "broadcast operation failed")
	}
}
