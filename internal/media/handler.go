package media

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/amadeodlp/canalradionov-service/internal/models"
	"github.com/amadeodlp/canalradionov-service/pkg/response"
	"github.com/amadeodlp/canalradionov-service/pkg/storage"
)

// Handler handles media catalog HTTP endpoints.
type Handler struct {
	catalog *Catalog
	s3      *storage.S3
	logger  *zap.Logger
}

// NewHandler creates a media handler. s3 may be nil; playback then falls
// back to the stored audio URL.
func NewHandler(catalog *Catalog, s3 *storage.S3, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{catalog: catalog, s3: s3, logger: logger}
}

// CreateShow handles POST /shows (admin).
func (h *Handler) CreateShow(c *gin.Context) {
	var show models.RadioShow
	if err := c.ShouldBindJSON(&show); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if show.Title == "" {
		response.BadRequest(c, "title is required")
		return
	}
	response.Created(c, h.catalog.AddShow(show))
}

// ListShows handles GET /shows.
func (h *Handler) ListShows(c *gin.Context) {
	response.OK(c, h.catalog.AllShows())
}

// GetShow handles GET /shows/:id.
func (h *Handler) GetShow(c *gin.Context) {
	show, err := h.catalog.ShowByID(c.Param("id"))
	if err != nil {
		response.NotFound(c, "show not found")
		return
	}
	response.OK(c, show)
}

// LiveShows handles GET /shows/live.
func (h *Handler) LiveShows(c *gin.Context) {
	response.OK(c, h.catalog.LiveShows())
}

// UpcomingShows handles GET /shows/upcoming.
func (h *Handler) UpcomingShows(c *gin.Context) {
	response.OK(c, h.catalog.UpcomingShows())
}

// ListEpisodes handles GET /shows/:id/episodes.
func (h *Handler) ListEpisodes(c *gin.Context) {
	eps, err := h.catalog.EpisodesByShow(c.Param("id"))
	if err != nil {
		response.NotFound(c, "show not found")
		return
	}
	response.OK(c, eps)
}

// EpisodeRequest is the body for registering an uploaded episode.
type EpisodeRequest struct {
	Title           string `json:"title" binding:"required"`
	Description     string `json:"description"`
	Key             string `json:"key" binding:"required"`
	DurationSeconds int    `json:"durationSeconds"`
	ImageURL        string `json:"imageUrl"`
}

// RegisterEpisode handles POST /shows/:id/episodes (admin): records an
// episode after checking the uploaded object actually exists.
func (h *Handler) RegisterEpisode(c *gin.Context) {
	var req EpisodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	stored := h.s3 != nil && !strings.HasPrefix(req.Key, "http")
	if stored {
		if _, err := h.s3.HeadObject(c.Request.Context(), h.s3.MediaBucket(), req.Key); err != nil {
			response.BadRequest(c, "audio object not found: "+req.Key)
			return
		}
	}

	ep, err := h.catalog.AddEpisode(c.Param("id"), models.Episode{
		Title:           req.Title,
		Description:     req.Description,
		AudioURL:        req.Key,
		DurationSeconds: req.DurationSeconds,
		PublishDate:     time.Now(),
		ImageURL:        req.ImageURL,
	})
	if err != nil {
		response.NotFound(c, "show not found")
		return
	}

	resp := gin.H{"episode": ep}
	if stored {
		resp["publicUrl"] = h.s3.PublicObjectURL(h.s3.MediaBucket(), req.Key)
	}
	response.Created(c, resp)
}

// DeleteEpisode handles DELETE /episodes/:id (admin): removes the episode
// and its audio object when it lives in the media bucket.
func (h *Handler) DeleteEpisode(c *gin.Context) {
	ep, err := h.catalog.RemoveEpisode(c.Param("id"))
	if err != nil {
		response.NotFound(c, "episode not found")
		return
	}
	if h.s3 != nil && ep.AudioURL != "" && !strings.HasPrefix(ep.AudioURL, "http") {
		if err := h.s3.DeleteEpisodeAudio(c.Request.Context(), ep.AudioURL); err != nil {
			h.logger.Warn("delete episode audio", zap.Error(err), zap.String("key", ep.AudioURL))
		}
	}
	response.NoContent(c)
}

// Stream handles GET /episodes/:id/stream: proxies the audio object out of
// the media bucket. Episodes stored as absolute URLs get a redirect instead.
func (h *Handler) Stream(c *gin.Context) {
	episode, err := h.catalog.EpisodeByID(c.Param("id"))
	if err != nil {
		response.NotFound(c, "episode not found")
		return
	}
	if strings.HasPrefix(episode.AudioURL, "http") {
		c.Redirect(http.StatusFound, episode.AudioURL)
		return
	}
	if h.s3 == nil {
		response.ServiceUnavailable(c, "object storage not configured")
		return
	}

	ctx := c.Request.Context()
	head, err := h.s3.HeadObject(ctx, h.s3.MediaBucket(), episode.AudioURL)
	if err != nil {
		response.NotFound(c, "audio object not found")
		return
	}
	body, contentType, err := h.s3.GetObjectStream(ctx, h.s3.MediaBucket(), episode.AudioURL)
	if err != nil {
		h.logger.Error("stream episode audio", zap.Error(err), zap.String("episode_id", episode.ID))
		response.Internal(c, "failed to stream episode audio")
		return
	}
	defer body.Close()

	length := int64(-1)
	if head.ContentLength != nil {
		length = *head.ContentLength
	}
	if contentType == "" {
		contentType = storage.ContentTypeForFilename(episode.AudioURL)
	}
	c.DataFromReader(http.StatusOK, length, contentType, body, nil)
}

// UploadURLRequest is the body for requesting a presigned episode upload.
type UploadURLRequest struct {
	Filename    string `json:"filename" binding:"required"`
	ContentType string `json:"contentType"`
}

// GenerateUploadURL handles POST /shows/:id/episodes/upload-url (admin):
// returns a presigned PUT URL for direct episode audio upload.
func (h *Handler) GenerateUploadURL(c *gin.Context) {
	if h.s3 == nil {
		response.ServiceUnavailable(c, "object storage not configured")
		return
	}
	show, err := h.catalog.ShowByID(c.Param("id"))
	if err != nil {
		response.NotFound(c, "show not found")
		return
	}

	var req UploadURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if !storage.ValidateAudioFileType(req.ContentType, req.Filename) {
		response.BadRequest(c, "unsupported audio type")
		return
	}

	contentType := req.ContentType
	if contentType == "" {
		contentType = storage.ContentTypeForFilename(req.Filename)
	}
	key := storage.EpisodeKey(show.ID, req.Filename)

	url, err := h.s3.GeneratePresignedUploadURL(c.Request.Context(), h.s3.MediaBucket(), key, contentType, h.s3.PresignExpire())
	if err != nil {
		h.logger.Error("presign episode upload", zap.Error(err), zap.String("show_id", show.ID))
		response.Internal(c, "failed to generate upload URL")
		return
	}
	response.OK(c, gin.H{"uploadUrl": url, "key": key, "contentType": contentType})
}

// Play handles GET /episodes/:id/play: records the play and returns a
// playback URL, presigned when the audio lives in the media bucket.
func (h *Handler) Play(c *gin.Context) {
	episode, err := h.catalog.RecordPlay(c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, "episode not found")
			return
		}
		response.Internal(c, "failed to load episode")
		return
	}

	url := episode.AudioURL
	if h.s3 != nil && !strings.HasPrefix(url, "http") {
		signed, err := h.s3.GeneratePresignedDownloadURL(c.Request.Context(), h.s3.MediaBucket(), url, h.s3.PresignExpire())
		if err != nil {
			h.logger.Error("presign episode audio", zap.Error(err), zap.String("episode_id", episode.ID))
			response.Internal(c, "failed to generate playback URL")
			return
		}
		url = signed
	}

	response.OK(c, gin.H{
		"episodeId":       episode.ID,
		"url":             url,
		"durationSeconds": episode.DurationSeconds,
		"playCount":       episode.PlayCount,
	})
}
