package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/MarcoPoloResearchLab/dharma/backend/internal/content"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	progressActionComplete   = "complete"
	progressActionIncomplete = "incomplete"
)

type linkRequestPayload struct {
	Category    *string `json:"category"`
	Title       *string `json:"title"`
	Description *string `json:"description"`
	URL         *string `json:"url"`
}

func (p linkRequestPayload) draft() content.LinkDraft {
	return content.LinkDraft{
		Category:    content.Category(valueOf(p.Category)),
		Title:       valueOf(p.Title),
		Description: valueOf(p.Description),
		URL:         valueOf(p.URL),
	}
}

func (p linkRequestPayload) patch() content.LinkPatch {
	patch := content.LinkPatch{
		Title:       p.Title,
		Description: p.Description,
		URL:         p.URL,
	}
	if p.Category != nil {
		category := content.Category(*p.Category)
		patch.Category = &category
	}
	return patch
}

type progressRequestPayload struct {
	LinkID string `json:"linkId"`
	Action string `json:"action"`
	Notes  string `json:"notes"`
}

func (h *httpHandler) handleListLinks(c *gin.Context) {
	links, err := h.contentService.ListLinks(c.Request.Context(), queryCategory(c))
	if err != nil {
		h.respondServiceError(c, "failed to list links", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"links": links})
}

func (h *httpHandler) handleCreateLink(c *gin.Context) {
	var request linkRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	link, err := h.contentService.CreateLink(c.Request.Context(), request.draft())
	if err != nil {
		h.respondServiceError(c, "failed to create link", err)
		return
	}
	h.metrics.RecordLinkChange("created")
	c.JSON(http.StatusCreated, gin.H{"link": link})
}

func (h *httpHandler) handleUpdateLink(c *gin.Context) {
	var request linkRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	link, err := h.contentService.UpdateLink(c.Request.Context(), c.Param("id"), request.patch())
	if err != nil {
		h.respondServiceError(c, "failed to update link", err)
		return
	}
	h.metrics.RecordLinkChange("updated")
	c.JSON(http.StatusOK, gin.H{"link": link})
}

func (h *httpHandler) handleDeleteLink(c *gin.Context) {
	if err := h.contentService.DeleteLink(c.Request.Context(), c.Param("id")); err != nil {
		h.respondServiceError(c, "failed to delete link", err)
		return
	}
	h.metrics.RecordLinkChange("deleted")
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleListProgress(c *gin.Context) {
	progress, err := h.contentService.Progress(c.Request.Context())
	if err != nil {
		h.respondServiceError(c, "failed to list progress", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"progress": progress})
}

func (h *httpHandler) handleProgressAction(c *gin.Context) {
	var request progressRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	if strings.TrimSpace(request.LinkID) == "" || strings.TrimSpace(request.Action) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing_fields"})
		return
	}

	switch request.Action {
	case progressActionComplete:
		entry, err := h.contentService.MarkCompleted(c.Request.Context(), request.LinkID, request.Notes)
		if err != nil {
			h.respondServiceError(c, "failed to mark link completed", err)
			return
		}
		h.metrics.RecordProgressChange("completed")
		c.JSON(http.StatusCreated, gin.H{"entry": entry})
	case progressActionIncomplete:
		if err := h.contentService.MarkIncomplete(c.Request.Context(), request.LinkID); err != nil {
			h.respondServiceError(c, "failed to mark link incomplete", err)
			return
		}
		h.metrics.RecordProgressChange("cleared")
		c.JSON(http.StatusOK, gin.H{"success": true})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_action"})
	}
}

func (h *httpHandler) handleProgressStats(c *gin.Context) {
	stats, err := h.contentService.Stats(c.Request.Context(), queryCategory(c))
	if err != nil {
		h.respondServiceError(c, "failed to compute progress stats", err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// respondServiceError maps content errors onto status codes. Only unexpected
// failures are logged.
func (h *httpHandler) respondServiceError(c *gin.Context, message string, err error) {
	status, errorCode := http.StatusInternalServerError, "internal_error"
	switch {
	case errors.Is(err, content.ErrInvalidLink):
		status, errorCode = http.StatusBadRequest, "invalid_link"
	case errors.Is(err, content.ErrInvalidLinkID):
		status, errorCode = http.StatusBadRequest, "invalid_link_id"
	case errors.Is(err, content.ErrLinkNotFound):
		status, errorCode = http.StatusNotFound, "link_not_found"
	case errors.Is(err, content.ErrProgressNotFound):
		status, errorCode = http.StatusNotFound, "progress_not_found"
	case errors.Is(err, content.ErrServiceClosed):
		status, errorCode = http.StatusServiceUnavailable, "service_unavailable"
	}

	payload := gin.H{"error": errorCode}
	var serviceErr *content.ServiceError
	if errors.As(err, &serviceErr) {
		payload["code"] = serviceErr.Code()
	}
	if status == http.StatusInternalServerError {
		h.logger.Error(message, zap.Error(err))
	}
	c.JSON(status, payload)
}

// queryCategory reads the optional category filter. The value is matched
// exactly, so an empty string means no filter.
func queryCategory(c *gin.Context) content.Category {
	return content.Category(c.Query("category"))
}

func valueOf(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
