package handlers

import (
	"context"
	"net/http"

	"huddle_backend/internal/blobstore"
	"huddle_backend/internal/logger"
	"huddle_backend/internal/services/dto"
	"huddle_backend/pkg/apperrors"

	"github.com/gin-gonic/gin"
)

// Uploader issues a short lived direct upload URL for one file.
type Uploader interface {
	IssueUpload(ctx context.Context, ownerID, fileName, contentType string) (*blobstore.UploadTicket, error)
}

type MediaHandler struct {
	*BaseHandler
	uploads Uploader
}

func NewMediaHandler(base *BaseHandler, uploads Uploader) *MediaHandler {
	return &MediaHandler{BaseHandler: base, uploads: uploads}
}

func (h *MediaHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/media/uploads", h.IssueUpload)
}

func (h *MediaHandler) IssueUpload(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}
	var req dto.MediaUploadRequest
	if !h.BindAndValidate_JSON(c, &req) {
		return
	}

	ticket, err := h.uploads.IssueUpload(c.Request.Context(), userID, req.FileName, req.ContentType)
	if err != nil {
		logger.Error("Failed to presign upload", "user_id", userID, "error", err)
		h.HandleServiceError(c, apperrors.StorageError(err))
		return
	}
	c.JSON(http.StatusCreated, ticket)
}
