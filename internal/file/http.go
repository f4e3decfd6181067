package file

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/abduss/cloudbox/internal/auth"
	"github.com/abduss/cloudbox/internal/logger"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// multipartOverhead leaves room for boundaries and part headers on top of the file itself.
const multipartOverhead = 1 << 20

// RegisterRoutes mounts file operations under the provided (authenticated) router group.
func RegisterRoutes(group *gin.RouterGroup, service *Service) {
	handler := &httpHandler{service: service}
	group.POST("/files", handler.uploadFile)
	group.GET("/files", handler.listFiles)
	group.GET("/files/:name", handler.downloadFile)
	group.DELETE("/files/:id", handler.deleteFile)
}

type httpHandler struct {
	service *Service
}

func (h *httpHandler) uploadFile(c *gin.Context) {
	caller, err := auth.IdentityFromContext(c)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.service.maxFileSize+multipartOverhead)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeError(c, ErrFileTooLarge)
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "file field is required"})
		return
	}

	content, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable file field"})
		return
	}
	defer content.Close()

	rec, err := h.service.Store(c.Request.Context(), caller, Upload{
		Name:        fileHeader.Filename,
		Size:        fileHeader.Size,
		ContentType: fileHeader.Header.Get("Content-Type"),
		Content:     content,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, rec)
}

func (h *httpHandler) listFiles(c *gin.Context) {
	caller, err := auth.IdentityFromContext(c)
	if err != nil {
		h.writeError(c, err)
		return
	}

	records, err := h.service.ListForCaller(c.Request.Context(), caller)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"files": records})
}

func (h *httpHandler) downloadFile(c *gin.Context) {
	caller, err := auth.IdentityFromContext(c)
	if err != nil {
		h.writeError(c, err)
		return
	}

	rec, body, err := h.service.Load(c.Request.Context(), caller, c.Param("name"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	defer body.Close()

	c.DataFromReader(http.StatusOK, rec.FileSize, rec.ContentType, body, map[string]string{
		"Content-Disposition": fmt.Sprintf("attachment; filename=%q", rec.FileName),
		"X-Checksum-SHA256":   rec.Checksum,
	})
}

func (h *httpHandler) deleteFile(c *gin.Context) {
	caller, err := auth.IdentityFromContext(c)
	if err != nil {
		h.writeError(c, err)
		return
	}

	fileID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid file id"})
		return
	}

	if err := h.service.Delete(c.Request.Context(), caller, fileID); err != nil {
		h.writeError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// writeError maps orchestrator errors to responses. Causes are logged, never returned.
func (h *httpHandler) writeError(c *gin.Context, err error) {
	status, code := http.StatusInternalServerError, "internal_error"
	switch {
	case errors.Is(err, auth.ErrUnauthenticated):
		status, code = http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, ErrFileNotFound):
		status, code = http.StatusNotFound, "file_not_found"
	case errors.Is(err, ErrPermissionDenied):
		status, code = http.StatusForbidden, "permission_denied"
	case errors.Is(err, ErrFileTooLarge):
		status, code = http.StatusRequestEntityTooLarge, "file_too_large"
	case errors.Is(err, ErrInvalidUpload):
		status, code = http.StatusBadRequest, "invalid_upload"
	case errors.Is(err, ErrStorageWrite):
		code = "storage_write_failed"
	case errors.Is(err, ErrStorageRead):
		code = "storage_read_failed"
	case errors.Is(err, ErrStorageDelete):
		code = "storage_delete_failed"
	case errors.Is(err, ErrMetadataWrite):
		code = "metadata_write_failed"
	case errors.Is(err, ErrMetadataRead):
		code = "metadata_read_failed"
	}

	if status >= http.StatusInternalServerError {
		logger.WithRequest(h.service.log, c).Error("file request failed", zap.String("code", code), zap.Error(err))
	}
	c.JSON(status, gin.H{"error": code})
}
