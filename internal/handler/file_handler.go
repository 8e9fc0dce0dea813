package handler

import (
	"fmt"
	"net/http"
	"os"
	"path"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	appErrors "github.com/noah-isme/supervision-portal-api/pkg/errors"
	"github.com/noah-isme/supervision-portal-api/pkg/response"
)

type artifactOpener interface {
	Open(locator string) (*os.File, error)
}

// FileHandler streams stored artifacts to authenticated callers.
type FileHandler struct {
	storage artifactOpener
}

// NewFileHandler constructs the handler.
func NewFileHandler(storage artifactOpener) *FileHandler {
	return &FileHandler{storage: storage}
}

var inlineContentTypes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".webp": "image/webp",
	".gif":  "image/gif",
}

var attachmentContentTypes = map[string]string{
	".pdf":  "application/pdf",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".xls":  "application/vnd.ms-excel",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".csv":  "text/csv",
}

// Serve godoc
// @Summary Stream a stored artifact
// @Tags Files
// @Produce application/octet-stream
// @Security BearerAuth
// @Param name path string true "Artifact locator"
// @Success 200 {file} binary
// @Router /files/{name} [get]
func (h *FileHandler) Serve(c *gin.Context) {
	if claimsFromContext(c) == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	locator := strings.TrimPrefix(c.Param("name"), "/")
	cleaned := path.Clean(locator)
	if cleaned == "." || cleaned == "/" || strings.HasPrefix(cleaned, "..") || path.IsAbs(cleaned) {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid artifact name"))
		return
	}

	file, err := h.storage.Open(cleaned)
	if err != nil {
		response.Error(c, appErrors.ErrNotFound)
		return
	}
	defer file.Close() //nolint:errcheck

	ext := strings.ToLower(path.Ext(cleaned))
	filename := path.Base(cleaned)
	switch {
	case inlineContentTypes[ext] != "":
		c.Header("Content-Type", inlineContentTypes[ext])
		c.Header("Content-Disposition", fmt.Sprintf(`inline; filename="%s"`, filename))
	case attachmentContentTypes[ext] != "":
		c.Header("Content-Type", attachmentContentTypes[ext])
		c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	default:
		c.Header("Content-Type", "application/octet-stream")
		c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	}
	http.ServeContent(c.Writer, c.Request, filename, modTimeOf(file), file)
}

func modTimeOf(file *os.File) time.Time {
	info, err := file.Stat()
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}
