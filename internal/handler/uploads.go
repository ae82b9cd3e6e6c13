package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/student-stay/internal/apperr"
	"github.com/iliyamo/student-stay/internal/backend"
	"github.com/iliyamo/student-stay/internal/files"
	"github.com/iliyamo/student-stay/internal/middleware"
)

// FileService stores and serves uploaded photos.
type FileService interface {
	backend.Files
	Download(ctx context.Context, id string) (files.File, error)
}

type UploadHandler struct {
	Files FileService
}

func NewUploadHandler(f FileService) *UploadHandler { return &UploadHandler{Files: f} }

var imageExt = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// Upload accepts one image in the "file" form field and returns its URL.
func (h *UploadHandler) Upload(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return badRequest(c, "file is required")
	}
	if fh.Size > files.MaxFileBytes {
		return badRequest(c, "file too large")
	}
	src, err := fh.Open()
	if err != nil {
		return badRequest(c, "unreadable file")
	}
	defer src.Close()
	data, err := io.ReadAll(io.LimitReader(src, files.MaxFileBytes+1))
	if err != nil {
		return badRequest(c, "unreadable file")
	}
	if len(data) == 0 {
		return badRequest(c, "file is empty")
	}
	if len(data) > files.MaxFileBytes {
		return badRequest(c, "file too large")
	}
	ct := http.DetectContentType(data)
	ext, ok := imageExt[ct]
	if !ok {
		return badRequest(c, "only jpeg, png, webp or gif images are accepted")
	}
	p := path.Join("listings", middleware.AccountID(c), uuid.NewString()+ext)

	ctx, cancel := withTimeout(c)
	defer cancel()
	url, err := h.Files.UploadFile(ctx, data, p)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"url": url})
}

func (h *UploadHandler) Download(c echo.Context) error {
	ctx, cancel := withTimeout(c)
	defer cancel()
	f, err := h.Files.Download(ctx, c.Param("id"))
	if errors.Is(err, backend.ErrNotFound) {
		return fail(c, apperr.NotFound("file not found", err))
	}
	if err != nil {
		return fail(c, err)
	}
	if !strings.HasPrefix(f.ContentType, "image/") {
		f.ContentType = "application/octet-stream"
	}
	c.Response().Header().Set("Cache-Control", "public, max-age=86400")
	return c.Blob(http.StatusOK, f.ContentType, f.Data)
}
