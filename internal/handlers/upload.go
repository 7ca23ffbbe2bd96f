package handlers

import (
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/infinity-samurai/food-ai/internal/blob"
)

// Uploads above this size are rejected at the API boundary.
const maxUploadBytes = 5 * 1024 * 1024

// UploadHandler accepts image uploads and hands back opaque storage keys.
type UploadHandler struct {
	store  blob.Store
	s3     *blob.S3 // nil unless the s3 driver is active
	client *http.Client
}

// NewUploadHandler creates an UploadHandler. s3 may be nil when running on
// local storage; the presign endpoint then reports a configuration error.
func NewUploadHandler(store blob.Store, s3 *blob.S3) *UploadHandler {
	return &UploadHandler{
		store:  store,
		s3:     s3,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

type uploadResponse struct {
	Key string `json:"key"`
}

// UploadLocal stores a multipart image upload. Dev-friendly fallback when
// not using presigned S3 uploads.
func (h *UploadHandler) UploadLocal(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "missing file field")
	}
	if fh.Size > maxUploadBytes {
		return echo.NewHTTPError(http.StatusBadRequest, "max file size is 5MB")
	}

	f, err := fh.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "unreadable upload")
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxUploadBytes+1))
	if err != nil {
		return err
	}
	if len(data) > maxUploadBytes {
		return echo.NewHTTPError(http.StatusBadRequest, "max file size is 5MB")
	}

	key, err := h.store.SaveBytes(c.Request().Context(), fh.Filename, data)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, uploadResponse{Key: key})
}

type uploadFromURLRequest struct {
	URL string `json:"url" validate:"required,url"`
}

// UploadFromURL fetches an image from a remote URL into storage.
func (h *UploadHandler) UploadFromURL(c echo.Context) error {
	var req uploadFromURLRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	resp, err := h.client.Get(req.URL)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("failed to fetch URL: %v", err))
	}
	defer resp.Body.Close()

	if !strings.HasPrefix(resp.Header.Get("Content-Type"), "image/") {
		return echo.NewHTTPError(http.StatusBadRequest, "URL did not return an image")
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxUploadBytes+1))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("failed to fetch URL: %v", err))
	}
	if len(data) > maxUploadBytes {
		return echo.NewHTTPError(http.StatusBadRequest, "max file size is 5MB")
	}

	filename := path.Base(resp.Request.URL.Path)
	if filename == "" || filename == "/" || filename == "." {
		filename = "url-image"
	}

	key, err := h.store.SaveBytes(c.Request().Context(), filename, data)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, uploadResponse{Key: key})
}

type presignPutRequest struct {
	Filename    string `json:"filename" validate:"required"`
	ContentType string `json:"contentType"`
}

// PresignPut issues a presigned S3 PUT URL for direct browser uploads.
func (h *UploadHandler) PresignPut(c echo.Context) error {
	if h.s3 == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "STORAGE_DRIVER must be s3 for presigned uploads")
	}

	var req presignPutRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	p, err := h.s3.PresignPut(c.Request().Context(), req.Filename, req.ContentType, 15*time.Minute)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}
