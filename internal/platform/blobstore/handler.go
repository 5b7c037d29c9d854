package blobstore

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/healthhub/healthhub/internal/platform/auth"
)

type listResponse struct {
	Items []*BlobMetadata `json:"items"`
	Total int             `json:"total"`
}

// BlobHandler serves the caller's own files.
type BlobHandler struct {
	store BlobStore
}

func NewBlobHandler(store BlobStore) *BlobHandler {
	return &BlobHandler{store: store}
}

func (h *BlobHandler) RegisterRoutes(g *echo.Group) {
	g.POST("/files", h.handleUpload)
	g.GET("/files", h.handleList)
	g.GET("/files/:id/metadata", h.handleGetMetadata)
	g.GET("/files/:id", h.handleDownload)
	g.DELETE("/files/:id", h.handleDelete)
}

func (h *BlobHandler) handleUpload(c echo.Context) error {
	userID, err := auth.RequireUser(c)
	if err != nil {
		return err
	}
	file, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "file is required")
	}
	src, err := file.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to open uploaded file")
	}
	defer src.Close()

	meta := BlobMetadata{
		OwnerID:       userID,
		FileName:      file.Filename,
		ContentType:   file.Header.Get("Content-Type"),
		Category:      c.FormValue("category"),
		AppointmentID: c.FormValue("appointment_id"),
	}
	result, err := h.store.Upload(c.Request().Context(), meta, src)
	if err != nil {
		return UploadError(err)
	}
	return c.JSON(http.StatusCreated, result)
}

// UploadError maps store errors from Upload to HTTP errors.
func UploadError(err error) error {
	switch {
	case errors.Is(err, ErrFileTooLarge):
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, ErrMissingFileName), errors.Is(err, ErrMissingOwner):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrInvalidContentType):
		return echo.NewHTTPError(http.StatusUnsupportedMediaType, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

func lookupError(err error) error {
	if errors.Is(err, ErrBlobNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}

func (h *BlobHandler) handleDownload(c echo.Context) error {
	userID, err := auth.RequireUser(c)
	if err != nil {
		return err
	}
	rc, meta, err := h.store.Download(c.Request().Context(), userID, c.Param("id"))
	if err != nil {
		return lookupError(err)
	}
	defer rc.Close()

	c.Response().Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, meta.FileName))
	return c.Stream(http.StatusOK, meta.ContentType, rc)
}

func (h *BlobHandler) handleGetMetadata(c echo.Context) error {
	userID, err := auth.RequireUser(c)
	if err != nil {
		return err
	}
	meta, err := h.store.GetMetadata(c.Request().Context(), userID, c.Param("id"))
	if err != nil {
		return lookupError(err)
	}
	return c.JSON(http.StatusOK, meta)
}

func (h *BlobHandler) handleDelete(c echo.Context) error {
	userID, err := auth.RequireUser(c)
	if err != nil {
		return err
	}
	if err := h.store.Delete(c.Request().Context(), userID, c.Param("id")); err != nil {
		return lookupError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *BlobHandler) handleList(c echo.Context) error {
	userID, err := auth.RequireUser(c)
	if err != nil {
		return err
	}
	items, err := h.store.ListByOwner(c.Request().Context(), userID, c.QueryParam("category"), c.QueryParam("appointment_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, listResponse{Items: items, Total: len(items)})
}
