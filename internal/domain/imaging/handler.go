package imaging

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/radpilot/radpilot/internal/domain/clinical"
	"github.com/radpilot/radpilot/internal/platform/auth"
	"github.com/radpilot/radpilot/internal/platform/blobstore"
	"github.com/radpilot/radpilot/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/studies/:id/images", h.UploadImages)
	api.GET("/studies/:id/images", h.ListImages)
	api.GET("/images/:image_id", h.GetImage)
	api.GET("/images/:image_id/content", h.DownloadImage)
	api.DELETE("/images/:image_id", h.DeleteImage)
}

func httpError(err error) error {
	switch {
	case errors.Is(err, clinical.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "study not found")
	case errors.Is(err, blobstore.ErrBlobNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "image not found")
	case errors.Is(err, blobstore.ErrFileTooLarge):
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, err.Error())
	default:
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
}

// UploadImages accepts one or more multipart "file" parts.
func (h *Handler) UploadImages(c echo.Context) error {
	studyID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	form, err := c.MultipartForm()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "multipart form is required")
	}
	files := form.File["file"]
	if len(files) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "file is required")
	}

	uploadedBy := auth.RadiologistFromContext(c.Request().Context()).ID
	out := make([]*Image, 0, len(files))
	for _, fh := range files {
		src, err := fh.Open()
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("open %s: %v", fh.Filename, err))
		}
		img, err := h.svc.Upload(c.Request().Context(), studyID, uploadedBy, fh.Filename, fh.Header.Get("Content-Type"), src)
		src.Close()
		if err != nil {
			return httpError(err)
		}
		out = append(out, img)
	}
	return c.JSON(http.StatusCreated, out)
}

func (h *Handler) ListImages(c echo.Context) error {
	studyID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListImages(c.Request().Context(), studyID, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewPage(items, total, pg))
}

func (h *Handler) GetImage(c echo.Context) error {
	img, err := h.svc.GetImage(c.Request().Context(), c.Param("image_id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, img)
}

func (h *Handler) DownloadImage(c echo.Context) error {
	rc, img, err := h.svc.OpenImage(c.Request().Context(), c.Param("image_id"))
	if err != nil {
		return httpError(err)
	}
	defer rc.Close()
	c.Response().Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, img.FileName))
	return c.Stream(http.StatusOK, img.ContentType, rc)
}

func (h *Handler) DeleteImage(c echo.Context) error {
	if err := h.svc.DeleteImage(c.Request().Context(), c.Param("image_id")); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
