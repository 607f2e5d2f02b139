package report

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/radpilot/radpilot/internal/platform/fhir"
	"github.com/radpilot/radpilot/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group, fhirGroup *echo.Group) {
	api.GET("/reports", h.ListReports)
	api.GET("/reports/:id", h.GetReport)
	api.PUT("/reports/:id", h.EditReport)
	api.GET("/reports/:id/verify", h.VerifyReport)
	api.GET("/reports/:id/pdf", h.DownloadPDF)
	api.GET("/reports/:id/qr", h.GetQRCode)

	fhirGroup.GET("/DiagnosticReport/:id", h.GetDiagnosticReportFHIR)
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "report not found")
	case errors.Is(err, ErrReportFinalized), errors.Is(err, ErrVersionConflict), errors.Is(err, ErrNotFinalized):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	default:
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
}

func (h *Handler) GetReport(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	r, err := h.svc.GetReport(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, r)
}

func (h *Handler) ListReports(c echo.Context) error {
	pg := pagination.FromContext(c)
	params := map[string]string{}
	for _, key := range []string{"study_id", "patient_id", "status", "modality"} {
		if v := c.QueryParam(key); v != "" {
			params[key] = v
		}
	}
	for _, key := range []string{"study_id", "patient_id"} {
		if v, ok := params[key]; ok {
			if _, err := uuid.Parse(v); err != nil {
				return echo.NewHTTPError(http.StatusBadRequest, "invalid "+key)
			}
		}
	}
	items, total, err := h.svc.SearchReports(c.Request().Context(), params, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewPage(items, total, pg))
}

func (h *Handler) EditReport(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var e Edit
	if err := c.Bind(&e); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	r, err := h.svc.EditReport(c.Request().Context(), id, e)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, r)
}

func (h *Handler) VerifyReport(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	v, err := h.svc.VerifyReport(c.Request().Context(), id, c.QueryParam("token"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) DownloadPDF(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	r, out, err := h.svc.PDF(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrNotFinalized) {
			return httpError(err)
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="report-%s.pdf"`, r.ID))
	return c.Blob(http.StatusOK, "application/pdf", out)
}

func (h *Handler) GetQRCode(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	png, err := h.svc.QRCode(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrNotFinalized) {
			return httpError(err)
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.Blob(http.StatusOK, "image/png", png)
}

func (h *Handler) GetDiagnosticReportFHIR(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return fhir.JSON(c, http.StatusNotFound, fhir.NotFoundOutcome("DiagnosticReport", c.Param("id")))
	}
	r, err := h.svc.GetReport(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return fhir.JSON(c, http.StatusNotFound, fhir.NotFoundOutcome("DiagnosticReport", c.Param("id")))
		}
		return fhir.JSON(c, http.StatusInternalServerError, fhir.ErrorOutcome(err.Error()))
	}
	return fhir.Read(c, r.VersionID, r.UpdatedAt, r.ToFHIR())
}
