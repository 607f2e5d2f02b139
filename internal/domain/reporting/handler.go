package reporting

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/radpilot/radpilot/internal/domain/clinical"
	"github.com/radpilot/radpilot/internal/domain/questionnaire"
	"github.com/radpilot/radpilot/internal/domain/report"
	"github.com/radpilot/radpilot/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	s := api.Group("/session")
	s.POST("", h.Open)
	s.GET("", h.State)
	s.DELETE("", h.Close)
	s.PUT("/answers/:question_id", h.SetAnswer)
	s.DELETE("/answers/:question_id", h.ClearAnswer)
	s.POST("/next", h.Next)
	s.POST("/previous", h.Previous)
	s.POST("/jump", h.Jump)
	s.GET("/preview", h.Preview)
	s.POST("/report", h.Generate)
	s.PUT("/report", h.Edit)
	s.POST("/report/save", h.SaveDraft)
	s.POST("/report/finalize", h.Finalize)
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrNoSession), errors.Is(err, clinical.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, report.ErrReportFinalized), errors.Is(err, report.ErrVersionConflict),
		errors.Is(err, ErrNoReport), errors.Is(err, clinical.ErrInvalidTransition):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, report.ErrConsentRequired):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	default:
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
}

func radiologist(c echo.Context) auth.Radiologist {
	return auth.RadiologistFromContext(c.Request().Context())
}

type openRequest struct {
	StudyID string `json:"study_id"`
}

func (h *Handler) Open(c echo.Context) error {
	var req openRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	studyID, err := uuid.Parse(req.StudyID)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid study_id")
	}
	st, err := h.svc.Open(c.Request().Context(), radiologist(c).ID, studyID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, st)
}

func (h *Handler) State(c echo.Context) error {
	st, err := h.svc.State(radiologist(c).ID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, st)
}

func (h *Handler) Close(c echo.Context) error {
	if err := h.svc.Close(radiologist(c).ID); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

type answerRequest struct {
	Value questionnaire.Value `json:"value"`
}

func (h *Handler) SetAnswer(c echo.Context) error {
	var req answerRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Value.IsZero() {
		return echo.NewHTTPError(http.StatusBadRequest, "value is required")
	}
	st, err := h.svc.SetAnswer(radiologist(c).ID, c.Param("question_id"), req.Value)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, st)
}

func (h *Handler) ClearAnswer(c echo.Context) error {
	st, err := h.svc.ClearAnswer(radiologist(c).ID, c.Param("question_id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, st)
}

type nextResponse struct {
	Outcome questionnaire.Outcome `json:"outcome"`
	*State
}

func (h *Handler) Next(c echo.Context) error {
	outcome, st, err := h.svc.Next(radiologist(c).ID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, nextResponse{Outcome: outcome, State: st})
}

func (h *Handler) Previous(c echo.Context) error {
	st, err := h.svc.Previous(radiologist(c).ID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, st)
}

type jumpRequest struct {
	Index *int `json:"index"`
}

func (h *Handler) Jump(c echo.Context) error {
	var req jumpRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Index == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "index is required")
	}
	st, err := h.svc.Jump(radiologist(c).ID, *req.Index)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, st)
}

func (h *Handler) Preview(c echo.Context) error {
	p, err := h.svc.Preview(radiologist(c).ID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) Generate(c echo.Context) error {
	r, err := h.svc.Generate(radiologist(c).ID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, r)
}

func (h *Handler) Edit(c echo.Context) error {
	var e report.Edit
	if err := c.Bind(&e); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	r, err := h.svc.Edit(radiologist(c).ID, e)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, r)
}

func (h *Handler) SaveDraft(c echo.Context) error {
	r, err := h.svc.SaveDraft(c.Request().Context(), radiologist(c).ID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, r)
}

type finalizeRequest struct {
	Consent bool `json:"consent"`
}

func (h *Handler) Finalize(c echo.Context) error {
	var req finalizeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	rad := radiologist(c)
	r, err := h.svc.Finalize(c.Request().Context(), rad.ID, rad.Name, req.Consent)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, r)
}
