package questionnaire

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Handler serves the read-only question catalogs.
type Handler struct{}

func NewHandler() *Handler {
	return &Handler{}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/catalogs", h.ListCatalogs)
	api.GET("/catalogs/:modality", h.GetCatalog)
}

type catalogSummary struct {
	Modality      Modality `json:"modality"`
	Title         string   `json:"title"`
	QuestionCount int      `json:"question_count"`
	Sections      []string `json:"sections"`
}

func summarize(c Catalog) catalogSummary {
	s := catalogSummary{Modality: c.Modality, Title: c.Title, QuestionCount: len(c.Questions)}
	seen := map[string]bool{}
	for _, q := range c.Questions {
		if !seen[q.Section] {
			seen[q.Section] = true
			s.Sections = append(s.Sections, q.Section)
		}
	}
	return s
}

func (h *Handler) ListCatalogs(c echo.Context) error {
	out := make([]catalogSummary, 0, len(Modalities()))
	for _, m := range Modalities() {
		cat, err := Lookup(m)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		out = append(out, summarize(cat))
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) GetCatalog(c echo.Context) error {
	m, err := ParseModality(c.Param("modality"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	cat, err := Lookup(m)
	if errors.Is(err, ErrUnknownModality) {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, cat)
}
