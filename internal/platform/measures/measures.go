// Package measures evaluates department-level reporting measures directly
// against the PostgreSQL store.
package measures

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/labstack/echo/v4"
)

type Definition struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	SQL         string   `json:"-"`
	Parameters  []string `json:"parameters"`
}

type Report struct {
	MeasureID   string                   `json:"measure_id"`
	MeasureName string                   `json:"measure_name"`
	GeneratedAt time.Time                `json:"generated_at"`
	Results     []map[string]interface{} `json:"results"`
	Parameters  map[string]string        `json:"parameters,omitempty"`
}

// Predefined measures. Parameters are bound positionally in the order listed.
var Predefined = []Definition{
	{
		ID:          "study-status",
		Name:        "Studies by Status",
		Description: "Number of studies in each workflow status, per modality",
		SQL:         `SELECT modality, status, COUNT(*) AS total FROM study GROUP BY modality, status ORDER BY modality, status`,
	},
	{
		ID:          "report-status",
		Name:        "Reports by Status",
		Description: "Number of draft and finalized reports, per modality",
		SQL:         `SELECT modality, status, COUNT(*) AS total FROM radiology_report GROUP BY modality, status ORDER BY modality, status`,
	},
	{
		ID:          "radiologist-output",
		Name:        "Finalized Reports per Radiologist",
		Description: "Finalized reports signed by each radiologist since a date (YYYY-MM-DD)",
		SQL: `SELECT radiologist_id, radiologist_name, COUNT(*) AS total
			FROM radiology_report
			WHERE status = 'finalized' AND finalized_at >= $1::date
			GROUP BY radiologist_id, radiologist_name ORDER BY total DESC`,
		Parameters: []string{"since"},
	},
	{
		ID:          "turnaround",
		Name:        "Report Turnaround",
		Description: "Average hours from study date to finalized report, per modality",
		SQL: `SELECT s.modality, COUNT(*) AS total,
				ROUND(AVG(EXTRACT(EPOCH FROM (r.finalized_at - s.study_date)) / 3600)::numeric, 1) AS avg_hours
			FROM radiology_report r JOIN study s ON s.id = r.study_id
			WHERE r.status = 'finalized'
			GROUP BY s.modality ORDER BY s.modality`,
	},
}

func Find(id string) *Definition {
	for i := range Predefined {
		if Predefined[i].ID == id {
			return &Predefined[i]
		}
	}
	return nil
}

// Querier runs a measure query. *pgxpool.Pool satisfies it.
type Querier interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
}

type Handler struct {
	db  Querier
	now func() time.Time
}

func NewHandler(db Querier) *Handler {
	return &Handler{db: db, now: time.Now}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/measures", h.ListMeasures)
	api.GET("/measures/:id/evaluate", h.EvaluateMeasure)
}

func (h *Handler) ListMeasures(c echo.Context) error {
	return c.JSON(http.StatusOK, Predefined)
}

func (h *Handler) EvaluateMeasure(c echo.Context) error {
	m := Find(c.Param("id"))
	if m == nil {
		return echo.NewHTTPError(http.StatusNotFound, "measure not found")
	}

	params := map[string]string{}
	args := make([]interface{}, 0, len(m.Parameters))
	for _, p := range m.Parameters {
		v := c.QueryParam(p)
		if v == "" {
			return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("%s is required", p))
		}
		params[p] = v
		args = append(args, v)
	}

	results, err := h.evaluate(c.Request().Context(), m.SQL, args...)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("query failed: %v", err))
	}

	return c.JSON(http.StatusOK, Report{
		MeasureID:   m.ID,
		MeasureName: m.Name,
		GeneratedAt: h.now().UTC(),
		Results:     results,
		Parameters:  params,
	})
}

func (h *Handler) evaluate(ctx context.Context, sql string, args ...interface{}) ([]map[string]interface{}, error) {
	rows, err := h.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	results := []map[string]interface{}{}
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		row := make(map[string]interface{}, len(fields))
		for i, fd := range fields {
			row[fd.Name] = values[i]
		}
		results = append(results, row)
	}
	return results, rows.Err()
}
