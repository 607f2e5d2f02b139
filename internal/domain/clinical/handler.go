package clinical

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/radpilot/radpilot/internal/domain/questionnaire"
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
	api.GET("/patients", h.ListPatients)
	api.POST("/patients", h.CreatePatient)
	api.GET("/patients/:id", h.GetPatient)
	api.GET("/studies", h.ListStudies)
	api.POST("/studies", h.CreateStudy)
	api.GET("/studies/:id", h.GetStudy)

	fhirGroup.GET("/Patient/:id", h.GetPatientFHIR)
	fhirGroup.GET("/ImagingStudy/:id", h.GetImagingStudyFHIR)
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrInvalidTransition):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	default:
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
}

// -- Patient Handlers --

type patientRequest struct {
	FirstName   string  `json:"first_name"`
	LastName    string  `json:"last_name"`
	NHI         *string `json:"nhi"`
	DateOfBirth string  `json:"date_of_birth"`
	Gender      *string `json:"gender"`
}

func (h *Handler) CreatePatient(c echo.Context) error {
	var req patientRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p := &Patient{FirstName: req.FirstName, LastName: req.LastName, NHI: req.NHI, Gender: req.Gender}
	if req.DateOfBirth != "" {
		dob, err := time.Parse("2006-01-02", req.DateOfBirth)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid date_of_birth")
		}
		p.DateOfBirth = &dob
	}
	created, err := h.svc.CreatePatient(c.Request().Context(), p)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, created)
}

func (h *Handler) GetPatient(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	p, err := h.svc.GetPatient(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) ListPatients(c echo.Context) error {
	pg := pagination.FromContext(c)
	params := map[string]string{}
	if v := c.QueryParam("search"); v != "" {
		params["search"] = v
	}
	items, total, err := h.svc.SearchPatients(c.Request().Context(), params, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewPage(items, total, pg))
}

// -- Study Handlers --

type studyRequest struct {
	PatientID          uuid.UUID  `json:"patient_id"`
	Modality           string     `json:"modality"`
	StudyDate          *time.Time `json:"study_date"`
	ClinicalIndication *string    `json:"clinical_indication"`
}

func (h *Handler) CreateStudy(c echo.Context) error {
	var req studyRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	st := &Study{
		PatientID:          req.PatientID,
		Modality:           questionnaire.Modality(req.Modality),
		ClinicalIndication: req.ClinicalIndication,
	}
	if req.StudyDate != nil {
		st.StudyDate = req.StudyDate.UTC()
	}
	if err := h.svc.CreateStudy(c.Request().Context(), st); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, st)
}

func (h *Handler) GetStudy(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	st, err := h.svc.GetStudy(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, st)
}

func (h *Handler) ListStudies(c echo.Context) error {
	pg := pagination.FromContext(c)
	params := map[string]string{}
	if v := c.QueryParam("patient_id"); v != "" {
		if _, err := uuid.Parse(v); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
		}
		params["patient_id"] = v
	}
	for _, key := range []string{"status", "modality"} {
		if v := c.QueryParam(key); v != "" {
			params[key] = v
		}
	}
	items, total, err := h.svc.SearchStudies(c.Request().Context(), params, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewPage(items, total, pg))
}

// -- FHIR Endpoints --

func (h *Handler) GetPatientFHIR(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return fhir.JSON(c, http.StatusNotFound, fhir.NotFoundOutcome("Patient", c.Param("id")))
	}
	p, err := h.svc.GetPatient(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return fhir.JSON(c, http.StatusNotFound, fhir.NotFoundOutcome("Patient", c.Param("id")))
		}
		return fhir.JSON(c, http.StatusInternalServerError, fhir.ErrorOutcome(err.Error()))
	}
	return fhir.Read(c, p.VersionID, p.UpdatedAt, p.ToFHIR())
}

func (h *Handler) GetImagingStudyFHIR(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return fhir.JSON(c, http.StatusNotFound, fhir.NotFoundOutcome("ImagingStudy", c.Param("id")))
	}
	st, err := h.svc.GetStudy(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return fhir.JSON(c, http.StatusNotFound, fhir.NotFoundOutcome("ImagingStudy", c.Param("id")))
		}
		return fhir.JSON(c, http.StatusInternalServerError, fhir.ErrorOutcome(err.Error()))
	}
	return fhir.Read(c, st.VersionID, st.UpdatedAt, st.ToFHIR())
}
