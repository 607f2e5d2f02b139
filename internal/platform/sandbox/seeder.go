// Package sandbox seeds demo patients and studies for development and demo
// environments.
package sandbox

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/radpilot/radpilot/internal/domain/clinical"
	"github.com/radpilot/radpilot/internal/domain/questionnaire"
)

// Clinical is the patient and study store the seeder writes through.
type Clinical interface {
	CreatePatient(ctx context.Context, p *clinical.Patient) (*clinical.Patient, error)
	CreateStudy(ctx context.Context, st *clinical.Study) error
	SearchStudies(ctx context.Context, params map[string]string, limit, offset int) ([]*clinical.Study, int, error)
}

type demoPatient struct {
	first, last, nhi, dob, gender string
}

type demoStudy struct {
	nhi        string
	modality   questionnaire.Modality
	indication string
}

var demoPatients = []demoPatient{
	{"John", "Smith", "ABC1234", "1975-06-15", "male"},
	{"Emma", "Johnson", "DEF5678", "1988-03-22", "female"},
	{"Michael", "Williams", "GHI9012", "1962-11-08", "male"},
}

var demoStudies = []demoStudy{
	{"ABC1234", questionnaire.ModalityUSAbdomen, "Right upper quadrant pain, query cholecystitis."},
	{"DEF5678", questionnaire.ModalityCTAbdomen, "Left iliac fossa pain, query diverticulitis."},
}

// SeedResult lists what a seed run created or found already present.
type SeedResult struct {
	Patients []*clinical.Patient `json:"patients"`
	Studies  []*clinical.Study   `json:"studies"`
}

type Seeder struct {
	clinical Clinical
	logger   zerolog.Logger
}

func NewSeeder(c Clinical, logger zerolog.Logger) *Seeder {
	return &Seeder{clinical: c, logger: logger}
}

// Seed creates the demo patients and their studies. Patients are matched on
// NHI and a study is only added for a patient with no study of that modality,
// so running it again changes nothing.
func (s *Seeder) Seed(ctx context.Context) (*SeedResult, error) {
	result := &SeedResult{}
	byNHI := make(map[string]*clinical.Patient, len(demoPatients))

	for _, dp := range demoPatients {
		dob, err := time.Parse("2006-01-02", dp.dob)
		if err != nil {
			return nil, fmt.Errorf("demo patient %s: %w", dp.nhi, err)
		}
		nhi, gender := dp.nhi, dp.gender
		p, err := s.clinical.CreatePatient(ctx, &clinical.Patient{
			FirstName:   dp.first,
			LastName:    dp.last,
			NHI:         &nhi,
			DateOfBirth: &dob,
			Gender:      &gender,
		})
		if err != nil {
			return nil, fmt.Errorf("seed patient %s: %w", dp.nhi, err)
		}
		byNHI[dp.nhi] = p
		result.Patients = append(result.Patients, p)
	}

	for _, ds := range demoStudies {
		p := byNHI[ds.nhi]
		existing, _, err := s.clinical.SearchStudies(ctx, map[string]string{
			"patient_id": p.ID.String(),
			"modality":   string(ds.modality),
		}, 1, 0)
		if err != nil {
			return nil, fmt.Errorf("look up studies for %s: %w", ds.nhi, err)
		}
		if len(existing) > 0 {
			result.Studies = append(result.Studies, existing[0])
			continue
		}

		indication := ds.indication
		st := &clinical.Study{PatientID: p.ID, Modality: ds.modality, ClinicalIndication: &indication}
		if err := s.clinical.CreateStudy(ctx, st); err != nil {
			return nil, fmt.Errorf("seed %s study for %s: %w", ds.modality, ds.nhi, err)
		}
		result.Studies = append(result.Studies, st)
	}

	s.logger.Info().
		Int("patients", len(result.Patients)).
		Int("studies", len(result.Studies)).
		Msg("demo data seeded")
	return result, nil
}

type Handler struct {
	seeder *Seeder
}

func NewHandler(seeder *Seeder) *Handler {
	return &Handler{seeder: seeder}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/seed", h.Seed)
}

func (h *Handler) Seed(c echo.Context) error {
	result, err := h.seeder.Seed(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, result)
}
