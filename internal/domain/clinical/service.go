package clinical

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/radpilot/radpilot/internal/domain/questionnaire"
)

type Service struct {
	patients PatientRepository
	studies  StudyRepository
	now      func() time.Time
}

func NewService(patients PatientRepository, studies StudyRepository) *Service {
	return &Service{patients: patients, studies: studies, now: time.Now}
}

// -- Patient --

var validGenders = map[string]bool{
	"male": true, "female": true, "other": true, "unknown": true,
}

// CreatePatient stores a new patient. A patient whose NHI is already on
// record is returned unchanged instead of being duplicated.
func (s *Service) CreatePatient(ctx context.Context, p *Patient) (*Patient, error) {
	p.FirstName = strings.TrimSpace(p.FirstName)
	p.LastName = strings.TrimSpace(p.LastName)
	if p.FirstName == "" {
		return nil, fmt.Errorf("first_name is required")
	}
	if p.LastName == "" {
		return nil, fmt.Errorf("last_name is required")
	}
	if p.Gender != nil {
		g := strings.ToLower(*p.Gender)
		if !validGenders[g] {
			return nil, fmt.Errorf("invalid gender: %s", *p.Gender)
		}
		p.Gender = &g
	}
	if p.NHI != nil {
		nhi := strings.ToUpper(strings.TrimSpace(*p.NHI))
		if nhi == "" {
			p.NHI = nil
		} else {
			p.NHI = &nhi
			existing, err := s.patients.GetByNHI(ctx, nhi)
			if err == nil {
				return existing, nil
			}
			if !errors.Is(err, ErrNotFound) {
				return nil, err
			}
		}
	}
	if err := s.patients.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.patients.GetByID(ctx, id)
}

func (s *Service) SearchPatients(ctx context.Context, params map[string]string, limit, offset int) ([]*Patient, int, error) {
	return s.patients.Search(ctx, params, limit, offset)
}

// -- Study --

func (s *Service) CreateStudy(ctx context.Context, st *Study) error {
	if st.PatientID == uuid.Nil {
		return fmt.Errorf("patient_id is required")
	}
	m, err := questionnaire.ParseModality(string(st.Modality))
	if err != nil {
		return err
	}
	if _, err := s.patients.GetByID(ctx, st.PatientID); err != nil {
		return err
	}
	st.Modality = m
	st.Status = StudyDraft
	st.ReportID = nil
	if st.StudyDate.IsZero() {
		st.StudyDate = s.now().UTC()
	}
	return s.studies.Create(ctx, st)
}

func (s *Service) GetStudy(ctx context.Context, id uuid.UUID) (*Study, error) {
	return s.studies.GetByID(ctx, id)
}

func (s *Service) SearchStudies(ctx context.Context, params map[string]string, limit, offset int) ([]*Study, int, error) {
	return s.studies.Search(ctx, params, limit, offset)
}

// MarkStudyInProgress records that a draft report has been saved for the study.
func (s *Service) MarkStudyInProgress(ctx context.Context, id, reportID uuid.UUID) (*Study, error) {
	st, err := s.studies.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := st.Transition(StudyInProgress); err != nil {
		return nil, fmt.Errorf("study %s is %s: %w", st.ID, st.Status, err)
	}
	st.ReportID = &reportID
	if err := s.studies.Update(ctx, st); err != nil {
		return nil, err
	}
	return st, nil
}

// MarkStudyCompleted records that the study's report has been finalized.
func (s *Service) MarkStudyCompleted(ctx context.Context, id uuid.UUID) (*Study, error) {
	st, err := s.studies.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := st.Transition(StudyCompleted); err != nil {
		return nil, fmt.Errorf("study %s is %s: %w", st.ID, st.Status, err)
	}
	if err := s.studies.Update(ctx, st); err != nil {
		return nil, err
	}
	return st, nil
}
