package report

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/radpilot/radpilot/internal/domain/clinical"
	"github.com/radpilot/radpilot/internal/platform/signature"
)

const qrCodePixels = 256

// Verifier checks a report signature token.
type Verifier interface {
	Verify(token string) (*signature.Claims, error)
}

// Subjects looks up the patient and study printed on a report.
type Subjects interface {
	GetPatient(ctx context.Context, id uuid.UUID) (*clinical.Patient, error)
	GetStudy(ctx context.Context, id uuid.UUID) (*clinical.Study, error)
}

type Service struct {
	reports  Repository
	verifier Verifier
	subjects Subjects
}

func NewService(reports Repository, verifier Verifier) *Service {
	return &Service{reports: reports, verifier: verifier}
}

// UseSubjects fills the patient and study blocks of exported PDFs.
func (s *Service) UseSubjects(subjects Subjects) {
	s.subjects = subjects
}

// Save stores a report, creating it on first save.
func (s *Service) Save(ctx context.Context, r *Report) error {
	if r.StudyID == uuid.Nil {
		return errors.New("study_id is required")
	}
	if r.Status != StatusDraft && r.Status != StatusFinalized {
		return fmt.Errorf("invalid status: %s", r.Status)
	}
	_, err := s.reports.GetByID(ctx, r.ID)
	switch {
	case errors.Is(err, ErrNotFound):
		return s.reports.Create(ctx, r)
	case err != nil:
		return err
	}
	return s.reports.Update(ctx, r)
}

func (s *Service) GetReport(ctx context.Context, id uuid.UUID) (*Report, error) {
	return s.reports.GetByID(ctx, id)
}

func (s *Service) GetReportForStudy(ctx context.Context, studyID uuid.UUID) (*Report, error) {
	return s.reports.GetByStudy(ctx, studyID)
}

func (s *Service) SearchReports(ctx context.Context, params map[string]string, limit, offset int) ([]*Report, int, error) {
	return s.reports.Search(ctx, params, limit, offset)
}

// EditReport applies manual text changes to a stored draft.
func (s *Service) EditReport(ctx context.Context, id uuid.UUID, e Edit) (*Report, error) {
	r, err := s.reports.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := r.Edit(e); err != nil {
		return nil, err
	}
	if err := s.reports.Update(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// Verification is the outcome of checking a report's signature.
type Verification struct {
	ReportID        uuid.UUID  `json:"report_id"`
	Valid           bool       `json:"valid"`
	Reason          string     `json:"reason,omitempty"`
	RadiologistName string     `json:"radiologist_name,omitempty"`
	FinalizedAt     *time.Time `json:"finalized_at,omitempty"`
}

// VerifyReport checks that token was issued for this report and that the
// stored text still matches what was signed. An empty token checks the
// signature stored on the report.
func (s *Service) VerifyReport(ctx context.Context, id uuid.UUID, token string) (*Verification, error) {
	if s.verifier == nil {
		return nil, errors.New("signature verification is not configured")
	}
	r, err := s.reports.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	v := &Verification{ReportID: r.ID}
	if !r.IsFinalized() {
		v.Reason = "report is not finalized"
		return v, nil
	}
	if token == "" && r.Signature != nil {
		token = *r.Signature
	}
	claims, err := s.verifier.Verify(token)
	if err != nil {
		v.Reason = err.Error()
		return v, nil
	}
	switch {
	case claims.ReportID != r.ID.String():
		v.Reason = "signature belongs to a different report"
	case claims.ContentHash != r.ContentHash():
		v.Reason = "report content does not match signature"
	default:
		v.Valid = true
		v.RadiologistName = claims.RadiologistName
		v.FinalizedAt = r.FinalizedAt
	}
	return v, nil
}

// QRCode returns the PNG QR code printed on a finalized report.
func (s *Service) QRCode(ctx context.Context, id uuid.UUID) ([]byte, error) {
	r, err := s.reports.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !r.IsFinalized() || r.QRCodeURL == nil {
		return nil, ErrNotFinalized
	}
	return signature.QRCodePNG(*r.QRCodeURL, qrCodePixels)
}

// PDF renders a finalized report for printing. Drafts are refused with
// ErrNotFinalized.
func (s *Service) PDF(ctx context.Context, id uuid.UUID) (*Report, []byte, error) {
	r, err := s.reports.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if !r.IsFinalized() {
		return nil, nil, ErrNotFinalized
	}
	doc := Document{Report: r}
	if s.subjects != nil {
		study, err := s.subjects.GetStudy(ctx, r.StudyID)
		if err != nil {
			return nil, nil, fmt.Errorf("load study %s: %w", r.StudyID, err)
		}
		patient, err := s.subjects.GetPatient(ctx, study.PatientID)
		if err != nil {
			return nil, nil, fmt.Errorf("load patient %s: %w", study.PatientID, err)
		}
		doc.Study, doc.Patient = study, patient
	}
	if r.QRCodeURL != nil {
		if doc.QRCode, err = signature.QRCodePNG(*r.QRCodeURL, qrCodePixels); err != nil {
			return nil, nil, err
		}
	}
	out, err := RenderPDF(doc)
	if err != nil {
		return nil, nil, err
	}
	return r, out, nil
}
