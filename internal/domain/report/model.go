package report

import (
	"encoding/base64"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/radpilot/radpilot/internal/domain/questionnaire"
	"github.com/radpilot/radpilot/internal/domain/reportgen"
	"github.com/radpilot/radpilot/internal/platform/fhir"
	"github.com/radpilot/radpilot/internal/platform/signature"
)

const (
	StatusDraft     = "draft"
	StatusFinalized = "finalized"
)

var (
	ErrNotFound        = errors.New("report not found")
	ErrReportFinalized = errors.New("report is finalized")
	ErrConsentRequired = errors.New("consent is required to finalize a report")
	ErrVersionConflict = errors.New("report was changed by another writer")
	ErrNotFinalized    = errors.New("report is not finalized")
)

// Report is a radiology report for one study. It starts as a draft and is
// finalized at most once; after that its text and sign-off never change.
type Report struct {
	ID              uuid.UUID              `db:"id" json:"id"`
	StudyID         uuid.UUID              `db:"study_id" json:"study_id"`
	PatientID       uuid.UUID              `db:"patient_id" json:"patient_id"`
	Modality        questionnaire.Modality `db:"modality" json:"modality"`
	Technique       string                 `db:"technique" json:"technique"`
	Findings        string                 `db:"findings" json:"findings"`
	Impression      string                 `db:"impression" json:"impression"`
	InternalChecks  []string               `db:"internal_checks" json:"internal_checks"`
	Status          string                 `db:"status" json:"status"`
	RadiologistID   *string                `db:"radiologist_id" json:"radiologist_id,omitempty"`
	RadiologistName *string                `db:"radiologist_name" json:"radiologist_name,omitempty"`
	FinalizedAt     *time.Time             `db:"finalized_at" json:"finalized_at,omitempty"`
	QRCodeURL       *string                `db:"qr_code_url" json:"qr_code_url,omitempty"`
	Signature       *string                `db:"signature" json:"signature,omitempty"`
	VersionID       int                    `db:"version_id" json:"version_id"`
	CreatedAt       time.Time              `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time              `db:"updated_at" json:"updated_at"`
}

// NewDraft creates a draft report from generated content.
func NewDraft(studyID, patientID uuid.UUID, m questionnaire.Modality, content reportgen.Content, checks []string) *Report {
	return &Report{
		ID:             uuid.New(),
		StudyID:        studyID,
		PatientID:      patientID,
		Modality:       m,
		Technique:      content.Technique,
		Findings:       content.Findings,
		Impression:     content.Impression,
		InternalChecks: checks,
		Status:         StatusDraft,
	}
}

func (r *Report) IsFinalized() bool { return r.Status == StatusFinalized }

// Regenerate replaces the draft text with freshly generated content.
func (r *Report) Regenerate(content reportgen.Content, checks []string) error {
	if r.IsFinalized() {
		return ErrReportFinalized
	}
	r.Technique = content.Technique
	r.Findings = content.Findings
	r.Impression = content.Impression
	r.InternalChecks = checks
	return nil
}

// Edit holds manual changes to a draft. Nil fields are left unchanged.
type Edit struct {
	Technique  *string `json:"technique"`
	Findings   *string `json:"findings"`
	Impression *string `json:"impression"`
}

func (r *Report) Edit(e Edit) error {
	if r.IsFinalized() {
		return ErrReportFinalized
	}
	if e.Technique != nil {
		r.Technique = *e.Technique
	}
	if e.Findings != nil {
		r.Findings = *e.Findings
	}
	if e.Impression != nil {
		r.Impression = *e.Impression
	}
	return nil
}

// Signoff is what a radiologist supplies to finalize a report.
type Signoff struct {
	Consent         bool
	RadiologistID   string
	RadiologistName string
	At              time.Time
	QRCodeURL       string
	Signature       string
}

// Finalize signs the report. It requires explicit consent and can only
// happen once.
func (r *Report) Finalize(s Signoff) error {
	if r.IsFinalized() {
		return ErrReportFinalized
	}
	if !s.Consent {
		return ErrConsentRequired
	}
	if s.RadiologistID == "" {
		return errors.New("radiologist_id is required")
	}
	if s.RadiologistName == "" {
		return errors.New("radiologist_name is required")
	}
	if s.At.IsZero() {
		return errors.New("finalized_at is required")
	}
	at := s.At.UTC()
	r.Status = StatusFinalized
	r.RadiologistID = &s.RadiologistID
	r.RadiologistName = &s.RadiologistName
	r.FinalizedAt = &at
	if s.QRCodeURL != "" {
		r.QRCodeURL = &s.QRCodeURL
	}
	if s.Signature != "" {
		r.Signature = &s.Signature
	}
	return nil
}

// ContentHash fingerprints the report text for signing.
func (r *Report) ContentHash() string {
	return signature.ContentHash(r.Technique, r.Findings, r.Impression)
}

// Text renders the report body as plain text.
func (r *Report) Text() string {
	return "TECHNIQUE\n" + r.Technique + "\n\nFINDINGS\n" + r.Findings + "\n\nIMPRESSION\n" + r.Impression + "\n"
}

// Clone returns a copy of the report with its own checks slice.
func (r *Report) Clone() *Report {
	cp := *r
	if r.InternalChecks != nil {
		cp.InternalChecks = append([]string(nil), r.InternalChecks...)
	}
	return &cp
}

func (r *Report) ToFHIR() map[string]interface{} {
	status := "preliminary"
	if r.IsFinalized() {
		status = "final"
	}
	result := map[string]interface{}{
		"resourceType": "DiagnosticReport",
		"id":           r.ID.String(),
		"status":       status,
		"category": []fhir.CodeableConcept{{
			Coding: []fhir.Coding{{
				System:  "http://terminology.hl7.org/CodeSystem/v2-0074",
				Code:    "RAD",
				Display: "Radiology",
			}},
		}},
		"code": fhir.CodeableConcept{
			Coding: []fhir.Coding{{
				System:  "http://loinc.org",
				Code:    "18748-4",
				Display: "Diagnostic imaging study",
			}},
			Text: string(r.Modality),
		},
		"subject":      fhir.Reference{Reference: fhir.FormatReference("Patient", r.PatientID.String())},
		"imagingStudy": []fhir.Reference{{Reference: fhir.FormatReference("ImagingStudy", r.StudyID.String())}},
		"conclusion":   r.Impression,
		"presentedForm": []map[string]string{{
			"contentType": "text/plain",
			"title":       "Radiology report",
			"data":        base64.StdEncoding.EncodeToString([]byte(r.Text())),
		}},
		"meta": fhir.NewMeta(r.VersionID, r.UpdatedAt),
	}
	if r.RadiologistID != nil {
		interpreter := fhir.Reference{Reference: fhir.FormatReference("Practitioner", *r.RadiologistID)}
		if r.RadiologistName != nil {
			interpreter.Display = *r.RadiologistName
		}
		result["resultsInterpreter"] = []fhir.Reference{interpreter}
	}
	if r.FinalizedAt != nil {
		result["issued"] = r.FinalizedAt.Format(time.RFC3339)
	}
	if r.QRCodeURL != nil {
		result["identifier"] = []fhir.Identifier{{System: "urn:radpilot:report-qr", Value: *r.QRCodeURL}}
	}
	return result
}
