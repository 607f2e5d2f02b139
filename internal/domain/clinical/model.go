package clinical

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/radpilot/radpilot/internal/domain/questionnaire"
	"github.com/radpilot/radpilot/internal/platform/fhir"
)

const (
	StudyDraft      = "draft"
	StudyInProgress = "in-progress"
	StudyCompleted  = "completed"
)

const nhiSystem = "https://standards.digital.health.nz/ns/nhi-id"

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid study status transition")
)

// Patient maps to the patient table (FHIR Patient resource).
type Patient struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	FirstName   string     `db:"first_name" json:"first_name"`
	LastName    string     `db:"last_name" json:"last_name"`
	NHI         *string    `db:"nhi" json:"nhi,omitempty"`
	DateOfBirth *time.Time `db:"date_of_birth" json:"date_of_birth,omitempty"`
	Gender      *string    `db:"gender" json:"gender,omitempty"`
	VersionID   int        `db:"version_id" json:"version_id"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

func (p *Patient) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

func (p *Patient) ToFHIR() map[string]interface{} {
	result := map[string]interface{}{
		"resourceType": "Patient",
		"id":           p.ID.String(),
		"name": []map[string]interface{}{{
			"use":    "official",
			"family": p.LastName,
			"given":  []string{p.FirstName},
			"text":   p.FullName(),
		}},
		"meta": fhir.NewMeta(p.VersionID, p.UpdatedAt),
	}
	if p.NHI != nil {
		result["identifier"] = []fhir.Identifier{{System: nhiSystem, Value: *p.NHI}}
	}
	if p.Gender != nil {
		result["gender"] = strings.ToLower(*p.Gender)
	}
	if p.DateOfBirth != nil {
		result["birthDate"] = p.DateOfBirth.Format("2006-01-02")
	}
	return result
}

// Study maps to the study table (FHIR ImagingStudy resource). A study moves
// draft -> in-progress -> completed; completed is terminal.
type Study struct {
	ID                 uuid.UUID              `db:"id" json:"id"`
	PatientID          uuid.UUID              `db:"patient_id" json:"patient_id"`
	Modality           questionnaire.Modality `db:"modality" json:"modality"`
	Status             string                 `db:"status" json:"status"`
	StudyDate          time.Time              `db:"study_date" json:"study_date"`
	ClinicalIndication *string                `db:"clinical_indication" json:"clinical_indication,omitempty"`
	ReportID           *uuid.UUID             `db:"report_id" json:"report_id,omitempty"`
	VersionID          int                    `db:"version_id" json:"version_id"`
	CreatedAt          time.Time              `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time              `db:"updated_at" json:"updated_at"`
}

var studyTransitions = map[string]map[string]bool{
	StudyDraft:      {StudyInProgress: true},
	StudyInProgress: {StudyInProgress: true, StudyCompleted: true},
}

// Transition moves the study to status. Re-entering in-progress is allowed
// so every draft save can refresh the report back-reference.
func (s *Study) Transition(status string) error {
	if !studyTransitions[s.Status][status] {
		return ErrInvalidTransition
	}
	s.Status = status
	return nil
}

// dicomModality is the DICOM modality code for each catalog modality.
var dicomModality = map[questionnaire.Modality]fhir.Coding{
	questionnaire.ModalityUSAbdomen: {System: "http://dicom.nema.org/resources/ontology/DCM", Code: "US", Display: "Ultrasound"},
	questionnaire.ModalityCTAbdomen: {System: "http://dicom.nema.org/resources/ontology/DCM", Code: "CT", Display: "Computed Tomography"},
	questionnaire.ModalityChestXray: {System: "http://dicom.nema.org/resources/ontology/DCM", Code: "DX", Display: "Digital Radiography"},
}

func (s *Study) ToFHIR() map[string]interface{} {
	status := "registered"
	if s.Status != StudyDraft {
		status = "available"
	}
	result := map[string]interface{}{
		"resourceType": "ImagingStudy",
		"id":           s.ID.String(),
		"status":       status,
		"subject":      fhir.Reference{Reference: fhir.FormatReference("Patient", s.PatientID.String())},
		"started":      s.StudyDate.Format(time.RFC3339),
		"description":  string(s.Modality),
		"meta":         fhir.NewMeta(s.VersionID, s.UpdatedAt),
	}
	if coding, ok := dicomModality[s.Modality]; ok {
		result["modality"] = []fhir.Coding{coding}
	}
	if s.ClinicalIndication != nil {
		result["reasonCode"] = []fhir.CodeableConcept{{Text: *s.ClinicalIndication}}
	}
	return result
}
