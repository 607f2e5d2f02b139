// Package fhir holds the small slice of FHIR R4 used to export patients,
// imaging studies and diagnostic reports, plus the echo helpers that serve
// them.
package fhir

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
)

// MIMEFHIRJSON is the media type of FHIR JSON responses.
const MIMEFHIRJSON = "application/fhir+json"

type Meta struct {
	VersionID   string    `json:"versionId,omitempty"`
	LastUpdated time.Time `json:"lastUpdated"`
}

func NewMeta(versionID int, lastUpdated time.Time) Meta {
	m := Meta{LastUpdated: lastUpdated.UTC()}
	if versionID > 0 {
		m.VersionID = strconv.Itoa(versionID)
	}
	return m
}

type Coding struct {
	System  string `json:"system,omitempty"`
	Code    string `json:"code,omitempty"`
	Display string `json:"display,omitempty"`
}

type CodeableConcept struct {
	Coding []Coding `json:"coding,omitempty"`
	Text   string   `json:"text,omitempty"`
}

type Reference struct {
	Reference string `json:"reference,omitempty"`
	Type      string `json:"type,omitempty"`
	Display   string `json:"display,omitempty"`
}

type Identifier struct {
	Use    string `json:"use,omitempty"`
	System string `json:"system,omitempty"`
	Value  string `json:"value,omitempty"`
}

// FormatReference returns a relative reference such as "Patient/123".
func FormatReference(resourceType, id string) string {
	return resourceType + "/" + id
}

// IssueSeverity and IssueType take values from the FHIR issue-severity and
// issue-type code systems.
type (
	IssueSeverity string
	IssueType     string
)

const (
	SeverityError   IssueSeverity = "error"
	SeverityWarning IssueSeverity = "warning"

	IssueNotFound   IssueType = "not-found"
	IssueProcessing IssueType = "processing"
	IssueInvalid    IssueType = "invalid"
)

type OperationOutcome struct {
	ResourceType string  `json:"resourceType"`
	Issue        []Issue `json:"issue"`
}

type Issue struct {
	Severity    IssueSeverity `json:"severity"`
	Code        IssueType     `json:"code"`
	Diagnostics string        `json:"diagnostics,omitempty"`
}

func Outcome(severity IssueSeverity, code IssueType, diagnostics string) *OperationOutcome {
	return &OperationOutcome{
		ResourceType: "OperationOutcome",
		Issue:        []Issue{{Severity: severity, Code: code, Diagnostics: diagnostics}},
	}
}

func ErrorOutcome(diagnostics string) *OperationOutcome {
	return Outcome(SeverityError, IssueProcessing, diagnostics)
}

func NotFoundOutcome(resourceType, id string) *OperationOutcome {
	return Outcome(SeverityError, IssueNotFound, FormatReference(resourceType, id)+" not found")
}

// JSON writes v with the FHIR JSON media type.
func JSON(c echo.Context, status int, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.Blob(status, MIMEFHIRJSON+"; charset=UTF-8", data)
}
