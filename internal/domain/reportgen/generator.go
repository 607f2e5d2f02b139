// Package reportgen turns a modality's structured answers into report prose.
// Every function here is pure: the same modality and answers always produce
// byte-identical text.
package reportgen

import (
	"strings"

	"github.com/radpilot/radpilot/internal/domain/questionnaire"
)

// Content is the generated body of a radiology report.
type Content struct {
	Technique  string `json:"technique"`
	Findings   string `json:"findings"`
	Impression string `json:"impression"`
}

const (
	defaultTechnique  = "Standard imaging protocol was followed."
	defaultFindings   = "Findings not available for this modality."
	defaultImpression = "Impression unavailable for this modality."
)

// template holds the prose rules for one modality. questionIDs lists every
// answer the rules read, so the mapping can be checked against the catalog.
type template struct {
	questionIDs []string
	technique   func(r reader) string
	findings    func(r reader) string
	impression  func(r reader) string
}

var templates = map[questionnaire.Modality]template{
	questionnaire.ModalityUSAbdomen: usAbdomen,
	questionnaire.ModalityCTAbdomen: ctAbdomen,
	questionnaire.ModalityChestXray: chestXray,
}

// Generate builds the technique, findings and impression for a modality.
// Unanswered questions fall back to fixed placeholders. An unknown modality
// gets generic text rather than an error.
func Generate(m questionnaire.Modality, answers questionnaire.AnswerReader) Content {
	t, ok := templates[m]
	if !ok {
		return Content{
			Technique:  defaultTechnique,
			Findings:   defaultFindings,
			Impression: defaultImpression,
		}
	}
	r := reader{answers: answers}
	return Content{
		Technique:  t.technique(r),
		Findings:   t.findings(r),
		Impression: t.impression(r),
	}
}

// ReferencedQuestions returns the question ids the modality's template reads.
func ReferencedQuestions(m questionnaire.Modality) []string {
	t, ok := templates[m]
	if !ok {
		return nil
	}
	out := make([]string, len(t.questionIDs))
	copy(out, t.questionIDs)
	return out
}

type reader struct {
	answers questionnaire.AnswerReader
}

func (r reader) get(id string) (questionnaire.Value, bool) {
	if r.answers == nil {
		return questionnaire.Value{}, false
	}
	v, ok := r.answers.Get(id)
	if !ok || v.IsZero() {
		return questionnaire.Value{}, false
	}
	return v, true
}

// valueOr renders an answer, or fallback when it is missing or an empty string.
func (r reader) valueOr(id, fallback string) string {
	v, ok := r.get(id)
	if !ok {
		return fallback
	}
	if v.Kind() == questionnaire.KindString && v.String() == "" {
		return fallback
	}
	return v.String()
}

func (r reader) value(id string) string {
	return r.valueOr(id, "not documented")
}

// answered reports whether the answer renders to non-empty text.
func (r reader) answered(id string) bool {
	return r.valueOr(id, "") != ""
}

// is reports whether the answer is exactly the string want.
func (r reader) is(id, want string) bool {
	v, ok := r.get(id)
	return ok && v.Kind() == questionnaire.KindString && v.String() == want
}

// flagged reports whether an answer carries an abnormal finding: it must be
// set, truthy and not the string "None".
func (r reader) flagged(id string) bool {
	v, ok := r.get(id)
	if !ok || !v.Truthy() {
		return false
	}
	return !(v.Kind() == questionnaire.KindString && v.String() == "None")
}

func (r reader) number(id string) (float64, bool) {
	v, ok := r.get(id)
	if !ok {
		return 0, false
	}
	return v.Float()
}

func joinHighlights(highlights []string, fallback string) string {
	if len(highlights) == 0 {
		return fallback
	}
	return strings.Join(highlights, " ")
}
