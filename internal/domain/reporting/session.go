package reporting

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/radpilot/radpilot/internal/domain/clinical"
	"github.com/radpilot/radpilot/internal/domain/questionnaire"
	"github.com/radpilot/radpilot/internal/domain/report"
)

// Session is one radiologist's reporting workspace for a single study. All
// access goes through mu.
type Session struct {
	mu sync.Mutex

	id            uuid.UUID
	radiologistID string
	study         *clinical.Study
	catalog       questionnaire.Catalog
	answers       *questionnaire.AnswerSet
	nav           *questionnaire.Navigator
	report        *report.Report
	openedAt      time.Time
}

func newSession(radiologistID string, study *clinical.Study, catalog questionnaire.Catalog, existing *report.Report, now time.Time) *Session {
	answers := questionnaire.NewAnswerSet()
	return &Session{
		id:            uuid.New(),
		radiologistID: radiologistID,
		study:         study,
		catalog:       catalog,
		answers:       answers,
		nav:           questionnaire.NewNavigator(catalog.Questions, answers),
		report:        existing,
		openedAt:      now,
	}
}

// State is a snapshot of a session for rendering.
type State struct {
	SessionID     uuid.UUID                      `json:"session_id"`
	StudyID       uuid.UUID                      `json:"study_id"`
	PatientID     uuid.UUID                      `json:"patient_id"`
	Modality      questionnaire.Modality         `json:"modality"`
	StudyStatus   string                         `json:"study_status"`
	Current       *questionnaire.Question        `json:"current,omitempty"`
	Index         int                            `json:"index"`
	Total         int                            `json:"total"`
	Progress      float64                        `json:"progress"`
	AnsweredCount int                            `json:"answered_count"`
	Sections      []questionnaire.SectionSummary `json:"sections"`
	Answers       map[string]questionnaire.Value `json:"answers"`
	Report        *report.Report                 `json:"report,omitempty"`
	OpenedAt      time.Time                      `json:"opened_at"`
}

// state must be called with mu held.
func (s *Session) state() *State {
	st := &State{
		SessionID:     s.id,
		StudyID:       s.study.ID,
		PatientID:     s.study.PatientID,
		Modality:      s.study.Modality,
		StudyStatus:   s.study.Status,
		Index:         s.nav.Index(),
		Total:         s.nav.Total(),
		Progress:      s.nav.Progress(),
		AnsweredCount: s.nav.AnsweredCount(),
		Sections:      s.nav.Sections(),
		Answers:       s.answers.Map(),
		OpenedAt:      s.openedAt,
	}
	if q, ok := s.nav.Current(); ok {
		st.Current = &q
	}
	if st.Sections == nil {
		st.Sections = []questionnaire.SectionSummary{}
	}
	if s.report != nil {
		st.Report = s.report.Clone()
	}
	return st
}
