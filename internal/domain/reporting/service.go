package reporting

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"

	"github.com/radpilot/radpilot/internal/domain/clinical"
	"github.com/radpilot/radpilot/internal/domain/questionnaire"
	"github.com/radpilot/radpilot/internal/domain/report"
	"github.com/radpilot/radpilot/internal/domain/reportgen"
	"github.com/radpilot/radpilot/internal/platform/events"
	"github.com/radpilot/radpilot/internal/platform/signature"
)

var (
	ErrNoSession       = errors.New("no open reporting session")
	ErrNoReport        = errors.New("no report has been generated in this session")
	ErrUnknownQuestion = errors.New("unknown question")
)

// Studies is the study collaborator the reporting workflow reads and advances.
type Studies interface {
	GetStudy(ctx context.Context, id uuid.UUID) (*clinical.Study, error)
	MarkStudyInProgress(ctx context.Context, id, reportID uuid.UUID) (*clinical.Study, error)
	MarkStudyCompleted(ctx context.Context, id uuid.UUID) (*clinical.Study, error)
}

// Reports is the report store the workflow hands drafts and finalized
// reports to.
type Reports interface {
	Save(ctx context.Context, r *report.Report) error
	GetReportForStudy(ctx context.Context, studyID uuid.UUID) (*report.Report, error)
}

type Signer interface {
	Sign(c signature.Claims, issuedAt time.Time) (string, error)
}

type Config struct {
	PreviewCacheSize int
	ReportBaseURL    string
}

// Preview is generated report content that has not been stored.
type Preview struct {
	Content reportgen.Content `json:"content"`
	Checks  []string          `json:"internal_checks"`
}

// Service runs the guided reporting workflow. Each radiologist has at most
// one open session; opening another study replaces it.
type Service struct {
	mu       sync.Mutex
	sessions map[string]*Session
	// writes serialises the stored-state checks and writes of SaveDraft and
	// Finalize across sessions.
	writes sync.Mutex

	studies   Studies
	reports   Reports
	signer    Signer
	publisher events.Publisher
	previews  *lru.Cache[string, Preview]
	baseURL   string
	logger    zerolog.Logger
	now       func() time.Time
	inTx      TxFunc
}

// TxFunc runs fn so that the report and study writes it makes commit
// together.
type TxFunc func(ctx context.Context, fn func(ctx context.Context) error) error

func runDirect(ctx context.Context, fn func(ctx context.Context) error) error { return fn(ctx) }

func NewService(studies Studies, reports Reports, signer Signer, publisher events.Publisher, cfg Config, logger zerolog.Logger) (*Service, error) {
	if cfg.PreviewCacheSize < 1 {
		return nil, fmt.Errorf("preview cache size must be at least 1")
	}
	cache, err := lru.New[string, Preview](cfg.PreviewCacheSize)
	if err != nil {
		return nil, fmt.Errorf("preview cache: %w", err)
	}
	return &Service{
		sessions:  make(map[string]*Session),
		studies:   studies,
		reports:   reports,
		signer:    signer,
		publisher: publisher,
		previews:  cache,
		baseURL:   cfg.ReportBaseURL,
		logger:    logger,
		now:       time.Now,
		inTx:      runDirect,
	}, nil
}

// UseTransactions makes SaveDraft and Finalize write through tx.
func (s *Service) UseTransactions(tx TxFunc) {
	if tx == nil {
		tx = runDirect
	}
	s.inTx = tx
}

// Open starts a session on a study for the radiologist. Answers always start
// empty; a report already stored for the study is attached.
func (s *Service) Open(ctx context.Context, radiologistID string, studyID uuid.UUID) (*State, error) {
	if radiologistID == "" {
		return nil, fmt.Errorf("radiologist_id is required")
	}
	study, err := s.studies.GetStudy(ctx, studyID)
	if err != nil {
		return nil, err
	}
	catalog, err := questionnaire.Lookup(study.Modality)
	if err != nil {
		return nil, err
	}
	existing, err := s.reports.GetReportForStudy(ctx, study.ID)
	if err != nil && !errors.Is(err, report.ErrNotFound) {
		return nil, err
	}

	sess := newSession(radiologistID, study, catalog, existing, s.now().UTC())
	s.mu.Lock()
	s.sessions[radiologistID] = sess
	s.mu.Unlock()

	s.logger.Info().
		Str("radiologist_id", radiologistID).
		Str("session_id", sess.id.String()).
		Str("study_id", study.ID.String()).
		Str("modality", string(study.Modality)).
		Bool("existing_report", existing != nil).
		Msg("reporting session opened")

	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.state(), nil
}

// Close discards the radiologist's session.
func (s *Service) Close(radiologistID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[radiologistID]; !ok {
		return ErrNoSession
	}
	delete(s.sessions, radiologistID)
	return nil
}

func (s *Service) session(radiologistID string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[radiologistID]
	if !ok {
		return nil, ErrNoSession
	}
	return sess, nil
}

// withSession runs fn with the radiologist's session locked.
func (s *Service) withSession(radiologistID string, fn func(*Session) error) error {
	sess, err := s.session(radiologistID)
	if err != nil {
		return err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return fn(sess)
}

func (s *Service) State(radiologistID string) (*State, error) {
	var st *State
	err := s.withSession(radiologistID, func(sess *Session) error {
		st = sess.state()
		return nil
	})
	return st, err
}

// SetAnswer records an answer and recomputes visibility.
func (s *Service) SetAnswer(radiologistID, questionID string, v questionnaire.Value) (*State, error) {
	if v.IsZero() {
		return nil, fmt.Errorf("value is required")
	}
	var st *State
	err := s.withSession(radiologistID, func(sess *Session) error {
		if _, ok := sess.catalog.Question(questionID); !ok {
			return fmt.Errorf("%w: %s", ErrUnknownQuestion, questionID)
		}
		sess.answers.Set(questionID, v)
		sess.nav.Refresh()
		st = sess.state()
		return nil
	})
	return st, err
}

func (s *Service) ClearAnswer(radiologistID, questionID string) (*State, error) {
	var st *State
	err := s.withSession(radiologistID, func(sess *Session) error {
		if _, ok := sess.catalog.Question(questionID); !ok {
			return fmt.Errorf("%w: %s", ErrUnknownQuestion, questionID)
		}
		if sess.answers.Delete(questionID) {
			sess.nav.Refresh()
		}
		st = sess.state()
		return nil
	})
	return st, err
}

func (s *Service) Next(radiologistID string) (questionnaire.Outcome, *State, error) {
	var outcome questionnaire.Outcome
	var st *State
	err := s.withSession(radiologistID, func(sess *Session) error {
		outcome = sess.nav.Next()
		st = sess.state()
		return nil
	})
	return outcome, st, err
}

func (s *Service) Previous(radiologistID string) (*State, error) {
	var st *State
	err := s.withSession(radiologistID, func(sess *Session) error {
		sess.nav.Previous()
		st = sess.state()
		return nil
	})
	return st, err
}

func (s *Service) Jump(radiologistID string, index int) (*State, error) {
	var st *State
	err := s.withSession(radiologistID, func(sess *Session) error {
		if err := sess.nav.Jump(index); err != nil {
			return err
		}
		st = sess.state()
		return nil
	})
	return st, err
}

// Preview generates report content from the current answers without storing
// it. Results are memoised per modality and answer set.
func (s *Service) Preview(radiologistID string) (*Preview, error) {
	var p Preview
	err := s.withSession(radiologistID, func(sess *Session) error {
		p = s.preview(sess)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// preview must be called with the session locked.
func (s *Service) preview(sess *Session) Preview {
	m := sess.study.Modality
	key := string(m) + "\x1f" + sess.answers.Fingerprint()
	if p, ok := s.previews.Get(key); ok {
		return p
	}
	p := Preview{
		Content: reportgen.Generate(m, sess.answers),
		Checks:  reportgen.Check(m, sess.answers),
	}
	s.previews.Add(key, p)
	return p
}

// Generate creates the session's draft report, or regenerates its text from
// the current answers. The draft is not stored until SaveDraft.
func (s *Service) Generate(radiologistID string) (*report.Report, error) {
	var out *report.Report
	err := s.withSession(radiologistID, func(sess *Session) error {
		p := s.preview(sess)
		if sess.report == nil {
			sess.report = report.NewDraft(sess.study.ID, sess.study.PatientID, sess.study.Modality, p.Content, p.Checks)
		} else if err := sess.report.Regenerate(p.Content, p.Checks); err != nil {
			return err
		}
		out = sess.report.Clone()
		return nil
	})
	return out, err
}

// Edit applies manual text changes to the session's draft.
func (s *Service) Edit(radiologistID string, e report.Edit) (*report.Report, error) {
	var out *report.Report
	err := s.withSession(radiologistID, func(sess *Session) error {
		if sess.report == nil {
			return ErrNoReport
		}
		if err := sess.report.Edit(e); err != nil {
			return err
		}
		out = sess.report.Clone()
		return nil
	})
	return out, err
}

// SaveDraft stores the draft and marks the study in progress.
func (s *Service) SaveDraft(ctx context.Context, radiologistID string) (*report.Report, error) {
	var out *report.Report
	err := s.withSession(radiologistID, func(sess *Session) error {
		if sess.report == nil {
			return ErrNoReport
		}
		if sess.report.IsFinalized() {
			return report.ErrReportFinalized
		}
		draft := sess.report.Clone()
		var study *clinical.Study
		s.writes.Lock()
		err := s.inTx(ctx, func(ctx context.Context) error {
			if _, err := s.writableStudy(ctx, sess.study.ID); err != nil {
				return err
			}
			if err := s.reports.Save(ctx, draft); err != nil {
				return err
			}
			var err error
			study, err = s.studies.MarkStudyInProgress(ctx, sess.study.ID, draft.ID)
			return err
		})
		s.writes.Unlock()
		if err != nil {
			return err
		}
		sess.report = draft
		sess.study = study
		out = draft.Clone()
		return nil
	})
	return out, err
}

// Finalize signs and stores the session's report, completes the study, and
// announces the result. Publishing failures are logged, not returned.
func (s *Service) Finalize(ctx context.Context, radiologistID, radiologistName string, consent bool) (*report.Report, error) {
	var out *report.Report
	err := s.withSession(radiologistID, func(sess *Session) error {
		if sess.report == nil {
			return ErrNoReport
		}
		if sess.report.IsFinalized() {
			return report.ErrReportFinalized
		}
		if !consent {
			return report.ErrConsentRequired
		}

		final := sess.report.Clone()
		at := s.now().UTC()
		token, err := s.signer.Sign(signature.Claims{
			ReportID:        final.ID.String(),
			StudyID:         final.StudyID.String(),
			RadiologistID:   radiologistID,
			RadiologistName: radiologistName,
			ContentHash:     final.ContentHash(),
		}, at)
		if err != nil {
			return fmt.Errorf("sign report: %w", err)
		}
		if err := final.Finalize(report.Signoff{
			Consent:         consent,
			RadiologistID:   radiologistID,
			RadiologistName: radiologistName,
			At:              at,
			QRCodeURL:       signature.QRCodeURL(s.baseURL, final.ID),
			Signature:       token,
		}); err != nil {
			return err
		}
		var study *clinical.Study
		s.writes.Lock()
		err = s.inTx(ctx, func(ctx context.Context) error {
			var err error
			if study, err = s.writableStudy(ctx, sess.study.ID); err != nil {
				return err
			}
			if err := s.reports.Save(ctx, final); err != nil {
				return err
			}
			if study.Status == clinical.StudyDraft {
				if study, err = s.studies.MarkStudyInProgress(ctx, study.ID, final.ID); err != nil {
					return err
				}
			}
			study, err = s.studies.MarkStudyCompleted(ctx, study.ID)
			return err
		})
		s.writes.Unlock()
		if err != nil {
			return err
		}
		sess.report = final
		sess.study = study

		s.logger.Info().
			Str("radiologist_id", radiologistID).
			Str("report_id", final.ID.String()).
			Str("study_id", study.ID.String()).
			Msg("report finalized")

		s.publish(ctx, final)
		out = final.Clone()
		return nil
	})
	return out, err
}

// writableStudy reloads the study and refuses a write when its stored record
// is already final. Another session may have finalized it since this one
// opened.
func (s *Service) writableStudy(ctx context.Context, studyID uuid.UUID) (*clinical.Study, error) {
	study, err := s.studies.GetStudy(ctx, studyID)
	if err != nil {
		return nil, err
	}
	if study.Status == clinical.StudyCompleted {
		return nil, report.ErrReportFinalized
	}
	stored, err := s.reports.GetReportForStudy(ctx, studyID)
	switch {
	case errors.Is(err, report.ErrNotFound):
	case err != nil:
		return nil, err
	case stored.IsFinalized():
		return nil, report.ErrReportFinalized
	}
	return study, nil
}

func (s *Service) publish(ctx context.Context, r *report.Report) {
	if s.publisher == nil {
		return
	}
	e := events.NewEvent(events.TypeReportFinalized, map[string]interface{}{
		"report_id":        r.ID.String(),
		"study_id":         r.StudyID.String(),
		"patient_id":       r.PatientID.String(),
		"modality":         string(r.Modality),
		"radiologist_id":   *r.RadiologistID,
		"radiologist_name": *r.RadiologistName,
		"finalized_at":     r.FinalizedAt.Format(time.RFC3339),
		"qr_code_url":      *r.QRCodeURL,
	})
	if err := s.publisher.Publish(ctx, e); err != nil {
		s.logger.Error().Err(err).
			Str("event_id", e.ID).
			Str("report_id", r.ID.String()).
			Msg("failed to publish report event")
	}
}
