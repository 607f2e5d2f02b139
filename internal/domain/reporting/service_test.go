package reporting

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/radpilot/radpilot/internal/domain/clinical"
	"github.com/radpilot/radpilot/internal/domain/questionnaire"
	"github.com/radpilot/radpilot/internal/domain/report"
	"github.com/radpilot/radpilot/internal/domain/reportgen"
	"github.com/radpilot/radpilot/internal/platform/events"
	"github.com/radpilot/radpilot/internal/platform/signature"
)

const (
	testRadiologist     = "1"
	testRadiologistName = "Dr. Sarah Chen"
)

var fixedNow = time.Date(2026, 5, 6, 7, 8, 9, 0, time.UTC)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

type fixture struct {
	svc      *Service
	clinical *clinical.Service
	reports  *report.Service
	pub      *recordingPublisher
	logs     *bytes.Buffer
	patient  *clinical.Patient
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	signer, err := signature.NewSigner([]byte("test-signing-key"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	clin := clinical.NewService(clinical.NewPatientRepoMemory(), clinical.NewStudyRepoMemory())
	reports := report.NewService(report.NewMemoryRepo(), signer)
	pub := &recordingPublisher{}
	logs := &bytes.Buffer{}
	svc, err := NewService(clin, reports, signer, pub, Config{
		PreviewCacheSize: 16,
		ReportBaseURL:    "https://radpilot.example.org",
	}, zerolog.New(logs))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	svc.now = func() time.Time { return fixedNow }

	p, err := clin.CreatePatient(context.Background(), &clinical.Patient{FirstName: "John", LastName: "Smith"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return &fixture{svc: svc, clinical: clin, reports: reports, pub: pub, logs: logs, patient: p}
}

func (f *fixture) study(t *testing.T, m questionnaire.Modality) *clinical.Study {
	t.Helper()
	st := &clinical.Study{PatientID: f.patient.ID, Modality: m}
	if err := f.clinical.CreateStudy(context.Background(), st); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return st
}

func (f *fixture) open(t *testing.T, m questionnaire.Modality) *clinical.Study {
	t.Helper()
	st := f.study(t, m)
	if _, err := f.svc.Open(context.Background(), testRadiologist, st.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return st
}

func (f *fixture) answer(t *testing.T, id string, v questionnaire.Value) *State {
	t.Helper()
	st, err := f.svc.SetAnswer(testRadiologist, id, v)
	if err != nil {
		t.Fatalf("unexpected error answering %s: %v", id, err)
	}
	return st
}

func TestNewService_CacheSize(t *testing.T) {
	_, err := NewService(nil, nil, nil, nil, Config{PreviewCacheSize: 0}, zerolog.Nop())
	if err == nil {
		t.Error("expected error for zero cache size")
	}
}

func TestService_Open(t *testing.T) {
	f := newFixture(t)
	study := f.study(t, questionnaire.ModalityUSAbdomen)

	st, err := f.svc.Open(context.Background(), testRadiologist, study.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.StudyID != study.ID || st.Modality != questionnaire.ModalityUSAbdomen {
		t.Errorf("unexpected state: %+v", st)
	}
	if st.Index != 0 || st.Progress != 0 || len(st.Answers) != 0 {
		t.Errorf("expected fresh cursor and no answers, got %+v", st)
	}
	if st.Current == nil || st.Current.ID != "us-1" {
		t.Errorf("expected first question us-1, got %+v", st.Current)
	}
	if st.Total != 25 {
		t.Errorf("expected 25 unconditional questions, got %d", st.Total)
	}
	if !strings.Contains(f.logs.String(), "reporting session opened") {
		t.Errorf("expected session open to be logged, got %s", f.logs.String())
	}
}

func TestService_Open_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.svc.Open(ctx, testRadiologist, uuid.New()); !errors.Is(err, clinical.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	study := f.study(t, questionnaire.ModalityCTAbdomen)
	if _, err := f.svc.Open(ctx, "", study.ID); err == nil {
		t.Error("expected error for missing radiologist")
	}
}

func TestService_NoSession(t *testing.T) {
	f := newFixture(t)
	if _, err := f.svc.State(testRadiologist); !errors.Is(err, ErrNoSession) {
		t.Errorf("expected ErrNoSession, got %v", err)
	}
	if _, err := f.svc.SetAnswer(testRadiologist, "us-1", questionnaire.StringValue("x")); !errors.Is(err, ErrNoSession) {
		t.Errorf("expected ErrNoSession, got %v", err)
	}
	if err := f.svc.Close(testRadiologist); !errors.Is(err, ErrNoSession) {
		t.Errorf("expected ErrNoSession, got %v", err)
	}
}

func TestService_SwitchingStudiesClearsAnswers(t *testing.T) {
	f := newFixture(t)
	f.open(t, questionnaire.ModalityUSAbdomen)
	f.answer(t, "us-1", questionnaire.StringValue("RUQ pain"))
	if _, _, err := f.svc.Next(testRadiologist); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	before, _ := f.svc.State(testRadiologist)
	if before.Progress == 0 || len(before.Answers) != 1 {
		t.Fatalf("expected progress and one answer, got %+v", before)
	}

	studyB := f.study(t, questionnaire.ModalityUSAbdomen)
	after, err := f.svc.Open(context.Background(), testRadiologist, studyB.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(after.Answers) != 0 || after.Progress != 0 || after.Index != 0 {
		t.Errorf("expected cleared session, got %+v", after)
	}
	if after.SessionID == before.SessionID {
		t.Error("expected a new session")
	}
}

func TestService_SessionsArePerRadiologist(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	study := f.study(t, questionnaire.ModalityChestXray)
	if _, err := f.svc.Open(ctx, "1", study.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := f.svc.Open(ctx, "2", study.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := f.svc.SetAnswer("1", "cxr-1", questionnaire.StringValue("PA")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	other, _ := f.svc.State("2")
	if len(other.Answers) != 0 {
		t.Errorf("expected radiologist 2's session untouched, got %v", other.Answers)
	}
}

func TestService_SetAnswer(t *testing.T) {
	f := newFixture(t)
	f.open(t, questionnaire.ModalityUSAbdomen)

	if _, err := f.svc.SetAnswer(testRadiologist, "ct-1", questionnaire.StringValue("x")); !errors.Is(err, ErrUnknownQuestion) {
		t.Errorf("expected ErrUnknownQuestion, got %v", err)
	}
	if _, err := f.svc.SetAnswer(testRadiologist, "us-1", questionnaire.Value{}); err == nil {
		t.Error("expected error for empty value")
	}

	st := f.answer(t, "us-5", questionnaire.StringValue("Yes"))
	if st.Total != 28 {
		t.Errorf("expected lesion questions to appear, got total %d", st.Total)
	}
	st = f.answer(t, "us-5", questionnaire.StringValue("No"))
	if st.Total != 25 {
		t.Errorf("expected lesion questions to hide, got total %d", st.Total)
	}

	st, err := f.svc.ClearAnswer(testRadiologist, "us-5")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := st.Answers["us-5"]; ok {
		t.Error("expected us-5 to be cleared")
	}
}

func TestService_Navigation(t *testing.T) {
	f := newFixture(t)
	f.open(t, questionnaire.ModalityCTAbdomen)

	outcome, st, err := f.svc.Next(testRadiologist)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != questionnaire.OutcomeBlocked || st.Index != 0 {
		t.Errorf("expected blocked on unanswered required question, got %s at %d", outcome, st.Index)
	}

	f.answer(t, "ct-1", questionnaire.StringValue("Abdominal pain"))
	outcome, st, _ = f.svc.Next(testRadiologist)
	if outcome != questionnaire.OutcomeAdvanced || st.Index != 1 {
		t.Errorf("expected advance to 1, got %s at %d", outcome, st.Index)
	}

	st, _ = f.svc.Previous(testRadiologist)
	if st.Index != 0 {
		t.Errorf("expected index 0, got %d", st.Index)
	}

	st, err = f.svc.Jump(testRadiologist, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.Current.ID != "ct-14" {
		t.Errorf("expected ct-14 at index 10, got %s", st.Current.ID)
	}
	if _, err := f.svc.Jump(testRadiologist, 99); !errors.Is(err, questionnaire.ErrIndexOutOfRange) {
		t.Errorf("expected ErrIndexOutOfRange, got %v", err)
	}
}

func TestService_PreviewIsMemoised(t *testing.T) {
	f := newFixture(t)
	f.open(t, questionnaire.ModalityCTAbdomen)
	f.answer(t, "ct-34", questionnaire.StringValue("Present"))

	first, err := f.svc.Preview(testRadiologist)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.Content.Impression != "Aortic aneurysm." {
		t.Errorf("unexpected impression: %q", first.Content.Impression)
	}
	second, _ := f.svc.Preview(testRadiologist)
	if second.Content != first.Content {
		t.Error("expected identical preview")
	}
	if f.svc.previews.Len() != 1 {
		t.Errorf("expected one cached preview, got %d", f.svc.previews.Len())
	}

	f.answer(t, "ct-41", questionnaire.StringValue("Present"))
	third, _ := f.svc.Preview(testRadiologist)
	if third.Content == first.Content {
		t.Error("expected preview to change with answers")
	}
	if f.svc.previews.Len() != 2 {
		t.Errorf("expected two cached previews, got %d", f.svc.previews.Len())
	}
}

func TestService_GenerateEditSave(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	study := f.open(t, questionnaire.ModalityChestXray)

	if _, err := f.svc.Edit(testRadiologist, report.Edit{}); !errors.Is(err, ErrNoReport) {
		t.Errorf("expected ErrNoReport, got %v", err)
	}
	if _, err := f.svc.SaveDraft(ctx, testRadiologist); !errors.Is(err, ErrNoReport) {
		t.Errorf("expected ErrNoReport, got %v", err)
	}

	r, err := f.svc.Generate(testRadiologist)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Status != report.StatusDraft || r.Impression != "No acute cardiopulmonary process identified." {
		t.Errorf("unexpected draft: %+v", r)
	}
	if len(r.InternalChecks) != 1 || r.InternalChecks[0] != reportgen.NoInconsistencies {
		t.Errorf("unexpected checks: %v", r.InternalChecks)
	}

	f.answer(t, "cxr-13", questionnaire.StringValue("Right small"))
	regenerated, _ := f.svc.Generate(testRadiologist)
	if regenerated.ID != r.ID {
		t.Error("expected regeneration to keep the report id")
	}

	impression := "Small right pleural effusion."
	edited, err := f.svc.Edit(testRadiologist, report.Edit{Impression: &impression})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if edited.Impression != impression {
		t.Errorf("expected edited impression, got %q", edited.Impression)
	}

	saved, err := f.svc.SaveDraft(ctx, testRadiologist)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	stored, err := f.reports.GetReport(ctx, saved.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stored.Impression != impression || stored.Status != report.StatusDraft {
		t.Errorf("unexpected stored report: %+v", stored)
	}
	gotStudy, _ := f.clinical.GetStudy(ctx, study.ID)
	if gotStudy.Status != clinical.StudyInProgress || gotStudy.ReportID == nil || *gotStudy.ReportID != saved.ID {
		t.Errorf("expected study in progress with report id, got %+v", gotStudy)
	}

	if _, err := f.svc.SaveDraft(ctx, testRadiologist); err != nil {
		t.Errorf("expected repeated save to succeed, got %v", err)
	}
}

func TestService_FinalizeRequiresConsent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.open(t, questionnaire.ModalityCTAbdomen)
	if _, err := f.svc.Finalize(ctx, testRadiologist, testRadiologistName, true); !errors.Is(err, ErrNoReport) {
		t.Errorf("expected ErrNoReport, got %v", err)
	}
	r, _ := f.svc.Generate(testRadiologist)

	if _, err := f.svc.Finalize(ctx, testRadiologist, testRadiologistName, false); !errors.Is(err, report.ErrConsentRequired) {
		t.Errorf("expected ErrConsentRequired, got %v", err)
	}
	if _, err := f.reports.GetReport(ctx, r.ID); !errors.Is(err, report.ErrNotFound) {
		t.Errorf("expected nothing stored, got %v", err)
	}
	st, _ := f.svc.State(testRadiologist)
	if st.Report.Status != report.StatusDraft {
		t.Errorf("expected draft, got %s", st.Report.Status)
	}
	if len(f.pub.events) != 0 {
		t.Errorf("expected no events, got %d", len(f.pub.events))
	}
}

func TestService_Finalize(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	study := f.open(t, questionnaire.ModalityCTAbdomen)
	f.answer(t, "ct-34", questionnaire.StringValue("Present"))
	if _, err := f.svc.Generate(testRadiologist); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	final, err := f.svc.Finalize(ctx, testRadiologist, testRadiologistName, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if final.Status != report.StatusFinalized {
		t.Fatalf("expected finalized, got %s", final.Status)
	}
	if *final.RadiologistID != testRadiologist || *final.RadiologistName != testRadiologistName {
		t.Errorf("unexpected radiologist: %v %v", *final.RadiologistID, *final.RadiologistName)
	}
	if !final.FinalizedAt.Equal(fixedNow) {
		t.Errorf("expected finalized_at %v, got %v", fixedNow, final.FinalizedAt)
	}
	wantQR := fmt.Sprintf("https://radpilot.example.org/api/v1/reports/%s/verify", final.ID)
	if *final.QRCodeURL != wantQR {
		t.Errorf("expected qr url %s, got %s", wantQR, *final.QRCodeURL)
	}

	v, err := f.reports.VerifyReport(ctx, final.ID, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !v.Valid {
		t.Errorf("expected stored signature to verify, got %+v", v)
	}

	gotStudy, _ := f.clinical.GetStudy(ctx, study.ID)
	if gotStudy.Status != clinical.StudyCompleted {
		t.Errorf("expected study completed, got %s", gotStudy.Status)
	}

	if len(f.pub.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(f.pub.events))
	}
	e := f.pub.events[0]
	if e.Type != events.TypeReportFinalized || e.Data["report_id"] != final.ID.String() {
		t.Errorf("unexpected event: %+v", e)
	}
	if !strings.Contains(f.logs.String(), "report finalized") {
		t.Errorf("expected finalize to be logged, got %s", f.logs.String())
	}
}

func TestService_FinalizedReportIsImmutable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.open(t, questionnaire.ModalityCTAbdomen)
	f.answer(t, "ct-34", questionnaire.StringValue("Present"))
	_, _ = f.svc.Generate(testRadiologist)
	final, err := f.svc.Finalize(ctx, testRadiologist, testRadiologistName, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	f.answer(t, "ct-41", questionnaire.StringValue("Present"))
	if _, err := f.svc.Generate(testRadiologist); !errors.Is(err, report.ErrReportFinalized) {
		t.Errorf("expected ErrReportFinalized on regenerate, got %v", err)
	}
	text := "changed"
	if _, err := f.svc.Edit(testRadiologist, report.Edit{Findings: &text}); !errors.Is(err, report.ErrReportFinalized) {
		t.Errorf("expected ErrReportFinalized on edit, got %v", err)
	}
	if _, err := f.svc.SaveDraft(ctx, testRadiologist); !errors.Is(err, report.ErrReportFinalized) {
		t.Errorf("expected ErrReportFinalized on save, got %v", err)
	}
	if _, err := f.svc.Finalize(ctx, testRadiologist, "Someone Else", true); !errors.Is(err, report.ErrReportFinalized) {
		t.Errorf("expected ErrReportFinalized on second finalize, got %v", err)
	}

	stored, _ := f.reports.GetReport(ctx, final.ID)
	if stored.Impression != "Aortic aneurysm." || stored.Status != report.StatusFinalized {
		t.Errorf("stored report changed: %+v", stored)
	}
	if stored.Signature == nil || *stored.RadiologistName != testRadiologistName {
		t.Error("expected sign-off fields to stay populated")
	}
}

func TestService_FinalizeAfterSaveDraft(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	study := f.open(t, questionnaire.ModalityUSAbdomen)
	_, _ = f.svc.Generate(testRadiologist)
	saved, err := f.svc.SaveDraft(ctx, testRadiologist)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	final, err := f.svc.Finalize(ctx, testRadiologist, testRadiologistName, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if final.ID != saved.ID {
		t.Error("expected the saved draft to be finalized")
	}
	gotStudy, _ := f.clinical.GetStudy(ctx, study.ID)
	if gotStudy.Status != clinical.StudyCompleted {
		t.Errorf("expected completed, got %s", gotStudy.Status)
	}
}

func TestService_FinalizePublishFailureIsLogged(t *testing.T) {
	f := newFixture(t)
	f.pub.err = errors.New("broker down")
	f.open(t, questionnaire.ModalityChestXray)
	_, _ = f.svc.Generate(testRadiologist)

	final, err := f.svc.Finalize(context.Background(), testRadiologist, testRadiologistName, true)
	if err != nil {
		t.Fatalf("expected finalize to succeed, got %v", err)
	}
	if final.Status != report.StatusFinalized {
		t.Errorf("expected finalized, got %s", final.Status)
	}
	if !strings.Contains(f.logs.String(), "failed to publish report event") {
		t.Errorf("expected publish failure to be logged, got %s", f.logs.String())
	}
}

func TestService_FinalizeRunsInTransaction(t *testing.T) {
	f := newFixture(t)
	calls := 0
	f.svc.UseTransactions(func(ctx context.Context, fn func(context.Context) error) error {
		calls++
		if err := fn(ctx); err != nil {
			return err
		}
		return errors.New("commit failed")
	})
	f.open(t, questionnaire.ModalityChestXray)
	_, _ = f.svc.Generate(testRadiologist)

	if _, err := f.svc.Finalize(context.Background(), testRadiologist, testRadiologistName, true); err == nil {
		t.Fatal("expected commit failure to be returned")
	}
	if calls != 1 {
		t.Errorf("expected one transaction, got %d", calls)
	}
	st, _ := f.svc.State(testRadiologist)
	if st.Report == nil || st.Report.Status == report.StatusFinalized {
		t.Errorf("expected session report to stay unfinalized, got %+v", st.Report)
	}
	if len(f.pub.events) != 0 {
		t.Errorf("expected no event after failed commit, got %d", len(f.pub.events))
	}
}

func TestService_OpenAttachesStoredReport(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	study := f.open(t, questionnaire.ModalityChestXray)
	_, _ = f.svc.Generate(testRadiologist)
	final, _ := f.svc.Finalize(ctx, testRadiologist, testRadiologistName, true)

	st, err := f.svc.Open(ctx, testRadiologist, study.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.Report == nil || st.Report.ID != final.ID || st.Report.Status != report.StatusFinalized {
		t.Errorf("expected finalized report attached, got %+v", st.Report)
	}
	if len(st.Answers) != 0 {
		t.Errorf("expected answers cleared, got %v", st.Answers)
	}
}

func TestService_ConcurrentAnswers(t *testing.T) {
	f := newFixture(t)
	f.open(t, questionnaire.ModalityChestXray)
	catalog, _ := questionnaire.Lookup(questionnaire.ModalityChestXray)

	var wg sync.WaitGroup
	for _, q := range catalog.Questions {
		if len(q.Options) == 0 {
			continue
		}
		wg.Add(1)
		go func(q questionnaire.Question) {
			defer wg.Done()
			_, _ = f.svc.SetAnswer(testRadiologist, q.ID, questionnaire.StringValue(q.Options[0]))
			_, _, _ = f.svc.Next(testRadiologist)
			_, _ = f.svc.Preview(testRadiologist)
		}(q)
	}
	wg.Wait()

	st, _ := f.svc.State(testRadiologist)
	if len(st.Answers) != 28 {
		t.Errorf("expected 28 answers, got %d", len(st.Answers))
	}
}

func TestService_SecondSessionCannotReplaceFinalizedReport(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	const other = "2"
	study := f.study(t, questionnaire.ModalityCTAbdomen)
	if _, err := f.svc.Open(ctx, testRadiologist, study.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := f.svc.Open(ctx, other, study.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, _ = f.svc.Generate(testRadiologist)
	final, err := f.svc.Finalize(ctx, testRadiologist, testRadiologistName, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := f.svc.Generate(other); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := f.svc.SaveDraft(ctx, other); !errors.Is(err, report.ErrReportFinalized) {
		t.Errorf("expected ErrReportFinalized on save, got %v", err)
	}
	if _, err := f.svc.Finalize(ctx, other, "Dr. Ana Ruiz", true); !errors.Is(err, report.ErrReportFinalized) {
		t.Errorf("expected ErrReportFinalized on finalize, got %v", err)
	}

	_, total, _ := f.reports.SearchReports(ctx, map[string]string{"study_id": study.ID.String()}, 20, 0)
	if total != 1 {
		t.Errorf("expected a single stored report, got %d", total)
	}
	stored, err := f.reports.GetReportForStudy(ctx, study.ID)
	if err != nil || stored.ID != final.ID || !stored.IsFinalized() {
		t.Errorf("expected the finalized report for the study, got %+v %v", stored, err)
	}
	gotStudy, _ := f.clinical.GetStudy(ctx, study.ID)
	if gotStudy.Status != clinical.StudyCompleted {
		t.Errorf("expected study to stay completed, got %s", gotStudy.Status)
	}

	st, err := f.svc.Open(ctx, other, study.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.Report == nil || st.Report.ID != final.ID || st.Report.Status != report.StatusFinalized {
		t.Errorf("expected reopen to attach the finalized report, got %+v", st.Report)
	}
}

func TestService_ConcurrentDraftsConflict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	const other = "2"
	study := f.study(t, questionnaire.ModalityUSAbdomen)
	_, _ = f.svc.Open(ctx, testRadiologist, study.ID)
	_, _ = f.svc.Open(ctx, other, study.ID)
	_, _ = f.svc.Generate(testRadiologist)
	_, _ = f.svc.Generate(other)

	saved, err := f.svc.SaveDraft(ctx, testRadiologist)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := f.svc.SaveDraft(ctx, other); !errors.Is(err, report.ErrVersionConflict) {
		t.Errorf("expected ErrVersionConflict, got %v", err)
	}
	gotStudy, _ := f.clinical.GetStudy(ctx, study.ID)
	if gotStudy.ReportID == nil || *gotStudy.ReportID != saved.ID {
		t.Errorf("expected study to reference the first draft, got %+v", gotStudy.ReportID)
	}
}

func TestService_StaleSessionDraftConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	study := f.open(t, questionnaire.ModalityChestXray)
	_, _ = f.svc.Generate(testRadiologist)
	saved, err := f.svc.SaveDraft(ctx, testRadiologist)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	findings := "Edited outside the session."
	if _, err := f.reports.EditReport(ctx, saved.ID, report.Edit{Findings: &findings}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := f.svc.SaveDraft(ctx, testRadiologist); !errors.Is(err, report.ErrVersionConflict) {
		t.Errorf("expected ErrVersionConflict on save, got %v", err)
	}
	if _, err := f.svc.Finalize(ctx, testRadiologist, testRadiologistName, true); !errors.Is(err, report.ErrVersionConflict) {
		t.Errorf("expected ErrVersionConflict on finalize, got %v", err)
	}
	stored, _ := f.reports.GetReport(ctx, saved.ID)
	if stored.Findings != findings || stored.Status != report.StatusDraft {
		t.Errorf("expected the outside edit to survive, got %+v", stored)
	}
	if len(f.pub.events) != 0 {
		t.Errorf("expected no events, got %d", len(f.pub.events))
	}

	// reopening picks up the stored edit, which is what gets signed
	if _, err := f.svc.Open(ctx, testRadiologist, study.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	final, err := f.svc.Finalize(ctx, testRadiologist, testRadiologistName, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if final.Findings != findings {
		t.Errorf("expected the edited findings to be signed, got %q", final.Findings)
	}
}
