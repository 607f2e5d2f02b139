package report

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/radpilot/radpilot/internal/domain/clinical"
	"github.com/radpilot/radpilot/internal/domain/questionnaire"
)

const (
	pdfMargin  = 20.0
	qrCodeSize = 30.0
	qrCodeName = "qr"
	disclaimer = "All findings and impressions have been reviewed and verified by the reporting radiologist. " +
		"Scan the QR code to check the report signature."
)

var documentTitles = map[questionnaire.Modality]string{
	questionnaire.ModalityUSAbdomen: "Ultrasound Abdomen Report",
	questionnaire.ModalityCTAbdomen: "CT Abdomen Report",
	questionnaire.ModalityChestXray: "Chest X-ray Report",
}

// Document is everything printed on a finalized report. Patient, Study and
// QRCode are optional; missing details print as "N/A".
type Document struct {
	Report  *Report
	Patient *clinical.Patient
	Study   *clinical.Study
	QRCode  []byte
}

// RenderPDF lays out a finalized report on A4 pages.
func RenderPDF(d Document) ([]byte, error) {
	r := d.Report
	if r == nil || !r.IsFinalized() {
		return nil, ErrNotFinalized
	}
	title := documentTitle(r.Modality)

	pdf := fpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(title, false)
	pdf.SetCreator("RadPilot", false)
	pdf.SetCreationDate(*r.FinalizedAt)
	pdf.SetMargins(pdfMargin, pdfMargin, pdfMargin)
	pdf.SetAutoPageBreak(true, pdfMargin+qrCodeSize)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, tr(title), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	heading := func(s string) {
		pdf.SetFont("Helvetica", "B", 11)
		pdf.CellFormat(0, 7, tr(s), "B", 1, "L", false, 0, "")
		pdf.Ln(1)
	}
	field := func(label, value string) {
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(35, 6, tr(label+":"), "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		pdf.CellFormat(0, 6, tr(value), "", 1, "L", false, 0, "")
	}
	section := func(name, text string) {
		heading(name)
		pdf.SetFont("Helvetica", "", 10)
		pdf.MultiCell(0, 5, tr(text), "", "L", false)
		pdf.Ln(3)
	}

	heading("Patient Details")
	p := patientFields(d.Patient, *r.FinalizedAt)
	field("Name", p.name)
	field("NHI", p.nhi)
	field("Date of Birth", p.dob)
	field("Sex", p.sex)
	pdf.Ln(3)

	heading("Study Details")
	field("Modality", modalityName(r.Modality))
	studyDate := "N/A"
	if d.Study != nil {
		studyDate = d.Study.StudyDate.Format("2006-01-02")
	}
	field("Study Date", studyDate)
	pdf.Ln(3)

	section("TECHNIQUE", r.Technique)
	section("FINDINGS", r.Findings)
	section("IMPRESSION", r.Impression)

	pageW, pageH := pdf.GetPageSize()
	footerY := pageH - pdfMargin - qrCodeSize
	if pdf.GetY() > footerY {
		pdf.AddPage()
	}
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetY(footerY)
	textW := pageW - 2*pdfMargin - qrCodeSize - 5
	radiologist := "N/A"
	if r.RadiologistName != nil {
		radiologist = *r.RadiologistName
	}
	pdf.SetFont("Helvetica", "B", 9)
	pdf.CellFormat(textW, 5, tr("Reported by: "+radiologist), "", 1, "L", false, 0, "")
	pdf.CellFormat(textW, 5, tr("Finalized at: "+r.FinalizedAt.UTC().Format("2006-01-02 15:04 MST")), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "I", 8)
	pdf.MultiCell(textW, 4, tr(disclaimer), "", "L", false)

	if len(d.QRCode) > 0 {
		opts := fpdf.ImageOptions{ImageType: "PNG"}
		pdf.RegisterImageOptionsReader(qrCodeName, opts, bytes.NewReader(d.QRCode))
		pdf.ImageOptions(qrCodeName, pageW-pdfMargin-qrCodeSize, footerY, qrCodeSize, qrCodeSize, false, opts, 0, "")
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render report pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func documentTitle(m questionnaire.Modality) string {
	if t, ok := documentTitles[m]; ok {
		return t
	}
	return "Radiology Report"
}

func modalityName(m questionnaire.Modality) string {
	if c, err := questionnaire.Lookup(m); err == nil && c.Title != "" {
		return c.Title
	}
	return string(m)
}

type printedPatient struct {
	name, nhi, dob, sex string
}

// patientFields formats the patient block. Age is taken at sign-off.
func patientFields(p *clinical.Patient, at time.Time) printedPatient {
	out := printedPatient{name: "N/A", nhi: "N/A", dob: "N/A", sex: "N/A"}
	if p == nil {
		return out
	}
	if name := p.FullName(); name != "" {
		out.name = name
	}
	if p.NHI != nil && *p.NHI != "" {
		out.nhi = *p.NHI
	}
	if p.Gender != nil && *p.Gender != "" {
		out.sex = strings.ToUpper((*p.Gender)[:1]) + (*p.Gender)[1:]
	}
	if p.DateOfBirth != nil {
		out.dob = fmt.Sprintf("%s (Age: %d)", p.DateOfBirth.Format("2006-01-02"), ageAt(*p.DateOfBirth, at))
	}
	return out
}

func ageAt(dob, at time.Time) int {
	age := at.Year() - dob.Year()
	if at.Month() < dob.Month() || (at.Month() == dob.Month() && at.Day() < dob.Day()) {
		age--
	}
	return age
}
