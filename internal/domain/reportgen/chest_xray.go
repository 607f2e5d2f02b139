package reportgen

import (
	"fmt"
	"strings"
)

var chestXray = template{
	questionIDs: []string{
		"cxr-1", "cxr-2", "cxr-3", "cxr-4", "cxr-5", "cxr-6", "cxr-7", "cxr-8",
		"cxr-9", "cxr-10", "cxr-11", "cxr-12", "cxr-13", "cxr-14", "cxr-15",
		"cxr-16", "cxr-17", "cxr-18", "cxr-19", "cxr-20", "cxr-21", "cxr-22",
		"cxr-23", "cxr-24", "cxr-25", "cxr-26", "cxr-27", "cxr-28", "cxr-29",
	},
	technique:  cxrTechnique,
	findings:   cxrFindings,
	impression: cxrImpression,
}

func cxrTechnique(r reader) string {
	projection := strings.ToUpper(r.valueOr("cxr-1", "standard projection"))
	position := strings.ToLower(r.valueOr("cxr-2", "default position"))
	return fmt.Sprintf("%s chest radiograph obtained with the patient %s. Inspiration and penetration assessed at acquisition.", projection, position)
}

func cxrFindings(r reader) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Technical: Projection %s, patient %s, inspiration %s, rotation %s, penetration %s.\n\n",
		r.value("cxr-1"), strings.ToLower(r.value("cxr-2")), r.value("cxr-3"), r.value("cxr-4"), r.value("cxr-5"))
	fmt.Fprintf(&b, "Airways: Trachea %s; carina angle %s.\n", r.value("cxr-6"), r.value("cxr-7"))
	fmt.Fprintf(&b, "Lungs: Volumes %s; airspace opacification %s; interstitial pattern %s; nodules/masses %s; cavitation %s.\n",
		r.value("cxr-8"), r.value("cxr-9"), r.value("cxr-10"), r.value("cxr-11"), r.value("cxr-12"))
	fmt.Fprintf(&b, "Pleura: Effusion %s; pneumothorax %s; pleural thickening %s.\n",
		r.valueOr("cxr-13", "Not recorded"), r.valueOr("cxr-14", "Not recorded"), r.value("cxr-15"))
	fmt.Fprintf(&b, "Heart/Mediastinum: Cardiac size %s; cardiothoracic ratio %s; cardiac contour %s; mediastinum %s; hila %s.\n",
		r.value("cxr-16"), r.value("cxr-17"), r.value("cxr-18"), r.value("cxr-19"), r.value("cxr-20"))
	fmt.Fprintf(&b, "Bones/Soft tissues: Rib fractures %s; bone lesions %s; spine alignment %s; subcutaneous emphysema %s.\n",
		r.value("cxr-21"), r.value("cxr-22"), r.value("cxr-23"), r.value("cxr-24"))

	lines := r.valueOr("cxr-25", "Not recorded")
	b.WriteString("Lines/Tubes: " + lines)
	if lines == "Present" {
		fmt.Fprintf(&b, "; ETT %s; NGT %s; central line %s.\n", r.value("cxr-26"), r.value("cxr-27"), r.value("cxr-28"))
	} else {
		b.WriteString(".\n")
	}

	fmt.Fprintf(&b, "Other: %s.", r.valueOr("cxr-29", "No additional findings reported"))
	return b.String()
}

func cxrImpression(r reader) string {
	var highlights []string
	if r.flagged("cxr-9") {
		highlights = append(highlights, fmt.Sprintf("Airspace opacification in %s.", r.value("cxr-9")))
	}
	if r.flagged("cxr-13") {
		highlights = append(highlights, fmt.Sprintf("Pleural effusion: %s.", r.value("cxr-13")))
	}
	if r.flagged("cxr-14") {
		highlights = append(highlights, fmt.Sprintf("Pneumothorax: %s.", r.value("cxr-14")))
	}
	if r.flagged("cxr-11") {
		highlights = append(highlights, fmt.Sprintf("Pulmonary nodules/mass: %s.", r.value("cxr-11")))
	}
	if r.is("cxr-25", "Present") {
		highlights = append(highlights, "Lines/tubes present—see details above.")
	}
	return joinHighlights(highlights, "No acute cardiopulmonary process identified.")
}
