package reportgen

import (
	"fmt"
	"strings"
)

var ctAbdomen = template{
	questionIDs: []string{
		"ct-1", "ct-2", "ct-3", "ct-4", "ct-5", "ct-6", "ct-7", "ct-8", "ct-9",
		"ct-10", "ct-11", "ct-12", "ct-13", "ct-14", "ct-15", "ct-16", "ct-17",
		"ct-18", "ct-19", "ct-20", "ct-21", "ct-22", "ct-23", "ct-24", "ct-25",
		"ct-26", "ct-27", "ct-28", "ct-29", "ct-30", "ct-31", "ct-32", "ct-33",
		"ct-34", "ct-35", "ct-36", "ct-37", "ct-38", "ct-39", "ct-40", "ct-41",
		"ct-42", "ct-43",
	},
	technique:  ctTechnique,
	findings:   ctFindings,
	impression: ctImpression,
}

func ctTechnique(r reader) string {
	contrast := strings.ToLower(r.valueOr("ct-2", "contrast status not recorded"))
	phase := strings.ToLower(r.valueOr("ct-3", "phase not recorded"))
	return fmt.Sprintf("CT abdomen/pelvis performed with %s. Images acquired in the %s phase with multiplanar reconstructions.", contrast, phase)
}

func ctFindings(r reader) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Clinical notes: %s\n\n", r.valueOr("ct-1", "None provided"))

	fmt.Fprintf(&b, "Liver: %s size with %s contour and %s attenuation. ", r.value("ct-4"), r.value("ct-5"), r.value("ct-6"))
	if r.is("ct-7", "Yes") {
		fmt.Fprintf(&b, "Focal lesions present (count %s, largest %s cm, enhancement %s).\n", r.value("ct-8"), r.value("ct-9"), r.value("ct-10"))
	} else {
		b.WriteString("No focal hepatic lesions.\n")
	}

	fmt.Fprintf(&b, "Gallbladder/Bile ducts: Wall %s; gallstones %s; pericholecystic fluid %s. Common bile duct %s mm; intrahepatic duct dilatation %s.\n",
		r.value("ct-11"), r.value("ct-12"), r.value("ct-13"), r.value("ct-14"), r.value("ct-15"))
	fmt.Fprintf(&b, "Pancreas: Size %s; duct %s mm; enhancement %s; mass %s; peripancreatic fluid %s.\n",
		r.value("ct-16"), r.value("ct-17"), r.value("ct-18"), r.value("ct-19"), r.value("ct-20"))
	fmt.Fprintf(&b, "Spleen: %s; splenic lesions %s.\n", r.value("ct-21"), r.value("ct-22"))
	fmt.Fprintf(&b, "Kidneys/Adrenals: Right %s, left %s; renal enhancement %s; hydronephrosis %s; calculi %s; masses %s; adrenals %s.\n",
		r.value("ct-23"), r.value("ct-24"), r.value("ct-25"), r.value("ct-26"), r.value("ct-27"), r.value("ct-28"), r.value("ct-29"))
	fmt.Fprintf(&b, "Bowel: Wall thickening %s; obstruction %s; pneumatosis %s.\n", r.value("ct-30"), r.value("ct-31"), r.value("ct-32"))
	fmt.Fprintf(&b, "Vessels: Aorta %s mm; aneurysm %s; portal vein %s; mesenteric vessels %s.\n",
		r.value("ct-33"), r.value("ct-34"), r.value("ct-35"), r.value("ct-36"))

	// Every rendering other than None carries the size clause, the
	// "Not assessed" fallback included.
	lymphNodes := r.valueOr("ct-37", "Not assessed")
	b.WriteString("Lymph nodes: " + lymphNodes)
	if lymphNodes != "None" {
		b.WriteString(", largest " + r.valueOr("ct-38", "size not recorded") + " mm")
	}
	b.WriteString(".\n")

	fmt.Fprintf(&b, "Peritoneum/Other: Ascites %s; peritoneal thickening %s; free air %s; hernias %s. Additional findings: %s.",
		r.valueOr("ct-39", "Not assessed"), r.value("ct-40"), r.value("ct-41"), r.value("ct-42"), r.valueOr("ct-43", "None reported"))
	return b.String()
}

func ctImpression(r reader) string {
	var highlights []string
	if r.is("ct-7", "Yes") {
		highlights = append(highlights, fmt.Sprintf("Hepatic lesions (largest %s cm, enhancement %s).",
			r.valueOr("ct-9", "size not recorded"), r.valueOr("ct-10", "pattern not recorded")))
	}
	if r.flagged("ct-26") {
		highlights = append(highlights, fmt.Sprintf("Hydronephrosis: %s.", r.value("ct-26")))
	}
	if r.is("ct-34", "Present") {
		highlights = append(highlights, "Aortic aneurysm.")
	}
	if r.flagged("ct-39") {
		highlights = append(highlights, fmt.Sprintf("Ascites: %s.", r.value("ct-39")))
	}
	if r.is("ct-41", "Present") {
		highlights = append(highlights, "Free intraperitoneal air.")
	}
	return joinHighlights(highlights, "No acute CT abdomen findings of significance.")
}
