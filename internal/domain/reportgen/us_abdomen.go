package reportgen

import (
	"fmt"
	"strings"
)

var usAbdomen = template{
	questionIDs: []string{
		"us-1", "us-2", "us-3", "us-4", "us-5", "us-6", "us-7", "us-8", "us-9",
		"us-10", "us-11", "us-12", "us-13", "us-14", "us-15", "us-16", "us-17",
		"us-18", "us-19", "us-20", "us-21", "us-22", "us-23", "us-24", "us-25",
		"us-26", "us-27", "us-28", "us-29", "us-30", "us-31", "us-32", "us-33",
		"us-34",
	},
	technique:  usTechnique,
	findings:   usFindings,
	impression: usImpression,
}

func usTechnique(r reader) string {
	fasting := strings.ToLower(r.valueOr("us-2", "fasting status not provided"))
	return "Ultrasound examination of the abdomen performed with a curvilinear transducer. " +
		"Multiple transverse and longitudinal images acquired; patient " + fasting + "."
}

func usFindings(r reader) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Clinical notes: %s\n\n", r.valueOr("us-1", "None provided"))

	fmt.Fprintf(&b, "Liver: %s, %s. ", r.valueOr("us-3", "Size not recorded"), r.valueOr("us-4", "echotexture not recorded"))
	if r.is("us-5", "Yes") {
		fmt.Fprintf(&b, "Focal lesions present (count: %s, largest %s cm, %s).\n",
			r.valueOr("us-6", "not recorded"), r.valueOr("us-7", "N/A"), r.valueOr("us-8", "characteristics not recorded"))
	} else {
		b.WriteString("No focal hepatic lesions.\n")
	}

	fmt.Fprintf(&b, "Gallbladder: Wall %s; gallstones %s", r.valueOr("us-9", "thickness not recorded"), r.value("us-10"))
	if r.is("us-10", "Yes") {
		fmt.Fprintf(&b, " (%s, largest %s mm).", r.valueOr("us-11", "number not recorded"), r.valueOr("us-12", "size not recorded"))
	} else {
		b.WriteString(".")
	}
	fmt.Fprintf(&b, " Pericholecystic fluid: %s.\n", r.value("us-13"))

	fmt.Fprintf(&b, "Bile ducts: Common bile duct %s mm; intrahepatic duct dilatation %s.\n", r.value("us-14"), r.value("us-15"))

	fmt.Fprintf(&b, "Pancreas: Visualization %s", r.value("us-16"))
	if r.value("us-16") == "Fully visualized" {
		fmt.Fprintf(&b, "; duct %s mm; lesions %s.\n", r.valueOr("us-17", "diameter not recorded"), r.value("us-18"))
	} else {
		b.WriteString(".\n")
	}

	fmt.Fprintf(&b, "Spleen: %s with length %s cm; lesions %s.\n", r.value("us-19"), r.value("us-20"), r.value("us-21"))
	fmt.Fprintf(&b, "Kidneys: Right %s cm, left %s cm; cortex %s (R) / %s (L); hydronephrosis %s; calculi %s; masses %s.\n",
		r.value("us-22"), r.value("us-23"), r.value("us-24"), r.value("us-25"),
		r.value("us-26"), r.value("us-27"), r.value("us-28"))

	fmt.Fprintf(&b, "Aorta: Visualization %s", r.value("us-29"))
	if r.value("us-29") == "Fully visualized" {
		fmt.Fprintf(&b, "; maximal diameter %s mm; aneurysm %s.\n", r.valueOr("us-30", "not recorded"), r.value("us-31"))
	} else {
		b.WriteString(".\n")
	}

	fmt.Fprintf(&b, "Other: Ascites %s; lymphadenopathy %s. Additional findings: %s.",
		r.valueOr("us-32", "Not assessed"), r.valueOr("us-33", "Not assessed"), r.valueOr("us-34", "None reported"))
	return b.String()
}

func usImpression(r reader) string {
	var highlights []string
	if r.is("us-5", "Yes") {
		highlights = append(highlights, fmt.Sprintf("Hepatic lesions noted (largest %s cm).", r.valueOr("us-7", "size not recorded")))
	}
	if r.is("us-10", "Yes") {
		stones := "Cholelithiasis with " + r.valueOr("us-11", "stones not quantified")
		if r.answered("us-12") {
			stones += ", largest " + r.value("us-12") + " mm"
		}
		highlights = append(highlights, stones+".")
	}
	if r.is("us-31", "Yes") {
		highlights = append(highlights, "Abdominal aortic aneurysm.")
	}
	if r.flagged("us-26") {
		highlights = append(highlights, fmt.Sprintf("Hydronephrosis: %s.", r.value("us-26")))
	}
	if r.flagged("us-32") {
		highlights = append(highlights, fmt.Sprintf("Ascites: %s.", r.value("us-32")))
	}
	return joinHighlights(highlights, "No significant abnormality detected on abdominal ultrasound.")
}
