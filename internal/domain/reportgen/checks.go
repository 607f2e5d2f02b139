package reportgen

import (
	"fmt"

	"github.com/radpilot/radpilot/internal/domain/questionnaire"
)

// NoInconsistencies is the single entry returned by Check when nothing is wrong.
const NoInconsistencies = "No inconsistencies detected."

// aneurysmThresholdMM is the aortic diameter from which an aneurysm is expected.
const aneurysmThresholdMM = 30

const spleenUpperLimitCM = 13

// Check cross-examines a draft's answers and returns human-readable warnings.
// It flags answers left on questions that are now hidden, and measurements
// that contradict the categorical answer recorded next to them.
func Check(m questionnaire.Modality, answers questionnaire.AnswerReader) []string {
	if answers == nil {
		return []string{NoInconsistencies}
	}

	var warnings []string

	questions := questionnaire.QuestionsForModality(m)
	visible := make(map[string]bool, len(questions))
	for _, q := range questionnaire.Visible(questions, answers) {
		visible[q.ID] = true
	}
	for _, q := range questions {
		if _, ok := answers.Get(q.ID); ok && !visible[q.ID] {
			warnings = append(warnings, fmt.Sprintf("Answer recorded for hidden question %s (%s).", q.ID, q.Text))
		}
	}

	r := reader{answers: answers}
	switch m {
	case questionnaire.ModalityUSAbdomen:
		warnings = append(warnings, aneurysmChecks(r, "us-30", "us-31", "Yes", "No")...)
		if length, ok := r.number("us-20"); ok && r.is("us-19", "Normal") && length > spleenUpperLimitCM {
			warnings = append(warnings, fmt.Sprintf("Spleen recorded as normal but measures %s cm.", r.value("us-20")))
		}
	case questionnaire.ModalityCTAbdomen:
		warnings = append(warnings, aneurysmChecks(r, "ct-33", "ct-34", "Present", "Absent")...)
	case questionnaire.ModalityChestXray:
		if r.is("cxr-16", "Normal") && r.is("cxr-17", ">0.6") {
			warnings = append(warnings, "Cardiac size recorded as normal with a cardiothoracic ratio above 0.6.")
		}
	}

	if len(warnings) == 0 {
		return []string{NoInconsistencies}
	}
	return warnings
}

func aneurysmChecks(r reader, diameterID, aneurysmID, yes, no string) []string {
	diameter, ok := r.number(diameterID)
	if !ok {
		return nil
	}
	switch {
	case r.is(aneurysmID, yes) && diameter < aneurysmThresholdMM:
		return []string{fmt.Sprintf("Aortic aneurysm recorded with a diameter of %s mm, below %d mm.", r.value(diameterID), aneurysmThresholdMM)}
	case r.is(aneurysmID, no) && diameter >= aneurysmThresholdMM:
		return []string{fmt.Sprintf("Aortic diameter of %s mm recorded without an aneurysm.", r.value(diameterID))}
	}
	return nil
}
