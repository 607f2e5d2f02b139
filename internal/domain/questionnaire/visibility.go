package questionnaire

// Visible filters questions down to those currently shown. A conditional
// question is shown when the answer recorded for the question it depends on
// exactly equals the required value. Only that answer is consulted, so a
// stored answer keeps its dependants shown even while its own question is
// hidden. A condition naming an id outside questions hides the question.
func Visible(questions []Question, answers AnswerReader) []Question {
	known := make(map[string]bool, len(questions))
	for _, q := range questions {
		known[q.ID] = true
	}
	visible := make([]Question, 0, len(questions))
	for _, q := range questions {
		if dep := q.ConditionalOn; dep != nil {
			if !known[dep.QuestionID] {
				continue
			}
			v, ok := answers.Get(dep.QuestionID)
			if !ok || !v.Equal(dep.Value) {
				continue
			}
		}
		visible = append(visible, q)
	}
	return visible
}

// SectionSummary describes one section of the visible question list.
type SectionSummary struct {
	Name       string `json:"name"`
	FirstIndex int    `json:"first_index"`
	Total      int    `json:"total"`
	Answered   int    `json:"answered"`
}

// Sections groups the visible questions by section, in order of first
// appearance. FirstIndex is a jump target for section navigation.
func Sections(visible []Question, answers AnswerReader) []SectionSummary {
	var out []SectionSummary
	pos := make(map[string]int)
	for i, q := range visible {
		idx, ok := pos[q.Section]
		if !ok {
			idx = len(out)
			pos[q.Section] = idx
			out = append(out, SectionSummary{Name: q.Section, FirstIndex: i})
		}
		out[idx].Total++
		if _, answered := answers.Get(q.ID); answered {
			out[idx].Answered++
		}
	}
	return out
}
