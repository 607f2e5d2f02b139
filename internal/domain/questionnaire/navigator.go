package questionnaire

import (
	"errors"
	"fmt"
)

// Outcome is the result of asking the navigator to move forward.
type Outcome string

const (
	OutcomeAdvanced  Outcome = "advanced"
	OutcomeBlocked   Outcome = "blocked"
	OutcomeCompleted Outcome = "completed"
)

var ErrIndexOutOfRange = errors.New("question index out of range")

// Navigator is the cursor over a modality's visible questions. It reads the
// answer store on every Refresh and never writes to it.
type Navigator struct {
	questions []Question
	answers   AnswerReader
	visible   []Question
	index     int
}

func NewNavigator(questions []Question, answers AnswerReader) *Navigator {
	n := &Navigator{questions: questions, answers: answers}
	n.visible = Visible(questions, answers)
	return n
}

// Refresh recomputes visibility after an answer changed. The cursor returns
// to the first question whenever the number of visible questions changes, and
// is never left past the end of the list. It reports whether it reset.
func (n *Navigator) Refresh() bool {
	visible := Visible(n.questions, n.answers)
	reset := len(visible) != len(n.visible) || n.index >= len(visible)
	n.visible = visible
	if reset {
		n.index = 0
	}
	return reset
}

// Reset moves the cursor back to the first question.
func (n *Navigator) Reset() {
	n.visible = Visible(n.questions, n.answers)
	n.index = 0
}

func (n *Navigator) Index() int { return n.index }

func (n *Navigator) Total() int { return len(n.visible) }

func (n *Navigator) Visible() []Question {
	out := make([]Question, len(n.visible))
	copy(out, n.visible)
	return out
}

func (n *Navigator) Current() (Question, bool) {
	if n.index < 0 || n.index >= len(n.visible) {
		return Question{}, false
	}
	return n.visible[n.index], true
}

// Next advances one question. A required question without an answer blocks,
// and the last visible question completes instead of advancing.
func (n *Navigator) Next() Outcome {
	q, ok := n.Current()
	if !ok {
		return OutcomeBlocked
	}
	if q.Required {
		if _, answered := n.answers.Get(q.ID); !answered {
			return OutcomeBlocked
		}
	}
	if n.index < len(n.visible)-1 {
		n.index++
		return OutcomeAdvanced
	}
	return OutcomeCompleted
}

// Previous steps back one question. It reports false at the first question.
func (n *Navigator) Previous() bool {
	if n.index == 0 {
		return false
	}
	n.index--
	return true
}

// Jump seeks to any visible question regardless of answers.
func (n *Navigator) Jump(index int) error {
	if index < 0 || index >= len(n.visible) {
		return fmt.Errorf("%w: %d (have %d)", ErrIndexOutOfRange, index, len(n.visible))
	}
	n.index = index
	return nil
}

// Progress is the share of visible questions before the cursor, in percent.
func (n *Navigator) Progress() float64 {
	if len(n.visible) == 0 {
		return 0
	}
	return 100 * float64(n.index) / float64(len(n.visible))
}

// AnsweredCount counts visible questions that have an answer.
func (n *Navigator) AnsweredCount() int {
	count := 0
	for _, q := range n.visible {
		if _, ok := n.answers.Get(q.ID); ok {
			count++
		}
	}
	return count
}

func (n *Navigator) Sections() []SectionSummary {
	return Sections(n.visible, n.answers)
}
