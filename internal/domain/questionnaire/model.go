package questionnaire

import (
	"errors"
	"fmt"
)

// Modality identifies an imaging study type. Each modality owns its own
// question catalog and report template.
type Modality string

const (
	ModalityUSAbdomen Modality = "us-abdomen"
	ModalityCTAbdomen Modality = "ct-abdomen"
	ModalityChestXray Modality = "chest-xray"
)

var ErrUnknownModality = errors.New("unknown modality")

var validModalities = map[Modality]bool{
	ModalityUSAbdomen: true,
	ModalityCTAbdomen: true,
	ModalityChestXray: true,
}

// Modalities returns the supported modalities in display order.
func Modalities() []Modality {
	return []Modality{ModalityUSAbdomen, ModalityCTAbdomen, ModalityChestXray}
}

// ParseModality validates a modality identifier at a system boundary.
func ParseModality(s string) (Modality, error) {
	m := Modality(s)
	if !validModalities[m] {
		return "", fmt.Errorf("%w: %q", ErrUnknownModality, s)
	}
	return m, nil
}

type QuestionType string

const (
	TypeRadio    QuestionType = "radio"
	TypeDropdown QuestionType = "dropdown"
	TypeNumeric  QuestionType = "numeric"
	TypeText     QuestionType = "text"
	TypeTextarea QuestionType = "textarea"
)

var validQuestionTypes = map[QuestionType]bool{
	TypeRadio:    true,
	TypeDropdown: true,
	TypeNumeric:  true,
	TypeText:     true,
	TypeTextarea: true,
}

// Condition gates a question on the exact answer of an earlier question.
type Condition struct {
	QuestionID string `yaml:"question_id" json:"question_id"`
	Value      Value  `yaml:"value" json:"value"`
}

type Question struct {
	ID            string       `yaml:"id" json:"id"`
	Section       string       `yaml:"section" json:"section"`
	Text          string       `yaml:"text" json:"text"`
	Type          QuestionType `yaml:"type" json:"type"`
	Options       []string     `yaml:"options,omitempty" json:"options,omitempty"`
	Required      bool         `yaml:"required" json:"required"`
	Unit          string       `yaml:"unit,omitempty" json:"unit,omitempty"`
	ConditionalOn *Condition   `yaml:"conditional_on,omitempty" json:"conditional_on,omitempty"`
}

func (q Question) clone() Question {
	if q.Options != nil {
		opts := make([]string, len(q.Options))
		copy(opts, q.Options)
		q.Options = opts
	}
	if q.ConditionalOn != nil {
		c := *q.ConditionalOn
		q.ConditionalOn = &c
	}
	return q
}
