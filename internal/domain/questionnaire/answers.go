package questionnaire

import (
	"sort"
	"strings"
)

// AnswerReader is the read side of an answer store.
type AnswerReader interface {
	Get(questionID string) (Value, bool)
}

type Answer struct {
	QuestionID string `json:"question_id"`
	Value      Value  `json:"value"`
}

// AnswerSet maps question ids to answer values for one reporting session.
// Setting an id that already has an answer replaces it. The set does not
// check values against the question's declared type.
type AnswerSet struct {
	values map[string]Value
	order  []string
}

func NewAnswerSet() *AnswerSet {
	return &AnswerSet{values: make(map[string]Value)}
}

func (s *AnswerSet) Set(questionID string, v Value) {
	if _, ok := s.values[questionID]; !ok {
		s.order = append(s.order, questionID)
	}
	s.values[questionID] = v
}

func (s *AnswerSet) Get(questionID string) (Value, bool) {
	v, ok := s.values[questionID]
	return v, ok
}

// Delete removes one answer and reports whether it existed.
func (s *AnswerSet) Delete(questionID string) bool {
	if _, ok := s.values[questionID]; !ok {
		return false
	}
	delete(s.values, questionID)
	for i, id := range s.order {
		if id == questionID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

func (s *AnswerSet) Clear() {
	s.values = make(map[string]Value)
	s.order = nil
}

func (s *AnswerSet) Len() int { return len(s.values) }

// Answers lists the answers in the order they were first set.
func (s *AnswerSet) Answers() []Answer {
	out := make([]Answer, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, Answer{QuestionID: id, Value: s.values[id]})
	}
	return out
}

// Map returns a copy of the answers keyed by question id.
func (s *AnswerSet) Map() map[string]Value {
	out := make(map[string]Value, len(s.values))
	for id, v := range s.values {
		out[id] = v
	}
	return out
}

// Fingerprint is a canonical encoding of the set, independent of insertion
// order. Two sets with the same answers share a fingerprint.
func (s *AnswerSet) Fingerprint() string {
	ids := make([]string, 0, len(s.values))
	for id := range s.values {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	var b strings.Builder
	for _, id := range ids {
		b.WriteString(id)
		b.WriteByte('=')
		b.WriteString(s.values[id].canonical())
		b.WriteByte('\x1e')
	}
	return b.String()
}
