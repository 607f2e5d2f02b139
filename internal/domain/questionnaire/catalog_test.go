package questionnaire

import (
	"errors"
	"strings"
	"testing"
	"testing/fstest"
)

func TestQuestionsForModality_Counts(t *testing.T) {
	cases := map[Modality]int{
		ModalityUSAbdomen: 34,
		ModalityCTAbdomen: 43,
		ModalityChestXray: 29,
	}
	for m, want := range cases {
		got := QuestionsForModality(m)
		if len(got) != want {
			t.Errorf("%s: expected %d questions, got %d", m, want, len(got))
		}
	}
}

func TestQuestionsForModality_Unknown(t *testing.T) {
	got := QuestionsForModality(Modality("mri-brain"))
	if got == nil {
		t.Fatal("expected empty slice, got nil")
	}
	if len(got) != 0 {
		t.Errorf("expected no questions, got %d", len(got))
	}
}

func TestLookup_Unknown(t *testing.T) {
	_, err := Lookup(Modality("mri-brain"))
	if !errors.Is(err, ErrUnknownModality) {
		t.Errorf("expected ErrUnknownModality, got %v", err)
	}
}

func TestParseModality(t *testing.T) {
	for _, m := range Modalities() {
		got, err := ParseModality(string(m))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != m {
			t.Errorf("expected %s, got %s", m, got)
		}
	}
	if _, err := ParseModality("US-ABDOMEN"); !errors.Is(err, ErrUnknownModality) {
		t.Errorf("expected ErrUnknownModality for wrong case, got %v", err)
	}
}

func TestCatalogs_ConditionsReferenceEarlierQuestions(t *testing.T) {
	for _, m := range Modalities() {
		qs := QuestionsForModality(m)
		pos := make(map[string]int, len(qs))
		for i, q := range qs {
			if _, dup := pos[q.ID]; dup {
				t.Errorf("%s: duplicate id %s", m, q.ID)
			}
			pos[q.ID] = i
		}
		for i, q := range qs {
			if q.ConditionalOn == nil {
				continue
			}
			j, ok := pos[q.ConditionalOn.QuestionID]
			if !ok {
				t.Errorf("%s: %s depends on missing %s", m, q.ID, q.ConditionalOn.QuestionID)
				continue
			}
			if j >= i {
				t.Errorf("%s: %s depends on later question %s", m, q.ID, q.ConditionalOn.QuestionID)
			}
		}
	}
}

func TestCatalogs_ChoiceQuestionsHaveOptions(t *testing.T) {
	for _, m := range Modalities() {
		for _, q := range QuestionsForModality(m) {
			if (q.Type == TypeRadio || q.Type == TypeDropdown) && len(q.Options) == 0 {
				t.Errorf("%s: %s has no options", m, q.ID)
			}
		}
	}
}

func TestCatalogs_KnownConditions(t *testing.T) {
	c, err := Lookup(ModalityUSAbdomen)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	q, ok := c.Question("us-7")
	if !ok {
		t.Fatal("expected us-7 in catalog")
	}
	if q.ConditionalOn == nil || q.ConditionalOn.QuestionID != "us-5" || !q.ConditionalOn.Value.Equal(StringValue("Yes")) {
		t.Errorf("expected us-7 conditional on us-5=Yes, got %+v", q.ConditionalOn)
	}
	if q.Unit != "cm" {
		t.Errorf("expected unit cm, got %q", q.Unit)
	}

	cxr, _ := Lookup(ModalityChestXray)
	last := cxr.Questions[len(cxr.Questions)-1]
	if last.ID != "cxr-29" || last.Required {
		t.Errorf("expected optional cxr-29 last, got %s required=%v", last.ID, last.Required)
	}
}

func TestQuestionsForModality_ReturnsCopy(t *testing.T) {
	qs := QuestionsForModality(ModalityUSAbdomen)
	qs[1].Options[0] = "mutated"
	qs[0].Text = "mutated"

	again := QuestionsForModality(ModalityUSAbdomen)
	if again[1].Options[0] != "Fasting" {
		t.Errorf("catalog options were mutated: %v", again[1].Options)
	}
	if again[0].Text == "mutated" {
		t.Error("catalog text was mutated")
	}
}

func TestValidate_ForwardReference(t *testing.T) {
	c := Catalog{
		Modality: ModalityUSAbdomen,
		Questions: []Question{
			{ID: "a", Section: "S", Text: "A", Type: TypeText, ConditionalOn: &Condition{QuestionID: "b", Value: StringValue("Yes")}},
			{ID: "b", Section: "S", Text: "B", Type: TypeRadio, Options: []string{"Yes", "No"}},
		},
	}
	err := Validate(c)
	if err == nil {
		t.Fatal("expected error for forward reference")
	}
	if !strings.Contains(err.Error(), "not declared earlier") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestValidate_CollectsAllProblems(t *testing.T) {
	c := Catalog{
		Questions: []Question{
			{ID: "a", Section: "S", Text: "A", Type: "slider"},
			{ID: "a", Section: "S", Text: "A again", Type: TypeDropdown},
		},
	}
	err := Validate(c)
	if err == nil {
		t.Fatal("expected error")
	}
	msg := err.Error()
	for _, want := range []string{"invalid type: slider", "duplicate id", "options are required"} {
		if !strings.Contains(msg, want) {
			t.Errorf("expected %q in %q", want, msg)
		}
	}
}

func TestLoadCatalogs_FromFS(t *testing.T) {
	fsys := fstest.MapFS{
		"catalogs/chest-xray.yaml": {Data: []byte(`modality: chest-xray
title: "Test"
questions:
  - id: q1
    section: "Lines"
    text: "Lines present"
    type: radio
    options: ["None", "Present"]
    required: true
  - id: q2
    section: "Lines"
    text: "Count"
    type: numeric
    required: true
    conditional_on:
      question_id: q1
      value: "Present"
  - id: q3
    section: "Lines"
    text: "Confirmed"
    type: text
    required: false
    conditional_on:
      question_id: q2
      value: 2
`)},
	}
	catalogs, err := LoadCatalogs(fsys)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c, ok := catalogs[ModalityChestXray]
	if !ok {
		t.Fatal("expected chest-xray catalog")
	}
	if len(c.Questions) != 3 {
		t.Fatalf("expected 3 questions, got %d", len(c.Questions))
	}
	if !c.Questions[2].ConditionalOn.Value.Equal(NumberValue(2)) {
		t.Errorf("expected numeric condition value, got %v", c.Questions[2].ConditionalOn.Value)
	}
}

func TestLoadCatalogs_RejectsUnknownModality(t *testing.T) {
	fsys := fstest.MapFS{
		"catalogs/mri.yaml": {Data: []byte("modality: mri-brain\nquestions: []\n")},
	}
	_, err := LoadCatalogs(fsys)
	if !errors.Is(err, ErrUnknownModality) {
		t.Errorf("expected ErrUnknownModality, got %v", err)
	}
}
