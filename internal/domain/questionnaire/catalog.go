package questionnaire

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"

	"gopkg.in/yaml.v3"
)

//go:embed catalogs/*.yaml
var catalogFS embed.FS

// Catalog is the ordered, immutable question list of one modality.
type Catalog struct {
	Modality  Modality   `yaml:"modality" json:"modality"`
	Title     string     `yaml:"title" json:"title"`
	Questions []Question `yaml:"questions" json:"questions"`
}

// Question returns the catalog question with the given id.
func (c Catalog) Question(id string) (Question, bool) {
	for _, q := range c.Questions {
		if q.ID == id {
			return q.clone(), true
		}
	}
	return Question{}, false
}

func (c Catalog) clone() Catalog {
	qs := make([]Question, len(c.Questions))
	for i, q := range c.Questions {
		qs[i] = q.clone()
	}
	c.Questions = qs
	return c
}

var registry = mustLoadCatalogs()

func mustLoadCatalogs() map[Modality]Catalog {
	catalogs, err := LoadCatalogs(catalogFS)
	if err != nil {
		panic(fmt.Sprintf("questionnaire: embedded catalogs: %v", err))
	}
	return catalogs
}

// LoadCatalogs decodes every *.yaml file under catalogs/ in fsys and checks
// each catalog's integrity.
func LoadCatalogs(fsys fs.FS) (map[Modality]Catalog, error) {
	files, err := fs.Glob(fsys, "catalogs/*.yaml")
	if err != nil {
		return nil, err
	}
	catalogs := make(map[Modality]Catalog, len(files))
	for _, name := range files {
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		var c Catalog
		if err := yaml.Unmarshal(data, &c); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path.Base(name), err)
		}
		if !validModalities[c.Modality] {
			return nil, fmt.Errorf("%s: %w: %q", path.Base(name), ErrUnknownModality, c.Modality)
		}
		if _, dup := catalogs[c.Modality]; dup {
			return nil, fmt.Errorf("%s: duplicate catalog for %s", path.Base(name), c.Modality)
		}
		if err := Validate(c); err != nil {
			return nil, fmt.Errorf("%s: %w", path.Base(name), err)
		}
		catalogs[c.Modality] = c
	}
	return catalogs, nil
}

// QuestionsForModality returns the modality's questions in declaration order.
// An unknown modality yields an empty list.
func QuestionsForModality(m Modality) []Question {
	c, ok := registry[m]
	if !ok {
		return []Question{}
	}
	return c.clone().Questions
}

// Lookup returns the modality's catalog, failing on an unknown modality.
func Lookup(m Modality) (Catalog, error) {
	c, ok := registry[m]
	if !ok {
		return Catalog{}, fmt.Errorf("%w: %q", ErrUnknownModality, m)
	}
	return c.clone(), nil
}

// Validate checks a catalog's integrity: unique ids, known types, options on
// choice questions, and conditions that reference an earlier question.
func Validate(c Catalog) error {
	var errs []error
	seen := make(map[string]bool, len(c.Questions))
	for i, q := range c.Questions {
		if q.ID == "" {
			errs = append(errs, fmt.Errorf("question %d: id is required", i))
			continue
		}
		if seen[q.ID] {
			errs = append(errs, fmt.Errorf("question %s: duplicate id", q.ID))
		}
		if q.Section == "" {
			errs = append(errs, fmt.Errorf("question %s: section is required", q.ID))
		}
		if q.Text == "" {
			errs = append(errs, fmt.Errorf("question %s: text is required", q.ID))
		}
		if !validQuestionTypes[q.Type] {
			errs = append(errs, fmt.Errorf("question %s: invalid type: %s", q.ID, q.Type))
		}
		if (q.Type == TypeRadio || q.Type == TypeDropdown) && len(q.Options) == 0 {
			errs = append(errs, fmt.Errorf("question %s: options are required for %s questions", q.ID, q.Type))
		}
		if dep := q.ConditionalOn; dep != nil {
			switch {
			case dep.QuestionID == q.ID:
				errs = append(errs, fmt.Errorf("question %s: depends on itself", q.ID))
			case !seen[dep.QuestionID]:
				errs = append(errs, fmt.Errorf("question %s: depends on %s which is not declared earlier", q.ID, dep.QuestionID))
			case dep.Value.IsZero():
				errs = append(errs, fmt.Errorf("question %s: condition value is required", q.ID))
			}
		}
		seen[q.ID] = true
	}
	return errors.Join(errs...)
}
