package clinical

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/radpilot/radpilot/pkg/pagination"
)

// =========== Patient Repository ===========

type patientRepoMemory struct {
	mu       sync.RWMutex
	patients map[uuid.UUID]*Patient
}

func NewPatientRepoMemory() PatientRepository {
	return &patientRepoMemory{patients: make(map[uuid.UUID]*Patient)}
}

func (m *patientRepoMemory) Create(_ context.Context, p *Patient) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	now := time.Now().UTC()
	p.VersionID = 1
	p.CreatedAt = now
	p.UpdatedAt = now
	cp := *p
	m.patients[p.ID] = &cp
	return nil
}

func (m *patientRepoMemory) GetByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.patients[id]
	if !ok {
		return nil, fmt.Errorf("patient %s: %w", id, ErrNotFound)
	}
	cp := *p
	return &cp, nil
}

func (m *patientRepoMemory) GetByNHI(_ context.Context, nhi string) (*Patient, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.patients {
		if p.NHI != nil && *p.NHI == nhi {
			cp := *p
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("patient with nhi %s: %w", nhi, ErrNotFound)
}

func (m *patientRepoMemory) Search(_ context.Context, params map[string]string, limit, offset int) ([]*Patient, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	term := strings.ToLower(params["search"])
	var matched []*Patient
	for _, p := range m.patients {
		if term != "" && !patientMatches(p, term) {
			continue
		}
		cp := *p
		matched = append(matched, &cp)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	total := len(matched)
	return pagination.Slice(matched, limit, offset), total, nil
}

func patientMatches(p *Patient, term string) bool {
	if strings.Contains(strings.ToLower(p.FullName()), term) {
		return true
	}
	return p.NHI != nil && strings.Contains(strings.ToLower(*p.NHI), term)
}

// =========== Study Repository ===========

type studyRepoMemory struct {
	mu      sync.RWMutex
	studies map[uuid.UUID]*Study
}

func NewStudyRepoMemory() StudyRepository {
	return &studyRepoMemory{studies: make(map[uuid.UUID]*Study)}
}

func (m *studyRepoMemory) Create(_ context.Context, s *Study) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	now := time.Now().UTC()
	s.VersionID = 1
	s.CreatedAt = now
	s.UpdatedAt = now
	cp := *s
	m.studies[s.ID] = &cp
	return nil
}

func (m *studyRepoMemory) GetByID(_ context.Context, id uuid.UUID) (*Study, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.studies[id]
	if !ok {
		return nil, fmt.Errorf("study %s: %w", id, ErrNotFound)
	}
	cp := *s
	return &cp, nil
}

func (m *studyRepoMemory) Update(_ context.Context, s *Study) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.studies[s.ID]
	if !ok {
		return fmt.Errorf("study %s: %w", s.ID, ErrNotFound)
	}
	s.CreatedAt = existing.CreatedAt
	s.VersionID = existing.VersionID + 1
	s.UpdatedAt = time.Now().UTC()
	cp := *s
	m.studies[s.ID] = &cp
	return nil
}

func (m *studyRepoMemory) Search(_ context.Context, params map[string]string, limit, offset int) ([]*Study, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var matched []*Study
	for _, s := range m.studies {
		if v, ok := params["patient_id"]; ok && s.PatientID.String() != v {
			continue
		}
		if v, ok := params["status"]; ok && s.Status != v {
			continue
		}
		if v, ok := params["modality"]; ok && string(s.Modality) != v {
			continue
		}
		cp := *s
		matched = append(matched, &cp)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	total := len(matched)
	return pagination.Slice(matched, limit, offset), total, nil
}
