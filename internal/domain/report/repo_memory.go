package report

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/radpilot/radpilot/pkg/pagination"
)

type memoryRepo struct {
	mu      sync.RWMutex
	reports map[uuid.UUID]*Report
}

// NewMemoryRepo returns a process-local Repository. Stored reports are
// copied in and out so callers never share state with the store.
func NewMemoryRepo() Repository {
	return &memoryRepo{reports: make(map[uuid.UUID]*Report)}
}

func (m *memoryRepo) Create(_ context.Context, r *Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.reports {
		if existing.StudyID != r.StudyID {
			continue
		}
		if existing.IsFinalized() {
			return ErrReportFinalized
		}
		return ErrVersionConflict
	}
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	now := time.Now().UTC()
	r.VersionID = 1
	r.CreatedAt = now
	r.UpdatedAt = now
	m.reports[r.ID] = r.Clone()
	return nil
}

func (m *memoryRepo) GetByID(_ context.Context, id uuid.UUID) (*Report, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.reports[id]
	if !ok {
		return nil, ErrNotFound
	}
	return r.Clone(), nil
}

func (m *memoryRepo) GetByStudy(_ context.Context, studyID uuid.UUID) (*Report, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var best *Report
	for _, r := range m.reports {
		if r.StudyID != studyID {
			continue
		}
		if best == nil || preferred(r, best) {
			best = r
		}
	}
	if best == nil {
		return nil, ErrNotFound
	}
	return best.Clone(), nil
}

// preferred orders a study's reports: the finalized record first, then the
// newest draft.
func preferred(a, b *Report) bool {
	if a.IsFinalized() != b.IsFinalized() {
		return a.IsFinalized()
	}
	return a.CreatedAt.After(b.CreatedAt)
}

// Update overwrites a stored draft written at r.VersionID. A stored report
// that is already finalized is never overwritten.
func (m *memoryRepo) Update(_ context.Context, r *Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.reports[r.ID]
	if !ok {
		return ErrNotFound
	}
	if existing.IsFinalized() {
		return ErrReportFinalized
	}
	if existing.VersionID != r.VersionID {
		return ErrVersionConflict
	}
	r.CreatedAt = existing.CreatedAt
	r.VersionID = existing.VersionID + 1
	r.UpdatedAt = time.Now().UTC()
	m.reports[r.ID] = r.Clone()
	return nil
}

func (m *memoryRepo) Search(_ context.Context, params map[string]string, limit, offset int) ([]*Report, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var matched []*Report
	for _, r := range m.reports {
		if v, ok := params["study_id"]; ok && r.StudyID.String() != v {
			continue
		}
		if v, ok := params["patient_id"]; ok && r.PatientID.String() != v {
			continue
		}
		if v, ok := params["status"]; ok && r.Status != v {
			continue
		}
		if v, ok := params["modality"]; ok && string(r.Modality) != v {
			continue
		}
		matched = append(matched, r)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	pageItems := pagination.Slice(matched, limit, offset)
	items := make([]*Report, 0, len(pageItems))
	for _, r := range pageItems {
		items = append(items, r.Clone())
	}
	return items, len(matched), nil
}
