package clinical

import (
	"context"

	"github.com/google/uuid"
)

type PatientRepository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetByNHI(ctx context.Context, nhi string) (*Patient, error)
	// Search matches "search" against full name or NHI, case-insensitively.
	Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Patient, int, error)
}

type StudyRepository interface {
	Create(ctx context.Context, s *Study) error
	GetByID(ctx context.Context, id uuid.UUID) (*Study, error)
	Update(ctx context.Context, s *Study) error
	Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Study, int, error)
}
