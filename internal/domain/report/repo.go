package report

import (
	"context"

	"github.com/google/uuid"
)

// Repository stores reports, at most one per study. GetByID and GetByStudy
// return ErrNotFound when nothing matches. Create refuses a second report for
// a study; Update refuses a stale VersionID with ErrVersionConflict and a
// finalized row with ErrReportFinalized.
type Repository interface {
	Create(ctx context.Context, r *Report) error
	GetByID(ctx context.Context, id uuid.UUID) (*Report, error)
	GetByStudy(ctx context.Context, studyID uuid.UUID) (*Report, error)
	Update(ctx context.Context, r *Report) error
	Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Report, int, error)
}
