package report

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/radpilot/radpilot/internal/domain/questionnaire"
	"github.com/radpilot/radpilot/internal/platform/db"
)

const uniqueViolation = "23505"

type reportRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &reportRepoPG{pool: pool}
}

func (r *reportRepoPG) conn(ctx context.Context) db.Querier {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const reportCols = `id, study_id, patient_id, modality, technique, findings, impression,
	internal_checks, status, radiologist_id, radiologist_name, finalized_at,
	qr_code_url, signature, version_id, created_at, updated_at`

func (r *reportRepoPG) scanReport(row pgx.Row) (*Report, error) {
	var rp Report
	var modality string
	err := row.Scan(&rp.ID, &rp.StudyID, &rp.PatientID, &modality, &rp.Technique, &rp.Findings, &rp.Impression,
		&rp.InternalChecks, &rp.Status, &rp.RadiologistID, &rp.RadiologistName, &rp.FinalizedAt,
		&rp.QRCodeURL, &rp.Signature, &rp.VersionID, &rp.CreatedAt, &rp.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	rp.Modality = questionnaire.Modality(modality)
	return &rp, nil
}

func (r *reportRepoPG) Create(ctx context.Context, rp *Report) error {
	existing, err := r.GetByStudy(ctx, rp.StudyID)
	switch {
	case err == nil && existing.IsFinalized():
		return ErrReportFinalized
	case err == nil:
		return ErrVersionConflict
	case !errors.Is(err, ErrNotFound):
		return err
	}
	if rp.ID == uuid.Nil {
		rp.ID = uuid.New()
	}
	err = r.conn(ctx).QueryRow(ctx, `
		INSERT INTO radiology_report (id, study_id, patient_id, modality, technique, findings, impression,
			internal_checks, status, radiologist_id, radiologist_name, finalized_at, qr_code_url, signature, version_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,1)
		RETURNING version_id, created_at, updated_at`,
		rp.ID, rp.StudyID, rp.PatientID, string(rp.Modality), rp.Technique, rp.Findings, rp.Impression,
		rp.InternalChecks, rp.Status, rp.RadiologistID, rp.RadiologistName, rp.FinalizedAt, rp.QRCodeURL, rp.Signature,
	).Scan(&rp.VersionID, &rp.CreatedAt, &rp.UpdatedAt)
	// a concurrent writer created the study's report first
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrVersionConflict
	}
	return err
}

func (r *reportRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Report, error) {
	return r.scanReport(r.conn(ctx).QueryRow(ctx, `SELECT `+reportCols+` FROM radiology_report WHERE id = $1`, id))
}

func (r *reportRepoPG) GetByStudy(ctx context.Context, studyID uuid.UUID) (*Report, error) {
	return r.scanReport(r.conn(ctx).QueryRow(ctx,
		`SELECT `+reportCols+` FROM radiology_report WHERE study_id = $1
			ORDER BY (status = 'finalized') DESC, created_at DESC LIMIT 1`, studyID))
}

// Update overwrites a stored draft written at rp.VersionID. The status guard
// in the WHERE clause keeps a finalized row from ever being rewritten.
func (r *reportRepoPG) Update(ctx context.Context, rp *Report) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE radiology_report SET technique=$2, findings=$3, impression=$4, internal_checks=$5,
			status=$6, radiologist_id=$7, radiologist_name=$8, finalized_at=$9, qr_code_url=$10,
			signature=$11, version_id=version_id+1, updated_at=NOW()
		WHERE id = $1 AND version_id = $12 AND status <> 'finalized'
		RETURNING version_id, updated_at`,
		rp.ID, rp.Technique, rp.Findings, rp.Impression, rp.InternalChecks,
		rp.Status, rp.RadiologistID, rp.RadiologistName, rp.FinalizedAt, rp.QRCodeURL, rp.Signature,
		rp.VersionID,
	).Scan(&rp.VersionID, &rp.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		stored, getErr := r.GetByID(ctx, rp.ID)
		if getErr != nil {
			return getErr
		}
		if stored.IsFinalized() {
			return ErrReportFinalized
		}
		return ErrVersionConflict
	}
	return err
}

func (r *reportRepoPG) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Report, int, error) {
	query := `SELECT ` + reportCols + ` FROM radiology_report WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM radiology_report WHERE 1=1`
	var args []interface{}
	idx := 1

	for _, f := range []struct{ param, col string }{
		{"study_id", "study_id"},
		{"patient_id", "patient_id"},
		{"status", "status"},
		{"modality", "modality"},
	} {
		if p, ok := params[f.param]; ok {
			query += fmt.Sprintf(` AND %s = $%d`, f.col, idx)
			countQuery += fmt.Sprintf(` AND %s = $%d`, f.col, idx)
			args = append(args, p)
			idx++
		}
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Report
	for rows.Next() {
		rp, err := r.scanReport(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, rp)
	}
	return items, total, rows.Err()
}
