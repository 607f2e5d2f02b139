package imaging

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/radpilot/radpilot/internal/domain/clinical"
	"github.com/radpilot/radpilot/internal/platform/blobstore"
)

type Studies interface {
	GetStudy(ctx context.Context, id uuid.UUID) (*clinical.Study, error)
}

// Service stores study uploads and records their DICOM headers. Images are
// kept as-is; nothing is rendered.
type Service struct {
	store   blobstore.BlobStore
	studies Studies
	logger  zerolog.Logger
}

func NewService(store blobstore.BlobStore, studies Studies, logger zerolog.Logger) *Service {
	return &Service{store: store, studies: studies, logger: logger}
}

// Upload stores a file against an existing study. A file is tagged dicom when
// its name carries a DICOM extension or its header parses.
func (s *Service) Upload(ctx context.Context, studyID uuid.UUID, uploadedBy, fileName, contentType string, content io.Reader) (*Image, error) {
	if _, err := s.studies.GetStudy(ctx, studyID); err != nil {
		return nil, err
	}
	data, err := io.ReadAll(io.LimitReader(content, blobstore.MaxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading upload: %w", err)
	}
	if int64(len(data)) > blobstore.MaxFileSize {
		return nil, blobstore.ErrFileTooLarge
	}

	header, parseErr := ReadHeader(data)
	tags := map[string]string{tagKind: kindOf(fileName, contentType, header)}
	if header != nil {
		header.tags(tags)
	} else if hasDICOMExtension(fileName) {
		s.logger.Warn().Err(parseErr).
			Str("study_id", studyID.String()).
			Str("file_name", fileName).
			Msg("dicom header could not be read")
	}
	if contentType == "" && tags[tagKind] == KindDICOM {
		contentType = "application/dicom"
	}

	meta, err := s.store.Upload(ctx, blobstore.BlobMetadata{
		StudyID:     studyID.String(),
		FileName:    fileName,
		ContentType: contentType,
		CreatedBy:   uploadedBy,
		Tags:        tags,
	}, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	img := fromBlob(meta)
	s.logger.Info().
		Str("study_id", studyID.String()).
		Str("image_id", img.ID).
		Str("kind", img.Kind).
		Int64("size", img.Size).
		Msg("image uploaded")
	return img, nil
}

func (s *Service) GetImage(ctx context.Context, id string) (*Image, error) {
	meta, err := s.store.GetMetadata(ctx, id)
	if err != nil {
		return nil, err
	}
	return fromBlob(meta), nil
}

// OpenImage returns the stored file content. The caller closes it.
func (s *Service) OpenImage(ctx context.Context, id string) (io.ReadCloser, *Image, error) {
	rc, meta, err := s.store.Download(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return rc, fromBlob(meta), nil
}

func (s *Service) ListImages(ctx context.Context, studyID uuid.UUID, limit, offset int) ([]*Image, int, error) {
	if _, err := s.studies.GetStudy(ctx, studyID); err != nil {
		return nil, 0, err
	}
	metas, total, err := s.store.ListByStudy(ctx, studyID.String(), limit, offset)
	if err != nil {
		return nil, 0, err
	}
	out := make([]*Image, 0, len(metas))
	for _, m := range metas {
		out = append(out, fromBlob(m))
	}
	return out, total, nil
}

func (s *Service) DeleteImage(ctx context.Context, id string) error {
	return s.store.Delete(ctx, id)
}
