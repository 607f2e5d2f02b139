package imaging

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/radpilot/radpilot/internal/platform/blobstore"
)

const (
	KindDICOM = "dicom"
	KindImage = "image"
	KindOther = "other"
)

const (
	tagKind             = "kind"
	tagModality         = "dicom_modality"
	tagStudyInstanceUID = "dicom_study_instance_uid"
	tagStudyDate        = "dicom_study_date"
	tagSOPInstanceUID   = "dicom_sop_instance_uid"
)

// Image is a file uploaded against a study.
type Image struct {
	ID          string    `json:"id"`
	StudyID     uuid.UUID `json:"study_id"`
	FileName    string    `json:"file_name"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	Hash        string    `json:"hash"`
	Kind        string    `json:"kind"`
	DICOM       *Header   `json:"dicom,omitempty"`
	UploadedBy  string    `json:"uploaded_by"`
	UploadedAt  time.Time `json:"uploaded_at"`
}

func kindOf(fileName, contentType string, h *Header) string {
	switch {
	case h != nil || hasDICOMExtension(fileName):
		return KindDICOM
	case strings.HasPrefix(contentType, "image/"):
		return KindImage
	default:
		return KindOther
	}
}

func (h *Header) tags(into map[string]string) {
	set := func(k, v string) {
		if v != "" {
			into[k] = v
		}
	}
	set(tagModality, h.Modality)
	set(tagStudyInstanceUID, h.StudyInstanceUID)
	set(tagStudyDate, h.StudyDate)
	set(tagSOPInstanceUID, h.SOPInstanceUID)
}

func fromBlob(m *blobstore.BlobMetadata) *Image {
	img := &Image{
		ID:          m.ID,
		FileName:    m.FileName,
		ContentType: m.ContentType,
		Size:        m.Size,
		Hash:        m.Hash,
		Kind:        m.Tags[tagKind],
		UploadedBy:  m.CreatedBy,
		UploadedAt:  m.CreatedAt,
	}
	if id, err := uuid.Parse(m.StudyID); err == nil {
		img.StudyID = id
	}
	if img.Kind == "" {
		img.Kind = KindOther
	}
	h := Header{
		Modality:         m.Tags[tagModality],
		StudyInstanceUID: m.Tags[tagStudyInstanceUID],
		StudyDate:        m.Tags[tagStudyDate],
		SOPInstanceUID:   m.Tags[tagSOPInstanceUID],
	}
	if h != (Header{}) {
		img.DICOM = &h
	}
	return img
}
