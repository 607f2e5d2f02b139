package imaging

import (
	"bytes"
	"fmt"
	"path"
	"strings"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

// Header holds the DICOM attributes recorded for an uploaded image.
type Header struct {
	Modality         string `json:"modality,omitempty"`
	StudyInstanceUID string `json:"study_instance_uid,omitempty"`
	StudyDate        string `json:"study_date,omitempty"`
	SOPInstanceUID   string `json:"sop_instance_uid,omitempty"`
}

// ReadHeader parses a DICOM file, skipping pixel data.
func ReadHeader(data []byte) (*Header, error) {
	ds, err := dicom.Parse(bytes.NewReader(data), int64(len(data)), nil, dicom.SkipPixelData())
	if err != nil {
		return nil, fmt.Errorf("parse dicom: %w", err)
	}
	return &Header{
		Modality:         firstString(ds, tag.Modality),
		StudyInstanceUID: firstString(ds, tag.StudyInstanceUID),
		StudyDate:        firstString(ds, tag.StudyDate),
		SOPInstanceUID:   firstString(ds, tag.SOPInstanceUID),
	}, nil
}

func firstString(ds dicom.Dataset, t tag.Tag) string {
	elem, err := ds.FindElementByTag(t)
	if err != nil || elem == nil {
		return ""
	}
	values, ok := elem.Value.GetValue().([]string)
	if !ok || len(values) == 0 {
		return ""
	}
	return strings.TrimSpace(strings.TrimRight(values[0], "\x00"))
}

func hasDICOMExtension(name string) bool {
	switch strings.ToLower(path.Ext(name)) {
	case ".dcm", ".dicom":
		return true
	}
	return false
}
