package dicom

import (
	"fmt"
	"strings"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"

	"github.com/mrsinham/slices2dicom/internal/attrs"
	"github.com/mrsinham/slices2dicom/internal/imageio"
)

// InstanceFile is a DICOM file read back from disk.
type InstanceFile struct {
	Path              string
	SOPClassUID       string
	TransferSyntaxUID string
	// Attributes holds every known attribute present in the file.
	Attributes attrs.Instance
	Frames     []imageio.PixelBuffer
}

// ReadInstance parses the file at path, its attributes and pixel data.
func ReadInstance(path string) (*InstanceFile, error) {
	ds, err := dicom.ParseFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	decoded, err := imageio.DecodeDataset(ds)
	if err != nil {
		return nil, fmt.Errorf("pixel data of %s: %w", path, err)
	}
	values, err := readAttributes(ds)
	if err != nil {
		return nil, fmt.Errorf("attributes of %s: %w", path, err)
	}
	return &InstanceFile{
		Path:              path,
		SOPClassUID:       stringValue(ds, tag.SOPClassUID),
		TransferSyntaxUID: stringValue(ds, tag.TransferSyntaxUID),
		Attributes:        values,
		Frames:            decoded.Frames,
	}, nil
}

// ReadAttributes parses only the attributes of the file at path, skipping
// pixel data.
func ReadAttributes(path string) (attrs.Instance, error) {
	ds, err := parseDICOMTolerant(path)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return readAttributes(ds)
}

func readAttributes(ds dicom.Dataset) (attrs.Instance, error) {
	inst := make(attrs.Instance)
	for _, t := range attrs.AllTags() {
		info := t.Info()
		if info.Internal {
			continue
		}
		raw := stringValue(ds, info.Tag)
		if strings.TrimSpace(raw) == "" {
			continue
		}
		v, err := attrs.ParseValue(t, raw)
		if err != nil {
			return nil, err
		}
		if err := inst.Set(t, v); err != nil {
			return nil, err
		}
	}
	return inst, nil
}
