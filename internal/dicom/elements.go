// Package dicom encodes converted slices as DICOM Part 10 files, reads them
// back, and indexes them in a DICOMDIR.
package dicom

import (
	"fmt"
	"sort"
	"strings"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"

	"github.com/mrsinham/slices2dicom/internal/attrs"
	"github.com/mrsinham/slices2dicom/internal/util"
)

// UIDs written into every file.
const (
	ExplicitVRLittleEndian = "1.2.840.10008.1.2.1"

	SecondaryCaptureImageStorage               = "1.2.840.10008.5.1.4.1.1.7"
	MultiFrameGrayscaleByteSecondaryCapture    = "1.2.840.10008.5.1.4.1.1.7.2"
	MultiFrameGrayscaleWordSecondaryCapture    = "1.2.840.10008.5.1.4.1.1.7.3"
	MultiFrameTrueColorSecondaryCaptureStorage = "1.2.840.10008.5.1.4.1.1.7.4"

	MediaStorageDirectoryStorage = "1.2.840.10008.1.3.10"

	// ImplementationVersionName is limited to 16 characters.
	ImplementationVersionName = "SLICES2DICOM_1"
)

// ImplementationClassUID identifies files written by this package.
var ImplementationClassUID = util.GenerateDeterministicUID("slices2dicom implementation")

// mustNewElement creates a new DICOM element, panicking on error.
// Only used with compile-time known tags and value types.
func mustNewElement(t tag.Tag, value any) *dicom.Element {
	elem, err := dicom.NewElement(t, value)
	if err != nil {
		panic(fmt.Sprintf("failed to create element %v: %v", t, err))
	}
	return elem
}

// attributeElement converts one attribute into its DICOM element. Internal
// attributes have no element and yield nil.
func attributeElement(t attrs.Tag, v attrs.Value) (*dicom.Element, error) {
	info := t.Info()
	if info.Internal || !v.IsSet() {
		return nil, nil
	}
	elem, err := dicom.NewElement(info.Tag, v.DICOM())
	if err != nil {
		return nil, fmt.Errorf("element %s: %w", t, err)
	}
	return elem, nil
}

// sortElements orders elements by ascending tag, the order Part 10 requires.
func sortElements(elems []*dicom.Element) {
	sort.SliceStable(elems, func(i, j int) bool {
		a, b := elems[i].Tag, elems[j].Tag
		if a.Group != b.Group {
			return a.Group < b.Group
		}
		return a.Element < b.Element
	})
}

// stringValue returns the values of a string element joined with a
// backslash, or "" when the element is absent.
func stringValue(ds dicom.Dataset, t tag.Tag) string {
	elem, err := ds.FindElementByTag(t)
	if err != nil || elem == nil {
		return ""
	}
	switch v := elem.Value.GetValue().(type) {
	case []string:
		parts := make([]string, len(v))
		for i, s := range v {
			parts[i] = strings.TrimRight(s, " \x00")
		}
		return strings.Join(parts, `\`)
	case []int:
		if len(v) > 0 {
			return fmt.Sprint(v[0])
		}
	}
	return ""
}
