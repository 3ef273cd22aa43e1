// Package attrs holds the typed DICOM attribute set used to describe a series
// and the per-slice values that vary from one instance to the next.
package attrs

import (
	"fmt"
	"sort"
	"strings"

	"github.com/suyashkumar/dicom/pkg/tag"
)

// Scope represents the DICOM hierarchy level an attribute belongs to.
type Scope int

const (
	// ScopePatient attributes are identical for every instance of a patient.
	ScopePatient Scope = iota
	// ScopeStudy attributes are identical within a study.
	ScopeStudy
	// ScopeSeries attributes are identical within a series.
	ScopeSeries
	// ScopeImage attributes may hold one value per slice.
	ScopeImage
)

// String returns the string representation of a Scope.
func (s Scope) String() string {
	switch s {
	case ScopePatient:
		return "Patient"
	case ScopeStudy:
		return "Study"
	case ScopeSeries:
		return "Series"
	case ScopeImage:
		return "Image"
	default:
		return "Unknown"
	}
}

// Kind is the value type an attribute accepts.
type Kind int

const (
	KindString Kind = iota
	KindDate
	KindTime
	KindInt
	KindFloat
	KindVector
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindDate:
		return "date"
	case KindTime:
		return "time"
	case KindInt:
		return "integer"
	case KindFloat:
		return "float"
	case KindVector:
		return "vector"
	default:
		return "unknown"
	}
}

// Tag identifies one attribute of the fixed enumeration below.
type Tag int

const (
	PatientName Tag = iota
	PatientID
	PatientBirthDate
	PatientSex

	StudyInstanceUID
	StudyDate
	StudyTime
	StudyID
	StudyDescription
	AccessionNumber
	ReferringPhysicianName
	InstitutionName

	Modality
	SeriesInstanceUID
	SeriesNumber
	SeriesDescription
	SeriesDate
	SeriesTime
	SeriesTimeIncrement
	PatientPosition
	FrameOfReferenceUID
	SliceThickness
	SpacingBetweenSlices
	ImageType
	ConversionType
	DerivationDescription
	NumberOfTemporalPositions

	SOPInstanceUID
	InstanceNumber
	ImagePositionPatient
	ImageOrientationPatient
	SliceLocation
	AcquisitionTime
	TemporalPositionIdentifier
	PixelSpacing

	numTags
)

// TagInfo describes an attribute: its DICOM tag, scope and value constraints.
type TagInfo struct {
	Name  string
	Tag   tag.Tag
	Scope Scope
	Kind  Kind
	// MaxLen bounds string values, longer values are truncated on Set. Zero
	// means unbounded.
	MaxLen int
	// Size is the required component count of a vector value.
	Size int
	// Internal attributes drive the conversion but are never encoded.
	Internal bool
	// Persist marks attributes remembered between runs.
	Persist bool
}

// DICOM value representation length limits.
const (
	maxLO = 64
	maxPN = 64
	maxSH = 16
	maxCS = 16
	maxUI = 64
	maxLT = 1024
)

var registry = [numTags]TagInfo{
	PatientName:      {Name: "PatientName", Tag: tag.PatientName, Scope: ScopePatient, Kind: KindString, MaxLen: maxPN, Persist: true},
	PatientID:        {Name: "PatientID", Tag: tag.PatientID, Scope: ScopePatient, Kind: KindString, MaxLen: maxLO, Persist: true},
	PatientBirthDate: {Name: "PatientBirthDate", Tag: tag.PatientBirthDate, Scope: ScopePatient, Kind: KindDate, Persist: true},
	PatientSex:       {Name: "PatientSex", Tag: tag.PatientSex, Scope: ScopePatient, Kind: KindString, MaxLen: maxCS, Persist: true},

	StudyInstanceUID:       {Name: "StudyInstanceUID", Tag: tag.StudyInstanceUID, Scope: ScopeStudy, Kind: KindString, MaxLen: maxUI},
	StudyDate:              {Name: "StudyDate", Tag: tag.StudyDate, Scope: ScopeStudy, Kind: KindDate},
	StudyTime:              {Name: "StudyTime", Tag: tag.StudyTime, Scope: ScopeStudy, Kind: KindTime},
	StudyID:                {Name: "StudyID", Tag: tag.StudyID, Scope: ScopeStudy, Kind: KindString, MaxLen: maxSH, Persist: true},
	StudyDescription:       {Name: "StudyDescription", Tag: tag.StudyDescription, Scope: ScopeStudy, Kind: KindString, MaxLen: maxLO, Persist: true},
	AccessionNumber:        {Name: "AccessionNumber", Tag: tag.AccessionNumber, Scope: ScopeStudy, Kind: KindString, MaxLen: maxSH, Persist: true},
	ReferringPhysicianName: {Name: "ReferringPhysicianName", Tag: tag.ReferringPhysicianName, Scope: ScopeStudy, Kind: KindString, MaxLen: maxPN, Persist: true},
	InstitutionName:        {Name: "InstitutionName", Tag: tag.InstitutionName, Scope: ScopeStudy, Kind: KindString, MaxLen: maxLO, Persist: true},

	Modality:              {Name: "Modality", Tag: tag.Modality, Scope: ScopeSeries, Kind: KindString, MaxLen: maxCS, Persist: true},
	SeriesInstanceUID:     {Name: "SeriesInstanceUID", Tag: tag.SeriesInstanceUID, Scope: ScopeSeries, Kind: KindString, MaxLen: maxUI},
	SeriesNumber:          {Name: "SeriesNumber", Tag: tag.SeriesNumber, Scope: ScopeSeries, Kind: KindInt, Persist: true},
	SeriesDescription:     {Name: "SeriesDescription", Tag: tag.SeriesDescription, Scope: ScopeSeries, Kind: KindString, MaxLen: maxLO, Persist: true},
	SeriesDate:            {Name: "SeriesDate", Tag: tag.SeriesDate, Scope: ScopeSeries, Kind: KindDate},
	SeriesTime:            {Name: "SeriesTime", Tag: tag.SeriesTime, Scope: ScopeSeries, Kind: KindTime},
	SeriesTimeIncrement:   {Name: "SeriesTimeIncrement", Scope: ScopeSeries, Kind: KindFloat, Internal: true, Persist: true},
	PatientPosition:       {Name: "PatientPosition", Tag: tag.PatientPosition, Scope: ScopeSeries, Kind: KindString, MaxLen: maxCS, Persist: true},
	FrameOfReferenceUID:   {Name: "FrameOfReferenceUID", Tag: tag.FrameOfReferenceUID, Scope: ScopeSeries, Kind: KindString, MaxLen: maxUI},
	SliceThickness:        {Name: "SliceThickness", Tag: tag.SliceThickness, Scope: ScopeSeries, Kind: KindFloat},
	SpacingBetweenSlices:  {Name: "SpacingBetweenSlices", Tag: tag.SpacingBetweenSlices, Scope: ScopeSeries, Kind: KindFloat},
	ImageType:             {Name: "ImageType", Tag: tag.ImageType, Scope: ScopeSeries, Kind: KindString, MaxLen: maxLO},
	ConversionType:        {Name: "ConversionType", Tag: tag.ConversionType, Scope: ScopeSeries, Kind: KindString, MaxLen: maxCS},
	DerivationDescription: {Name: "DerivationDescription", Tag: tag.DerivationDescription, Scope: ScopeSeries, Kind: KindString, MaxLen: maxLT},

	NumberOfTemporalPositions: {Name: "NumberOfTemporalPositions", Tag: tag.NumberOfTemporalPositions, Scope: ScopeSeries, Kind: KindInt},

	SOPInstanceUID:          {Name: "SOPInstanceUID", Tag: tag.SOPInstanceUID, Scope: ScopeImage, Kind: KindString, MaxLen: maxUI},
	InstanceNumber:          {Name: "InstanceNumber", Tag: tag.InstanceNumber, Scope: ScopeImage, Kind: KindInt},
	ImagePositionPatient:    {Name: "ImagePositionPatient", Tag: tag.ImagePositionPatient, Scope: ScopeImage, Kind: KindVector, Size: 3},
	ImageOrientationPatient: {Name: "ImageOrientationPatient", Tag: tag.ImageOrientationPatient, Scope: ScopeImage, Kind: KindVector, Size: 6},
	SliceLocation:           {Name: "SliceLocation", Tag: tag.SliceLocation, Scope: ScopeImage, Kind: KindFloat},
	AcquisitionTime:         {Name: "AcquisitionTime", Tag: tag.AcquisitionTime, Scope: ScopeImage, Kind: KindTime},

	TemporalPositionIdentifier: {Name: "TemporalPositionIdentifier", Tag: tag.TemporalPositionIdentifier, Scope: ScopeImage, Kind: KindInt},
	PixelSpacing:               {Name: "PixelSpacing", Tag: tag.PixelSpacing, Scope: ScopeImage, Kind: KindVector, Size: 2},
}

// byName maps lowercase attribute names to tags.
var byName = func() map[string]Tag {
	m := make(map[string]Tag, numTags)
	for t := Tag(0); t < numTags; t++ {
		m[strings.ToLower(registry[t].Name)] = t
	}
	return m
}()

// Info returns the registry entry of t.
func (t Tag) Info() TagInfo {
	if !t.Valid() {
		return TagInfo{Name: fmt.Sprintf("Tag(%d)", int(t))}
	}
	return registry[t]
}

// Valid reports whether t belongs to the enumeration.
func (t Tag) Valid() bool { return t >= 0 && t < numTags }

func (t Tag) String() string { return t.Info().Name }

// PerSlice reports whether t may carry one value per slice.
func (t Tag) PerSlice() bool { return t.Info().Scope == ScopeImage }

// AllTags returns every known tag in enumeration order.
func AllTags() []Tag {
	tags := make([]Tag, numTags)
	for i := range tags {
		tags[i] = Tag(i)
	}
	return tags
}

// Lookup returns the tag for a given attribute name.
// The lookup is case-insensitive. If the name is unknown, the error carries a
// suggestion for the closest matching name (using Levenshtein distance).
func Lookup(name string) (Tag, error) {
	normalized := strings.ToLower(strings.TrimSpace(name))
	if t, ok := byName[normalized]; ok {
		return t, nil
	}
	if suggestion := closestName(normalized); suggestion != "" {
		return 0, fmt.Errorf("%w %q, did you mean %q?", ErrUnknownTag, name, suggestion)
	}
	return 0, fmt.Errorf("%w %q", ErrUnknownTag, name)
}

// closestName returns the registered name nearest to input, or "" when
// nothing is within five edits.
func closestName(input string) string {
	const maxDistance = 5
	best := maxDistance + 1
	var match string

	names := make([]string, 0, len(byName))
	for key := range byName {
		names = append(names, key)
	}
	sort.Strings(names)

	for _, key := range names {
		if d := levenshtein(input, key); d < best {
			best = d
			match = byName[key].String()
		}
	}
	if best <= maxDistance {
		return match
	}
	return ""
}

func levenshtein(a, b string) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}
