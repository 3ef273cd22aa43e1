// Package modalities lists the DICOM modalities a converted series may be
// labelled with.
package modalities

import "strings"

// Modality represents a DICOM imaging modality type.
type Modality string

const (
	CR Modality = "CR" // Computed Radiography
	CT Modality = "CT" // Computed Tomography
	DX Modality = "DX" // Digital Radiography
	ES Modality = "ES" // Endoscopy
	MG Modality = "MG" // Mammography
	MR Modality = "MR" // Magnetic Resonance
	NM Modality = "NM" // Nuclear Medicine
	OT Modality = "OT" // Other
	PT Modality = "PT" // Positron Emission Tomography
	RF Modality = "RF" // Radio Fluoroscopy
	SC Modality = "SC" // Secondary Capture
	US Modality = "US" // Ultrasound
	XA Modality = "XA" // X-Ray Angiography
)

var descriptions = map[Modality]string{
	CR: "Computed Radiography",
	CT: "Computed Tomography",
	DX: "Digital Radiography",
	ES: "Endoscopy",
	MG: "Mammography",
	MR: "Magnetic Resonance",
	NM: "Nuclear Medicine",
	OT: "Other",
	PT: "Positron Emission Tomography",
	RF: "Radio Fluoroscopy",
	SC: "Secondary Capture",
	US: "Ultrasound",
	XA: "X-Ray Angiography",
}

// AllModalities returns all supported modalities.
func AllModalities() []Modality {
	return []Modality{CR, CT, DX, ES, MG, MR, NM, OT, PT, RF, SC, US, XA}
}

// IsValid checks if a modality string is valid.
func IsValid(m string) bool {
	_, ok := descriptions[Modality(m)]
	return ok
}

// Normalize trims and upper-cases a modality code.
func Normalize(m string) string {
	return strings.ToUpper(strings.TrimSpace(m))
}

// Description returns the human readable name of the modality.
func (m Modality) Description() string {
	if d, ok := descriptions[m]; ok {
		return d
	}
	return string(m)
}
