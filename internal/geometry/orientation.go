// Package geometry computes the patient-space position and orientation of
// each slice of a series.
package geometry

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"
)

// Orientation is the anatomical plane the slices were acquired in.
type Orientation int

const (
	Axial Orientation = iota
	Sagittal
	Coronal
)

// AllOrientations returns every supported orientation.
func AllOrientations() []Orientation {
	return []Orientation{Axial, Sagittal, Coronal}
}

func (o Orientation) String() string {
	switch o {
	case Axial:
		return "axial"
	case Sagittal:
		return "sagittal"
	case Coronal:
		return "coronal"
	default:
		return fmt.Sprintf("Orientation(%d)", int(o))
	}
}

// ParseOrientation parses an orientation name, case-insensitively. The short
// forms AX, SAG and COR are accepted.
func ParseOrientation(s string) (Orientation, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "axial", "ax", "transverse":
		return Axial, nil
	case "sagittal", "sag":
		return Sagittal, nil
	case "coronal", "cor":
		return Coronal, nil
	}
	return 0, fmt.Errorf("invalid orientation %q (expected axial|sagittal|coronal)", s)
}

// Directions returns the unit row and column direction cosines of the plane.
func (o Orientation) Directions() (row, col r3.Vec) {
	switch o {
	case Sagittal:
		return r3.Vec{Y: 1}, r3.Vec{Z: 1}
	case Coronal:
		return r3.Vec{X: 1}, r3.Vec{Z: 1}
	default:
		return r3.Vec{X: 1}, r3.Vec{Y: 1}
	}
}

// Normal returns the slice normal, row × column.
func (o Orientation) Normal() r3.Vec {
	row, col := o.Directions()
	return r3.Cross(row, col)
}

// Cosines returns the six ImageOrientationPatient values of the plane.
func (o Orientation) Cosines() []float64 {
	row, col := o.Directions()
	return []float64{row.X, row.Y, row.Z, col.X, col.Y, col.Z}
}
