package geometry

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/mrsinham/slices2dicom/internal/attrs"
)

// Calculator derives slice geometry from the series orientation, the
// position of the first slice and the spacing between slices.
type Calculator struct {
	Orientation Orientation
	Origin      r3.Vec
	Spacing     float64
}

// Slice is the geometry of one slice.
type Slice struct {
	Index    int
	Position r3.Vec
	Row      r3.Vec
	Column   r3.Vec
	// Location is the signed distance from the first slice along the normal.
	Location float64
}

// Slice returns the geometry of slice i: origin + i·spacing·normal.
func (c Calculator) Slice(i int) Slice {
	row, col := c.Orientation.Directions()
	normal := r3.Unit(r3.Cross(row, col))
	offset := float64(i) * c.Spacing
	return Slice{
		Index:    i,
		Position: r3.Add(c.Origin, r3.Scale(offset, normal)),
		Row:      row,
		Column:   col,
		Location: offset,
	}
}

// Validate returns warnings about geometry that is accepted but suspicious.
func (c Calculator) Validate() []string {
	var warnings []string
	if c.Spacing <= 0 || math.IsNaN(c.Spacing) {
		warnings = append(warnings, fmt.Sprintf("spacing between slices is %g: slices will not be ordered along the %s normal", c.Spacing, c.Orientation))
	}
	if math.IsNaN(c.Origin.X) || math.IsNaN(c.Origin.Y) || math.IsNaN(c.Origin.Z) {
		warnings = append(warnings, "origin has undefined components")
	}
	return warnings
}

// Apply stores the per-slice geometry attributes of s in d.
func Apply(d *attrs.Dictionary, s Slice) error {
	pos := attrs.Vector(s.Position.X, s.Position.Y, s.Position.Z)
	if err := d.SetSlice(attrs.ImagePositionPatient, s.Index, pos); err != nil {
		return err
	}
	iop := attrs.Vector(s.Row.X, s.Row.Y, s.Row.Z, s.Column.X, s.Column.Y, s.Column.Z)
	if err := d.SetSlice(attrs.ImageOrientationPatient, s.Index, iop); err != nil {
		return err
	}
	return d.SetSlice(attrs.SliceLocation, s.Index, attrs.Float(s.Location))
}
