package main

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/huh"

	"github.com/mrsinham/slices2dicom/internal/attrs"
	"github.com/mrsinham/slices2dicom/internal/dicom/modalities"
	"github.com/mrsinham/slices2dicom/internal/params"
)

// formGroup is one page of the attribute form.
type formGroup struct {
	title string
	tags  []attrs.Tag
}

var formGroups = []formGroup{
	{"Patient", []attrs.Tag{attrs.PatientName, attrs.PatientID, attrs.PatientBirthDate, attrs.PatientSex}},
	{"Study", []attrs.Tag{attrs.StudyDescription, attrs.StudyID, attrs.AccessionNumber, attrs.ReferringPhysicianName, attrs.InstitutionName}},
	{"Series", []attrs.Tag{attrs.Modality, attrs.SeriesDescription, attrs.SeriesNumber, attrs.PatientPosition, attrs.SliceThickness}},
}

var formDescriptions = map[attrs.Tag]string{
	attrs.PatientName:      "Format: FAMILY^Given",
	attrs.PatientBirthDate: "Format: YYYY-MM-DD",
	attrs.SeriesNumber:     "Also names the output files",
	attrs.PatientPosition:  "e.g. HFS, FFS",
	attrs.SliceThickness:   "In mm",
}

// editAttributes lets the user review and change the resolved attributes.
func editAttributes(d *attrs.Dictionary) error {
	values := formValues(d)

	groups := make([]*huh.Group, 0, len(formGroups))
	for _, g := range formGroups {
		fields := make([]huh.Field, 0, len(g.tags))
		for _, t := range g.tags {
			fields = append(fields, formField(t, values[t]))
		}
		groups = append(groups, huh.NewGroup(fields...).Title(g.title))
	}

	form := huh.NewForm(groups...).WithShowHelp(false).WithShowErrors(true)
	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return errCancelled
		}
		return fmt.Errorf("attribute form: %w", err)
	}
	return applyFormValues(d, values)
}

// formValues returns the text form of every editable attribute of d.
func formValues(d *attrs.Dictionary) map[attrs.Tag]*string {
	values := make(map[attrs.Tag]*string)
	for _, g := range formGroups {
		for _, t := range g.tags {
			v, _ := d.Get(t)
			s := v.String()
			values[t] = &s
		}
	}
	return values
}

func formField(t attrs.Tag, value *string) huh.Field {
	switch t {
	case attrs.PatientSex:
		*value = params.NormalizeSex(*value)
		return huh.NewSelect[string]().
			Key(t.String()).
			Title("Sex").
			Options(
				huh.NewOption("Male", "M"),
				huh.NewOption("Female", "F"),
				huh.NewOption("Unspecified", "O"),
			).
			Value(value)
	case attrs.Modality:
		opts := make([]huh.Option[string], 0, len(modalities.AllModalities()))
		for _, m := range modalities.AllModalities() {
			opts = append(opts, huh.NewOption(fmt.Sprintf("%s - %s", m, m.Description()), string(m)))
		}
		return huh.NewSelect[string]().
			Key(t.String()).
			Title("Modality").
			Options(opts...).
			Value(value)
	}

	input := huh.NewInput().
		Key(t.String()).
		Title(t.String()).
		Value(value).
		Validate(func(s string) error {
			_, err := attrs.ParseValue(t, s)
			return err
		})
	if desc, ok := formDescriptions[t]; ok {
		input = input.Description(desc)
	}
	return input
}

// applyFormValues stores the edited values in d. An empty value unsets the
// attribute.
func applyFormValues(d *attrs.Dictionary, values map[attrs.Tag]*string) error {
	for _, g := range formGroups {
		for _, t := range g.tags {
			v, err := attrs.ParseValue(t, *values[t])
			if err != nil {
				return err
			}
			if err := d.Set(t, v); err != nil {
				return err
			}
		}
	}
	return nil
}
