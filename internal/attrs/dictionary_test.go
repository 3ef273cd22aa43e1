package attrs

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestSetGet(t *testing.T) {
	d := New()
	if _, ok := d.Get(PatientName); ok {
		t.Fatal("fresh dictionary should have PatientName unset")
	}
	if err := d.Set(PatientName, Str("DOE^John")); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	v, ok := d.Get(PatientName)
	if !ok || v.Text() != "DOE^John" {
		t.Errorf("Get(PatientName) = %v, %v, want DOE^John, true", v, ok)
	}

	if err := d.Set(PatientName, Value{}); err != nil {
		t.Fatalf("Set(unset) error = %v", err)
	}
	if d.IsSet(PatientName) {
		t.Error("setting an unset value should remove the tag")
	}
}

func TestSet_TypeMismatch(t *testing.T) {
	tests := []struct {
		name string
		tag  Tag
		val  Value
	}{
		{"string for int", SeriesNumber, Str("1")},
		{"int for float", SliceThickness, Int(1)},
		{"float for date", StudyDate, Float(1)},
		{"vector for string", PatientID, Vector(1, 2, 3)},
		{"short vector", ImagePositionPatient, Vector(1, 2)},
		{"long orientation", ImageOrientationPatient, Vector(1, 0, 0, 0, 1, 0, 0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := New()
			err := d.Set(tt.tag, tt.val)
			if !errors.Is(err, ErrTypeMismatch) {
				t.Fatalf("Set() error = %v, want ErrTypeMismatch", err)
			}
			var tm *TypeMismatchError
			if !errors.As(err, &tm) || tm.Tag != tt.tag {
				t.Errorf("error should be a *TypeMismatchError for %s, got %v", tt.tag, err)
			}
			if d.IsSet(tt.tag) {
				t.Error("failed Set should leave the tag unset")
			}
		})
	}
}

func TestSet_TruncatesToLimit(t *testing.T) {
	tests := []struct {
		tag Tag
		max int
	}{
		{PatientName, 64},
		{PatientID, 64},
		{StudyID, 16},
		{PatientSex, 16},
		{StudyDescription, 64},
		{StudyInstanceUID, 64},
	}
	for _, tt := range tests {
		t.Run(tt.tag.String(), func(t *testing.T) {
			d := New()
			if err := d.Set(tt.tag, Str(strings.Repeat("A", 200))); err != nil {
				t.Fatalf("Set() error = %v", err)
			}
			v, _ := d.Get(tt.tag)
			if len(v.Text()) != tt.max {
				t.Errorf("len = %d, want %d", len(v.Text()), tt.max)
			}
		})
	}
}

func TestSetSlice(t *testing.T) {
	d := New()
	d.SetSliceCount(3)

	if err := d.SetSlice(SliceLocation, 1, Float(2.5)); err != nil {
		t.Fatalf("SetSlice() error = %v", err)
	}
	if v, ok := d.GetSlice(SliceLocation, 1); !ok || v.Number() != 2.5 {
		t.Errorf("GetSlice(1) = %v, %v, want 2.5", v, ok)
	}
	if _, ok := d.GetSlice(SliceLocation, 0); ok {
		t.Error("slice 0 has no value and no fallback, want unset")
	}

	if err := d.SetSlice(SliceLocation, 3, Float(1)); !errors.Is(err, ErrSliceIndex) {
		t.Errorf("SetSlice(out of range) error = %v, want ErrSliceIndex", err)
	}
	if err := d.SetSlice(SliceLocation, -1, Float(1)); !errors.Is(err, ErrSliceIndex) {
		t.Errorf("SetSlice(-1) error = %v, want ErrSliceIndex", err)
	}
	if err := d.SetSlice(PatientName, 0, Str("X")); !errors.Is(err, ErrNotPerSlice) {
		t.Errorf("SetSlice(PatientName) error = %v, want ErrNotPerSlice", err)
	}
	if err := d.SetSlice(SliceLocation, 0, Str("X")); !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("SetSlice(wrong kind) error = %v, want ErrTypeMismatch", err)
	}
}

func TestGetSlice_FallsBackToSeriesValue(t *testing.T) {
	d := New()
	d.SetSliceCount(2)
	if err := d.Set(PixelSpacing, Vector(0.5, 0.5)); err != nil {
		t.Fatal(err)
	}
	if err := d.SetSlice(PixelSpacing, 1, Vector(0.7, 0.7)); err != nil {
		t.Fatal(err)
	}

	v0, _ := d.GetSlice(PixelSpacing, 0)
	v1, _ := d.GetSlice(PixelSpacing, 1)
	if !v0.Equal(Vector(0.5, 0.5)) {
		t.Errorf("slice 0 = %v, want fallback 0.5,0.5", v0)
	}
	if !v1.Equal(Vector(0.7, 0.7)) {
		t.Errorf("slice 1 = %v, want 0.7,0.7", v1)
	}
}

func TestSetAllSlices(t *testing.T) {
	d := New()
	d.SetSliceCount(4)
	if err := d.SetAllSlices(ImageOrientationPatient, Vector(1, 0, 0, 0, 1, 0)); err != nil {
		t.Fatalf("SetAllSlices() error = %v", err)
	}
	for i := 0; i < 4; i++ {
		v, ok := d.GetSlice(ImageOrientationPatient, i)
		if !ok || !v.Equal(Vector(1, 0, 0, 0, 1, 0)) {
			t.Errorf("slice %d = %v, %v", i, v, ok)
		}
	}
	if err := d.SetAllSlices(StudyID, Str("1")); !errors.Is(err, ErrNotPerSlice) {
		t.Errorf("SetAllSlices(StudyID) error = %v, want ErrNotPerSlice", err)
	}
}

func TestFinalize(t *testing.T) {
	t.Run("fills from fallback", func(t *testing.T) {
		d := New()
		d.SetSliceCount(3)
		_ = d.Set(InstanceNumber, Int(9))
		_ = d.SetSlice(InstanceNumber, 0, Int(1))
		if err := d.Finalize(); err != nil {
			t.Fatalf("Finalize() error = %v", err)
		}
		for i, want := range []int{1, 9, 9} {
			v, _ := d.GetSlice(InstanceNumber, i)
			if v.Integer() != want {
				t.Errorf("slice %d = %d, want %d", i, v.Integer(), want)
			}
		}
	})

	t.Run("missing without fallback", func(t *testing.T) {
		d := New()
		d.SetSliceCount(3)
		_ = d.SetSlice(SliceLocation, 0, Float(0))
		_ = d.SetSlice(SliceLocation, 1, Float(1))
		if err := d.Finalize(); !errors.Is(err, ErrIncompleteSlices) {
			t.Errorf("Finalize() error = %v, want ErrIncompleteSlices", err)
		}
	})

	t.Run("resized sequences keep one value per slice", func(t *testing.T) {
		d := New()
		d.SetSliceCount(2)
		_ = d.SetAllSlices(SliceLocation, Float(1))
		d.SetSliceCount(5)
		_ = d.Set(SliceLocation, Float(0))
		if err := d.Finalize(); err != nil {
			t.Fatalf("Finalize() error = %v", err)
		}
		for i := 0; i < 5; i++ {
			if _, ok := d.GetSlice(SliceLocation, i); !ok {
				t.Errorf("slice %d unset after Finalize", i)
			}
		}
	})
}

func TestInstance(t *testing.T) {
	d := New()
	d.SetSliceCount(2)
	_ = d.Set(PatientName, Str("DOE^Jane"))
	_ = d.Set(SliceLocation, Float(-1))
	_ = d.SetSlice(SliceLocation, 1, Float(3))

	in := d.Instance(1)
	if v, ok := in.Get(PatientName); !ok || v.Text() != "DOE^Jane" {
		t.Errorf("instance PatientName = %v", v)
	}
	if v, _ := in.Get(SliceLocation); v.Number() != 3 {
		t.Errorf("instance SliceLocation = %v, want 3", v)
	}
	if v, _ := d.Instance(0).Get(SliceLocation); v.Number() != -1 {
		t.Errorf("instance 0 SliceLocation = %v, want fallback -1", v)
	}

	// Instances are copies.
	_ = in.Set(PatientName, Str("OTHER"))
	if v, _ := d.Get(PatientName); v.Text() != "DOE^Jane" {
		t.Error("mutating an instance changed the dictionary")
	}

	tags := in.Tags()
	if len(tags) != 2 || tags[0] != PatientName || tags[1] != SliceLocation {
		t.Errorf("Tags() = %v", tags)
	}
}

func TestCloneAndMerge(t *testing.T) {
	base := New()
	_ = base.Set(PatientID, Str("0"))
	_ = base.Set(Modality, Str("OT"))

	clone := base.Clone()
	_ = clone.Set(PatientID, Str("42"))
	if v, _ := base.Get(PatientID); v.Text() != "0" {
		t.Error("Clone() shares state with the original")
	}

	over := New()
	_ = over.Set(Modality, Str("MR"))
	over.SetSliceCount(2)
	_ = over.SetSlice(SliceLocation, 1, Float(5))

	base.Merge(over)
	if v, _ := base.Get(Modality); v.Text() != "MR" {
		t.Errorf("Modality after merge = %v, want MR", v)
	}
	if v, _ := base.Get(PatientID); v.Text() != "0" {
		t.Errorf("PatientID after merge = %v, want 0", v)
	}
	if base.SliceCount() != 2 {
		t.Errorf("SliceCount() = %d, want 2", base.SliceCount())
	}
	if v, ok := base.GetSlice(SliceLocation, 1); !ok || v.Number() != 5 {
		t.Errorf("merged slice value = %v, %v", v, ok)
	}
}

func TestConcurrentSlices(t *testing.T) {
	d := New()
	d.SetSliceCount(64)
	_ = d.Set(PatientName, Str("X"))

	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = d.SetSlice(SliceLocation, i, Float(float64(i)))
			_ = d.Instance(i)
		}(i)
	}
	wg.Wait()

	if err := d.Finalize(); err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}
	for i := 0; i < 64; i++ {
		if v, _ := d.GetSlice(SliceLocation, i); v.Number() != float64(i) {
			t.Errorf("slice %d = %v", i, v)
		}
	}
}

func TestValueDICOM(t *testing.T) {
	day := time.Date(2024, 3, 9, 14, 30, 5, 250*int(time.Millisecond), time.UTC)
	tests := []struct {
		name string
		val  Value
		want []string
	}{
		{"string", Str("ABC"), []string{"ABC"}},
		{"multi", Str(`ORIGINAL\PRIMARY`), []string{"ORIGINAL", "PRIMARY"}},
		{"date", Date(day), []string{"20240309"}},
		{"time", Time(day), []string{"143005.250"}},
		{"int", Int(12), []string{"12"}},
		{"float", Float(0.5), []string{"0.5"}},
		{"vector", Vector(1, 0, -0.5), []string{"1", "0", "-0.5"}},
		{"unset", Value{}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.val.DICOM()
			if strings.Join(got, "|") != strings.Join(tt.want, "|") || len(got) != len(tt.want) {
				t.Errorf("DICOM() = %q, want %q", got, tt.want)
			}
		})
	}
}
