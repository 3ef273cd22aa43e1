package attrs

import (
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/mrsinham/slices2dicom/internal/util"
)

// Canonical text layouts used by Value.String and ParseValue.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04:05.000"

	dicomDate = "20060102"
	dicomTime = "150405.000"
)

// Value is a tagged attribute value. The zero Value is unset.
type Value struct {
	kind Kind
	set  bool
	s    string
	i    int
	f    float64
	t    time.Time
	vec  []float64
}

// Str returns a string value.
func Str(s string) Value { return Value{kind: KindString, set: true, s: s} }

// Date returns a date value; the clock part of t is ignored.
func Date(t time.Time) Value {
	y, m, d := t.Date()
	return Value{kind: KindDate, set: true, t: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// Time returns a time-of-day value with millisecond precision; the date part
// of t is ignored.
func Time(t time.Time) Value {
	ms := t.Nanosecond() / int(time.Millisecond)
	return Value{kind: KindTime, set: true, t: time.Date(0, 1, 1, t.Hour(), t.Minute(), t.Second(), ms*int(time.Millisecond), time.UTC)}
}

// Int returns an integer value.
func Int(i int) Value { return Value{kind: KindInt, set: true, i: i} }

// Float returns a floating point value.
func Float(f float64) Value { return Value{kind: KindFloat, set: true, f: f} }

// Vector returns a vector value holding a copy of v.
func Vector(v ...float64) Value {
	return Value{kind: KindVector, set: true, vec: slices.Clone(v)}
}

func (v Value) Kind() Kind   { return v.kind }
func (v Value) IsSet() bool  { return v.set }
func (v Value) Text() string { return v.s }
func (v Value) Integer() int { return v.i }

// Number returns the value of a float attribute, or the integer widened.
func (v Value) Number() float64 {
	if v.kind == KindInt {
		return float64(v.i)
	}
	return v.f
}

// Clock returns the date or time of day held by date and time values.
func (v Value) Clock() time.Time { return v.t }

// Components returns a copy of a vector value.
func (v Value) Components() []float64 { return slices.Clone(v.vec) }

// Equal reports whether both values have the same kind and content.
func (v Value) Equal(o Value) bool {
	if v.set != o.set || v.kind != o.kind {
		return false
	}
	if !v.set {
		return true
	}
	switch v.kind {
	case KindString:
		return v.s == o.s
	case KindDate, KindTime:
		return v.t.Equal(o.t)
	case KindInt:
		return v.i == o.i
	case KindFloat:
		return v.f == o.f
	case KindVector:
		return slices.Equal(v.vec, o.vec)
	}
	return false
}

// String returns the canonical text form, which ParseValue accepts back.
func (v Value) String() string {
	if !v.set {
		return ""
	}
	switch v.kind {
	case KindString:
		return v.s
	case KindDate:
		return v.t.Format(DateLayout)
	case KindTime:
		return v.t.Format(TimeLayout)
	case KindInt:
		return strconv.Itoa(v.i)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindVector:
		parts := make([]string, len(v.vec))
		for i, c := range v.vec {
			parts[i] = strconv.FormatFloat(c, 'g', -1, 64)
		}
		return strings.Join(parts, ",")
	}
	return ""
}

// DICOM returns the value formatted for its DICOM value representation.
// String values holding backslashes are split into multiple values.
func (v Value) DICOM() []string {
	if !v.set {
		return nil
	}
	switch v.kind {
	case KindString:
		return util.SplitMulti(v.s)
	case KindDate:
		return []string{v.t.Format(dicomDate)}
	case KindTime:
		return []string{v.t.Format(dicomTime)}
	case KindInt:
		return []string{util.FormatIS(v.i)}
	case KindFloat:
		return []string{util.FormatDS(v.f)}
	case KindVector:
		out := make([]string, len(v.vec))
		for i, c := range v.vec {
			out[i] = util.FormatDS(c)
		}
		return out
	}
	return nil
}

// conform checks v against the declared kind of t and applies the tag's
// length limit.
func conform(t Tag, v Value) (Value, error) {
	if !t.Valid() {
		return Value{}, ErrUnknownTag
	}
	info := t.Info()
	if v.kind != info.Kind {
		return Value{}, &TypeMismatchError{Tag: t, Want: info.Kind, Got: v.kind}
	}
	switch info.Kind {
	case KindString:
		v.s = util.Truncate(v.s, info.MaxLen)
	case KindVector:
		if info.Size > 0 && len(v.vec) != info.Size {
			return Value{}, &TypeMismatchError{
				Tag: t, Want: info.Kind, Got: v.kind,
				Detail: strconv.Itoa(info.Size) + " components required, got " + strconv.Itoa(len(v.vec)),
			}
		}
	}
	return v, nil
}
