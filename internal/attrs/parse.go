package attrs

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	dateLayouts = []string{DateLayout, dicomDate, "2006/01/02"}
	timeLayouts = []string{TimeLayout, "15:04:05", "15:04", dicomTime, "150405", "1504"}
)

// ParseValue parses the text form of a value for tag t. Dates accept
// YYYY-MM-DD or YYYYMMDD, times HH:MM[:SS[.fff]] or HHMM[SS[.fff]], vectors
// comma or backslash separated components. An empty string yields an unset
// value.
func ParseValue(t Tag, s string) (Value, error) {
	if !t.Valid() {
		return Value{}, ErrUnknownTag
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return Value{}, nil
	}
	info := t.Info()
	switch info.Kind {
	case KindString:
		return conform(t, Str(s))
	case KindDate:
		for _, layout := range dateLayouts {
			if d, err := time.Parse(layout, s); err == nil {
				return Date(d), nil
			}
		}
		return Value{}, fmt.Errorf("%s: invalid date %q (expected YYYY-MM-DD)", t, s)
	case KindTime:
		for _, layout := range timeLayouts {
			if d, err := time.Parse(layout, s); err == nil {
				return Time(d), nil
			}
		}
		return Value{}, fmt.Errorf("%s: invalid time %q (expected HH:MM:SS)", t, s)
	case KindInt:
		i, err := strconv.Atoi(s)
		if err != nil {
			return Value{}, fmt.Errorf("%s: invalid integer %q", t, s)
		}
		return Int(i), nil
	case KindFloat:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Value{}, fmt.Errorf("%s: invalid number %q", t, s)
		}
		return Float(f), nil
	case KindVector:
		fields := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == '\\' })
		vec := make([]float64, len(fields))
		for i, field := range fields {
			f, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				return Value{}, fmt.Errorf("%s: invalid component %q", t, field)
			}
			vec[i] = f
		}
		return conform(t, Vector(vec...))
	}
	return Value{}, fmt.Errorf("%s: unsupported kind %s", t, info.Kind)
}

// ParseAssignments parses "Name=Value" pairs into a dictionary. Names are
// looked up case-insensitively.
func ParseAssignments(assignments []string) (*Dictionary, error) {
	d := New()
	for _, a := range assignments {
		name, raw, ok := strings.Cut(a, "=")
		if !ok {
			return nil, fmt.Errorf("invalid assignment %q (expected Name=Value)", a)
		}
		t, err := Lookup(name)
		if err != nil {
			return nil, err
		}
		v, err := ParseValue(t, raw)
		if err != nil {
			return nil, err
		}
		if err := d.Set(t, v); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// ClearedTags returns the tags given an empty value, "Name=", in
// assignments. Malformed or unknown assignments are skipped, ParseAssignments
// reports them.
func ClearedTags(assignments []string) []Tag {
	var tags []Tag
	for _, a := range assignments {
		name, raw, ok := strings.Cut(a, "=")
		if !ok || strings.TrimSpace(raw) != "" {
			continue
		}
		if t, err := Lookup(name); err == nil {
			tags = append(tags, t)
		}
	}
	return tags
}
