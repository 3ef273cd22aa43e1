package attrs

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownTag       = errors.New("attrs: unknown tag")
	ErrTypeMismatch     = errors.New("attrs: type mismatch")
	ErrNotPerSlice      = errors.New("attrs: tag does not vary per slice")
	ErrSliceIndex       = errors.New("attrs: slice index out of range")
	ErrIncompleteSlices = errors.New("attrs: per-slice values incomplete")
)

// TypeMismatchError is returned when a value does not match the declared kind
// of its tag. It unwraps to ErrTypeMismatch.
type TypeMismatchError struct {
	Tag  Tag
	Want Kind
	Got  Kind
	// Detail is set for vector size mismatches.
	Detail string
}

func (e *TypeMismatchError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s expects %s: %s", ErrTypeMismatch, e.Tag, e.Want, e.Detail)
	}
	return fmt.Sprintf("%s: %s expects %s, got %s", ErrTypeMismatch, e.Tag, e.Want, e.Got)
}

func (e *TypeMismatchError) Unwrap() error { return ErrTypeMismatch }
