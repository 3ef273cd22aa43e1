package convert

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mrsinham/slices2dicom/internal/attrs"
)

var (
	// ErrEmptyInput is reported when the input directory holds no candidate files.
	ErrEmptyInput = errors.New("input directory contains no image files")
	// ErrNoReadableImages is reported when every input file failed to decode.
	ErrNoReadableImages = errors.New("no readable images")
	// ErrInconsistentSlice marks a slice whose size, samples per pixel or bit
	// depth differs from the first readable slice.
	ErrInconsistentSlice = errors.New("slice does not match the series pixel layout")
	// ErrAborted marks slices that were never attempted.
	ErrAborted = errors.New("conversion aborted")
)

// InputError is fatal to a run: the input directory is unusable.
type InputError struct {
	Dir string
	Err error
}

func (e *InputError) Error() string { return fmt.Sprintf("input %s: %v", e.Dir, e.Err) }
func (e *InputError) Unwrap() error { return e.Err }

// DecodeError records an input file that could not be decoded.
type DecodeError struct {
	File string
	Err  error
}

func (e *DecodeError) Error() string { return fmt.Sprintf("decode %s: %v", e.File, e.Err) }
func (e *DecodeError) Unwrap() error { return e.Err }

// AttributeError records required attributes missing or invalid at write time.
type AttributeError struct {
	Tags []attrs.Tag
	Err  error
}

func (e *AttributeError) Error() string {
	names := make([]string, len(e.Tags))
	for i, t := range e.Tags {
		names[i] = t.String()
	}
	if e.Err != nil {
		return fmt.Sprintf("attributes %s: %v", strings.Join(names, ", "), e.Err)
	}
	return fmt.Sprintf("missing or invalid attributes: %s", strings.Join(names, ", "))
}

func (e *AttributeError) Unwrap() error { return e.Err }

// EncodeError records a slice the encoder rejected or failed to write.
type EncodeError struct {
	File string
	Err  error
}

func (e *EncodeError) Error() string { return fmt.Sprintf("encode %s: %v", e.File, e.Err) }
func (e *EncodeError) Unwrap() error { return e.Err }

// IsInputError reports whether err is (or wraps) an *InputError.
func IsInputError(err error) bool {
	var ie *InputError
	return errors.As(err, &ie)
}
