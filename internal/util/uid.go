// Package util provides UID generation and DICOM string helpers.
package util

import (
	"fmt"
	"math/big"
	"regexp"

	"github.com/google/uuid"
)

// uuidRoot is the UID root for UUID-derived UIDs (ISO/IEC 9834-8).
const uuidRoot = "2.25."

// MaxUIDLen is the maximum length of a DICOM UI value.
const MaxUIDLen = 64

var uidPattern = regexp.MustCompile(`^(0|[1-9][0-9]*)(\.(0|[1-9][0-9]*))*$`)

// NewUID returns a fresh random UID of the form 2.25.<uuid as decimal>.
func NewUID() string {
	return fromUUID(uuid.New())
}

// GenerateDeterministicUID returns a UID derived from seed. The same seed
// always yields the same UID.
func GenerateDeterministicUID(seed string) string {
	return fromUUID(uuid.NewSHA1(uuid.NameSpaceOID, []byte(seed)))
}

// DeriveUID returns a child UID of parent for the given 1-based number.
// When parent.number would exceed 64 characters, a deterministic 2.25 UID
// derived from both is returned instead.
func DeriveUID(parent string, number int) string {
	child := fmt.Sprintf("%s.%d", parent, number)
	if len(child) <= MaxUIDLen && ValidUID(parent) {
		return child
	}
	return GenerateDeterministicUID(child)
}

// ValidUID reports whether s is a syntactically valid DICOM UID.
func ValidUID(s string) bool {
	return len(s) > 0 && len(s) <= MaxUIDLen && uidPattern.MatchString(s)
}

func fromUUID(u uuid.UUID) string {
	n := new(big.Int).SetBytes(u[:])
	return uuidRoot + n.String()
}
