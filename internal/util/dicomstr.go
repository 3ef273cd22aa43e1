package util

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

// maxDSLen is the maximum length of a DICOM Decimal String value.
const maxDSLen = 16

// FormatDS converts a float64 to a DICOM Decimal String of at most 16 characters.
func FormatDS(f float64) string {
	if f == 0 {
		return "0"
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	for prec := 15; len(s) > maxDSLen && prec > 0; prec-- {
		s = strconv.FormatFloat(f, 'g', prec, 64)
	}
	return s
}

// FormatIS converts an int to a DICOM Integer String.
func FormatIS(i int) string {
	return strconv.Itoa(i)
}

// Truncate shortens s to at most n bytes without splitting a UTF-8 sequence.
// n <= 0 leaves s untouched.
func Truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// SplitMulti splits a DICOM multi-valued string on backslashes.
func SplitMulti(s string) []string {
	return strings.Split(s, `\`)
}
