package dicom

import (
	"encoding/binary"
	"fmt"
)

const (
	preambleLen  = 128 + 4
	undefinedLen = 0xFFFFFFFF
)

type elementTag struct{ group, element uint16 }

var (
	tagFirstRootRecord = elementTag{0x0004, 0x1200}
	tagLastRootRecord  = elementTag{0x0004, 0x1202}
	tagRecordSequence  = elementTag{0x0004, 0x1220}
	tagNextRecord      = elementTag{0x0004, 0x1400}
	tagLowerRecord     = elementTag{0x0004, 0x1420}

	tagItem              = elementTag{0xFFFE, 0xE000}
	tagItemDelimiter     = elementTag{0xFFFE, 0xE00D}
	tagSequenceDelimiter = elementTag{0xFFFE, 0xE0DD}
)

// longVRs use a 4 byte length preceded by two reserved bytes.
var longVRs = map[string]bool{
	"OB": true, "OD": true, "OF": true, "OL": true, "OV": true, "OW": true,
	"SQ": true, "SV": true, "UC": true, "UN": true, "UR": true, "UT": true, "UV": true,
}

// recordLayout locates the offset fields of one directory record.
type recordLayout struct {
	start      int
	nextField  int
	lowerField int
}

// patchOffsets fills in the offset fields of an encoded Explicit VR Little
// Endian DICOMDIR. levels holds the hierarchy level of each record in
// sequence order. Offsets count from the first byte of the file.
func patchOffsets(data []byte, levels []int) error {
	var (
		firstField, lastField = -1, -1
		records               []recordLayout
	)

	pos := preambleLen
	for pos < len(data) {
		t, vr, length, header, err := readHeader(data, pos)
		if err != nil {
			return err
		}
		valuePos := pos + header
		switch t {
		case tagFirstRootRecord:
			firstField = valuePos
		case tagLastRootRecord:
			lastField = valuePos
		case tagRecordSequence:
			if vr != "SQ" {
				return fmt.Errorf("directory record sequence has VR %s", vr)
			}
			var end int
			records, end, err = readRecords(data, valuePos, length)
			if err != nil {
				return err
			}
			pos = end
			continue
		}
		if length == undefinedLen {
			return fmt.Errorf("undefined length element %04X,%04X at %d", t.group, t.element, pos)
		}
		pos = valuePos + int(length)
	}

	if firstField < 0 || lastField < 0 {
		return fmt.Errorf("root directory offset fields not found")
	}
	if len(records) != len(levels) {
		return fmt.Errorf("found %d directory records, expected %d", len(records), len(levels))
	}

	put := func(field, target int) {
		binary.LittleEndian.PutUint32(data[field:], uint32(target))
	}
	if len(records) > 0 {
		put(firstField, records[0].start)
		lastRoot := 0
		for i, l := range levels {
			if l == levelPatient {
				lastRoot = i
			}
		}
		put(lastField, records[lastRoot].start)
	}

	for i, rec := range records {
		if rec.nextField < 0 || rec.lowerField < 0 {
			return fmt.Errorf("record %d lacks offset fields", i)
		}
		next, lower := 0, 0
		for j := i + 1; j < len(levels); j++ {
			if levels[j] < levels[i] {
				break
			}
			if levels[j] == levels[i] {
				next = records[j].start
				break
			}
		}
		if i+1 < len(levels) && levels[i+1] == levels[i]+1 {
			lower = records[i+1].start
		}
		put(rec.nextField, next)
		put(rec.lowerField, lower)
	}
	return nil
}

// readRecords walks the items of the directory record sequence whose value
// starts at pos. It returns the record layouts and the position following
// the sequence.
func readRecords(data []byte, pos int, length uint32) ([]recordLayout, int, error) {
	end := len(data)
	if length != undefinedLen {
		end = pos + int(length)
	}

	var records []recordLayout
	for pos < end {
		t, itemLen, err := readItemHeader(data, pos)
		if err != nil {
			return nil, 0, err
		}
		if t == tagSequenceDelimiter {
			return records, pos + 8, nil
		}
		if t != tagItem {
			return nil, 0, fmt.Errorf("expected item at %d, found %04X,%04X", pos, t.group, t.element)
		}

		rec := recordLayout{start: pos, nextField: -1, lowerField: -1}
		pos += 8
		itemEnd := len(data)
		if itemLen != undefinedLen {
			itemEnd = pos + int(itemLen)
		}
		for pos < itemEnd {
			if t, _, err := readItemHeader(data, pos); err == nil && t == tagItemDelimiter {
				pos += 8
				break
			}
			et, _, elen, header, err := readHeader(data, pos)
			if err != nil {
				return nil, 0, err
			}
			if elen == undefinedLen {
				return nil, 0, fmt.Errorf("undefined length element in record at %d", rec.start)
			}
			switch et {
			case tagNextRecord:
				rec.nextField = pos + header
			case tagLowerRecord:
				rec.lowerField = pos + header
			}
			pos += header + int(elen)
		}
		records = append(records, rec)
	}
	return records, pos, nil
}

// readHeader decodes an Explicit VR Little Endian element header.
func readHeader(data []byte, pos int) (t elementTag, vr string, length uint32, header int, err error) {
	if pos+8 > len(data) {
		return t, "", 0, 0, fmt.Errorf("truncated element at %d", pos)
	}
	t = elementTag{binary.LittleEndian.Uint16(data[pos:]), binary.LittleEndian.Uint16(data[pos+2:])}
	vr = string(data[pos+4 : pos+6])
	if longVRs[vr] {
		if pos+12 > len(data) {
			return t, vr, 0, 0, fmt.Errorf("truncated element at %d", pos)
		}
		return t, vr, binary.LittleEndian.Uint32(data[pos+8:]), 12, nil
	}
	return t, vr, uint32(binary.LittleEndian.Uint16(data[pos+6:])), 8, nil
}

func readItemHeader(data []byte, pos int) (elementTag, uint32, error) {
	if pos+8 > len(data) {
		return elementTag{}, 0, fmt.Errorf("truncated item at %d", pos)
	}
	t := elementTag{binary.LittleEndian.Uint16(data[pos:]), binary.LittleEndian.Uint16(data[pos+2:])}
	return t, binary.LittleEndian.Uint32(data[pos+4:]), nil
}
