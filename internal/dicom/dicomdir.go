package dicom

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"

	"github.com/mrsinham/slices2dicom/internal/util"
)

// DICOMDIRName is the file name of the media index.
const DICOMDIRName = "DICOMDIR"

// ErrNoInstances is returned when a DICOMDIR would index nothing.
var ErrNoInstances = errors.New("dicom: no instances to index")

// Directory record levels, in hierarchy order.
const (
	levelPatient = iota
	levelStudy
	levelSeries
	levelImage
)

var recordTypes = [...]string{"PATIENT", "STUDY", "SERIES", "IMAGE"}

type indexedImage struct {
	relPath        string
	sopClassUID    string
	sopInstanceUID string
	transferSyntax string
	instanceNumber int
}

type indexedSeries struct {
	uid      string
	number   string
	modality string
	images   []indexedImage
}

type indexedStudy struct {
	uid, id, date, time, description string
	series                           []*indexedSeries
}

type indexedPatient struct {
	id, name string
	studies  []*indexedStudy
}

// WriteDICOMDIR indexes every DICOM file below root in root/DICOMDIR,
// grouped by patient, study and series. It returns the number of image
// records written.
func WriteDICOMDIR(root string) (int, error) {
	patients, n, err := collect(root)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, ErrNoInstances
	}

	records, levels := buildRecords(patients)
	seq, err := dicom.NewElement(tag.DirectoryRecordSequence, records)
	if err != nil {
		return 0, fmt.Errorf("create directory record sequence: %w", err)
	}

	fileSetID := strings.ToUpper(filepath.Base(filepath.Clean(root)))
	fileSetID = strings.Map(func(r rune) rune {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' {
			return r
		}
		return '_'
	}, fileSetID)
	fileSetID = util.Truncate(fileSetID, 16)

	elems := []*dicom.Element{
		mustNewElement(tag.MediaStorageSOPClassUID, []string{MediaStorageDirectoryStorage}),
		mustNewElement(tag.MediaStorageSOPInstanceUID, []string{util.NewUID()}),
		mustNewElement(tag.TransferSyntaxUID, []string{ExplicitVRLittleEndian}),
		mustNewElement(tag.ImplementationClassUID, []string{ImplementationClassUID}),
		mustNewElement(tag.ImplementationVersionName, []string{ImplementationVersionName}),
		mustNewElement(tag.FileSetID, []string{fileSetID}),
		mustNewElement(tag.OffsetOfTheFirstDirectoryRecordOfTheRootDirectoryEntity, []int{0}),
		mustNewElement(tag.OffsetOfTheLastDirectoryRecordOfTheRootDirectoryEntity, []int{0}),
		mustNewElement(tag.FileSetConsistencyFlag, []int{0}),
		seq,
	}

	var buf bytes.Buffer
	if err := dicom.Write(&buf, dicom.Dataset{Elements: elems}); err != nil {
		return 0, fmt.Errorf("write DICOMDIR: %w", err)
	}
	data := buf.Bytes()
	if err := patchOffsets(data, levels); err != nil {
		return 0, fmt.Errorf("update DICOMDIR offsets: %w", err)
	}

	dest := filepath.Join(root, DICOMDIRName)
	tmp := dest + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return 0, fmt.Errorf("write DICOMDIR: %w", err)
	}
	if err := os.Rename(tmp, dest); err != nil {
		_ = os.Remove(tmp)
		return 0, fmt.Errorf("write DICOMDIR: %w", err)
	}
	return n, nil
}

// collect walks root and groups the DICOM files found, in first seen order.
// Files that do not parse as DICOM are ignored.
func collect(root string) ([]*indexedPatient, int, error) {
	var (
		patients []*indexedPatient
		count    int
	)
	byPatient := map[string]*indexedPatient{}
	byStudy := map[string]*indexedStudy{}
	bySeries := map[string]*indexedSeries{}

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || d.Name() == DICOMDIRName || strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		ds, err := parseDICOMTolerant(path)
		if err != nil {
			return nil
		}
		sopInstance := stringValue(ds, tag.SOPInstanceUID)
		if sopInstance == "" {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}

		patientKey := stringValue(ds, tag.PatientID) + "\x00" + stringValue(ds, tag.PatientName)
		p, ok := byPatient[patientKey]
		if !ok {
			p = &indexedPatient{id: stringValue(ds, tag.PatientID), name: stringValue(ds, tag.PatientName)}
			byPatient[patientKey] = p
			patients = append(patients, p)
		}

		studyUID := stringValue(ds, tag.StudyInstanceUID)
		st, ok := byStudy[studyUID]
		if !ok {
			st = &indexedStudy{
				uid:         studyUID,
				id:          stringValue(ds, tag.StudyID),
				date:        stringValue(ds, tag.StudyDate),
				time:        stringValue(ds, tag.StudyTime),
				description: stringValue(ds, tag.StudyDescription),
			}
			byStudy[studyUID] = st
			p.studies = append(p.studies, st)
		}

		seriesUID := stringValue(ds, tag.SeriesInstanceUID)
		se, ok := bySeries[seriesUID]
		if !ok {
			se = &indexedSeries{
				uid:      seriesUID,
				number:   stringValue(ds, tag.SeriesNumber),
				modality: stringValue(ds, tag.Modality),
			}
			bySeries[seriesUID] = se
			st.series = append(st.series, se)
		}

		number, _ := strconv.Atoi(strings.TrimSpace(stringValue(ds, tag.InstanceNumber)))
		se.images = append(se.images, indexedImage{
			relPath:        filepath.ToSlash(rel),
			sopClassUID:    stringValue(ds, tag.SOPClassUID),
			sopInstanceUID: sopInstance,
			transferSyntax: stringValue(ds, tag.TransferSyntaxUID),
			instanceNumber: number,
		})
		count++
		return nil
	})
	if err != nil {
		return nil, 0, fmt.Errorf("scan %s: %w", root, err)
	}

	for _, se := range bySeries {
		sort.SliceStable(se.images, func(i, j int) bool {
			return se.images[i].instanceNumber < se.images[j].instanceNumber
		})
	}
	return patients, count, nil
}

// buildRecords flattens the hierarchy depth first. Offsets are written as
// zero and patched once the byte layout is known.
func buildRecords(patients []*indexedPatient) ([][]*dicom.Element, []int) {
	var (
		records [][]*dicom.Element
		levels  []int
	)
	add := func(level int, elems ...*dicom.Element) {
		rec := append([]*dicom.Element{
			mustNewElement(tag.OffsetOfTheNextDirectoryRecord, []int{0}),
			mustNewElement(tag.RecordInUseFlag, []int{0xFFFF}),
			mustNewElement(tag.OffsetOfReferencedLowerLevelDirectoryEntity, []int{0}),
			mustNewElement(tag.DirectoryRecordType, []string{recordTypes[level]}),
		}, elems...)
		sortElements(rec)
		records = append(records, rec)
		levels = append(levels, level)
	}

	for _, p := range patients {
		add(levelPatient,
			mustNewElement(tag.PatientName, []string{p.name}),
			mustNewElement(tag.PatientID, []string{p.id}),
		)
		for _, st := range p.studies {
			add(levelStudy,
				mustNewElement(tag.StudyDate, []string{st.date}),
				mustNewElement(tag.StudyTime, []string{st.time}),
				mustNewElement(tag.StudyDescription, []string{st.description}),
				mustNewElement(tag.StudyInstanceUID, []string{st.uid}),
				mustNewElement(tag.StudyID, []string{st.id}),
			)
			for _, se := range st.series {
				add(levelSeries,
					mustNewElement(tag.Modality, []string{se.modality}),
					mustNewElement(tag.SeriesInstanceUID, []string{se.uid}),
					mustNewElement(tag.SeriesNumber, []string{se.number}),
				)
				for _, img := range se.images {
					ts := img.transferSyntax
					if ts == "" {
						ts = ExplicitVRLittleEndian
					}
					add(levelImage,
						mustNewElement(tag.ReferencedFileID, strings.Split(img.relPath, "/")),
						mustNewElement(tag.ReferencedSOPClassUIDInFile, []string{img.sopClassUID}),
						mustNewElement(tag.ReferencedSOPInstanceUIDInFile, []string{img.sopInstanceUID}),
						mustNewElement(tag.ReferencedTransferSyntaxUIDInFile, []string{ts}),
						mustNewElement(tag.InstanceNumber, []string{strconv.Itoa(img.instanceNumber)}),
					)
				}
			}
		}
	}
	return records, levels
}

// parseDICOMTolerant parses a DICOM file element by element, skipping pixel
// data and keeping whatever parsed before the first malformed element.
func parseDICOMTolerant(path string) (dicom.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return dicom.Dataset{}, err
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return dicom.Dataset{}, err
	}

	p, err := dicom.NewParser(f, info.Size(), nil, dicom.SkipPixelData())
	if err != nil {
		return dicom.Dataset{}, err
	}

	var elements []*dicom.Element
	for {
		elem, err := p.Next()
		if err != nil {
			break
		}
		elements = append(elements, elem)
	}
	if len(elements) == 0 {
		return dicom.Dataset{}, fmt.Errorf("no elements parsed")
	}

	meta := p.GetMetadata()
	return dicom.Dataset{Elements: append(meta.Elements, elements...)}, nil
}
