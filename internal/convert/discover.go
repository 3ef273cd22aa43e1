package convert

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/maruel/natural"

	"github.com/mrsinham/slices2dicom/internal/imageio"
)

// discover lists the candidate input files of dir in natural name order.
// Subdirectories are not descended.
func discover(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !imageio.IsCandidate(e.Name()) {
			continue
		}
		if !e.Type().IsRegular() {
			info, err := os.Stat(filepath.Join(dir, e.Name()))
			if err != nil || !info.Mode().IsRegular() {
				continue
			}
		}
		files = append(files, e.Name())
	}
	// Digit runs compare as numbers, letters case-insensitively. Names that
	// still tie, such as slice2 and Slice02, fall back to byte order.
	sort.SliceStable(files, func(i, j int) bool {
		a, b := strings.ToLower(files[i]), strings.ToLower(files[j])
		switch {
		case natural.Less(a, b):
			return true
		case natural.Less(b, a):
			return false
		}
		return files[i] < files[j]
	})
	for i, name := range files {
		files[i] = filepath.Join(dir, name)
	}
	return files, nil
}
