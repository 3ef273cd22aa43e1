package main

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/cucumber/godog"

	"github.com/mrsinham/slices2dicom/internal/attrs"
	"github.com/mrsinham/slices2dicom/internal/dicom"
)

// testContext holds state for a single scenario
type testContext struct {
	tmpDir   string
	exitCode int
	output   string
	snapshot map[string][]byte
}

func TestFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: InitializeScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features"},
			TestingT: t,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}

func InitializeScenario(sc *godog.ScenarioContext) {
	tc := &testContext{}

	sc.Before(func(ctx context.Context, sc *godog.Scenario) (context.Context, error) {
		tmpDir, err := os.MkdirTemp("", "slices2dicom-e2e-*")
		if err != nil {
			return ctx, err
		}
		tc.tmpDir = tmpDir
		return ctx, nil
	})

	sc.After(func(ctx context.Context, sc *godog.Scenario, err error) (context.Context, error) {
		if tc.tmpDir != "" {
			_ = os.RemoveAll(tc.tmpDir)
		}
		return ctx, nil
	})

	sc.Step(`^an input directory "([^"]*)" with (\d+) PNG slices$`, tc.anInputDirectoryWithSlices)
	sc.Step(`^an empty input directory "([^"]*)"$`, tc.anEmptyInputDirectory)
	sc.Step(`^the file "([^"]*)" contains "([^"]*)"$`, tc.theFileContains)
	sc.Step(`^I run slices2dicom with "([^"]*)"$`, tc.iRunSlices2dicomWith)
	sc.Step(`^the exit code should be (\d+)$`, tc.theExitCodeShouldBe)
	sc.Step(`^the output should contain "([^"]*)"$`, tc.theOutputShouldContain)
	sc.Step(`^the output should not contain "([^"]*)"$`, tc.theOutputShouldNotContain)
	sc.Step(`^"([^"]*)" should contain (\d+) DICOM files$`, tc.shouldContainDICOMFiles)
	sc.Step(`^"([^"]*)" should exist$`, tc.shouldExist)
	sc.Step(`^the DICOM files in "([^"]*)" should share one series$`, tc.shouldShareOneSeries)
	sc.Step(`^the DICOM files in "([^"]*)" should be spaced ([\d.]+) mm along z$`, tc.shouldBeSpacedAlongZ)
	sc.Step(`^the DICOM files in "([^"]*)" should have "([^"]*)" set to "([^"]*)"$`, tc.shouldHaveAttribute)
	sc.Step(`^I remember the files in "([^"]*)"$`, tc.iRememberTheFiles)
	sc.Step(`^the files in "([^"]*)" should be unchanged$`, tc.theFilesShouldBeUnchanged)
}

func (tc *testContext) path(p string) string {
	return strings.ReplaceAll(p, "{tmpdir}", tc.tmpDir)
}

func (tc *testContext) anInputDirectoryWithSlices(dir string, n int) error {
	dir = tc.path(dir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	for i := 1; i <= n; i++ {
		img := image.NewGray16(image.Rect(0, 0, 8, 6))
		for p := range img.Pix {
			img.Pix[p] = uint8(i + p)
		}
		f, err := os.Create(filepath.Join(dir, fmt.Sprintf("slice%d.png", i)))
		if err != nil {
			return err
		}
		if err := png.Encode(f, img); err != nil {
			_ = f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
	}
	return nil
}

func (tc *testContext) anEmptyInputDirectory(dir string) error {
	return os.MkdirAll(tc.path(dir), 0o755)
}

func (tc *testContext) theFileContains(path, content string) error {
	return os.WriteFile(tc.path(path), []byte(content), 0o644)
}

func (tc *testContext) iRunSlices2dicomWith(args string) error {
	args = tc.path(args)

	root := newRootCmd("test")
	var output bytes.Buffer
	root.SetOut(&output)
	root.SetErr(&output)
	root.SetArgs(splitArgs(args))

	err := root.ExecuteContext(context.Background())
	if err != nil {
		fmt.Fprintf(&output, "Error: %v\n", err)
	}
	tc.output = output.String()
	tc.exitCode = exitCode(err)
	return nil
}

func (tc *testContext) theExitCodeShouldBe(expected int) error {
	if tc.exitCode != expected {
		return fmt.Errorf("expected exit code %d, got %d\nOutput:\n%s", expected, tc.exitCode, tc.output)
	}
	return nil
}

func (tc *testContext) theOutputShouldContain(expected string) error {
	if !strings.Contains(tc.output, expected) {
		return fmt.Errorf("output does not contain %q\nOutput:\n%s", expected, tc.output)
	}
	return nil
}

func (tc *testContext) theOutputShouldNotContain(unexpected string) error {
	if strings.Contains(tc.output, unexpected) {
		return fmt.Errorf("output contains %q\nOutput:\n%s", unexpected, tc.output)
	}
	return nil
}

func (tc *testContext) shouldContainDICOMFiles(path string, count int) error {
	files, err := findDICOMFiles(tc.path(path))
	if err != nil {
		return fmt.Errorf("failed to find DICOM files: %w", err)
	}
	if len(files) != count {
		return fmt.Errorf("expected %d DICOM files, found %d", count, len(files))
	}
	return nil
}

func (tc *testContext) shouldExist(path string) error {
	if _, err := os.Stat(tc.path(path)); os.IsNotExist(err) {
		return fmt.Errorf("path does not exist: %s", tc.path(path))
	}
	return nil
}

func (tc *testContext) shouldShareOneSeries(path string) error {
	instances, err := readInstances(tc.path(path))
	if err != nil {
		return err
	}
	text := func(in *dicom.InstanceFile, t attrs.Tag) string {
		v, _ := in.Attributes.Get(t)
		return v.Text()
	}
	study, series := text(instances[0], attrs.StudyInstanceUID), text(instances[0], attrs.SeriesInstanceUID)
	seen := map[string]bool{}
	for _, in := range instances {
		if text(in, attrs.StudyInstanceUID) != study || text(in, attrs.SeriesInstanceUID) != series {
			return fmt.Errorf("%s belongs to another study or series", in.Path)
		}
		sop := text(in, attrs.SOPInstanceUID)
		if sop == "" || seen[sop] {
			return fmt.Errorf("%s has a missing or duplicate SOPInstanceUID %q", in.Path, sop)
		}
		seen[sop] = true
	}
	return nil
}

func (tc *testContext) shouldBeSpacedAlongZ(path string, spacing float64) error {
	instances, err := readInstances(tc.path(path))
	if err != nil {
		return err
	}
	for i, in := range instances {
		v, ok := in.Attributes.Get(attrs.ImagePositionPatient)
		if !ok {
			return fmt.Errorf("%s has no ImagePositionPatient", in.Path)
		}
		c := v.Components()
		if c[0] != 0 || c[1] != 0 || math.Abs(c[2]-spacing*float64(i)) > 1e-6 {
			return fmt.Errorf("%s position = %v, want 0,0,%g", in.Path, c, spacing*float64(i))
		}
	}
	return nil
}

func (tc *testContext) shouldHaveAttribute(path, name, want string) error {
	t, err := attrs.Lookup(name)
	if err != nil {
		return err
	}
	instances, err := readInstances(tc.path(path))
	if err != nil {
		return err
	}
	for _, in := range instances {
		v, _ := in.Attributes.Get(t)
		if v.String() != want {
			return fmt.Errorf("%s %s = %q, want %q", in.Path, name, v.String(), want)
		}
	}
	return nil
}

func (tc *testContext) iRememberTheFiles(path string) error {
	files, err := findDICOMFiles(tc.path(path))
	if err != nil {
		return err
	}
	tc.snapshot = make(map[string][]byte)
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			return err
		}
		tc.snapshot[f] = data
	}
	return nil
}

func (tc *testContext) theFilesShouldBeUnchanged(path string) error {
	files, err := findDICOMFiles(tc.path(path))
	if err != nil {
		return err
	}
	if len(files) != len(tc.snapshot) {
		return fmt.Errorf("found %d files, remembered %d", len(files), len(tc.snapshot))
	}
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			return err
		}
		if !bytes.Equal(data, tc.snapshot[f]) {
			return fmt.Errorf("%s changed", f)
		}
	}
	return nil
}

// readInstances parses every DICOM file below root, in instance number order.
func readInstances(root string) ([]*dicom.InstanceFile, error) {
	files, err := findDICOMFiles(root)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no DICOM files found in %s", root)
	}
	instances := make([]*dicom.InstanceFile, 0, len(files))
	for _, f := range files {
		in, err := dicom.ReadInstance(f)
		if err != nil {
			return nil, err
		}
		instances = append(instances, in)
	}
	number := func(in *dicom.InstanceFile) int {
		v, _ := in.Attributes.Get(attrs.InstanceNumber)
		return v.Integer()
	}
	sort.Slice(instances, func(i, j int) bool { return number(instances[i]) < number(instances[j]) })
	return instances, nil
}

// findDICOMFiles finds all DICOM image files (IM*) recursively
func findDICOMFiles(root string) ([]string, error) {
	var files []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && strings.HasPrefix(info.Name(), "IM") {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// splitArgs splits a command line string into arguments
func splitArgs(s string) []string {
	var args []string
	var current strings.Builder
	inQuote := false

	for _, r := range s {
		switch {
		case r == '\'':
			inQuote = !inQuote
		case r == ' ' && !inQuote:
			if current.Len() > 0 {
				args = append(args, current.String())
				current.Reset()
			}
		default:
			current.WriteRune(r)
		}
	}
	if current.Len() > 0 {
		args = append(args, current.String())
	}
	return args
}
