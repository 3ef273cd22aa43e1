package main

import (
	"fmt"
	"image/color"
	"io"
	"path/filepath"
	"strings"

	"charm.land/lipgloss/v2"
	"github.com/charmbracelet/fang"

	"github.com/mrsinham/slices2dicom/internal/convert"
)

// Color palette
var (
	colorPrimary   = lipgloss.Color("63")
	colorSecondary = lipgloss.Color("33")
	colorSuccess   = lipgloss.Color("#10B981")
	colorWarning   = lipgloss.Color("#F59E0B")
	colorError     = lipgloss.Color("#EF4444")
	colorMuted     = lipgloss.Color("244")
	colorText      = lipgloss.Color("252")
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(colorPrimary).
			Bold(true)

	labelStyle = lipgloss.NewStyle().
			Foreground(colorMuted)

	valueStyle = lipgloss.NewStyle().
			Foreground(colorText).
			Bold(true)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorPrimary).
			Padding(0, 1)

	successStyle = lipgloss.NewStyle().Foreground(colorSuccess)
	warningStyle = lipgloss.NewStyle().Foreground(colorWarning)
	errorStyle   = lipgloss.NewStyle().Foreground(colorError)
)

func fangColorScheme(c lipgloss.LightDarkFunc) fang.ColorScheme {
	return fang.ColorScheme{
		Base:           colorText,
		Title:          colorPrimary,
		Description:    colorMuted,
		Codeblock:      c(lipgloss.Color("#F3F4F6"), lipgloss.Color("#2F2E36")),
		Program:        colorSecondary,
		DimmedArgument: colorMuted,
		Comment:        colorMuted,
		Flag:           colorSuccess,
		FlagDefault:    colorMuted,
		Command:        colorPrimary,
		QuotedString:   colorSecondary,
		Argument:       colorText,
		Help:           colorMuted,
		Dash:           colorMuted,
		ErrorHeader:    [2]color.Color{colorText, colorError},
		ErrorDetails:   colorError,
	}
}

// keyValue renders an aligned "label  value" line.
func keyValue(label, value string) string {
	return labelStyle.Render(fmt.Sprintf("%-11s", label)) + " " + valueStyle.Render(value)
}

func printRequest(w io.Writer, req convert.Request) {
	lipgloss.Fprintln(w, titleStyle.Render("slices2dicom"))
	lipgloss.Fprintln(w, keyValue("Input", req.InputDir))
	lipgloss.Fprintln(w, keyValue("Output", req.OutputDir))
	lipgloss.Fprintln(w, keyValue("Geometry", fmt.Sprintf("%s, spacing %g mm, origin %g,%g,%g",
		req.Orientation, req.Spacing, req.Origin.X, req.Origin.Y, req.Origin.Z)))
	lipgloss.Fprintln(w)
}

// printResult renders the outcome of a run: identifiers, totals, warnings and
// the failed slices.
func printResult(w io.Writer, res *convert.Result) {
	var sb strings.Builder
	if res.HasFailures() {
		sb.WriteString(warningStyle.Render("⚠ Conversion finished with failures"))
	} else {
		sb.WriteString(successStyle.Render("✓ Conversion complete"))
	}
	sb.WriteString("\n\n")
	lines := []string{
		keyValue("Output", res.OutputPath),
		keyValue("Study UID", res.StudyInstanceUID),
		keyValue("Series UID", res.SeriesInstanceUID),
		keyValue("Slices", fmt.Sprintf("%d written, %d skipped, %d failed",
			res.Totals.Written, res.Totals.Skipped, res.Totals.Failed)),
	}
	if res.DICOMDIR != "" {
		lines = append(lines, keyValue("DICOMDIR", res.DICOMDIR))
	}
	sb.WriteString(strings.Join(lines, "\n"))
	lipgloss.Fprintln(w, panelStyle.Render(sb.String()))

	for _, warning := range res.Warnings {
		lipgloss.Fprintln(w, warningStyle.Render("⚠ "+warning))
	}
	for _, s := range res.Slices {
		if s.Outcome != convert.Failed {
			continue
		}
		name := filepath.Base(s.SourceFile)
		if s.Frame > 0 {
			name = fmt.Sprintf("%s[%d]", name, s.Frame)
		}
		lipgloss.Fprintln(w, errorStyle.Render("✗ "+name+": "+s.Detail))
	}
}

func printPreview(w io.Writer, p *convert.Preview) {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render(p.Dir))
	sb.WriteString("\n\n")
	lines := []string{
		keyValue("Files", fmt.Sprintf("%d (%d readable)", len(p.Files), p.Readable())),
		keyValue("Slices", fmt.Sprintf("%d slices", p.Slices)),
		keyValue("Formats", strings.Join(p.FormatNames(), ", ")),
	}
	for _, f := range p.Files {
		if f.Err == nil {
			lines = append(lines,
				keyValue("Size", fmt.Sprintf("%dx%d", f.Width, f.Height)),
				keyValue("Spacing", fmt.Sprintf("%g x %g mm", f.RowSpacing, f.ColumnSpacing)))
			break
		}
	}
	sb.WriteString(strings.Join(lines, "\n"))
	lipgloss.Fprintln(w, panelStyle.Render(sb.String()))

	if !p.Uniform {
		lipgloss.Fprintln(w, warningStyle.Render("⚠ slices do not all have the same size"))
	}
	for _, f := range p.Files {
		if f.Err != nil {
			lipgloss.Fprintln(w, errorStyle.Render("✗ "+filepath.Base(f.Path)+": "+f.Err.Error()))
		}
	}
}

// progress prints the number of settled instances on one line.
type progress struct {
	w       io.Writer
	quiet   bool
	printed bool
}

func (p *progress) update(completed, total int) {
	if p.quiet {
		return
	}
	fmt.Fprintf(p.w, "\r  Writing %d/%d", completed, total)
	p.printed = true
}

func (p *progress) finish() {
	if p.printed {
		fmt.Fprintln(p.w)
	}
}
