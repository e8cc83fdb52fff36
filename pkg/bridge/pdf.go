package bridge

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

// Dataset defines tabular report content.
type Dataset struct {
	Headers []string
	Rows    []map[string]string
}

// PDFRenderer renders datasets into a basic tabular PDF.
type PDFRenderer struct{}

// NewPDFRenderer constructs a PDF renderer.
func NewPDFRenderer() *PDFRenderer {
	return &PDFRenderer{}
}

// Render creates a PDF document with an optional title, summary lines and table body.
func (e *PDFRenderer) Render(data Dataset, title string, summary ...string) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("pdf requires at least one header")
	}
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 15, 10)
	pdf.AddPage()

	if title != "" {
		pdf.SetFont("Arial", "B", 14)
		pdf.CellFormat(0, 10, strings.ToUpper(title), "", 1, "C", false, 0, "")
		pdf.Ln(5)
	}
	if len(summary) > 0 {
		pdf.SetFont("Arial", "", 10)
		for _, line := range summary {
			pdf.CellFormat(0, 6, line, "", 1, "", false, 0, "")
		}
		pdf.Ln(4)
	}

	pdf.SetFont("Arial", "B", 10)
	colWidth := 190.0 / float64(len(data.Headers))
	for _, header := range data.Headers {
		pdf.CellFormat(colWidth, 8, header, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 9)
	for _, row := range data.Rows {
		for _, header := range data.Headers {
			pdf.CellFormat(colWidth, 7, row[header], "1", 0, "", false, 0, "")
		}
		pdf.Ln(-1)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// ReportDataset lays out one row per conflicting field so a reviewer can read the
// local and imported values side by side.
func ReportDataset(report Report) Dataset {
	data := Dataset{Headers: []string{"ID", "Field", "Local", "Imported"}}
	for _, c := range report.Conflicts {
		for _, f := range c.Fields {
			data.Rows = append(data.Rows, map[string]string{
				"ID":       c.ID,
				"Field":    f,
				"Local":    c.Local[f],
				"Imported": c.Imported[f],
			})
		}
	}
	return data
}

// ReportSummary returns the headline counts of a report.
func ReportSummary(report Report) []string {
	return []string{
		"Local records: " + strconv.Itoa(report.LocalCount),
		"Imported records: " + strconv.Itoa(report.ImportedCount),
		"In both: " + strconv.Itoa(len(report.CommonIDs)),
		"Only local: " + strconv.Itoa(len(report.LocalOnlyIDs)),
		"Only imported: " + strconv.Itoa(len(report.ImportedOnlyIDs)),
		"Conflicts: " + strconv.Itoa(len(report.Conflicts)),
	}
}

// RenderReport renders a reconciliation report as PDF.
func RenderReport(report Report, title string) ([]byte, error) {
	return NewPDFRenderer().Render(ReportDataset(report), title, ReportSummary(report)...)
}
