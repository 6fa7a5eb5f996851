// Package summary renders end-of-run meter results as tabular reports.
package summary

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	"buildsim/internal/calendar"
	"buildsim/internal/meter"
)

// Line is one meter's final-year result.
type Line struct {
	Name         string
	Units        string
	Annual       float64
	Minimum      float64
	MinimumStamp string
	Maximum      float64
	MaximumStamp string
	HasExtremes  bool
}

// Report is the annual meter summary for one finished run.
type Report struct {
	Environment string
	Year        int
	Lines       []Line
}

// Build collects the final-year totals from every meter. Meters that
// never folded a monthly value report an annual total of zero with no
// extremes.
func Build(meters *meter.Engine, environment string, year int) (*Report, error) {
	if meters == nil {
		return nil, fmt.Errorf("summary: meter engine is required")
	}
	report := &Report{Environment: environment, Year: year}
	for id := 1; id <= meters.NumMeters(); id++ {
		m, err := meters.MeterAt(id)
		if err != nil {
			return nil, err
		}
		line := Line{
			Name:   m.Name,
			Units:  m.Units.String(),
			Annual: m.FinalYrSM.Value,
		}
		if m.FinalYrSM.Min <= m.FinalYrSM.Max {
			line.HasExtremes = true
			line.Minimum = m.FinalYrSM.Min
			line.MinimumStamp = formatStamp(m.FinalYrSM.MinDate)
			line.Maximum = m.FinalYrSM.Max
			line.MaximumStamp = formatStamp(m.FinalYrSM.MaxDate)
		}
		report.Lines = append(report.Lines, line)
	}
	sort.Slice(report.Lines, func(i, j int) bool {
		return report.Lines[i].Name < report.Lines[j].Name
	})
	return report, nil
}

func formatStamp(code int) string {
	if code == 0 {
		return ""
	}
	month, day, hour, minute := calendar.DecodeMonDayHrMin(code)
	return fmt.Sprintf("%02d-%02d %02d:%02d", month, day, hour, minute)
}

// BuildPDF renders the annual summary as a PDF.
func BuildPDF(report *Report) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Annual Meter Summary")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Environment: %s", report.Environment))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Calendar Year: %d", report.Year))
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 9)
	pdf.CellFormat(60, 6, "Meter", "1", 0, "L", false, 0, "")
	pdf.CellFormat(20, 6, "Units", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 6, "Annual", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 6, "Minimum", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 6, "Maximum", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 9)
	for _, line := range report.Lines {
		pdf.CellFormat(60, 6, line.Name, "1", 0, "L", false, 0, "")
		pdf.CellFormat(20, 6, line.Units, "1", 0, "C", false, 0, "")
		pdf.CellFormat(35, 6, fmt.Sprintf("%.3f", line.Annual), "1", 0, "R", false, 0, "")
		if line.HasExtremes {
			pdf.CellFormat(35, 6, fmt.Sprintf("%.3f @ %s", line.Minimum, line.MinimumStamp), "1", 0, "R", false, 0, "")
			pdf.CellFormat(35, 6, fmt.Sprintf("%.3f @ %s", line.Maximum, line.MaximumStamp), "1", 0, "R", false, 0, "")
		} else {
			pdf.CellFormat(35, 6, "-", "1", 0, "C", false, 0, "")
			pdf.CellFormat(35, 6, "-", "1", 0, "C", false, 0, "")
		}
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildXLSX renders the annual summary as an XLSX workbook.
func BuildXLSX(report *Report) ([]byte, error) {
	f := excelize.NewFile()
	runSheet := "run"
	metersSheet := "meters"
	f.SetSheetName("Sheet1", runSheet)
	f.NewSheet(metersSheet)

	_ = f.SetCellValue(runSheet, "A1", "Annual Meter Summary")
	_ = f.SetCellValue(runSheet, "A3", "Environment")
	_ = f.SetCellValue(runSheet, "B3", report.Environment)
	_ = f.SetCellValue(runSheet, "A4", "Calendar Year")
	_ = f.SetCellValue(runSheet, "B4", report.Year)
	_ = f.SetCellValue(runSheet, "A5", "Meters")
	_ = f.SetCellValue(runSheet, "B5", len(report.Lines))

	_ = f.SetCellValue(metersSheet, "A1", "Meter")
	_ = f.SetCellValue(metersSheet, "B1", "Units")
	_ = f.SetCellValue(metersSheet, "C1", "Annual")
	_ = f.SetCellValue(metersSheet, "D1", "Minimum")
	_ = f.SetCellValue(metersSheet, "E1", "Minimum Time")
	_ = f.SetCellValue(metersSheet, "F1", "Maximum")
	_ = f.SetCellValue(metersSheet, "G1", "Maximum Time")
	for i, line := range report.Lines {
		row := i + 2
		_ = f.SetCellValue(metersSheet, fmt.Sprintf("A%d", row), line.Name)
		_ = f.SetCellValue(metersSheet, fmt.Sprintf("B%d", row), line.Units)
		_ = f.SetCellValue(metersSheet, fmt.Sprintf("C%d", row), line.Annual)
		if line.HasExtremes {
			_ = f.SetCellValue(metersSheet, fmt.Sprintf("D%d", row), line.Minimum)
			_ = f.SetCellValue(metersSheet, fmt.Sprintf("E%d", row), line.MinimumStamp)
			_ = f.SetCellValue(metersSheet, fmt.Sprintf("F%d", row), line.Maximum)
			_ = f.SetCellValue(metersSheet, fmt.Sprintf("G%d", row), line.MaximumStamp)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
