// Package export writes screening records of a practice as an Excel workbook.
package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/nutricheck-server/internal/domain"
	"github.com/nutricheck-server/internal/report"
)

// SheetName is the worksheet holding the screenings.
const SheetName = "Screenings"

// ContentType is the MIME type of the workbook.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func headers(l report.Labels) []string {
	return []string{
		l.Created,
		l.PatientCode,
		l.BirthDate,
		l.Score,
		l.Classification,
		l.WeightLoss,
		l.Nutrition,
		l.Disease,
		l.Physical,
		l.Swallowing,
		"BMI",
		l.Energy + " (" + l.KcalPerDay + ")",
		l.Protein + " (" + l.GramsPerDay + ")",
		l.Counseling,
	}
}

var columnWidths = []float64{18, 18, 14, 14, 34, 14, 14, 14, 18, 16, 8, 20, 20, 18}

// WriteScreeningsXLSX writes records as one row each, in the given order.
func WriteScreeningsXLSX(w io.Writer, records []*domain.ScreeningRecord, lang domain.Language) error {
	l := report.For(lang)

	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(SheetName)
	if err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("failed to remove default sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#EAF1FB"},
			Pattern: 1,
		},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	cols := headers(l)
	if err := f.SetSheetRow(SheetName, "A1", &cols); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	last, err := excelize.CoordinatesToCellName(len(cols), 1)
	if err != nil {
		return fmt.Errorf("failed to convert coordinates: %w", err)
	}
	if err := f.SetCellStyle(SheetName, "A1", last, headerStyle); err != nil {
		return fmt.Errorf("failed to set header style: %w", err)
	}

	for i, width := range columnWidths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return fmt.Errorf("failed to convert column number: %w", err)
		}
		if err := f.SetColWidth(SheetName, col, col, width); err != nil {
			return fmt.Errorf("failed to set column width: %w", err)
		}
	}

	for i, rec := range records {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("failed to convert coordinates: %w", err)
		}
		values := row(rec, l)
		if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	if err := f.SetPanes(SheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("failed to freeze header: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func row(rec *domain.ScreeningRecord, l report.Labels) []interface{} {
	var energy, protein interface{} = "", ""
	if rec.Recommendations != nil {
		energy = rec.Recommendations.Energy
		protein = rec.Recommendations.Protein
	}

	counseling := ""
	if rec.WantsCounseling != nil {
		counseling = l.No
		if *rec.WantsCounseling {
			counseling = l.Yes
		}
	}

	return []interface{}{
		rec.CreatedAt.UTC().Format(l.DateLayout + " 15:04"),
		rec.PatientCode,
		rec.PatientBirthDate,
		rec.TotalScore,
		report.LevelTitle(rec.MalnutritionLevel, rec.Language),
		rec.Scores.WeightLossScore,
		rec.Scores.NutritionScore,
		rec.Scores.DiseaseScore,
		rec.Scores.PhysicalConditionScore,
		rec.Scores.SwallowingScore,
		rec.Scores.BMI,
		energy,
		protein,
		counseling,
	}
}
