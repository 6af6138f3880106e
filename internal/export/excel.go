// Package export renders analysis results as an Excel workbook.
package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/covid-insights/backend/internal/models"
)

// Report bundles everything that goes into one exported workbook.
type Report struct {
	Coverage          []models.JoinedRecord
	Summaries         []models.CoverageSummary
	Peaks             []models.InfectionPeak
	DeathsByLocation  []models.DeathCount
	DeathsByContinent []models.DeathCount
	Global            []models.GlobalDaily
}

const dateFormat = "2006-01-02"

// Workbook builds an xlsx workbook with one sheet per analysis.
func Workbook(r Report) (*excelize.File, error) {
	f := excelize.NewFile()

	if err := writeCoverageSheet(f, "Coverage", r.Coverage); err != nil {
		return nil, err
	}
	if err := writeSummarySheet(f, "Summary", r.Summaries); err != nil {
		return nil, err
	}
	if err := writePeaksSheet(f, "Highest Infection", r.Peaks); err != nil {
		return nil, err
	}
	if err := writeDeathSheet(f, "Deaths by Location", "Location", r.DeathsByLocation); err != nil {
		return nil, err
	}
	if err := writeDeathSheet(f, "Deaths by Continent", "Continent", r.DeathsByContinent); err != nil {
		return nil, err
	}
	if err := writeGlobalSheet(f, "Global Daily", r.Global); err != nil {
		return nil, err
	}

	// The default sheet was renamed to Coverage by the first writer; make it
	// the active one.
	if idx, err := f.GetSheetIndex("Coverage"); err == nil && idx >= 0 {
		f.SetActiveSheet(idx)
	}
	return f, nil
}

// Write builds the workbook and streams it to w.
func Write(w io.Writer, r Report) error {
	f, err := Workbook(r)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Write(w)
}

func newSheet(f *excelize.File, name string, header []string) error {
	if name == "Coverage" {
		// Reuse the default sheet for the first analysis.
		if err := f.SetSheetName("Sheet1", name); err != nil {
			return fmt.Errorf("renaming default sheet: %w", err)
		}
	} else if _, err := f.NewSheet(name); err != nil {
		return fmt.Errorf("creating sheet %s: %w", name, err)
	}

	for i, title := range header {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(name, cell, title); err != nil {
			return err
		}
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}

func nullableInt(v *int64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func nullableFloat(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func writeCoverageSheet(f *excelize.File, name string, records []models.JoinedRecord) error {
	header := []string{"Continent", "Location", "Date", "Population", "New Vaccinations", "Rolling Vaccinated", "Percent Vaccinated"}
	if err := newSheet(f, name, header); err != nil {
		return err
	}
	for i, rec := range records {
		row := []interface{}{
			rec.Continent, rec.Location, rec.Date.Format(dateFormat), rec.Population,
			nullableInt(rec.NewVaccinations), rec.RollingVaccinated, nullableFloat(rec.PercentVaccinated),
		}
		if err := setRow(f, name, i+2, row); err != nil {
			return err
		}
	}
	return nil
}

func writeSummarySheet(f *excelize.File, name string, summaries []models.CoverageSummary) error {
	header := []string{"Continent", "Location", "Population", "Total Vaccinated", "Percent Vaccinated"}
	if err := newSheet(f, name, header); err != nil {
		return err
	}
	for i, s := range summaries {
		row := []interface{}{s.Continent, s.Location, s.Population, s.TotalVaccinated, nullableFloat(s.PercentVaccinated)}
		if err := setRow(f, name, i+2, row); err != nil {
			return err
		}
	}
	return nil
}

func writePeaksSheet(f *excelize.File, name string, peaks []models.InfectionPeak) error {
	header := []string{"Location", "Population", "Max Total Cases", "Max Infection Pct"}
	if err := newSheet(f, name, header); err != nil {
		return err
	}
	for i, p := range peaks {
		row := []interface{}{p.Location, p.Population, p.MaxTotalCases, nullableFloat(p.MaxInfectionPct)}
		if err := setRow(f, name, i+2, row); err != nil {
			return err
		}
	}
	return nil
}

func writeDeathSheet(f *excelize.File, name, groupTitle string, counts []models.DeathCount) error {
	header := []string{groupTitle, "Total Deaths"}
	if err := newSheet(f, name, header); err != nil {
		return err
	}
	for i, d := range counts {
		if err := setRow(f, name, i+2, []interface{}{d.Group, d.TotalDeaths}); err != nil {
			return err
		}
	}
	return nil
}

func writeGlobalSheet(f *excelize.File, name string, days []models.GlobalDaily) error {
	header := []string{"Date", "Total Cases", "Total Deaths", "Death Pct"}
	if err := newSheet(f, name, header); err != nil {
		return err
	}
	for i, d := range days {
		row := []interface{}{d.Date.Format(dateFormat), d.TotalCases, d.TotalDeaths, d.DeathPct}
		if err := setRow(f, name, i+2, row); err != nil {
			return err
		}
	}
	return nil
}
