package cli

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/covid-insights/backend/internal/analytics"
	"github.com/covid-insights/backend/internal/export"
	"github.com/covid-insights/backend/internal/models"
)

var (
	coverageLocation string
	coverageLimit    int
	coverageSummary  bool
	coverageXLSX     string

	coverageCmd = &cobra.Command{
		Use:   "coverage",
		Short: "Show rolling vaccination coverage per location",
		Long: "Joins the case and vaccination datasets on (location, date) and shows the\n" +
			"running vaccination total and percent of population vaccinated per day.",
		RunE: runCoverage,
	}
)

func init() {
	coverageCmd.Flags().StringVar(&coverageLocation, "location", "", "only show rows for this location")
	coverageCmd.Flags().IntVar(&coverageLimit, "limit", 0, "limit output to the first N rows (0 = all)")
	coverageCmd.Flags().BoolVar(&coverageSummary, "summary", false, "show one line per location instead of daily rows")
	coverageCmd.Flags().StringVar(&coverageXLSX, "xlsx", "", "also write the full analysis workbook to this path")
	rootCmd.AddCommand(coverageCmd)
}

func runCoverage(cmd *cobra.Command, args []string) error {
	cases, err := loadCases()
	if err != nil {
		return err
	}
	vaccinations, err := loadVaccinations()
	if err != nil {
		return err
	}

	coverage := analytics.VaccinationCoverage(cases, vaccinations)

	if coverageXLSX != "" {
		if err := writeWorkbook(coverageXLSX, cases, coverage); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Workbook written to %s\n", coverageXLSX)
	}

	if coverageSummary {
		renderCoverageSummary(cmd, analytics.CoverageSummaries(coverage))
		return nil
	}

	if coverageLocation != "" {
		filtered := coverage[:0]
		for _, rec := range coverage {
			if rec.Location == coverageLocation {
				filtered = append(filtered, rec)
			}
		}
		coverage = filtered
	}
	if coverageLimit > 0 && len(coverage) > coverageLimit {
		coverage = coverage[:coverageLimit]
	}

	table := newTable(cmd.OutOrStdout(), []string{
		"Continent", "Location", "Date", "Population", "New Vacc", "Rolling Vacc", "Pct Vacc",
	})
	for _, rec := range coverage {
		table.Append([]string{
			rec.Continent,
			rec.Location,
			rec.Date.Format(dateFormat),
			fmt.Sprintf("%d", rec.Population),
			formatNullableInt(rec.NewVaccinations),
			fmt.Sprintf("%d", rec.RollingVaccinated),
			formatNullableFloat(rec.PercentVaccinated),
		})
	}
	table.Render()

	fmt.Fprintf(cmd.OutOrStdout(), "\n%s\n", color.CyanString("%d rows", len(coverage)))
	return nil
}

func renderCoverageSummary(cmd *cobra.Command, summaries []models.CoverageSummary) {
	table := newTable(cmd.OutOrStdout(), []string{
		"Continent", "Location", "Population", "Total Vacc", "Pct Vacc",
	})
	for _, s := range summaries {
		table.Append([]string{
			s.Continent,
			s.Location,
			fmt.Sprintf("%d", s.Population),
			fmt.Sprintf("%d", s.TotalVaccinated),
			formatNullableFloat(s.PercentVaccinated),
		})
	}
	table.Render()
}

// writeWorkbook runs every analysis and saves them as one xlsx file.
func writeWorkbook(path string, cases []models.CaseRecord, coverage []models.JoinedRecord) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating workbook: %w", err)
	}
	defer f.Close()

	report := export.Report{
		Coverage:          coverage,
		Summaries:         analytics.CoverageSummaries(coverage),
		Peaks:             analytics.HighestInfectionByLocation(cases),
		DeathsByLocation:  analytics.DeathCountByLocation(cases),
		DeathsByContinent: analytics.DeathCountByContinent(cases),
		Global:            analytics.GlobalDailyTotals(cases),
	}
	if err := export.Write(f, report); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}
