// Package cli implements the covidctl command: offline analysis of
// case/death and vaccination CSV datasets without running the server.
package cli

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/covid-insights/backend/internal/dataset"
	"github.com/covid-insights/backend/internal/models"
)

var (
	casesPath        string
	vaccinationsPath string
	noColor          bool

	rootCmd = &cobra.Command{
		Use:   "covidctl",
		Short: "Analyze COVID-19 case and vaccination datasets",
		Long: "covidctl runs the COVID Insights analyses directly against CSV files:\n" +
			"vaccination coverage, infection peaks, death counts, and global daily totals.",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if noColor {
				color.NoColor = true
			}
		},
	}
)

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&casesPath, "cases", "", "path to the case/death CSV dataset")
	rootCmd.PersistentFlags().StringVar(&vaccinationsPath, "vaccinations", "", "path to the vaccination CSV dataset")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
}

func loadCases() ([]models.CaseRecord, error) {
	if casesPath == "" {
		return nil, fmt.Errorf("--cases is required")
	}
	f, err := os.Open(casesPath)
	if err != nil {
		return nil, fmt.Errorf("opening cases dataset: %w", err)
	}
	defer f.Close()

	cases, err := dataset.ReadCases(f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", casesPath, err)
	}
	return cases, nil
}

func loadVaccinations() ([]models.VaccinationRecord, error) {
	if vaccinationsPath == "" {
		return nil, fmt.Errorf("--vaccinations is required")
	}
	f, err := os.Open(vaccinationsPath)
	if err != nil {
		return nil, fmt.Errorf("opening vaccinations dataset: %w", err)
	}
	defer f.Close()

	vaccinations, err := dataset.ReadVaccinations(f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", vaccinationsPath, err)
	}
	return vaccinations, nil
}
