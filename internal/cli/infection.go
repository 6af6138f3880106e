package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/covid-insights/backend/internal/analytics"
)

var (
	infectionLimit int

	infectionCmd = &cobra.Command{
		Use:   "infection",
		Short: "Show the highest infection count and rate per location",
		RunE:  runInfection,
	}
)

func init() {
	infectionCmd.Flags().IntVar(&infectionLimit, "limit", 0, "limit output to the first N locations (0 = all)")
	rootCmd.AddCommand(infectionCmd)
}

func runInfection(cmd *cobra.Command, args []string) error {
	cases, err := loadCases()
	if err != nil {
		return err
	}

	peaks := analytics.HighestInfectionByLocation(cases)
	if infectionLimit > 0 && len(peaks) > infectionLimit {
		peaks = peaks[:infectionLimit]
	}

	table := newTable(cmd.OutOrStdout(), []string{
		"Location", "Population", "Max Cases", "Max Infection Pct",
	})
	for _, p := range peaks {
		table.Append([]string{
			p.Location,
			fmt.Sprintf("%d", p.Population),
			fmt.Sprintf("%d", p.MaxTotalCases),
			formatNullableFloat(p.MaxInfectionPct),
		})
	}
	table.Render()
	return nil
}
