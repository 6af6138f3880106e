package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/covid-insights/backend/internal/analytics"
	"github.com/covid-insights/backend/internal/models"
)

var (
	deathsByContinent bool
	deathsLimit       int

	deathsCmd = &cobra.Command{
		Use:   "deaths",
		Short: "Show peak death counts per location or continent",
		RunE:  runDeaths,
	}
)

func init() {
	deathsCmd.Flags().BoolVar(&deathsByContinent, "by-continent", false, "group by continent instead of location")
	deathsCmd.Flags().IntVar(&deathsLimit, "limit", 0, "limit output to the first N groups (0 = all)")
	rootCmd.AddCommand(deathsCmd)
}

func runDeaths(cmd *cobra.Command, args []string) error {
	cases, err := loadCases()
	if err != nil {
		return err
	}

	var counts []models.DeathCount
	groupTitle := "Location"
	if deathsByContinent {
		counts = analytics.DeathCountByContinent(cases)
		groupTitle = "Continent"
	} else {
		counts = analytics.DeathCountByLocation(cases)
	}
	if deathsLimit > 0 && len(counts) > deathsLimit {
		counts = counts[:deathsLimit]
	}

	table := newTable(cmd.OutOrStdout(), []string{groupTitle, "Total Deaths"})
	for _, c := range counts {
		table.Append([]string{c.Group, fmt.Sprintf("%d", c.TotalDeaths)})
	}
	table.Render()
	return nil
}
