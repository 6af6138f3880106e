package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/covid-insights/backend/internal/analytics"
)

var (
	globalLimit int

	globalCmd = &cobra.Command{
		Use:   "global",
		Short: "Show worldwide daily case and death totals",
		RunE:  runGlobal,
	}
)

func init() {
	globalCmd.Flags().IntVar(&globalLimit, "limit", 0, "limit output to the first N days (0 = all)")
	rootCmd.AddCommand(globalCmd)
}

func runGlobal(cmd *cobra.Command, args []string) error {
	cases, err := loadCases()
	if err != nil {
		return err
	}

	days := analytics.GlobalDailyTotals(cases)
	if globalLimit > 0 && len(days) > globalLimit {
		days = days[:globalLimit]
	}

	table := newTable(cmd.OutOrStdout(), []string{
		"Date", "New Cases", "New Deaths", "Death Pct",
	})
	for _, d := range days {
		table.Append([]string{
			d.Date.Format(dateFormat),
			fmt.Sprintf("%d", d.TotalCases),
			fmt.Sprintf("%d", d.TotalDeaths),
			formatPct(d.DeathPct),
		})
	}
	table.Render()
	return nil
}
