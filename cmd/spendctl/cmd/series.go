package cmd

import (
	"github.com/spf13/cobra"

	"spendplan/internal/core"
)

var seriesCmd = &cobra.Command{
	Use:   "series <category>",
	Short: "Print a category's monthly spending history",
	Args:  cobra.ExactArgs(1),
	RunE:  runSeries,
}

func init() {
	seriesCmd.Flags().String("user", "", "user ID")
	seriesCmd.Flags().Int("months", 0, "only the most recent N months (0 for all)")
	rootCmd.AddCommand(seriesCmd)
}

func runSeries(cmd *cobra.Command, args []string) error {
	user, err := userFlag(cmd)
	if err != nil {
		return err
	}
	months, _ := cmd.Flags().GetInt("months")
	series, err := app.Planning.Series(cmd.Context(), user, args[0], months)
	if err != nil {
		return err
	}
	if series == nil {
		series = core.CategorySeries{}
	}
	return printJSON(cmd.OutOrStdout(), series)
}
