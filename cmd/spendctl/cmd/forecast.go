package cmd

import (
	"github.com/spf13/cobra"
)

var forecastCmd = &cobra.Command{
	Use:   "forecast",
	Short: "Forecast next month's spending per category",
	RunE:  runForecast,
}

var budgetCmd = &cobra.Command{
	Use:     "budget",
	Aliases: []string{"allocate"},
	Short:   "Build this month's savings allocation plan",
	RunE:    runBudget,
}

func init() {
	forecastCmd.Flags().String("user", "", "user ID")
	budgetCmd.Flags().String("user", "", "user ID")
	rootCmd.AddCommand(forecastCmd, budgetCmd)
}

func runForecast(cmd *cobra.Command, _ []string) error {
	user, err := userFlag(cmd)
	if err != nil {
		return err
	}
	summary, err := app.Planning.Forecast(cmd.Context(), user)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), summary)
}

func runBudget(cmd *cobra.Command, _ []string) error {
	user, err := userFlag(cmd)
	if err != nil {
		return err
	}
	plan, err := app.Planning.Allocate(cmd.Context(), user)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), plan)
}
