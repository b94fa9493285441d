package cmd

import (
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"spendplan/internal/core"
)

var goalsCmd = &cobra.Command{
	Use:   "goals",
	Short: "List, add and inspect savings goals",
	RunE:  runGoalsList,
}

var goalsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create or update a savings goal",
	RunE:  runGoalsAdd,
}

var goalsProgressCmd = &cobra.Command{
	Use:   "progress <goal-id>",
	Short: "Show how far a goal has come",
	Args:  cobra.ExactArgs(1),
	RunE:  runGoalsProgress,
}

func init() {
	goalsCmd.PersistentFlags().String("user", "", "user ID")

	goalsAddCmd.Flags().String("id", "", "goal ID (generated when empty)")
	goalsAddCmd.Flags().String("name", "", "goal name")
	goalsAddCmd.Flags().Float64("target", 0, "target amount")
	goalsAddCmd.Flags().Float64("saved", 0, "amount already saved")
	goalsAddCmd.Flags().String("end", "", "end date, YYYY-MM-DD")
	_ = goalsAddCmd.MarkFlagRequired("name")
	_ = goalsAddCmd.MarkFlagRequired("target")

	goalsCmd.AddCommand(goalsAddCmd, goalsProgressCmd)
	rootCmd.AddCommand(goalsCmd)
}

func runGoalsList(cmd *cobra.Command, _ []string) error {
	user, err := userFlag(cmd)
	if err != nil {
		return err
	}
	gs, err := app.Planning.ListGoals(cmd.Context(), user)
	if err != nil {
		return err
	}
	if gs == nil {
		gs = []core.SavingsGoal{}
	}
	return printJSON(cmd.OutOrStdout(), gs)
}

func runGoalsAdd(cmd *cobra.Command, _ []string) error {
	user, err := userFlag(cmd)
	if err != nil {
		return err
	}
	f := cmd.Flags()
	g := core.SavingsGoal{}
	g.ID, _ = f.GetString("id")
	g.Name, _ = f.GetString("name")
	g.TargetAmount, _ = f.GetFloat64("target")
	g.AmountSaved, _ = f.GetFloat64("saved")
	g.EndDate, _ = f.GetString("end")
	if g.ID == "" {
		g.ID = uuid.NewString()
	}

	if err := app.Planning.SaveGoal(cmd.Context(), user, g); err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), g)
}

func runGoalsProgress(cmd *cobra.Command, args []string) error {
	user, err := userFlag(cmd)
	if err != nil {
		return err
	}
	progress, err := app.Planning.GoalProgress(cmd.Context(), user, args[0])
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), progress)
}
