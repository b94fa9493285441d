package cmd

import (
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show model freshness and recent training runs for a user",
	RunE:  runStatus,
}

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "List users with records and users with trained models",
	RunE:  runUsers,
}

var jobCmd = &cobra.Command{
	Use:   "job <job-id>",
	Short: "Show a training job",
	Args:  cobra.ExactArgs(1),
	RunE:  runJob,
}

func init() {
	statusCmd.Flags().String("user", "", "user ID")
	statusCmd.Flags().Int("logs", 5, "number of run logs to include")
	rootCmd.AddCommand(statusCmd, usersCmd, jobCmd)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	user, err := userFlag(cmd)
	if err != nil {
		return err
	}
	n, _ := cmd.Flags().GetInt("logs")

	status, err := app.Training.ModelStatus(cmd.Context(), user)
	if err != nil {
		return err
	}
	if n > 0 {
		logs, err := app.Training.RunLogs(cmd.Context(), user, n)
		if err != nil {
			return err
		}
		status.RecentLogs = logs
	}
	return printJSON(cmd.OutOrStdout(), status)
}

func runUsers(cmd *cobra.Command, _ []string) error {
	users, err := app.Planning.ListUsers(cmd.Context())
	if err != nil {
		return err
	}
	trained, err := app.Training.TrainedUsers(cmd.Context())
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), map[string]any{"users": users, "trained": trained})
}

func runJob(cmd *cobra.Command, args []string) error {
	job, err := app.Training.Job(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), job)
}
