package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"spendplan/internal/models"
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train forecasting models",
	Long: `Train the seasonal and sequence models for one user, or for every user
with --all. Training runs in this process and waits for the result. Use
--queue to publish a job to the configured job backend instead.`,
	RunE: runTrain,
}

func init() {
	trainCmd.Flags().String("user", "", "user ID")
	trainCmd.Flags().Bool("all", false, "train every user with records")
	trainCmd.Flags().Bool("queue", false, "publish jobs instead of training in-process")
	trainCmd.MarkFlagsMutuallyExclusive("user", "all")
	rootCmd.AddCommand(trainCmd)
}

func runTrain(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	all, _ := cmd.Flags().GetBool("all")
	queue, _ := cmd.Flags().GetBool("queue")
	if queue && app.Config.JobBackend != "amqp" {
		return errors.New("--queue needs JOB_BACKEND=amqp; in-memory jobs would die with this process")
	}

	if all {
		if queue {
			app.Worker.EnqueueUsers(app.Backends.Records)
			n, err := app.Worker.EnqueueAll(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]int{"enqueued": n})
		}
		runs, err := app.Trainer.TrainAll(ctx)
		if perr := printJSON(cmd.OutOrStdout(), runs); perr != nil {
			return perr
		}
		return err
	}

	user, err := userFlag(cmd)
	if err != nil {
		return errors.New("either --user or --all is required")
	}
	if queue {
		job, err := app.Training.SubmitTraining(ctx, user)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), job)
	}

	run, err := app.Trainer.TrainUser(ctx, user, app.Trainer.NewSink())
	if perr := printJSON(cmd.OutOrStdout(), run); perr != nil {
		return perr
	}
	if err != nil {
		return err
	}
	if run.Status == models.RunFailed {
		return fmt.Errorf("training run %s failed", run.RunID)
	}
	return nil
}
