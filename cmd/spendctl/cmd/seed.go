package cmd

import (
	"maps"
	"slices"

	"github.com/spf13/cobra"

	"spendplan/internal/records/memory"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Import records and goals from a YAML seed file",
	Long: `Import a YAML seed file into the configured record store. Records for an
existing month are replaced and goals are matched by ID.`,
	RunE: runSeed,
}

func init() {
	seedCmd.Flags().String("file", "", "seed file path")
	_ = seedCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(seedCmd)
}

type seedResult struct {
	Users   int `json:"users"`
	Records int `json:"records"`
	Goals   int `json:"goals"`
}

func runSeed(cmd *cobra.Command, _ []string) error {
	path, _ := cmd.Flags().GetString("file")
	seed, err := memory.ReadSeed(path)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	var res seedResult
	for _, user := range slices.Sorted(maps.Keys(seed.Users)) {
		u := seed.Users[user]
		for _, r := range u.Records {
			if err := app.Planning.PutRecord(ctx, user, r); err != nil {
				return err
			}
			res.Records++
		}
		for _, g := range u.Goals {
			if err := app.Planning.SaveGoal(ctx, user, g); err != nil {
				return err
			}
			res.Goals++
		}
		res.Users++
	}
	return printJSON(cmd.OutOrStdout(), res)
}
