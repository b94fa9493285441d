package cmd

import (
	"github.com/spf13/cobra"
)

var policyCmd = &cobra.Command{
	Use:         "policy",
	Short:       "Print the effective allocation, forecast and training policy as TOML",
	Annotations: map[string]string{"offline": "true"},
	RunE:        runPolicy,
}

func init() {
	rootCmd.AddCommand(policyCmd)
}

func runPolicy(cmd *cobra.Command, _ []string) error {
	_, policy, _, err := loadSettings()
	if err != nil {
		return err
	}
	return policy.Write(cmd.OutOrStdout())
}
