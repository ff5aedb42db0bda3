package cmd

import "github.com/spf13/cobra"

var rootCmd = &cobra.Command{
	Use:   "golang-alerting",
	Short: "Execution control plane for tenant alert evaluations",
}

func init() {
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(tickCmd)
	rootCmd.AddCommand(migrateCmd)
}

func Execute() error {
	return rootCmd.Execute()
}
