package cli

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "ghostkg",
	Short: "Private knowledge graphs with decaying memory",
	Long:  "GhostKG gives each simulated agent a private knowledge graph whose facts fade on a spaced-repetition forgetting curve. Single Go binary, SQLite storage.",
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(statsCmd)
}
