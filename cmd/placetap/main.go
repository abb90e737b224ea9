package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rendis/placetap/internal/config"
	"github.com/rendis/placetap/internal/tui"
)

var version = "dev"

var flagConfig string

var rootCmd = &cobra.Command{
	Use:   "placetap",
	Short: "Grid-based Google Places business scanner",
	Long: `placetap splits an area into overlapping tiles, runs Places text searches
over each tile and widens the search radius until a target number of
businesses is found. Results land in a local sqlite project.

Run without a subcommand to open the interactive TUI.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(flagConfig)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		return tui.Run(cfg, version)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("placetap " + version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "path to config file (default "+config.DefaultConfigPath()+")")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(enrichCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(cacheCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
