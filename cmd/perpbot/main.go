package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var settingsPath string

func main() {
	rootCmd := &cobra.Command{
		Use:     "perpbot",
		Short:   "Algorithmic perpetual-futures trading engine",
		Version: "1.0.0",
	}
	rootCmd.PersistentFlags().StringVarP(&settingsPath, "config", "c", "settings.yaml", "path to the settings file")

	rootCmd.AddCommand(buildLiveCmd())
	rootCmd.AddCommand(buildBacktestCmd())
	rootCmd.AddCommand(buildBenchCmd())
	rootCmd.AddCommand(buildIntegrationTestCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
