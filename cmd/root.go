/*
Copyright © 2026 TradeOps Engineering
*/
package cmd

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tradeops/taskforge/types"
)

var (
	// cfgFile is the path to the configuration file.
	cfgFile string
	// verbose enables verbose output.
	verbose bool
	// version is the application version.
	version = "0.3.0"
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "taskforge",
	Short: "Taskforge tracks development tasks from creation through execution to QA sign-off.",
	Long: `Taskforge is the task orchestration and QA sign-off engine behind the
trading dashboard's development workflow. It tracks work items through
their lifecycle, resolves dependencies, runs the autonomous scheduling
loop, and enforces multi-reviewer approval before a task is finalized.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and exits with the engine's exit code
// contract: 0 success, 1 validation error, 2 not found, 3 precondition
// failed.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		PrintError(err.Error(), err)
	}
	os.Exit(types.ExitCode(err))
}

func init() {
	cobra.OnInitialize(InitConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./.taskforge.yaml or $HOME/.taskforge.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")

	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}
