/*
Copyright © 2026 TradeOps Engineering
*/
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/tradeops/taskforge/types"
)

// configCmd groups configuration helpers.
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect or initialize configuration",
}

// configShowCmd prints the effective configuration after merging the
// file, environment, and defaults.
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := yaml.Marshal(GetConfig())
		if err != nil {
			return fmt.Errorf("failed to render configuration: %w", err)
		}
		if used := viper.ConfigFileUsed(); used != "" {
			fmt.Printf("# config file: %s\n", used)
		}
		fmt.Print(string(out))
		return nil
	},
}

// configInitCmd writes a starter config file in the current directory.
var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter " + configName + ".yaml in the current directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configName + ".yaml"
		if _, err := os.Stat(path); err == nil {
			return types.ValidationError("%s already exists", path)
		}

		starter := types.AppConfig{
			Data: types.DataConfig{File: ".taskforge/taskforge.db"},
			Scheduler: types.SchedulerConfig{
				MaxTasksPerHour:     20,
				BudgetLimit:         50.0,
				CostPerTask:         1.0,
				Concurrency:         2,
				PollIntervalSeconds: 5,
			},
		}
		out, err := yaml.Marshal(starter)
		if err != nil {
			return fmt.Errorf("failed to render starter configuration: %w", err)
		}
		if err := os.WriteFile(path, out, 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
		fmt.Printf("Wrote %s\n", path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
}
