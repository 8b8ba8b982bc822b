package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/tradeops/taskforge/internal/policy"
	"github.com/tradeops/taskforge/internal/resolver"
	"github.com/tradeops/taskforge/internal/signoff"
	"github.com/tradeops/taskforge/store"
	"github.com/tradeops/taskforge/types"
)

const (
	configName = ".taskforge"
	envPrefix  = "TASKFORGE"
)

// GlobalAppConfig holds the global application configuration instance.
var GlobalAppConfig types.AppConfig

// validate caches struct info across config loads.
var validateCfg = validator.New()

// InitConfig reads the config file and TASKFORGE_* environment
// variables, falling back to defaults for anything unset.
func InitConfig() {
	// .env is optional; ignore a missing file.
	_ = godotenv.Load()

	viper.SetEnvPrefix(envPrefix)
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setConfigDefaults()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName(configName)
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(home)
		}
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			PrintError(fmt.Sprintf("failed to read config file: %v", err), err)
			os.Exit(1)
		}
		// No config file is fine; defaults and env vars apply.
	} else {
		LogVerbose("using config file "+viper.ConfigFileUsed(), nil)
	}

	if err := viper.Unmarshal(&GlobalAppConfig); err != nil {
		PrintError(fmt.Sprintf("failed to parse configuration: %v", err), err)
		os.Exit(1)
	}
	if err := validateCfg.Struct(&GlobalAppConfig); err != nil {
		PrintError(fmt.Sprintf("invalid configuration: %v", err), err)
		os.Exit(1)
	}
}

func setConfigDefaults() {
	viper.SetDefault("data.file", ".taskforge/taskforge.db")
	viper.SetDefault("scheduler.maxTasksPerHour", 20)
	viper.SetDefault("scheduler.budgetLimit", 50.0)
	viper.SetDefault("scheduler.costPerTask", 1.0)
	viper.SetDefault("scheduler.concurrency", 2)
	viper.SetDefault("scheduler.pollIntervalSeconds", 5)
}

// GetConfig returns the loaded application configuration.
func GetConfig() types.AppConfig {
	return GlobalAppConfig
}

// GetStore opens the SQLite task store configured in data.file.
func GetStore(ctx context.Context) (store.TaskStore, error) {
	cfg := GetConfig()
	s, err := store.NewSQLiteStore(ctx, cfg.Data.File)
	if err != nil {
		return nil, fmt.Errorf("failed to open store at %s: %w", cfg.Data.File, err)
	}
	return s, nil
}

// buildEngine wires the coordinator and resolver over a store using
// the configured policy tables.
func buildEngine(s store.TaskStore) (*signoff.Coordinator, *resolver.Resolver, policy.Policy, error) {
	pol, err := policy.Load(GetConfig().Policy)
	if err != nil {
		return nil, nil, policy.Policy{}, err
	}
	coord := signoff.NewCoordinator(s, pol.SignOffs)
	return coord, resolver.New(s, coord), pol, nil
}
