// Package main provides the unified CLI entry point for the registry services.
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"bluecarbon.dev/registry/internal/registry"
	"bluecarbon.dev/registry/pkg/logger"
)

// InitConfig initializes Viper configuration.
// It supports reading from config files (config.yaml) and environment variables.
func InitConfig(cfgFile string) error {
	if cfgFile != "" {
		// Use config file from the flag
		viper.SetConfigFile(cfgFile)
	} else {
		// Search for config in current directory and /etc/registry/
		viper.AddConfigPath(".")
		viper.AddConfigPath("/etc/registry/")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// Environment variables
	viper.SetEnvPrefix("REGISTRY")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	// Read config file if it exists
	if err := viper.ReadInConfig(); err != nil {
		var configNotFoundErr viper.ConfigFileNotFoundError
		if errors.As(err, &configNotFoundErr) {
			// Config file not found; rely on env vars and defaults
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	return nil
}

// GetLogger creates a slog.Logger based on configuration.
func GetLogger() *slog.Logger {
	return logger.New(&logger.Config{
		Level: logger.ParseLevel(viper.GetString("log.level")),
	})
}

// addDBFlags registers the shared database flags on a subcommand and binds
// them to viper.
func addDBFlags(cmd *cobra.Command) {
	cmd.Flags().String("db-host", "localhost", "PostgreSQL host")
	cmd.Flags().Int("db-port", 5432, "PostgreSQL port")
	cmd.Flags().String("db-user", "postgres", "PostgreSQL user")
	cmd.Flags().String("db-password", "", "PostgreSQL password")
	cmd.Flags().String("db-name", "bluecarbon", "PostgreSQL database name")
	cmd.Flags().String("db-sslmode", "disable", "PostgreSQL SSL mode")

	_ = viper.BindPFlag("db.host", cmd.Flags().Lookup("db-host"))
	_ = viper.BindPFlag("db.port", cmd.Flags().Lookup("db-port"))
	_ = viper.BindPFlag("db.user", cmd.Flags().Lookup("db-user"))
	_ = viper.BindPFlag("db.password", cmd.Flags().Lookup("db-password"))
	_ = viper.BindPFlag("db.name", cmd.Flags().Lookup("db-name"))
	_ = viper.BindPFlag("db.sslmode", cmd.Flags().Lookup("db-sslmode"))
}

// dbConfig builds the database configuration from viper.
func dbConfig(log *slog.Logger) *registry.DBConfig {
	return &registry.DBConfig{
		Logger:   log,
		Host:     viper.GetString("db.host"),
		Port:     viper.GetInt("db.port"),
		User:     viper.GetString("db.user"),
		Password: viper.GetString("db.password"),
		DBName:   viper.GetString("db.name"),
		SSLMode:  viper.GetString("db.sslmode"),
	}
}
