package main

import (
	"context"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"bluecarbon.dev/registry/internal/registry"
	"bluecarbon.dev/registry/internal/report"
)

var reportCmd = &cobra.Command{
	Use:   "report [name]",
	Short: "Run aggregate reports over the registry collections",
	Long: `Run read-only aggregate reports and print them. With no argument
every report runs; with a name only that report runs.

Available reports: ` + strings.Join(report.Names(), ", "),
	Args: cobra.MaximumNArgs(1),
	RunE: runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)

	addDBFlags(reportCmd)
}

func runReport(_ *cobra.Command, args []string) error {
	logger := GetLogger()

	db, err := registry.NewDB(dbConfig(logger))
	if err != nil {
		logger.Error("failed to initialize database", "error", err)
		return err
	}
	defer func() {
		if err := registry.CloseDB(db, logger); err != nil {
			logger.Error("failed to close database", "error", err)
		}
	}()

	engine, err := report.NewEngine(&report.Config{
		Logger: logger,
		DB:     db,
	})
	if err != nil {
		logger.Error("failed to create reporting engine", "error", err)
		return err
	}

	ctx := context.Background()
	if len(args) == 1 {
		return report.Render(ctx, engine, os.Stdout, args[0])
	}
	return report.RenderAll(ctx, engine, os.Stdout)
}
