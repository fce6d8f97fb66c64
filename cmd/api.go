package main

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"bluecarbon.dev/registry/internal/api"
	"bluecarbon.dev/registry/internal/registry"
	"bluecarbon.dev/registry/pkg/metrics"
)

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Run the registry HTTP API server",
	Long: `Run the HTTP API server that:
- Serves project and credit lifecycle endpoints
- Serves one endpoint per aggregate report
- Exposes Prometheus metrics on /metrics`,
	RunE: runAPI,
}

func init() {
	rootCmd.AddCommand(apiCmd)

	addDBFlags(apiCmd)
	apiCmd.Flags().Int("http-port", 8000, "HTTP server port")

	_ = viper.BindPFlag("api.http.port", apiCmd.Flags().Lookup("http-port"))
}

func runAPI(_ *cobra.Command, _ []string) error {
	logger := GetLogger()
	logger.Info("starting API service")

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

	server, err := api.NewServer(&api.ServerConfig{
		Logger:        logger,
		DB:            db,
		HTTPPort:      viper.GetInt("api.http.port"),
		Metrics:       metrics.NewAPIMetrics("registry"),
		ReportMetrics: metrics.NewReportMetrics("registry"),
	})
	if err != nil {
		logger.Error("failed to create API server", "error", err)
		return err
	}

	if err := server.Run(context.Background()); err != nil {
		logger.Error("API server error", "error", err)
		return err
	}

	logger.Info("API server stopped")
	return nil
}
