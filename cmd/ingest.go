package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"bluecarbon.dev/registry/internal/ingest"
	"bluecarbon.dev/registry/internal/registry"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <file>",
	Short: "Ingest a field-survey file into the plots collection",
	Long: `Ingest a tabular field-survey file (.csv or .xlsx) into the plots
collection. Rows are applied as an unordered batch of upserts keyed by plot
ID: re-surveys of a known plot update in place, never duplicate. Unparsable
cells become null fields; a bad row never aborts the batch.`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)

	addDBFlags(ingestCmd)
	ingestCmd.Flags().Duration("timeout", 5*time.Second, "per-upsert store timeout")

	_ = viper.BindPFlag("ingest.timeout", ingestCmd.Flags().Lookup("timeout"))
}

func runIngest(_ *cobra.Command, args []string) error {
	logger := GetLogger()
	logger.Info("starting ingestion", "path", args[0])

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

	pipeline, err := ingest.New(&ingest.Config{
		Logger:  logger,
		DB:      db,
		Timeout: viper.GetDuration("ingest.timeout"),
	})
	if err != nil {
		logger.Error("failed to create pipeline", "error", err)
		return err
	}

	summary, err := pipeline.Run(context.Background(), args[0])
	if err != nil {
		logger.Error("ingestion failed", "error", err)
		return err
	}

	fmt.Printf("Loaded %d rows\n", summary.RowsLoaded)
	fmt.Printf("Upsert complete: upserted=%d modified=%d matched=%d failed=%d parse_errors=%d\n",
		summary.Upserted, summary.Modified, summary.Matched, summary.Failed, summary.ParseErrors)
	return nil
}
