package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"bluecarbon.dev/registry/internal/registry"
	"bluecarbon.dev/registry/pkg/metrics"
)

// Upsert outcomes, used as metric labels.
const (
	opInsert = "insert"
	opUpdate = "update"
	opNoop   = "noop"
)

const defaultTimeout = 5 * time.Second

// Config holds the configuration for the Pipeline.
type Config struct {
	Logger  *slog.Logger
	DB      *gorm.DB
	Metrics *metrics.IngestMetrics // Optional metrics
	// Timeout bounds each store round-trip. Zero means the default.
	Timeout time.Duration
}

// Pipeline ingests tabular survey files into the plots collection. The whole
// input is read into memory, then applied as an unordered batch of upserts
// keyed by plot ID: one row's failure never aborts the rest of the batch.
type Pipeline struct {
	logger  *slog.Logger
	db      *gorm.DB
	metrics *metrics.IngestMetrics
	timeout time.Duration
}

// Summary reports the outcome of one ingestion run.
type Summary struct {
	RowsLoaded  int `json:"rows_loaded"`
	Upserted    int `json:"upserted"`
	Modified    int `json:"modified"`
	Matched     int `json:"matched"`
	Failed      int `json:"failed"`
	ParseErrors int `json:"parse_errors"`
}

// New creates a new ingestion Pipeline.
func New(cfg *Config) (*Pipeline, error) {
	if cfg == nil {
		return nil, errors.New("pipeline config cannot be nil")
	}

	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	if cfg.DB == nil {
		return nil, errors.New("database cannot be nil")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Pipeline{
		logger:  cfg.Logger,
		db:      cfg.DB,
		metrics: cfg.Metrics,
		timeout: timeout,
	}, nil
}

// Run ingests the survey file at path and returns the batch summary. The run
// fails as a whole only when the input cannot be read or the store is
// unreachable; per-row data-quality problems become nulled fields or failed
// rows inside the summary.
func (p *Pipeline) Run(ctx context.Context, path string) (*Summary, error) {
	start := time.Now()

	rows, err := ReadRows(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load input: %w", err)
	}

	p.logger.Info("loaded rows from input", "path", path, "count", len(rows))

	summary := &Summary{RowsLoaded: len(rows)}

	for _, row := range rows {
		plot, report := ParseRow(row)

		summary.ParseErrors += len(report.Errors)
		for _, fe := range report.Errors {
			p.logger.Debug("field parse error",
				"plot_id", report.PlotID,
				"field", fe.Field,
				"raw", fe.Raw,
				"error", fe.Err,
			)
			if p.metrics != nil {
				p.metrics.ParseErrorsTotal.Inc()
			}
		}

		if plot == nil {
			summary.Failed++
			p.countRow("failed")
			continue
		}

		op, err := p.upsert(ctx, plot)
		if err != nil {
			if isConnectivityError(err) || p.storeDown(ctx) {
				return nil, fmt.Errorf("store unreachable during batch: %w", err)
			}
			p.logger.Warn("upsert failed",
				"plot_id", plot.PlotID,
				"error", err,
			)
			summary.Failed++
			p.countRow("failed")
			continue
		}

		switch op {
		case opInsert:
			summary.Upserted++
			p.countRow("upserted")
		case opUpdate:
			summary.Modified++
			summary.Matched++
			p.countRow("modified")
		case opNoop:
			summary.Matched++
			p.countRow("matched")
		}
	}

	if p.metrics != nil {
		p.metrics.BatchDuration.Observe(time.Since(start).Seconds())
	}

	p.logger.Info("upsert complete",
		"rows_loaded", summary.RowsLoaded,
		"upserted", summary.Upserted,
		"modified", summary.Modified,
		"matched", summary.Matched,
		"failed", summary.Failed,
		"parse_errors", summary.ParseErrors,
	)

	return summary, nil
}

// upsert applies one plot document: insert when the plot ID is new, full
// field overwrite when it exists with different survey data, no write when
// unchanged. CreatedAt is set only on insert; UpdatedAt refreshes on every
// write.
func (p *Pipeline) upsert(ctx context.Context, doc *registry.Plot) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	var op string

	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing registry.Plot
		err := tx.Where("plot_id = ?", doc.PlotID).First(&existing).Error

		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			if err := tx.Create(doc).Error; err != nil {
				return fmt.Errorf("failed to insert plot: %w", err)
			}
			op = opInsert
			return nil

		case err != nil:
			return fmt.Errorf("failed to look up plot: %w", err)

		case existing.SurveyEquals(doc):
			op = opNoop
			return nil

		default:
			existing.ApplySurvey(doc)
			if err := tx.Save(&existing).Error; err != nil {
				return fmt.Errorf("failed to update plot: %w", err)
			}
			op = opUpdate
			return nil
		}
	})
	if err != nil {
		return "", err
	}

	if p.metrics != nil {
		p.metrics.UpsertDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}
	return op, nil
}

func (p *Pipeline) countRow(outcome string) {
	if p.metrics != nil {
		p.metrics.RowsTotal.WithLabelValues(outcome).Inc()
	}
}

// isConnectivityError catches the context-level store-unreachable conditions,
// which abort the run. Other upsert errors go through storeDown before they
// may count as per-row failures.
func isConnectivityError(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}

// storeDown reports whether the store itself is unreachable. An upsert can
// fail for row-local reasons (constraint violations) or because the
// connection is gone; the drivers do not expose the difference as a sentinel,
// so a ping settles it. A dead store aborts the batch instead of draining it
// into failed-row counts.
func (p *Pipeline) storeDown(ctx context.Context) bool {
	sqlDB, err := p.db.DB()
	if err != nil {
		return true
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	return sqlDB.PingContext(ctx) != nil
}
