// Package report implements the read-only reporting engine: aggregate views
// over the plot, project, transaction, and user collections. Every report is
// an independent, stateless query, safe to run concurrently with ingestion.
package report

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"gorm.io/gorm"

	"bluecarbon.dev/registry/internal/registry"
	"bluecarbon.dev/registry/pkg/geo"
	"bluecarbon.dev/registry/pkg/metrics"
)

const defaultTimeout = 5 * time.Second

// DefaultRecentLimit bounds "recent" and proximity result sets.
const DefaultRecentLimit = 3

// Config holds the configuration for the Engine.
type Config struct {
	Logger  *slog.Logger
	DB      *gorm.DB
	Metrics *metrics.ReportMetrics // Optional metrics
	// Timeout bounds each store round-trip. Zero means the default.
	Timeout time.Duration
}

// Engine computes the registry's aggregate reports. An empty result set is a
// valid outcome, never an error; only store failures surface as errors.
type Engine struct {
	logger  *slog.Logger
	db      *gorm.DB
	metrics *metrics.ReportMetrics
	timeout time.Duration
}

// NewEngine creates a new reporting Engine.
func NewEngine(cfg *Config) (*Engine, error) {
	if cfg == nil {
		return nil, errors.New("engine config cannot be nil")
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

	return &Engine{
		logger:  cfg.Logger,
		db:      cfg.DB,
		metrics: cfg.Metrics,
		timeout: timeout,
	}, nil
}

// ProjectSummary is one row of the active-projects report.
type ProjectSummary struct {
	ProjectID   string `gorm:"column:project_id" json:"project_id"`
	Name        string `gorm:"column:name" json:"name"`
	ProjectType string `gorm:"column:project_type" json:"project_type"`
	Circulating int64  `gorm:"column:circulating" json:"circulating"`
}

// RoleCount is one row of the users-by-role report.
type RoleCount struct {
	Role  string `gorm:"column:role" json:"role"`
	Count int64  `gorm:"column:count" json:"count"`
}

// TypeCount is one row of the plots-by-project-type report.
type TypeCount struct {
	ProjectType string `gorm:"column:project_type" json:"project_type"`
	Count       int64  `gorm:"column:count" json:"count"`
}

// TypeAverage is one row of the NDVI-by-project-type report.
type TypeAverage struct {
	ProjectType string  `gorm:"column:project_type" json:"project_type"`
	AvgNDVI     float64 `gorm:"column:avg_ndvi" json:"avg_ndvi"`
}

// NearbyPlot is one row of the geospatial proximity report.
type NearbyPlot struct {
	PlotID         string  `json:"plot_id"`
	ProjectType    string  `json:"project_type"`
	GPSLat         float64 `json:"gps_lat"`
	GPSLong        float64 `json:"gps_long"`
	DistanceMeters float64 `json:"distance_meters"`
}

// BiomassYear is one row of the biomass trend report. Averages over groups
// with no data stay nil and are not presented.
type BiomassYear struct {
	Year         int      `gorm:"column:monitoring_year" json:"year"`
	AvgAbove     *float64 `gorm:"column:avg_above" json:"avg_above,omitempty"`
	AvgBelow     *float64 `gorm:"column:avg_below" json:"avg_below,omitempty"`
	TotalBiomass *float64 `gorm:"column:total_biomass" json:"total_biomass,omitempty"`
}

// FluxYear is one row of a gas flux trend report.
type FluxYear struct {
	Year    int     `gorm:"column:monitoring_year" json:"year"`
	AvgFlux float64 `gorm:"column:avg_flux" json:"avg_flux"`
}

// MonthlyNDVI is one row of the monthly NDVI trend report.
type MonthlyNDVI struct {
	Year    int     `json:"year"`
	Month   int     `json:"month"`
	AvgNDVI float64 `json:"avg_ndvi"`
}

// ActiveProjects lists active projects with their circulating balances, in
// insertion order.
func (e *Engine) ActiveProjects(ctx context.Context) ([]ProjectSummary, error) {
	done := e.track("active_projects")
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	var out []ProjectSummary
	err := e.db.WithContext(ctx).Model(&registry.Project{}).
		Select("project_id, name, project_type, balance_circulating AS circulating").
		Where("status = ?", registry.ProjectStatusActive).
		Order("id").
		Scan(&out).Error
	done(err)
	if err != nil {
		return nil, fmt.Errorf("active projects query failed: %w", err)
	}
	return out, nil
}

// TotalCreditsIssued sums total_issued across all projects. The empty
// aggregate is 0, not an error.
func (e *Engine) TotalCreditsIssued(ctx context.Context) (int64, error) {
	done := e.track("total_credits_issued")
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	var total int64
	err := e.db.WithContext(ctx).Model(&registry.Project{}).
		Select("COALESCE(SUM(balance_total_issued), 0)").
		Scan(&total).Error
	done(err)
	if err != nil {
		return 0, fmt.Errorf("total credits query failed: %w", err)
	}
	return total, nil
}

// RecentTransactions returns the most recent transactions, newest first.
// A non-positive limit means DefaultRecentLimit.
func (e *Engine) RecentTransactions(ctx context.Context, limit int) ([]registry.Transaction, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}

	done := e.track("recent_transactions")
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	var out []registry.Transaction
	err := e.db.WithContext(ctx).
		Order("timestamp DESC").
		Limit(limit).
		Find(&out).Error
	done(err)
	if err != nil {
		return nil, fmt.Errorf("recent transactions query failed: %w", err)
	}
	return out, nil
}

// UsersByRole counts users grouped by profile role, highest count first.
func (e *Engine) UsersByRole(ctx context.Context) ([]RoleCount, error) {
	done := e.track("users_by_role")
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	var out []RoleCount
	err := e.db.WithContext(ctx).Model(&registry.User{}).
		Select("profile_role AS role, COUNT(*) AS count").
		Group("profile_role").
		Order("count DESC").
		Scan(&out).Error
	done(err)
	if err != nil {
		return nil, fmt.Errorf("users by role query failed: %w", err)
	}
	return out, nil
}

// PlotCount counts all survey plots.
func (e *Engine) PlotCount(ctx context.Context) (int64, error) {
	done := e.track("plot_count")
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	var count int64
	err := e.db.WithContext(ctx).Model(&registry.Plot{}).Count(&count).Error
	done(err)
	if err != nil {
		return 0, fmt.Errorf("plot count query failed: %w", err)
	}
	return count, nil
}

// PlotsByProjectType counts plots grouped by project type, highest count
// first.
func (e *Engine) PlotsByProjectType(ctx context.Context) ([]TypeCount, error) {
	done := e.track("plots_by_project_type")
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	var out []TypeCount
	err := e.db.WithContext(ctx).Model(&registry.Plot{}).
		Select("project_type, COUNT(*) AS count").
		Group("project_type").
		Order("count DESC").
		Scan(&out).Error
	done(err)
	if err != nil {
		return nil, fmt.Errorf("plots by type query failed: %w", err)
	}
	return out, nil
}

// AverageNDVIByProjectType reports mean NDVI per project type, highest mean
// first. Plots without an NDVI reading are excluded, so no group averages
// over nothing.
func (e *Engine) AverageNDVIByProjectType(ctx context.Context) ([]TypeAverage, error) {
	done := e.track("avg_ndvi_by_project_type")
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	var out []TypeAverage
	err := e.db.WithContext(ctx).Model(&registry.Plot{}).
		Select("project_type, AVG(ndvi) AS avg_ndvi").
		Where("ndvi IS NOT NULL").
		Group("project_type").
		Order("avg_ndvi DESC").
		Scan(&out).Error
	done(err)
	if err != nil {
		return nil, fmt.Errorf("ndvi by type query failed: %w", err)
	}
	return out, nil
}

// PlotsNear returns plots within maxMeters of the reference point, closest
// first. The distance bound is inclusive. A non-positive limit means
// DefaultRecentLimit. Distance is computed in memory with the haversine
// formula over coordinate-bearing plots.
func (e *Engine) PlotsNear(ctx context.Context, lat, long, maxMeters float64, limit int) ([]NearbyPlot, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}

	done := e.track("plots_near")
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	var plots []registry.Plot
	err := e.db.WithContext(ctx).
		Where("gps_lat IS NOT NULL AND gps_long IS NOT NULL").
		Find(&plots).Error
	done(err)
	if err != nil {
		return nil, fmt.Errorf("proximity query failed: %w", err)
	}

	var out []NearbyPlot
	for _, p := range plots {
		d := geo.HaversineMeters(lat, long, *p.GPSLat, *p.GPSLong)
		if d <= maxMeters {
			out = append(out, NearbyPlot{
				PlotID:         p.PlotID,
				ProjectType:    p.ProjectType,
				GPSLat:         *p.GPSLat,
				GPSLong:        *p.GPSLong,
				DistanceMeters: d,
			})
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].DistanceMeters < out[j].DistanceMeters
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// BiomassTrend reports mean above- and below-ground biomass and the summed
// total per monitoring year, earliest year first. The total sums above+below
// only for plots carrying both readings.
func (e *Engine) BiomassTrend(ctx context.Context) ([]BiomassYear, error) {
	done := e.track("biomass_trend")
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	var out []BiomassYear
	err := e.db.WithContext(ctx).Model(&registry.Plot{}).
		Select("monitoring_year, " +
			"AVG(biomass_above_kg) AS avg_above, " +
			"AVG(biomass_below_kg) AS avg_below, " +
			"SUM(biomass_above_kg + biomass_below_kg) AS total_biomass").
		Where("monitoring_year IS NOT NULL").
		Group("monitoring_year").
		Order("monitoring_year ASC").
		Scan(&out).Error
	done(err)
	if err != nil {
		return nil, fmt.Errorf("biomass trend query failed: %w", err)
	}
	return out, nil
}

// CO2FluxTrend reports mean CO2 flux per monitoring year, earliest first.
func (e *Engine) CO2FluxTrend(ctx context.Context) ([]FluxYear, error) {
	return e.fluxTrend(ctx, "co2_flux_trend", "co2_flux_mg_m2_day")
}

// CH4FluxTrend reports mean CH4 flux per monitoring year, earliest first.
func (e *Engine) CH4FluxTrend(ctx context.Context) ([]FluxYear, error) {
	return e.fluxTrend(ctx, "ch4_flux_trend", "ch4_flux_mg_m2_day")
}

func (e *Engine) fluxTrend(ctx context.Context, name, column string) ([]FluxYear, error) {
	done := e.track(name)
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	var out []FluxYear
	err := e.db.WithContext(ctx).Model(&registry.Plot{}).
		Select(fmt.Sprintf("monitoring_year, AVG(%s) AS avg_flux", column)).
		Where(fmt.Sprintf("monitoring_year IS NOT NULL AND %s IS NOT NULL", column)).
		Group("monitoring_year").
		Order("monitoring_year ASC").
		Scan(&out).Error
	done(err)
	if err != nil {
		return nil, fmt.Errorf("%s query failed: %w", name, err)
	}
	return out, nil
}

// NDVIMonthlyTrend reports mean NDVI grouped by (year, month) of the survey
// timestamp, chronological order. Grouping runs in memory so the calendar
// extraction does not depend on store-specific date functions.
func (e *Engine) NDVIMonthlyTrend(ctx context.Context) ([]MonthlyNDVI, error) {
	done := e.track("ndvi_monthly_trend")
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	var rows []registry.Plot
	err := e.db.WithContext(ctx).
		Select("timestamp, ndvi").
		Where("timestamp IS NOT NULL AND ndvi IS NOT NULL").
		Find(&rows).Error
	done(err)
	if err != nil {
		return nil, fmt.Errorf("ndvi monthly trend query failed: %w", err)
	}

	type yearMonth struct {
		year  int
		month int
	}
	sums := make(map[yearMonth]float64)
	counts := make(map[yearMonth]int)
	for _, r := range rows {
		t := r.Timestamp.UTC()
		key := yearMonth{year: t.Year(), month: int(t.Month())}
		sums[key] += *r.NDVI
		counts[key]++
	}

	out := make([]MonthlyNDVI, 0, len(sums))
	for key, sum := range sums {
		out = append(out, MonthlyNDVI{
			Year:    key.year,
			Month:   key.month,
			AvgNDVI: sum / float64(counts[key]),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year < out[j].Year
		}
		return out[i].Month < out[j].Month
	})
	return out, nil
}

// track times a report query and records its outcome.
func (e *Engine) track(name string) func(err error) {
	start := time.Now()
	return func(err error) {
		if e.metrics == nil {
			return
		}
		e.metrics.QueryDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
		status := "success"
		if err != nil {
			status = "error"
		}
		e.metrics.QueriesTotal.WithLabelValues(name, status).Inc()
	}
}
