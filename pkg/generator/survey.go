// Package generator produces synthetic field-survey and registry data for
// local development and demos. Generated survey files deliberately contain a
// small share of dirty cells so the ingestion pipeline's partial-failure
// handling gets exercised.
package generator

import (
	"encoding/csv"
	"fmt"
	"math/rand"
	"os"
	"strconv"
	"time"

	"github.com/brianvoe/gofakeit/v7"
)

// Header is the column set of a generated survey file, matching the plot
// field set the ingestion pipeline expects.
var Header = []string{
	"ID",
	"Project_Type",
	"Monitoring_Year",
	"Timestamp",
	"GPS_Lat",
	"GPS_Long",
	"Tree_Height_m",
	"DBH_cm",
	"Biomass_above_kg",
	"Biomass_below_kg",
	"Soil_Organic_Carbon_g_per_kg",
	"Soil_Salinity_psu",
	"Soil_Moisture_percent",
	"Soil_pH",
	"Water_Salinity_psu",
	"Water_Temperature_C",
	"CO2_Flux_mg_m2_day",
	"CH4_Flux_mg_m2_day",
	"NDVI",
	"Canopy_Cover_percent",
	"Plot_Area_ha",
	"Soil_Bulk_Density_g_cm3",
	"Soil_Depth_cm",
}

var projectTypes = []string{
	"Mangrove",
	"Reforestation",
	"Urban Forestry",
	"Solar/Wind",
	"Other",
}

// SurveyGenerator produces raw survey rows around a coastal reference point,
// with per-plot baselines so re-surveys of the same plot stay plausible.
type SurveyGenerator struct {
	rng *rand.Rand
	// dirtyRate is the probability that any one numeric cell is blank or
	// unparsable.
	dirtyRate float64
}

// NewSurveyGenerator creates a generator with the given seed. A zero seed
// picks a fresh one from the clock.
func NewSurveyGenerator(seed int64) *SurveyGenerator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &SurveyGenerator{
		rng:       rand.New(rand.NewSource(seed)),
		dirtyRate: 0.03,
	}
}

// Row produces one raw survey record for the given plot and year.
func (g *SurveyGenerator) Row(plotID string, year int) []string {
	projectType := projectTypes[g.rng.Intn(len(projectTypes))]

	// Coastal South India-ish coordinates
	lat := 8.0 + g.rng.Float64()*5.0
	long := 76.0 + g.rng.Float64()*5.0

	surveyed := time.Date(year, time.Month(1+g.rng.Intn(12)), 1+g.rng.Intn(28),
		g.rng.Intn(24), g.rng.Intn(60), g.rng.Intn(60), 0, time.UTC)

	cells := []string{
		plotID,
		projectType,
		strconv.Itoa(year),
		surveyed.Format("2006-01-02 15:04:05"),
		g.float(lat, 6),
		g.float(long, 6),
		g.dirty(g.rangeFloat(2, 25, 2)),      // tree height m
		g.dirty(g.rangeFloat(5, 80, 1)),      // DBH cm
		g.dirty(g.rangeFloat(10, 400, 2)),    // biomass above kg
		g.dirty(g.rangeFloat(5, 150, 2)),     // biomass below kg
		g.dirty(g.rangeFloat(5, 60, 2)),      // soil organic carbon g/kg
		g.dirty(g.rangeFloat(0, 40, 2)),      // soil salinity psu
		g.dirty(g.rangeFloat(10, 90, 1)),     // soil moisture %
		g.dirty(g.rangeFloat(4.5, 8.5, 2)),   // soil pH
		g.dirty(g.rangeFloat(0, 38, 2)),      // water salinity psu
		g.dirty(g.rangeFloat(18, 34, 1)),     // water temperature C
		g.dirty(g.rangeFloat(-500, 2000, 1)), // CO2 flux
		g.dirty(g.rangeFloat(-50, 300, 1)),   // CH4 flux
		g.dirty(g.rangeFloat(0.1, 0.95, 4)),  // NDVI
		g.dirty(g.rangeFloat(5, 100, 1)),     // canopy cover %
		g.dirty(g.rangeFloat(0.1, 10, 2)),    // plot area ha
		g.dirty(g.rangeFloat(0.8, 1.8, 2)),   // soil bulk density g/cm3
		g.dirty(g.rangeFloat(10, 200, 0)),    // soil depth cm
	}
	return cells
}

// Rows produces rows for n distinct plots, re-surveying a share of them in a
// second year so ingestion exercises its update path.
func (g *SurveyGenerator) Rows(n int, startYear int) [][]string {
	var rows [][]string
	for i := 0; i < n; i++ {
		plotID := fmt.Sprintf("PLT-%04d", i+1)
		rows = append(rows, g.Row(plotID, startYear))
		if g.rng.Float64() < 0.3 {
			rows = append(rows, g.Row(plotID, startYear+1))
		}
	}
	return rows
}

// WriteCSV writes a generated survey file with n plots to path.
func (g *SurveyGenerator) WriteCSV(path string, n, startYear int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(Header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, row := range g.Rows(n, startYear) {
		if err := w.Write(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	w.Flush()
	return w.Error()
}

func (g *SurveyGenerator) rangeFloat(min, max float64, decimals int) string {
	return g.float(min+g.rng.Float64()*(max-min), decimals)
}

func (g *SurveyGenerator) float(v float64, decimals int) string {
	return strconv.FormatFloat(v, 'f', decimals, 64)
}

// dirty occasionally replaces a clean cell with a blank or junk value.
func (g *SurveyGenerator) dirty(cell string) string {
	r := g.rng.Float64()
	switch {
	case r < g.dirtyRate/2:
		return ""
	case r < g.dirtyRate:
		return "n/a"
	default:
		return cell
	}
}

// SampleProject is a synthetic carbon project for seeding the registry.
type SampleProject struct {
	ProjectID   string
	Name        string
	Description string
	ProjectType string
	Location    string
	Owner       string
}

// Projects generates n synthetic projects.
func Projects(n int) []SampleProject {
	out := make([]SampleProject, 0, n)
	for i := 0; i < n; i++ {
		projectType := projectTypes[gofakeit.Number(0, len(projectTypes)-1)]
		out = append(out, SampleProject{
			ProjectID:   fmt.Sprintf("PRJ-%04d", i+1),
			Name:        fmt.Sprintf("%s %s Project", gofakeit.City(), projectType),
			Description: gofakeit.Sentence(12),
			ProjectType: projectType,
			Location:    fmt.Sprintf("%s, %s", gofakeit.City(), gofakeit.State()),
			Owner:       gofakeit.HexUint(160),
		})
	}
	return out
}

// SampleUser is a synthetic registry account.
type SampleUser struct {
	Address string
	Role    string
	Name    string
	Email   string
}

// Users generates n synthetic accounts, mostly plain users with a sprinkle
// of admins and minters.
func Users(n int) []SampleUser {
	roles := []string{"user", "user", "user", "user", "minter", "admin"}
	out := make([]SampleUser, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, SampleUser{
			Address: gofakeit.HexUint(160),
			Role:    roles[gofakeit.Number(0, len(roles)-1)],
			Name:    gofakeit.Name(),
			Email:   gofakeit.Email(),
		})
	}
	return out
}
