package ingest

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gorm.io/datatypes"

	"bluecarbon.dev/registry/internal/registry"
	"bluecarbon.dev/registry/pkg/geo"
)

// Column names of the plot field set, as they appear in the survey file
// header.
const (
	colID                = "ID"
	colProjectType       = "Project_Type"
	colMonitoringYear    = "Monitoring_Year"
	colTimestamp         = "Timestamp"
	colGPSLat            = "GPS_Lat"
	colGPSLong           = "GPS_Long"
	colTreeHeight        = "Tree_Height_m"
	colDBH               = "DBH_cm"
	colBiomassAbove      = "Biomass_above_kg"
	colBiomassBelow      = "Biomass_below_kg"
	colSoilOrganicCarbon = "Soil_Organic_Carbon_g_per_kg"
	colSoilSalinity      = "Soil_Salinity_psu"
	colSoilMoisture      = "Soil_Moisture_percent"
	colSoilPH            = "Soil_pH"
	colWaterSalinity     = "Water_Salinity_psu"
	colWaterTemperature  = "Water_Temperature_C"
	colCO2Flux           = "CO2_Flux_mg_m2_day"
	colCH4Flux           = "CH4_Flux_mg_m2_day"
	colNDVI              = "NDVI"
	colCanopyCover       = "Canopy_Cover_percent"
	colPlotArea          = "Plot_Area_ha"
	colSoilBulkDensity   = "Soil_Bulk_Density_g_cm3"
	colSoilDepth         = "Soil_Depth_cm"
)

// ErrMissingID marks a row that cannot be keyed for upsert.
var ErrMissingID = errors.New("row has no ID")

// FieldError records a single cell that could not be coerced to its target
// type. The field is nulled and the row continues; nothing is thrown away.
type FieldError struct {
	Field string
	Raw   string
	Err   error
}

func (e FieldError) Error() string {
	return fmt.Sprintf("field %s: cannot parse %q: %v", e.Field, e.Raw, e.Err)
}

// RowReport collects the parse outcome of one row: which fields were nulled
// and why. An empty Errors slice means every present cell parsed cleanly.
type RowReport struct {
	PlotID string
	Errors []FieldError
}

// rowParser accumulates field errors while pulling typed values out of a raw
// row.
type rowParser struct {
	row    Row
	report *RowReport
}

// ParseRow turns a raw survey row into a Plot document. Parse failures are
// absorbed at field granularity: a bad cell nulls that field, records a
// FieldError, and never fails the row. The only row-level failure is a
// missing ID, which leaves nothing to upsert by.
func ParseRow(row Row) (*registry.Plot, RowReport) {
	report := RowReport{PlotID: strings.TrimSpace(row[colID])}

	if report.PlotID == "" {
		report.Errors = append(report.Errors, FieldError{Field: colID, Raw: row[colID], Err: ErrMissingID})
		return nil, report
	}

	rp := rowParser{row: row, report: &report}

	plot := &registry.Plot{
		PlotID:            report.PlotID,
		ProjectType:       strings.TrimSpace(row[colProjectType]),
		MonitoringYear:    rp.intField(colMonitoringYear),
		Timestamp:         rp.timeField(colTimestamp),
		GPSLat:            rp.floatField(colGPSLat),
		GPSLong:           rp.floatField(colGPSLong),
		TreeHeightM:       rp.floatField(colTreeHeight),
		DBHCm:             rp.floatField(colDBH),
		BiomassAboveKg:    rp.floatField(colBiomassAbove),
		BiomassBelowKg:    rp.floatField(colBiomassBelow),
		SoilOrganicCarbon: rp.floatField(colSoilOrganicCarbon),
		SoilSalinityPsu:   rp.floatField(colSoilSalinity),
		SoilMoisturePct:   rp.floatField(colSoilMoisture),
		SoilPH:            rp.floatField(colSoilPH),
		WaterSalinityPsu:  rp.floatField(colWaterSalinity),
		WaterTemperatureC: rp.floatField(colWaterTemperature),
		CO2Flux:           rp.floatField(colCO2Flux),
		CH4Flux:           rp.floatField(colCH4Flux),
		NDVI:              rp.floatField(colNDVI),
		CanopyCoverPct:    rp.floatField(colCanopyCover),
		PlotAreaHa:        rp.floatField(colPlotArea),
		SoilBulkDensity:   rp.floatField(colSoilBulkDensity),
		SoilDepthCm:       rp.floatField(colSoilDepth),
	}

	// Derive the GeoJSON point, longitude first. Left NULL when either
	// coordinate failed to parse, so location stays consistent with the
	// coordinate columns.
	if plot.GPSLat != nil && plot.GPSLong != nil {
		point := datatypes.NewJSONType(geo.NewPoint(*plot.GPSLong, *plot.GPSLat))
		plot.Location = &point
	}

	return plot, report
}

// floatField parses a floating-point cell. An empty cell is absent, not an
// error; a malformed cell nulls the field and records a FieldError.
func (rp *rowParser) floatField(name string) *float64 {
	raw := strings.TrimSpace(rp.row[name])
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		rp.fail(name, raw, err)
		return nil
	}
	return &v
}

func (rp *rowParser) intField(name string) *int {
	raw := strings.TrimSpace(rp.row[name])
	if raw == "" {
		return nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		rp.fail(name, raw, err)
		return nil
	}
	return &v
}

// timeField normalizes a "YYYY-MM-DD HH:MM:SS" cell into a UTC instant.
// Empty cells are absent. A malformed non-empty cell nulls the field and
// records a FieldError rather than propagating an invalid date downstream.
func (rp *rowParser) timeField(name string) *time.Time {
	raw := strings.TrimSpace(rp.row[name])
	if raw == "" {
		return nil
	}
	normalized := strings.Replace(raw, " ", "T", 1) + "Z"
	t, err := time.Parse(time.RFC3339, normalized)
	if err != nil {
		rp.fail(name, raw, err)
		return nil
	}
	return &t
}

func (rp *rowParser) fail(field, raw string, err error) {
	rp.report.Errors = append(rp.report.Errors, FieldError{Field: field, Raw: raw, Err: err})
}
