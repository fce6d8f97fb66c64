// Package registry provides the persistent data model and credit-lifecycle
// service for the carbon registry: survey plots, projects, the append-only
// transaction log, and user accounts.
package registry

import (
	"time"

	"gorm.io/datatypes"

	"bluecarbon.dev/registry/pkg/geo"
)

// Project types recorded on plots and projects.
const (
	ProjectTypeMangrove      = "Mangrove"
	ProjectTypeReforestation = "Reforestation"
	ProjectTypeUrbanForestry = "Urban Forestry"
	ProjectTypeSolarWind     = "Solar/Wind"
	ProjectTypeOther         = "Other"
)

// Project lifecycle states.
const (
	ProjectStatusActive   = "active"
	ProjectStatusInactive = "inactive"
)

// Transaction types written to the append-only log.
const (
	TxTypeProjectRegistration = "project_registration"
	TxTypeCreditIssuance      = "credit_issuance"
	TxTypeCreditRetirement    = "credit_retirement"
)

// User roles. The set is closed.
const (
	RoleAdmin  = "admin"
	RoleMinter = "minter"
	RoleUser   = "user"
)

// Plot is one physical survey location, re-surveyed over time. PlotID is the
// natural key: ingesting the same PlotID twice updates in place, never
// duplicates. All measurement fields are nullable; a field that could not be
// parsed from the source row stays NULL.
type Plot struct {
	ID             uint       `gorm:"primaryKey"`
	PlotID         string     `gorm:"column:plot_id;uniqueIndex;not null"`
	ProjectType    string     `gorm:"column:project_type;index"`
	MonitoringYear *int       `gorm:"column:monitoring_year;index"`
	Timestamp      *time.Time `gorm:"column:timestamp"`

	GPSLat  *float64 `gorm:"column:gps_lat;index:idx_plots_gps"`
	GPSLong *float64 `gorm:"column:gps_long;index:idx_plots_gps"`
	// Location is a GeoJSON Point derived from GPSLong/GPSLat, coordinates
	// ordered [longitude, latitude]. NULL when either coordinate is missing.
	Location *datatypes.JSONType[geo.Point] `gorm:"column:location"`

	TreeHeightM       *float64 `gorm:"column:tree_height_m"`
	DBHCm             *float64 `gorm:"column:dbh_cm"`
	BiomassAboveKg    *float64 `gorm:"column:biomass_above_kg"`
	BiomassBelowKg    *float64 `gorm:"column:biomass_below_kg"`
	SoilOrganicCarbon *float64 `gorm:"column:soil_organic_carbon_g_per_kg"`
	SoilSalinityPsu   *float64 `gorm:"column:soil_salinity_psu"`
	SoilMoisturePct   *float64 `gorm:"column:soil_moisture_percent"`
	SoilPH            *float64 `gorm:"column:soil_ph"`
	WaterSalinityPsu  *float64 `gorm:"column:water_salinity_psu"`
	WaterTemperatureC *float64 `gorm:"column:water_temperature_c"`
	CO2Flux           *float64 `gorm:"column:co2_flux_mg_m2_day"`
	CH4Flux           *float64 `gorm:"column:ch4_flux_mg_m2_day"`
	NDVI              *float64 `gorm:"column:ndvi"`
	CanopyCoverPct    *float64 `gorm:"column:canopy_cover_percent"`
	PlotAreaHa        *float64 `gorm:"column:plot_area_ha"`
	SoilBulkDensity   *float64 `gorm:"column:soil_bulk_density_g_cm3"`
	SoilDepthCm       *float64 `gorm:"column:soil_depth_cm"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// TableName specifies the table name for the Plot model.
func (Plot) TableName() string {
	return "plots"
}

// SurveyEquals reports whether two plots carry the same survey data,
// ignoring storage identity and write timestamps.
func (p *Plot) SurveyEquals(o *Plot) bool {
	if p.PlotID != o.PlotID || p.ProjectType != o.ProjectType {
		return false
	}
	if !eqInt(p.MonitoringYear, o.MonitoringYear) {
		return false
	}
	if !eqTime(p.Timestamp, o.Timestamp) {
		return false
	}
	pairs := [][2]*float64{
		{p.GPSLat, o.GPSLat},
		{p.GPSLong, o.GPSLong},
		{p.TreeHeightM, o.TreeHeightM},
		{p.DBHCm, o.DBHCm},
		{p.BiomassAboveKg, o.BiomassAboveKg},
		{p.BiomassBelowKg, o.BiomassBelowKg},
		{p.SoilOrganicCarbon, o.SoilOrganicCarbon},
		{p.SoilSalinityPsu, o.SoilSalinityPsu},
		{p.SoilMoisturePct, o.SoilMoisturePct},
		{p.SoilPH, o.SoilPH},
		{p.WaterSalinityPsu, o.WaterSalinityPsu},
		{p.WaterTemperatureC, o.WaterTemperatureC},
		{p.CO2Flux, o.CO2Flux},
		{p.CH4Flux, o.CH4Flux},
		{p.NDVI, o.NDVI},
		{p.CanopyCoverPct, o.CanopyCoverPct},
		{p.PlotAreaHa, o.PlotAreaHa},
		{p.SoilBulkDensity, o.SoilBulkDensity},
		{p.SoilDepthCm, o.SoilDepthCm},
	}
	for _, pair := range pairs {
		if !eqFloat(pair[0], pair[1]) {
			return false
		}
	}
	return true
}

// ApplySurvey overwrites the full survey field set with values from o,
// preserving storage identity and CreatedAt. This is the update half of an
// upsert: a full field overwrite, not a partial patch.
func (p *Plot) ApplySurvey(o *Plot) {
	p.ProjectType = o.ProjectType
	p.MonitoringYear = o.MonitoringYear
	p.Timestamp = o.Timestamp
	p.GPSLat = o.GPSLat
	p.GPSLong = o.GPSLong
	p.Location = o.Location
	p.TreeHeightM = o.TreeHeightM
	p.DBHCm = o.DBHCm
	p.BiomassAboveKg = o.BiomassAboveKg
	p.BiomassBelowKg = o.BiomassBelowKg
	p.SoilOrganicCarbon = o.SoilOrganicCarbon
	p.SoilSalinityPsu = o.SoilSalinityPsu
	p.SoilMoisturePct = o.SoilMoisturePct
	p.SoilPH = o.SoilPH
	p.WaterSalinityPsu = o.WaterSalinityPsu
	p.WaterTemperatureC = o.WaterTemperatureC
	p.CO2Flux = o.CO2Flux
	p.CH4Flux = o.CH4Flux
	p.NDVI = o.NDVI
	p.CanopyCoverPct = o.CanopyCoverPct
	p.PlotAreaHa = o.PlotAreaHa
	p.SoilBulkDensity = o.SoilBulkDensity
	p.SoilDepthCm = o.SoilDepthCm
}

func eqFloat(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func eqInt(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func eqTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

// ProjectBalances tracks the credit accounting for a project.
// Invariant: Circulating = TotalIssued - TotalRetired at all times.
type ProjectBalances struct {
	TotalIssued  int64 `gorm:"column:total_issued" json:"total_issued"`
	TotalRetired int64 `gorm:"column:total_retired" json:"total_retired"`
	Circulating  int64 `gorm:"column:circulating" json:"circulating"`
}

// Project is a registered carbon project holding credit balances.
type Project struct {
	ID          uint            `gorm:"primaryKey" json:"-"`
	ProjectID   string          `gorm:"column:project_id;uniqueIndex;not null" json:"project_id"`
	Name        string          `gorm:"not null" json:"name"`
	Description string          `json:"description"`
	ProjectType string          `gorm:"column:project_type" json:"project_type"`
	Location    string          `json:"location"`
	Status      string          `gorm:"index;not null" json:"status"`
	MetadataCID string          `gorm:"column:metadata_cid" json:"metadata_cid"`
	Owner       string          `gorm:"index" json:"owner"`
	Balances    ProjectBalances `gorm:"embedded;embeddedPrefix:balance_" json:"balances"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName specifies the table name for the Project model.
func (Project) TableName() string {
	return "projects"
}

// TransactionDetails is the payload of a transaction log entry.
type TransactionDetails struct {
	ProjectID string            `json:"project_id"`
	Amount    int64             `json:"amount,omitempty"`
	To        string            `json:"to,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Transaction is an append-only log entry. Rows are never mutated after
// creation; "recent" queries order by Timestamp descending.
type Transaction struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	Type      string    `gorm:"index;not null" json:"type"`
	TxHash    string    `gorm:"column:tx_hash" json:"tx_hash"`
	Timestamp time.Time `gorm:"index;not null" json:"timestamp"`
	// ProjectID duplicates Details.ProjectID as a plain indexed column so
	// history queries do not depend on JSON operators.
	ProjectID string                                 `gorm:"column:project_id;index" json:"-"`
	Details   datatypes.JSONType[TransactionDetails] `json:"details"`
	CreatedAt time.Time                              `gorm:"autoCreateTime" json:"-"`
}

// TableName specifies the table name for the Transaction model.
func (Transaction) TableName() string {
	return "transactions"
}

// UserProfile is the embedded profile of a registry user.
type UserProfile struct {
	Role  string `gorm:"column:role;index" json:"role"`
	Name  string `gorm:"column:name" json:"name"`
	Email string `gorm:"column:email" json:"email"`
}

// User is a registry account. Profile.Role is one of RoleAdmin, RoleMinter,
// RoleUser.
type User struct {
	ID        uint        `gorm:"primaryKey" json:"-"`
	Address   string      `gorm:"uniqueIndex;not null" json:"address"`
	Profile   UserProfile `gorm:"embedded;embeddedPrefix:profile_" json:"profile"`
	CreatedAt time.Time   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName specifies the table name for the User model.
func (User) TableName() string {
	return "users"
}
