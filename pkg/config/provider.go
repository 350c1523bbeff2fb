// Package config loads the settings shared by the inform commands.
package config

import (
	"time"

	"github.com/chrissnell/inform/internal/ncio"
)

// ConfigProvider defines the interface for configuration data sources
type ConfigProvider interface {
	// Load complete configuration
	LoadConfig() (*ConfigData, error)

	GetStorageConfig() (*StorageData, error)

	IsReadOnly() bool
	Close() error
}

// ConfigData represents the complete configuration structure
type ConfigData struct {
	// Columns maps role names (latitude, altitude, ...) to observation
	// column names. Unlisted roles keep their defaults.
	Columns      map[string]string `json:"columns,omitempty" yaml:"columns,omitempty"`
	Input        InputData         `json:"input" yaml:"input"`
	Segmentation SegmentationData  `json:"segmentation" yaml:"segmentation"`
	Extraction   ExtractionData    `json:"extraction" yaml:"extraction"`
	Grid         GridData          `json:"grid" yaml:"grid"`
	Joins        JoinsData         `json:"joins" yaml:"joins"`
	Storage      StorageData       `json:"storage,omitempty" yaml:"storage,omitempty"`
	Logging      LoggingData       `json:"logging,omitempty" yaml:"logging,omitempty"`
	Server       ServerData        `json:"server,omitempty" yaml:"server,omitempty"`
}

// InputData names the variables read from input files.
type InputData struct {
	TimeVariable string `json:"time_variable" yaml:"time_variable"`
	// Variables limits the flight variables read. Empty reads all of them.
	Variables  []string             `json:"variables,omitempty" yaml:"variables,omitempty"`
	Model      ncio.ModelNames      `json:"model" yaml:"model"`
	Reanalysis ncio.ReanalysisNames `json:"reanalysis" yaml:"reanalysis"`
}

// SegmentationData holds the flight regime thresholds.
type SegmentationData struct {
	StdWindow              int           `json:"std_window" yaml:"std_window"`
	StdThreshold           float64       `json:"std_threshold" yaml:"std_threshold"`
	MinLevelDuration       time.Duration `json:"min_level_duration" yaml:"min_level_duration"`
	MergeGap               time.Duration `json:"merge_gap" yaml:"merge_gap"`
	LiquidWaterThreshold   float64       `json:"liquid_water_threshold" yaml:"liquid_water_threshold"`
	ConcentrationThreshold float64       `json:"concentration_threshold" yaml:"concentration_threshold"`
	MinCloudExcursion      float64       `json:"min_cloud_excursion" yaml:"min_cloud_excursion"`
	CloudAltitudeGap       float64       `json:"cloud_altitude_gap" yaml:"cloud_altitude_gap"`
	BoundaryLayerBuffer    float64       `json:"boundary_layer_buffer" yaml:"boundary_layer_buffer"`
}

// ExtractionData holds the segment filters.
type ExtractionData struct {
	MinProfileExcursion float64       `json:"min_profile_excursion" yaml:"min_profile_excursion"`
	MinLevelFTDuration  time.Duration `json:"min_level_ft_duration" yaml:"min_level_ft_duration"`
}

// GridData configures model-grid averaging.
type GridData struct {
	PressureScale     float64       `json:"pressure_scale" yaml:"pressure_scale"`
	WindowPadding     time.Duration `json:"window_padding" yaml:"window_padding"`
	ReferenceVariable string        `json:"reference_variable,omitempty" yaml:"reference_variable,omitempty"`
	Variables         []string      `json:"variables,omitempty" yaml:"variables,omitempty"`
}

// JoinsData configures the reference joins.
type JoinsData struct {
	FieldTolerance    time.Duration `json:"field_tolerance" yaml:"field_tolerance"`
	MaxDistanceKm     float64       `json:"max_distance_km" yaml:"max_distance_km"`
	MemoSize          int           `json:"memo_size" yaml:"memo_size"`
	EchoTolerance     time.Duration `json:"echo_tolerance" yaml:"echo_tolerance"`
	SizeDistTolerance time.Duration `json:"sizedist_tolerance" yaml:"sizedist_tolerance"`
	SondeTolerance    time.Duration `json:"sonde_tolerance" yaml:"sonde_tolerance"`
	RegimeTolerance   time.Duration `json:"regime_tolerance" yaml:"regime_tolerance"`
	// ReanalysisLabel prefixes reanalysis columns.
	ReanalysisLabel     string   `json:"reanalysis_label" yaml:"reanalysis_label"`
	ReanalysisVariables []string `json:"reanalysis_variables,omitempty" yaml:"reanalysis_variables,omitempty"`
}

// StorageData holds the configuration for the results stores
type StorageData struct {
	SQLite      *SQLiteData      `json:"sqlite,omitempty" yaml:"sqlite,omitempty"`
	TimescaleDB *TimescaleDBData `json:"timescaledb,omitempty" yaml:"timescaledb,omitempty"`
}

type SQLiteData struct {
	Path string `json:"path" yaml:"path"`
}

type TimescaleDBData struct {
	ConnectionString string `json:"connection_string" yaml:"connection_string"`
}

// LoggingData configures the optional rotating log file.
type LoggingData struct {
	File       string `json:"file,omitempty" yaml:"file,omitempty"`
	MaxSizeMB  int    `json:"max_size_mb,omitempty" yaml:"max_size_mb,omitempty"`
	MaxBackups int    `json:"max_backups,omitempty" yaml:"max_backups,omitempty"`
	MaxAgeDays int    `json:"max_age_days,omitempty" yaml:"max_age_days,omitempty"`
}

// ServerData configures the REST server.
type ServerData struct {
	ListenAddr string `json:"listen_addr,omitempty" yaml:"listen_addr,omitempty"`
	Port       int    `json:"port,omitempty" yaml:"port,omitempty"`
}
